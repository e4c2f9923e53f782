package credentials

import "strings"

// Context is a node in the platform's containment hierarchy: the root
// system, a nested item, or a user. Stores attach to contexts, and scope
// visibility is decided by walking the parent chain.
type Context interface {
	// Name returns the context's own name, unique among its siblings.
	Name() string
	// Parent returns the enclosing context, nil at the root.
	Parent() Context
}

type systemContext struct{}

func (systemContext) Name() string    { return "system" }
func (systemContext) Parent() Context { return nil }

// System returns the root context.
func System() Context { return systemContext{} }

type itemContext struct {
	parent Context
	name   string
}

func (c itemContext) Name() string    { return c.name }
func (c itemContext) Parent() Context { return c.parent }

// Item returns a nested context under parent, such as a folder or job.
func Item(parent Context, name string) Context {
	if parent == nil {
		parent = System()
	}
	return itemContext{parent: parent, name: name}
}

type userContext struct {
	principal Principal
}

func (c userContext) Name() string    { return "user:" + c.principal.ID }
func (c userContext) Parent() Context { return System() }

// ForUser returns the per-user context holding the principal's personal
// credentials.
func ForUser(p Principal) Context {
	return userContext{principal: p}
}

// ContextOwner returns the owning user's ID when ctx is, or sits inside, a
// per-user context, and "" otherwise.
func ContextOwner(ctx Context) string {
	for c := ctx; c != nil; c = c.Parent() {
		if u, ok := c.(userContext); ok {
			return u.principal.ID
		}
	}
	return ""
}

// Path renders the context's position as a slash-joined chain from the
// root, e.g. "system/team-a/user:alice". The path is the canonical context
// identity used for comparison and as a storage key.
func Path(ctx Context) string {
	if ctx == nil {
		return ""
	}
	var parts []string
	for c := ctx; c != nil; c = c.Parent() {
		parts = append(parts, c.Name())
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// ParsePath rebuilds a context from its slash-joined path, the inverse of
// Path. "system" is the root, a "user:ID" segment becomes that user's
// context, and every other segment nests an item. The empty path is the
// root, and a path not anchored at "system" is rooted there implicitly.
func ParsePath(path string) Context {
	ctx := System()
	for i, part := range strings.Split(path, "/") {
		switch {
		case part == "":
			continue
		case i == 0 && part == "system":
			continue
		case strings.HasPrefix(part, "user:"):
			ctx = ForUser(Principal{ID: strings.TrimPrefix(part, "user:")})
		default:
			ctx = Item(ctx, part)
		}
	}
	return ctx
}

// SameContext reports whether two contexts denote the same node.
func SameContext(a, b Context) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Path(a) == Path(b)
}

// IsDescendant reports whether ctx sits strictly below ancestor.
func IsDescendant(ctx, ancestor Context) bool {
	if ctx == nil || ancestor == nil {
		return false
	}
	for c := ctx.Parent(); c != nil; c = c.Parent() {
		if SameContext(c, ancestor) {
			return true
		}
	}
	return false
}

// Visible reports whether a credential with the given scope, defined at
// context defining and owned by ownerID (empty unless USER scoped), appears
// in a listing requested at context query on behalf of principal as.
func Visible(scope Scope, defining, query Context, ownerID string, as Principal) bool {
	switch scope {
	case ScopeSystem:
		return SameContext(defining, query)
	case ScopeGlobal:
		return SameContext(defining, query) || IsDescendant(query, defining)
	case ScopeUser:
		return ownerID != "" && ownerID == as.ID
	}
	return false
}

// Principal is the acting identity of a call. The zero value is the
// anonymous principal, which no permission rule grants anything.
type Principal struct {
	ID    string
	Admin bool
}

// Anonymous reports whether the principal carries no identity.
func (p Principal) Anonymous() bool { return p.ID == "" }

// Permission names one operation class on stores and policy.
type Permission string

const (
	PermissionView          Permission = "credentials.view"
	PermissionCreate        Permission = "credentials.create"
	PermissionUpdate        Permission = "credentials.update"
	PermissionDelete        Permission = "credentials.delete"
	PermissionManageDomains Permission = "credentials.manage-domains"
	PermissionAdminister    Permission = "credentials.administer"
)

// Authorizer decides whether a principal may perform an operation in a
// context. Store implementations consult one on every listing and
// mutation; the policy manager consults one for administrative changes.
type Authorizer interface {
	Allowed(p Principal, perm Permission, ctx Context) bool
}
