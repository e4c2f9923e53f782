// Package permissions decides what a principal may do in a context. The
// checker evaluates an ordered rule list; the first rule that does not
// abstain decides, and a request no rule decides is denied.
package permissions

import (
	"github.com/systmms/credops/internal/logging"
	"github.com/systmms/credops/pkg/credentials"
)

// Decision is one rule's vote on a request.
type Decision int

const (
	// Abstain passes the request to the next rule.
	Abstain Decision = iota
	// Grant allows the request.
	Grant
	// Deny refuses the request.
	Deny
)

// Rule examines one permission request and votes.
type Rule func(as credentials.Principal, perm credentials.Permission, ctx credentials.Context) Decision

// Checker is the rule-based Authorizer used by stores and the policy
// manager.
type Checker struct {
	logger *logging.Logger
	rules  []Rule
}

// NewChecker creates a checker with the built-in rules: administrators may
// do everything, a principal controls their own user context, and any
// authenticated principal may view credentials outside user contexts.
// Extra rules are evaluated before the built-ins.
func NewChecker(logger *logging.Logger, extra ...Rule) *Checker {
	rules := append([]Rule{}, extra...)
	rules = append(rules, AdminRule, OwnerRule, AuthenticatedViewRule)
	return &Checker{
		logger: logger,
		rules:  rules,
	}
}

// Allowed reports whether the principal holds the permission in the
// context.
func (c *Checker) Allowed(as credentials.Principal, perm credentials.Permission, ctx credentials.Context) bool {
	for _, rule := range c.rules {
		switch rule(as, perm, ctx) {
		case Grant:
			return true
		case Deny:
			c.debugDenied(as, perm, ctx)
			return false
		}
	}
	c.debugDenied(as, perm, ctx)
	return false
}

func (c *Checker) debugDenied(as credentials.Principal, perm credentials.Permission, ctx credentials.Context) {
	if c.logger == nil {
		return
	}
	subject := as.ID
	if subject == "" {
		subject = "anonymous"
	}
	c.logger.Debug("Denied %s to %s in %s", perm, subject, credentials.Path(ctx))
}

var _ credentials.Authorizer = (*Checker)(nil)

// AdminRule grants administrators every permission.
func AdminRule(as credentials.Principal, perm credentials.Permission, ctx credentials.Context) Decision {
	if as.Admin {
		return Grant
	}
	return Abstain
}

// OwnerRule grants a principal every store permission inside their own
// user context. Administer stays reserved for administrators; policy
// changes are checked against the system context, never a user's.
func OwnerRule(as credentials.Principal, perm credentials.Permission, ctx credentials.Context) Decision {
	if as.Anonymous() || perm == credentials.PermissionAdminister {
		return Abstain
	}
	if credentials.ContextOwner(ctx) == as.ID {
		return Grant
	}
	return Abstain
}

// AuthenticatedViewRule grants any authenticated principal view access
// outside user contexts. Other users' personal stores stay invisible.
func AuthenticatedViewRule(as credentials.Principal, perm credentials.Permission, ctx credentials.Context) Decision {
	if as.Anonymous() || perm != credentials.PermissionView {
		return Abstain
	}
	if credentials.ContextOwner(ctx) != "" {
		return Abstain
	}
	return Grant
}
