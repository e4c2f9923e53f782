// Package credentials defines the core model for scoped, typed secret
// holders and the contracts for storing, providing, matching, and naming
// them.
//
// # Model
//
// A Credential is an opaque holder of secret material with an identifier, a
// visibility Scope, and a human description. Concrete credential types
// (username/password pairs, secret text, SSH keys, certificates, secret
// files) are immutable; to change one, replace it through its store.
//
// Credentials live in stores. A Store belongs to exactly one Context (the
// root system, a nested item, or a user) and shelves its credentials into
// domains (see package domains). A Provider locates or lazily creates the
// store for each context it applies to; the Registry aggregates all
// registered providers and answers platform-wide lookups.
//
// # Scope
//
// Scope controls where a credential is visible:
//
//   - ScopeSystem: only within the exact context that defines it.
//   - ScopeGlobal: within the defining context and all its descendants.
//   - ScopeUser: only to the identity that owns it, wherever that identity
//     is acting.
//
// A credential's scope is fixed at construction. Stores and providers
// enforce visibility at read time; there is no separate enforcement layer.
//
// # Kinds
//
// Every credential reports a Kind, a closed identifier resolved through an
// explicitly constructed KindRegistry. The registry carries, per kind, the
// display name, the codec for persistence, the prioritized naming sources
// used to render a display string, the declared naming fallback chain, and
// the one-hop adapters that let legacy kinds stand in for their modern
// replacements.
//
// # Selection
//
// Matchers are stateless predicates over credentials. They compose with
// Not, AllOf, and AnyOf, and the Filter/FirstOrDefault helpers apply them
// over collections; FirstOrDefault is the canonical "pick one credential"
// operation.
//
// # Extension points
//
// Store, Provider, Matcher, SnapshotTaker, and the registry's name sources
// and resolvers are all open for third-party implementations. Nothing in
// this package is discovered implicitly; every provider, kind, resolver,
// and name source is registered explicitly at process start.
package credentials

import (
	"fmt"

	"github.com/google/uuid"
)

// Scope is the visibility class of a credential.
type Scope string

const (
	// ScopeSystem restricts a credential to the exact context defining it.
	ScopeSystem Scope = "SYSTEM"
	// ScopeGlobal makes a credential visible in the defining context and
	// every descendant context, but not in ancestors.
	ScopeGlobal Scope = "GLOBAL"
	// ScopeUser binds a credential to one identity; it is visible only to
	// queries made on behalf of that identity.
	ScopeUser Scope = "USER"
)

// Valid reports whether s is one of the three defined scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeSystem, ScopeGlobal, ScopeUser:
		return true
	}
	return false
}

func (s Scope) String() string { return string(s) }

// ParseScope converts the persisted form back into a Scope.
func ParseScope(s string) (Scope, error) {
	scope := Scope(s)
	if !scope.Valid() {
		return "", fmt.Errorf("unknown credential scope %q", s)
	}
	return scope, nil
}

// Credential is an opaque, typed secret holder.
//
// Implementations must be immutable; mutation happens by replacing the
// credential through its store. The identifier may be empty for anonymous
// credentials; stores assign one at add time.
type Credential interface {
	// ID returns the credential's identifier, empty if anonymous.
	ID() string
	// Kind returns the closed kind identifier used for registry lookups.
	Kind() Kind
	// Scope returns the visibility scope, fixed at construction.
	Scope() Scope
	// Description returns the human description, possibly empty.
	Description() string
}

// Comparable is implemented by credentials that can detect duplicates of
// themselves. Stores use it to make adding an equivalent credential a
// no-op. Credentials that do not implement it are never considered
// duplicates.
type Comparable interface {
	// Same reports whether other carries the same identity, scope,
	// description, and secret material.
	Same(other Credential) bool
}

// UsernameCredential is implemented by credentials that carry a username,
// letting matchers and display code treat them uniformly.
type UsernameCredential interface {
	Credential
	Username() string
}

// Base carries the fields every credential shares. Embed it by value; the
// fields are unexported so scope and identity cannot change after
// construction.
type Base struct {
	id          string
	scope       Scope
	description string
}

// NewBase creates the common part of a credential.
func NewBase(id string, scope Scope, description string) Base {
	return Base{id: id, scope: scope, description: description}
}

// ID returns the credential identifier, empty if anonymous.
func (b Base) ID() string { return b.id }

// Scope returns the visibility scope.
func (b Base) Scope() Scope { return b.scope }

// Description returns the human description.
func (b Base) Description() string { return b.description }

func (b Base) sameBase(other Credential) bool {
	return b.id == other.ID() &&
		b.scope == other.Scope() &&
		b.description == other.Description()
}

// NewID generates an identifier for an anonymous credential.
func NewID() string {
	return uuid.NewString()
}

// Same reports whether two credentials are interchangeable. It delegates to
// the Comparable implementation of a when present; credentials that cannot
// compare themselves are never the same.
func Same(a, b Credential) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := a.(Comparable); ok {
		return c.Same(b)
	}
	return false
}
