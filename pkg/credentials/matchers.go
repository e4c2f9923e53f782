package credentials

import (
	"fmt"
	"strings"
)

// Matcher selects credentials. Implementations must be pure: same
// credential in, same answer out, no mutation.
//
// String returns a stable description used in logs and error messages; it
// must not include secret material.
type Matcher interface {
	Matches(c Credential) bool
	String() string
}

type alwaysMatcher struct{}

func (alwaysMatcher) Matches(Credential) bool { return true }
func (alwaysMatcher) String() string          { return "always" }

// Always matches every credential.
func Always() Matcher { return alwaysMatcher{} }

type neverMatcher struct{}

func (neverMatcher) Matches(Credential) bool { return false }
func (neverMatcher) String() string          { return "never" }

// Never matches no credential.
func Never() Matcher { return neverMatcher{} }

type notMatcher struct{ inner Matcher }

func (m notMatcher) Matches(c Credential) bool { return !m.inner.Matches(c) }
func (m notMatcher) String() string            { return fmt.Sprintf("not(%s)", m.inner) }

// Not inverts a matcher.
func Not(m Matcher) Matcher { return notMatcher{inner: m} }

type allOfMatcher struct{ matchers []Matcher }

func (m allOfMatcher) Matches(c Credential) bool {
	for _, inner := range m.matchers {
		if !inner.Matches(c) {
			return false
		}
	}
	return true
}

func (m allOfMatcher) String() string { return describeCombined("allOf", m.matchers) }

// AllOf matches when every inner matcher matches. With no inner matchers
// it matches everything.
func AllOf(matchers ...Matcher) Matcher {
	return allOfMatcher{matchers: matchers}
}

type anyOfMatcher struct{ matchers []Matcher }

func (m anyOfMatcher) Matches(c Credential) bool {
	for _, inner := range m.matchers {
		if inner.Matches(c) {
			return true
		}
	}
	return false
}

func (m anyOfMatcher) String() string { return describeCombined("anyOf", m.matchers) }

// AnyOf matches when at least one inner matcher matches. With no inner
// matchers it matches nothing.
func AnyOf(matchers ...Matcher) Matcher {
	return anyOfMatcher{matchers: matchers}
}

func describeCombined(name string, matchers []Matcher) string {
	parts := make([]string, len(matchers))
	for i, m := range matchers {
		parts[i] = m.String()
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

type idMatcher struct{ id string }

func (m idMatcher) Matches(c Credential) bool { return c.ID() == m.id }
func (m idMatcher) String() string            { return fmt.Sprintf("id(%q)", m.id) }

// WithID matches the credential whose ID equals id exactly.
func WithID(id string) Matcher { return idMatcher{id: id} }

type scopeMatcher struct{ scopes []Scope }

func (m scopeMatcher) Matches(c Credential) bool {
	for _, s := range m.scopes {
		if c.Scope() == s {
			return true
		}
	}
	return false
}

func (m scopeMatcher) String() string {
	parts := make([]string, len(m.scopes))
	for i, s := range m.scopes {
		parts[i] = string(s)
	}
	return fmt.Sprintf("scope(%s)", strings.Join(parts, ", "))
}

// WithScope matches credentials whose scope is any of the given scopes.
func WithScope(scopes ...Scope) Matcher { return scopeMatcher{scopes: scopes} }

type usernameMatcher struct{ username string }

func (m usernameMatcher) Matches(c Credential) bool {
	uc, ok := c.(UsernameCredential)
	return ok && uc.Username() == m.username
}

func (m usernameMatcher) String() string { return fmt.Sprintf("username(%q)", m.username) }

// WithUsername matches credentials that carry a username equal to the given
// one. Credentials without a username never match.
func WithUsername(username string) Matcher { return usernameMatcher{username: username} }

type kindMatcher struct{ kind Kind }

func (m kindMatcher) Matches(c Credential) bool { return c.Kind() == m.kind }
func (m kindMatcher) String() string            { return fmt.Sprintf("kind(%s)", m.kind) }

// OfKind matches credentials of exactly the given kind. Resolution is the
// registry's job; this matcher does not follow resolver edges.
func OfKind(kind Kind) Matcher { return kindMatcher{kind: kind} }

// Filter returns the credentials the matcher accepts, in input order. The
// result is a fresh slice, never nil.
func Filter[C Credential](creds []C, m Matcher) []C {
	out := make([]C, 0, len(creds))
	for _, c := range creds {
		if m.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// FilterKeyed returns the map entries whose credential the matcher accepts.
func FilterKeyed[K comparable, C Credential](creds map[K]C, m Matcher) map[K]C {
	out := make(map[K]C, len(creds))
	for k, c := range creds {
		if m.Matches(c) {
			out[k] = c
		}
	}
	return out
}

// First returns the first credential the matcher accepts.
func First[C Credential](creds []C, m Matcher) (C, bool) {
	for _, c := range creds {
		if m.Matches(c) {
			return c, true
		}
	}
	var zero C
	return zero, false
}

// FirstOrDefault returns the first credential the matcher accepts, or the
// fallback when none does.
func FirstOrDefault[C Credential](creds []C, m Matcher, fallback C) C {
	if c, ok := First(creds, m); ok {
		return c
	}
	return fallback
}
