package credentials

import "github.com/systmms/credops/pkg/domains"

// Store shelves credentials into domains for one context.
//
// Every store has the global domain, which always exists and cannot be
// added, removed, or replaced. Domains are identified by name: two domains
// with the same name are the same shelf regardless of their specifications,
// which is what lets UpdateDomain swap specifications in place.
//
// Mutations return (changed, err). A mutation that finds nothing to do,
// such as adding a domain that already exists, reports (false, nil);
// broken preconditions such as a missing permission or an unregistered
// provider report an error. Implementations
// must check the acting principal against their authorizer before touching
// state and must persist synchronously before reporting success, so a
// successful return means the change is durable.
//
// Listings return copies; callers may not mutate a store through a
// returned slice.
type Store interface {
	// Provider returns the provider this store belongs to. Once the
	// provider is deregistered every call fails, so a retained store
	// handle cannot quietly operate against an orphaned backend.
	Provider() (Provider, error)

	// Context returns the context this store is attached to.
	Context() Context

	// HasPermission reports whether the principal may perform the
	// operation class on this store.
	HasPermission(p Principal, perm Permission) bool

	// Domains lists the store's domains, the global domain first. The
	// result is never empty.
	Domains() []domains.Domain

	// DomainByName finds a domain by name; the empty name is the global
	// domain.
	DomainByName(name string) (domains.Domain, bool)

	// Credentials lists the credentials shelved in the domain. Unknown
	// domains list empty; the result is never nil.
	Credentials(d domains.Domain) []Credential

	// AddDomain creates a domain, optionally with initial credentials.
	// Adding the global domain or an existing name changes nothing.
	AddDomain(as Principal, d domains.Domain, creds ...Credential) (bool, error)

	// RemoveDomain deletes a domain and everything shelved in it. The
	// global domain cannot be removed.
	RemoveDomain(as Principal, d domains.Domain) (bool, error)

	// UpdateDomain replaces the specifications of the domain named by
	// current with those of replacement, keeping its credentials.
	UpdateDomain(as Principal, current, replacement domains.Domain) (bool, error)

	// AddCredentials shelves credentials into the domain. Credentials
	// that already have an equivalent in the domain, per Same, are
	// skipped.
	AddCredentials(as Principal, d domains.Domain, creds ...Credential) (bool, error)

	// RemoveCredentials unshelves the given credentials from the domain,
	// matching by Same.
	RemoveCredentials(as Principal, d domains.Domain, creds ...Credential) (bool, error)

	// UpdateCredentials replaces current with replacement inside the
	// domain. When current is absent nothing changes.
	UpdateCredentials(as Principal, d domains.Domain, current, replacement Credential) (bool, error)
}
