// Package providers holds the built-in credential providers: the context
// provider serving file-backed stores for system and item contexts, and
// the user provider serving each user's personal store. Both persist
// through internal/storage and decode credentials through the kind
// registry, so every secret field stays in envelope form at rest.
package providers

import (
	"sync"
	"sync/atomic"

	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/internal/logging"
	"github.com/systmms/credops/internal/metrics"
	"github.com/systmms/credops/internal/permissions"
	"github.com/systmms/credops/internal/storage"
	"github.com/systmms/credops/pkg/credentials"
	"github.com/systmms/credops/pkg/domains"
	"github.com/systmms/credops/pkg/secret"
)

// deps bundles the collaborators shared by the built-in providers.
type deps struct {
	kinds   *credentials.KindRegistry
	codec   *secret.Codec
	auth    credentials.Authorizer
	logger  *logging.Logger
	metrics *metrics.Recorder
}

// Option configures a built-in provider.
type Option func(*deps)

// WithAuthorizer installs the authorizer consulted on every permission
// check. The default is the rule-based checker.
func WithAuthorizer(auth credentials.Authorizer) Option {
	return func(d *deps) { d.auth = auth }
}

// WithLogger installs the provider's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(d *deps) { d.logger = logger }
}

// WithMetrics installs the mutation metrics recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(d *deps) { d.metrics = recorder }
}

func newDeps(kinds *credentials.KindRegistry, codec *secret.Codec, opts []Option) *deps {
	d := &deps{
		kinds: kinds,
		codec: codec,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.kinds == nil {
		d.kinds = credentials.DefaultKinds()
	}
	if d.auth == nil {
		d.auth = permissions.NewChecker(d.logger)
	}
	return d
}

func (d *deps) warnf(format string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Warn(format, args...)
	}
}

func (d *deps) debugf(format string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Debug(format, args...)
	}
}

// storeCache hands out one store per context path so concurrent callers
// share the same mutation mutex.
type storeCache struct {
	mu     sync.Mutex
	stores map[string]*fileStore
}

func (c *storeCache) get(path string, build func() *fileStore) *fileStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stores == nil {
		c.stores = make(map[string]*fileStore)
	}
	if s, ok := c.stores[path]; ok {
		return s
	}
	s := build()
	c.stores[path] = s
	return s
}

// shelf is one domain and the credentials shelved in it.
type shelf struct {
	domain domains.Domain
	creds  []credentials.Credential
}

// collection is a store's decoded state: its shelves in declaration
// order, the global domain first.
type collection struct {
	entries []shelf
}

// normalize guarantees the global shelf exists and sits first.
func (c *collection) normalize() {
	for i := range c.entries {
		if c.entries[i].domain.IsGlobal() {
			if i != 0 {
				global := c.entries[i]
				c.entries = append(c.entries[:i], c.entries[i+1:]...)
				c.entries = append([]shelf{global}, c.entries...)
			}
			return
		}
	}
	c.entries = append([]shelf{{domain: domains.Global()}}, c.entries...)
}

func (c *collection) find(name string) *shelf {
	for i := range c.entries {
		if c.entries[i].domain.Name() == name {
			return &c.entries[i]
		}
	}
	return nil
}

// fileStore implements credentials.Store on top of a load/save pair. The
// mutex serializes read-modify-save cycles for one context; plain
// listings load fresh state without it.
type fileStore struct {
	provider     credentials.Provider
	alive        *atomic.Bool
	ctx          credentials.Context
	path         string
	d            *deps
	providerName string
	mu           sync.Mutex
	load         func() ([]storage.DomainEntry, error)
	save         func([]storage.DomainEntry) error
}

var _ credentials.Store = (*fileStore)(nil)

// Provider returns the owning provider, failing once it has been
// deregistered so retained store handles cannot operate against an
// orphaned backend.
func (s *fileStore) Provider() (credentials.Provider, error) {
	if !s.alive.Load() {
		return nil, s.deregisteredError()
	}
	return s.provider, nil
}

func (s *fileStore) deregisteredError() error {
	return errors.ConfigError{
		Field:      "provider",
		Value:      s.providerName,
		Message:    "credential provider is no longer registered",
		Suggestion: "register the provider again before using retained store handles",
	}
}

// Context returns the context this store is attached to.
func (s *fileStore) Context() credentials.Context {
	return s.ctx
}

// HasPermission reports whether the principal may perform the operation
// class on this store.
func (s *fileStore) HasPermission(p credentials.Principal, perm credentials.Permission) bool {
	return s.d.auth.Allowed(p, perm, s.ctx)
}

// Domains lists the store's domains, the global domain first.
func (s *fileStore) Domains() []domains.Domain {
	col, err := s.loadCollection()
	if err != nil {
		s.d.warnf("Failed to load credential store %s: %v", s.path, err)
		return []domains.Domain{domains.Global()}
	}
	out := make([]domains.Domain, 0, len(col.entries))
	for _, entry := range col.entries {
		out = append(out, entry.domain)
	}
	return out
}

// DomainByName finds a domain by name; the empty name is the global
// domain.
func (s *fileStore) DomainByName(name string) (domains.Domain, bool) {
	for _, d := range s.Domains() {
		if d.Name() == name {
			return d, true
		}
	}
	return domains.Domain{}, false
}

// Credentials lists the credentials shelved in the domain.
func (s *fileStore) Credentials(d domains.Domain) []credentials.Credential {
	col, err := s.loadCollection()
	if err != nil {
		s.d.warnf("Failed to load credential store %s: %v", s.path, err)
		return []credentials.Credential{}
	}
	entry := col.find(d.Name())
	if entry == nil {
		return []credentials.Credential{}
	}
	return append([]credentials.Credential{}, entry.creds...)
}

// AddDomain creates a domain, optionally with initial credentials.
func (s *fileStore) AddDomain(as credentials.Principal, d domains.Domain, creds ...credentials.Credential) (bool, error) {
	return s.mutate(as, credentials.PermissionManageDomains, "add_domain", func(col *collection) bool {
		if d.IsGlobal() || col.find(d.Name()) != nil {
			return false
		}
		col.entries = append(col.entries, shelf{
			domain: d,
			creds:  append([]credentials.Credential{}, creds...),
		})
		return true
	})
}

// RemoveDomain deletes a domain and everything shelved in it.
func (s *fileStore) RemoveDomain(as credentials.Principal, d domains.Domain) (bool, error) {
	return s.mutate(as, credentials.PermissionManageDomains, "remove_domain", func(col *collection) bool {
		if d.IsGlobal() {
			return false
		}
		for i := range col.entries {
			if col.entries[i].domain.Name() == d.Name() {
				col.entries = append(col.entries[:i], col.entries[i+1:]...)
				return true
			}
		}
		return false
	})
}

// UpdateDomain swaps the domain named by current for replacement, keeping
// its credentials. The global domain cannot be replaced, and a rename
// that would collide with another domain changes nothing.
func (s *fileStore) UpdateDomain(as credentials.Principal, current, replacement domains.Domain) (bool, error) {
	return s.mutate(as, credentials.PermissionManageDomains, "update_domain", func(col *collection) bool {
		if current.IsGlobal() || replacement.IsGlobal() {
			return false
		}
		entry := col.find(current.Name())
		if entry == nil {
			return false
		}
		if replacement.Name() != current.Name() && col.find(replacement.Name()) != nil {
			return false
		}
		entry.domain = replacement
		return true
	})
}

// AddCredentials shelves credentials into the domain, skipping ones that
// already have an equivalent there.
func (s *fileStore) AddCredentials(as credentials.Principal, d domains.Domain, creds ...credentials.Credential) (bool, error) {
	return s.mutate(as, credentials.PermissionCreate, "add_credentials", func(col *collection) bool {
		entry := col.find(d.Name())
		if entry == nil {
			return false
		}
		changed := false
		for _, c := range creds {
			if c == nil || hasSame(entry.creds, c) {
				continue
			}
			entry.creds = append(entry.creds, c)
			changed = true
		}
		return changed
	})
}

// RemoveCredentials unshelves the given credentials from the domain.
func (s *fileStore) RemoveCredentials(as credentials.Principal, d domains.Domain, creds ...credentials.Credential) (bool, error) {
	return s.mutate(as, credentials.PermissionDelete, "remove_credentials", func(col *collection) bool {
		entry := col.find(d.Name())
		if entry == nil {
			return false
		}
		changed := false
		for _, c := range creds {
			for i := range entry.creds {
				if credentials.Same(entry.creds[i], c) {
					entry.creds = append(entry.creds[:i], entry.creds[i+1:]...)
					changed = true
					break
				}
			}
		}
		return changed
	})
}

// UpdateCredentials replaces current with replacement inside the domain,
// preserving its position.
func (s *fileStore) UpdateCredentials(as credentials.Principal, d domains.Domain, current, replacement credentials.Credential) (bool, error) {
	return s.mutate(as, credentials.PermissionUpdate, "update_credentials", func(col *collection) bool {
		if replacement == nil {
			return false
		}
		entry := col.find(d.Name())
		if entry == nil {
			return false
		}
		for i := range entry.creds {
			if credentials.Same(entry.creds[i], current) {
				entry.creds[i] = replacement
				return true
			}
		}
		return false
	})
}

func hasSame(creds []credentials.Credential, c credentials.Credential) bool {
	for _, have := range creds {
		if credentials.Same(have, c) {
			return true
		}
	}
	return false
}

// mutate runs one permission-checked read-modify-save cycle. The save
// happens under the store mutex, so a true return means the change is
// durable. A load or decode failure aborts before fn runs; a store is
// never rewritten from a state it could not fully read.
func (s *fileStore) mutate(as credentials.Principal, perm credentials.Permission, operation string, fn func(*collection) bool) (bool, error) {
	if !s.alive.Load() {
		return false, s.deregisteredError()
	}
	if !s.HasPermission(as, perm) {
		return false, errors.AccessDeniedError{
			Subject:    as.ID,
			Permission: string(perm),
			Resource:   s.path,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.loadCollection()
	if err != nil {
		s.d.metrics.RecordStoreMutation(s.providerName, operation, "error")
		return false, errors.StoreError(s.providerName, operation, err)
	}
	if !fn(col) {
		s.d.metrics.RecordStoreMutation(s.providerName, operation, "noop")
		return false, nil
	}
	if err := s.saveCollection(col); err != nil {
		s.d.metrics.RecordStoreMutation(s.providerName, operation, "error")
		return false, errors.StoreError(s.providerName, operation, err)
	}
	s.d.metrics.RecordStoreMutation(s.providerName, operation, "success")
	s.d.debugf("Store %s persisted %s", s.path, operation)
	return true, nil
}

func (s *fileStore) loadCollection() (*collection, error) {
	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	col := &collection{}
	for _, e := range entries {
		creds := make([]credentials.Credential, 0, len(e.Credentials))
		for _, rec := range e.Credentials {
			c, err := s.d.kinds.Decode(rec, s.d.codec)
			if err != nil {
				return nil, err
			}
			creds = append(creds, c)
		}
		col.entries = append(col.entries, shelf{domain: e.Domain, creds: creds})
	}
	col.normalize()
	return col, nil
}

func (s *fileStore) saveCollection(col *collection) error {
	entries := make([]storage.DomainEntry, 0, len(col.entries))
	for _, e := range col.entries {
		records := make([]credentials.Record, 0, len(e.creds))
		for _, c := range e.creds {
			rec, err := s.d.kinds.Encode(c, s.d.codec)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		entries = append(entries, storage.DomainEntry{Domain: e.domain, Credentials: records})
	}
	return s.save(entries)
}
