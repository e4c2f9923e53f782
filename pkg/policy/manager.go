package policy

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/internal/logging"
	"github.com/systmms/credops/internal/metrics"
	"github.com/systmms/credops/pkg/credentials"
)

// Manager holds the live policy and answers visibility checks on the
// lookup path. Checks are lock-free reads of an immutable snapshot;
// administrative mutations swap the snapshot under a mutex and persist
// synchronously before returning.
//
// A persistence failure after a mutation is logged and swallowed: the
// change is already live in memory and the administrator is not blocked.
// The record stays marked dirty and the next Save retries the write.
type Manager struct {
	store   Store
	auth    credentials.Authorizer
	logger  *logging.Logger
	metrics *metrics.Recorder

	mu      sync.Mutex
	current atomic.Pointer[policyState]
	dirty   bool
}

// policyState is one immutable policy snapshot. The restriction index is
// derived lazily; racing derivations compute equivalent values, so reads
// never take a lock.
type policyState struct {
	record Record
	index  atomic.Pointer[restrictionIndex]
}

func (s *policyState) restrictionIndex() *restrictionIndex {
	if idx := s.index.Load(); idx != nil {
		return idx
	}
	idx := buildRestrictionIndex(s.record.Restrictions)
	s.index.Store(idx)
	return idx
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger installs the manager's logger.
func WithLogger(logger *logging.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics installs the policy metrics recorder.
func WithMetrics(rec *metrics.Recorder) ManagerOption {
	return func(m *Manager) { m.metrics = rec }
}

// NewManager loads the persisted policy from store, or starts from the
// allow-everything default when none exists. A nil store keeps the policy
// in memory only. auth gates administrative mutations; with a nil auth
// only principals with the Admin flag may mutate.
func NewManager(store Store, auth credentials.Authorizer, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{store: store, auth: auth}
	for _, opt := range opts {
		opt(m)
	}

	rec := DefaultRecord()
	if store != nil {
		loaded, err := store.LoadPolicy()
		if err != nil {
			return nil, errors.StoreError("policy", "load", err)
		}
		if loaded != nil {
			if err := loaded.Validate(); err != nil {
				return nil, err
			}
			rec = *loaded
		}
	}
	rec.ProviderFilter = rec.ProviderFilter.normalize()
	rec.KindFilter = rec.KindFilter.normalize()
	rec.Restrictions = groupRestrictions(rec.Restrictions)
	m.install(rec)
	return m, nil
}

// install swaps in a new snapshot. Caller holds mu except during New.
func (m *Manager) install(rec Record) {
	m.current.Store(&policyState{record: rec})
}

func (m *Manager) snapshot() *policyState {
	return m.current.Load()
}

// ProviderAllowed reports whether the provider filter admits the provider.
func (m *Manager) ProviderAllowed(name string) bool {
	return m.snapshot().record.ProviderFilter.Allows(name)
}

// KindAllowed reports whether the kind filter admits the kind.
func (m *Manager) KindAllowed(kind credentials.Kind) bool {
	return m.snapshot().record.KindFilter.Allows(kind)
}

// PairAllowed reports whether every restriction group approves the
// provider/kind pair.
func (m *Manager) PairAllowed(name string, kind credentials.Kind) bool {
	return m.snapshot().restrictionIndex().approves(name, kind)
}

// Allowed combines all three layers for one provider/kind pair.
func (m *Manager) Allowed(name string, kind credentials.Kind) bool {
	return m.ProviderAllowed(name) && m.KindAllowed(kind) && m.PairAllowed(name, kind)
}

// ProviderFilter returns the current provider filter.
func (m *Manager) ProviderFilter() ProviderFilter {
	f := m.snapshot().record.ProviderFilter
	f.Names = slices.Clone(f.Names)
	return f
}

// KindFilter returns the current kind filter.
func (m *Manager) KindFilter() KindFilter {
	f := m.snapshot().record.KindFilter
	f.Kinds = slices.Clone(f.Kinds)
	return f
}

// Restrictions returns the current restriction list in its grouped order.
func (m *Manager) Restrictions() []Restriction {
	return slices.Clone(m.snapshot().record.Restrictions)
}

// Snapshot returns a copy of the whole policy record.
func (m *Manager) Snapshot() Record {
	rec := m.snapshot().record
	rec.ProviderFilter.Names = slices.Clone(rec.ProviderFilter.Names)
	rec.KindFilter.Kinds = slices.Clone(rec.KindFilter.Kinds)
	rec.Restrictions = slices.Clone(rec.Restrictions)
	return rec
}

// SetProviderFilter replaces the provider filter. Setting an equal filter
// is a no-op.
func (m *Manager) SetProviderFilter(as credentials.Principal, f ProviderFilter) (bool, error) {
	if err := f.Validate(); err != nil {
		return false, err
	}
	if err := m.authorize(as); err != nil {
		return false, err
	}
	f = f.normalize()

	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.current.Load().record
	if rec.ProviderFilter.Equal(f) {
		return false, nil
	}
	rec.ProviderFilter = f
	m.install(rec)
	m.metrics.RecordPolicyUpdate("provider_filter")
	m.persistLocked()
	return true, nil
}

// SetKindFilter replaces the kind filter. Setting an equal filter is a
// no-op.
func (m *Manager) SetKindFilter(as credentials.Principal, f KindFilter) (bool, error) {
	if err := f.Validate(); err != nil {
		return false, err
	}
	if err := m.authorize(as); err != nil {
		return false, err
	}
	f = f.normalize()

	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.current.Load().record
	if rec.KindFilter.Equal(f) {
		return false, nil
	}
	rec.KindFilter = f
	m.install(rec)
	m.metrics.RecordPolicyUpdate("kind_filter")
	m.persistLocked()
	return true, nil
}

// SetRestrictions replaces the restriction list. Entries are stored in
// grouped order, includes before excludes, so equality and persistence are
// deterministic regardless of the order handed in.
func (m *Manager) SetRestrictions(as credentials.Principal, rs []Restriction) (bool, error) {
	for _, r := range rs {
		if err := r.Validate(); err != nil {
			return false, err
		}
	}
	if err := m.authorize(as); err != nil {
		return false, err
	}
	grouped := groupRestrictions(rs)

	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.current.Load().record
	if slices.Equal(rec.Restrictions, grouped) {
		return false, nil
	}
	rec.Restrictions = grouped
	m.install(rec)
	m.metrics.RecordPolicyUpdate("restrictions")
	m.persistLocked()
	return true, nil
}

// Save writes the current record and surfaces any persistence error.
// Mutations persist on their own and swallow failures; Save is the
// explicit retry path for a record that stayed dirty.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveLocked(); err != nil {
		m.dirty = true
		return errors.StoreError("policy", "save", err)
	}
	m.dirty = false
	return nil
}

// Dirty reports whether the live policy differs from what was last
// persisted successfully.
func (m *Manager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

func (m *Manager) authorize(as credentials.Principal) error {
	allowed := as.Admin
	if m.auth != nil {
		allowed = m.auth.Allowed(as, credentials.PermissionAdminister, credentials.System())
	}
	if !allowed {
		return errors.AccessDeniedError{
			Subject:    as.ID,
			Permission: string(credentials.PermissionAdminister),
			Resource:   "credential policy",
		}
	}
	return nil
}

func (m *Manager) persistLocked() {
	if err := m.saveLocked(); err != nil {
		m.dirty = true
		if m.logger != nil {
			m.logger.Warn("Policy change applied but not persisted: %v", err)
		}
		return
	}
	m.dirty = false
}

func (m *Manager) saveLocked() error {
	if m.store == nil {
		return nil
	}
	return m.store.SavePolicy(m.current.Load().record)
}

var _ credentials.PolicyDecider = (*Manager)(nil)
