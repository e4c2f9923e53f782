package secret

import (
	"sync"
)

// ConfidentialStore persists small confidential payloads such as the codec
// master key. Implementations decide where the bytes live (OS keyring, a
// restricted file, memory) but must keep them out of ordinary logs and
// world-readable locations.
//
// Implementations must copy the data they are given; callers may wipe the
// slice immediately after Store returns.
type ConfidentialStore interface {
	// Load returns the payload stored under name, or (nil, nil) when no
	// payload exists yet. Errors are reserved for backend failures.
	Load(name string) ([]byte, error)

	// Store persists the payload under name, replacing any previous value.
	Store(name string, data []byte) error
}

// MemoryStore is an in-memory ConfidentialStore. Payloads do not survive the
// process; it exists for tests and for deliberately ephemeral deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryStore creates an empty in-memory confidential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

// Load returns a copy of the payload stored under name, or (nil, nil).
func (m *MemoryStore) Load(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.entries[name]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Store copies and retains the payload under name.
func (m *MemoryStore) Store(name string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.entries[name] = cp
	m.mu.Unlock()
	return nil
}
