// Package storage persists the platform's records as JSON files under one
// data directory: a record per context, a record per user with that user's
// credentials embedded, and a single policy record. Files are written
// 0600 inside 0700 directories and validated against embedded JSON
// schemas on load, so a corrupt or foreign file surfaces as an error
// instead of decoding into half-empty state.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/systmms/credops/pkg/credentials"
	"github.com/systmms/credops/pkg/domains"
	"github.com/systmms/credops/pkg/policy"
)

// DomainEntry is one domain and the credentials shelved in it, in their
// declared order.
type DomainEntry struct {
	Domain      domains.Domain       `json:"domain"`
	Credentials []credentials.Record `json:"credentials,omitempty"`
}

// ContextRecord is one context's persisted credential collection. Path is
// the context path; it travels inside the record because the filename is
// sanitized and not reversible.
type ContextRecord struct {
	Path    string        `json:"path"`
	Domains []DomainEntry `json:"domains"`
}

// UserRecord is one user's record with their credential collection
// embedded.
type UserRecord struct {
	ID      string        `json:"id"`
	Domains []DomainEntry `json:"domains"`
}

// FileStore reads and writes the records under its data directory.
// Callers needing read-modify-write atomicity serialize per context above
// this layer; the store itself only guards individual file operations.
type FileStore struct {
	dataDir string
	mu      sync.RWMutex
}

// NewFileStore creates a store rooted at dataDir. Directories are created
// on first write.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{dataDir: dataDir}
}

// DefaultDataDir returns the data directory used when none is configured.
func DefaultDataDir() string {
	if dir := os.Getenv("CREDOPS_DATA_DIR"); dir != "" {
		return dir
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "credops")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "credops")
	}
	return filepath.Join(os.TempDir(), "credops")
}

// DataDir returns the root directory of this store.
func (s *FileStore) DataDir() string {
	return s.dataDir
}

// LoadContext reads one context's record by its context path. A context
// that has never been saved returns (nil, nil).
func (s *FileStore) LoadContext(path string) (*ContextRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec ContextRecord
	found, err := s.readValidated(s.contextFile(path), contextSchema, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

// SaveContext writes one context's record.
func (s *FileStore) SaveContext(rec ContextRecord) error {
	if rec.Path == "" {
		return fmt.Errorf("context record has no path")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.contextFile(rec.Path), rec)
}

// ListContextPaths returns the context paths that have records, in
// filename order.
func (s *FileStore) ListContextPaths() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := []string{}
	dir := filepath.Join(s.dataDir, "contexts")
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return paths, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read contexts directory: %w", err)
	}
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		var rec ContextRecord
		found, err := s.readValidated(filepath.Join(dir, file.Name()), contextSchema, &rec)
		if err != nil {
			return nil, err
		}
		if found {
			paths = append(paths, rec.Path)
		}
	}
	return paths, nil
}

// LoadUser reads one user's record. An unknown user returns (nil, nil).
func (s *FileStore) LoadUser(id string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec UserRecord
	found, err := s.readValidated(s.userFile(id), userSchema, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

// SaveUser writes one user's record.
func (s *FileStore) SaveUser(rec UserRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("user record has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.userFile(rec.ID), rec)
}

// ListUserIDs returns the user ids that have records, in filename order.
func (s *FileStore) ListUserIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []string{}
	dir := filepath.Join(s.dataDir, "users")
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return ids, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read users directory: %w", err)
	}
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		var rec UserRecord
		found, err := s.readValidated(filepath.Join(dir, file.Name()), userSchema, &rec)
		if err != nil {
			return nil, err
		}
		if found {
			ids = append(ids, rec.ID)
		}
	}
	return ids, nil
}

// LoadPolicy reads the policy record. Before the first save it returns
// (nil, nil).
func (s *FileStore) LoadPolicy() (*policy.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec policy.Record
	found, err := s.readValidated(s.policyFile(), policySchema, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

// SavePolicy writes the policy record.
func (s *FileStore) SavePolicy(rec policy.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.policyFile(), rec)
}

var _ policy.Store = (*FileStore)(nil)

func (s *FileStore) contextFile(path string) string {
	return filepath.Join(s.dataDir, "contexts", sanitizeFilename(path)+".json")
}

func (s *FileStore) userFile(id string) string {
	return filepath.Join(s.dataDir, "users", sanitizeFilename(id)+".json")
}

func (s *FileStore) policyFile() string {
	return filepath.Join(s.dataDir, "policy.json")
}

// readValidated reads a JSON file, checks it against schema, and decodes
// into out. A missing file reports (false, nil).
func (s *FileStore) readValidated(filename, schema string, out interface{}) (bool, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", filepath.Base(filename), err)
	}
	if err := validateSchema(data, schema); err != nil {
		return false, fmt.Errorf("invalid record %s: %w", filepath.Base(filename), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(filename), err)
	}
	return true, nil
}

// write marshals v and writes it 0600, creating parent directories 0700.
func (s *FileStore) write(filename string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", filepath.Base(filepath.Dir(filename)), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(filename), err)
	}
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(filename), err)
	}
	return nil
}

// sanitizeFilename replaces characters that might be problematic in
// filenames. Context paths may contain slashes; one record file per
// context keeps the layout flat.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "-",
		"<", "-",
		">", "-",
		"|", "-",
		" ", "_",
	)
	return replacer.Replace(name)
}
