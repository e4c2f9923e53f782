package keystore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/systmms/credops/pkg/secret"
)

// FileStore keeps payloads as restricted files under a directory. It is the
// fallback for headless machines without a usable OS keyring.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed confidential store rooted at dir. The
// directory is created on first write, not here.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Load reads the payload stored under name, or (nil, nil) when no file
// exists yet.
func (f *FileStore) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read key file for %q: %w", name, err)
	}
	return data, nil
}

// Store writes the payload under name with owner-only permissions.
func (f *FileStore) Store(name string, data []byte) error {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	path := f.path(name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write key file for %q: %w", name, err)
	}
	return nil
}

func (f *FileStore) path(name string) string {
	// Key names are fixed constants, but flatten separators anyway so a
	// hostile name cannot escape the directory.
	clean := filepath.Base(filepath.Clean(name))
	return filepath.Join(f.dir, clean+".key")
}

var _ secret.ConfidentialStore = (*FileStore)(nil)
