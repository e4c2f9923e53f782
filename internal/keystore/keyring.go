// Package keystore provides the confidential-store backends used to persist
// the codec master key: the OS keyring where one is available, and a
// restricted file under the data directory otherwise.
package keystore

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/systmms/credops/pkg/secret"
)

// DefaultService is the keyring service name entries are filed under.
const DefaultService = "credops"

// KeyringStore stores payloads in the operating system keyring (Keychain on
// macOS, Secret Service on Linux, Credential Manager on Windows). Payloads
// are base64-encoded because keyrings store strings.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keyring-backed confidential store. An empty
// service name falls back to DefaultService.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultService
	}
	return &KeyringStore{service: service}
}

// Load retrieves and decodes the payload stored under name, or (nil, nil)
// when the keyring has no such entry.
func (k *KeyringStore) Load(name string) ([]byte, error) {
	encoded, err := keyring.Get(k.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %q from keyring: %w", name, err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("keyring entry %q is not valid base64: %w", name, err)
	}
	return data, nil
}

// Store encodes and writes the payload under name.
func (k *KeyringStore) Store(name string, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	if err := keyring.Set(k.service, name, encoded); err != nil {
		return fmt.Errorf("failed to write %q to keyring: %w", name, err)
	}
	return nil
}

var _ secret.ConfidentialStore = (*KeyringStore)(nil)
