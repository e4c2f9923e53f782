// Package secret implements the symmetric codec that protects credential
// secret fields at rest.
//
// A Codec owns one process-wide master key, generated lazily on first use and
// persisted through a ConfidentialStore. Plaintext is converted into a
// self-describing envelope: a fresh 8-byte salt, a padding-length byte, the
// AES-256-CBC ciphertext under a key/IV derived from the master key and salt,
// and random trailing padding that rounds the envelope up to a multiple of
// the cipher block size. Two encryptions of the same plaintext therefore
// never produce the same envelope, while decryption stays deterministic.
//
// The textual wire form is the binary envelope base64-encoded inside braces:
//
//	{c2FsdHNhbHQH...}
//
// FromText accepts anything: input that is not a well-formed envelope is
// treated as unencrypted base64 plaintext, and input that decodes to nothing
// as an empty payload. Malformed input is never an error.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/awnumar/memguard"
)

const (
	// DefaultKeyName is the ConfidentialStore entry holding the master key.
	DefaultKeyName = "credops.master-key"

	saltLength   = 8
	chunkSize    = aes.BlockSize
	keyLength    = 32
	ivLength     = aes.BlockSize
	masterKeyLen = 32
)

// Codec encrypts and decrypts secret payloads under a process-wide master
// key. The key is generated exactly once, on first use, and held in a
// memguard enclave between operations. A Codec is safe for concurrent use;
// after the key exists, encrypt and decrypt take no locks.
type Codec struct {
	store   ConfidentialStore
	keyName string

	key atomic.Pointer[memguard.Enclave]
	mu  sync.Mutex // guards key generation only
}

// CodecOption adjusts Codec construction.
type CodecOption func(*Codec)

// WithKeyName overrides the ConfidentialStore entry name used for the
// master key.
func WithKeyName(name string) CodecOption {
	return func(c *Codec) { c.keyName = name }
}

// NewCodec creates a codec backed by the given confidential store. The
// master key is not touched until the first encrypt or decrypt.
func NewCodec(store ConfidentialStore, opts ...CodecOption) *Codec {
	c := &Codec{store: store, keyName: DefaultKeyName}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// masterKey returns the master key in an unlocked buffer, generating and
// persisting it on first use. Double-checked: the atomic pointer serves the
// hot path, the mutex serializes the one-time load-or-generate so that only
// a single generation attempt can happen even under concurrent first use.
func (c *Codec) masterKey() (*memguard.LockedBuffer, error) {
	if enclave := c.key.Load(); enclave != nil {
		return enclave.Open()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if enclave := c.key.Load(); enclave != nil {
		return enclave.Open()
	}

	data, err := c.store.Load(c.keyName)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}
	if data == nil {
		data = make([]byte, masterKeyLen)
		if _, err := rand.Read(data); err != nil {
			return nil, fmt.Errorf("failed to generate master key: %w", err)
		}
		if err := c.store.Store(c.keyName, data); err != nil {
			return nil, fmt.Errorf("failed to persist master key: %w", err)
		}
	}

	// NewEnclave wipes data after sealing it.
	enclave := memguard.NewEnclave(data)
	c.key.Store(enclave)
	return enclave.Open()
}

// deriveKeyIV stretches the master key and the first eight bytes of the salt
// into an AES key and IV by iterated digesting: each round hashes the
// previous digest followed by key and salt, and rounds are concatenated
// until the key+IV length is filled.
func deriveKeyIV(master, salt []byte) (key, iv []byte) {
	derived := make([]byte, 0, keyLength+ivLength)
	var prev []byte
	for len(derived) < keyLength+ivLength {
		h := sha256.New()
		h.Write(prev)
		h.Write(master)
		h.Write(salt[:saltLength])
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLength], derived[keyLength : keyLength+ivLength]
}

// encrypt seals plaintext into a fresh binary envelope.
func (c *Codec) encrypt(plaintext []byte) ([]byte, error) {
	master, err := c.masterKey()
	if err != nil {
		return nil, err
	}
	defer master.Destroy()

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, iv := deriveKeyIV(master.Bytes(), salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, chunkSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	// One length byte sits between salt and ciphertext; the trailing random
	// padding rounds the whole envelope up to a chunk boundary.
	padLen := (chunkSize - (saltLength+1+len(ciphertext))%chunkSize) % chunkSize
	padding := make([]byte, padLen)
	if _, err := rand.Read(padding); err != nil {
		return nil, fmt.Errorf("failed to generate padding: %w", err)
	}

	envelope := make([]byte, 0, saltLength+1+len(ciphertext)+padLen)
	envelope = append(envelope, salt...)
	envelope = append(envelope, byte(padLen))
	envelope = append(envelope, ciphertext...)
	envelope = append(envelope, padding...)
	return envelope, nil
}

// decrypt opens a binary envelope. ok reports whether the bytes were really
// an envelope sealed under this codec's key; a cipher or framing failure
// means "not actually encrypted data", not an error. The error return is
// reserved for master key unavailability.
func (c *Codec) decrypt(envelope []byte) (plaintext []byte, ok bool, err error) {
	if len(envelope) < saltLength+1+chunkSize {
		return nil, false, nil
	}
	salt := envelope[:saltLength]
	padLen := int(envelope[saltLength])
	end := len(envelope) - padLen
	if end < saltLength+1+chunkSize {
		return nil, false, nil
	}
	ciphertext := envelope[saltLength+1 : end]
	if len(ciphertext)%chunkSize != 0 {
		return nil, false, nil
	}

	master, err := c.masterKey()
	if err != nil {
		return nil, false, err
	}
	defer master.Destroy()

	key, iv := deriveKeyIV(master.Bytes(), salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plain, padOK := pkcs7Unpad(padded, chunkSize)
	if !padOK {
		return nil, false, nil
	}
	return plain, true, nil
}

// pkcs7Pad appends PKCS#7 padding up to the next blockSize boundary.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs7Unpad strips PKCS#7 padding, reporting whether the padding was valid.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, false
		}
	}
	return data[:len(data)-padLen], true
}
