package secret

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Bytes is an immutable secret payload. It holds only the encrypted envelope
// internally; plaintext is produced on demand by Plain and never cached, so a
// Bytes value can be kept, compared, logged, and persisted without exposing
// the secret.
type Bytes struct {
	codec *Codec
	data  []byte // binary envelope, always the encrypted form
}

// Protect encrypts plaintext into a new Bytes. A nil or empty plaintext is
// valid and round-trips to an empty payload. The error return is reserved
// for master key unavailability.
func (c *Codec) Protect(plaintext []byte) (*Bytes, error) {
	envelope, err := c.encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	return &Bytes{codec: c, data: envelope}, nil
}

// ProtectString is Protect for string payloads.
func (c *Codec) ProtectString(plaintext string) (*Bytes, error) {
	return c.Protect([]byte(plaintext))
}

// FromText reconstructs a Bytes from its textual form. Input never causes an
// error: a {base64} envelope that decrypts is adopted as-is; an envelope
// whose payload does not decrypt is treated as plaintext that merely looked
// encrypted; anything else is treated as base64 plaintext; and input that
// fails to decode at all becomes an empty payload. The error return is
// reserved for master key unavailability.
func (c *Codec) FromText(text string) (*Bytes, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) >= 2 && trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}' {
		inner, err := base64.StdEncoding.DecodeString(trimmed[1 : len(trimmed)-1])
		if err == nil {
			_, ok, derr := c.decrypt(inner)
			if derr != nil {
				return nil, derr
			}
			if ok {
				return &Bytes{codec: c, data: inner}, nil
			}
			// Well-shaped but not sealed under our key: the decoded bytes
			// are the plaintext.
			return c.Protect(inner)
		}
	}

	plain, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		plain = nil
	}
	return c.Protect(plain)
}

// Plain decrypts and returns the payload. The result is a fresh slice on
// every call. The error return is reserved for master key unavailability.
func (b *Bytes) Plain() ([]byte, error) {
	plain, ok, err := b.codec.decrypt(b.data)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The envelope was corrupted after construction; surface the raw
		// bytes rather than failing, mirroring FromText's fallback.
		raw := make([]byte, len(b.data))
		copy(raw, b.data)
		return raw, nil
	}
	out := make([]byte, len(plain))
	copy(out, plain)
	return out, nil
}

// Encrypted returns a copy of the binary envelope.
func (b *Bytes) Encrypted() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Text renders the envelope in its textual wire form, {base64}.
func (b *Bytes) Text() string {
	return "{" + base64.StdEncoding.EncodeToString(b.data) + "}"
}

// String returns the textual wire form. The plaintext is never printed.
func (b *Bytes) String() string {
	return b.Text()
}

// Equal reports whether two Bytes hold the same envelope. Because every
// encryption draws a fresh salt, equality means "same stored value", not
// "same plaintext".
func (b *Bytes) Equal(other *Bytes) bool {
	if b == nil || other == nil {
		return b == other
	}
	return bytes.Equal(b.data, other.data)
}

// SameSecret reports whether two Bytes decrypt to the same plaintext. Unlike
// Equal this survives re-encryption under a fresh salt. A master key failure
// on either side reports false.
func (b *Bytes) SameSecret(other *Bytes) bool {
	if b == nil || other == nil {
		return b == other
	}
	mine, err := b.Plain()
	if err != nil {
		return false
	}
	theirs, err := other.Plain()
	if err != nil {
		return false
	}
	return bytes.Equal(mine, theirs)
}

// MarshalJSON encodes the textual wire form. Bytes has no UnmarshalJSON:
// reconstructing an envelope requires a codec, so persistence layers decode
// the string and call Codec.FromText themselves.
func (b *Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Text())
}

// IsEnvelope reports whether text has the {base64} envelope shape. It does
// not verify that the payload decrypts.
func IsEnvelope(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 3 || trimmed[0] != '{' || trimmed[len(trimmed)-1] != '}' {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(trimmed[1 : len(trimmed)-1])
	return err == nil
}
