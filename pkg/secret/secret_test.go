package secret

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps MemoryStore and counts Store calls so tests can assert
// how many key generations happened.
type countingStore struct {
	*MemoryStore
	stores atomic.Int64
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: NewMemoryStore()}
}

func (s *countingStore) Store(name string, data []byte) error {
	s.stores.Add(1)
	return s.MemoryStore.Store(name, data)
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()
	codec := NewCodec(NewMemoryStore())

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"nil", nil},
		{"short_text", []byte("hunter2")},
		{"exact_block", bytes.Repeat([]byte{0xAB}, 16)},
		{"binary", []byte{0x00, 0xFF, 0x80, 0x7F, 0x0A}},
		{"large", bytes.Repeat([]byte("secret material "), 512)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			protected, err := codec.Protect(tt.plaintext)
			require.NoError(t, err)

			plain, err := protected.Plain()
			require.NoError(t, err)
			if len(tt.plaintext) == 0 {
				assert.Empty(t, plain)
			} else {
				assert.Equal(t, tt.plaintext, plain)
			}
		})
	}
}

func TestCodec_CiphertextIsFresh(t *testing.T) {
	t.Parallel()
	codec := NewCodec(NewMemoryStore())

	first, err := codec.Protect([]byte("same plaintext"))
	require.NoError(t, err)
	second, err := codec.Protect([]byte("same plaintext"))
	require.NoError(t, err)

	assert.False(t, first.Equal(second), "two encryptions of the same plaintext must differ")
	assert.NotEqual(t, first.Text(), second.Text())

	p1, err := first.Plain()
	require.NoError(t, err)
	p2, err := second.Plain()
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestCodec_EnvelopeShape(t *testing.T) {
	t.Parallel()
	codec := NewCodec(NewMemoryStore())

	protected, err := codec.Protect([]byte("payload"))
	require.NoError(t, err)

	envelope := protected.Encrypted()
	assert.Zero(t, len(envelope)%chunkSize, "envelope length must be a multiple of the chunk size")
	assert.GreaterOrEqual(t, len(envelope), saltLength+1+chunkSize)

	padLen := int(envelope[saltLength])
	assert.Less(t, padLen, chunkSize)

	text := protected.Text()
	assert.True(t, IsEnvelope(text))
}

func TestCodec_SingleKeyGeneration(t *testing.T) {
	t.Parallel()
	store := newCountingStore()
	codec := NewCodec(store)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := codec.Protect([]byte("concurrent first use"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), store.stores.Load(), "concurrent first use must generate the key exactly once")
}

func TestCodec_SharedStoreDecrypts(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()

	first := NewCodec(store)
	protected, err := first.Protect([]byte("portable secret"))
	require.NoError(t, err)

	// A second codec over the same confidential store loads the same master
	// key and must decrypt the first codec's envelopes.
	second := NewCodec(store)
	reread, err := second.FromText(protected.Text())
	require.NoError(t, err)

	plain, err := reread.Plain()
	require.NoError(t, err)
	assert.Equal(t, []byte("portable secret"), plain)
}

func TestCodec_DistinctKeysDoNotDecrypt(t *testing.T) {
	t.Parallel()

	first := NewCodec(NewMemoryStore())
	second := NewCodec(NewMemoryStore())

	protected, err := first.Protect([]byte("sealed elsewhere"))
	require.NoError(t, err)

	// Under a different master key the envelope does not decrypt; FromText
	// falls back instead of failing, and the original plaintext is not
	// recoverable.
	adopted, err := second.FromText(protected.Text())
	require.NoError(t, err)
	plain, err := adopted.Plain()
	require.NoError(t, err)
	assert.NotEqual(t, []byte("sealed elsewhere"), plain)
}

func TestDeriveKeyIV(t *testing.T) {
	t.Parallel()

	master := []byte("master key material")
	salt := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	key1, iv1 := deriveKeyIV(master, salt)
	key2, iv2 := deriveKeyIV(master, salt)
	assert.Equal(t, key1, key2, "derivation must be deterministic")
	assert.Equal(t, iv1, iv2)
	assert.Len(t, key1, keyLength)
	assert.Len(t, iv1, ivLength)

	otherSalt := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	key3, _ := deriveKeyIV(master, otherSalt)
	assert.NotEqual(t, key1, key3, "different salts must derive different keys")
}

func TestPKCS7(t *testing.T) {
	t.Parallel()

	t.Run("pads_to_block_boundary", func(t *testing.T) {
		t.Parallel()
		for length := 0; length <= 33; length++ {
			data := bytes.Repeat([]byte{0x42}, length)
			padded := pkcs7Pad(data, 16)
			assert.Zero(t, len(padded)%16)
			assert.Greater(t, len(padded), length, "padding always adds at least one byte")

			unpadded, ok := pkcs7Unpad(padded, 16)
			require.True(t, ok, "length %d", length)
			assert.Equal(t, data, append([]byte{}, unpadded...))
		}
	})

	t.Run("rejects_invalid_padding", func(t *testing.T) {
		t.Parallel()
		_, ok := pkcs7Unpad([]byte{}, 16)
		assert.False(t, ok)

		_, ok = pkcs7Unpad(bytes.Repeat([]byte{0x00}, 16), 16)
		assert.False(t, ok, "zero padding byte is invalid")

		_, ok = pkcs7Unpad(bytes.Repeat([]byte{0x11}, 16), 16)
		assert.False(t, ok, "padding byte larger than block is invalid")

		bad := pkcs7Pad([]byte("data"), 16)
		bad[len(bad)-2] ^= 0xFF
		_, ok = pkcs7Unpad(bad, 16)
		assert.False(t, ok, "inconsistent padding bytes are invalid")
	})
}
