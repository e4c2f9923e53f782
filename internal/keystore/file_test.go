package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LoadMissingReturnsNil(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())

	data, err := store.Load("absent")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "keys"))
	payload := []byte{0x00, 0x01, 0xfe, 0xff, 0x42}

	require.NoError(t, store.Store("master", payload))

	got, err := store.Load("master")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFileStore_Permissions(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "keys")
	store := NewFileStore(dir)
	require.NoError(t, store.Store("master", []byte("sensitive")))

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	fileInfo, err := os.Stat(filepath.Join(dir, "master.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fileInfo.Mode().Perm())
}

func TestFileStore_Overwrite(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Store("master", []byte("first")))
	require.NoError(t, store.Store("master", []byte("second")))

	got, err := store.Load("master")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestFileStore_HostileNameStaysInDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, store.Store("../../escape", []byte("contained")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "escape.key", entries[0].Name())
}
