package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested"))

	var out map[string]int
	ok, err := store.Load("missing.json", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save("counts.json", map[string]int{"a": 1}))

	ok, err = store.Load("counts.json", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"a": 1}, out)
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{truncated"), 0644))

	var out map[string]int
	_, err := store.Load("bad.json", &out)
	assert.Error(t, err)
}

func TestFileStore_SaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, store.Save("x.json", []string{"a"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x.json", entries[0].Name())
}
