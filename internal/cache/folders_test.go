package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolders_ObserveAndLookup(t *testing.T) {
	f := NewFolders(NewFileStore(t.TempDir()))

	f.Observe("p1", "f1", "Jazz")
	ref, ok := f.Lookup("p1")
	require.True(t, ok)
	assert.Equal(t, FolderRef{ID: "f1", Name: "Jazz"}, ref)

	// Later sightings overwrite the membership.
	f.Observe("p1", "f2", "Blues")
	ref, _ = f.Lookup("p1")
	assert.Equal(t, "f2", ref.ID)
}

func TestFolders_EmptyFolderClearsEntry(t *testing.T) {
	f := NewFolders(NewFileStore(t.TempDir()))

	f.Observe("p1", "f1", "Jazz")
	// Seen at root afterwards: the playlist was moved out of the folder.
	f.Observe("p1", "", "")

	_, ok := f.Lookup("p1")
	assert.False(t, ok)
}

func TestFolders_Persistence(t *testing.T) {
	dir := t.TempDir()
	f := NewFolders(NewFileStore(dir))
	f.Observe("p1", "f1", "Jazz")

	reloaded := NewFolders(NewFileStore(dir))
	ref, ok := reloaded.Lookup("p1")
	require.True(t, ok)
	assert.Equal(t, "Jazz", ref.Name)
}

func TestFolders_Prune(t *testing.T) {
	f := NewFolders(NewFileStore(t.TempDir()))
	f.Observe("p1", "f1", "Jazz")
	f.Observe("p2", "f1", "Jazz")

	f.Prune([]string{"p1"})

	_, ok := f.Lookup("p1")
	assert.True(t, ok)
	_, ok = f.Lookup("p2")
	assert.False(t, ok)
}
