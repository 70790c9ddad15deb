package cache

import (
	"sync"

	zlog "github.com/rs/zerolog/log"
)

const foldersFile = "folders-cache.json"

// FolderRef identifies the folder a playlist lives in.
type FolderRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Folders mirrors playlist-to-folder membership. Membership is updated
// opportunistically from any parsed object that mentions it, not just the
// folder-listing endpoint.
type Folders struct {
	mu    sync.Mutex
	store *FileStore

	loaded  bool
	dirty   bool
	entries map[string]FolderRef
}

// NewFolders creates the folder membership cache.
func NewFolders(store *FileStore) *Folders {
	return &Folders{entries: make(map[string]FolderRef), store: store}
}

// Observe records the folder membership seen on a playlist object. An empty
// folder ID means the playlist sits at the root and clears any stale entry.
func (f *Folders) Observe(playlistID, folderID, folderName string) {
	if playlistID == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureLoadedLocked()

	if folderID == "" {
		if _, ok := f.entries[playlistID]; ok {
			delete(f.entries, playlistID)
			f.dirty = true
			f.flushLocked()
		}
		return
	}

	next := FolderRef{ID: folderID, Name: folderName}
	if cur, ok := f.entries[playlistID]; !ok || cur != next {
		f.entries[playlistID] = next
		f.dirty = true
		f.flushLocked()
	}
}

// Lookup returns the cached folder membership of a playlist.
func (f *Folders) Lookup(playlistID string) (FolderRef, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureLoadedLocked()
	ref, ok := f.entries[playlistID]
	return ref, ok
}

// Prune drops membership entries for playlists absent from the
// authoritative listing.
func (f *Folders) Prune(authoritative []string) {
	valid := make(map[string]bool, len(authoritative))
	for _, id := range authoritative {
		valid[id] = true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureLoadedLocked()

	for id := range f.entries {
		if !valid[id] {
			delete(f.entries, id)
			f.dirty = true
		}
	}
	f.flushLocked()
}

func (f *Folders) ensureLoadedLocked() {
	if f.loaded {
		return
	}
	var persisted map[string]FolderRef
	ok, err := f.store.Load(foldersFile, &persisted)
	if err != nil {
		zlog.Warn().Err(err).Msg("folders cache unreadable, starting empty")
	} else if ok {
		f.entries = persisted
	}
	f.loaded = true
}

func (f *Folders) flushLocked() {
	if !f.dirty {
		return
	}
	if err := f.store.Save(foldersFile, f.entries); err != nil {
		zlog.Warn().Err(err).Msg("failed to persist folders cache")
		return
	}
	f.dirty = false
}
