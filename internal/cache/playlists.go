package cache

import (
	"context"
	"fmt"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/soramane/tidecast/internal/api"
	"github.com/soramane/tidecast/internal/domain/entity"
)

const playlistsFile = "playlists-cache.json"

// PlaylistEntry is the cached mirror of one playlist's contents.
type PlaylistEntry struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	LastUpdated string   `json:"lastUpdated"`
	TrackIDs    []string `json:"trackIds"`
	AlbumIDs    []string `json:"albumIds,omitempty"`
}

// Playlists mirrors playlist contents keyed by playlist ID. The remote
// lastUpdated timestamp is the sole staleness oracle: an entry is rewritten
// exactly when the timestamp of a freshly seen playlist object differs.
type Playlists struct {
	mu    sync.Mutex
	store *FileStore
	pager *api.Pager

	loaded  bool
	dirty   bool
	entries map[string]PlaylistEntry
}

// NewPlaylists creates the playlist contents cache.
func NewPlaylists(store *FileStore, pager *api.Pager) *Playlists {
	return &Playlists{
		store:   store,
		pager:   pager,
		entries: make(map[string]PlaylistEntry),
	}
}

// Reconcile compares a freshly fetched playlist object against the cached
// entry and refreshes the entry's item lists when the lastUpdated timestamps
// differ. Fetch failures are swallowed: a stale mirror is a cache miss, and
// reconciliation must never block a read-only render.
func (p *Playlists) Reconcile(ctx context.Context, pl *entity.Playlist) {
	if pl == nil || pl.ID == "" {
		return
	}

	p.mu.Lock()
	p.ensureLoadedLocked()
	cached, ok := p.entries[pl.ID]
	p.mu.Unlock()

	if ok && cached.LastUpdated == pl.LastUpdated {
		return
	}

	total := pl.NumberOfTracks + pl.NumberOfVideos
	if total <= 0 {
		total = api.MaxPageSize
	}
	items, err := p.pager.FetchPaged(ctx, fmt.Sprintf("playlists/%s/items", pl.ID), nil, 0, total)
	if err != nil {
		zlog.Warn().Err(err).Str("playlist", pl.ID).Msg("playlist reconciliation failed, keeping stale entry")
		return
	}

	entry := PlaylistEntry{
		ID:          pl.ID,
		Title:       pl.Title,
		Description: pl.Description,
		LastUpdated: pl.LastUpdated,
	}
	albumPlaylist := pl.IsAlbumPlaylist()
	seenAlbums := make(map[string]bool)
	for _, it := range items {
		var tr entity.Track
		if err := it.Decode(&tr); err != nil || tr.ID == "" {
			continue
		}
		entry.TrackIDs = append(entry.TrackIDs, tr.ID)
		if albumPlaylist && tr.Album != nil && tr.Album.ID != "" && !seenAlbums[tr.Album.ID] {
			seenAlbums[tr.Album.ID] = true
			entry.AlbumIDs = append(entry.AlbumIDs, tr.Album.ID)
		}
	}

	p.mu.Lock()
	p.entries[pl.ID] = entry
	p.dirty = true
	p.flushLocked()
	p.mu.Unlock()
}

// Entry returns the cached mirror of one playlist.
func (p *Playlists) Entry(id string) (PlaylistEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensureLoadedLocked()
	e, ok := p.entries[id]
	return e, ok
}

// ContainingItem returns the IDs of cached playlists holding the given
// track, video or album.
func (p *Playlists) ContainingItem(itemID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensureLoadedLocked()

	var out []string
	for id, e := range p.entries {
		if containsID(e.TrackIDs, itemID) || containsID(e.AlbumIDs, itemID) {
			out = append(out, id)
		}
	}
	return out
}

// Prune drops cached entries whose playlists no longer exist in the
// authoritative listing. This is the only way deletions reach the mirror;
// there is no server-side deleted event.
func (p *Playlists) Prune(authoritative []string) {
	valid := make(map[string]bool, len(authoritative))
	for _, id := range authoritative {
		valid[id] = true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensureLoadedLocked()

	for id := range p.entries {
		if !valid[id] {
			delete(p.entries, id)
			p.dirty = true
		}
	}
	p.flushLocked()
}

func (p *Playlists) ensureLoadedLocked() {
	if p.loaded {
		return
	}
	var persisted map[string]PlaylistEntry
	ok, err := p.store.Load(playlistsFile, &persisted)
	if err != nil {
		zlog.Warn().Err(err).Msg("playlists cache unreadable, starting empty")
	} else if ok {
		p.entries = persisted
	}
	p.loaded = true
}

func (p *Playlists) flushLocked() {
	if !p.dirty {
		return
	}
	if err := p.store.Save(playlistsFile, p.entries); err != nil {
		zlog.Warn().Err(err).Msg("failed to persist playlists cache")
		return
	}
	p.dirty = false
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
