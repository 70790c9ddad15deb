package cache

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/soramane/tidecast/internal/api"
	"github.com/soramane/tidecast/internal/domain/entity"
)

const favoritesFile = "favorites-ids.json"

// idsResponseKeys maps the bulk-ids endpoint's bucket names onto content types.
var idsResponseKeys = map[string]entity.ContentType{
	"ARTIST":   entity.ContentArtists,
	"ALBUM":    entity.ContentAlbums,
	"PLAYLIST": entity.ContentPlaylists,
	"TRACK":    entity.ContentTracks,
	"VIDEO":    entity.ContentVideos,
	"MIX":      entity.ContentMixes,
}

// Favorites mirrors the per-content-type favorite ID sets. It answers
// "is X a favorite" without a server round trip and is reconciled wholesale
// from the bulk ids endpoint.
type Favorites struct {
	mu     sync.Mutex
	store  *FileStore
	d      *api.Dispatcher
	userID func() string

	loaded bool
	dirty  bool
	sets   map[entity.ContentType]map[string]bool
}

// NewFavorites creates the favorites cache. userID resolves the current
// user lazily because it is only known after login.
func NewFavorites(store *FileStore, d *api.Dispatcher, userID func() string) *Favorites {
	return &Favorites{
		store:  store,
		d:      d,
		userID: userID,
		sets:   make(map[entity.ContentType]map[string]bool),
	}
}

// LoadAll loads the favorite ID buckets. Without force the state already in
// memory is authoritative for the process lifetime; with force every bucket
// is replaced wholesale from the server.
func (f *Favorites) LoadAll(ctx context.Context, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loaded && !force {
		return nil
	}
	if !force {
		if ok := f.loadDiskLocked(); ok {
			f.loaded = true
			return nil
		}
	}

	resp, err := f.d.Request(ctx, "GET", fmt.Sprintf("users/%s/favorites/ids", f.userID()), api.RequestOptions{})
	if err != nil {
		return errors.Wrap(err, "failed to fetch favorite ids")
	}

	var payload map[string][]string
	if err := resp.Decode(&payload); err != nil {
		return err
	}

	f.sets = make(map[entity.ContentType]map[string]bool)
	for key, ids := range payload {
		ct, ok := idsResponseKeys[key]
		if !ok {
			continue
		}
		bucket := make(map[string]bool, len(ids))
		for _, id := range ids {
			bucket[id] = true
		}
		f.sets[ct] = bucket
	}
	f.loaded = true
	f.dirty = true
	f.flushLocked()
	return nil
}

// Contains reports whether the id is a cached favorite. Never touches the
// network; an unloaded cache simply answers false.
func (f *Favorites) Contains(ct entity.ContentType, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureLoadedLocked()
	return f.sets[ct][id]
}

// IDs returns the cached ids of one content type, sorted for stable output.
func (f *Favorites) IDs(ct entity.ContentType) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureLoadedLocked()
	ids := make([]string, 0, len(f.sets[ct]))
	for id := range f.sets[ct] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Add adds a favorite on the server, then mirrors it locally.
func (f *Favorites) Add(ctx context.Context, ct entity.ContentType, id string) error {
	data := url.Values{formKey(ct): {id}}
	_, err := f.d.Request(ctx, "POST", fmt.Sprintf("users/%s/favorites/%s", f.userID(), ct), api.RequestOptions{Data: data})
	if err != nil {
		return errors.Wrapf(err, "failed to add favorite %s/%s", ct, id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sets[ct] == nil {
		f.sets[ct] = make(map[string]bool)
	}
	if !f.sets[ct][id] {
		f.sets[ct][id] = true
		f.dirty = true
		f.flushLocked()
	}
	return nil
}

// Remove removes a favorite on the server, then mirrors it locally.
func (f *Favorites) Remove(ctx context.Context, ct entity.ContentType, id string) error {
	_, err := f.d.Request(ctx, "DELETE", fmt.Sprintf("users/%s/favorites/%s/%s", f.userID(), ct, id), api.RequestOptions{})
	if err != nil {
		return errors.Wrapf(err, "failed to remove favorite %s/%s", ct, id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sets[ct][id] {
		delete(f.sets[ct], id)
		f.dirty = true
		f.flushLocked()
	}
	return nil
}

// Reset replaces one bucket from the full objects a listing actually
// returned, self-healing the mirror against partial staleness.
func (f *Favorites) Reset(ct entity.ContentType, ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := make(map[string]bool, len(ids))
	for _, id := range ids {
		bucket[id] = true
	}
	if !sameSet(f.sets[ct], bucket) {
		f.sets[ct] = bucket
		f.dirty = true
		f.flushLocked()
	}
}

// ensureLoadedLocked restores the buckets from disk on first read access.
func (f *Favorites) ensureLoadedLocked() {
	if f.loaded {
		return
	}
	if f.loadDiskLocked() {
		f.loaded = true
	}
}

// loadDiskLocked restores the buckets from the flat file, if present.
func (f *Favorites) loadDiskLocked() bool {
	var persisted map[entity.ContentType][]string
	ok, err := f.store.Load(favoritesFile, &persisted)
	if err != nil {
		zlog.Warn().Err(err).Msg("favorites cache unreadable, treating as empty")
		return false
	}
	if !ok {
		return false
	}
	f.sets = make(map[entity.ContentType]map[string]bool, len(persisted))
	for ct, ids := range persisted {
		bucket := make(map[string]bool, len(ids))
		for _, id := range ids {
			bucket[id] = true
		}
		f.sets[ct] = bucket
	}
	return true
}

// flushLocked writes the buckets when dirty. Reads never reach here.
func (f *Favorites) flushLocked() {
	if !f.dirty {
		return
	}
	persisted := make(map[entity.ContentType][]string, len(f.sets))
	for ct, bucket := range f.sets {
		ids := make([]string, 0, len(bucket))
		for id := range bucket {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		persisted[ct] = ids
	}
	if err := f.store.Save(favoritesFile, persisted); err != nil {
		zlog.Warn().Err(err).Msg("failed to persist favorites cache")
		return
	}
	f.dirty = false
}

// formKey returns the form field the add endpoint expects per content type.
func formKey(ct entity.ContentType) string {
	switch ct {
	case entity.ContentArtists:
		return "artistIds"
	case entity.ContentAlbums:
		return "albumIds"
	case entity.ContentPlaylists:
		return "uuids"
	case entity.ContentTracks:
		return "trackIds"
	case entity.ContentVideos:
		return "videoIds"
	case entity.ContentMixes:
		return "mixIds"
	default:
		return "ids"
	}
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}
