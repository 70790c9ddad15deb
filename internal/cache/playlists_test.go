package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soramane/tidecast/internal/api"
	"github.com/soramane/tidecast/internal/domain/entity"
)

func playlistItemsHandler(tracks []map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := make([]map[string]any, len(tracks))
		for i, tr := range tracks {
			items[i] = map[string]any{"type": "track", "item": tr}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items":              items,
			"totalNumberOfItems": len(items),
		})
	}
}

func TestPlaylists_ReconcileFetchesWhenStale(t *testing.T) {
	b := newTestBackend(t, playlistItemsHandler([]map[string]any{
		{"id": "t1", "title": "One"},
		{"id": "t2", "title": "Two"},
	}))
	p := NewPlaylists(NewFileStore(t.TempDir()), api.NewPager(b.d))

	pl := &entity.Playlist{ID: "p1", Title: "Mix", LastUpdated: "2025-05-01T10:00:00Z", NumberOfTracks: 2}
	p.Reconcile(context.Background(), pl)

	entry, ok := p.Entry("p1")
	require.True(t, ok)
	assert.Equal(t, []string{"t1", "t2"}, entry.TrackIDs)
	assert.Equal(t, "2025-05-01T10:00:00Z", entry.LastUpdated)
	assert.Equal(t, 1, b.calls)
}

func TestPlaylists_ReconcileIdempotentWhenFresh(t *testing.T) {
	b := newTestBackend(t, playlistItemsHandler([]map[string]any{{"id": "t1"}}))
	p := NewPlaylists(NewFileStore(t.TempDir()), api.NewPager(b.d))

	pl := &entity.Playlist{ID: "p1", LastUpdated: "2025-05-01T10:00:00Z", NumberOfTracks: 1}
	p.Reconcile(context.Background(), pl)
	require.Equal(t, 1, b.calls)

	// Same timestamp: the mirror is current, no network traffic.
	p.Reconcile(context.Background(), pl)
	p.Reconcile(context.Background(), pl)
	assert.Equal(t, 1, b.calls)

	// Bumped timestamp: the entry is rewritten.
	pl.LastUpdated = "2025-05-02T08:00:00Z"
	p.Reconcile(context.Background(), pl)
	assert.Equal(t, 2, b.calls)

	entry, _ := p.Entry("p1")
	assert.Equal(t, "2025-05-02T08:00:00Z", entry.LastUpdated)
}

func TestPlaylists_ReconcileAlbumPlaylist(t *testing.T) {
	b := newTestBackend(t, playlistItemsHandler([]map[string]any{
		{"id": "t1", "album": map[string]any{"id": "a1"}},
		{"id": "t2", "album": map[string]any{"id": "a1"}},
		{"id": "t3", "album": map[string]any{"id": "a2"}},
	}))
	p := NewPlaylists(NewFileStore(t.TempDir()), api.NewPager(b.d))

	pl := &entity.Playlist{
		ID:             "p1",
		Description:    "curated " + entity.AlbumPlaylistMarker,
		LastUpdated:    "2025-05-01T10:00:00Z",
		NumberOfTracks: 3,
	}
	p.Reconcile(context.Background(), pl)

	entry, ok := p.Entry("p1")
	require.True(t, ok)
	assert.Equal(t, []string{"t1", "t2", "t3"}, entry.TrackIDs)
	// Album IDs deduplicated in first-seen order.
	assert.Equal(t, []string{"a1", "a2"}, entry.AlbumIDs)
}

func TestPlaylists_ReconcileKeepsStaleEntryOnFetchError(t *testing.T) {
	failing := false
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"userMessage":"boom"}`))
			return
		}
		playlistItemsHandler([]map[string]any{{"id": "t1"}})(w, r)
	})
	p := NewPlaylists(NewFileStore(t.TempDir()), api.NewPager(b.d))

	pl := &entity.Playlist{ID: "p1", LastUpdated: "v1", NumberOfTracks: 1}
	p.Reconcile(context.Background(), pl)

	failing = true
	pl.LastUpdated = "v2"
	p.Reconcile(context.Background(), pl)

	// The old mirror survives; a stale entry beats a lost one.
	entry, ok := p.Entry("p1")
	require.True(t, ok)
	assert.Equal(t, "v1", entry.LastUpdated)
	assert.Equal(t, []string{"t1"}, entry.TrackIDs)
}

func TestPlaylists_PersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := newTestBackend(t, playlistItemsHandler([]map[string]any{{"id": "t1"}, {"id": "t2"}}))

	p := NewPlaylists(NewFileStore(dir), api.NewPager(b.d))
	p.Reconcile(context.Background(), &entity.Playlist{ID: "p1", Title: "Mix", LastUpdated: "v1", NumberOfTracks: 2})

	// A fresh instance over the same directory sees the identical entry.
	reloaded := NewPlaylists(NewFileStore(dir), api.NewPager(b.d))
	entry, ok := reloaded.Entry("p1")
	require.True(t, ok)
	assert.Equal(t, "Mix", entry.Title)
	assert.Equal(t, []string{"t1", "t2"}, entry.TrackIDs)
	assert.Equal(t, "v1", entry.LastUpdated)
}

func TestPlaylists_ContainingItem(t *testing.T) {
	b := newTestBackend(t, playlistItemsHandler([]map[string]any{{"id": "t1", "album": map[string]any{"id": "a1"}}}))
	p := NewPlaylists(NewFileStore(t.TempDir()), api.NewPager(b.d))

	p.Reconcile(context.Background(), &entity.Playlist{
		ID: "p1", Description: entity.AlbumPlaylistMarker, LastUpdated: "v1", NumberOfTracks: 1,
	})

	assert.Equal(t, []string{"p1"}, p.ContainingItem("t1"))
	assert.Equal(t, []string{"p1"}, p.ContainingItem("a1"))
	assert.Empty(t, p.ContainingItem("t404"))
}

func TestPlaylists_Prune(t *testing.T) {
	b := newTestBackend(t, playlistItemsHandler([]map[string]any{{"id": "t1"}}))
	p := NewPlaylists(NewFileStore(t.TempDir()), api.NewPager(b.d))

	p.Reconcile(context.Background(), &entity.Playlist{ID: "p1", LastUpdated: "v1", NumberOfTracks: 1})
	p.Reconcile(context.Background(), &entity.Playlist{ID: "p2", LastUpdated: "v1", NumberOfTracks: 1})

	p.Prune([]string{"p2"})

	_, ok := p.Entry("p1")
	assert.False(t, ok)
	_, ok = p.Entry("p2")
	assert.True(t, ok)
}
