package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaylist_IsAlbumPlaylist(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        bool
	}{
		{"marker present", "my albums " + AlbumPlaylistMarker, true},
		{"marker embedded", AlbumPlaylistMarker + " trailing text", true},
		{"no marker", "just a playlist", false},
		{"empty description", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := &Playlist{Description: tt.description}
			assert.Equal(t, tt.want, pl.IsAlbumPlaylist())
		})
	}
}

func TestPlaylist_IsUserPlaylist(t *testing.T) {
	pl := &Playlist{Creator: &Creator{ID: "42"}}
	assert.True(t, pl.IsUserPlaylist("42"))
	assert.False(t, pl.IsUserPlaylist("7"))
	assert.False(t, (&Playlist{}).IsUserPlaylist("42"))
}

func TestArtistNames(t *testing.T) {
	assert.Equal(t, "", ArtistNames(nil))
	assert.Equal(t, "A", ArtistNames([]Artist{{Name: "A"}}))
	assert.Equal(t, "A, B", ArtistNames([]Artist{{Name: "A"}, {Name: "B"}}))
}
