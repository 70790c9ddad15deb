// Package entity provides the catalog domain entities.
package entity

import (
	"strings"
	"time"
)

// ContentType identifies a favoritable content category.
type ContentType string

const (
	ContentArtists   ContentType = "artists"
	ContentAlbums    ContentType = "albums"
	ContentPlaylists ContentType = "playlists"
	ContentTracks    ContentType = "tracks"
	ContentVideos    ContentType = "videos"
	ContentMixes     ContentType = "mixes"
)

// ContentTypes lists every favoritable content category.
var ContentTypes = []ContentType{
	ContentArtists, ContentAlbums, ContentPlaylists,
	ContentTracks, ContentVideos, ContentMixes,
}

// PageInfo carries the position metadata attached to every listed item so a
// consumer can synthesize a "next page" affordance without redoing page math.
type PageInfo struct {
	ItemPosition       int `json:"_itemPosition"`
	Offset             int `json:"_offset"`
	TotalNumberOfItems int `json:"_totalNumberOfItems"`
}

// Artist represents a catalog artist.
type Artist struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Picture string   `json:"picture"`
	Roles   []string `json:"artistRoles"`

	Page PageInfo `json:"-"`
}

// Album represents a catalog album.
type Album struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Version        string    `json:"version"`
	Artist         *Artist   `json:"artist"`
	Artists        []Artist  `json:"artists"`
	Cover          string    `json:"cover"`
	ReleaseDate    string    `json:"releaseDate"`
	Duration       int       `json:"duration"`
	NumberOfTracks int       `json:"numberOfTracks"`
	NumberOfVideos int       `json:"numberOfVideos"`
	Explicit       bool      `json:"explicit"`
	AudioQuality   string    `json:"audioQuality"`
	StreamReady    bool      `json:"streamReady"`
	DateAdded      time.Time `json:"-"`

	Page PageInfo `json:"-"`
}

// Track represents a playable audio track.
type Track struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Version      string   `json:"version"`
	Artist       *Artist  `json:"artist"`
	Artists      []Artist `json:"artists"`
	Album        *Album   `json:"album"`
	Duration     int      `json:"duration"`
	TrackNumber  int      `json:"trackNumber"`
	VolumeNumber int      `json:"volumeNumber"`
	Explicit     bool     `json:"explicit"`
	AudioQuality string   `json:"audioQuality"`
	StreamReady  bool     `json:"streamReady"`
	Editable     bool     `json:"editable"`
	Popularity   int      `json:"popularity"`
	ISRC         string   `json:"isrc"`

	Page PageInfo `json:"-"`
}

// Video represents a playable music video.
type Video struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Artist       *Artist  `json:"artist"`
	Artists      []Artist `json:"artists"`
	Album        *Album   `json:"album"`
	Duration     int      `json:"duration"`
	TrackNumber  int      `json:"trackNumber"`
	Explicit     bool     `json:"explicit"`
	Quality      string   `json:"quality"`
	StreamReady  bool     `json:"streamReady"`
	ImageID      string   `json:"imageId"`
	ReleaseDate  string   `json:"releaseDate"`
	VolumeNumber int      `json:"volumeNumber"`

	Page PageInfo `json:"-"`
}

// AlbumPlaylistMarker tags a playlist whose items mirror a list of albums.
// The marker lives in the playlist description because the API has no
// first-class "album list" concept.
const AlbumPlaylistMarker = "#albumlist#"

// Playlist represents a user or editorial playlist.
type Playlist struct {
	ID             string    `json:"uuid"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Creator        *Creator  `json:"creator"`
	Type           string    `json:"type"`
	Public         bool      `json:"publicPlaylist"`
	Created        time.Time `json:"-"`
	LastUpdated    string    `json:"lastUpdated"`
	NumberOfTracks int       `json:"numberOfTracks"`
	NumberOfVideos int       `json:"numberOfVideos"`
	Duration       int       `json:"duration"`
	Image          string    `json:"image"`
	SquareImage    string    `json:"squareImage"`

	// Folder membership, populated from v2 listings and promotion objects.
	ParentFolderID   string `json:"-"`
	ParentFolderName string `json:"-"`

	Page PageInfo `json:"-"`
}

// Creator identifies the owner of a playlist.
type Creator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsUserPlaylist reports whether the playlist belongs to the given user.
func (p *Playlist) IsUserPlaylist(userID string) bool {
	return p.Creator != nil && p.Creator.ID == userID
}

// IsAlbumPlaylist reports whether the playlist carries the album-list marker
// in its description.
func (p *Playlist) IsAlbumPlaylist() bool {
	return strings.Contains(p.Description, AlbumPlaylistMarker)
}

// Mix represents a generated station/mix.
type Mix struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SubTitle string `json:"subTitle"`
	MixType  string `json:"mixType"`

	Page PageInfo `json:"-"`
}

// Folder represents a playlist folder from the v2 API.
type Folder struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	TotalItems     int    `json:"totalNumberOfItems"`
	CreatedAt      string `json:"createdAt"`
	LastModifiedAt string `json:"lastModifiedAt"`

	Page PageInfo `json:"-"`
}

// Promotion represents a featured/promoted item on an editorial page.
type Promotion struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	ArtifactID  string `json:"artifactId"`
	Header      string `json:"header"`
	ShortHeader string `json:"shortHeader"`
	Text        string `json:"text"`
	ImageURL    string `json:"imageURL"`

	Page PageInfo `json:"-"`
}

// Category represents an editorial browse category (genres, moods, ...).
type Category struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	HasAlbums    bool   `json:"hasAlbums"`
	HasArtists   bool   `json:"hasArtists"`
	HasPlaylists bool   `json:"hasPlaylists"`
	HasTracks    bool   `json:"hasTracks"`
	HasVideos    bool   `json:"hasVideos"`

	Page PageInfo `json:"-"`
}

// ArtistNames joins the artist display names for a track-like credit line.
func ArtistNames(artists []Artist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
