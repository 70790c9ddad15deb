// Package session composes auth, dispatch, caching and manifest resolution
// into the operations the UI layer consumes.
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/soramane/tidecast/internal/api"
	"github.com/soramane/tidecast/internal/auth"
	"github.com/soramane/tidecast/internal/cache"
	"github.com/soramane/tidecast/internal/domain/entity"
	"github.com/soramane/tidecast/internal/infra/config"
	"github.com/soramane/tidecast/internal/manifest"
)

// MediaItem is one playlist or album entry: a track or a video.
type MediaItem struct {
	Type  string
	Track *entity.Track
	Video *entity.Video
}

// Session is the explicit context object threaded through every operation.
// There is no package-level session state.
type Session struct {
	cfg    *config.Config
	flow   *auth.Flow
	tokens auth.TokenStore

	dispatcher *api.Dispatcher
	pager      *api.Pager
	resolver   *manifest.Resolver

	favorites *cache.Favorites
	playlists *cache.Playlists
	folders   *cache.Folders
}

// New creates a session, restoring any persisted token.
func New(cfg *config.Config) (*Session, error) {
	tokens := auth.NewFileTokenStore(filepath.Join(cfg.Cache.Dir, "token.json"))
	flow := auth.NewFlow(auth.Config{
		AuthURL:      cfg.API.AuthURL,
		ClientID:     cfg.API.ClientID,
		ClientSecret: cfg.API.ClientSecret,
	}, tokens)

	tok, err := tokens.Load()
	if err != nil {
		zlog.Warn().Err(err).Msg("stored token unreadable, starting logged out")
		tok = nil
	}

	dispatcher := api.NewDispatcher(api.Config{
		BaseURL:      cfg.API.BaseURL,
		BaseURLV2:    cfg.API.BaseURLV2,
		AuthURL:      cfg.API.AuthURL,
		ClientID:     cfg.API.ClientID,
		ClientSecret: cfg.API.ClientSecret,
		CountryCode:  cfg.API.CountryCode,
		Locale:       cfg.API.Locale,
	}, flow, tok)
	pager := api.NewPager(dispatcher)

	files := cache.NewFileStore(cfg.Cache.Dir)
	s := &Session{
		cfg:        cfg,
		flow:       flow,
		tokens:     tokens,
		dispatcher: dispatcher,
		pager:      pager,
		resolver:   manifest.NewResolver(cfg.Playback.SilenceURL),
		playlists:  cache.NewPlaylists(files, pager),
		folders:    cache.NewFolders(files),
	}
	s.favorites = cache.NewFavorites(files, dispatcher, s.UserID)
	return s, nil
}

// LoggedIn reports whether a user token is held.
func (s *Session) LoggedIn() bool {
	return s.dispatcher.LoggedIn()
}

// UserID returns the logged-in user's ID, or empty when logged out.
func (s *Session) UserID() string {
	if tok := s.dispatcher.Token(); tok != nil {
		return tok.UserID
	}
	return ""
}

// CountryCode returns the country applied to catalog requests.
func (s *Session) CountryCode() string {
	return s.dispatcher.CountryCode()
}

// Favorites exposes the favorites mirror.
func (s *Session) Favorites() *cache.Favorites {
	return s.favorites
}

// PlaylistCache exposes the playlist contents mirror.
func (s *Session) PlaylistCache() *cache.Playlists {
	return s.playlists
}

// FolderCache exposes the folder membership mirror.
func (s *Session) FolderCache() *cache.Folders {
	return s.folders
}

// BeginLogin starts a device-code login attempt. The caller shows the user
// code and drives PollLogin from its own timer at dc.PollInterval().
func (s *Session) BeginLogin(ctx context.Context) (*auth.DeviceCode, error) {
	return s.flow.BeginDeviceLogin(ctx)
}

// PollLogin advances the device-login state machine one step. On success the
// session adopts the new token.
func (s *Session) PollLogin(ctx context.Context, dc *auth.DeviceCode) (*auth.PollResult, error) {
	res, err := s.flow.PollDeviceLogin(ctx, dc)
	if err != nil {
		return nil, err
	}
	if res.State == auth.PollSuccess {
		s.dispatcher.SetToken(res.Token)
	}
	return res, nil
}

// Logout discards the held and persisted token.
func (s *Session) Logout() error {
	s.dispatcher.SetToken(nil)
	return s.tokens.Clear()
}

// --- single-entity getters ---

// GetAlbum fetches one album.
func (s *Session) GetAlbum(ctx context.Context, id string) (*entity.Album, error) {
	item, err := s.pager.FetchSingle(ctx, "albums/"+id, nil)
	if err != nil {
		return nil, err
	}
	var al entity.Album
	if err := item.Decode(&al); err != nil {
		return nil, err
	}
	return &al, nil
}

// GetArtist fetches one artist.
func (s *Session) GetArtist(ctx context.Context, id string) (*entity.Artist, error) {
	item, err := s.pager.FetchSingle(ctx, "artists/"+id, nil)
	if err != nil {
		return nil, err
	}
	var ar entity.Artist
	if err := item.Decode(&ar); err != nil {
		return nil, err
	}
	return &ar, nil
}

// GetTrack fetches one track.
func (s *Session) GetTrack(ctx context.Context, id string) (*entity.Track, error) {
	item, err := s.pager.FetchSingle(ctx, "tracks/"+id, nil)
	if err != nil {
		return nil, err
	}
	var tr entity.Track
	if err := item.Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// GetVideo fetches one video.
func (s *Session) GetVideo(ctx context.Context, id string) (*entity.Video, error) {
	item, err := s.pager.FetchSingle(ctx, "videos/"+id, nil)
	if err != nil {
		return nil, err
	}
	var v entity.Video
	if err := item.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetMix fetches one mix.
func (s *Session) GetMix(ctx context.Context, id string) (*entity.Mix, error) {
	item, err := s.pager.FetchSingle(ctx, "mixes/"+id, nil)
	if err != nil {
		return nil, err
	}
	var m entity.Mix
	if err := item.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetPlaylist fetches one playlist and reconciles the local mirrors with it.
func (s *Session) GetPlaylist(ctx context.Context, id string) (*entity.Playlist, error) {
	pl, _, err := s.fetchPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	s.observePlaylist(ctx, pl)
	return pl, nil
}

// fetchPlaylist fetches a playlist together with its write token (ETag).
func (s *Session) fetchPlaylist(ctx context.Context, id string) (*entity.Playlist, string, error) {
	resp, err := s.dispatcher.Request(ctx, "GET", "playlists/"+id, api.RequestOptions{})
	if err != nil {
		return nil, "", err
	}

	var raw map[string]any
	if err := resp.Decode(&raw); err != nil {
		return nil, "", err
	}
	item := api.Item{Raw: raw}
	var pl entity.Playlist
	if err := item.Decode(&pl); err != nil {
		return nil, "", err
	}
	applyFolderFields(&pl, raw)
	return &pl, resp.ETag, nil
}

// observePlaylist funnels any freshly parsed playlist object into the
// reconciliation passes.
func (s *Session) observePlaylist(ctx context.Context, pl *entity.Playlist) {
	s.playlists.Reconcile(ctx, pl)
	s.folders.Observe(pl.ID, pl.ParentFolderID, pl.ParentFolderName)
}

// --- listings ---

// GetAlbumItems lists an album's tracks and videos with paging metadata.
func (s *Session) GetAlbumItems(ctx context.Context, id string, offset, limit int) ([]MediaItem, error) {
	items, err := s.pager.FetchPaged(ctx, fmt.Sprintf("albums/%s/items", id), nil, offset, limit)
	if err != nil {
		return nil, err
	}
	return decodeMediaItems(items)
}

// GetPlaylistItems lists a playlist's tracks and videos, reconciling the
// playlist mirror on the way.
func (s *Session) GetPlaylistItems(ctx context.Context, id string, offset, limit int) ([]MediaItem, error) {
	pl, _, err := s.fetchPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	s.observePlaylist(ctx, pl)

	items, err := s.pager.FetchPaged(ctx, fmt.Sprintf("playlists/%s/items", id), nil, offset, limit)
	if err != nil {
		return nil, err
	}
	return decodeMediaItems(items)
}

// GetArtistAlbums lists an artist's albums.
func (s *Session) GetArtistAlbums(ctx context.Context, id string, offset, limit int) ([]entity.Album, error) {
	items, err := s.pager.FetchPaged(ctx, fmt.Sprintf("artists/%s/albums", id), nil, offset, limit)
	if err != nil {
		return nil, err
	}
	albums := make([]entity.Album, 0, len(items))
	for _, it := range items {
		var al entity.Album
		if err := it.Decode(&al); err != nil {
			continue
		}
		al.Page = pageInfo(it)
		albums = append(albums, al)
	}
	return albums, nil
}

// GetArtistTopTracks lists an artist's top tracks.
func (s *Session) GetArtistTopTracks(ctx context.Context, id string, offset, limit int) ([]entity.Track, error) {
	items, err := s.pager.FetchPaged(ctx, fmt.Sprintf("artists/%s/toptracks", id), nil, offset, limit)
	if err != nil {
		return nil, err
	}
	return decodeTracks(items), nil
}

// GetMixItems lists the tracks of a mix.
func (s *Session) GetMixItems(ctx context.Context, id string, offset, limit int) ([]MediaItem, error) {
	items, err := s.pager.FetchPaged(ctx, fmt.Sprintf("mixes/%s/items", id), nil, offset, limit)
	if err != nil {
		return nil, err
	}
	return decodeMediaItems(items)
}

// GetCategories lists an editorial browse section (genres, moods, ...).
func (s *Session) GetCategories(ctx context.Context, section string) ([]entity.Category, error) {
	items, err := s.pager.FetchPaged(ctx, section, nil, 0, api.MaxPageSize)
	if err != nil {
		return nil, err
	}
	cats := make([]entity.Category, 0, len(items))
	for _, it := range items {
		var c entity.Category
		if err := it.Decode(&c); err != nil {
			continue
		}
		c.Page = pageInfo(it)
		cats = append(cats, c)
	}
	return cats, nil
}

// GetPromotions lists featured items for the front page.
func (s *Session) GetPromotions(ctx context.Context, offset, limit int) ([]entity.Promotion, error) {
	items, err := s.pager.FetchPaged(ctx, "promotions", nil, offset, limit)
	if err != nil {
		return nil, err
	}
	promos := make([]entity.Promotion, 0, len(items))
	for _, it := range items {
		var pr entity.Promotion
		if err := it.Decode(&pr); err != nil {
			continue
		}
		pr.Page = pageInfo(it)
		promos = append(promos, pr)
	}
	return promos, nil
}

// --- favorites ---

// LoadFavorites primes or force-reloads the favorites mirror.
func (s *Session) LoadFavorites(ctx context.Context, force bool) error {
	return s.favorites.LoadAll(ctx, force)
}

// GetFavoriteAlbums lists favorite albums as full objects. A complete
// listing re-derives the ID bucket, self-healing the mirror.
func (s *Session) GetFavoriteAlbums(ctx context.Context, offset, limit int) ([]entity.Album, error) {
	items, err := s.pager.FetchPaged(ctx, s.favoritesPath(entity.ContentAlbums), nil, offset, limit)
	if err != nil {
		return nil, err
	}
	albums := make([]entity.Album, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		var al entity.Album
		if err := it.Decode(&al); err != nil {
			continue
		}
		al.Page = pageInfo(it)
		albums = append(albums, al)
		ids = append(ids, al.ID)
	}
	s.healFavorites(entity.ContentAlbums, offset, ids, items)
	return albums, nil
}

// GetFavoriteArtists lists favorite artists as full objects.
func (s *Session) GetFavoriteArtists(ctx context.Context, offset, limit int) ([]entity.Artist, error) {
	items, err := s.pager.FetchPaged(ctx, s.favoritesPath(entity.ContentArtists), nil, offset, limit)
	if err != nil {
		return nil, err
	}
	artists := make([]entity.Artist, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		var ar entity.Artist
		if err := it.Decode(&ar); err != nil {
			continue
		}
		ar.Page = pageInfo(it)
		artists = append(artists, ar)
		ids = append(ids, ar.ID)
	}
	s.healFavorites(entity.ContentArtists, offset, ids, items)
	return artists, nil
}

// GetFavoriteTracks lists favorite tracks as full objects.
func (s *Session) GetFavoriteTracks(ctx context.Context, offset, limit int) ([]entity.Track, error) {
	items, err := s.pager.FetchPaged(ctx, s.favoritesPath(entity.ContentTracks), nil, offset, limit)
	if err != nil {
		return nil, err
	}
	tracks := decodeTracks(items)
	ids := make([]string, 0, len(tracks))
	for _, tr := range tracks {
		ids = append(ids, tr.ID)
	}
	s.healFavorites(entity.ContentTracks, offset, ids, items)
	return tracks, nil
}

// GetFavoritePlaylists lists favorite playlists as full objects and runs
// playlist/folder reconciliation over each.
func (s *Session) GetFavoritePlaylists(ctx context.Context, offset, limit int) ([]entity.Playlist, error) {
	items, err := s.pager.FetchPaged(ctx, s.favoritesPath(entity.ContentPlaylists), nil, offset, limit)
	if err != nil {
		return nil, err
	}
	playlists := make([]entity.Playlist, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		var pl entity.Playlist
		if err := it.Decode(&pl); err != nil {
			continue
		}
		applyFolderFields(&pl, it.Raw)
		pl.Page = pageInfo(it)
		s.observePlaylist(ctx, &pl)
		playlists = append(playlists, pl)
		ids = append(ids, pl.ID)
	}
	s.healFavorites(entity.ContentPlaylists, offset, ids, items)
	return playlists, nil
}

// AddFavorite marks an item as favorite and mirrors it locally.
func (s *Session) AddFavorite(ctx context.Context, ct entity.ContentType, id string) error {
	return s.favorites.Add(ctx, ct, id)
}

// RemoveFavorite unmarks a favorite and mirrors it locally.
func (s *Session) RemoveFavorite(ctx context.Context, ct entity.ContentType, id string) error {
	return s.favorites.Remove(ctx, ct, id)
}

// IsFavorite answers from the mirror without a server round trip.
func (s *Session) IsFavorite(ct entity.ContentType, id string) bool {
	return s.favorites.Contains(ct, id)
}

func (s *Session) favoritesPath(ct entity.ContentType) string {
	return fmt.Sprintf("users/%s/favorites/%s", s.UserID(), ct)
}

// healFavorites re-derives an ID bucket when a listing returned the complete
// set of favorites for its type.
func (s *Session) healFavorites(ct entity.ContentType, offset int, ids []string, items []api.Item) {
	if offset != 0 || len(items) == 0 {
		return
	}
	if total := items[0].TotalNumberOfItems; total > 0 && len(ids) < total {
		return
	}
	s.favorites.Reset(ct, ids)
}

// --- user playlists and folders ---

// UserPlaylists lists the user's playlists and folders via the cursor API.
// flattened folds playlists in folders into one flat list; allPlaylists also
// includes favorited playlists owned by others. A complete listing triggers
// the deletion prune pass over both mirrors.
func (s *Session) UserPlaylists(ctx context.Context, flattened, allPlaylists bool) ([]entity.Playlist, []entity.Folder, error) {
	params := url.Values{}
	if flattened {
		params.Set("flattened", "true")
	} else {
		params.Set("folderId", "root")
	}
	params.Set("includeOnly", includeFilter(allPlaylists))

	items, err := s.pager.FetchCursor(ctx, "my-collection/playlists/folders", params)
	if err != nil {
		return nil, nil, err
	}

	var playlists []entity.Playlist
	var folders []entity.Folder
	var seen []string
	for _, it := range items {
		switch strings.ToUpper(it.Type) {
		case "FOLDER":
			var f entity.Folder
			if err := it.Decode(&f); err != nil {
				continue
			}
			f.Page = pageInfo(it)
			folders = append(folders, f)
		default:
			var pl entity.Playlist
			if err := it.Decode(&pl); err != nil {
				continue
			}
			applyFolderFields(&pl, it.Raw)
			pl.Page = pageInfo(it)
			s.observePlaylist(ctx, &pl)
			playlists = append(playlists, pl)
			seen = append(seen, pl.ID)
		}
	}

	// Only a flattened full listing is authoritative for deletions.
	if flattened && allPlaylists {
		s.playlists.Prune(seen)
		s.folders.Prune(seen)
	}
	return playlists, folders, nil
}

func includeFilter(allPlaylists bool) string {
	if allPlaylists {
		return ""
	}
	return "PLAYLIST"
}

// --- playlist mutation (ETag-guarded) ---

// AddPlaylistItems appends tracks or videos to a playlist. The write token
// is re-fetched synchronously first; a concurrent change still in flight
// surfaces as StaleWriteError and is never retried automatically.
func (s *Session) AddPlaylistItems(ctx context.Context, playlistID string, itemIDs []string) error {
	pl, etag, err := s.fetchPlaylist(ctx, playlistID)
	if err != nil {
		return err
	}

	data := url.Values{
		"itemIds":            {strings.Join(itemIDs, ",")},
		"onArtifactNotFound": {"FAIL"},
		"onDupes":            {"FAIL"},
	}
	_, err = s.dispatcher.Request(ctx, "POST", fmt.Sprintf("playlists/%s/items", playlistID), api.RequestOptions{
		Data:        data,
		IfNoneMatch: etag,
	})
	if err != nil {
		return staleOr(err, playlistID)
	}
	s.refreshPlaylistMirror(ctx, pl.ID)
	return nil
}

// RemovePlaylistItems removes the items at the given indices.
func (s *Session) RemovePlaylistItems(ctx context.Context, playlistID string, indices []int) error {
	pl, etag, err := s.fetchPlaylist(ctx, playlistID)
	if err != nil {
		return err
	}

	pos := make([]string, len(indices))
	for i, idx := range indices {
		pos[i] = fmt.Sprintf("%d", idx)
	}
	_, err = s.dispatcher.Request(ctx, "DELETE",
		fmt.Sprintf("playlists/%s/items/%s", playlistID, strings.Join(pos, ",")),
		api.RequestOptions{IfNoneMatch: etag})
	if err != nil {
		return staleOr(err, playlistID)
	}
	s.refreshPlaylistMirror(ctx, pl.ID)
	return nil
}

// RenamePlaylist updates a playlist's title and description.
func (s *Session) RenamePlaylist(ctx context.Context, playlistID, title, description string) error {
	_, etag, err := s.fetchPlaylist(ctx, playlistID)
	if err != nil {
		return err
	}

	data := url.Values{"title": {title}, "description": {description}}
	_, err = s.dispatcher.Request(ctx, "POST", "playlists/"+playlistID, api.RequestOptions{
		Data:        data,
		IfNoneMatch: etag,
	})
	if err != nil {
		return staleOr(err, playlistID)
	}
	s.refreshPlaylistMirror(ctx, playlistID)
	return nil
}

// CreatePlaylist creates a playlist owned by the user.
func (s *Session) CreatePlaylist(ctx context.Context, title, description string) (*entity.Playlist, error) {
	data := url.Values{"title": {title}, "description": {description}}
	resp, err := s.dispatcher.Request(ctx, "POST", fmt.Sprintf("users/%s/playlists", s.UserID()), api.RequestOptions{Data: data})
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := resp.Decode(&raw); err != nil {
		return nil, err
	}
	item := api.Item{Raw: raw}
	var pl entity.Playlist
	if err := item.Decode(&pl); err != nil {
		return nil, err
	}
	s.observePlaylist(ctx, &pl)
	return &pl, nil
}

// DeletePlaylist deletes a playlist and drops it from the mirrors.
func (s *Session) DeletePlaylist(ctx context.Context, playlistID string) error {
	_, etag, err := s.fetchPlaylist(ctx, playlistID)
	if err != nil {
		return err
	}
	_, err = s.dispatcher.Request(ctx, "DELETE", "playlists/"+playlistID, api.RequestOptions{IfNoneMatch: etag})
	if err != nil {
		return staleOr(err, playlistID)
	}
	return nil
}

// refreshPlaylistMirror re-fetches a playlist after a successful mutation so
// the mirror picks up the new lastUpdated immediately.
func (s *Session) refreshPlaylistMirror(ctx context.Context, playlistID string) {
	pl, _, err := s.fetchPlaylist(ctx, playlistID)
	if err != nil {
		zlog.Debug().Err(err).Str("playlist", playlistID).Msg("post-mutation refresh failed")
		return
	}
	s.observePlaylist(ctx, pl)
}

// staleOr converts a 412 into StaleWriteError.
func staleOr(err error, playlistID string) error {
	var herr *api.HTTPError
	if errors.As(err, &herr) && herr.Status == http.StatusPreconditionFailed {
		return &api.StaleWriteError{PlaylistID: playlistID}
	}
	return err
}

// --- search ---

// SearchResult groups search hits by section.
type SearchResult struct {
	Artists   []entity.Artist
	Albums    []entity.Album
	Tracks    []entity.Track
	Videos    []entity.Video
	Playlists []entity.Playlist
}

// Search queries the catalog. types is the comma-separated section filter
// (ARTISTS,ALBUMS,TRACKS,VIDEOS,PLAYLISTS). The response nests one paged
// envelope per section.
func (s *Session) Search(ctx context.Context, query, types string, limit int) (*SearchResult, error) {
	if limit <= 0 || limit > api.MaxPageSize {
		limit = 20
	}
	params := url.Values{
		"query": {query},
		"types": {types},
		"limit": {fmt.Sprintf("%d", limit)},
	}
	resp, err := s.dispatcher.Request(ctx, "GET", "search", api.RequestOptions{Params: params})
	if err != nil {
		return nil, err
	}

	var sections map[string]struct {
		Items []map[string]any `json:"items"`
	}
	if err := resp.Decode(&sections); err != nil {
		return nil, err
	}

	res := &SearchResult{}
	for name, sec := range sections {
		for i, raw := range sec.Items {
			it := api.Item{Raw: raw, ItemPosition: i, TotalNumberOfItems: len(sec.Items)}
			switch strings.ToLower(name) {
			case "artists":
				var ar entity.Artist
				if it.Decode(&ar) == nil {
					ar.Page = pageInfo(it)
					res.Artists = append(res.Artists, ar)
				}
			case "albums":
				var al entity.Album
				if it.Decode(&al) == nil {
					al.Page = pageInfo(it)
					res.Albums = append(res.Albums, al)
				}
			case "tracks":
				var tr entity.Track
				if it.Decode(&tr) == nil {
					tr.Page = pageInfo(it)
					res.Tracks = append(res.Tracks, tr)
				}
			case "videos":
				var v entity.Video
				if it.Decode(&v) == nil {
					v.Page = pageInfo(it)
					res.Videos = append(res.Videos, v)
				}
			case "playlists":
				var pl entity.Playlist
				if it.Decode(&pl) == nil {
					applyFolderFields(&pl, raw)
					pl.Page = pageInfo(it)
					s.observePlaylist(ctx, &pl)
					res.Playlists = append(res.Playlists, pl)
				}
			}
		}
	}
	return res, nil
}

// --- stream resolution ---

// GetTrackURL resolves a playable audio stream for a track under the
// configured quality ceiling.
func (s *Session) GetTrackURL(ctx context.Context, trackID string) (*manifest.Stream, error) {
	params := url.Values{
		"audioquality":      {s.cfg.Playback.AudioQuality},
		"playbackmode":      {"STREAM"},
		"assetpresentation": {"FULL"},
	}
	resp, err := s.dispatcher.Request(ctx, "GET", fmt.Sprintf("tracks/%s/playbackinfopostpaywall", trackID), api.RequestOptions{Params: params})
	if err != nil {
		return nil, err
	}

	var info manifest.PlaybackInfo
	if err := resp.Decode(&info); err != nil {
		return nil, err
	}
	return s.resolver.ResolveTrack(&info)
}

// GetVideoURL resolves a playable video stream under the height ceiling.
// maxHeight <= 0 uses the configured maximum.
func (s *Session) GetVideoURL(ctx context.Context, videoID string, maxHeight int) (*manifest.Stream, error) {
	if maxHeight <= 0 {
		maxHeight = s.cfg.Playback.MaxVideoHeight
	}

	params := url.Values{
		"videoquality":      {"HIGH"},
		"playbackmode":      {"STREAM"},
		"assetpresentation": {"FULL"},
	}
	resp, err := s.dispatcher.Request(ctx, "GET", fmt.Sprintf("videos/%s/playbackinfopostpaywall", videoID), api.RequestOptions{Params: params})
	if err != nil {
		return nil, err
	}

	var info manifest.PlaybackInfo
	if err := resp.Decode(&info); err != nil {
		return nil, err
	}
	return s.resolver.ResolveVideo(ctx, &info, maxHeight)
}

// --- decode helpers ---

func decodeMediaItems(items []api.Item) ([]MediaItem, error) {
	out := make([]MediaItem, 0, len(items))
	for _, it := range items {
		switch strings.ToLower(it.Type) {
		case "video":
			var v entity.Video
			if err := it.Decode(&v); err != nil {
				continue
			}
			v.Page = pageInfo(it)
			out = append(out, MediaItem{Type: "video", Video: &v})
		default:
			var tr entity.Track
			if err := it.Decode(&tr); err != nil {
				continue
			}
			tr.Page = pageInfo(it)
			out = append(out, MediaItem{Type: "track", Track: &tr})
		}
	}
	return out, nil
}

func decodeTracks(items []api.Item) []entity.Track {
	tracks := make([]entity.Track, 0, len(items))
	for _, it := range items {
		var tr entity.Track
		if err := it.Decode(&tr); err != nil {
			continue
		}
		tr.Page = pageInfo(it)
		tracks = append(tracks, tr)
	}
	return tracks
}

func pageInfo(it api.Item) entity.PageInfo {
	return entity.PageInfo{
		ItemPosition:       it.ItemPosition,
		Offset:             it.Offset,
		TotalNumberOfItems: it.TotalNumberOfItems,
	}
}

// applyFolderFields copies folder membership off the raw object; membership
// rides on several response shapes and has no stable typed home.
func applyFolderFields(pl *entity.Playlist, raw map[string]any) {
	if id, ok := raw["parentFolderId"].(string); ok {
		pl.ParentFolderID = id
	}
	if name, ok := raw["parentFolderName"].(string); ok {
		pl.ParentFolderName = name
	}
}
