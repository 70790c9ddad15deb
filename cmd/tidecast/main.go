// Package main provides the tidecast user CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/soramane/tidecast/internal/auth"
	"github.com/soramane/tidecast/internal/domain/entity"
	"github.com/soramane/tidecast/internal/infra/config"
	"github.com/soramane/tidecast/internal/infra/logger"
	"github.com/soramane/tidecast/internal/session"
)

var (
	app        = kingpin.New("tidecast", "Streaming-service session client")
	configPath = app.Flag("config", "Path to config file").Default("config/tidecast.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	loginCmd  = app.Command("login", "Log in with a device code")
	logoutCmd = app.Command("logout", "Discard the stored token")
	whoamiCmd = app.Command("whoami", "Show the logged-in user")

	favoritesCmd    = app.Command("favorites", "List favorite IDs by type")
	favoritesType   = favoritesCmd.Arg("type", "Content type (artists/albums/playlists/tracks/videos/mixes)").Default("tracks").String()
	favoritesForce  = favoritesCmd.Flag("reload", "Force a full reload from the server").Bool()
	favAddCmd       = app.Command("fav-add", "Add a favorite")
	favAddType      = favAddCmd.Arg("type", "Content type").Required().String()
	favAddID        = favAddCmd.Arg("id", "Item ID").Required().String()
	favRemoveCmd    = app.Command("fav-remove", "Remove a favorite")
	favRemoveType   = favRemoveCmd.Arg("type", "Content type").Required().String()
	favRemoveID     = favRemoveCmd.Arg("id", "Item ID").Required().String()

	playlistsCmd       = app.Command("playlists", "List the user's playlists")
	playlistsFlattened = playlistsCmd.Flag("flattened", "Flatten folders into one list").Bool()
	playlistsAll       = playlistsCmd.Flag("all", "Include favorited playlists owned by others").Bool()

	trackURLCmd = app.Command("track-url", "Resolve a playable track URL")
	trackURLID  = trackURLCmd.Arg("id", "Track ID").Required().String()

	videoURLCmd    = app.Command("video-url", "Resolve a playable video URL")
	videoURLID     = videoURLCmd.Arg("id", "Video ID").Required().String()
	videoURLHeight = videoURLCmd.Flag("max-height", "Height ceiling (0 = configured default)").Default("0").Int()

	searchCmd   = app.Command("search", "Search the catalog")
	searchQuery = searchCmd.Arg("query", "Search query").Required().String()
	searchTypes = searchCmd.Flag("types", "Comma-separated types").Default("TRACKS,ALBUMS,ARTISTS").String()

	albumsCmd = app.Command("albums", "Fetch album metadata in bulk")
	albumIDs  = albumsCmd.Arg("id", "Album IDs").Required().Strings()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := "info"
	if *verbose {
		level = "debug"
	}
	output := "stderr"
	if *logfile != "" {
		output = *logfile
	}
	if err := logger.Init(logger.Config{Output: output, Level: level}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}

	sess, err := session.New(cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to create session")
	}

	ctx := context.Background()
	switch command {
	case loginCmd.FullCommand():
		login(ctx, sess)
	case logoutCmd.FullCommand():
		logout(sess)
	case whoamiCmd.FullCommand():
		whoami(sess)
	case favoritesCmd.FullCommand():
		listFavorites(ctx, sess, entity.ContentType(*favoritesType), *favoritesForce)
	case favAddCmd.FullCommand():
		mustDo(sess.AddFavorite(ctx, entity.ContentType(*favAddType), *favAddID), "added")
	case favRemoveCmd.FullCommand():
		mustDo(sess.RemoveFavorite(ctx, entity.ContentType(*favRemoveType), *favRemoveID), "removed")
	case playlistsCmd.FullCommand():
		listPlaylists(ctx, sess, *playlistsFlattened, *playlistsAll)
	case trackURLCmd.FullCommand():
		trackURL(ctx, sess, *trackURLID)
	case videoURLCmd.FullCommand():
		videoURL(ctx, sess, *videoURLID, *videoURLHeight)
	case searchCmd.FullCommand():
		search(ctx, sess, *searchQuery, *searchTypes)
	case albumsCmd.FullCommand():
		fetchAlbums(ctx, sess, cfg, *albumIDs)
	}
}

func login(ctx context.Context, sess *session.Session) {
	dc, err := sess.BeginLogin(ctx)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to start device login")
	}

	fmt.Println("Visit the following URL to authorize this device:")
	if dc.VerificationURIComplete != "" {
		fmt.Println("  https://" + dc.VerificationURIComplete)
	} else {
		fmt.Printf("  %s  (code: %s)\n", dc.VerificationURI, dc.UserCode)
	}
	fmt.Println("Waiting for authorization...")

	ticker := time.NewTicker(dc.PollInterval())
	defer ticker.Stop()

	for range ticker.C {
		res, err := sess.PollLogin(ctx, dc)
		if err != nil {
			zlog.Fatal().Err(err).Msg("device login poll failed")
		}
		switch res.State {
		case auth.PollPending:
			continue
		case auth.PollFailed:
			fmt.Printf("Authorization failed: %s\n", res.Reason)
			os.Exit(1)
		case auth.PollSuccess:
			fmt.Printf("Logged in as user %s (%s)\n", res.Token.UserID, res.Token.CountryCode)
			return
		}
	}
}

func logout(sess *session.Session) {
	if err := sess.Logout(); err != nil {
		zlog.Fatal().Err(err).Msg("logout failed")
	}
	fmt.Println("Logged out.")
}

func whoami(sess *session.Session) {
	if !sess.LoggedIn() {
		fmt.Println("Not logged in (preview access only).")
		return
	}
	fmt.Printf("User %s, country %s\n", sess.UserID(), sess.CountryCode())
}

func listFavorites(ctx context.Context, sess *session.Session, ct entity.ContentType, force bool) {
	if err := sess.LoadFavorites(ctx, force); err != nil {
		zlog.Fatal().Err(err).Msg("failed to load favorites")
	}
	ids := sess.Favorites().IDs(ct)
	fmt.Printf("%d favorite %s:\n", len(ids), ct)
	for _, id := range ids {
		fmt.Println("  " + id)
	}
}

func listPlaylists(ctx context.Context, sess *session.Session, flattened, all bool) {
	playlists, folders, err := sess.UserPlaylists(ctx, flattened, all)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to list playlists")
	}
	for _, f := range folders {
		fmt.Printf("[folder] %s (%d items)\n", f.Name, f.TotalItems)
	}
	for _, pl := range playlists {
		line := fmt.Sprintf("%s (%d tracks)", pl.Title, pl.NumberOfTracks)
		if pl.ParentFolderName != "" {
			line += " in " + pl.ParentFolderName
		}
		fmt.Println(line)
	}
}

func trackURL(ctx context.Context, sess *session.Session, id string) {
	stream, err := sess.GetTrackURL(ctx, id)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to resolve track")
	}
	if stream.Placeholder {
		fmt.Println("Stream unplayable; silent placeholder returned:")
	}
	fmt.Println(stream.URL)
}

func videoURL(ctx context.Context, sess *session.Session, id string, maxHeight int) {
	stream, err := sess.GetVideoURL(ctx, id, maxHeight)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to resolve video")
	}
	fmt.Println(stream.URL)
}

func search(ctx context.Context, sess *session.Session, query, types string) {
	res, err := sess.Search(ctx, query, types, 20)
	if err != nil {
		zlog.Fatal().Err(err).Msg("search failed")
	}
	for _, ar := range res.Artists {
		fmt.Printf("[artist]   %s\n", ar.Name)
	}
	for _, al := range res.Albums {
		fmt.Printf("[album]    %s - %s\n", al.Title, entity.ArtistNames(al.Artists))
	}
	for _, tr := range res.Tracks {
		fmt.Printf("[track]    %s - %s\n", tr.Title, entity.ArtistNames(tr.Artists))
	}
	for _, v := range res.Videos {
		fmt.Printf("[video]    %s\n", v.Title)
	}
	for _, pl := range res.Playlists {
		fmt.Printf("[playlist] %s (%d tracks)\n", pl.Title, pl.NumberOfTracks)
	}
}

func fetchAlbums(ctx context.Context, sess *session.Session, cfg *config.Config, ids []string) {
	p := session.NewPrefetcher(sess, cfg.Prefetch.Workers, cfg.Prefetch.RequestsPerSecond)
	albums := p.Albums(ctx, ids)

	for _, id := range ids {
		al, ok := albums[id]
		if !ok {
			fmt.Printf("%s: not available\n", id)
			continue
		}
		name := ""
		if al.Artist != nil {
			name = al.Artist.Name
		}
		fmt.Printf("%s: %s - %s (%d tracks)\n", id, al.Title, name, al.NumberOfTracks)
	}
}

func mustDo(err error, verb string) {
	if err != nil {
		zlog.Fatal().Err(err).Msg("operation failed")
	}
	fmt.Println("OK, " + verb + ".")
}
