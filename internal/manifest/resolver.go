// Package manifest resolves playback-info responses into concrete,
// quality-appropriate stream URLs.
package manifest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Manifest media types delivered inside playback-info responses.
const (
	mimeBTS  = "application/vnd.tidal.bts"
	mimeEMU  = "application/vnd.tidal.emu"
	mimeDASH = "application/dash+xml"
	mimeHLS  = "application/vnd.apple.mpegurl"
)

// ParseError represents a malformed DASH/HLS/bts payload.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed manifest: %s", e.Reason)
}

// UnplayableError represents a DRM-protected stream with no usable fallback.
type UnplayableError struct {
	ID string
}

func (e *UnplayableError) Error() string {
	return fmt.Sprintf("stream %s is DRM-protected and cannot be played", e.ID)
}

// PlaybackInfo is the provider's playback-info response for a track or video.
type PlaybackInfo struct {
	TrackID           json.Number `json:"trackId"`
	VideoID           json.Number `json:"videoId"`
	AssetPresentation string      `json:"assetPresentation"`
	AudioQuality      string      `json:"audioQuality"`
	VideoQuality      string      `json:"videoQuality"`
	ManifestMimeType  string      `json:"manifestMimeType"`
	Manifest          string      `json:"manifest"` // base64
}

// Stream is one resolved playable stream.
type Stream struct {
	URL      string
	MimeType string
	Codec    string
	// Placeholder marks the silent fallback substituted for unplayable audio.
	Placeholder bool
}

// btsManifest is the provider's JSON audio container descriptor.
// A non-empty keyId means the stream is DRM-encrypted and unplayable here.
type btsManifest struct {
	MimeType       string   `json:"mimeType"`
	Codecs         string   `json:"codecs"`
	EncryptionType string   `json:"encryptionType"`
	KeyID          string   `json:"keyId"`
	URLs           []string `json:"urls"`
}

// Resolver turns playback-info responses into stream URLs. Manifests are
// never cached across requests; their signed URLs expire.
type Resolver struct {
	client *http.Client
	// silenceURL is returned for unplayable audio so the host player gets
	// a track it can open instead of a failure it may hang on.
	silenceURL string
}

// NewResolver creates a resolver. silenceURL is the placeholder returned for
// unplayable audio streams.
func NewResolver(silenceURL string) *Resolver {
	return &Resolver{
		client:     &http.Client{Timeout: 15 * time.Second},
		silenceURL: silenceURL,
	}
}

// ResolveTrack resolves an audio playback-info response. Unplayable results
// (DRM, empty manifest) degrade to the silent placeholder instead of failing
// the playback pipeline.
func (r *Resolver) ResolveTrack(info *PlaybackInfo) (*Stream, error) {
	stream, err := r.resolveAudio(info)
	if err != nil {
		zlog.Warn().Err(err).Str("track", info.TrackID.String()).Msg("audio stream unplayable, substituting silence")
		return &Stream{URL: r.silenceURL, MimeType: "audio/mp4", Placeholder: true}, nil
	}
	return stream, nil
}

func (r *Resolver) resolveAudio(info *PlaybackInfo) (*Stream, error) {
	raw, err := base64.StdEncoding.DecodeString(info.Manifest)
	if err != nil {
		return nil, &ParseError{Reason: "manifest is not valid base64"}
	}

	switch strings.ToLower(info.ManifestMimeType) {
	case mimeBTS, mimeEMU:
		var m btsManifest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, &ParseError{Reason: "bts manifest is not valid JSON"}
		}
		if m.KeyID != "" || (m.EncryptionType != "" && !strings.EqualFold(m.EncryptionType, "NONE")) {
			return nil, &UnplayableError{ID: info.TrackID.String()}
		}
		if len(m.URLs) == 0 || m.URLs[0] == "" {
			return nil, &ParseError{Reason: "bts manifest has no urls"}
		}
		return &Stream{URL: m.URLs[0], MimeType: m.MimeType, Codec: m.Codecs}, nil

	case mimeDASH:
		// Only the codec family matters for the audio path; a substring
		// check beats full MPD schema parsing.
		codec := "aac"
		if strings.Contains(string(raw), `codecs="flac"`) {
			codec = "flac"
		}
		return &Stream{
			URL:      "data:application/dash+xml;base64," + info.Manifest,
			MimeType: mimeDASH,
			Codec:    codec,
		}, nil

	default:
		return nil, &ParseError{Reason: "unsupported audio manifest type " + info.ManifestMimeType}
	}
}

// ResolveVideo resolves a video playback-info response, honoring the height
// ceiling. Unlike audio, video failures surface to the caller.
func (r *Resolver) ResolveVideo(ctx context.Context, info *PlaybackInfo, maxHeight int) (*Stream, error) {
	raw, err := base64.StdEncoding.DecodeString(info.Manifest)
	if err != nil {
		return nil, &ParseError{Reason: "manifest is not valid base64"}
	}

	switch strings.ToLower(info.ManifestMimeType) {
	case mimeEMU, mimeBTS:
		var m btsManifest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, &ParseError{Reason: "video manifest is not valid JSON"}
		}
		if m.KeyID != "" || (m.EncryptionType != "" && !strings.EqualFold(m.EncryptionType, "NONE")) {
			return nil, &UnplayableError{ID: info.VideoID.String()}
		}
		if len(m.URLs) == 0 || m.URLs[0] == "" {
			return nil, &ParseError{Reason: "video manifest has no urls"}
		}
		return r.resolveHLS(ctx, m.URLs[0], maxHeight)

	case mimeHLS:
		// Inline playlist text; no base URL beyond what the playlist carries.
		stream, err := r.selectFromPlaylist(string(raw), nil, maxHeight)
		if err != nil {
			return nil, err
		}
		if stream.URL == "" {
			// Media playlist delivered inline: there is no URL to hand back,
			// so wrap the playlist itself the way the DASH audio path does.
			stream.URL = "data:" + mimeHLS + ";base64," + info.Manifest
		}
		return stream, nil

	default:
		return nil, &ParseError{Reason: "unsupported video manifest type " + info.ManifestMimeType}
	}
}

// resolveHLS fetches the playlist behind the URL and selects a variant.
func (r *Resolver) resolveHLS(ctx context.Context, playlistURL string, maxHeight int) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build playlist request")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch playlist")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ParseError{Reason: fmt.Sprintf("playlist fetch returned %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read playlist")
	}

	base, _ := url.Parse(playlistURL)
	stream, err := r.selectFromPlaylist(string(body), base, maxHeight)
	if err != nil {
		return nil, err
	}
	if stream.URL == "" {
		// Media playlist: the fetched URL itself is the playable stream.
		stream.URL = playlistURL
	}
	return stream, nil
}

// selectFromPlaylist applies variant selection to playlist text.
func (r *Resolver) selectFromPlaylist(text string, base *url.URL, maxHeight int) (*Stream, error) {
	variants, isMaster, err := parseMaster(text, base)
	if err != nil {
		return nil, err
	}
	if !isMaster {
		return &Stream{MimeType: mimeHLS}, nil
	}

	best := selectVariant(variants, maxHeight)
	if best == nil {
		return nil, &ParseError{Reason: "master playlist lists no usable variants"}
	}
	zlog.Debug().
		Int("height", best.Height).
		Int("bandwidth", best.Bandwidth).
		Int("max_height", maxHeight).
		Msg("selected HLS variant")
	return &Stream{URL: best.URI, MimeType: mimeHLS}, nil
}
