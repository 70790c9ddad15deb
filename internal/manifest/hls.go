package manifest

import (
	"bufio"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Variant is one rendition listed by an HLS master playlist.
type Variant struct {
	Bandwidth int
	Width     int
	Height    int
	URI       string
}

// parseMaster parses an M3U8 playlist. The second return value reports
// whether it is a master (variant) playlist; media playlists have no
// variants and are playable as-is. Relative variant URIs are resolved
// against base.
func parseMaster(text string, base *url.URL) ([]Variant, bool, error) {
	if !strings.HasPrefix(strings.TrimSpace(text), "#EXTM3U") {
		return nil, false, &ParseError{Reason: "not an M3U8 playlist"}
	}

	var variants []Variant
	var pending *Variant

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			v := parseStreamInf(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			pending = &v
		case line == "" || strings.HasPrefix(line, "#"):
			// other tags and blanks
		default:
			if pending == nil {
				continue
			}
			pending.URI = resolveURI(line, base)
			variants = append(variants, *pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, errors.Wrap(err, "failed to scan playlist")
	}

	return variants, len(variants) > 0, nil
}

// parseStreamInf reads the attribute list of one #EXT-X-STREAM-INF tag.
func parseStreamInf(attrs string) Variant {
	var v Variant
	for _, attr := range splitAttrs(attrs) {
		key, val, ok := strings.Cut(attr, "=")
		if !ok {
			continue
		}
		val = strings.Trim(val, `"`)
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "BANDWIDTH":
			v.Bandwidth, _ = strconv.Atoi(val)
		case "RESOLUTION":
			if w, h, ok := strings.Cut(strings.ToLower(val), "x"); ok {
				v.Width, _ = strconv.Atoi(w)
				v.Height, _ = strconv.Atoi(h)
			}
		}
	}
	return v
}

// splitAttrs splits an attribute list on commas outside quoted values.
func splitAttrs(s string) []string {
	var parts []string
	var cur strings.Builder
	quoted := false
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			cur.WriteRune(r)
		case r == ',' && !quoted:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// resolveURI resolves a possibly relative playlist URI against the
// manifest's base URL.
func resolveURI(uri string, base *url.URL) string {
	ref, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	if base == nil {
		return uri
	}
	return base.ResolveReference(ref).String()
}

// selectVariant picks the rendition with the highest height not exceeding
// maxHeight, breaking height ties by bandwidth. Variants above the ceiling
// are skipped outright. When nothing fits under the ceiling the lowest
// available rendition wins: degraded playback beats no playback.
func selectVariant(variants []Variant, maxHeight int) *Variant {
	var best *Variant
	for i := range variants {
		v := &variants[i]
		if maxHeight > 0 && v.Height > maxHeight {
			continue
		}
		if best == nil || v.Height > best.Height ||
			(v.Height == best.Height && v.Bandwidth > best.Bandwidth) {
			best = v
		}
	}
	if best != nil {
		return best
	}

	// Everything exceeds the ceiling; degrade to the lowest rendition.
	var lowest *Variant
	for i := range variants {
		v := &variants[i]
		if lowest == nil || v.Height < lowest.Height ||
			(v.Height == lowest.Height && v.Bandwidth > lowest.Bandwidth) {
			lowest = v
		}
	}
	return lowest
}
