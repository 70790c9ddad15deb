package manifest

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterPlaylist = `#EXTM3U
#EXT-X-VERSION:4
#EXT-X-STREAM-INF:BANDWIDTH=500000,RESOLUTION=640x360,CODECS="avc1.64001f,mp4a.40.2"
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1500000,RESOLUTION=1280x720
mid/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=3000000,RESOLUTION=1920x1080
high/index.m3u8
`

const mediaPlaylist = `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXTINF:6.0,
segment0.ts
#EXT-X-ENDLIST
`

func TestParseMaster(t *testing.T) {
	base, _ := url.Parse("https://cdn.example.com/v/main.m3u8")
	variants, isMaster, err := parseMaster(masterPlaylist, base)
	require.NoError(t, err)
	require.True(t, isMaster)
	require.Len(t, variants, 3)

	// Quoted CODECS commas must not split the attribute list.
	assert.Equal(t, Variant{Bandwidth: 500000, Width: 640, Height: 360, URI: "https://cdn.example.com/v/low/index.m3u8"}, variants[0])
	assert.Equal(t, 720, variants[1].Height)
	assert.Equal(t, "https://cdn.example.com/v/high/index.m3u8", variants[2].URI)
}

func TestParseMaster_MediaPlaylist(t *testing.T) {
	variants, isMaster, err := parseMaster(mediaPlaylist, nil)
	require.NoError(t, err)
	assert.False(t, isMaster)
	assert.Empty(t, variants)
}

func TestParseMaster_NotM3U8(t *testing.T) {
	_, _, err := parseMaster("<html>not a playlist</html>", nil)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestParseMaster_AbsoluteURIKept(t *testing.T) {
	base, _ := url.Parse("https://cdn.example.com/v/main.m3u8")
	playlist := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1,RESOLUTION=2x2\nhttps://other.example.com/x.m3u8\n"

	variants, _, err := parseMaster(playlist, base)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "https://other.example.com/x.m3u8", variants[0].URI)
}

func TestSelectVariant(t *testing.T) {
	ladder := []Variant{
		{Bandwidth: 500000, Height: 360, URI: "360"},
		{Bandwidth: 1500000, Height: 720, URI: "720"},
		{Bandwidth: 3000000, Height: 1080, URI: "1080"},
	}

	tests := []struct {
		name      string
		variants  []Variant
		maxHeight int
		wantURI   string
	}{
		{
			name:      "ceiling hit exactly",
			variants:  ladder,
			maxHeight: 720,
			wantURI:   "720",
		},
		{
			name:      "ceiling above ladder",
			variants:  ladder,
			maxHeight: 2000,
			wantURI:   "1080",
		},
		{
			name:      "no ceiling",
			variants:  ladder,
			maxHeight: 0,
			wantURI:   "1080",
		},
		{
			name:      "nothing fits, degrade to lowest",
			variants:  ladder,
			maxHeight: 240,
			wantURI:   "360",
		},
		{
			name: "height tie broken by bandwidth",
			variants: []Variant{
				{Bandwidth: 1000000, Height: 720, URI: "720-low"},
				{Bandwidth: 2000000, Height: 720, URI: "720-high"},
			},
			maxHeight: 1080,
			wantURI:   "720-high",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best := selectVariant(tt.variants, tt.maxHeight)
			require.NotNil(t, best)
			assert.Equal(t, tt.wantURI, best.URI)
		})
	}
}

func TestSelectVariant_Empty(t *testing.T) {
	assert.Nil(t, selectVariant(nil, 1080))
}
