package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tidecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
api:
  client_id: test-client
  client_secret: test-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.tidal.com/v1", cfg.API.BaseURL)
	assert.Equal(t, "US", cfg.API.CountryCode)
	assert.Equal(t, "LOSSLESS", cfg.Playback.AudioQuality)
	assert.Equal(t, 1080, cfg.Playback.MaxVideoHeight)
	assert.Equal(t, 4, cfg.Prefetch.Workers)
}

func TestLoad_MissingCredentials(t *testing.T) {
	path := writeConfig(t, `
playback:
  audio_quality: HIGH
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidQuality(t *testing.T) {
	path := writeConfig(t, `
api:
  client_id: test-client
  client_secret: test-secret
playback:
  audio_quality: ULTRA
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TIDECAST_CLIENT_ID", "env-client")
	t.Setenv("TIDECAST_CLIENT_SECRET", "env-secret")

	path := writeConfig(t, `
api:
  client_id: file-client
  client_secret: file-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-client", cfg.API.ClientID)
	assert.Equal(t, "env-secret", cfg.API.ClientSecret)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
api:
  client_id: test-client
  client_secret: test-secret
  country_code: DE
playback:
  max_video_height: 720
cache:
  dir: /tmp/tidecast-test
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DE", cfg.API.CountryCode)
	assert.Equal(t, 720, cfg.Playback.MaxVideoHeight)
	assert.Equal(t, "/tmp/tidecast-test", cfg.Cache.Dir)
}
