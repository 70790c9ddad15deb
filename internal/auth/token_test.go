package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_Valid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token *Token
		want  bool
	}{
		{
			name:  "nil token",
			token: nil,
			want:  false,
		},
		{
			name:  "empty access token",
			token: &Token{ExpiresAt: now.Add(time.Hour)},
			want:  false,
		},
		{
			name:  "valid with headroom",
			token: &Token{AccessToken: "tok", ExpiresAt: now.Add(time.Hour)},
			want:  true,
		},
		{
			name:  "already expired",
			token: &Token{AccessToken: "tok", ExpiresAt: now.Add(-time.Minute)},
			want:  false,
		},
		{
			name: "inside expiry margin",
			// Expires in 10s, margin is 30s: treat as expired.
			token: &Token{AccessToken: "tok", ExpiresAt: now.Add(10 * time.Second)},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.token.Valid(now))
		})
	}
}

func TestFileTokenStore_RoundTrip(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "sub", "token.json"))

	// Missing file is not an error.
	tok, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, tok)

	saved := &Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		ExpiresAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UserID:       "12345",
		CountryCode:  "NO",
	}
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestFileTokenStore_Clear(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, store.Save(&Token{AccessToken: "a"}))
	require.NoError(t, store.Clear())

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, tok)

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}

func TestToken_OAuth2(t *testing.T) {
	expiry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tok := &Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", ExpiresAt: expiry}

	o := tok.OAuth2()
	assert.Equal(t, "a", o.AccessToken)
	assert.Equal(t, "r", o.RefreshToken)
	assert.Equal(t, expiry, o.Expiry)
}
