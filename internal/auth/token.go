// Package auth implements the device-code login flow and token lifecycle.
package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
)

// ExpiryMargin is subtracted from the token lifetime on every validity check
// so a token about to expire is refreshed before it can 401 in-flight.
const ExpiryMargin = 30 * time.Second

// Token holds the credentials for one authenticated user.
// All fields are written together on every exchange, never piecemeal.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	CountryCode  string    `json:"country_code"`
}

// Valid reports whether the access token is still usable at the given time,
// leaving ExpiryMargin of headroom.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Add(ExpiryMargin).Before(t.ExpiresAt)
}

// OAuth2 converts the token for use with golang.org/x/oauth2 clients.
func (t *Token) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.ExpiresAt,
	}
}

// TokenStore persists tokens across process restarts.
type TokenStore interface {
	Load() (*Token, error)
	Save(*Token) error
	Clear() error
}

// FileTokenStore persists the token as a single JSON file.
// Saves go through a temp file and rename so a crash mid-write
// can never leave a half-updated token on disk.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

// NewFileTokenStore creates a token store backed by the given file path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Load reads the persisted token. A missing file yields (nil, nil).
func (s *FileTokenStore) Load() (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read token file")
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, errors.Wrap(err, "failed to parse token file")
	}
	return &tok, nil
}

// Save writes the token atomically.
func (s *FileTokenStore) Save(tok *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode token")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Wrap(err, "failed to create token dir")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write token file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "failed to replace token file")
	}
	return nil
}

// Clear removes the persisted token.
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove token file")
	}
	return nil
}

// MemoryTokenStore keeps the token in memory only. Used in tests and by
// tools that should not persist credentials.
type MemoryTokenStore struct {
	mu  sync.Mutex
	tok *Token
}

func (s *MemoryTokenStore) Load() (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok, nil
}

func (s *MemoryTokenStore) Save(tok *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = tok
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = nil
	return nil
}
