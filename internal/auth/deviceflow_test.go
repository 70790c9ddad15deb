package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlow(t *testing.T, handler http.Handler) (*Flow, *MemoryTokenStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := &MemoryTokenStore{}
	flow := NewFlow(Config{
		AuthURL:      srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
	}, store)
	return flow, store
}

func TestBeginDeviceLogin(t *testing.T) {
	flow, _ := newTestFlow(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/device_authorization", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client", r.Form.Get("client_id"))
		assert.Equal(t, "r_usr w_usr w_sub", r.Form.Get("scope"))

		json.NewEncoder(w).Encode(map[string]any{
			"deviceCode":      "dev-123",
			"userCode":        "ABCDE",
			"verificationUri": "link.example.com",
			"expiresIn":       300,
			"interval":        2,
		})
	}))

	dc, err := flow.BeginDeviceLogin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dev-123", dc.DeviceCode)
	assert.Equal(t, "ABCDE", dc.UserCode)
	assert.Equal(t, 2*time.Second, dc.PollInterval())
	assert.False(t, dc.Expired(time.Now()))
}

func TestBeginDeviceLogin_ServerError(t *testing.T) {
	flow, _ := newTestFlow(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_client",
			"error_description": "unknown client",
		})
	}))

	_, err := flow.BeginDeviceLogin(context.Background())
	require.Error(t, err)

	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "invalid_client", aerr.Code)
	assert.Equal(t, "unknown client", aerr.Description)
}

func TestPollDeviceLogin_StateMachine(t *testing.T) {
	polls := 0
	flow, store := newTestFlow(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", r.Form.Get("grant_type"))

		polls++
		if polls < 3 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"status": 400, "sub_status": 1002, "error": "authorization_pending"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access",
			"refresh_token": "refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"user":          map[string]any{"userId": 98765, "countryCode": "NO"},
		})
	}))

	dc := &DeviceCode{DeviceCode: "dev", ExpiresIn: 300, Interval: 1, issuedAt: time.Now()}
	ctx := context.Background()

	// Two pending polls, then success.
	for i := 0; i < 2; i++ {
		res, err := flow.PollDeviceLogin(ctx, dc)
		require.NoError(t, err)
		assert.Equal(t, PollPending, res.State)
	}

	res, err := flow.PollDeviceLogin(ctx, dc)
	require.NoError(t, err)
	require.Equal(t, PollSuccess, res.State)
	assert.Equal(t, "access", res.Token.AccessToken)
	assert.Equal(t, "98765", res.Token.UserID)
	assert.Equal(t, "NO", res.Token.CountryCode)

	// Token was persisted atomically on success.
	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, res.Token, stored)
}

func TestPollDeviceLogin_Rejected(t *testing.T) {
	flow, _ := newTestFlow(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error":             "access_denied",
			"error_description": "the user rejected the request",
		})
	}))

	dc := &DeviceCode{DeviceCode: "dev", ExpiresIn: 300, issuedAt: time.Now()}
	res, err := flow.PollDeviceLogin(context.Background(), dc)
	require.NoError(t, err)
	assert.Equal(t, PollFailed, res.State)
	assert.Equal(t, "the user rejected the request", res.Reason)
}

func TestPollDeviceLogin_ExpiredCode(t *testing.T) {
	flow, _ := newTestFlow(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("expired device code must not reach the server")
	}))

	dc := &DeviceCode{DeviceCode: "dev", ExpiresIn: 10, issuedAt: time.Now().Add(-time.Minute)}
	res, err := flow.PollDeviceLogin(context.Background(), dc)
	require.NoError(t, err)
	assert.Equal(t, PollFailed, res.State)
}

func TestPollDeviceLogin_MalformedJSON(t *testing.T) {
	flow, _ := newTestFlow(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))

	dc := &DeviceCode{DeviceCode: "dev", ExpiresIn: 300, issuedAt: time.Now()}
	res, err := flow.PollDeviceLogin(context.Background(), dc)
	require.NoError(t, err)
	assert.Equal(t, PollFailed, res.State)
}

func TestRefresh(t *testing.T) {
	flow, store := newTestFlow(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))
		// Refresh never re-requests the subscription-write scope.
		assert.Equal(t, "r_usr w_usr", r.Form.Get("scope"))

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))

	old := &Token{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		TokenType:    "Bearer",
		UserID:       "42",
		CountryCode:  "DE",
	}
	next, err := flow.Refresh(context.Background(), old)
	require.NoError(t, err)

	assert.Equal(t, "new-access", next.AccessToken)
	// Server did not rotate the refresh token, so the old one survives.
	assert.Equal(t, "old-refresh", next.RefreshToken)
	assert.Equal(t, "42", next.UserID)
	assert.Equal(t, "DE", next.CountryCode)
	assert.True(t, next.ExpiresAt.After(time.Now().Add(30*time.Minute)))

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, next, stored)
}

func TestRefresh_RotatedRefreshToken(t *testing.T) {
	flow, _ := newTestFlow(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "rotated",
			"expires_in":    3600,
		})
	}))

	next, err := flow.Refresh(context.Background(), &Token{AccessToken: "a", RefreshToken: "old", TokenType: "Bearer"})
	require.NoError(t, err)
	assert.Equal(t, "rotated", next.RefreshToken)
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	flow, _ := newTestFlow(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := flow.Refresh(context.Background(), &Token{AccessToken: "a"})
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
}
