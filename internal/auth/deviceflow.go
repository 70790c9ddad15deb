package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// OAuth scopes. Login asks for the full set including subscription writes;
// refresh deliberately re-requests only the read/write pair.
const (
	scopeLogin   = "r_usr w_usr w_sub"
	scopeRefresh = "r_usr w_usr"
)

// Provider sub-status meaning the user has not yet approved the device code.
const subStatusAuthorizationPending = 1002

// AuthError represents a rejected or failed authorization exchange.
type AuthError struct {
	Status      int
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed (%d %s): %s", e.Status, e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed (%d %s)", e.Status, e.Code)
}

// DeviceCode represents one device-authorization attempt.
type DeviceCode struct {
	DeviceCode              string `json:"deviceCode"`
	UserCode                string `json:"userCode"`
	VerificationURI         string `json:"verificationUri"`
	VerificationURIComplete string `json:"verificationUriComplete"`
	ExpiresIn               int    `json:"expiresIn"`
	Interval                int    `json:"interval"`

	issuedAt time.Time
	loginID  string
}

// Expired reports whether the device code can no longer be exchanged.
func (d *DeviceCode) Expired(now time.Time) bool {
	return now.After(d.issuedAt.Add(time.Duration(d.ExpiresIn) * time.Second))
}

// PollInterval returns the server-requested polling cadence.
func (d *DeviceCode) PollInterval() time.Duration {
	if d.Interval <= 0 {
		return 2 * time.Second
	}
	return time.Duration(d.Interval) * time.Second
}

// PollState enumerates the device-login state machine states.
type PollState int

const (
	PollPending PollState = iota
	PollSuccess
	PollFailed
)

// PollResult is the outcome of one poll step. The caller drives the polling
// loop from its own timer; this package never sleeps.
type PollResult struct {
	State  PollState
	Token  *Token
	Reason string
}

// Config represents device-flow configuration.
type Config struct {
	AuthURL      string
	ClientID     string
	ClientSecret string
}

// Flow runs the device-code authorization handshake and token refresh.
type Flow struct {
	cfg    Config
	client *http.Client
	store  TokenStore
	now    func() time.Time
}

// NewFlow creates a device-login flow persisting tokens to the given store.
func NewFlow(cfg Config, store TokenStore) *Flow {
	return &Flow{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		store:  store,
		now:    time.Now,
	}
}

// tokenResponse is the provider's token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		UserID      json.Number `json:"userId"`
		CountryCode string      `json:"countryCode"`
	} `json:"user"`
}

// errorResponse is the provider's OAuth error payload.
type errorResponse struct {
	Status           int    `json:"status"`
	SubStatus        int    `json:"sub_status"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// BeginDeviceLogin starts a device-authorization attempt.
func (f *Flow) BeginDeviceLogin(ctx context.Context) (*DeviceCode, error) {
	form := url.Values{
		"client_id": {f.cfg.ClientID},
		"scope":     {scopeLogin},
	}

	body, status, err := f.post(ctx, f.cfg.AuthURL+"/device_authorization", form)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, decodeAuthError(status, body)
	}

	var dc DeviceCode
	if err := json.Unmarshal(body, &dc); err != nil {
		return nil, errors.Wrap(err, "failed to parse device authorization response")
	}
	dc.issuedAt = f.now()
	dc.loginID = uuid.New().String()

	zlog.Info().
		Str("login_id", dc.loginID).
		Str("user_code", dc.UserCode).
		Int("expires_in", dc.ExpiresIn).
		Msg("device authorization started")
	return &dc, nil
}

// PollDeviceLogin attempts one device-code exchange. The caller keeps polling
// at dc.PollInterval() while the result is PollPending and the code has not
// expired.
func (f *Flow) PollDeviceLogin(ctx context.Context, dc *DeviceCode) (*PollResult, error) {
	if dc.Expired(f.now()) {
		return &PollResult{State: PollFailed, Reason: "device code expired"}, nil
	}

	form := url.Values{
		"client_id":   {f.cfg.ClientID},
		"device_code": {dc.DeviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"scope":       {scopeLogin},
	}

	body, status, err := f.post(ctx, f.cfg.AuthURL+"/token", form)
	if err != nil {
		return nil, err
	}

	if status >= 200 && status < 300 {
		tok, err := f.acceptToken(body)
		if err != nil {
			return &PollResult{State: PollFailed, Reason: err.Error()}, nil
		}
		zlog.Info().Str("login_id", dc.loginID).Str("user_id", tok.UserID).Msg("device login complete")
		return &PollResult{State: PollSuccess, Token: tok}, nil
	}

	var oerr errorResponse
	if json.Unmarshal(body, &oerr) == nil {
		if status == http.StatusBadRequest &&
			(oerr.SubStatus == subStatusAuthorizationPending || oerr.Error == "authorization_pending") {
			return &PollResult{State: PollPending}, nil
		}
		reason := oerr.ErrorDescription
		if reason == "" {
			reason = oerr.Error
		}
		return &PollResult{State: PollFailed, Reason: reason}, nil
	}
	return &PollResult{State: PollFailed, Reason: fmt.Sprintf("unexpected status %d", status)}, nil
}

// Refresh exchanges the refresh token for a fresh access token. The stored
// refresh token survives unless the server rotates it.
func (f *Flow) Refresh(ctx context.Context, tok *Token) (*Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, &AuthError{Status: http.StatusUnauthorized, Code: "no_refresh_token", Description: "no refresh token held"}
	}

	form := url.Values{
		"client_id":     {f.cfg.ClientID},
		"client_secret": {f.cfg.ClientSecret},
		"refresh_token": {tok.RefreshToken},
		"grant_type":    {"refresh_token"},
		"scope":         {scopeRefresh},
	}

	body, status, err := f.post(ctx, f.cfg.AuthURL+"/token", form)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, decodeAuthError(status, body)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to parse refresh response")
	}

	next := &Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    nonEmpty(resp.TokenType, tok.TokenType),
		ExpiresAt:    f.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		UserID:       nonEmpty(resp.User.UserID.String(), tok.UserID),
		CountryCode:  nonEmpty(resp.User.CountryCode, tok.CountryCode),
	}
	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}

	if err := f.store.Save(next); err != nil {
		return nil, errors.Wrap(err, "failed to persist refreshed token")
	}
	zlog.Debug().Time("expires_at", next.ExpiresAt).Msg("access token refreshed")
	return next, nil
}

// acceptToken builds and persists a token from a successful exchange.
func (f *Flow) acceptToken(body []byte) (*Token, error) {
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to parse token response")
	}
	if resp.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}

	tok := &Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    nonEmpty(resp.TokenType, "Bearer"),
		ExpiresAt:    f.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		UserID:       resp.User.UserID.String(),
		CountryCode:  resp.User.CountryCode,
	}
	if err := f.store.Save(tok); err != nil {
		return nil, errors.Wrap(err, "failed to persist token")
	}
	return tok, nil
}

// post issues one form POST against the auth service.
func (f *Flow) post(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to build auth request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(f.cfg.ClientID, f.cfg.ClientSecret)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "auth request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to read auth response")
	}
	return body, resp.StatusCode, nil
}

func decodeAuthError(status int, body []byte) error {
	var oerr errorResponse
	if json.Unmarshal(body, &oerr) == nil && (oerr.Error != "" || oerr.ErrorDescription != "") {
		return &AuthError{Status: status, Code: oerr.Error, Description: oerr.ErrorDescription}
	}
	return &AuthError{Status: status, Code: "unexpected_response"}
}

func nonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
