// Package api implements the authenticated REST dispatcher and the
// paginated-fetch abstraction over the provider's two API dialects.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/soramane/tidecast/internal/auth"
)

// Config represents dispatcher configuration.
type Config struct {
	BaseURL      string // v1 (offset/limit endpoints)
	BaseURLV2    string // v2 (cursor endpoints)
	AuthURL      string
	ClientID     string
	ClientSecret string
	CountryCode  string // fallback when no user token is held
	Locale       string
}

// RequestOptions tunes a single request.
type RequestOptions struct {
	Params url.Values
	Data   url.Values // form body for POST/PUT/DELETE
	// V2 routes the request to the cursor-dialect API.
	V2 bool
	// NoAuth substitutes the anonymous preview token, keeping the request
	// functional with reduced capability instead of failing it.
	NoAuth bool
	// AllowFailure returns non-2xx responses instead of raising them.
	// Used for non-fatal probing calls.
	AllowFailure bool
	// IfMatch / IfNoneMatch set the ETag precondition headers used by
	// playlist reads and mutations.
	IfMatch     string
	IfNoneMatch string
}

// Response is a fully read API response.
type Response struct {
	Status int
	Body   []byte
	ETag   string
}

// Decode unmarshals the response body.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(r.Body, v), "failed to decode response")
}

// Dispatcher issues authenticated requests against the catalog API,
// refreshing the access token when needed.
type Dispatcher struct {
	cfg    Config
	client *http.Client
	flow   *auth.Flow
	now    func() time.Time

	mu    sync.Mutex
	token *auth.Token

	preview     *clientcredentials.Config
	previewMu   sync.Mutex
	previewTok  string
	previewType string
	previewExp  time.Time
}

// NewDispatcher creates a dispatcher. The token may be nil for anonymous use.
func NewDispatcher(cfg Config, flow *auth.Flow, token *auth.Token) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: 20 * time.Second},
		flow:   flow,
		now:    time.Now,
		token:  token,
		preview: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.AuthURL + "/token",
		},
	}
}

// Token returns the currently held user token, or nil.
func (d *Dispatcher) Token() *auth.Token {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.token
}

// SetToken replaces the held user token. Pass nil on logout.
func (d *Dispatcher) SetToken(tok *auth.Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.token = tok
}

// LoggedIn reports whether a user token is held.
func (d *Dispatcher) LoggedIn() bool {
	return d.Token() != nil
}

// CountryCode returns the country injected into catalog requests.
func (d *Dispatcher) CountryCode() string {
	if tok := d.Token(); tok != nil && tok.CountryCode != "" {
		return tok.CountryCode
	}
	return d.cfg.CountryCode
}

// Request issues one API request. An expired user token is refreshed before
// the call; a token that expires mid-flight triggers exactly one refresh and
// replay. Any further failure surfaces to the caller.
func (d *Dispatcher) Request(ctx context.Context, method, path string, opts RequestOptions) (*Response, error) {
	if err := d.ensureFreshToken(ctx, opts.NoAuth); err != nil {
		return nil, err
	}

	resp, err := d.do(ctx, method, path, opts)
	if err != nil && errors.Is(err, ErrTokenExpired) {
		if rerr := d.renewCredentials(ctx); rerr != nil {
			return nil, rerr
		}
		resp, err = d.do(ctx, method, path, opts)
		if err != nil && errors.Is(err, ErrTokenExpired) {
			// Replayed once already; surface as a hard error.
			var herr *HTTPError
			if errors.As(err, &herr) {
				return nil, herr
			}
			return nil, err
		}
	}
	return resp, err
}

// ensureFreshToken refreshes the held token preemptively when the wall clock
// says it is no longer valid.
func (d *Dispatcher) ensureFreshToken(ctx context.Context, noAuth bool) error {
	if noAuth {
		return nil
	}
	tok := d.Token()
	if tok == nil || tok.Valid(d.now()) {
		return nil
	}
	return d.refresh(ctx)
}

// renewCredentials refreshes the user token when one is held. Anonymous
// requests instead drop the cached preview token so the replay fetches a
// fresh one.
func (d *Dispatcher) renewCredentials(ctx context.Context) error {
	if d.LoggedIn() {
		return d.refresh(ctx)
	}
	d.previewMu.Lock()
	d.previewTok = ""
	d.previewMu.Unlock()
	return nil
}

func (d *Dispatcher) refresh(ctx context.Context) error {
	d.mu.Lock()
	tok := d.token
	d.mu.Unlock()
	if tok == nil {
		return errors.New("no token to refresh")
	}

	next, err := d.flow.Refresh(ctx, tok)
	if err != nil {
		return errors.Wrap(err, "token refresh failed")
	}
	d.SetToken(next)
	return nil
}

// do performs a single HTTP exchange without retry logic.
func (d *Dispatcher) do(ctx context.Context, method, path string, opts RequestOptions) (*Response, error) {
	base := d.cfg.BaseURL
	if opts.V2 {
		base = d.cfg.BaseURLV2
	}

	params := url.Values{}
	for k, vs := range opts.Params {
		params[k] = vs
	}
	if params.Get("countryCode") == "" {
		params.Set("countryCode", d.CountryCode())
	}
	if d.cfg.Locale != "" && params.Get("locale") == "" {
		params.Set("locale", d.cfg.Locale)
	}

	fullURL := base + "/" + strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var body io.Reader
	if opts.Data != nil {
		body = strings.NewReader(opts.Data.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	if opts.Data != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if opts.IfMatch != "" {
		req.Header.Set("If-Match", opts.IfMatch)
	}
	if opts.IfNoneMatch != "" {
		req.Header.Set("If-None-Match", opts.IfNoneMatch)
	}

	if err := d.authorize(ctx, req, opts.NoAuth); err != nil {
		return nil, err
	}

	httpResp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	resp := &Response{
		Status: httpResp.StatusCode,
		Body:   raw,
		ETag:   httpResp.Header.Get("ETag"),
	}

	if resp.Status >= 200 && resp.Status < 300 {
		return resp, nil
	}

	subStatus, userMsg := decodeAPIError(raw)

	zlog.Warn().
		Str("method", method).
		Str("url", fullURL).
		Int("status", resp.Status).
		Int("sub_status", subStatus).
		Str("user_message", userMsg).
		Msg("api request failed")

	if resp.Status == http.StatusUnauthorized && subStatus == subStatusTokenExpired && !opts.NoAuth {
		return resp, errors.Mark(
			&HTTPError{Status: resp.Status, SubStatus: subStatus, Method: method, URL: fullURL, Message: userMsg},
			ErrTokenExpired,
		)
	}

	if opts.AllowFailure {
		return resp, nil
	}
	return resp, &HTTPError{Status: resp.Status, SubStatus: subStatus, Method: method, URL: fullURL, Message: userMsg}
}

// authorize attaches the Authorization header: the user token when held, the
// anonymous preview token otherwise. Preview access keeps catalog browsing
// working with reduced capability (30-second previews).
func (d *Dispatcher) authorize(ctx context.Context, req *http.Request, noAuth bool) error {
	if !noAuth {
		if tok := d.Token(); tok != nil {
			req.Header.Set("Authorization", tok.TokenType+" "+tok.AccessToken)
			return nil
		}
	}

	typ, val, err := d.previewToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", typ+" "+val)
	return nil
}

// previewToken fetches (and caches) the client-credentials preview token.
func (d *Dispatcher) previewToken(ctx context.Context) (string, string, error) {
	d.previewMu.Lock()
	defer d.previewMu.Unlock()

	if d.previewTok != "" && d.now().Add(auth.ExpiryMargin).Before(d.previewExp) {
		return d.previewType, d.previewTok, nil
	}

	tok, err := d.preview.Token(ctx)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to obtain preview token")
	}
	d.previewTok = tok.AccessToken
	d.previewType = tok.Type()
	d.previewExp = tok.Expiry
	return d.previewType, d.previewTok, nil
}

// decodeAPIError extracts machine-readable fields from an error body.
func decodeAPIError(body []byte) (subStatus int, userMessage string) {
	var payload struct {
		SubStatus   int    `json:"subStatus"`
		UserMessage string `json:"userMessage"`
		Description string `json:"error_description"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return 0, ""
	}
	msg := payload.UserMessage
	if msg == "" {
		msg = payload.Description
	}
	return payload.SubStatus, msg
}
