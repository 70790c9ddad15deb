package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soramane/tidecast/internal/api"
	"github.com/soramane/tidecast/internal/auth"
)

// testBackend is a fake catalog server plus the dispatcher pointed at it.
type testBackend struct {
	srv     *httptest.Server
	d       *api.Dispatcher
	calls   int
	lastReq *http.Request
}

func newTestBackend(t *testing.T, handler http.HandlerFunc) *testBackend {
	t.Helper()
	b := &testBackend{}

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.calls++
		b.lastReq = r
		handler(w, r)
	}))
	t.Cleanup(b.srv.Close)

	cfg := api.Config{
		BaseURL:      b.srv.URL,
		BaseURLV2:    b.srv.URL,
		AuthURL:      b.srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		CountryCode:  "US",
	}
	flow := auth.NewFlow(auth.Config{
		AuthURL:      b.srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
	}, &auth.MemoryTokenStore{})
	b.d = api.NewDispatcher(cfg, flow, &auth.Token{
		AccessToken: "tok",
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(time.Hour),
		UserID:      "42",
		CountryCode: "US",
	})
	return b
}

func userID42() string { return "42" }
