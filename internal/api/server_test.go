package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/craftops/craftwatch/internal/properties"
	"github.com/craftops/craftwatch/internal/rcon"
	"github.com/craftops/craftwatch/internal/updater"
)

func newTestServer(t *testing.T, opts *Options) *Server {
	t.Helper()
	if opts == nil {
		opts = &Options{}
	}
	if opts.Rcon == nil {
		opts.Rcon = rcon.NewManager(nil)
	}
	if opts.Properties == nil {
		opts.Properties = func() *properties.File { return nil }
	}
	return NewServer(opts)
}

func doRequest(t *testing.T, s *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, req)
	return rec
}

func basicAuth(user, pass string) http.Header {
	encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return http.Header{"Authorization": {"Basic " + encoded}}
}

func TestHealthWithoutAuth(t *testing.T) {
	s := newTestServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})

	rec := doRequest(t, s, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("health status field = %q, want %q", body.Status, "ok")
	}
}

func TestVersionWithoutAuth(t *testing.T) {
	s := newTestServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})

	rec := doRequest(t, s, http.MethodGet, "/api/version", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("version status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})

	rec := doRequest(t, s, http.MethodPost, "/api/rcon/disconnect", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatal("expected WWW-Authenticate challenge header")
	}
}

func TestAuthWrongPassword(t *testing.T) {
	s := newTestServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})

	rec := doRequest(t, s, http.MethodPost, "/api/rcon/disconnect", basicAuth("admin", "nope"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthHeaderAccepted(t *testing.T) {
	s := newTestServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})

	rec := doRequest(t, s, http.MethodPost, "/api/rcon/disconnect", basicAuth("admin", "secret"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestAuthQueryParamFallback(t *testing.T) {
	s := newTestServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})

	encoded := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	rec := doRequest(t, s, http.MethodGet, "/api/rcon/status?auth="+encoded, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var body struct {
		Configured bool `json:"configured"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode rcon status body: %v", err)
	}
	if body.Configured {
		t.Fatal("rcon should report unconfigured without server.properties")
	}
}

func TestNoAuthConfiguredSkipsMiddleware(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/rcon/disconnect", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

type disabledUpdater struct{}

func (disabledUpdater) CheckForUpdate(context.Context) (*updater.UpdateInfo, error) { return nil, nil }
func (disabledUpdater) ApplyUpdate(context.Context) error                           { return nil }
func (disabledUpdater) Rollback(context.Context) error                              { return nil }
func (disabledUpdater) GetStatus(context.Context) *updater.Status                   { return &updater.Status{} }
func (disabledUpdater) IsEnabled() bool                                             { return false }
func (disabledUpdater) DisabledReason() string                                      { return "binary location not writable" }

func TestUpdateRoutesDisabled(t *testing.T) {
	s := newTestServer(t, &Options{Updater: disabledUpdater{}})

	rec := doRequest(t, s, http.MethodGet, "/api/update/check", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})

	req := httptest.NewRequest(http.MethodOptions, "/api/server/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatal("expected Access-Control-Allow-Origin header")
	}
}
