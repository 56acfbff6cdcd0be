package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"intranet-portal/pkg/auth"
	authmem "intranet-portal/pkg/auth/memstore"
	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/manual"
	manualmem "intranet-portal/pkg/manual/memstore"
	"intranet-portal/pkg/poll"
	pollmem "intranet-portal/pkg/poll/memstore"
	"intranet-portal/pkg/treasury"
	treasurymem "intranet-portal/pkg/treasury/memstore"

	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"
)

var (
	admin     = identity.Identity{UserID: 1, Name: "Ada", Role: identity.RoleAdmin}
	member    = identity.Identity{UserID: 2, Name: "Mia", Role: identity.RoleMember}
	treasurer = identity.Identity{UserID: 3, Name: "Tess", Role: identity.RoleTreasurer}
)

type fixture struct {
	t       *testing.T
	ledger  *treasurymem.Store
	users   *authmem.Store
	authSvc *auth.Service
	tokens  *auth.Tokens
	server  *Server
}

func newFixture(t *testing.T, ping func(context.Context) error) *fixture {
	t.Helper()

	tokens, err := auth.NewTokens("api-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens failed: %v", err)
	}
	users := authmem.New()
	authSvc, err := auth.NewService(auth.Dependencies{
		Store:  users,
		Hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens: tokens,
	})
	if err != nil {
		t.Fatalf("auth.NewService failed: %v", err)
	}

	ledger := treasurymem.New()
	config := DefaultServerConfig()
	config.MaxUploadBytes = 1024

	server, err := NewServer(Dependencies{
		Treasury: treasury.NewService(treasury.Dependencies{Store: ledger}),
		Manual: manual.NewService(manual.Dependencies{
			Store:          manualmem.New(),
			Files:          afero.NewBasePathFs(afero.NewMemMapFs(), "/uploads"),
			MaxUploadBytes: config.MaxUploadBytes,
		}),
		Polls:  poll.NewService(pollmem.New(), nil, nil),
		Auth:   authSvc,
		Tokens: tokens,
		Ping:   ping,
	}, config)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	return &fixture{t: t, ledger: ledger, users: users, authSvc: authSvc, tokens: tokens, server: server}
}

// do sends a request as actor; the anonymous identity sends no token.
func (f *fixture) do(actor identity.Identity, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	f.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if actor.Authenticated() {
		token, _, err := f.tokens.Issue(actor)
		if err != nil {
			f.t.Fatalf("Issue failed: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func (f *fixture) doJSON(actor identity.Identity, method, path string, payload interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			f.t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return f.do(actor, method, path, "application/json", body)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t, func(context.Context) error { return nil })

	w := f.do(identity.Anonymous, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	decodeBody(t, w, &response)
	if response["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", response["status"])
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected a request id header")
	}
}

func TestServer_Health_StoreDown(t *testing.T) {
	f := newFixture(t, func(context.Context) error { return errors.New("connection refused") })

	w := f.do(identity.Anonymous, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Error("Expected the cause to stay out of the response")
	}
}

func TestServer_RequestIDPassthrough(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("Expected incoming request id to be kept, got %q", got)
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(member, http.MethodGet, "/nowhere", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"ok":false,"message":"Not found."}` {
		t.Errorf("Unexpected body %s", got)
	}
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(t, nil)

	f.do(identity.Anonymous, http.MethodGet, "/health", "", nil)
	f.do(member, http.MethodGet, "/treasury/42", "", nil)

	w := f.do(identity.Anonymous, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`portal_http_requests_total{code="200",method="GET",route="/health"} 1`,
		`portal_http_requests_total{code="404",method="GET",route="/treasury/{id}"} 1`,
		`portal_http_request_duration_seconds_bucket`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics to contain %q", want)
		}
	}
}

func TestServer_AnonymousIsForbidden(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/treasury", "/manual", "/polls", "/users/pending"} {
		w := f.do(identity.Anonymous, http.MethodGet, path, "", nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403, got %d", path, w.Code)
		}
	}
}

func TestServer_InvalidToken(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/treasury", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected an invalid token to act as anonymous, got %d", w.Code)
	}
}

func TestServer_BadJSON(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(member, http.MethodPost, "/treasury", "application/json", strings.NewReader("{"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"ok":false,"message":"Invalid request body."}` {
		t.Errorf("Unexpected body %s", got)
	}
}
