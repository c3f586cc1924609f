package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/auth"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

type seen struct {
	Service string `json:"service"`
	Path    string `json:"path"`
	UserID  string `json:"userId"`
	UserUID string `json:"userUid"`
	Request string `json:"requestId"`
}

func echoUpstream(t *testing.T, service string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/"+service+"/teapot" {
			w.WriteHeader(http.StatusTeapot)
			io.WriteString(w, `{"message":"short and stout"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(seen{
			Service: service,
			Path:    r.URL.Path,
			UserID:  r.Header.Get(HeaderUserID),
			UserUID: r.Header.Get(HeaderUserUID),
			Request: r.Header.Get("X-Request-ID"),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fakeGoogle struct{}

func (fakeGoogle) Verify(_ context.Context, token string) (auth.ExternalIdentity, error) {
	if token != "google-token" {
		return auth.ExternalIdentity{}, auth.ErrTokenInvalid
	}
	return auth.ExternalIdentity{UID: "g-123", Email: "g@example.com"}, nil
}

type fixture struct {
	handler http.Handler
	tokens  *auth.TokenManager
}

func newFixture(t *testing.T, external auth.ExternalVerifier, urls map[string]string) fixture {
	t.Helper()
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:     "0123456789abcdef0123456789abcdef",
		Issuer:     "fintrack-test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	require.NoError(t, err)

	cfg := &config.Config{ServiceURLs: urls}
	gw, err := New(cfg, auth.NewAuthenticator(tokens, external, nil, log.NewNop()), log.NewNop())
	require.NoError(t, err)
	return fixture{handler: gw.Handler(), tokens: tokens}
}

func (f fixture) do(t *testing.T, method, path, token string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	req.RemoteAddr = "203.0.113.7:5555"
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeSeen(t *testing.T, rec *httptest.ResponseRecorder) seen {
	t.Helper()
	var s seen
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s), rec.Body.String())
	return s
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["message"]
}

func allUpstreams(t *testing.T) map[string]string {
	urls := map[string]string{}
	for _, svc := range config.AllServices {
		urls[svc] = echoUpstream(t, svc).URL
	}
	return urls
}

func TestPublicAuthRoutesSkipVerification(t *testing.T) {
	f := newFixture(t, nil, allUpstreams(t))

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeSeen(t, rec)
	assert.Equal(t, "auth", got.Service)
	assert.Empty(t, got.UserID)
	assert.NotEmpty(t, got.Request)

	rec = f.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/google", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesCarryIdentity(t *testing.T) {
	f := newFixture(t, nil, allUpstreams(t))

	rec := f.do(t, http.MethodGet, "/api/budget/monthly?month=6", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/budget", "garbage", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid token", message(t, rec))

	token, _, err := f.tokens.Issue("user-42", "u@example.com", auth.PurposeAccess)
	require.NoError(t, err)

	spoofed := http.Header{HeaderUserID: {"someone-else"}, HeaderUserUID: {"forged"}}
	rec = f.do(t, http.MethodGet, "/api/budget/monthly?month=6", token, spoofed)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeSeen(t, rec)
	assert.Equal(t, "budget", got.Service)
	assert.Equal(t, "/api/budget/monthly", got.Path)
	assert.Equal(t, "user-42", got.UserID)
	assert.Empty(t, got.UserUID)
}

func TestGoogleIdentityForwardsUID(t *testing.T) {
	f := newFixture(t, fakeGoogle{}, allUpstreams(t))

	rec := f.do(t, http.MethodGet, "/api/statistics/yearly?year=2025", "google-token", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeSeen(t, rec)
	assert.Equal(t, "statistics", got.Service)
	assert.Equal(t, "g-123", got.UserUID)

	rec = f.do(t, http.MethodPost, "/api/auth/google", "google-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPrefixMatching(t *testing.T) {
	f := newFixture(t, nil, allUpstreams(t))
	token, _, err := f.tokens.Issue("user-1", "", auth.PurposeAccess)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/category", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "category", decodeSeen(t, rec).Service)

	rec = f.do(t, http.MethodGet, "/api/categoryx", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/unknown/thing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", message(t, rec))

	rec = f.do(t, http.MethodGet, "/uploads/photo.png", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user", decodeSeen(t, rec).Service)
}

func TestDownstreamStatusIsRelayed(t *testing.T) {
	f := newFixture(t, nil, allUpstreams(t))
	token, _, err := f.tokens.Issue("user-1", "", auth.PurposeAccess)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/transaction/teapot", token, nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", message(t, rec))
}

func TestUnreachableUpstream(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	f := newFixture(t, nil, map[string]string{config.ServiceCategory: deadURL})
	token, _, err := f.tokens.Issue("user-1", "", auth.PurposeAccess)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/category", token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", message(t, rec))
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: "0123456789abcdef", AccessTTL: time.Minute})
	require.NoError(t, err)
	authn := auth.NewAuthenticator(tokens, nil, nil, log.NewNop())

	_, err = New(&config.Config{}, authn, log.NewNop())
	assert.Error(t, err)

	_, err = New(&config.Config{ServiceURLs: map[string]string{"budget": "not a url"}}, authn, log.NewNop())
	assert.Error(t, err)

	_, err = New(&config.Config{ServiceURLs: map[string]string{"budget": "http://budget:8080"}}, nil, log.NewNop())
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, map[string]string{config.ServiceBudget: "http://budget:8080"})
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http://budget:8080")
}
