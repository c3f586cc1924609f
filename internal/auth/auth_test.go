package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenConfig{
		Secret:     "0123456789abcdef0123456789abcdef",
		Issuer:     "fintrack-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		ResetTTL:   10 * time.Minute,
	})
	require.NoError(t, err)
	return m
}

func TestTokenRoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, exp, err := m.Issue("user-1", "a@example.com", PurposeAccess)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	claims, err := m.Verify(token, PurposeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestTokenPurposeIsEnforced(t *testing.T) {
	m := newTestManager(t)
	refresh, _, err := m.Issue("user-1", "", PurposeRefresh)
	require.NoError(t, err)

	_, err = m.Verify(refresh, PurposeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenExpiry(t *testing.T) {
	m := newTestManager(t)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := m.Issue("user-1", "", PurposeAccess)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(token, PurposeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenWrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, err := NewTokenManager(TokenConfig{Secret: "ffffffffffffffffffffffffffffffff", Issuer: "fintrack-test", AccessTTL: time.Minute})
	require.NoError(t, err)
	token, _, err := other.Issue("user-1", "", PurposeAccess)
	require.NoError(t, err)

	_, err = m.Verify(token, PurposeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestShortSecretRejected(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{Secret: "short"})
	assert.Error(t, err)
}

func TestIssuePairDistinctTokens(t *testing.T) {
	m := newTestManager(t)
	a, err := m.IssuePair("user-1", "")
	require.NoError(t, err)
	b, err := m.IssuePair("user-1", "")
	require.NoError(t, err)
	assert.NotEqual(t, a.RefreshToken, b.RefreshToken)
}

func TestPasswordAndOTP(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))
	assert.False(t, CheckPassword("", "secret1"))

	code, err := GenerateOTP()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)

	otpHash, err := HashOTP(code)
	require.NoError(t, err)
	assert.True(t, CheckOTP(otpHash, code))
	assert.False(t, CheckOTP(otpHash, "not-it"))
}

type fakeUsers struct {
	users map[string]core.User
}

func (f fakeUsers) GetUserByID(_ context.Context, id string) (core.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return core.User{}, core.NotFoundf("User not found")
}

func (f fakeUsers) GetUserByUID(_ context.Context, uid string) (core.User, error) {
	for _, u := range f.users {
		if u.UID == uid {
			return u, nil
		}
	}
	return core.User{}, core.NotFoundf("User not found")
}

type fakeExternal struct {
	calls int
	ids   map[string]ExternalIdentity
}

func (f *fakeExternal) Verify(_ context.Context, token string) (ExternalIdentity, error) {
	f.calls++
	if id, ok := f.ids[token]; ok {
		return id, nil
	}
	return ExternalIdentity{}, ErrTokenInvalid
}

func TestAuthenticatorMiddleware(t *testing.T) {
	m := newTestManager(t)
	users := fakeUsers{users: map[string]core.User{
		"active":   {ID: "active", UID: "g-1", Email: "a@example.com", IsActive: true},
		"disabled": {ID: "disabled", Email: "d@example.com"},
	}}
	external := &fakeExternal{ids: map[string]ExternalIdentity{"google-token": {UID: "g-1"}}}
	authn := NewAuthenticator(m, external, users, log.NewNop())

	activeToken, _, _ := m.Issue("active", "", PurposeAccess)
	disabledToken, _, _ := m.Issue("disabled", "", PurposeAccess)
	ghostToken, _, _ := m.Issue("ghost", "", PurposeAccess)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer nope", http.StatusForbidden, ""},
		{"local token", "Bearer " + activeToken, http.StatusOK, "active"},
		{"google token", "Bearer google-token", http.StatusOK, "active"},
		{"inactive user", "Bearer " + disabledToken, http.StatusForbidden, ""},
		{"unknown user", "Bearer " + ghostToken, http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := authn.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
				w.WriteHeader(core.KindOf(err).HTTPStatus())
			})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, ok := FromContext(r.Context())
				require.True(t, ok)
				seen = id.UserID
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/category", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, seen)
		})
	}
}

func TestAuthenticatorClaimsOnly(t *testing.T) {
	m := newTestManager(t)
	authn := NewAuthenticator(m, nil, nil, log.NewNop())
	token, _, _ := m.Issue("anyone", "x@example.com", PurposeAccess)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	id, err := authn.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "anyone", id.UserID)
	assert.Nil(t, id.User)
}

func TestCachedVerifier(t *testing.T) {
	external := &fakeExternal{ids: map[string]ExternalIdentity{"tok": {UID: "g-1"}}}
	v := NewCachedVerifier(external, cache.NewLRUCache[ExternalIdentity](10, time.Minute))

	for i := 0; i < 3; i++ {
		id, err := v.Verify(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "g-1", id.UID)
	}
	assert.Equal(t, 1, external.calls)

	_, err := v.Verify(context.Background(), "bad")
	assert.True(t, errors.Is(err, ErrTokenInvalid))
}
