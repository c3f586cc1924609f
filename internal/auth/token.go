package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose scopes a token to one use.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
	PurposeReset   Purpose = "reset"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims are the fields carried by locally issued tokens.
type Claims struct {
	Email   string  `json:"email,omitempty"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenConfig sets the signing secret and lifetimes.
type TokenConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
}

// TokenManager issues and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    map[Purpose]time.Duration
	now    func() time.Time
}

func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.Secret) < 16 {
		return nil, fmt.Errorf("token secret must be at least 16 bytes")
	}
	return &TokenManager{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl: map[Purpose]time.Duration{
			PurposeAccess:  cfg.AccessTTL,
			PurposeRefresh: cfg.RefreshTTL,
			PurposeReset:   cfg.ResetTTL,
		},
		now: time.Now,
	}, nil
}

// Issue signs a token for subject with the lifetime configured for purpose.
func (m *TokenManager) Issue(subject, email string, purpose Purpose) (string, time.Time, error) {
	ttl, ok := m.ttl[purpose]
	if !ok || ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("no lifetime configured for %s tokens", purpose)
	}
	now := m.now()
	expires := now.Add(ttl)
	claims := Claims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks signature, issuer, expiry and purpose.
func (m *TokenManager) Verify(token string, purpose Purpose) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrTokenInvalid, purpose, claims.Purpose)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}

// Pair is what a successful sign-in returns.
type Pair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// IssuePair signs a fresh access and refresh token for subject.
func (m *TokenManager) IssuePair(subject, email string) (Pair, error) {
	access, accessExp, err := m.Issue(subject, email, PurposeAccess)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := m.Issue(subject, email, PurposeRefresh)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}
