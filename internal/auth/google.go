package auth

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"fintrack/internal/cache"
)

// ExternalIdentity is what the identity provider vouches for.
type ExternalIdentity struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// ExternalVerifier checks third-party ID tokens.
type ExternalVerifier interface {
	Verify(ctx context.Context, token string) (ExternalIdentity, error)
}

// GoogleVerifier validates Google-issued ID tokens against Google's
// published keys and the configured audience.
type GoogleVerifier struct {
	validator *idtoken.Validator
	audience  string
}

// GoogleConfig configures GoogleVerifier. CredentialsJSON is optional.
type GoogleConfig struct {
	Audience        string
	CredentialsJSON []byte
	HTTPClient      *http.Client
}

func NewGoogleVerifier(ctx context.Context, cfg GoogleConfig) (*GoogleVerifier, error) {
	if cfg.Audience == "" {
		return nil, fmt.Errorf("google audience is required")
	}
	var opts []option.ClientOption
	if len(cfg.CredentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create id token validator: %w", err)
	}
	return &GoogleVerifier{validator: v, audience: cfg.Audience}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (ExternalIdentity, error) {
	payload, err := g.validator.Validate(ctx, token, g.audience)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	id := ExternalIdentity{UID: payload.Subject}
	if v, ok := payload.Claims["email"].(string); ok {
		id.Email = v
	}
	if v, ok := payload.Claims["email_verified"].(bool); ok {
		id.EmailVerified = v
	}
	if v, ok := payload.Claims["name"].(string); ok {
		id.Name = v
	}
	if v, ok := payload.Claims["picture"].(string); ok {
		id.Picture = v
	}
	return id, nil
}

// CachedVerifier remembers successful verifications until the cache TTL
// lapses, sparing a signature check per request for a repeated token.
type CachedVerifier struct {
	next  ExternalVerifier
	cache cache.Cache[ExternalIdentity]
}

func NewCachedVerifier(next ExternalVerifier, c cache.Cache[ExternalIdentity]) *CachedVerifier {
	return &CachedVerifier{next: next, cache: c}
}

func (c *CachedVerifier) Verify(ctx context.Context, token string) (ExternalIdentity, error) {
	key := TokenFingerprint(token)
	if id, ok := c.cache.Get(key); ok {
		return id, nil
	}
	id, err := c.next.Verify(ctx, token)
	if err != nil {
		return ExternalIdentity{}, err
	}
	c.cache.Set(key, id)
	return id, nil
}
