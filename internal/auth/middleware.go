package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// UserLookup resolves verified subjects to stored users. A missing user must
// be reported as a core.KindNotFound error.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (core.User, error)
	GetUserByUID(ctx context.Context, uid string) (core.User, error)
}

// Authenticator turns a bearer credential into an Identity. Local access
// tokens are always accepted; Google ID tokens are accepted when an external
// verifier is configured. With a nil UserLookup only the token is checked,
// which is how the gateway runs.
type Authenticator struct {
	tokens   *TokenManager
	external ExternalVerifier
	users    UserLookup
	logger   *log.Logger
}

func NewAuthenticator(tokens *TokenManager, external ExternalVerifier, users UserLookup, logger *log.Logger) *Authenticator {
	return &Authenticator{
		tokens:   tokens,
		external: external,
		users:    users,
		logger:   logger.WithComponent(log.ComponentAuth),
	}
}

// BearerToken extracts the credential from an Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", core.Unauthenticatedf("Authorization header missing")
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", core.Unauthenticatedf("Authorization header must be Bearer <token>")
	}
	return token, nil
}

// Authenticate verifies the request credential.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	token, err := BearerToken(r)
	if err != nil {
		return Identity{}, err
	}
	ctx := r.Context()

	if a.tokens != nil {
		claims, err := a.tokens.Verify(token, PurposeAccess)
		switch {
		case err == nil:
			return a.resolveLocal(ctx, claims)
		case errors.Is(err, ErrTokenExpired):
			return Identity{}, core.Forbiddenf("Token expired")
		case a.external == nil:
			return Identity{}, core.Forbiddenf("Invalid token")
		}
	}

	if a.external == nil {
		return Identity{}, core.Forbiddenf("Invalid token")
	}
	ext, err := a.external.Verify(ctx, token)
	if err != nil {
		a.logger.DebugContext(ctx, "External token rejected", log.FieldError, err)
		return Identity{}, core.Forbiddenf("Invalid token")
	}
	return a.resolveExternal(ctx, ext)
}

func (a *Authenticator) resolveLocal(ctx context.Context, claims *Claims) (Identity, error) {
	id := Identity{UserID: claims.Subject, Email: claims.Email}
	if a.users == nil {
		return id, nil
	}
	user, err := a.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Identity{}, a.lookupError(ctx, err)
	}
	return a.withUser(id, user)
}

func (a *Authenticator) resolveExternal(ctx context.Context, ext ExternalIdentity) (Identity, error) {
	id := Identity{UID: ext.UID, Email: ext.Email, Name: ext.Name, Picture: ext.Picture}
	if a.users == nil {
		return id, nil
	}
	user, err := a.users.GetUserByUID(ctx, ext.UID)
	if err != nil {
		return Identity{}, a.lookupError(ctx, err)
	}
	return a.withUser(id, user)
}

func (a *Authenticator) withUser(id Identity, user core.User) (Identity, error) {
	if !user.IsActive {
		return Identity{}, core.Forbiddenf("Account is deactivated")
	}
	id.UserID = user.ID
	id.UID = user.UID
	id.Email = user.Email
	id.User = &user
	return id, nil
}

func (a *Authenticator) lookupError(ctx context.Context, err error) error {
	if core.KindOf(err) == core.KindNotFound {
		return core.Forbiddenf("User not found")
	}
	a.logger.ErrorContext(ctx, "User lookup failed", log.FieldError, err)
	return core.Internal("user lookup failed", err)
}

// Middleware authenticates every request, storing the identity in the
// context. Failures go to onError, which writes the response.
func (a *Authenticator) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.Authenticate(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			ctx := WithIdentity(r.Context(), id)
			logger := log.FromContext(ctx).With(log.FieldUserID, id.UserID)
			next.ServeHTTP(w, r.WithContext(log.NewContext(ctx, logger)))
		})
	}
}
