package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	fmail "fintrack/internal/mail"
	"fintrack/internal/storage"
)

// OTPTTL is how long an emailed code stays valid.
const OTPTTL = 10 * time.Minute

// MaxOTPAttempts is how many wrong codes burn the stored one.
const MaxOTPAttempts = 5

// AuthService handles sign-up, sign-in, one-time codes and token rotation.
type AuthService struct {
	storage *storage.SQLiteRepository
	tokens  *auth.TokenManager
	mailer  fmail.Sender
	logger  *log.Logger
	now     func() time.Time
}

func NewAuthService(storage *storage.SQLiteRepository, tokens *auth.TokenManager, mailer fmail.Sender, logger *log.Logger) *AuthService {
	return &AuthService{
		storage: storage,
		tokens:  tokens,
		mailer:  mailer,
		logger:  logger.WithComponent(log.ComponentAuth),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SignIn is returned by every successful authentication.
type SignIn struct {
	User core.User `json:"user"`
	auth.Pair
}

// Account describes a user created by registration or by an operator.
type Account struct {
	Name          string
	Email         string
	Password      string
	Role          core.Role
	EmailVerified bool
}

// CreateAccount stores a new email/password user.
func (s *AuthService) CreateAccount(ctx context.Context, a Account) (core.User, error) {
	name := strings.TrimSpace(a.Name)
	email := core.NormalizeEmail(a.Email)
	if name == "" {
		return core.User{}, core.Validationf("Name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return core.User{}, core.Validationf("A valid email is required")
	}
	if len(a.Password) < auth.MinPasswordLength {
		return core.User{}, core.Validationf("Password must be at least %d characters", auth.MinPasswordLength)
	}
	hash, err := auth.HashPassword(a.Password)
	if err != nil {
		return core.User{}, core.Internal("hash password", err)
	}

	u := core.User{
		Email:         email,
		Name:          name,
		PasswordHash:  hash,
		Provider:      core.ProviderEmail,
		Role:          a.Role,
		IsActive:      true,
		EmailVerified: a.EmailVerified,
	}
	if err := s.storage.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return core.User{}, core.Conflictf("Email is already registered")
		}
		return core.User{}, storageError(err, "User not found")
	}
	s.logger.InfoContext(ctx, "Account created", log.FieldUserID, u.ID, "role", u.Role)
	return u, nil
}

// Register creates an account and emails a verification code. A delivery
// failure is logged; the code can be requested again.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (core.User, error) {
	u, err := s.CreateAccount(ctx, Account{Name: name, Email: email, Password: password})
	if err != nil {
		return core.User{}, err
	}
	if err := s.sendOTP(ctx, u, core.PurposeVerification); err != nil {
		s.logger.ErrorContext(ctx, "Verification code not sent", log.FieldUserID, u.ID, log.FieldError, err)
	}
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (SignIn, error) {
	u, err := s.storage.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !auth.CheckPassword(u.PasswordHash, password)) {
		return SignIn{}, core.Unauthenticatedf("Invalid email or password")
	}
	if err != nil {
		return SignIn{}, storageError(err, "User not found")
	}
	if !u.IsActive {
		return SignIn{}, core.Forbiddenf("Account is deactivated")
	}
	return s.signIn(ctx, u)
}

// GoogleSignIn signs in the holder of a verified Google identity, creating
// the user on first sight. An existing email account is linked to the
// Google identity.
func (s *AuthService) GoogleSignIn(ctx context.Context, ext auth.ExternalIdentity) (SignIn, error) {
	if ext.UID == "" {
		return SignIn{}, core.Forbiddenf("Invalid token")
	}
	u, err := s.storage.GetUserByUID(ctx, ext.UID)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		u, err = s.linkOrCreateGoogleUser(ctx, ext)
		if err != nil {
			return SignIn{}, err
		}
	default:
		return SignIn{}, storageError(err, "User not found")
	}

	if !u.IsActive {
		return SignIn{}, core.Forbiddenf("Account is deactivated")
	}
	if ext.Name != "" {
		u.Name = ext.Name
	}
	if ext.Picture != "" && !strings.HasPrefix(u.PhotoURL, UploadsPath) {
		u.PhotoURL = ext.Picture
	}
	if ext.EmailVerified {
		u.EmailVerified = true
	}
	return s.signIn(ctx, u)
}

func (s *AuthService) linkOrCreateGoogleUser(ctx context.Context, ext auth.ExternalIdentity) (core.User, error) {
	if ext.Email != "" {
		u, err := s.storage.GetUserByEmail(ctx, ext.Email)
		if err == nil {
			u.UID = ext.UID
			s.logger.InfoContext(ctx, "Google identity linked to existing account", log.FieldUserID, u.ID)
			return u, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return core.User{}, storageError(err, "User not found")
		}
	}

	u := core.User{
		UID:           ext.UID,
		Email:         ext.Email,
		Name:          ext.Name,
		PhotoURL:      ext.Picture,
		Provider:      core.ProviderGoogle,
		EmailVerified: ext.EmailVerified,
		IsActive:      true,
	}
	if u.Email == "" {
		return core.User{}, core.Validationf("Google account has no email address")
	}
	if err := s.storage.CreateUser(ctx, &u); err != nil {
		return core.User{}, storageError(err, "User not found")
	}
	s.logger.InfoContext(ctx, "Google user created", log.FieldUserID, u.ID)
	return u, nil
}

// signIn stamps the login time and issues a stored token pair.
func (s *AuthService) signIn(ctx context.Context, u core.User) (SignIn, error) {
	now := s.now()
	u.LastLogin = &now
	if err := s.storage.UpdateUser(ctx, &u); err != nil {
		return SignIn{}, storageError(err, "User not found")
	}
	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return SignIn{}, err
	}
	s.logger.InfoContext(ctx, "User signed in", log.FieldUserID, u.ID, "provider", u.Provider)
	return SignIn{User: u, Pair: pair}, nil
}

func (s *AuthService) issuePair(ctx context.Context, u core.User) (auth.Pair, error) {
	pair, err := s.tokens.IssuePair(u.ID, u.Email)
	if err != nil {
		return auth.Pair{}, core.Internal("issue tokens", err)
	}
	err = s.storage.AddRefreshToken(ctx, u.ID, auth.TokenFingerprint(pair.RefreshToken), pair.RefreshExpiresAt)
	if err != nil {
		return auth.Pair{}, storageError(err, "User not found")
	}
	return pair, nil
}

// Refresh exchanges a live refresh token for a new pair. The old refresh
// token stops working.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (auth.Pair, error) {
	if refreshToken == "" {
		return auth.Pair{}, core.Validationf("Refresh token is required")
	}
	claims, err := s.tokens.Verify(refreshToken, auth.PurposeRefresh)
	if err != nil {
		return auth.Pair{}, core.Forbiddenf("Invalid refresh token")
	}
	fingerprint := auth.TokenFingerprint(refreshToken)
	ok, err := s.storage.HasRefreshToken(ctx, claims.Subject, fingerprint)
	if err != nil {
		return auth.Pair{}, storageError(err, "")
	}
	if !ok {
		return auth.Pair{}, core.Forbiddenf("Invalid refresh token")
	}

	u, err := s.storage.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return auth.Pair{}, core.Forbiddenf("User not found")
		}
		return auth.Pair{}, storageError(err, "User not found")
	}
	if !u.IsActive {
		return auth.Pair{}, core.Forbiddenf("Account is deactivated")
	}
	if err := s.storage.DeleteRefreshToken(ctx, u.ID, fingerprint); err != nil {
		return auth.Pair{}, core.Forbiddenf("Invalid refresh token")
	}
	return s.issuePair(ctx, u)
}

// Logout revokes one refresh token of the caller. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	if refreshToken == "" {
		return core.Validationf("Refresh token is required")
	}
	err := s.storage.DeleteRefreshToken(ctx, userID, auth.TokenFingerprint(refreshToken))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storageError(err, "")
	}
	s.logger.InfoContext(ctx, "User logged out", log.FieldUserID, userID)
	return nil
}

// RequestPasswordReset emails a password code to a known address.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return storageError(err, "User not found")
	}
	if err := s.sendOTP(ctx, u, core.PurposePassword); err != nil {
		return core.Internal("send password reset code", err)
	}
	return nil
}

// VerifyResetOTP consumes a password code and returns a short-lived token
// that authorizes SetNewPassword.
func (s *AuthService) VerifyResetOTP(ctx context.Context, email, code string) (string, time.Time, error) {
	u, err := s.consumeOTP(ctx, email, code, core.PurposePassword)
	if err != nil {
		return "", time.Time{}, err
	}
	token, exp, err := s.tokens.Issue(u.ID, u.Email, auth.PurposeReset)
	if err != nil {
		return "", time.Time{}, core.Internal("issue reset token", err)
	}
	return token, exp, nil
}

// SetNewPassword replaces the password and signs out every session.
func (s *AuthService) SetNewPassword(ctx context.Context, resetToken, password string) error {
	claims, err := s.tokens.Verify(resetToken, auth.PurposeReset)
	if err != nil {
		return core.Forbiddenf("Invalid or expired reset token")
	}
	if len(password) < auth.MinPasswordLength {
		return core.Validationf("Password must be at least %d characters", auth.MinPasswordLength)
	}
	u, err := s.storage.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return storageError(err, "User not found")
	}
	if u.PasswordHash, err = auth.HashPassword(password); err != nil {
		return core.Internal("hash password", err)
	}
	if err := s.storage.UpdateUser(ctx, &u); err != nil {
		return storageError(err, "User not found")
	}
	if err := s.storage.DeleteUserRefreshTokens(ctx, u.ID); err != nil {
		return storageError(err, "")
	}
	s.logger.InfoContext(ctx, "Password changed", log.FieldUserID, u.ID)
	return nil
}

// VerifyEmail consumes a verification code and marks the address verified.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (core.User, error) {
	u, err := s.consumeOTP(ctx, email, code, core.PurposeVerification)
	if err != nil {
		return core.User{}, err
	}
	u.EmailVerified = true
	if err := s.storage.UpdateUser(ctx, &u); err != nil {
		return core.User{}, storageError(err, "User not found")
	}
	s.logger.InfoContext(ctx, "Email verified", log.FieldUserID, u.ID)
	return u, nil
}

// ResendOTP issues a fresh code for purpose, replacing any earlier one.
func (s *AuthService) ResendOTP(ctx context.Context, email, purpose string) error {
	p, err := core.ParseOTPPurpose(purpose)
	if err != nil {
		return core.Validationf("Purpose must be password or verification")
	}
	u, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return storageError(err, "User not found")
	}
	if p == core.PurposeVerification && u.EmailVerified {
		return core.Validationf("Email is already verified")
	}
	if err := s.sendOTP(ctx, u, p); err != nil {
		return core.Internal("send code", err)
	}
	return nil
}

// PurgeExpiredOTPs removes codes past their expiry.
func (s *AuthService) PurgeExpiredOTPs(ctx context.Context) (int64, error) {
	return s.storage.DeleteExpiredOTPs(ctx, s.now())
}

func (s *AuthService) sendOTP(ctx context.Context, u core.User, purpose core.OTPPurpose) error {
	code, err := auth.GenerateOTP()
	if err != nil {
		return err
	}
	hash, err := auth.HashOTP(code)
	if err != nil {
		return err
	}
	otp := core.OTP{Email: u.Email, Purpose: purpose, CodeHash: hash, ExpiresAt: s.now().Add(OTPTTL)}
	if err := s.storage.UpsertOTP(ctx, &otp); err != nil {
		return err
	}

	msg, err := fmail.OTPMessage(u.Email, u.Name, code, string(purpose), int(OTPTTL/time.Minute))
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "OTP issued", log.FieldUserID, u.ID, "purpose", purpose)
	return nil
}

// consumeOTP checks code against the stored one for purpose and deletes it
// on success. Expired codes are deleted too, as are codes that reach
// MaxOTPAttempts wrong guesses.
func (s *AuthService) consumeOTP(ctx context.Context, email, code string, purpose core.OTPPurpose) (core.User, error) {
	invalid := core.Validationf("Invalid or expired OTP")
	if strings.TrimSpace(code) == "" {
		return core.User{}, core.Validationf("OTP is required")
	}
	otp, err := s.storage.GetOTP(ctx, email, purpose)
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, invalid
	}
	if err != nil {
		return core.User{}, storageError(err, "")
	}
	if otp.Expired(s.now()) {
		if err := s.storage.DeleteOTP(ctx, otp.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete expired OTP", log.FieldError, err)
		}
		return core.User{}, invalid
	}
	if !auth.CheckOTP(otp.CodeHash, strings.TrimSpace(code)) {
		attempts, err := s.storage.RecordOTPFailure(ctx, otp.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return core.User{}, invalid
		}
		if err != nil {
			return core.User{}, storageError(err, "")
		}
		if attempts >= MaxOTPAttempts {
			if err := s.storage.DeleteOTP(ctx, otp.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return core.User{}, storageError(err, "")
			}
			s.logger.WarnContext(ctx, "OTP revoked after repeated failures", "purpose", purpose, "attempts", attempts)
		}
		return core.User{}, invalid
	}

	u, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return core.User{}, storageError(err, "User not found")
	}
	if err := s.storage.DeleteOTP(ctx, otp.ID); err != nil {
		return core.User{}, storageError(err, "")
	}
	return u, nil
}
