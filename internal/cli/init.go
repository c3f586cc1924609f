// Package cli provides the process bootstrap shared by the fintrack binaries
// and the fintrackctl admin commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/mail"
	"fintrack/internal/storage"
)

// LoadEnvFile loads a .env file for local development when one exists.
func LoadEnvFile() {
	_ = config.LoadDotEnv()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration, sets up logging and runs
// validate. It exits the process when validation fails.
func LoadAndValidateConfig(component string, validate func(*config.Config) error) (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite opens the repository, applying migrations, or exits.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

func NewTokenManager(cfg *config.Config) (*auth.TokenManager, error) {
	return auth.NewTokenManager(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		ResetTTL:   cfg.ResetTokenTTL,
	})
}

// NewMailer returns an SMTP sender when SMTP is configured, otherwise a
// sender that only logs.
func NewMailer(cfg *config.Config, logger *log.Logger) (mail.Sender, error) {
	if !cfg.SMTPConfigured() {
		logger.Warn("SMTP not configured, outgoing mail will only be logged")
		return mail.NewLogSender(logger), nil
	}
	return mail.NewSMTPSender(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger)
}

// GoogleVerifier is the cached Google ID-token verifier together with the
// janitor that expires its cache entries.
type GoogleVerifier struct {
	auth.ExternalVerifier
	Janitor *cache.Janitor
}

// NewGoogleVerifier returns nil when AUTH_MODE is not google.
func NewGoogleVerifier(ctx context.Context, cfg *config.Config, logger *log.Logger) (*GoogleVerifier, error) {
	if cfg.AuthMode != config.AuthModeGoogle {
		return nil, nil
	}
	creds, err := cfg.GoogleCredentials()
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewGoogleVerifier(ctx, auth.GoogleConfig{
		Audience:        cfg.GoogleClientID,
		CredentialsJSON: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("google verifier: %w", err)
	}
	identities := cache.NewLRUCache[auth.ExternalIdentity](cfg.IdentityCacheSize, cfg.IdentityCacheTTL)
	logger.Info("Google sign-in enabled",
		"client_id", cfg.GoogleClientID,
		"cache_size", cfg.IdentityCacheSize,
		"cache_ttl", cfg.IdentityCacheTTL.String())
	return &GoogleVerifier{
		ExternalVerifier: auth.NewCachedVerifier(verifier, identities),
		Janitor:          cache.NewJanitor(logger, identities),
	}, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. Once
// the signal arrives cleanup runs with a context bounded by timeout, and
// the returned channel is closed when it has finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// RunEvery calls fn every interval until ctx is done.
func RunEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
