package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type noopPublisher struct{ logger *log.Logger }

func (p noopPublisher) PublishExportJob(ctx context.Context, userID string) error {
	p.logger.WarnContext(ctx, "AMQP disabled, export job dropped", log.FieldUserID, userID)
	return nil
}

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig("fintrack", (*config.Config).Validate)
	logger.Info("Starting fintrack", "services", cfg.Services, "auth_mode", cfg.AuthMode)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	tokens, err := cli.NewTokenManager(cfg)
	if err != nil {
		logger.Error("Failed to initialize token manager", log.FieldError, err)
		os.Exit(1)
	}
	mailer, err := cli.NewMailer(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize mail sender", log.FieldError, err)
		os.Exit(1)
	}

	var srv *apphttp.Server
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if srv != nil {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server shutdown error", log.FieldError, err)
			}
		}
	})

	google, err := cli.NewGoogleVerifier(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google sign-in", log.FieldError, err)
		os.Exit(1)
	}
	var external auth.ExternalVerifier
	if google != nil {
		external = google
		go google.Janitor.Run(ctx, time.Minute)
	}

	var publisher services.ExportPublisher = noopPublisher{logger: logger}
	if cfg.ServiceEnabled(config.ServiceTransaction) && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
	}

	users := services.NewUserService(repo, cfg.UploadDir, logger)
	authService := services.NewAuthService(repo, tokens, mailer, logger)
	deps := apphttp.Dependencies{
		Storage:       repo,
		Authenticator: auth.NewAuthenticator(tokens, external, users, logger),
		Google:        external,
		Auth:          authService,
		Users:         users,
		Categories:    services.NewCategoryService(repo, logger),
		Transactions:  services.NewTransactionService(repo, publisher, logger),
		Budgets:       services.NewBudgetService(repo, logger),
		Stats:         services.NewStatsService(repo, logger),
	}

	srv, err = apphttp.NewServer(cfg, deps, logger)
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	if cfg.ServiceEnabled(config.ServiceAuth) {
		go cli.RunEvery(ctx, cfg.OTPCleanupInterval, func(ctx context.Context) {
			n, err := authService.PurgeExpiredOTPs(ctx)
			if err != nil {
				logger.Error("Failed to purge expired codes", log.FieldError, err)
				return
			}
			if n > 0 {
				logger.Info("Expired codes purged", "count", n)
			}
		})
	}

	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
