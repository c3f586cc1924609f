package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/gateway"
	"fintrack/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig("gateway", (*config.Config).ValidateGateway)

	tokens, err := cli.NewTokenManager(cfg)
	if err != nil {
		logger.Error("Failed to initialize token manager", log.FieldError, err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Gateway shutdown error", log.FieldError, err)
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

	// The gateway has no database: identities come from the token alone.
	gw, err := gateway.New(cfg, auth.NewAuthenticator(tokens, external, nil, logger), logger)
	if err != nil {
		logger.Error("Failed to build gateway", log.FieldError, err)
		os.Exit(1)
	}
	srv.Handler = gw.Handler()

	logger.Info("Gateway listening", "addr", srv.Addr, "auth_mode", cfg.AuthMode)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Gateway error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Gateway stopped gracefully")
}
