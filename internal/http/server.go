package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// Dependencies are the collaborators the route groups call into. Only the
// services of enabled groups need to be set.
type Dependencies struct {
	Storage       *storage.SQLiteRepository
	Authenticator *auth.Authenticator
	// Google verifies ID tokens for POST /api/auth/google; nil disables it.
	Google       auth.ExternalVerifier
	Auth         *services.AuthService
	Users        *services.UserService
	Categories   *services.CategoryService
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Stats        *services.StatsService
}

type Server struct {
	http.Server
	cfg      *config.Config
	deps     Dependencies
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer mounts the route groups cfg enables, returning a ready-to-run
// http.Server.
func NewServer(cfg *config.Config, deps Dependencies, logger *log.Logger) (*Server, error) {
	if err := checkDependencies(cfg, deps); err != nil {
		return nil, err
	}

	httpLogger := logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector(logger)
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		logger:   httpLogger,
		detector: detector,
		tracer:   trace.NewMiddleware(httpLogger, detector.ExtractClientIP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerWindow: cfg.RateLimitPerMinute,
			Window:            time.Minute,
		}),
		started: time.Now(),
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.tracer.Middleware(detector.Middleware(headers.Middleware(s.routes()))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func checkDependencies(cfg *config.Config, deps Dependencies) error {
	var missing []string
	need := func(ok bool, what string) {
		if !ok {
			missing = append(missing, what)
		}
	}
	need(deps.Storage != nil, "storage")
	need(deps.Authenticator != nil, "authenticator")
	if cfg.ServiceEnabled(config.ServiceAuth) {
		need(deps.Auth != nil, "auth service")
	}
	if cfg.ServiceEnabled(config.ServiceUser) {
		need(deps.Users != nil, "user service")
	}
	if cfg.ServiceEnabled(config.ServiceCategory) {
		need(deps.Categories != nil, "category service")
	}
	if cfg.ServiceEnabled(config.ServiceTransaction) {
		need(deps.Transactions != nil, "transaction service")
	}
	if cfg.ServiceEnabled(config.ServiceBudget) {
		need(deps.Budgets != nil, "budget service")
	}
	if cfg.ServiceEnabled(config.ServiceStatistics) {
		need(deps.Stats != nil, "statistics service")
	}
	if len(missing) > 0 {
		return fmt.Errorf("http server: missing dependencies: %v", missing)
	}
	return nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("/", handleNotFound)

	protected := s.deps.Authenticator.Middleware(writeError)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protected(h))
	}

	if s.cfg.ServiceEnabled(config.ServiceAuth) {
		limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.writeRateLimited)
		public := func(pattern string, h http.HandlerFunc) {
			mux.Handle(pattern, limited(h))
		}
		public("POST /api/auth/google", s.handleGoogleSignIn)
		public("POST /api/auth/register", s.handleRegister)
		public("POST /api/auth/login", s.handleLogin)
		public("POST /api/auth/reset-password", s.handleResetPassword)
		public("POST /api/auth/verify-reset-password-otp", s.handleVerifyResetOTP)
		public("POST /api/auth/set-new-password", s.handleSetNewPassword)
		public("POST /api/auth/verify-email-otp", s.handleVerifyEmail)
		public("POST /api/auth/resend-otp", s.handleResendOTP)
		public("POST /api/auth/refresh", s.handleRefresh)
		mux.Handle("POST /api/auth/logout", limited(protected(http.HandlerFunc(s.handleLogout))))
	}

	if s.cfg.ServiceEnabled(config.ServiceUser) {
		handle("GET /api/user", s.handleGetUser)
		handle("PUT /api/user", s.handleUpdateUser)
		handle("DELETE /api/user", s.handleDeleteUser)

		files := http.StripPrefix(services.UploadsPath, http.FileServer(uploadsDir(s.cfg.UploadDir)))
		mux.Handle("GET "+services.UploadsPath, security.StaticAssetMiddleware(86400)(files))
	}

	if s.cfg.ServiceEnabled(config.ServiceCategory) {
		handle("GET /api/category", s.handleListCategories)
		handle("POST /api/category", s.handleCreateCategory)
		handle("GET /api/category/{id}", s.handleGetCategory)
		handle("PUT /api/category/{id}", s.handleUpdateCategory)
		handle("DELETE /api/category/{id}", s.handleDeleteCategory)
	}

	if s.cfg.ServiceEnabled(config.ServiceTransaction) {
		handle("GET /api/transaction", s.handleListTransactions)
		handle("POST /api/transaction", s.handleCreateTransaction)
		handle("GET /api/transaction/export", s.handleExportTransactions)
		handle("GET /api/transaction/{id}", s.handleGetTransaction)
		handle("PUT /api/transaction/{id}", s.handleUpdateTransaction)
		handle("DELETE /api/transaction/{id}", s.handleDeleteTransaction)
	}

	if s.cfg.ServiceEnabled(config.ServiceBudget) {
		handle("GET /api/budget", s.handleListBudgets)
		handle("POST /api/budget", s.handleCreateBudget)
		handle("GET /api/budget/monthly", s.handleMonthlyBudgetReport)
		handle("GET /api/budget/{id}", s.handleGetBudget)
		handle("PUT /api/budget/{id}", s.handleUpdateBudget)
		handle("DELETE /api/budget/{id}", s.handleDeleteBudget)
	}

	if s.cfg.ServiceEnabled(config.ServiceStatistics) {
		handle("GET /api/statistics/monthly", s.handleMonthlyStatistics)
		handle("GET /api/statistics/yearly", s.handleYearlyStatistics)
	}

	return mux
}

// Shutdown gracefully shuts down the server and the limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// ListenAndServe runs until Shutdown; http.ErrServerClosed is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr, "services", s.cfg.Services)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldPath, r.URL.Path)
	writeMessage(w, r, http.StatusTooManyRequests, "Too many requests, please try again later")
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, r, http.StatusNotFound, "Route not found")
}
