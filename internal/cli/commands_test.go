package cli

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/auth"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

type harness struct {
	env    *Env
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T, stdin string) *harness {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &harness{
		env: &Env{
			Config: &config.Config{
				SQLiteDBPath:   filepath.Join(t.TempDir(), "fintrack.db"),
				ReportCurrency: "USD",
			},
			Logger: log.NewNop(),
			Stdin:  strings.NewReader(stdin),
			Stdout: stdout,
			Stderr: stderr,
		},
		stdout: stdout,
		stderr: stderr,
	}
}

// run executes the named command the way the commander would.
func (h *harness) run(t *testing.T, name string, args ...string) subcommands.ExitStatus {
	t.Helper()
	for _, cmd := range Commands(h.env) {
		if cmd.Name() != name {
			continue
		}
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		cmd.SetFlags(fs)
		require.NoError(t, fs.Parse(args))
		return cmd.Execute(context.Background(), fs)
	}
	t.Fatalf("unknown command %s", name)
	return subcommands.ExitFailure
}

func (h *harness) repo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(h.env.Config.SQLiteDBPath, log.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrate(t *testing.T) {
	h := newHarness(t, "")
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "migrate"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "schema version 2")
	_, err := os.Stat(h.env.Config.SQLiteDBPath)
	assert.NoError(t, err)

	h.stdout.Reset()
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "migrate", "-down", "2"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "schema version 0")
}

func TestAddUserReadsPasswordFromStdin(t *testing.T) {
	h := newHarness(t, "hunter22\n")
	status := h.run(t, "adduser", "-email", "Admin@Example.com", "-name", "Admin", "-role", "admin")
	require.Equal(t, subcommands.ExitSuccess, status, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "User admin@example.com created")

	u, err := h.repo(t).GetUserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdmin, u.Role)
	assert.True(t, u.EmailVerified)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "hunter22"))
}

func TestAddUserRejectsBadInput(t *testing.T) {
	h := newHarness(t, "")
	assert.Equal(t, subcommands.ExitUsageError, h.run(t, "adduser", "-email", "a@example.com"))

	h = newHarness(t, "")
	assert.Equal(t, subcommands.ExitFailure, h.run(t, "adduser", "-email", "a@example.com", "-name", "A", "-role", "root", "-password", "secret1"))
	assert.Contains(t, h.stderr.String(), "unknown role")

	h = newHarness(t, "")
	assert.Equal(t, subcommands.ExitFailure, h.run(t, "adduser", "-email", "a@example.com", "-name", "A", "-password", "123"))
	assert.Contains(t, h.stderr.String(), "Password must be at least 6 characters")

	h = newHarness(t, "")
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "adduser", "-email", "a@example.com", "-name", "A", "-password", "secret1"))
	assert.Equal(t, subcommands.ExitFailure, h.run(t, "adduser", "-email", "a@example.com", "-name", "A", "-password", "secret1"))
	assert.Contains(t, h.stderr.String(), "Email is already registered")
}

func seedTransactions(t *testing.T, repo *storage.SQLiteRepository) core.User {
	t.Helper()
	ctx := context.Background()
	u := core.User{Email: "ann@example.com", Name: "Ann", IsActive: true}
	require.NoError(t, repo.CreateUser(ctx, &u))

	food, _, err := repo.FindOrCreateCategory(ctx, u.ID, "Food", core.Expense)
	require.NoError(t, err)
	salary, _, err := repo.FindOrCreateCategory(ctx, u.ID, "Salary", core.Income)
	require.NoError(t, err)

	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for _, tx := range []core.Transaction{
		{UserID: u.ID, CategoryID: salary.ID, Type: core.Income, Amount: core.NewMoney(250000), Date: day},
		{UserID: u.ID, CategoryID: food.ID, Type: core.Expense, Amount: core.NewMoney(4550), Date: day.AddDate(0, 0, 1)},
	} {
		require.NoError(t, repo.CreateTransaction(ctx, &tx))
	}
	return u
}

func TestExportToStdout(t *testing.T) {
	h := newHarness(t, "")
	u := seedTransactions(t, h.repo(t))

	status := h.run(t, "export", "-user", u.ID, "-o", "-")
	require.Equal(t, subcommands.ExitSuccess, status, h.stderr.String())
	csv := h.stdout.String()
	assert.Contains(t, csv, "Total Income,2500.00")
	assert.Contains(t, csv, "2025-06-03,Food")
}

func TestExportToFile(t *testing.T) {
	h := newHarness(t, "")
	seedTransactions(t, h.repo(t))
	out := filepath.Join(t.TempDir(), "report.csv")

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "export", "-email", "ANN@example.com", "-o", out), h.stderr.String())
	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(content), "TRANSACTIONS")
}

func TestExportMailsThroughLogSender(t *testing.T) {
	h := newHarness(t, "")
	u := seedTransactions(t, h.repo(t))

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "export", "-user", u.ID), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Report processed for ann@example.com")
}

func TestExportUnknownUser(t *testing.T) {
	h := newHarness(t, "")
	assert.Equal(t, subcommands.ExitFailure, h.run(t, "export", "-email", "ghost@example.com", "-o", "-"))
	assert.Contains(t, h.stderr.String(), "no user with email")

	h = newHarness(t, "")
	assert.Equal(t, subcommands.ExitFailure, h.run(t, "export"))
	assert.Contains(t, h.stderr.String(), "-user or -email")
}

func TestSummary(t *testing.T) {
	h := newHarness(t, "")
	u := seedTransactions(t, h.repo(t))

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "summary", "-user", u.ID), h.stderr.String())
	out := h.stdout.String()
	assert.Contains(t, out, "$2,500.00")
	assert.Contains(t, out, "$45.50")
	assert.Contains(t, out, "$2,454.50")
}

func TestPurgeOTPs(t *testing.T) {
	h := newHarness(t, "")
	repo := h.repo(t)
	ctx := context.Background()
	require.NoError(t, repo.UpsertOTP(ctx, &core.OTP{
		Email: "old@example.com", Purpose: core.PurposeVerification, CodeHash: "x",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, repo.UpsertOTP(ctx, &core.OTP{
		Email: "new@example.com", Purpose: core.PurposeVerification, CodeHash: "x",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "purge-otps"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Removed 1 expired codes")
}

func TestNewMailerFallsBackToLogging(t *testing.T) {
	sender, err := NewMailer(&config.Config{}, log.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, sender)

	_, err = NewMailer(&config.Config{SMTPHost: "smtp.example.com", SMTPFrom: "noreply@example.com", SMTPPort: 587}, log.NewNop())
	assert.NoError(t, err)
}

func TestNewGoogleVerifierOnlyInGoogleMode(t *testing.T) {
	v, err := NewGoogleVerifier(context.Background(), &config.Config{AuthMode: config.AuthModeLocal}, log.NewNop())
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestNewTokenManager(t *testing.T) {
	_, err := NewTokenManager(&config.Config{JWTSecret: "short"})
	assert.Error(t, err)

	tokens, err := NewTokenManager(&config.Config{
		JWTSecret:       "0123456789abcdef",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		ResetTokenTTL:   time.Minute,
	})
	require.NoError(t, err)
	_, err = tokens.IssuePair("user-1", "a@example.com")
	assert.NoError(t, err)
}

func TestRunEveryStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 10)
	done := make(chan struct{})
	go func() {
		RunEvery(ctx, 5*time.Millisecond, func(context.Context) { calls <- struct{}{} })
		close(done)
	}()
	<-calls
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEvery did not stop")
	}
}
