package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"
	"golang.org/x/term"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

// Env is what the admin commands run against.
type Env struct {
	Config *config.Config
	Logger *log.Logger
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Commands returns the fintrackctl subcommands.
func Commands(env *Env) []subcommands.Command {
	return []subcommands.Command{
		&migrateCmd{env: env},
		&addUserCmd{env: env},
		&exportCmd{env: env},
		&summaryCmd{env: env},
		&purgeOTPsCmd{env: env},
	}
}

func (e *Env) openRepo() (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(e.Config.SQLiteDBPath, e.Logger)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", e.Config.SQLiteDBPath, err)
	}
	return repo, nil
}

func (e *Env) fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(e.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

// findUser resolves a user by id or email.
func findUser(ctx context.Context, repo *storage.SQLiteRepository, id, email string) (core.User, error) {
	switch {
	case id != "":
		u, err := repo.GetUserByID(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return core.User{}, fmt.Errorf("no user with id %s", id)
		}
		return u, err
	case email != "":
		u, err := repo.GetUserByEmail(ctx, core.NormalizeEmail(email))
		if errors.Is(err, storage.ErrNotFound) {
			return core.User{}, fmt.Errorf("no user with email %s", email)
		}
		return u, err
	default:
		return core.User{}, errors.New("one of -user or -email is required")
	}
}

type migrateCmd struct {
	env  *Env
	down int
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply or roll back database migrations" }
func (*migrateCmd) Usage() string {
	return `fintrackctl migrate [-down <steps>]

  Applies every pending schema migration to SQLITE_DB_PATH, creating the
  file if needed. With -down, reverts that many applied migrations instead.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.down, "down", 0, "Number of migrations to roll back.")
}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	path := c.env.Config.SQLiteDBPath
	var err error
	if c.down > 0 {
		err = storage.RollbackMigrations(path, c.down)
	} else {
		if err = os.MkdirAll(filepath.Dir(path), 0755); err == nil {
			err = storage.RunMigrations(path)
		}
	}
	if err != nil {
		return c.env.fail(err)
	}

	version, dirty, err := storage.MigrationVersion(path)
	if err != nil {
		return c.env.fail(err)
	}
	fmt.Fprintf(c.env.Stdout, "Database %s at schema version %d", path, version)
	if dirty {
		fmt.Fprint(c.env.Stdout, " (dirty)")
	}
	fmt.Fprintln(c.env.Stdout)
	return subcommands.ExitSuccess
}

type addUserCmd struct {
	env      *Env
	name     string
	email    string
	password string
	role     string
	verified bool
}

func (*addUserCmd) Name() string     { return "adduser" }
func (*addUserCmd) Synopsis() string { return "create an email/password account" }
func (*addUserCmd) Usage() string {
	return `fintrackctl adduser -email <email> -name <name> [-role user|admin|moderator] [-verified]

  Creates an account without sending a verification code. The password is
  prompted for when -password is omitted.
`
}

func (c *addUserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Display name.")
	f.StringVar(&c.email, "email", "", "Email address used to sign in.")
	f.StringVar(&c.password, "password", "", "Password (optional, will prompt if omitted).")
	f.StringVar(&c.role, "role", string(core.RoleUser), "Role: user, admin or moderator.")
	f.BoolVar(&c.verified, "verified", true, "Mark the email address as verified.")
}

func (c *addUserCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" || c.name == "" {
		fmt.Fprint(c.env.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	role := core.Role(strings.ToLower(c.role))
	switch role {
	case core.RoleUser, core.RoleAdmin, core.RoleModerator:
	default:
		return c.env.fail(fmt.Errorf("unknown role %q", c.role))
	}

	password := c.password
	if password == "" {
		fmt.Fprint(c.env.Stdout, "Password: ")
		var err error
		password, err = readPassword(c.env.Stdin)
		if err != nil {
			return c.env.fail(fmt.Errorf("read password: %w", err))
		}
		fmt.Fprintln(c.env.Stdout)
	}

	repo, err := c.env.openRepo()
	if err != nil {
		return c.env.fail(err)
	}
	defer repo.Close()

	// Accounts created here are never mailed, so no token manager or sender.
	accounts := services.NewAuthService(repo, nil, nil, c.env.Logger)
	u, err := accounts.CreateAccount(ctx, services.Account{
		Name:          c.name,
		Email:         c.email,
		Password:      password,
		Role:          role,
		EmailVerified: c.verified,
	})
	if err != nil {
		return c.env.fail(errors.New(core.MessageOf(err)))
	}
	fmt.Fprintf(c.env.Stdout, "User %s created with id %s\n", u.Email, u.ID)
	return subcommands.ExitSuccess
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

type exportCmd struct {
	env    *Env
	userID string
	email  string
	out    string
	queue  bool
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export a user's report as CSV" }
func (*exportCmd) Usage() string {
	return `fintrackctl export (-user <id> | -email <email>) [-o <file> | -queue]

  Without -o or -queue the report is rendered and mailed right away, as the
  export worker would. -o writes the CSV to a file ("-" for stdout) instead.
  -queue publishes an export job to AMQP_EXCHANGE for the worker.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.userID, "user", "", "User id.")
	f.StringVar(&c.email, "email", "", "User email.")
	f.StringVar(&c.out, "o", "", "Write the CSV to this file instead of mailing it.")
	f.BoolVar(&c.queue, "queue", false, "Publish an export job instead of running it here.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	repo, err := c.env.openRepo()
	if err != nil {
		return c.env.fail(err)
	}
	defer repo.Close()

	u, err := findUser(ctx, repo, c.userID, c.email)
	if err != nil {
		return c.env.fail(err)
	}

	switch {
	case c.queue:
		err = c.publish(ctx, u)
	case c.out != "":
		err = c.writeCSV(ctx, repo, u)
	default:
		err = c.mail(ctx, repo, u)
	}
	if err != nil {
		return c.env.fail(err)
	}
	return subcommands.ExitSuccess
}

func (c *exportCmd) publish(ctx context.Context, u core.User) error {
	cfg := c.env.Config
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, c.env.Logger)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.PublishExportJob(ctx, u.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.env.Stdout, "Export job queued for %s\n", u.Email)
	return nil
}

func (c *exportCmd) writeCSV(ctx context.Context, repo *storage.SQLiteRepository, u core.User) error {
	txs, err := repo.ListTransactions(ctx, storage.TransactionFilter{UserID: u.ID, Ascending: true})
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	budgets, err := repo.ListBudgets(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("load budgets: %w", err)
	}
	content, err := report.NewRenderer(c.env.Config.ReportCurrency).Render(txs, budgets)
	if err != nil {
		return err
	}
	if c.out == "-" {
		_, err = c.env.Stdout.Write(content)
		return err
	}
	return os.WriteFile(c.out, content, 0600)
}

func (c *exportCmd) mail(ctx context.Context, repo *storage.SQLiteRepository, u core.User) error {
	mailer, err := NewMailer(c.env.Config, c.env.Logger)
	if err != nil {
		return err
	}
	w := worker.NewExportWorker(repo, mailer, report.NewRenderer(c.env.Config.ReportCurrency), c.env.Logger)
	if err := w.HandleExportJob(ctx, amqp.NewExportJobMessage(u.ID)); err != nil {
		return err
	}
	fmt.Fprintf(c.env.Stdout, "Report processed for %s\n", u.Email)
	return nil
}

type summaryCmd struct {
	env    *Env
	userID string
	email  string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print a user's all-time income, expense and balance" }
func (*summaryCmd) Usage() string {
	return `fintrackctl summary (-user <id> | -email <email>)
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.userID, "user", "", "User id.")
	f.StringVar(&c.email, "email", "", "User email.")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	repo, err := c.env.openRepo()
	if err != nil {
		return c.env.fail(err)
	}
	defer repo.Close()

	u, err := findUser(ctx, repo, c.userID, c.email)
	if err != nil {
		return c.env.fail(err)
	}
	renderer := report.NewRenderer(c.env.Config.ReportCurrency)
	s, err := worker.NewExportWorker(repo, nil, renderer, c.env.Logger).Summary(ctx, u.ID)
	if err != nil {
		return c.env.fail(err)
	}
	fmt.Fprintf(c.env.Stdout, "Income:  %s\nExpense: %s\nBalance: %s\n",
		renderer.Display(s.TotalIncome), renderer.Display(s.TotalExpense), renderer.Display(s.Balance))
	return subcommands.ExitSuccess
}

type purgeOTPsCmd struct{ env *Env }

func (*purgeOTPsCmd) Name() string     { return "purge-otps" }
func (*purgeOTPsCmd) Synopsis() string { return "delete expired one-time codes" }
func (*purgeOTPsCmd) Usage() string    { return "fintrackctl purge-otps\n" }
func (*purgeOTPsCmd) SetFlags(*flag.FlagSet) {}

func (c *purgeOTPsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	repo, err := c.env.openRepo()
	if err != nil {
		return c.env.fail(err)
	}
	defer repo.Close()

	n, err := services.NewAuthService(repo, nil, nil, c.env.Logger).PurgeExpiredOTPs(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	fmt.Fprintf(c.env.Stdout, "Removed %d expired codes\n", n)
	return subcommands.ExitSuccess
}
