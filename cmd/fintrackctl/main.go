package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	dbPath := flag.String("db", cfg.SQLiteDBPath, "Path to the SQLite database.")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	env := &cli.Env{
		Config: cfg,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	for _, c := range cli.Commands(env) {
		commander.Register(c, "")
	}

	flag.Parse()
	cfg.SQLiteDBPath = *dbPath
	env.Logger = log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: "fintrackctl",
		Output:    os.Stderr,
	})
	os.Exit(int(commander.Execute(context.Background())))
}
