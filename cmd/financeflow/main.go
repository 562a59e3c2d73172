package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"financeflow/internal/cli"
	"financeflow/internal/log"
	"financeflow/internal/session"
)

const shutdownTimeout = 10 * time.Second

type command struct {
	usage string
	run   func(ctx context.Context, app *cli.App, args []string) error
}

var commands = map[string]command{
	"dashboard": {"open the terminal dashboard (default)", runDashboard},
	"register":  {"create an account", runRegister},
	"login":     {"sign in and keep the session on disk", runLogin},
	"logout":    {"end the session and clear local state", runLogout},
	"whoami":    {"show the signed-in user", runWhoami},
	"budgets":   {"list | add | rm budgets", runBudgets},
	"expenses":  {"list | add | rm transactions", runExpenses},
	"overview":  {"print the headline totals", runOverview},
	"report":    {"print the detailed report [-period month|year|custom]", runReport},
	"export":    {"append loaded transactions to the configured spreadsheet", runExport},
}

var order = []string{"dashboard", "register", "login", "logout", "whoami", "budgets", "expenses", "overview", "report", "export"}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: financeflow <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, name := range order {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", name, commands[name].usage)
	}
}

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()

	name, args := "dashboard", os.Args[1:]
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}
	if name == "help" || name == "-h" || name == "--help" {
		usage()
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	// The dashboard owns the terminal, so it always logs to a file.
	logger := cli.SetupLogger(cfg, log.ComponentApp, name == "dashboard")

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", log.FieldError, err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	err = cmd.run(ctx, app, args)
	app.Close()
	if ctx.Err() != nil {
		<-done
	}
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			fmt.Fprintln(os.Stderr, "not logged in: run `financeflow login` first")
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
