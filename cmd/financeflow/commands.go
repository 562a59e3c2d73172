package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"financeflow/internal/api"
	"financeflow/internal/cli"
	"financeflow/internal/core"
	"financeflow/internal/log"
	"financeflow/internal/metrics"
	"financeflow/internal/tui"
	"financeflow/internal/worker"
)

func runDashboard(ctx context.Context, app *cli.App, args []string) error {
	user, err := app.Session.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if err := app.EnableFanOut(); err != nil {
		app.Logger.Warn("Continuing without change fan-out", log.FieldError, err)
	}
	if mq := app.AMQP(); mq != nil {
		w := worker.NewChangeWorker(app.Bus, app.Instance, app.Config.WatchRefreshRate, app.Logger)
		go func() {
			if err := mq.ConsumeChanges(ctx, w.HandleChange); err != nil && ctx.Err() == nil {
				app.Logger.Error("Change consumer stopped", log.FieldError, err)
			}
		}()
	}

	deps := tui.Deps{
		Controller:   app.Controller,
		Budgets:      app.Budgets,
		Expenses:     app.Expenses,
		Overview:     app.Overview,
		Reports:      app.Reports,
		User:         user.Email,
		SelectPeriod: app.SelectReportPeriod,
		Logout:       app.Session.Logout,
		Logger:       app.Logger.WithComponent(log.ComponentTUI),
	}
	if app.Exporter != nil {
		deps.Export = app.Export
	}
	return tui.Run(ctx, deps)
}

// stdin is shared by every prompt so buffered input is not lost between them.
var stdin = bufio.NewReader(os.Stdin)

func readLine(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

func runRegister(ctx context.Context, app *cli.App, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	email := fs.String("email", "", "e-mail address")
	password := fs.String("password", os.Getenv("FINANCEFLOW_PASSWORD"), "password (min 6 characters)")
	fs.Parse(args)

	if *password == "" {
		*password = readLine("Password: ")
	}
	if _, err := app.Session.Register(ctx, core.SignUp{
		FirstName: *first,
		LastName:  *last,
		Email:     *email,
		Password:  *password,
	}); err != nil {
		return err
	}
	fmt.Println("Account created. You can now log in.")
	return nil
}

func runLogin(ctx context.Context, app *cli.App, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "e-mail address (defaults to the last one used)")
	password := fs.String("password", os.Getenv("FINANCEFLOW_PASSWORD"), "password")
	fs.Parse(args)

	if *email == "" {
		*email = app.Session.LastEmail(ctx)
	}
	if *email == "" {
		*email = readLine("Email: ")
	}
	if *password == "" {
		*password = readLine("Password: ")
	}
	user, err := app.Session.Login(ctx, core.Credentials{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s %s <%s>\n", user.FirstName, user.LastName, user.Email)
	return nil
}

func runLogout(ctx context.Context, app *cli.App, _ []string) error {
	if err := app.Session.Logout(ctx); err != nil {
		// local state is gone either way
		app.Logger.Warn("Logout request failed", log.FieldError, err)
	}
	fmt.Println("Logged out.")
	return nil
}

func runWhoami(ctx context.Context, app *cli.App, _ []string) error {
	user, err := app.Session.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s <%s>\n", user.FirstName, user.LastName, user.Email)
	return nil
}

// loadCollections fetches budgets and transactions, failing like the
// dashboard's global error screen does.
func loadCollections(ctx context.Context, app *cli.App) error {
	if _, err := app.Session.CurrentUser(ctx); err != nil {
		return err
	}
	if err := app.EnableFanOut(); err != nil {
		app.Logger.Warn("Continuing without change fan-out", log.FieldError, err)
	}
	return app.Controller.Load(ctx)
}

func subcommand(args []string) (string, []string) {
	if len(args) == 0 {
		return "list", nil
	}
	return args[0], args[1:]
}

func confirm(yes bool) func(string) bool {
	return func(prompt string) bool {
		if yes {
			return true
		}
		answer := strings.ToLower(readLine(prompt + " [y/N] "))
		return answer == "y" || answer == "yes"
	}
}

func runBudgets(ctx context.Context, app *cli.App, args []string) error {
	if err := loadCollections(ctx, app); err != nil {
		return err
	}
	sub, args := subcommand(args)
	v := app.Budgets

	switch sub {
	case "list":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCATEGORY\tSPENT\tBUDGET\tUSED\tSTATUS\tLEFT")
		for _, b := range v.Items() {
			p := metrics.Progress(b)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%%\t%s\t%s\n",
				b.ID, b.Category, core.Dollars(b.Spent), core.Dollars(b.Budget),
				p.RoundedPercent(), p.Status(), core.Dollars(p.Remaining))
		}
		return w.Flush()

	case "add", "edit":
		fs := flag.NewFlagSet("budgets "+sub, flag.ExitOnError)
		id := fs.String("id", "", "budget id (edit only)")
		category := fs.String("category", "", "category name")
		amount := fs.String("amount", "", "monthly ceiling, e.g. 250.00")
		color := fs.String("color", "", "colour class")
		fs.Parse(args)

		if sub == "edit" {
			if err := v.BeginEdit(core.ID(*id)); err != nil {
				return err
			}
		} else {
			v.Open()
		}
		d := v.Draft()
		if *category != "" {
			d.Category = *category
		}
		if *amount != "" {
			cents, err := core.ParseDecimalToCents(*amount)
			if err != nil {
				return fmt.Errorf("parse amount: %w", err)
			}
			d.Budget = core.Cents(cents)
		}
		if *color != "" {
			d.Color = *color
		}
		v.SetDraft(d)
		item, err := v.Submit(ctx)
		if err != nil {
			return formError(err, v.ErrorMessage())
		}
		fmt.Printf("Saved budget %s (%s, %s)\n", item.ID, item.Category, core.Dollars(item.Budget))
		return nil

	case "rm":
		fs := flag.NewFlagSet("budgets rm", flag.ExitOnError)
		yes := fs.Bool("y", false, "do not ask for confirmation")
		fs.Parse(args)
		for _, id := range fs.Args() {
			if err := v.Delete(ctx, core.ID(id), confirm(*yes)); err != nil {
				return formError(err, v.ErrorMessage())
			}
		}
		return nil
	}
	return fmt.Errorf("unknown budgets command %q", sub)
}

func runExpenses(ctx context.Context, app *cli.App, args []string) error {
	if err := loadCollections(ctx, app); err != nil {
		return err
	}
	sub, args := subcommand(args)
	v := app.Expenses

	switch sub {
	case "list":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tDESCRIPTION\tCATEGORY\tAMOUNT")
		for _, e := range v.Items() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Date, e.Description, e.Category, core.SignedAmount(e))
		}
		return w.Flush()

	case "add", "edit":
		fs := flag.NewFlagSet("expenses "+sub, flag.ExitOnError)
		id := fs.String("id", "", "transaction id (edit only)")
		desc := fs.String("desc", "", "description")
		amount := fs.String("amount", "", "amount, e.g. 12.50")
		category := fs.String("category", "", "category")
		date := fs.String("date", "", "date as YYYY-MM-DD (defaults to today)")
		typ := fs.String("type", "", "income or expense (defaults to expense)")
		fs.Parse(args)

		if sub == "edit" {
			if err := v.BeginEdit(core.ID(*id)); err != nil {
				return err
			}
		} else {
			v.Open()
		}
		d := v.Draft()
		if *desc != "" {
			d.Description = *desc
		}
		if *category != "" {
			d.Category = *category
		}
		if *amount != "" {
			cents, err := core.ParseDecimalToCents(*amount)
			if err != nil {
				return fmt.Errorf("parse amount: %w", err)
			}
			d.Amount = core.Cents(cents)
		}
		if *date != "" {
			parsed, err := core.ParseDate(*date)
			if err != nil {
				return fmt.Errorf("parse date: %w", err)
			}
			d.Date = parsed
		}
		if *typ != "" {
			d.Type = core.TxType(strings.ToLower(*typ))
		}
		v.SetDraft(d)
		item, err := v.Submit(ctx)
		if err != nil {
			return formError(err, v.ErrorMessage())
		}
		fmt.Printf("Saved %s %s: %s %s\n", item.Type, item.ID, item.Description, core.SignedAmount(item))
		return nil

	case "rm":
		fs := flag.NewFlagSet("expenses rm", flag.ExitOnError)
		yes := fs.Bool("y", false, "do not ask for confirmation")
		fs.Parse(args)
		for _, id := range fs.Args() {
			if err := v.Delete(ctx, core.ID(id), confirm(*yes)); err != nil {
				return formError(err, v.ErrorMessage())
			}
		}
		return nil
	}
	return fmt.Errorf("unknown expenses command %q", sub)
}

// formError prefers the message the view would show in its dialog.
func formError(err error, shown string) error {
	if shown != "" {
		return errors.New(shown)
	}
	return err
}

func runOverview(ctx context.Context, app *cli.App, _ []string) error {
	if err := loadCollections(ctx, app); err != nil {
		return err
	}
	v := app.Overview
	data := v.Load(ctx)
	if v.Fallback() {
		fmt.Println("(backend aggregates unavailable, computed locally)")
	}
	fmt.Printf("Total income:    %s\n", core.Headline(data.TotalIncome))
	fmt.Printf("Total expenses:  %s\n", core.Headline(data.TotalExpenses))
	fmt.Printf("Net savings:     %s\n", core.Headline(data.NetSavings))
	fmt.Printf("Budget used:     %d%%\n\n", metrics.RoundPercent(data.BudgetUsedPercentage))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, r := range v.Rows() {
		fmt.Fprintf(w, "%s\t%s / %s\t%d%% used\t%s\n", r.Budget.Category,
			core.Dollars(r.Budget.Spent), core.Dollars(r.Budget.Budget),
			r.Progress.RoundedPercent(), r.Progress.Status())
	}
	fmt.Fprintln(w)
	for _, e := range data.RecentTransactions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Date, e.Description, e.Category, core.SignedAmount(e))
	}
	return w.Flush()
}

func runReport(ctx context.Context, app *cli.App, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	period := fs.String("period", "", "month, year or custom (defaults to the last one used)")
	start := fs.String("start", "", "custom range start, YYYY-MM-DD")
	end := fs.String("end", "", "custom range end, YYYY-MM-DD")
	fs.Parse(args)

	p, rng, err := reportOptions(*period, *start, *end)
	if err != nil {
		return err
	}
	if err := loadCollections(ctx, app); err != nil {
		return err
	}
	v := app.Reports
	if p != "" {
		app.SelectReportPeriod(ctx, p)
	}
	if rng != nil {
		v.SetRange(*rng)
	}

	data := v.Load(ctx)
	fmt.Printf("Report (%s)", v.Period())
	if v.Fallback() {
		fmt.Print(" - computed locally")
	}
	fmt.Println()
	fmt.Printf("Income %s  Expenses %s  Net %s\n\n",
		core.Headline(data.Summary.TotalIncome),
		core.Headline(data.Summary.TotalExpenses),
		core.Headline(data.Summary.NetSavings))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, s := range v.Shares() {
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%d transactions\n", s.Category, core.Dollars(s.Total), s.Percent, s.Count)
	}
	for _, pt := range data.MonthlyTrend {
		fmt.Fprintf(w, "%04d-%02d\t%s\t%s\n", pt.Key.Year, pt.Key.Month, pt.Key.Type, core.Dollars(pt.Total))
	}
	return w.Flush()
}

var errPartialRange = errors.New("-start and -end must be given together")

// reportOptions checks the report flags. A date range implies the custom
// period and cannot be combined with month or year. An empty period keeps
// the remembered one.
func reportOptions(period, start, end string) (core.Period, *api.DateRange, error) {
	var p core.Period
	if period != "" {
		parsed, err := core.ParsePeriod(period)
		if err != nil {
			return "", nil, err
		}
		p = parsed
	}
	if start == "" && end == "" {
		return p, nil, nil
	}
	if start == "" || end == "" {
		return "", nil, errPartialRange
	}
	if p != "" && p != core.PeriodCustom {
		return "", nil, fmt.Errorf("-start and -end need -period custom, got %s", p)
	}

	var r api.DateRange
	var err error
	if r.StartDate, err = core.ParseDate(start); err != nil {
		return "", nil, fmt.Errorf("parse start date: %w", err)
	}
	if r.EndDate, err = core.ParseDate(end); err != nil {
		return "", nil, fmt.Errorf("parse end date: %w", err)
	}
	if r.EndDate.Before(r.StartDate.Time) {
		return "", nil, fmt.Errorf("end date %s is before start date %s", r.EndDate, r.StartDate)
	}
	return core.PeriodCustom, &r, nil
}

func runExport(ctx context.Context, app *cli.App, _ []string) error {
	if err := loadCollections(ctx, app); err != nil {
		return err
	}
	ref, n, err := app.Export(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d transactions to %s\n", n, ref)
	return nil
}
