package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"financeflow/internal/amqp"
	"financeflow/internal/api"
	"financeflow/internal/cache"
	"financeflow/internal/config"
	"financeflow/internal/core"
	"financeflow/internal/dashboard"
	"financeflow/internal/events"
	"financeflow/internal/log"
	"financeflow/internal/session"
	"financeflow/internal/sheets"
	"financeflow/internal/sheets/google"
	"financeflow/internal/storage"
	"financeflow/internal/views"
)

// ErrExportDisabled is returned by Export when no spreadsheet is configured.
var ErrExportDisabled = errors.New("export is not configured (set GOOGLE_SPREADSHEET_ID)")

const janitorInterval = time.Minute

// App is one wired client instance: local storage, the authenticated API
// client, the dashboard controller and its views.
type App struct {
	Config     *config.Config
	Logger     *log.Logger
	Instance   string
	Store      *storage.SQLiteStore
	Jar        *session.Jar
	Client     *api.Client
	Session    *session.Manager
	Bus        *events.Bus
	Controller *dashboard.Controller
	Budgets    *views.BudgetView
	Expenses   *views.ExpensesView
	Overview   *views.OverviewView
	Reports    *views.ReportsView
	Exporter   sheets.ExpenseExporter

	janitor *cache.Janitor
	amqp    *amqp.Client
	bridge  *amqp.Bridge
}

// NewApp opens local storage and builds every component. Export is wired
// when configured; fan-out is opt-in through EnableFanOut.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	store, err := storage.Open(cfg.LocalDBPath, logger.WithComponent(log.ComponentStorage))
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}

	jar, err := session.NewJar(ctx, store, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("restore session cookies: %w", err)
	}

	client := api.New(cfg.APIURL,
		api.WithCookieJar(jar),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(logger),
	)

	users := cache.NewLRUCache[core.User](cfg.SessionCacheSize, cfg.SessionTTL)
	janitor := cache.NewJanitor(logger.WithComponent(log.ComponentSession))
	janitor.Register(users)
	janitor.Start(janitorInterval)

	sess := session.NewManager(client, store, jar, users, logger)
	bus := events.NewBus()
	ctrl := dashboard.New(client, bus,
		dashboard.WithLogger(logger),
		dashboard.WithPageSize(cfg.ExpensePageSize),
		dashboard.WithPreferences(store),
		dashboard.WithSession(sess),
	)

	a := &App{
		Config:     cfg,
		Logger:     logger,
		Instance:   InstanceName(cfg),
		Store:      store,
		Jar:        jar,
		Client:     client,
		Session:    sess,
		Bus:        bus,
		Controller: ctrl,
		Budgets:    views.NewBudgetView(client, ctrl, bus, logger),
		Expenses:   views.NewExpensesView(client, ctrl, bus, logger),
		Overview:   views.NewOverviewView(client, ctrl, bus, logger),
		Reports:    views.NewReportsView(client, ctrl, bus, logger),
		janitor:    janitor,
	}

	if v, ok, err := store.Get(ctx, storage.KeyReportPeriod); err == nil && ok {
		if p, err := core.ParsePeriod(v); err == nil {
			a.Reports.SelectPeriod(p)
		}
	}

	if cfg.ExportEnabled() {
		x, err := google.New(ctx, google.Settings{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Warn("Export disabled", log.FieldError, err)
		} else {
			a.Exporter = x
		}
	}

	return a, nil
}

// InstanceName is the configured name, or host name plus a random suffix.
func InstanceName(cfg *config.Config) string {
	if cfg.InstanceName != "" {
		return cfg.InstanceName
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "financeflow"
	}
	return host + "-" + uuid.NewString()[:8]
}

// EnableFanOut connects to the broker and forwards local mutations to other
// instances. It is a no-op when AMQP is not configured.
func (a *App) EnableFanOut() error {
	if !a.Config.AMQPEnabled() || a.amqp != nil {
		return nil
	}
	client, err := amqp.NewClient(a.Config.AMQPURL, a.Config.AMQPExchange, a.Config.AMQPQueue, a.Logger)
	if err != nil {
		return fmt.Errorf("connect AMQP: %w", err)
	}
	a.amqp = client
	a.bridge = amqp.NewBridge(a.Bus, client, a.Instance, a.Logger)
	a.Logger.Info("Change fan-out enabled", "exchange", a.Config.AMQPExchange, log.FieldOrigin, a.Instance)
	return nil
}

// AMQP returns the broker client, nil unless EnableFanOut succeeded.
func (a *App) AMQP() *amqp.Client {
	return a.amqp
}

// SelectReportPeriod switches the reports view and remembers the choice.
func (a *App) SelectReportPeriod(ctx context.Context, p core.Period) {
	a.Reports.SelectPeriod(p)
	if err := a.Store.Set(ctx, storage.KeyReportPeriod, string(p)); err != nil {
		a.Logger.Warn("Failed to remember report period", log.FieldError, err)
	}
}

// Export writes the loaded transactions to the configured spreadsheet.
func (a *App) Export(ctx context.Context) (string, int, error) {
	if a.Exporter == nil {
		return "", 0, ErrExportDisabled
	}
	items := a.Controller.Expenses()
	ref, err := a.Exporter.Export(ctx, items)
	if err != nil {
		return "", 0, fmt.Errorf("export transactions: %w", err)
	}
	return ref, len(items), nil
}

func (a *App) Close() {
	if a.bridge != nil {
		a.bridge.Close()
	}
	if a.amqp != nil {
		a.amqp.Close()
	}
	a.Overview.Close()
	a.Reports.Close()
	a.Controller.Close()
	a.janitor.Stop()
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("Failed to close local storage", log.FieldError, err)
	}
}
