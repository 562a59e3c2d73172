// Package dashboard owns the canonical budget and expense collections and
// keeps them consistent after mutations made by the domain views.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"financeflow/internal/api"
	"financeflow/internal/core"
	"financeflow/internal/events"
	"financeflow/internal/log"
)

// LoadErrorMessage is what the global error screen shows.
const LoadErrorMessage = "Failed to load dashboard data"

// DefaultPageSize is how many transactions the dashboard fetches.
const DefaultPageSize = 100

const prefLastTab = "last_tab"

// ErrLoad wraps whatever made the initial load fail.
var ErrLoad = errors.New(LoadErrorMessage)

// Backend is the subset of the API client the controller reads from.
type Backend interface {
	ListBudgets(ctx context.Context) ([]core.BudgetItem, error)
	ListExpenses(ctx context.Context, q api.ExpenseQuery) (core.ExpensePage, error)
}

// Preferences is the local key-value store used to remember the last tab.
type Preferences interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Session ends the logged-in session.
type Session interface {
	Logout(ctx context.Context) error
}

type Controller struct {
	backend  Backend
	bus      *events.Bus
	logger   *log.Logger
	pageSize int
	prefs    Preferences
	session  Session
	unsub    []func()

	mu       sync.RWMutex
	budgets  []core.BudgetItem
	expenses []core.ExpenseItem
	tab      Tab
	loading  bool
	loaded   bool
	err      error
	version  uint64
}

type Option func(*Controller)

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentDashboard)
		}
	}
}

// WithPageSize sets the limit used for the expense listing.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithPreferences(p Preferences) Option {
	return func(c *Controller) { c.prefs = p }
}

func WithSession(s Session) Option {
	return func(c *Controller) { c.session = s }
}

// New wires the controller to bus. It subscribes to mutation events so the
// refresh chain lives in one place.
func New(backend Backend, bus *events.Bus, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		bus:      bus,
		logger:   log.Default(log.ComponentDashboard),
		pageSize: DefaultPageSize,
		tab:      TabOverview,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.unsub = append(c.unsub,
		bus.Subscribe(events.ExpensesChanged, c.onExpensesChanged),
		bus.Subscribe(events.BudgetsChanged, c.onBudgetsChanged),
	)
	return c
}

// Close detaches the controller from the bus.
func (c *Controller) Close() {
	for _, fn := range c.unsub {
		fn()
	}
	c.unsub = nil
}

// Transactions affect budget spent totals, so both collections are
// refreshed, expenses first.
func (c *Controller) onExpensesChanged(ctx context.Context, e events.Event) {
	c.logger.DebugContext(ctx, "Expenses changed", log.FieldOperation, e.Op, log.FieldID, e.ID, log.FieldOrigin, e.Origin)
	_ = c.RefreshExpenses(ctx)
	_ = c.RefreshBudgets(ctx)
}

func (c *Controller) onBudgetsChanged(ctx context.Context, e events.Event) {
	c.logger.DebugContext(ctx, "Budgets changed", log.FieldOperation, e.Op, log.FieldID, e.ID, log.FieldOrigin, e.Origin)
	_ = c.RefreshBudgets(ctx)
}

// Load fetches both collections in parallel. Both requests settle before
// loading ends; if either failed the controller enters the error state and
// neither collection is applied.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.err = nil
	c.mu.Unlock()

	var (
		g        errgroup.Group
		budgets  []core.BudgetItem
		expenses core.ExpensePage
	)
	g.Go(func() error {
		var err error
		budgets, err = c.backend.ListBudgets(ctx)
		if err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		expenses, err = c.backend.ListExpenses(ctx, api.ExpenseQuery{Limit: c.pageSize})
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	err := g.Wait()

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.err = fmt.Errorf("%w: %w", ErrLoad, err)
		c.mu.Unlock()
		c.logger.ErrorContext(ctx, "Failed to fetch data", log.FieldOperation, log.OpLoad, log.FieldError, err)
		return c.Err()
	}
	c.budgets = nonNil(budgets)
	c.expenses = nonNil(expenses.Expenses)
	c.loaded = true
	c.version++
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Dashboard loaded",
		"budgets", len(budgets),
		"expenses", len(expenses.Expenses))
	c.publishSnapshot(ctx)
	return nil
}

// Reload is the full retry: every collection and the error are reset before
// loading again.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	c.budgets = nil
	c.expenses = nil
	c.loaded = false
	c.err = nil
	c.version++
	c.mu.Unlock()
	return c.Load(ctx)
}

// RefreshBudgets replaces the budget collection with the server's. A failure
// is logged and leaves the collection untouched.
func (c *Controller) RefreshBudgets(ctx context.Context) error {
	budgets, err := c.backend.ListBudgets(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to refresh budgets", log.FieldOperation, log.OpRefresh, log.FieldError, err)
		return fmt.Errorf("refresh budgets: %w", err)
	}
	c.SetBudgets(ctx, budgets)
	return nil
}

// RefreshExpenses replaces the expense collection with the server's first
// page. A failure is logged and leaves the collection untouched.
func (c *Controller) RefreshExpenses(ctx context.Context) error {
	page, err := c.backend.ListExpenses(ctx, api.ExpenseQuery{Limit: c.pageSize})
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to refresh expenses", log.FieldOperation, log.OpRefresh, log.FieldError, err)
		return fmt.Errorf("refresh expenses: %w", err)
	}
	c.SetExpenses(ctx, page.Expenses)
	return nil
}

// Budgets returns a copy of the canonical budget collection.
func (c *Controller) Budgets() []core.BudgetItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.BudgetItem{}, c.budgets...)
}

// Expenses returns a copy of the canonical expense collection.
func (c *Controller) Expenses() []core.ExpenseItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.ExpenseItem{}, c.expenses...)
}

// SetBudgets replaces the whole budget collection.
func (c *Controller) SetBudgets(ctx context.Context, items []core.BudgetItem) {
	c.MutateBudgets(ctx, func([]core.BudgetItem) []core.BudgetItem { return items })
}

// SetExpenses replaces the whole expense collection.
func (c *Controller) SetExpenses(ctx context.Context, items []core.ExpenseItem) {
	c.MutateExpenses(ctx, func([]core.ExpenseItem) []core.ExpenseItem { return items })
}

// MutateBudgets derives the next collection from the current one under the
// lock. fn receives a copy and its result becomes the new collection.
func (c *Controller) MutateBudgets(ctx context.Context, fn func([]core.BudgetItem) []core.BudgetItem) {
	c.mu.Lock()
	c.budgets = nonNil(fn(append([]core.BudgetItem{}, c.budgets...)))
	c.version++
	c.mu.Unlock()
	c.publishSnapshot(ctx)
}

// MutateExpenses is MutateBudgets for transactions.
func (c *Controller) MutateExpenses(ctx context.Context, fn func([]core.ExpenseItem) []core.ExpenseItem) {
	c.mu.Lock()
	c.expenses = nonNil(fn(append([]core.ExpenseItem{}, c.expenses...)))
	c.version++
	c.mu.Unlock()
	c.publishSnapshot(ctx)
}

func (c *Controller) publishSnapshot(ctx context.Context) {
	c.bus.Publish(ctx, events.Event{Kind: events.SnapshotUpdated, Op: events.OpRefresh})
}

// Select switches the visible tab. It never fetches.
func (c *Controller) Select(ctx context.Context, tab Tab) {
	tab = ParseTab(string(tab))
	c.mu.Lock()
	c.tab = tab
	c.mu.Unlock()
	if c.prefs != nil {
		if err := c.prefs.Set(ctx, prefLastTab, string(tab)); err != nil {
			c.logger.WarnContext(ctx, "Failed to remember tab", log.FieldTab, tab, log.FieldError, err)
		}
	}
}

// RestoreTab selects the tab remembered in local preferences, if any.
func (c *Controller) RestoreTab(ctx context.Context) {
	if c.prefs == nil {
		return
	}
	v, ok, err := c.prefs.Get(ctx, prefLastTab)
	if err != nil || !ok {
		return
	}
	c.mu.Lock()
	c.tab = ParseTab(v)
	c.mu.Unlock()
}

func (c *Controller) Tab() Tab {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tab
}

func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Err is the global load error, nil when healthy.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Ready reports whether tabs may render: loaded, not loading, no error.
func (c *Controller) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded && !c.loading && c.err == nil
}

// Version increases on every collection replacement.
func (c *Controller) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Logout ends the session and drops all in-memory state. The local state is
// cleared even when the backend call fails; that error is returned for
// reporting only.
func (c *Controller) Logout(ctx context.Context) error {
	var err error
	if c.session != nil {
		err = c.session.Logout(ctx)
	}
	c.mu.Lock()
	c.budgets = nil
	c.expenses = nil
	c.loaded = false
	c.err = nil
	c.tab = TabOverview
	c.version++
	c.mu.Unlock()
	if err != nil {
		c.logger.WarnContext(ctx, "Logout request failed", log.FieldOperation, log.OpLogout, log.FieldError, err)
	}
	return err
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
