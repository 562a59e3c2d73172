package views

import (
	"context"
	"sync"
	"time"

	"financeflow/internal/api"
	"financeflow/internal/core"
	"financeflow/internal/events"
	"financeflow/internal/log"
	"financeflow/internal/metrics"
)

// Snapshot is read access to the canonical collections.
type Snapshot interface {
	Budgets() []core.BudgetItem
	Expenses() []core.ExpenseItem
}

type OverviewAPI interface {
	Overview(ctx context.Context, r api.DateRange) (core.OverviewData, error)
}

// BudgetRow pairs a budget with its progress figures.
type BudgetRow struct {
	Budget   core.BudgetItem
	Progress metrics.BudgetProgress
}

// OverviewView shows the headline totals. It prefers the backend's
// aggregate and recomputes locally when that call fails.
type OverviewView struct {
	api    OverviewAPI
	src    Snapshot
	logger *log.Logger
	unsub  func()

	mu       sync.RWMutex
	rng      api.DateRange
	data     core.OverviewData
	loaded   bool
	stale    bool
	fallback bool
}

func NewOverviewView(a OverviewAPI, src Snapshot, bus *events.Bus, logger *log.Logger) *OverviewView {
	if logger == nil {
		logger = log.Default(log.ComponentViews)
	}
	v := &OverviewView{api: a, src: src, logger: logger.WithComponent(log.ComponentViews), stale: true}
	v.unsub = bus.Subscribe(events.SnapshotUpdated, func(context.Context, events.Event) { v.markStale() })
	return v
}

func (v *OverviewView) Close() { v.unsub() }

func (v *OverviewView) markStale() {
	v.mu.Lock()
	v.stale = true
	v.mu.Unlock()
}

// SetRange narrows the aggregation window and marks the view stale.
func (v *OverviewView) SetRange(r api.DateRange) {
	v.mu.Lock()
	v.rng = r
	v.stale = true
	v.mu.Unlock()
}

// Load fetches the aggregate. It never fails: on any error the snapshot is
// derived from the current collections instead.
func (v *OverviewView) Load(ctx context.Context) core.OverviewData {
	v.mu.RLock()
	rng := v.rng
	v.mu.RUnlock()

	data, err := v.api.Overview(ctx, rng)
	fallback := err != nil
	if fallback {
		v.logger.WarnContext(ctx, "Failed to fetch overview data", log.FieldOperation, log.OpLoad, log.FieldError, err)
		data = metrics.FallbackOverview(v.src.Budgets(), v.src.Expenses())
	}

	v.mu.Lock()
	v.data = data
	v.loaded = true
	v.stale = false
	v.fallback = fallback
	v.mu.Unlock()
	return data
}

func (v *OverviewView) Data() (core.OverviewData, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.data, v.loaded
}

// Stale reports whether the collections changed since the last Load.
func (v *OverviewView) Stale() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.stale
}

// Fallback reports whether the last Load used local aggregation.
func (v *OverviewView) Fallback() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fallback
}

// Rows returns the per-budget progress for the loaded snapshot.
func (v *OverviewView) Rows() []BudgetRow {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rows := make([]BudgetRow, 0, len(v.data.Budgets))
	for _, b := range v.data.Budgets {
		rows = append(rows, BudgetRow{Budget: b, Progress: metrics.Progress(b)})
	}
	return rows
}

type ReportsAPI interface {
	Detailed(ctx context.Context, q api.ReportQuery) (core.ReportData, error)
}

// ReportsView shows the detailed report for the selected period.
type ReportsView struct {
	api    ReportsAPI
	src    Snapshot
	logger *log.Logger
	now    func() time.Time
	unsub  func()

	mu       sync.RWMutex
	period   core.Period
	rng      api.DateRange
	data     core.ReportData
	loaded   bool
	stale    bool
	fallback bool
}

func NewReportsView(a ReportsAPI, src Snapshot, bus *events.Bus, logger *log.Logger) *ReportsView {
	if logger == nil {
		logger = log.Default(log.ComponentViews)
	}
	v := &ReportsView{
		api:    a,
		src:    src,
		logger: logger.WithComponent(log.ComponentViews),
		now:    time.Now,
		period: core.PeriodMonth,
		stale:  true,
	}
	v.unsub = bus.Subscribe(events.SnapshotUpdated, func(context.Context, events.Event) { v.markStale() })
	return v
}

func (v *ReportsView) Close() { v.unsub() }

func (v *ReportsView) markStale() {
	v.mu.Lock()
	v.stale = true
	v.mu.Unlock()
}

// SelectPeriod switches the report period. The next Load refetches.
func (v *ReportsView) SelectPeriod(p core.Period) {
	v.mu.Lock()
	if p != v.period {
		v.stale = true
	}
	v.period = p
	v.mu.Unlock()
}

// SetRange sets the bounds used with the custom period.
func (v *ReportsView) SetRange(r api.DateRange) {
	v.mu.Lock()
	v.rng = r
	v.stale = true
	v.mu.Unlock()
}

func (v *ReportsView) Period() core.Period {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.period
}

// Load fetches the report and falls back to a summary-only report built
// from the transactions when the backend call fails.
func (v *ReportsView) Load(ctx context.Context) core.ReportData {
	v.mu.RLock()
	q := api.ReportQuery{Period: v.period}
	if v.period == core.PeriodCustom {
		q.Range = v.rng
	}
	v.mu.RUnlock()

	data, err := v.api.Detailed(ctx, q)
	fallback := err != nil
	if fallback {
		v.logger.WarnContext(ctx, "Failed to fetch report data", log.FieldOperation, log.OpLoad, log.FieldPeriod, q.Period, log.FieldError, err)
		data = metrics.FallbackReport(q.Period, v.src.Expenses(), v.now())
	}

	v.mu.Lock()
	v.data = data
	v.loaded = true
	v.stale = false
	v.fallback = fallback
	v.mu.Unlock()
	return data
}

func (v *ReportsView) Data() (core.ReportData, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.data, v.loaded
}

func (v *ReportsView) Stale() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.stale
}

func (v *ReportsView) Fallback() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fallback
}

// Shares returns the category breakdown with rounded percentages.
func (v *ReportsView) Shares() []metrics.CategoryShare {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return metrics.CategoryShares(v.data.CategorySpending)
}
