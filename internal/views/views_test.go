package views

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"financeflow/internal/api"
	"financeflow/internal/apitest"
	"financeflow/internal/core"
	"financeflow/internal/dashboard"
	"financeflow/internal/events"
	"financeflow/internal/log"
)

type harness struct {
	srv      *apitest.Server
	bus      *events.Bus
	ctrl     *dashboard.Controller
	budgets  *BudgetView
	expenses *ExpensesView
	overview *OverviewView
	reports  *ReportsView
}

func newHarness(t *testing.T, budgets []core.BudgetItem, expenses []core.ExpenseItem) *harness {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	srv.Store.Seed(budgets, expenses)

	logger := log.Discard()
	client := api.New(srv.BaseURL(), api.WithLogger(logger))
	bus := events.NewBus()
	ctrl := dashboard.New(client, bus, dashboard.WithLogger(logger))
	t.Cleanup(ctrl.Close)
	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	h := &harness{
		srv:      srv,
		bus:      bus,
		ctrl:     ctrl,
		budgets:  NewBudgetView(client, ctrl, bus, logger),
		expenses: NewExpensesView(client, ctrl, bus, logger),
		overview: NewOverviewView(client, ctrl, bus, logger),
		reports:  NewReportsView(client, ctrl, bus, logger),
	}
	t.Cleanup(h.overview.Close)
	t.Cleanup(h.reports.Close)
	srv.ResetHits()
	return h
}

func yes(string) bool { return true }
func no(string) bool  { return false }

func TestCreateBudget(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	h.budgets.Open()
	d := h.budgets.Draft()
	d.Category = "Food"
	d.Budget = core.Cents(10000)
	h.budgets.SetDraft(d)

	created, err := h.budgets.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	items := h.budgets.Items()
	if len(items) != 1 || items[0].Category != "Food" || items[0].ID != created.ID {
		t.Fatalf("unexpected budgets after create: %+v", items)
	}
	if h.budgets.IsOpen() || h.budgets.Draft().Category != "" || h.budgets.Draft().Color == "" {
		t.Fatalf("form must close and reset with a fresh colour")
	}
	if h.srv.Hits(apitest.RouteListBudgets) != 1 || h.srv.Hits(apitest.RouteListExpenses) != 0 {
		t.Fatalf("budget mutation must refresh budgets only")
	}
}

func TestCreateBudgetFailureKeepsDraft(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.srv.Fail(apitest.RouteCreateBudget, http.StatusInternalServerError)

	h.budgets.Open()
	h.budgets.SetDraft(core.BudgetDraft{Category: "Food", Budget: core.Cents(100), Color: "bg-red-500"})
	if _, err := h.budgets.Submit(context.Background()); !errors.Is(err, api.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !h.budgets.IsOpen() || h.budgets.Draft().Category != "Food" {
		t.Fatalf("form must stay open with its draft")
	}
	if h.budgets.ErrorMessage() != "Failed to create budget. Please try again." {
		t.Fatalf("unexpected error message %q", h.budgets.ErrorMessage())
	}
	if len(h.budgets.Items()) != 0 || h.srv.Hits(apitest.RouteListBudgets) != 0 {
		t.Fatalf("failed create must not touch state or refresh")
	}

	// A domain rejection is handled the same way.
	h.srv.Reject(apitest.RouteCreateBudget, "duplicate")
	if _, err := h.budgets.Submit(context.Background()); err == nil {
		t.Fatalf("expected domain error")
	}
	if h.budgets.ErrorMessage() == "" || len(h.budgets.Items()) != 0 {
		t.Fatalf("domain failure must behave like a transport failure")
	}

	h.srv.Heal(apitest.RouteCreateBudget)
	if _, err := h.budgets.Submit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if h.budgets.ErrorMessage() != "" {
		t.Fatalf("successful submit must clear the error")
	}
}

func TestInvalidDraftMakesNoRequest(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.expenses.SetDraft(core.ExpenseDraft{Description: "", Amount: core.Cents(100), Category: "Food", Date: core.Today(), Type: core.Expense})
	if _, err := h.expenses.Submit(context.Background()); !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("expected invalid draft, got %v", err)
	}
	h.budgets.SetDraft(core.BudgetDraft{Category: "Food", Budget: core.Cents(-1)})
	if _, err := h.budgets.Submit(context.Background()); !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("expected invalid draft, got %v", err)
	}
	if h.srv.TotalHits() != 0 {
		t.Fatalf("invalid drafts must not reach the network")
	}
}

func TestSubmitWhileBusy(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.srv.Stall(apitest.RouteCreateExpense, 200*time.Millisecond)
	h.expenses.SetDraft(core.ExpenseDraft{Description: "Coffee", Amount: core.Cents(450), Category: "Food", Date: core.Today(), Type: core.Expense})

	done := make(chan error, 1)
	go func() {
		_, err := h.expenses.Submit(context.Background())
		done <- err
	}()
	deadline := time.Now().Add(time.Second)
	for !h.expenses.Busy() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := h.expenses.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if h.srv.Hits(apitest.RouteCreateExpense) != 1 {
		t.Fatalf("expected exactly one create request, got %d", h.srv.Hits(apitest.RouteCreateExpense))
	}
}

func TestCreateExpenseScenario(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	h.expenses.Open()
	h.expenses.SetDraft(core.ExpenseDraft{
		Description: "Coffee",
		Amount:      core.NewMoney(4.5),
		Category:    "Food",
		Date:        core.NewDate(2024, 1, 10),
		Type:        core.Expense,
	})
	if _, err := h.expenses.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	items := h.expenses.Items()
	if len(items) != 1 || items[0].Amount.Cents != 450 || items[0].Type != core.Expense {
		t.Fatalf("unexpected expenses: %+v", items)
	}
	if got := core.SignedAmount(items[0]); got != "-$4.50" {
		t.Fatalf("expected -$4.50, got %q", got)
	}
	draft := h.expenses.Draft()
	if draft.Type != core.Expense || !draft.Date.Equal(core.Today().Time) || draft.Description != "" {
		t.Fatalf("draft not reset: %+v", draft)
	}
	if h.srv.Hits(apitest.RouteListExpenses) != 1 || h.srv.Hits(apitest.RouteListBudgets) != 1 {
		t.Fatalf("expense mutation must refresh both collections")
	}
}

func TestCreateExpensePrepends(t *testing.T) {
	h := newHarness(t, nil, []core.ExpenseItem{
		{ID: "old", Description: "Rent", Amount: core.Cents(100000), Category: "Housing", Date: core.NewDate(2024, 1, 1), Type: core.Expense},
	})
	// Keep the local prepend observable by failing the follow-up refresh.
	h.srv.Fail(apitest.RouteListExpenses, http.StatusInternalServerError)
	h.expenses.SetDraft(core.ExpenseDraft{Description: "Older", Amount: core.Cents(1), Category: "Misc", Date: core.NewDate(2023, 1, 1), Type: core.Income})
	created, err := h.expenses.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	items := h.expenses.Items()
	if len(items) != 2 || items[0].ID != created.ID {
		t.Fatalf("new expense must be first, got %+v", items)
	}
}

func TestDeleteOnlyExpenseScenario(t *testing.T) {
	h := newHarness(t,
		[]core.BudgetItem{{ID: "b1", Category: "Food", Budget: core.Cents(10000)}},
		[]core.ExpenseItem{{ID: "e1", Description: "Coffee", Amount: core.Cents(450), Category: "Food", Date: core.NewDate(2024, 1, 10), Type: core.Expense}},
	)
	ctx := context.Background()
	if h.ctrl.Budgets()[0].Spent.Cents != 450 {
		t.Fatalf("precondition: spent should be 450")
	}

	if err := h.expenses.Delete(ctx, "e1", yes); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(h.expenses.Items()) != 0 {
		t.Fatalf("expected empty expense list")
	}
	if h.srv.Hits(apitest.RouteListBudgets) != 1 {
		t.Fatalf("expected exactly one budgets refresh, got %d", h.srv.Hits(apitest.RouteListBudgets))
	}
	if h.ctrl.Budgets()[0].Spent.Cents != 0 {
		t.Fatalf("budget spent not refreshed: %+v", h.ctrl.Budgets()[0])
	}

	if !h.overview.Stale() {
		t.Fatalf("overview must be stale after a mutation")
	}
	h.srv.Fail(apitest.RouteOverview, http.StatusServiceUnavailable)
	ov := h.overview.Load(ctx)
	if len(ov.RecentTransactions) != 0 || !h.overview.Fallback() {
		t.Fatalf("expected empty recent transactions from fallback, got %+v", ov.RecentTransactions)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	h := newHarness(t, []core.BudgetItem{{ID: "b1", Category: "Food", Budget: core.Cents(100)}}, nil)
	if err := h.budgets.Delete(context.Background(), "b1", no); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if err := h.budgets.Delete(context.Background(), "b1", nil); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("nil confirm must decline, got %v", err)
	}
	if h.srv.TotalHits() != 0 || len(h.budgets.Items()) != 1 {
		t.Fatalf("declined delete must not reach the network")
	}
}

func TestDeleteFailureKeepsCollection(t *testing.T) {
	h := newHarness(t, []core.BudgetItem{{ID: "b1", Category: "Food", Budget: core.Cents(100)}}, nil)
	h.srv.Fail(apitest.RouteDeleteBudget, http.StatusInternalServerError)
	if err := h.budgets.Delete(context.Background(), "b1", yes); err == nil {
		t.Fatalf("expected error")
	}
	if len(h.budgets.Items()) != 1 || h.budgets.ErrorMessage() != "Failed to delete budget. Please try again." {
		t.Fatalf("failed delete must keep the collection and set the message")
	}
}

func TestOpenClearsPreviousError(t *testing.T) {
	h := newHarness(t, []core.BudgetItem{{ID: "b1", Category: "Food", Budget: core.Cents(100)}}, nil)
	h.srv.Fail(apitest.RouteDeleteBudget, http.StatusInternalServerError)
	if err := h.budgets.Delete(context.Background(), "b1", yes); err == nil {
		t.Fatalf("expected error")
	}

	h.budgets.Open()
	if msg := h.budgets.ErrorMessage(); msg != "" {
		t.Fatalf("add dialog opened with stale message %q", msg)
	}

	h.budgets.Close()
	_ = h.budgets.Delete(context.Background(), "b1", yes)
	if err := h.budgets.BeginEdit("b1"); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if msg := h.budgets.ErrorMessage(); msg != "" {
		t.Fatalf("edit dialog opened with stale message %q", msg)
	}
}

func TestDeleteBudgetLength(t *testing.T) {
	h := newHarness(t, []core.BudgetItem{
		{ID: "b1", Category: "Food", Budget: core.Cents(100)},
		{ID: "b2", Category: "Rent", Budget: core.Cents(100)},
	}, nil)
	// Fail the refresh so the local filter result is what we observe.
	h.srv.Fail(apitest.RouteListBudgets, http.StatusInternalServerError)
	if err := h.budgets.Delete(context.Background(), "b1", yes); err != nil {
		t.Fatalf("delete: %v", err)
	}
	items := h.budgets.Items()
	if len(items) != 1 || items[0].ID != "b2" {
		t.Fatalf("unexpected budgets: %+v", items)
	}
}

func TestEditBudget(t *testing.T) {
	h := newHarness(t, []core.BudgetItem{
		{ID: "b1", Category: "Food", Budget: core.Cents(100), Color: "bg-red-500"},
		{ID: "b2", Category: "Rent", Budget: core.Cents(500), Color: "bg-blue-500"},
	}, nil)
	ctx := context.Background()

	if err := h.budgets.BeginEdit("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := h.budgets.BeginEdit("b2"); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if h.budgets.Editing() != "b2" || !h.budgets.IsOpen() || h.budgets.Draft().Category != "Rent" {
		t.Fatalf("edit form not populated")
	}
	d := h.budgets.Draft()
	d.Budget = core.Cents(800)
	h.budgets.SetDraft(d)
	if _, err := h.budgets.Submit(ctx); err != nil {
		t.Fatalf("submit edit: %v", err)
	}
	items := h.budgets.Items()
	if len(items) != 2 || items[1].ID != "b2" || items[1].Budget.Cents != 800 {
		t.Fatalf("update must replace in place: %+v", items)
	}
	if h.srv.Hits(apitest.RouteUpdateBudget) != 1 || h.srv.Hits(apitest.RouteCreateBudget) != 0 {
		t.Fatalf("edit must call update, not create")
	}
	if h.budgets.Editing() != "" {
		t.Fatalf("edit state must reset after success")
	}
}

func TestEditExpenseFailure(t *testing.T) {
	h := newHarness(t, nil, []core.ExpenseItem{
		{ID: "e1", Description: "Coffee", Amount: core.Cents(450), Category: "Food", Date: core.NewDate(2024, 1, 10), Type: core.Expense},
	})
	h.srv.Fail(apitest.RouteUpdateExpense, http.StatusBadRequest)
	if err := h.expenses.BeginEdit("e1"); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if _, err := h.expenses.Submit(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if h.expenses.ErrorMessage() != "Failed to update expense. Please try again." || h.expenses.Editing() != "e1" {
		t.Fatalf("failed edit must keep the form: %q", h.expenses.ErrorMessage())
	}

	// Opening the create form abandons the edit.
	h.expenses.Open()
	if h.expenses.Editing() != "" || h.expenses.Draft().Description != "" {
		t.Fatalf("create form must start fresh")
	}
}

func TestOverviewPrefersBackend(t *testing.T) {
	h := newHarness(t,
		[]core.BudgetItem{{ID: "b1", Category: "Food", Budget: core.Cents(10000)}},
		[]core.ExpenseItem{{ID: "e1", Description: "Lunch", Amount: core.Cents(12000), Category: "Food", Date: core.NewDate(2024, 1, 10), Type: core.Expense}},
	)
	ov := h.overview.Load(context.Background())
	if h.overview.Fallback() || h.overview.Stale() {
		t.Fatalf("expected fresh backend data")
	}
	if ov.TotalExpenses.Cents != 12000 || ov.BudgetUsedPercentage != 120 {
		t.Fatalf("unexpected overview: %+v", ov)
	}
	rows := h.overview.Rows()
	if len(rows) != 1 || rows[0].Progress.Status() != "Over budget" || core.Dollars(rows[0].Progress.Remaining) != "$0" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestOverviewFallbackEmpty(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.srv.Fail(apitest.RouteOverview, http.StatusInternalServerError)
	ov := h.overview.Load(context.Background())
	if ov.TotalIncome.Cents != 0 || ov.TotalExpenses.Cents != 0 || ov.NetSavings.Cents != 0 || ov.BudgetUsedPercentage != 0 {
		t.Fatalf("expected zeroed fallback, got %+v", ov)
	}
	if ov.RecentTransactions == nil || len(ov.RecentTransactions) != 0 {
		t.Fatalf("expected empty recent transactions")
	}
}

func TestReportsFallbackAndPeriod(t *testing.T) {
	h := newHarness(t, nil, []core.ExpenseItem{
		{ID: "e1", Description: "Salary", Amount: core.Cents(500000), Category: "Work", Date: core.NewDate(2024, 1, 1), Type: core.Income},
		{ID: "e2", Description: "Rent", Amount: core.Cents(150000), Category: "Housing", Date: core.NewDate(2024, 1, 2), Type: core.Expense},
	})
	fixed := time.Date(2024, 1, 20, 8, 0, 0, 0, time.UTC)
	h.reports.now = func() time.Time { return fixed }
	h.srv.Fail(apitest.RouteDetailed, http.StatusInternalServerError)

	h.reports.SelectPeriod(core.PeriodYear)
	rep := h.reports.Load(context.Background())
	if !h.reports.Fallback() || rep.Period.Type != core.PeriodYear || rep.Period.StartDate != "2024-01-20T08:00:00Z" {
		t.Fatalf("unexpected fallback report: %+v", rep.Period)
	}
	if rep.Summary.NetSavings.Cents != 350000 || len(rep.CategorySpending) != 0 || len(rep.MonthlyTrend) != 0 {
		t.Fatalf("unexpected fallback summary: %+v", rep)
	}

	h.reports.SelectPeriod(core.PeriodYear)
	if h.reports.Stale() {
		t.Fatalf("re-selecting the same period must not mark stale")
	}
	h.reports.SelectPeriod(core.PeriodMonth)
	if !h.reports.Stale() {
		t.Fatalf("changing period must mark stale")
	}
}

func TestReportsShares(t *testing.T) {
	h := newHarness(t, nil, []core.ExpenseItem{
		{ID: "e1", Description: "Rent", Amount: core.Cents(30000), Category: "Housing", Date: core.Today(), Type: core.Expense},
		{ID: "e2", Description: "Food", Amount: core.Cents(10000), Category: "Food", Date: core.Today(), Type: core.Expense},
	})
	h.reports.Load(context.Background())
	shares := h.reports.Shares()
	if len(shares) != 2 || shares[0].Category != "Housing" || shares[0].Percent != 75 || shares[1].Percent != 25 {
		t.Fatalf("unexpected shares: %+v", shares)
	}
}
