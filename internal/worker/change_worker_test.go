package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"financeflow/internal/amqp"
	"financeflow/internal/api"
	"financeflow/internal/apitest"
	"financeflow/internal/core"
	"financeflow/internal/dashboard"
	"financeflow/internal/events"
	"financeflow/internal/log"
)

func setup(t *testing.T, perSecond float64) (*ChangeWorker, *dashboard.Controller, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	srv.Store.Seed(
		[]core.BudgetItem{{ID: "b1", Category: "Food", Budget: core.Cents(10000)}},
		nil,
	)

	bus := events.NewBus()
	client := api.New(srv.BaseURL(), api.WithLogger(log.Discard()))
	ctrl := dashboard.New(client, bus, dashboard.WithLogger(log.Discard()))
	t.Cleanup(ctrl.Close)
	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	srv.ResetHits()

	return NewChangeWorker(bus, "laptop", perSecond, log.Discard()), ctrl, srv
}

func change(kind events.Kind, origin string) *amqp.ChangeMessage {
	return &amqp.ChangeMessage{Kind: kind, Op: events.OpCreate, ID: "x", Origin: origin, Timestamp: time.Now()}
}

func TestRemoteExpenseChangeRefreshesBoth(t *testing.T) {
	w, ctrl, srv := setup(t, 0)

	// Another instance adds an expense directly on the backend.
	srv.Store.CreateExpense(core.ExpenseDraft{
		Description: "Lunch", Amount: core.Cents(1200), Category: "Food",
		Date: core.NewDate(2024, 1, 11), Type: core.Expense,
	})

	if err := w.HandleChange(context.Background(), change(events.ExpensesChanged, "phone")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if srv.Hits(apitest.RouteListExpenses) != 1 || srv.Hits(apitest.RouteListBudgets) != 1 {
		t.Fatalf("expected one refresh of each collection, got expenses=%d budgets=%d",
			srv.Hits(apitest.RouteListExpenses), srv.Hits(apitest.RouteListBudgets))
	}
	if got := ctrl.Expenses(); len(got) != 1 || got[0].Description != "Lunch" {
		t.Fatalf("expenses not refreshed: %+v", got)
	}
	if got := ctrl.Budgets(); got[0].Spent.Cents != 1200 {
		t.Fatalf("budget spent not refreshed: %+v", got)
	}
	if applied, skipped := w.Stats(); applied != 1 || skipped != 0 {
		t.Fatalf("stats = %d/%d", applied, skipped)
	}
}

func TestRemoteBudgetChangeRefreshesBudgetsOnly(t *testing.T) {
	w, _, srv := setup(t, 0)

	if err := w.HandleChange(context.Background(), change(events.BudgetsChanged, "phone")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if srv.Hits(apitest.RouteListBudgets) != 1 || srv.Hits(apitest.RouteListExpenses) != 0 {
		t.Fatalf("unexpected hits: budgets=%d expenses=%d",
			srv.Hits(apitest.RouteListBudgets), srv.Hits(apitest.RouteListExpenses))
	}
}

func TestOwnEchoIsSkipped(t *testing.T) {
	w, _, srv := setup(t, 0)

	if err := w.HandleChange(context.Background(), change(events.ExpensesChanged, "laptop")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if srv.TotalHits() != 0 {
		t.Fatalf("echo must not trigger requests, got %d", srv.TotalHits())
	}
	if _, skipped := w.Stats(); skipped != 1 {
		t.Fatalf("expected 1 skipped echo")
	}
}

func TestRateLimitHonoursCancellation(t *testing.T) {
	w, _, _ := setup(t, 0.001)
	ctx := context.Background()

	if err := w.HandleChange(ctx, change(events.BudgetsChanged, "phone")); err != nil {
		t.Fatalf("first change should pass the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := w.HandleChange(ctx, change(events.BudgetsChanged, "phone"))
	if err == nil {
		t.Fatalf("expected the limiter to refuse a second change")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected cancellation error: %v", err)
	}
}
