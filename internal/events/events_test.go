package events

import (
	"context"
	"testing"
)

func TestBusDispatchByKind(t *testing.T) {
	bus := NewBus()
	var budgets, all int
	bus.Subscribe(BudgetsChanged, func(ctx context.Context, e Event) { budgets++ })
	bus.Subscribe("", func(ctx context.Context, e Event) { all++ })

	ctx := context.Background()
	bus.Publish(ctx, Event{Kind: BudgetsChanged, Op: OpCreate, ID: "b1"})
	bus.Publish(ctx, Event{Kind: ExpensesChanged, Op: OpDelete, ID: "e1"})

	if budgets != 1 {
		t.Fatalf("expected 1 budget event, got %d", budgets)
	}
	if all != 2 {
		t.Fatalf("expected 2 events for catch-all, got %d", all)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	cancel := bus.Subscribe(ExpensesChanged, func(ctx context.Context, e Event) { calls++ })
	bus.Publish(context.Background(), Event{Kind: ExpensesChanged})
	cancel()
	bus.Publish(context.Background(), Event{Kind: ExpensesChanged})
	if calls != 1 {
		t.Fatalf("expected 1 call after unsubscribe, got %d", calls)
	}
}

func TestBusNestedPublish(t *testing.T) {
	bus := NewBus()
	var order []Kind
	bus.Subscribe(ExpensesChanged, func(ctx context.Context, e Event) {
		order = append(order, e.Kind)
		bus.Publish(ctx, Event{Kind: SnapshotUpdated})
	})
	bus.Subscribe(SnapshotUpdated, func(ctx context.Context, e Event) {
		order = append(order, e.Kind)
	})
	bus.Publish(context.Background(), Event{Kind: ExpensesChanged})

	if len(order) != 2 || order[0] != ExpensesChanged || order[1] != SnapshotUpdated {
		t.Fatalf("unexpected dispatch order: %v", order)
	}
}

func TestEventLocal(t *testing.T) {
	if !(Event{}).Local() {
		t.Fatalf("event without origin should be local")
	}
	if (Event{Origin: "laptop"}).Local() {
		t.Fatalf("event with origin should be remote")
	}
}
