package amqp

import (
	"context"
	"errors"
	"testing"
	"time"

	"financeflow/internal/events"
	"financeflow/internal/log"
)

func TestChangeMessageRoundTrip(t *testing.T) {
	at := time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)
	msg := NewChangeMessage(events.Event{Kind: events.ExpensesChanged, Op: events.OpCreate, ID: "e1", At: at}, "laptop")

	raw, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	parsed, err := ChangeMessageFromJSON(raw)
	if err != nil {
		t.Fatalf("ChangeMessageFromJSON: %v", err)
	}

	ev := parsed.Event()
	if ev.Kind != events.ExpensesChanged || ev.Op != events.OpCreate || ev.ID != "e1" || !ev.At.Equal(at) {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Local() {
		t.Fatalf("a mirrored event must not look local")
	}
}

func TestChangeMessageValidate(t *testing.T) {
	bad := []ChangeMessage{
		{Kind: events.SnapshotUpdated, Op: events.OpRefresh, Origin: "x"},
		{Kind: events.BudgetsChanged, Op: events.OpRefresh, Origin: "x"},
		{Kind: events.BudgetsChanged, Op: events.OpCreate},
	}
	for i, m := range bad {
		if err := m.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

type recordingPublisher struct {
	sent []*ChangeMessage
	err  error
}

func (r *recordingPublisher) PublishChange(_ context.Context, msg *ChangeMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestBridgeForwardsLocalMutationsOnly(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	pub := &recordingPublisher{}
	bridge := NewBridge(bus, pub, "laptop", log.Discard())

	bus.Publish(ctx, events.Event{Kind: events.BudgetsChanged, Op: events.OpCreate, ID: "b1"})
	bus.Publish(ctx, events.Event{Kind: events.ExpensesChanged, Op: events.OpDelete, ID: "e1", Origin: "phone"})
	bus.Publish(ctx, events.Event{Kind: events.SnapshotUpdated, Op: events.OpRefresh})

	if len(pub.sent) != 1 {
		t.Fatalf("expected 1 forwarded change, got %d", len(pub.sent))
	}
	if got := pub.sent[0]; got.Kind != events.BudgetsChanged || got.ID != "b1" || got.Origin != "laptop" {
		t.Fatalf("unexpected message: %+v", got)
	}

	pub.err = errors.New("broker down")
	bus.Publish(ctx, events.Event{Kind: events.ExpensesChanged, Op: events.OpUpdate, ID: "e2"})
	if len(pub.sent) != 2 {
		t.Fatalf("publish failures must not stop forwarding")
	}

	bridge.Close()
	bus.Publish(ctx, events.Event{Kind: events.BudgetsChanged, Op: events.OpDelete, ID: "b1"})
	if len(pub.sent) != 2 {
		t.Fatalf("closed bridge must not forward")
	}
}
