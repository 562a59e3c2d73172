// Package events carries the typed change notifications that keep the
// dashboard's sibling views consistent after a mutation.
package events

import (
	"context"
	"sync"
	"time"

	"financeflow/internal/core"
)

// Kind identifies what changed.
type Kind string

const (
	// BudgetsChanged is published after a budget is created, updated or deleted.
	BudgetsChanged Kind = "budgets:changed"
	// ExpensesChanged is published after a transaction is created, updated
	// or deleted. Budget spent totals depend on it too.
	ExpensesChanged Kind = "expenses:changed"
	// SnapshotUpdated is published whenever a canonical collection is replaced.
	SnapshotUpdated Kind = "snapshot:updated"
)

// Op is the mutation that caused the event.
type Op string

const (
	OpCreate  Op = "create"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
	OpRefresh Op = "refresh"
)

// Event is a single change notification. Origin is empty for mutations made
// by this process and holds the remote instance name for mirrored ones.
type Event struct {
	Kind   Kind
	Op     Op
	ID     core.ID
	Origin string
	At     time.Time
}

// Local reports whether the mutation happened in this process.
func (e Event) Local() bool {
	return e.Origin == ""
}

type Handler func(ctx context.Context, e Event)

// Publisher is what mutation sources depend on.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type subscription struct {
	id   int
	kind Kind
	fn   Handler
}

// Bus dispatches events synchronously, in subscription order, on the
// publisher's goroutine. Handlers may publish further events.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for one kind. An empty kind receives every event.
// The returned func removes the subscription.
func (b *Bus) Subscribe(kind Kind, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kind: kind, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kind == "" || s.kind == e.Kind {
			targets = append(targets, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(ctx, e)
	}
}
