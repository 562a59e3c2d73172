package amqp

import (
	"context"

	"financeflow/internal/events"
	"financeflow/internal/log"
)

// ChangePublisher is satisfied by *Client.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg *ChangeMessage) error
}

// Bridge forwards local budget and expense mutations to the exchange.
// Events that arrived from another instance are not forwarded again.
type Bridge struct {
	pub    ChangePublisher
	origin string
	logger *log.Logger
	unsub  []func()
}

func NewBridge(bus *events.Bus, pub ChangePublisher, origin string, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default(log.ComponentAMQP)
	}
	b := &Bridge{pub: pub, origin: origin, logger: logger.WithComponent(log.ComponentAMQP)}
	for _, kind := range []events.Kind{events.BudgetsChanged, events.ExpensesChanged} {
		b.unsub = append(b.unsub, bus.Subscribe(kind, b.forward))
	}
	return b
}

// Origin is the name this instance stamps on outgoing changes.
func (b *Bridge) Origin() string {
	return b.origin
}

func (b *Bridge) forward(ctx context.Context, e events.Event) {
	if !e.Local() || e.Op == events.OpRefresh {
		return
	}
	if err := b.pub.PublishChange(ctx, NewChangeMessage(e, b.origin)); err != nil {
		// The local mutation already succeeded; other instances catch up on
		// their next load.
		b.logger.WarnContext(ctx, "Failed to fan out change",
			log.FieldError, err, log.FieldKind, e.Kind, log.FieldID, e.ID)
	}
}

func (b *Bridge) Close() {
	for _, u := range b.unsub {
		u()
	}
	b.unsub = nil
}
