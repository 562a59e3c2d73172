// Package worker applies changes announced by other client instances to
// this instance's dashboard.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"financeflow/internal/amqp"
	"financeflow/internal/events"
	"financeflow/internal/log"
)

// ChangeWorker re-publishes remote changes into the local event bus so the
// usual refresh rule runs: budgets after budget changes, expenses then
// budgets after expense changes.
type ChangeWorker struct {
	bus     events.Publisher
	self    string
	limiter *rate.Limiter
	logger  *log.Logger

	applied atomic.Int64
	skipped atomic.Int64
}

// NewChangeWorker creates a worker for the instance named self. At most
// perSecond changes are applied per second; a burst of the same size is
// allowed.
func NewChangeWorker(bus events.Publisher, self string, perSecond float64, logger *log.Logger) *ChangeWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = max(1, int(perSecond))
	}
	return &ChangeWorker{
		bus:     bus,
		self:    self,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleChange is an amqp.Handler. Echoes of this instance's own changes
// are acknowledged without effect.
func (w *ChangeWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg.Origin == w.self {
		w.skipped.Add(1)
		return nil
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	start := time.Now()
	w.bus.Publish(ctx, msg.Event())
	w.applied.Add(1)

	w.logger.InfoContext(ctx, "Applied remote change",
		log.FieldKind, msg.Kind,
		log.FieldOperation, msg.Op,
		log.FieldID, msg.ID,
		log.FieldOrigin, msg.Origin,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Stats returns how many changes were applied and how many echoes skipped.
func (w *ChangeWorker) Stats() (applied, skipped int64) {
	return w.applied.Load(), w.skipped.Load()
}
