package amqp

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"financeflow/internal/core"
	"financeflow/internal/events"
)

// ChangeMessage announces a mutation made by one client instance to the
// others. It carries no payload: receivers refetch from the backend.
type ChangeMessage struct {
	Kind      events.Kind `json:"kind"`
	Op        events.Op   `json:"op"`
	ID        core.ID     `json:"id,omitempty"`
	Origin    string      `json:"origin"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewChangeMessage wraps a local event for the wire, stamped with origin.
func NewChangeMessage(e events.Event, origin string) *ChangeMessage {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	return &ChangeMessage{
		Kind:      e.Kind,
		Op:        e.Op,
		ID:        e.ID,
		Origin:    origin,
		Timestamp: at.UTC(),
	}
}

// Event turns the message back into a bus event. Origin is kept, so the
// event is never mistaken for a local mutation.
func (m *ChangeMessage) Event() events.Event {
	return events.Event{Kind: m.Kind, Op: m.Op, ID: m.ID, Origin: m.Origin, At: m.Timestamp}
}

func (m *ChangeMessage) Validate() error {
	switch m.Kind {
	case events.BudgetsChanged, events.ExpensesChanged:
	default:
		return fmt.Errorf("unsupported change kind %q", m.Kind)
	}
	switch m.Op {
	case events.OpCreate, events.OpUpdate, events.OpDelete:
	default:
		return fmt.Errorf("unsupported change op %q", m.Op)
	}
	if m.Origin == "" {
		return fmt.Errorf("change message without origin")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and validates a message.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
