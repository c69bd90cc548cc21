package history

import (
	"context"
	"time"
)

// EventType defines the kind of audit event.
type EventType string

const (
	// EventAlert records a fired (non-suppressed) alert.
	EventAlert EventType = "alert"
	// EventRecovery records a recovery action or state transition.
	EventRecovery EventType = "recovery"
)

// Event is one audit entry exported to external systems. This is an
// append-only trail of what the agent did, not a metrics time series; the
// health window itself stays in memory.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name"`     // alert type or recovery action
	Severity   string    `json:"severity"` // info, warning, critical
	Message    string    `json:"message"`
}

// Sink is a destination for audit events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
