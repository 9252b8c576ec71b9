package history

import (
	"context"
	"time"
)

// EventType defines the kind of job event.
type EventType string

const (
	EventStart  EventType = "start"
	EventFinish EventType = "finish"
)

// Event is one entry of the job ledger. Outcome and Code are only set for
// EventFinish.
type Event struct {
	Type       EventType
	OccurredAt time.Time
	PID        int
	Kind       string
	Command    string
	Outcome    string
	Code       int
}

// Sink is a destination for job events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }
