// Package notify dispatches session events to external sinks.
//
// Delivery is fire-and-forget: the engine never awaits a sink, and sink
// failures never fail the originating call.
package notify

import (
	"context"
	"log"
	"time"
)

// EventType identifies the notification kind.
type EventType string

const (
	// EventCardDrawn announces a card drawn into a slot.
	EventCardDrawn EventType = "card_drawn"
	// EventCardRevealed announces a slot reveal.
	EventCardRevealed EventType = "card_revealed"
	// EventSessionCompleted announces normal session completion.
	EventSessionCompleted EventType = "session_completed"
	// EventSessionCancelled announces caller-initiated cancellation.
	EventSessionCancelled EventType = "session_cancelled"
)

// Event is one notification payload.
type Event struct {
	Type      EventType
	SessionID string
	ActorID   string
	// Ordinal is the affected slot for slot-scoped events, -1 otherwise.
	Ordinal   int
	Timestamp time.Time
}

// Dispatcher delivers events to an external sink.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// dispatchTimeout bounds how long a background delivery may run.
const dispatchTimeout = 5 * time.Second

// Go delivers the event on a background goroutine. Errors are logged and
// dropped; the caller's operation has already succeeded.
func Go(dispatcher Dispatcher, event Event) {
	if dispatcher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := dispatcher.Dispatch(ctx, event); err != nil {
			log.Printf("notification dispatch failed type=%s session_id=%s: %v", event.Type, event.SessionID, err)
		}
	}()
}

// LogDispatcher writes events to the process log. It is the default sink in
// development and a stand-in for the platform's delivery service.
type LogDispatcher struct{}

// Dispatch implements Dispatcher.
func (LogDispatcher) Dispatch(_ context.Context, event Event) error {
	log.Printf("notify type=%s session_id=%s actor_id=%s ordinal=%d", event.Type, event.SessionID, event.ActorID, event.Ordinal)
	return nil
}
