// Package audit records an append-only trail of session mutations.
//
// Every successful state transition, draw, reveal, burn, and manual position
// assignment produces exactly one record; failed operations produce none. The
// trail exists for forensic reconstruction of a session, never for
// authorization decisions.
package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Action identifies the mutation a record captures.
type Action string

const (
	// ActionSessionCreated records session creation.
	ActionSessionCreated Action = "session.created"
	// ActionSetupAdvanced records the preparing → setup transition.
	ActionSetupAdvanced Action = "session.setup_advanced"
	// ActionDrawingStarted records the setup → drawing transition.
	ActionDrawingStarted Action = "session.drawing_started"
	// ActionDrawingStopped records an early stop while slots remain unfilled.
	ActionDrawingStopped Action = "session.drawing_stopped"
	// ActionInterpretingEntered records the automatic transition when draws finish.
	ActionInterpretingEntered Action = "session.interpreting_entered"
	// ActionSessionCompleted records normal completion.
	ActionSessionCompleted Action = "session.completed"
	// ActionSessionCancelled records caller-initiated cancellation.
	ActionSessionCancelled Action = "session.cancelled"
	// ActionSessionExpired records the sweeper aging out a session.
	ActionSessionExpired Action = "session.expired"
	// ActionCardDrawn records a card drawn into a slot.
	ActionCardDrawn Action = "card.drawn"
	// ActionSlotRevealed records a slot reveal.
	ActionSlotRevealed Action = "slot.revealed"
	// ActionSlotBurned records a slot burn.
	ActionSlotBurned Action = "slot.burned"
	// ActionPositionAssigned records manual freeform geometry assignment.
	ActionPositionAssigned Action = "slot.position_assigned"
)

// IsValid reports whether the action is supported.
func (a Action) IsValid() bool {
	switch a {
	case ActionSessionCreated,
		ActionSetupAdvanced,
		ActionDrawingStarted,
		ActionDrawingStopped,
		ActionInterpretingEntered,
		ActionSessionCompleted,
		ActionSessionCancelled,
		ActionSessionExpired,
		ActionCardDrawn,
		ActionSlotRevealed,
		ActionSlotBurned,
		ActionPositionAssigned:
		return true
	default:
		return false
	}
}

// Record captures one immutable session-scoped mutation.
type Record struct {
	SessionID string
	// Seq orders records within a session. Assigned by the store on append.
	Seq       uint64
	ActorID   string
	ActorRole string
	Action    Action
	// Before and After hold JSON snapshots of the mutated entity.
	Before    json.RawMessage
	After     json.RawMessage
	Timestamp time.Time
}

// Appender persists audit records. Append assigns the record's Seq.
type Appender interface {
	AppendAuditRecord(ctx context.Context, record Record) (Record, error)
}

// Recorder appends audit records with consistent timestamps.
type Recorder struct {
	store Appender
	clock func() time.Time
}

// NewRecorder creates a recorder over the given appender.
func NewRecorder(store Appender) *Recorder {
	return &Recorder{store: store, clock: time.Now}
}

// NewRecorderWithClock creates a recorder with an injected clock for tests.
func NewRecorderWithClock(store Appender, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{store: store, clock: clock}
}

// Record appends one audit record. It is a no-op when the store is nil.
func (r *Recorder) Record(ctx context.Context, record Record) (Record, error) {
	if r == nil || r.store == nil {
		return record, nil
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = r.clock().UTC()
	}
	return r.store.AppendAuditRecord(ctx, record)
}

// Snapshot marshals an entity state for a record's before/after fields.
// Marshal failures degrade to a null snapshot rather than failing the mutation.
func Snapshot(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
