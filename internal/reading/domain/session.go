package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/arcanahq/arcana.space/internal/platform/errors"
	"github.com/arcanahq/arcana.space/internal/platform/id"
)

// SessionState describes the lifecycle state of a reading session.
type SessionState int

const (
	// SessionStateUnspecified represents an invalid session state value.
	SessionStateUnspecified SessionState = iota
	// SessionStatePreparing indicates the session exists but has no slots yet.
	SessionStatePreparing
	// SessionStateSetup indicates slots are materialized and geometry may be assigned.
	SessionStateSetup
	// SessionStateDrawing indicates cards are being drawn into slots.
	SessionStateDrawing
	// SessionStateInterpreting indicates drawing is done and the reading is underway.
	SessionStateInterpreting
	// SessionStateCompleted indicates the reading finished normally. Terminal.
	SessionStateCompleted
	// SessionStateCancelled indicates a caller halted the session. Terminal.
	SessionStateCancelled
	// SessionStateExpired indicates the session aged out before drawing. Terminal.
	SessionStateExpired
)

// String returns the lowercase state name used in audit records and API payloads.
func (s SessionState) String() string {
	switch s {
	case SessionStatePreparing:
		return "preparing"
	case SessionStateSetup:
		return "setup"
	case SessionStateDrawing:
		return "drawing"
	case SessionStateInterpreting:
		return "interpreting"
	case SessionStateCompleted:
		return "completed"
	case SessionStateCancelled:
		return "cancelled"
	case SessionStateExpired:
		return "expired"
	default:
		return "unspecified"
	}
}

// SessionStateFromString parses a lowercase state name.
func SessionStateFromString(value string) SessionState {
	switch strings.TrimSpace(value) {
	case "preparing":
		return SessionStatePreparing
	case "setup":
		return SessionStateSetup
	case "drawing":
		return SessionStateDrawing
	case "interpreting":
		return SessionStateInterpreting
	case "completed":
		return SessionStateCompleted
	case "cancelled":
		return SessionStateCancelled
	case "expired":
		return SessionStateExpired
	default:
		return SessionStateUnspecified
	}
}

// IsTerminal reports whether no further mutation is allowed in this state.
func (s SessionState) IsTerminal() bool {
	switch s {
	case SessionStateCompleted, SessionStateCancelled, SessionStateExpired:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the forward transition from s to next is legal.
//
// Cancelled is reachable from any non-terminal state. Expired is reachable only
// from Preparing and Setup. The remaining transitions follow the linear
// lifecycle preparing → setup → drawing → interpreting → completed.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case SessionStateCancelled:
		return true
	case SessionStateExpired:
		return s == SessionStatePreparing || s == SessionStateSetup
	case SessionStateSetup:
		return s == SessionStatePreparing
	case SessionStateDrawing:
		return s == SessionStateSetup
	case SessionStateInterpreting:
		return s == SessionStateDrawing
	case SessionStateCompleted:
		return s == SessionStateInterpreting
	default:
		return false
	}
}

// Session represents a live reading session built from a spread template and a deck.
type Session struct {
	ID               string
	ReaderID         string
	ClientID         string // empty for direct solo readings
	BookingID        string // opaque correlation id, may be empty
	SpreadTemplateID string
	DeckID           string
	State            SessionState
	TotalCardsToDraw int
	CardsRemaining   int
	// RemainingCards is the session's private copy of un-drawn card ids,
	// populated when drawing begins. Sessions never share pool state.
	RemainingCards []string
	CancelReason   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      time.Time
	CompletedAt    *time.Time // nil until the session completes
}

// CreateSessionInput describes the data needed to create a session.
type CreateSessionInput struct {
	Template   SpreadTemplate
	Deck       Deck
	ReaderID   string
	ClientID   string
	BookingID  string
	TotalCards int
	TTL        time.Duration
}

// CreateSession creates a session in the Preparing state.
//
// TotalCards must fall within the template's configured min/max bounds when
// those bounds are set. The deck must hold at least one card; a deck smaller
// than TotalCards is allowed and exhausts during drawing.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.ReaderID = strings.TrimSpace(input.ReaderID)
	if input.ReaderID == "" {
		return Session{}, errors.New(errors.CodeNotFound, "reader id is required")
	}
	if err := input.Template.ValidateCardCount(input.TotalCards); err != nil {
		return Session{}, err
	}
	// An undersized deck is allowed; draws exhaust it mid-session. Only a
	// deck with no cards at all cannot back a session.
	if len(input.Deck.Cards) == 0 {
		return Session{}, errors.WithMetadata(errors.CodeDeckEmpty,
			fmt.Sprintf("deck %s holds no cards", input.Deck.ID),
			map[string]string{"deck_id": input.Deck.ID})
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	createdAt := now().UTC()
	return Session{
		ID:               sessionID,
		ReaderID:         input.ReaderID,
		ClientID:         strings.TrimSpace(input.ClientID),
		BookingID:        strings.TrimSpace(input.BookingID),
		SpreadTemplateID: input.Template.ID,
		DeckID:           input.Deck.ID,
		State:            SessionStatePreparing,
		TotalCardsToDraw: input.TotalCards,
		CardsRemaining:   input.TotalCards,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
		ExpiresAt:        createdAt.Add(input.TTL),
	}, nil
}

// Transition validates and applies a state transition, returning the updated session.
// The session value is unchanged on error.
func (s Session) Transition(next SessionState, now func() time.Time) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if !s.State.CanTransitionTo(next) {
		return s, errors.WithMetadata(errors.CodeSessionInvalidTransition,
			fmt.Sprintf("cannot transition session from %s to %s", s.State, next),
			map[string]string{
				"from": s.State.String(),
				"to":   next.String(),
			})
	}

	s.State = next
	s.UpdatedAt = now().UTC()
	if next == SessionStateCompleted {
		completedAt := s.UpdatedAt
		s.CompletedAt = &completedAt
	}
	return s, nil
}
