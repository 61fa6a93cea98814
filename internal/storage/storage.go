// Package storage defines the persistence interfaces for the reading engine.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/arcanahq/arcana.space/internal/reading/audit"
	"github.com/arcanahq/arcana.space/internal/reading/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// TemplateStore persists spread template catalog records.
// The engine reads templates; writes happen through catalog import paths.
type TemplateStore interface {
	PutTemplate(ctx context.Context, template domain.SpreadTemplate) error
	GetTemplate(ctx context.Context, id string) (domain.SpreadTemplate, error)
}

// DeckStore persists deck catalog records.
type DeckStore interface {
	PutDeck(ctx context.Context, deck domain.Deck) error
	GetDeck(ctx context.Context, id string) (domain.Deck, error)
}

// SessionStore persists reading session records.
type SessionStore interface {
	PutSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	// ListExpiredSessions returns sessions still in preparing or setup whose
	// expiry precedes now. Used by the background sweep.
	ListExpiredSessions(ctx context.Context, now time.Time) ([]domain.Session, error)
}

// SlotStore persists the slots of a session.
type SlotStore interface {
	PutSlots(ctx context.Context, slots []domain.Slot) error
	PutSlot(ctx context.Context, slot domain.Slot) error
	GetSlot(ctx context.Context, sessionID string, ordinal int) (domain.Slot, error)
	ListSlots(ctx context.Context, sessionID string) ([]domain.Slot, error)
}

// AuditStore persists the append-only audit trail.
// AppendAuditRecord assigns the per-session sequence number; no update or
// delete operation exists.
type AuditStore interface {
	AppendAuditRecord(ctx context.Context, record audit.Record) (audit.Record, error)
	ListAuditRecords(ctx context.Context, sessionID string) ([]audit.Record, error)
}

// Store groups every persistence interface the engine needs.
type Store interface {
	TemplateStore
	DeckStore
	SessionStore
	SlotStore
	AuditStore
}
