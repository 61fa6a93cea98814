// Package memory provides an in-memory store for tests and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arcanahq/arcana.space/internal/reading/audit"
	"github.com/arcanahq/arcana.space/internal/reading/domain"
	"github.com/arcanahq/arcana.space/internal/storage"
)

type slotKey struct {
	sessionID string
	ordinal   int
}

// Store keeps all records in process memory, guarded by a single mutex.
// Suitable for tests and single-node development, not for production.
type Store struct {
	mu        sync.RWMutex
	templates map[string]domain.SpreadTemplate
	decks     map[string]domain.Deck
	sessions  map[string]domain.Session
	slots     map[slotKey]domain.Slot
	audits    map[string][]audit.Record
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		templates: make(map[string]domain.SpreadTemplate),
		decks:     make(map[string]domain.Deck),
		sessions:  make(map[string]domain.Session),
		slots:     make(map[slotKey]domain.Slot),
		audits:    make(map[string][]audit.Record),
	}
}

// PutTemplate stores a spread template record.
func (s *Store) PutTemplate(ctx context.Context, template domain.SpreadTemplate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[template.ID] = template
	return nil
}

// GetTemplate returns a spread template by id.
func (s *Store) GetTemplate(ctx context.Context, id string) (domain.SpreadTemplate, error) {
	if err := ctx.Err(); err != nil {
		return domain.SpreadTemplate{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	template, ok := s.templates[id]
	if !ok {
		return domain.SpreadTemplate{}, storage.ErrNotFound
	}
	return template, nil
}

// PutDeck stores a deck record.
func (s *Store) PutDeck(ctx context.Context, deck domain.Deck) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decks[deck.ID] = deck
	return nil
}

// GetDeck returns a deck by id.
func (s *Store) GetDeck(ctx context.Context, id string) (domain.Deck, error) {
	if err := ctx.Err(); err != nil {
		return domain.Deck{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	deck, ok := s.decks[id]
	if !ok {
		return domain.Deck{}, storage.ErrNotFound
	}
	return deck, nil
}

// PutSession stores a session record.
func (s *Store) PutSession(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

// GetSession returns a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	return session, nil
}

// ListExpiredSessions returns preparing/setup sessions whose expiry precedes now.
func (s *Store) ListExpiredSessions(ctx context.Context, now time.Time) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var expired []domain.Session
	for _, session := range s.sessions {
		if session.State != domain.SessionStatePreparing && session.State != domain.SessionStateSetup {
			continue
		}
		if session.ExpiresAt.Before(now) {
			expired = append(expired, session)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	return expired, nil
}

// PutSlots stores a batch of slots.
func (s *Store) PutSlots(ctx context.Context, slots []domain.Slot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range slots {
		s.slots[slotKey{slot.SessionID, slot.Ordinal}] = slot
	}
	return nil
}

// PutSlot stores a single slot.
func (s *Store) PutSlot(ctx context.Context, slot domain.Slot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slotKey{slot.SessionID, slot.Ordinal}] = slot
	return nil
}

// GetSlot returns one slot by session id and ordinal.
func (s *Store) GetSlot(ctx context.Context, sessionID string, ordinal int) (domain.Slot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Slot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[slotKey{sessionID, ordinal}]
	if !ok {
		return domain.Slot{}, storage.ErrNotFound
	}
	return slot, nil
}

// ListSlots returns a session's slots in ordinal order.
func (s *Store) ListSlots(ctx context.Context, sessionID string) ([]domain.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var slots []domain.Slot
	for key, slot := range s.slots {
		if key.sessionID == sessionID {
			slots = append(slots, slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Ordinal < slots[j].Ordinal })
	return slots, nil
}

// AppendAuditRecord appends one audit record, assigning the next sequence number.
func (s *Store) AppendAuditRecord(ctx context.Context, record audit.Record) (audit.Record, error) {
	if err := ctx.Err(); err != nil {
		return audit.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Seq = uint64(len(s.audits[record.SessionID]) + 1)
	s.audits[record.SessionID] = append(s.audits[record.SessionID], record)
	return record, nil
}

// ListAuditRecords returns a session's audit trail in sequence order.
func (s *Store) ListAuditRecords(ctx context.Context, sessionID string) ([]audit.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]audit.Record, len(s.audits[sessionID]))
	copy(records, s.audits[sessionID])
	return records, nil
}
