// Package service coordinates reading sessions: lifecycle transitions, slot
// geometry, card draws, reveal and burn operations, and the audit trail.
//
// Every mutating call checks the actor's permission first, serializes on the
// session's lock, and appends exactly one audit record per successful
// mutation. Failed operations leave no partial state.
package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/arcanahq/arcana.space/internal/notify"
	"github.com/arcanahq/arcana.space/internal/platform/errors"
	"github.com/arcanahq/arcana.space/internal/random"
	"github.com/arcanahq/arcana.space/internal/reading/audit"
	"github.com/arcanahq/arcana.space/internal/reading/authz"
	"github.com/arcanahq/arcana.space/internal/reading/domain"
	"github.com/arcanahq/arcana.space/internal/storage"
)

// DefaultSessionTTL bounds how long a session may idle in preparing or setup
// before the sweeper expires it.
const DefaultSessionTTL = 30 * time.Minute

// Actor identifies the caller of an operation. Identity verification happens
// upstream; the engine trusts the pair verbatim.
type Actor struct {
	ID   string
	Role authz.Role
}

// Config carries the service's collaborators.
type Config struct {
	Store      storage.Store
	Dispatcher notify.Dispatcher
	// SessionTTL defaults to DefaultSessionTTL when zero.
	SessionTTL time.Duration
	// Now and NewSeed are injectable for tests.
	Now     func() time.Time
	NewSeed func() (int64, error)
}

// Service implements the reading engine's session operations.
type Service struct {
	store      storage.Store
	dispatcher notify.Dispatcher
	recorder   *audit.Recorder
	locks      *sessionLocks
	sessionTTL time.Duration
	now        func() time.Time
	newSeed    func() (int64, error)
}

// New creates a Service from its configuration.
func New(config Config) (*Service, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.SessionTTL == 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.NewSeed == nil {
		config.NewSeed = random.NewSeed
	}

	return &Service{
		store:      config.Store,
		dispatcher: config.Dispatcher,
		recorder:   audit.NewRecorderWithClock(config.Store, config.Now),
		locks:      newSessionLocks(),
		sessionTTL: config.SessionTTL,
		now:        config.Now,
		newSeed:    config.NewSeed,
	}, nil
}

// requirePermission denies the call when the actor's role lacks the permission.
func requirePermission(actor Actor, permission authz.Permission) error {
	if authz.Can(actor.Role, permission) {
		return nil
	}
	return errors.WithMetadata(errors.CodePermissionDenied,
		fmt.Sprintf("role %q lacks permission %s", actor.Role, permission),
		map[string]string{
			"role":       string(actor.Role),
			"permission": string(permission),
		})
}

// requireAnyPermission denies the call when the actor holds none of the permissions.
func requireAnyPermission(actor Actor, permissions ...authz.Permission) error {
	if authz.CanAny(actor.Role, permissions...) {
		return nil
	}
	return errors.WithMetadata(errors.CodePermissionDenied,
		fmt.Sprintf("role %q lacks a permission for this operation", actor.Role),
		map[string]string{"role": string(actor.Role)})
}

// isStorageNotFound reports whether err is the storage layer's missing-record sentinel.
func isStorageNotFound(err error) bool {
	return stderrors.Is(err, storage.ErrNotFound)
}

// getSession loads a session, mapping a storage miss to the domain NotFound code.
func (s *Service) getSession(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if isStorageNotFound(err) {
		return domain.Session{}, errors.WithMetadata(errors.CodeNotFound,
			fmt.Sprintf("session %s not found", sessionID),
			map[string]string{"session_id": sessionID})
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return session, nil
}

// getSlot loads a slot, mapping a storage miss to the domain NotFound code.
func (s *Service) getSlot(ctx context.Context, sessionID string, ordinal int) (domain.Slot, error) {
	slot, err := s.store.GetSlot(ctx, sessionID, ordinal)
	if isStorageNotFound(err) {
		return domain.Slot{}, errors.WithMetadata(errors.CodeNotFound,
			fmt.Sprintf("slot %d not found in session %s", ordinal, sessionID),
			map[string]string{
				"session_id": sessionID,
				"ordinal":    fmt.Sprintf("%d", ordinal),
			})
	}
	if err != nil {
		return domain.Slot{}, fmt.Errorf("load slot %s/%d: %w", sessionID, ordinal, err)
	}
	return slot, nil
}

// recordAudit appends one audit record for a successful mutation.
func (s *Service) recordAudit(ctx context.Context, actor Actor, sessionID string, action audit.Action, before, after any) error {
	_, err := s.recorder.Record(ctx, audit.Record{
		SessionID: sessionID,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Action:    action,
		Before:    audit.Snapshot(before),
		After:     audit.Snapshot(after),
	})
	if err != nil {
		return fmt.Errorf("append audit record %s: %w", action, err)
	}
	return nil
}

// dispatch sends a notification on a background goroutine. Never awaited.
func (s *Service) dispatch(eventType notify.EventType, sessionID string, actor Actor, ordinal int) {
	notify.Go(s.dispatcher, notify.Event{
		Type:      eventType,
		SessionID: sessionID,
		ActorID:   actor.ID,
		Ordinal:   ordinal,
		Timestamp: s.now().UTC(),
	})
}
