package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcanahq/arcana.space/internal/notify"
	"github.com/arcanahq/arcana.space/internal/platform/errors"
	"github.com/arcanahq/arcana.space/internal/reading/audit"
	"github.com/arcanahq/arcana.space/internal/reading/authz"
	"github.com/arcanahq/arcana.space/internal/reading/domain"
	"github.com/arcanahq/arcana.space/internal/reading/layout"
)

// CreateSessionParams describes a session creation request.
type CreateSessionParams struct {
	TemplateID string
	DeckID     string
	ClientID   string
	BookingID  string
	TotalCards int
}

// CreateSession creates a session in the preparing state for the acting reader.
//
// The template must be usable by the actor: approved, or a pending custom
// template the actor created.
func (s *Service) CreateSession(ctx context.Context, actor Actor, params CreateSessionParams) (domain.Session, error) {
	if err := requirePermission(actor, authz.PermissionManageSession); err != nil {
		return domain.Session{}, err
	}

	template, err := s.getTemplate(ctx, params.TemplateID)
	if err != nil {
		return domain.Session{}, err
	}
	if !template.UsableBy(actor.ID) {
		return domain.Session{}, errors.WithMetadata(errors.CodeTemplateNotApproved,
			fmt.Sprintf("template %s is not approved for use by %s", template.ID, actor.ID),
			map[string]string{
				"template_id":     template.ID,
				"approval_status": template.ApprovalStatus.String(),
			})
	}

	deck, err := s.getDeck(ctx, params.DeckID)
	if err != nil {
		return domain.Session{}, err
	}

	session, err := domain.CreateSession(domain.CreateSessionInput{
		Template:   template,
		Deck:       deck,
		ReaderID:   actor.ID,
		ClientID:   params.ClientID,
		BookingID:  params.BookingID,
		TotalCards: params.TotalCards,
		TTL:        s.sessionTTL,
	}, s.now, nil)
	if err != nil {
		return domain.Session{}, err
	}

	if err := s.store.PutSession(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	if err := s.recordAudit(ctx, actor, session.ID, audit.ActionSessionCreated, nil, session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// SessionView is a session snapshot with its slots.
// RemainingCards is withheld: pool order would leak future draws.
type SessionView struct {
	Session domain.Session
	Slots   []domain.Slot
}

// GetSessionState returns the session and its slots.
//
// Actors without session management rights see face-down cards redacted: an
// assigned, unrevealed slot reports occupancy but not card identity or
// orientation.
func (s *Service) GetSessionState(ctx context.Context, actor Actor, sessionID string) (SessionView, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	slots, err := s.store.ListSlots(ctx, sessionID)
	if err != nil {
		return SessionView{}, fmt.Errorf("list slots: %w", err)
	}

	session.RemainingCards = nil
	if !authz.Can(actor.Role, authz.PermissionManageSession) {
		for i := range slots {
			if slots[i].IsAssigned() && !slots[i].IsRevealed {
				// Face-down: DrawnAt still signals occupancy.
				slots[i].AssignedCard = ""
				slots[i].IsReversed = false
			}
		}
	}

	return SessionView{Session: session, Slots: slots}, nil
}

// AdvanceToSetup transitions the session from preparing to setup and
// materializes its slots from the spread template.
func (s *Service) AdvanceToSetup(ctx context.Context, actor Actor, sessionID string) (domain.Session, error) {
	if err := requirePermission(actor, authz.PermissionManageSession); err != nil {
		return domain.Session{}, err
	}

	unlock := s.locks.acquire(sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	updated, err := session.Transition(domain.SessionStateSetup, s.now)
	if err != nil {
		return domain.Session{}, err
	}

	template, err := s.getTemplate(ctx, session.SpreadTemplateID)
	if err != nil {
		return domain.Session{}, err
	}
	slots, err := layout.MaterializeSlots(template, sessionID, session.TotalCardsToDraw)
	if err != nil {
		return domain.Session{}, err
	}

	if err := s.store.PutSlots(ctx, slots); err != nil {
		return domain.Session{}, fmt.Errorf("persist slots: %w", err)
	}
	if err := s.store.PutSession(ctx, updated); err != nil {
		return domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	if err := s.recordAudit(ctx, actor, sessionID, audit.ActionSetupAdvanced, session, updated); err != nil {
		return domain.Session{}, err
	}
	return updated, nil
}

// BeginDrawing transitions the session from setup to drawing.
//
// Every slot must have resolved geometry, and the session takes its private
// copy of the deck's card pool.
func (s *Service) BeginDrawing(ctx context.Context, actor Actor, sessionID string) (domain.Session, error) {
	if err := requirePermission(actor, authz.PermissionManageSession); err != nil {
		return domain.Session{}, err
	}

	unlock := s.locks.acquire(sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	updated, err := session.Transition(domain.SessionStateDrawing, s.now)
	if err != nil {
		return domain.Session{}, err
	}

	slots, err := s.store.ListSlots(ctx, sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("list slots: %w", err)
	}
	for _, slot := range slots {
		if !slot.Geometry.IsResolved() {
			return domain.Session{}, errors.WithMetadata(errors.CodeGeometryUnresolved,
				fmt.Sprintf("slot %d has unresolved geometry", slot.Ordinal),
				map[string]string{
					"session_id": sessionID,
					"ordinal":    fmt.Sprintf("%d", slot.Ordinal),
				})
		}
	}

	deck, err := s.getDeck(ctx, session.DeckID)
	if err != nil {
		return domain.Session{}, err
	}
	updated.RemainingCards = deck.CardIDs()

	if err := s.store.PutSession(ctx, updated); err != nil {
		return domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	if err := s.recordAudit(ctx, actor, sessionID, audit.ActionDrawingStarted, session, updated); err != nil {
		return domain.Session{}, err
	}
	return updated, nil
}

// StopDrawingEarly forces the drawing → interpreting transition while draws
// remain. Unfilled slots stay empty.
func (s *Service) StopDrawingEarly(ctx context.Context, actor Actor, sessionID string) (domain.Session, error) {
	if err := requirePermission(actor, authz.PermissionStopDrawing); err != nil {
		return domain.Session{}, err
	}

	unlock := s.locks.acquire(sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	updated, err := session.Transition(domain.SessionStateInterpreting, s.now)
	if err != nil {
		return domain.Session{}, err
	}

	if err := s.store.PutSession(ctx, updated); err != nil {
		return domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	if err := s.recordAudit(ctx, actor, sessionID, audit.ActionDrawingStopped, session, updated); err != nil {
		return domain.Session{}, err
	}
	return updated, nil
}

// CompleteSession transitions the session from interpreting to completed.
func (s *Service) CompleteSession(ctx context.Context, actor Actor, sessionID string) (domain.Session, error) {
	if err := requirePermission(actor, authz.PermissionManageSession); err != nil {
		return domain.Session{}, err
	}

	unlock := s.locks.acquire(sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	updated, err := session.Transition(domain.SessionStateCompleted, s.now)
	if err != nil {
		return domain.Session{}, err
	}

	if err := s.store.PutSession(ctx, updated); err != nil {
		return domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	if err := s.recordAudit(ctx, actor, sessionID, audit.ActionSessionCompleted, session, updated); err != nil {
		return domain.Session{}, err
	}

	s.dispatch(notify.EventSessionCompleted, sessionID, actor, -1)
	return updated, nil
}

// CancelSession halts the session from any non-terminal state.
func (s *Service) CancelSession(ctx context.Context, actor Actor, sessionID, reason string) (domain.Session, error) {
	if err := requirePermission(actor, authz.PermissionManageSession); err != nil {
		return domain.Session{}, err
	}

	unlock := s.locks.acquire(sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.State.IsTerminal() {
		return domain.Session{}, errors.WithMetadata(errors.CodeSessionTerminal,
			fmt.Sprintf("session %s is already %s", sessionID, session.State),
			map[string]string{"session_id": sessionID, "state": session.State.String()})
	}

	updated, err := session.Transition(domain.SessionStateCancelled, s.now)
	if err != nil {
		return domain.Session{}, err
	}
	updated.CancelReason = strings.TrimSpace(reason)

	if err := s.store.PutSession(ctx, updated); err != nil {
		return domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	if err := s.recordAudit(ctx, actor, sessionID, audit.ActionSessionCancelled, session, updated); err != nil {
		return domain.Session{}, err
	}

	s.dispatch(notify.EventSessionCancelled, sessionID, actor, -1)
	return updated, nil
}

// ListAuditTrail returns the session's audit records in sequence order.
// Reading the trail requires session management rights.
func (s *Service) ListAuditTrail(ctx context.Context, actor Actor, sessionID string) ([]audit.Record, error) {
	if err := requirePermission(actor, authz.PermissionManageSession); err != nil {
		return nil, err
	}
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}

	records, err := s.store.ListAuditRecords(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return records, nil
}

func (s *Service) getTemplate(ctx context.Context, templateID string) (domain.SpreadTemplate, error) {
	template, err := s.store.GetTemplate(ctx, templateID)
	if isStorageNotFound(err) {
		return domain.SpreadTemplate{}, errors.WithMetadata(errors.CodeNotFound,
			fmt.Sprintf("template %s not found", templateID),
			map[string]string{"template_id": templateID})
	}
	if err != nil {
		return domain.SpreadTemplate{}, fmt.Errorf("load template %s: %w", templateID, err)
	}
	return template, nil
}

func (s *Service) getDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	deck, err := s.store.GetDeck(ctx, deckID)
	if isStorageNotFound(err) {
		return domain.Deck{}, errors.WithMetadata(errors.CodeNotFound,
			fmt.Sprintf("deck %s not found", deckID),
			map[string]string{"deck_id": deckID})
	}
	if err != nil {
		return domain.Deck{}, fmt.Errorf("load deck %s: %w", deckID, err)
	}
	return deck, nil
}
