package service

import (
	"context"
	"fmt"

	"github.com/arcanahq/arcana.space/internal/notify"
	"github.com/arcanahq/arcana.space/internal/platform/errors"
	"github.com/arcanahq/arcana.space/internal/reading/audit"
	"github.com/arcanahq/arcana.space/internal/reading/authz"
	"github.com/arcanahq/arcana.space/internal/reading/domain"
	"github.com/arcanahq/arcana.space/internal/reading/draw"
	"github.com/arcanahq/arcana.space/internal/reading/layout"
)

// AssignPosition applies caller-supplied freeform geometry to a slot during setup.
//
// Geometry freezes once drawing begins. Fixed-layout templates reject caller
// geometry outright.
func (s *Service) AssignPosition(ctx context.Context, actor Actor, sessionID string, ordinal int, geometry domain.Geometry) (domain.Slot, error) {
	if err := requirePermission(actor, authz.PermissionManualPositionAssignment); err != nil {
		return domain.Slot{}, err
	}

	unlock := s.locks.acquire(sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domain.Slot{}, err
	}
	if session.State.IsTerminal() {
		return domain.Slot{}, errors.WithMetadata(errors.CodeSessionTerminal,
			fmt.Sprintf("session %s is %s", sessionID, session.State),
			map[string]string{"session_id": sessionID, "state": session.State.String()})
	}
	if session.State == domain.SessionStateDrawing || session.State == domain.SessionStateInterpreting {
		return domain.Slot{}, errors.WithMetadata(errors.CodeGeometryFrozenAfterDrawing,
			fmt.Sprintf("session %s geometry is frozen in state %s", sessionID, session.State),
			map[string]string{"session_id": sessionID, "state": session.State.String()})
	}

	template, err := s.getTemplate(ctx, session.SpreadTemplateID)
	if err != nil {
		return domain.Slot{}, err
	}
	resolved, err := layout.ResolveManualGeometry(template, geometry)
	if err != nil {
		return domain.Slot{}, err
	}

	slot, err := s.getSlot(ctx, sessionID, ordinal)
	if err != nil {
		return domain.Slot{}, err
	}

	updated := slot
	updated.Geometry = resolved
	updated.AssignmentMode = domain.AssignmentModeManual
	updated.AssignedBy = actor.ID

	if err := s.store.PutSlot(ctx, updated); err != nil {
		return domain.Slot{}, fmt.Errorf("persist slot: %w", err)
	}
	if err := s.recordAudit(ctx, actor, sessionID, audit.ActionPositionAssigned, slot, updated); err != nil {
		return domain.Slot{}, err
	}
	return updated, nil
}

// DrawParams targets a draw. A nil Ordinal draws into the lowest-ordinal
// unassigned slot.
type DrawParams struct {
	Ordinal *int
}

// DrawOutcome is the result of one draw.
type DrawOutcome struct {
	Slot    domain.Slot
	Session domain.Session
	// Retried is set when an explicit ordinal targeted an already-assigned
	// slot and the existing assignment was returned unchanged.
	Retried bool
}

// DrawCard draws one card from the session's remaining pool into a slot.
//
// Draws are serialized per session; the same seed and pool always produce the
// same card, and the seed is recorded in the audit trail so any draw can be
// replayed. Retrying an explicit ordinal that is already assigned returns the
// existing assignment instead of failing.
func (s *Service) DrawCard(ctx context.Context, actor Actor, sessionID string, params DrawParams) (DrawOutcome, error) {
	if err := requirePermission(actor, authz.PermissionDrawCards); err != nil {
		return DrawOutcome{}, err
	}

	unlock := s.locks.acquire(sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return DrawOutcome{}, err
	}
	if session.State != domain.SessionStateDrawing {
		return DrawOutcome{}, errors.WithMetadata(errors.CodeSessionNotDrawing,
			fmt.Sprintf("session %s is %s, draws require drawing", sessionID, session.State),
			map[string]string{"session_id": sessionID, "state": session.State.String()})
	}

	slot, retried, err := s.targetSlot(ctx, sessionID, params)
	if err != nil {
		return DrawOutcome{}, err
	}
	if retried {
		return DrawOutcome{Slot: slot, Session: session, Retried: true}, nil
	}

	deck, err := s.getDeck(ctx, session.DeckID)
	if err != nil {
		return DrawOutcome{}, err
	}
	seed, err := s.newSeed()
	if err != nil {
		return DrawOutcome{}, fmt.Errorf("generate draw seed: %w", err)
	}

	result, err := draw.DrawCard(draw.Request{
		Pool:                session.RemainingCards,
		Seed:                seed,
		SupportsReversals:   deck.SupportsReversals,
		ReversalProbability: deck.ReversalProbability,
	})
	if err != nil {
		return DrawOutcome{}, err
	}

	drawnAt := s.now().UTC()
	updatedSlot := slot
	updatedSlot.AssignedCard = result.CardID
	updatedSlot.IsReversed = result.Reversed
	updatedSlot.DrawnAt = &drawnAt

	updatedSession := session
	updatedSession.RemainingCards = result.Remaining
	updatedSession.CardsRemaining = session.CardsRemaining - 1
	updatedSession.UpdatedAt = drawnAt

	if err := s.store.PutSlot(ctx, updatedSlot); err != nil {
		return DrawOutcome{}, fmt.Errorf("persist slot: %w", err)
	}
	if err := s.store.PutSession(ctx, updatedSession); err != nil {
		return DrawOutcome{}, fmt.Errorf("persist session: %w", err)
	}
	if err := s.recordAudit(ctx, actor, sessionID, audit.ActionCardDrawn,
		drawSnapshot{Slot: slot, Pool: len(session.RemainingCards)},
		drawSnapshot{Slot: updatedSlot, Pool: len(result.Remaining), Seed: seed},
	); err != nil {
		return DrawOutcome{}, err
	}

	// Last draw completes the phase.
	if updatedSession.CardsRemaining == 0 {
		interpreting, err := updatedSession.Transition(domain.SessionStateInterpreting, s.now)
		if err != nil {
			return DrawOutcome{}, err
		}
		if err := s.store.PutSession(ctx, interpreting); err != nil {
			return DrawOutcome{}, fmt.Errorf("persist session: %w", err)
		}
		if err := s.recordAudit(ctx, actor, sessionID, audit.ActionInterpretingEntered, updatedSession, interpreting); err != nil {
			return DrawOutcome{}, err
		}
		updatedSession = interpreting
	}

	s.dispatch(notify.EventCardDrawn, sessionID, actor, updatedSlot.Ordinal)
	return DrawOutcome{Slot: updatedSlot, Session: updatedSession}, nil
}

// drawSnapshot is the audit payload for a draw: the slot, the pool size, and
// the seed that produced the result.
type drawSnapshot struct {
	Slot domain.Slot `json:"slot"`
	Pool int         `json:"pool_size"`
	Seed int64       `json:"seed,omitempty"`
}

// targetSlot resolves the slot a draw fills. Explicit ordinals retry
// idempotently when already assigned; implicit targeting picks the
// lowest-ordinal unassigned, unburned slot.
func (s *Service) targetSlot(ctx context.Context, sessionID string, params DrawParams) (domain.Slot, bool, error) {
	if params.Ordinal != nil {
		slot, err := s.getSlot(ctx, sessionID, *params.Ordinal)
		if err != nil {
			return domain.Slot{}, false, err
		}
		if slot.IsBurned {
			return domain.Slot{}, false, errors.WithMetadata(errors.CodeSlotBurned,
				fmt.Sprintf("slot %d is burned", slot.Ordinal),
				map[string]string{"session_id": sessionID, "ordinal": fmt.Sprintf("%d", slot.Ordinal)})
		}
		if slot.IsAssigned() {
			return slot, true, nil
		}
		return slot, false, nil
	}

	slots, err := s.store.ListSlots(ctx, sessionID)
	if err != nil {
		return domain.Slot{}, false, fmt.Errorf("list slots: %w", err)
	}
	for _, slot := range slots {
		if !slot.IsAssigned() && !slot.IsBurned {
			return slot, false, nil
		}
	}
	return domain.Slot{}, false, errors.WithMetadata(errors.CodePositionConflict,
		"every slot already holds a card",
		map[string]string{"session_id": sessionID})
}

// RevealCard turns a drawn card face-up. Revealing is idempotent; a burned
// slot can never be revealed.
func (s *Service) RevealCard(ctx context.Context, actor Actor, sessionID string, ordinal int) (domain.Slot, error) {
	if err := requireAnyPermission(actor, authz.PermissionDrawCards, authz.PermissionViewRevealed); err != nil {
		return domain.Slot{}, err
	}

	unlock := s.locks.acquire(sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domain.Slot{}, err
	}
	if session.State.IsTerminal() {
		return domain.Slot{}, errors.WithMetadata(errors.CodeSessionTerminal,
			fmt.Sprintf("session %s is %s", sessionID, session.State),
			map[string]string{"session_id": sessionID, "state": session.State.String()})
	}

	slot, err := s.getSlot(ctx, sessionID, ordinal)
	if err != nil {
		return domain.Slot{}, err
	}
	if slot.IsBurned {
		return domain.Slot{}, errors.WithMetadata(errors.CodeSlotBurned,
			fmt.Sprintf("slot %d is burned and cannot be revealed", ordinal),
			map[string]string{"session_id": sessionID, "ordinal": fmt.Sprintf("%d", ordinal)})
	}
	if !slot.IsAssigned() {
		return domain.Slot{}, errors.WithMetadata(errors.CodeSlotUnassigned,
			fmt.Sprintf("slot %d holds no card", ordinal),
			map[string]string{"session_id": sessionID, "ordinal": fmt.Sprintf("%d", ordinal)})
	}
	if slot.IsRevealed {
		return slot, nil
	}

	revealedAt := s.now().UTC()
	updated := slot
	updated.IsRevealed = true
	updated.RevealedAt = &revealedAt

	if err := s.store.PutSlot(ctx, updated); err != nil {
		return domain.Slot{}, fmt.Errorf("persist slot: %w", err)
	}
	if err := s.recordAudit(ctx, actor, sessionID, audit.ActionSlotRevealed, slot, updated); err != nil {
		return domain.Slot{}, err
	}

	s.dispatch(notify.EventCardRevealed, sessionID, actor, ordinal)
	return updated, nil
}

// BurnCard discards a drawn card face-down. Burning is idempotent; burning an
// already-revealed slot requires the override permission.
func (s *Service) BurnCard(ctx context.Context, actor Actor, sessionID string, ordinal int, reason string) (domain.Slot, error) {
	if err := requirePermission(actor, authz.PermissionBurnCards); err != nil {
		return domain.Slot{}, err
	}

	unlock := s.locks.acquire(sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domain.Slot{}, err
	}
	if session.State.IsTerminal() {
		return domain.Slot{}, errors.WithMetadata(errors.CodeSessionTerminal,
			fmt.Sprintf("session %s is %s", sessionID, session.State),
			map[string]string{"session_id": sessionID, "state": session.State.String()})
	}

	slot, err := s.getSlot(ctx, sessionID, ordinal)
	if err != nil {
		return domain.Slot{}, err
	}
	if !slot.IsAssigned() {
		return domain.Slot{}, errors.WithMetadata(errors.CodeSlotUnassigned,
			fmt.Sprintf("slot %d holds no card", ordinal),
			map[string]string{"session_id": sessionID, "ordinal": fmt.Sprintf("%d", ordinal)})
	}
	if slot.IsBurned {
		return slot, nil
	}
	if slot.IsRevealed {
		if err := requirePermission(actor, authz.PermissionBurnRevealedOverride); err != nil {
			return domain.Slot{}, err
		}
	}

	burnedAt := s.now().UTC()
	updated := slot
	updated.IsBurned = true
	updated.BurnedAt = &burnedAt
	updated.BurnedBy = actor.ID
	updated.BurnReason = reason

	if err := s.store.PutSlot(ctx, updated); err != nil {
		return domain.Slot{}, fmt.Errorf("persist slot: %w", err)
	}
	if err := s.recordAudit(ctx, actor, sessionID, audit.ActionSlotBurned, slot, updated); err != nil {
		return domain.Slot{}, err
	}
	return updated, nil
}
