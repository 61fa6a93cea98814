package service

import (
	"context"
	"testing"
	"time"

	"github.com/arcanahq/arcana.space/internal/platform/errors"
	"github.com/arcanahq/arcana.space/internal/reading/audit"
	"github.com/arcanahq/arcana.space/internal/reading/authz"
	"github.com/arcanahq/arcana.space/internal/reading/domain"
	"github.com/arcanahq/arcana.space/internal/storage/memory"
)

var (
	readerActor = Actor{ID: "reader-1", Role: authz.RoleReader}
	clientActor = Actor{ID: "client-1", Role: authz.RoleClient}
	adminActor  = Actor{ID: "admin-1", Role: authz.RoleAdmin}
)

type fixture struct {
	service *Service
	store   *memory.Store
	clock   *fakeClock
}

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	clock := &fakeClock{current: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}

	seed := int64(0)
	service, err := New(Config{
		Store:      store,
		SessionTTL: 30 * time.Minute,
		Now:        clock.now,
		NewSeed: func() (int64, error) {
			seed++
			return seed, nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &fixture{service: service, store: store, clock: clock}
}

func (f *fixture) seedCatalog(t *testing.T, layout domain.LayoutType, deckSize int) {
	t.Helper()
	ctx := context.Background()

	template := domain.SpreadTemplate{
		ID:        "tpl-1",
		Name:      "Three Card",
		CardCount: 3,
		MinCards:  1,
		MaxCards:  3,
		Layout:    layout,
		Positions: []domain.PositionTemplate{
			{Ordinal: 0, Name: "Past", X: 300, Y: 400},
			{Ordinal: 1, Name: "Present", X: 500, Y: 400},
			{Ordinal: 2, Name: "Future", X: 700, Y: 400},
		},
		ApprovalStatus: domain.ApprovalStatusApproved,
	}
	if err := f.store.PutTemplate(ctx, template); err != nil {
		t.Fatalf("PutTemplate() error = %v", err)
	}

	deck := domain.Deck{ID: "deck-1", Name: "Test Deck", SupportsReversals: true}
	for i := 0; i < deckSize; i++ {
		deck.Cards = append(deck.Cards, domain.Card{
			ID:      string(rune('a' + i)),
			Ordinal: i,
		})
	}
	if err := f.store.PutDeck(ctx, deck); err != nil {
		t.Fatalf("PutDeck() error = %v", err)
	}
}

// createDrawingSession walks a session to the drawing state.
func (f *fixture) createDrawingSession(t *testing.T, totalCards int) domain.Session {
	t.Helper()
	ctx := context.Background()

	session, err := f.service.CreateSession(ctx, readerActor, CreateSessionParams{
		TemplateID: "tpl-1",
		DeckID:     "deck-1",
		ClientID:   "client-1",
		TotalCards: totalCards,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := f.service.AdvanceToSetup(ctx, readerActor, session.ID); err != nil {
		t.Fatalf("AdvanceToSetup() error = %v", err)
	}
	updated, err := f.service.BeginDrawing(ctx, readerActor, session.ID)
	if err != nil {
		t.Fatalf("BeginDrawing() error = %v", err)
	}
	return updated
}

// TestDrawingFillsSlotsAndAutoTransitions verifies that drawing every card
// empties cards_remaining and moves the session to interpreting on the last
// draw, with each slot holding a distinct card.
func TestDrawingFillsSlotsAndAutoTransitions(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)

	var last DrawOutcome
	for i := 0; i < 3; i++ {
		outcome, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{})
		if err != nil {
			t.Fatalf("DrawCard() #%d error = %v", i+1, err)
		}
		if outcome.Slot.Ordinal != i {
			t.Errorf("draw #%d filled ordinal %d, want lowest unassigned %d", i+1, outcome.Slot.Ordinal, i)
		}
		last = outcome
	}

	if last.Session.CardsRemaining != 0 {
		t.Errorf("cards remaining = %d, want 0", last.Session.CardsRemaining)
	}
	if last.Session.State != domain.SessionStateInterpreting {
		t.Errorf("state = %v, want interpreting after last draw", last.Session.State)
	}

	view, err := f.service.GetSessionState(ctx, readerActor, session.ID)
	if err != nil {
		t.Fatalf("GetSessionState() error = %v", err)
	}
	seen := map[string]bool{}
	for _, slot := range view.Slots {
		if !slot.IsAssigned() {
			t.Errorf("slot %d unassigned after full draw", slot.Ordinal)
			continue
		}
		if seen[slot.AssignedCard] {
			t.Errorf("card %s drawn twice", slot.AssignedCard)
		}
		seen[slot.AssignedCard] = true
	}
}

// TestDrawAfterDrawingEndsFails verifies a draw after auto-transition fails as
// a session-state error and mutates nothing.
func TestDrawAfterDrawingEndsFails(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)
	for i := 0; i < 3; i++ {
		if _, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{}); err != nil {
			t.Fatalf("DrawCard() #%d error = %v", i+1, err)
		}
	}

	_, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{})
	if !errors.IsCode(err, errors.CodeSessionNotDrawing) {
		t.Fatalf("fourth draw error = %v, want session-not-drawing", err)
	}
}

// TestManualAssignmentRejectsOutOfBounds verifies freeform geometry outside
// the canvas fails validation and leaves the slot untouched.
func TestManualAssignmentRejectsOutOfBounds(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFreeform, 10)
	ctx := context.Background()

	session, err := f.service.CreateSession(ctx, readerActor, CreateSessionParams{
		TemplateID: "tpl-1",
		DeckID:     "deck-1",
		TotalCards: 3,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := f.service.AdvanceToSetup(ctx, readerActor, session.ID); err != nil {
		t.Fatalf("AdvanceToSetup() error = %v", err)
	}

	before, err := f.store.GetSlot(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("GetSlot() error = %v", err)
	}

	_, err = f.service.AssignPosition(ctx, readerActor, session.ID, 0, domain.Geometry{
		X: 2100, Y: 100, Width: 80, Height: 120,
	})
	if !errors.IsCode(err, errors.CodeGeometryOutOfBounds) {
		t.Fatalf("AssignPosition() error = %v, want geometry bounds error", err)
	}

	after, err := f.store.GetSlot(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("GetSlot() error = %v", err)
	}
	if after.Geometry != before.Geometry || after.AssignmentMode != before.AssignmentMode {
		t.Errorf("slot mutated by failed assignment: before %+v after %+v", before, after)
	}
}

// TestManualAssignmentNormalizesRotation verifies rotation wraps into [0, 360)
// instead of failing, and the slot records the manual assignment.
func TestManualAssignmentNormalizesRotation(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFreeform, 10)
	ctx := context.Background()

	session, err := f.service.CreateSession(ctx, readerActor, CreateSessionParams{
		TemplateID: "tpl-1",
		DeckID:     "deck-1",
		TotalCards: 3,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := f.service.AdvanceToSetup(ctx, readerActor, session.ID); err != nil {
		t.Fatalf("AdvanceToSetup() error = %v", err)
	}

	slot, err := f.service.AssignPosition(ctx, readerActor, session.ID, 1, domain.Geometry{
		X: 900, Y: 900, Width: 80, Height: 120, Rotation: -90,
	})
	if err != nil {
		t.Fatalf("AssignPosition() error = %v", err)
	}
	if slot.Geometry.Rotation != 270 {
		t.Errorf("rotation = %v, want normalized 270", slot.Geometry.Rotation)
	}
	if slot.AssignmentMode != domain.AssignmentModeManual || slot.AssignedBy != readerActor.ID {
		t.Errorf("slot = %+v, want manual assignment by %s", slot, readerActor.ID)
	}
}

// TestManualAssignmentFrozenAfterDrawing verifies geometry cannot change once
// drawing has begun.
func TestManualAssignmentFrozenAfterDrawing(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFreeform, 10)

	session := f.createDrawingSession(t, 3)

	_, err := f.service.AssignPosition(context.Background(), readerActor, session.ID, 0, domain.Geometry{
		X: 100, Y: 100, Width: 80, Height: 120,
	})
	if !errors.IsCode(err, errors.CodeGeometryFrozenAfterDrawing) {
		t.Fatalf("AssignPosition() error = %v, want frozen-geometry error", err)
	}
}

// TestDeckExhaustionMidSession verifies a 2-card deck backing a 3-draw session
// fails the third draw with deck exhaustion while cards_remaining stays at 1.
func TestDeckExhaustionMidSession(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 2)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)

	for i := 0; i < 2; i++ {
		if _, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{}); err != nil {
			t.Fatalf("DrawCard() #%d error = %v", i+1, err)
		}
	}

	_, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{})
	if !errors.IsCode(err, errors.CodeDeckExhausted) {
		t.Fatalf("third draw error = %v, want deck exhausted", err)
	}

	current, err := f.store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if current.CardsRemaining != 1 {
		t.Errorf("cards remaining = %d, want 1 after exhaustion", current.CardsRemaining)
	}
	if current.State != domain.SessionStateDrawing {
		t.Errorf("state = %v, want drawing unchanged by failed draw", current.State)
	}
}

// TestRevealAfterBurnFails verifies a burned slot can never be revealed.
func TestRevealAfterBurnFails(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)
	if _, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{}); err != nil {
		t.Fatalf("DrawCard() error = %v", err)
	}

	if _, err := f.service.BurnCard(ctx, readerActor, session.ID, 0, "misdeal"); err != nil {
		t.Fatalf("BurnCard() error = %v", err)
	}

	_, err := f.service.RevealCard(ctx, readerActor, session.ID, 0)
	if !errors.IsCode(err, errors.CodeSlotBurned) {
		t.Fatalf("RevealCard() error = %v, want burned-slot error", err)
	}

	slot, err := f.store.GetSlot(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("GetSlot() error = %v", err)
	}
	if slot.IsRevealed {
		t.Error("slot revealed after burn")
	}
	if slot.BurnedBy != readerActor.ID || slot.BurnReason != "misdeal" {
		t.Errorf("slot burn attribution = %s/%s, want reader-1/misdeal", slot.BurnedBy, slot.BurnReason)
	}
}

// TestClientCannotBurn verifies the client role lacks burn_cards.
func TestClientCannotBurn(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)
	if _, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{}); err != nil {
		t.Fatalf("DrawCard() error = %v", err)
	}

	_, err := f.service.BurnCard(ctx, clientActor, session.ID, 0, "nope")
	if !errors.IsCode(err, errors.CodePermissionDenied) {
		t.Fatalf("BurnCard() as client error = %v, want permission denied", err)
	}
}

// TestBurnRevealedRequiresOverride verifies burning a revealed slot needs the
// override permission held by admin but not reader.
func TestBurnRevealedRequiresOverride(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)
	if _, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{}); err != nil {
		t.Fatalf("DrawCard() error = %v", err)
	}
	if _, err := f.service.RevealCard(ctx, readerActor, session.ID, 0); err != nil {
		t.Fatalf("RevealCard() error = %v", err)
	}

	_, err := f.service.BurnCard(ctx, readerActor, session.ID, 0, "rework")
	if !errors.IsCode(err, errors.CodePermissionDenied) {
		t.Fatalf("reader burning revealed slot error = %v, want permission denied", err)
	}

	slot, err := f.service.BurnCard(ctx, adminActor, session.ID, 0, "rework")
	if err != nil {
		t.Fatalf("admin burning revealed slot error = %v", err)
	}
	if !slot.IsBurned || slot.BurnedBy != adminActor.ID {
		t.Errorf("slot = %+v, want burned by admin", slot)
	}
}

// TestRevealIsIdempotent verifies repeated reveals return the slot unchanged
// and append only one audit record.
func TestRevealIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)
	if _, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{}); err != nil {
		t.Fatalf("DrawCard() error = %v", err)
	}

	first, err := f.service.RevealCard(ctx, readerActor, session.ID, 0)
	if err != nil {
		t.Fatalf("RevealCard() error = %v", err)
	}
	second, err := f.service.RevealCard(ctx, readerActor, session.ID, 0)
	if err != nil {
		t.Fatalf("second RevealCard() error = %v", err)
	}
	if second.RevealedAt == nil || !second.RevealedAt.Equal(*first.RevealedAt) {
		t.Errorf("second reveal changed timestamp: %v vs %v", second.RevealedAt, first.RevealedAt)
	}

	records, err := f.service.ListAuditTrail(ctx, readerActor, session.ID)
	if err != nil {
		t.Fatalf("ListAuditTrail() error = %v", err)
	}
	reveals := 0
	for _, record := range records {
		if record.Action == audit.ActionSlotRevealed {
			reveals++
		}
	}
	if reveals != 1 {
		t.Errorf("reveal audit records = %d, want 1", reveals)
	}
}

// TestExplicitOrdinalRetryReturnsExistingDraw verifies re-drawing into the
// same ordinal returns the existing assignment without consuming the pool.
func TestExplicitOrdinalRetryReturnsExistingDraw(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)

	ordinal := 1
	first, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{Ordinal: &ordinal})
	if err != nil {
		t.Fatalf("DrawCard() error = %v", err)
	}

	retry, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{Ordinal: &ordinal})
	if err != nil {
		t.Fatalf("retry DrawCard() error = %v", err)
	}
	if !retry.Retried {
		t.Error("retry not flagged as idempotent")
	}
	if retry.Slot.AssignedCard != first.Slot.AssignedCard {
		t.Errorf("retry card = %s, want %s", retry.Slot.AssignedCard, first.Slot.AssignedCard)
	}

	current, err := f.store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if current.CardsRemaining != 2 {
		t.Errorf("cards remaining = %d, want 2 after one real draw", current.CardsRemaining)
	}
}

// TestBeginDrawingRequiresResolvedGeometry verifies a slot with zeroed
// dimensions blocks the drawing transition.
func TestBeginDrawingRequiresResolvedGeometry(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session, err := f.service.CreateSession(ctx, readerActor, CreateSessionParams{
		TemplateID: "tpl-1",
		DeckID:     "deck-1",
		TotalCards: 3,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := f.service.AdvanceToSetup(ctx, readerActor, session.ID); err != nil {
		t.Fatalf("AdvanceToSetup() error = %v", err)
	}

	broken, err := f.store.GetSlot(ctx, session.ID, 1)
	if err != nil {
		t.Fatalf("GetSlot() error = %v", err)
	}
	broken.Geometry.Width = 0
	if err := f.store.PutSlot(ctx, broken); err != nil {
		t.Fatalf("PutSlot() error = %v", err)
	}

	_, err = f.service.BeginDrawing(ctx, readerActor, session.ID)
	if !errors.IsCode(err, errors.CodeGeometryUnresolved) {
		t.Fatalf("BeginDrawing() error = %v, want unresolved geometry", err)
	}
}

// TestStopDrawingEarlyLeavesSlotsEmpty verifies stop_drawing forces the
// interpreting transition while unfilled slots stay empty.
func TestStopDrawingEarlyLeavesSlotsEmpty(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)
	if _, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{}); err != nil {
		t.Fatalf("DrawCard() error = %v", err)
	}

	if _, err := f.service.StopDrawingEarly(ctx, clientActor, session.ID); !errors.IsCode(err, errors.CodePermissionDenied) {
		t.Fatalf("client StopDrawingEarly() error = %v, want permission denied", err)
	}

	stopped, err := f.service.StopDrawingEarly(ctx, readerActor, session.ID)
	if err != nil {
		t.Fatalf("StopDrawingEarly() error = %v", err)
	}
	if stopped.State != domain.SessionStateInterpreting {
		t.Errorf("state = %v, want interpreting", stopped.State)
	}
	if stopped.CardsRemaining != 2 {
		t.Errorf("cards remaining = %d, want 2 preserved", stopped.CardsRemaining)
	}

	view, err := f.service.GetSessionState(ctx, readerActor, session.ID)
	if err != nil {
		t.Fatalf("GetSessionState() error = %v", err)
	}
	for _, slot := range view.Slots[1:] {
		if slot.IsAssigned() {
			t.Errorf("slot %d assigned after early stop", slot.Ordinal)
		}
	}
}

// TestCompleteAndCancelLifecycle verifies completion sets completed_at and a
// terminal session rejects cancellation.
func TestCompleteAndCancelLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)
	for i := 0; i < 3; i++ {
		if _, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{}); err != nil {
			t.Fatalf("DrawCard() error = %v", err)
		}
	}

	completed, err := f.service.CompleteSession(ctx, readerActor, session.ID)
	if err != nil {
		t.Fatalf("CompleteSession() error = %v", err)
	}
	if completed.CompletedAt == nil {
		t.Error("completed session has no completed_at")
	}

	_, err = f.service.CancelSession(ctx, readerActor, session.ID, "too late")
	if !errors.IsCode(err, errors.CodeSessionTerminal) {
		t.Fatalf("CancelSession() on completed session error = %v, want terminal", err)
	}
}

// TestCancelRecordsReason verifies cancellation stores the caller's reason.
func TestCancelRecordsReason(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)
	cancelled, err := f.service.CancelSession(ctx, readerActor, session.ID, "client no-show")
	if err != nil {
		t.Fatalf("CancelSession() error = %v", err)
	}
	if cancelled.State != domain.SessionStateCancelled || cancelled.CancelReason != "client no-show" {
		t.Errorf("cancelled = %+v, want cancelled state with reason", cancelled)
	}
}

// TestClientViewRedactsFaceDownCards verifies clients never see unrevealed
// card identities while readers do.
func TestClientViewRedactsFaceDownCards(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)
	if _, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{}); err != nil {
		t.Fatalf("DrawCard() error = %v", err)
	}

	clientView, err := f.service.GetSessionState(ctx, clientActor, session.ID)
	if err != nil {
		t.Fatalf("GetSessionState() as client error = %v", err)
	}
	if clientView.Slots[0].AssignedCard != "" {
		t.Errorf("client sees face-down card %s", clientView.Slots[0].AssignedCard)
	}
	if clientView.Slots[0].DrawnAt == nil {
		t.Error("client view lost occupancy signal")
	}
	if clientView.Session.RemainingCards != nil {
		t.Error("view leaked the remaining card pool")
	}

	readerView, err := f.service.GetSessionState(ctx, readerActor, session.ID)
	if err != nil {
		t.Fatalf("GetSessionState() as reader error = %v", err)
	}
	if readerView.Slots[0].AssignedCard == "" {
		t.Error("reader cannot see face-down card")
	}

	if _, err := f.service.RevealCard(ctx, readerActor, session.ID, 0); err != nil {
		t.Fatalf("RevealCard() error = %v", err)
	}
	clientView, err = f.service.GetSessionState(ctx, clientActor, session.ID)
	if err != nil {
		t.Fatalf("GetSessionState() after reveal error = %v", err)
	}
	if clientView.Slots[0].AssignedCard == "" {
		t.Error("client cannot see revealed card")
	}
}

// TestAuditTrailOrdering verifies every successful mutation appends exactly
// one record with a gapless per-session sequence.
func TestAuditTrailOrdering(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 2)
	for i := 0; i < 2; i++ {
		if _, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{}); err != nil {
			t.Fatalf("DrawCard() error = %v", err)
		}
	}
	if _, err := f.service.CompleteSession(ctx, readerActor, session.ID); err != nil {
		t.Fatalf("CompleteSession() error = %v", err)
	}

	records, err := f.service.ListAuditTrail(ctx, readerActor, session.ID)
	if err != nil {
		t.Fatalf("ListAuditTrail() error = %v", err)
	}

	want := []audit.Action{
		audit.ActionSessionCreated,
		audit.ActionSetupAdvanced,
		audit.ActionDrawingStarted,
		audit.ActionCardDrawn,
		audit.ActionCardDrawn,
		audit.ActionInterpretingEntered,
		audit.ActionSessionCompleted,
	}
	if len(records) != len(want) {
		t.Fatalf("audit records = %d, want %d", len(records), len(want))
	}
	for i, record := range records {
		if record.Action != want[i] {
			t.Errorf("record %d action = %s, want %s", i, record.Action, want[i])
		}
		if record.Seq != uint64(i+1) {
			t.Errorf("record %d seq = %d, want gapless %d", i, record.Seq, i+1)
		}
	}

	if _, err := f.service.ListAuditTrail(ctx, clientActor, session.ID); !errors.IsCode(err, errors.CodePermissionDenied) {
		t.Errorf("client ListAuditTrail() error = %v, want permission denied", err)
	}
}

// TestSweepExpiresStaleSessions verifies the sweep moves overdue preparing and
// setup sessions to expired but leaves active sessions alone.
func TestSweepExpiresStaleSessions(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	stale, err := f.service.CreateSession(ctx, readerActor, CreateSessionParams{
		TemplateID: "tpl-1",
		DeckID:     "deck-1",
		TotalCards: 3,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	f.clock.advance(10 * time.Minute)
	active := f.createDrawingSession(t, 3)

	f.clock.advance(25 * time.Minute) // stale past its 30m TTL, active still drawing

	if err := f.service.SweepExpired(ctx); err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}

	expired, err := f.store.GetSession(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if expired.State != domain.SessionStateExpired {
		t.Errorf("stale session state = %v, want expired", expired.State)
	}

	untouched, err := f.store.GetSession(ctx, active.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if untouched.State != domain.SessionStateDrawing {
		t.Errorf("active session state = %v, want drawing", untouched.State)
	}

	records, err := f.service.ListAuditTrail(ctx, readerActor, stale.ID)
	if err != nil {
		t.Fatalf("ListAuditTrail() error = %v", err)
	}
	last := records[len(records)-1]
	if last.Action != audit.ActionSessionExpired || last.ActorID != "system" {
		t.Errorf("last record = %+v, want system expiry", last)
	}

	_, err = f.service.AdvanceToSetup(ctx, readerActor, stale.ID)
	if !errors.IsCode(err, errors.CodeSessionInvalidTransition) {
		t.Errorf("AdvanceToSetup() on expired session error = %v, want invalid transition", err)
	}
}

// TestCreateSessionRejectsUnapprovedTemplate verifies a pending template is
// only usable by its creator.
func TestCreateSessionRejectsUnapprovedTemplate(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	pending := domain.SpreadTemplate{
		ID:        "tpl-pending",
		Name:      "Homebrew",
		CardCount: 3,
		Layout:    domain.LayoutTypeFreeform,
		Positions: []domain.PositionTemplate{
			{Ordinal: 0}, {Ordinal: 1}, {Ordinal: 2},
		},
		ApprovalStatus: domain.ApprovalStatusPending,
		IsCustom:       true,
		CreatorID:      readerActor.ID,
	}
	if err := f.store.PutTemplate(ctx, pending); err != nil {
		t.Fatalf("PutTemplate() error = %v", err)
	}

	if _, err := f.service.CreateSession(ctx, readerActor, CreateSessionParams{
		TemplateID: "tpl-pending",
		DeckID:     "deck-1",
		TotalCards: 3,
	}); err != nil {
		t.Fatalf("creator CreateSession() error = %v", err)
	}

	other := Actor{ID: "reader-2", Role: authz.RoleReader}
	_, err := f.service.CreateSession(ctx, other, CreateSessionParams{
		TemplateID: "tpl-pending",
		DeckID:     "deck-1",
		TotalCards: 3,
	})
	if !errors.IsCode(err, errors.CodeTemplateNotApproved) {
		t.Fatalf("non-creator CreateSession() error = %v, want not-approved", err)
	}
}

// TestConcurrentDrawsNeverShareCards verifies serialized draws from many
// goroutines fill distinct slots with distinct cards.
func TestConcurrentDrawsNeverShareCards(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t, domain.LayoutTypeFixed, 10)
	ctx := context.Background()

	session := f.createDrawingSession(t, 3)

	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := f.service.DrawCard(ctx, readerActor, session.ID, DrawParams{})
			results <- err
		}()
	}
	for i := 0; i < 3; i++ {
		if err := <-results; err != nil {
			t.Fatalf("concurrent DrawCard() error = %v", err)
		}
	}

	view, err := f.service.GetSessionState(ctx, readerActor, session.ID)
	if err != nil {
		t.Fatalf("GetSessionState() error = %v", err)
	}
	cards := map[string]bool{}
	for _, slot := range view.Slots {
		if !slot.IsAssigned() {
			t.Errorf("slot %d unassigned after three draws", slot.Ordinal)
			continue
		}
		if cards[slot.AssignedCard] {
			t.Errorf("card %s assigned to two slots", slot.AssignedCard)
		}
		cards[slot.AssignedCard] = true
	}
	if view.Session.State != domain.SessionStateInterpreting {
		t.Errorf("state = %v, want interpreting", view.Session.State)
	}
}
