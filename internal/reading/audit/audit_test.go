package audit

import (
	"context"
	"testing"
	"time"
)

type captureAppender struct {
	records []Record
}

func (c *captureAppender) AppendAuditRecord(_ context.Context, record Record) (Record, error) {
	record.Seq = uint64(len(c.records) + 1)
	c.records = append(c.records, record)
	return record, nil
}

func TestRecordAssignsTimestampAndSeq(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)
	store := &captureAppender{}
	recorder := NewRecorderWithClock(store, func() time.Time { return at })

	record, err := recorder.Record(context.Background(), Record{
		SessionID: "sess-1",
		ActorID:   "reader-1",
		ActorRole: "reader",
		Action:    ActionCardDrawn,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !record.Timestamp.Equal(at) {
		t.Fatalf("timestamp %v, want %v", record.Timestamp, at)
	}
	if record.Seq != 1 {
		t.Fatalf("seq %d, want 1", record.Seq)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(store.records))
	}
}

func TestRecordKeepsExplicitTimestamp(t *testing.T) {
	explicit := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &captureAppender{}
	recorder := NewRecorder(store)

	record, err := recorder.Record(context.Background(), Record{
		SessionID: "sess-1",
		Action:    ActionSessionCreated,
		Timestamp: explicit,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !record.Timestamp.Equal(explicit) {
		t.Fatalf("timestamp %v, want %v", record.Timestamp, explicit)
	}
}

func TestRecordNilStoreIsNoop(t *testing.T) {
	var recorder *Recorder
	if _, err := recorder.Record(context.Background(), Record{Action: ActionSlotBurned}); err != nil {
		t.Fatalf("nil recorder should be a no-op: %v", err)
	}
}

func TestActionIsValid(t *testing.T) {
	valid := []Action{
		ActionSessionCreated, ActionSetupAdvanced, ActionDrawingStarted,
		ActionDrawingStopped, ActionInterpretingEntered, ActionSessionCompleted,
		ActionSessionCancelled, ActionSessionExpired, ActionCardDrawn,
		ActionSlotRevealed, ActionSlotBurned, ActionPositionAssigned,
	}
	for _, action := range valid {
		if !action.IsValid() {
			t.Fatalf("expected %s to be valid", action)
		}
	}
	if Action("session.teleported").IsValid() {
		t.Fatal("expected unknown action to be invalid")
	}
}

func TestSnapshotMarshals(t *testing.T) {
	snapshot := Snapshot(map[string]int{"cards_remaining": 2})
	if string(snapshot) != `{"cards_remaining":2}` {
		t.Fatalf("unexpected snapshot: %s", snapshot)
	}

	bad := Snapshot(func() {})
	if string(bad) != "null" {
		t.Fatalf("expected null snapshot for unmarshalable value, got %s", bad)
	}
}
