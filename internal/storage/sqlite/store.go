// Package sqlite implements the engine's persistence interfaces on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arcanahq/arcana.space/internal/platform/storage/sqlitemigrate"
	"github.com/arcanahq/arcana.space/internal/reading/audit"
	"github.com/arcanahq/arcana.space/internal/reading/domain"
	"github.com/arcanahq/arcana.space/internal/storage"
	"github.com/arcanahq/arcana.space/internal/storage/sqlite/migrations"
)

// Store persists sessions, slots, catalog records, and the audit trail in SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) the SQLite database at path and applies
// embedded migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(db, migrations.FS, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database. Safe to call on a nil store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(millis int64) time.Time {
	return time.UnixMilli(millis).UTC()
}

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PutTemplate inserts or replaces a spread template and its positions.
func (s *Store) PutTemplate(ctx context.Context, template domain.SpreadTemplate) error {
	template.ID = strings.TrimSpace(template.ID)
	if template.ID == "" {
		return fmt.Errorf("template id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO spread_templates
			(id, name, card_count, min_cards, max_cards, layout, approval_status, is_custom, creator_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		template.ID,
		template.Name,
		template.CardCount,
		template.MinCards,
		template.MaxCards,
		template.Layout.String(),
		template.ApprovalStatus.String(),
		boolToInt(template.IsCustom),
		template.CreatorID,
	); err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM spread_template_positions WHERE template_id = ?", template.ID,
	); err != nil {
		return fmt.Errorf("clear template positions: %w", err)
	}

	for _, position := range template.Positions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO spread_template_positions (template_id, ordinal, name, x, y, rotation)
			VALUES (?, ?, ?, ?, ?, ?)`,
			template.ID,
			position.Ordinal,
			position.Name,
			position.X,
			position.Y,
			position.Rotation,
		); err != nil {
			return fmt.Errorf("insert template position %d: %w", position.Ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template: %w", err)
	}
	return nil
}

// GetTemplate loads a spread template with its positions in ordinal order.
func (s *Store) GetTemplate(ctx context.Context, templateID string) (domain.SpreadTemplate, error) {
	var (
		template       domain.SpreadTemplate
		layout         string
		approvalStatus string
		isCustom       int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, card_count, min_cards, max_cards, layout, approval_status, is_custom, creator_id
		FROM spread_templates WHERE id = ?`, templateID,
	).Scan(
		&template.ID,
		&template.Name,
		&template.CardCount,
		&template.MinCards,
		&template.MaxCards,
		&layout,
		&approvalStatus,
		&isCustom,
		&template.CreatorID,
	)
	if err == sql.ErrNoRows {
		return domain.SpreadTemplate{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.SpreadTemplate{}, fmt.Errorf("query template: %w", err)
	}

	template.Layout = domain.LayoutTypeFromString(layout)
	template.ApprovalStatus = domain.ApprovalStatusFromString(approvalStatus)
	template.IsCustom = isCustom != 0

	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, name, x, y, rotation
		FROM spread_template_positions WHERE template_id = ? ORDER BY ordinal`, templateID)
	if err != nil {
		return domain.SpreadTemplate{}, fmt.Errorf("query template positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var position domain.PositionTemplate
		if err := rows.Scan(&position.Ordinal, &position.Name, &position.X, &position.Y, &position.Rotation); err != nil {
			return domain.SpreadTemplate{}, fmt.Errorf("scan template position: %w", err)
		}
		template.Positions = append(template.Positions, position)
	}
	if err := rows.Err(); err != nil {
		return domain.SpreadTemplate{}, fmt.Errorf("iterate template positions: %w", err)
	}

	return template, nil
}

// PutDeck inserts or replaces a deck and its card catalog.
func (s *Store) PutDeck(ctx context.Context, deck domain.Deck) error {
	deck.ID = strings.TrimSpace(deck.ID)
	if deck.ID == "" {
		return fmt.Errorf("deck id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO decks (id, name, supports_reversals, reversal_probability)
		VALUES (?, ?, ?, ?)`,
		deck.ID,
		deck.Name,
		boolToInt(deck.SupportsReversals),
		deck.ReversalProbability,
	); err != nil {
		return fmt.Errorf("upsert deck: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM deck_cards WHERE deck_id = ?", deck.ID); err != nil {
		return fmt.Errorf("clear deck cards: %w", err)
	}

	for _, card := range deck.Cards {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO deck_cards (deck_id, ordinal, card_id, name)
			VALUES (?, ?, ?, ?)`,
			deck.ID,
			card.Ordinal,
			card.ID,
			card.Name,
		); err != nil {
			return fmt.Errorf("insert deck card %s: %w", card.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deck: %w", err)
	}
	return nil
}

// GetDeck loads a deck with its cards in catalog order.
func (s *Store) GetDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	var (
		deck              domain.Deck
		supportsReversals int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, supports_reversals, reversal_probability
		FROM decks WHERE id = ?`, deckID,
	).Scan(&deck.ID, &deck.Name, &supportsReversals, &deck.ReversalProbability)
	if err == sql.ErrNoRows {
		return domain.Deck{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Deck{}, fmt.Errorf("query deck: %w", err)
	}
	deck.SupportsReversals = supportsReversals != 0

	rows, err := s.db.QueryContext(ctx, `
		SELECT card_id, name, ordinal FROM deck_cards WHERE deck_id = ? ORDER BY ordinal`, deckID)
	if err != nil {
		return domain.Deck{}, fmt.Errorf("query deck cards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var card domain.Card
		if err := rows.Scan(&card.ID, &card.Name, &card.Ordinal); err != nil {
			return domain.Deck{}, fmt.Errorf("scan deck card: %w", err)
		}
		deck.Cards = append(deck.Cards, card)
	}
	if err := rows.Err(); err != nil {
		return domain.Deck{}, fmt.Errorf("iterate deck cards: %w", err)
	}

	return deck, nil
}

// PutSession inserts or replaces a session record.
func (s *Store) PutSession(ctx context.Context, session domain.Session) error {
	session.ID = strings.TrimSpace(session.ID)
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}

	remaining, err := json.Marshal(session.RemainingCards)
	if err != nil {
		return fmt.Errorf("marshal remaining cards: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reading_sessions
			(id, reader_id, client_id, booking_id, spread_template_id, deck_id, state,
			 total_cards, cards_remaining, remaining_cards, cancel_reason,
			 created_at, updated_at, expires_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.ReaderID,
		session.ClientID,
		session.BookingID,
		session.SpreadTemplateID,
		session.DeckID,
		session.State.String(),
		session.TotalCardsToDraw,
		session.CardsRemaining,
		string(remaining),
		session.CancelReason,
		toMillis(session.CreatedAt),
		toMillis(session.UpdatedAt),
		toMillis(session.ExpiresAt),
		toNullMillis(session.CompletedAt),
	); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

const sessionColumns = `id, reader_id, client_id, booking_id, spread_template_id, deck_id, state,
	total_cards, cards_remaining, remaining_cards, cancel_reason,
	created_at, updated_at, expires_at, completed_at`

func scanSession(row interface{ Scan(dest ...any) error }) (domain.Session, error) {
	var (
		session     domain.Session
		state       string
		remaining   string
		createdAt   int64
		updatedAt   int64
		expiresAt   int64
		completedAt sql.NullInt64
	)
	err := row.Scan(
		&session.ID,
		&session.ReaderID,
		&session.ClientID,
		&session.BookingID,
		&session.SpreadTemplateID,
		&session.DeckID,
		&state,
		&session.TotalCardsToDraw,
		&session.CardsRemaining,
		&remaining,
		&session.CancelReason,
		&createdAt,
		&updatedAt,
		&expiresAt,
		&completedAt,
	)
	if err != nil {
		return domain.Session{}, err
	}

	session.State = domain.SessionStateFromString(state)
	if err := json.Unmarshal([]byte(remaining), &session.RemainingCards); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal remaining cards: %w", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	session.UpdatedAt = fromMillis(updatedAt)
	session.ExpiresAt = fromMillis(expiresAt)
	session.CompletedAt = fromNullMillis(completedAt)
	return session, nil
}

// GetSession loads a session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM reading_sessions WHERE id = ?", sessionID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return domain.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("query session: %w", err)
	}
	return session, nil
}

// ListExpiredSessions returns preparing or setup sessions whose expiry precedes now.
func (s *Store) ListExpiredSessions(ctx context.Context, now time.Time) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sessionColumns+` FROM reading_sessions
		WHERE state IN ('preparing', 'setup') AND expires_at < ?
		ORDER BY id`, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	return sessions, nil
}

// PutSlots inserts or replaces slots in a single transaction.
func (s *Store) PutSlots(ctx context.Context, slots []domain.Slot) error {
	if len(slots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, slot := range slots {
		if err := upsertSlot(ctx, tx, slot); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit slots: %w", err)
	}
	return nil
}

// PutSlot inserts or replaces a single slot.
func (s *Store) PutSlot(ctx context.Context, slot domain.Slot) error {
	return upsertSlot(ctx, s.db, slot)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSlot(ctx context.Context, db execer, slot domain.Slot) error {
	if strings.TrimSpace(slot.SessionID) == "" {
		return fmt.Errorf("slot session id is required")
	}

	if _, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO spread_slots
			(session_id, ordinal, name, assigned_card, is_reversed, is_revealed, is_burned,
			 x, y, width, height, rotation, z_index,
			 assignment_mode, assigned_by, drawn_at, revealed_at, burned_at, burned_by, burn_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		slot.SessionID,
		slot.Ordinal,
		slot.Name,
		slot.AssignedCard,
		boolToInt(slot.IsReversed),
		boolToInt(slot.IsRevealed),
		boolToInt(slot.IsBurned),
		slot.Geometry.X,
		slot.Geometry.Y,
		slot.Geometry.Width,
		slot.Geometry.Height,
		slot.Geometry.Rotation,
		slot.Geometry.ZIndex,
		slot.AssignmentMode.String(),
		slot.AssignedBy,
		toNullMillis(slot.DrawnAt),
		toNullMillis(slot.RevealedAt),
		toNullMillis(slot.BurnedAt),
		slot.BurnedBy,
		slot.BurnReason,
	); err != nil {
		return fmt.Errorf("upsert slot %d: %w", slot.Ordinal, err)
	}
	return nil
}

const slotColumns = `session_id, ordinal, name, assigned_card, is_reversed, is_revealed, is_burned,
	x, y, width, height, rotation, z_index,
	assignment_mode, assigned_by, drawn_at, revealed_at, burned_at, burned_by, burn_reason`

func scanSlot(row interface{ Scan(dest ...any) error }) (domain.Slot, error) {
	var (
		slot           domain.Slot
		isReversed     int
		isRevealed     int
		isBurned       int
		assignmentMode string
		drawnAt        sql.NullInt64
		revealedAt     sql.NullInt64
		burnedAt       sql.NullInt64
	)
	err := row.Scan(
		&slot.SessionID,
		&slot.Ordinal,
		&slot.Name,
		&slot.AssignedCard,
		&isReversed,
		&isRevealed,
		&isBurned,
		&slot.Geometry.X,
		&slot.Geometry.Y,
		&slot.Geometry.Width,
		&slot.Geometry.Height,
		&slot.Geometry.Rotation,
		&slot.Geometry.ZIndex,
		&assignmentMode,
		&slot.AssignedBy,
		&drawnAt,
		&revealedAt,
		&burnedAt,
		&slot.BurnedBy,
		&slot.BurnReason,
	)
	if err != nil {
		return domain.Slot{}, err
	}

	slot.IsReversed = isReversed != 0
	slot.IsRevealed = isRevealed != 0
	slot.IsBurned = isBurned != 0
	slot.AssignmentMode = domain.AssignmentModeFromString(assignmentMode)
	slot.DrawnAt = fromNullMillis(drawnAt)
	slot.RevealedAt = fromNullMillis(revealedAt)
	slot.BurnedAt = fromNullMillis(burnedAt)
	return slot, nil
}

// GetSlot loads a single slot by session id and ordinal.
func (s *Store) GetSlot(ctx context.Context, sessionID string, ordinal int) (domain.Slot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+slotColumns+" FROM spread_slots WHERE session_id = ? AND ordinal = ?",
		sessionID, ordinal)
	slot, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return domain.Slot{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Slot{}, fmt.Errorf("query slot: %w", err)
	}
	return slot, nil
}

// ListSlots loads a session's slots in ordinal order.
func (s *Store) ListSlots(ctx context.Context, sessionID string) ([]domain.Slot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+slotColumns+" FROM spread_slots WHERE session_id = ? ORDER BY ordinal", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return slots, nil
}

// AppendAuditRecord appends a record, assigning the next per-session sequence
// number inside a transaction. Records are never updated or deleted.
func (s *Store) AppendAuditRecord(ctx context.Context, record audit.Record) (audit.Record, error) {
	if strings.TrimSpace(record.SessionID) == "" {
		return audit.Record{}, fmt.Errorf("audit record session id is required")
	}
	if !record.Action.IsValid() {
		return audit.Record{}, fmt.Errorf("audit action %q is not supported", record.Action)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return audit.Record{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM audit_records WHERE session_id = ?", record.SessionID,
	).Scan(&maxSeq); err != nil {
		return audit.Record{}, fmt.Errorf("query audit sequence: %w", err)
	}
	record.Seq = uint64(maxSeq.Int64) + 1

	before := record.Before
	if len(before) == 0 {
		before = json.RawMessage("null")
	}
	after := record.After
	if len(after) == 0 {
		after = json.RawMessage("null")
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audit_records (session_id, seq, actor_id, actor_role, action, before_json, after_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.SessionID,
		record.Seq,
		record.ActorID,
		record.ActorRole,
		string(record.Action),
		string(before),
		string(after),
		toMillis(record.Timestamp),
	); err != nil {
		return audit.Record{}, fmt.Errorf("insert audit record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return audit.Record{}, fmt.Errorf("commit audit record: %w", err)
	}
	return record, nil
}

// ListAuditRecords loads a session's audit trail in sequence order.
func (s *Store) ListAuditRecords(ctx context.Context, sessionID string) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, actor_id, actor_role, action, before_json, after_json, created_at
		FROM audit_records WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		var (
			record    audit.Record
			action    string
			before    string
			after     string
			createdAt int64
		)
		if err := rows.Scan(
			&record.SessionID,
			&record.Seq,
			&record.ActorID,
			&record.ActorRole,
			&action,
			&before,
			&after,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		record.Action = audit.Action(action)
		record.Before = json.RawMessage(before)
		record.After = json.RawMessage(after)
		record.Timestamp = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}
