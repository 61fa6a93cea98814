package httpapi

import (
	"encoding/json"
	"time"

	"github.com/arcanahq/arcana.space/internal/reading/audit"
	"github.com/arcanahq/arcana.space/internal/reading/domain"
	"github.com/arcanahq/arcana.space/internal/reading/service"
)

// CreateSessionRequest is the request body for POST /v1/sessions.
type CreateSessionRequest struct {
	TemplateID string `json:"template_id" binding:"required"`
	DeckID     string `json:"deck_id" binding:"required"`
	ClientID   string `json:"client_id"`
	BookingID  string `json:"booking_id"`
	TotalCards int    `json:"total_cards" binding:"required"`
}

// AssignPositionRequest is the request body for POST /v1/sessions/:id/slots/:ordinal/position.
type AssignPositionRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	ZIndex   int     `json:"z_index"`
}

// DrawRequest is the request body for POST /v1/sessions/:id/draws.
// A nil ordinal targets the lowest unassigned slot.
type DrawRequest struct {
	Ordinal *int `json:"ordinal"`
}

// BurnRequest is the request body for POST /v1/sessions/:id/slots/:ordinal/burn.
type BurnRequest struct {
	Reason string `json:"reason"`
}

// CancelRequest is the request body for POST /v1/sessions/:id/cancel.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// SessionResponse is the JSON shape of a session.
type SessionResponse struct {
	ID               string     `json:"id"`
	ReaderID         string     `json:"reader_id"`
	ClientID         string     `json:"client_id,omitempty"`
	BookingID        string     `json:"booking_id,omitempty"`
	SpreadTemplateID string     `json:"spread_template_id"`
	DeckID           string     `json:"deck_id"`
	State            string     `json:"state"`
	TotalCardsToDraw int        `json:"total_cards_to_draw"`
	CardsRemaining   int        `json:"cards_remaining"`
	CancelReason     string     `json:"cancel_reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// GeometryResponse is the JSON shape of slot geometry.
type GeometryResponse struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	ZIndex   int     `json:"z_index"`
}

// SlotResponse is the JSON shape of a spread slot.
type SlotResponse struct {
	Ordinal        int              `json:"ordinal"`
	Name           string           `json:"name,omitempty"`
	AssignedCard   string           `json:"assigned_card,omitempty"`
	IsReversed     bool             `json:"is_reversed"`
	IsRevealed     bool             `json:"is_revealed"`
	IsBurned       bool             `json:"is_burned"`
	Geometry       GeometryResponse `json:"geometry"`
	AssignmentMode string           `json:"assignment_mode"`
	AssignedBy     string           `json:"assigned_by,omitempty"`
	DrawnAt        *time.Time       `json:"drawn_at,omitempty"`
	RevealedAt     *time.Time       `json:"revealed_at,omitempty"`
	BurnedAt       *time.Time       `json:"burned_at,omitempty"`
	BurnedBy       string           `json:"burned_by,omitempty"`
	BurnReason     string           `json:"burn_reason,omitempty"`
}

// SessionStateResponse is the response for GET /v1/sessions/:id.
type SessionStateResponse struct {
	Session SessionResponse `json:"session"`
	Slots   []SlotResponse  `json:"slots"`
}

// DrawResponse is the response for POST /v1/sessions/:id/draws.
type DrawResponse struct {
	Slot    SlotResponse    `json:"slot"`
	Session SessionResponse `json:"session"`
	Retried bool            `json:"retried,omitempty"`
}

// AuditRecordResponse is one entry of GET /v1/sessions/:id/audit.
type AuditRecordResponse struct {
	Seq       uint64          `json:"seq"`
	ActorID   string          `json:"actor_id"`
	ActorRole string          `json:"actor_role"`
	Action    string          `json:"action"`
	Before    json.RawMessage `json:"before"`
	After     json.RawMessage `json:"after"`
	Timestamp time.Time       `json:"timestamp"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func toSessionResponse(session domain.Session) SessionResponse {
	return SessionResponse{
		ID:               session.ID,
		ReaderID:         session.ReaderID,
		ClientID:         session.ClientID,
		BookingID:        session.BookingID,
		SpreadTemplateID: session.SpreadTemplateID,
		DeckID:           session.DeckID,
		State:            session.State.String(),
		TotalCardsToDraw: session.TotalCardsToDraw,
		CardsRemaining:   session.CardsRemaining,
		CancelReason:     session.CancelReason,
		CreatedAt:        session.CreatedAt,
		UpdatedAt:        session.UpdatedAt,
		ExpiresAt:        session.ExpiresAt,
		CompletedAt:      session.CompletedAt,
	}
}

func toSlotResponse(slot domain.Slot) SlotResponse {
	return SlotResponse{
		Ordinal:      slot.Ordinal,
		Name:         slot.Name,
		AssignedCard: slot.AssignedCard,
		IsReversed:   slot.IsReversed,
		IsRevealed:   slot.IsRevealed,
		IsBurned:     slot.IsBurned,
		Geometry: GeometryResponse{
			X:        slot.Geometry.X,
			Y:        slot.Geometry.Y,
			Width:    slot.Geometry.Width,
			Height:   slot.Geometry.Height,
			Rotation: slot.Geometry.Rotation,
			ZIndex:   slot.Geometry.ZIndex,
		},
		AssignmentMode: slot.AssignmentMode.String(),
		AssignedBy:     slot.AssignedBy,
		DrawnAt:        slot.DrawnAt,
		RevealedAt:     slot.RevealedAt,
		BurnedAt:       slot.BurnedAt,
		BurnedBy:       slot.BurnedBy,
		BurnReason:     slot.BurnReason,
	}
}

func toSessionStateResponse(view service.SessionView) SessionStateResponse {
	slots := make([]SlotResponse, 0, len(view.Slots))
	for _, slot := range view.Slots {
		slots = append(slots, toSlotResponse(slot))
	}
	return SessionStateResponse{
		Session: toSessionResponse(view.Session),
		Slots:   slots,
	}
}

func toAuditRecordResponses(records []audit.Record) []AuditRecordResponse {
	responses := make([]AuditRecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, AuditRecordResponse{
			Seq:       record.Seq,
			ActorID:   record.ActorID,
			ActorRole: record.ActorRole,
			Action:    string(record.Action),
			Before:    record.Before,
			After:     record.After,
			Timestamp: record.Timestamp,
		})
	}
	return responses
}
