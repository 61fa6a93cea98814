package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Template errors
	CodeTemplateCardCountOutOfRange Code = "TEMPLATE_CARD_COUNT_OUT_OF_RANGE"
	CodeTemplateNotApproved         Code = "TEMPLATE_NOT_APPROVED"
	CodeTemplateInvalidLayout       Code = "TEMPLATE_INVALID_LAYOUT"

	// Geometry errors
	CodeGeometryOutOfBounds       Code = "GEOMETRY_OUT_OF_BOUNDS"
	CodeGeometryFixedLayout       Code = "GEOMETRY_FIXED_LAYOUT"
	CodeGeometryUnresolved        Code = "GEOMETRY_UNRESOLVED"
	CodeGeometryFrozenAfterDrawing Code = "GEOMETRY_FROZEN_AFTER_DRAWING"

	// Session lifecycle errors
	CodeSessionInvalidTransition Code = "SESSION_INVALID_TRANSITION"
	CodeSessionNotDrawing        Code = "SESSION_NOT_DRAWING"
	CodeSessionTerminal          Code = "SESSION_TERMINAL"

	// Slot errors
	CodeSlotUnassigned   Code = "SLOT_UNASSIGNED"
	CodeSlotBurned       Code = "SLOT_BURNED"
	CodeSlotRevealed     Code = "SLOT_REVEALED"
	CodePositionConflict Code = "POSITION_CONFLICT"

	// Draw errors
	CodeDeckExhausted          Code = "DECK_EXHAUSTED"
	CodeDeckEmpty              Code = "DECK_EMPTY"
	CodeDrawInvalidProbability Code = "DRAW_INVALID_PROBABILITY"

	// Authorization errors
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Kind groups codes into the engine's error taxonomy.
type Kind int

const (
	// KindUnknown classifies codes outside the taxonomy.
	KindUnknown Kind = iota
	// KindValidation covers malformed input: geometry out of bounds,
	// card counts outside template range, draws on unassigned slots.
	KindValidation
	// KindPermissionDenied covers actors lacking a required permission.
	KindPermissionDenied
	// KindSessionState covers operations invalid for the current state.
	KindSessionState
	// KindDeckExhausted covers draws against an empty remaining pool.
	KindDeckExhausted
	// KindPositionConflict covers draws targeting an already-filled slot.
	KindPositionConflict
	// KindNotFound covers unknown session, slot, template, and deck ids.
	KindNotFound
)

// Kind classifies the code into the engine's error taxonomy.
func (c Code) Kind() Kind {
	switch c {
	case CodeTemplateCardCountOutOfRange,
		CodeTemplateNotApproved,
		CodeTemplateInvalidLayout,
		CodeGeometryOutOfBounds,
		CodeGeometryFixedLayout,
		CodeDeckEmpty,
		CodeDrawInvalidProbability,
		CodeSlotUnassigned:
		return KindValidation

	case CodePermissionDenied:
		return KindPermissionDenied

	case CodeSessionInvalidTransition,
		CodeSessionNotDrawing,
		CodeSessionTerminal,
		CodeGeometryUnresolved,
		CodeGeometryFrozenAfterDrawing,
		CodeSlotBurned,
		CodeSlotRevealed:
		return KindSessionState

	case CodeDeckExhausted:
		return KindDeckExhausted

	case CodePositionConflict:
		return KindPositionConflict

	case CodeNotFound:
		return KindNotFound

	default:
		return KindUnknown
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c.Kind() {
	case KindValidation:
		return codes.InvalidArgument
	case KindPermissionDenied:
		return codes.PermissionDenied
	case KindSessionState:
		return codes.FailedPrecondition
	case KindDeckExhausted:
		return codes.ResourceExhausted
	case KindPositionConflict:
		return codes.AlreadyExists
	case KindNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes for the JSON API.
func (c Code) HTTPStatus() int {
	switch c.Kind() {
	case KindValidation:
		return http.StatusBadRequest
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindSessionState, KindPositionConflict, KindDeckExhausted:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
