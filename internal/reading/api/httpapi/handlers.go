// Package httpapi exposes the reading engine as a JSON HTTP API.
//
// Actor identity arrives as X-Actor-Id and X-Actor-Role headers, verified
// upstream by the platform gateway and trusted verbatim here.
package httpapi

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arcanahq/arcana.space/internal/platform/errors"
	"github.com/arcanahq/arcana.space/internal/reading/authz"
	"github.com/arcanahq/arcana.space/internal/reading/domain"
	"github.com/arcanahq/arcana.space/internal/reading/service"
)

// Actor identity headers.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

// Handlers contains the HTTP handlers for the reading engine.
type Handlers struct {
	svc *service.Service
}

// NewHandlers creates handlers over the given service.
func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

// actorFrom extracts the caller's identity from request headers. The second
// return is false when identity is missing, after writing the error response.
func actorFrom(c *gin.Context) (service.Actor, bool) {
	actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))
	role := authz.RoleFromString(c.GetHeader(HeaderActorRole))
	if actorID == "" || role == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Code:    "ACTOR_REQUIRED",
			Message: "actor id and role headers are required",
		})
		return service.Actor{}, false
	}
	return service.Actor{ID: actorID, Role: role}, true
}

// writeError maps a service error to its HTTP status and JSON envelope.
func writeError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("request failed method=%s path=%s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, ErrorResponse{
		Code:     string(code),
		Message:  err.Error(),
		Metadata: errors.GetMetadata(err),
	})
}

// ordinalParam parses the :ordinal path segment.
func ordinalParam(c *gin.Context) (int, bool) {
	ordinal, err := strconv.Atoi(c.Param("ordinal"))
	if err != nil || ordinal < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_ORDINAL",
			Message: "ordinal must be a non-negative integer",
		})
		return 0, false
	}
	return ordinal, true
}

// HandleCreateSession handles POST /v1/sessions.
func (h *Handlers) HandleCreateSession(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	session, err := h.svc.CreateSession(c.Request.Context(), actor, service.CreateSessionParams{
		TemplateID: req.TemplateID,
		DeckID:     req.DeckID,
		ClientID:   req.ClientID,
		BookingID:  req.BookingID,
		TotalCards: req.TotalCards,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionResponse(session))
}

// HandleGetSessionState handles GET /v1/sessions/:id.
func (h *Handlers) HandleGetSessionState(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	view, err := h.svc.GetSessionState(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionStateResponse(view))
}

// HandleAdvanceToSetup handles POST /v1/sessions/:id/setup.
func (h *Handlers) HandleAdvanceToSetup(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	session, err := h.svc.AdvanceToSetup(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// HandleAssignPosition handles POST /v1/sessions/:id/slots/:ordinal/position.
func (h *Handlers) HandleAssignPosition(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	ordinal, ok := ordinalParam(c)
	if !ok {
		return
	}

	var req AssignPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	slot, err := h.svc.AssignPosition(c.Request.Context(), actor, c.Param("id"), ordinal, domain.Geometry{
		X:        req.X,
		Y:        req.Y,
		Width:    req.Width,
		Height:   req.Height,
		Rotation: req.Rotation,
		ZIndex:   req.ZIndex,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSlotResponse(slot))
}

// HandleBeginDrawing handles POST /v1/sessions/:id/draws/begin.
func (h *Handlers) HandleBeginDrawing(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	session, err := h.svc.BeginDrawing(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// HandleDrawCard handles POST /v1/sessions/:id/draws.
func (h *Handlers) HandleDrawCard(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	// Body is optional; an empty body draws into the lowest unassigned slot.
	var req DrawRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
			return
		}
	}

	outcome, err := h.svc.DrawCard(c.Request.Context(), actor, c.Param("id"), service.DrawParams{
		Ordinal: req.Ordinal,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DrawResponse{
		Slot:    toSlotResponse(outcome.Slot),
		Session: toSessionResponse(outcome.Session),
		Retried: outcome.Retried,
	})
}

// HandleRevealCard handles POST /v1/sessions/:id/slots/:ordinal/reveal.
func (h *Handlers) HandleRevealCard(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	ordinal, ok := ordinalParam(c)
	if !ok {
		return
	}

	slot, err := h.svc.RevealCard(c.Request.Context(), actor, c.Param("id"), ordinal)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSlotResponse(slot))
}

// HandleBurnCard handles POST /v1/sessions/:id/slots/:ordinal/burn.
func (h *Handlers) HandleBurnCard(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	ordinal, ok := ordinalParam(c)
	if !ok {
		return
	}

	var req BurnRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
			return
		}
	}

	slot, err := h.svc.BurnCard(c.Request.Context(), actor, c.Param("id"), ordinal, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSlotResponse(slot))
}

// HandleStopDrawing handles POST /v1/sessions/:id/draws/stop.
func (h *Handlers) HandleStopDrawing(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	session, err := h.svc.StopDrawingEarly(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// HandleCompleteSession handles POST /v1/sessions/:id/complete.
func (h *Handlers) HandleCompleteSession(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	session, err := h.svc.CompleteSession(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// HandleCancelSession handles POST /v1/sessions/:id/cancel.
func (h *Handlers) HandleCancelSession(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
			return
		}
	}

	session, err := h.svc.CancelSession(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// HandleListAuditTrail handles GET /v1/sessions/:id/audit.
func (h *Handlers) HandleListAuditTrail(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	records, err := h.svc.ListAuditTrail(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": toAuditRecordResponses(records)})
}
