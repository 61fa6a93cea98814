package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arcanahq/arcana.space/internal/reading/domain"
	"github.com/arcanahq/arcana.space/internal/reading/service"
	"github.com/arcanahq/arcana.space/internal/storage/memory"
)

func newTestRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	svc, err := service.New(service.Config{
		Store:      store,
		SessionTTL: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("service.New() error = %v", err)
	}

	return NewRouter(NewHandlers(svc)), store
}

func seedCatalog(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()

	template := domain.SpreadTemplate{
		ID:        "tpl-1",
		Name:      "Three Card",
		CardCount: 3,
		MinCards:  1,
		MaxCards:  3,
		Layout:    domain.LayoutTypeFixed,
		Positions: []domain.PositionTemplate{
			{Ordinal: 0, Name: "Past", X: 300, Y: 400},
			{Ordinal: 1, Name: "Present", X: 500, Y: 400},
			{Ordinal: 2, Name: "Future", X: 700, Y: 400},
		},
		ApprovalStatus: domain.ApprovalStatusApproved,
	}
	if err := store.PutTemplate(ctx, template); err != nil {
		t.Fatalf("PutTemplate() error = %v", err)
	}

	deck := domain.Deck{ID: "deck-1", Name: "Test Deck"}
	for i := 0; i < 10; i++ {
		deck.Cards = append(deck.Cards, domain.Card{ID: string(rune('a' + i)), Ordinal: i})
	}
	if err := store.PutDeck(ctx, deck); err != nil {
		t.Fatalf("PutDeck() error = %v", err)
	}
}

func doRequest(t *testing.T, router *gin.Engine, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(HeaderActorID, role+"-1")
		req.Header.Set(HeaderActorRole, role)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func createSession(t *testing.T, router *gin.Engine) string {
	t.Helper()

	resp := doRequest(t, router, http.MethodPost, "/v1/sessions", "reader", CreateSessionRequest{
		TemplateID: "tpl-1",
		DeckID:     "deck-1",
		TotalCards: 3,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body = %s", resp.Code, resp.Body.String())
	}

	var session SessionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	return session.ID
}

// TestCreateSessionRequiresActorHeaders verifies requests without identity
// headers are rejected before reaching the service.
func TestCreateSessionRequiresActorHeaders(t *testing.T) {
	router, store := newTestRouter(t)
	seedCatalog(t, store)

	resp := doRequest(t, router, http.MethodPost, "/v1/sessions", "", CreateSessionRequest{
		TemplateID: "tpl-1",
		DeckID:     "deck-1",
		TotalCards: 3,
	})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

// TestSessionLifecycleOverHTTP walks create → setup → draw → complete through
// the JSON API.
func TestSessionLifecycleOverHTTP(t *testing.T) {
	router, store := newTestRouter(t)
	seedCatalog(t, store)

	sessionID := createSession(t, router)

	resp := doRequest(t, router, http.MethodPost, "/v1/sessions/"+sessionID+"/setup", "reader", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("setup status = %d, body = %s", resp.Code, resp.Body.String())
	}

	resp = doRequest(t, router, http.MethodPost, "/v1/sessions/"+sessionID+"/draws/begin", "reader", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("begin drawing status = %d, body = %s", resp.Code, resp.Body.String())
	}

	var lastDraw DrawResponse
	for i := 0; i < 3; i++ {
		resp = doRequest(t, router, http.MethodPost, "/v1/sessions/"+sessionID+"/draws", "reader", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("draw #%d status = %d, body = %s", i+1, resp.Code, resp.Body.String())
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &lastDraw); err != nil {
			t.Fatalf("unmarshal draw: %v", err)
		}
	}
	if lastDraw.Session.State != "interpreting" {
		t.Errorf("state after last draw = %s, want interpreting", lastDraw.Session.State)
	}
	if lastDraw.Session.CardsRemaining != 0 {
		t.Errorf("cards remaining = %d, want 0", lastDraw.Session.CardsRemaining)
	}

	resp = doRequest(t, router, http.MethodPost, "/v1/sessions/"+sessionID+"/complete", "reader", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("complete status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var completed SessionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &completed); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if completed.State != "completed" || completed.CompletedAt == nil {
		t.Errorf("completed = %+v, want completed state with timestamp", completed)
	}
}

// TestDrawOutsideDrawingStateConflicts verifies the state taxonomy maps to 409.
func TestDrawOutsideDrawingStateConflicts(t *testing.T) {
	router, store := newTestRouter(t)
	seedCatalog(t, store)

	sessionID := createSession(t, router)

	resp := doRequest(t, router, http.MethodPost, "/v1/sessions/"+sessionID+"/draws", "reader", nil)
	if resp.Code != http.StatusConflict {
		t.Fatalf("draw in preparing status = %d, want 409, body = %s", resp.Code, resp.Body.String())
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if errResp.Code != "SESSION_NOT_DRAWING" {
		t.Errorf("error code = %s, want SESSION_NOT_DRAWING", errResp.Code)
	}
}

// TestClientBurnForbidden verifies permission denials map to 403.
func TestClientBurnForbidden(t *testing.T) {
	router, store := newTestRouter(t)
	seedCatalog(t, store)

	sessionID := createSession(t, router)

	resp := doRequest(t, router, http.MethodPost, "/v1/sessions/"+sessionID+"/slots/0/burn", "client", BurnRequest{Reason: "nope"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("client burn status = %d, want 403, body = %s", resp.Code, resp.Body.String())
	}
}

// TestAssignPositionOutOfBoundsRejected verifies geometry validation maps to 400
// with structured metadata.
func TestAssignPositionOutOfBoundsRejected(t *testing.T) {
	router, store := newTestRouter(t)
	seedCatalog(t, store)

	ctx := context.Background()
	freeform := domain.SpreadTemplate{
		ID:             "tpl-freeform",
		Name:           "Open Table",
		CardCount:      3,
		MinCards:       1,
		MaxCards:       5,
		Layout:         domain.LayoutTypeFreeform,
		ApprovalStatus: domain.ApprovalStatusApproved,
	}
	if err := store.PutTemplate(ctx, freeform); err != nil {
		t.Fatalf("PutTemplate() error = %v", err)
	}

	resp := doRequest(t, router, http.MethodPost, "/v1/sessions", "reader", CreateSessionRequest{
		TemplateID: "tpl-freeform",
		DeckID:     "deck-1",
		TotalCards: 3,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var session SessionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}

	resp = doRequest(t, router, http.MethodPost, "/v1/sessions/"+session.ID+"/setup", "reader", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("setup status = %d, body = %s", resp.Code, resp.Body.String())
	}

	resp = doRequest(t, router, http.MethodPost, "/v1/sessions/"+session.ID+"/slots/0/position", "reader", AssignPositionRequest{
		X: 2100, Y: 100, Width: 80, Height: 120,
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("assign status = %d, want 400, body = %s", resp.Code, resp.Body.String())
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if errResp.Code != "GEOMETRY_OUT_OF_BOUNDS" || errResp.Metadata["field"] != "x" {
		t.Errorf("error = %+v, want geometry bounds on field x", errResp)
	}
}

// TestGetUnknownSessionNotFound verifies missing sessions map to 404.
func TestGetUnknownSessionNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := doRequest(t, router, http.MethodGet, "/v1/sessions/missing", "reader", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %s", resp.Code, resp.Body.String())
	}
}

// TestAuditTrailEndpoint verifies the trail lists records in order and denies
// clients.
func TestAuditTrailEndpoint(t *testing.T) {
	router, store := newTestRouter(t)
	seedCatalog(t, store)

	sessionID := createSession(t, router)
	resp := doRequest(t, router, http.MethodPost, "/v1/sessions/"+sessionID+"/setup", "reader", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("setup status = %d", resp.Code)
	}

	resp = doRequest(t, router, http.MethodGet, "/v1/sessions/"+sessionID+"/audit", "reader", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("audit status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var payload struct {
		Records []AuditRecordResponse `json:"records"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal audit: %v", err)
	}
	if len(payload.Records) != 2 {
		t.Fatalf("audit records = %d, want 2", len(payload.Records))
	}
	if payload.Records[0].Action != "session.created" || payload.Records[1].Action != "session.setup_advanced" {
		t.Errorf("actions = %s, %s, want created then setup", payload.Records[0].Action, payload.Records[1].Action)
	}

	resp = doRequest(t, router, http.MethodGet, "/v1/sessions/"+sessionID+"/audit", "client", nil)
	if resp.Code != http.StatusForbidden {
		t.Errorf("client audit status = %d, want 403", resp.Code)
	}
}
