package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RegisterRoutes mounts the reading engine routes on the router group.
//
//	POST /sessions                          - create a session
//	GET  /sessions/:id                      - session state with slots
//	POST /sessions/:id/setup                - advance preparing → setup
//	POST /sessions/:id/slots/:ordinal/position - assign freeform geometry
//	POST /sessions/:id/draws/begin          - advance setup → drawing
//	POST /sessions/:id/draws                - draw one card
//	POST /sessions/:id/slots/:ordinal/reveal - reveal a drawn card
//	POST /sessions/:id/slots/:ordinal/burn  - burn a drawn card
//	POST /sessions/:id/draws/stop           - stop drawing early
//	POST /sessions/:id/complete             - complete the session
//	POST /sessions/:id/cancel               - cancel the session
//	GET  /sessions/:id/audit                - audit trail
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", handlers.HandleCreateSession)
		sessions.GET("/:id", handlers.HandleGetSessionState)
		sessions.POST("/:id/setup", handlers.HandleAdvanceToSetup)
		sessions.POST("/:id/slots/:ordinal/position", handlers.HandleAssignPosition)
		sessions.POST("/:id/draws/begin", handlers.HandleBeginDrawing)
		sessions.POST("/:id/draws", handlers.HandleDrawCard)
		sessions.POST("/:id/slots/:ordinal/reveal", handlers.HandleRevealCard)
		sessions.POST("/:id/slots/:ordinal/burn", handlers.HandleBurnCard)
		sessions.POST("/:id/draws/stop", handlers.HandleStopDrawing)
		sessions.POST("/:id/complete", handlers.HandleCompleteSession)
		sessions.POST("/:id/cancel", handlers.HandleCancelSession)
		sessions.GET("/:id/audit", handlers.HandleListAuditTrail)
	}
}

// NewRouter builds a gin engine with tracing middleware and the v1 routes.
func NewRouter(handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), TraceMiddleware())

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

// TraceMiddleware starts a server span per request. Spans are no-ops unless
// the OTLP exporter is enabled.
func TraceMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("arcana.space/reading/httpapi")
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", c.FullPath()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}
