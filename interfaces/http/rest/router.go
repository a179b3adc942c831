package rest

import (
	"net/http"

	"funnel-backend/application/session"
	"funnel-backend/interfaces/http/rest/handlers"
	"funnel-backend/interfaces/http/rest/middleware"
	ws "funnel-backend/interfaces/websocket"
	"funnel-backend/pkg/auth"
	"funnel-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	registry  *session.Registry
	hub       *ws.Hub
	validator *auth.JWTValidator
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	registry *session.Registry,
	hub *ws.Hub,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Router {
	return &Router{
		registry:  registry,
		hub:       hub,
		validator: validator,
		metrics:   metrics,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "https://*.funnelboard.app"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rt.metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	sessionHandler := handlers.NewSessionHandler(rt.registry, rt.logger)
	nodeHandler := handlers.NewNodeHandler(rt.registry, rt.metrics, rt.logger)
	edgeHandler := handlers.NewEdgeHandler(rt.registry, rt.metrics, rt.logger)
	memoHandler := handlers.NewMemoHandler(rt.registry, rt.metrics, rt.logger)
	wsHandler := ws.NewHandler(rt.hub, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.logger))

		r.Route("/canvases/{canvasID}", func(r chi.Router) {
			// Session lifecycle
			r.Post("/session", sessionHandler.OpenSession)
			r.Delete("/session", sessionHandler.CloseSession)

			// Render state and pointer input
			r.Get("/graph", sessionHandler.GetGraph)
			r.Post("/events", sessionHandler.PostEvents)
			r.Post("/events/cancel", sessionHandler.CancelGesture)
			r.Get("/events/stream", wsHandler.Serve)

			// Persistence
			r.Post("/save", sessionHandler.Save)
			r.Get("/save/status", sessionHandler.Status)

			// Nodes
			r.Post("/nodes", nodeHandler.CreateNode)
			r.Patch("/nodes/{nodeID}", nodeHandler.UpdateNode)
			r.Put("/nodes/{nodeID}/position", nodeHandler.MoveNode)
			r.Delete("/nodes/{nodeID}", nodeHandler.DeleteNode)

			// Edges
			r.Post("/edges", edgeHandler.CreateEdge)
			r.Get("/edges/{edgeID}/path", edgeHandler.GetEdgePath)
			r.Delete("/edges/{edgeID}", edgeHandler.DeleteEdge)

			// Memos
			r.Post("/memos", memoHandler.CreateMemo)
			r.Patch("/memos/{memoID}", memoHandler.UpdateMemo)
			r.Post("/memos/{memoID}/select", memoHandler.SelectMemo)
			r.Delete("/memos/{memoID}", memoHandler.DeleteMemo)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
