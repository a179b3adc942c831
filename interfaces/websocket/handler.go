package websocket

import (
	"net/http"

	"funnel-backend/pkg/auth"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The auth middleware has already validated the bearer token;
	// origin policy is enforced by the CORS layer on the upgrade
	// request
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests to canvas event sockets
type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

// NewHandler creates the websocket upgrade handler
func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

// Serve upgrades the connection and attaches it to the canvas named in
// the route
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	canvasID := chi.URLParam(r, "canvasID")
	if canvasID == "" {
		http.Error(w, "canvasID is required", http.StatusBadRequest)
		return
	}

	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(canvasID, user.UserID, h.hub, conn, h.logger)
	client.Start()
}
