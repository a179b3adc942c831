// Package websocket fans canvas events out to connected clients.
// Every client watching a canvas receives save-status transitions, so
// a second tab shows "Saving..." while the first one edits.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"funnel-backend/domain/events"

	"go.uber.org/zap"
)

// Message types pushed to clients
const (
	MessageSaving       = "SAVING"
	MessageSaved        = "SAVED"
	MessageSaveFailed   = "SAVE_FAILED"
	MessageGraphUpdated = "GRAPH_UPDATED"
	MessageEstablished  = "CONNECTION_ESTABLISHED"
)

// BroadcastMessage is one event addressed to every watcher of a canvas
type BroadcastMessage struct {
	CanvasID  string          `json:"-"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Hub maintains active connections grouped by canvas and broadcasts
// canvas events to them
type Hub struct {
	connections map[string]map[*Client]bool
	mu          sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewHub creates a websocket hub
func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		connections: make(map[string]map[*Client]bool),
		register:    make(chan *Client, 100),
		unregister:  make(chan *Client, 100),
		broadcast:   make(chan *BroadcastMessage, 1000),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToCanvas(message)
		}
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}

// NotifySaveStarted pushes the saving indicator to every watcher of
// the canvas. It satisfies the session registry's notifier port
// together with NotifySaveResult and NotifyMutations.
func (h *Hub) NotifySaveStarted(canvasID, reason string) {
	h.Send(canvasID, MessageSaving, map[string]string{"reason": reason})
}

// NotifyMutations pushes the domain events committed by a successful
// save, so other tabs can refresh the affected parts of the graph.
func (h *Hub) NotifyMutations(canvasID string, committed []events.DomainEvent) {
	h.Send(canvasID, MessageGraphUpdated, map[string]interface{}{
		"events": committed,
	})
}

// NotifySaveResult pushes a save outcome to every watcher of the
// canvas.
func (h *Hub) NotifySaveResult(canvasID, reason string, err error) {
	if err != nil {
		h.Send(canvasID, MessageSaveFailed, map[string]string{
			"reason": reason,
			"error":  err.Error(),
		})
		return
	}
	h.Send(canvasID, MessageSaved, map[string]string{"reason": reason})
}

// Send broadcasts a typed payload to every watcher of a canvas
func (h *Hub) Send(canvasID, messageType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	message := &BroadcastMessage{
		CanvasID:  canvasID,
		Type:      messageType,
		Data:      payload,
		Timestamp: time.Now().Unix(),
	}

	select {
	case h.broadcast <- message:
		return nil
	default:
		return fmt.Errorf("broadcast channel full, message dropped")
	}
}

// ConnectionCount returns the number of active watchers of a canvas
func (h *Hub) ConnectionCount(canvasID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[canvasID])
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[client.canvasID] == nil {
		h.connections[client.canvasID] = make(map[*Client]bool)
	}
	h.connections[client.canvasID][client] = true

	h.logger.Info("Client registered",
		zap.String("canvasID", client.canvasID),
		zap.String("connectionID", client.id),
		zap.Int("watchers", len(h.connections[client.canvasID])),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.connections[client.canvasID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.connections, client.canvasID)
	}

	h.logger.Info("Client unregistered",
		zap.String("canvasID", client.canvasID),
		zap.String("connectionID", client.id),
	)
}

func (h *Hub) broadcastToCanvas(message *BroadcastMessage) {
	h.mu.RLock()
	clients := h.connections[message.CanvasID]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message",
			zap.Error(err),
			zap.String("messageType", message.Type),
		)
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer; drop the connection rather than block
			// every other watcher
			h.logger.Warn("Closing slow client",
				zap.String("canvasID", client.canvasID),
				zap.String("connectionID", client.id),
			)
			go func(c *Client) {
				c.hub.unregister <- c
				c.conn.Close()
			}(client)
		}
	}
}

func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for canvasID, clients := range h.connections {
		for client := range clients {
			close(client.send)
			client.conn.Close()
		}
		delete(h.connections, canvasID)
	}
	h.logger.Info("All connections closed")
}
