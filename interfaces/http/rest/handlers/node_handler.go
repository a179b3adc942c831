package handlers

import (
	"encoding/json"
	"net/http"

	"funnel-backend/application/session"
	"funnel-backend/domain/core/entities"
	"funnel-backend/domain/core/valueobjects"
	"funnel-backend/pkg/common"
	pkgerrors "funnel-backend/pkg/errors"
	"funnel-backend/pkg/observability"
	"funnel-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NodeHandler handles node CRUD for an open canvas session
type NodeHandler struct {
	registry *session.Registry
	metrics  *observability.Collector
	logger   *zap.Logger
}

// NewNodeHandler creates a node handler
func NewNodeHandler(registry *session.Registry, metrics *observability.Collector, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{registry: registry, metrics: metrics, logger: logger}
}

// CreateNodeRequest is the payload for node creation
type CreateNodeRequest struct {
	Type     string                `json:"type" validate:"required"`
	Data     entities.NodeData     `json:"data"`
	Position valueobjects.Position `json:"position"`
}

// UpdateNodeRequest is the payload for editing node data
type UpdateNodeRequest struct {
	Data entities.NodeData `json:"data"`
}

// MoveNodeRequest commits a final node position
type MoveNodeRequest struct {
	Position valueobjects.Position `json:"position"`
}

// CreateNode adds a node, subject to the quota check
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	var req CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAppError(w, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		respondAppError(w, pkgerrors.NewValidationError(err.Error()))
		return
	}

	var node *entities.Node
	err = sess.Do(func() error {
		var inner error
		node, inner = sess.Service.AddNode(r.Context(), req.Type, req.Data, req.Position)
		return inner
	})
	if err != nil {
		respondAppError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.NodesCreated.Inc()
	}
	common.RespondJSON(w, http.StatusCreated, NodeView{
		ID:       node.ID().String(),
		Type:     node.Type(),
		Data:     node.Data(),
		Position: node.Position(),
	})
}

// UpdateNode edits a node's presentational data
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	nodeID, err := valueobjects.NewNodeIDFromString(chi.URLParam(r, "nodeID"))
	if err != nil {
		respondAppError(w, err)
		return
	}

	var req UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAppError(w, pkgerrors.NewValidationError("invalid request body"))
		return
	}

	err = sess.Do(func() error {
		return sess.Service.UpdateNodeData(nodeID, req.Data)
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// MoveNode commits a node position directly, bypassing the gesture
// machine. Keyboard nudges and alignment tools use this path.
func (h *NodeHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	nodeID, err := valueobjects.NewNodeIDFromString(chi.URLParam(r, "nodeID"))
	if err != nil {
		respondAppError(w, err)
		return
	}

	var req MoveNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAppError(w, pkgerrors.NewValidationError("invalid request body"))
		return
	}

	err = sess.Do(func() error {
		return sess.Service.DropNode(nodeID, req.Position)
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

// DeleteNode removes a node and its incident edges
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	nodeID, err := valueobjects.NewNodeIDFromString(chi.URLParam(r, "nodeID"))
	if err != nil {
		respondAppError(w, err)
		return
	}

	err = sess.Do(func() error {
		return sess.Service.RemoveNode(nodeID)
	})
	if err != nil {
		respondAppError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.NodesDeleted.Inc()
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
