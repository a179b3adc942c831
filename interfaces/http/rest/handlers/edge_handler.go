package handlers

import (
	"encoding/json"
	"net/http"

	"funnel-backend/application/session"
	"funnel-backend/domain/core/aggregates"
	"funnel-backend/domain/core/valueobjects"
	"funnel-backend/domain/geometry"
	"funnel-backend/pkg/common"
	pkgerrors "funnel-backend/pkg/errors"
	"funnel-backend/pkg/observability"
	"funnel-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// EdgeHandler handles edge creation and removal
type EdgeHandler struct {
	registry *session.Registry
	metrics  *observability.Collector
	logger   *zap.Logger
}

// NewEdgeHandler creates an edge handler
func NewEdgeHandler(registry *session.Registry, metrics *observability.Collector, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{registry: registry, metrics: metrics, logger: logger}
}

// CreateEdgeRequest is the payload for explicit edge creation. The
// target anchor is optional; omitted, it is inferred from the relative
// node positions the same way a handle-drag drop infers it.
type CreateEdgeRequest struct {
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceAnchor string `json:"sourceAnchor" validate:"required,oneof=left right top bottom"`
	TargetAnchor string `json:"targetAnchor,omitempty" validate:"omitempty,oneof=left right top bottom"`
}

// CreateEdge connects two nodes
func (h *EdgeHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	var req CreateEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAppError(w, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		respondAppError(w, pkgerrors.NewValidationError(err.Error()))
		return
	}

	sourceID, err := valueobjects.NewNodeIDFromString(req.Source)
	if err != nil {
		respondAppError(w, err)
		return
	}
	targetID, err := valueobjects.NewNodeIDFromString(req.Target)
	if err != nil {
		respondAppError(w, err)
		return
	}
	sourceAnchor, err := valueobjects.ParseAnchor(req.SourceAnchor)
	if err != nil {
		respondAppError(w, err)
		return
	}

	var view EdgeView
	err = sess.Do(func() error {
		targetAnchor := valueobjects.Anchor(req.TargetAnchor)
		if targetAnchor == "" {
			sourceNode, inner := sess.Canvas.GetNode(sourceID)
			if inner != nil {
				return inner
			}
			targetNode, inner := sess.Canvas.GetNode(targetID)
			if inner != nil {
				return inner
			}
			targetAnchor = valueobjects.InferTargetAnchor(sourceAnchor, sourceNode.Position(), targetNode.Position())
		}

		edge, inner := sess.Service.ConnectNodes(sourceID, targetID, sourceAnchor, targetAnchor)
		if inner != nil {
			return inner
		}
		view = edgeView(sess, edge)
		return nil
	})
	if err != nil {
		respondAppError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.EdgesCreated.Inc()
	}
	common.RespondJSON(w, http.StatusCreated, view)
}

// GetEdgePath returns the routed path of one edge, with its midpoint
// for placing the delete affordance
func (h *EdgeHandler) GetEdgePath(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	edgeID := valueobjects.EdgeID(chi.URLParam(r, "edgeID"))

	var view EdgeView
	err = sess.Do(func() error {
		edge, inner := sess.Canvas.GetEdge(edgeID)
		if inner != nil {
			return inner
		}
		view = edgeView(sess, edge)
		return nil
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// DeleteEdge removes an edge
func (h *EdgeHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	edgeID := valueobjects.EdgeID(chi.URLParam(r, "edgeID"))

	err = sess.Do(func() error {
		return sess.Service.RemoveEdge(edgeID)
	})
	if err != nil {
		respondAppError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.EdgesDeleted.Inc()
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// edgeView routes one edge. Caller must hold the session lock.
func edgeView(sess *session.Session, edge *aggregates.Edge) EdgeView {
	canvas := sess.Canvas
	sourcePos, err := canvas.LivePosition(edge.SourceID)
	if err != nil {
		sourcePos = valueobjects.Position{}
	}
	targetPos, err := canvas.LivePosition(edge.TargetID)
	if err != nil {
		targetPos = valueobjects.Position{}
	}
	index, count, err := canvas.SiblingPosition(edge.ID)
	if err != nil {
		index, count = 0, 1
	}
	path := geometry.EdgePath(sourcePos, targetPos, edge.SourceAnchor, edge.TargetAnchor, index, count)
	return EdgeView{
		ID:           edge.ID.String(),
		Source:       edge.SourceID.String(),
		Target:       edge.TargetID.String(),
		SourceAnchor: edge.SourceAnchor.String(),
		TargetAnchor: edge.TargetAnchor.String(),
		Path:         path.SVG(),
		Midpoint:     path.Midpoint(),
	}
}
