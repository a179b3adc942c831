package services

import (
	"context"
	stdsync "sync"

	"funnel-backend/application/ports"
	appsync "funnel-backend/application/sync"
	domainconfig "funnel-backend/domain/config"
	"funnel-backend/domain/core/aggregates"
	"funnel-backend/domain/core/entities"
	"funnel-backend/domain/core/valueobjects"
	pkgerrors "funnel-backend/pkg/errors"

	"go.uber.org/zap"
)

// CanvasService is the mutation entry point for one canvas session.
// Every method that changes graph structure applies the change to the
// aggregate first, then schedules persistence through the sync engine
// with a rollback closure; the edit is never blocked on the network.
//
// Edge creation and removal, node removal and drag commits save
// immediately. Node creation, node data edits and live drag updates
// save on the debounce window, since they arrive in bursts.
//
// All methods require the session lock to be held by the caller;
// rollback closures acquire it themselves because the engine runs
// them from its own goroutine.
type CanvasService struct {
	canvas     *aggregates.Canvas
	engine     *appsync.Engine
	reconciler *appsync.MemoReconciler
	quota      *QuotaGuard
	config     *domainconfig.DomainConfig
	locker     stdsync.Locker
	logger     *zap.Logger
}

// NewCanvasService wires the mutation surface for one session
func NewCanvasService(
	canvas *aggregates.Canvas,
	engine *appsync.Engine,
	reconciler *appsync.MemoReconciler,
	quota *QuotaGuard,
	config *domainconfig.DomainConfig,
	locker stdsync.Locker,
	logger *zap.Logger,
) *CanvasService {
	return &CanvasService{
		canvas:     canvas,
		engine:     engine,
		reconciler: reconciler,
		quota:      quota,
		config:     config,
		locker:     locker,
		logger:     logger,
	}
}

// AddNode creates a node after the quota check passes
func (s *CanvasService) AddNode(ctx context.Context, nodeType string, data entities.NodeData, position valueobjects.Position) (*entities.Node, error) {
	if err := s.quota.EnsureCanAdd(ctx, s.canvas, 1); err != nil {
		return nil, err
	}

	node, err := entities.NewNode(nodeType, data, position)
	if err != nil {
		return nil, err
	}
	if err := s.canvas.AddNode(node); err != nil {
		return nil, err
	}

	nodeID := node.ID()
	s.engine.TriggerSave("node-add", false, s.locked(func() {
		if s.canvas.HasNode(nodeID) {
			s.canvas.RemoveNode(nodeID)
		}
	}))
	return node, nil
}

// AddNodeAt creates a node with default content at a canvas position.
// This is the double-click path; the node gets a placeholder title the
// user renames afterwards.
func (s *CanvasService) AddNodeAt(position valueobjects.Position) (*entities.Node, error) {
	return s.AddNode(context.Background(), "step", entities.NodeData{Title: "New Step"}, position)
}

// UpdateNodeData replaces a node's presentational payload
func (s *CanvasService) UpdateNodeData(nodeID valueobjects.NodeID, data entities.NodeData) error {
	node, err := s.canvas.GetNode(nodeID)
	if err != nil {
		return err
	}

	prev := node.Data()
	if err := node.UpdateData(data); err != nil {
		return err
	}

	s.engine.TriggerSave("node-edit", false, s.locked(func() {
		node.UpdateData(prev)
	}))
	return nil
}

// DragNode records a live position while a drag is in progress. The
// committed position is untouched; edges and snapshots render from
// the live value until the drop.
func (s *CanvasService) DragNode(nodeID valueobjects.NodeID, live valueobjects.Position) error {
	if err := s.canvas.SetLivePosition(nodeID, live); err != nil {
		return err
	}
	s.engine.TriggerSave("node-drag", false, nil)
	return nil
}

// DropNode commits the final drag position
func (s *CanvasService) DropNode(nodeID valueobjects.NodeID, final valueobjects.Position) error {
	node, err := s.canvas.GetNode(nodeID)
	if err != nil {
		return err
	}
	prev := node.Position()

	if err := s.canvas.MoveNode(nodeID, final); err != nil {
		return err
	}

	s.engine.TriggerSave("node-move", true, s.locked(func() {
		s.canvas.MoveNode(nodeID, prev)
	}))
	return nil
}

// RemoveNode deletes a node and its incident edges
func (s *CanvasService) RemoveNode(nodeID valueobjects.NodeID) error {
	node, err := s.canvas.GetNode(nodeID)
	if err != nil {
		return err
	}

	// Capture incident edges before the cascade removes them
	var severed []*aggregates.Edge
	for _, edge := range s.canvas.Edges() {
		if edge.SourceID.Equals(nodeID) || edge.TargetID.Equals(nodeID) {
			severed = append(severed, edge)
		}
	}

	if err := s.canvas.RemoveNode(nodeID); err != nil {
		return err
	}

	s.engine.TriggerSave("node-delete", true, s.locked(func() {
		if err := s.canvas.AddNode(node); err != nil {
			s.logger.Error("Node delete rollback failed", zap.Error(err))
			return
		}
		for _, edge := range severed {
			if err := s.canvas.RestoreEdge(edge); err != nil {
				s.logger.Error("Edge restore failed during node rollback", zap.Error(err))
			}
		}
	}))
	return nil
}

// ConnectNodes creates an edge and persists it immediately
func (s *CanvasService) ConnectNodes(sourceID, targetID valueobjects.NodeID, sourceAnchor, targetAnchor valueobjects.Anchor) (*aggregates.Edge, error) {
	edge, err := s.canvas.ConnectNodes(sourceID, targetID, sourceAnchor, targetAnchor)
	if err != nil {
		return nil, err
	}

	edgeID := edge.ID
	s.engine.TriggerSave("edge-create", true, s.locked(func() {
		s.canvas.RemoveEdge(edgeID)
	}))
	return edge, nil
}

// RemoveEdge deletes an edge and persists the removal immediately
func (s *CanvasService) RemoveEdge(edgeID valueobjects.EdgeID) error {
	edge, err := s.canvas.GetEdge(edgeID)
	if err != nil {
		return err
	}

	if err := s.canvas.RemoveEdge(edgeID); err != nil {
		return err
	}

	s.engine.TriggerSave("edge-delete", true, s.locked(func() {
		if err := s.canvas.RestoreEdge(edge); err != nil {
			s.logger.Error("Edge delete rollback failed", zap.Error(err))
		}
	}))
	return nil
}

// CreateMemo creates a memo after the quota check passes. Memos are
// separate entities with their own CRUD; persistence runs through the
// reconciler rather than the snapshot save.
func (s *CanvasService) CreateMemo(ctx context.Context, content string, position valueobjects.Position) (*entities.Memo, error) {
	if len(content) > s.config.MaxMemoContentLength {
		return nil, pkgerrors.NewValidationError("memo content exceeds maximum length")
	}
	if err := s.quota.EnsureCanAdd(ctx, s.canvas, 1); err != nil {
		return nil, err
	}
	return s.reconciler.CreateMemo(content, position)
}

// AddMemoAt creates an empty memo at a canvas position, the
// modifier-double-click path
func (s *CanvasService) AddMemoAt(position valueobjects.Position) (*entities.Memo, error) {
	return s.CreateMemo(context.Background(), "", position)
}

// UpdateMemo applies a partial memo change. Position and size changes
// are debounced; content edits go out immediately.
func (s *CanvasService) UpdateMemo(memoID valueobjects.MemoID, patch ports.MemoPatch) error {
	if patch.Content != nil && len(*patch.Content) > s.config.MaxMemoContentLength {
		return pkgerrors.NewValidationError("memo content exceeds maximum length")
	}
	debounced := patch.Content == nil
	return s.reconciler.UpdateMemo(memoID, patch, debounced)
}

// DeleteMemo removes a memo
func (s *CanvasService) DeleteMemo(memoID valueobjects.MemoID) error {
	return s.reconciler.DeleteMemo(memoID)
}

// Save flushes the canvas to persistence immediately, the manual-save
// path
func (s *CanvasService) Save() {
	s.engine.TriggerSave("manual", true, nil)
}

// SaveStatus reports whether a save is in flight and when the last one
// landed
func (s *CanvasService) SaveStatus() appsync.Status {
	return s.engine.CurrentStatus()
}

// locked wraps a rollback closure with the session lock, since the
// engine invokes it from a save goroutine
func (s *CanvasService) locked(fn func()) func() {
	return func() {
		s.locker.Lock()
		defer s.locker.Unlock()
		fn()
	}
}
