package aggregates

import (
	"time"

	"funnel-backend/domain/core/entities"
	"funnel-backend/domain/core/valueobjects"
	"funnel-backend/domain/events"
	"funnel-backend/domain/geometry"
	pkgerrors "funnel-backend/pkg/errors"

	"github.com/google/uuid"
)

// CanvasID represents a unique canvas identifier
type CanvasID string

// NewCanvasID creates a new random CanvasID
func NewCanvasID() CanvasID {
	return CanvasID(uuid.New().String())
}

// String returns the string representation
func (id CanvasID) String() string {
	return string(id)
}

// Canvas is the aggregate root for one canvas-editing session. It owns
// nodes, edges, memos, the viewport, per-node live drag positions, and
// the transient interaction flags. There is exactly one logical writer
// at a time; the Interaction Controller enforces gesture exclusivity.
type Canvas struct {
	id     CanvasID
	userID string
	name   string

	nodes     map[valueobjects.NodeID]*entities.Node
	nodeOrder []valueobjects.NodeID
	edges     map[valueobjects.EdgeID]*Edge
	edgeOrder []valueobjects.EdgeID
	memos     map[valueobjects.MemoID]*entities.Memo
	memoOrder []valueobjects.MemoID

	viewport geometry.Viewport

	// livePositions holds in-flight drag positions so intermediate
	// frames never touch the canonical node list
	livePositions map[valueobjects.NodeID]valueobjects.Position

	interaction InteractionState

	selectedMemoID valueobjects.MemoID

	createdAt time.Time
	updatedAt time.Time
	version   int
	events    []events.DomainEvent
}

// Edge represents a directional connection between nodes
type Edge struct {
	ID           valueobjects.EdgeID   `json:"id"`
	SourceID     valueobjects.NodeID   `json:"source"`
	TargetID     valueobjects.NodeID   `json:"target"`
	SourceAnchor valueobjects.Anchor   `json:"sourceAnchor,omitempty"`
	TargetAnchor valueobjects.Anchor   `json:"targetAnchor,omitempty"`
	CreatedAt    time.Time             `json:"-"`
}

// InteractionState holds the transient gesture flags. The fields are
// not mutually exclusive at the type level; the Interaction Controller
// guarantees at most one gesture is active.
type InteractionState struct {
	IsPanning             bool
	DraggedNodeID         valueobjects.NodeID
	IsConnecting          bool
	ConnectionStart       valueobjects.NodeID
	ConnectionStartAnchor valueobjects.Anchor
	TemporaryConnection   *valueobjects.Position
}

// NewCanvas creates a new canvas aggregate
func NewCanvas(userID, name string) (*Canvas, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID required")
	}
	if name == "" {
		return nil, pkgerrors.NewValidationError("canvas name required")
	}

	now := time.Now()
	return &Canvas{
		id:            NewCanvasID(),
		userID:        userID,
		name:          name,
		nodes:         make(map[valueobjects.NodeID]*entities.Node),
		edges:         make(map[valueobjects.EdgeID]*Edge),
		memos:         make(map[valueobjects.MemoID]*entities.Memo),
		viewport:      geometry.DefaultViewport(),
		livePositions: make(map[valueobjects.NodeID]valueobjects.Position),
		createdAt:     now,
		updatedAt:     now,
		version:       1,
		events:        []events.DomainEvent{},
	}, nil
}

// ReconstructCanvas recreates a canvas from a persisted snapshot. The
// viewport is not canonical truth; it starts at identity and is
// recomputed by the caller.
func ReconstructCanvas(id CanvasID, userID, name string) (*Canvas, error) {
	if id == "" || userID == "" {
		return nil, pkgerrors.NewValidationError("required fields missing for canvas reconstruction")
	}
	if name == "" {
		name = "Untitled Funnel"
	}

	now := time.Now()
	return &Canvas{
		id:            id,
		userID:        userID,
		name:          name,
		nodes:         make(map[valueobjects.NodeID]*entities.Node),
		edges:         make(map[valueobjects.EdgeID]*Edge),
		memos:         make(map[valueobjects.MemoID]*entities.Memo),
		viewport:      geometry.DefaultViewport(),
		livePositions: make(map[valueobjects.NodeID]valueobjects.Position),
		createdAt:     now,
		updatedAt:     now,
		version:       1,
		events:        []events.DomainEvent{},
	}, nil
}

// ID returns the canvas's unique identifier
func (c *Canvas) ID() CanvasID {
	return c.id
}

// UserID returns the owner's ID
func (c *Canvas) UserID() string {
	return c.userID
}

// Name returns the canvas's name
func (c *Canvas) Name() string {
	return c.name
}

// Node operations

// AddNode adds a node to the canvas
func (c *Canvas) AddNode(node *entities.Node) error {
	if node == nil {
		return pkgerrors.NewValidationError("node cannot be nil")
	}

	nodeID := node.ID()
	if _, exists := c.nodes[nodeID]; exists {
		return pkgerrors.NewConflictError("node already exists on canvas")
	}

	c.nodes[nodeID] = node
	c.nodeOrder = append(c.nodeOrder, nodeID)
	c.touch()

	c.addEvent(events.NewNodeAdded(c.id.String(), nodeID, node.Type(), node.Position(), c.updatedAt))
	return nil
}

// GetNode retrieves a node by ID
func (c *Canvas) GetNode(nodeID valueobjects.NodeID) (*entities.Node, error) {
	node, exists := c.nodes[nodeID]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	return node, nil
}

// HasNode checks if a node exists on the canvas
func (c *Canvas) HasNode(nodeID valueobjects.NodeID) bool {
	_, exists := c.nodes[nodeID]
	return exists
}

// Nodes returns all nodes in insertion order
func (c *Canvas) Nodes() []*entities.Node {
	nodes := make([]*entities.Node, 0, len(c.nodeOrder))
	for _, id := range c.nodeOrder {
		nodes = append(nodes, c.nodes[id])
	}
	return nodes
}

// NodeCount returns the number of nodes on the canvas
func (c *Canvas) NodeCount() int {
	return len(c.nodes)
}

// MoveNode commits a node's canonical position, typically at drag-end,
// and clears any live position for it
func (c *Canvas) MoveNode(nodeID valueobjects.NodeID, position valueobjects.Position) error {
	node, exists := c.nodes[nodeID]
	if !exists {
		return pkgerrors.NewNotFoundError("node")
	}

	oldPos := node.Position()
	node.MoveTo(position)
	delete(c.livePositions, nodeID)
	c.touch()

	c.addEvent(events.NewNodeMoved(c.id.String(), nodeID, oldPos, position, c.updatedAt))
	return nil
}

// RemoveNode removes a node and cascades to every edge referencing it
// as source or target
func (c *Canvas) RemoveNode(nodeID valueobjects.NodeID) error {
	if _, exists := c.nodes[nodeID]; !exists {
		return pkgerrors.NewNotFoundError("node")
	}

	cascaded := 0
	for _, edgeID := range append([]valueobjects.EdgeID(nil), c.edgeOrder...) {
		edge := c.edges[edgeID]
		if edge.SourceID.Equals(nodeID) || edge.TargetID.Equals(nodeID) {
			c.removeEdgeInternal(edgeID)
			cascaded++
		}
	}

	delete(c.nodes, nodeID)
	c.nodeOrder = removeNodeID(c.nodeOrder, nodeID)
	delete(c.livePositions, nodeID)
	c.touch()

	c.addEvent(events.NewNodeRemoved(c.id.String(), nodeID, cascaded, c.updatedAt))
	return nil
}

// Live positions

// SetLivePosition records an in-flight drag position without touching
// the canonical node list
func (c *Canvas) SetLivePosition(nodeID valueobjects.NodeID, position valueobjects.Position) error {
	if _, exists := c.nodes[nodeID]; !exists {
		return pkgerrors.NewNotFoundError("node")
	}
	c.livePositions[nodeID] = position
	return nil
}

// LivePosition returns the node's effective render position: the live
// drag position when one exists, otherwise the canonical position
func (c *Canvas) LivePosition(nodeID valueobjects.NodeID) (valueobjects.Position, error) {
	if pos, ok := c.livePositions[nodeID]; ok {
		return pos, nil
	}
	node, exists := c.nodes[nodeID]
	if !exists {
		return valueobjects.Position{}, pkgerrors.NewNotFoundError("node")
	}
	return node.Position(), nil
}

// Edge operations

// ConnectNodes creates a directional edge between two nodes. At most
// one edge may exist per ordered (source, target) pair, and a node
// cannot connect to itself.
func (c *Canvas) ConnectNodes(sourceID, targetID valueobjects.NodeID, sourceAnchor, targetAnchor valueobjects.Anchor) (*Edge, error) {
	if _, exists := c.nodes[sourceID]; !exists {
		return nil, pkgerrors.NewNotFoundError("source node")
	}
	if _, exists := c.nodes[targetID]; !exists {
		return nil, pkgerrors.NewNotFoundError("target node")
	}

	if sourceID.Equals(targetID) {
		return nil, pkgerrors.NewValidationError("cannot connect node to itself")
	}

	if c.HasEdgeBetween(sourceID, targetID) {
		return nil, pkgerrors.NewConflictError("edge already exists between these nodes")
	}

	edge := &Edge{
		ID:           valueobjects.NewEdgeID(),
		SourceID:     sourceID,
		TargetID:     targetID,
		SourceAnchor: sourceAnchor,
		TargetAnchor: targetAnchor,
		CreatedAt:    time.Now(),
	}

	c.edges[edge.ID] = edge
	c.edgeOrder = append(c.edgeOrder, edge.ID)
	c.touch()

	c.addEvent(events.NewEdgeCreated(c.id.String(), edge.ID, sourceID, targetID, c.updatedAt))
	return edge, nil
}

// RestoreEdge reinserts a previously known edge, used when loading a
// snapshot or rolling back an optimistic delete
func (c *Canvas) RestoreEdge(edge *Edge) error {
	if edge == nil {
		return pkgerrors.NewValidationError("edge cannot be nil")
	}
	if _, exists := c.nodes[edge.SourceID]; !exists {
		return pkgerrors.NewValidationError("edge references non-existent source node")
	}
	if _, exists := c.nodes[edge.TargetID]; !exists {
		return pkgerrors.NewValidationError("edge references non-existent target node")
	}
	if _, exists := c.edges[edge.ID]; exists {
		return pkgerrors.NewConflictError("edge already exists on canvas")
	}
	if c.HasEdgeBetween(edge.SourceID, edge.TargetID) {
		return pkgerrors.NewConflictError("edge already exists between these nodes")
	}
	c.edges[edge.ID] = edge
	c.edgeOrder = append(c.edgeOrder, edge.ID)
	c.touch()
	return nil
}

// GetEdge retrieves an edge by ID
func (c *Canvas) GetEdge(edgeID valueobjects.EdgeID) (*Edge, error) {
	edge, exists := c.edges[edgeID]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	return edge, nil
}

// HasEdgeBetween checks whether an edge exists for the ordered pair
func (c *Canvas) HasEdgeBetween(sourceID, targetID valueobjects.NodeID) bool {
	for _, edge := range c.edges {
		if edge.SourceID.Equals(sourceID) && edge.TargetID.Equals(targetID) {
			return true
		}
	}
	return false
}

// Edges returns all edges in creation order
func (c *Canvas) Edges() []*Edge {
	edges := make([]*Edge, 0, len(c.edgeOrder))
	for _, id := range c.edgeOrder {
		edges = append(edges, c.edges[id])
	}
	return edges
}

// EdgeCount returns the number of edges on the canvas
func (c *Canvas) EdgeCount() int {
	return len(c.edges)
}

// RemoveEdge removes an edge by ID
func (c *Canvas) RemoveEdge(edgeID valueobjects.EdgeID) error {
	if _, exists := c.edges[edgeID]; !exists {
		return pkgerrors.NewNotFoundError("edge")
	}
	c.removeEdgeInternal(edgeID)
	c.touch()
	return nil
}

// SiblingPosition returns an edge's index among edges sharing its
// source, and the sibling count, both in creation order. The edge
// geometry fan-out depends on this being deterministic.
func (c *Canvas) SiblingPosition(edgeID valueobjects.EdgeID) (index, count int, err error) {
	edge, exists := c.edges[edgeID]
	if !exists {
		return 0, 0, pkgerrors.NewNotFoundError("edge")
	}

	for _, id := range c.edgeOrder {
		sibling := c.edges[id]
		if !sibling.SourceID.Equals(edge.SourceID) {
			continue
		}
		if id == edgeID {
			index = count
		}
		count++
	}
	return index, count, nil
}

// Memo operations

// AddMemo places a memo on the canvas
func (c *Canvas) AddMemo(memo *entities.Memo) error {
	if memo == nil {
		return pkgerrors.NewValidationError("memo cannot be nil")
	}
	if _, exists := c.memos[memo.ID()]; exists {
		return pkgerrors.NewConflictError("memo already exists on canvas")
	}

	c.memos[memo.ID()] = memo
	c.memoOrder = append(c.memoOrder, memo.ID())
	c.touch()

	c.addEvent(events.NewMemoCreated(c.id.String(), memo.ID(), memo.Position(), c.updatedAt))
	return nil
}

// GetMemo retrieves a memo by ID
func (c *Canvas) GetMemo(memoID valueobjects.MemoID) (*entities.Memo, error) {
	memo, exists := c.memos[memoID]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("memo")
	}
	return memo, nil
}

// Memos returns all memos in insertion order
func (c *Canvas) Memos() []*entities.Memo {
	memos := make([]*entities.Memo, 0, len(c.memoOrder))
	for _, id := range c.memoOrder {
		memos = append(memos, c.memos[id])
	}
	return memos
}

// MemoCount returns the number of memos on the canvas
func (c *Canvas) MemoCount() int {
	return len(c.memos)
}

// RemoveMemo removes a memo and returns it so the caller can roll the
// deletion back if persistence fails
func (c *Canvas) RemoveMemo(memoID valueobjects.MemoID) (*entities.Memo, error) {
	memo, exists := c.memos[memoID]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("memo")
	}

	delete(c.memos, memoID)
	c.memoOrder = removeMemoID(c.memoOrder, memoID)
	if c.selectedMemoID == memoID {
		c.selectedMemoID = ""
	}
	c.touch()

	c.addEvent(events.NewMemoDeleted(c.id.String(), memoID, c.updatedAt))
	return memo, nil
}

// ReplaceMemoID swaps a temporary memo id for the server-assigned one,
// keeping insertion order and selection intact
func (c *Canvas) ReplaceMemoID(tempID, serverID valueobjects.MemoID) error {
	memo, exists := c.memos[tempID]
	if !exists {
		return pkgerrors.NewNotFoundError("memo")
	}

	if err := memo.AssignServerID(serverID); err != nil {
		return err
	}

	delete(c.memos, tempID)
	c.memos[serverID] = memo
	for i, id := range c.memoOrder {
		if id == tempID {
			c.memoOrder[i] = serverID
			break
		}
	}
	if c.selectedMemoID == tempID {
		c.selectedMemoID = serverID
	}
	c.touch()

	c.addEvent(events.NewMemoReconciled(c.id.String(), tempID, serverID, c.updatedAt))
	return nil
}

// SelectMemo marks a memo as selected in the UI; empty clears selection
func (c *Canvas) SelectMemo(memoID valueobjects.MemoID) {
	c.selectedMemoID = memoID
}

// SelectedMemo returns the currently selected memo id, if any
func (c *Canvas) SelectedMemo() valueobjects.MemoID {
	return c.selectedMemoID
}

// Viewport

// Viewport returns the current viewport
func (c *Canvas) Viewport() geometry.Viewport {
	return c.viewport
}

// SetViewport replaces the viewport. Viewport state is session-scoped
// and never written to the persistence layer.
func (c *Canvas) SetViewport(v geometry.Viewport) {
	v.Zoom = geometry.ClampZoom(v.Zoom)
	c.viewport = v
}

// Interaction flags

// Interaction returns the transient gesture state
func (c *Canvas) Interaction() InteractionState {
	return c.interaction
}

// SetInteraction replaces the transient gesture state
func (c *Canvas) SetInteraction(state InteractionState) {
	c.interaction = state
}

// ItemCount returns the number of quota-counted items on the canvas
func (c *Canvas) ItemCount() int {
	return len(c.nodes) + len(c.memos)
}

// Validate ensures canvas invariants
func (c *Canvas) Validate() error {
	seen := make(map[string]bool, len(c.edges))
	for _, edge := range c.edges {
		if _, exists := c.nodes[edge.SourceID]; !exists {
			return pkgerrors.NewInternalError("edge references non-existent source node")
		}
		if _, exists := c.nodes[edge.TargetID]; !exists {
			return pkgerrors.NewInternalError("edge references non-existent target node")
		}
		key := edge.SourceID.String() + "->" + edge.TargetID.String()
		if seen[key] {
			return pkgerrors.NewInternalError("duplicate edge for ordered pair " + key)
		}
		seen[key] = true
	}
	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (c *Canvas) GetUncommittedEvents() []events.DomainEvent {
	out := make([]events.DomainEvent, len(c.events))
	copy(out, c.events)
	return out
}

// MarkEventsAsCommitted clears all uncommitted events
func (c *Canvas) MarkEventsAsCommitted() {
	c.events = []events.DomainEvent{}
}

// Private helper methods

func (c *Canvas) addEvent(event events.DomainEvent) {
	c.events = append(c.events, event)
}

func (c *Canvas) touch() {
	c.updatedAt = time.Now()
	c.version++
}

func (c *Canvas) removeEdgeInternal(edgeID valueobjects.EdgeID) {
	edge, exists := c.edges[edgeID]
	if !exists {
		return
	}
	delete(c.edges, edgeID)
	for i, id := range c.edgeOrder {
		if id == edgeID {
			c.edgeOrder = append(c.edgeOrder[:i], c.edgeOrder[i+1:]...)
			break
		}
	}
	c.addEvent(events.NewEdgeRemoved(c.id.String(), edge.ID, time.Now()))
}

func removeNodeID(ids []valueobjects.NodeID, target valueobjects.NodeID) []valueobjects.NodeID {
	for i, id := range ids {
		if id.Equals(target) {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func removeMemoID(ids []valueobjects.MemoID, target valueobjects.MemoID) []valueobjects.MemoID {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
