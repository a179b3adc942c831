package entities

import (
	"time"

	"funnel-backend/domain/core/valueobjects"
	pkgerrors "funnel-backend/pkg/errors"
)

// NodeData carries the presentational payload of a canvas node. The
// detail panel edits these fields; position is tracked separately.
type NodeData struct {
	Title    string             `json:"title"`
	Subtitle string             `json:"subtitle,omitempty"`
	Icon     string             `json:"icon"`
	Color    string             `json:"color"`
	Size     *valueobjects.Size `json:"size,omitempty"`
}

// Node is a typed element placed on the canvas
// This is a rich domain model with encapsulated business logic
type Node struct {
	id        valueobjects.NodeID
	nodeType  string
	data      NodeData
	position  valueobjects.Position
	createdAt time.Time
	updatedAt time.Time
}

// NewNode creates a new node with validation
func NewNode(nodeType string, data NodeData, position valueobjects.Position) (*Node, error) {
	if nodeType == "" {
		return nil, pkgerrors.NewValidationError("node type cannot be empty")
	}
	if data.Title == "" {
		return nil, pkgerrors.NewValidationError("node title cannot be empty")
	}

	now := time.Now()
	return &Node{
		id:        valueobjects.NewNodeID(),
		nodeType:  nodeType,
		data:      data,
		position:  position,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructNode recreates a node from a persisted snapshot
func ReconstructNode(id valueobjects.NodeID, nodeType string, data NodeData, position valueobjects.Position) (*Node, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("node ID is required for reconstruction")
	}
	if nodeType == "" {
		return nil, pkgerrors.NewValidationError("node type is required for reconstruction")
	}

	now := time.Now()
	return &Node{
		id:        id,
		nodeType:  nodeType,
		data:      data,
		position:  position,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ID returns the node's unique identifier
func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

// Type returns the node's type tag
func (n *Node) Type() string {
	return n.nodeType
}

// Data returns the node's presentational payload
func (n *Node) Data() NodeData {
	return n.data
}

// Position returns the node's canonical canvas position
func (n *Node) Position() valueobjects.Position {
	return n.position
}

// UpdatedAt returns when the node was last modified
func (n *Node) UpdatedAt() time.Time {
	return n.updatedAt
}

// MoveTo sets the node's canonical position. This happens once per
// drag, at drag-end; intermediate frames live in the aggregate's
// live-position map.
func (n *Node) MoveTo(position valueobjects.Position) {
	n.position = position
	n.updatedAt = time.Now()
}

// UpdateData replaces the node's presentational payload
func (n *Node) UpdateData(data NodeData) error {
	if data.Title == "" {
		return pkgerrors.NewValidationError("node title cannot be empty")
	}
	n.data = data
	n.updatedAt = time.Now()
	return nil
}
