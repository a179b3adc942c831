package events

import (
	"time"

	"funnel-backend/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Node events

// NodeAdded is raised when a node is placed on the canvas
type NodeAdded struct {
	BaseEvent
	NodeID   valueobjects.NodeID   `json:"node_id"`
	NodeType string                `json:"node_type"`
	Position valueobjects.Position `json:"position"`
}

// NewNodeAdded creates a NodeAdded event
func NewNodeAdded(canvasID string, nodeID valueobjects.NodeID, nodeType string, position valueobjects.Position, timestamp time.Time) NodeAdded {
	return NodeAdded{
		BaseEvent: BaseEvent{
			AggregateID: canvasID,
			EventType:   "canvas.node_added",
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:   nodeID,
		NodeType: nodeType,
		Position: position,
	}
}

// NodeMoved is raised when a node drag is committed
type NodeMoved struct {
	BaseEvent
	NodeID      valueobjects.NodeID   `json:"node_id"`
	OldPosition valueobjects.Position `json:"old_position"`
	NewPosition valueobjects.Position `json:"new_position"`
}

// NewNodeMoved creates a NodeMoved event
func NewNodeMoved(canvasID string, nodeID valueobjects.NodeID, oldPos, newPos valueobjects.Position, timestamp time.Time) NodeMoved {
	return NodeMoved{
		BaseEvent: BaseEvent{
			AggregateID: canvasID,
			EventType:   "canvas.node_moved",
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:      nodeID,
		OldPosition: oldPos,
		NewPosition: newPos,
	}
}

// NodeRemoved is raised when a node is deleted, after its incident
// edges have been cascaded away
type NodeRemoved struct {
	BaseEvent
	NodeID         valueobjects.NodeID `json:"node_id"`
	CascadedEdges  int                 `json:"cascaded_edges"`
}

// NewNodeRemoved creates a NodeRemoved event
func NewNodeRemoved(canvasID string, nodeID valueobjects.NodeID, cascadedEdges int, timestamp time.Time) NodeRemoved {
	return NodeRemoved{
		BaseEvent: BaseEvent{
			AggregateID: canvasID,
			EventType:   "canvas.node_removed",
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:        nodeID,
		CascadedEdges: cascadedEdges,
	}
}

// Edge events

// EdgeCreated is raised when a connection gesture completes on a valid target
type EdgeCreated struct {
	BaseEvent
	EdgeID   valueobjects.EdgeID `json:"edge_id"`
	SourceID valueobjects.NodeID `json:"source_id"`
	TargetID valueobjects.NodeID `json:"target_id"`
}

// NewEdgeCreated creates an EdgeCreated event
func NewEdgeCreated(canvasID string, edgeID valueobjects.EdgeID, sourceID, targetID valueobjects.NodeID, timestamp time.Time) EdgeCreated {
	return EdgeCreated{
		BaseEvent: BaseEvent{
			AggregateID: canvasID,
			EventType:   "canvas.edge_created",
			Timestamp:   timestamp,
			Version:     1,
		},
		EdgeID:   edgeID,
		SourceID: sourceID,
		TargetID: targetID,
	}
}

// EdgeRemoved is raised when an edge is deleted explicitly or by cascade
type EdgeRemoved struct {
	BaseEvent
	EdgeID valueobjects.EdgeID `json:"edge_id"`
}

// NewEdgeRemoved creates an EdgeRemoved event
func NewEdgeRemoved(canvasID string, edgeID valueobjects.EdgeID, timestamp time.Time) EdgeRemoved {
	return EdgeRemoved{
		BaseEvent: BaseEvent{
			AggregateID: canvasID,
			EventType:   "canvas.edge_removed",
			Timestamp:   timestamp,
			Version:     1,
		},
		EdgeID: edgeID,
	}
}

// Memo events

// MemoCreated is raised when a memo is placed, possibly under a temporary id
type MemoCreated struct {
	BaseEvent
	MemoID    valueobjects.MemoID   `json:"memo_id"`
	Position  valueobjects.Position `json:"position"`
	Temporary bool                  `json:"temporary"`
}

// NewMemoCreated creates a MemoCreated event
func NewMemoCreated(canvasID string, memoID valueobjects.MemoID, position valueobjects.Position, timestamp time.Time) MemoCreated {
	return MemoCreated{
		BaseEvent: BaseEvent{
			AggregateID: canvasID,
			EventType:   "canvas.memo_created",
			Timestamp:   timestamp,
			Version:     1,
		},
		MemoID:    memoID,
		Position:  position,
		Temporary: memoID.IsTemporary(),
	}
}

// MemoDeleted is raised when a memo is removed from the canvas
type MemoDeleted struct {
	BaseEvent
	MemoID valueobjects.MemoID `json:"memo_id"`
}

// NewMemoDeleted creates a MemoDeleted event
func NewMemoDeleted(canvasID string, memoID valueobjects.MemoID, timestamp time.Time) MemoDeleted {
	return MemoDeleted{
		BaseEvent: BaseEvent{
			AggregateID: canvasID,
			EventType:   "canvas.memo_deleted",
			Timestamp:   timestamp,
			Version:     1,
		},
		MemoID: memoID,
	}
}

// MemoReconciled is raised when a temporary memo id is replaced by the
// server-assigned identity
type MemoReconciled struct {
	BaseEvent
	TempID   valueobjects.MemoID `json:"temp_id"`
	ServerID valueobjects.MemoID `json:"server_id"`
}

// NewMemoReconciled creates a MemoReconciled event
func NewMemoReconciled(canvasID string, tempID, serverID valueobjects.MemoID, timestamp time.Time) MemoReconciled {
	return MemoReconciled{
		BaseEvent: BaseEvent{
			AggregateID: canvasID,
			EventType:   "canvas.memo_reconciled",
			Timestamp:   timestamp,
			Version:     1,
		},
		TempID:   tempID,
		ServerID: serverID,
	}
}
