// Package ports defines the interfaces this application expects from
// the outside world. The persistence API is opaque: implementations
// speak JSON over HTTP, tests use the in-memory store.
package ports

import (
	"context"

	"funnel-backend/domain/core/valueobjects"
)

// SnapshotVersion is the current wire-format version of the canvas
// snapshot. Implementations reject snapshots with a newer version.
const SnapshotVersion = 1

// Snapshot is the versioned wire shape of a whole canvas. It is read
// once on session open and written, whole, by the Sync Engine. The
// payload is always re-derived from current store state at send time,
// never captured early, so a late-resolving save cannot carry stale
// positions.
type Snapshot struct {
	Version int          `json:"version" validate:"required,gte=1"`
	Nodes   []NodeRecord `json:"nodes" validate:"dive"`
	Edges   []EdgeRecord `json:"edges" validate:"dive"`
	Memos   []MemoRecord `json:"memos,omitempty" validate:"dive"`
}

// NodeRecord is the wire shape of a node
type NodeRecord struct {
	ID       string                `json:"id" validate:"required"`
	Type     string                `json:"type" validate:"required"`
	Data     NodeDataRecord        `json:"data"`
	Position valueobjects.Position `json:"position"`
}

// NodeDataRecord is the wire shape of a node's presentational payload
type NodeDataRecord struct {
	Title    string             `json:"title" validate:"required"`
	Subtitle string             `json:"subtitle,omitempty"`
	Icon     string             `json:"icon,omitempty"`
	Color    string             `json:"color,omitempty"`
	Size     *valueobjects.Size `json:"size,omitempty"`
}

// EdgeRecord is the wire shape of an edge
type EdgeRecord struct {
	ID           string `json:"id" validate:"required"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceAnchor string `json:"sourceAnchor,omitempty" validate:"omitempty,oneof=left right top bottom"`
	TargetAnchor string `json:"targetAnchor,omitempty" validate:"omitempty,oneof=left right top bottom"`
}

// MemoRecord is the wire shape of a memo
type MemoRecord struct {
	ID       string                `json:"id" validate:"required"`
	Content  string                `json:"content"`
	Position valueobjects.Position `json:"position"`
	Size     *valueobjects.Size    `json:"size,omitempty"`
}

// MemoCreateRequest is the payload for creating a memo server-side
type MemoCreateRequest struct {
	Content  string                `json:"content"`
	Position valueobjects.Position `json:"position"`
}

// MemoPatch is a partial memo update; nil fields are left untouched
type MemoPatch struct {
	Content  *string                `json:"content,omitempty"`
	Position *valueobjects.Position `json:"position,omitempty"`
	Size     *valueobjects.Size     `json:"size,omitempty"`
}

// SnapshotStore reads and writes whole canvas snapshots
type SnapshotStore interface {
	// Load reads the canvas snapshot, or a NotFound error
	Load(ctx context.Context, canvasID string) (*Snapshot, error)

	// Save writes the canvas snapshot
	Save(ctx context.Context, canvasID string, snapshot *Snapshot) error
}

// MemoStore performs memo CRUD against the persistence API. Memos have
// their own lifecycle because they are created optimistically under
// temporary ids and reconciled once the server assigns durable ones.
type MemoStore interface {
	// Create persists a memo and returns it with the server-assigned id
	Create(ctx context.Context, canvasID string, req MemoCreateRequest) (*MemoRecord, error)

	// Update applies a partial change to a persisted memo
	Update(ctx context.Context, canvasID, memoID string, patch MemoPatch) error

	// Delete removes a persisted memo. A missing memo is treated as
	// success: the desired end state already holds.
	Delete(ctx context.Context, canvasID, memoID string) error
}

// TodoCounter reports the number of externally-tracked items that count
// against the user's item quota
type TodoCounter interface {
	Count(ctx context.Context, userID string) (int, error)
}
