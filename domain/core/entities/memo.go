package entities

import (
	"time"

	"funnel-backend/domain/core/valueobjects"
	pkgerrors "funnel-backend/pkg/errors"
)

// Memo is a free-form annotation placed on the canvas. A memo created
// locally carries a temporary id until the persistence layer assigns a
// durable one; the Sync Engine swaps identities in place.
type Memo struct {
	id        valueobjects.MemoID
	content   string
	position  valueobjects.Position
	size      *valueobjects.Size
	createdAt time.Time
	updatedAt time.Time
}

// NewMemo creates a memo under a temporary, client-generated id
func NewMemo(content string, position valueobjects.Position) *Memo {
	now := time.Now()
	return &Memo{
		id:        valueobjects.NewTemporaryMemoID(),
		content:   content,
		position:  position,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstructMemo recreates a memo from a persisted snapshot
func ReconstructMemo(id valueobjects.MemoID, content string, position valueobjects.Position, size *valueobjects.Size) (*Memo, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("memo ID is required for reconstruction")
	}

	now := time.Now()
	return &Memo{
		id:        id,
		content:   content,
		position:  position,
		size:      size,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ID returns the memo's identifier, temporary or durable
func (m *Memo) ID() valueobjects.MemoID {
	return m.id
}

// IsTemporary reports whether the memo awaits a server-assigned id
func (m *Memo) IsTemporary() bool {
	return m.id.IsTemporary()
}

// Content returns the memo text
func (m *Memo) Content() string {
	return m.content
}

// Position returns the memo's canvas position
func (m *Memo) Position() valueobjects.Position {
	return m.position
}

// Size returns the memo's dimensions, nil when never resized
func (m *Memo) Size() *valueobjects.Size {
	return m.size
}

// UpdatedAt returns when the memo was last modified
func (m *Memo) UpdatedAt() time.Time {
	return m.updatedAt
}

// SetContent replaces the memo text
func (m *Memo) SetContent(content string) {
	m.content = content
	m.updatedAt = time.Now()
}

// MoveTo sets the memo's canvas position
func (m *Memo) MoveTo(position valueobjects.Position) {
	m.position = position
	m.updatedAt = time.Now()
}

// Resize sets the memo's dimensions
func (m *Memo) Resize(size valueobjects.Size) {
	m.size = &size
	m.updatedAt = time.Now()
}

// AssignServerID replaces a temporary id with the durable identity the
// persistence layer assigned. It is a no-op error to reassign a memo
// that already has a durable id.
func (m *Memo) AssignServerID(serverID valueobjects.MemoID) error {
	if !m.id.IsTemporary() {
		return pkgerrors.NewConflictError("memo already has a server-assigned id")
	}
	if serverID == "" || serverID.IsTemporary() {
		return pkgerrors.NewValidationError("server-assigned memo id must be durable")
	}
	m.id = serverID
	m.updatedAt = time.Now()
	return nil
}
