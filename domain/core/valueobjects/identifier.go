package valueobjects

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix marks a client-generated identifier that has not yet been
// confirmed by the persistence layer.
const TempIDPrefix = "temp-"

// NodeID is a value object representing a unique node identifier
// Value objects are immutable and have no identity beyond their value
type NodeID struct {
	value string
}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID{value: uuid.New().String()}
}

// NewNodeIDFromString creates a NodeID from an existing string.
// Snapshot ids are opaque to us, so any non-empty value is accepted.
func NewNodeIDFromString(id string) (NodeID, error) {
	if id == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	return NodeID{value: id}, nil
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return string(id.value)
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id NodeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("NodeID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// EdgeID is a value object representing a unique edge identifier
type EdgeID string

// NewEdgeID creates a new random EdgeID
func NewEdgeID() EdgeID {
	return EdgeID(uuid.New().String())
}

// String returns the string representation
func (id EdgeID) String() string {
	return string(id)
}

// MemoID is a value object representing a memo identifier. A memo may
// carry a temporary, client-generated id until the persistence layer
// assigns a durable one.
type MemoID string

// NewTemporaryMemoID creates a client-side provisional MemoID
func NewTemporaryMemoID() MemoID {
	return MemoID(TempIDPrefix + uuid.New().String())
}

// NewMemoIDFromString creates a MemoID from an existing string
func NewMemoIDFromString(id string) (MemoID, error) {
	if id == "" {
		return "", errors.New("memo ID cannot be empty")
	}
	return MemoID(id), nil
}

// IsTemporary reports whether the id is still awaiting server assignment
func (id MemoID) IsTemporary() bool {
	return strings.HasPrefix(string(id), TempIDPrefix)
}

// String returns the string representation
func (id MemoID) String() string {
	return string(id)
}
