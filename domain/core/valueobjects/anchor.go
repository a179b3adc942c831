package valueobjects

import (
	pkgerrors "funnel-backend/pkg/errors"
)

// Anchor denotes which side of a node box an edge attaches to
type Anchor string

const (
	AnchorLeft   Anchor = "left"
	AnchorRight  Anchor = "right"
	AnchorTop    Anchor = "top"
	AnchorBottom Anchor = "bottom"
)

// ParseAnchor validates and converts a string into an Anchor
func ParseAnchor(s string) (Anchor, error) {
	switch Anchor(s) {
	case AnchorLeft, AnchorRight, AnchorTop, AnchorBottom:
		return Anchor(s), nil
	}
	return "", pkgerrors.NewValidationError("anchor must be one of: left, right, top, bottom")
}

// IsVertical reports whether the anchor sits on the top or bottom side
func (a Anchor) IsVertical() bool {
	return a == AnchorTop || a == AnchorBottom
}

// IsZero reports whether the anchor is unset
func (a Anchor) IsZero() bool {
	return a == ""
}

// String returns the string representation
func (a Anchor) String() string {
	return string(a)
}

// InferTargetAnchor derives the target-side anchor for a completed
// connection gesture. When the start anchor is vertical, the target
// attaches on top if it sits below or level with the source, otherwise
// on the bottom. Horizontal starts always attach on the target's left.
// The asymmetry mirrors the product's current connection behavior.
func InferTargetAnchor(sourceAnchor Anchor, sourcePos, targetPos Position) Anchor {
	if sourceAnchor.IsVertical() {
		if targetPos.Y >= sourcePos.Y {
			return AnchorTop
		}
		return AnchorBottom
	}
	return AnchorLeft
}
