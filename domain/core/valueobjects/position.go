package valueobjects

import (
	"math"

	pkgerrors "funnel-backend/pkg/errors"
)

// Position is a value object representing canvas-space coordinates.
// Canvas space is independent of the viewport's pan and zoom.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a position with validation
func NewPosition(x, y float64) (Position, error) {
	if !isFinite(x) || !isFinite(y) {
		return Position{}, pkgerrors.NewValidationError("invalid coordinates: must be finite numbers")
	}
	return Position{X: x, Y: y}, nil
}

// Translate returns the position moved by the given offsets
func (p Position) Translate(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Delta returns the component-wise difference from other to p
func (p Position) Delta(other Position) (dx, dy float64) {
	return p.X - other.X, p.Y - other.Y
}

// DistanceTo calculates the Euclidean distance to another position
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Equals checks if two positions are equal within floating-point tolerance
func (p Position) Equals(other Position) bool {
	const epsilon = 1e-9
	return math.Abs(p.X-other.X) < epsilon && math.Abs(p.Y-other.Y) < epsilon
}

// Size is a value object representing element dimensions in canvas units
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize creates a size with validation
func NewSize(width, height float64) (Size, error) {
	if !isFinite(width) || !isFinite(height) || width <= 0 || height <= 0 {
		return Size{}, pkgerrors.NewValidationError("invalid size: dimensions must be positive finite numbers")
	}
	return Size{Width: width, Height: height}, nil
}

// IsZero reports whether the size is unset
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// isFinite checks if a coordinate is a valid finite number
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
