package geometry

import (
	"funnel-backend/domain/core/valueobjects"
)

// Zoom bounds are part of the coordinate contract: every operation that
// produces a zoom level clamps into this range.
const (
	MinZoom = 0.1
	MaxZoom = 3.0
)

// Viewport holds the pan offset and zoom level mapping screen space to
// canvas space. Screen coordinates are relative to the canvas
// container's rendered origin. Session-scoped; not canonical state.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// DefaultViewport returns the identity viewport
func DefaultViewport() Viewport {
	return Viewport{X: 0, Y: 0, Zoom: 1}
}

// ToCanvas converts a screen-space point to canvas space
func (v Viewport) ToCanvas(screenX, screenY float64) valueobjects.Position {
	return valueobjects.Position{
		X: (screenX - v.X) / v.Zoom,
		Y: (screenY - v.Y) / v.Zoom,
	}
}

// ToScreen converts a canvas-space position to screen space
func (v Viewport) ToScreen(pos valueobjects.Position) (screenX, screenY float64) {
	return pos.X*v.Zoom + v.X, pos.Y*v.Zoom + v.Y
}

// ZoomAt applies a zoom factor anchored at a screen point: the canvas
// point under the cursor stays fixed while the scale changes.
func (v Viewport) ZoomAt(screenX, screenY, factor float64) Viewport {
	newZoom := ClampZoom(v.Zoom * factor)
	scale := newZoom / v.Zoom
	return Viewport{
		X:    screenX - (screenX-v.X)*scale,
		Y:    screenY - (screenY-v.Y)*scale,
		Zoom: newZoom,
	}
}

// PannedTo returns the viewport translated to an absolute offset.
// Panning recomputes from the gesture origin rather than accumulating
// per-frame deltas, so there is no drift. No positional bound applies.
func (v Viewport) PannedTo(x, y float64) Viewport {
	return Viewport{X: x, Y: y, Zoom: v.Zoom}
}

// FitToContent centers the viewport on the bounding box of the given
// node positions at zoom 1. With no nodes it resets to the identity
// viewport.
func (v Viewport) FitToContent(positions []valueobjects.Position, boxWidth, boxHeight, containerWidth, containerHeight float64) Viewport {
	if len(positions) == 0 {
		return DefaultViewport()
	}

	minX, minY := positions[0].X, positions[0].Y
	maxX, maxY := positions[0].X+boxWidth, positions[0].Y+boxHeight
	for _, p := range positions[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X+boxWidth > maxX {
			maxX = p.X + boxWidth
		}
		if p.Y+boxHeight > maxY {
			maxY = p.Y + boxHeight
		}
	}

	centerX := (minX + maxX) / 2
	centerY := (minY + maxY) / 2

	return Viewport{
		X:    containerWidth/2 - centerX,
		Y:    containerHeight/2 - centerY,
		Zoom: 1,
	}
}

// ClampZoom bounds a zoom level into [MinZoom, MaxZoom]
func ClampZoom(zoom float64) float64 {
	if zoom < MinZoom {
		return MinZoom
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}
