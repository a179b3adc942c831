package session

import (
	"funnel-backend/domain/core/valueobjects"
)

// PointerEventType identifies the kind of pointer gesture reported by
// a client.
type PointerEventType string

const (
	PointerDown        PointerEventType = "pointerdown"
	PointerMove        PointerEventType = "pointermove"
	PointerUp          PointerEventType = "pointerup"
	PointerWheel       PointerEventType = "wheel"
	PointerDoubleClick PointerEventType = "dblclick"
)

// TargetKind says what the pointer was over when the event fired. The
// client performs its own hit testing and reports the target; the
// controller trusts it for pointer-down and double-click, and for
// pointer-up while connecting (the drop target).
type TargetKind string

const (
	TargetCanvas TargetKind = "canvas"
	TargetNode   TargetKind = "node"
	TargetHandle TargetKind = "handle"
	TargetMemo   TargetKind = "memo"
)

// PointerEvent is one pointer gesture in screen coordinates. Target
// and related fields are only meaningful for the event types that
// carry them.
type PointerEvent struct {
	Type PointerEventType `json:"type" validate:"required,oneof=pointerdown pointermove pointerup wheel dblclick"`

	// Screen-space coordinates of the pointer
	ScreenX float64 `json:"screenX"`
	ScreenY float64 `json:"screenY"`

	// What the pointer was over, for down/up/dblclick
	Target TargetKind `json:"target,omitempty" validate:"omitempty,oneof=canvas node handle memo"`

	// Node or memo under the pointer, when Target names one
	TargetID string `json:"targetId,omitempty"`

	// Anchor side, when Target is a connection handle
	Anchor string `json:"anchor,omitempty" validate:"omitempty,oneof=left right top bottom"`

	// Wheel delta; negative zooms in, matching browser convention
	WheelDelta float64 `json:"wheelDelta,omitempty"`

	// Modifier is set when a platform modifier key (shift) was held
	Modifier bool `json:"modifier,omitempty"`
}

// CanvasPoint converts the event's screen position into canvas space
// under the given viewport.
func (e PointerEvent) CanvasPoint(viewportX, viewportY, zoom float64) valueobjects.Position {
	return valueobjects.Position{
		X: (e.ScreenX - viewportX) / zoom,
		Y: (e.ScreenY - viewportY) / zoom,
	}
}
