package session

import (
	"funnel-backend/domain/core/aggregates"
	"funnel-backend/domain/core/entities"
	"funnel-backend/domain/core/valueobjects"
	"funnel-backend/domain/geometry"
	pkgerrors "funnel-backend/pkg/errors"

	"go.uber.org/zap"
)

// wheelZoomStep is the zoom factor applied per wheel notch. Scrolling
// up (negative delta) zooms in.
const wheelZoomStep = 1.1

// gestureMode is the controller's current exclusive gesture.
type gestureMode int

const (
	modeIdle gestureMode = iota
	modePanning
	modeDraggingNode
	modeConnecting
)

// GraphActions are the mutations the controller commits as gestures
// progress and complete. Implemented by the canvas service, which owns
// quota checks and save scheduling.
type GraphActions interface {
	// DragNode records a live position during a drag
	DragNode(nodeID valueobjects.NodeID, live valueobjects.Position) error
	// DropNode commits the final position at drag end
	DropNode(nodeID valueobjects.NodeID, final valueobjects.Position) error
	// ConnectNodes creates an edge between two nodes
	ConnectNodes(sourceID, targetID valueobjects.NodeID, sourceAnchor, targetAnchor valueobjects.Anchor) (*aggregates.Edge, error)
	// AddNodeAt creates a node at a canvas position
	AddNodeAt(position valueobjects.Position) (*entities.Node, error)
	// AddMemoAt creates a memo at a canvas position
	AddMemoAt(position valueobjects.Position) (*entities.Memo, error)
}

// Controller is the interaction state machine. It owns exactly one
// gesture at a time: panning the viewport, dragging a node, or drawing
// a connection from a handle. Pointer events that do not fit the
// current gesture are ignored rather than erroring, because clients
// replay raw input and stale events are routine.
//
// All methods require the session lock to be held by the caller.
type Controller struct {
	canvas  *aggregates.Canvas
	actions GraphActions
	logger  *zap.Logger

	mode gestureMode

	// Pan gesture: the screen point and viewport captured at
	// pointer-down. Each move recomputes the viewport from these
	// absolutes, so accumulated deltas cannot drift.
	panStartScreenX float64
	panStartScreenY float64
	panStartView    geometry.Viewport

	// Drag gesture: the grabbed node and the offset from the pointer
	// to the node origin, in canvas space
	dragNodeID   valueobjects.NodeID
	dragOffsetX  float64
	dragOffsetY  float64
	dragLastLive valueobjects.Position

	// Connect gesture
	connectSource valueobjects.NodeID
	connectAnchor valueobjects.Anchor
}

// NewController creates the interaction state machine for one canvas
func NewController(canvas *aggregates.Canvas, actions GraphActions, logger *zap.Logger) *Controller {
	return &Controller{
		canvas:  canvas,
		actions: actions,
		logger:  logger,
	}
}

// HandlePointer routes one pointer event through the state machine
func (c *Controller) HandlePointer(ev PointerEvent) error {
	switch ev.Type {
	case PointerDown:
		return c.handleDown(ev)
	case PointerMove:
		return c.handleMove(ev)
	case PointerUp:
		return c.handleUp(ev)
	case PointerWheel:
		return c.handleWheel(ev)
	case PointerDoubleClick:
		return c.handleDoubleClick(ev)
	default:
		return pkgerrors.NewValidationError("unknown pointer event type: " + string(ev.Type))
	}
}

// Cancel abandons any active gesture without committing it. Dragged
// nodes snap back to their last committed position and a pending
// connection simply disappears.
func (c *Controller) Cancel() {
	c.mode = modeIdle
	c.dragNodeID = valueobjects.NodeID{}
	c.connectSource = valueobjects.NodeID{}
	c.connectAnchor = ""
	c.canvas.SetInteraction(aggregates.InteractionState{})
}

// Mode reports the current gesture as a string, for status endpoints
func (c *Controller) Mode() string {
	switch c.mode {
	case modePanning:
		return "panning"
	case modeDraggingNode:
		return "dragging"
	case modeConnecting:
		return "connecting"
	default:
		return "idle"
	}
}

func (c *Controller) handleDown(ev PointerEvent) error {
	if c.mode != modeIdle {
		// A down event mid-gesture means the up was lost; reset
		c.Cancel()
	}

	switch ev.Target {
	case TargetCanvas, "":
		c.mode = modePanning
		c.panStartScreenX = ev.ScreenX
		c.panStartScreenY = ev.ScreenY
		c.panStartView = c.canvas.Viewport()
		c.canvas.SetInteraction(aggregates.InteractionState{IsPanning: true})
		return nil

	case TargetNode:
		nodeID, err := valueobjects.NewNodeIDFromString(ev.TargetID)
		if err != nil {
			return err
		}
		node, err := c.canvas.GetNode(nodeID)
		if err != nil {
			return err
		}
		point := c.canvasPoint(ev)
		c.mode = modeDraggingNode
		c.dragNodeID = nodeID
		c.dragOffsetX, c.dragOffsetY = node.Position().Delta(point)
		c.dragLastLive = node.Position()
		c.canvas.SetInteraction(aggregates.InteractionState{DraggedNodeID: nodeID})
		return nil

	case TargetHandle:
		nodeID, err := valueobjects.NewNodeIDFromString(ev.TargetID)
		if err != nil {
			return err
		}
		if !c.canvas.HasNode(nodeID) {
			return pkgerrors.NewNotFoundError("node not found: " + ev.TargetID)
		}
		anchor, err := valueobjects.ParseAnchor(ev.Anchor)
		if err != nil {
			return err
		}
		point := c.canvasPoint(ev)
		c.mode = modeConnecting
		c.connectSource = nodeID
		c.connectAnchor = anchor
		c.canvas.SetInteraction(aggregates.InteractionState{
			IsConnecting:          true,
			ConnectionStart:       nodeID,
			ConnectionStartAnchor: anchor,
			TemporaryConnection:   &point,
		})
		return nil

	case TargetMemo:
		c.canvas.SelectMemo(valueobjects.MemoID(ev.TargetID))
		return nil
	}

	return nil
}

func (c *Controller) handleMove(ev PointerEvent) error {
	switch c.mode {
	case modePanning:
		dx := ev.ScreenX - c.panStartScreenX
		dy := ev.ScreenY - c.panStartScreenY
		c.canvas.SetViewport(c.panStartView.PannedTo(c.panStartView.X+dx, c.panStartView.Y+dy))
		return nil

	case modeDraggingNode:
		point := c.canvasPoint(ev)
		live := point.Translate(c.dragOffsetX, c.dragOffsetY)
		c.dragLastLive = live
		return c.actions.DragNode(c.dragNodeID, live)

	case modeConnecting:
		point := c.canvasPoint(ev)
		state := c.canvas.Interaction()
		state.TemporaryConnection = &point
		c.canvas.SetInteraction(state)
		return nil
	}

	return nil
}

func (c *Controller) handleUp(ev PointerEvent) error {
	defer c.Cancel()

	switch c.mode {
	case modeDraggingNode:
		return c.actions.DropNode(c.dragNodeID, c.dragLastLive)

	case modeConnecting:
		if ev.Target != TargetNode && ev.Target != TargetHandle {
			// Released over empty canvas: the pending connection is
			// discarded without error
			return nil
		}
		targetID, err := valueobjects.NewNodeIDFromString(ev.TargetID)
		if err != nil {
			return err
		}
		if targetID.Equals(c.connectSource) {
			// Releasing back on the source node cancels the gesture,
			// same as releasing over empty canvas
			return nil
		}
		sourceNode, err := c.canvas.GetNode(c.connectSource)
		if err != nil {
			return err
		}
		targetNode, err := c.canvas.GetNode(targetID)
		if err != nil {
			return err
		}
		targetAnchor := valueobjects.InferTargetAnchor(c.connectAnchor, sourceNode.Position(), targetNode.Position())
		_, err = c.actions.ConnectNodes(c.connectSource, targetID, c.connectAnchor, targetAnchor)
		return err
	}

	return nil
}

// handleWheel zooms around the cursor in every state. Zooming during a
// pan or drag is allowed; the active gesture keeps its screen-space
// anchors and continues.
func (c *Controller) handleWheel(ev PointerEvent) error {
	factor := wheelZoomStep
	if ev.WheelDelta > 0 {
		factor = 1 / wheelZoomStep
	}
	c.canvas.SetViewport(c.canvas.Viewport().ZoomAt(ev.ScreenX, ev.ScreenY, factor))
	if c.mode == modePanning {
		// Re-anchor the pan so the zoom does not teleport the viewport
		c.panStartScreenX = ev.ScreenX
		c.panStartScreenY = ev.ScreenY
		c.panStartView = c.canvas.Viewport()
	}
	return nil
}

func (c *Controller) handleDoubleClick(ev PointerEvent) error {
	if c.mode != modeIdle {
		return nil
	}
	point := c.canvasPoint(ev)
	if ev.Modifier {
		_, err := c.actions.AddMemoAt(point)
		return err
	}
	_, err := c.actions.AddNodeAt(point)
	return err
}

func (c *Controller) canvasPoint(ev PointerEvent) valueobjects.Position {
	return c.canvas.Viewport().ToCanvas(ev.ScreenX, ev.ScreenY)
}
