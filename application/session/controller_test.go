package session

import (
	"testing"

	"funnel-backend/domain/core/aggregates"
	"funnel-backend/domain/core/entities"
	"funnel-backend/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingActions captures controller-driven mutations and applies the
// ones the state machine reads back
type recordingActions struct {
	canvas *aggregates.Canvas

	drags    []valueobjects.Position
	drops    []valueobjects.Position
	edges    [][2]valueobjects.NodeID
	nodeAdds []valueobjects.Position
	memoAdds []valueobjects.Position
}

func (a *recordingActions) DragNode(nodeID valueobjects.NodeID, live valueobjects.Position) error {
	a.drags = append(a.drags, live)
	return a.canvas.SetLivePosition(nodeID, live)
}

func (a *recordingActions) DropNode(nodeID valueobjects.NodeID, final valueobjects.Position) error {
	a.drops = append(a.drops, final)
	return a.canvas.MoveNode(nodeID, final)
}

func (a *recordingActions) ConnectNodes(sourceID, targetID valueobjects.NodeID, sourceAnchor, targetAnchor valueobjects.Anchor) (*aggregates.Edge, error) {
	a.edges = append(a.edges, [2]valueobjects.NodeID{sourceID, targetID})
	return a.canvas.ConnectNodes(sourceID, targetID, sourceAnchor, targetAnchor)
}

func (a *recordingActions) AddNodeAt(position valueobjects.Position) (*entities.Node, error) {
	a.nodeAdds = append(a.nodeAdds, position)
	node, err := entities.NewNode("step", entities.NodeData{Title: "New Step"}, position)
	if err != nil {
		return nil, err
	}
	return node, a.canvas.AddNode(node)
}

func (a *recordingActions) AddMemoAt(position valueobjects.Position) (*entities.Memo, error) {
	a.memoAdds = append(a.memoAdds, position)
	memo := entities.NewMemo("", position)
	return memo, a.canvas.AddMemo(memo)
}

type controllerFixture struct {
	canvas     *aggregates.Canvas
	actions    *recordingActions
	controller *Controller
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	canvas, err := aggregates.NewCanvas("user-1", "Test")
	require.NoError(t, err)
	actions := &recordingActions{canvas: canvas}
	return &controllerFixture{
		canvas:     canvas,
		actions:    actions,
		controller: NewController(canvas, actions, zap.NewNop()),
	}
}

func (f *controllerFixture) addNode(t *testing.T, x, y float64) *entities.Node {
	t.Helper()
	node, err := entities.NewNode("step", entities.NodeData{Title: "Step"}, valueobjects.Position{X: x, Y: y})
	require.NoError(t, err)
	require.NoError(t, f.canvas.AddNode(node))
	return node
}

func TestController_PanGestureHasNoDrift(t *testing.T) {
	f := newControllerFixture(t)

	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerDown, Target: TargetCanvas, ScreenX: 100, ScreenY: 100}))
	assert.Equal(t, "panning", f.controller.Mode())
	assert.True(t, f.canvas.Interaction().IsPanning)

	// Replaying the same move twice must land on the same offset
	move := PointerEvent{Type: PointerMove, ScreenX: 160, ScreenY: 140}
	require.NoError(t, f.controller.HandlePointer(move))
	require.NoError(t, f.controller.HandlePointer(move))

	v := f.canvas.Viewport()
	assert.InDelta(t, 60, v.X, 1e-9)
	assert.InDelta(t, 40, v.Y, 1e-9)

	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerUp, ScreenX: 160, ScreenY: 140}))
	assert.Equal(t, "idle", f.controller.Mode())
	assert.False(t, f.canvas.Interaction().IsPanning)
}

func TestController_DragKeepsGrabOffset(t *testing.T) {
	f := newControllerFixture(t)
	node := f.addNode(t, 100, 100)

	// Grab 30,20 inside the node box
	require.NoError(t, f.controller.HandlePointer(PointerEvent{
		Type: PointerDown, Target: TargetNode, TargetID: node.ID().String(),
		ScreenX: 130, ScreenY: 120,
	}))
	assert.Equal(t, "dragging", f.controller.Mode())

	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerMove, ScreenX: 230, ScreenY: 170}))

	live, err := f.canvas.LivePosition(node.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobjects.Position{X: 200, Y: 150}, live)
	// The canonical position has not moved yet
	assert.Equal(t, valueobjects.Position{X: 100, Y: 100}, node.Position())

	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerUp, ScreenX: 230, ScreenY: 170}))
	assert.Equal(t, valueobjects.Position{X: 200, Y: 150}, node.Position())
	require.Len(t, f.actions.drops, 1)
}

func TestController_CancelSnapsDragBack(t *testing.T) {
	f := newControllerFixture(t)
	node := f.addNode(t, 100, 100)

	require.NoError(t, f.controller.HandlePointer(PointerEvent{
		Type: PointerDown, Target: TargetNode, TargetID: node.ID().String(),
		ScreenX: 100, ScreenY: 100,
	}))
	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerMove, ScreenX: 500, ScreenY: 500}))

	f.controller.Cancel()

	assert.Equal(t, "idle", f.controller.Mode())
	assert.Equal(t, valueobjects.Position{X: 100, Y: 100}, node.Position())
	assert.Empty(t, f.actions.drops)
}

func TestController_ConnectGestureCreatesEdge(t *testing.T) {
	f := newControllerFixture(t)
	source := f.addNode(t, 0, 0)
	target := f.addNode(t, 400, 0)

	require.NoError(t, f.controller.HandlePointer(PointerEvent{
		Type: PointerDown, Target: TargetHandle, TargetID: source.ID().String(),
		Anchor: "right", ScreenX: 160, ScreenY: 40,
	}))
	assert.Equal(t, "connecting", f.controller.Mode())
	state := f.canvas.Interaction()
	assert.True(t, state.IsConnecting)
	require.NotNil(t, state.TemporaryConnection)

	// The floating endpoint tracks the pointer
	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerMove, ScreenX: 300, ScreenY: 60}))
	state = f.canvas.Interaction()
	require.NotNil(t, state.TemporaryConnection)
	assert.Equal(t, valueobjects.Position{X: 300, Y: 60}, *state.TemporaryConnection)

	require.NoError(t, f.controller.HandlePointer(PointerEvent{
		Type: PointerUp, Target: TargetNode, TargetID: target.ID().String(),
		ScreenX: 400, ScreenY: 40,
	}))

	require.Len(t, f.actions.edges, 1)
	assert.True(t, f.actions.edges[0][0].Equals(source.ID()))
	assert.True(t, f.actions.edges[0][1].Equals(target.ID()))
	assert.Equal(t, 1, f.canvas.EdgeCount())
	assert.Equal(t, "idle", f.controller.Mode())
	assert.False(t, f.canvas.Interaction().IsConnecting)
}

func TestController_ConnectReleasedOverCanvasDiscardsSilently(t *testing.T) {
	f := newControllerFixture(t)
	source := f.addNode(t, 0, 0)

	require.NoError(t, f.controller.HandlePointer(PointerEvent{
		Type: PointerDown, Target: TargetHandle, TargetID: source.ID().String(),
		Anchor: "right", ScreenX: 160, ScreenY: 40,
	}))

	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerUp, Target: TargetCanvas, ScreenX: 500, ScreenY: 300}))

	assert.Empty(t, f.actions.edges)
	assert.Zero(t, f.canvas.EdgeCount())
	assert.Equal(t, "idle", f.controller.Mode())
}

func TestController_ConnectReleasedOnSourceCancelsSilently(t *testing.T) {
	f := newControllerFixture(t)
	source := f.addNode(t, 0, 0)

	require.NoError(t, f.controller.HandlePointer(PointerEvent{
		Type: PointerDown, Target: TargetHandle, TargetID: source.ID().String(),
		Anchor: "right", ScreenX: 160, ScreenY: 40,
	}))

	// Letting go on the node the gesture started from is not an error
	require.NoError(t, f.controller.HandlePointer(PointerEvent{
		Type: PointerUp, Target: TargetNode, TargetID: source.ID().String(),
		ScreenX: 160, ScreenY: 40,
	}))

	assert.Empty(t, f.actions.edges)
	assert.Zero(t, f.canvas.EdgeCount())
	assert.Equal(t, "idle", f.controller.Mode())
	assert.False(t, f.canvas.Interaction().IsConnecting)
}

func TestController_WheelZoomsDuringPan(t *testing.T) {
	f := newControllerFixture(t)

	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerDown, Target: TargetCanvas, ScreenX: 100, ScreenY: 100}))
	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerWheel, ScreenX: 100, ScreenY: 100, WheelDelta: -1}))

	// Zoom applied, pan still active
	assert.InDelta(t, 1.1, f.canvas.Viewport().Zoom, 1e-9)
	assert.Equal(t, "panning", f.controller.Mode())

	// The pan continues from the re-anchored origin without jumping:
	// the zoom moved the viewport to (-10,-10), the 10px move adds to it
	zoomedView := f.canvas.Viewport()
	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerMove, ScreenX: 110, ScreenY: 100}))
	assert.InDelta(t, zoomedView.X+10, f.canvas.Viewport().X, 1e-9)
	assert.InDelta(t, zoomedView.Y, f.canvas.Viewport().Y, 1e-9)
}

func TestController_WheelDirectionMatchesBrowserConvention(t *testing.T) {
	f := newControllerFixture(t)

	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerWheel, WheelDelta: 1}))
	assert.InDelta(t, 1/1.1, f.canvas.Viewport().Zoom, 1e-9)
}

func TestController_DoubleClickAddsNodeAtCanvasPoint(t *testing.T) {
	f := newControllerFixture(t)
	f.canvas.SetViewport(f.canvas.Viewport().PannedTo(50, 50))

	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerDoubleClick, ScreenX: 250, ScreenY: 150}))

	require.Len(t, f.actions.nodeAdds, 1)
	assert.Equal(t, valueobjects.Position{X: 200, Y: 100}, f.actions.nodeAdds[0])
}

func TestController_ModifiedDoubleClickAddsMemo(t *testing.T) {
	f := newControllerFixture(t)

	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerDoubleClick, Modifier: true, ScreenX: 40, ScreenY: 60}))

	assert.Empty(t, f.actions.nodeAdds)
	require.Len(t, f.actions.memoAdds, 1)
	assert.Equal(t, valueobjects.Position{X: 40, Y: 60}, f.actions.memoAdds[0])
}

func TestController_DownOnMemoSelectsIt(t *testing.T) {
	f := newControllerFixture(t)
	memo := entities.NewMemo("note", valueobjects.Position{X: 10, Y: 10})
	require.NoError(t, f.canvas.AddMemo(memo))

	require.NoError(t, f.controller.HandlePointer(PointerEvent{
		Type: PointerDown, Target: TargetMemo, TargetID: memo.ID().String(),
	}))

	assert.Equal(t, memo.ID(), f.canvas.SelectedMemo())
	assert.Equal(t, "idle", f.controller.Mode())
}

func TestController_DownMidGestureResetsFirst(t *testing.T) {
	f := newControllerFixture(t)
	node := f.addNode(t, 100, 100)

	require.NoError(t, f.controller.HandlePointer(PointerEvent{
		Type: PointerDown, Target: TargetNode, TargetID: node.ID().String(),
		ScreenX: 100, ScreenY: 100,
	}))

	// The up was lost; a fresh down on the canvas starts a pan
	require.NoError(t, f.controller.HandlePointer(PointerEvent{Type: PointerDown, Target: TargetCanvas, ScreenX: 0, ScreenY: 0}))

	assert.Equal(t, "panning", f.controller.Mode())
	assert.True(t, f.canvas.Interaction().DraggedNodeID.IsZero())
}
