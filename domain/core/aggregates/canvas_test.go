package aggregates

import (
	"testing"

	"funnel-backend/domain/core/entities"
	"funnel-backend/domain/core/valueobjects"
	pkgerrors "funnel-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCanvas(t *testing.T) *Canvas {
	t.Helper()
	canvas, err := NewCanvas("user-123", "Test Funnel")
	require.NoError(t, err)
	return canvas
}

func addTestNode(t *testing.T, canvas *Canvas, x, y float64) *entities.Node {
	t.Helper()
	node, err := entities.NewNode("step", entities.NodeData{Title: "Step"}, valueobjects.Position{X: x, Y: y})
	require.NoError(t, err)
	require.NoError(t, canvas.AddNode(node))
	return node
}

func TestCanvas_ConnectNodes_RejectsSelfLoop(t *testing.T) {
	canvas := newTestCanvas(t)
	node := addTestNode(t, canvas, 0, 0)

	_, err := canvas.ConnectNodes(node.ID(), node.ID(), valueobjects.AnchorRight, valueobjects.AnchorLeft)

	assert.True(t, pkgerrors.IsValidation(err))
	assert.Zero(t, canvas.EdgeCount())
}

func TestCanvas_ConnectNodes_RejectsDuplicateOrderedPair(t *testing.T) {
	canvas := newTestCanvas(t)
	a := addTestNode(t, canvas, 0, 0)
	b := addTestNode(t, canvas, 300, 0)

	_, err := canvas.ConnectNodes(a.ID(), b.ID(), valueobjects.AnchorRight, valueobjects.AnchorLeft)
	require.NoError(t, err)

	_, err = canvas.ConnectNodes(a.ID(), b.ID(), valueobjects.AnchorBottom, valueobjects.AnchorTop)
	assert.True(t, pkgerrors.IsConflict(err))

	// The reverse direction is a distinct ordered pair
	_, err = canvas.ConnectNodes(b.ID(), a.ID(), valueobjects.AnchorLeft, valueobjects.AnchorRight)
	assert.NoError(t, err)
	assert.Equal(t, 2, canvas.EdgeCount())
}

func TestCanvas_RemoveNode_CascadesEdges(t *testing.T) {
	canvas := newTestCanvas(t)
	a := addTestNode(t, canvas, 0, 0)
	b := addTestNode(t, canvas, 300, 0)
	c := addTestNode(t, canvas, 600, 0)

	_, err := canvas.ConnectNodes(a.ID(), b.ID(), valueobjects.AnchorRight, valueobjects.AnchorLeft)
	require.NoError(t, err)
	_, err = canvas.ConnectNodes(b.ID(), c.ID(), valueobjects.AnchorRight, valueobjects.AnchorLeft)
	require.NoError(t, err)
	_, err = canvas.ConnectNodes(a.ID(), c.ID(), valueobjects.AnchorRight, valueobjects.AnchorLeft)
	require.NoError(t, err)

	require.NoError(t, canvas.RemoveNode(b.ID()))

	// Both edges touching b are gone, the a->c edge survives
	assert.Equal(t, 1, canvas.EdgeCount())
	remaining := canvas.Edges()[0]
	assert.True(t, remaining.SourceID.Equals(a.ID()))
	assert.True(t, remaining.TargetID.Equals(c.ID()))
}

func TestCanvas_SiblingPosition_OrdersByCreation(t *testing.T) {
	canvas := newTestCanvas(t)
	src := addTestNode(t, canvas, 0, 0)
	t1 := addTestNode(t, canvas, 300, -100)
	t2 := addTestNode(t, canvas, 300, 100)
	other := addTestNode(t, canvas, 300, 300)

	e1, err := canvas.ConnectNodes(src.ID(), t1.ID(), valueobjects.AnchorRight, valueobjects.AnchorLeft)
	require.NoError(t, err)
	// An edge from a different source must not count as a sibling
	_, err = canvas.ConnectNodes(t1.ID(), other.ID(), valueobjects.AnchorRight, valueobjects.AnchorLeft)
	require.NoError(t, err)
	e2, err := canvas.ConnectNodes(src.ID(), t2.ID(), valueobjects.AnchorRight, valueobjects.AnchorLeft)
	require.NoError(t, err)

	index, count, err := canvas.SiblingPosition(e1.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Equal(t, 2, count)

	index, count, err = canvas.SiblingPosition(e2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Equal(t, 2, count)
}

func TestCanvas_RestoreEdge_RejectsMissingEndpoints(t *testing.T) {
	canvas := newTestCanvas(t)
	node := addTestNode(t, canvas, 0, 0)
	ghost := valueobjects.NewNodeID()

	err := canvas.RestoreEdge(&Edge{
		ID:       valueobjects.NewEdgeID(),
		SourceID: ghost,
		TargetID: node.ID(),
	})
	assert.True(t, pkgerrors.IsValidation(err))

	err = canvas.RestoreEdge(&Edge{
		ID:       valueobjects.NewEdgeID(),
		SourceID: node.ID(),
		TargetID: ghost,
	})
	assert.True(t, pkgerrors.IsValidation(err))

	// The canvas stays consistent with its own invariant
	assert.Zero(t, canvas.EdgeCount())
	assert.NoError(t, canvas.Validate())
}

func TestCanvas_LivePosition_FallsBackToCommitted(t *testing.T) {
	canvas := newTestCanvas(t)
	node := addTestNode(t, canvas, 10, 20)

	pos, err := canvas.LivePosition(node.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobjects.Position{X: 10, Y: 20}, pos)

	require.NoError(t, canvas.SetLivePosition(node.ID(), valueobjects.Position{X: 99, Y: 88}))
	pos, err = canvas.LivePosition(node.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobjects.Position{X: 99, Y: 88}, pos)

	// Committing the move clears the live overlay
	require.NoError(t, canvas.MoveNode(node.ID(), valueobjects.Position{X: 50, Y: 60}))
	pos, err = canvas.LivePosition(node.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobjects.Position{X: 50, Y: 60}, pos)
}

func TestCanvas_ReplaceMemoID_PreservesOrderAndSelection(t *testing.T) {
	canvas := newTestCanvas(t)
	first := entities.NewMemo("first", valueobjects.Position{X: 0, Y: 0})
	second := entities.NewMemo("second", valueobjects.Position{X: 100, Y: 0})
	require.NoError(t, canvas.AddMemo(first))
	require.NoError(t, canvas.AddMemo(second))
	canvas.SelectMemo(first.ID())

	serverID, err := valueobjects.NewMemoIDFromString("memo-server-1")
	require.NoError(t, err)
	require.NoError(t, canvas.ReplaceMemoID(first.ID(), serverID))

	memos := canvas.Memos()
	require.Len(t, memos, 2)
	assert.Equal(t, serverID, memos[0].ID())
	assert.False(t, memos[0].IsTemporary())
	assert.Equal(t, "first", memos[0].Content())
	assert.Equal(t, serverID, canvas.SelectedMemo())
}

func TestCanvas_RemoveMemo_ReturnsMemoAndClearsSelection(t *testing.T) {
	canvas := newTestCanvas(t)
	memo := entities.NewMemo("note", valueobjects.Position{X: 5, Y: 5})
	require.NoError(t, canvas.AddMemo(memo))
	canvas.SelectMemo(memo.ID())

	removed, err := canvas.RemoveMemo(memo.ID())
	require.NoError(t, err)
	assert.Equal(t, memo, removed)
	assert.Empty(t, canvas.SelectedMemo())
	assert.Zero(t, canvas.MemoCount())

	_, err = canvas.RemoveMemo(memo.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestCanvas_ItemCount_CountsNodesAndMemos(t *testing.T) {
	canvas := newTestCanvas(t)
	addTestNode(t, canvas, 0, 0)
	addTestNode(t, canvas, 100, 0)
	require.NoError(t, canvas.AddMemo(entities.NewMemo("note", valueobjects.Position{})))

	assert.Equal(t, 3, canvas.ItemCount())
}
