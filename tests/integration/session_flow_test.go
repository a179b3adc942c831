package integration

import (
	"context"
	stdsync "sync"
	"testing"
	"time"

	"funnel-backend/application/session"
	domainconfig "funnel-backend/domain/config"
	"funnel-backend/domain/core/aggregates"
	"funnel-backend/domain/core/valueobjects"
	"funnel-backend/domain/events"
	"funnel-backend/infrastructure/persistence/memory"
	pkgerrors "funnel-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T, store *memory.Store, limit func() int) *session.Registry {
	t.Helper()
	registry := session.NewRegistry(store, store, store, domainconfig.DevelopmentDomainConfig(), limit, nil, zap.NewNop())
	t.Cleanup(registry.CloseAll)
	return registry
}

// TestCanvasSessionLifecycle drives a session the way the HTTP surface
// does: pointer gestures build the graph, a manual save persists it,
// and reopening the canvas restores the same graph.
func TestCanvasSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	registry := newTestRegistry(t, store, nil)
	canvasID := aggregates.NewCanvasID()

	sess, err := registry.Open(ctx, canvasID, "user-123", 1200, 800)
	require.NoError(t, err)

	// Opening again returns the same session
	again, err := registry.Open(ctx, canvasID, "user-123", 1200, 800)
	require.NoError(t, err)
	assert.Same(t, sess, again)

	// Two double-clicks create two nodes
	require.NoError(t, sess.Do(func() error {
		return sess.Controller.HandlePointer(session.PointerEvent{Type: session.PointerDoubleClick, ScreenX: 100, ScreenY: 100})
	}))
	require.NoError(t, sess.Do(func() error {
		return sess.Controller.HandlePointer(session.PointerEvent{Type: session.PointerDoubleClick, ScreenX: 500, ScreenY: 100})
	}))

	var sourceID, targetID valueobjects.NodeID
	require.NoError(t, sess.Do(func() error {
		nodes := sess.Canvas.Nodes()
		require.Len(t, nodes, 2)
		sourceID = nodes[0].ID()
		targetID = nodes[1].ID()
		return nil
	}))

	// Handle-drag from the first node onto the second creates an edge
	require.NoError(t, sess.Do(func() error {
		return sess.Controller.HandlePointer(session.PointerEvent{
			Type: session.PointerDown, Target: session.TargetHandle,
			TargetID: sourceID.String(), Anchor: "right",
			ScreenX: 260, ScreenY: 140,
		})
	}))
	require.NoError(t, sess.Do(func() error {
		return sess.Controller.HandlePointer(session.PointerEvent{
			Type: session.PointerUp, Target: session.TargetNode,
			TargetID: targetID.String(),
			ScreenX: 500, ScreenY: 140,
		})
	}))

	require.NoError(t, sess.Do(func() error {
		assert.Equal(t, 1, sess.Canvas.EdgeCount())
		sess.Service.Save()
		return nil
	}))

	// The manual save is immediate
	require.Eventually(t, func() bool {
		snap, err := store.Load(ctx, canvasID.String())
		return err == nil && len(snap.Nodes) == 2 && len(snap.Edges) == 1
	}, 2*time.Second, 10*time.Millisecond)

	registry.Close(canvasID)
	_, open := registry.Get(canvasID)
	assert.False(t, open)

	// Reopening restores the persisted graph
	reopened, err := registry.Open(ctx, canvasID, "user-123", 1200, 800)
	require.NoError(t, err)
	require.NoError(t, reopened.Do(func() error {
		assert.Equal(t, 2, reopened.Canvas.NodeCount())
		assert.Equal(t, 1, reopened.Canvas.EdgeCount())
		_, err := reopened.Canvas.GetNode(sourceID)
		assert.NoError(t, err)
		return nil
	}))
}

// TestNodeDragPersistsFinalPosition verifies the drag gesture commits
// only at drag end and the committed position survives a reload.
func TestNodeDragPersistsFinalPosition(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	registry := newTestRegistry(t, store, nil)
	canvasID := aggregates.NewCanvasID()

	sess, err := registry.Open(ctx, canvasID, "user-123", 1200, 800)
	require.NoError(t, err)

	var nodeID valueobjects.NodeID
	var origin valueobjects.Position
	require.NoError(t, sess.Do(func() error {
		if err := sess.Controller.HandlePointer(session.PointerEvent{Type: session.PointerDoubleClick, ScreenX: 100, ScreenY: 100}); err != nil {
			return err
		}
		node := sess.Canvas.Nodes()[0]
		nodeID = node.ID()
		origin = node.Position()
		return nil
	}))

	// Grab the node at its origin and drag it 200px right
	require.NoError(t, sess.Do(func() error {
		return sess.Controller.HandlePointer(session.PointerEvent{
			Type: session.PointerDown, Target: session.TargetNode,
			TargetID: nodeID.String(), ScreenX: 100, ScreenY: 100,
		})
	}))
	require.NoError(t, sess.Do(func() error {
		return sess.Controller.HandlePointer(session.PointerEvent{Type: session.PointerMove, ScreenX: 300, ScreenY: 100})
	}))
	require.NoError(t, sess.Do(func() error {
		node, err := sess.Canvas.GetNode(nodeID)
		require.NoError(t, err)
		// Canonical position unchanged while the drag is live
		assert.Equal(t, origin, node.Position())
		return sess.Controller.HandlePointer(session.PointerEvent{Type: session.PointerUp, ScreenX: 300, ScreenY: 100})
	}))

	expected := origin.Translate(200, 0)
	require.NoError(t, sess.Do(func() error {
		node, err := sess.Canvas.GetNode(nodeID)
		require.NoError(t, err)
		assert.Equal(t, expected, node.Position())
		return nil
	}))

	// Drag end saves immediately
	require.Eventually(t, func() bool {
		snap, err := store.Load(ctx, canvasID.String())
		if err != nil || len(snap.Nodes) != 1 {
			return false
		}
		return snap.Nodes[0].Position == expected
	}, 2*time.Second, 10*time.Millisecond)
}

// TestMemoReconciliationAgainstStore exercises the optimistic memo
// lifecycle end to end against the real store.
func TestMemoReconciliationAgainstStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	registry := newTestRegistry(t, store, nil)
	canvasID := aggregates.NewCanvasID()

	sess, err := registry.Open(ctx, canvasID, "user-123", 1200, 800)
	require.NoError(t, err)

	var tempID valueobjects.MemoID
	require.NoError(t, sess.Do(func() error {
		memo, err := sess.Service.CreateMemo(ctx, "remember this", valueobjects.Position{X: 40, Y: 40})
		if err != nil {
			return err
		}
		tempID = memo.ID()
		assert.True(t, tempID.IsTemporary())
		return nil
	}))

	// The temp id is swapped for the server id once the create acks
	require.Eventually(t, func() bool {
		ok := false
		_ = sess.Do(func() error {
			memos := sess.Canvas.Memos()
			ok = len(memos) == 1 && !memos[0].IsTemporary()
			return nil
		})
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, store.MemoCount(canvasID.String()))

	var serverID valueobjects.MemoID
	require.NoError(t, sess.Do(func() error {
		serverID = sess.Canvas.Memos()[0].ID()
		return sess.Service.DeleteMemo(serverID)
	}))

	require.Eventually(t, func() bool {
		return store.MemoCount(canvasID.String()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

// TestQuotaRejectsCreationBeyondLimit covers the free-tier ceiling
// across nodes, memos and external todos.
func TestQuotaRejectsCreationBeyondLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SetTodoCount("user-123", 1)
	registry := newTestRegistry(t, store, func() int { return 3 })
	canvasID := aggregates.NewCanvasID()

	sess, err := registry.Open(ctx, canvasID, "user-123", 1200, 800)
	require.NoError(t, err)

	// One todo exists, so two nodes fill the tier
	require.NoError(t, sess.Do(func() error {
		if err := sess.Controller.HandlePointer(session.PointerEvent{Type: session.PointerDoubleClick, ScreenX: 100, ScreenY: 100}); err != nil {
			return err
		}
		return sess.Controller.HandlePointer(session.PointerEvent{Type: session.PointerDoubleClick, ScreenX: 400, ScreenY: 100})
	}))

	err = sess.Do(func() error {
		return sess.Controller.HandlePointer(session.PointerEvent{Type: session.PointerDoubleClick, ScreenX: 700, ScreenY: 100})
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsQuotaExceeded(err))

	// The rejected creation left nothing behind
	require.NoError(t, sess.Do(func() error {
		assert.Equal(t, 2, sess.Canvas.NodeCount())
		return nil
	}))
}

// recordingNotifier captures the save fan-out the websocket hub would
// broadcast
type recordingNotifier struct {
	mu      stdsync.Mutex
	started []string
	results []string
	batches [][]events.DomainEvent
}

func (n *recordingNotifier) NotifySaveStarted(canvasID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = append(n.started, reason)
}

func (n *recordingNotifier) NotifySaveResult(canvasID, reason string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	n.results = append(n.results, reason+":"+outcome)
}

func (n *recordingNotifier) NotifyMutations(canvasID string, committed []events.DomainEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, committed)
}

// TestSaveFanOutCommitsDomainEvents verifies a successful save drains
// the canvas's pending domain events into the notifier and that the
// save lifecycle is announced around it.
func TestSaveFanOutCommitsDomainEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	registry := newTestRegistry(t, store, nil)
	notifier := &recordingNotifier{}
	registry.SetNotifier(notifier)

	sess, err := registry.Open(ctx, aggregates.NewCanvasID(), "user-123", 1200, 800)
	require.NoError(t, err)

	require.NoError(t, sess.Do(func() error {
		if err := sess.Controller.HandlePointer(session.PointerEvent{Type: session.PointerDoubleClick, ScreenX: 100, ScreenY: 100}); err != nil {
			return err
		}
		sess.Service.Save()
		return nil
	}))

	require.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.results) == 1
	}, 2*time.Second, 10*time.Millisecond)

	notifier.mu.Lock()
	assert.Equal(t, []string{"manual"}, notifier.started)
	assert.Equal(t, []string{"manual:ok"}, notifier.results)
	require.Len(t, notifier.batches, 1)
	require.NotEmpty(t, notifier.batches[0])
	assert.Equal(t, "canvas.node_added", notifier.batches[0][0].GetEventType())
	notifier.mu.Unlock()

	// The drained events do not accumulate for the next save
	require.NoError(t, sess.Do(func() error {
		assert.Empty(t, sess.Canvas.GetUncommittedEvents())
		return nil
	}))
}
