package sync

import (
	"context"
	stdsync "sync"
	"testing"
	"time"

	"funnel-backend/application/ports"
	"funnel-backend/domain/core/aggregates"
	"funnel-backend/domain/core/valueobjects"
	pkgerrors "funnel-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubMemoStore gates create acks so tests control when the in-flight
// window closes
type stubMemoStore struct {
	mu      stdsync.Mutex
	gate    chan struct{}
	nextID  string
	creates int
	updates []ports.MemoPatch
	deletes []string

	createErr error
	deleteErr error
}

func (s *stubMemoStore) Create(ctx context.Context, canvasID string, req ports.MemoCreateRequest) (*ports.MemoRecord, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &ports.MemoRecord{ID: s.nextID, Content: req.Content, Position: req.Position}, nil
}

func (s *stubMemoStore) Update(ctx context.Context, canvasID, memoID string, patch ports.MemoPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, patch)
	return nil
}

func (s *stubMemoStore) Delete(ctx context.Context, canvasID, memoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, memoID)
	return s.deleteErr
}

func (s *stubMemoStore) deleteCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

func (s *stubMemoStore) updateCalls() []ports.MemoPatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.MemoPatch(nil), s.updates...)
}

type reconcilerFixture struct {
	canvas *aggregates.Canvas
	store  *stubMemoStore
	lock   *stdsync.Mutex
	rec    *MemoReconciler
}

func newReconcilerFixture(t *testing.T, store *stubMemoStore) *reconcilerFixture {
	t.Helper()
	canvas, err := aggregates.NewCanvas("user-1", "Test")
	require.NoError(t, err)

	debouncer := NewDebouncer(10 * time.Millisecond)
	t.Cleanup(debouncer.Stop)

	lock := &stdsync.Mutex{}
	rec := NewMemoReconciler(canvas.ID().String(), canvas, store, lock, debouncer, Callbacks{}, zap.NewNop())
	return &reconcilerFixture{canvas: canvas, store: store, lock: lock, rec: rec}
}

// locked runs fn holding the session lock, as callers of the public
// reconciler methods must
func (f *reconcilerFixture) locked(fn func()) {
	f.lock.Lock()
	defer f.lock.Unlock()
	fn()
}

func TestMemoReconciler_CreateReplacesTempIDInPlace(t *testing.T) {
	store := &stubMemoStore{nextID: "memo-srv-1"}
	f := newReconcilerFixture(t, store)

	var tempID valueobjects.MemoID
	f.locked(func() {
		memo, err := f.rec.CreateMemo("hello", valueobjects.Position{X: 10, Y: 20})
		require.NoError(t, err)
		tempID = memo.ID()
		assert.True(t, tempID.IsTemporary())
		f.canvas.SelectMemo(tempID)
	})

	assert.Eventually(t, func() bool {
		f.lock.Lock()
		defer f.lock.Unlock()
		memos := f.canvas.Memos()
		return len(memos) == 1 && memos[0].ID().String() == "memo-srv-1"
	}, time.Second, 5*time.Millisecond)

	f.locked(func() {
		// Selection followed the identity swap
		assert.Equal(t, "memo-srv-1", f.canvas.SelectedMemo().String())
		assert.False(t, f.rec.HasPendingWork())
	})
}

func TestMemoReconciler_QueuedEditsReplayInOrder(t *testing.T) {
	store := &stubMemoStore{nextID: "memo-srv-2", gate: make(chan struct{})}
	f := newReconcilerFixture(t, store)

	content1, content2 := "draft", "final"
	var tempID valueobjects.MemoID
	f.locked(func() {
		memo, err := f.rec.CreateMemo("", valueobjects.Position{})
		require.NoError(t, err)
		tempID = memo.ID()

		// Both edits land locally at once and queue for replay
		require.NoError(t, f.rec.UpdateMemo(tempID, ports.MemoPatch{Content: &content1}, false))
		require.NoError(t, f.rec.UpdateMemo(tempID, ports.MemoPatch{Content: &content2}, false))

		memo, err = f.canvas.GetMemo(tempID)
		require.NoError(t, err)
		assert.Equal(t, "final", memo.Content())
	})

	// Nothing was sent while the create was in flight
	assert.Empty(t, store.updateCalls())

	close(store.gate)

	assert.Eventually(t, func() bool {
		return len(store.updateCalls()) == 2
	}, time.Second, 5*time.Millisecond)

	updates := store.updateCalls()
	assert.Equal(t, "draft", *updates[0].Content)
	assert.Equal(t, "final", *updates[1].Content)
}

func TestMemoReconciler_DeleteBeforeAckIssuesOneDelete(t *testing.T) {
	store := &stubMemoStore{nextID: "memo-srv-3", gate: make(chan struct{})}
	f := newReconcilerFixture(t, store)

	var tempID valueobjects.MemoID
	f.locked(func() {
		memo, err := f.rec.CreateMemo("doomed", valueobjects.Position{})
		require.NoError(t, err)
		tempID = memo.ID()

		require.NoError(t, f.rec.DeleteMemo(tempID))
		assert.Zero(t, f.canvas.MemoCount())
	})

	// No delete can go out before the server id is known
	assert.Empty(t, store.deleteCalls())

	close(store.gate)

	assert.Eventually(t, func() bool {
		return len(store.deleteCalls()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"memo-srv-3"}, store.deleteCalls())

	// The memo never reappears
	time.Sleep(20 * time.Millisecond)
	f.locked(func() {
		assert.Zero(t, f.canvas.MemoCount())
	})
}

func TestMemoReconciler_CreateFailureRevertsInsert(t *testing.T) {
	store := &stubMemoStore{createErr: pkgerrors.NewNetworkError("persistence unreachable", nil)}
	f := newReconcilerFixture(t, store)

	f.locked(func() {
		_, err := f.rec.CreateMemo("ghost", valueobjects.Position{})
		require.NoError(t, err)
		assert.Equal(t, 1, f.canvas.MemoCount())
	})

	assert.Eventually(t, func() bool {
		f.lock.Lock()
		defer f.lock.Unlock()
		return f.canvas.MemoCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestMemoReconciler_CreateFailureAfterDeleteIsSilent(t *testing.T) {
	store := &stubMemoStore{
		createErr: pkgerrors.NewNetworkError("persistence unreachable", nil),
		gate:      make(chan struct{}),
	}
	f := newReconcilerFixture(t, store)

	var failures int
	f.rec.callbacks = Callbacks{OnError: func(string, error) { failures++ }}

	f.locked(func() {
		memo, err := f.rec.CreateMemo("gone", valueobjects.Position{})
		require.NoError(t, err)
		require.NoError(t, f.rec.DeleteMemo(memo.ID()))
	})

	close(store.gate)

	assert.Eventually(t, func() bool {
		f.lock.Lock()
		defer f.lock.Unlock()
		return !f.rec.HasPendingWork()
	}, time.Second, 5*time.Millisecond)

	// Absence was the desired end state: no error surfaced, no delete sent
	f.locked(func() {
		assert.Zero(t, failures)
		assert.Zero(t, f.canvas.MemoCount())
	})
	assert.Empty(t, store.deleteCalls())
}

func TestMemoReconciler_DurableDelete404IsSuccess(t *testing.T) {
	store := &stubMemoStore{nextID: "memo-srv-4"}
	f := newReconcilerFixture(t, store)

	f.locked(func() {
		_, err := f.rec.CreateMemo("note", valueobjects.Position{})
		require.NoError(t, err)
	})

	assert.Eventually(t, func() bool {
		f.lock.Lock()
		defer f.lock.Unlock()
		return !f.rec.HasPendingWork()
	}, time.Second, 5*time.Millisecond)

	store.deleteErr = pkgerrors.NewNotFoundError("memo")
	f.locked(func() {
		require.NoError(t, f.rec.DeleteMemo(valueobjects.MemoID("memo-srv-4")))
	})

	assert.Eventually(t, func() bool {
		return len(store.deleteCalls()) == 1
	}, time.Second, 5*time.Millisecond)

	// Already-gone server side means the local removal stands
	time.Sleep(20 * time.Millisecond)
	f.locked(func() {
		assert.Zero(t, f.canvas.MemoCount())
	})
}

func TestMemoReconciler_MoveAndResizeDebounceSeparately(t *testing.T) {
	store := &stubMemoStore{nextID: "memo-srv-5"}
	f := newReconcilerFixture(t, store)

	f.locked(func() {
		_, err := f.rec.CreateMemo("note", valueobjects.Position{X: 1, Y: 1})
		require.NoError(t, err)
	})

	assert.Eventually(t, func() bool {
		f.lock.Lock()
		defer f.lock.Unlock()
		return !f.rec.HasPendingWork()
	}, time.Second, 5*time.Millisecond)

	memoID := valueobjects.MemoID("memo-srv-5")
	pos := &valueobjects.Position{X: 50, Y: 60}
	size := &valueobjects.Size{Width: 300, Height: 200}

	// A resize arriving inside the move's debounce window must not
	// cancel the pending position write
	f.locked(func() {
		require.NoError(t, f.rec.UpdateMemo(memoID, ports.MemoPatch{Position: pos}, true))
		require.NoError(t, f.rec.UpdateMemo(memoID, ports.MemoPatch{Size: size}, true))
	})

	assert.Eventually(t, func() bool {
		return len(store.updateCalls()) == 2
	}, time.Second, 5*time.Millisecond)

	var sawPosition, sawSize bool
	for _, patch := range store.updateCalls() {
		if patch.Position != nil {
			sawPosition = true
		}
		if patch.Size != nil {
			sawSize = true
		}
	}
	assert.True(t, sawPosition)
	assert.True(t, sawSize)
}
