package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"funnel-backend/application/ports"
	pkgerrors "funnel-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubSnapshotStore records saves and fails on demand
type stubSnapshotStore struct {
	mu    sync.Mutex
	saves []*ports.Snapshot
	err   error
}

func (s *stubSnapshotStore) Load(ctx context.Context, canvasID string) (*ports.Snapshot, error) {
	return nil, pkgerrors.NewNotFoundError("snapshot")
}

func (s *stubSnapshotStore) Save(ctx context.Context, canvasID string, snap *ports.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves = append(s.saves, snap)
	return nil
}

func (s *stubSnapshotStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *stubSnapshotStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func newTestEngine(t *testing.T, store *stubSnapshotStore, delay time.Duration, callbacks Callbacks) (*Engine, *Debouncer) {
	t.Helper()
	debouncer := NewDebouncer(delay)
	t.Cleanup(debouncer.Stop)
	engine := NewEngine(
		"canvas-1",
		store,
		func() *ports.Snapshot { return &ports.Snapshot{Version: ports.SnapshotVersion} },
		debouncer,
		callbacks,
		nil,
		zap.NewNop(),
	)
	t.Cleanup(engine.Close)
	return engine, debouncer
}

func TestEngine_DebouncedSavesCoalesce(t *testing.T) {
	store := &stubSnapshotStore{}
	engine, _ := newTestEngine(t, store, 20*time.Millisecond, Callbacks{})

	engine.TriggerSave("node-add", false, nil)
	engine.TriggerSave("node-edit", false, nil)
	engine.TriggerSave("node-edit", false, nil)

	assert.Eventually(t, func() bool {
		return store.saveCount() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, store.saveCount())
}

func TestEngine_ImmediateSaveCancelsPendingDebounce(t *testing.T) {
	store := &stubSnapshotStore{}
	engine, _ := newTestEngine(t, store, 50*time.Millisecond, Callbacks{})

	engine.TriggerSave("node-edit", false, nil)
	engine.TriggerSave("edge-create", true, nil)

	assert.Eventually(t, func() bool {
		return store.saveCount() == 1
	}, time.Second, 5*time.Millisecond)

	// The debounced write was superseded, not deferred
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, store.saveCount())
}

func TestEngine_RollbackRunsOnlyOnFailure(t *testing.T) {
	store := &stubSnapshotStore{}
	store.setErr(pkgerrors.NewNetworkError("persistence unreachable", nil))

	var mu sync.Mutex
	rolledBack := false
	var failedReason string

	engine, _ := newTestEngine(t, store, 10*time.Millisecond, Callbacks{
		OnError: func(reason string, err error) {
			mu.Lock()
			failedReason = reason
			mu.Unlock()
		},
	})

	engine.TriggerSave("node-delete", true, func() {
		mu.Lock()
		rolledBack = true
		mu.Unlock()
	})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return rolledBack && failedReason == "node-delete"
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, engine.LastSavedAt())

	// A successful save must not re-run the consumed rollback
	store.setErr(nil)
	engine.TriggerSave("manual", true, nil)
	require.Eventually(t, func() bool {
		return store.saveCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_SuccessUpdatesStatusAndCallback(t *testing.T) {
	store := &stubSnapshotStore{}

	var mu sync.Mutex
	var successReason string

	engine, _ := newTestEngine(t, store, 10*time.Millisecond, Callbacks{
		OnSuccess: func(reason string) {
			mu.Lock()
			successReason = reason
			mu.Unlock()
		},
	})

	engine.TriggerSave("manual", true, nil)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return successReason == "manual"
	}, time.Second, 5*time.Millisecond)

	status := engine.CurrentStatus()
	assert.False(t, status.Saving)
	require.NotNil(t, status.LastSavedAt)
	assert.WithinDuration(t, time.Now(), *status.LastSavedAt, time.Second)
}

func TestEngine_FailedBurstUnwindsEveryMutation(t *testing.T) {
	store := &stubSnapshotStore{}
	store.setErr(pkgerrors.NewNetworkError("persistence unreachable", nil))

	var mu sync.Mutex
	var unwound []string

	engine, _ := newTestEngine(t, store, 20*time.Millisecond, Callbacks{})

	// Two edits land inside one debounce window; if the save fails,
	// both must revert, newest first
	engine.TriggerSave("node-edit", false, func() {
		mu.Lock()
		unwound = append(unwound, "first")
		mu.Unlock()
	})
	engine.TriggerSave("node-edit", false, func() {
		mu.Lock()
		unwound = append(unwound, "second")
		mu.Unlock()
	})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(unwound) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"second", "first"}, unwound)
}

func TestEngine_SaveStartCallbackFiresBeforeSnapshot(t *testing.T) {
	store := &stubSnapshotStore{}

	var mu sync.Mutex
	var started []string

	engine, _ := newTestEngine(t, store, 10*time.Millisecond, Callbacks{
		OnStart: func(reason string) {
			mu.Lock()
			started = append(started, reason)
			mu.Unlock()
		},
	})

	engine.TriggerSave("manual", true, nil)

	assert.Eventually(t, func() bool {
		return store.saveCount() == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"manual"}, started)
}
