package sync

import (
	"context"
	"sync"
	"time"

	"funnel-backend/application/ports"
	"funnel-backend/pkg/observability"

	"go.uber.org/zap"
)

// saveKey is the debounce key for whole-canvas snapshot writes
const saveKey = "canvas"

// saveTimeout bounds a single persistence write
const saveTimeout = 15 * time.Second

// Callbacks notify the caller of save outcomes. A manual save surfaces
// both success and failure prominently; a silent autosave only surfaces
// failure, unobtrusively. The distinction is the caller's concern, so
// both paths flow through the same pair of callbacks with the reason
// tag attached.
type Callbacks struct {
	OnStart   func(reason string)
	OnSuccess func(reason string)
	OnError   func(reason string, err error)
}

// Status is the save-state surfaced to the UI
type Status struct {
	Saving      bool       `json:"saving"`
	LastSavedAt *time.Time `json:"lastSavedAt"`
}

// Engine observes graph mutations and persists them. Mutations call
// TriggerSave with a reason tag; debounced calls coalesce into one
// write per quiet period, immediate calls cancel any pending debounce
// and write at once. The snapshot payload is always derived from
// current store state at send time, so requests resolving out of
// issuance order cannot push stale state to the server.
type Engine struct {
	canvasID  string
	store     ports.SnapshotStore
	snapshot  func() *ports.Snapshot
	debouncer *Debouncer
	callbacks Callbacks
	logger    *zap.Logger
	metrics   *observability.Collector

	mu              sync.Mutex
	inFlight        int
	lastSavedAt     *time.Time
	pendingRollback func()
}

// NewEngine creates a sync engine for one canvas session. snapshot must
// capture current store state under the session's lock. The debouncer
// is shared session-wide: canvas saves, memo moves and memo resizes all
// coalesce through the same primitive, keyed per concern.
func NewEngine(
	canvasID string,
	store ports.SnapshotStore,
	snapshot func() *ports.Snapshot,
	debouncer *Debouncer,
	callbacks Callbacks,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		canvasID:  canvasID,
		store:     store,
		snapshot:  snapshot,
		debouncer: debouncer,
		callbacks: callbacks,
		metrics:   metrics,
		logger:    logger,
	}
}

// TriggerSave schedules a persistence write. With immediate=false the
// write is debounced; only the last call in a burst is sent. With
// immediate=true any pending debounced write is cancelled and
// superseded. rollback, when non-nil, reverts the optimistic mutation
// that prompted this save and runs only if the write fails.
func (e *Engine) TriggerSave(reason string, immediate bool, rollback func()) {
	e.mu.Lock()
	if rollback != nil {
		// Coalesced mutations share one write, so their rollbacks
		// chain: newest first, unwinding back to the pre-burst state
		if prev := e.pendingRollback; prev != nil {
			e.pendingRollback = func() {
				rollback()
				prev()
			}
		} else {
			e.pendingRollback = rollback
		}
	}
	e.mu.Unlock()

	if immediate {
		if e.debouncer.Cancel(saveKey) {
			e.countCoalesced()
		}
		go e.performSave(reason)
		return
	}

	e.debouncer.Trigger(saveKey, func() {
		e.performSave(reason)
	})
}

// Saving reports whether a write is in flight
func (e *Engine) Saving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight > 0
}

// LastSavedAt returns when the last write succeeded, nil if never
func (e *Engine) LastSavedAt() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSavedAt
}

// CurrentStatus returns the save-state surfaced to the UI
func (e *Engine) CurrentStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{Saving: e.inFlight > 0, LastSavedAt: e.lastSavedAt}
}

// Close cancels the pending snapshot write, if any. The shared
// debouncer itself is stopped by the session that owns it.
func (e *Engine) Close() {
	e.debouncer.Cancel(saveKey)
}

func (e *Engine) performSave(reason string) {
	e.mu.Lock()
	e.inFlight++
	rollback := e.pendingRollback
	e.pendingRollback = nil
	e.mu.Unlock()

	if e.callbacks.OnStart != nil {
		e.callbacks.OnStart(reason)
	}

	snap := e.snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	err := e.store.Save(ctx, e.canvasID, snap)

	e.mu.Lock()
	e.inFlight--
	if err == nil {
		now := time.Now()
		e.lastSavedAt = &now
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("Canvas save failed",
			zap.String("canvasID", e.canvasID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		if e.metrics != nil {
			e.metrics.SaveFailures.Inc()
		}
		if rollback != nil {
			rollback()
		}
		if e.callbacks.OnError != nil {
			e.callbacks.OnError(reason, err)
		}
		return
	}

	e.logger.Debug("Canvas saved",
		zap.String("canvasID", e.canvasID),
		zap.String("reason", reason),
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("edges", len(snap.Edges)),
	)
	if e.metrics != nil {
		e.metrics.SavesTotal.Inc()
	}
	if e.callbacks.OnSuccess != nil {
		e.callbacks.OnSuccess(reason)
	}
}

func (e *Engine) countCoalesced() {
	if e.metrics != nil {
		e.metrics.SavesCoalesced.Inc()
	}
}
