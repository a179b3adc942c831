package sync

import (
	"context"
	stdsync "sync"

	"funnel-backend/application/ports"
	"funnel-backend/domain/core/aggregates"
	"funnel-backend/domain/core/entities"
	"funnel-backend/domain/core/valueobjects"
	pkgerrors "funnel-backend/pkg/errors"

	"go.uber.org/zap"
)

// MemoReconciler manages the optimistic memo lifecycle. A memo is
// inserted into the store under a temporary id before the create
// request resolves; three races follow from that window:
//
//  1. the create resolves first: the temporary entity is replaced in
//     place by the server identity, preserving selection;
//  2. the memo is edited while the create is in flight: edits apply
//     locally at once and are queued, then replayed against the server
//     id when it is known;
//  3. the memo is deleted while the create is in flight: a
//     pending-delete flag is recorded and a delete is issued against
//     the server id on ack, so the entity never reaches the UI again.
//
// All state, including bookkeeping maps, is guarded by the session
// lock. Public methods require the caller to hold it; completion
// handlers running on response goroutines acquire it themselves.
type MemoReconciler struct {
	canvasID  string
	canvas    *aggregates.Canvas
	store     ports.MemoStore
	locker    stdsync.Locker
	debouncer *Debouncer
	callbacks Callbacks
	logger    *zap.Logger

	inFlight       map[valueobjects.MemoID]bool
	queuedEdits    map[valueobjects.MemoID][]ports.MemoPatch
	pendingDeletes map[valueobjects.MemoID]bool
}

// NewMemoReconciler creates a reconciler bound to one canvas session
func NewMemoReconciler(
	canvasID string,
	canvas *aggregates.Canvas,
	store ports.MemoStore,
	locker stdsync.Locker,
	debouncer *Debouncer,
	callbacks Callbacks,
	logger *zap.Logger,
) *MemoReconciler {
	return &MemoReconciler{
		canvasID:       canvasID,
		canvas:         canvas,
		store:          store,
		locker:         locker,
		debouncer:      debouncer,
		callbacks:      callbacks,
		logger:         logger,
		inFlight:       make(map[valueobjects.MemoID]bool),
		queuedEdits:    make(map[valueobjects.MemoID][]ports.MemoPatch),
		pendingDeletes: make(map[valueobjects.MemoID]bool),
	}
}

// CreateMemo optimistically inserts a memo under a temporary id and
// sends the create request. Caller must hold the session lock.
func (r *MemoReconciler) CreateMemo(content string, position valueobjects.Position) (*entities.Memo, error) {
	memo := entities.NewMemo(content, position)
	if err := r.canvas.AddMemo(memo); err != nil {
		return nil, err
	}

	tempID := memo.ID()
	r.inFlight[tempID] = true

	go r.performCreate(tempID, ports.MemoCreateRequest{
		Content:  content,
		Position: position,
	})

	return memo, nil
}

// UpdateMemo applies a partial change locally and schedules the
// corresponding persistence write. Edits against a temporary id are
// queued for replay instead of sent. Position and size changes arrive
// in bursts while the user drags or resizes, so they are debounced;
// content edits are sent immediately. Caller must hold the session
// lock.
func (r *MemoReconciler) UpdateMemo(memoID valueobjects.MemoID, patch ports.MemoPatch, debounced bool) error {
	memo, err := r.canvas.GetMemo(memoID)
	if err != nil {
		return err
	}

	rollback := r.applyPatch(memo, patch)

	if memoID.IsTemporary() {
		r.queuedEdits[memoID] = append(r.queuedEdits[memoID], patch)
		return nil
	}

	if debounced {
		r.debouncer.Trigger(memoUpdateKey(memoID, patch), func() {
			r.performUpdate(memoID, patch, rollback)
		})
		return nil
	}

	go r.performUpdate(memoID, patch, rollback)
	return nil
}

// DeleteMemo optimistically removes a memo. If its create request is
// still in flight, the deletion is recorded and issued against the
// server id once known; the UI never sees the memo again either way.
// Caller must hold the session lock.
func (r *MemoReconciler) DeleteMemo(memoID valueobjects.MemoID) error {
	removed, err := r.canvas.RemoveMemo(memoID)
	if err != nil {
		return err
	}

	for _, key := range memoUpdateKeys(memoID) {
		r.debouncer.Cancel(key)
	}
	delete(r.queuedEdits, memoID)

	if memoID.IsTemporary() {
		if r.inFlight[memoID] {
			r.pendingDeletes[memoID] = true
		}
		// Never persisted: nothing to delete server-side yet
		return nil
	}

	go r.performDelete(memoID, removed)
	return nil
}

// HasPendingWork reports whether any create is still awaiting its ack.
// Used by session teardown to decide whether to linger briefly.
func (r *MemoReconciler) HasPendingWork() bool {
	return len(r.inFlight) > 0
}

func (r *MemoReconciler) performCreate(tempID valueobjects.MemoID, req ports.MemoCreateRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	rec, err := r.store.Create(ctx, r.canvasID, req)

	r.locker.Lock()
	defer r.locker.Unlock()

	delete(r.inFlight, tempID)

	if err != nil {
		delete(r.queuedEdits, tempID)
		if r.pendingDeletes[tempID] {
			// Deleted locally before the failure: absence was the
			// desired end state anyway
			delete(r.pendingDeletes, tempID)
			return
		}
		// Revert the optimistic insert
		if _, getErr := r.canvas.GetMemo(tempID); getErr == nil {
			r.canvas.RemoveMemo(tempID)
		}
		r.logger.Warn("Memo create failed, reverted",
			zap.String("canvasID", r.canvasID),
			zap.String("tempID", tempID.String()),
			zap.Error(err),
		)
		if r.callbacks.OnError != nil {
			r.callbacks.OnError("memo-create", err)
		}
		return
	}

	serverID := valueobjects.MemoID(rec.ID)

	if r.pendingDeletes[tempID] {
		delete(r.pendingDeletes, tempID)
		// The memo is already gone locally; chase the create with a
		// delete so the server converges on absence
		go r.performDelete(serverID, nil)
		return
	}

	if err := r.canvas.ReplaceMemoID(tempID, serverID); err != nil {
		r.logger.Error("Memo identity reconciliation failed",
			zap.String("tempID", tempID.String()),
			zap.String("serverID", serverID.String()),
			zap.Error(err),
		)
		return
	}

	edits := r.queuedEdits[tempID]
	delete(r.queuedEdits, tempID)
	if len(edits) > 0 {
		// Replay in one goroutine so the updates keep their order
		go func() {
			for _, patch := range edits {
				r.performUpdate(serverID, patch, nil)
			}
		}()
	}
}

func (r *MemoReconciler) performUpdate(memoID valueobjects.MemoID, patch ports.MemoPatch, rollback func()) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := r.store.Update(ctx, r.canvasID, memoID.String(), patch); err != nil {
		r.locker.Lock()
		if rollback != nil {
			rollback()
		}
		r.locker.Unlock()

		r.logger.Warn("Memo update failed, reverted",
			zap.String("canvasID", r.canvasID),
			zap.String("memoID", memoID.String()),
			zap.Error(err),
		)
		if r.callbacks.OnError != nil {
			r.callbacks.OnError("memo-update", err)
		}
	}
}

func (r *MemoReconciler) performDelete(memoID valueobjects.MemoID, removed *entities.Memo) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	err := r.store.Delete(ctx, r.canvasID, memoID.String())
	if err == nil || pkgerrors.IsNotFound(err) {
		// Absence is the desired end state; a 404 means it already holds
		return
	}

	r.locker.Lock()
	if removed != nil {
		if restoreErr := r.canvas.AddMemo(removed); restoreErr != nil {
			r.logger.Error("Memo delete rollback failed", zap.Error(restoreErr))
		}
	}
	r.locker.Unlock()

	r.logger.Warn("Memo delete failed, restored",
		zap.String("canvasID", r.canvasID),
		zap.String("memoID", memoID.String()),
		zap.Error(err),
	)
	if r.callbacks.OnError != nil {
		r.callbacks.OnError("memo-delete", err)
	}
}

// applyPatch mutates the memo locally and returns a closure restoring
// its pre-mutation values
func (r *MemoReconciler) applyPatch(memo *entities.Memo, patch ports.MemoPatch) func() {
	prevContent := memo.Content()
	prevPosition := memo.Position()
	prevSize := memo.Size()

	if patch.Content != nil {
		memo.SetContent(*patch.Content)
	}
	if patch.Position != nil {
		memo.MoveTo(*patch.Position)
	}
	if patch.Size != nil {
		memo.Resize(*patch.Size)
	}

	return func() {
		memo.SetContent(prevContent)
		memo.MoveTo(prevPosition)
		if prevSize != nil {
			memo.Resize(*prevSize)
		}
	}
}

// memoUpdateKey separates the debounce timeline per concern: a resize
// burst must not swallow a pending position write for the same memo.
func memoUpdateKey(memoID valueobjects.MemoID, patch ports.MemoPatch) string {
	switch {
	case patch.Position != nil:
		return "memo-move:" + memoID.String()
	case patch.Size != nil:
		return "memo-resize:" + memoID.String()
	default:
		return "memo-update:" + memoID.String()
	}
}

func memoUpdateKeys(memoID valueobjects.MemoID) []string {
	return []string{
		"memo-move:" + memoID.String(),
		"memo-resize:" + memoID.String(),
		"memo-update:" + memoID.String(),
	}
}
