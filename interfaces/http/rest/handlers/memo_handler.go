package handlers

import (
	"encoding/json"
	"net/http"

	"funnel-backend/application/ports"
	"funnel-backend/application/session"
	"funnel-backend/domain/core/entities"
	"funnel-backend/domain/core/valueobjects"
	"funnel-backend/pkg/common"
	pkgerrors "funnel-backend/pkg/errors"
	"funnel-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MemoHandler handles memo CRUD. Creations return immediately with a
// temporary id; the reconciler swaps in the durable id asynchronously
// and clients observe the swap in the next graph view.
type MemoHandler struct {
	registry *session.Registry
	metrics  *observability.Collector
	logger   *zap.Logger
}

// NewMemoHandler creates a memo handler
func NewMemoHandler(registry *session.Registry, metrics *observability.Collector, logger *zap.Logger) *MemoHandler {
	return &MemoHandler{registry: registry, metrics: metrics, logger: logger}
}

// CreateMemoRequest is the payload for memo creation
type CreateMemoRequest struct {
	Content  string                `json:"content"`
	Position valueobjects.Position `json:"position"`
}

// CreateMemo adds a memo, subject to the quota check
func (h *MemoHandler) CreateMemo(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	var req CreateMemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAppError(w, pkgerrors.NewValidationError("invalid request body"))
		return
	}

	var memo *entities.Memo
	err = sess.Do(func() error {
		var inner error
		memo, inner = sess.Service.CreateMemo(r.Context(), req.Content, req.Position)
		return inner
	})
	if err != nil {
		respondAppError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.MemosCreated.Inc()
	}
	common.RespondJSON(w, http.StatusCreated, MemoView{
		ID:        memo.ID().String(),
		Content:   memo.Content(),
		Position:  memo.Position(),
		Size:      memo.Size(),
		Temporary: memo.IsTemporary(),
	})
}

// UpdateMemo applies a partial memo change. Updates against a
// temporary id are accepted and replayed once the durable id arrives.
func (h *MemoHandler) UpdateMemo(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	memoID := valueobjects.MemoID(chi.URLParam(r, "memoID"))

	var patch ports.MemoPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondAppError(w, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if patch.Content == nil && patch.Position == nil && patch.Size == nil {
		respondAppError(w, pkgerrors.NewValidationError("patch must change at least one field"))
		return
	}

	err = sess.Do(func() error {
		return sess.Service.UpdateMemo(memoID, patch)
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// SelectMemo marks a memo as selected in the session
func (h *MemoHandler) SelectMemo(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	memoID := valueobjects.MemoID(chi.URLParam(r, "memoID"))

	err = sess.Do(func() error {
		if _, inner := sess.Canvas.GetMemo(memoID); inner != nil {
			return inner
		}
		sess.Canvas.SelectMemo(memoID)
		return nil
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "selected"})
}

// DeleteMemo removes a memo. Deleting a memo whose create is still in
// flight is safe; the server copy is cleaned up once the create acks.
func (h *MemoHandler) DeleteMemo(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	memoID := valueobjects.MemoID(chi.URLParam(r, "memoID"))

	err = sess.Do(func() error {
		return sess.Service.DeleteMemo(memoID)
	})
	if err != nil {
		respondAppError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.MemosDeleted.Inc()
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
