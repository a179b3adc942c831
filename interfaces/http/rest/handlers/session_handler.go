package handlers

import (
	"encoding/json"
	"net/http"

	"funnel-backend/application/session"
	"funnel-backend/domain/core/aggregates"
	"funnel-backend/pkg/auth"
	"funnel-backend/pkg/common"
	pkgerrors "funnel-backend/pkg/errors"
	"funnel-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionHandler manages canvas session lifecycle and the pointer
// event stream
type SessionHandler struct {
	registry *session.Registry
	logger   *zap.Logger
}

// NewSessionHandler creates a session handler
func NewSessionHandler(registry *session.Registry, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{registry: registry, logger: logger}
}

// OpenSessionRequest carries the client's container dimensions so the
// initial viewport can be fitted to content
type OpenSessionRequest struct {
	ContainerWidth  float64 `json:"containerWidth" validate:"required,gt=0"`
	ContainerHeight float64 `json:"containerHeight" validate:"required,gt=0"`
}

// OpenSession loads the canvas and returns its full render state
func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		respondAppError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	canvasID := chi.URLParam(r, "canvasID")
	if canvasID == "" {
		respondAppError(w, pkgerrors.NewValidationError("canvasID is required"))
		return
	}

	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAppError(w, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		respondAppError(w, pkgerrors.NewValidationError(err.Error()))
		return
	}

	sess, err := h.registry.Open(r.Context(), aggregates.CanvasID(canvasID), user.UserID, req.ContainerWidth, req.ContainerHeight)
	if err != nil {
		respondAppError(w, err)
		return
	}

	var view GraphView
	sess.Do(func() error {
		view = BuildGraphView(sess)
		return nil
	})
	common.RespondJSON(w, http.StatusOK, view)
}

// GetGraph returns the current render state
func (h *SessionHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	var view GraphView
	sess.Do(func() error {
		view = BuildGraphView(sess)
		return nil
	})
	common.RespondJSON(w, http.StatusOK, view)
}

// PostEvents feeds a batch of pointer events through the interaction
// state machine, in order. Processing stops at the first event the
// machine rejects; events it merely ignores do not stop the batch.
func (h *SessionHandler) PostEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	var events []session.PointerEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		respondAppError(w, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	for i := range events {
		if err := utils.ValidateStruct(&events[i]); err != nil {
			respondAppError(w, pkgerrors.NewValidationError(err.Error()))
			return
		}
	}

	var view GraphView
	err = sess.Do(func() error {
		for _, ev := range events {
			if err := sess.Controller.HandlePointer(ev); err != nil {
				return err
			}
		}
		view = BuildGraphView(sess)
		return nil
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// CancelGesture abandons the active gesture, the escape-key path
func (h *SessionHandler) CancelGesture(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	var view GraphView
	sess.Do(func() error {
		sess.Controller.Cancel()
		view = BuildGraphView(sess)
		return nil
	})
	common.RespondJSON(w, http.StatusOK, view)
}

// Save flushes the canvas immediately, the explicit save button
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	sess.Do(func() error {
		sess.Service.Save()
		return nil
	})
	common.RespondJSON(w, http.StatusAccepted, sess.Engine.CurrentStatus())
}

// Status reports the save state
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromRequest(h.registry, r)
	if err != nil {
		respondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, sess.Engine.CurrentStatus())
}

// CloseSession flushes pending work and tears the session down
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	canvasID := chi.URLParam(r, "canvasID")
	if canvasID == "" {
		respondAppError(w, pkgerrors.NewValidationError("canvasID is required"))
		return
	}
	h.registry.Close(aggregates.CanvasID(canvasID))
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}
