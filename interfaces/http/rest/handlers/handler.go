// Package handlers implements the REST surface of the canvas
// interaction engine. Handlers translate HTTP into session operations
// and never touch the aggregate outside the session lock.
package handlers

import (
	"net/http"

	"funnel-backend/application/session"
	"funnel-backend/domain/core/aggregates"
	"funnel-backend/pkg/common"
	pkgerrors "funnel-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
)

// respondAppError maps a domain error onto its HTTP representation
func respondAppError(w http.ResponseWriter, err error) {
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		code := appErr.Code
		if code == "" {
			code = string(appErr.Type)
		}
		common.RespondErrorWithDetails(w, appErr.HTTPStatus, code, appErr.Message, appErr.Details)
		return
	}
	common.RespondError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
}

// sessionFromRequest resolves the open session named by the canvasID
// route parameter
func sessionFromRequest(registry *session.Registry, r *http.Request) (*session.Session, error) {
	canvasID := chi.URLParam(r, "canvasID")
	if canvasID == "" {
		return nil, pkgerrors.NewValidationError("canvasID is required")
	}
	sess, ok := registry.Get(aggregates.CanvasID(canvasID))
	if !ok {
		return nil, pkgerrors.NewNotFoundError("canvas session")
	}
	return sess, nil
}
