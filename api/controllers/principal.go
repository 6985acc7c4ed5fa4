package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/freshbulk/freshbulk-backend/api/middleware"
	"github.com/freshbulk/freshbulk-backend/api/responses"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
	"github.com/freshbulk/freshbulk-backend/pkg/logger"
)

// caller is the authenticated user behind a request.
type caller struct {
	ID   uuid.UUID
	Role enums.Role
}

func principalFromRequest(r *http.Request) (uuid.UUID, enums.Role, error) {
	id, role, ok := middleware.Principal(r.Context())
	if !ok {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return id, role, nil
}

// authedAction resolves the caller, runs fn and writes its result with
// status. fn's error goes through the standard error envelope.
func authedAction[Resp any](logg *logger.Logger, status int, fn func(*http.Request, caller) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, role, err := principalFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp, err := fn(r, caller{ID: id, Role: role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, resp)
	}
}
