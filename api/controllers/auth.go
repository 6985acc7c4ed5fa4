package controllers

import (
	"context"
	"net/http"

	"github.com/freshbulk/freshbulk-backend/api/responses"
	"github.com/freshbulk/freshbulk-backend/api/validators"
	"github.com/freshbulk/freshbulk-backend/internal/auth"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
	"github.com/freshbulk/freshbulk-backend/pkg/logger"
)

// bodyAction decodes and validates a Req, runs it and writes the result
// with status.
func bodyAction[Req, Resp any](logg *logger.Logger, status int, run func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp, err := run(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, resp)
	}
}

func unavailable(logg *logger.Logger, what string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, what+" unavailable"))
	}
}

func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "auth service")
	}
	return bodyAction(logg, http.StatusCreated, svc.Register)
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "auth service")
	}
	return bodyAction(logg, http.StatusOK, svc.Login)
}

// AuthMe returns the account behind the bearer token.
func AuthMe(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "auth service")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := principalFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.Me(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}
