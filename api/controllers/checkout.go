package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/freshbulk/freshbulk-backend/api/middleware"
	"github.com/freshbulk/freshbulk-backend/api/responses"
	"github.com/freshbulk/freshbulk-backend/api/validators"
	"github.com/freshbulk/freshbulk-backend/internal/cart"
	"github.com/freshbulk/freshbulk-backend/internal/checkout"
	"github.com/freshbulk/freshbulk-backend/internal/payments"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
	"github.com/freshbulk/freshbulk-backend/pkg/logger"
)

type previewRequest struct {
	Items []cart.LineInput `json:"items"`
}

// CheckoutPreview prices a cart from the catalog and groups it by vendor.
func CheckoutPreview(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return bodyAction(logg, http.StatusOK, func(ctx context.Context, req previewRequest) (*checkout.Preview, error) {
		return svc.PreviewCart(ctx, req.Items)
	})
}

// CheckoutCreateSession opens a hosted payment session for the buyer's cart.
// The Idempotency-Key header doubles as the provider's idempotency key.
func CheckoutCreateSession(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return authedAction(logg, http.StatusCreated, func(r *http.Request, who caller) (*payments.CheckoutSession, error) {
		var input cart.Input
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			return nil, err
		}
		key := strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader))
		return svc.InitiateCheckout(r.Context(), who.ID, input, key)
	})
}

// CheckoutConfirm turns a paid session into vendor orders. Safe to retry.
func CheckoutConfirm(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID := strings.TrimSpace(chi.URLParam(r, "sessionId"))
		if logg != nil && sessionID != "" {
			ctx = logg.WithPaymentSession(ctx, sessionID)
		}

		buyerID, _, err := principalFromRequest(r)
		if err == nil && sessionID == "" {
			err = pkgerrors.New(pkgerrors.CodeValidation, "session id required")
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		confirmation, err := svc.ConfirmPayment(ctx, sessionID, buyerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmation)
	}
}
