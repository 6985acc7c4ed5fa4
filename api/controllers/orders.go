package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/freshbulk/freshbulk-backend/api/validators"
	"github.com/freshbulk/freshbulk-backend/internal/orders"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
	"github.com/freshbulk/freshbulk-backend/pkg/logger"
)

func orderRef(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "orderId"))
}

func BuyerListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authedAction(logg, http.StatusOK, func(r *http.Request, who caller) (*orders.OrderList, error) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			return nil, err
		}
		return svc.ListOrdersForBuyer(r.Context(), who.ID, params)
	})
}

// VendorListOrders accepts an optional ?status= filter.
func VendorListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authedAction(logg, http.StatusOK, func(r *http.Request, who caller) (*orders.OrderList, error) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			return nil, err
		}
		status, err := validators.ParseOrderStatusQuery(r, "status")
		if err != nil {
			return nil, err
		}
		return svc.ListOrdersForVendor(r.Context(), who.ID, params, orders.ListFilters{Status: status})
	})
}

// GetOrder accepts an order id or order number.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authedAction(logg, http.StatusOK, func(r *http.Request, who caller) (*orders.OrderDTO, error) {
		return svc.GetOrder(r.Context(), orderRef(r), orders.Actor{UserID: who.ID, Role: who.Role})
	})
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress delivered"`
}

// VendorUpdateOrderStatus advances one of the vendor's orders.
func VendorUpdateOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authedAction(logg, http.StatusOK, func(r *http.Request, who caller) (*orders.OrderDTO, error) {
		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		next, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		return svc.TransitionOrderStatus(r.Context(), orderRef(r), next, who.ID)
	})
}
