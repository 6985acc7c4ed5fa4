package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/freshbulk/freshbulk-backend/api/middleware"
	"github.com/freshbulk/freshbulk-backend/api/responses"
	"github.com/freshbulk/freshbulk-backend/internal/cart"
	"github.com/freshbulk/freshbulk-backend/internal/checkout"
	"github.com/freshbulk/freshbulk-backend/internal/orders"
	"github.com/freshbulk/freshbulk-backend/internal/payments"
	product "github.com/freshbulk/freshbulk-backend/internal/products"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	"github.com/freshbulk/freshbulk-backend/pkg/logger"
	"github.com/freshbulk/freshbulk-backend/pkg/pagination"
)

var testLogger = logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})

func newRequest(method, target, body string, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if len(params) > 0 {
		rc := chi.NewRouteContext()
		for k, v := range params {
			rc.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}
	return req
}

func as(req *http.Request, userID uuid.UUID, role enums.Role) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), userID, role))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body responses.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error envelope: %v (body=%s)", err, rec.Body.String())
	}
	return body.Error.Code
}

type stubProductService struct {
	product.Service

	listInput  product.ListProductsInput
	createdFor uuid.UUID
	created    product.CreateProductInput
	updated    product.UpdateProductInput
	deleteErr  error
}

func (s *stubProductService) ListProducts(_ context.Context, input product.ListProductsInput) ([]product.ProductDTO, error) {
	s.listInput = input
	return []product.ProductDTO{{ID: uuid.New(), Name: "Tomato"}}, nil
}

func (s *stubProductService) CreateProduct(_ context.Context, vendorID uuid.UUID, input product.CreateProductInput) (*product.ProductDTO, error) {
	s.createdFor = vendorID
	s.created = input
	return &product.ProductDTO{ID: uuid.New(), VendorID: vendorID, Name: input.Name, PriceCents: input.PriceCents}, nil
}

func (s *stubProductService) UpdateProduct(_ context.Context, vendorID, productID uuid.UUID, input product.UpdateProductInput) (*product.ProductDTO, error) {
	s.updated = input
	return &product.ProductDTO{ID: productID, VendorID: vendorID}, nil
}

func (s *stubProductService) DeleteProduct(context.Context, uuid.UUID, uuid.UUID) error {
	return s.deleteErr
}

type stubCheckoutService struct {
	previewItems []cart.LineInput
	buyerID      uuid.UUID
	input        cart.Input
	key          string
	confirmErr   error
	confirmedFor string
}

func (s *stubCheckoutService) PreviewCart(_ context.Context, items []cart.LineInput) (*checkout.Preview, error) {
	s.previewItems = items
	return &checkout.Preview{Total: "0.00", Currency: "inr"}, nil
}

func (s *stubCheckoutService) InitiateCheckout(_ context.Context, buyerID uuid.UUID, input cart.Input, key string) (*payments.CheckoutSession, error) {
	s.buyerID = buyerID
	s.input = input
	s.key = key
	return &payments.CheckoutSession{SessionID: "cs_test_1", URL: "https://pay.example/cs_test_1", AmountTotalCents: 29500, Currency: "inr"}, nil
}

func (s *stubCheckoutService) ConfirmPayment(_ context.Context, sessionID string, buyerID uuid.UUID) (*checkout.Confirmation, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	s.confirmedFor = sessionID
	s.buyerID = buyerID
	return &checkout.Confirmation{SessionID: sessionID, TotalCents: 29500, Total: "295.00"}, nil
}

type stubOrdersService struct {
	actor      orders.Actor
	ref        string
	params     pagination.Params
	filters    orders.ListFilters
	requested  enums.OrderStatus
	vendorID   uuid.UUID
	getErr     error
	transition error
}

func (s *stubOrdersService) GetOrder(_ context.Context, ref string, actor orders.Actor) (*orders.OrderDTO, error) {
	s.ref = ref
	s.actor = actor
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &orders.OrderDTO{OrderNumber: ref}, nil
}

func (s *stubOrdersService) ListOrdersForBuyer(_ context.Context, buyerID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	s.actor = orders.Actor{UserID: buyerID, Role: enums.RoleBuyer}
	s.params = params
	return &orders.OrderList{Orders: []orders.OrderDTO{}}, nil
}

func (s *stubOrdersService) ListOrdersForVendor(_ context.Context, vendorID uuid.UUID, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	s.vendorID = vendorID
	s.params = params
	s.filters = filters
	return &orders.OrderList{Orders: []orders.OrderDTO{}}, nil
}

func (s *stubOrdersService) TransitionOrderStatus(_ context.Context, ref string, requested enums.OrderStatus, vendorID uuid.UUID) (*orders.OrderDTO, error) {
	s.ref = ref
	s.requested = requested
	s.vendorID = vendorID
	if s.transition != nil {
		return nil, s.transition
	}
	return &orders.OrderDTO{Status: requested}, nil
}

