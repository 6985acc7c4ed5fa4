package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
)

type lineBody struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type cartBody struct {
	Role  string     `json:"role" validate:"required,oneof=buyer vendor"`
	Items []lineBody `json:"items" validate:"required,min=1,dive"`
}

func validationDetails(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	return details
}

func TestDecodeJSONBodyReportsNestedFields(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"role":"admin","items":[{"product_id":"nope","quantity":0}]}`))
	var dest cartBody
	details := validationDetails(t, DecodeJSONBody(req, &dest))

	want := map[string]string{
		"role":                "must be one of: buyer vendor",
		"items[0].product_id": "must be a valid uuid",
		"items[0].quantity":   "must be greater than 0",
	}
	for field, msg := range want {
		if details[field] != msg {
			t.Fatalf("field %s: expected %q got %q (all=%v)", field, msg, details[field], details)
		}
	}
}

func TestDecodeJSONBodyRejectsUnknownFieldsAndEmpty(t *testing.T) {
	t.Parallel()

	var dest cartBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"role":"buyer","extra":1}`))
	if err := DecodeJSONBody(req, &dest); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown field, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSONBody(req, &dest); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty body, got %v", err)
	}
}

func TestParsePagination(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/?limit=10&cursor=abc", nil)
	params, err := ParsePagination(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Limit != 10 || params.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", params)
	}

	req = httptest.NewRequest(http.MethodGet, "/?limit=1000", nil)
	if _, err := ParsePagination(req); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected out of range error, got %v", err)
	}
}

func TestParseFilters(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/?status=in_progress&category=fruit", nil)
	status, err := ParseOrderStatusQuery(req, "status")
	if err != nil || status == nil || *status != enums.OrderStatusInProgress {
		t.Fatalf("unexpected status %v err=%v", status, err)
	}
	category, err := ParseCategoryQuery(req, "category")
	if err != nil || category == nil || *category != enums.ProductCategoryFruit {
		t.Fatalf("unexpected category %v err=%v", category, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/?status=shipped", nil)
	if _, err := ParseOrderStatusQuery(req, "status"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseUUIDParam(t *testing.T) {
	t.Parallel()

	rc := chi.NewRouteContext()
	rc.URLParams.Add("productId", "not-a-uuid")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	if _, err := ParseUUIDParam(req, "productId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
