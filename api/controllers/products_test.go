package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
)

func TestListProductsPassesFilters(t *testing.T) {
	t.Parallel()

	svc := &stubProductService{}
	rec := httptest.NewRecorder()
	ListProducts(svc, testLogger).ServeHTTP(rec, newRequest(http.MethodGet, "/api/v1/products?category=fruit&q=mango", "", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.listInput.Category == nil || *svc.listInput.Category != enums.ProductCategoryFruit || svc.listInput.Search != "mango" {
		t.Fatalf("unexpected filters %+v", svc.listInput)
	}
}

func TestListProductsRejectsUnknownCategory(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	ListProducts(&stubProductService{}, testLogger).ServeHTTP(rec, newRequest(http.MethodGet, "/api/v1/products?category=dairy", "", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestVendorCreateProduct(t *testing.T) {
	t.Parallel()

	vendorID := uuid.New()
	svc := &stubProductService{}

	t.Run("converts price to minor units", func(t *testing.T) {
		body := `{"name":"Tomato","price":"45.50","description":"Fresh","category":"vegetable","image_url":"https://img.example/t.png"}`
		rec := httptest.NewRecorder()
		VendorCreateProduct(svc, testLogger).ServeHTTP(rec, as(newRequest(http.MethodPost, "/api/v1/vendor/products", body, nil), vendorID, enums.RoleVendor))

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
		}
		if svc.createdFor != vendorID || svc.created.PriceCents != 4550 || svc.created.Category != enums.ProductCategoryVegetable {
			t.Fatalf("unexpected create call vendor=%s input=%+v", svc.createdFor, svc.created)
		}
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		rec := httptest.NewRecorder()
		VendorCreateProduct(svc, testLogger).ServeHTTP(rec, as(newRequest(http.MethodPost, "/api/v1/vendor/products", `{"name":"Tomato"}`, nil), vendorID, enums.RoleVendor))
		if rec.Code != http.StatusBadRequest || errorCode(t, rec) != string(pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("rejects negative price", func(t *testing.T) {
		body := `{"name":"Tomato","price":"-1","category":"vegetable","image_url":"https://img.example/t.png"}`
		rec := httptest.NewRecorder()
		VendorCreateProduct(svc, testLogger).ServeHTTP(rec, as(newRequest(http.MethodPost, "/api/v1/vendor/products", body, nil), vendorID, enums.RoleVendor))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for negative price, got %d", rec.Code)
		}
	})

	t.Run("requires principal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		VendorCreateProduct(svc, testLogger).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/vendor/products", `{}`, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 got %d", rec.Code)
		}
	})
}

func TestVendorUpdateProductPartial(t *testing.T) {
	t.Parallel()

	svc := &stubProductService{}
	productID := uuid.New()
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPut, "/api/v1/vendor/products/"+productID.String(), `{"price":12}`, map[string]string{"productId": productID.String()})
	VendorUpdateProduct(svc, testLogger).ServeHTTP(rec, as(req, uuid.New(), enums.RoleVendor))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.updated.PriceCents == nil || *svc.updated.PriceCents != 1200 || svc.updated.Name != nil {
		t.Fatalf("unexpected update input %+v", svc.updated)
	}
}

func TestVendorDeleteProduct(t *testing.T) {
	t.Parallel()

	vendorID := uuid.New()
	productID := uuid.New()

	t.Run("invalid product id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := newRequest(http.MethodDelete, "/api/v1/vendor/products/nope", "", map[string]string{"productId": "nope"})
		VendorDeleteProduct(&stubProductService{}, testLogger).ServeHTTP(rec, as(req, vendorID, enums.RoleVendor))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("not owner", func(t *testing.T) {
		svc := &stubProductService{deleteErr: pkgerrors.New(pkgerrors.CodeForbidden, "not your product")}
		rec := httptest.NewRecorder()
		req := newRequest(http.MethodDelete, "/api/v1/vendor/products/"+productID.String(), "", map[string]string{"productId": productID.String()})
		VendorDeleteProduct(svc, testLogger).ServeHTTP(rec, as(req, vendorID, enums.RoleVendor))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 got %d", rec.Code)
		}
	})

	t.Run("deleted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := newRequest(http.MethodDelete, "/api/v1/vendor/products/"+productID.String(), "", map[string]string{"productId": productID.String()})
		VendorDeleteProduct(&stubProductService{}, testLogger).ServeHTTP(rec, as(req, vendorID, enums.RoleVendor))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204 got %d", rec.Code)
		}
	})
}
