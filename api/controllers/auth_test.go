package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/freshbulk/freshbulk-backend/internal/auth"
	"github.com/freshbulk/freshbulk-backend/internal/users"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
)

type stubAuthService struct {
	registered auth.RegisterRequest
	loginErr   error
	meID       uuid.UUID
}

func (s *stubAuthService) Register(_ context.Context, req auth.RegisterRequest) (*auth.AuthResponse, error) {
	s.registered = req
	return &auth.AuthResponse{AccessToken: "token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.AuthResponse, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &auth.AuthResponse{AccessToken: "token"}, nil
}

func (s *stubAuthService) Me(_ context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	s.meID = userID
	return &users.UserDTO{ID: userID}, nil
}

func TestAuthRegister(t *testing.T) {
	t.Parallel()

	svc := &stubAuthService{}
	body := `{"name":"Green Farms","email":"farm@example.com","password":"supersecret","role":"vendor"}`
	rec := httptest.NewRecorder()
	AuthRegister(svc, testLogger).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/auth/register", body, nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.registered.Role != enums.RoleVendor || svc.registered.Email != "farm@example.com" {
		t.Fatalf("unexpected register request %+v", svc.registered)
	}
}

func TestAuthRegisterRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	body := `{"name":"Root","email":"root@example.com","password":"supersecret","role":"admin"}`
	rec := httptest.NewRecorder()
	AuthRegister(&stubAuthService{}, testLogger).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/auth/register", body, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	t.Parallel()

	svc := &stubAuthService{loginErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	rec := httptest.NewRecorder()
	AuthLogin(svc, testLogger).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"a@example.com","password":"wrong"}`, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthMe(t *testing.T) {
	t.Parallel()

	svc := &stubAuthService{}
	userID := uuid.New()
	rec := httptest.NewRecorder()
	AuthMe(svc, testLogger).ServeHTTP(rec, as(newRequest(http.MethodGet, "/api/v1/auth/me", "", nil), userID, enums.RoleBuyer))
	if rec.Code != http.StatusOK || svc.meID != userID {
		t.Fatalf("unexpected me response %d id=%s", rec.Code, svc.meID)
	}
}
