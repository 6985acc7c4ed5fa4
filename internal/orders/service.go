package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshbulk/freshbulk-backend/pkg/db/models"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
	"github.com/freshbulk/freshbulk-backend/pkg/pagination"
)

// Actor is the authenticated principal calling an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// Service exposes order reads and vendor status transitions.
type Service interface {
	GetOrder(ctx context.Context, orderRef string, actor Actor) (*OrderDTO, error)
	ListOrdersForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListOrdersForVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error)
	TransitionOrderStatus(ctx context.Context, orderRef string, requested enums.OrderStatus, vendorID uuid.UUID) (*OrderDTO, error)
}

type statusTransitioner interface {
	Transition(ctx context.Context, orderRef string, requested enums.OrderStatus, vendorID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo   Repository
	status statusTransitioner
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, status statusTransitioner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if status == nil {
		return nil, fmt.Errorf("status machine required")
	}
	return &service{repo: repo, status: status}, nil
}

// GetOrder is visible to the buyer who paid for it and the vendor fulfilling it.
func (s *service) GetOrder(ctx context.Context, orderRef string, actor Actor) (*OrderDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.repo.FindByRef(ctx, strings.TrimSpace(orderRef))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}

	allowed := false
	switch actor.Role {
	case enums.RoleBuyer:
		allowed = order.BuyerID == actor.UserID
	case enums.RoleVendor:
		allowed = order.VendorID == actor.UserID
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view this order")
	}

	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) ListOrdersForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validateCursor(params); err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListByBuyer(ctx, buyerID, params, ListFilters{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list buyer orders")
	}
	return &OrderList{Orders: NewOrderDTOs(rows), NextCursor: next}, nil
}

func (s *service) ListOrdersForVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter")
	}
	if err := validateCursor(params); err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListByVendor(ctx, vendorID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list vendor orders")
	}
	return &OrderList{Orders: NewOrderDTOs(rows), NextCursor: next}, nil
}

func (s *service) TransitionOrderStatus(ctx context.Context, orderRef string, requested enums.OrderStatus, vendorID uuid.UUID) (*OrderDTO, error) {
	order, err := s.status.Transition(ctx, orderRef, requested, vendorID)
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func validateCursor(params pagination.Params) error {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]string{"cursor": "is not a valid page cursor"})
	}
	return nil
}
