package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshbulk/freshbulk-backend/pkg/db/models"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
	"github.com/freshbulk/freshbulk-backend/pkg/metrics"
	"github.com/freshbulk/freshbulk-backend/pkg/outbox"
	"github.com/freshbulk/freshbulk-backend/pkg/outbox/payloads"
)

// StatusMachine moves orders along pending -> in_progress -> delivered on
// behalf of the owning vendor.
type StatusMachine struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

func NewStatusMachine(repo Repository, tx txRunner, outbox outboxPublisher, m *metrics.OrderMetrics) (*StatusMachine, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &StatusMachine{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Transition applies requested if vendorID owns the order and requested is
// the single successor of the current status. The write is conditional on
// the status that was read.
func (s *StatusMachine) Transition(ctx context.Context, orderRef string, requested enums.OrderStatus, vendorID uuid.UUID) (*models.Order, error) {
	orderRef = strings.TrimSpace(orderRef)
	if orderRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !requested.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]string{"status": "must be pending, in_progress or delivered"})
	}

	var (
		updated *models.Order
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByRef(ctx, orderRef)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
		}
		if order.VendorID != vendorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another vendor")
		}
		if !order.Status.CanTransitionTo(requested) {
			return illegalTransition(order.Status, requested)
		}

		at := s.now()
		changed, err := repo.CompareAndSetStatus(ctx, order.ID, order.Status, requested, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order status")
		}
		if !changed {
			current, err := repo.FindByRef(ctx, order.ID.String())
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload order")
			}
			return illegalTransition(current.Status, requested)
		}

		from = order.Status
		order.Status = requested
		order.UpdatedAt = at
		if err := s.outbox.Emit(ctx, tx, statusChangedEvent(order, from, vendorID)); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(from), string(requested))
	return updated, nil
}

func illegalTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeIllegalTransition, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]string{"from": string(from), "to": string(to)})
}

func statusChangedEvent(order *models.Order, from enums.OrderStatus, vendorID uuid.UUID) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: vendorID, Role: enums.RoleVendor},
		OccurredAt:    order.UpdatedAt,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			BuyerID:     order.BuyerID,
			VendorID:    order.VendorID,
			From:        from,
			To:          order.Status,
			ChangedAt:   order.UpdatedAt,
		},
	}
}
