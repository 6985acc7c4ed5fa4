package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshbulk/freshbulk-backend/internal/checkout/helpers"
	"github.com/freshbulk/freshbulk-backend/internal/payments"
	"github.com/freshbulk/freshbulk-backend/pkg/db"
	"github.com/freshbulk/freshbulk-backend/pkg/db/models"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
	"github.com/freshbulk/freshbulk-backend/pkg/logger"
	"github.com/freshbulk/freshbulk-backend/pkg/metrics"
	"github.com/freshbulk/freshbulk-backend/pkg/outbox"
	"github.com/freshbulk/freshbulk-backend/pkg/outbox/payloads"
	"github.com/freshbulk/freshbulk-backend/pkg/redis"
)

const (
	orderNumberConstraint = "orders_order_number_key"

	maxOrderNumberAttempts = 5
	confirmLockScope       = "confirm"
	confirmLockTTL         = 30 * time.Second
	confirmLockWait        = 5 * time.Second
	confirmLockPoll        = 100 * time.Millisecond
)

// errAlreadyMaterialized marks a lost insert race. It never leaves this
// package: the existing order is returned instead.
var errAlreadyMaterialized = errors.New("order already materialized for session and vendor")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Catalog resolves product ids against the authoritative catalog.
type Catalog interface {
	Resolve(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// SessionRetriever reads a checkout session from the payment gateway.
type SessionRetriever interface {
	RetrieveSession(ctx context.Context, sessionID string) (*payments.Session, error)
}

// MaterializerDeps wires a Materializer. Locker, Metrics and Logger are optional.
type MaterializerDeps struct {
	Repo     Repository
	Tx       txRunner
	Gateway  SessionRetriever
	Catalog  Catalog
	Outbox   outboxPublisher
	Locker   redis.Locker
	Metrics  *metrics.OrderMetrics
	Logger   *logger.Logger
	Currency string
}

// Materializer turns a paid checkout session into one order per vendor.
type Materializer struct {
	repo      Repository
	tx        txRunner
	gateway   SessionRetriever
	catalog   Catalog
	outbox    outboxPublisher
	locker    redis.Locker
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
	currency  string
	now       func() time.Time
	newNumber func(time.Time) string
}

func NewMaterializer(deps MaterializerDeps) (*Materializer, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("product catalog required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case strings.TrimSpace(deps.Currency) == "":
		return nil, fmt.Errorf("currency required")
	}
	return &Materializer{
		repo:      deps.Repo,
		tx:        deps.Tx,
		gateway:   deps.Gateway,
		catalog:   deps.Catalog,
		outbox:    deps.Outbox,
		locker:    deps.Locker,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		currency:  strings.ToLower(strings.TrimSpace(deps.Currency)),
		now:       func() time.Time { return time.Now().UTC() },
		newNumber: NewOrderNumber,
	}, nil
}

// Materialize confirms sessionID with the gateway and upserts one order per
// vendor keyed by (session, vendor). Repeated calls return the same orders.
func (m *Materializer) Materialize(ctx context.Context, sessionID string, callerID uuid.UUID) (orders []models.Order, err error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if callerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if m.logg != nil {
		ctx = m.logg.WithPaymentSession(ctx, sessionID)
	}

	started := m.now()
	defer func() {
		result := "ok"
		if err != nil {
			result = strings.ToLower(string(pkgerrors.CodeOf(err)))
		}
		m.metrics.ObserveConfirmation(result, m.now().Sub(started))
	}()

	release := m.acquire(ctx, sessionID)
	defer release(context.WithoutCancel(ctx))

	session, err := m.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentProvider, err, "retrieve payment session")
	}
	if !session.PaymentStatus.IsPaid() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotCompleted, fmt.Sprintf("payment session is %s", session.PaymentStatus))
	}

	meta, err := payments.DecodeMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}
	if meta.BuyerID != callerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment session belongs to another buyer")
	}

	ids := make([]uuid.UUID, 0, len(meta.Lines))
	for _, line := range meta.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := m.catalog.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	split, err := helpers.SplitByVendor(meta.Lines, products)
	if err != nil {
		return nil, err
	}

	currency := strings.ToLower(session.Currency)
	if currency == "" {
		currency = m.currency
	}

	orders = make([]models.Order, 0, len(split.Groups))
	created := 0
	for _, group := range split.Groups {
		order, inserted, err := m.materializeGroup(ctx, session.ID, currency, meta, group)
		if err != nil {
			m.metrics.AddMaterialized(metrics.OutcomeCreated, created)
			m.metrics.AddMaterialized(metrics.OutcomeExisting, len(orders)-created)
			m.metrics.AddMaterialized(metrics.OutcomeFailed, 1)
			return nil, err
		}
		if inserted {
			created++
		}
		orders = append(orders, *order)
	}

	m.metrics.AddMaterialized(metrics.OutcomeCreated, created)
	m.metrics.AddMaterialized(metrics.OutcomeExisting, len(orders)-created)
	if m.logg != nil {
		m.logg.Info(m.logg.WithFields(ctx, map[string]any{
			"orders_created":  created,
			"orders_existing": len(orders) - created,
		}), "payment session materialized")
	}
	return orders, nil
}

// materializeGroup upserts one vendor's order. An order-number clash aborts
// the transaction, so each attempt runs in a fresh one.
func (m *Materializer) materializeGroup(ctx context.Context, sessionRef, currency string, meta payments.SessionMetadata, group helpers.VendorGroup) (*models.Order, bool, error) {
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		var order *models.Order
		err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := m.repo.WithTx(tx)
			row := m.buildOrder(sessionRef, currency, meta, group)

			inserted, err := repo.InsertIfAbsent(ctx, row)
			if err != nil {
				return err
			}
			if !inserted {
				return errAlreadyMaterialized
			}

			row.Items = buildItems(row.ID, group)
			if err := repo.CreateItems(ctx, row.Items); err != nil {
				return err
			}
			if err := m.outbox.Emit(ctx, tx, materializedEvent(row, meta.BuyerID)); err != nil {
				return err
			}
			order = row
			return nil
		})

		switch {
		case err == nil:
			return order, true, nil
		case errors.Is(err, errAlreadyMaterialized):
			return m.loadExisting(ctx, sessionRef, group.VendorID)
		case db.IsUniqueViolation(err, ""):
			// Either the session/vendor race surfaced as an error or the order
			// number clashed. An existing row settles the first case.
			existing, found, lookupErr := m.findExisting(ctx, sessionRef, group.VendorID)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			if found {
				return existing, false, nil
			}
			if !db.IsUniqueViolation(err, orderNumberConstraint) {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order materialization raced")
			}
			if m.logg != nil {
				m.logg.Warn(m.logg.WithField(ctx, "attempt", attempt+1), "order number collision, retrying")
			}
		default:
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: materialize vendor order")
		}
	}
	return nil, false, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique order number")
}

func (m *Materializer) loadExisting(ctx context.Context, sessionRef string, vendorID uuid.UUID) (*models.Order, bool, error) {
	existing, found, err := m.findExisting(ctx, sessionRef, vendorID)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, pkgerrors.New(pkgerrors.CodeInternal, "materialized order vanished")
	}
	return existing, false, nil
}

func (m *Materializer) findExisting(ctx context.Context, sessionRef string, vendorID uuid.UUID) (*models.Order, bool, error) {
	order, err := m.repo.FindBySessionAndVendor(ctx, sessionRef, vendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load materialized order")
	}
	return order, true, nil
}

func (m *Materializer) buildOrder(sessionRef, currency string, meta payments.SessionMetadata, group helpers.VendorGroup) *models.Order {
	now := m.now()
	return &models.Order{
		OrderNumber:       m.newNumber(now),
		PaymentSessionRef: sessionRef,
		BuyerID:           meta.BuyerID,
		VendorID:          group.VendorID,
		CustomerName:      meta.Delivery.FullName,
		ContactNumber:     meta.Delivery.Phone,
		DeliveryAddress:   meta.Delivery.Address,
		Status:            enums.OrderStatusPending,
		TotalCents:        group.SubtotalCents,
		Currency:          currency,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// acquire serializes concurrent confirmations of one session when Redis is
// available. Correctness never depends on it.
func (m *Materializer) acquire(ctx context.Context, sessionID string) func(context.Context) {
	noop := func(context.Context) {}
	if m.locker == nil {
		return noop
	}
	deadline := m.now().Add(confirmLockWait)
	for {
		release, acquired, err := m.locker.TryLock(ctx, confirmLockScope, sessionID, confirmLockTTL)
		if err != nil {
			if m.logg != nil {
				m.logg.Warn(ctx, "confirm lock unavailable, continuing without it")
			}
			return noop
		}
		if acquired {
			return release
		}
		if m.now().After(deadline) {
			return noop
		}
		select {
		case <-ctx.Done():
			return noop
		case <-time.After(confirmLockPoll):
		}
	}
}

func buildItems(orderID uuid.UUID, group helpers.VendorGroup) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(group.Lines))
	for i, line := range group.Lines {
		items = append(items, models.OrderItem{
			OrderID:        orderID,
			ProductID:      line.ProductID,
			VendorID:       line.VendorID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			LineTotalCents: line.LineTotalCents,
			Position:       i,
		})
	}
	return items
}

func materializedEvent(order *models.Order, buyerID uuid.UUID) outbox.DomainEvent {
	lines := make([]payloads.OrderLineEvent, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, payloads.OrderLineEvent{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderMaterialized,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: buyerID, Role: enums.RoleBuyer},
		OccurredAt:    order.CreatedAt,
		Data: payloads.OrderMaterializedEvent{
			OrderID:           order.ID,
			OrderNumber:       order.OrderNumber,
			PaymentSessionRef: order.PaymentSessionRef,
			BuyerID:           order.BuyerID,
			VendorID:          order.VendorID,
			TotalCents:        order.TotalCents,
			Currency:          order.Currency,
			Items:             lines,
			Status:            order.Status,
			CreatedAt:         order.CreatedAt,
		},
	}
}
