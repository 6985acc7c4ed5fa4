package orders

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/freshbulk/freshbulk-backend/internal/cart"
	"github.com/freshbulk/freshbulk-backend/internal/payments"
	"github.com/freshbulk/freshbulk-backend/pkg/db/models"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
	"github.com/freshbulk/freshbulk-backend/pkg/outbox"
)

func TestMaterializeSplitsPaidSessionPerVendor(t *testing.T) {
	f := newFixture(t)
	f.paidSession(t, "cs_paid", enums.PaymentStatusPaid,
		cart.Line{ProductID: f.tomato.ID, Quantity: 3},
		cart.Line{ProductID: f.mango.ID, Quantity: 2},
	)

	orders, err := f.materializer.Materialize(context.Background(), "cs_paid", f.buyer)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	require.Equal(t, f.vendor1, orders[0].VendorID)
	require.Equal(t, int64(13500), orders[0].TotalCents)
	require.Equal(t, f.vendor2, orders[1].VendorID)
	require.Equal(t, int64(16000), orders[1].TotalCents)

	for _, order := range orders {
		require.Equal(t, enums.OrderStatusPending, order.Status)
		require.Equal(t, "cs_paid", order.PaymentSessionRef)
		require.Equal(t, f.buyer, order.BuyerID)
		require.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
		require.Len(t, order.Items, 1)
		require.Equal(t, order.VendorID, order.Items[0].VendorID)
	}
	require.NotEqual(t, orders[0].OrderNumber, orders[1].OrderNumber)
	require.Equal(t, int64(2), f.count(t, &models.OrderItem{}))

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 2)
	for _, event := range events {
		require.Equal(t, enums.EventOrderMaterialized, event.EventType)
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.paidSession(t, "cs_twice", enums.PaymentStatusPaid,
		cart.Line{ProductID: f.tomato.ID, Quantity: 3},
		cart.Line{ProductID: f.mango.ID, Quantity: 2},
	)
	ctx := context.Background()

	first, err := f.materializer.Materialize(ctx, "cs_twice", f.buyer)
	require.NoError(t, err)
	second, err := f.materializer.Materialize(ctx, "cs_twice", f.buyer)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		require.Equal(t, first[i].ID, second[i].ID)
		require.Equal(t, first[i].OrderNumber, second[i].OrderNumber)
		require.Len(t, second[i].Items, 1)
	}
	require.Equal(t, int64(2), f.count(t, &models.Order{}))
	require.Equal(t, int64(2), f.count(t, &models.OrderItem{}))
	require.Equal(t, int64(2), f.count(t, &models.OutboxEvent{}))
}

func TestMaterializeCompletesPartiallyMaterializedSession(t *testing.T) {
	f := newFixture(t)
	f.paidSession(t, "cs_partial", enums.PaymentStatusPaid,
		cart.Line{ProductID: f.tomato.ID, Quantity: 3},
		cart.Line{ProductID: f.mango.ID, Quantity: 2},
	)
	existing := f.seedOrder(t, "cs_partial", f.buyer, f.vendor1, time.Now().UTC())

	orders, err := f.materializer.Materialize(context.Background(), "cs_partial", f.buyer)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, existing.ID, orders[0].ID)
	require.Equal(t, f.vendor2, orders[1].VendorID)
	require.Equal(t, int64(2), f.count(t, &models.Order{}))
	require.Equal(t, int64(1), f.count(t, &models.OutboxEvent{}))
}

func TestMaterializeRejectsUnpaidSession(t *testing.T) {
	f := newFixture(t)
	f.paidSession(t, "cs_unpaid", enums.PaymentStatusUnpaid, cart.Line{ProductID: f.tomato.ID, Quantity: 1})

	_, err := f.materializer.Materialize(context.Background(), "cs_unpaid", f.buyer)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentNotCompleted), "got %v", err)
	require.Zero(t, f.count(t, &models.Order{}))
}

func TestMaterializeRejectsOtherBuyer(t *testing.T) {
	f := newFixture(t)
	f.paidSession(t, "cs_spoof", enums.PaymentStatusPaid, cart.Line{ProductID: f.tomato.ID, Quantity: 1})

	_, err := f.materializer.Materialize(context.Background(), "cs_spoof", uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)
	require.Zero(t, f.count(t, &models.Order{}))
}

func TestMaterializeFailsWholeSessionOnMissingProduct(t *testing.T) {
	f := newFixture(t)
	f.paidSession(t, "cs_missing", enums.PaymentStatusPaid,
		cart.Line{ProductID: f.tomato.ID, Quantity: 1},
		cart.Line{ProductID: f.mango.ID, Quantity: 1},
	)
	require.NoError(t, f.conn.Delete(&models.Product{}, "id = ?", f.mango.ID).Error)

	_, err := f.materializer.Materialize(context.Background(), "cs_missing", f.buyer)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProductNotFound), "got %v", err)
	require.Zero(t, f.count(t, &models.Order{}))
	require.Zero(t, f.count(t, &models.OutboxEvent{}))
}

func TestMaterializeSnapshotsCatalogPrice(t *testing.T) {
	f := newFixture(t)
	f.paidSession(t, "cs_price", enums.PaymentStatusPaid, cart.Line{ProductID: f.tomato.ID, Quantity: 2})
	ctx := context.Background()

	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", f.tomato.ID).Update("price_cents", 5000).Error)
	orders, err := f.materializer.Materialize(ctx, "cs_price", f.buyer)
	require.NoError(t, err)
	require.Equal(t, int64(5000), orders[0].Items[0].UnitPriceCents)
	require.Equal(t, int64(10000), orders[0].TotalCents)

	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", f.tomato.ID).Update("price_cents", 9900).Error)
	reloaded, err := f.repo.FindByRef(ctx, orders[0].ID.String())
	require.NoError(t, err)
	require.Equal(t, int64(5000), reloaded.Items[0].UnitPriceCents)
	require.Equal(t, int64(10000), reloaded.TotalCents)

	again, err := f.materializer.Materialize(ctx, "cs_price", f.buyer)
	require.NoError(t, err)
	require.Equal(t, int64(10000), again[0].TotalCents)
}

func TestMaterializeRetriesOrderNumberCollision(t *testing.T) {
	f := newFixture(t)
	taken := f.seedOrder(t, "cs_other", uuid.New(), f.vendor1, time.Now().UTC())
	f.paidSession(t, "cs_clash", enums.PaymentStatusPaid, cart.Line{ProductID: f.tomato.ID, Quantity: 1})

	calls := 0
	f.materializer.newNumber = func(now time.Time) string {
		calls++
		if calls == 1 {
			return taken.OrderNumber
		}
		return NewOrderNumber(now)
	}

	orders, err := f.materializer.Materialize(context.Background(), "cs_clash", f.buyer)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.NotEqual(t, taken.OrderNumber, orders[0].OrderNumber)
	require.Equal(t, 2, calls)
}

func TestMaterializeValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.materializer.Materialize(context.Background(), " ", f.buyer)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.materializer.Materialize(context.Background(), "cs_1", uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = f.materializer.Materialize(context.Background(), "cs_unknown", f.buyer)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentProvider), "got %v", err)
}

func TestNewOrderNumberFormat(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	number := NewOrderNumber(now)
	require.True(t, strings.HasPrefix(number, "ORD-20250301-"), number)
	require.Len(t, number, len("ORD-20250301-")+6)
	require.NotEqual(t, number, NewOrderNumber(now))
}

func TestMaterializeConcurrentConfirmationsConverge(t *testing.T) {
	f := newFixture(t)
	f.paidSession(t, "cs_concurrent", enums.PaymentStatusPaid,
		cart.Line{ProductID: f.tomato.ID, Quantity: 3},
		cart.Line{ProductID: f.mango.ID, Quantity: 2},
	)

	const callers = 8
	results := make([][]models.Order, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.materializer.Materialize(context.Background(), "cs_concurrent", f.buyer)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		require.Len(t, results[i], 2, "caller %d", i)
		for j := range results[0] {
			require.Equal(t, results[0][j].ID, results[i][j].ID, "caller %d order %d", i, j)
		}
	}
	require.Equal(t, int64(2), f.count(t, &models.Order{}))
	require.Equal(t, int64(2), f.count(t, &models.OrderItem{}))
	require.Equal(t, int64(2), f.count(t, &models.OutboxEvent{}))
}

// racingRepo fails inserts the way Postgres does when another transaction
// committed the same row first.
type racingRepo struct {
	Repository
	insertErrs []error
	winner     *models.Order
	inserts    int
	items      int
}

func (r *racingRepo) WithTx(*gorm.DB) Repository { return r }

func (r *racingRepo) InsertIfAbsent(_ context.Context, order *models.Order) (bool, error) {
	r.inserts++
	if len(r.insertErrs) > 0 {
		err := r.insertErrs[0]
		r.insertErrs = r.insertErrs[1:]
		return false, err
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return true, nil
}

func (r *racingRepo) CreateItems(_ context.Context, items []models.OrderItem) error {
	r.items += len(items)
	return nil
}

func (r *racingRepo) FindBySessionAndVendor(context.Context, string, uuid.UUID) (*models.Order, error) {
	if r.winner == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.winner, nil
}

type inlineTx struct{}

func (inlineTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type discardOutbox struct{ emitted int }

func (d *discardOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	d.emitted++
	return nil
}

type staticCatalog map[uuid.UUID]models.Product

func (c staticCatalog) Resolve(context.Context, []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	return c, nil
}

func newRacingMaterializer(t *testing.T, repo *racingRepo) (*Materializer, *discardOutbox, uuid.UUID) {
	t.Helper()
	buyer := uuid.New()
	product := models.Product{ID: uuid.New(), VendorID: uuid.New(), Name: "Tomato", PriceCents: 4500}
	meta, err := payments.EncodeMetadata(buyer, cart.Normalized{
		Lines:    []cart.Line{{ProductID: product.ID, Quantity: 2}},
		Delivery: cart.Delivery{FullName: "Asha Rao", Phone: "9876543210", Address: "12 Market Road"},
	})
	require.NoError(t, err)

	gateway := &fakeGateway{sessions: map[string]*payments.Session{
		"cs_race": {ID: "cs_race", PaymentStatus: enums.PaymentStatusPaid, Currency: "inr", Metadata: meta},
	}}
	emitted := &discardOutbox{}
	m, err := NewMaterializer(MaterializerDeps{
		Repo:     repo,
		Tx:       inlineTx{},
		Gateway:  gateway,
		Catalog:  staticCatalog{product.ID: product},
		Outbox:   emitted,
		Currency: "inr",
	})
	require.NoError(t, err)
	return m, emitted, buyer
}

func TestMaterializeReturnsWinnerOnSessionVendorViolation(t *testing.T) {
	t.Parallel()

	winner := &models.Order{ID: uuid.New(), OrderNumber: "ORD-20250301-AAAAAA", PaymentSessionRef: "cs_race"}
	repo := &racingRepo{
		insertErrs: []error{&pgconn.PgError{Code: "23505", ConstraintName: "orders_payment_session_vendor_key"}},
		winner:     winner,
	}
	m, emitted, buyer := newRacingMaterializer(t, repo)

	orders, err := m.Materialize(context.Background(), "cs_race", buyer)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, winner.ID, orders[0].ID)
	require.Equal(t, 1, repo.inserts)
	require.Zero(t, repo.items)
	require.Zero(t, emitted.emitted)
}

func TestMaterializeUniqueViolationWithoutWinner(t *testing.T) {
	t.Parallel()

	t.Run("order number clash retries", func(t *testing.T) {
		t.Parallel()
		repo := &racingRepo{insertErrs: []error{&pgconn.PgError{Code: "23505", ConstraintName: orderNumberConstraint}}}
		m, emitted, buyer := newRacingMaterializer(t, repo)

		orders, err := m.Materialize(context.Background(), "cs_race", buyer)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		require.Equal(t, 2, repo.inserts)
		require.Equal(t, 1, repo.items)
		require.Equal(t, 1, emitted.emitted)
	})

	t.Run("other constraint is a conflict", func(t *testing.T) {
		t.Parallel()
		repo := &racingRepo{insertErrs: []error{&pgconn.PgError{Code: "23505", ConstraintName: "orders_payment_session_vendor_key"}}}
		m, _, buyer := newRacingMaterializer(t, repo)

		_, err := m.Materialize(context.Background(), "cs_race", buyer)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
		require.Equal(t, 1, repo.inserts)
	})
}
