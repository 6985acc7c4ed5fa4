package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/freshbulk/freshbulk-backend/internal/cart"
	"github.com/freshbulk/freshbulk-backend/internal/payments"
	product "github.com/freshbulk/freshbulk-backend/internal/products"
	"github.com/freshbulk/freshbulk-backend/pkg/db"
	"github.com/freshbulk/freshbulk-backend/pkg/db/models"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	"github.com/freshbulk/freshbulk-backend/pkg/outbox"
)

type fakeGateway struct {
	mu       sync.Mutex
	sessions map[string]*payments.Session
	calls    int
}

func (g *fakeGateway) RetrieveSession(_ context.Context, id string) (*payments.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	session, ok := g.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such session %s", id)
	}
	return session, nil
}

type fixture struct {
	conn         *gorm.DB
	repo         Repository
	gateway      *fakeGateway
	materializer *Materializer
	status       *StatusMachine
	service      Service

	buyer   uuid.UUID
	vendor1 uuid.UUID
	vendor2 uuid.UUID
	tomato  models.Product
	mango   models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())))
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}, &models.OutboxEvent{}))

	f := &fixture{
		conn:    conn,
		repo:    NewRepository(conn),
		gateway: &fakeGateway{sessions: map[string]*payments.Session{}},
		buyer:   uuid.New(),
		vendor1: uuid.New(),
		vendor2: uuid.New(),
	}
	f.tomato = f.seedProduct(t, f.vendor1, "Tomato", 4500)
	f.mango = f.seedProduct(t, f.vendor2, "Mango", 8000)

	catalog, err := product.NewService(product.NewRepository(conn))
	require.NoError(t, err)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	tx := db.Wrap(conn)

	f.materializer, err = NewMaterializer(MaterializerDeps{
		Repo:     f.repo,
		Tx:       tx,
		Gateway:  f.gateway,
		Catalog:  catalog,
		Outbox:   emitter,
		Currency: "inr",
	})
	require.NoError(t, err)

	f.status, err = NewStatusMachine(f.repo, tx, emitter, nil)
	require.NoError(t, err)
	f.service, err = NewService(f.repo, f.status)
	require.NoError(t, err)
	return f
}

func (f *fixture) seedProduct(t *testing.T, vendorID uuid.UUID, name string, priceCents int64) models.Product {
	t.Helper()
	row := models.Product{
		VendorID:   vendorID,
		Name:       name,
		PriceCents: priceCents,
		Category:   enums.ProductCategoryVegetable,
		ImageURL:   "https://cdn.example.com/" + name + ".jpg",
	}
	require.NoError(t, f.conn.Create(&row).Error)
	return row
}

// paidSession registers a gateway session for buyer with the given lines.
func (f *fixture) paidSession(t *testing.T, id string, status enums.PaymentStatus, lines ...cart.Line) {
	t.Helper()
	meta, err := payments.EncodeMetadata(f.buyer, cart.Normalized{
		Lines:    lines,
		Delivery: cart.Delivery{FullName: "Asha Rao", Phone: "9876543210", Address: "12 Market Road"},
	})
	require.NoError(t, err)
	f.gateway.sessions[id] = &payments.Session{ID: id, PaymentStatus: status, Currency: "inr", Metadata: meta}
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) seedOrder(t *testing.T, sessionRef string, buyerID, vendorID uuid.UUID, createdAt time.Time) models.Order {
	t.Helper()
	row := models.Order{
		OrderNumber:       NewOrderNumber(createdAt),
		PaymentSessionRef: sessionRef,
		BuyerID:           buyerID,
		VendorID:          vendorID,
		CustomerName:      "Asha Rao",
		ContactNumber:     "9876543210",
		DeliveryAddress:   "12 Market Road",
		Status:            enums.OrderStatusPending,
		TotalCents:        1000,
		Currency:          "inr",
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
	require.NoError(t, f.conn.Create(&row).Error)
	return row
}
