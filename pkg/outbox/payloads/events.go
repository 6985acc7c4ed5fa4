package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshbulk/freshbulk-backend/pkg/enums"
)

// OrderMaterializedEvent is emitted once per vendor order created from a
// paid payment session.
type OrderMaterializedEvent struct {
	OrderID           uuid.UUID         `json:"order_id" validate:"required"`
	OrderNumber       string            `json:"order_number" validate:"required"`
	PaymentSessionRef string            `json:"payment_session_ref" validate:"required"`
	BuyerID           uuid.UUID         `json:"buyer_id" validate:"required"`
	VendorID          uuid.UUID         `json:"vendor_id" validate:"required"`
	TotalCents        int64             `json:"total_cents" validate:"gte=0"`
	Currency          string            `json:"currency"`
	Items             []OrderLineEvent  `json:"items" validate:"required,min=1,dive"`
	Status            enums.OrderStatus `json:"status" validate:"required"`
	CreatedAt         time.Time         `json:"created_at"`
}

type OrderLineEvent struct {
	ProductID      uuid.UUID `json:"product_id" validate:"required"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity" validate:"gt=0"`
	UnitPriceCents int64     `json:"unit_price_cents" validate:"gte=0"`
}

// OrderStatusChangedEvent is emitted after a successful status transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id" validate:"required"`
	OrderNumber string            `json:"order_number"`
	BuyerID     uuid.UUID         `json:"buyer_id"`
	VendorID    uuid.UUID         `json:"vendor_id" validate:"required"`
	From        enums.OrderStatus `json:"from" validate:"required"`
	To          enums.OrderStatus `json:"to" validate:"required,nefield=From"`
	ChangedAt   time.Time         `json:"changed_at"`
}
