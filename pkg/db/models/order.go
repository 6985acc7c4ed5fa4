package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshbulk/freshbulk-backend/pkg/enums"
)

// Order is the per-vendor slice of a paid checkout session. The pair
// (payment_session_ref, vendor_id) is unique.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string            `gorm:"column:order_number;not null;uniqueIndex:orders_order_number_key"`
	PaymentSessionRef string            `gorm:"column:payment_session_ref;not null;uniqueIndex:orders_payment_session_vendor_key,priority:1"`
	BuyerID           uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	VendorID          uuid.UUID         `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:orders_payment_session_vendor_key,priority:2"`
	CustomerName      string            `gorm:"column:customer_name;not null"`
	ContactNumber     string            `gorm:"column:contact_number;not null"`
	DeliveryAddress   string            `gorm:"column:delivery_address;not null"`
	Status            enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	TotalCents        int64             `gorm:"column:total_cents;not null"`
	Currency          string            `gorm:"column:currency;not null"`
	Items             []OrderItem       `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
