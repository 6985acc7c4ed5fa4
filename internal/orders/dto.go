package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshbulk/freshbulk-backend/pkg/db/models"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	"github.com/freshbulk/freshbulk-backend/pkg/money"
)

// OrderDTO is the order payload returned to buyers and vendors.
type OrderDTO struct {
	ID                uuid.UUID          `json:"id"`
	OrderNumber       string             `json:"order_number"`
	BuyerID           uuid.UUID          `json:"buyer_id"`
	VendorID          uuid.UUID          `json:"vendor_id"`
	CustomerName      string             `json:"customer_name"`
	ContactNumber     string             `json:"contact_number"`
	DeliveryAddress   string             `json:"delivery_address"`
	Status            enums.OrderStatus  `json:"status"`
	NextStatus        *enums.OrderStatus `json:"next_status,omitempty"`
	TotalCents        int64              `json:"total_cents"`
	Total             string             `json:"total"`
	Currency          string             `json:"currency"`
	PaymentSessionRef string             `json:"payment_session_ref"`
	Items             []OrderItemDTO     `json:"items"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type OrderItemDTO struct {
	ProductID      uuid.UUID `json:"product_id"`
	VendorID       uuid.UUID `json:"vendor_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	LineTotalCents int64     `json:"line_total_cents"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func NewOrderDTO(o *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		BuyerID:           o.BuyerID,
		VendorID:          o.VendorID,
		CustomerName:      o.CustomerName,
		ContactNumber:     o.ContactNumber,
		DeliveryAddress:   o.DeliveryAddress,
		Status:            o.Status,
		TotalCents:        o.TotalCents,
		Total:             money.Format(o.TotalCents),
		Currency:          o.Currency,
		PaymentSessionRef: o.PaymentSessionRef,
		Items:             make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	if next, ok := o.Status.Next(); ok {
		dto.NextStatus = &next
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:      item.ProductID,
			VendorID:       item.VendorID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
	}
	return dto
}

func NewOrderDTOs(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewOrderDTO(&rows[i]))
	}
	return out
}
