package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Input is a client-submitted cart plus delivery details.
type Input struct {
	Items    []LineInput   `json:"items"`
	Delivery DeliveryInput `json:"delivery"`
}

type LineInput struct {
	ProductRef string        `json:"product_id"`
	Quantity   int           `json:"quantity"`
	Display    *DisplayInput `json:"display,omitempty"`
}

// DisplayInput is what the client showed the buyer. It is only used to label
// the hosted payment page and never for accounting.
type DisplayInput struct {
	Name     string          `json:"name"`
	ImageURL string          `json:"image_url"`
	Price    decimal.Decimal `json:"price"`
}

type DeliveryInput struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// Normalized is a validated cart with one line per product.
type Normalized struct {
	Lines    []Line
	Delivery Delivery
}

type Line struct {
	ProductID uuid.UUID
	Quantity  int
	Display   *Display
}

type Display struct {
	Name       string
	ImageURL   string
	PriceCents int64
}

type Delivery struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// ProductIDs returns the distinct product ids in line order.
func (n Normalized) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(n.Lines))
	for _, line := range n.Lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// Quantities returns the quantity per product.
func (n Normalized) Quantities() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(n.Lines))
	for _, line := range n.Lines {
		out[line.ProductID] = line.Quantity
	}
	return out
}
