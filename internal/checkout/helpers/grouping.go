package helpers

import (
	"github.com/google/uuid"

	"github.com/freshbulk/freshbulk-backend/internal/cart"
	"github.com/freshbulk/freshbulk-backend/pkg/db/models"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
)

// SplitLine is a cart line priced from the catalog.
type SplitLine struct {
	ProductID      uuid.UUID `json:"product_id"`
	VendorID       uuid.UUID `json:"vendor_id"`
	Name           string    `json:"name"`
	ImageURL       string    `json:"image_url"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	LineTotalCents int64     `json:"line_total_cents"`
}

// VendorGroup is the draft of one vendor's order.
type VendorGroup struct {
	VendorID      uuid.UUID   `json:"vendor_id"`
	Lines         []SplitLine `json:"items"`
	SubtotalCents int64       `json:"subtotal_cents"`
}

// Split is the vendor partition of a cart.
type Split struct {
	Groups     []VendorGroup `json:"vendors"`
	TotalCents int64         `json:"total_cents"`
}

// SplitByVendor groups lines by the owning vendor of each resolved product.
// Vendors appear in first-seen order and lines keep their cart order inside a
// group. Any line without a catalog product fails the whole split.
func SplitByVendor(lines []cart.Line, products map[uuid.UUID]models.Product) (Split, error) {
	var missing []string
	for _, line := range lines {
		if _, ok := products[line.ProductID]; !ok {
			missing = append(missing, line.ProductID.String())
		}
	}
	if len(missing) > 0 {
		return Split{}, pkgerrors.New(pkgerrors.CodeProductNotFound, "one or more products are no longer available").
			WithDetails(map[string]any{"missing_product_ids": missing})
	}

	var split Split
	groupIndex := make(map[uuid.UUID]int)
	for _, line := range lines {
		product := products[line.ProductID]
		priced := SplitLine{
			ProductID:      product.ID,
			VendorID:       product.VendorID,
			Name:           product.Name,
			ImageURL:       product.ImageURL,
			Quantity:       line.Quantity,
			UnitPriceCents: product.PriceCents,
			LineTotalCents: product.PriceCents * int64(line.Quantity),
		}

		idx, ok := groupIndex[product.VendorID]
		if !ok {
			idx = len(split.Groups)
			groupIndex[product.VendorID] = idx
			split.Groups = append(split.Groups, VendorGroup{VendorID: product.VendorID})
		}
		group := &split.Groups[idx]
		group.Lines = append(group.Lines, priced)
		group.SubtotalCents += priced.LineTotalCents
		split.TotalCents += priced.LineTotalCents
	}
	return split, nil
}

// Group returns the group for vendorID, if present.
func (s Split) Group(vendorID uuid.UUID) (VendorGroup, bool) {
	for _, group := range s.Groups {
		if group.VendorID == vendorID {
			return group, true
		}
	}
	return VendorGroup{}, false
}
