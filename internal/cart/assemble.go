package cart

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
	"github.com/freshbulk/freshbulk-backend/pkg/money"
)

const (
	phoneDigits     = 10
	maxLineQuantity = 100000
	maxNameLength   = 120
	maxAddressLen   = 500
)

// Assemble validates a client cart and folds duplicate products into a single
// line. The first occurrence of a product keeps its position and display info.
func Assemble(in Input) (Normalized, error) {
	details := map[string]string{}
	lines := assembleLines(in.Items, details)

	delivery, deliveryDetails := normalizeDelivery(in.Delivery)
	for k, v := range deliveryDetails {
		details[k] = v
	}

	if len(details) > 0 {
		return Normalized{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart").WithDetails(details)
	}
	return Normalized{Lines: lines, Delivery: delivery}, nil
}

// AssembleItems validates only the line items, for previews taken before the
// buyer has entered delivery details.
func AssembleItems(items []LineInput) ([]Line, error) {
	details := map[string]string{}
	lines := assembleLines(items, details)
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart").WithDetails(details)
	}
	return lines, nil
}

func assembleLines(items []LineInput, details map[string]string) []Line {
	if len(items) == 0 {
		details["items"] = "cart must contain at least one item"
	}

	lines := make([]Line, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)

		productID, err := uuid.Parse(strings.TrimSpace(item.ProductRef))
		if err != nil || productID == uuid.Nil {
			details[field+".product_id"] = "must be a valid product id"
			continue
		}
		if item.Quantity < 1 {
			details[field+".quantity"] = "must be at least 1"
			continue
		}

		display, err := normalizeDisplay(item.Display)
		if err != nil {
			details[field+".display"] = err.Error()
			continue
		}

		if pos, seen := index[productID]; seen {
			lines[pos].Quantity += item.Quantity
			if lines[pos].Quantity > maxLineQuantity {
				details[field+".quantity"] = fmt.Sprintf("must be at most %d per product", maxLineQuantity)
			}
			continue
		}
		if item.Quantity > maxLineQuantity {
			details[field+".quantity"] = fmt.Sprintf("must be at most %d per product", maxLineQuantity)
			continue
		}
		index[productID] = len(lines)
		lines = append(lines, Line{ProductID: productID, Quantity: item.Quantity, Display: display})
	}
	return lines
}

func normalizeDisplay(in *DisplayInput) (*Display, error) {
	if in == nil {
		return nil, nil
	}
	cents, err := money.ToMinor(in.Price)
	if err != nil {
		return nil, fmt.Errorf("price %s", err.Error())
	}
	return &Display{
		Name:       strings.TrimSpace(in.Name),
		ImageURL:   strings.TrimSpace(in.ImageURL),
		PriceCents: cents,
	}, nil
}

func normalizeDelivery(in DeliveryInput) (Delivery, map[string]string) {
	details := map[string]string{}
	out := Delivery{
		FullName: strings.TrimSpace(in.FullName),
		Phone:    strings.TrimSpace(in.Phone),
		Address:  strings.TrimSpace(in.Address),
	}

	switch {
	case out.FullName == "":
		details["delivery.full_name"] = "is required"
	case utf8.RuneCountInString(out.FullName) > maxNameLength:
		details["delivery.full_name"] = fmt.Sprintf("must be at most %d characters", maxNameLength)
	}
	if !isPhone(out.Phone) {
		details["delivery.phone"] = fmt.Sprintf("must be exactly %d digits", phoneDigits)
	}
	switch {
	case out.Address == "":
		details["delivery.address"] = "is required"
	case utf8.RuneCountInString(out.Address) > maxAddressLen:
		details["delivery.address"] = fmt.Sprintf("must be at most %d characters", maxAddressLen)
	}
	return out, details
}

func isPhone(value string) bool {
	if len(value) != phoneDigits {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
