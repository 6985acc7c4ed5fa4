package payments

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/freshbulk/freshbulk-backend/internal/cart"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
)

const (
	MetadataBuyerID          = "buyer_id"
	MetadataDeliveryFullName = "delivery_full_name"
	MetadataDeliveryPhone    = "delivery_phone"
	MetadataDeliveryAddress  = "delivery_address"
	MetadataCartChunks       = "cart_chunks"
	metadataCartPrefix       = "cart_"

	// Stripe caps metadata at 50 keys of 500 characters each.
	maxMetadataValueLen = 500
	maxMetadataKeys     = 50
	fixedMetadataKeys   = 5
	maxCartChunks       = maxMetadataKeys - fixedMetadataKeys
)

// minimalLine is the price-free cart row stored on the session.
type minimalLine struct {
	ProductID string `json:"p"`
	Quantity  int    `json:"q"`
}

// SessionMetadata is what a paid session carries back to materialization.
type SessionMetadata struct {
	BuyerID  uuid.UUID
	Delivery cart.Delivery
	Lines    []cart.Line
}

// EncodeMetadata stores the buyer, delivery details and a minimal cart of
// product ids and quantities. Prices are deliberately left out.
func EncodeMetadata(buyerID uuid.UUID, normalized cart.Normalized) (map[string]string, error) {
	rows := make([]minimalLine, 0, len(normalized.Lines))
	for _, line := range normalized.Lines {
		rows = append(rows, minimalLine{ProductID: line.ProductID.String(), Quantity: line.Quantity})
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart metadata")
	}

	chunks := chunkString(string(raw), maxMetadataValueLen)
	if len(chunks) > maxCartChunks {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart too large for a single checkout").
			WithDetails(map[string]string{"items": fmt.Sprintf("must fit in %d metadata chunks", maxCartChunks)})
	}

	meta := map[string]string{
		MetadataBuyerID:          buyerID.String(),
		MetadataDeliveryFullName: truncate(normalized.Delivery.FullName),
		MetadataDeliveryPhone:    normalized.Delivery.Phone,
		MetadataDeliveryAddress:  truncate(normalized.Delivery.Address),
		MetadataCartChunks:       strconv.Itoa(len(chunks)),
	}
	for i, chunk := range chunks {
		meta[metadataCartPrefix+strconv.Itoa(i)] = chunk
	}
	return meta, nil
}

// DecodeMetadata rebuilds the minimal cart from a session. Any missing or
// malformed key is a validation failure.
func DecodeMetadata(meta map[string]string) (SessionMetadata, error) {
	invalid := func(field, msg string) error {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment session metadata").
			WithDetails(map[string]string{field: msg})
	}

	buyerID, err := uuid.Parse(meta[MetadataBuyerID])
	if err != nil {
		return SessionMetadata{}, invalid(MetadataBuyerID, "must be a valid id")
	}

	count, err := strconv.Atoi(meta[MetadataCartChunks])
	if err != nil || count < 1 || count > maxCartChunks {
		return SessionMetadata{}, invalid(MetadataCartChunks, "must be a positive chunk count")
	}
	var sb strings.Builder
	for i := 0; i < count; i++ {
		chunk, ok := meta[metadataCartPrefix+strconv.Itoa(i)]
		if !ok {
			return SessionMetadata{}, invalid(metadataCartPrefix+strconv.Itoa(i), "is missing")
		}
		sb.WriteString(chunk)
	}

	var rows []minimalLine
	if err := json.Unmarshal([]byte(sb.String()), &rows); err != nil {
		return SessionMetadata{}, invalid("cart", "is not valid json")
	}
	if len(rows) == 0 {
		return SessionMetadata{}, invalid("cart", "is empty")
	}

	lines := make([]cart.Line, 0, len(rows))
	for i, row := range rows {
		productID, err := uuid.Parse(row.ProductID)
		if err != nil {
			return SessionMetadata{}, invalid(fmt.Sprintf("cart[%d].p", i), "must be a valid product id")
		}
		if row.Quantity < 1 {
			return SessionMetadata{}, invalid(fmt.Sprintf("cart[%d].q", i), "must be at least 1")
		}
		lines = append(lines, cart.Line{ProductID: productID, Quantity: row.Quantity})
	}

	return SessionMetadata{
		BuyerID: buyerID,
		Delivery: cart.Delivery{
			FullName: meta[MetadataDeliveryFullName],
			Phone:    meta[MetadataDeliveryPhone],
			Address:  meta[MetadataDeliveryAddress],
		},
		Lines: lines,
	}, nil
}

func chunkString(value string, size int) []string {
	if value == "" {
		return nil
	}
	chunks := make([]string, 0, len(value)/size+1)
	for len(value) > size {
		chunks = append(chunks, value[:size])
		value = value[size:]
	}
	return append(chunks, value)
}

func truncate(value string) string {
	if utf8.RuneCountInString(value) <= maxMetadataValueLen {
		return value
	}
	runes := []rune(value)
	return string(runes[:maxMetadataValueLen])
}
