package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/freshbulk/freshbulk-backend/internal/cart"
	"github.com/freshbulk/freshbulk-backend/internal/checkout/helpers"
	"github.com/freshbulk/freshbulk-backend/internal/orders"
	"github.com/freshbulk/freshbulk-backend/internal/payments"
	"github.com/freshbulk/freshbulk-backend/pkg/db/models"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
	"github.com/freshbulk/freshbulk-backend/pkg/money"
)

type catalog interface {
	Resolve(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type sessionFactory interface {
	Create(ctx context.Context, buyerID uuid.UUID, normalized cart.Normalized, idempotencyKey string) (*payments.CheckoutSession, error)
}

type materializer interface {
	Materialize(ctx context.Context, sessionID string, callerID uuid.UUID) ([]models.Order, error)
}

// Service orchestrates the buyer side of checkout: preview, payment session
// creation and confirmation.
type Service interface {
	PreviewCart(ctx context.Context, items []cart.LineInput) (*Preview, error)
	InitiateCheckout(ctx context.Context, buyerID uuid.UUID, input cart.Input, idempotencyKey string) (*payments.CheckoutSession, error)
	ConfirmPayment(ctx context.Context, sessionID string, buyerID uuid.UUID) (*Confirmation, error)
}

// Preview is the vendor split of a cart priced from the catalog.
type Preview struct {
	helpers.Split
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

// Confirmation lists the vendor orders backing one paid session.
type Confirmation struct {
	SessionID  string            `json:"session_id"`
	Orders     []orders.OrderDTO `json:"orders"`
	TotalCents int64             `json:"total_cents"`
	Total      string            `json:"total"`
}

type service struct {
	catalog      catalog
	sessions     sessionFactory
	materializer materializer
	currency     string
}

// NewService builds the checkout service.
func NewService(catalog catalog, sessions sessionFactory, materializer materializer, currency string) (Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("payment session factory required")
	}
	if materializer == nil {
		return nil, fmt.Errorf("order materializer required")
	}
	if strings.TrimSpace(currency) == "" {
		return nil, fmt.Errorf("currency required")
	}
	return &service{
		catalog:      catalog,
		sessions:     sessions,
		materializer: materializer,
		currency:     strings.ToLower(strings.TrimSpace(currency)),
	}, nil
}

func (s *service) PreviewCart(ctx context.Context, items []cart.LineInput) (*Preview, error) {
	lines, err := cart.AssembleItems(items)
	if err != nil {
		return nil, err
	}
	split, _, err := s.split(ctx, lines)
	if err != nil {
		return nil, err
	}
	return &Preview{Split: split, Total: money.Format(split.TotalCents), Currency: s.currency}, nil
}

// InitiateCheckout validates the cart against the catalog and opens one
// payment session for every vendor in it. Lines the client sent without
// display info are labelled from the catalog.
func (s *service) InitiateCheckout(ctx context.Context, buyerID uuid.UUID, input cart.Input, idempotencyKey string) (*payments.CheckoutSession, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	normalized, err := cart.Assemble(input)
	if err != nil {
		return nil, err
	}
	_, products, err := s.split(ctx, normalized.Lines)
	if err != nil {
		return nil, err
	}

	for i := range normalized.Lines {
		line := &normalized.Lines[i]
		if line.Display != nil {
			continue
		}
		p := products[line.ProductID]
		line.Display = &cart.Display{Name: p.Name, ImageURL: p.ImageURL, PriceCents: p.PriceCents}
	}

	return s.sessions.Create(ctx, buyerID, normalized, idempotencyKey)
}

func (s *service) ConfirmPayment(ctx context.Context, sessionID string, buyerID uuid.UUID) (*Confirmation, error) {
	rows, err := s.materializer.Materialize(ctx, sessionID, buyerID)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, row := range rows {
		total += row.TotalCents
	}
	return &Confirmation{
		SessionID:  strings.TrimSpace(sessionID),
		Orders:     orders.NewOrderDTOs(rows),
		TotalCents: total,
		Total:      money.Format(total),
	}, nil
}

func (s *service) split(ctx context.Context, lines []cart.Line) (helpers.Split, map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.catalog.Resolve(ctx, ids)
	if err != nil {
		return helpers.Split{}, nil, err
	}
	split, err := helpers.SplitByVendor(lines, products)
	if err != nil {
		return helpers.Split{}, nil, err
	}
	return split, products, nil
}
