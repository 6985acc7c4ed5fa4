package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/freshbulk/freshbulk-backend/internal/cart"
	"github.com/freshbulk/freshbulk-backend/pkg/config"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
	"github.com/freshbulk/freshbulk-backend/pkg/metrics"
)

// CheckoutSession is returned to the buyer for the hosted checkout redirect.
type CheckoutSession struct {
	SessionID        string `json:"session_id"`
	URL              string `json:"url"`
	AmountTotalCents int64  `json:"amount_total_cents"`
	Currency         string `json:"currency"`
}

// SessionFactory opens one gateway session for a whole multi-vendor cart.
type SessionFactory struct {
	gateway  Gateway
	checkout config.CheckoutConfig
	metrics  *metrics.OrderMetrics
}

func NewSessionFactory(gateway Gateway, cfg config.CheckoutConfig, m *metrics.OrderMetrics) (*SessionFactory, error) {
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return nil, fmt.Errorf("checkout currency required")
	}
	return &SessionFactory{gateway: gateway, checkout: cfg, metrics: m}, nil
}

// Create prices the session from the display info on each line. Those prices
// only label the hosted page; orders are re-priced from the catalog later.
func (f *SessionFactory) Create(ctx context.Context, buyerID uuid.UUID, normalized cart.Normalized, idempotencyKey string) (*CheckoutSession, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity required")
	}
	if len(normalized.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart must contain at least one item")
	}

	currency := strings.ToLower(strings.TrimSpace(f.checkout.Currency))
	items := make([]LineItem, 0, len(normalized.Lines))
	var total int64
	for i, line := range normalized.Lines {
		if line.Display == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart line missing display info").
				WithDetails(map[string]string{fmt.Sprintf("items[%d].display", i): "is required"})
		}
		items = append(items, LineItem{
			Name:            line.Display.Name,
			ImageURL:        line.Display.ImageURL,
			UnitAmountCents: line.Display.PriceCents,
			Quantity:        int64(line.Quantity),
		})
		total += line.Display.PriceCents * int64(line.Quantity)
	}

	meta, err := EncodeMetadata(buyerID, normalized)
	if err != nil {
		return nil, err
	}

	session, err := f.gateway.CreateSession(ctx, SessionRequest{
		Currency:          currency,
		LineItems:         items,
		Metadata:          meta,
		ClientReferenceID: buyerID.String(),
		SuccessURL:        f.checkout.SuccessURL,
		CancelURL:         f.checkout.CancelURL,
		IdempotencyKey:    providerIdempotencyKey(buyerID, idempotencyKey),
	})
	if err != nil {
		f.metrics.IncSession("error")
		return nil, asProviderError(err, "create checkout session")
	}
	f.metrics.IncSession("created")

	if session.AmountTotalCents > 0 {
		total = session.AmountTotalCents
	}
	return &CheckoutSession{
		SessionID:        session.ID,
		URL:              session.URL,
		AmountTotalCents: total,
		Currency:         currency,
	}, nil
}

// providerIdempotencyKey scopes the client key to the buyer. Gateway keys are
// account wide, so the raw header value would collide between buyers.
func providerIdempotencyKey(buyerID uuid.UUID, clientKey string) string {
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(buyerID.String() + "|" + clientKey))
	return "checkout_" + hex.EncodeToString(sum[:])
}

// asProviderError keeps typed gateway errors and wraps anything else as a
// retryable provider failure.
func asProviderError(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodePaymentProvider, err, msg)
}
