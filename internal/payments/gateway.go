package payments

import (
	"context"

	"github.com/freshbulk/freshbulk-backend/pkg/enums"
)

// LineItem is a single priced row on the hosted checkout page.
type LineItem struct {
	Name            string
	ImageURL        string
	UnitAmountCents int64
	Quantity        int64
}

// SessionRequest describes the checkout session to open with the gateway.
type SessionRequest struct {
	Currency          string
	LineItems         []LineItem
	Metadata          map[string]string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	IdempotencyKey    string
}

// Session is the gateway's view of a checkout session.
type Session struct {
	ID               string
	URL              string
	PaymentStatus    enums.PaymentStatus
	AmountTotalCents int64
	Currency         string
	Metadata         map[string]string
}

// Gateway is the external hosted-checkout provider.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}
