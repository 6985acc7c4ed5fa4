package payments

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/freshbulk/freshbulk-backend/internal/cart"
	"github.com/freshbulk/freshbulk-backend/pkg/config"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
)

type stubGateway struct {
	req     SessionRequest
	session *Session
	err     error
}

func (s *stubGateway) CreateSession(_ context.Context, req SessionRequest) (*Session, error) {
	s.req = req
	return s.session, s.err
}

func (s *stubGateway) RetrieveSession(context.Context, string) (*Session, error) {
	return s.session, s.err
}

func testCheckoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		Currency:   "INR",
		SuccessURL: "https://shop.example.com/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://shop.example.com/cart",
	}
}

func sampleCart() cart.Normalized {
	return cart.Normalized{
		Lines: []cart.Line{
			{ProductID: uuid.New(), Quantity: 3, Display: &cart.Display{Name: "Tomato", PriceCents: 4500}},
			{ProductID: uuid.New(), Quantity: 2, Display: &cart.Display{Name: "Mango", ImageURL: "https://img/mango.jpg", PriceCents: 8000}},
		},
		Delivery: cart.Delivery{FullName: "Asha Rao", Phone: "9876543210", Address: "12 Market Road"},
	}
}

func TestEncodeDecodeMetadataRoundTrip(t *testing.T) {
	t.Parallel()

	buyer := uuid.New()
	normalized := sampleCart()
	meta, err := EncodeMetadata(buyer, normalized)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for k, v := range meta {
		if len(v) > maxMetadataValueLen {
			t.Fatalf("metadata %s exceeds limit", k)
		}
		if strings.Contains(v, "4500") || strings.Contains(v, "8000") {
			t.Fatalf("metadata %s leaked a price: %s", k, v)
		}
	}

	decoded, err := DecodeMetadata(meta)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.BuyerID != buyer {
		t.Fatalf("unexpected buyer %s", decoded.BuyerID)
	}
	if decoded.Delivery != normalized.Delivery {
		t.Fatalf("unexpected delivery %+v", decoded.Delivery)
	}
	if len(decoded.Lines) != 2 || decoded.Lines[1].ProductID != normalized.Lines[1].ProductID || decoded.Lines[1].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", decoded.Lines)
	}
}

func TestEncodeMetadataChunksLargeCarts(t *testing.T) {
	t.Parallel()

	normalized := sampleCart()
	normalized.Lines = nil
	for i := 0; i < 40; i++ {
		normalized.Lines = append(normalized.Lines, cart.Line{ProductID: uuid.New(), Quantity: i + 1})
	}
	meta, err := EncodeMetadata(uuid.New(), normalized)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	chunks, _ := strconv.Atoi(meta[MetadataCartChunks])
	if chunks < 2 {
		t.Fatalf("expected multiple chunks, got %d", chunks)
	}
	decoded, err := DecodeMetadata(meta)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Lines) != 40 || decoded.Lines[39].Quantity != 40 {
		t.Fatalf("unexpected decoded cart of %d lines", len(decoded.Lines))
	}
}

func TestDecodeMetadataRejectsCorruptCarts(t *testing.T) {
	t.Parallel()

	valid, err := EncodeMetadata(uuid.New(), sampleCart())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	mutate := func(fn func(map[string]string)) map[string]string {
		out := make(map[string]string, len(valid))
		for k, v := range valid {
			out[k] = v
		}
		fn(out)
		return out
	}

	cases := map[string]map[string]string{
		"missing buyer":  mutate(func(m map[string]string) { delete(m, MetadataBuyerID) }),
		"bad chunks":     mutate(func(m map[string]string) { m[MetadataCartChunks] = "zero" }),
		"missing chunk":  mutate(func(m map[string]string) { m[MetadataCartChunks] = "2" }),
		"bad json":       mutate(func(m map[string]string) { m["cart_0"] = "{" }),
		"empty cart":     mutate(func(m map[string]string) { m["cart_0"] = "[]" }),
		"zero quantity":  mutate(func(m map[string]string) { m["cart_0"] = `[{"p":"` + uuid.NewString() + `","q":0}]` }),
		"bad product id": mutate(func(m map[string]string) { m["cart_0"] = `[{"p":"nope","q":1}]` }),
	}
	for name, meta := range cases {
		if _, err := DecodeMetadata(meta); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestSessionFactoryCreate(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{session: &Session{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}}
	factory, err := NewSessionFactory(gateway, testCheckoutConfig(), nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	buyer := uuid.New()

	out, err := factory.Create(context.Background(), buyer, sampleCart(), "idem-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out.SessionID != "cs_test_1" || out.AmountTotalCents != 29500 || out.Currency != "inr" {
		t.Fatalf("unexpected session %+v", out)
	}
	if gateway.req.Currency != "inr" || len(gateway.req.LineItems) != 2 || gateway.req.IdempotencyKey != providerIdempotencyKey(buyer, "idem-1") {
		t.Fatalf("unexpected request %+v", gateway.req)
	}
	if gateway.req.LineItems[0].UnitAmountCents != 4500 || gateway.req.LineItems[0].Quantity != 3 {
		t.Fatalf("unexpected line item %+v", gateway.req.LineItems[0])
	}
	if gateway.req.Metadata[MetadataBuyerID] != buyer.String() || gateway.req.ClientReferenceID != buyer.String() {
		t.Fatalf("buyer not recorded on session")
	}
}

func TestSessionFactoryScopesIdempotencyKeyPerBuyer(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{session: &Session{ID: "cs_test_1"}}
	factory, err := NewSessionFactory(gateway, testCheckoutConfig(), nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	buyerA, buyerB := uuid.New(), uuid.New()

	keyFor := func(buyer uuid.UUID, clientKey string) string {
		t.Helper()
		if _, err := factory.Create(context.Background(), buyer, sampleCart(), clientKey); err != nil {
			t.Fatalf("create: %v", err)
		}
		return gateway.req.IdempotencyKey
	}

	first := keyFor(buyerA, "checkout-1")
	if first == "" || first == "checkout-1" {
		t.Fatalf("expected a derived provider key, got %q", first)
	}
	if again := keyFor(buyerA, "checkout-1"); again != first {
		t.Fatalf("same buyer and key must reuse the provider key, got %q and %q", first, again)
	}
	if other := keyFor(buyerB, "checkout-1"); other == first {
		t.Fatalf("buyers sharing a client key must not share provider key %q", first)
	}
	if len(first) > 255 {
		t.Fatalf("provider key too long: %d", len(first))
	}
	if blank := keyFor(buyerA, "  "); blank != "" {
		t.Fatalf("expected no provider key without a client key, got %q", blank)
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	t.Parallel()

	name := strings.Repeat("आ", maxMetadataValueLen+10)
	got := truncate(name)
	if n := len([]rune(got)); n != maxMetadataValueLen {
		t.Fatalf("expected %d runes, got %d", maxMetadataValueLen, n)
	}
	short := strings.Repeat("आ", 200)
	if truncate(short) != short {
		t.Fatal("multi-byte value under the limit must be kept whole")
	}
}

func TestSessionFactoryGatewayFailure(t *testing.T) {
	t.Parallel()

	factory, err := NewSessionFactory(&stubGateway{err: errors.New("connection refused")}, testCheckoutConfig(), nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	_, err = factory.Create(context.Background(), uuid.New(), sampleCart(), "")
	if !pkgerrors.IsCode(err, pkgerrors.CodePaymentProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !pkgerrors.As(err).Retryable() {
		t.Fatalf("provider errors must be retryable")
	}
}

func TestSessionFactoryRequiresDisplay(t *testing.T) {
	t.Parallel()

	factory, _ := NewSessionFactory(&stubGateway{}, testCheckoutConfig(), nil)
	normalized := sampleCart()
	normalized.Lines[1].Display = nil
	if _, err := factory.Create(context.Background(), uuid.New(), normalized, ""); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type fakeSessionAPI struct {
	created *stripe.CheckoutSessionParams
	out     *stripe.CheckoutSession
	err     error
}

func (f *fakeSessionAPI) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.created = params
	return f.out, f.err
}

func (f *fakeSessionAPI) Get(string, *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return f.out, f.err
}

func TestStripeGatewayBuildsPaymentModeSession(t *testing.T) {
	t.Parallel()

	api := &fakeSessionAPI{out: &stripe.CheckoutSession{
		ID:            "cs_test_2",
		URL:           "https://checkout.stripe.com/c/cs_test_2",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		AmountTotal:   29500,
		Metadata:      map[string]string{"buyer_id": "b"},
	}}
	gateway := &StripeGateway{api: api}

	out, err := gateway.CreateSession(context.Background(), SessionRequest{
		Currency:  "inr",
		LineItems: []LineItem{{Name: "Tomato", UnitAmountCents: 4500, Quantity: 3}},
		Metadata:  map[string]string{"buyer_id": "b"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out.ID != "cs_test_2" || out.PaymentStatus != enums.PaymentStatusUnpaid || out.AmountTotalCents != 29500 {
		t.Fatalf("unexpected session %+v", out)
	}
	if api.created == nil || *api.created.Mode != string(stripe.CheckoutSessionModePayment) {
		t.Fatalf("expected payment mode params")
	}
	if len(api.created.LineItems) != 1 || *api.created.LineItems[0].PriceData.UnitAmount != 4500 {
		t.Fatalf("unexpected line items")
	}
	if api.created.Metadata["buyer_id"] != "b" {
		t.Fatalf("metadata not forwarded")
	}
}

func TestStripeGatewayMapsErrors(t *testing.T) {
	t.Parallel()

	notFound := &fakeSessionAPI{err: &stripe.Error{HTTPStatusCode: http.StatusNotFound, Type: stripe.ErrorTypeInvalidRequest}}
	if _, err := (&StripeGateway{api: notFound}).RetrieveSession(context.Background(), "cs_missing"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	down := &fakeSessionAPI{err: &stripe.Error{HTTPStatusCode: http.StatusServiceUnavailable, Type: stripe.ErrorTypeAPI}}
	if _, err := (&StripeGateway{api: down}).RetrieveSession(context.Background(), "cs_1"); !pkgerrors.IsCode(err, pkgerrors.CodePaymentProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
