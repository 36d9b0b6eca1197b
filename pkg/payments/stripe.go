package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/diagnosis/studio-bookings/pkg/config"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

var (
	ErrDisabled         = errors.New("payments disabled: STRIPE_SECRET_KEY not set")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Metadata keys carried on checkout sessions and their payment intents.
const (
	MetaReservationID     = "reservation_id"
	MetaReservationNumber = "reservation_number"
	MetaSessionID         = "session_id"
	MetaServiceID         = "service_id"
	MetaKind              = "kind"
	MetaCustomerEmail     = "customer_email"
)

type Gateway interface {
	Enabled() bool
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

type CheckoutRequest struct {
	ReservationID     int64
	ReservationNumber string
	SessionID         int64
	ServiceID         int64
	Kind              string
	CustomerEmail     string
	ProductName       string
	Description       string
	AmountCents       int64
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceID     string `json:"price_id"`
	UnitAmount  int64  `json:"unit_amount"`
	Currency    string `json:"currency"`
	Recurring   bool   `json:"recurring"`
}

type stripeGateway struct {
	api *client.API
	cfg config.StripeConfig
}

func NewStripeGateway(cfg config.StripeConfig) Gateway {
	g := &stripeGateway{cfg: cfg}
	if cfg.Enabled() {
		g.api = &client.API{}
		g.api.Init(cfg.SecretKey, nil)
	}
	return g
}

func (g *stripeGateway) Enabled() bool {
	return g.api != nil
}

func (g *stripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if g.api == nil {
		return nil, ErrDisabled
	}
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("checkout amount must be positive, got %d", req.AmountCents)
	}

	meta := checkoutMetadata(req)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.cfg.SuccessURL),
		CancelURL:         stripe.String(g.cfg.CancelURL),
		CustomerEmail:     stripe.String(req.CustomerEmail),
		ClientReferenceID: stripe.String(req.ReservationNumber),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(g.cfg.Currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.ProductName),
						Description: optional(req.Description),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: meta,
		},
	}
	for k, v := range meta {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ListProducts returns active one-off and recurring prices with their products.
func (g *stripeGateway) ListProducts(ctx context.Context) ([]Product, error) {
	if g.api == nil {
		return nil, ErrDisabled
	}

	params := &stripe.PriceListParams{Active: stripe.Bool(true)}
	params.AddExpand("data.product")
	params.Context = ctx

	var out []Product
	it := g.api.Prices.List(params)
	for it.Next() {
		p := it.Price()
		if p.Product == nil || !p.Product.Active {
			continue
		}
		out = append(out, Product{
			ID:          p.Product.ID,
			Name:        p.Product.Name,
			Description: p.Product.Description,
			PriceID:     p.ID,
			UnitAmount:  p.UnitAmount,
			Currency:    string(p.Currency),
			Recurring:   p.Recurring != nil,
		})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	return out, nil
}

func checkoutMetadata(req CheckoutRequest) map[string]string {
	return map[string]string{
		MetaReservationID:     strconv.FormatInt(req.ReservationID, 10),
		MetaReservationNumber: req.ReservationNumber,
		MetaSessionID:         strconv.FormatInt(req.SessionID, 10),
		MetaServiceID:         strconv.FormatInt(req.ServiceID, 10),
		MetaKind:              req.Kind,
		MetaCustomerEmail:     req.CustomerEmail,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return stripe.String(s)
}
