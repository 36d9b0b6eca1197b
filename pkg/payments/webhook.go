package payments

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

const webhookTolerance = 5 * time.Minute

// WebhookEvent is a verified Stripe event. At most one of the typed payloads
// is set; events we do not handle carry only ID and Type.
type WebhookEvent struct {
	ID                string
	Type              string
	CheckoutCompleted *CheckoutCompleted
	PaymentFailed     *PaymentFailed
}

type CheckoutCompleted struct {
	CheckoutSessionID string
	PaymentIntentID   string
	ReservationID     int64
	ReservationNumber string
	SessionID         int64
	ServiceID         int64
	Kind              string
	CustomerEmail     string
	AmountTotal       int64
	Paid              bool
}

type PaymentFailed struct {
	PaymentIntentID string
	ReservationID   int64
	CustomerEmail   string
	Reason          string
}

func (g *stripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return ParseWebhook(payload, signature, g.cfg.WebhookSecret)
}

// ParseWebhook verifies the Stripe-Signature header and decodes the events the
// booking flow reacts to.
func ParseWebhook(payload []byte, signature, secret string) (*WebhookEvent, error) {
	if secret == "" || signature == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		Tolerance:                webhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.CheckoutCompleted = decodeCheckout(&cs)

	case EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.PaymentFailed = decodePaymentFailed(&pi)
	}
	return out, nil
}

func decodeCheckout(cs *stripe.CheckoutSession) *CheckoutCompleted {
	c := &CheckoutCompleted{
		CheckoutSessionID: cs.ID,
		ReservationID:     metaInt(cs.Metadata, MetaReservationID),
		ReservationNumber: cs.Metadata[MetaReservationNumber],
		SessionID:         metaInt(cs.Metadata, MetaSessionID),
		ServiceID:         metaInt(cs.Metadata, MetaServiceID),
		Kind:              cs.Metadata[MetaKind],
		CustomerEmail:     cs.Metadata[MetaCustomerEmail],
		AmountTotal:       cs.AmountTotal,
		Paid:              cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if cs.PaymentIntent != nil {
		c.PaymentIntentID = cs.PaymentIntent.ID
	}
	if c.CustomerEmail == "" {
		if cs.CustomerDetails != nil && cs.CustomerDetails.Email != "" {
			c.CustomerEmail = cs.CustomerDetails.Email
		} else {
			c.CustomerEmail = cs.CustomerEmail
		}
	}
	c.CustomerEmail = strings.ToLower(strings.TrimSpace(c.CustomerEmail))
	return c
}

func decodePaymentFailed(pi *stripe.PaymentIntent) *PaymentFailed {
	f := &PaymentFailed{
		PaymentIntentID: pi.ID,
		ReservationID:   metaInt(pi.Metadata, MetaReservationID),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(pi.Metadata[MetaCustomerEmail])),
		Reason:          "payment failed",
	}
	if f.CustomerEmail == "" {
		f.CustomerEmail = strings.ToLower(strings.TrimSpace(pi.ReceiptEmail))
	}
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		f.Reason = pi.LastPaymentError.Msg
	}
	return f
}

func metaInt(meta map[string]string, key string) int64 {
	n, err := strconv.ParseInt(meta[key], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
