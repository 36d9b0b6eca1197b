package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/diagnosis/studio-bookings/pkg/logger"
	"github.com/diagnosis/studio-bookings/pkg/payments"
	"github.com/diagnosis/studio-bookings/pkg/response"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/service"
)

const maxWebhookBody = 64 << 10

// StripeWebhook verifies and applies Stripe events. Business errors are
// acknowledged so Stripe stops retrying; infrastructure errors return 500 so it
// tries again later.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Failed to read body")
		return
	}

	event, err := h.payments.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			logger.WarnContext(r.Context(), "Rejected Stripe webhook", "error", err)
			response.WriteError(w, http.StatusBadRequest, "Invalid signature", response.CodeInvalidInput)
			return
		}
		response.BadRequest(w, "Invalid payload")
		return
	}

	ctx := r.Context()
	switch {
	case event.CheckoutCompleted != nil:
		err = h.bookingService.HandleCheckoutCompleted(ctx, event.CheckoutCompleted)
	case event.PaymentFailed != nil:
		err = h.bookingService.HandlePaymentFailed(ctx, event.PaymentFailed)
	default:
		logger.DebugContext(ctx, "Ignoring Stripe event", "type", event.Type, "event_id", event.ID)
	}

	if err != nil {
		if !service.IsClientError(err) {
			logger.ErrorContext(ctx, "Failed to apply Stripe event", "error", err, "type", event.Type, "event_id", event.ID)
			response.InternalError(w, "Failed to process event")
			return
		}
		logger.WarnContext(ctx, "Stripe event did not apply", "error", err, "type", event.Type, "event_id", event.ID)
	}
	response.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
