package handlers

import (
	"net/http"
	"strconv"

	"github.com/diagnosis/studio-bookings/pkg/payments"
	"github.com/diagnosis/studio-bookings/pkg/response"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/domain"
)

// ListReservations handles the back office listing with optional
// session_id, status and email filters.
func (h *Handlers) ListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter domain.ReservationFilter
	filter.Limit, filter.Offset = parsePagination(r)
	filter.Email = q.Get("email")

	if raw := q.Get("session_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(w, "Invalid session_id parameter")
			return
		}
		filter.SessionID = &id
	}
	if raw := q.Get("status"); raw != "" {
		st, ok := domain.ParseReservationStatus(raw)
		if !ok {
			response.BadRequest(w, "Invalid status parameter")
			return
		}
		filter.Status = &st
	}

	list, err := h.bookingService.ListReservations(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Reservation{}
	}
	response.WriteJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	res, err := h.bookingService.GetReservation(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, res)
}

// UpdateReservationStatus drives the reservation state machine. Cancelling
// here is an admin cancellation and skips the customer time checks.
func (h *Handlers) UpdateReservationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var patch domain.StatusPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	to, ok := domain.ParseReservationStatus(patch.Status)
	if !ok {
		writeServiceError(w, r, domain.ErrInvalidStatus)
		return
	}

	res, err := h.bookingService.TransitionStatus(r.Context(), id, to, patch.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, res)
}

func (h *Handlers) CreateService(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateServiceReq
	if !decodeJSON(w, r, &req) {
		return
	}
	svc, err := h.sessionService.CreateService(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, svc)
}

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSessionReq
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.sessionService.CreateSession(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, sess)
}

func (h *Handlers) CancelSession(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 && !decodeJSON(w, r, &body) {
		return
	}

	sess, err := h.bookingService.CancelSession(r.Context(), id, body.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handlers) ListPacks(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	packs, err := h.packService.ListPacks(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if packs == nil {
		packs = []domain.CustomerPack{}
	}
	response.WriteJSON(w, http.StatusOK, packs)
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.ListProducts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if products == nil {
		products = []payments.Product{}
	}
	response.WriteJSON(w, http.StatusOK, products)
}
