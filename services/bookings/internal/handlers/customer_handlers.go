package handlers

import (
	"net/http"

	"github.com/diagnosis/studio-bookings/pkg/response"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/domain"
)

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.accountService.Me(r.Context(), actorFrom(r).UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, user)
}

func (h *Handlers) MyReservations(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	list, err := h.bookingService.ListMyReservations(r.Context(), actorFrom(r), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Reservation{}
	}
	response.WriteJSON(w, http.StatusOK, list)
}

// CancelMyReservation cancels one of the caller's reservations under the
// customer policy.
func (h *Handlers) CancelMyReservation(w http.ResponseWriter, r *http.Request) {
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

	actor := actorFrom(r)
	// Admins cancelling through their own account still go through the customer policy.
	actor.Admin = false
	res, err := h.bookingService.CancelReservation(r.Context(), &domain.CancelReservationReq{
		ReservationID: id,
		Reason:        body.Reason,
	}, actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, res)
}

func (h *Handlers) MyPacks(w http.ResponseWriter, r *http.Request) {
	packs, err := h.packService.ListMyPacks(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if packs == nil {
		packs = []domain.CustomerPack{}
	}
	response.WriteJSON(w, http.StatusOK, packs)
}
