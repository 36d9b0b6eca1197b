package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/response"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/domain"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.sessionService.ListServices(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if services == nil {
		services = []domain.Service{}
	}
	response.WriteJSON(w, http.StatusOK, services)
}

// ListSessions returns upcoming sessions. from and to are RFC3339 timestamps.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter domain.SessionFilter
	filter.Limit, filter.Offset = parsePagination(r)

	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if raw := q.Get(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				response.BadRequest(w, "Invalid "+name+" parameter, expected RFC3339")
				return
			}
			*dst = &t
		}
	}
	if raw := q.Get("service_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(w, "Invalid service_id parameter")
			return
		}
		filter.ServiceID = &id
	}

	sessions, err := h.sessionService.ListSessions(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	response.WriteJSON(w, http.StatusOK, sessions)
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	sess, err := h.sessionService.GetSession(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sess)
}

// CreateReservation books a seat or a waitlist slot. A bearer token is
// optional; when present the reservation is linked to the account.
func (h *Handlers) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateReservationReq
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.bookingService.CreateReservation(r.Context(), &req, actorFrom(r), r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handlers) LookupReservation(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		response.BadRequest(w, "email query parameter is required")
		return
	}
	res, err := h.bookingService.LookupReservation(r.Context(), chi.URLParam(r, "number"), email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, res)
}

func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request) {
	var req domain.CancelReservationReq
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.bookingService.CancelReservation(r.Context(), &req, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, res)
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterReq
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.accountService.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginReq
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.accountService.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, res)
}
