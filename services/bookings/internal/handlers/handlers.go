package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/diagnosis/studio-bookings/pkg/auth"
	"github.com/diagnosis/studio-bookings/pkg/logger"
	mw "github.com/diagnosis/studio-bookings/pkg/middleware"
	"github.com/diagnosis/studio-bookings/pkg/payments"
	"github.com/diagnosis/studio-bookings/pkg/response"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/service"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	bookingService service.BookingService
	sessionService service.SessionService
	accountService service.AccountService
	packService    service.PackService
	productService service.ProductService
	payments       payments.Gateway
}

func New(
	bookingService service.BookingService,
	sessionService service.SessionService,
	accountService service.AccountService,
	packService service.PackService,
	productService service.ProductService,
	gateway payments.Gateway,
) *Handlers {
	return &Handlers{
		bookingService: bookingService,
		sessionService: sessionService,
		accountService: accountService,
		packService:    packService,
		productService: productService,
		payments:       gateway,
	}
}

// Mount registers every route. The router must already run mw.Authenticate so
// optional customer tokens are visible to the public booking endpoints.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/services", h.ListServices)
	r.Get("/sessions", h.ListSessions)
	r.Get("/sessions/{id}", h.GetSession)

	r.Route("/api", func(r chi.Router) {
		r.Post("/reservations", h.CreateReservation)
		r.Post("/reservations/cancel", h.CancelReservation)
		r.Get("/reservations/{number}", h.LookupReservation)

		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Post("/webhooks/stripe", h.StripeWebhook)

		r.Route("/me", func(r chi.Router) {
			r.Use(mw.RequireRole(auth.RoleCustomer))
			r.Get("/", h.Me)
			r.Get("/reservations", h.MyReservations)
			r.Post("/reservations/{id}/cancel", h.CancelMyReservation)
			r.Get("/packs", h.MyPacks)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireRole(auth.RoleAdmin))
			r.Get("/reservations", h.ListReservations)
			r.Get("/reservations/{id}", h.GetReservation)
			r.Patch("/reservations/{id}", h.UpdateReservationStatus)
			r.Post("/services", h.CreateService)
			r.Post("/sessions", h.CreateSession)
			r.Post("/sessions/{id}/cancel", h.CancelSession)
			r.Get("/packs", h.ListPacks)
			r.Get("/products", h.ListProducts)
		})
	})
}

// actorFrom turns the optional JWT claims into the booking actor.
func actorFrom(r *http.Request) domain.Actor {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		return domain.Actor{}
	}
	return domain.Actor{UserID: claims.Sub, Email: claims.Email, Admin: claims.IsAdmin()}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "Invalid ID")
		return 0, false
	}
	return id, true
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

var (
	badRequestErrors = []error{
		domain.ErrInvalidEmail, domain.ErrMissingField, domain.ErrInvalidKind,
		domain.ErrInvalidStatus, domain.ErrInvalidInput,
	}
	notFoundErrors = []error{
		domain.ErrSessionNotFound, domain.ErrServiceNotFound, domain.ErrReservationNotFound,
		domain.ErrPackNotFound, domain.ErrUserNotFound,
	}
	conflictErrors = []error{
		domain.ErrDuplicateReservation, domain.ErrAlreadyCancelled, domain.ErrInvalidTransition,
		domain.ErrSessionFull, domain.ErrSessionCancelled, domain.ErrPackUnavailable, domain.ErrEmailTaken,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// writeServiceError maps the booking error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isAny(err, badRequestErrors):
		response.BadRequest(w, err.Error())
	case isAny(err, notFoundErrors):
		response.NotFound(w, err.Error())
	case isAny(err, conflictErrors):
		response.Conflict(w, err.Error())
	case errors.Is(err, domain.ErrNotAuthorized):
		response.Forbidden(w, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, domain.ErrPastSession):
		response.WriteError(w, http.StatusUnprocessableEntity, err.Error(), response.CodePastSession)
	case errors.Is(err, domain.ErrCancellationWindow):
		response.WriteError(w, http.StatusUnprocessableEntity, err.Error(), response.CodeCancellationWindow)
	case errors.Is(err, domain.ErrPaymentProvider):
		response.WriteError(w, http.StatusBadGateway, "Payment provider unavailable", response.CodePaymentError)
	default:
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		response.InternalError(w, "Internal server error")
	}
}
