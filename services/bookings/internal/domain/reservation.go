package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
	ReservationNoShow    ReservationStatus = "no_show"
)

func ParseReservationStatus(s string) (ReservationStatus, bool) {
	switch ReservationStatus(s) {
	case ReservationPending, ReservationConfirmed, ReservationCancelled, ReservationCompleted, ReservationNoShow:
		return ReservationStatus(s), true
	default:
		return "", false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationCancelled || s == ReservationCompleted || s == ReservationNoShow
}

// ReservationType is what the stored reservation was paid with.
type ReservationType string

const (
	ReservationSingle ReservationType = "single"
	ReservationPack   ReservationType = "pack"
)

// BookingKind is what the customer asked for when booking.
type BookingKind string

const (
	KindSingle  BookingKind = "single"   // one class, no pack involved
	KindPack    BookingKind = "pack"     // buy a new pack, this class is its first use
	KindUsePack BookingKind = "use_pack" // spend one unit of an existing pack
)

func ParseBookingKind(s string) (BookingKind, bool) {
	switch BookingKind(s) {
	case "":
		return KindSingle, true
	case KindSingle, KindPack, KindUsePack:
		return BookingKind(s), true
	default:
		return "", false
	}
}

type PaymentStatus string

const (
	PaymentNotRequired PaymentStatus = "not_required"
	PaymentPending     PaymentStatus = "pending"
	PaymentPaid        PaymentStatus = "paid"
	PaymentFailed      PaymentStatus = "failed"
)

// Business rules
const (
	CancelCutoff            = 24 * time.Hour
	ReservationNumberPrefix = "PIL"
)

var transitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed: {ReservationCompleted, ReservationNoShow, ReservationCancelled},
}

// CanTransition reports whether an admin may move a reservation from one status to another.
func CanTransition(from, to ReservationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Reservation struct {
	ID                 int64             `json:"id"`
	ReservationNumber  string            `json:"reservation_number"`
	SessionID          int64             `json:"session_id"`
	UserID             *int64            `json:"user_id,omitempty"`
	CustomerName       string            `json:"customer_name"`
	CustomerEmail      string            `json:"customer_email"`
	CustomerPhone      string            `json:"customer_phone"`
	Status             ReservationStatus `json:"status"`
	QueuePosition      *int              `json:"queue_position"`
	ReservationType    ReservationType   `json:"reservation_type"`
	PackID             *int64            `json:"pack_id,omitempty"`
	PaymentStatus      PaymentStatus     `json:"payment_status"`
	PaymentIntentID    *string           `json:"payment_intent_id,omitempty"`
	CheckoutSessionID  *string           `json:"-"`
	Notes              string            `json:"notes"`
	ConfirmedAt        *time.Time        `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`

	// Read-side fields, filled by joins or computed on read.
	ServiceName  string     `json:"service_name,omitempty"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	WaitlistRank *int       `json:"waitlist_rank,omitempty"`
	CheckoutURL  string     `json:"checkout_url,omitempty"`
}

// IsQueued reports whether the reservation is waiting on the FIFO waitlist.
func (r *Reservation) IsQueued() bool {
	return r.QueuePosition != nil
}

// HoldsSeat reports whether the reservation counts against session capacity.
func (r *Reservation) HoldsSeat() bool {
	return r.Status == ReservationConfirmed && r.QueuePosition == nil
}

func (r *Reservation) IsOwner(email string) bool {
	return email != "" && strings.EqualFold(r.CustomerEmail, email)
}

func (r *Reservation) IsUserOwner(userID int64) bool {
	return r.UserID != nil && *r.UserID == userID
}

// DrawsFromPack reports whether cancelling should give a pack unit back.
func (r *Reservation) DrawsFromPack() bool {
	return r.ReservationType == ReservationPack && r.PackID != nil
}

// CheckCancellable applies the customer cancellation policy.
func CheckCancellable(r *Reservation, s *Session, now time.Time) error {
	if r.Status == ReservationCancelled {
		return ErrAlreadyCancelled
	}
	if r.Status.IsTerminal() {
		return ErrInvalidTransition
	}
	if s.StartsAt.Before(now) {
		return ErrPastSession
	}
	if s.StartsAt.Sub(now) < CancelCutoff {
		return ErrCancellationWindow
	}
	return nil
}

const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewReservationNumber returns a human readable reference like PIL-20260412-K7QX3M.
func NewReservationNumber(now time.Time) string {
	id := uuid.New()
	var suffix [6]byte
	for i := range suffix {
		suffix[i] = numberAlphabet[int(id[i])%len(numberAlphabet)]
	}
	return ReservationNumberPrefix + "-" + now.UTC().Format("20060102") + "-" + string(suffix[:])
}

type CreateReservationReq struct {
	SessionID     int64       `json:"session_id"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	CustomerPhone string      `json:"customer_phone"`
	Kind          BookingKind `json:"kind"`
	PackID        *int64      `json:"pack_id,omitempty"`
	Notes         string      `json:"notes"`
}

type CancelReservationReq struct {
	ReservationID     int64  `json:"reservation_id"`
	ReservationNumber string `json:"reservation_number"`
	Email             string `json:"email"`
	Reason            string `json:"reason"`
}

type StatusPatch struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type ReservationFilter struct {
	SessionID *int64
	Status    *ReservationStatus
	Email     string
	Limit     int
	Offset    int
}

// Actor is who is acting on a reservation. The zero value is an anonymous guest.
type Actor struct {
	UserID int64
	Email  string
	Admin  bool
}

func (a Actor) IsGuest() bool {
	return a.UserID == 0 && !a.Admin
}
