package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/config"
	"github.com/diagnosis/studio-bookings/pkg/events"
	"github.com/diagnosis/studio-bookings/pkg/logger"
	"github.com/diagnosis/studio-bookings/pkg/payments"
	"github.com/diagnosis/studio-bookings/pkg/utils"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/repository"
)

type BookingService interface {
	CreateReservation(ctx context.Context, req *domain.CreateReservationReq, actor domain.Actor, idempotencyKey string) (*domain.Reservation, error)
	CancelReservation(ctx context.Context, req *domain.CancelReservationReq, actor domain.Actor) (*domain.Reservation, error)
	TransitionStatus(ctx context.Context, id int64, to domain.ReservationStatus, reason string) (*domain.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*domain.Reservation, error)
	LookupReservation(ctx context.Context, number, email string) (*domain.Reservation, error)
	ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error)
	ListMyReservations(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.Reservation, error)
	CancelSession(ctx context.Context, sessionID int64, reason string) (*domain.Session, error)
	HandleCheckoutCompleted(ctx context.Context, c *payments.CheckoutCompleted) error
	HandlePaymentFailed(ctx context.Context, f *payments.PaymentFailed) error
}

type bookingService struct {
	reservationRepo repository.ReservationRepository
	idempotencyRepo repository.IdempotencyRepository
	payments        payments.Gateway
	eventBus        events.Publisher
	config          *config.Config
	now             func() time.Time
}

func NewBookingService(
	reservationRepo repository.ReservationRepository,
	idempotencyRepo repository.IdempotencyRepository,
	gateway payments.Gateway,
	eventBus events.Publisher,
	config *config.Config,
) BookingService {
	return &bookingService{
		reservationRepo: reservationRepo,
		idempotencyRepo: idempotencyRepo,
		payments:        gateway,
		eventBus:        eventBus,
		config:          config,
		now:             time.Now,
	}
}

func (s *bookingService) CreateReservation(ctx context.Context, req *domain.CreateReservationReq, actor domain.Actor, idempotencyKey string) (*domain.Reservation, error) {
	if err := normalizeReservationReq(req, actor); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		existingID, err := s.idempotencyRepo.Lookup(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if existingID > 0 {
			logger.InfoContext(ctx, "Replaying idempotent reservation", "reservation_id", existingID)
			return s.GetReservation(ctx, existingID)
		}
	}

	now := s.now()
	var (
		res     *domain.Reservation
		session *domain.Session
	)
	err := s.reservationRepo.Atomic(ctx, func(tx repository.ReservationTx) error {
		sess, err := tx.LockSession(ctx, req.SessionID)
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if sess == nil {
			return domain.ErrSessionNotFound
		}
		if sess.Status == domain.SessionCancelled {
			return domain.ErrSessionCancelled
		}
		if !sess.StartsAt.After(now) {
			return domain.ErrPastSession
		}

		dup, err := tx.HasActiveReservation(ctx, sess.ID, req.CustomerEmail)
		if err != nil {
			return fmt.Errorf("failed to check duplicates: %w", err)
		}
		if dup {
			return domain.ErrDuplicateReservation
		}

		r := &domain.Reservation{
			ReservationNumber: domain.NewReservationNumber(now),
			SessionID:         sess.ID,
			CustomerName:      req.CustomerName,
			CustomerEmail:     req.CustomerEmail,
			CustomerPhone:     req.CustomerPhone,
			Status:            domain.ReservationPending,
			ReservationType:   domain.ReservationSingle,
			PaymentStatus:     domain.PaymentNotRequired,
			Notes:             req.Notes,
		}
		if actor.UserID != 0 && actor.Email == req.CustomerEmail {
			uid := actor.UserID
			r.UserID = &uid
		}

		// Full sessions put the customer on the waitlist at max+1.
		if !sess.HasFreeSeat() {
			pos, err := tx.NextQueuePosition(ctx, sess.ID)
			if err != nil {
				return fmt.Errorf("failed to assign queue position: %w", err)
			}
			r.QueuePosition = &pos
		}

		switch req.Kind {
		case domain.KindUsePack:
			pack, err := tx.ConsumePack(ctx, *req.PackID, sess.ServiceID, req.CustomerEmail, now)
			if err != nil {
				return err
			}
			r.ReservationType = domain.ReservationPack
			r.PackID = &pack.ID
		case domain.KindPack:
			if !sess.Service.SellsPacks() {
				return fmt.Errorf("%w: %s is not sold as a pack", domain.ErrInvalidKind, sess.Service.Name)
			}
			r.ReservationType = domain.ReservationPack
			r.PaymentStatus = domain.PaymentPending
		default:
			if sess.Service.PriceCents > 0 {
				r.PaymentStatus = domain.PaymentPending
			}
		}

		if err := tx.InsertReservation(ctx, r); err != nil {
			return fmt.Errorf("failed to insert reservation: %w", err)
		}
		res, session = r, sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.ServiceName = session.Service.Name
	res.StartsAt = &session.StartsAt

	if idempotencyKey != "" {
		if _, err := s.idempotencyRepo.Remember(ctx, idempotencyKey, res.ID); err != nil {
			logger.ErrorContext(ctx, "Failed to store idempotency record", "error", err, "reservation_id", res.ID)
		}
	}

	logger.InfoContext(ctx, "Reservation created",
		"reservation_id", res.ID,
		"session_id", res.SessionID,
		"kind", req.Kind,
		"queued", res.IsQueued(),
	)

	if res.PaymentStatus == domain.PaymentPending {
		checkout, err := s.payments.CreateCheckout(ctx, s.checkoutRequest(res, session, req.Kind))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to create checkout session", "error", err, "reservation_id", res.ID)
			return nil, fmt.Errorf("%w: %v", domain.ErrPaymentProvider, err)
		}
		res.CheckoutURL = checkout.URL
		res.CheckoutSessionID = &checkout.ID
		if err := s.reservationRepo.SetCheckoutSession(ctx, res.ID, checkout.ID); err != nil {
			logger.ErrorContext(ctx, "Failed to store checkout session", "error", err, "reservation_id", res.ID)
		}
	}

	subject := events.ReservationCreated
	if res.IsQueued() {
		subject = events.ReservationWaitlisted
	}
	s.publish(ctx, subject, s.reservationEvent(res, session, ""), res.ID)

	return res, nil
}

// CancelReservation cancels on behalf of a customer or an admin. Admins skip
// the past-session and 24h checks.
func (s *bookingService) CancelReservation(ctx context.Context, req *domain.CancelReservationReq, actor domain.Actor) (*domain.Reservation, error) {
	existing, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	if actor.IsGuest() {
		actor.Email = utils.NormalizeEmail(req.Email)
		if actor.Email == "" {
			return nil, fmt.Errorf("%w: email", domain.ErrMissingField)
		}
	}
	if !actor.Admin && !existing.IsUserOwner(actor.UserID) && !existing.IsOwner(actor.Email) {
		return nil, domain.ErrNotAuthorized
	}

	canceledBy := "customer"
	if actor.Admin {
		canceledBy = "admin"
	}
	return s.cancel(ctx, existing, canceledBy, req.Reason, !actor.Admin)
}

func (s *bookingService) resolve(ctx context.Context, req *domain.CancelReservationReq) (*domain.Reservation, error) {
	var (
		res *domain.Reservation
		err error
	)
	switch {
	case req.ReservationID > 0:
		res, err = s.reservationRepo.GetByID(ctx, req.ReservationID)
	case req.ReservationNumber != "":
		res, err = s.reservationRepo.GetByNumber(ctx, req.ReservationNumber)
	default:
		return nil, fmt.Errorf("%w: reservation_id or reservation_number", domain.ErrMissingField)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if res == nil {
		return nil, domain.ErrReservationNotFound
	}
	return res, nil
}

func (s *bookingService) cancel(ctx context.Context, existing *domain.Reservation, canceledBy, reason string, enforcePolicy bool) (*domain.Reservation, error) {
	now := s.now()
	reason = utils.NormalizeString(reason)

	var (
		res      *domain.Reservation
		session  *domain.Session
		promoted *domain.Reservation
	)
	err := s.reservationRepo.Atomic(ctx, func(tx repository.ReservationTx) error {
		sess, err := tx.LockSession(ctx, existing.SessionID)
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if sess == nil {
			return domain.ErrSessionNotFound
		}
		r, err := tx.LockReservation(ctx, existing.ID)
		if err != nil {
			return fmt.Errorf("failed to lock reservation: %w", err)
		}
		if r == nil {
			return domain.ErrReservationNotFound
		}

		if enforcePolicy {
			if err := domain.CheckCancellable(r, sess, now); err != nil {
				return err
			}
		} else if r.Status == domain.ReservationCancelled {
			return domain.ErrAlreadyCancelled
		} else if r.Status.IsTerminal() {
			return domain.ErrInvalidTransition
		}

		next, err := cancelLocked(ctx, tx, sess, r, reason, now)
		if err != nil {
			return err
		}
		res, session, promoted = r, sess, next
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.ServiceName = session.Service.Name
	res.StartsAt = &session.StartsAt

	logger.InfoContext(ctx, "Reservation cancelled",
		"reservation_id", res.ID,
		"session_id", res.SessionID,
		"canceled_by", canceledBy,
		"next_in_line", promoted != nil,
	)

	ev := s.reservationEvent(res, session, reason)
	ev.CanceledBy = canceledBy
	s.publish(ctx, events.ReservationCanceled, ev, res.ID)

	if promoted != nil {
		s.publish(ctx, events.ReservationSeatOpened, s.reservationEvent(promoted, session, ""), promoted.ID)
	}
	return res, nil
}

// cancelLocked applies the cancellation side effects on locked rows and
// returns the next waitlisted reservation when a seat was given up. The
// waitlisted reservation itself is not modified.
func cancelLocked(ctx context.Context, tx repository.ReservationTx, sess *domain.Session, r *domain.Reservation, reason string, now time.Time) (*domain.Reservation, error) {
	heldSeat := r.HoldsSeat()
	wasQueued := r.IsQueued()

	r.Status = domain.ReservationCancelled
	r.CancelledAt = &now
	if reason != "" {
		r.CancellationReason = &reason
	}
	if err := tx.UpdateReservation(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}

	if heldSeat {
		sess.Release()
		if err := tx.SetSessionOccupancy(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to release seat: %w", err)
		}
	}

	if r.DrawsFromPack() {
		if err := tx.RestorePack(ctx, *r.PackID); err != nil {
			return nil, fmt.Errorf("failed to restore pack: %w", err)
		}
	}

	if wasQueued || sess.Status == domain.SessionCancelled {
		return nil, nil
	}
	next, err := tx.NextInQueue(ctx, sess.ID, r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find next in queue: %w", err)
	}
	return next, nil
}

func (s *bookingService) TransitionStatus(ctx context.Context, id int64, to domain.ReservationStatus, reason string) (*domain.Reservation, error) {
	existing, err := s.reservationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if existing == nil {
		return nil, domain.ErrReservationNotFound
	}

	if to == domain.ReservationCancelled {
		if !domain.CanTransition(existing.Status, to) {
			if existing.Status == domain.ReservationCancelled {
				return nil, domain.ErrAlreadyCancelled
			}
			return nil, domain.ErrInvalidTransition
		}
		return s.cancel(ctx, existing, "admin", reason, false)
	}

	now := s.now()
	var (
		res      *domain.Reservation
		session  *domain.Session
		promoted bool
	)
	err = s.reservationRepo.Atomic(ctx, func(tx repository.ReservationTx) error {
		sess, err := tx.LockSession(ctx, existing.SessionID)
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if sess == nil {
			return domain.ErrSessionNotFound
		}
		r, err := tx.LockReservation(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to lock reservation: %w", err)
		}
		if r == nil {
			return domain.ErrReservationNotFound
		}
		if !domain.CanTransition(r.Status, to) {
			return domain.ErrInvalidTransition
		}

		if to == domain.ReservationConfirmed {
			if sess.Status == domain.SessionCancelled {
				return domain.ErrSessionCancelled
			}
			if !sess.HasFreeSeat() {
				return domain.ErrSessionFull
			}
			promoted = r.IsQueued()
			r.QueuePosition = nil
			r.ConfirmedAt = &now
			sess.Occupy()
			if err := tx.SetSessionOccupancy(ctx, sess); err != nil {
				return fmt.Errorf("failed to take seat: %w", err)
			}
		}
		r.Status = to

		if err := tx.UpdateReservation(ctx, r); err != nil {
			return fmt.Errorf("failed to update reservation: %w", err)
		}
		res, session = r, sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.ServiceName = session.Service.Name
	res.StartsAt = &session.StartsAt

	logger.InfoContext(ctx, "Reservation status changed",
		"reservation_id", res.ID,
		"from", existing.Status,
		"to", to,
		"promoted", promoted,
	)

	if to == domain.ReservationConfirmed {
		s.publish(ctx, events.ReservationConfirmed, s.reservationEvent(res, session, ""), res.ID)
	}
	return res, nil
}

func (s *bookingService) GetReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	res, err := s.reservationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if res == nil {
		return nil, domain.ErrReservationNotFound
	}
	return res, nil
}

// LookupReservation lets a guest read a reservation by number. A wrong email
// looks the same as an unknown number.
func (s *bookingService) LookupReservation(ctx context.Context, number, email string) (*domain.Reservation, error) {
	if number == "" || email == "" {
		return nil, fmt.Errorf("%w: reservation number and email", domain.ErrMissingField)
	}
	res, err := s.reservationRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if res == nil || !res.IsOwner(utils.NormalizeEmail(email)) {
		return nil, domain.ErrReservationNotFound
	}
	return res, nil
}

func (s *bookingService) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	return s.reservationRepo.List(ctx, filter)
}

func (s *bookingService) ListMyReservations(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.Reservation, error) {
	if actor.UserID == 0 {
		return nil, domain.ErrNotAuthorized
	}
	return s.reservationRepo.ListByUserID(ctx, actor.UserID, limit, offset)
}

// CancelSession soft-cancels a session and every reservation still open on it.
func (s *bookingService) CancelSession(ctx context.Context, sessionID int64, reason string) (*domain.Session, error) {
	now := s.now()
	reason = utils.NormalizeString(reason)
	if reason == "" {
		reason = "session cancelled by the studio"
	}

	var (
		session   *domain.Session
		cancelled []domain.Reservation
	)
	err := s.reservationRepo.Atomic(ctx, func(tx repository.ReservationTx) error {
		sess, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if sess == nil {
			return domain.ErrSessionNotFound
		}
		if sess.Status == domain.SessionCancelled {
			return domain.ErrSessionCancelled
		}

		active, err := tx.ActiveReservationsForSession(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("failed to list reservations: %w", err)
		}

		sess.Status = domain.SessionCancelled
		for i := range active {
			if _, err := cancelLocked(ctx, tx, sess, &active[i], reason, now); err != nil {
				return err
			}
		}
		sess.CurrentParticipants = 0
		if err := tx.SetSessionOccupancy(ctx, sess); err != nil {
			return fmt.Errorf("failed to cancel session: %w", err)
		}
		session, cancelled = sess, active
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Session cancelled", "session_id", sessionID, "reservations", len(cancelled))

	for i := range cancelled {
		ev := s.reservationEvent(&cancelled[i], session, reason)
		ev.CanceledBy = "studio"
		s.publish(ctx, events.ReservationCanceled, ev, cancelled[i].ID)
	}
	return session, nil
}

func (s *bookingService) HandleCheckoutCompleted(ctx context.Context, c *payments.CheckoutCompleted) error {
	if c.ReservationID == 0 {
		logger.WarnContext(ctx, "Checkout without reservation metadata", "checkout_session_id", c.CheckoutSessionID)
		return nil
	}
	if !c.Paid {
		logger.InfoContext(ctx, "Checkout completed without payment yet", "reservation_id", c.ReservationID)
		return nil
	}

	existing, err := s.reservationRepo.GetByID(ctx, c.ReservationID)
	if err != nil {
		return fmt.Errorf("failed to get reservation: %w", err)
	}
	if existing == nil {
		return domain.ErrReservationNotFound
	}
	if existing.PaymentStatus == domain.PaymentPaid {
		return nil
	}

	now := s.now()
	var (
		res       *domain.Reservation
		session   *domain.Session
		pack      *domain.CustomerPack
		confirmed bool
	)
	err = s.reservationRepo.Atomic(ctx, func(tx repository.ReservationTx) error {
		sess, err := tx.LockSession(ctx, existing.SessionID)
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if sess == nil {
			return domain.ErrSessionNotFound
		}
		r, err := tx.LockReservation(ctx, existing.ID)
		if err != nil {
			return fmt.Errorf("failed to lock reservation: %w", err)
		}
		if r == nil {
			return domain.ErrReservationNotFound
		}
		if r.PaymentStatus == domain.PaymentPaid {
			return nil
		}

		r.PaymentStatus = domain.PaymentPaid
		if c.PaymentIntentID != "" {
			pi := c.PaymentIntentID
			r.PaymentIntentID = &pi
		}
		if c.CheckoutSessionID != "" {
			cs := c.CheckoutSessionID
			r.CheckoutSessionID = &cs
		}

		if c.Kind == string(domain.KindPack) && r.PackID == nil {
			p := domain.NewPack(&sess.Service, r.CustomerName, r.CustomerEmail, r.UserID, c.PaymentIntentID, now)
			// The class booked with the purchase is the pack's first use.
			if r.Status != domain.ReservationCancelled {
				p.UsedSessions = 1
				if p.Remaining() == 0 {
					p.Status = domain.PackExhausted
				}
				r.ReservationType = domain.ReservationPack
			}
			if err := tx.InsertPack(ctx, p); err != nil {
				return fmt.Errorf("failed to create pack: %w", err)
			}
			if r.Status != domain.ReservationCancelled {
				r.PackID = &p.ID
			}
			pack = p
		}

		if r.Status == domain.ReservationPending && !r.IsQueued() &&
			sess.Status != domain.SessionCancelled && sess.HasFreeSeat() {
			r.Status = domain.ReservationConfirmed
			r.ConfirmedAt = &now
			sess.Occupy()
			if err := tx.SetSessionOccupancy(ctx, sess); err != nil {
				return fmt.Errorf("failed to take seat: %w", err)
			}
			confirmed = true
		}

		if err := tx.UpdateReservation(ctx, r); err != nil {
			return fmt.Errorf("failed to update reservation: %w", err)
		}
		res, session = r, sess
		return nil
	})
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}

	logger.InfoContext(ctx, "Payment received",
		"reservation_id", res.ID,
		"pack_created", pack != nil,
		"confirmed", confirmed,
	)

	if pack != nil {
		s.publish(ctx, events.PackCreated, events.PackCreatedEvent{
			PackID:        pack.ID,
			ServiceName:   session.Service.Name,
			CustomerName:  pack.CustomerName,
			CustomerEmail: pack.CustomerEmail,
			TotalSessions: pack.TotalSessions,
			Remaining:     pack.Remaining(),
			ExpiresAt:     pack.ExpiresAt,
			OccurredAt:    now,
		}, res.ID)
	}
	if confirmed {
		s.publish(ctx, events.ReservationConfirmed, s.reservationEvent(res, session, ""), res.ID)
	}
	return nil
}

// HandlePaymentFailed marks the matching reservation as failed and changes nothing else.
func (s *bookingService) HandlePaymentFailed(ctx context.Context, f *payments.PaymentFailed) error {
	var target *domain.Reservation
	if f.ReservationID > 0 {
		r, err := s.reservationRepo.GetByID(ctx, f.ReservationID)
		if err != nil {
			return fmt.Errorf("failed to get reservation: %w", err)
		}
		if r != nil && (f.CustomerEmail == "" || r.IsOwner(f.CustomerEmail)) {
			target = r
		}
	}
	if target == nil && f.PaymentIntentID != "" {
		r, err := s.reservationRepo.GetByPaymentIntent(ctx, f.PaymentIntentID)
		if err != nil {
			return fmt.Errorf("failed to get reservation: %w", err)
		}
		target = r
	}
	if target == nil {
		logger.WarnContext(ctx, "No reservation matches failed payment", "payment_intent_id", f.PaymentIntentID)
		return nil
	}

	changed := false
	err := s.reservationRepo.Atomic(ctx, func(tx repository.ReservationTx) error {
		r, err := tx.LockReservation(ctx, target.ID)
		if err != nil {
			return fmt.Errorf("failed to lock reservation: %w", err)
		}
		if r == nil || r.PaymentStatus == domain.PaymentPaid || r.PaymentStatus == domain.PaymentFailed {
			return nil
		}
		r.PaymentStatus = domain.PaymentFailed
		if r.PaymentIntentID == nil && f.PaymentIntentID != "" {
			pi := f.PaymentIntentID
			r.PaymentIntentID = &pi
		}
		changed = true
		return tx.UpdateReservation(ctx, r)
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	logger.InfoContext(ctx, "Payment failed", "reservation_id", target.ID, "reason", f.Reason)
	s.publish(ctx, events.PaymentFailed, events.PaymentFailedEvent{
		ReservationID:   target.ID,
		CustomerEmail:   target.CustomerEmail,
		PaymentIntentID: f.PaymentIntentID,
		Reason:          f.Reason,
		OccurredAt:      s.now(),
	}, target.ID)
	return nil
}

func (s *bookingService) checkoutRequest(r *domain.Reservation, sess *domain.Session, kind domain.BookingKind) payments.CheckoutRequest {
	when := sess.StartsAt.In(s.config.Studio.Location()).Format("Mon 2 Jan 2006 15:04")
	req := payments.CheckoutRequest{
		ReservationID:     r.ID,
		ReservationNumber: r.ReservationNumber,
		SessionID:         sess.ID,
		ServiceID:         sess.ServiceID,
		Kind:              string(kind),
		CustomerEmail:     r.CustomerEmail,
		ProductName:       sess.Service.Name,
		Description:       when,
		AmountCents:       sess.Service.PriceCents,
	}
	if kind == domain.KindPack {
		req.ProductName = fmt.Sprintf("%s pack of %d", sess.Service.Name, sess.Service.PackSize)
		req.Description = "First class: " + when
		req.AmountCents = sess.Service.PackPriceCents
	}
	return req
}

func (s *bookingService) reservationEvent(r *domain.Reservation, sess *domain.Session, reason string) events.ReservationEvent {
	return events.ReservationEvent{
		ReservationID:     r.ID,
		ReservationNumber: r.ReservationNumber,
		SessionID:         sess.ID,
		ServiceName:       sess.Service.Name,
		StartsAt:          sess.StartsAt,
		EndsAt:            sess.EndsAt,
		CustomerName:      r.CustomerName,
		CustomerEmail:     r.CustomerEmail,
		CustomerPhone:     r.CustomerPhone,
		Status:            string(r.Status),
		QueuePosition:     r.QueuePosition,
		ReservationType:   string(r.ReservationType),
		CheckoutURL:       r.CheckoutURL,
		Reason:            reason,
		OccurredAt:        s.now(),
	}
}

// publish never fails the caller; notifications are best effort.
func (s *bookingService) publish(ctx context.Context, subject string, event any, reservationID int64) {
	if err := s.eventBus.Publish(ctx, subject, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "error", err, "subject", subject, "reservation_id", reservationID)
	}
}

func normalizeReservationReq(req *domain.CreateReservationReq, actor domain.Actor) error {
	req.CustomerName = utils.NormalizeString(req.CustomerName)
	req.CustomerEmail = utils.NormalizeEmail(req.CustomerEmail)
	req.CustomerPhone = utils.NormalizePhone(req.CustomerPhone)
	req.Notes = utils.NormalizeString(req.Notes)
	if req.CustomerEmail == "" && actor.UserID != 0 {
		req.CustomerEmail = actor.Email
	}

	if req.SessionID <= 0 {
		return fmt.Errorf("%w: session_id", domain.ErrMissingField)
	}
	if req.CustomerName == "" {
		return fmt.Errorf("%w: customer_name", domain.ErrMissingField)
	}
	if req.CustomerEmail == "" {
		return fmt.Errorf("%w: customer_email", domain.ErrMissingField)
	}
	if !utils.IsValidEmail(req.CustomerEmail) {
		return domain.ErrInvalidEmail
	}
	if req.CustomerPhone != "" && !utils.IsValidPhone(req.CustomerPhone) {
		return fmt.Errorf("%w: customer_phone", domain.ErrInvalidInput)
	}

	kind, ok := domain.ParseBookingKind(string(req.Kind))
	if !ok {
		return domain.ErrInvalidKind
	}
	req.Kind = kind
	if kind == domain.KindUsePack {
		if req.PackID == nil || *req.PackID <= 0 {
			return fmt.Errorf("%w: pack_id", domain.ErrMissingField)
		}
	} else {
		req.PackID = nil
	}
	return nil
}

// IsClientError reports whether err belongs to the booking error taxonomy
// rather than an infrastructure failure.
func IsClientError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidEmail, domain.ErrMissingField, domain.ErrInvalidKind, domain.ErrInvalidStatus, domain.ErrInvalidInput,
		domain.ErrSessionNotFound, domain.ErrServiceNotFound, domain.ErrReservationNotFound, domain.ErrPackNotFound, domain.ErrUserNotFound,
		domain.ErrDuplicateReservation, domain.ErrAlreadyCancelled, domain.ErrInvalidTransition, domain.ErrSessionFull,
		domain.ErrSessionCancelled, domain.ErrPackUnavailable, domain.ErrEmailTaken,
		domain.ErrPastSession, domain.ErrCancellationWindow, domain.ErrNotAuthorized, domain.ErrInvalidCredentials,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
