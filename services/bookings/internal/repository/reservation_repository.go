package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/studio-bookings/services/bookings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationRepository serves reservation reads and runs every
// capacity-affecting write inside Atomic.
type ReservationRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Reservation, error)
	GetByNumber(ctx context.Context, number string) (*domain.Reservation, error)
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Reservation, error)
	List(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error)
	ListByEmail(ctx context.Context, email string, limit, offset int) ([]domain.Reservation, error)
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]domain.Reservation, error)
	SetCheckoutSession(ctx context.Context, id int64, checkoutSessionID string) error
	Atomic(ctx context.Context, fn func(tx ReservationTx) error) error
}

// ReservationTx is the set of statements available inside one database
// transaction. Locks must be taken session first, then reservation.
type ReservationTx interface {
	LockSession(ctx context.Context, id int64) (*domain.Session, error)
	LockReservation(ctx context.Context, id int64) (*domain.Reservation, error)
	HasActiveReservation(ctx context.Context, sessionID int64, email string) (bool, error)
	NextQueuePosition(ctx context.Context, sessionID int64) (int, error)
	InsertReservation(ctx context.Context, res *domain.Reservation) error
	UpdateReservation(ctx context.Context, res *domain.Reservation) error
	SetSessionOccupancy(ctx context.Context, s *domain.Session) error
	ConsumePack(ctx context.Context, packID, serviceID int64, email string, now time.Time) (*domain.CustomerPack, error)
	RestorePack(ctx context.Context, packID int64) error
	InsertPack(ctx context.Context, p *domain.CustomerPack) error
	NextInQueue(ctx context.Context, sessionID, excludeID int64) (*domain.Reservation, error)
	ActiveReservationsForSession(ctx context.Context, sessionID int64) ([]domain.Reservation, error)
}

type reservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) ReservationRepository {
	return &reservationRepository{pool: pool}
}

const reservationCols = `r.id, r.reservation_number, r.session_id, r.user_id,
r.customer_name, r.customer_email, r.customer_phone,
r.status, r.queue_position, r.reservation_type, r.pack_id,
r.payment_status, r.payment_intent_id, r.checkout_session_id, r.notes,
r.confirmed_at, r.cancelled_at, r.cancellation_reason, r.created_at, r.updated_at`

// Read views add the session details and the live waitlist rank.
const reservationReadCols = reservationCols + `, sv.name, s.starts_at,
CASE WHEN r.status = 'pending' AND r.queue_position IS NOT NULL THEN (
	SELECT count(*) + 1 FROM reservations q
	WHERE q.session_id = r.session_id AND q.status = 'pending'
	AND q.queue_position IS NOT NULL AND q.queue_position < r.queue_position
) END`

const reservationFrom = ` FROM reservations r
JOIN sessions s ON s.id = r.session_id
JOIN services sv ON sv.id = s.service_id`

func reservationDest(res *domain.Reservation) []any {
	return []any{
		&res.ID, &res.ReservationNumber, &res.SessionID, &res.UserID,
		&res.CustomerName, &res.CustomerEmail, &res.CustomerPhone,
		&res.Status, &res.QueuePosition, &res.ReservationType, &res.PackID,
		&res.PaymentStatus, &res.PaymentIntentID, &res.CheckoutSessionID, &res.Notes,
		&res.ConfirmedAt, &res.CancelledAt, &res.CancellationReason, &res.CreatedAt, &res.UpdatedAt,
	}
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := row.Scan(reservationDest(&res)...); err != nil {
		return nil, err
	}
	return &res, nil
}

func scanReservationRead(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	var rank *int64
	dest := append(reservationDest(&res), &res.ServiceName, &res.StartsAt, &rank)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if rank != nil {
		n := int(*rank)
		res.WaitlistRank = &n
	}
	return &res, nil
}

func (r *reservationRepository) getOne(ctx context.Context, where string, arg any) (*domain.Reservation, error) {
	q := `SELECT ` + reservationReadCols + reservationFrom + ` WHERE ` + where
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := scanReservationRead(r.pool.QueryRow(ctx, q, arg))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return res, err
}

func (r *reservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	return r.getOne(ctx, `r.id=$1`, id)
}

func (r *reservationRepository) GetByNumber(ctx context.Context, number string) (*domain.Reservation, error) {
	return r.getOne(ctx, `r.reservation_number=$1`, strings.ToUpper(strings.TrimSpace(number)))
}

func (r *reservationRepository) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Reservation, error) {
	return r.getOne(ctx, `r.payment_intent_id=$1`, paymentIntentID)
}

func (r *reservationRepository) List(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)

	var where []string
	var args []any
	if filter.SessionID != nil {
		args = append(args, *filter.SessionID)
		where = append(where, fmt.Sprintf("r.session_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.Email != "" {
		args = append(args, filter.Email)
		where = append(where, fmt.Sprintf("lower(r.customer_email) = lower($%d)", len(args)))
	}

	q := `SELECT ` + reservationReadCols + reservationFrom
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	q += fmt.Sprintf(` ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.query(ctx, q, args...)
}

func (r *reservationRepository) ListByEmail(ctx context.Context, email string, limit, offset int) ([]domain.Reservation, error) {
	limit, offset = clampPage(limit, offset)
	const q = `SELECT ` + reservationReadCols + reservationFrom + `
	WHERE lower(r.customer_email)=lower($1) ORDER BY s.starts_at DESC LIMIT $2 OFFSET $3`
	return r.query(ctx, q, email, limit, offset)
}

func (r *reservationRepository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]domain.Reservation, error) {
	limit, offset = clampPage(limit, offset)
	const q = `SELECT ` + reservationReadCols + reservationFrom + `
	WHERE r.user_id=$1 ORDER BY s.starts_at DESC LIMIT $2 OFFSET $3`
	return r.query(ctx, q, userID, limit, offset)
}

func (r *reservationRepository) query(ctx context.Context, q string, args ...any) ([]domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservationRead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func (r *reservationRepository) SetCheckoutSession(ctx context.Context, id int64, checkoutSessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, `UPDATE reservations SET checkout_session_id=$2, updated_at=now() WHERE id=$1`, id, checkoutSessionID)
	return err
}

// Atomic runs fn in a single transaction, committing only when fn returns nil.
func (r *reservationRepository) Atomic(ctx context.Context, fn func(tx ReservationTx) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&reservationTx{tx: tx})
	})
}

type reservationTx struct {
	tx pgx.Tx
}

func (t *reservationTx) LockSession(ctx context.Context, id int64) (*domain.Session, error) {
	const q = `SELECT ` + sessionCols + sessionFrom + ` WHERE s.id=$1 FOR UPDATE OF s`
	s, err := scanSession(t.tx.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (t *reservationTx) LockReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations r WHERE r.id=$1 FOR UPDATE`
	res, err := scanReservation(t.tx.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return res, err
}

func (t *reservationTx) HasActiveReservation(ctx context.Context, sessionID int64, email string) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM reservations
		WHERE session_id=$1 AND lower(customer_email)=lower($2)
		AND status NOT IN ('cancelled', 'no_show')
	)`
	var exists bool
	err := t.tx.QueryRow(ctx, q, sessionID, email).Scan(&exists)
	return exists, err
}

func (t *reservationTx) NextQueuePosition(ctx context.Context, sessionID int64) (int, error) {
	const q = `SELECT COALESCE(MAX(queue_position), 0) + 1 FROM reservations
	WHERE session_id=$1 AND queue_position IS NOT NULL`
	var next int
	err := t.tx.QueryRow(ctx, q, sessionID).Scan(&next)
	return next, err
}

func (t *reservationTx) InsertReservation(ctx context.Context, res *domain.Reservation) error {
	const q = `INSERT INTO reservations (
		reservation_number, session_id, user_id,
		customer_name, customer_email, customer_phone,
		status, queue_position, reservation_type, pack_id,
		payment_status, notes
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	RETURNING id, created_at, updated_at`

	return t.tx.QueryRow(ctx, q,
		res.ReservationNumber, res.SessionID, res.UserID,
		res.CustomerName, res.CustomerEmail, res.CustomerPhone,
		res.Status, res.QueuePosition, res.ReservationType, res.PackID,
		res.PaymentStatus, res.Notes,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
}

func (t *reservationTx) UpdateReservation(ctx context.Context, res *domain.Reservation) error {
	const q = `UPDATE reservations SET
		status=$2, queue_position=$3, reservation_type=$4, pack_id=$5,
		payment_status=$6, payment_intent_id=$7, checkout_session_id=$8,
		confirmed_at=$9, cancelled_at=$10, cancellation_reason=$11, updated_at=now()
	WHERE id=$1
	RETURNING updated_at`

	return t.tx.QueryRow(ctx, q, res.ID,
		res.Status, res.QueuePosition, res.ReservationType, res.PackID,
		res.PaymentStatus, res.PaymentIntentID, res.CheckoutSessionID,
		res.ConfirmedAt, res.CancelledAt, res.CancellationReason,
	).Scan(&res.UpdatedAt)
}

func (t *reservationTx) SetSessionOccupancy(ctx context.Context, s *domain.Session) error {
	const q = `UPDATE sessions SET current_participants=$2, status=$3, updated_at=now()
	WHERE id=$1 RETURNING updated_at`
	return t.tx.QueryRow(ctx, q, s.ID, s.CurrentParticipants, s.Status).Scan(&s.UpdatedAt)
}

func (t *reservationTx) ConsumePack(ctx context.Context, packID, serviceID int64, email string, now time.Time) (*domain.CustomerPack, error) {
	const q = `UPDATE customer_packs p SET
		used_sessions = used_sessions + 1,
		status = CASE WHEN used_sessions + 1 >= total_sessions THEN 'exhausted' ELSE status END,
		updated_at = now()
	FROM services sv
	WHERE p.id=$1 AND sv.id = p.service_id
	AND lower(p.customer_email)=lower($2) AND p.service_id=$3
	AND p.status='active' AND p.expires_at > $4 AND p.used_sessions < p.total_sessions
	RETURNING ` + packCols

	p, err := scanPack(t.tx.QueryRow(ctx, q, packID, email, serviceID, now))
	if err == nil {
		return p, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	var exists bool
	const check = `SELECT EXISTS (SELECT 1 FROM customer_packs WHERE id=$1 AND lower(customer_email)=lower($2))`
	if err := t.tx.QueryRow(ctx, check, packID, email).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrPackNotFound
	}
	return nil, domain.ErrPackUnavailable
}

func (t *reservationTx) RestorePack(ctx context.Context, packID int64) error {
	const q = `UPDATE customer_packs SET
		used_sessions = GREATEST(used_sessions - 1, 0),
		status = CASE WHEN status = 'exhausted' THEN 'active' ELSE status END,
		updated_at = now()
	WHERE id=$1`
	_, err := t.tx.Exec(ctx, q, packID)
	return err
}

func (t *reservationTx) InsertPack(ctx context.Context, p *domain.CustomerPack) error {
	const q = `INSERT INTO customer_packs (
		service_id, user_id, customer_name, customer_email,
		total_sessions, used_sessions, status, expires_at, payment_intent_id
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	RETURNING id, created_at, updated_at`

	return t.tx.QueryRow(ctx, q,
		p.ServiceID, p.UserID, p.CustomerName, p.CustomerEmail,
		p.TotalSessions, p.UsedSessions, p.Status, p.ExpiresAt, p.PaymentIntentID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (t *reservationTx) NextInQueue(ctx context.Context, sessionID, excludeID int64) (*domain.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations r
	WHERE r.session_id=$1 AND r.id <> $2
	AND r.status='pending' AND r.queue_position IS NOT NULL
	ORDER BY r.created_at ASC, r.queue_position ASC
	LIMIT 1`

	res, err := scanReservation(t.tx.QueryRow(ctx, q, sessionID, excludeID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return res, err
}

func (t *reservationTx) ActiveReservationsForSession(ctx context.Context, sessionID int64) ([]domain.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations r
	WHERE r.session_id=$1 AND r.status IN ('pending', 'confirmed')
	ORDER BY r.created_at
	FOR UPDATE`

	rows, err := t.tx.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
