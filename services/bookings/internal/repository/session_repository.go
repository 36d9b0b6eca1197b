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

type SessionRepository interface {
	CreateService(ctx context.Context, req *domain.CreateServiceReq) (*domain.Service, error)
	GetService(ctx context.Context, id int64) (*domain.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error)
	CreateSession(ctx context.Context, req *domain.CreateSessionReq) (*domain.Session, error)
	GetSession(ctx context.Context, id int64) (*domain.Session, error)
	ListSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error)
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

const serviceCols = `id, name, description, duration_minutes, price_cents,
pack_size, pack_price_cents, pack_validity_days, active, created_at`

const sessionCols = `s.id, s.service_id, s.starts_at, s.ends_at,
s.current_participants, s.max_participants, s.status, s.created_at, s.updated_at,
sv.id, sv.name, sv.description, sv.duration_minutes, sv.price_cents,
sv.pack_size, sv.pack_price_cents, sv.pack_validity_days, sv.active, sv.created_at`

const sessionFrom = ` FROM sessions s JOIN services sv ON sv.id = s.service_id`

func scanService(row pgx.Row) (*domain.Service, error) {
	var sv domain.Service
	err := row.Scan(
		&sv.ID, &sv.Name, &sv.Description, &sv.DurationMinutes, &sv.PriceCents,
		&sv.PackSize, &sv.PackPriceCents, &sv.PackValidityDays, &sv.Active, &sv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sv, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID, &s.ServiceID, &s.StartsAt, &s.EndsAt,
		&s.CurrentParticipants, &s.MaxParticipants, &s.Status, &s.CreatedAt, &s.UpdatedAt,
		&s.Service.ID, &s.Service.Name, &s.Service.Description, &s.Service.DurationMinutes, &s.Service.PriceCents,
		&s.Service.PackSize, &s.Service.PackPriceCents, &s.Service.PackValidityDays, &s.Service.Active, &s.Service.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) CreateService(ctx context.Context, req *domain.CreateServiceReq) (*domain.Service, error) {
	const q = `INSERT INTO services (
		name, description, duration_minutes, price_cents,
		pack_size, pack_price_cents, pack_validity_days
	) VALUES ($1,$2,$3,$4,$5,$6,$7)
	RETURNING ` + serviceCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanService(r.pool.QueryRow(ctx, q,
		req.Name, req.Description, req.DurationMinutes, req.PriceCents,
		req.PackSize, req.PackPriceCents, req.PackValidityDays,
	))
}

func (r *sessionRepository) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	const q = `SELECT ` + serviceCols + ` FROM services WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	sv, err := scanService(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return sv, err
}

func (r *sessionRepository) ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error) {
	q := `SELECT ` + serviceCols + ` FROM services`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY name`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []domain.Service
	for rows.Next() {
		sv, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *sv)
	}
	return services, rows.Err()
}

func (r *sessionRepository) CreateSession(ctx context.Context, req *domain.CreateSessionReq) (*domain.Session, error) {
	const q = `WITH ins AS (
		INSERT INTO sessions (service_id, starts_at, ends_at, max_participants, status)
		VALUES ($1,$2,$3,$4,'available')
		RETURNING *
	)
	SELECT ` + sessionCols + ` FROM ins s JOIN services sv ON sv.id = s.service_id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanSession(r.pool.QueryRow(ctx, q, req.ServiceID, req.StartsAt, req.EndsAt, req.MaxParticipants))
}

func (r *sessionRepository) GetSession(ctx context.Context, id int64) (*domain.Session, error) {
	const q = `SELECT ` + sessionCols + sessionFrom + ` WHERE s.id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	s, err := scanSession(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *sessionRepository) ListSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)

	var where []string
	var args []any
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("s.starts_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("s.starts_at < $%d", len(args)))
	}
	if filter.ServiceID != nil {
		args = append(args, *filter.ServiceID)
		where = append(where, fmt.Sprintf("s.service_id = $%d", len(args)))
	}

	q := `SELECT ` + sessionCols + sessionFrom
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	q += fmt.Sprintf(` ORDER BY s.starts_at LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
