package repository

import (
	"context"
	"time"

	"github.com/diagnosis/studio-bookings/services/bookings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PackRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.CustomerPack, error)
	ListByEmail(ctx context.Context, email string) ([]domain.CustomerPack, error)
	List(ctx context.Context, limit, offset int) ([]domain.CustomerPack, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type packRepository struct {
	pool *pgxpool.Pool
}

func NewPackRepository(pool *pgxpool.Pool) PackRepository {
	return &packRepository{pool: pool}
}

const packCols = `p.id, p.service_id, sv.name, p.user_id, p.customer_name, p.customer_email,
p.total_sessions, p.used_sessions, p.status, p.expires_at, p.payment_intent_id,
p.created_at, p.updated_at`

const packFrom = ` FROM customer_packs p JOIN services sv ON sv.id = p.service_id`

func scanPack(row pgx.Row) (*domain.CustomerPack, error) {
	var p domain.CustomerPack
	err := row.Scan(
		&p.ID, &p.ServiceID, &p.ServiceName, &p.UserID, &p.CustomerName, &p.CustomerEmail,
		&p.TotalSessions, &p.UsedSessions, &p.Status, &p.ExpiresAt, &p.PaymentIntentID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *packRepository) GetByID(ctx context.Context, id int64) (*domain.CustomerPack, error) {
	const q = `SELECT ` + packCols + packFrom + ` WHERE p.id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	p, err := scanPack(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *packRepository) ListByEmail(ctx context.Context, email string) ([]domain.CustomerPack, error) {
	const q = `SELECT ` + packCols + packFrom + `
	WHERE lower(p.customer_email)=lower($1) ORDER BY p.created_at DESC`
	return r.query(ctx, q, email)
}

func (r *packRepository) List(ctx context.Context, limit, offset int) ([]domain.CustomerPack, error) {
	limit, offset = clampPage(limit, offset)
	const q = `SELECT ` + packCols + packFrom + ` ORDER BY p.created_at DESC LIMIT $1 OFFSET $2`
	return r.query(ctx, q, limit, offset)
}

// ExpireOverdue flips active packs past their expiry date to expired.
func (r *packRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	const q = `UPDATE customer_packs SET status='expired', updated_at=now()
	WHERE status='active' AND expires_at <= $1`
	tag, err := r.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *packRepository) query(ctx context.Context, q string, args ...any) ([]domain.CustomerPack, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packs []domain.CustomerPack
	for rows.Next() {
		p, err := scanPack(rows)
		if err != nil {
			return nil, err
		}
		packs = append(packs, *p)
	}
	return packs, rows.Err()
}
