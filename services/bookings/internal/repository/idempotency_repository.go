package repository

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const idempotencyTTL = 24 * time.Hour

type IdempotencyRepository interface {
	// Lookup returns the reservation recorded for key, or 0 when there is none.
	Lookup(ctx context.Context, key string) (int64, error)
	// Remember records key for reservationID. An existing record wins and its id is returned.
	Remember(ctx context.Context, key string, reservationID int64) (int64, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

type idempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) IdempotencyRepository {
	return &idempotencyRepository{pool: pool}
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum)
}

func (r *idempotencyRepository) Lookup(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	const q = `SELECT reservation_id FROM booking_idempotency WHERE key_hash=$1 AND expires_at > now()`
	err := r.pool.QueryRow(ctx, q, hashKey(key)).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return id, err
}

func (r *idempotencyRepository) Remember(ctx context.Context, key string, reservationID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	const q = `
		INSERT INTO booking_idempotency (key_hash, reservation_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key_hash) DO UPDATE SET
			reservation_id = CASE WHEN booking_idempotency.expires_at < now()
				THEN EXCLUDED.reservation_id ELSE booking_idempotency.reservation_id END,
			expires_at = GREATEST(booking_idempotency.expires_at, EXCLUDED.expires_at)
		RETURNING reservation_id`

	var id int64
	err := r.pool.QueryRow(ctx, q, hashKey(key), reservationID, time.Now().Add(idempotencyTTL)).Scan(&id)
	return id, err
}

func (r *idempotencyRepository) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, `DELETE FROM booking_idempotency WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
