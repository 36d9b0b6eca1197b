package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	EmailSent   = "sent"
	EmailFailed = "failed"
)

// EmailLog is one delivery attempt.
type EmailLog struct {
	ID                int64
	EventSubject      string
	Recipient         string
	Subject           string
	Status            string
	ProviderMessageID string
	Error             string
	CreatedAt         time.Time
}

type EmailLogRepository interface {
	Record(ctx context.Context, entry *EmailLog) error
}

type emailLogRepository struct {
	pool *pgxpool.Pool
}

func NewEmailLogRepository(pool *pgxpool.Pool) EmailLogRepository {
	return &emailLogRepository{pool: pool}
}

func (r *emailLogRepository) Record(ctx context.Context, entry *EmailLog) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	const q = `
		INSERT INTO email_logs (event_subject, recipient, subject, status, provider_message_id, error)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, q,
		entry.EventSubject, entry.Recipient, entry.Subject, entry.Status,
		entry.ProviderMessageID, entry.Error,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record email log: %w", err)
	}
	return nil
}
