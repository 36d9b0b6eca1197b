package mailer

import (
	"context"
	"sync"

	"github.com/diagnosis/studio-bookings/pkg/logger"
	"github.com/google/uuid"
)

// DevMailer prints emails to the log instead of sending them and keeps the
// last messages around for inspection.
type DevMailer struct {
	mu   sync.Mutex
	sent []Message
}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(ctx context.Context, msg Message) (string, error) {
	id := "dev-" + uuid.NewString()
	logger.InfoContext(ctx, "📧 [DEV MAIL]",
		"to", msg.ToEmail,
		"name", msg.ToName,
		"subject", msg.Subject,
		"text", msg.Text,
		"message_id", id,
	)

	d.mu.Lock()
	d.sent = append(d.sent, msg)
	if len(d.sent) > 100 {
		d.sent = d.sent[len(d.sent)-100:]
	}
	d.mu.Unlock()
	return id, nil
}

func (d *DevMailer) Sent() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Message, len(d.sent))
	copy(out, d.sent)
	return out
}
