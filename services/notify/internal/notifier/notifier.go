package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/events"
	"github.com/diagnosis/studio-bookings/pkg/logger"
	"github.com/diagnosis/studio-bookings/pkg/mailer"
	"github.com/diagnosis/studio-bookings/services/notify/internal/repository"
	"golang.org/x/sync/errgroup"
)

const handleTimeout = 30 * time.Second

type Notifier struct {
	mailer   mailer.Service
	logs     repository.EmailLogRepository
	renderer *Renderer
}

func New(m mailer.Service, logs repository.EmailLogRepository, renderer *Renderer) *Notifier {
	return &Notifier{mailer: m, logs: logs, renderer: renderer}
}

// Subscribe registers the notifier on every booking subject. Using a queue
// group means each event is mailed once however many replicas run.
func (n *Notifier) Subscribe(sub events.Subscriber, queue string) error {
	for _, subject := range events.Subjects {
		if err := sub.QueueSubscribe(subject, queue, n.onMessage); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
	}
	logger.Info("Notifier subscribed", "subjects", len(events.Subjects), "queue", queue)
	return nil
}

func (n *Notifier) onMessage(msg *events.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if err := n.Handle(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to handle event", "error", err, "subject", msg.Subject)
	}
}

// Handle renders and sends the emails for one event.
func (n *Notifier) Handle(ctx context.Context, msg *events.Message) error {
	var out []mailer.Message

	switch msg.Subject {
	case events.PackCreated:
		var ev events.PackCreatedEvent
		if err := msg.Decode(&ev); err != nil {
			return err
		}
		out = n.renderer.PackCreated(ev)
	case events.PaymentFailed:
		var ev events.PaymentFailedEvent
		if err := msg.Decode(&ev); err != nil {
			return err
		}
		out = n.renderer.PaymentFailed(ev)
	default:
		var ev events.ReservationEvent
		if err := msg.Decode(&ev); err != nil {
			return err
		}
		out = n.renderer.Reservation(msg.Subject, ev)
	}

	if len(out) == 0 {
		logger.DebugContext(ctx, "No email for event", "subject", msg.Subject)
		return nil
	}
	return n.deliver(ctx, msg.Subject, out)
}

// deliver sends every message concurrently. A failed send is logged and
// recorded; only a failure to write the log row is returned.
func (n *Notifier) deliver(ctx context.Context, eventSubject string, msgs []mailer.Message) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range msgs {
		m := m
		g.Go(func() error {
			entry := &repository.EmailLog{
				EventSubject: eventSubject,
				Recipient:    m.ToEmail,
				Subject:      m.Subject,
				Status:       repository.EmailSent,
			}

			id, err := n.mailer.Send(gctx, m)
			if err != nil {
				entry.Status = repository.EmailFailed
				entry.Error = err.Error()
				logger.WarnContext(gctx, "Email send failed", "error", err, "to", m.ToEmail, "subject", eventSubject)
			} else {
				entry.ProviderMessageID = id
				logger.InfoContext(gctx, "Email sent", "to", m.ToEmail, "subject", eventSubject, "message_id", id)
			}

			// The log row is written even if the send context is gone.
			return n.logs.Record(context.WithoutCancel(gctx), entry)
		})
	}
	return g.Wait()
}
