package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

// Decode unmarshals the message payload into v.
func (m *Message) Decode(v interface{}) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Subject, err)
	}
	return nil
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(wrap(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(wrap(msg))
	})
	return err
}

// Drain lets in-flight handlers finish before closing the connection.
func (n *NATSEventBus) Drain() error {
	return n.conn.Drain()
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

func wrap(msg *nats.Msg) *Message {
	now := time.Now()
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: now,
		ID:        fmt.Sprintf("%d", now.UnixNano()),
	}
}

// Event subjects
const (
	ReservationCreated    = "reservation.created"
	ReservationWaitlisted = "reservation.waitlisted"
	ReservationConfirmed  = "reservation.confirmed"
	ReservationCanceled   = "reservation.canceled"
	ReservationSeatOpened = "reservation.seat_opened"

	PackCreated   = "pack.created"
	PaymentFailed = "payment.failed"
)

// Subjects lists every subject the notify service consumes.
var Subjects = []string{
	ReservationCreated,
	ReservationWaitlisted,
	ReservationConfirmed,
	ReservationCanceled,
	ReservationSeatOpened,
	PackCreated,
	PaymentFailed,
}

// ReservationEvent carries everything a notification needs so consumers never
// query the bookings database.
type ReservationEvent struct {
	ReservationID     int64     `json:"reservation_id"`
	ReservationNumber string    `json:"reservation_number"`
	SessionID         int64     `json:"session_id"`
	ServiceName       string    `json:"service_name"`
	StartsAt          time.Time `json:"starts_at"`
	EndsAt            time.Time `json:"ends_at"`
	CustomerName      string    `json:"customer_name"`
	CustomerEmail     string    `json:"customer_email"`
	CustomerPhone     string    `json:"customer_phone,omitempty"`
	Status            string    `json:"status"`
	QueuePosition     *int      `json:"queue_position,omitempty"`
	ReservationType   string    `json:"reservation_type"`
	CheckoutURL       string    `json:"checkout_url,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	CanceledBy        string    `json:"canceled_by,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

type PackCreatedEvent struct {
	PackID        int64     `json:"pack_id"`
	ServiceName   string    `json:"service_name"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	TotalSessions int       `json:"total_sessions"`
	Remaining     int       `json:"remaining"`
	ExpiresAt     time.Time `json:"expires_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type PaymentFailedEvent struct {
	ReservationID   int64     `json:"reservation_id,omitempty"`
	CustomerEmail   string    `json:"customer_email"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Reason          string    `json:"reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
