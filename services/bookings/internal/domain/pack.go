package domain

import "time"

type PackStatus string

const (
	PackActive    PackStatus = "active"
	PackExpired   PackStatus = "expired"
	PackExhausted PackStatus = "exhausted"
)

// CustomerPack is a prepaid bundle of sessions for one service.
type CustomerPack struct {
	ID              int64      `json:"id"`
	ServiceID       int64      `json:"service_id"`
	ServiceName     string     `json:"service_name,omitempty"`
	UserID          *int64     `json:"user_id,omitempty"`
	CustomerName    string     `json:"customer_name"`
	CustomerEmail   string     `json:"customer_email"`
	TotalSessions   int        `json:"total_sessions"`
	UsedSessions    int        `json:"used_sessions"`
	Status          PackStatus `json:"status"`
	ExpiresAt       time.Time  `json:"expires_at"`
	PaymentIntentID *string    `json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (p *CustomerPack) Remaining() int {
	if n := p.TotalSessions - p.UsedSessions; n > 0 {
		return n
	}
	return 0
}

// Usable reports whether one more session can be drawn from the pack.
func (p *CustomerPack) Usable(now time.Time) bool {
	return p.Status == PackActive && now.Before(p.ExpiresAt) && p.Remaining() > 0
}

// NewPack builds the pack bought for a service at purchase time.
func NewPack(svc *Service, name, email string, userID *int64, paymentIntentID string, now time.Time) *CustomerPack {
	days := svc.PackValidityDays
	if days <= 0 {
		days = 90
	}
	p := &CustomerPack{
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		UserID:        userID,
		CustomerName:  name,
		CustomerEmail: email,
		TotalSessions: svc.PackSize,
		Status:        PackActive,
		ExpiresAt:     now.AddDate(0, 0, days),
	}
	if paymentIntentID != "" {
		p.PaymentIntentID = &paymentIntentID
	}
	return p
}
