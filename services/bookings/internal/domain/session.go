package domain

import "time"

type SessionStatus string

const (
	SessionAvailable SessionStatus = "available"
	SessionFull      SessionStatus = "full"
	SessionCancelled SessionStatus = "cancelled"
)

// Service is a class type offered by the studio, with its single and pack pricing.
type Service struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	DurationMinutes  int       `json:"duration_minutes"`
	PriceCents       int64     `json:"price_cents"`
	PackSize         int       `json:"pack_size"`
	PackPriceCents   int64     `json:"pack_price_cents"`
	PackValidityDays int       `json:"pack_validity_days"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
}

// SellsPacks reports whether the service can be bought as a bundle.
func (s *Service) SellsPacks() bool {
	return s.PackSize > 0 && s.PackPriceCents > 0
}

type Session struct {
	ID                  int64         `json:"id"`
	ServiceID           int64         `json:"service_id"`
	Service             Service       `json:"service"`
	StartsAt            time.Time     `json:"starts_at"`
	EndsAt              time.Time     `json:"ends_at"`
	CurrentParticipants int           `json:"current_participants"`
	MaxParticipants     int           `json:"max_participants"`
	Status              SessionStatus `json:"status"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

func (s *Session) HasFreeSeat() bool {
	return s.CurrentParticipants < s.MaxParticipants
}

func (s *Session) SpotsLeft() int {
	if n := s.MaxParticipants - s.CurrentParticipants; n > 0 {
		return n
	}
	return 0
}

// Occupy takes one seat. The caller must have checked HasFreeSeat.
func (s *Session) Occupy() {
	s.CurrentParticipants++
	s.refreshStatus()
}

// Release frees one seat, never going below zero.
func (s *Session) Release() {
	if s.CurrentParticipants > 0 {
		s.CurrentParticipants--
	}
	s.refreshStatus()
}

func (s *Session) refreshStatus() {
	if s.Status == SessionCancelled {
		return
	}
	if s.CurrentParticipants >= s.MaxParticipants {
		s.Status = SessionFull
	} else {
		s.Status = SessionAvailable
	}
}

type CreateServiceReq struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	DurationMinutes  int    `json:"duration_minutes"`
	PriceCents       int64  `json:"price_cents"`
	PackSize         int    `json:"pack_size"`
	PackPriceCents   int64  `json:"pack_price_cents"`
	PackValidityDays int    `json:"pack_validity_days"`
}

type CreateSessionReq struct {
	ServiceID       int64     `json:"service_id"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	MaxParticipants int       `json:"max_participants"`
}

type SessionFilter struct {
	From      *time.Time
	To        *time.Time
	ServiceID *int64
	Limit     int
	Offset    int
}
