package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/logger"
	"github.com/diagnosis/studio-bookings/pkg/utils"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/repository"
)

type SessionService interface {
	CreateService(ctx context.Context, req *domain.CreateServiceReq) (*domain.Service, error)
	ListServices(ctx context.Context) ([]domain.Service, error)
	CreateSession(ctx context.Context, req *domain.CreateSessionReq) (*domain.Session, error)
	GetSession(ctx context.Context, id int64) (*domain.Session, error)
	ListSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error)
}

type sessionService struct {
	sessionRepo repository.SessionRepository
	now         func() time.Time
}

func NewSessionService(sessionRepo repository.SessionRepository) SessionService {
	return &sessionService{sessionRepo: sessionRepo, now: time.Now}
}

func (s *sessionService) CreateService(ctx context.Context, req *domain.CreateServiceReq) (*domain.Service, error) {
	req.Name = utils.NormalizeString(req.Name)
	req.Description = utils.NormalizeString(req.Description)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name", domain.ErrMissingField)
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 60
	}
	if req.PriceCents < 0 || req.PackPriceCents < 0 || req.PackSize < 0 {
		return nil, fmt.Errorf("%w: prices and pack size cannot be negative", domain.ErrInvalidInput)
	}
	if (req.PackSize > 0) != (req.PackPriceCents > 0) {
		return nil, fmt.Errorf("%w: pack_size and pack_price_cents must be set together", domain.ErrInvalidInput)
	}
	if req.PackValidityDays <= 0 {
		req.PackValidityDays = 90
	}

	svc, err := s.sessionRepo.CreateService(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	logger.InfoContext(ctx, "Service created", "service_id", svc.ID, "name", svc.Name)
	return svc, nil
}

func (s *sessionService) ListServices(ctx context.Context) ([]domain.Service, error) {
	return s.sessionRepo.ListServices(ctx, true)
}

func (s *sessionService) CreateSession(ctx context.Context, req *domain.CreateSessionReq) (*domain.Session, error) {
	if req.ServiceID <= 0 {
		return nil, fmt.Errorf("%w: service_id", domain.ErrMissingField)
	}
	if req.StartsAt.IsZero() {
		return nil, fmt.Errorf("%w: starts_at", domain.ErrMissingField)
	}
	if req.MaxParticipants <= 0 {
		return nil, fmt.Errorf("%w: max_participants must be positive", domain.ErrInvalidInput)
	}
	if !req.StartsAt.After(s.now()) {
		return nil, fmt.Errorf("%w: session must start in the future", domain.ErrInvalidInput)
	}

	svc, err := s.sessionRepo.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	if svc == nil {
		return nil, domain.ErrServiceNotFound
	}
	if req.EndsAt.IsZero() {
		req.EndsAt = req.StartsAt.Add(time.Duration(svc.DurationMinutes) * time.Minute)
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, fmt.Errorf("%w: ends_at must be after starts_at", domain.ErrInvalidInput)
	}

	sess, err := s.sessionRepo.CreateSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	logger.InfoContext(ctx, "Session scheduled", "session_id", sess.ID, "service_id", svc.ID, "starts_at", sess.StartsAt)
	return sess, nil
}

func (s *sessionService) GetSession(ctx context.Context, id int64) (*domain.Session, error) {
	sess, err := s.sessionRepo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *sessionService) ListSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error) {
	if filter.From == nil {
		from := s.now()
		filter.From = &from
	}
	return s.sessionRepo.ListSessions(ctx, filter)
}
