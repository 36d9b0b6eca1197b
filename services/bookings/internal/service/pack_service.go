package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/logger"
	"github.com/diagnosis/studio-bookings/pkg/payments"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/repository"
)

type PackService interface {
	ListMyPacks(ctx context.Context, actor domain.Actor) ([]domain.CustomerPack, error)
	ListPacks(ctx context.Context, limit, offset int) ([]domain.CustomerPack, error)
	ExpireOverdue(ctx context.Context) (int64, error)
}

type packService struct {
	packRepo repository.PackRepository
	now      func() time.Time
}

func NewPackService(packRepo repository.PackRepository) PackService {
	return &packService{packRepo: packRepo, now: time.Now}
}

func (s *packService) ListMyPacks(ctx context.Context, actor domain.Actor) ([]domain.CustomerPack, error) {
	if actor.Email == "" {
		return nil, domain.ErrNotAuthorized
	}
	return s.packRepo.ListByEmail(ctx, actor.Email)
}

func (s *packService) ListPacks(ctx context.Context, limit, offset int) ([]domain.CustomerPack, error) {
	return s.packRepo.List(ctx, limit, offset)
}

func (s *packService) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := s.packRepo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire packs: %w", err)
	}
	if n > 0 {
		logger.InfoContext(ctx, "Expired customer packs", "count", n)
	}
	return n, nil
}

// ProductService exposes the Stripe catalogue to the back office.
type ProductService interface {
	ListProducts(ctx context.Context) ([]payments.Product, error)
}

type productService struct {
	gateway payments.Gateway
}

func NewProductService(gateway payments.Gateway) ProductService {
	return &productService{gateway: gateway}
}

func (s *productService) ListProducts(ctx context.Context) ([]payments.Product, error) {
	products, err := s.gateway.ListProducts(ctx)
	if err != nil {
		if !errors.Is(err, payments.ErrDisabled) {
			logger.ErrorContext(ctx, "Failed to list Stripe products", "error", err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentProvider, err)
	}
	return products, nil
}
