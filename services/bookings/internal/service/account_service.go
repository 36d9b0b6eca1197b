package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/studio-bookings/pkg/auth"
	"github.com/diagnosis/studio-bookings/pkg/config"
	"github.com/diagnosis/studio-bookings/pkg/logger"
	"github.com/diagnosis/studio-bookings/pkg/utils"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/repository"
)

type AccountService interface {
	Register(ctx context.Context, req *domain.RegisterReq) (*domain.AuthRes, error)
	Login(ctx context.Context, req *domain.LoginReq) (*domain.AuthRes, error)
	Me(ctx context.Context, userID int64) (*domain.User, error)
}

type accountService struct {
	userRepo repository.UserRepository
	config   *config.Config
}

func NewAccountService(userRepo repository.UserRepository, config *config.Config) AccountService {
	return &accountService{userRepo: userRepo, config: config}
}

func (s *accountService) Register(ctx context.Context, req *domain.RegisterReq) (*domain.AuthRes, error) {
	req.Name = utils.NormalizeString(req.Name)
	req.Email = utils.NormalizeEmail(req.Email)
	req.Phone = utils.NormalizePhone(req.Phone)

	if req.Name == "" {
		return nil, fmt.Errorf("%w: name", domain.ErrMissingField)
	}
	if !utils.IsValidEmail(req.Email) {
		return nil, domain.ErrInvalidEmail
	}
	if len(req.Password) < domain.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, domain.MinPasswordLength)
	}

	existing, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Role:         auth.RoleCustomer,
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Phone:        req.Phone,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	linked, err := s.userRepo.LinkExistingReservations(ctx, user.ID, user.Email)
	if err != nil {
		logger.WarnContext(ctx, "Failed to link existing reservations", "error", err, "user_id", user.ID)
	}
	logger.InfoContext(ctx, "Account registered", "user_id", user.ID, "linked_reservations", linked)

	return s.issue(user)
}

func (s *accountService) Login(ctx context.Context, req *domain.LoginReq) (*domain.AuthRes, error) {
	email := utils.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password", domain.ErrMissingField)
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *accountService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *accountService) issue(user *domain.User) (*domain.AuthRes, error) {
	ttl := s.config.Auth.AccessTokenTTL
	token, err := auth.NewAccessToken(user.ID, user.Email, user.Role, s.config.Auth.JWTSecret, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &domain.AuthRes{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(ttl),
		User:        user,
	}, nil
}
