package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/auth"
	"github.com/diagnosis/studio-bookings/pkg/config"
	"github.com/diagnosis/studio-bookings/pkg/payments"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/domain"
)

type fakeSessionRepo struct {
	services map[int64]domain.Service
	sessions []domain.Session
	filter   domain.SessionFilter
}

func (f *fakeSessionRepo) CreateService(_ context.Context, req *domain.CreateServiceReq) (*domain.Service, error) {
	if f.services == nil {
		f.services = map[int64]domain.Service{}
	}
	svc := domain.Service{
		ID:               int64(len(f.services) + 1),
		Name:             req.Name,
		Description:      req.Description,
		DurationMinutes:  req.DurationMinutes,
		PriceCents:       req.PriceCents,
		PackSize:         req.PackSize,
		PackPriceCents:   req.PackPriceCents,
		PackValidityDays: req.PackValidityDays,
		Active:           true,
	}
	f.services[svc.ID] = svc
	return &svc, nil
}

func (f *fakeSessionRepo) GetService(_ context.Context, id int64) (*domain.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return nil, nil
	}
	return &svc, nil
}

func (f *fakeSessionRepo) ListServices(context.Context, bool) ([]domain.Service, error) {
	var out []domain.Service
	for _, s := range f.services {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSessionRepo) CreateSession(_ context.Context, req *domain.CreateSessionReq) (*domain.Session, error) {
	sess := domain.Session{
		ID:              int64(len(f.sessions) + 1),
		ServiceID:       req.ServiceID,
		Service:         f.services[req.ServiceID],
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		MaxParticipants: req.MaxParticipants,
		Status:          domain.SessionAvailable,
	}
	f.sessions = append(f.sessions, sess)
	return &sess, nil
}

func (f *fakeSessionRepo) GetSession(_ context.Context, id int64) (*domain.Session, error) {
	for _, s := range f.sessions {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) ListSessions(_ context.Context, filter domain.SessionFilter) ([]domain.Session, error) {
	f.filter = filter
	return f.sessions, nil
}

func TestSessionService_CreateService(t *testing.T) {
	repo := &fakeSessionRepo{}
	svc := NewSessionService(repo)
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.CreateServiceReq
		want error
	}{
		{"missing name", domain.CreateServiceReq{Name: "  "}, domain.ErrMissingField},
		{"negative price", domain.CreateServiceReq{Name: "Mat", PriceCents: -1}, domain.ErrInvalidInput},
		{"pack size without price", domain.CreateServiceReq{Name: "Mat", PackSize: 10}, domain.ErrInvalidInput},
		{"ok", domain.CreateServiceReq{Name: "Reformer", PackSize: 10, PackPriceCents: 18000}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			got, err := svc.CreateService(ctx, &req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if err == nil && (got.DurationMinutes != 60 || got.PackValidityDays != 90) {
				t.Fatalf("defaults not applied: %+v", got)
			}
		})
	}
}

func TestSessionService_CreateSession(t *testing.T) {
	repo := &fakeSessionRepo{services: map[int64]domain.Service{
		1: {ID: 1, Name: "Reformer", DurationMinutes: 50},
	}}
	svc := NewSessionService(repo).(*sessionService)
	svc.now = func() time.Time { return testNow }
	ctx := context.Background()
	starts := testNow.Add(48 * time.Hour)

	tests := []struct {
		name string
		req  domain.CreateSessionReq
		want error
	}{
		{"missing service", domain.CreateSessionReq{StartsAt: starts, MaxParticipants: 8}, domain.ErrMissingField},
		{"unknown service", domain.CreateSessionReq{ServiceID: 9, StartsAt: starts, MaxParticipants: 8}, domain.ErrServiceNotFound},
		{"zero capacity", domain.CreateSessionReq{ServiceID: 1, StartsAt: starts}, domain.ErrInvalidInput},
		{"in the past", domain.CreateSessionReq{ServiceID: 1, StartsAt: testNow.Add(-time.Hour), MaxParticipants: 8}, domain.ErrInvalidInput},
		{"ends before start", domain.CreateSessionReq{ServiceID: 1, StartsAt: starts, EndsAt: starts.Add(-time.Minute), MaxParticipants: 8}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			if _, err := svc.CreateSession(ctx, &req); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	got, err := svc.CreateSession(ctx, &domain.CreateSessionReq{ServiceID: 1, StartsAt: starts, MaxParticipants: 8})
	if err != nil {
		t.Fatal(err)
	}
	if !got.EndsAt.Equal(starts.Add(50*time.Minute)) || got.CurrentParticipants != 0 {
		t.Fatalf("unexpected session %+v", got)
	}

	if _, err := svc.GetSession(ctx, 42); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("GetSession err = %v", err)
	}

	if _, err := svc.ListSessions(ctx, domain.SessionFilter{}); err != nil {
		t.Fatal(err)
	}
	if repo.filter.From == nil || !repo.filter.From.Equal(testNow) {
		t.Fatalf("upcoming filter not defaulted: %+v", repo.filter)
	}
}

type fakeUserRepo struct {
	users  map[string]*domain.User
	linked map[int64]string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}, linked: map[int64]string{}}
}

func (f *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	if _, ok := f.users[u.Email]; ok {
		return domain.ErrEmailTaken
	}
	u.ID = int64(len(f.users) + 1)
	cp := *u
	f.users[u.Email] = &cp
	return nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return f.users[strings.ToLower(email)], nil
}

func (f *fakeUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) LinkExistingReservations(_ context.Context, userID int64, email string) (int64, error) {
	f.linked[userID] = email
	return 2, nil
}

func TestAccountService_RegisterAndLogin(t *testing.T) {
	repo := newFakeUserRepo()
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Hour}}
	svc := NewAccountService(repo, cfg)
	ctx := context.Background()

	res, err := svc.Register(ctx, &domain.RegisterReq{Name: "Alice", Email: " Alice@Example.com ", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User.Role != auth.RoleCustomer || res.User.Email != "alice@example.com" {
		t.Fatalf("unexpected user %+v", res.User)
	}
	if repo.linked[res.User.ID] != "alice@example.com" {
		t.Fatal("guest reservations were not linked")
	}
	claims, err := auth.Parse(res.AccessToken, "test-secret")
	if err != nil {
		t.Fatalf("token does not parse: %v", err)
	}
	if claims.Sub != res.User.ID || claims.Role != auth.RoleCustomer {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := svc.Register(ctx, &domain.RegisterReq{Name: "Alice", Email: "alice@example.com", Password: "another pass"}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("duplicate register err = %v", err)
	}
	if _, err := svc.Register(ctx, &domain.RegisterReq{Name: "Bob", Email: "bob@example.com", Password: "short"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("short password err = %v", err)
	}

	if _, err := svc.Login(ctx, &domain.LoginReq{Email: "alice@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	for _, req := range []domain.LoginReq{
		{Email: "alice@example.com", Password: "wrong password"},
		{Email: "nobody@example.com", Password: "correct horse"},
	} {
		if _, err := svc.Login(ctx, &req); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("Login(%s) err = %v", req.Email, err)
		}
	}

	if _, err := svc.Me(ctx, 99); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("Me err = %v", err)
	}
}

type fakePackRepo struct {
	packs   []domain.CustomerPack
	expired time.Time
}

func (f *fakePackRepo) GetByID(_ context.Context, id int64) (*domain.CustomerPack, error) {
	for _, p := range f.packs {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakePackRepo) ListByEmail(_ context.Context, email string) ([]domain.CustomerPack, error) {
	var out []domain.CustomerPack
	for _, p := range f.packs {
		if p.CustomerEmail == email {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePackRepo) List(context.Context, int, int) ([]domain.CustomerPack, error) {
	return f.packs, nil
}

func (f *fakePackRepo) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	f.expired = now
	return 1, nil
}

func TestPackService(t *testing.T) {
	repo := &fakePackRepo{packs: []domain.CustomerPack{
		{ID: 1, CustomerEmail: "alice@example.com"},
		{ID: 2, CustomerEmail: "bob@example.com"},
	}}
	svc := NewPackService(repo).(*packService)
	svc.now = func() time.Time { return testNow }
	ctx := context.Background()

	mine, err := svc.ListMyPacks(ctx, domain.Actor{UserID: 1, Email: "alice@example.com"})
	if err != nil || len(mine) != 1 || mine[0].ID != 1 {
		t.Fatalf("ListMyPacks = %+v, %v", mine, err)
	}
	if _, err := svc.ListMyPacks(ctx, domain.Actor{}); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("anonymous err = %v", err)
	}

	if n, err := svc.ExpireOverdue(ctx); err != nil || n != 1 || !repo.expired.Equal(testNow) {
		t.Fatalf("ExpireOverdue = %d, %v (at %v)", n, err, repo.expired)
	}
}

func TestProductService_WrapsProviderErrors(t *testing.T) {
	gw := &fakeGateway{products: []payments.Product{{ID: "prod_1", Name: "Reformer"}}}
	svc := NewProductService(gw)

	got, err := svc.ListProducts(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("ListProducts = %+v, %v", got, err)
	}

	gw.err = payments.ErrDisabled
	if _, err := svc.ListProducts(context.Background()); !errors.Is(err, domain.ErrPaymentProvider) {
		t.Fatalf("err = %v, want ErrPaymentProvider", err)
	}
}
