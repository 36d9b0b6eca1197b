package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/payments"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/repository"
)

// memStore is an in-memory stand-in for the bookings tables. Atomic holds the
// store mutex for the whole callback and rolls back on error.
type memStore struct {
	mu           sync.Mutex
	sessions     map[int64]domain.Session
	reservations map[int64]domain.Reservation
	packs        map[int64]domain.CustomerPack
	nextID       int64
	tick         time.Time
}

func newMemStore() *memStore {
	return &memStore{
		sessions:     map[int64]domain.Session{},
		reservations: map[int64]domain.Reservation{},
		packs:        map[int64]domain.CustomerPack{},
		tick:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// stamp returns strictly increasing creation times.
func (m *memStore) stamp() time.Time {
	m.tick = m.tick.Add(time.Second)
	return m.tick
}

func (m *memStore) addSession(s domain.Session) *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	s.ServiceID = s.Service.ID
	if s.Status == "" {
		s.Status = domain.SessionAvailable
	}
	m.sessions[s.ID] = s
	return &s
}

func (m *memStore) addReservation(r domain.Reservation) *domain.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	if r.ReservationNumber == "" {
		r.ReservationNumber = domain.NewReservationNumber(m.tick)
	}
	r.CreatedAt = m.stamp()
	m.reservations[r.ID] = r
	return &r
}

func (m *memStore) addPack(p domain.CustomerPack) *domain.CustomerPack {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	m.packs[p.ID] = p
	return &p
}

func (m *memStore) session(id int64) domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *memStore) reservation(id int64) domain.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservations[id]
}

func (m *memStore) pack(id int64) domain.CustomerPack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.packs[id]
}

func (m *memStore) reservationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations)
}

type fakeReservationRepo struct {
	store *memStore
}

func (f *fakeReservationRepo) readView(r domain.Reservation) *domain.Reservation {
	sess := f.store.sessions[r.SessionID]
	r.ServiceName = sess.Service.Name
	starts := sess.StartsAt
	r.StartsAt = &starts
	if r.Status == domain.ReservationPending && r.QueuePosition != nil {
		rank := 1
		for _, o := range f.store.reservations {
			if o.SessionID == r.SessionID && o.Status == domain.ReservationPending &&
				o.QueuePosition != nil && *o.QueuePosition < *r.QueuePosition {
				rank++
			}
		}
		r.WaitlistRank = &rank
	}
	return &r
}

func (f *fakeReservationRepo) find(match func(domain.Reservation) bool) *domain.Reservation {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, r := range f.store.reservations {
		if match(r) {
			return f.readView(r)
		}
	}
	return nil
}

func (f *fakeReservationRepo) GetByID(_ context.Context, id int64) (*domain.Reservation, error) {
	return f.find(func(r domain.Reservation) bool { return r.ID == id }), nil
}

func (f *fakeReservationRepo) GetByNumber(_ context.Context, number string) (*domain.Reservation, error) {
	return f.find(func(r domain.Reservation) bool { return r.ReservationNumber == strings.ToUpper(number) }), nil
}

func (f *fakeReservationRepo) GetByPaymentIntent(_ context.Context, pi string) (*domain.Reservation, error) {
	return f.find(func(r domain.Reservation) bool { return r.PaymentIntentID != nil && *r.PaymentIntentID == pi }), nil
}

func (f *fakeReservationRepo) list(match func(domain.Reservation) bool) []domain.Reservation {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.store.reservations {
		if match(r) {
			out = append(out, *f.readView(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeReservationRepo) List(_ context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	return f.list(func(r domain.Reservation) bool {
		if filter.SessionID != nil && r.SessionID != *filter.SessionID {
			return false
		}
		if filter.Status != nil && r.Status != *filter.Status {
			return false
		}
		return filter.Email == "" || strings.EqualFold(r.CustomerEmail, filter.Email)
	}), nil
}

func (f *fakeReservationRepo) ListByEmail(_ context.Context, email string, _, _ int) ([]domain.Reservation, error) {
	return f.list(func(r domain.Reservation) bool { return strings.EqualFold(r.CustomerEmail, email) }), nil
}

func (f *fakeReservationRepo) ListByUserID(_ context.Context, userID int64, _, _ int) ([]domain.Reservation, error) {
	return f.list(func(r domain.Reservation) bool { return r.UserID != nil && *r.UserID == userID }), nil
}

func (f *fakeReservationRepo) SetCheckoutSession(_ context.Context, id int64, cs string) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	r := f.store.reservations[id]
	r.CheckoutSessionID = &cs
	f.store.reservations[id] = r
	return nil
}

func (f *fakeReservationRepo) Atomic(_ context.Context, fn func(tx repository.ReservationTx) error) error {
	m := f.store
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := cloneMap(m.sessions)
	reservations := cloneMap(m.reservations)
	packs := cloneMap(m.packs)
	nextID, tick := m.nextID, m.tick

	if err := fn(&memTx{m: m}); err != nil {
		m.sessions, m.reservations, m.packs = sessions, reservations, packs
		m.nextID, m.tick = nextID, tick
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type memTx struct {
	m *memStore
}

func (t *memTx) LockSession(_ context.Context, id int64) (*domain.Session, error) {
	s, ok := t.m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (t *memTx) LockReservation(_ context.Context, id int64) (*domain.Reservation, error) {
	r, ok := t.m.reservations[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (t *memTx) HasActiveReservation(_ context.Context, sessionID int64, email string) (bool, error) {
	for _, r := range t.m.reservations {
		if r.SessionID == sessionID && strings.EqualFold(r.CustomerEmail, email) &&
			r.Status != domain.ReservationCancelled && r.Status != domain.ReservationNoShow {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) NextQueuePosition(_ context.Context, sessionID int64) (int, error) {
	max := 0
	for _, r := range t.m.reservations {
		if r.SessionID == sessionID && r.QueuePosition != nil && *r.QueuePosition > max {
			max = *r.QueuePosition
		}
	}
	return max + 1, nil
}

func (t *memTx) InsertReservation(_ context.Context, r *domain.Reservation) error {
	r.ID = t.m.id()
	r.CreatedAt = t.m.stamp()
	r.UpdatedAt = r.CreatedAt
	t.m.reservations[r.ID] = *r
	return nil
}

func (t *memTx) UpdateReservation(_ context.Context, r *domain.Reservation) error {
	r.UpdatedAt = t.m.stamp()
	t.m.reservations[r.ID] = *r
	return nil
}

func (t *memTx) SetSessionOccupancy(_ context.Context, s *domain.Session) error {
	cur := t.m.sessions[s.ID]
	cur.CurrentParticipants = s.CurrentParticipants
	cur.Status = s.Status
	t.m.sessions[s.ID] = cur
	return nil
}

func (t *memTx) ConsumePack(_ context.Context, packID, serviceID int64, email string, now time.Time) (*domain.CustomerPack, error) {
	p, ok := t.m.packs[packID]
	if !ok || !strings.EqualFold(p.CustomerEmail, email) {
		return nil, domain.ErrPackNotFound
	}
	if p.ServiceID != serviceID || !p.Usable(now) {
		return nil, domain.ErrPackUnavailable
	}
	p.UsedSessions++
	if p.Remaining() == 0 {
		p.Status = domain.PackExhausted
	}
	t.m.packs[packID] = p
	return &p, nil
}

func (t *memTx) RestorePack(_ context.Context, packID int64) error {
	p := t.m.packs[packID]
	if p.UsedSessions > 0 {
		p.UsedSessions--
	}
	if p.Status == domain.PackExhausted {
		p.Status = domain.PackActive
	}
	t.m.packs[packID] = p
	return nil
}

func (t *memTx) InsertPack(_ context.Context, p *domain.CustomerPack) error {
	p.ID = t.m.id()
	p.CreatedAt = t.m.stamp()
	t.m.packs[p.ID] = *p
	return nil
}

func (t *memTx) NextInQueue(_ context.Context, sessionID, excludeID int64) (*domain.Reservation, error) {
	var next *domain.Reservation
	for _, r := range t.m.reservations {
		if r.SessionID != sessionID || r.ID == excludeID || r.Status != domain.ReservationPending || r.QueuePosition == nil {
			continue
		}
		if next == nil || r.CreatedAt.Before(next.CreatedAt) {
			r := r
			next = &r
		}
	}
	return next, nil
}

func (t *memTx) ActiveReservationsForSession(_ context.Context, sessionID int64) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, r := range t.m.reservations {
		if r.SessionID == sessionID && (r.Status == domain.ReservationPending || r.Status == domain.ReservationConfirmed) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type fakeIdempotency struct {
	mu   sync.Mutex
	keys map[string]int64
}

func (f *fakeIdempotency) Lookup(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key], nil
}

func (f *fakeIdempotency) Remember(_ context.Context, key string, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = map[string]int64{}
	}
	if existing, ok := f.keys[key]; ok {
		return existing, nil
	}
	f.keys[key] = id
	return id, nil
}

func (f *fakeIdempotency) CleanupExpired(context.Context) (int64, error) { return 0, nil }

type fakeGateway struct {
	mu       sync.Mutex
	requests []payments.CheckoutRequest
	err      error
	products []payments.Product
}

func (g *fakeGateway) Enabled() bool { return true }

func (g *fakeGateway) CreateCheckout(_ context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payments.CheckoutSession{ID: "cs_test_" + req.ReservationNumber, URL: "https://checkout.stripe.test/" + req.ReservationNumber}, nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*payments.WebhookEvent, error) {
	return nil, payments.ErrInvalidSignature
}

func (g *fakeGateway) ListProducts(context.Context) ([]payments.Product, error) {
	return g.products, g.err
}

type published struct {
	subject string
	event   any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{subject: subject, event: data})
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.subject
	}
	return out
}

func (p *fakePublisher) last(subject string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].subject == subject {
			return p.events[i].event, true
		}
	}
	return nil, false
}
