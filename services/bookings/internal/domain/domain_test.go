package domain

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]ReservationStatus]bool{
		{ReservationPending, ReservationConfirmed}:   true,
		{ReservationPending, ReservationCancelled}:   true,
		{ReservationConfirmed, ReservationCompleted}: true,
		{ReservationConfirmed, ReservationNoShow}:    true,
		{ReservationConfirmed, ReservationCancelled}: true,
	}
	all := []ReservationStatus{ReservationPending, ReservationConfirmed, ReservationCancelled, ReservationCompleted, ReservationNoShow}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]ReservationStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatesNeverLeave(t *testing.T) {
	all := []ReservationStatus{ReservationPending, ReservationConfirmed, ReservationCancelled, ReservationCompleted, ReservationNoShow}
	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("terminal %s must not move to %s", from, to)
			}
		}
	}
}

func TestCheckCancellable(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		status  ReservationStatus
		startIn time.Duration
		want    error
	}{
		{"pending far ahead", ReservationPending, 48 * time.Hour, nil},
		{"exactly 24h", ReservationConfirmed, 24 * time.Hour, nil},
		{"inside window", ReservationConfirmed, 23 * time.Hour, ErrCancellationWindow},
		{"past session", ReservationConfirmed, -time.Hour, ErrPastSession},
		{"already cancelled", ReservationCancelled, 48 * time.Hour, ErrAlreadyCancelled},
		{"completed", ReservationCompleted, 48 * time.Hour, ErrInvalidTransition},
		{"no show", ReservationNoShow, 48 * time.Hour, ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Reservation{Status: tt.status}
			s := &Session{StartsAt: now.Add(tt.startIn)}
			if err := CheckCancellable(r, s, now); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewReservationNumber(t *testing.T) {
	now := time.Date(2026, 4, 12, 23, 30, 0, 0, time.UTC)
	re := regexp.MustCompile(`^PIL-20260412-[A-Z2-9]{6}$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n := NewReservationNumber(now)
		if !re.MatchString(n) {
			t.Fatalf("bad number %q", n)
		}
		seen[n] = true
	}
	if len(seen) < 45 {
		t.Fatalf("too many collisions: %d unique of 50", len(seen))
	}
}

func TestParseBookingKind(t *testing.T) {
	if k, ok := ParseBookingKind(""); !ok || k != KindSingle {
		t.Fatalf("empty kind should default to single, got %q %v", k, ok)
	}
	if _, ok := ParseBookingKind("gift"); ok {
		t.Fatal("unknown kind accepted")
	}
	if k, ok := ParseBookingKind("use_pack"); !ok || k != KindUsePack {
		t.Fatalf("got %q %v", k, ok)
	}
}

func TestSessionOccupancy(t *testing.T) {
	s := &Session{MaxParticipants: 2, Status: SessionAvailable}
	s.Occupy()
	s.Occupy()
	if s.Status != SessionFull || s.HasFreeSeat() {
		t.Fatalf("expected full session, got %+v", s)
	}
	s.Release()
	s.Release()
	s.Release()
	if s.CurrentParticipants != 0 || s.Status != SessionAvailable {
		t.Fatalf("release must floor at zero, got %+v", s)
	}

	s.Status = SessionCancelled
	s.Occupy()
	if s.Status != SessionCancelled {
		t.Fatal("cancelled session must stay cancelled")
	}
}

func TestPackUsable(t *testing.T) {
	now := time.Now()
	p := &CustomerPack{TotalSessions: 5, UsedSessions: 4, Status: PackActive, ExpiresAt: now.Add(time.Hour)}
	if !p.Usable(now) || p.Remaining() != 1 {
		t.Fatalf("expected usable pack with 1 left: %+v", p)
	}
	p.UsedSessions = 5
	if p.Usable(now) {
		t.Fatal("used up pack must not be usable")
	}
	p.UsedSessions = 0
	p.ExpiresAt = now.Add(-time.Minute)
	if p.Usable(now) {
		t.Fatal("expired pack must not be usable")
	}
}

func TestReservationOwnership(t *testing.T) {
	uid := int64(7)
	r := &Reservation{CustomerEmail: "Alice@Example.com", UserID: &uid}
	if !r.IsOwner("alice@example.com") || r.IsOwner("") || r.IsOwner("bob@example.com") {
		t.Fatal("email ownership mismatch")
	}
	if !r.IsUserOwner(7) || r.IsUserOwner(8) {
		t.Fatal("user ownership mismatch")
	}
}
