package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")
	cfg := Load()

	if cfg.Auth.AccessTokenTTL != 24*time.Hour {
		t.Fatalf("expected 24h token TTL, got %s", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Stripe.Enabled() {
		t.Fatal("stripe must be disabled without a secret key")
	}
	if cfg.Stripe.Currency != "eur" {
		t.Fatalf("expected eur, got %s", cfg.Stripe.Currency)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("EMAIL_DEV_MODE", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")

	cfg := Load()

	if cfg.Database.MaxConns != 25 {
		t.Fatalf("expected 25 max conns, got %d", cfg.Database.MaxConns)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Fatalf("expected 30s window, got %s", cfg.RateLimit.Window)
	}
	if cfg.Email.DevMode {
		t.Fatal("expected dev mode off")
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.Server.CORSOrigins)
	}
	if !cfg.Stripe.Enabled() {
		t.Fatal("expected stripe enabled")
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "lots")
	t.Setenv("SERVER_READ_TIMEOUT", "soon")

	cfg := Load()

	if cfg.Database.MaxConns != 10 {
		t.Fatalf("expected fallback 10, got %d", cfg.Database.MaxConns)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("expected fallback 5s, got %s", cfg.Server.ReadTimeout)
	}
}

func TestStudioLocation_UnknownZoneIsUTC(t *testing.T) {
	s := StudioConfig{Timezone: "Nowhere/Special"}
	if s.Location() != time.UTC {
		t.Fatal("expected UTC fallback")
	}
}
