package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/cache"
	"github.com/diagnosis/studio-bookings/pkg/config"
	"github.com/diagnosis/studio-bookings/pkg/database"
	"github.com/diagnosis/studio-bookings/pkg/events"
	"github.com/diagnosis/studio-bookings/pkg/logger"
	mw "github.com/diagnosis/studio-bookings/pkg/middleware"
	"github.com/diagnosis/studio-bookings/pkg/payments"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/handlers"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/repository"
	"github.com/diagnosis/studio-bookings/services/bookings/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"
)

const janitorInterval = 15 * time.Minute

func main() {
	cfg := config.Load()
	logger.Init("bookings", os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if applied, err := database.Migrate(ctx, pool); err != nil {
		logger.Error("Failed to apply migrations", "error", err)
		os.Exit(1)
	} else if len(applied) > 0 {
		logger.Info("Applied migrations", "versions", applied)
	}

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL, "bookings")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Redis only backs rate limiting; the API keeps serving without it.
	var counter mw.Counter
	checks := []mw.Check{{Name: "postgres", Probe: pool.Ping}}
	if cfg.RateLimit.Enabled {
		rdb, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
		} else {
			defer rdb.Close()
			wc := cache.NewWindowCounter(rdb, "bookings:rl")
			counter = wc
			checks = append(checks, mw.Check{Name: "redis", Probe: wc.Ping})
		}
	}

	gateway := payments.NewStripeGateway(cfg.Stripe)
	if !gateway.Enabled() {
		logger.Warn("Stripe is not configured, paid bookings will fail")
	}

	// Initialize repositories
	sessionRepo := repository.NewSessionRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)
	packRepo := repository.NewPackRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	idempotencyRepo := repository.NewIdempotencyRepository(pool)

	// Initialize services
	bookingService := service.NewBookingService(reservationRepo, idempotencyRepo, gateway, eventBus, cfg)
	sessionService := service.NewSessionService(sessionRepo)
	accountService := service.NewAccountService(userRepo, cfg)
	packService := service.NewPackService(packRepo)
	productService := service.NewProductService(gateway)

	h := handlers.New(bookingService, sessionService, accountService, packService, productService, gateway)

	limiter := mw.NewRateLimiter(counter, mw.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
		SkipFunc: func(r *http.Request) bool {
			// Only writes are limited; Stripe retries must never be throttled.
			return r.Method == http.MethodGet || r.URL.Path == "/api/webhooks/stripe"
		},
	})

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bookings"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health(checks...))
	r.Use(limiter.Middleware())
	r.Use(mw.Authenticate(cfg.Auth.JWTSecret))
	h.Mount(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting bookings service", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down bookings service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		runJanitor(gctx, idempotencyRepo, packService)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Bookings service error", "error", err)
		os.Exit(1)
	}
}

// runJanitor drops stale idempotency keys and expires overdue packs.
func runJanitor(ctx context.Context, idempotencyRepo repository.IdempotencyRepository, packService service.PackService) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		if n, err := idempotencyRepo.CleanupExpired(ctx); err != nil {
			logger.Warn("Idempotency cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info("Removed expired idempotency keys", "count", n)
		}
		if _, err := packService.ExpireOverdue(ctx); err != nil {
			logger.Warn("Pack expiry failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
