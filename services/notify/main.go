package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/config"
	"github.com/diagnosis/studio-bookings/pkg/database"
	"github.com/diagnosis/studio-bookings/pkg/events"
	"github.com/diagnosis/studio-bookings/pkg/logger"
	"github.com/diagnosis/studio-bookings/pkg/mailer"
	mw "github.com/diagnosis/studio-bookings/pkg/middleware"
	"github.com/diagnosis/studio-bookings/services/notify/internal/notifier"
	"github.com/diagnosis/studio-bookings/services/notify/internal/repository"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	logger.Init("notify", os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL, "notify")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}

	n := notifier.New(
		mailer.New(cfg.Email),
		repository.NewEmailLogRepository(pool),
		notifier.NewRenderer(cfg.Studio, cfg.Email.AdminEmail),
	)
	if err := n.Subscribe(eventBus, cfg.NATS.QueueGroup); err != nil {
		logger.Error("Failed to subscribe", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Recoverer)
	r.Use(mw.Health(mw.Check{Name: "postgres", Probe: pool.Ping}))

	srv := &http.Server{
		Addr:        ":" + cfg.Server.NotifyPort,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting notify service", "port", cfg.Server.NotifyPort, "dev_mode", cfg.Email.DevMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down notify service...")

		// Let in-flight emails finish before the pool closes.
		if err := eventBus.Drain(); err != nil {
			logger.Warn("NATS drain failed", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Notify service error", "error", err)
		os.Exit(1)
	}
}
