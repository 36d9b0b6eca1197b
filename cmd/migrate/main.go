package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/diagnosis/studio-bookings/pkg/auth"
	"github.com/diagnosis/studio-bookings/pkg/config"
	"github.com/diagnosis/studio-bookings/pkg/database"
	"github.com/diagnosis/studio-bookings/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	promote := flag.String("promote", "", "grant the admin role to the account with this email")
	flag.Parse()

	cfg := config.Load()
	logger.Init("migrate", os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	applied, err := database.Migrate(ctx, pool)
	if err != nil {
		logger.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Migrations up to date", "applied", applied)

	if *promote != "" {
		if err := promoteAdmin(ctx, pool, *promote); err != nil {
			logger.Error("Failed to promote account", "error", err, "email", *promote)
			os.Exit(1)
		}
		logger.Info("Account promoted to admin", "email", *promote)
	}
}

func promoteAdmin(ctx context.Context, pool *pgxpool.Pool, email string) error {
	tag, err := pool.Exec(ctx,
		`UPDATE users SET role = $1, updated_at = now() WHERE lower(email) = $2`,
		auth.RoleAdmin, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no account registered with %s", email)
	}
	return nil
}
