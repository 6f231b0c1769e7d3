// Package main runs the LifeOS API server: REST endpoints, the realtime
// hub and the background engines over a Postgres or in-memory store.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/lifeos-hq/lifeos/internal/app"
	"github.com/lifeos-hq/lifeos/internal/app/httpapi"
	"github.com/lifeos-hq/lifeos/internal/app/storage/postgres"
	"github.com/lifeos-hq/lifeos/internal/config"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

func main() {
	// A missing .env is fine; real deployments configure the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	}).WithComponent("server")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	application, err := app.New(stores, app.Options{Config: cfg, Log: log.WithComponent("app")})
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	handler, err := httpapi.NewHandler(application, httpapi.Options{
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		EmailWebhookToken: cfg.Mail.WebhookToken,
		AuditLogPath:      cfg.Server.AuditLogPath,
		Log:               log.WithComponent("httpapi"),
	})
	if err != nil {
		return fmt.Errorf("build handler: %w", err)
	}

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	defer func() {
		if err := application.Stop(context.Background()); err != nil {
			log.WithError(err).Warn("stop services")
		}
	}()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStores connects Postgres when a database URL is configured and falls
// back to the shared in-memory store otherwise.
func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (app.Stores, func(), error) {
	if cfg.Database.URL == "" {
		log.Warn("LIFEOS_DATABASE_URL not set; using in-memory storage")
		return app.Stores{}, func() {}, nil
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return app.Stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("ping database: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("run migrations: %w", err)
	}

	store := postgres.New(db)
	log.Info("postgres storage ready")
	return app.Stores{
		Users:         store,
		Sessions:      store,
		APIKeys:       store,
		Tasks:         store,
		Habits:        store,
		Finance:       store,
		Currency:      store,
		Journal:       store,
		Notifications: store,
		Assistant:     store,
		Tickets:       store,
		Settings:      store,
		Mail:          store,
		Payments:      store,
	}, func() { db.Close() }, nil
}
