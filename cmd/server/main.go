package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kingst/foodlog/internal/app"
	"github.com/kingst/foodlog/internal/config"
	"github.com/kingst/foodlog/internal/logger"
	"github.com/kingst/foodlog/internal/routes"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()

	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

	app, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		panic(err)
	}
	defer func() {
		closeErr := app.Close()
		if closeErr != nil {
			slog.Error("failed to close app", "error", closeErr)
		}
	}()

	// Retention also runs on every mutation; the schedule covers idle periods.
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.PruneSchedule, func() {
		report := app.MealService.Prune()
		if report.Degraded() {
			slog.Warn("scheduled prune degraded",
				"pruned", len(report.Pruned),
				"blob_failures", len(report.BlobFailures),
				"persist_error", report.PersistErr,
			)
		}
	})
	if err != nil {
		slog.Error("invalid prune schedule", "schedule", cfg.PruneSchedule, "error", err)
		panic(err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.SetupRoutes(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting",
		"port", cfg.Port,
		"env", cfg.AppEnv,
		"store", cfg.StoreDriver,
		"blobs", cfg.BlobBackend,
		"url", "http://localhost:"+cfg.Port,
	)

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		panic(err)
	}
	slog.Info("server stopped")
}
