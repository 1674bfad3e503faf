package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/convoy/internal/app"
	"github.com/felixgeelhaar/convoy/pkg/config"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

const statsInterval = time.Minute

func main() {
	logger := observability.NewLogger(observability.LogConfig{Service: "convoy-worker"})
	logger.Info("starting convoy worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = observability.NewLogger(observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel, "convoy-worker"))

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	processor := container.OutboxProcessor()
	if err := processor.Start(ctx); err != nil {
		logger.Error("failed to start outbox processor", "error", err)
		os.Exit(1)
	}

	consumer, err := container.AbsenceConsumer()
	if err != nil {
		logger.Error("failed to create absence consumer", "error", err)
		os.Exit(1)
	}
	if consumer != nil {
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("absence consumer stopped", "error", err)
				cancel()
			}
		}()
	} else {
		logger.Info("no broker configured, absences are delivered in process")
	}

	// The processor prunes published rows itself; this only reports.
	go func() {
		stats := time.NewTicker(statsInterval)
		defer stats.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stats.C:
				s := processor.GetStats()
				logger.Info("outbox stats",
					"running", s.IsRunning,
					"published", s.PublishedCount,
					"failed", s.FailedCount,
					"dead", s.DeadCount,
					"lag_seconds", s.LagSeconds,
					"last_error", s.LastError,
				)
			}
		}
	}()

	if cfg.WorkerHealthAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/livez", observability.LivenessHandler())
		mux.Handle("/readyz", container.Health.ReadinessHandler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			s := processor.GetStats()
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status":            "ok",
				"running":           s.IsRunning,
				"published":         s.PublishedCount,
				"failed":            s.FailedCount,
				"dead":              s.DeadCount,
				"last_processed_at": s.LastProcessedAt,
				"last_error_at":     s.LastErrorAt,
				"last_error":        s.LastError,
				"metrics":           container.Metrics.Snapshot(),
			})
		})

		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down worker")

	processor.Stop()
	logger.Info("worker stopped")
}
