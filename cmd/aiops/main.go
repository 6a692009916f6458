package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Naem-ali/AIOPS/internal/alerts"
	"github.com/Naem-ali/AIOPS/internal/config"
	"github.com/Naem-ali/AIOPS/internal/health"
	"github.com/Naem-ali/AIOPS/internal/poller"
	"github.com/Naem-ali/AIOPS/internal/promapi"
	"github.com/Naem-ali/AIOPS/internal/server"
	"github.com/Naem-ali/AIOPS/internal/stats"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("aiops starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"backend", cfg.BackendURL,
		"queries", len(cfg.Queries),
		"refresh_interval", cfg.RefreshInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The HTTP client is built once here and handed to the poller — there is
	// no process-wide session singleton.
	client := promapi.NewClient(cfg.BackendURL)
	classifier := stats.NewClassifier(cfg.Thresholds)
	p := poller.New(client, cfg.Queries, classifier, cfg.RefreshInterval)

	probe := health.New(cfg.BackendURL)
	notifier := alerts.New(cfg.Webhooks)

	// Evaluate alerts on every emitted snapshot.
	go func() {
		snaps := p.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snaps:
				notifier.Evaluate(snap)
			}
		}
	}()

	// Watch config file for hot-reload of interval, thresholds, and webhooks.
	// The catalog and backend URL stay as loaded at startup.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			p.Apply(updated)
			notifier.SetWebhooks(updated.Webhooks)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	p.Start(ctx)

	hub := server.NewHub(p)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/", server.New(p, probe, notifier))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}

	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("aiops shutting down")

	p.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown", "err", err)
	}
}
