package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/greenpulse/greenpulse/internal/api"
	"github.com/greenpulse/greenpulse/internal/config"
	"github.com/greenpulse/greenpulse/internal/energy"
	"github.com/greenpulse/greenpulse/internal/meter"
	"github.com/greenpulse/greenpulse/internal/observability"
	"github.com/greenpulse/greenpulse/internal/security"
	"github.com/greenpulse/greenpulse/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory; leave empty to disable")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Optional .env for local development; absence is not an error.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	slog.Info("greenpulse-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"meter_mode", cfg.Meter.Mode,
		"score_every", cfg.Session.ScoreEvery,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.New(prometheus.DefaultRegisterer)

	// Shared security event log — constructed once, passed to everything that
	// logs or queries events.
	seclog := security.NewLog(cfg.Security.Capacity, cfg.Security.Window, func(ev security.Event) {
		metrics.SecurityEvents.WithLabelValues(string(ev.Severity)).Inc()
	})
	seclog.LogEvent("server_started", security.SeverityLow, "")

	// Watch config file for hot-reload (logs only in this phase).
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Info("config hot-reloaded", "meter_mode", updated.Meter.Mode)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	lookup := energy.NewClient(cfg.Energy)

	hub := ws.New(cfg, seclog, metrics, lookup, func(intensity float64) (meter.Meter, error) {
		return meter.New(cfg.Meter, intensity)
	})
	go hub.Run(ctx)

	restHandler := api.APIKeyMiddleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
		seclog,
		api.New(seclog, hub),
	)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", restHandler)
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", promhttp.Handler())

	// Optional pre-built dashboard. Unknown paths fall back to index.html so
	// client-side routing keeps working on refresh.
	if dir := *uiDir; dir != "" {
		static := http.FileServer(http.Dir(dir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if _, err := os.Stat(filepath.Join(dir, r.URL.Path)); os.IsNotExist(err) {
				http.ServeFile(w, r, filepath.Join(dir, "index.html"))
				return
			}
			static.ServeHTTP(w, r)
		})
		slog.Info("serving dashboard", "dir", dir)
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("greenpulse-server shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
