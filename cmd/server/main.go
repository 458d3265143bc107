package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/votecast/backend/internal/auth"
	"github.com/votecast/backend/internal/config"
	"github.com/votecast/backend/internal/frontend"
	"github.com/votecast/backend/internal/gateway"
	"github.com/votecast/backend/internal/metrics"
	"github.com/votecast/backend/internal/mock"
	"github.com/votecast/backend/internal/session"
	"github.com/votecast/backend/internal/tally"
	"github.com/votecast/backend/internal/ws"
)

func main() {
	mockMode := flag.Bool("mock", false, "Feed random demo votes through the gateway")
	devMode := flag.Bool("dev", false, "Development mode (serve frontend from filesystem)")
	configPath := flag.String("config", "", "Path to config file (defaults are used when empty)")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	store, err := tally.NewStore(cfg.TallyUnits())
	if err != nil {
		slog.Error("failed to build tally", "error", err)
		os.Exit(1)
	}

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	registry := auth.NewRegistry(cfg.Admin.Secret)
	broadcaster := ws.NewBroadcaster(store, ws.Options{
		SendBuffer:     cfg.Broadcast.SendBuffer,
		WriteTimeout:   cfg.Broadcast.WriteTimeout,
		PingInterval:   cfg.Broadcast.PingInterval,
		MaxConnections: cfg.Server.MaxConnections,
	}, m)
	gw := gateway.New(store, registry, broadcaster, m)
	sessions := session.NewManager(registry, broadcaster, m)

	frontendDir := ""
	if *devMode {
		cwd, _ := os.Getwd()
		frontendDir = filepath.Join(cwd, "internal", "frontend", "static")
	}

	var embeddedHandler http.Handler
	if !*devMode {
		embeddedHandler = frontend.Handler()
		if embeddedHandler == nil {
			cwd, _ := os.Getwd()
			fallback := filepath.Join(cwd, "internal", "frontend", "static")
			if _, err := os.Stat(fallback); err == nil {
				slog.Info("no embedded frontend, falling back to filesystem", "dir", fallback)
				embeddedHandler = http.FileServer(http.Dir(fallback))
			}
		}
	}

	server := ws.NewServer(cfg, gw, sessions, broadcaster, frontendDir, *devMode, embeddedHandler)
	server.SetMetricsHandler(metrics.Handler(reg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *mockMode {
		slog.Info("starting mock vote feeder", "interval", cfg.Mock.Interval)
		feeder := mock.NewFeeder(gw, cfg.Admin.Secret, clockwork.NewRealClock(), cfg.Mock.Interval, time.Now().UnixNano())
		if err := feeder.Start(ctx); err != nil {
			slog.Error("mock feeder failed to start", "error", err)
			os.Exit(1)
		}
	}

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	slog.Info("tally ready", "units", store.Len())
	if err := ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	broadcaster.Stop()
	slog.Info("shut down")
}
