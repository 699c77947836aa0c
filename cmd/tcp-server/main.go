package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"stockhub/internal/config"
	"stockhub/internal/metrics"
	statusapi "stockhub/internal/microservices/status-api"
	"stockhub/internal/microservices/tcp"
	"stockhub/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_error", "error", err.Error())
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	st, err := store.Open(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	if cfg.BootstrapAdminLogin != "" {
		if err := st.EnsureAdmin(ctx, cfg.BootstrapAdminLogin, cfg.BootstrapAdminPassword); err != nil {
			return err
		}
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Optional presence mirror, shared by every server on the same Redis
	var (
		presence tcp.Presence
		cluster  statusapi.Cluster
	)
	if cfg.PresenceEnabled() {
		rp, err := tcp.NewRedisPresence(cfg.RedisAddr(), cfg.RedisPassword, cfg.PresenceTTL)
		if err != nil {
			return err
		}
		defer rp.Close()
		presence, cluster = rp, rp
	}

	logger.Info("starting_tcp_server",
		"tcp_addr", cfg.TCPAddr(),
		"presence", cfg.PresenceEnabled(),
		"status_api", cfg.StatusEnabled(),
	)

	server := tcp.NewServer(cfg.TCPAddr(), st, tcp.Options{
		IdleTimeout:  cfg.IdleTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxFrameSize: cfg.MaxFrameSize,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
		Logger:       logger,
		Metrics:      m,
		Presence:     presence,
	})

	errChan := make(chan error, 2)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	var status *statusapi.Server
	if cfg.StatusEnabled() {
		if !cfg.IsDevelopment() {
			gin.SetMode(gin.ReleaseMode)
		}
		status = statusapi.NewServer(cfg.StatusAddr(), statusapi.Deps{
			Sessions: server.Manager,
			Cluster:  cluster,
			Tokens:   statusapi.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry),
			Gatherer: reg,
			Health:   st.Ping,
			Logger:   logger,
		})
		go func() {
			if err := status.ListenAndServe(); err != nil {
				errChan <- err
			}
		}()
	}

	// Wait for shutdown signal or error
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
	case runErr = <-errChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if status != nil {
		if err := status.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status_api_shutdown_failed", "error", err.Error())
		}
	}
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("tcp_server_stop_timeout", "error", err.Error())
	}
	logger.Info("server_stopped_gracefully")
	return runErr
}
