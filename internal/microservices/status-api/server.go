// Package statusapi serves the health, metrics and session views of a running server.
package statusapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockhub/internal/microservices/tcp"
)

// Sessions is the local registry view.
type Sessions interface {
	Snapshot() []tcp.Session
	Count() int
	ConnectionCount() int
}

// Cluster lists identities connected to any server sharing the presence store.
type Cluster interface {
	Identities(ctx context.Context) ([]string, error)
}

type Deps struct {
	Sessions Sessions
	Cluster  Cluster // may be nil
	Tokens   *TokenService
	Gatherer prometheus.Gatherer
	// Health reports whether the database answers; nil means always healthy
	Health func(ctx context.Context) error
	Logger *slog.Logger
}

const healthTimeout = 2 * time.Second

// NewRouter builds the gin engine of the status API.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	started := time.Now()

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				d.Logger.Warn("health_check_failed", "error", err.Error())
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{
			"status":      status,
			"uptime":      time.Since(started).String(),
			"sessions":    d.Sessions.Count(),
			"connections": d.Sessions.ConnectionCount(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	admin := r.Group("/", AuthMiddleware(d.Tokens), RequireAdmin())
	admin.GET("/sessions", func(c *gin.Context) {
		sessions := d.Sessions.Snapshot()
		body := gin.H{
			"count":    len(sessions),
			"sessions": sessions,
		}
		if d.Cluster != nil {
			ids, err := d.Cluster.Identities(c.Request.Context())
			if err != nil {
				d.Logger.Warn("cluster_identities_failed", "error", err.Error())
				body["cluster_error"] = "presence store unavailable"
			} else {
				body["cluster"] = ids
			}
		}
		c.JSON(http.StatusOK, body)
	})

	return r
}

// Server runs the status router on its own listener.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(addr string, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(d),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		logger: d.Logger,
	}
}

// Serve blocks until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("status_api_started", "addr", l.Addr().String())
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status API failed: %w", err)
	}
	return nil
}

func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to start status API: %w", err)
	}
	return s.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown status API: %w", err)
	}
	return nil
}
