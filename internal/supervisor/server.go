// Package supervisor serves the supervisor JSON API: pending requests,
// answering, history, the learned knowledge base, manual timeout sweeps,
// health and Prometheus metrics.
package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dyluth/frontdesk/internal/desk"
	"github.com/dyluth/frontdesk/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger checks store connectivity for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the supervisor HTTP server.
type Server struct {
	desk      *desk.Desk
	pinger    Pinger
	storeName string
	metrics   *metrics.Metrics
	logger    *zap.Logger
	router    *gin.Engine
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exposes the registry on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithStoreName labels the store in health responses, e.g. "redis" or "memory".
func WithStoreName(name string) Option {
	return func(s *Server) {
		s.storeName = name
	}
}

// NewServer creates a server listening on addr.
func NewServer(addr string, d *desk.Desk, pinger Pinger, opts ...Option) *Server {
	s := &Server{
		desk:      d,
		pinger:    pinger,
		storeName: "redis",
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "supervisor"))
	s.router = s.buildRouter()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(loggerMiddleware(s.logger))

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	api.GET("/stats", s.handleStats)
	api.GET("/requests/pending", s.handlePending)
	api.GET("/requests/history", s.handleHistory)
	api.GET("/requests/:id", s.handleGetRequest)
	api.POST("/requests", s.handleCreateRequest)
	api.POST("/requests/:id/respond", s.handleRespond)
	api.GET("/knowledge", s.handleKnowledge)
	api.POST("/knowledge/check", s.handleCheckKnowledge)
	api.POST("/timeout-old-requests", s.handleTimeoutSweep)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("supervisor API listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// loggerMiddleware logs one structured line per request.
func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status_code", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, zap.String("error", errs))
		}
		logger.Info("request completed", fields...)
	}
}
