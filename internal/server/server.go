// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roadwatch-io/roadwatch/internal/analytics"
	"github.com/roadwatch-io/roadwatch/internal/config"
	"github.com/roadwatch-io/roadwatch/internal/idgen"
	"github.com/roadwatch-io/roadwatch/internal/logging"
	"github.com/roadwatch-io/roadwatch/internal/metrics"
	"github.com/roadwatch-io/roadwatch/internal/ratelimit"
	"github.com/roadwatch-io/roadwatch/internal/realtime"
	"github.com/roadwatch-io/roadwatch/internal/security"
	"github.com/roadwatch-io/roadwatch/internal/session"
	"github.com/roadwatch-io/roadwatch/internal/traces"
	"github.com/roadwatch-io/roadwatch/internal/validation"
)

// refreshInterval is how often the background loop re-fetches hotspots for
// connected WebSocket clients.
const refreshInterval = 60 * time.Second

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router *gin.Engine

	sessions *session.Manager
	client   *analytics.Client
	hub      *realtime.Hub

	rateLimiter  *ratelimit.Limiter
	httpSrv      *http.Server
	ready        atomic.Bool
	cancelRunCtx context.CancelFunc

	tracerShutdown func(context.Context) error
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClient sets a custom analytics client (for testing)
func WithClient(c *analytics.Client) Option {
	return func(s *Server) {
		s.client = c
		s.sessions = c.Sessions()
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		format := "text"
		if cfg.IsProduction() {
			format = "json"
		}
		s.logger = logging.New(cfg.LogLevel, format)
	}

	if s.client == nil {
		var store session.Store
		if cfg.SessionFile != "" {
			store = session.NewFileStore(cfg.SessionFile)
		} else {
			store = session.NewMemoryStore()
		}
		mgr, err := session.NewManager(store, s.logger)
		if err != nil {
			return nil, fmt.Errorf("restore session: %w", err)
		}
		s.sessions = mgr
		s.client = analytics.NewClient(analytics.Config{
			BaseURL: cfg.AnalyticsAPIURL,
			Timeout: cfg.HTTPTimeout,
		}, mgr, s.logger)
	}

	s.hub = realtime.NewHub(s.logger)

	// Every open tab learns about a teardown at once, without polling.
	s.sessions.OnInvalidate(func(reason string) {
		metrics.SessionEventsTotal.WithLabelValues("invalidated").Inc()
		s.hub.BroadcastSessionInvalidated(reason)
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS
	s.router.Use(security.CORSMiddleware(s.cfg.AllowedOrigins))

	// Request size limit
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	burst := s.cfg.RateLimitRPM / 6
	if burst < 5 {
		burst = 5
	}
	s.rateLimiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: s.cfg.RateLimitRPM,
		BurstSize:         burst,
		CleanupInterval:   time.Minute,
	})
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.WithPrefix("req_")
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health and observability
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// Dashboard shell and realtime feed
	s.router.GET("/", s.indexHandler)
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	// Auth surface
	auth := s.router.Group("/auth")
	{
		auth.POST("/login", s.loginHandler)
		auth.POST("/signup", s.signupHandler)
		auth.POST("/logout", s.logoutHandler)
		auth.POST("/regenerate-key", s.regenerateKeyHandler)
		auth.PUT("/profile", s.updateProfileHandler)
		auth.GET("/session", s.sessionHandler)
	}

	// Dashboard data (proxied through the authenticated client)
	api := s.router.Group("/api")
	{
		api.GET("/hotspots", s.hotspotsHandler)
		api.GET("/schools", s.schoolsHandler)
		api.GET("/casualties", s.casualtiesHandler)
		api.GET("/casualties/:area", validation.AreaParamMiddleware(), s.casualtiesHandler)
		api.GET("/summary", s.summaryHandler)
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	shutdownTracer, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Error("tracing init failed", "error", err)
	} else {
		s.tracerShutdown = shutdownTracer
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"analytics_api", s.cfg.AnalyticsAPIURL,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.hub.Run(runCtx)

	// Background refresh for connected dashboard clients
	go s.refreshLoop(runCtx)

	// Runtime gauge sampling
	go metrics.StartRuntimeCollector(runCtx, 15*time.Second)

	// Probe any restored session so a dead credential is torn down at boot
	// rather than on the first user click.
	if s.sessions.Current().Authenticated() {
		go func() {
			probeCtx, probeCancel := context.WithTimeout(runCtx, 10*time.Second)
			defer probeCancel()
			ok, err := s.client.VerifyToken(probeCtx)
			if err != nil {
				s.logger.Warn("session probe failed", "error", err)
				return
			}
			if !ok {
				s.logger.Info("persisted session no longer valid")
			}
		}()
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// refreshLoop periodically re-fetches hotspots and the summary while a
// session is live, pushing the results to WebSocket subscribers. Each tick
// uses its own timeout so a stalled fetch never wedges the loop.
func (s *Server) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.sessions.Current().Authenticated() {
				continue
			}

			tickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			hotspots, err := s.client.Hotspots(tickCtx, 20)
			if err == nil {
				for _, h := range hotspots {
					s.hub.BroadcastHotspotRefresh(map[string]interface{}{
						"areaCode":      h.AreaCode,
						"areaName":      h.AreaName,
						"incidentCount": h.IncidentCount,
						"riskCategory":  string(h.Category),
					})
				}
			}
			if summary, err := s.client.StatsSummary(tickCtx); err == nil {
				s.hub.Broadcast(&realtime.Event{
					Type:      realtime.EventSummaryRefresh,
					Timestamp: time.Now(),
					Data:      summary,
				})
			}
			cancel()
		}
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, refresh loop)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.tracerShutdown != nil {
		if err := s.tracerShutdown(ctx); err != nil {
			s.logger.Error("tracer shutdown error", "error", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
