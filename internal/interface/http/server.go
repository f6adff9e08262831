// Package http implements the REST API for the PyShark progress ledger.
// It exposes progress reads and mutations, backups, notifications,
// health checks and Prometheus metrics over gin.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MirasRuslanJR/PyShark/config"
	"github.com/MirasRuslanJR/PyShark/internal/application/ledger"
	"github.com/MirasRuslanJR/PyShark/internal/domain/curriculum"
	"github.com/MirasRuslanJR/PyShark/internal/domain/progress"
	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/internal/interface/http/handlers"
	"github.com/MirasRuslanJR/PyShark/pkg/logger"
)

// Version is reported in response metadata and health checks.
const Version = "1.0.0"

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Addr - address to listen on (default: ":8080").
	Addr string

	// Mode - gin mode: debug, release or test.
	Mode string

	// ReadTimeout - maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout - maximum duration for writing the response.
	WriteTimeout time.Duration

	// IdleTimeout - maximum duration for idle connections.
	IdleTimeout time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// MaxBodyBytes - maximum size of an import upload.
	MaxBodyBytes int64

	// AllowedOrigins - allowed origins for CORS.
	AllowedOrigins []string

	// RateLimitRPS - sustained requests per second per client IP (0 = disabled).
	RateLimitRPS float64

	// RateLimitBurst - burst size per client IP.
	RateLimitBurst int
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		Mode:           gin.ReleaseMode,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{"*"},
		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}
}

// ConfigFrom maps the environment-driven HTTPConfig onto a server Config.
func ConfigFrom(c config.HTTPConfig) Config {
	cfg := DefaultConfig()
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if c.Mode != "" {
		cfg.Mode = c.Mode
	}
	if c.ReadTimeout > 0 {
		cfg.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout
	}
	if len(c.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = c.AllowedOrigins
	}
	cfg.RateLimitRPS = c.RateLimitRPS
	cfg.RateLimitBurst = c.RateLimitBurst
	return cfg
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Ledger is the part of ledger.Service the API drives.
type Ledger interface {
	Snapshot(ctx context.Context) (progress.Snapshot, error)
	Achievements(ctx context.Context) ([]ledger.AchievementView, error)
	NextLesson(ctx context.Context) (string, bool, error)
	StartLesson(ctx context.Context, lessonID string) (ledger.Result, error)
	CompleteLesson(ctx context.Context, lessonID string, scorePercent int) (ledger.Result, error)
	AnswerQuestion(ctx context.Context, correct bool) (ledger.Result, error)
	AddXP(ctx context.Context, amount int) (ledger.Result, error)
	RecordCodeRun(ctx context.Context) (ledger.Result, error)
	AddTimeSpent(ctx context.Context, minutes int) (ledger.Result, error)
	SetDailyGoalTarget(ctx context.Context, target int) (ledger.Result, error)
	RegisterMascotClick(ctx context.Context) (ledger.Result, error)
	Reset(ctx context.Context, confirmed bool) (ledger.Result, error)
	Export(ctx context.Context) (progress.Record, error)
	Import(ctx context.Context, record progress.Record) (ledger.Result, error)
}

// Lessons reports per-lesson completion and unlock state.
type Lessons interface {
	Statuses(track curriculum.Track, completed []string) []curriculum.LessonStatus
}

// Feed lists recently published events.
type Feed interface {
	Recent(limit int) []shared.EventEnvelope
}

// MetricsExporter instruments requests and serves the scrape endpoint.
type MetricsExporter interface {
	GinMiddleware() gin.HandlerFunc
	Handler() http.Handler
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Ledger serves every progress route.
	Ledger Ledger

	// Lessons backs GET /api/v1/lessons (default: curriculum.Default()).
	Lessons Lessons

	// Feed backs GET /api/v1/notifications. Optional.
	Feed Feed

	// HealthChecker backs GET /health. Optional.
	HealthChecker handlers.HealthChecker

	// Metrics instruments requests and serves GET /metrics. Optional.
	Metrics MetricsExporter

	// Logger
	Logger *zap.Logger

	// Now is the export timestamp source (default: time.Now).
	Now func() time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	engine     *gin.Engine
	logger     *zap.Logger

	// Middleware state
	rateLimiter *rateLimiter

	// Server state
	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Lessons == nil {
		deps.Lessons = curriculum.Default()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	s := &Server{
		config: config,
		deps:   deps,
		engine: gin.New(),
		logger: deps.Logger.With(logger.Component("http")),
	}

	if config.RateLimitRPS > 0 {
		s.rateLimiter = newRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Addr,
		Handler:        s.engine,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// setupMiddleware installs the middleware chain, outermost first.
func (s *Server) setupMiddleware() {
	s.engine.Use(s.requestIDMiddleware(), s.recoveryMiddleware(), s.loggingMiddleware())
	if s.deps.Metrics != nil {
		s.engine.Use(s.deps.Metrics.GinMiddleware())
	}
	s.engine.Use(s.corsMiddleware())
	if s.rateLimiter != nil {
		s.engine.Use(s.rateLimitMiddleware())
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := s.engine.Group("/api/v1")

	api.GET("/progress", s.handleProgress)
	api.GET("/achievements", s.handleAchievements)
	api.GET("/notifications", s.handleNotifications)

	api.GET("/lessons", s.handleLessons)
	api.GET("/lessons/next", s.handleNextLesson)
	api.POST("/lessons/:id/start", s.handleStartLesson)
	api.POST("/lessons/:id/complete", s.handleCompleteLesson)

	api.POST("/questions/answer", s.handleAnswerQuestion)
	api.POST("/xp", s.handleAddXP)
	api.POST("/code-runs", s.handleCodeRun)
	api.POST("/time-spent", s.handleTimeSpent)
	api.PUT("/daily-goal", s.handleDailyGoal)
	api.POST("/mascot/clicks", s.handleMascotClick)

	api.GET("/export", s.handleExport)
	api.POST("/import", s.handleImport)
	api.POST("/reset", s.handleReset)

	s.engine.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", "Route not found", nil)
	})
}

// Handler returns the HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", zap.String("addr", s.config.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// StartAsync starts the server in a goroutine and reports a listen error on the channel.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
