// Package http exposes the academic records use cases as a REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/polos-ead/academic-records/internal/application/command"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/infrastructure/messaging"
	"github.com/polos-ead/academic-records/internal/infrastructure/spreadsheet"
	"github.com/polos-ead/academic-records/internal/infrastructure/storage"
	"github.com/polos-ead/academic-records/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Addr - address to bind, e.g. ":8080".
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxUploadBytes - body limit on batch routes.
	MaxUploadBytes int64

	// TrustedProxies - proxies whose X-Forwarded-For is honored by ClientIP.
	TrustedProxies []string

	// Uploads - accept multipart spreadsheets on batch routes.
	Uploads bool

	// Version - reported by /healthz.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxUploadBytes: 10 << 20,
		Uploads:        true,
		Version:        "dev",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// EventStats exposes event bus counters on /healthz.
type EventStats interface {
	Snapshot() messaging.MetricsSnapshot
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Single assessment use cases
	CreateAssessment      *command.CreateAssessmentHandler
	UpdateAssessment      *command.UpdateAssessmentHandler
	RemoveAssessmentGrade *command.RemoveAssessmentGradeHandler
	DeleteAssessment      *command.DeleteAssessmentHandler

	// Batch use cases
	CreateAssessmentsBatch *command.CreateAssessmentsBatchHandler
	RemoveGradesBatch      *command.RemoveGradesBatchHandler
	CreateStudentsBatch    *command.CreateStudentsBatchHandler
	UpdateStudentsBatch    *command.UpdateStudentsBatchHandler

	ChangeEnrollmentStatus *command.ChangeEnrollmentStatusHandler

	// Spreadsheet uploads
	Parser  *spreadsheet.Parser
	Storage storage.Uploader

	Tokens *handlers.TokenVerifier
	Health handlers.HealthChecker
	Events EventStats // optional

	Logger zerolog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	logger     zerolog.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer builds the router. gin's mode is global and left to the caller.
func NewServer(config Config, deps Dependencies) (*Server, error) {
	if deps.Tokens == nil {
		return nil, errors.New("http: token verifier is required")
	}
	if deps.Parser == nil {
		deps.Parser = spreadsheet.NewParser(0)
	}
	if deps.Storage == nil {
		deps.Storage = storage.NameOnly{}
	}
	if deps.Health == nil {
		deps.Health = handlers.NewCompositeHealthChecker(config.Version)
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}

	if err := registerValidators(); err != nil {
		return nil, fmt.Errorf("http: register validators: %w", err)
	}

	s := &Server{
		config: config,
		deps:   deps,
		engine: gin.New(),
		logger: deps.Logger.With().Str("component", "http").Logger(),
	}
	if err := s.engine.SetTrustedProxies(config.TrustedProxies); err != nil {
		return nil, fmt.Errorf("http: trusted proxies: %w", err)
	}
	s.engine.HandleMethodNotAllowed = true

	s.engine.Use(
		handlers.RequestID(),
		handlers.RequestLogger(s.logger),
		handlers.Recovery(s.logger),
		handlers.SecurityHeaders(),
	)
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.engine,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	s.engine.NoRoute(func(c *gin.Context) {
		handlers.WriteError(c, http.StatusNotFound, handlers.APIError{Code: "not_found", Message: "Route not found"})
	})
	s.engine.NoMethod(func(c *gin.Context) {
		handlers.WriteError(c, http.StatusMethodNotAllowed, handlers.APIError{Code: "method_not_allowed", Message: "Method not allowed"})
	})

	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api/v1", handlers.Authenticate(s.deps.Tokens))

	api.POST("/assessments", s.handleCreateAssessment)
	api.PUT("/assessments/:id", s.handleUpdateAssessment)
	api.POST("/assessments/:id/remove-grade", s.handleRemoveAssessmentGrade)
	api.DELETE("/assessments/:id", s.handleDeleteAssessment)

	limit := handlers.BodyLimit(s.config.MaxUploadBytes)
	staff := handlers.RequireRoles(shared.StaffOnly)
	admins := handlers.RequireRoles(shared.AdminOnly)

	courses := api.Group("/courses/:id")
	courses.POST("/assessments/batch", staff, limit, s.handleCreateAssessmentsBatch)
	courses.POST("/assessments/batch/remove-grades", staff, limit, s.handleRemoveGradesBatch)
	courses.POST("/students/batch", admins, limit, s.handleCreateStudentsBatch)
	courses.PUT("/students/batch", admins, limit, s.handleUpdateStudentsBatch)

	api.PATCH("/enrollments/:id/status", s.handleChangeEnrollmentStatus)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info().Str("address", s.config.Addr).Msg("starting HTTP server")

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields at most one error
// and is closed when the server stops.
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

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether Start is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns how long the server has been serving.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
