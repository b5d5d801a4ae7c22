// Package server exposes the ingestion and search pipeline over HTTP.
package server

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	voynich "github.com/voynich-dev/voynich"
	"github.com/voynich-dev/voynich/ingest"
)

// Version is reported by the status endpoint.
const Version = "1.0.0"

// Config holds the HTTP-facing knobs.
type Config struct {
	Addr string
	// BodyLimit caps upload size in bytes; 0 uses fiber's default.
	BodyLimit int
	// DefaultSearchLimit applies when a search request omits limit.
	DefaultSearchLimit int
}

// Server wires the store and ingestor behind a fiber app.
type Server struct {
	app      *fiber.App
	store    voynich.Store
	ingestor *ingest.Ingestor
	logger   *slog.Logger
	cfg      Config
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server with all routes registered.
func New(store voynich.Store, ingestor *ingest.Ingestor, cfg Config, opts ...Option) *Server {
	if cfg.DefaultSearchLimit <= 0 {
		cfg.DefaultSearchLimit = voynich.DefaultSearchLimit
	}

	fiberCfg := fiber.Config{
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	}
	if cfg.BodyLimit > 0 {
		fiberCfg.BodyLimit = cfg.BodyLimit
	}

	s := &Server{
		app:      fiber.New(fiberCfg),
		store:    store,
		ingestor: ingestor,
		logger:   slog.Default(),
		cfg:      cfg,
	}
	for _, o := range opts {
		o(s)
	}

	s.app.Use(s.requestLog)

	api := s.app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/upload", s.handleUpload)
	api.Post("/search", s.handleSearch)
	api.Get("/documents", s.handleListDocuments)
	api.Get("/documents/:id", s.handleGetDocument)
	api.Get("/documents/:id/chunks", s.handleGetChunks)
	api.Get("/documents/:id/preview", s.handlePreview)
	api.Delete("/documents/:id", s.handleDeleteDocument)

	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Run blocks serving HTTP until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	s.logger.Info("http server stopping")
	return s.app.Shutdown()
}

// requestLog tags every request with a correlation id and logs its outcome.
func (s *Server) requestLog(c *fiber.Ctx) error {
	reqID := voynich.NewID()
	c.Locals("request_id", reqID)
	c.Set("X-Request-ID", reqID)

	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
	}
	s.logger.Info("request",
		"request_id", reqID,
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"elapsed", time.Since(start),
	)
	return err
}
