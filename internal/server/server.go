package server

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/roach88/textflow/internal/engine"
	"github.com/roach88/textflow/internal/journal"
)

// Server serves one engine.
type Server struct {
	engine  *engine.Engine
	journal *journal.Journal
	logger  *slog.Logger
	app     *fiber.App
	events  *broadcaster
}

// Option configures a Server.
type Option func(*Server)

// WithJournal exposes the pass history recorded in j.
func WithJournal(j *journal.Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the HTTP app for e and subscribes to its passes. Call Close
// to unsubscribe.
func New(e *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine: e,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.events = newBroadcaster(e, s.logger)
	s.app = fiber.New(fiber.Config{
		AppName:      "textflow",
		ErrorHandler: s.handleError,
	})
	s.routes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) routes() {
	s.app.Get("/operators", s.listOperators)
	s.app.Get("/graph", s.getGraph)

	s.app.Get("/nodes", s.listNodes)
	s.app.Post("/nodes", s.addNode)
	s.app.Delete("/nodes", s.removeNodes)
	s.app.Get("/nodes/:id", s.getNode)
	s.app.Delete("/nodes/:id", s.removeNode)
	s.app.Patch("/nodes/:id/config", s.patchConfig)
	s.app.Get("/nodes/:id/history", s.nodeHistory)

	s.app.Post("/edges", s.addEdge)
	s.app.Delete("/edges", s.removeEdge)

	s.app.Post("/recompute", s.recompute)
	s.app.Get("/events", s.streamEvents)

	s.app.Get("/passes", s.listPasses)
	s.app.Get("/passes/:seq", s.getPass)
}

// Listen serves on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	})
}

// Close unsubscribes from the engine and ends every event stream.
func (s *Server) Close() {
	s.events.close()
}
