// Package server exposes the chat router and the document store over HTTP
// using hertz.
package server

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/hertz/pkg/app/server"

	"github.com/hupe1980/docchat/logging"
	"github.com/hupe1980/docchat/router"
	"github.com/hupe1980/docchat/session"
	"github.com/hupe1980/docchat/store"
)

// SessionHeader carries the session id when the request body does not.
const SessionHeader = "X-Session-ID"

// Pinger is implemented by stores that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MetricsWriter renders metrics in the Prometheus text format.
type MetricsWriter interface {
	WritePrometheus(w io.Writer) error
}

// Options configures a Server.
type Options struct {
	Addr   string
	Logger logging.Logger
	// Metrics enables GET /metrics when set.
	Metrics MetricsWriter
	// CORSOrigins enables CORS for the listed origins; "*" allows any.
	// Empty disables CORS handling.
	CORSOrigins []string
	// DefaultLimit and DefaultSkip apply to GET /collection/:name.
	DefaultLimit int
	DefaultSkip  int
}

// Server wires HTTP routes to the router, the session store and the gateway.
type Server struct {
	router   *router.Router
	sessions session.Store
	reader   store.Reader
	opts     Options
	hertz    *server.Hertz
}

// New creates a Server. Call Run to start listening.
func New(r *router.Router, sessions session.Store, reader store.Reader, optFns ...func(o *Options)) *Server {
	opts := Options{Addr: ":8000", DefaultLimit: store.DefaultLimit}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	s := &Server{router: r, sessions: sessions, reader: reader, opts: opts}
	s.hertz = server.Default(server.WithHostPorts(opts.Addr))
	s.register(s.hertz)
	return s
}

// Hertz returns the underlying hertz server, e.g. for tests.
func (s *Server) Hertz() *server.Hertz { return s.hertz }

// Run blocks serving requests until Shutdown is called.
func (s *Server) Run() error {
	s.opts.Logger.Info("server.start", "addr", s.opts.Addr)
	if err := s.hertz.Run(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.opts.Logger.Info("server.shutdown")
	return s.hertz.Shutdown(ctx)
}

func (s *Server) register(h *server.Hertz) {
	h.Use(requestLogger(s.opts.Logger))
	if len(s.opts.CORSOrigins) > 0 {
		h.Use(corsMiddleware(s.opts.CORSOrigins))
	}

	h.GET("/health", s.health)
	if s.opts.Metrics != nil {
		h.GET("/metrics", s.metrics)
	}

	h.POST("/chat", s.chat)
	h.GET("/history", s.history)
	h.DELETE("/history", s.clearHistory)

	h.GET("/sessions", s.listSessions)
	h.POST("/sessions", s.createSession)
	h.DELETE("/sessions/:id", s.deleteSession)

	h.GET("/collections", s.collections)
	h.GET("/collection/:name", s.collection)
	h.GET("/collection/:name/:id", s.document)
}
