// Package server exposes the chat service over HTTP: a JSON API for
// conversations and messages, and a Server-Sent Events endpoint that streams
// assistant replies.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/longkey1/lome/internal/lome/auth"
	"github.com/longkey1/lome/internal/lome/service"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = "127.0.0.1:8787"

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Addr   string
	Logger *slog.Logger
	// Metrics receives request and stream counters. Pass Metrics.Hooks to the
	// service to count stream outcomes.
	Metrics *Metrics
	// DevPersonas enables POST /api/dev/session, which issues tokens for
	// development and test personas without credentials.
	DevPersonas bool
}

// Server serves the HTTP API.
type Server struct {
	svc     *service.Service
	issuer  *auth.TokenIssuer
	logger  *slog.Logger
	metrics *Metrics
	opts    Options
	router  chi.Router
}

// New creates a Server.
func New(svc *service.Service, issuer *auth.TokenIssuer, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}

	s := &Server{
		svc:     svc,
		issuer:  issuer,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		opts:    opts,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(s.recoverMiddleware)
	router.Use(s.logMiddleware)
	router.Use(s.sessionMiddleware)

	router.Get("/health", s.handleHealth)
	router.Get("/metrics", s.metrics.handler().ServeHTTP)

	router.Route("/api", func(r chi.Router) {
		r.Get("/auth/session", s.handleSession)
		if s.opts.DevPersonas {
			r.Post("/dev/session", s.handleDevSession)
		}

		r.Route("/conversations", func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/", s.handleListConversations)
			r.Post("/", s.handleCreateConversation)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetConversation)
				r.Patch("/", s.handleUpdateConversation)
				r.Delete("/", s.handleDeleteConversation)
				r.Get("/messages", s.handleListMessages)
				r.Post("/messages", s.handleSendMessage)
				r.Post("/stream", s.handleStream)
			})
		})

		r.Route("/projects", func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Patch("/", s.handleUpdateProject)
				r.Delete("/", s.handleDeleteProject)
			})
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, errors.New("not found"))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	return router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("serving", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
