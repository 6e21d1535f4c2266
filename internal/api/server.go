package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
	"github.com/rbazzell/distributed-systems-project/internal/model"
	"github.com/rbazzell/distributed-systems-project/internal/scheduler"
	"github.com/rbazzell/distributed-systems-project/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 60 * time.Second
	maxBodySize       = 64 << 20 // 64 MB
)

// base holds what the coordinator and worker servers share: the router with
// its middleware stack, the logger and the serve loop.
type base struct {
	router *chi.Mux
	logger *slog.Logger
	addr   string
}

func newBase(addr string, logger *slog.Logger) base {
	b := base{
		router: chi.NewRouter(),
		logger: logger,
		addr:   addr,
	}

	b.router.Use(middleware.RequestID)
	b.router.Use(middleware.Recoverer)
	b.router.Use(b.loggingMiddleware)
	b.router.Use(metricsMiddleware)
	b.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	b.router.Get("/healthz", b.handleHealthz)
	b.router.Handle("/metrics", metricsHandler())
	return b
}

// Router returns the chi router for route registration.
func (b *base) Router() *chi.Mux {
	return b.router
}

// Run listens on the configured address and serves until ctx is cancelled.
func (b *base) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", b.addr, err)
	}
	return b.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (b *base) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           b.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		b.logger.Info("server listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		b.logger.Info("shutting down", "cause", context.Cause(ctx).Error())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	b.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (b *base) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		b.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// writeJSON writes a JSON response with the given status code.
func (b *base) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		b.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (b *base) writeError(w http.ResponseWriter, status int, message string) {
	b.writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps a domain error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, matrix.ErrDimension),
		errors.Is(err, model.ErrInvalidSlot),
		errors.Is(err, model.ErrInvalidTask):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnknownTask), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNoWorkersAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrDispatchFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Server is the coordinator's HTTP front end.
type Server struct {
	base
	scheduler *scheduler.Scheduler
	store     store.Store
}

// NewServer creates and configures the coordinator HTTP server.
func NewServer(addr string, sched *scheduler.Scheduler, s store.Store, logger *slog.Logger) *Server {
	srv := &Server{
		base:      newBase(addr, logger),
		scheduler: sched,
		store:     s,
	}
	srv.routes()
	return srv
}

// routes registers the coordinator routes on the router.
func (s *Server) routes() {
	s.router.Get("/v1/stats", s.handleGetStats)

	s.router.Route("/v1/workers", func(r chi.Router) {
		r.Post("/", s.handleRegisterWorker)
		r.Get("/", s.handleListWorkers)
	})

	s.router.Route("/v1/tasks", func(r chi.Router) {
		r.Post("/", s.handleSubmitTask)
		r.Post("/{id}/subtasks", s.handleReturnSubtask)
		r.Post("/{id}/result", s.handleReceiveResult)
		r.Post("/{id}/failure", s.handleReportFailure)
	})

	s.router.Route("/v1/results", func(r chi.Router) {
		r.Get("/", s.handleListResults)
		r.Get("/{id}", s.handleGetResult)
		r.Get("/{id}/events", s.handleStreamEvents)
	})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
