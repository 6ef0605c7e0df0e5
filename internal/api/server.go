package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
	"github.com/JakeFAU/district-staff-crawler/internal/metrics"
	"github.com/JakeFAU/district-staff-crawler/internal/pipeline"
)

// StatsSource reports live run counters.
type StatsSource interface {
	Stats() pipeline.Stats
}

// CheckpointReader reads the next unprocessed seed position.
type CheckpointReader interface {
	Load() (int, error)
}

// ErrorReader lists recorded seed failures.
type ErrorReader interface {
	All() ([]crawler.ErrorRecord, error)
}

// Status is the /status payload.
type Status struct {
	Checkpoint int            `json:"checkpoint"`
	Seeds      int            `json:"seeds"`
	Remaining  int            `json:"remaining"`
	Errors     int            `json:"errors"`
	Run        pipeline.Stats `json:"run"`
}

// Server wires HTTP handlers to run state.
type Server struct {
	router     chi.Router
	stats      StatsSource
	checkpoint CheckpointReader
	errors     ErrorReader
	seeds      int
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes. stats may be nil
// when no run is in progress.
func NewServer(stats StatsSource, checkpoint CheckpointReader, errs ErrorReader, seeds int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		stats:      stats,
		checkpoint: checkpoint,
		errors:     errs,
		seeds:      seeds,
		logger:     logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/status", s.status)
	r.Get("/errors", s.listErrors)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown status server: %w", err)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.checkpoint == nil || s.errors == nil {
		s.writeError(w, http.StatusServiceUnavailable, "state files not configured")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	next, err := s.checkpoint.Load()
	if err != nil && !errors.Is(err, crawler.ErrConfigMissing) {
		s.writeError(w, http.StatusInternalServerError, "failed to read checkpoint")
		return
	}
	if next < 1 {
		next = 1
	}
	records, err := s.errors.All()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read error log")
		return
	}
	st := Status{
		Checkpoint: next,
		Seeds:      s.seeds,
		Remaining:  max(s.seeds-next+1, 0),
		Errors:     len(records),
	}
	if s.stats != nil {
		st.Run = s.stats.Stats()
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) listErrors(w http.ResponseWriter, _ *http.Request) {
	records, err := s.errors.All()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read error log")
		return
	}
	if records == nil {
		records = []crawler.ErrorRecord{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"errors": records})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
