package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/driverpool"
	"github.com/beborico/runway-crawler/internal/id/uuid"
	"github.com/beborico/runway-crawler/internal/runway"
)

const statusTimeout = 3 * time.Second

// StatusSource exposes the live crawl state the server reports on. The
// orchestrator satisfies it.
type StatusSource interface {
	WorkerStatus() map[driverpool.WorkerID]driverpool.Status
	Progress(ctx context.Context) (runway.Progress, error)
}

// SnapshotSource reads the full persisted state for the seasons
// breakdown.
type SnapshotSource interface {
	ReadAll(ctx context.Context) (runway.Snapshot, error)
}

// Server wires the HTTP handlers to the crawl.
type Server struct {
	router   chi.Router
	status   StatusSource
	snapshot SnapshotSource
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(status StatusSource, snapshot SnapshotSource, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		status:   status,
		snapshot: snapshot,
		gatherer: gatherer,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/seasons", s.getSeasons)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// Ready once the persisted state is reachable.
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()
	if _, err := s.snapshot.ReadAll(ctx); err != nil {
		writeError(s.logger, w, http.StatusServiceUnavailable, "state store unavailable")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

type workerStatusDTO struct {
	WorkerID string    `json:"worker_id"`
	Unit     string    `json:"unit"`
	State    string    `json:"state"`
	Updated  time.Time `json:"updated_at"`
}

// getStatus handles GET /v1/status: run-wide derived progress plus the
// live worker map.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	progress, err := s.status.Progress(ctx)
	if err != nil {
		s.logger.Error("read progress failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "failed to read progress")
		return
	}

	workers := make([]workerStatusDTO, 0)
	for id, st := range s.status.WorkerStatus() {
		workers = append(workers, workerStatusDTO{
			WorkerID: string(id),
			Unit:     st.Unit,
			State:    st.State,
			Updated:  st.UpdatedAt,
		})
	}

	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"progress": progress,
		"workers":  workers,
	})
}

type seasonDTO struct {
	Name               string `json:"season"`
	Year               string `json:"year"`
	TotalDesigners     int    `json:"total_designers"`
	CompletedDesigners int    `json:"completed_designers"`
	Completed          bool   `json:"completed"`
}

// getSeasons handles GET /v1/seasons: the per-season completion
// breakdown in chronological order.
func (s *Server) getSeasons(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	snap, err := s.snapshot.ReadAll(ctx)
	if err != nil {
		s.logger.Error("read snapshot failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "failed to read state")
		return
	}

	seasons := make([]seasonDTO, 0, len(snap.Seasons))
	for _, season := range snap.Seasons {
		seasons = append(seasons, seasonDTO{
			Name:               season.Name,
			Year:               season.Year,
			TotalDesigners:     season.TotalDesigners,
			CompletedDesigners: season.CompletedDesigners,
			Completed:          season.Completed,
		})
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"seasons": seasons})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	ids := uuid.NewUUIDGenerator()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", ids.MustNewID())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(s.logger, w, http.StatusInternalServerError, "internal server error")
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

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
