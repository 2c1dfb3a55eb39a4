package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mehdichamani/HikStatus/internal/data"
)

// Handler serves the read-only reporting surface. It only ever reads
// committed state; the background cycle is the sole writer.
type Handler struct {
	Repo data.ReportRepository
	Log  zerolog.Logger
}

func NewHandler(repo data.ReportRepository, log zerolog.Logger) *Handler {
	return &Handler{Repo: repo, Log: log}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestLogger)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/cameras", h.ListCameras)
		r.Get("/cameras/down", h.ListDownCameras)
		r.Get("/events", h.ListEvents)
		r.Get("/checks", h.ListChecks)
	})
	return r
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLogger tags each request with an id and logs method, path,
// status and duration.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()
		start := time.Now()
		w.Header().Set("X-Request-ID", reqID)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		h.Log.Info().
			Str("req_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
