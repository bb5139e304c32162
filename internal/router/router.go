package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/actuallystonmai/availability-service/internal/handler"
	"github.com/actuallystonmai/availability-service/internal/logging"
)

// CorrelationHeader carries the request's correlation id in and out.
const CorrelationHeader = "X-Correlation-ID"

func Setup(h *handler.Handler, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(correlation)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	// Routes
	r.Route("/titles/{mediaKind}/{contentID}", func(r chi.Router) {
		r.Get("/availability", h.GetAvailability)
		r.Get("/watch", h.Watch)
	})
	r.Post("/availability/batch", h.PostBatch)

	r.Get("/users/{userID}/preferences", h.GetPreferences)
	r.Put("/users/{userID}/preferences", h.PutPreferences)

	r.Route("/admin/cache", func(r chi.Router) {
		r.Get("/stats", h.CacheStats)
		r.Get("/entries", h.CacheEntries)
		r.Delete("/{mediaKind}/{contentID}", h.InvalidateCache)
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// correlation adopts the caller's correlation id or assigns a new one.
func correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" || len(id) > 64 {
			id = logging.GenerateCorrelationID()
		}
		w.Header().Set(CorrelationHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithCorrelationID(r.Context(), id)))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
			return
		}
		logging.Ctx(r.Context()).Info().
			Str("component", "http").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}
