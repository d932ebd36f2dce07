// Package httpapi is the outer HTTP surface around the dispatch core's WS
// gateway: liveness/readiness probes, Prometheus scraping, and the /ws
// upgrade route. Adapted from the teacher's internal/api/routes.go, trimmed
// of every REST ride/driver endpoint now that the event protocol in
// internal/gateway owns that traffic.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ridedispatch/internal/gateway"
)

// Pinger is satisfied by an optional audit-trail database; readiness
// degrades to "ready" (not "unready") when none is configured, mirroring
// the teacher's "Postgres is optional" stance.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter builds the HTTP surface, grounded in the teacher's routes.go
// chi.NewRouter + middleware stack.
func NewRouter(gw *gateway.Gateway, db Pinger, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", gw.ServeHTTP)

	return r
}

// requestLogger mirrors the teacher's internal/api/logging.go: one zerolog
// line per request at debug level, method+path+status+duration.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
