// Package api exposes the conversion pipeline over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/scene-converter/internal/config"
	"github.com/spherical/scene-converter/internal/observability"
	"github.com/spherical/scene-converter/internal/pipeline"
)

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, controller *pipeline.Controller, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","service":"scene-converter"}`))
	})

	conversions := NewConversionHandler(logger, controller, cfg.MaxUploadBytes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/conversions", conversions.Create)
		r.Get("/scene", conversions.Scene)
		r.Get("/state", conversions.State)
	})

	return r
}

// requestLogger logs one line per request through the structured logger.
func requestLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
