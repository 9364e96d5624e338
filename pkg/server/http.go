// Package server builds the HTTP server and router shared by the entrypoint and tests.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/shopcart/pkg/config"
	"github.com/abgdnv/shopcart/pkg/web"
	"github.com/go-chi/chi/v5"
)

// NewHTTPServer returns an http.Server listening on cfg.Port with cfg's limits applied.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.Timeout.Read,
		WriteTimeout:      cfg.Timeout.Write,
		IdleTimeout:       cfg.Timeout.Idle,
		ReadHeaderTimeout: cfg.Timeout.ReadHeader,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// NewChiRouter returns a router that tags each request with an ID, logs it and
// turns panics into 500 responses.
func NewChiRouter(logger *slog.Logger) *chi.Mux {
	mux := chi.NewRouter()
	mux.Use(web.RequestIDInjector, web.StructuredLogger(logger), web.Recoverer(logger))
	return mux
}
