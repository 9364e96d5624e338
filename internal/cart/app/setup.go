// Package app wires the shop components into an HTTP application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/shopcart/internal/cart/handler"
	"github.com/abgdnv/shopcart/internal/cart/service"
	"github.com/abgdnv/shopcart/internal/cart/store"
	"github.com/abgdnv/shopcart/internal/catalog"
	"github.com/abgdnv/shopcart/internal/config"
	"github.com/abgdnv/shopcart/pkg/bootstrap"
	"github.com/abgdnv/shopcart/pkg/server"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Dependencies struct {
	CartStore *service.CartStore
	Catalog   *catalog.Catalog
	Logger    *slog.Logger
	// MetricsHandler serves the Prometheus scrape endpoint; nil disables it.
	MetricsHandler http.Handler
	MetricsPath    string
}

// SetupSlotStore opens the backend selected by cfg.Storage.Driver.
// Remote backends are wrapped in a circuit breaker and migrated when configured.
// The returned closer releases the backend's connections.
func SetupSlotStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.SlotStore, func(), error) {
	noop := func() {}
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("Using in-memory storage, state is lost on restart")
		return store.NewInMemoryStore(), noop, nil

	case config.DriverFile:
		fs, err := store.NewFileStore(cfg.Storage.File.Dir)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Using file storage", "dir", cfg.Storage.File.Dir)
		return fs, noop, nil

	case config.DriverRedis:
		client, err := bootstrap.NewRedisClient(ctx, cfg.Storage.Redis)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Using redis storage", "addr", cfg.Storage.Redis.Addr)
		rs := store.NewRedisStore(client, cfg.Storage.Redis.KeyPrefix)
		closer := func() {
			if err := client.Close(); err != nil {
				logger.Error("Failed to close redis client", "error", err)
			}
		}
		return store.WithCircuitBreaker("redis-slots", rs, cfg.CircuitBreaker), closer, nil

	case config.DriverPostgres:
		if cfg.Storage.Database.Migrate {
			if err := store.Migrate(cfg.Storage.Database.URL); err != nil {
				return nil, noop, err
			}
			logger.Info("Database schema is up to date")
		}
		pool, err := bootstrap.NewDbPool(ctx, cfg.Storage.Database.URL, cfg.Storage.Database.Timeout)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Using postgres storage")
		return store.WithCircuitBreaker("postgres-slots", store.NewPgStore(pool), cfg.CircuitBreaker), pool.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// SetupDependencies builds the cart store over slots and restores its saved state.
func SetupDependencies(ctx context.Context, slots store.SlotStore, cfg *config.Config, logger *slog.Logger) *Dependencies {
	var opts []service.Option
	if cfg.Checkout.RejectEmpty {
		opts = append(opts, service.WithRejectEmptyCheckout())
	}
	cartStore := service.NewCartStore(slots, logger, opts...)
	cartStore.Load(ctx)

	return &Dependencies{
		CartStore:   cartStore,
		Catalog:     catalog.Default(),
		Logger:      logger,
		MetricsPath: cfg.Telemetry.Metrics.Path,
	}
}

// SetupHttpHandler initializes the routes and middleware of the shop API.
// Used by tests to exercise the full HTTP stack.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	cApi := handler.NewAPI(deps.CartStore, deps.Catalog, deps.Logger)

	mux := server.NewChiRouter(deps.Logger)

	mux.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", cApi.ListCatalog)
			r.Get("/{id}", cApi.FindProduct)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cApi.GetCart)
			r.Post("/", cApi.AddToCart)
			r.Delete("/{index}", cApi.RemoveFromCart)
		})
		r.Post("/checkout", cApi.Checkout)
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", cApi.ListOrders)
			r.Delete("/", cApi.ClearOrders)
		})
	})

	mux.Get("/healthz", cApi.HealthCheck)
	if deps.MetricsHandler != nil {
		mux.Handle(deps.MetricsPath, deps.MetricsHandler)
	}

	return otelhttp.NewHandler(mux, "shopcart-http")
}

// SetupHttpServer creates and configures the HTTP server of the shop API.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	return server.NewHTTPServer(cfg.HTTPServer, SetupHttpHandler(deps))
}
