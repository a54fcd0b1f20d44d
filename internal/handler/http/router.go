package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minimart/order-service/pkg/health"
	"github.com/minimart/order-service/pkg/middleware"
)

// RouterConfig carries the pieces the router needs beyond the handler.
type RouterConfig struct {
	ServiceName        string
	RequestTimeout     time.Duration
	CORSAllowedOrigins []string
	PprofAllowedCIDRs  []string
}

// NewRouter assembles the middleware stack and mounts the API, health,
// metrics and pprof endpoints.
func NewRouter(cfg RouterConfig, orders *OrderHandler, healthHandler *health.Handler, logger *slog.Logger) (chi.Router, error) {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	if err := middleware.MountPprof(r, cfg.PprofAllowedCIDRs); err != nil {
		return nil, err
	}

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Post("/", orders.CreateOrder)
		r.Get("/", orders.ListOrders)
		r.Get("/{id}", orders.GetOrder)
		r.Patch("/{id}/status", orders.UpdateStatus)
		r.Delete("/{id}", orders.DeleteOrder)
		r.Get("/{id}/items", orders.ListItems)
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"order service"}`))
	})

	return r, nil
}
