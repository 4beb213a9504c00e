package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VishnuMK2006/invent-consolt/internal/logger"
	"github.com/VishnuMK2006/invent-consolt/internal/metrics"
	"github.com/VishnuMK2006/invent-consolt/internal/service"
)

type Options struct {
	AllowedOrigin string
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
	// Gatherer backs /metrics. The endpoint is not mounted when nil.
	Gatherer prometheus.Gatherer
}

type API struct {
	service       *service.Service
	log           *logger.Logger
	metrics       *metrics.Metrics
	gatherer      prometheus.Gatherer
	allowedOrigin string
}

func New(svc *service.Service, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	return &API{
		service:       svc,
		log:           opts.Logger.Named("http"),
		metrics:       opts.Metrics,
		gatherer:      opts.Gatherer,
		allowedOrigin: opts.AllowedOrigin,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(a.requestID)
	r.Use(a.recoverer)
	r.Use(a.securityHeaders)
	r.Use(a.logging)
	r.Use(a.instrument)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", a.handleHealth)
	r.Get("/readyz", a.handleReady)
	if a.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", a.handleListSales)
			r.Post("/", a.handleCreateSale)
			r.Post("/quote", a.handleQuoteSale)
			r.Post("/scan", a.handleScan)
			r.Get("/{id}", a.handleGetSale)
		})
		r.Get("/barcodes/{code}", a.handleBarcodeLookup)
		r.Get("/reports/sales", a.handleSalesReport)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", a.handleListProducts)
			r.Post("/", a.handleCreateProduct)
			r.Get("/low-stock", a.handleLowStock)
			r.Get("/{id}", a.handleGetProduct)
			r.Patch("/{id}", a.handleUpdateProduct)
			r.Delete("/{id}", a.handleDeleteProduct)
			r.Post("/{id}/stock", a.handleAdjustStock)
		})

		r.Route("/buyers", func(r chi.Router) {
			r.Get("/", a.handleListBuyers)
			r.Post("/", a.handleCreateBuyer)
			r.Get("/{id}", a.handleGetBuyer)
		})
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.service.Ping(ctx); err != nil {
		a.log.Warn(r.Context(), "readiness check failed", err, nil)
		writeMessage(w, http.StatusServiceUnavailable, codeUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
