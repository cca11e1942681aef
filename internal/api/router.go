package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"truck-dispatch-service/internal/api/handlers"
	"truck-dispatch-service/internal/platform/metrics"
)

// Dependencies are the services the HTTP surface exposes.
type Dependencies struct {
	Optimizer handlers.Optimizer
	Planner   handlers.RoutePlanner
	Logger    zerolog.Logger
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(deps Dependencies) http.Handler {
	r := mux.NewRouter()

	optimize := &handlers.OptimizeHandler{Optimizer: deps.Optimizer}
	routes := &handlers.RoutesHandler{Planner: deps.Planner}

	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)
	r.HandleFunc("/optimize", optimize.Optimize).Methods(http.MethodPost)
	r.HandleFunc("/routes", routes.Routes).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.Use(requestContext(deps.Logger), accessLog)

	return r
}
