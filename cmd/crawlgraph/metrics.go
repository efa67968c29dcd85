package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// workerStatus is what the health check reports about a running pool.
type workerStatus interface {
	ID() string
	InFlight() int
}

type healthResponse struct {
	Status   string `json:"status"`
	Worker   string `json:"worker"`
	InFlight int    `json:"in_flight"`
}

// newMetricsRouter serves the registry on /metrics and the pool state on
// /healthz.
func newMetricsRouter(reg *prometheus.Registry, status workerStatus) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:   "ok",
			Worker:   status.ID(),
			InFlight: status.InFlight(),
		})
	})
	return r
}
