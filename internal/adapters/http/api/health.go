package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/riichi/pkg/metrics"
)

var metricsHandler = promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})

// handleHealth handles GET /healthz with the Prometheus exposition of the
// service registry.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	metricsHandler.ServeHTTP(w, r)
}
