package logging

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler returns a plain net/http handler serving the default
// Prometheus registry, mounted by each cmd/thorium-* entrypoint on its own
// health-check listener since each binary only needs to expose its own
// /metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
