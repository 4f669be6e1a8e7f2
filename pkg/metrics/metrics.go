// Package metrics documents the Prometheus metrics exported by the catalog
// client. Metrics are defined next to the code that records them (client,
// auth, pagination) and registered through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry is the registerer all catalog client metrics are added to.
var Registry = prometheus.DefaultRegisterer

// Gatherer exposes the registry for scraping or pushing.
var Gatherer = prometheus.DefaultGatherer

// Names lists every metric family owned by this module.
var Names = []string{
	"catalog_client_requests_total",
	"catalog_client_request_duration_seconds",
	"catalog_client_errors_total",
	"catalog_oauth_token_requests_total",
	"catalog_pages_fetched_total",
}

// NewRegistry returns an isolated registry with the Go and process collectors,
// for embedding services that do not use the default registry.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - catalog_client_requests_total{method, status} (Counter): requests by HTTP
//     method and status code, or "network_error" / "auth_error"
//   - catalog_client_request_duration_seconds{method} (Histogram)
//   - catalog_client_errors_total{class} (Counter): network, auth, response
//
// Token Metrics (pkg/auth):
//   - catalog_oauth_token_requests_total{result} (Counter): cached, fetched, error
//
// Pagination Metrics (pkg/pagination):
//   - catalog_pages_fetched_total (Counter)
//
// Example Prometheus Queries:
//
//	# Error rate by class
//	sum by (class) (rate(catalog_client_errors_total[5m]))
//
//	# Token cache hit ratio
//	sum(rate(catalog_oauth_token_requests_total{result="cached"}[5m])) /
//	sum(rate(catalog_oauth_token_requests_total[5m]))
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(catalog_client_request_duration_seconds_bucket[5m]))
