// Package metrics provides the Prometheus registry used by the certificate
// export and a textfile writer for batch runs.
// All metrics are defined in their respective packages (client, pagination,
// export) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Gatherer collects every metric the packages register via promauto on the
// default registry.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all gathered metrics to path in the text exposition
// format, for the node exporter textfile collector. The file is replaced
// atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - vaas_search_requests_total{status} (Counter): Search requests by HTTP status
//     ("network_error" when no response arrived)
//   - vaas_search_request_duration_seconds (Histogram): Search request duration
//   - vaas_search_errors_total{class} (Counter): Errors by class (client, server, decode, network)
//
// Pagination Metrics (pkg/pagination):
//   - vaas_pages_fetched_total{outcome} (Counter): Pages by outcome (ok, failed, aborted)
//   - vaas_certificates_fetched_total (Counter): Records accumulated across pages
//
// Export Metrics (pkg/export):
//   - vaas_export_rows_written (Gauge): Data rows in the last CSV written
//
// Example Prometheus Queries:
//
//   # Runs that ended on a failed page
//   increase(vaas_pages_fetched_total{outcome="failed"}[1d]) > 0
//
//   # Inventory size trend
//   vaas_export_rows_written
//
//   # P95 search latency
//   histogram_quantile(0.95, rate(vaas_search_request_duration_seconds_bucket[1d]))
