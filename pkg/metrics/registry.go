package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/supporttools/logcheck/pkg/logger"
)

// NewRegistry creates a registry separate from the global default one. The
// Go runtime and process collectors are added for long-running processes
// only; a textfile written by a one-shot check should hold check metrics.
func NewRegistry(withRuntime bool) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	if withRuntime {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorLog:          logger.Get(),
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// WriteTextfile writes the registry to path for node_exporter's textfile
// collector. The file is replaced atomically.
func WriteTextfile(path string, registry *prometheus.Registry) error {
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
