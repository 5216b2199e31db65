// Package metrics holds the Prometheus registry shared by logsink components
// and the collectors they report through.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = newRegistry()

	gatherersMu sync.RWMutex
	gatherers   []prometheus.Gatherer
)

func newRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RegisterCollector registers c with the shared registry.
func RegisterCollector(c prometheus.Collector) error {
	return registry.Register(c)
}

// RegisterGatherer exposes g through Handler next to the shared registry,
// for components that keep a private registry.
func RegisterGatherer(g prometheus.Gatherer) {
	if g == nil {
		return
	}
	gatherersMu.Lock()
	gatherers = append(gatherers, g)
	gatherersMu.Unlock()
}

// Handler serves the shared registry and every registered gatherer.
func Handler() http.Handler {
	gatherersMu.RLock()
	g := append(prometheus.Gatherers{registry}, gatherers...)
	gatherersMu.RUnlock()
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
