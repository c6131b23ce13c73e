package tile

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "fastdb_tile"

type metrics struct {
	takes     prometheus.Counter
	selected  prometheus.Histogram
	loads     *prometheus.CounterVec
	loadTime  prometheus.Histogram
	loaded    prometheus.Gauge
	evictions prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		takes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "takes_total",
			Help:      "Number of tile selections.",
		}),
		selected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "selected_tiles",
			Help:      "Tiles returned per selection.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "loads_total",
			Help:      "Tile database loads by result.",
		}, []string{"result"}),
		loadTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "load_seconds",
			Help:      "Time spent loading a tile database.",
			Buckets:   prometheus.DefBuckets,
		}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "loaded_tiles",
			Help:      "Tile databases currently held in memory.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evictions_total",
			Help:      "Tile databases released by Shrink.",
		}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.takes, m.selected, m.loads, m.loadTime, m.loaded, m.evictions}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("tile: register metrics: %w", err)
		}
	}
	return nil
}
