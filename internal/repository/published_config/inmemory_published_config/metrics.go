package inmemory_published_config

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	storesCnt         prometheus.Counter
	versionGauge      prometheus.GaugeFunc
	documentSizeBytes prometheus.GaugeFunc
}

func newMetrics(repo *inmemoryPublishedConfig) *metrics {
	const ss = "inmemory_published_config"
	return &metrics{
		storesCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "stores_cnt",
			Subsystem: ss,
			Help:      "Count of published state replacements",
		}),
		versionGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "published_version_gauge",
			Subsystem: ss,
			Help:      "Version of the currently published document",
		}, func() float64 {
			cfg, ok := repo.Current()
			if !ok {
				return 0
			}
			return float64(cfg.Version)
		}),
		documentSizeBytes: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "document_size_bytes_gauge",
			Subsystem: ss,
			Help:      "Size of the currently published document",
		}, func() float64 {
			cfg, ok := repo.Current()
			if !ok {
				return 0
			}
			return float64(len(cfg.Raw))
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.storesCnt,
		m.versionGauge,
		m.documentSizeBytes,
	}
}
