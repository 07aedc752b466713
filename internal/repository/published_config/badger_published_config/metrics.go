package badger_published_config

import (
	"github.com/dgraph-io/badger"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	successStoresCnt prometheus.Counter
	errStoresCnt     prometheus.Counter
	dbSizeBytesGauge prometheus.GaugeFunc
}

func newMetrics(db *badger.DB) *metrics {
	const ss = "badger_published_config"
	return &metrics{
		successStoresCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "success_stores_cnt",
			Subsystem: ss,
			Help:      "Count of successfully persisted publishes",
		}),
		errStoresCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "err_stores_cnt",
			Subsystem: ss,
			Help:      "Count of publishes that failed to persist",
		}),
		dbSizeBytesGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "db_size_bytes_gauge",
			Subsystem: ss,
			Help:      "Badger LSM+vlog size",
		}, func() float64 {
			lsm, vlog := db.Size()
			return float64(lsm + vlog)
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.successStoresCnt,
		m.errStoresCnt,
		m.dbSizeBytesGauge,
	}
}
