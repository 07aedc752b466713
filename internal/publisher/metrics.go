package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	publishCnt     prometheus.Counter
	suppressCnt    prometheus.Counter
	heldCnt        prometheus.Counter
	deliveryErrCnt prometheus.Counter
}

func newMetrics() *metrics {
	const ss = "publisher"
	return &metrics{
		publishCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "publish_cnt",
			Subsystem: ss,
			Help:      "Count of delivered configuration updates",
		}),
		suppressCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "suppress_cnt",
			Subsystem: ss,
			Help:      "Count of no-op updates suppressed",
		}),
		heldCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "held_cnt",
			Subsystem: ss,
			Help:      "Count of updates held by the debounce window",
		}),
		deliveryErrCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "delivery_err_cnt",
			Subsystem: ss,
			Help:      "Count of failed delivery attempts",
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.publishCnt,
		m.suppressCnt,
		m.heldCnt,
		m.deliveryErrCnt,
	}
}
