package processor

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	cycleTimeHist   prometheus.Histogram
	cyclesCnt       prometheus.Counter
	successCnt      prometheus.Counter
	errCnt          prometheus.Counter
	translateErrCnt prometheus.Counter
}

func newMetrics() *metrics {
	const ss = "processor"
	return &metrics{
		cycleTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"cycle_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Poll cycle time distribution"),
		)),
		cyclesCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "cycles_cnt",
			Subsystem: ss,
			Help:      "Count of poll cycles",
		}),
		successCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "success_cycles_cnt",
			Subsystem: ss,
			Help:      "Count of successfully finished cycles",
		}),
		errCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "err_cycles_cnt",
			Subsystem: ss,
			Help:      "Count of cycles finished with non-nil error",
		}),
		translateErrCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "translate_err_cnt",
			Subsystem: ss,
			Help:      "Count of cycles discarded on translation invariant violation",
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.cycleTimeHist,
		m.cyclesCnt,
		m.successCnt,
		m.errCnt,
		m.translateErrCnt,
	}
}
