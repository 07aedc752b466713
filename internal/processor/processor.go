package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/horockey/tailgate/internal/gateway/tailnet_status"
	"github.com/horockey/tailgate/internal/model"
	"github.com/horockey/tailgate/internal/publisher"
	"github.com/horockey/tailgate/internal/repository/published_config"
	"github.com/horockey/tailgate/internal/selector"
	"github.com/horockey/tailgate/internal/translator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Processor drives the poll cycle: fetch snapshot, select routes,
// translate, hand the document to the publisher. Cycles never overlap;
// a new poll starts only after the previous publish decision resolved.
type Processor struct {
	gw           tailnet_status.Gateway
	rules        []model.Rule
	filters      model.Filters
	pub          *publisher.Publisher
	repo         published_config.Repository
	pollInterval time.Duration
	maxBackoff   time.Duration
	Logger       zerolog.Logger
	metrics      *metrics

	mu     sync.RWMutex
	status model.LoopStatus
}

func New(
	gw tailnet_status.Gateway,
	rules []model.Rule,
	filters model.Filters,
	pub *publisher.Publisher,
	repo published_config.Repository,
	pollInterval time.Duration,
	maxBackoff time.Duration,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		gw:           gw,
		rules:        rules,
		filters:      filters,
		pub:          pub,
		repo:         repo,
		pollInterval: pollInterval,
		maxBackoff:   maxBackoff,
		Logger:       logger,
		metrics:      newMetrics(),
	}
}

func (pr *Processor) Metrics() []prometheus.Collector {
	return pr.metrics.list()
}

// Start runs the watch loop until ctx is cancelled. On a source failure
// the sleep grows exponentially up to the bound; the published state is
// left untouched, so the last-known-good configuration keeps serving.
func (pr *Processor) Start(ctx context.Context) error {
	defer pr.pub.Close()

	interval := pr.pollInterval

	for {
		err := pr.runCycle(ctx)
		switch {
		case err == nil:
			interval = pr.pollInterval
		case errors.Is(err, context.Canceled):
			return fmt.Errorf("running context: %w", ctx.Err())
		default:
			interval = min(interval*2, pr.maxBackoff)
			pr.Logger.
				Warn().
				Err(err).
				Dur("retry_in", interval).
				Msg("cycle failed, backing off")
		}

		pr.setCurrentInterval(interval)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("running context: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// Current returns the published state for the delivery controller.
func (pr *Processor) Current() (model.PublishedConfig, bool) {
	return pr.repo.Current()
}

// Healthy probes the state source without touching the poll cadence.
func (pr *Processor) Healthy(ctx context.Context) error {
	return pr.gw.Healthy(ctx)
}

func (pr *Processor) Status() model.LoopStatus {
	pr.mu.RLock()
	st := pr.status
	pr.mu.RUnlock()

	if cfg, ok := pr.repo.Current(); ok {
		st.PublishedVersion = cfg.Version
	}
	return st
}

func (pr *Processor) runCycle(ctx context.Context) (resErr error) {
	defer func(ts time.Time) {
		pr.metrics.cyclesCnt.Inc()
		pr.metrics.cycleTimeHist.Observe(float64(time.Since(ts)))

		switch resErr {
		case nil:
			pr.metrics.successCnt.Inc()
		default:
			pr.metrics.errCnt.Inc()
		}
	}(time.Now())

	snap, err := pr.gw.FetchSnapshot(ctx)
	if err != nil {
		pr.recordFailure(err)
		return fmt.Errorf("fetching snapshot: %w", err)
	}

	routes := selector.Select(snap, pr.rules, pr.filters, pr.Logger)

	doc, raw, err := translator.Translate(routes)
	if err != nil {
		// Programming-level bug: the cycle's document is discarded,
		// the previous published state stays up.
		pr.metrics.translateErrCnt.Inc()
		pr.Logger.
			Error().
			Err(fmt.Errorf("translating routes: %w", err)).
			Send()
		pr.recordFailure(err)
		return nil
	}

	decision, err := pr.pub.Consider(ctx, doc, raw)
	if err != nil {
		pr.Logger.
			Error().
			Err(fmt.Errorf("publishing config: %w", err)).
			Send()
	}

	pr.Logger.
		Debug().
		Str("revision", snap.Revision).
		Int("devices", len(snap.Devices)).
		Int("routes", len(routes)).
		Str("decision", decision.String()).
		Msg("cycle finished")

	pr.recordCycle(snap, len(routes))
	return nil
}

func (pr *Processor) recordCycle(snap model.Snapshot, routeCount int) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.status.Revision = snap.Revision
	pr.status.Tailnet = snap.Tailnet
	pr.status.DeviceCount = len(snap.Devices)
	pr.status.RouteCount = routeCount
	pr.status.LastSuccess = time.Now()
	pr.status.ConsecutiveFailures = 0
	pr.status.LastError = ""
}

func (pr *Processor) recordFailure(err error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.status.ConsecutiveFailures++
	pr.status.LastError = err.Error()
}

func (pr *Processor) setCurrentInterval(interval time.Duration) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.status.CurrentInterval = interval
}
