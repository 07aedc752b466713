package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/horockey/tailgate/internal/gateway/proxy_config"
	"github.com/horockey/tailgate/internal/model"
	"github.com/horockey/tailgate/internal/repository/published_config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Decision uint8

const (
	DecisionSuppress Decision = iota
	DecisionPublish
	DecisionHeld
)

func (d Decision) String() string {
	switch d {
	case DecisionPublish:
		return "publish"
	case DecisionHeld:
		return "held"
	default:
		return "suppress"
	}
}

const deliverTimeout = time.Second * 10

type pendingDoc struct {
	doc model.DynamicConfig
	raw []byte
}

// Publisher owns the published state: it decides whether a freshly
// translated document is worth delivering, mints versions, and keeps
// bursts of change from turning into reload storms.
type Publisher struct {
	repo       published_config.Repository
	deliveries []proxy_config.Gateway
	window     time.Duration
	logger     zerolog.Logger
	metrics    *metrics

	mu          sync.Mutex
	version     uint64
	lastPublish time.Time
	pending     *pendingDoc
	timer       *time.Timer
	redeliver   bool
	closed      bool
}

func New(
	repo published_config.Repository,
	deliveries []proxy_config.Gateway,
	window time.Duration,
	logger zerolog.Logger,
) *Publisher {
	pub := Publisher{
		repo:       repo,
		deliveries: deliveries,
		window:     window,
		logger:     logger,
		metrics:    newMetrics(),
	}

	// Versions continue from persisted state after a restart.
	if cur, ok := repo.Current(); ok {
		pub.version = cur.Version
	}

	return &pub
}

func (pub *Publisher) Metrics() []prometheus.Collector {
	return pub.metrics.list()
}

// Consider compares the document against the published state and either
// suppresses it, publishes it, or holds it for the debounce window.
// A held document is replaced by any later arrival inside the window and
// flushed once at expiry, so only the latest state is ever delivered.
func (pub *Publisher) Consider(
	ctx context.Context,
	doc model.DynamicConfig,
	raw []byte,
) (Decision, error) {
	pub.mu.Lock()
	defer pub.mu.Unlock()

	if pub.closed {
		return DecisionSuppress, nil
	}

	cur, published := pub.repo.Current()
	if published && bytes.Equal(cur.Raw, raw) && pub.pending == nil && !pub.redeliver {
		pub.metrics.suppressCnt.Inc()
		return DecisionSuppress, nil
	}

	if pub.pending != nil {
		pub.pending = &pendingDoc{doc: doc, raw: raw}
		pub.metrics.heldCnt.Inc()
		return DecisionHeld, nil
	}

	if pub.window > 0 && !pub.lastPublish.IsZero() {
		if wait := pub.window - time.Since(pub.lastPublish); wait > 0 {
			pub.pending = &pendingDoc{doc: doc, raw: raw}
			pub.timer = time.AfterFunc(wait, pub.flush)
			pub.metrics.heldCnt.Inc()
			return DecisionHeld, nil
		}
	}

	return DecisionPublish, pub.publishLocked(ctx, doc, raw)
}

// Close drops any held document and prevents further publishes.
// The repository keeps serving the last published state.
func (pub *Publisher) Close() {
	pub.mu.Lock()
	defer pub.mu.Unlock()

	pub.closed = true
	if pub.timer != nil {
		pub.timer.Stop()
	}
	pub.pending = nil
}

func (pub *Publisher) flush() {
	pub.mu.Lock()
	defer pub.mu.Unlock()

	if pub.closed || pub.pending == nil {
		return
	}

	doc := *pub.pending
	pub.pending = nil

	// Churn inside the window may have reverted the held document to
	// the published bytes; delivering it would be a spurious reload.
	if cur, ok := pub.repo.Current(); ok && bytes.Equal(cur.Raw, doc.raw) && !pub.redeliver {
		pub.metrics.suppressCnt.Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	if err := pub.publishLocked(ctx, doc.doc, doc.raw); err != nil {
		pub.logger.
			Error().
			Err(fmt.Errorf("flushing held config: %w", err)).
			Send()
	}
}

func (pub *Publisher) publishLocked(
	ctx context.Context,
	doc model.DynamicConfig,
	raw []byte,
) (resErr error) {
	pub.version++
	cfg := model.PublishedConfig{
		Document:    doc,
		Raw:         raw,
		Version:     pub.version,
		ETag:        model.NewETag(pub.version, raw),
		PublishedAt: time.Now(),
	}

	if err := pub.repo.Store(cfg); err != nil {
		resErr = errors.Join(resErr, fmt.Errorf("storing published state: %w", err))
	}
	pub.lastPublish = cfg.PublishedAt
	pub.metrics.publishCnt.Inc()

	// A failed delivery marks the state for redelivery, so the next
	// cycle republishes even a byte-equal document.
	failed := false
	for _, gw := range pub.deliveries {
		if err := gw.Deliver(ctx, cfg); err != nil {
			failed = true
			pub.metrics.deliveryErrCnt.Inc()
			resErr = errors.Join(resErr, fmt.Errorf("delivering to %s: %w", gw.Name(), err))
		}
	}
	pub.redeliver = failed

	pub.logger.
		Info().
		Uint64("version", cfg.Version).
		Str("etag", cfg.ETag).
		Msg("published config")

	return resErr
}
