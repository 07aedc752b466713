package inmemory_published_config

import (
	"sync/atomic"

	"github.com/horockey/tailgate/internal/model"
	"github.com/horockey/tailgate/internal/repository/published_config"
	"github.com/prometheus/client_golang/prometheus"
)

var _ published_config.Repository = &inmemoryPublishedConfig{}

type inmemoryPublishedConfig struct {
	current atomic.Pointer[model.PublishedConfig]
	metrics *metrics
}

func New() *inmemoryPublishedConfig {
	repo := inmemoryPublishedConfig{}
	repo.metrics = newMetrics(&repo)
	return &repo
}

func (repo *inmemoryPublishedConfig) Metrics() []prometheus.Collector {
	return repo.metrics.list()
}

func (repo *inmemoryPublishedConfig) Current() (model.PublishedConfig, bool) {
	cfg := repo.current.Load()
	if cfg == nil {
		return model.PublishedConfig{}, false
	}
	return *cfg, true
}

func (repo *inmemoryPublishedConfig) Store(cfg model.PublishedConfig) error {
	repo.metrics.storesCnt.Inc()
	repo.current.Store(&cfg)
	return nil
}
