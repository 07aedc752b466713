package badger_published_config

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger"
	"github.com/horockey/tailgate/internal/model"
	"github.com/horockey/tailgate/internal/repository/published_config"
	"github.com/prometheus/client_golang/prometheus"
)

const stateKey = "published_config"

var _ published_config.Repository = &badgerPublishedConfig{}

// badgerPublishedConfig keeps the published state in memory like the
// inmemory twin, and additionally persists every publish so a restarted
// provider serves the last-known-good document before its first
// successful poll.
type badgerPublishedConfig struct {
	db      *badger.DB
	current atomic.Pointer[model.PublishedConfig]
	metrics *metrics
}

func New(db *badger.DB) (*badgerPublishedConfig, error) {
	repo := badgerPublishedConfig{
		db: db,
	}
	repo.metrics = newMetrics(db)

	cfg, found, err := repo.load()
	if err != nil {
		return nil, fmt.Errorf("loading persisted state: %w", err)
	}
	if found {
		repo.current.Store(&cfg)
	}

	return &repo, nil
}

func (repo *badgerPublishedConfig) Metrics() []prometheus.Collector {
	return repo.metrics.list()
}

func (repo *badgerPublishedConfig) Current() (model.PublishedConfig, bool) {
	cfg := repo.current.Load()
	if cfg == nil {
		return model.PublishedConfig{}, false
	}
	return *cfg, true
}

// Store swaps the in-memory state first; persistence failure is returned
// but readers already see the new document.
func (repo *badgerPublishedConfig) Store(cfg model.PublishedConfig) (resErr error) {
	defer func() {
		switch resErr {
		case nil:
			repo.metrics.successStoresCnt.Inc()
		default:
			repo.metrics.errStoresCnt.Inc()
		}
	}()

	repo.current.Store(&cfg)

	buf := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding gob: %w", err)
	}

	if err := repo.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(stateKey), buf.Bytes()); err != nil {
			return fmt.Errorf("setting item to db: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("performing upd txn: %w", err)
	}

	return nil
}

func (repo *badgerPublishedConfig) load() (model.PublishedConfig, bool, error) {
	res := model.PublishedConfig{}
	found := false

	if err := repo.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stateKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return fmt.Errorf("getting item: %w", err)
		}

		if err := item.Value(func(val []byte) error {
			if err := gob.
				NewDecoder(bytes.NewBuffer(val)).
				Decode(&res); err != nil {
				return fmt.Errorf("decoding gob: %w", err)
			}
			found = true
			return nil
		}); err != nil {
			return fmt.Errorf("getting value: %w", err)
		}

		return nil
	}); err != nil {
		return model.PublishedConfig{}, false, fmt.Errorf("reading from db: %w", err)
	}

	return res, found, nil
}
