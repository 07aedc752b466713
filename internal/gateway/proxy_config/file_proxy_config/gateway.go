package file_proxy_config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/horockey/tailgate/internal/gateway/proxy_config"
	"github.com/horockey/tailgate/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var _ proxy_config.Gateway = &fileProxyConfig{}

// fileProxyConfig writes the document to a path watched by the proxy's
// file provider. Write-to-temp-then-rename, so a watcher never observes
// a partially written document.
type fileProxyConfig struct {
	path    string
	logger  zerolog.Logger
	metrics *metrics
}

func New(path string, logger zerolog.Logger) *fileProxyConfig {
	return &fileProxyConfig{
		path:    path,
		logger:  logger,
		metrics: newMetrics(),
	}
}

func (gw *fileProxyConfig) Name() string {
	return "file:" + gw.path
}

func (gw *fileProxyConfig) Metrics() []prometheus.Collector {
	return gw.metrics.list()
}

func (gw *fileProxyConfig) Deliver(_ context.Context, cfg model.PublishedConfig) (resErr error) {
	defer func(ts time.Time) {
		gw.metrics.writesCnt.Inc()
		gw.metrics.handleTimeHist.Observe(float64(time.Since(ts)))

		switch resErr {
		case nil:
			gw.metrics.successProcessCnt.Inc()
		default:
			gw.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	dir := filepath.Dir(gw.path)

	// Temp file must live on the same filesystem for rename atomicity.
	tmp, err := os.CreateTemp(dir, filepath.Base(gw.path)+".*.tmp")
	if err != nil {
		return model.DeliveryError{Target: gw.Name(), Cause: fmt.Errorf("creating temp file: %w", err)}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(cfg.Raw); err != nil {
		_ = tmp.Close()
		return model.DeliveryError{Target: gw.Name(), Cause: fmt.Errorf("writing temp file: %w", err)}
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return model.DeliveryError{Target: gw.Name(), Cause: fmt.Errorf("chmodding temp file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return model.DeliveryError{Target: gw.Name(), Cause: fmt.Errorf("closing temp file: %w", err)}
	}

	if err := os.Rename(tmpName, gw.path); err != nil {
		return model.DeliveryError{Target: gw.Name(), Cause: fmt.Errorf("renaming temp file: %w", err)}
	}

	gw.logger.
		Debug().
		Uint64("version", cfg.Version).
		Int("bytes", len(cfg.Raw)).
		Msg("wrote config file")

	return nil
}
