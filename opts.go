package tailgate

import (
	"errors"
	"time"

	"github.com/horockey/go-toolbox/options"
	"github.com/horockey/tailgate/internal/gateway/proxy_config"
	"github.com/horockey/tailgate/internal/gateway/tailnet_status"
	"github.com/horockey/tailgate/internal/repository/published_config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// WithSocketPath sets the tailscaled LocalAPI endpoint.
// Either a unix socket path or tcp://host:port:token.
func WithSocketPath(ep string) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if ep == "" {
			return errors.New("empty endpoint given")
		}
		target.socketPath = ep
		return nil
	}
}

func WithHTTPAddr(addr string) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if addr == "" {
			return errors.New("empty addr given")
		}
		target.httpAddr = addr
		return nil
	}
}

// WithAPIKey enables X-Api-Key auth on the HTTP endpoints.
func WithAPIKey(key string) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		target.apiKey = key
		return nil
	}
}

func WithPollInterval(dur time.Duration) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if dur <= 0 {
			return errors.New("nonpositive duration given")
		}
		target.pollInterval = dur
		return nil
	}
}

// WithDebounceWindow sets the minimal spacing between two published
// versions. Zero disables debouncing.
func WithDebounceWindow(dur time.Duration) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if dur < 0 {
			return errors.New("negative duration given")
		}
		target.debounceWindow = dur
		return nil
	}
}

func WithFetchTimeout(dur time.Duration) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if dur <= 0 {
			return errors.New("nonpositive duration given")
		}
		target.fetchTimeout = dur
		return nil
	}
}

func WithMaxBackoff(dur time.Duration) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if dur <= 0 {
			return errors.New("nonpositive duration given")
		}
		target.maxBackoff = dur
		return nil
	}
}

// WithFileDelivery additionally writes every published document
// to the given path with an atomic rename.
func WithFileDelivery(path string) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if path == "" {
			return errors.New("empty path given")
		}
		target.filePath = path
		return nil
	}
}

// WithBadgerDir persists the published state to badger under dir,
// so a restart starts serving the last-known-good document at once.
func WithBadgerDir(dir string) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if dir == "" {
			return errors.New("empty dir given")
		}
		target.badgerDir = dir
		return nil
	}
}

// WithMetricsRegistry registers all collectors with reg and
// exposes them on GET /metrics.
func WithMetricsRegistry(reg *prometheus.Registry) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if reg == nil {
			return errors.New("nil registry given")
		}
		target.registry = reg
		return nil
	}
}

func WithLogger(logger zerolog.Logger) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		target.logger = logger
		return nil
	}
}

func WithStateGateway(gw tailnet_status.Gateway) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if gw == nil {
			return errors.New("nil gateway given")
		}
		target.gateway = gw
		return nil
	}
}

func WithController(ctrl Controller) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if ctrl == nil {
			return errors.New("nil controller given")
		}
		target.controller = ctrl
		return nil
	}
}

func WithRepository(repo published_config.Repository) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if repo == nil {
			return errors.New("nil repo given")
		}
		target.repo = repo
		return nil
	}
}

// WithDeliveryGateway adds a custom push target for published documents.
func WithDeliveryGateway(gw proxy_config.Gateway) options.Option[createProviderParams] {
	return func(target *createProviderParams) error {
		if gw == nil {
			return errors.New("nil gateway given")
		}
		target.deliveries = append(target.deliveries, gw)
		return nil
	}
}
