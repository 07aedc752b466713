package tailgate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/horockey/go-toolbox/options"
	"github.com/horockey/tailgate/internal/controller/http_controller"
	"github.com/horockey/tailgate/internal/gateway/proxy_config"
	"github.com/horockey/tailgate/internal/gateway/proxy_config/file_proxy_config"
	"github.com/horockey/tailgate/internal/gateway/tailnet_status"
	"github.com/horockey/tailgate/internal/gateway/tailnet_status/local_api_tailnet_status"
	"github.com/horockey/tailgate/internal/processor"
	"github.com/horockey/tailgate/internal/publisher"
	"github.com/horockey/tailgate/internal/repository/published_config"
	"github.com/horockey/tailgate/internal/repository/published_config/badger_published_config"
	"github.com/horockey/tailgate/internal/repository/published_config/inmemory_published_config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Provider watches the tailnet and serves the derived proxy
// configuration until its context is cancelled.
type Provider struct {
	*processor.Processor
	gw         tailnet_status.Gateway
	repo       published_config.Repository
	pub        *publisher.Publisher
	ctrl       Controller
	deliveries []proxy_config.Gateway
	db         *badger.DB
}

// CreateProviderParams is only useful as the type argument
// when collecting options into a slice.
type CreateProviderParams = createProviderParams

type createProviderParams struct {
	socketPath     string
	httpAddr       string
	apiKey         string
	pollInterval   time.Duration
	debounceWindow time.Duration
	fetchTimeout   time.Duration
	maxBackoff     time.Duration
	filePath       string
	badgerDir      string
	registry       *prometheus.Registry
	logger         zerolog.Logger

	gateway    tailnet_status.Gateway
	repo       published_config.Repository
	controller Controller
	deliveries []proxy_config.Gateway
}

func defaultCreateProviderParams() createProviderParams {
	return createProviderParams{
		socketPath:     "/var/run/tailscale/tailscaled.sock",
		httpAddr:       "0.0.0.0:8080",
		pollInterval:   time.Second * 30, //nolint: mnd
		debounceWindow: time.Second * 5,  //nolint: mnd
		fetchTimeout:   time.Second * 5,  //nolint: mnd
		maxBackoff:     time.Minute * 5,  //nolint: mnd
		logger: zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("scope", "tailgate").
			Logger(),
	}
}

func New(
	rs RuleSet,
	opts ...options.Option[createProviderParams],
) (*Provider, error) {
	params := defaultCreateProviderParams()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	p := Provider{
		gw:         params.gateway,
		repo:       params.repo,
		deliveries: params.deliveries,
	}

	if p.gw == nil {
		gw, err := local_api_tailnet_status.New(
			params.socketPath,
			params.fetchTimeout,
			params.logger.With().Str("scope", "tailnet GW").Logger(),
		)
		if err != nil {
			return nil, fmt.Errorf("creating localapi gateway: %w", err)
		}
		p.gw = gw
	}

	if p.repo == nil {
		switch params.badgerDir {
		case "":
			p.repo = inmemory_published_config.New()
		default:
			db, err := badger.Open(badger.DefaultOptions(params.badgerDir))
			if err != nil {
				return nil, fmt.Errorf("opening badger: %w", err)
			}
			repo, err := badger_published_config.New(db)
			if err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("creating badger repo: %w", err)
			}
			p.db = db
			p.repo = repo
		}
	}

	if params.filePath != "" {
		p.deliveries = append(p.deliveries, file_proxy_config.New(
			params.filePath,
			params.logger.With().Str("scope", "file GW").Logger(),
		))
	}

	p.pub = publisher.New(
		p.repo,
		p.deliveries,
		params.debounceWindow,
		params.logger.With().Str("scope", "publisher").Logger(),
	)

	p.Processor = processor.New(
		p.gw,
		rs.Rules,
		rs.Filters,
		p.pub,
		p.repo,
		params.pollInterval,
		params.maxBackoff,
		params.logger,
	)

	p.ctrl = params.controller
	if p.ctrl == nil {
		p.ctrl = http_controller.New(
			params.httpAddr,
			params.apiKey,
			params.registry,
			params.logger.With().Str("subscope", "http_controller").Logger(),
		)
	}

	if params.registry != nil {
		params.registry.MustRegister(p.Metrics()...)
	}

	return &p, nil
}

func (p *Provider) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if p.db != nil {
		defer func() {
			_ = p.db.Close()
		}()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.ctrl.Start(runCtx, p.Processor); err != nil && !errors.Is(err, context.Canceled) {
			p.Logger.
				Error().
				Err(fmt.Errorf("running http controller: %w", err)).
				Send()
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Processor.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			p.Logger.
				Error().
				Err(fmt.Errorf("running processor: %w", err)).
				Send()
			cancel()
		}
	}()

	<-runCtx.Done()
	wg.Wait()
	return fmt.Errorf("running context: %w", runCtx.Err())
}

func (p *Provider) Metrics() []prometheus.Collector {
	res := slices.Concat(
		p.ctrl.Metrics(),
		p.Processor.Metrics(),
		p.pub.Metrics(),
		p.repo.Metrics(),
		p.gw.Metrics(),
	)
	for _, gw := range p.deliveries {
		res = append(res, gw.Metrics()...)
	}
	return res
}
