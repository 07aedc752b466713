package http_controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/horockey/go-toolbox/http_helpers"
	"github.com/horockey/tailgate/internal/controller/http_controller/dto"
	"github.com/horockey/tailgate/internal/processor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HttpController is the pull-mode delivery channel: the proxy polls
// GET /config and revalidates with If-None-Match.
type HttpController struct {
	serv     *http.Server
	apiKey   string
	proc     *processor.Processor
	registry *prometheus.Registry
	logger   zerolog.Logger
	metrics  *metrics
}

func New(
	addr string,
	apiKey string,
	registry *prometheus.Registry,
	logger zerolog.Logger,
) *HttpController {
	ctrl := HttpController{
		serv: &http.Server{
			Addr: addr,
		},
		apiKey:   apiKey,
		registry: registry,
		logger:   logger,
		metrics:  newMetrics(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/", ctrl.getHealthzHandler).Methods(http.MethodGet)
	router.HandleFunc("/config", ctrl.getConfigHandler).Methods(http.MethodGet)
	router.HandleFunc("/status", ctrl.getStatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/healthz", ctrl.getHealthzHandler).Methods(http.MethodGet)
	if ctrl.registry != nil {
		router.Handle(
			"/metrics",
			promhttp.HandlerFor(ctrl.registry, promhttp.HandlerOpts{}),
		).Methods(http.MethodGet)
	}
	router.Use(ctrl.authMW)

	ctrl.serv.Handler = router

	return &ctrl
}

func (ctrl *HttpController) Metrics() []prometheus.Collector {
	return ctrl.metrics.list()
}

func (ctrl *HttpController) Start(ctx context.Context, pr *processor.Processor) (resErr error) {
	ctrl.proc = pr
	var wg sync.WaitGroup
	defer wg.Wait()

	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
			resErr = errors.Join(resErr, fmt.Errorf("running context: %w", ctx.Err()))
		}

		sdCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := ctrl.serv.Shutdown(sdCtx); err != nil {
			resErr = errors.Join(resErr, fmt.Errorf("shutting down server: %w", err))
		}
		return resErr

	case err := <-errCh:
		return fmt.Errorf("running server: %w", err)
	}
}

func (ctrl *HttpController) authMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctrl.metrics.requestsCnt.Inc()

		switch req.URL.Path {
		case "/", "/healthz", "/metrics":
			next.ServeHTTP(w, req)
			return
		}

		if ctrl.apiKey != "" && req.Header.Get("X-Api-Key") != ctrl.apiKey {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// getConfigHandler serves the published document verbatim. The raw
// bytes come from one atomically swapped published state, so a reader
// never observes a half-written document.
func (ctrl *HttpController) getConfigHandler(w http.ResponseWriter, req *http.Request) {
	defer func(ts time.Time) {
		ctrl.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	cfg, ok := ctrl.proc.Current()
	if !ok {
		ctrl.metrics.errProcessCnt.Inc()
		_ = http_helpers.RespondWithErr(
			w,
			http.StatusServiceUnavailable,
			errors.New("no configuration published yet"),
		)
		return
	}

	w.Header().Set("ETag", cfg.ETag)
	if matchETag(req.Header.Get("If-None-Match"), cfg.ETag) {
		ctrl.metrics.notModifiedCnt.Inc()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(cfg.Raw); err != nil {
		ctrl.metrics.errProcessCnt.Inc()
		ctrl.logger.
			Error().
			Err(fmt.Errorf("writing config response: %w", err)).
			Send()
		return
	}
	ctrl.metrics.successProcessCnt.Inc()
}

func (ctrl *HttpController) getStatusHandler(w http.ResponseWriter, _ *http.Request) {
	defer func(ts time.Time) {
		ctrl.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	_ = http_helpers.RespondOK(w, dto.NewStatus(ctrl.proc.Status()))
	ctrl.metrics.successProcessCnt.Inc()
}

func (ctrl *HttpController) getHealthzHandler(w http.ResponseWriter, req *http.Request) {
	if err := ctrl.proc.Healthy(req.Context()); err != nil {
		ctrl.metrics.errProcessCnt.Inc()
		_ = http_helpers.RespondWithErr(
			w,
			http.StatusServiceUnavailable,
			fmt.Errorf("probing tailnet source: %w", err),
		)
		return
	}
	_ = http_helpers.RespondOK(w, dto.Health{Status: "OK", Service: "tailgate"})
}

func matchETag(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}
