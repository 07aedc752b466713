package local_api_tailnet_status

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/horockey/tailgate/internal/gateway/tailnet_status"
	"github.com/horockey/tailgate/internal/gateway/tailnet_status/local_api_tailnet_status/dto"
	"github.com/horockey/tailgate/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const statusPath = "/localapi/v0/status"

var _ tailnet_status.Gateway = &localAPITailnetStatus{}

// localAPITailnetStatus queries the tailscaled LocalAPI.
// The endpoint is either a filesystem socket path or
// tcp://host:port[:token] with basic-auth token (macOS GUI variants).
type localAPITailnetStatus struct {
	cl           *resty.Client
	fetchTimeout time.Duration
	metrics      *metrics
	logger       zerolog.Logger
}

func New(
	endpoint string,
	fetchTimeout time.Duration,
	logger zerolog.Logger,
) (*localAPITailnetStatus, error) {
	gw := localAPITailnetStatus{
		fetchTimeout: fetchTimeout,
		metrics:      newMetrics(),
		logger:       logger,
	}

	switch {
	case strings.HasPrefix(endpoint, "tcp://"):
		hostPort, token, err := parseTCPEndpoint(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parsing tcp endpoint: %w", err)
		}
		gw.cl = resty.New().
			SetBaseURL("http://" + hostPort).
			SetRetryCount(0)
		if token != "" {
			gw.cl.SetBasicAuth("", token)
		}

	case endpoint != "":
		gw.cl = resty.New().
			SetTransport(&http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", endpoint)
				},
			}).
			SetBaseURL("http://local-tailscaled.sock").
			SetRetryCount(0)

	default:
		return nil, fmt.Errorf("got empty localapi endpoint")
	}

	return &gw, nil
}

// parseTCPEndpoint splits tcp://host:port[:token].
func parseTCPEndpoint(endpoint string) (hostPort, token string, _ error) {
	rest := strings.TrimPrefix(endpoint, "tcp://")
	parts := strings.Split(rest, ":")
	switch len(parts) {
	case 2:
		return rest, "", nil
	case 3:
		return parts[0] + ":" + parts[1], parts[2], nil
	default:
		return "", "", fmt.Errorf("expected tcp://host:port[:token], got %q", endpoint)
	}
}

func (gw *localAPITailnetStatus) Metrics() []prometheus.Collector {
	return gw.metrics.list()
}

func (gw *localAPITailnetStatus) FetchSnapshot(ctx context.Context) (res model.Snapshot, resErr error) {
	defer func(ts time.Time) {
		gw.metrics.requestsCnt.Inc()
		gw.metrics.handleTimeHist.Observe(float64(time.Since(ts)))

		switch resErr {
		case nil:
			gw.metrics.successProcessCnt.Inc()
		default:
			gw.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	callCtx, cancel := context.WithTimeout(ctx, gw.fetchTimeout)
	defer cancel()

	resp, err := gw.cl.R().
		SetContext(callCtx).
		Get(statusPath)
	if err != nil {
		return model.Snapshot{}, model.SourceUnavailableError{
			Cause: fmt.Errorf("executing request: %w", err),
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return model.Snapshot{}, model.SourceUnavailableError{
			Cause: fmt.Errorf("got non-ok response (%s): %s", resp.Status(), resp.String()),
		}
	}

	dtoStatus := dto.Status{}
	if err := json.Unmarshal(resp.Body(), &dtoStatus); err != nil {
		return model.Snapshot{}, model.SourceUnavailableError{
			Cause: fmt.Errorf("unmarshaling status json: %w", err),
		}
	}

	snap := dto.ToSnapshot(dtoStatus)
	gw.logger.
		Debug().
		Str("revision", snap.Revision).
		Int("devices", len(snap.Devices)).
		Msg("fetched tailnet snapshot")

	return snap, nil
}

func (gw *localAPITailnetStatus) Healthy(ctx context.Context) (resErr error) {
	defer func(ts time.Time) {
		gw.metrics.requestsCnt.Inc()
		gw.metrics.handleTimeHist.Observe(float64(time.Since(ts)))

		switch resErr {
		case nil:
			gw.metrics.successProcessCnt.Inc()
		default:
			gw.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	callCtx, cancel := context.WithTimeout(ctx, gw.fetchTimeout)
	defer cancel()

	resp, err := gw.cl.R().
		SetContext(callCtx).
		SetQueryParam("peers", "false").
		Get(statusPath)
	if err != nil {
		return model.SourceUnavailableError{Cause: fmt.Errorf("executing request: %w", err)}
	}
	if resp.StatusCode() != http.StatusOK {
		return model.SourceUnavailableError{
			Cause: fmt.Errorf("got non-ok response (%s): %s", resp.Status(), resp.String()),
		}
	}

	return nil
}
