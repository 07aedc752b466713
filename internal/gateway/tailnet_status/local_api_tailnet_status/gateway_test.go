package local_api_tailnet_status_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/horockey/tailgate/internal/gateway/tailnet_status/local_api_tailnet_status"
	"github.com/horockey/tailgate/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusBody = `{
	"BackendState": "Running",
	"MagicDNSSuffix": "tail1234.ts.net",
	"CurrentTailnet": {"Name": "example.org"},
	"Peer": {
		"key-a": {
			"ID": "1",
			"HostName": "alpha",
			"DNSName": "alpha.tail1234.ts.net.",
			"OS": "linux",
			"TailscaleIPs": ["100.64.0.1"],
			"Tags": ["tag:expose-web-8080"],
			"Online": true
		}
	}
}`

func tcpEndpoint(srv *httptest.Server) string {
	return "tcp://" + strings.TrimPrefix(srv.URL, "http://")
}

func Test_New_EmptyEndpoint(t *testing.T) {
	_, err := local_api_tailnet_status.New("", time.Second, zerolog.Nop())
	require.Error(t, err)
}

func Test_FetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/localapi/v0/status", r.URL.Path)
		_, _ = w.Write([]byte(statusBody))
	}))
	defer srv.Close()

	gw, err := local_api_tailnet_status.New(tcpEndpoint(srv), time.Second, zerolog.Nop())
	require.NoError(t, err)

	snap, err := gw.FetchSnapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "example.org", snap.Tailnet)
	require.Len(t, snap.Devices, 1)
	assert.Equal(t, "alpha", snap.Devices[0].Hostname)
	assert.Equal(t, []string{"expose-web-8080"}, snap.Devices[0].Tags)
}

func Test_FetchSnapshot_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw, err := local_api_tailnet_status.New(tcpEndpoint(srv), time.Second, zerolog.Nop())
	require.NoError(t, err)

	_, err = gw.FetchSnapshot(context.Background())

	require.Error(t, err)
	assert.ErrorAs(t, err, &model.SourceUnavailableError{})
}

func Test_FetchSnapshot_Unreachable(t *testing.T) {
	gw, err := local_api_tailnet_status.New("tcp://127.0.0.1:1", time.Millisecond*500, zerolog.Nop())
	require.NoError(t, err)

	_, err = gw.FetchSnapshot(context.Background())

	require.Error(t, err)
	assert.ErrorAs(t, err, &model.SourceUnavailableError{})
}

func Test_FetchSnapshot_Token(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pass, ok := r.BasicAuth()
		if !ok || pass != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(statusBody))
	}))
	defer srv.Close()

	gw, err := local_api_tailnet_status.New(tcpEndpoint(srv)+":s3cret", time.Second, zerolog.Nop())
	require.NoError(t, err)

	snap, err := gw.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Devices, 1)
}

func Test_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("peers"))
		_, _ = w.Write([]byte(`{"BackendState": "Running"}`))
	}))
	defer srv.Close()

	gw, err := local_api_tailnet_status.New(tcpEndpoint(srv), time.Second, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, gw.Healthy(context.Background()))
}
