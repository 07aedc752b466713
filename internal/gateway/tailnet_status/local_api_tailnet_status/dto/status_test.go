package dto_test

import (
	"testing"
	"time"

	"github.com/horockey/tailgate/internal/gateway/tailnet_status/local_api_tailnet_status/dto"
	"github.com/horockey/tailgate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool {
	return &b
}

var lastSeen = time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

func sampleStatus() dto.Status {
	return dto.Status{
		BackendState:   "Running",
		MagicDNSSuffix: "tail1234.ts.net",
		CurrentTailnet: &dto.TailnetStatus{Name: "example.org"},
		Peers: map[string]*dto.PeerStatus{
			"key-b": {
				ID:           "2",
				HostName:     "beta",
				DNSName:      "beta.tail1234.ts.net.",
				OS:           "linux",
				TailscaleIPs: []string{"100.64.0.2"},
				Tags:         []string{"tag:expose-web-8080", "tag:prod"},
				Online:       boolPtr(true),
				LastSeen:     &lastSeen,
			},
			"key-a": {
				ID:           "1",
				HostName:     "alpha",
				DNSName:      "alpha.tail1234.ts.net.",
				OS:           "macOS",
				TailscaleIPs: []string{"100.64.0.1"},
				Online:       boolPtr(false),
				ExitNode:     true,
			},
		},
	}
}

func Test_ToSnapshot(t *testing.T) {
	snap := dto.ToSnapshot(sampleStatus())

	assert.Equal(t, "example.org", snap.Tailnet)
	assert.Equal(t, "tail1234.ts.net", snap.MagicDNSSuffix)
	assert.NotEmpty(t, snap.Revision)

	require.Len(t, snap.Devices, 2)

	// Sorted by ID regardless of map iteration order.
	alpha, beta := snap.Devices[0], snap.Devices[1]
	assert.Equal(t, "1", alpha.ID)
	assert.Equal(t, "2", beta.ID)

	assert.Equal(t, "beta.tail1234.ts.net", beta.DNSName)
	assert.Equal(t, []string{"expose-web-8080", "prod"}, beta.Tags)
	assert.True(t, beta.Online)
	assert.True(t, beta.LastActivity.Equal(lastSeen))

	require.Len(t, beta.Ports, 1)
	assert.Equal(t, model.ServicePort{
		Name:     "expose-web",
		Port:     8080,
		Protocol: model.ProtocolHTTP,
		Scheme:   "http",
	}, beta.Ports[0])

	assert.False(t, alpha.Online)
	assert.True(t, alpha.ExitNode)
	assert.Empty(t, alpha.Ports)
}

func Test_ToSnapshot_RevisionTracksContent(t *testing.T) {
	st := sampleStatus()
	base := dto.ToSnapshot(st)

	same := dto.ToSnapshot(sampleStatus())
	assert.Equal(t, base.Revision, same.Revision)

	st.Peers["key-b"].Online = boolPtr(false)
	changed := dto.ToSnapshot(st)
	assert.NotEqual(t, base.Revision, changed.Revision)
}

func Test_ToSnapshot_Empty(t *testing.T) {
	snap := dto.ToSnapshot(dto.Status{})

	assert.Empty(t, snap.Devices)
	assert.NotEmpty(t, snap.Revision)
}
