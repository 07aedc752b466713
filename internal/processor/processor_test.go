package processor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/horockey/tailgate/internal/model"
	"github.com/horockey/tailgate/internal/processor"
	"github.com/horockey/tailgate/internal/publisher"
	"github.com/horockey/tailgate/internal/repository/published_config"
	"github.com/horockey/tailgate/internal/repository/published_config/inmemory_published_config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTailnet struct {
	mu      sync.Mutex
	snap    model.Snapshot
	failing bool
	calls   int
}

func (gw *mockTailnet) Metrics() []prometheus.Collector {
	return nil
}

func (gw *mockTailnet) FetchSnapshot(_ context.Context) (model.Snapshot, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.calls++
	if gw.failing {
		return model.Snapshot{}, model.SourceUnavailableError{Cause: context.DeadlineExceeded}
	}
	return gw.snap, nil
}

func (gw *mockTailnet) Healthy(context.Context) error {
	return nil
}

func (gw *mockTailnet) setFailing(failing bool) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.failing = failing
}

func onlineDevice() model.Device {
	return model.Device{
		ID:           "dev-a",
		Hostname:     "alpha",
		OS:           "linux",
		Tags:         []string{"expose-web"},
		Addresses:    []string{"100.64.0.1"},
		Online:       true,
		LastActivity: time.Now(),
		Ports: []model.ServicePort{
			{Name: "web", Port: 8080, Protocol: model.ProtocolHTTP, Scheme: "http"},
		},
	}
}

func newProcessor(gw *mockTailnet) (*processor.Processor, published_config.Repository) {
	repo := inmemory_published_config.New()
	pub := publisher.New(repo, nil, 0, zerolog.Nop())

	rules := []model.Rule{{
		Name:  "web",
		Match: model.TagEquals{Tag: "expose-web"},
		Route: model.RouteHints{PortFrom: "web"},
	}}

	pr := processor.New(
		gw,
		rules,
		model.DefaultFilters(),
		pub,
		repo,
		time.Millisecond*20,
		time.Millisecond*200,
		zerolog.Nop(),
	)
	return pr, repo
}

func runLoop(t *testing.T, pr *processor.Processor, dur time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), dur)
	defer cancel()

	err := pr.Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_Start_PublishesMatchingDevices(t *testing.T) {
	gw := &mockTailnet{snap: model.Snapshot{
		Revision: "rev1",
		Devices:  []model.Device{onlineDevice()},
	}}
	pr, _ := newProcessor(gw)

	runLoop(t, pr, time.Millisecond*100)

	cfg, ok := pr.Current()
	require.True(t, ok)
	assert.Contains(t, string(cfg.Raw), "tailgate-alpha-web")
	assert.Equal(t, uint64(1), cfg.Version)

	st := pr.Status()
	assert.Equal(t, "rev1", st.Revision)
	assert.Equal(t, 1, st.DeviceCount)
	assert.Equal(t, 1, st.RouteCount)
	assert.Equal(t, uint64(1), st.PublishedVersion)
	assert.Zero(t, st.ConsecutiveFailures)
}

func Test_Start_FailureKeepsPublishedState(t *testing.T) {
	gw := &mockTailnet{snap: model.Snapshot{
		Revision: "rev1",
		Devices:  []model.Device{onlineDevice()},
	}}
	pr, repo := newProcessor(gw)

	runLoop(t, pr, time.Millisecond*60)

	before, ok := repo.Current()
	require.True(t, ok)

	gw.setFailing(true)
	runLoop(t, pr, time.Millisecond*100)

	after, ok := repo.Current()
	require.True(t, ok)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Raw, after.Raw)

	st := pr.Status()
	assert.Positive(t, st.ConsecutiveFailures)
	assert.NotEmpty(t, st.LastError)
}

func Test_Start_BackoffGrowsAndResets(t *testing.T) {
	gw := &mockTailnet{failing: true}
	pr, _ := newProcessor(gw)

	runLoop(t, pr, time.Millisecond*300)

	st := pr.Status()
	assert.GreaterOrEqual(t, st.ConsecutiveFailures, 2)
	assert.Greater(t, st.CurrentInterval, time.Millisecond*20)
	assert.LessOrEqual(t, st.CurrentInterval, time.Millisecond*200)

	gw.setFailing(false)
	gw.mu.Lock()
	gw.snap = model.Snapshot{Revision: "rev2"}
	gw.mu.Unlock()

	runLoop(t, pr, time.Millisecond*300)

	st = pr.Status()
	assert.Zero(t, st.ConsecutiveFailures)
	assert.Equal(t, time.Millisecond*20, st.CurrentInterval)
}

func Test_Start_TranslateErrorReportedAsFailure(t *testing.T) {
	// Two devices sharing a hostname collide on the derived service
	// name; the cycle's document is discarded.
	twin := onlineDevice()
	twin.ID = "dev-b"

	gw := &mockTailnet{snap: model.Snapshot{
		Revision: "rev1",
		Devices:  []model.Device{onlineDevice(), twin},
	}}
	pr, repo := newProcessor(gw)

	runLoop(t, pr, time.Millisecond*100)

	_, ok := repo.Current()
	assert.False(t, ok)

	st := pr.Status()
	assert.Positive(t, st.ConsecutiveFailures)
	assert.NotEmpty(t, st.LastError)
	assert.True(t, st.LastSuccess.IsZero())
}

func Test_Start_EmptySnapshotPublishesEmptyDoc(t *testing.T) {
	gw := &mockTailnet{snap: model.Snapshot{Revision: "rev1"}}
	pr, _ := newProcessor(gw)

	runLoop(t, pr, time.Millisecond*100)

	cfg, ok := pr.Current()
	require.True(t, ok)
	assert.Equal(t, "{}", string(cfg.Raw))
}
