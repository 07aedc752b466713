package publisher_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/horockey/tailgate/internal/gateway/proxy_config"
	"github.com/horockey/tailgate/internal/model"
	"github.com/horockey/tailgate/internal/publisher"
	"github.com/horockey/tailgate/internal/repository/published_config"
	"github.com/horockey/tailgate/internal/repository/published_config/inmemory_published_config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDelivery struct {
	mu        sync.Mutex
	delivered []model.PublishedConfig
	fail      bool
}

func (gw *mockDelivery) Name() string {
	return "mock"
}

func (gw *mockDelivery) Metrics() []prometheus.Collector {
	return nil
}

func (gw *mockDelivery) Deliver(_ context.Context, cfg model.PublishedConfig) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.fail {
		return model.DeliveryError{Target: gw.Name(), Cause: context.DeadlineExceeded}
	}
	gw.delivered = append(gw.delivered, cfg)
	return nil
}

func (gw *mockDelivery) count() int {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return len(gw.delivered)
}

func newPublisher(
	window time.Duration,
	gw *mockDelivery,
) (*publisher.Publisher, published_config.Repository) {
	repo := inmemory_published_config.New()
	pub := publisher.New(repo, []proxy_config.Gateway{gw}, window, zerolog.Nop())
	return pub, repo
}

func Test_Consider_FirstDocumentPublishes(t *testing.T) {
	gw := &mockDelivery{}
	pub, repo := newPublisher(0, gw)
	defer pub.Close()

	decision, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, publisher.DecisionPublish, decision)

	cur, ok := repo.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(1), cur.Version)
	assert.Equal(t, []byte(`{}`), cur.Raw)
	assert.Equal(t, 1, gw.count())
}

func Test_Consider_EqualBytesSuppressed(t *testing.T) {
	gw := &mockDelivery{}
	pub, repo := newPublisher(0, gw)
	defer pub.Close()

	_, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{}`))
	require.NoError(t, err)

	decision, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, publisher.DecisionSuppress, decision)

	cur, _ := repo.Current()
	assert.Equal(t, uint64(1), cur.Version)
	assert.Equal(t, 1, gw.count())
}

func Test_Consider_ChangedBytesBumpVersion(t *testing.T) {
	gw := &mockDelivery{}
	pub, repo := newPublisher(0, gw)
	defer pub.Close()

	_, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{"v":1}`))
	require.NoError(t, err)

	decision, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{"v":2}`))
	require.NoError(t, err)
	assert.Equal(t, publisher.DecisionPublish, decision)

	cur, _ := repo.Current()
	assert.Equal(t, uint64(2), cur.Version)
	assert.NotEmpty(t, cur.ETag)
}

func Test_Consider_DebounceCoalescesToLatest(t *testing.T) {
	gw := &mockDelivery{}
	pub, repo := newPublisher(time.Millisecond*100, gw)
	defer pub.Close()

	_, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{"v":1}`))
	require.NoError(t, err)

	decision, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{"v":2}`))
	require.NoError(t, err)
	assert.Equal(t, publisher.DecisionHeld, decision)

	decision, err = pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{"v":3}`))
	require.NoError(t, err)
	assert.Equal(t, publisher.DecisionHeld, decision)

	// Readers still see v1 until the window expires.
	cur, _ := repo.Current()
	assert.Equal(t, []byte(`{"v":1}`), cur.Raw)

	require.Eventually(t, func() bool {
		cur, _ := repo.Current()
		return string(cur.Raw) == `{"v":3}`
	}, time.Second, time.Millisecond*10)

	// The intermediate document was never delivered.
	cur, _ = repo.Current()
	assert.Equal(t, uint64(2), cur.Version)
	assert.Equal(t, 2, gw.count())
}

func Test_Consider_RevertedChurnSuppressedAtFlush(t *testing.T) {
	gw := &mockDelivery{}
	pub, repo := newPublisher(time.Millisecond*100, gw)
	defer pub.Close()

	_, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{"v":1}`))
	require.NoError(t, err)

	decision, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{"v":2}`))
	require.NoError(t, err)
	assert.Equal(t, publisher.DecisionHeld, decision)

	// The change is reverted before the window expires.
	decision, err = pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{"v":1}`))
	require.NoError(t, err)
	assert.Equal(t, publisher.DecisionHeld, decision)

	time.Sleep(time.Millisecond * 250)

	// No new version was minted and nothing was redelivered.
	cur, ok := repo.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(1), cur.Version)
	assert.Equal(t, []byte(`{"v":1}`), cur.Raw)
	assert.Equal(t, 1, gw.count())
}

func Test_Consider_RedeliverAfterFailure(t *testing.T) {
	gw := &mockDelivery{fail: true}
	pub, _ := newPublisher(0, gw)
	defer pub.Close()

	_, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{}`))
	require.Error(t, err)

	gw.mu.Lock()
	gw.fail = false
	gw.mu.Unlock()

	// Byte-equal document still republishes after a failed delivery.
	decision, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, publisher.DecisionPublish, decision)
	assert.Equal(t, 1, gw.count())
}

func Test_Close_DropsPending(t *testing.T) {
	gw := &mockDelivery{}
	pub, repo := newPublisher(time.Millisecond*50, gw)

	_, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{"v":1}`))
	require.NoError(t, err)

	_, err = pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{"v":2}`))
	require.NoError(t, err)

	pub.Close()
	time.Sleep(time.Millisecond * 100)

	cur, _ := repo.Current()
	assert.Equal(t, []byte(`{"v":1}`), cur.Raw)
	assert.Equal(t, 1, gw.count())
}

func Test_New_ContinuesVersionFromRepo(t *testing.T) {
	repo := inmemory_published_config.New()
	require.NoError(t, repo.Store(model.PublishedConfig{Raw: []byte(`{"v":9}`), Version: 9}))

	pub := publisher.New(repo, nil, 0, zerolog.Nop())
	defer pub.Close()

	_, err := pub.Consider(context.Background(), model.DynamicConfig{}, []byte(`{"v":10}`))
	require.NoError(t, err)

	cur, _ := repo.Current()
	assert.Equal(t, uint64(10), cur.Version)
}
