package file_proxy_config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/horockey/tailgate/internal/gateway/proxy_config/file_proxy_config"
	"github.com/horockey/tailgate/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Deliver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traefik.json")
	gw := file_proxy_config.New(path, zerolog.Nop())

	raw := []byte(`{"http":{"routers":{},"services":{}}}`)
	err := gw.Deliver(context.Background(), model.PublishedConfig{Raw: raw, Version: 1})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func Test_Deliver_Overwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "traefik.json")
	gw := file_proxy_config.New(path, zerolog.Nop())

	require.NoError(t, gw.Deliver(context.Background(), model.PublishedConfig{Raw: []byte(`{"v":1}`), Version: 1}))
	require.NoError(t, gw.Deliver(context.Background(), model.PublishedConfig{Raw: []byte(`{"v":2}`), Version: 2}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":2}`), got)

	// No temp leftovers next to the target.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "traefik.json", entries[0].Name())
}

func Test_Deliver_MissingDir(t *testing.T) {
	gw := file_proxy_config.New(filepath.Join(t.TempDir(), "nope", "traefik.json"), zerolog.Nop())

	err := gw.Deliver(context.Background(), model.PublishedConfig{Raw: []byte(`{}`)})

	require.Error(t, err)
	assert.ErrorAs(t, err, &model.DeliveryError{})
}
