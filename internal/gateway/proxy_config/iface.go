package proxy_config

import (
	"context"

	"github.com/horockey/tailgate/internal/model"
)

// Gateway pushes a freshly published document to the proxy side.
// Pull-mode delivery does not need one; the controller reads the
// repository directly.
type Gateway interface {
	model.MetricsProvider
	Name() string
	Deliver(ctx context.Context, cfg model.PublishedConfig) error
}
