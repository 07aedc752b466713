package tailnet_status

import (
	"context"

	"github.com/horockey/tailgate/internal/model"
)

// Gateway pulls the current tailnet state. It never retries internally;
// retry policy belongs to the watch loop.
type Gateway interface {
	model.MetricsProvider
	FetchSnapshot(ctx context.Context) (model.Snapshot, error)
	Healthy(ctx context.Context) error
}
