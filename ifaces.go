package tailgate

import (
	"context"

	"github.com/horockey/tailgate/internal/model"
	"github.com/horockey/tailgate/internal/processor"
)

type Controller interface {
	model.MetricsProvider
	Start(ctx context.Context, pr *processor.Processor) error
}
