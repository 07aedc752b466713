package published_config

import "github.com/horockey/tailgate/internal/model"

// Repository holds the published state. Single writer (the publisher),
// many readers (the delivery controller). Readers always observe one
// complete document; the value is swapped as a unit.
type Repository interface {
	model.MetricsProvider
	Current() (model.PublishedConfig, bool)
	Store(cfg model.PublishedConfig) error
}
