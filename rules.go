package tailgate

import (
	"github.com/horockey/tailgate/internal/model"
	"github.com/horockey/tailgate/internal/ruleset"
)

type RuleSet = ruleset.RuleSet

type (
	Rule       = model.Rule
	Filters    = model.Filters
	Predicate  = model.Predicate
	RouteHints = model.RouteHints
	TLSHints   = model.TLSHints

	TagEquals = model.TagEquals
	TagPrefix = model.TagPrefix
	TagIn     = model.TagIn
	All       = model.All
	Any       = model.Any
	Not       = model.Not
)

type (
	PublishedConfig = model.PublishedConfig
	LoopStatus      = model.LoopStatus
)

// LoadRules reads and validates a YAML rule file.
// Any malformed rule fails the whole load.
func LoadRules(path string) (RuleSet, error) {
	return ruleset.Load(path)
}

// ParseRules validates an in-memory YAML rule document.
func ParseRules(data []byte) (RuleSet, error) {
	return ruleset.Parse(data)
}

// DefaultFilters excludes exit nodes and expired devices.
func DefaultFilters() Filters {
	return model.DefaultFilters()
}
