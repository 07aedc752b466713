package tailgate

import "github.com/horockey/tailgate/internal/model"

type SourceUnavailableError = model.SourceUnavailableError
type RuleConfigError = model.RuleConfigError
type TranslationInvariantError = model.TranslationInvariantError
type DeliveryError = model.DeliveryError
