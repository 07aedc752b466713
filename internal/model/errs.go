package model

import "fmt"

// SourceUnavailableError marks a transient state-source failure.
// Distinct from an empty snapshot, which is a valid result.
type SourceUnavailableError struct {
	Cause error
}

func (err SourceUnavailableError) Error() string {
	return fmt.Sprintf("tailnet state source unavailable: %v", err.Cause)
}

func (err SourceUnavailableError) Unwrap() error {
	return err.Cause
}

// RuleConfigError is a malformed selection rule.
// Fatal at load time; rules are never re-parsed at runtime.
type RuleConfigError struct {
	Rule   string
	Reason string
}

func (err RuleConfigError) Error() string {
	if err.Rule == "" {
		return fmt.Sprintf("rule config: %s", err.Reason)
	}
	return fmt.Sprintf("rule %q: %s", err.Rule, err.Reason)
}

// TranslationInvariantError is a duplicate name or dangling reference
// in a freshly built document. The cycle's document is discarded.
type TranslationInvariantError struct {
	Name   string
	Reason string
}

func (err TranslationInvariantError) Error() string {
	return fmt.Sprintf("translation invariant violated on %q: %s", err.Name, err.Reason)
}

// DeliveryError is a failure to expose a published document.
// Non-fatal; delivery is retried on the next publish-worthy cycle.
type DeliveryError struct {
	Target string
	Cause  error
}

func (err DeliveryError) Error() string {
	return fmt.Sprintf("delivering config to %s: %v", err.Target, err.Cause)
}

func (err DeliveryError) Unwrap() error {
	return err.Cause
}
