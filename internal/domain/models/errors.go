package models

import "fmt"

// Failure reasons recorded per price point. Missing price data is a value
// in the completeness map, never an error crossing event boundaries.
const (
	ReasonNoBarsInTolerance = "no_bars_in_tolerance"
	ReasonEmptySeries       = "empty_series"
	ReasonStoreUnavailable  = "store_unavailable"
)

// ConfigError marks a malformed window/benchmark catalog. Fatal at batch
// start, before any event is processed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// MissingEventContextError means the event's own identity could not be
// resolved at all. Fatal for that single event only.
type MissingEventContextError struct {
	EventID string
	Reason  string
}

func (e *MissingEventContextError) Error() string {
	return fmt.Sprintf("event %s: missing context: %s", e.EventID, e.Reason)
}

// TransientStoreError wraps a store/network failure that is retried with
// bounded backoff and then demoted to missing price data for the
// specific point.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error in %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }
