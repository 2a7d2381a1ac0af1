package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced alert does not exist.
var ErrNotFound = errors.New("alert not found")

// ValidationError reports invalid alert input. It is local and
// recoverable: the caller gets it back, no state changes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert %s: %s", e.Field, e.Reason)
}

// DuplicateAlertError rejects creation of an alert identical in
// (symbol, target price, type) to an existing Active one.
type DuplicateAlertError struct {
	Symbol      string
	TargetPrice string
	AlertType   AlertType
}

func (e *DuplicateAlertError) Error() string {
	return fmt.Sprintf("duplicate alert: %s %s %s already active", e.Symbol, e.AlertType, e.TargetPrice)
}

// SourceUnavailableError marks a single price source failure. The
// aggregator logs it and skips that source for the round.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("price source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// PersistenceUnavailableError marks a remote store failure. The
// fallback tier absorbs it; callers only ever see it in logs.
type PersistenceUnavailableError struct {
	Tier string
	Err  error
}

func (e *PersistenceUnavailableError) Error() string {
	return fmt.Sprintf("%s persistence unavailable: %v", e.Tier, e.Err)
}

func (e *PersistenceUnavailableError) Unwrap() error { return e.Err }
