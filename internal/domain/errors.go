package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable reports any failure reaching or round-tripping the
	// key-value store.
	ErrStoreUnavailable = errors.New("key-value store unavailable")

	// ErrInvalidTransition reports an alert status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid alert status transition")

	// ErrValidation reports malformed alert or subscription input.
	ErrValidation = errors.New("validation failed")

	// ErrUpstreamUnavailable reports a weather source failure on a cache miss.
	ErrUpstreamUnavailable = errors.New("weather source unavailable")

	ErrAlertNotFound    = errors.New("alert not found")
	ErrLocationNotFound = errors.New("location not found")
)

// StoreError wraps a key-value store failure with the operation and key involved.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes every StoreError match ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransitionError describes a rejected alert status change.
type TransitionError struct {
	AlertID string
	From    AlertStatus
	To      AlertStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("alert %s: cannot move from %s to %s", e.AlertID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
