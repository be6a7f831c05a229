package domain

import (
	"errors"
	"fmt"
)

// ValidationError rejects a bid request before any state mutation.
// The Reason code is stable and safe to surface to callers.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Reason, e.Message)
}

func NewValidationError(reason, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

const (
	ReasonLotNotActive     = "lot_not_active"
	ReasonOutOfWindow      = "out_of_window"
	ReasonSelfBid          = "self_bid"
	ReasonBelowMinimum     = "below_minimum"
	ReasonBelowStandingMax = "below_standing_max"
	ReasonInvalidBidType   = "invalid_bid_type"
	ReasonInvalidAmount    = "invalid_amount"
)

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConcurrencyConflictError means the per-lot lock race was lost. The caller
// should retry the whole read-resolve-validate-write sequence.
type ConcurrencyConflictError struct {
	LotID string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrent bid in progress on lot %s", e.LotID)
}

// ConfigurationError is non-fatal: the resolver defaults the increment to
// zero and the caller logs a warning.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConflict(err error) bool {
	var cc *ConcurrencyConflictError
	return errors.As(err, &cc)
}
