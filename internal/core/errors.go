package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced payment, fund or rule is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks malformed caller input. Never retryable.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidPlan is an ErrInvalidInput raised by allocation plan validation.
	ErrInvalidPlan = fmt.Errorf("%w: invalid allocation plan", ErrInvalidInput)
	// ErrInvalidAmount is an ErrInvalidInput raised for unusable money amounts.
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	// ErrStorage marks an unavailable or failing store. Retryable.
	ErrStorage = errors.New("storage error")
	// ErrPartialFailure marks a distribution that was rolled back part way.
	ErrPartialFailure = errors.New("partial failure")
)

// PartialFailureError reports a distribution whose unit of work failed after
// some funds had been processed. Everything was rolled back; Applied lists
// the fund codes that had been written before the failure so callers can
// log exactly how far it got. Retrying the whole distribution is safe.
type PartialFailureError struct {
	PaymentID string
	Applied   []string
	Failed    string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("distribution of payment %s rolled back at fund %q (applied before failure: [%s]): %v",
		e.PaymentID, e.Failed, strings.Join(e.Applied, ", "), e.Err)
}

// Unwrap exposes both the partial-failure marker and the cause.
func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrPartialFailure, e.Err}
}

// IsRetryable reports whether a caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
		return false
	}
	return errors.Is(err, ErrStorage) || errors.Is(err, ErrPartialFailure)
}

// StorageError wraps err as an ErrStorage with an operation label.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
