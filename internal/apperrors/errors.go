package apperrors

import (
	"errors"
	"fmt"
)

// RetryableError marks a failure that a transport may redeliver.
type RetryableError struct {
	Err error
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryable wraps err as a RetryableError, prefixing it with a formatted message.
func NewRetryable(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &RetryableError{Err: fmt.Errorf(format, allArgs...)}
}

// FatalError marks a failure that will not go away on redelivery.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatal wraps err as a FatalError, prefixing it with a formatted message.
func NewFatal(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &FatalError{Err: fmt.Errorf(format, allArgs...)}
}

// Sentinel errors. Callers wrap them with fmt.Errorf("%w: ...") and test
// with errors.Is.
var (
	// ErrUnauthenticated means no verified caller identity was available.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyClaimed means another owner already tracks the profile URL.
	ErrAlreadyClaimed = errors.New("profile already claimed by another owner")
	// ErrNotFound indicates a requested resource was not found or is not owned by the caller.
	ErrNotFound = errors.New("resource not found")
	// ErrInternal wraps any store or infrastructure failure surfaced to callers.
	ErrInternal = errors.New("internal error")

	// ErrDatabase indicates a general database interaction error.
	ErrDatabase = errors.New("database error")
	// ErrNATS indicates a general NATS communication error.
	ErrNATS = errors.New("nats communication error")
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate resource")
	// ErrConflict indicates a general conflict state.
	ErrConflict = errors.New("resource conflict")
	// ErrBadRequest indicates a malformed request from the caller.
	ErrBadRequest = errors.New("bad request")
	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timeout")
	// ErrRateLimited indicates an operation was rate limited.
	ErrRateLimited = errors.New("rate limited")
)

// IsRetryable checks if the error is a RetryableError or wraps one.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// IsFatal checks if the error is a FatalError or wraps one.
func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}

// IsUnauthenticatedError checks if the error is or wraps ErrUnauthenticated.
func IsUnauthenticatedError(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsValidationError checks if the error is or wraps ErrValidation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsAlreadyClaimedError checks if the error is or wraps ErrAlreadyClaimed.
func IsAlreadyClaimedError(err error) bool {
	return errors.Is(err, ErrAlreadyClaimed)
}

// IsNotFoundError checks if the error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInternalError checks if the error is or wraps ErrInternal.
func IsInternalError(err error) bool {
	return errors.Is(err, ErrInternal)
}

// IsDatabaseError checks if the error is or wraps ErrDatabase.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsNATSError checks if the error is or wraps ErrNATS.
func IsNATSError(err error) bool {
	return errors.Is(err, ErrNATS)
}

// IsDuplicateError checks if the error is or wraps ErrDuplicate.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsBadRequestError checks if the error is or wraps ErrBadRequest.
func IsBadRequestError(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

// IsTimeoutError checks if the error is or wraps ErrTimeout.
func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsRateLimitedError checks if the error is or wraps ErrRateLimited.
func IsRateLimitedError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// Internal wraps a lower-level failure as ErrInternal, keeping the cause in the chain.
func Internal(err error, op string) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

// Kind returns a short label for the error's category, used for metrics and
// transport error codes.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsUnauthenticatedError(err):
		return "unauthenticated"
	case IsValidationError(err), IsBadRequestError(err):
		return "validation"
	case IsAlreadyClaimedError(err):
		return "already_claimed"
	case IsNotFoundError(err):
		return "not_found"
	case IsRateLimitedError(err):
		return "rate_limited"
	case IsTimeoutError(err):
		return "timeout"
	case IsNATSError(err):
		return "nats"
	case IsInternalError(err), IsDatabaseError(err):
		return "internal"
	default:
		return "unknown"
	}
}
