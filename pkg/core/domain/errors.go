package domain

import "errors"

var (
	ErrInvalidURL          = errors.New("invalid url")
	ErrCodeConflict        = errors.New("short code already exists")
	ErrAllocationExhausted = errors.New("could not allocate a unique short code")
	ErrNotFound            = errors.New("link not found")
	ErrExpired             = errors.New("link expired")
	ErrValidation          = errors.New("validation failed")
	// ErrInternal marks a failed commit; nothing was applied and the call may be retried.
	ErrInternal = errors.New("internal error")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsExpired(err error) bool { return errors.Is(err, ErrExpired) }

func IsConflict(err error) bool { return errors.Is(err, ErrCodeConflict) }

// Kind returns the taxonomy name of err as reported to clients.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidURL):
		return "InvalidUrl"
	case errors.Is(err, ErrCodeConflict):
		return "CodeConflict"
	case errors.Is(err, ErrAllocationExhausted):
		return "AllocationExhausted"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrExpired):
		return "Expired"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	default:
		return "InternalError"
	}
}
