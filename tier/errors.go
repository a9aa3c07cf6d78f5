package tier

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidTTL is returned by hot/warm tiers for Set with ttl <= 0.
	ErrInvalidTTL = errors.New("tier: invalid ttl")

	// ErrUnavailable marks a transient backend failure (timeout, connection
	// refused, deadline exceeded). Retryable; counted by the circuit breaker.
	ErrUnavailable = errors.New("tier: backend unavailable")

	// ErrThrottled marks an explicit overload signal from the backend
	// (rate-limit response, busy database). Counted by the circuit breaker
	// with a longer backoff than ErrUnavailable.
	ErrThrottled = errors.New("tier: backend throttled")

	// ErrPartitionImmutable is returned by the warm tier when a Set would
	// change an existing entry's partition key. Changing the partition
	// requires delete + recreate.
	ErrPartitionImmutable = errors.New("tier: partition key is immutable")
)

// Unavailable wraps err so that errors.Is(result, ErrUnavailable) holds.
// Context cancellation and deadline overruns are treated as unavailability.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Throttled wraps err so that errors.Is(result, ErrThrottled) holds.
func Throttled(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrThrottled, err)
}

// IsTransient reports whether err is one of the failure classes the
// circuit breaker counts.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrThrottled)
}

// Classify maps raw backend errors to the tier taxonomy. Errors already
// carrying a taxonomy sentinel pass through unchanged; context errors and
// everything else become ErrUnavailable.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case IsTransient(err) || errors.Is(err, ErrInvalidTTL) || errors.Is(err, ErrPartitionImmutable):
		return err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return Unavailable(err)
	default:
		return Unavailable(err)
	}
}
