package warden

import (
	"errors"
	"fmt"
	"time"

	"mercator-hq/warden/pkg/warden/types"
)

var (
	// ErrSuspended matches every *SuspendedError.
	ErrSuspended = errors.New("user suspended")

	// ErrInvalidState is returned for a lifecycle call made in the wrong state.
	ErrInvalidState = errors.New("invalid client state")

	// ErrInvalidArgument is returned for a nil policy, an empty user or an
	// invalid policy declaration.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotRegistered is returned when a policy without identity is not
	// among the tracked policies.
	ErrNotRegistered = errors.New("policy not registered")
)

// SuspendedError reports that a user is suspended under a policy.
type SuspendedError struct {
	Policy types.Policy
	User   string

	// ExpiresAt is the end of the suspension in epoch milliseconds, or
	// types.IndefiniteExpiration.
	ExpiresAt int64

	// Value is the metric value observed when the infraction was recorded.
	Value float64
}

// Error implements the error interface.
func (e *SuspendedError) Error() string {
	if e.Indefinite() {
		return fmt.Sprintf("user %s is suspended indefinitely under policy %s (value %g)",
			e.User, e.Policy.String(), e.Value)
	}
	return fmt.Sprintf("user %s is suspended under policy %s until %s (value %g)",
		e.User, e.Policy.String(), time.UnixMilli(e.ExpiresAt).UTC().Format(time.RFC3339), e.Value)
}

// Is makes errors.Is(err, ErrSuspended) true.
func (e *SuspendedError) Is(target error) bool {
	return target == ErrSuspended
}

// Indefinite reports whether the suspension lasts until lifted.
func (e *SuspendedError) Indefinite() bool {
	return e.ExpiresAt == types.IndefiniteExpiration
}

// RetryAfter returns how long until the suspension ends, or zero for an
// indefinite suspension.
func (e *SuspendedError) RetryAfter(now time.Time) time.Duration {
	if e.Indefinite() {
		return 0
	}
	d := time.UnixMilli(e.ExpiresAt).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
