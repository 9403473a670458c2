package riders

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidRider is returned when a rider id is zero or negative. Callers
// must reject such ids before issuing any fetch.
var ErrInvalidRider = errors.New("rider id must be a positive integer")

// Status classifies the outcome of a single fetch. NotFound is a normal,
// non-error answer ("this rider has no active shift"), distinct from a
// transient failure of the backing source.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the tri-state outcome of a fetch: a value, a definitive absence,
// or a failure. Value is only meaningful when Status is StatusOK.
type Result[T any] struct {
	Status Status
	Value  T
	Err    error
}

// OK wraps a successfully fetched value.
func OK[T any](v T) Result[T] {
	return Result[T]{Status: StatusOK, Value: v}
}

// NotFound reports that the source answered and the record does not exist.
func NotFound[T any]() Result[T] {
	return Result[T]{Status: StatusNotFound}
}

// Failed reports that the fetch itself failed.
func Failed[T any](err error) Result[T] {
	return Result[T]{Status: StatusError, Err: err}
}

// ContextSource provides the four operational context fetches plus the
// challenge lookup. Each fetch answers independently; a failure of one says
// nothing about the others. Implementations must honor context cancellation.
type ContextSource interface {
	Profile(ctx context.Context, riderID int64) Result[*Rider]
	ActiveTrips(ctx context.Context, riderID int64) Result[[]Trip]
	ActiveShift(ctx context.Context, riderID int64) Result[*Shift]
	Location(ctx context.Context, riderID int64) Result[*LocationFix]
	ActiveChallenges(ctx context.Context, riderID int64) Result[[]Challenge]
}

// TripManager applies state changes to trips (release, cancel, mark as not
// delivered). It is separate from ContextSource because reads and writes go
// through different upstream systems.
type TripManager interface {
	ChangeTripState(ctx context.Context, riderID, tripID int64, action, reason string) (string, error)
}

// Valid trip-state actions accepted by TripManager implementations.
const (
	ActionRelease      = "release"
	ActionCancel       = "cancel"
	ActionNotDelivered = "not_delivered"
)

// ValidAction reports whether action is one of the recognized trip-state
// actions.
func ValidAction(action string) bool {
	switch action {
	case ActionRelease, ActionCancel, ActionNotDelivered:
		return true
	}
	return false
}

// ValidateRiderID rejects non-positive rider ids with ErrInvalidRider.
func ValidateRiderID(riderID int64) error {
	if riderID <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidRider, riderID)
	}
	return nil
}
