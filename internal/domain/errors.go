package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for the reporting engine. Stores and the engine return these
// wrapped with context; the HTTP layer maps them to status codes.
var (
	ErrInvalidWindow      = errors.New("invalid change window")
	ErrWindowTooLarge     = errors.New("change window too large")
	ErrInvalidCursor      = errors.New("invalid page cursor")
	ErrInvalidScope       = errors.New("invalid parent scope")
	ErrUnknownKind        = errors.New("unknown entity kind")
	ErrEntityUnresolvable = errors.New("entity unresolvable")
	ErrNotInWindow        = errors.New("entity did not exist in window")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrPartialResult      = errors.New("partial result")
)

// EntityUnresolvableError is returned when neither history nor the live table
// can produce a snapshot for an entity at the requested instant.
type EntityUnresolvableError struct {
	Kind     EntityKind
	EntityID uuid.UUID
	Reason   string
}

func (e *EntityUnresolvableError) Error() string {
	return fmt.Sprintf("entity unresolvable: %s %s: %s", e.Kind, e.EntityID, e.Reason)
}

func (e *EntityUnresolvableError) Is(target error) bool {
	return target == ErrEntityUnresolvable
}

// PartialResultError signals that the deadline expired mid-assembly. It is never
// an empty or truncated report.
type PartialResultError struct {
	CompletedRoots int
	TotalRoots     int
	Err            error
}

func (e *PartialResultError) Error() string {
	return fmt.Sprintf("partial result: %d of %d roots assembled: %v", e.CompletedRoots, e.TotalRoots, e.Err)
}

func (e *PartialResultError) Is(target error) bool {
	return target == ErrPartialResult
}

func (e *PartialResultError) Unwrap() error {
	return e.Err
}

// StoreError wraps infrastructure failures; the engine never writes, so retries are safe.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// IsRetryable reports whether err came from an unavailable store.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
