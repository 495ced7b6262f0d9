package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxWindowSpan rejects spans no reporting integration could sensibly ask for.
const DefaultMaxWindowSpan = 20 * 365 * 24 * time.Hour

// ChangeWindow is the half-open interval (Since, Until].
type ChangeWindow struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// NewChangeWindow validates since < until and the span against maxSpan.
// A non-positive maxSpan falls back to DefaultMaxWindowSpan.
func NewChangeWindow(since, until time.Time, maxSpan time.Duration) (ChangeWindow, error) {
	if since.IsZero() || until.IsZero() {
		return ChangeWindow{}, fmt.Errorf("%w: both boundaries are required", ErrInvalidWindow)
	}
	if !since.Before(until) {
		return ChangeWindow{}, fmt.Errorf("%w: since %s must be before until %s",
			ErrInvalidWindow, since.Format(time.RFC3339), until.Format(time.RFC3339))
	}
	if maxSpan <= 0 {
		maxSpan = DefaultMaxWindowSpan
	}
	if until.Sub(since) > maxSpan {
		return ChangeWindow{}, fmt.Errorf("%w: span %s exceeds %s", ErrWindowTooLarge, until.Sub(since), maxSpan)
	}
	return ChangeWindow{Since: since.UTC(), Until: until.UTC()}, nil
}

// ParseChangeWindow parses datetime_gt / datetime_lte style ISO-8601 boundaries.
func ParseChangeWindow(gt, lte string, maxSpan time.Duration) (ChangeWindow, error) {
	since, err := parseTimestamp(gt)
	if err != nil {
		return ChangeWindow{}, fmt.Errorf("%w: datetime_gt: %v", ErrInvalidWindow, err)
	}
	until, err := parseTimestamp(lte)
	if err != nil {
		return ChangeWindow{}, fmt.Errorf("%w: datetime_lte: %v", ErrInvalidWindow, err)
	}
	return NewChangeWindow(since, until, maxSpan)
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is required")
	}
	return time.Parse(time.RFC3339Nano, value)
}

// Contains reports since < t <= until.
func (w ChangeWindow) Contains(t time.Time) bool {
	return t.After(w.Since) && !t.After(w.Until)
}

// Split returns the adjacent windows (Since, at] and (at, Until].
func (w ChangeWindow) Split(at time.Time) (ChangeWindow, ChangeWindow, error) {
	if !w.Contains(at) || at.Equal(w.Until) {
		return ChangeWindow{}, ChangeWindow{}, fmt.Errorf("%w: split point %s outside %s", ErrInvalidWindow, at.Format(time.RFC3339), w)
	}
	return ChangeWindow{Since: w.Since, Until: at.UTC()}, ChangeWindow{Since: at.UTC(), Until: w.Until}, nil
}

// ClosedBefore reports whether the window ended before now, i.e. its result can no longer change.
func (w ChangeWindow) ClosedBefore(now time.Time) bool {
	return w.Until.Before(now)
}

func (w ChangeWindow) String() string {
	return fmt.Sprintf("(%s, %s]", w.Since.Format(time.RFC3339Nano), w.Until.Format(time.RFC3339Nano))
}
