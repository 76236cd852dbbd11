package driver

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MaxTimeoutMilliseconds is the largest protocol value a time.Duration can represent.
const MaxTimeoutMilliseconds = math.MaxInt64 / int64(time.Millisecond)

// ErrTimeoutOutOfRange is returned for millisecond values above MaxTimeoutMilliseconds.
var ErrTimeoutOutOfRange = errors.New("timeout out of range")

// Timeout is an optional duration. The zero value means no timeout has been configured.
type Timeout struct {
	d   time.Duration
	set bool
}

// NoTimeout is the unset Timeout.
var NoTimeout = Timeout{}

// TimeoutOf returns a configured timeout of d. Negative durations yield NoTimeout.
func TimeoutOf(d time.Duration) Timeout {
	if d < 0 {
		return NoTimeout
	}
	return Timeout{d: d, set: true}
}

// TimeoutFromMilliseconds converts a protocol value. Negative values are the protocol's
// "unset" sentinel and yield NoTimeout.
func TimeoutFromMilliseconds(ms int64) (Timeout, error) {
	if ms < 0 {
		return NoTimeout, nil
	}
	d, err := DurationFromMilliseconds(ms)
	if err != nil {
		return NoTimeout, err
	}
	return TimeoutOf(d), nil
}

// DurationFromMilliseconds converts ms without wrapping around. Values above
// MaxTimeoutMilliseconds return ErrTimeoutOutOfRange.
func DurationFromMilliseconds(ms int64) (time.Duration, error) {
	if ms > MaxTimeoutMilliseconds {
		return 0, fmt.Errorf("%w: %dms exceeds %dms", ErrTimeoutOutOfRange, ms, MaxTimeoutMilliseconds)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// IsSet reports whether a timeout has been configured.
func (t Timeout) IsSet() bool {
	return t.set
}

// Duration returns the configured duration and whether one is set.
func (t Timeout) Duration() (time.Duration, bool) {
	return t.d, t.set
}

// Milliseconds returns the protocol representation: the duration in milliseconds, or -1 when unset.
func (t Timeout) Milliseconds() int64 {
	if !t.set {
		return -1
	}
	return t.d.Milliseconds()
}

func (t Timeout) String() string {
	if !t.set {
		return "none"
	}
	return t.d.String()
}

// ValidateImplicitWait rejects negative implicit waits, which have no "unset" meaning.
func ValidateImplicitWait(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("implicit wait cannot be negative: %s", d)
	}
	return nil
}
