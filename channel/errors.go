package channel

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned by Poll after MaxTimeouts consecutive empty poll ticks.
	ErrTimeout = errors.New("channel: no response")

	// ErrCancelled is returned by Poll when the role's cancellation flag is set.
	ErrCancelled = errors.New("channel: cancelled")

	// ErrClosed is returned by operations on a closed channel.
	ErrClosed = errors.New("channel: closed")
)

// IOError records a failed read or write on the underlying transport.
type IOError struct {
	Op   string // "read" or "write"
	Name string
	Time time.Time
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("channel: %s %s failed at %s: %v", e.Name, e.Op, e.Time.Format(time.RFC3339Nano), e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
