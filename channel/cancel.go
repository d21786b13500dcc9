package channel

import "sync/atomic"

// CancelFlag is the cancellation signal of one role. It is set by the role's own
// processor on a quit command or by the orchestrator on external termination,
// and observed by Poll at every tick.
type CancelFlag struct {
	set atomic.Bool
}

// Set raises the flag. It is safe to call more than once and from any goroutine.
func (f *CancelFlag) Set() { f.set.Store(true) }

// IsSet reports whether the flag has been raised. A nil flag is never set.
func (f *CancelFlag) IsSet() bool {
	if f == nil {
		return false
	}

	return f.set.Load()
}
