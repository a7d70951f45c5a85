package kdp

import "time"

// Outcome is the result of one gateway call. Failures are carried in Err and
// never panic or propagate further: every call is isolated from the others.
type Outcome[T any] struct {
	Op      string
	Value   T
	Err     error
	Elapsed time.Duration
}

// OK reports whether the call succeeded.
func (o Outcome[T]) OK() bool { return o.Err == nil }

// Kind returns the error classification, KindOK on success.
func (o Outcome[T]) Kind() string { return Kind(o.Err) }

// Window is the time range argument of the interval calls.
type Window struct {
	Start time.Time
	End   time.Time
}

// TimeLayout is the wire format of every time argument, always in UTC.
const TimeLayout = "2006-01-02 15:04:05"

// LastFiveMinutes returns the fixed [now-5m, now] window.
func LastFiveMinutes(now time.Time) Window {
	return Window{Start: now.Add(-5 * time.Minute), End: now}
}

// StartString formats Start for the wire.
func (w Window) StartString() string { return w.Start.UTC().Format(TimeLayout) }

// EndString formats End for the wire.
func (w Window) EndString() string { return w.End.UTC().Format(TimeLayout) }
