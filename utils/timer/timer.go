// Package timer measures wall clock intervals for processing metrics.
package timer

import "time"

type Timer struct {
	start time.Time
}

// New returns a started timer.
func New() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Restart() {
	t.start = time.Now()
}

// Elapsed returns seconds since the last restart.
func (t *Timer) Elapsed() float64 {
	return time.Since(t.start).Seconds()
}

// ElapsedMs returns milliseconds since the last restart.
func (t *Timer) ElapsedMs() float64 {
	return float64(time.Since(t.start).Microseconds()) / 1000.0
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
