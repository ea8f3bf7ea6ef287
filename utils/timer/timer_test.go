package timer

import (
	"testing"
	"time"
)

func TestTimer(t *testing.T) {
	tm := New()
	time.Sleep(20 * time.Millisecond)

	if ms := tm.ElapsedMs(); ms < 20 {
		t.Errorf("ElapsedMs() = %f, want >= 20", ms)
	}
	if s := tm.Elapsed(); s < 0.02 || s > 10 {
		t.Errorf("Elapsed() = %f, want about 0.02", s)
	}

	tm.Restart()
	if ms := tm.ElapsedMs(); ms >= 20 {
		t.Errorf("ElapsedMs() after Restart = %f, want < 20", ms)
	}
}
