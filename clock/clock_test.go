package clock

import "testing"

func TestTimerExpiry(t *testing.T) {
	tm := NewTimer(100)
	tm.Start()
	if tm.Tick(50).Expired() {
		t.Fatal("expired before reload threshold reached")
	}
	if !tm.Tick(50).Expired() {
		t.Fatal("want expired at exactly the reload threshold")
	}
}

func TestInactiveTimerNeverExpires(t *testing.T) {
	tm := NewTimer(10)
	if tm.Tick(1000).Expired() {
		t.Fatal("a timer that was never started must not expire")
	}
}

func TestExponentialBackoffDoubles(t *testing.T) {
	tm := NewTimer(100)
	tm.Start()
	tm.ExponentialBackoff()
	tm.Tick(150)
	if tm.Expired() {
		t.Fatal("doubled threshold (200ms) should not have expired at 150ms")
	}
	tm.Tick(50)
	if !tm.Expired() {
		t.Fatal("want expired at 200ms after doubling")
	}
}

func TestReloadResetsElapsed(t *testing.T) {
	tm := NewTimer(100)
	tm.Start()
	tm.Tick(90)
	tm.Reload(100)
	if tm.Expired() {
		t.Fatal("Reload should clear accumulated elapsed time")
	}
}

func TestStopThenTickIsNoop(t *testing.T) {
	tm := NewTimer(10)
	tm.Start()
	tm.Stop()
	tm.Tick(1000)
	if tm.Expired() {
		t.Fatal("a stopped timer must not expire")
	}
}
