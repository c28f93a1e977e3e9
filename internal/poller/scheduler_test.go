package poller

import (
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T) (*Scheduler, *ManualClock, *atomic.Int32) {
	t.Helper()
	clock := NewManualClock()
	var fires atomic.Int32
	s := New(DefaultConfig(), func() { fires.Add(1) }, WithClock(clock))
	return s, clock, &fires
}

func assertPending(t *testing.T, clock *ManualClock, want ...time.Duration) {
	t.Helper()
	got := clock.Pending()
	if !slices.Equal(got, want) {
		t.Fatalf("pending timers = %v, want %v", got, want)
	}
}

func TestScheduler_StartArmsBaseInterval(t *testing.T) {
	s, clock, fires := newTestScheduler(t)

	if s.State() != Idle {
		t.Fatalf("initial state = %v, want idle", s.State())
	}

	s.Start()
	if s.State() != Scheduled {
		t.Errorf("state = %v, want scheduled", s.State())
	}
	assertPending(t, clock, 45*time.Second)

	clock.Advance(44 * time.Second)
	if fires.Load() != 0 {
		t.Fatal("fired early")
	}
	clock.Advance(time.Second)
	if fires.Load() != 1 {
		t.Fatalf("fires = %d, want 1", fires.Load())
	}
}

func TestScheduler_BackoffScenario(t *testing.T) {
	s, clock, _ := newTestScheduler(t)
	s.Start()

	want := []time.Duration{90 * time.Second, 180 * time.Second, 300 * time.Second}
	for i, w := range want {
		if !s.Begin() {
			t.Fatalf("step %d: Begin() = false", i)
		}
		d, armed := s.Complete(OutcomeRateLimited)
		if !armed {
			t.Fatalf("step %d: not armed", i)
		}
		if d != w {
			t.Errorf("step %d: delay = %v, want %v", i, d, w)
		}
		if s.State() != RateLimited {
			t.Errorf("step %d: state = %v, want rate_limited", i, s.State())
		}
		assertPending(t, clock, w)
	}

	s.Begin()
	d, _ := s.Complete(OutcomeSuccess)
	if d != 45*time.Second {
		t.Errorf("delay after success = %v, want 45s", d)
	}
	if s.Multiplier() != 1 {
		t.Errorf("multiplier = %d, want 1", s.Multiplier())
	}
	if s.State() != Scheduled {
		t.Errorf("state = %v, want scheduled", s.State())
	}
}

func TestScheduler_BackoffBound(t *testing.T) {
	cfg := Config{BaseInterval: time.Second, MinInterval: time.Second, MaxInterval: time.Hour, MaxMultiplier: 1 << 20}
	s := New(cfg, nil, WithClock(NewManualClock()))
	s.Start()

	for n := 1; n <= 8; n++ {
		s.Begin()
		d, _ := s.Complete(OutcomeRateLimited)
		want := time.Duration(1<<n) * time.Second
		if d != want {
			t.Errorf("after %d throttles delay = %v, want %v", n, d, want)
		}
	}
}

func TestScheduler_BeginGuardsOverlap(t *testing.T) {
	s, clock, _ := newTestScheduler(t)
	s.Start()

	if !s.Begin() {
		t.Fatal("first Begin() = false")
	}
	if s.Begin() {
		t.Fatal("second Begin() = true while fetching")
	}
	if s.State() != Fetching {
		t.Errorf("state = %v, want fetching", s.State())
	}
	assertPending(t, clock)

	s.Complete(OutcomeSuccess)
	if !s.Begin() {
		t.Error("Begin() after Complete = false")
	}
}

func TestScheduler_SingleTimer(t *testing.T) {
	s, clock, fires := newTestScheduler(t)

	s.Start()
	s.Start()
	s.Resume()
	assertPending(t, clock, 45*time.Second)

	clock.Advance(time.Hour)
	if fires.Load() != 1 {
		t.Errorf("fires = %d, want 1", fires.Load())
	}
}

func TestScheduler_FailureKeepsDelay(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.Start()

	s.Begin()
	s.Complete(OutcomeRateLimited)

	for _, o := range []Outcome{OutcomeFailed, OutcomeCancelled} {
		s.Begin()
		d, armed := s.Complete(o)
		if !armed || d != 90*time.Second {
			t.Errorf("%v: delay = %v armed = %v, want 90s armed", o, d, armed)
		}
		if !s.IsRateLimited() {
			t.Errorf("%v cleared the rate limit", o)
		}
	}
}

func TestScheduler_RateLimitedArmsBeforeStart(t *testing.T) {
	s, clock, _ := newTestScheduler(t)

	s.Begin()
	d, armed := s.Complete(OutcomeRateLimited)
	if !armed || d != 90*time.Second {
		t.Fatalf("delay = %v armed = %v, want 90s armed", d, armed)
	}
	assertPending(t, clock, 90*time.Second)
}

func TestScheduler_FailureBeforeStartStaysIdle(t *testing.T) {
	s, clock, _ := newTestScheduler(t)

	s.Begin()
	if _, armed := s.Complete(OutcomeFailed); armed {
		t.Error("failure before Start should not arm")
	}
	if s.State() != Idle {
		t.Errorf("state = %v, want idle", s.State())
	}
	assertPending(t, clock)
}

func TestScheduler_SuspendResume(t *testing.T) {
	s, clock, fires := newTestScheduler(t)
	s.Start()

	s.Suspend()
	if s.State() != Idle {
		t.Errorf("state after Suspend = %v, want idle", s.State())
	}
	assertPending(t, clock)

	clock.Advance(time.Hour)
	if fires.Load() != 0 {
		t.Fatal("fired while suspended")
	}

	d, armed := s.Resume()
	if !armed || d != 45*time.Second {
		t.Fatalf("Resume() = %v, %v; want 45s, true", d, armed)
	}
	if fires.Load() != 0 {
		t.Error("Resume must not poll synchronously")
	}
	clock.Advance(45 * time.Second)
	if fires.Load() != 1 {
		t.Errorf("fires = %d, want 1", fires.Load())
	}
}

func TestScheduler_ResumeWhileRateLimited(t *testing.T) {
	s, clock, _ := newTestScheduler(t)
	s.Start()
	s.Begin()
	s.Complete(OutcomeRateLimited)

	s.Suspend()
	d, armed := s.Resume()
	if !armed || d != 90*time.Second {
		t.Fatalf("Resume() = %v, %v; want 90s, true", d, armed)
	}
	if s.State() != RateLimited {
		t.Errorf("state = %v, want rate_limited", s.State())
	}
	assertPending(t, clock, 90*time.Second)
}

func TestScheduler_CompleteWhileHidden(t *testing.T) {
	s, clock, _ := newTestScheduler(t)
	s.Start()
	s.Begin()
	s.Suspend()

	if _, armed := s.Complete(OutcomeCancelled); armed {
		t.Error("Complete while hidden should not arm")
	}
	if s.State() != Idle {
		t.Errorf("state = %v, want idle", s.State())
	}
	assertPending(t, clock)
}

func TestScheduler_Stop(t *testing.T) {
	s, clock, fires := newTestScheduler(t)
	s.Start()
	s.Stop()

	if s.State() != Idle {
		t.Errorf("state = %v, want idle", s.State())
	}
	assertPending(t, clock)

	if s.Begin() {
		t.Error("Begin() after Stop = true")
	}
	s.Start()
	if _, armed := s.Resume(); armed {
		t.Error("Resume() after Stop armed a timer")
	}
	clock.Advance(time.Hour)
	if fires.Load() != 0 {
		t.Errorf("fires = %d after Stop, want 0", fires.Load())
	}
}

func TestScheduler_Reset(t *testing.T) {
	s, clock, _ := newTestScheduler(t)
	s.Start()
	s.Begin()
	s.Complete(OutcomeRateLimited)

	s.Reset()
	if s.State() != Idle || s.Multiplier() != 1 || s.IsRateLimited() {
		t.Errorf("after Reset: state=%v multiplier=%d rateLimited=%v", s.State(), s.Multiplier(), s.IsRateLimited())
	}
	assertPending(t, clock)
	if s.NextDelay() != 45*time.Second {
		t.Errorf("NextDelay() = %v, want 45s", s.NextDelay())
	}
}

func TestScheduler_StaleFireIgnored(t *testing.T) {
	clock := NewManualClock()
	var fires atomic.Int32
	s := New(DefaultConfig(), func() { fires.Add(1) }, WithClock(clock))

	s.Start()
	// Re-arming invalidates the callback of the replaced timer.
	old := s.generation
	s.Resume()
	s.fire(old)

	if fires.Load() != 0 {
		t.Errorf("stale fire invoked callback")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Idle:        "idle",
		Scheduled:   "scheduled",
		Fetching:    "fetching",
		RateLimited: "rate_limited",
		State(99):   "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestScheduler_ThrottleOutsidePoll(t *testing.T) {
	s, clock, _ := newTestScheduler(t)
	s.Start()

	d, armed := s.Throttle()
	if !armed || d != 90*time.Second {
		t.Fatalf("Throttle() = %v, %v; want 90s, true", d, armed)
	}
	if s.Multiplier() != 2 || !s.IsRateLimited() {
		t.Fatalf("multiplier = %d, rateLimited = %v", s.Multiplier(), s.IsRateLimited())
	}
	if s.State() != RateLimited {
		t.Errorf("state = %v, want rate limited", s.State())
	}
	assertPending(t, clock, 90*time.Second)

	d, armed = s.Recover()
	if !armed || d != 45*time.Second {
		t.Fatalf("Recover() = %v, %v; want 45s, true", d, armed)
	}
	if s.Multiplier() != 1 || s.IsRateLimited() {
		t.Fatalf("after recover: multiplier = %d, rateLimited = %v", s.Multiplier(), s.IsRateLimited())
	}
	assertPending(t, clock, 45*time.Second)

	if _, armed := s.Recover(); armed {
		t.Error("Recover() re-armed when not rate limited")
	}
	assertPending(t, clock, 45*time.Second)
}

func TestScheduler_ThrottleDuringPoll(t *testing.T) {
	s, clock, _ := newTestScheduler(t)
	s.Start()
	s.Begin()

	d, armed := s.Throttle()
	if armed {
		t.Fatal("Throttle() armed while a poll is in flight")
	}
	if d != 90*time.Second {
		t.Errorf("delay = %v, want 90s", d)
	}
	assertPending(t, clock)

	// The poll's own rate limit compounds the throttle.
	d, _ = s.Complete(OutcomeRateLimited)
	if d != 180*time.Second {
		t.Errorf("after poll: delay = %v, want 180s", d)
	}
}

func TestScheduler_ThrottleWhileHidden(t *testing.T) {
	s, clock, _ := newTestScheduler(t)
	s.Start()
	s.Suspend()

	if _, armed := s.Throttle(); armed {
		t.Fatal("Throttle() armed while hidden")
	}
	assertPending(t, clock)

	d, armed := s.Resume()
	if !armed || d != 90*time.Second {
		t.Errorf("Resume() = %v, %v; want 90s, true", d, armed)
	}
}
