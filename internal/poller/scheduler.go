package poller

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cryptotracker/marketview/internal/metrics"
)

// State is the scheduler's position in its lifecycle.
type State int

const (
	// Idle has no timer armed.
	Idle State = iota
	// Scheduled has a timer armed at the normal cadence.
	Scheduled
	// Fetching has a poll in flight.
	Fetching
	// RateLimited has a timer armed at a backoff delay.
	RateLimited
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Fetching:
		return "fetching"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Outcome is the result of one poll, as reported to Complete.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Config holds scheduler configuration.
type Config struct {
	BaseInterval  time.Duration // Delay after a success (default: 45s)
	MinInterval   time.Duration // Lower bound on any delay (default: 30s)
	MaxInterval   time.Duration // Upper bound on any delay (default: 300s)
	MaxMultiplier int           // Cap on the backoff multiplier (default: 10)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseInterval:  45 * time.Second,
		MinInterval:   30 * time.Second,
		MaxInterval:   300 * time.Second,
		MaxMultiplier: 10,
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used to arm timers.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// Scheduler decides when the next poll happens. It is safe for concurrent
// use; the fire callback is invoked without the lock held.
type Scheduler struct {
	cfg    Config
	clock  Clock
	onFire func()
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	multiplier  int
	fetching    bool
	rateLimited bool
	started     bool
	hidden      bool
	stopped     bool
	timer       Timer
	generation  uint64
}

// New creates a Scheduler that calls onFire whenever its timer fires.
func New(cfg Config, onFire func(), opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:        cfg,
		clock:      SystemClock{},
		onFire:     onFire,
		logger:     slog.Default(),
		multiplier: 1,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start begins periodic polling. Idle → Scheduled.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.started = true
	if !s.fetching && !s.hidden {
		s.armLocked()
	}
}

// Begin marks a poll as in flight. It returns false if one already is, in
// which case the caller must not poll. Any armed timer is cleared.
func (s *Scheduler) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.fetching {
		return false
	}
	s.clearTimerLocked()
	s.fetching = true
	s.state = Fetching
	return true
}

// Complete records the outcome of the poll started by Begin and arms the
// next timer. It returns the armed delay, or false if nothing was armed
// because the scheduler is stopped, hidden, or was never started.
//
// A rate-limited outcome arms its own timer even before Start.
func (s *Scheduler) Complete(outcome Outcome) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetching = false

	switch outcome {
	case OutcomeSuccess:
		s.multiplier = 1
		s.rateLimited = false
	case OutcomeRateLimited:
		s.multiplier = nextMultiplier(s.multiplier, s.cfg.MaxMultiplier)
		s.rateLimited = true
		s.started = true
		metrics.RateLimitedTotal.Inc()
	}

	if s.stopped || s.hidden || !s.started {
		s.state = Idle
		return 0, false
	}

	d := s.armLocked()
	s.logger.Debug("poll complete",
		"outcome", outcome,
		"next", d,
		"multiplier", s.multiplier,
	)
	return d, true
}

// Throttle records a rate-limited request made outside a poll cycle, such
// as a page load. The multiplier doubles and, unless a poll is in flight or
// the scheduler is hidden or stopped, the timer is re-armed at the backoff
// delay. It returns the backoff delay and whether a timer was armed.
func (s *Scheduler) Throttle() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.multiplier = nextMultiplier(s.multiplier, s.cfg.MaxMultiplier)
	s.rateLimited = true
	metrics.RateLimitedTotal.Inc()

	if s.stopped {
		return s.delayLocked(), false
	}
	s.started = true
	if s.fetching || s.hidden {
		return s.delayLocked(), false
	}

	d := s.armLocked()
	s.logger.Debug("throttled outside poll", "next", d, "multiplier", s.multiplier)
	return d, true
}

// Recover records a successful request made outside a poll cycle. A
// pending backoff is dropped: the multiplier resets and, if the scheduler
// was rate limited, the timer is re-armed at the base delay.
func (s *Scheduler) Recover() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.multiplier = 1
	if !s.rateLimited {
		return s.delayLocked(), false
	}
	s.rateLimited = false

	if s.stopped || s.hidden || s.fetching || !s.started {
		return s.delayLocked(), false
	}
	return s.armLocked(), true
}

// Suspend clears the timer while the view is hidden. Any → Idle once the
// in-flight poll, if any, completes.
func (s *Scheduler) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hidden = true
	s.clearTimerLocked()
	if !s.fetching {
		s.state = Idle
	}
}

// Resume re-arms the timer after Suspend without polling immediately.
// While rate-limited the backoff delay is used. It returns the armed delay.
func (s *Scheduler) Resume() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hidden = false
	if s.stopped || !s.started || s.fetching {
		return 0, false
	}
	return s.armLocked(), true
}

// Reset clears the timer and the backoff and returns to Idle as if never
// started. An in-flight poll is forgotten.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearTimerLocked()
	s.multiplier = 1
	s.rateLimited = false
	s.started = false
	s.fetching = false
	s.state = Idle
}

// Stop permanently clears the timer. Any → Idle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.clearTimerLocked()
	s.state = Idle
}

// NextDelay returns the delay the next armed timer would use.
func (s *Scheduler) NextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delayLocked()
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Multiplier returns the current backoff multiplier.
func (s *Scheduler) Multiplier() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multiplier
}

// IsRateLimited reports whether the last decisive outcome was a throttle.
func (s *Scheduler) IsRateLimited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLimited
}

func (s *Scheduler) delayLocked() time.Duration {
	return Backoff(s.cfg.BaseInterval, s.cfg.MinInterval, s.cfg.MaxInterval, s.multiplier)
}

// armLocked replaces any pending timer with one at the current delay.
func (s *Scheduler) armLocked() time.Duration {
	s.clearTimerLocked()

	d := s.delayLocked()
	gen := s.generation
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen) })

	if s.rateLimited {
		s.state = RateLimited
	} else {
		s.state = Scheduled
	}
	metrics.PollDelay.Set(d.Seconds())
	return d
}

func (s *Scheduler) clearTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.stopped || s.hidden {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	if s.onFire != nil {
		s.onFire()
	}
}
