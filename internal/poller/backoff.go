package poller

import "time"

// Backoff returns base * multiplier clamped to [minDelay, maxDelay].
// A multiplier below 1 is treated as 1.
func Backoff(base, minDelay, maxDelay time.Duration, multiplier int) time.Duration {
	if multiplier < 1 {
		multiplier = 1
	}

	// Guard the multiplication against overflow.
	if maxDelay > 0 && base > 0 && time.Duration(multiplier) > maxDelay/base {
		return maxDelay
	}

	d := base * time.Duration(multiplier)
	if d < minDelay {
		d = minDelay
	}
	if maxDelay > 0 && d > maxDelay {
		d = maxDelay
	}
	return d
}

// nextMultiplier doubles m, capped at limit.
func nextMultiplier(m, limit int) int {
	if m < 1 {
		m = 1
	}
	m *= 2
	if limit > 0 && m > limit {
		m = limit
	}
	return m
}
