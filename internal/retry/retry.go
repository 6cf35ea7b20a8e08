// Package retry provides the bounded-retry helper shared by verification
// and audit-log writes: a fixed attempt count with a pluggable backoff
// function between attempts.
package retry

import (
	"math/rand"
	"time"
)

// Replaceable so tests run without real sleeps.
var sleep = time.Sleep

// Backoff returns the delay to wait after the given failed attempt
// (1-based).
type Backoff func(attempt int) time.Duration

// Linear waits base, 2*base, 3*base, ...
func Linear(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

// Jittered waits a uniformly random duration in [base/2, base+base/2),
// scaled by the attempt number. Used where contention with an external
// reader is the expected failure mode.
func Jittered(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := time.Duration(attempt) * base
		half := d / 2
		return half + time.Duration(rand.Int63n(int64(d)))
	}
}

// Do calls fn up to attempts times, sleeping backoff(n) after each failed
// attempt except the last. It returns nil on the first success, otherwise
// the error from the final attempt.
func Do(attempts int, backoff Backoff, fn func(attempt int) error) error {
	var err error
	for n := 1; n <= attempts; n++ {
		if err = fn(n); err == nil {
			return nil
		}
		if n < attempts {
			sleep(backoff(n))
		}
	}
	return err
}
