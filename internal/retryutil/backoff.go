// Package retryutil shapes the backoff schedules used by the pending
// message lifecycle and the inclusion stage. It is intentionally small:
// cenkalti/backoff/v4 supplies the jittered-exponential primitive behind
// the inclusion stage's per-tick cadence, while the message lifecycle's
// piecewise table is computed directly here with math/rand jitter.
package retryutil

import (
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// MessageBackoff implements the message retry backoff table:
//
//	0        -> no delay
//	1-9      -> 10s
//	10-14    -> 90s
//	15-24    -> 2min
//	25-39    -> (retries-23) * 90s   (linear ramp 2->24 min)
//	40-44    -> 30min
//	45-49    -> 60min
//	50..max  -> max(2h, (retries-49)*2h) + uniform[0,6h)
//	>=max    -> 10 weeks (effectively skipped)
func MessageBackoff(retries uint32, maxRetries uint32) time.Duration {
	if maxRetries == 0 {
		maxRetries = 66
	}
	switch {
	case retries == 0:
		return 0
	case retries >= maxRetries:
		return 10 * 7 * 24 * time.Hour
	case retries <= 9:
		return 10 * time.Second
	case retries <= 14:
		return 90 * time.Second
	case retries <= 24:
		return 2 * time.Minute
	case retries <= 39:
		return time.Duration(retries-23) * 90 * time.Second
	case retries <= 44:
		return 30 * time.Minute
	case retries <= 49:
		return 60 * time.Minute
	default:
		base := 2 * time.Hour
		ramp := time.Duration(retries-49) * 2 * time.Hour
		if ramp > base {
			base = ramp
		}
		jitter := time.Duration(rand.Int63n(int64(6 * time.Hour)))
		return base + jitter
	}
}

// NewExponentialBackOff builds a cenkalti/backoff/v4 policy used by the
// inclusion stage's resubmission cadence: a bounded number of consecutive
// simulation-failure retries before forwarding to finality with
// Dropped(FailedSimulation).
func NewExponentialBackOff(initial time.Duration, maxInterval time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0 // caller bounds attempts by count, not elapsed time
	return b
}
