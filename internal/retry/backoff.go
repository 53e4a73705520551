package retry

import "time"

// maxBackoff caps redelivery delay so a task never waits more than a minute.
const maxBackoff = time.Minute

// ExponentialBackoff returns delay based on attempt number.
// The delay doubles with each attempt: base * 2^attempt, capped at maxBackoff.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	d := base * (1 << attempt)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}
