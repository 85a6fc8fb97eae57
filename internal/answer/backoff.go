package answer

import (
	"math/rand/v2"
	"time"
)

// calculateBackoff returns exponential backoff with jitter. The delay is
// doubled each attempt, capped at 30 seconds, with random jitter of up to
// 25% in either direction.
func calculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}
