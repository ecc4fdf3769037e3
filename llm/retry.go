package llm

import "time"

// RetryConfig bounds how hard one endpoint is retried before the client
// falls through to the next entry in the chain.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per endpoint.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns retry defaults tuned for scheduled audit runs:
// the run is a weekly batch with no user waiting on it, so the client leans
// patient — an extra attempt and a minute-scale backoff ceiling ride out
// rate-limit windows that a short cap would turn into endpoint failures.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       4,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        time.Minute,
	}
}
