package rediswork

import "time"

// Configuration constants for rediswork operations
const (
	// Connection bootstrap: fixed attempt count, fixed delay between attempts
	DefaultConnectAttempts = 10
	DefaultConnectDelay    = 100 * time.Millisecond

	// Query paging
	DefaultTake = 1000000
	MaxTake     = 1000000

	// Default endpoint when neither WithAddr nor REDIS_ADDR is set
	DefaultAddr = "localhost:6379"
)

// RetryConfig holds configuration for the connection bootstrap loop.
// BackoffMultiple of 1 and JitterPercent of 0 give a fixed delay between attempts.
type RetryConfig struct {
	MaxRetries      int
	InitialBackoff  time.Duration
	BackoffMultiple int
	JitterPercent   float64
}

// DefaultConnectRetryConfig returns the bootstrap retry configuration:
// 10 attempts, 100ms apart.
func DefaultConnectRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      DefaultConnectAttempts,
		InitialBackoff:  DefaultConnectDelay,
		BackoffMultiple: 1,
		JitterPercent:   0,
	}
}

// Delay returns how long to wait after the given zero-based failed attempt.
func (c RetryConfig) Delay(attempt int) time.Duration {
	delay := c.InitialBackoff
	for i := 0; i < attempt && c.BackoffMultiple > 1; i++ {
		delay *= time.Duration(c.BackoffMultiple)
	}
	if c.JitterPercent > 0 {
		delay += time.Duration(float64(delay) * c.JitterPercent * (1.0 - (float64(attempt%2) * 0.5)))
	}
	return delay
}

// Validate checks if the RetryConfig is valid
func (c RetryConfig) Validate() error {
	if c.MaxRetries < 1 {
		return WithContext(ErrConfiguration, map[string]interface{}{
			"field":  "MaxRetries",
			"value":  c.MaxRetries,
			"reason": "must be at least 1",
		})
	}
	if c.InitialBackoff < 0 {
		return WithContext(ErrConfiguration, map[string]interface{}{
			"field":  "InitialBackoff",
			"value":  c.InitialBackoff,
			"reason": "must not be negative",
		})
	}
	if c.BackoffMultiple < 1 {
		return WithContext(ErrConfiguration, map[string]interface{}{
			"field":  "BackoffMultiple",
			"value":  c.BackoffMultiple,
			"reason": "must be >= 1",
		})
	}
	if c.JitterPercent < 0 || c.JitterPercent > 1 {
		return WithContext(ErrConfiguration, map[string]interface{}{
			"field":  "JitterPercent",
			"value":  c.JitterPercent,
			"reason": "must be between 0 and 1",
		})
	}
	return nil
}
