package agent

import "time"

// Config bounds the ReAct loop (spec §6 configuration table).
type Config struct {
	MaxIterations             int
	MaxToolCallsPerIteration  int
	Timeout                   time.Duration
	StopOnError               bool
	RetryOnError              bool
	MaxRetries                int
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:            10,
		MaxToolCallsPerIteration: 5,
		Timeout:                  300 * time.Second,
		StopOnError:              false,
		RetryOnError:             true,
		MaxRetries:               2,
	}
}
