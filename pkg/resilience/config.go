package resilience

import (
	"time"

	"github.com/sony/gobreaker"
)

// ResilientConfig guards one render cache layer.
type ResilientConfig struct {
	// Timeout bounds a single Get, Set or Delete. Zero disables it.
	Timeout time.Duration
	Breaker BreakerConfig
}

// BreakerConfig describes when a layer is taken out of the read path and
// how it is probed back in.
type BreakerConfig struct {
	// HalfOpenProbes is how many calls may reach the layer while half-open.
	HalfOpenProbes uint32
	// Window clears the closed-state counts periodically. Zero never clears.
	Window time.Duration
	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration

	// The breaker trips when at least MinRequests were seen in the window
	// and the failure ratio reaches FailureRatio, or when
	// ConsecutiveFailures calls failed in a row. Zero disables a rule.
	MinRequests         uint32
	FailureRatio        float64
	ConsecutiveFailures uint32
}

// DefaultResilientConfig returns the settings used for the render cache.
// Rendering falls back to the markdown source, so a misbehaving Redis is
// cut off quickly and probed again soon.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Timeout: 500 * time.Millisecond,
		Breaker: BreakerConfig{
			HalfOpenProbes:      3,
			Window:              time.Minute,
			Cooldown:            15 * time.Second,
			MinRequests:         20,
			FailureRatio:        0.15,
			ConsecutiveFailures: 5,
		},
	}
}

// WithTimeout returns a copy of the config with the specified timeout.
func (c ResilientConfig) WithTimeout(timeout time.Duration) ResilientConfig {
	c.Timeout = timeout
	return c
}

// WithCooldown returns a copy of the config with a different open duration.
func (c ResilientConfig) WithCooldown(cooldown time.Duration) ResilientConfig {
	c.Breaker.Cooldown = cooldown
	return c
}

func (b BreakerConfig) shouldTrip(counts gobreaker.Counts) bool {
	if b.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= b.ConsecutiveFailures {
		return true
	}
	if b.FailureRatio <= 0 || counts.Requests == 0 || counts.Requests < b.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= b.FailureRatio
}
