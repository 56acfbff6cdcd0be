package resilience

import (
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestBreakerConfig_ShouldTrip(t *testing.T) {
	breaker := DefaultResilientConfig().Breaker

	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"idle", gobreaker.Counts{}, false},
		{"few requests all failing", gobreaker.Counts{Requests: 4, TotalFailures: 4, ConsecutiveFailures: 4}, false},
		{"consecutive failures", gobreaker.Counts{Requests: 5, TotalFailures: 5, ConsecutiveFailures: 5}, true},
		{"below ratio", gobreaker.Counts{Requests: 20, TotalFailures: 2, ConsecutiveFailures: 1}, false},
		{"at ratio", gobreaker.Counts{Requests: 20, TotalFailures: 3, ConsecutiveFailures: 1}, true},
		{"ratio needs volume", gobreaker.Counts{Requests: 10, TotalFailures: 3, ConsecutiveFailures: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := breaker.shouldTrip(tt.counts); got != tt.want {
				t.Errorf("shouldTrip(%+v) = %v, want %v", tt.counts, got, tt.want)
			}
		})
	}
}

func TestBreakerConfig_DisabledRules(t *testing.T) {
	var breaker BreakerConfig
	if breaker.shouldTrip(gobreaker.Counts{Requests: 100, TotalFailures: 100, ConsecutiveFailures: 100}) {
		t.Error("Zero config should never trip")
	}
}

func TestResilientConfig_With(t *testing.T) {
	config := DefaultResilientConfig()

	withTimeout := config.WithTimeout(2 * time.Second)
	if withTimeout.Timeout != 2*time.Second {
		t.Errorf("Expected timeout 2s, got %v", withTimeout.Timeout)
	}
	if config.Timeout != 500*time.Millisecond {
		t.Error("WithTimeout modified the original config")
	}

	cooled := config.WithCooldown(time.Second)
	if cooled.Breaker.Cooldown != time.Second {
		t.Errorf("Expected cooldown 1s, got %v", cooled.Breaker.Cooldown)
	}
	if config.Breaker.Cooldown != 15*time.Second {
		t.Error("WithCooldown modified the original config")
	}
}
