package metrics

import (
	"time"
)

// Collector defines the interface for collecting portal metrics.
// Implementations can export metrics to various backends (Prometheus, memory for tests).
type Collector interface {
	// Ledger
	RecordLedgerOperation(operation string, outcome string, duration time.Duration)
	RecordBalance(balance, pending float64)

	// Markdown rendering
	RecordRender(cached bool, duration time.Duration)

	// Render cache layers
	RecordCacheGet(layer string, hit bool, duration time.Duration)
	RecordCacheSet(layer string, success bool, duration time.Duration)
	RecordCacheDelete(layer string, success bool, duration time.Duration)
	RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration)

	// Circuit breaker
	RecordCircuitState(layer string, state CircuitState)

	// Audit trail
	RecordAuditWrite(sink string, success bool, duration time.Duration)
	RecordAuditDropped(sink string)
	RecordAuditQueueDepth(sink string, depth int)
}

// Outcome labels for ledger operations.
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeForbidden = "forbidden"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the backend has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is a no-op implementation of Collector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordLedgerOperation(operation string, outcome string, duration time.Duration) {}
func (NoOpCollector) RecordBalance(balance, pending float64)                                         {}
func (NoOpCollector) RecordRender(cached bool, duration time.Duration)                               {}
func (NoOpCollector) RecordCacheGet(layer string, hit bool, duration time.Duration)                  {}
func (NoOpCollector) RecordCacheSet(layer string, success bool, duration time.Duration)              {}
func (NoOpCollector) RecordCacheDelete(layer string, success bool, duration time.Duration)           {}
func (NoOpCollector) RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration)           {}
func (NoOpCollector) RecordCircuitState(layer string, state CircuitState)                            {}
func (NoOpCollector) RecordAuditWrite(sink string, success bool, duration time.Duration)             {}
func (NoOpCollector) RecordAuditDropped(sink string)                                                 {}
func (NoOpCollector) RecordAuditQueueDepth(sink string, depth int)                                   {}
