package memory

import (
	"sync"
	"time"

	"intranet-portal/pkg/metrics"
)

// MemoryCollector implements metrics.Collector in memory for tests.
type MemoryCollector struct {
	mu sync.RWMutex

	// Per-layer cache metrics
	layerMetrics map[string]*LayerMetrics

	// Ledger operations keyed by "operation/outcome"
	ledgerOps map[string]int64
	balance   float64
	pending   float64

	renders       int64
	cachedRenders int64

	// Audit trail keyed by sink
	auditWrites  map[string]int64
	auditErrors  map[string]int64
	auditDropped map[string]int64

	// Chain-level metrics
	chainHits        int64
	chainMisses      int64
	chainHitsByLayer map[int]int64
}

// LayerMetrics holds metrics for a single cache layer.
type LayerMetrics struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
	Errors  int64

	CircuitState metrics.CircuitState
	CircuitOpens int64

	GetLatencies []time.Duration
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	mc := &MemoryCollector{}
	mc.reset()
	return mc
}

// layer returns the LayerMetrics for name, creating it if needed.
// Callers must hold mc.mu.
func (mc *MemoryCollector) layer(name string) *LayerMetrics {
	lm, ok := mc.layerMetrics[name]
	if !ok {
		lm = &LayerMetrics{}
		mc.layerMetrics[name] = lm
	}
	return lm
}

// RecordLedgerOperation counts a ledger operation by outcome.
func (mc *MemoryCollector) RecordLedgerOperation(operation string, outcome string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.ledgerOps[operation+"/"+outcome]++
}

// RecordBalance stores the last reported balances.
func (mc *MemoryCollector) RecordBalance(balance, pending float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.balance = balance
	mc.pending = pending
}

// RecordRender counts a markdown render.
func (mc *MemoryCollector) RecordRender(cached bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.renders++
	if cached {
		mc.cachedRenders++
	}
}

// RecordCacheGet records a cache get operation.
func (mc *MemoryCollector) RecordCacheGet(layer string, hit bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	if hit {
		lm.Hits++
	} else {
		lm.Misses++
	}
	lm.GetLatencies = append(lm.GetLatencies, duration)
}

// RecordCacheSet records a cache set operation.
func (mc *MemoryCollector) RecordCacheSet(layer string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	lm.Sets++
	if !success {
		lm.Errors++
	}
}

// RecordCacheDelete records a cache delete operation.
func (mc *MemoryCollector) RecordCacheDelete(layer string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	lm.Deletes++
	if !success {
		lm.Errors++
	}
}

// RecordCircuitState records the current circuit breaker state.
func (mc *MemoryCollector) RecordCircuitState(layer string, state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	if lm.CircuitState != metrics.CircuitOpen && state == metrics.CircuitOpen {
		lm.CircuitOpens++
	}
	lm.CircuitState = state
}

// RecordChainGet records a chain-level get operation.
func (mc *MemoryCollector) RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if hit {
		mc.chainHits++
		mc.chainHitsByLayer[layerIndex]++
	} else {
		mc.chainMisses++
	}
}

// RecordAuditWrite records an audit event handed to a sink.
func (mc *MemoryCollector) RecordAuditWrite(sink string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.auditWrites[sink]++
	if !success {
		mc.auditErrors[sink]++
	}
}

// RecordAuditDropped records an audit event lost to backpressure.
func (mc *MemoryCollector) RecordAuditDropped(sink string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.auditDropped[sink]++
}

// RecordAuditQueueDepth is accepted but not retained.
func (mc *MemoryCollector) RecordAuditQueueDepth(sink string, depth int) {}

// Snapshot is a copy of the collected metrics.
type Snapshot struct {
	LayerMetrics     map[string]LayerMetrics
	LedgerOperations map[string]int64
	Balance          float64
	Pending          float64
	Renders          int64
	CachedRenders    int64
	AuditWrites      map[string]int64
	AuditErrors      map[string]int64
	AuditDropped     map[string]int64
	ChainHits        int64
	ChainMisses      int64
	ChainHitsByLayer map[int]int64
}

// Snapshot returns a copy of the current metrics state.
func (mc *MemoryCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := Snapshot{
		LayerMetrics:     make(map[string]LayerMetrics, len(mc.layerMetrics)),
		LedgerOperations: copyCounts(mc.ledgerOps),
		Balance:          mc.balance,
		Pending:          mc.pending,
		Renders:          mc.renders,
		CachedRenders:    mc.cachedRenders,
		AuditWrites:      copyCounts(mc.auditWrites),
		AuditErrors:      copyCounts(mc.auditErrors),
		AuditDropped:     copyCounts(mc.auditDropped),
		ChainHits:        mc.chainHits,
		ChainMisses:      mc.chainMisses,
		ChainHitsByLayer: make(map[int]int64, len(mc.chainHitsByLayer)),
	}
	for name, lm := range mc.layerMetrics {
		snapshot.LayerMetrics[name] = *lm
	}
	for idx, hits := range mc.chainHitsByLayer {
		snapshot.ChainHitsByLayer[idx] = hits
	}
	return snapshot
}

// LedgerCount returns how often operation ended with outcome.
func (mc *MemoryCollector) LedgerCount(operation, outcome string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.ledgerOps[operation+"/"+outcome]
}

// GetLayerMetrics returns a copy of the metrics for a specific layer.
func (mc *MemoryCollector) GetLayerMetrics(layer string) *LayerMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if lm, exists := mc.layerMetrics[layer]; exists {
		c := *lm
		return &c
	}
	return nil
}

// Reset clears all collected metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.reset()
}

func (mc *MemoryCollector) reset() {
	mc.layerMetrics = make(map[string]*LayerMetrics)
	mc.ledgerOps = make(map[string]int64)
	mc.balance, mc.pending = 0, 0
	mc.renders, mc.cachedRenders = 0, 0
	mc.auditWrites = make(map[string]int64)
	mc.auditErrors = make(map[string]int64)
	mc.auditDropped = make(map[string]int64)
	mc.chainHits, mc.chainMisses = 0, 0
	mc.chainHitsByLayer = make(map[int]int64)
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
