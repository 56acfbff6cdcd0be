package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"intranet-portal/pkg/cache"
	"intranet-portal/pkg/cache/memory"
	"intranet-portal/pkg/cache/mock"
	"intranet-portal/pkg/metrics"
	metricsmemory "intranet-portal/pkg/metrics/memory"
)

func aggressiveConfig(failures uint32) ResilientConfig {
	return ResilientConfig{
		Timeout: 50 * time.Millisecond,
		Breaker: BreakerConfig{
			HalfOpenProbes:      1,
			Window:              time.Minute,
			Cooldown:            time.Minute,
			ConsecutiveFailures: failures,
		},
	}
}

func TestResilientLayer_SetGetDelete(t *testing.T) {
	mem := memory.NewMemoryCache(memory.MemoryCacheConfig{Name: "L1"})
	collector := metricsmemory.NewMemoryCollector()
	rl := NewResilientLayer(mem, DefaultResilientConfig(), collector, nil)
	defer rl.Close()
	ctx := context.Background()

	if rl.Name() != "L1" {
		t.Errorf("Expected name L1, got %q", rl.Name())
	}

	if err := rl.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err := rl.Get(ctx, "k")
	if err != nil || string(value) != "v" {
		t.Fatalf("Expected v, got %q (%v)", value, err)
	}
	if err := rl.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := rl.Get(ctx, "k"); !cache.IsNotFound(err) {
		t.Errorf("Expected miss, got %v", err)
	}

	lm := collector.GetLayerMetrics("L1")
	if lm == nil {
		t.Fatal("Expected metrics for L1")
	}
	if lm.Hits != 1 || lm.Misses != 1 || lm.Sets != 1 || lm.Deletes != 1 {
		t.Errorf("Unexpected layer metrics %+v", lm)
	}
}

func TestResilientLayer_MissesDoNotTripCircuit(t *testing.T) {
	mem := memory.NewMemoryCache(memory.MemoryCacheConfig{Name: "L1"})
	rl := NewResilientLayer(mem, aggressiveConfig(3), nil, nil)
	defer rl.Close()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := rl.Get(ctx, "nonexistent")
		if cache.IsCircuitOpen(err) {
			t.Fatalf("Circuit opened after %d misses", i+1)
		}
		if !cache.IsNotFound(err) {
			t.Fatalf("Expected miss, got %v", err)
		}
	}
	if rl.State() != metrics.CircuitClosed {
		t.Errorf("Expected closed circuit, got %s", rl.State())
	}
}

func TestResilientLayer_FailuresTripCircuit(t *testing.T) {
	failing := mock.NewFailingLayer("redis", cache.ErrLayerUnavailable)
	collector := metricsmemory.NewMemoryCollector()
	rl := NewResilientLayer(failing, aggressiveConfig(5), collector, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := rl.Get(ctx, "k")
		if i < 5 {
			if !cache.IsUnavailable(err) {
				t.Errorf("Call %d: expected ErrLayerUnavailable, got %v", i, err)
			}
		} else if !cache.IsCircuitOpen(err) {
			t.Errorf("Call %d: expected open circuit, got %v", i, err)
		}
	}

	if failing.GetCalls() != 5 {
		t.Errorf("Expected open circuit to shield the layer after 5 calls, got %d", failing.GetCalls())
	}
	if lm := collector.GetLayerMetrics("redis"); lm == nil || lm.CircuitOpens != 1 {
		t.Errorf("Expected one circuit open recorded, got %+v", lm)
	}
	if err := rl.Set(ctx, "k", []byte("v"), 0); !cache.IsCircuitOpen(err) {
		t.Errorf("Expected Set rejected by open circuit, got %v", err)
	}
}

func TestResilientLayer_Timeout(t *testing.T) {
	slow := &mock.MockLayer{
		GetFunc: func(ctx context.Context, key string) ([]byte, error) {
			select {
			case <-time.After(time.Second):
				return []byte("late"), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	rl := NewResilientLayer(slow, aggressiveConfig(100), nil, nil)

	start := time.Now()
	_, err := rl.Get(context.Background(), "k")
	if !cache.IsTimeout(err) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Timeout not enforced, took %v", elapsed)
	}
}

func TestResilientLayer_PassesThroughOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	rl := NewResilientLayer(mock.NewFailingLayer("x", boom), aggressiveConfig(100), nil, nil)

	if err := rl.Delete(context.Background(), "k"); !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}
}
