// Package resilience guards cache layers with a timeout and a circuit
// breaker so a slow or failing Redis cannot stall page rendering.
package resilience

import (
	"context"
	"errors"
	"time"

	"intranet-portal/pkg/cache"
	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ResilientLayer wraps a cache.Layer with circuit breaker and timeout
// protection. A miss is a normal answer and never counts as a failure.
type ResilientLayer struct {
	layer   cache.Layer
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.Collector
	logger  *logging.Logger
}

// NewResilientLayer wraps layer. collector and logger may be nil.
func NewResilientLayer(layer cache.Layer, config ResilientConfig, collector metrics.Collector, logger *logging.Logger) *ResilientLayer {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	logger = logger.Named("resilience").With(zap.String("layer", layer.Name()))

	rl := &ResilientLayer{
		layer:   layer,
		timeout: config.Timeout,
		metrics: collector,
		logger:  logger,
	}

	breaker := config.Breaker
	settings := gobreaker.Settings{
		Name:        layer.Name(),
		MaxRequests: breaker.HalfOpenProbes,
		Interval:    breaker.Window,
		Timeout:     breaker.Cooldown,
		ReadyToTrip: breaker.shouldTrip,
		IsSuccessful: func(err error) bool {
			return err == nil || cache.IsNotFound(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			rl.metrics.RecordCircuitState(name, circuitState(to))
		},
	}
	rl.cb = gobreaker.NewCircuitBreaker(settings)

	return rl
}

func circuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

// Name returns the name of the underlying cache layer.
func (rl *ResilientLayer) Name() string {
	return rl.layer.Name()
}

// State returns the current circuit breaker state.
func (rl *ResilientLayer) State() metrics.CircuitState {
	return circuitState(rl.cb.State())
}

// Get reads key through the breaker.
func (rl *ResilientLayer) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	var value []byte
	err := rl.execute(ctx, "get", key, func(ctx context.Context) error {
		var err error
		value, err = rl.layer.Get(ctx, key)
		return err
	})
	rl.metrics.RecordCacheGet(rl.layer.Name(), err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set writes key through the breaker.
func (rl *ResilientLayer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := rl.execute(ctx, "set", key, func(ctx context.Context) error {
		return rl.layer.Set(ctx, key, value, ttl)
	})
	rl.metrics.RecordCacheSet(rl.layer.Name(), err == nil, time.Since(start))
	return err
}

// Delete removes key through the breaker.
func (rl *ResilientLayer) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := rl.execute(ctx, "delete", key, func(ctx context.Context) error {
		return rl.layer.Delete(ctx, key)
	})
	rl.metrics.RecordCacheDelete(rl.layer.Name(), err == nil, time.Since(start))
	return err
}

// execute runs op under the timeout and the breaker and maps breaker and
// deadline failures onto the cache sentinels.
func (rl *ResilientLayer) execute(ctx context.Context, op, key string, fn func(context.Context) error) error {
	start := time.Now()
	if rl.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rl.timeout)
		defer cancel()
	}

	_, err := rl.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if err == nil || cache.IsNotFound(err) {
		return err
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		rl.logger.Debug("circuit breaker rejected request", zap.String("operation", op))
		return cache.ErrCircuitOpen
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		rl.logger.Warn("operation timeout",
			zap.String("operation", op),
			zap.String("key", key),
			zap.Duration("timeout", rl.timeout),
		)
		return cache.ErrTimeout
	}

	rl.logger.Error("cache operation failed",
		zap.String("operation", op),
		zap.String("key", key),
		zap.String("class", cache.ClassifyError(err)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return err
}

// Close closes the underlying cache layer.
func (rl *ResilientLayer) Close() error {
	return rl.layer.Close()
}
