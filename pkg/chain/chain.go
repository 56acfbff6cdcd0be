// Package chain reads through an ordered list of cache layers, fastest
// first, and refills the faster layers on a deeper hit.
package chain

import (
	"context"
	"errors"
	"strings"
	"time"

	"intranet-portal/pkg/cache"
	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/metrics"
	"intranet-portal/pkg/resilience"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config tunes a Chain. The zero value is usable.
type Config struct {
	// WarmTTL is the ttl used when copying a deeper hit into faster layers
	// (default: 1h)
	WarmTTL time.Duration

	// L1Timeout bounds operations on the first layer (default: 100ms)
	L1Timeout time.Duration

	// Timeout bounds operations on every deeper layer (default: 1s)
	Timeout time.Duration

	Metrics metrics.Collector
	Logger  *logging.Logger
}

// Chain manages multiple cache layers with fallback and warm-up.
type Chain struct {
	layers  []cache.Layer
	sf      singleflight.Group
	warmTTL time.Duration
	metrics metrics.Collector
	logger  *logging.Logger
}

// New creates a chain over layers, ordered from fastest to slowest. Every
// layer is wrapped in a resilience.ResilientLayer.
func New(config Config, layers ...cache.Layer) (*Chain, error) {
	if len(layers) == 0 {
		return nil, errors.New("chain: at least one layer required")
	}
	if config.WarmTTL <= 0 {
		config.WarmTTL = time.Hour
	}
	if config.L1Timeout <= 0 {
		config.L1Timeout = 100 * time.Millisecond
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Second
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoOpCollector{}
	}
	if config.Logger == nil {
		config.Logger = logging.NewNoOpLogger()
	}

	resilient := make([]cache.Layer, len(layers))
	for i, layer := range layers {
		rc := resilience.DefaultResilientConfig().WithTimeout(config.Timeout)
		if i == 0 {
			rc = rc.WithTimeout(config.L1Timeout)
		}
		resilient[i] = resilience.NewResilientLayer(layer, rc, config.Metrics, config.Logger)
	}

	return &Chain{
		layers:  resilient,
		warmTTL: config.WarmTTL,
		metrics: config.Metrics,
		logger:  config.Logger.Named("chain"),
	}, nil
}

// Get returns the first hit walking down the layers. Concurrent calls for
// the same key share one walk.
func (c *Chain) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		return c.getWithFallback(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// GetOrLoad returns the cached value for key or, on a miss in every layer,
// calls load and stores its result in all layers. cached reports whether
// the value came from a layer. Concurrent callers share one load.
func (c *Chain) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) ([]byte, error)) (value []byte, cached bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	type loaded struct {
		value  []byte
		cached bool
	}

	result, err, _ := c.sf.Do("load:"+key, func() (interface{}, error) {
		value, err := c.getWithFallback(ctx, key)
		if err == nil {
			return loaded{value: value, cached: true}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		value, err = load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, value, ttl); err != nil {
			c.logger.Warn("cache fill failed", zap.String("key", key), zap.Error(err))
		}
		return loaded{value: value}, nil
	})
	if err != nil {
		return nil, false, err
	}
	l := result.(loaded)
	return l.value, l.cached, nil
}

func (c *Chain) getWithFallback(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	var lastErr error

	for i, layer := range c.layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		value, err := layer.Get(ctx, key)
		if err != nil {
			// misses and unavailable layers both fall through to the next one
			lastErr = err
			continue
		}

		if i > 0 {
			c.warmUpperLayers(ctx, key, value, i)
		}
		c.metrics.RecordChainGet(true, i, time.Since(start))
		return value, nil
	}

	c.metrics.RecordChainGet(false, -1, time.Since(start))
	if lastErr != nil && !cache.IsNotFound(lastErr) {
		return nil, lastErr
	}
	return nil, cache.ErrKeyNotFound
}

// warmUpperLayers copies a hit at hitIndex into every faster layer.
func (c *Chain) warmUpperLayers(ctx context.Context, key string, value []byte, hitIndex int) {
	for i := hitIndex - 1; i >= 0; i-- {
		if err := c.layers[i].Set(ctx, key, value, c.warmTTL); err != nil {
			c.logger.Debug("warm-up failed",
				zap.String("layer", c.layers[i].Name()),
				zap.Error(err),
			)
		}
	}
}

// Set writes the value to all layers. Every layer is attempted; the last
// error is returned.
func (c *Chain) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var lastErr error
	for _, layer := range c.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := layer.Set(ctx, key, value, ttl); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Delete removes the key from all layers. Every layer is attempted; the
// last error is returned.
func (c *Chain) Delete(ctx context.Context, key string) error {
	var lastErr error
	for _, layer := range c.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := layer.Delete(ctx, key); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close closes all layers and returns the last error.
func (c *Chain) Close() error {
	var lastErr error
	for _, layer := range c.layers {
		if err := layer.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Len returns the number of layers in the chain.
func (c *Chain) Len() int {
	return len(c.layers)
}

// String lists the layer names, fastest first.
func (c *Chain) String() string {
	names := make([]string, len(c.layers))
	for i, layer := range c.layers {
		names[i] = layer.Name()
	}
	return "chain(" + strings.Join(names, " -> ") + ")"
}
