// Package cache defines the layers of the markdown render cache. Values are
// opaque byte slices, normally sanitized HTML.
package cache

import (
	"context"
	"time"
)

// Layer is one level of the render cache.
type Layer interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. A zero ttl means the layer default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Name identifies the layer in logs and metrics.
	Name() string

	Close() error
}
