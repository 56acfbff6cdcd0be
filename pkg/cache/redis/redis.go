// Package redis is the shared level of the render cache, backed by rueidis.
package redis

import (
	"context"
	"fmt"
	"time"

	"intranet-portal/pkg/cache"

	"github.com/redis/rueidis"
)

// Config selects and authenticates against a Redis deployment.
type Config struct {
	// Addr is the server address for single node mode.
	// Examples: "localhost:6379", "redis.example.com:6379"
	Addr string `mapstructure:"addr"`
	// ClusterAddrs enables cluster mode when set.
	ClusterAddrs []string `mapstructure:"cluster_addrs"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	// DB is the database number. Cluster mode only supports 0.
	DB           int           `mapstructure:"db"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns a configuration for a local single node.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		KeyPrefix:    "portal:",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Enabled reports whether any address is configured.
func (c Config) Enabled() bool {
	return c.Addr != "" || len(c.ClusterAddrs) > 0
}

// NewClient connects to Redis and verifies the connection with PING. The
// client is shared by the render cache and the ledger lock.
func NewClient(config Config) (rueidis.Client, error) {
	var initAddress []string
	switch {
	case len(config.ClusterAddrs) > 0:
		initAddress = config.ClusterAddrs
	case config.Addr != "":
		initAddress = []string{config.Addr}
	default:
		return nil, fmt.Errorf("redis: no addresses configured (set Addr or ClusterAddrs)")
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:      initAddress,
		Username:         config.Username,
		Password:         config.Password,
		SelectDB:         config.DB,
		ConnWriteTimeout: config.WriteTimeout,
		MaxFlushDelay:    100 * time.Microsecond,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	return client, nil
}

// RedisCache stores rendered HTML under prefixed keys.
type RedisCache struct {
	client    rueidis.Client
	name      string
	keyPrefix string
	ownClient bool
}

// New wraps an existing client. Closing the cache leaves the client open.
func New(client rueidis.Client, name, keyPrefix string) *RedisCache {
	if name == "" {
		name = "redis"
	}
	return &RedisCache{
		client:    client,
		name:      name,
		keyPrefix: keyPrefix,
	}
}

// NewRedisCache connects with config and owns the resulting client.
func NewRedisCache(name string, config Config) (*RedisCache, error) {
	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	r := New(client, name, config.KeyPrefix)
	r.ownClient = true
	return r, nil
}

// Get returns the stored bytes or cache.ErrKeyNotFound.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := r.client.B().Get().Key(r.keyPrefix + key).Build()
	resp := r.client.Do(ctx, cmd)

	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, cache.ErrKeyNotFound
		}
		return nil, cache.WrapError(err, r.name, "get")
	}

	data, err := resp.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("redis get: failed to read response: %w", err)
	}
	return data, nil
}

// Set stores value with an expiry of ttl. A non-positive ttl stores
// without expiry.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	fullKey := r.keyPrefix + key

	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = r.client.B().Set().Key(fullKey).Value(rueidis.BinaryString(value)).Px(ttl).Build()
	} else {
		cmd = r.client.B().Set().Key(fullKey).Value(rueidis.BinaryString(value)).Build()
	}
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return cache.WrapError(err, r.name, "set")
	}
	return nil
}

// Delete removes key.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	cmd := r.client.B().Del().Key(r.keyPrefix + key).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return cache.WrapError(err, r.name, "delete")
	}
	return nil
}

// Name returns the layer name.
func (r *RedisCache) Name() string {
	return r.name
}

// Close releases the client if this cache created it.
func (r *RedisCache) Close() error {
	if r.ownClient {
		r.client.Close()
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	cmd := r.client.B().Ping().Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of key, -1 for no expiry, or
// cache.ErrKeyNotFound.
func (r *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	cmd := r.client.B().Pttl().Key(r.keyPrefix + key).Build()
	ms, err := r.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("redis ttl: %w", err)
	}

	switch ms {
	case -2:
		return 0, cache.ErrKeyNotFound
	case -1:
		return -1, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}
