// Package config loads portal settings from defaults, an optional YAML file
// and PORTAL_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"intranet-portal/pkg/cache/redis"
	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/storage/postgres"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PORTAL_DATABASE_HOST.
const EnvPrefix = "PORTAL"

// Config holds application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    postgres.Config   `mapstructure:"database"`
	Redis       redis.Config      `mapstructure:"redis"`
	Logging     logging.Config    `mapstructure:"logging"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Uploads     UploadsConfig     `mapstructure:"uploads"`
	RenderCache RenderCacheConfig `mapstructure:"render_cache"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the store backend: "postgres" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// AuthConfig holds session settings.
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	CookieName string        `mapstructure:"cookie_name"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`

	// SecureCookies marks the session cookie Secure; enable behind TLS.
	SecureCookies bool `mapstructure:"secure_cookies"`
}

// UploadsConfig holds attachment storage settings.
type UploadsConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

// RenderCacheConfig sizes the in-process level of the render cache.
type RenderCacheConfig struct {
	MemorySize int           `mapstructure:"memory_size"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// Load reads configuration. An empty path searches for portal.yaml in the
// working directory and /etc/intranet-portal; a missing file is not an
// error unless path was given explicitly.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("portal")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/intranet-portal")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// setDefaults registers every key, which also lets AutomaticEnv see keys
// that appear in no file.
func setDefaults(v *viper.Viper) {
	db := postgres.DefaultConfig()
	rd := redis.DefaultConfig()
	lg := logging.DefaultConfig()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("database.host", db.Host)
	v.SetDefault("database.port", db.Port)
	v.SetDefault("database.user", db.User)
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", db.Database)
	v.SetDefault("database.sslmode", db.SSLMode)
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)

	// Redis stays off until an address is configured.
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.cluster_addrs", []string{})
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", rd.KeyPrefix)
	v.SetDefault("redis.dial_timeout", rd.DialTimeout)
	v.SetDefault("redis.write_timeout", rd.WriteTimeout)

	v.SetDefault("logging.level", lg.Level)
	v.SetDefault("logging.format", lg.Format)
	v.SetDefault("logging.output_paths", lg.OutputPaths)
	v.SetDefault("logging.error_output_paths", lg.ErrorOutputPaths)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.enable_caller", false)
	v.SetDefault("logging.enable_stacktrace", false)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.cookie_name", "portal_session")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.secure_cookies", false)

	v.SetDefault("uploads.dir", "./uploads")
	v.SetDefault("uploads.max_bytes", 10<<20)

	v.SetDefault("render_cache.memory_size", 1000)
	v.SetDefault("render_cache.ttl", time.Hour)
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret must be set"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Uploads.MaxBytes <= 0 {
		errs = append(errs, errors.New("uploads.max_bytes must be positive"))
	}
	if c.Uploads.Dir == "" {
		errs = append(errs, errors.New("uploads.dir must be set"))
	}
	if c.RenderCache.MemorySize <= 0 {
		errs = append(errs, errors.New("render_cache.memory_size must be positive"))
	}
	if c.RenderCache.TTL <= 0 {
		errs = append(errs, errors.New("render_cache.ttl must be positive"))
	}
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address must be set"))
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
