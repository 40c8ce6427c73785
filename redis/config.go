package redis

import (
	"time"

	"github.com/kbukum/taskgraph/validation"
)

// Config holds Redis connection configuration.
type Config struct {
	// Enabled switches snapshot storage from the state directory to Redis.
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr" mapstructure:"addr" json:"addr" validate:"omitempty,hostname_port"`

	// Password is the Redis server password.
	Password string `yaml:"password" mapstructure:"password" json:"-"`

	// DB is the Redis database number.
	DB int `yaml:"db" mapstructure:"db" json:"db" validate:"gte=0"`

	// PoolSize is the maximum number of socket connections.
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size" json:"poolSize" validate:"gte=0"`

	// MaxRetries is the maximum number of retries before giving up; -1
	// disables retries.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" json:"maxRetries" validate:"gte=-1"`

	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout" json:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"readTimeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"writeTimeout"`

	// KeyPrefix namespaces every key written.
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix" json:"keyPrefix"`

	// SnapshotTTL expires stored snapshots. Zero keeps them forever.
	SnapshotTTL time.Duration `yaml:"snapshot_ttl" mapstructure:"snapshot_ttl" json:"snapshotTTL" validate:"gte=0"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "taskgraph"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
