package kafka

import (
	"time"

	"github.com/kbukum/taskgraph/resilience"
	"github.com/kbukum/taskgraph/validation"
)

// DefaultTopic receives scheduling events when Config.Topic is empty.
const DefaultTopic = "taskgraph.events"

// Config holds Kafka connection and event sink configuration.
type Config struct {
	// Enabled controls whether events are published to Kafka.
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	// Brokers is the list of Kafka broker addresses.
	Brokers []string `yaml:"brokers" mapstructure:"brokers" json:"brokers" validate:"min=1,dive,hostname_port"`

	// Topic receives one message per scheduling event, keyed by run id.
	Topic string `yaml:"topic" mapstructure:"topic" json:"topic" validate:"required"`

	// TLS
	EnableTLS     bool   `yaml:"enable_tls" mapstructure:"enable_tls" json:"enableTLS"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify" mapstructure:"tls_skip_verify" json:"tlsSkipVerify"`
	TLSCAFile     string `yaml:"tls_ca_file" mapstructure:"tls_ca_file" json:"tlsCAFile,omitempty"`
	TLSCertFile   string `yaml:"tls_cert_file" mapstructure:"tls_cert_file" json:"tlsCertFile,omitempty"`
	TLSKeyFile    string `yaml:"tls_key_file" mapstructure:"tls_key_file" json:"tlsKeyFile,omitempty"`

	// SASL
	EnableSASL    bool   `yaml:"enable_sasl" mapstructure:"enable_sasl" json:"enableSASL"`
	SASLMechanism string `yaml:"sasl_mechanism" mapstructure:"sasl_mechanism" json:"saslMechanism,omitempty" validate:"omitempty,oneof=PLAIN SCRAM-SHA-256 SCRAM-SHA-512"`
	Username      string `yaml:"username" mapstructure:"username" json:"username,omitempty" validate:"required_if=EnableSASL true"`
	Password      string `yaml:"password" mapstructure:"password" json:"-"`

	// Writer settings
	Compression  string        `yaml:"compression" mapstructure:"compression" json:"compression" validate:"oneof=none gzip snappy lz4 zstd"`
	BatchSize    int           `yaml:"batch_size" mapstructure:"batch_size" json:"batchSize" validate:"gt=0"`
	BatchTimeout time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout" json:"batchTimeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"writeTimeout"`
	RequiredAcks int           `yaml:"required_acks" mapstructure:"required_acks" json:"requiredAcks" validate:"oneof=-1 0 1"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idleTimeout"`
	MetadataTTL  time.Duration `yaml:"metadata_ttl" mapstructure:"metadata_ttl" json:"metadataTTL"`

	// BufferSize bounds the events waiting to be written. Events published
	// while the buffer is full are dropped.
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size" json:"bufferSize" validate:"gt=0"`

	// Retry applies to each batch write.
	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry" json:"retry"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1 // all replicas
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.MetadataTTL == 0 {
		c.MetadataTTL = 6 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	if c.SASLMechanism == "" && c.EnableSASL {
		c.SASLMechanism = "PLAIN"
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialBackoff == 0 {
		c.Retry.InitialBackoff = 100 * time.Millisecond
	}
	if c.Retry.RetryIf == nil {
		c.Retry.RetryIf = IsRetryableError
	}
	c.Retry.ApplyDefaults()
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
