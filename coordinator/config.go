package coordinator

import (
	"github.com/google/uuid"

	"github.com/kbukum/taskgraph/errors"
	"github.com/kbukum/taskgraph/validation"
)

// DefaultMaxConcurrency is used when Config.MaxConcurrency is zero.
const DefaultMaxConcurrency = 3

// Config controls scheduling policy for one run.
type Config struct {
	// ParallelEnabled allows more than one task to run at a time.
	ParallelEnabled bool `yaml:"parallel_enabled" mapstructure:"parallel_enabled" json:"parallelEnabled"`
	// MaxConcurrency caps concurrent tasks when ParallelEnabled is set. It is
	// ignored, and may hold any value, in sequential mode.
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency" json:"maxConcurrency"`
	// CostBudget caps cumulative tokens; nil means unlimited.
	CostBudget *int64 `yaml:"cost_budget" mapstructure:"cost_budget" json:"costBudget,omitempty" validate:"omitempty,gte=0"`
	// RunID identifies the run in events and summaries.
	RunID string `yaml:"run_id" mapstructure:"run_id" json:"runId" validate:"required"`
}

// ApplyDefaults fills unset fields. A missing RunID gets a random UUID.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
}

// Validate checks the config after defaults are applied.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if c.ParallelEnabled && c.MaxConcurrency < 1 {
		return errors.InvalidInput("max_concurrency", "max_concurrency must be at least 1 in parallel mode")
	}
	return nil
}

// EffectiveConcurrency is the concurrency limit actually enforced.
func (c Config) EffectiveConcurrency() int {
	if !c.ParallelEnabled {
		return 1
	}
	return c.MaxConcurrency
}

// Budget returns a CostBudget value for n tokens.
func Budget(n int64) *int64 {
	return &n
}
