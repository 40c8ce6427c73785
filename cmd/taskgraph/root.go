package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/taskgraph/config"
	"github.com/kbukum/taskgraph/coordinator"
	"github.com/kbukum/taskgraph/kafka"
	"github.com/kbukum/taskgraph/logger"
	"github.com/kbukum/taskgraph/observability"
	"github.com/kbukum/taskgraph/redis"
	"github.com/kbukum/taskgraph/runner"
	"github.com/kbukum/taskgraph/server"
)

const appName = "taskgraph"

// AppConfig is the full configuration of the taskgraph binary.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Scheduler coordinator.Config   `yaml:"scheduler" mapstructure:"scheduler"`
	Runner    runner.Config        `yaml:"runner" mapstructure:"runner"`
	Process   runner.ProcessConfig `yaml:"process" mapstructure:"process"`
	Server    server.Config        `yaml:"server" mapstructure:"server"`
	Redis     redis.Config         `yaml:"redis" mapstructure:"redis"`
	Kafka     kafka.Config         `yaml:"kafka" mapstructure:"kafka"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// ApplyDefaults fills unset fields. Scheduler defaults are left to
// coordinator.New so that a run id from the task file can still apply.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	c.Runner.Retry.ApplyDefaults()
}

// snapshotStore returns where run snapshots are kept: Redis when enabled,
// else the runner's state directory. It returns nil when neither is set.
func (c *AppConfig) snapshotStore(rc *redis.Component) coordinator.SnapshotStore {
	switch {
	case rc != nil:
		return rc.Store()
	case c.Runner.StateDir != "":
		return coordinator.DirStore{Dir: c.Runner.StateDir}
	default:
		return nil
	}
}

// Validate checks the sections that are not validated by their consumers.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

type rootOptions struct {
	configFile string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Dependency-aware task scheduler",
		Long: `taskgraph schedules tasks whose ordering is constrained by blocked-by
relations. Tasks start as soon as all their blockers have succeeded, within
a concurrency limit and an optional token budget. A failed task causes its
dependents to be skipped.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default is ./taskgraph.yml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", ".env file to load")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, disabled)")

	cmd.AddCommand(
		newValidateCmd(opts),
		newPlanCmd(opts),
		newRunCmd(opts),
		newStatusCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the application config and builds its logger.
func (o *rootOptions) load() (*AppConfig, *logger.Logger, error) {
	var loaderOpts []config.LoaderOption
	if o.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(o.configFile))
	}
	if o.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(o.envFile))
	}

	cfg := &AppConfig{}
	if err := config.Load(appName, cfg, loaderOpts...); err != nil {
		return nil, nil, err
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		if err := cfg.Logging.Validate(); err != nil {
			return nil, nil, err
		}
	}
	return cfg, logger.New(&cfg.Logging, cfg.Name), nil
}
