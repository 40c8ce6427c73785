package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/taskgraph/process"
)

// TokensPrefix marks a stdout line that reports token usage.
const TokensPrefix = "tokens_used="

// ProcessConfig configures a ProcessExecutor.
type ProcessConfig struct {
	// GracePeriod is the SIGTERM to SIGKILL delay on cancellation.
	GracePeriod time.Duration `yaml:"grace_period" mapstructure:"grace_period" json:"gracePeriod"`
	// Env is added to every task's environment.
	Env []string `yaml:"env" mapstructure:"env" json:"env,omitempty"`
	// Output, if set, receives the combined output of every task.
	Output io.Writer `yaml:"-" mapstructure:"-" json:"-"`
}

// ProcessExecutor runs a task's command with sh -c in its worktree.
type ProcessExecutor struct {
	cfg ProcessConfig
}

// NewProcessExecutor creates a ProcessExecutor.
func NewProcessExecutor(cfg ProcessConfig) *ProcessExecutor {
	return &ProcessExecutor{cfg: cfg}
}

// Execute maps the process outcome onto a Result: exit 0 is succeeded,
// cancellation is canceled and anything else is failed with reason
// exit_code:<n>. A task without a command fails with reason missing_command.
func (e *ProcessExecutor) Execute(ctx context.Context, task Task) (Result, error) {
	if strings.TrimSpace(task.Command) == "" {
		return Failed("missing_command", 0), nil
	}

	cmd := process.Shell(task.Command, task.WorktreePath)
	cmd.GracePeriod = e.cfg.GracePeriod
	cmd.Output = e.cfg.Output
	cmd.Env = append(append([]string(nil), e.cfg.Env...), taskEnv(task)...)

	res, err := process.Run(ctx, cmd)
	if res == nil {
		return Result{}, err
	}

	tokens := parseTokens(res.Stdout)
	switch {
	case res.Canceled:
		return Canceled(tokens), nil
	case err != nil:
		return Failed(fmt.Sprintf("exit_code:%d", res.ExitCode), tokens), nil
	default:
		return Succeeded(tokens), nil
	}
}

func taskEnv(task Task) []string {
	return []string{
		"TASKGRAPH_RUN_ID=" + task.RunID,
		"TASKGRAPH_TASK_ID=" + task.ID,
		"TASKGRAPH_TASK_KEY=" + task.HumanKey,
		"TASKGRAPH_ATTEMPT=" + strconv.Itoa(task.Attempt),
		"TASKGRAPH_IDEMPOTENCY_KEY=" + task.IdempotencyKey,
		"TASKGRAPH_WORKTREE=" + task.WorktreePath,
	}
}

// parseTokens returns the value of the last tokens_used=<n> line in out.
// Malformed values are ignored.
func parseTokens(out []byte) int64 {
	var tokens int64
	for raw := range bytes.Lines(out) {
		line := strings.TrimSpace(string(raw))
		v, ok := strings.CutPrefix(line, TokensPrefix)
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n >= 0 {
			tokens = n
		}
	}
	return tokens
}
