package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/taskgraph/coordinator"
)

func TestProcessExecutor_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		command string
		status  coordinator.CompletionStatus
		reason  string
		tokens  int64
	}{
		{"success", "true", coordinator.StatusSucceeded, "", 0},
		{"tokens reported", "echo hi; echo tokens_used=42", coordinator.StatusSucceeded, "", 42},
		{"exit code", "echo tokens_used=5; exit 3", coordinator.StatusFailed, "exit_code:3", 5},
		{"missing command", "  ", coordinator.StatusFailed, "missing_command", 0},
		{"task env", `test "$TASKGRAPH_TASK_ID" = build`, coordinator.StatusSucceeded, "", 0},
	}
	exec := NewProcessExecutor(ProcessConfig{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := exec.Execute(context.Background(), Task{ID: "build", Command: tt.command, Attempt: 1})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Status != tt.status || res.Reason != tt.reason || res.TokensUsed != tt.tokens {
				t.Errorf("expected %s/%q/%d, got %+v", tt.status, tt.reason, tt.tokens, res)
			}
		})
	}
}

func TestProcessExecutor_Canceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	exec := NewProcessExecutor(ProcessConfig{GracePeriod: 200 * time.Millisecond})
	res, err := exec.Execute(ctx, Task{ID: "slow", Command: "sleep 10"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != coordinator.StatusCanceled {
		t.Errorf("expected canceled, got %+v", res)
	}
}

func TestParseTokens(t *testing.T) {
	tests := []struct {
		out  string
		want int64
	}{
		{"", 0},
		{"tokens_used=7\n", 7},
		{"tokens_used=7\nnoise\ntokens_used=9", 9},
		{"  tokens_used= 12  ", 12},
		{"tokens_used=abc", 0},
		{"tokens_used=-4", 0},
		{"prefix tokens_used=3", 0},
		{strings.Repeat("x", 70000) + "\ntokens_used=42\n", 42},
		{"tokens_used=5\n" + strings.Repeat("y", 200000), 5},
	}
	for _, tt := range tests {
		if got := parseTokens([]byte(tt.out)); got != tt.want {
			t.Errorf("parseTokens(%.40q): expected %d, got %d", tt.out, tt.want, got)
		}
	}
}
