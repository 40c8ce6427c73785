package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newJSONLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(buf, &Config{Level: level, Format: FormatJSON}, "test")
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", line, err)
	}
	return m
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "info")
	l.Info("task started", Fields(FieldTaskID, "a"))

	m := decodeLine(t, &buf)
	if m["message"] != "task started" {
		t.Errorf("expected message, got %v", m["message"])
	}
	if m[FieldTaskID] != "a" {
		t.Errorf("expected task_id=a, got %v", m[FieldTaskID])
	}
	if m[FieldComponent] != "test" {
		t.Errorf("expected component=test, got %v", m[FieldComponent])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "warn")
	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}
	l.Warn("shown")
	if buf.Len() == 0 {
		t.Fatal("expected warn to be written")
	}
	if l.Level() != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %s", l.Level())
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "invalid-level")
	if l.Level() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %s", l.Level())
	}
}

func TestWithRunAndTask(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "debug").WithRun("run-1").WithTask("t1", "SD-1")
	l.Debug("x")

	m := decodeLine(t, &buf)
	if m[FieldRunID] != "run-1" {
		t.Errorf("expected run_id, got %v", m[FieldRunID])
	}
	if m[FieldTaskKey] != "SD-1" {
		t.Errorf("expected task_key, got %v", m[FieldTaskKey])
	}
}

func TestWithTask_SameKeyOmitted(t *testing.T) {
	var buf bytes.Buffer
	newJSONLogger(&buf, "info").WithTask("t1", "t1").Info("x")
	m := decodeLine(t, &buf)
	if _, ok := m[FieldTaskKey]; ok {
		t.Error("expected task_key to be omitted when equal to id")
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "info")
	ctx := ContextWithRequestID(context.Background(), "req-9")
	l.WithContext(ctx).Info("x")
	m := decodeLine(t, &buf)
	if m[FieldRequestID] != "req-9" {
		t.Errorf("expected request_id, got %v", m[FieldRequestID])
	}

	if got := l.WithContext(context.Background()); got != l {
		t.Error("expected same logger when context carries nothing")
	}
}

func TestWithErrorAndFields(t *testing.T) {
	var buf bytes.Buffer
	newJSONLogger(&buf, "info").
		WithError(fmt.Errorf("boom")).
		WithFields(map[string]interface{}{"k": "v"}).
		Error("failed")
	m := decodeLine(t, &buf)
	if m["error"] != "boom" || m["k"] != "v" {
		t.Errorf("unexpected fields %v", m)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("discarded")
	l.WithComponent("x").Error("discarded")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: "info", Format: FormatConsole, NoColor: true}, "cli")
	l.Info("hello")
	out := buf.String()
	if !strings.Contains(out, "[INF]") || !strings.Contains(out, "hello") {
		t.Errorf("unexpected console output %q", out)
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != FormatConsole {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected output 'stderr', got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp to be true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json", Output: "stderr"}, false},
		{"valid console", Config{Level: "debug", Format: "console", Output: "stdout"}, false},
		{"invalid level", Config{Level: "bad", Format: "json", Output: "stderr"}, true},
		{"invalid format", Config{Level: "info", Format: "xml", Output: "stderr"}, true},
		{"invalid output", Config{Level: "info", Format: "json", Output: "file"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name     string
		input    []interface{}
		expected map[string]interface{}
	}{
		{"key-value pairs", []interface{}{"op", "save", "id", 42}, map[string]interface{}{"op": "save", "id": 42}},
		{"odd number of args", []interface{}{"op", "save", "trailing"}, map[string]interface{}{"op": "save"}},
		{"non-string key skipped", []interface{}{123, "value", "key", "val"}, map[string]interface{}{"key": "val"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Fields(tc.input...)
			if len(result) != len(tc.expected) {
				t.Fatalf("expected %d fields, got %d", len(tc.expected), len(result))
			}
			for k, v := range tc.expected {
				if result[k] != v {
					t.Errorf("Fields[%q] = %v, expected %v", k, result[k], v)
				}
			}
		})
	}
}

func TestErrorAndDurationFields(t *testing.T) {
	fields := ErrorFields("write_snapshot", fmt.Errorf("disk full"))
	if fields[FieldOperation] != "write_snapshot" || fields[FieldError] != "disk full" {
		t.Errorf("unexpected fields %v", fields)
	}
	d := DurationFields("recompute", 150*time.Millisecond)
	if d[FieldDuration] != int64(150) {
		t.Errorf("expected duration 150, got %v", d[FieldDuration])
	}
}
