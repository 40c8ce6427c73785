package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/taskgraph/coordinator"
	"github.com/kbukum/taskgraph/dag"
	"github.com/kbukum/taskgraph/observability"
	"github.com/kbukum/taskgraph/resilience"
)

// fakeWriter records written messages. errs are returned by successive
// WriteMessages calls before it starts succeeding.
type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafkago.Message
	calls  int
	errs   []error
	block  chan struct{}
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if w.block != nil {
		select {
		case <-w.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		return err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) messages() []kafkago.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafkago.Message(nil), w.msgs...)
}

func testConfig() Config {
	return Config{Retry: resilienceFast()}
}

func newTestSink(t *testing.T, cfg Config, w *fakeWriter) *EventSink {
	t.Helper()
	s := NewEventSinkWithWriter(cfg, w, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s
}

func event(runID, taskID string, typ coordinator.EventType) coordinator.Event {
	return coordinator.Event{Type: typ, RunID: runID, TaskID: taskID, Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func header(m kafkago.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestEventSink_PublishesInOrder(t *testing.T) {
	w := &fakeWriter{}
	s := newTestSink(t, testConfig(), w)

	s.Publish(event("run-1", "A", coordinator.EventChildStarted))
	s.Publish(event("run-1", "A", coordinator.EventChildCompleted))
	s.Publish(event("run-1", "B", coordinator.EventChildSkipped))
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	msgs := w.messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	wantTypes := []string{"child_started", "child_completed", "child_skipped"}
	for i, m := range msgs {
		if string(m.Key) != "run-1" {
			t.Errorf("message %d: expected key run-1, got %q", i, m.Key)
		}
		if got := header(m, HeaderEventType); got != wantTypes[i] {
			t.Errorf("message %d: expected type %s, got %s", i, wantTypes[i], got)
		}
		if header(m, HeaderContentType) != "application/json" {
			t.Errorf("message %d: missing content type", i)
		}
	}

	var decoded coordinator.Event
	if err := json.Unmarshal(msgs[2].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.TaskID != "B" || decoded.Type != coordinator.EventChildSkipped {
		t.Errorf("unexpected event %+v", decoded)
	}
	if !w.closed {
		t.Error("expected writer to be closed")
	}
	if st := s.Stats(); st.Published != 3 || st.Dropped != 0 || st.Failed != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestEventSink_RetriesTransientErrors(t *testing.T) {
	w := &fakeWriter{errs: []error{errors.New("dial tcp: connection refused"), kafkago.LeaderNotAvailable}}
	s := newTestSink(t, testConfig(), w)

	s.Publish(event("run-r", "A", coordinator.EventChildStarted))
	_ = s.Stop(context.Background())

	if len(w.messages()) != 1 {
		t.Fatalf("expected delivery after retries, got %d messages", len(w.messages()))
	}
	if w.calls != 3 {
		t.Errorf("expected 3 write calls, got %d", w.calls)
	}
	if h := s.CheckHealth(context.Background()); h.Status != observability.HealthStatusUp {
		t.Errorf("expected healthy sink, got %+v", h)
	}
}

func TestEventSink_PermanentErrorFails(t *testing.T) {
	w := &fakeWriter{errs: []error{kafkago.MessageSizeTooLarge}}
	s := newTestSink(t, testConfig(), w)

	s.Publish(event("run-p", "A", coordinator.EventChildStarted))
	_ = s.Stop(context.Background())

	if w.calls != 1 {
		t.Errorf("permanent errors must not be retried, got %d calls", w.calls)
	}
	if st := s.Stats(); st.Failed != 1 || st.Published != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
	if h := s.CheckHealth(context.Background()); h.Status != observability.HealthStatusDegraded {
		t.Errorf("expected degraded, got %+v", h)
	}
}

func TestEventSink_DropsWhenFull(t *testing.T) {
	w := &fakeWriter{}
	cfg := testConfig()
	cfg.BufferSize = 2
	s := NewEventSinkWithWriter(cfg, w, nil)

	for i := 0; i < 5; i++ {
		s.Publish(event("run-f", "A", coordinator.EventChildStarted))
	}
	if st := s.Stats(); st.Dropped != 3 {
		t.Fatalf("expected 3 dropped before start, got %+v", st)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = s.Stop(context.Background())
	if st := s.Stats(); st.Published != 2 {
		t.Errorf("expected buffered events to be flushed, got %+v", st)
	}
}

func TestEventSink_PublishAfterStop(t *testing.T) {
	w := &fakeWriter{}
	s := newTestSink(t, testConfig(), w)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	s.Publish(event("run-s", "A", coordinator.EventChildStarted))
	if st := s.Stats(); st.Dropped != 1 || st.Published != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestEventSink_StopDeadlineAbandonsWrites(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{})}
	s := newTestSink(t, testConfig(), w)
	s.Publish(event("run-d", "A", coordinator.EventChildStarted))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st := s.Stats(); st.Published != 0 || st.Failed+st.Dropped != 1 {
		t.Errorf("expected the blocked event to be abandoned, got %+v", st)
	}
}

func TestEventSink_CoordinatorEvents(t *testing.T) {
	w := &fakeWriter{}
	s := newTestSink(t, testConfig(), w)

	tasks := []dag.TaskRecord{{ID: "A"}, {ID: "B", DeclaredBlockers: []string{"A"}}}
	c, err := coordinator.New(tasks, coordinator.Config{RunID: "run-c"}, coordinator.WithEventSink(s))
	if err != nil {
		t.Fatalf("coordinator.New: %v", err)
	}
	c.InitialSchedule()
	c.MarkStarted("A", "")
	if _, err := c.OnChildComplete("A", coordinator.StatusFailed, coordinator.CompletionDetails{Reason: "exit_code:1"}); err != nil {
		t.Fatalf("OnChildComplete: %v", err)
	}
	_ = s.Stop(context.Background())

	var types []string
	for _, m := range w.messages() {
		types = append(types, header(m, HeaderEventType))
	}
	want := []string{"child_started", "child_completed", "child_skipped"}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("expected %v, got %v", want, types)
			break
		}
	}
}

func TestConfig_DefaultsAndValidation(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Topic != DefaultTopic || cfg.RequiredAcks != -1 || cfg.Retry.MaxAttempts != 3 {
		t.Errorf("unexpected defaults %+v", cfg)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad broker", func(c *Config) { c.Brokers = []string{"nohost"} }},
		{"bad compression", func(c *Config) { c.Compression = "brotli" }},
		{"bad acks", func(c *Config) { c.RequiredAcks = 2 }},
		{"sasl without user", func(c *Config) { c.EnableSASL = true; c.SASLMechanism = "PLAIN" }},
		{"bad mechanism", func(c *Config) { c.SASLMechanism = "GSSAPI" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestResolveCompression(t *testing.T) {
	tests := []struct {
		name string
		want kafkago.Compression
	}{
		{"gzip", kafkago.Gzip},
		{"lz4", kafkago.Lz4},
		{"zstd", kafkago.Zstd},
		{"snappy", kafkago.Snappy},
		{"none", 0},
		{"", kafkago.Snappy},
	}
	for _, tt := range tests {
		if got := ResolveCompression(tt.name); got != tt.want {
			t.Errorf("ResolveCompression(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCreateTransport(t *testing.T) {
	for _, mech := range []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"} {
		cfg := &Config{EnableSASL: true, SASLMechanism: mech, Username: "u", Password: "p"}
		tr, err := CreateTransport(cfg)
		if err != nil || tr.SASL == nil {
			t.Errorf("%s: expected SASL transport, got %v", mech, err)
		}
	}

	if _, err := CreateTransport(&Config{EnableTLS: true, TLSCAFile: filepath.Join(t.TempDir(), "missing.pem")}); err == nil {
		t.Error("expected error for missing CA file")
	}

	bad := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(bad, []byte("not a cert"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateTransport(&Config{EnableTLS: true, TLSCAFile: bad}); err == nil {
		t.Error("expected error for invalid CA file")
	}

	tr, err := CreateTransport(&Config{EnableTLS: true, TLSSkipVerify: true})
	if err != nil || tr.TLS == nil || !tr.TLS.InsecureSkipVerify {
		t.Errorf("expected TLS transport, got %+v, %v", tr, err)
	}
}

func TestNewEventSink(t *testing.T) {
	s, err := NewEventSink(Config{Enabled: true, Brokers: []string{"127.0.0.1:9092"}}, nil)
	if err != nil {
		t.Fatalf("NewEventSink: %v", err)
	}
	if s.Name() != "kafka" {
		t.Errorf("unexpected name %q", s.Name())
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}

	if _, err := NewEventSink(Config{Compression: "brotli"}, nil); err == nil {
		t.Error("expected config error")
	}
}

func resilienceFast() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}
