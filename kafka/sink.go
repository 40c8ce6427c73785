package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/taskgraph/coordinator"
	"github.com/kbukum/taskgraph/logger"
	"github.com/kbukum/taskgraph/observability"
	"github.com/kbukum/taskgraph/resilience"
)

// Message headers set on every event.
const (
	HeaderContentType = "content-type"
	HeaderEventType   = "event-type"
)

// MessageWriter is the part of *kafkago.Writer used by EventSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// SinkStats counts messages by outcome.
type SinkStats struct {
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
	Failed    int64 `json:"failed"`
}

// EventSink publishes coordinator events to Kafka.
type EventSink struct {
	cfg    Config
	writer MessageWriter
	log    *logger.Logger

	queue chan kafkago.Message
	done  chan struct{}

	// writeCtx aborts in-flight retries when Stop runs out of time.
	writeCtx     context.Context
	cancelWrites context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

var (
	_ coordinator.EventSink       = (*EventSink)(nil)
	_ observability.HealthChecker = (*EventSink)(nil)
)

// NewEventSink creates a sink writing to the configured brokers.
func NewEventSink(cfg Config, log *logger.Logger) (*EventSink, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka config: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("kafka")

	transport, err := CreateTransport(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka transport: %w", err)
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:  ResolveCompression(cfg.Compression),
		WriteTimeout: cfg.WriteTimeout,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error("writer: " + fmt.Sprintf(msg, args...))
		}),
	}

	log.Info("kafka event sink created", logger.Fields(
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"compression", cfg.Compression,
	))
	return NewEventSinkWithWriter(cfg, w, log), nil
}

// NewEventSinkWithWriter creates a sink around an existing writer.
func NewEventSinkWithWriter(cfg Config, w MessageWriter, log *logger.Logger) *EventSink {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EventSink{
		cfg:          cfg,
		writer:       w,
		log:          log,
		queue:        make(chan kafkago.Message, cfg.BufferSize),
		done:         make(chan struct{}),
		writeCtx:     ctx,
		cancelWrites: cancel,
	}
}

// Name returns the component name.
func (s *EventSink) Name() string { return "kafka" }

// Publish queues e for writing. It never blocks; the event is dropped when
// the buffer is full or the sink is stopped.
func (s *EventSink) Publish(e coordinator.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.dropped.Add(1)
		s.log.Warn("encoding event failed", logger.ErrorFields("encode_event", err))
		return
	}
	msg := kafkago.Message{
		Key:   []byte(e.RunID),
		Value: data,
		Time:  e.Timestamp,
		Headers: []kafkago.Header{
			{Key: HeaderContentType, Value: []byte("application/json")},
			{Key: HeaderEventType, Value: []byte(e.Type)},
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.dropped.Add(1)
		return
	}
	select {
	case s.queue <- msg:
	default:
		s.dropped.Add(1)
		s.log.Warn("event buffer full, dropping event", logger.Fields(
			logger.FieldRunID, e.RunID,
			"event_type", string(e.Type),
		))
	}
}

// Start launches the write loop.
func (s *EventSink) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return nil
	}
	s.started = true
	go s.loop()
	return nil
}

// Stop flushes queued events and closes the writer. If ctx ends first,
// pending retries are abandoned and the remaining events are dropped.
func (s *EventSink) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	close(s.queue)
	s.mu.Unlock()

	if started {
		select {
		case <-s.done:
		case <-ctx.Done():
			s.cancelWrites()
			<-s.done
		}
	} else {
		s.dropped.Add(int64(len(s.queue)))
	}
	s.cancelWrites()

	st := s.Stats()
	s.log.Info("kafka event sink stopped", logger.Fields(
		"published", st.Published,
		"dropped", st.Dropped,
		"failed", st.Failed,
	))
	return s.writer.Close()
}

// Stats returns message counters.
func (s *EventSink) Stats() SinkStats {
	return SinkStats{
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
		Failed:    s.failed.Load(),
	}
}

// CheckHealth reports degraded once any event was dropped or failed.
func (s *EventSink) CheckHealth(_ context.Context) observability.Health {
	st := s.Stats()
	h := observability.Health{
		Name:   s.Name(),
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"topic":     s.cfg.Topic,
			"published": fmt.Sprint(st.Published),
			"dropped":   fmt.Sprint(st.Dropped),
			"failed":    fmt.Sprint(st.Failed),
		},
	}
	if st.Dropped > 0 || st.Failed > 0 {
		h.Status = observability.HealthStatusDegraded
	}
	return h
}

func (s *EventSink) loop() {
	defer close(s.done)

	batch := make([]kafkago.Message, 0, s.cfg.BatchSize)
	for msg := range s.queue {
		batch = append(batch[:0], msg)
	fill:
		for len(batch) < s.cfg.BatchSize {
			select {
			case m, ok := <-s.queue:
				if !ok {
					break fill
				}
				batch = append(batch, m)
			default:
				break fill
			}
		}
		s.write(batch)
	}
}

func (s *EventSink) write(batch []kafkago.Message) {
	if s.writeCtx.Err() != nil {
		s.dropped.Add(int64(len(batch)))
		return
	}
	err := resilience.RetryFunc(s.writeCtx, s.cfg.Retry, func(attempt int) error {
		err := s.writer.WriteMessages(s.writeCtx, batch...)
		if err != nil && attempt < s.cfg.Retry.MaxAttempts {
			s.log.Debug("kafka write failed, retrying", logger.Fields("attempt", attempt, logger.FieldError, err.Error()))
		}
		return err
	})
	if err != nil {
		s.failed.Add(int64(len(batch)))
		s.log.Error("kafka write failed", logger.Fields(
			"messages", len(batch),
			logger.FieldError, err.Error(),
		))
		return
	}
	s.published.Add(int64(len(batch)))
}
