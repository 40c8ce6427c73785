package sse

import (
	"encoding/json"

	"github.com/kbukum/taskgraph/coordinator"
	"github.com/kbukum/taskgraph/logger"
)

// Broadcaster sends frames to clients whose id matches a glob pattern.
type Broadcaster interface {
	BroadcastToPattern(pattern string, frame Frame)
}

// RunClientID returns the client id for a subscriber to runID's events.
func RunClientID(runID, suffix string) string {
	return "run:" + runID + ":" + suffix
}

// RunPattern matches every subscriber of runID.
func RunPattern(runID string) string {
	return "run:" + runID + ":*"
}

// EventSink publishes Coordinator events to the subscribers of their run.
type EventSink struct {
	b   Broadcaster
	log *logger.Logger
}

var _ coordinator.EventSink = (*EventSink)(nil)

// NewEventSink creates an EventSink writing to b.
func NewEventSink(b Broadcaster, log *logger.Logger) *EventSink {
	if log == nil {
		log = logger.Nop()
	}
	return &EventSink{b: b, log: log}
}

// Publish encodes e as JSON and broadcasts it under its event type.
func (s *EventSink) Publish(e coordinator.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.log.Error("encoding event failed", logger.ErrorFields("publish", err))
		return
	}
	s.b.BroadcastToPattern(RunPattern(e.RunID), Frame{Event: string(e.Type), Data: data})
}
