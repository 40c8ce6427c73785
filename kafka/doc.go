// Package kafka publishes scheduling events to a Kafka topic with
// segmentio/kafka-go.
//
// EventSink implements coordinator.EventSink. Publish never blocks the
// scheduler: events are queued and written in batches by a background
// loop started with Start. Each message is keyed by run id, so the events
// of one run land on one partition in order.
//
//	kafka:
//	  enabled: true
//	  brokers: ["localhost:9092"]
//	  topic: taskgraph.events
package kafka
