// Package observability wires OpenTelemetry tracing and metrics for
// taskgraph: provider setup over OTLP HTTP, span helpers for task
// execution, scheduler metric instruments and component health reporting.
package observability
