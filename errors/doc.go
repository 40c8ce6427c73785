// Package errors provides the structured error type used across taskgraph.
// Errors carry a machine-readable code, an HTTP status hint for the status
// API, and retryable detection for caller-side retry policies.
package errors
