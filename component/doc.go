// Package component manages the lifecycle of long-running services that
// sit next to a run, such as the HTTP server and the event hub.
//
// A Registry starts components in registration order and stops them in
// reverse. Components that also implement observability.HealthChecker are
// exposed through Registry.Checkers for the /health endpoint.
package component
