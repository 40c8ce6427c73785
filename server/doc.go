// Package server exposes a run over HTTP with Gin.
//
// Routes:
//
//	GET /health           service and component health
//	GET /version          build information
//	GET /api/run/summary  RunSummary
//	GET /api/run/state    task entries grouped by state
//	GET /api/run/events   Server-Sent Events stream of scheduler events
//
// The engine is served over HTTP/1.1 and cleartext HTTP/2 (h2c).
package server
