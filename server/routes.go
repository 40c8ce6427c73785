package server

import (
	"github.com/kbukum/taskgraph/observability"
	"github.com/kbukum/taskgraph/server/endpoint"
	"github.com/kbukum/taskgraph/sse"
)

// Routes are the dependencies of the standard route set.
type Routes struct {
	Service  string
	Version  string
	Run      endpoint.RunView
	Hub      *sse.Hub
	Checkers []observability.HealthChecker
}

// Register mounts /health, /version and the /api/run endpoints.
func (s *Server) Register(r Routes) {
	s.engine.GET("/health", endpoint.Health(r.Service, r.Version, r.Checkers...))
	s.engine.GET("/version", endpoint.Version())

	api := s.engine.Group("/api/run")
	api.GET("/summary", endpoint.RunSummary(r.Run))
	api.GET("/state", endpoint.RunState(r.Run))
	api.GET("/events", endpoint.RunEvents(r.Run, r.Hub))
}
