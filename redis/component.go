package redis

import (
	"context"
	"fmt"

	"github.com/kbukum/taskgraph/logger"
	"github.com/kbukum/taskgraph/observability"
)

// Component manages a Client's lifecycle in a component registry.
type Component struct {
	client *Client
	log    *logger.Logger
}

var _ observability.HealthChecker = (*Component)(nil)

// NewComponent creates the client eagerly so that its SnapshotStore can be
// handed out before Start.
func NewComponent(cfg Config, log *logger.Logger) (*Component, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("redis")
	client, err := New(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Component{client: client, log: log}, nil
}

// Client returns the underlying Client.
func (c *Component) Client() *Client { return c.client }

// Store returns a snapshot store backed by the component's client.
func (c *Component) Store() *SnapshotStore { return NewSnapshotStore(c.client) }

// Name returns the component name.
func (c *Component) Name() string { return "redis" }

// Start verifies connectivity.
func (c *Component) Start(ctx context.Context) error {
	if err := c.client.Ping(ctx); err != nil {
		return fmt.Errorf("redis start: %w", err)
	}
	c.log.Info("redis connected", logger.Fields("addr", c.client.cfg.Addr))
	return nil
}

// Stop closes the connection.
func (c *Component) Stop(_ context.Context) error {
	return c.client.Close()
}

// CheckHealth pings the server.
func (c *Component) CheckHealth(ctx context.Context) observability.Health {
	h := observability.Health{Name: c.Name(), Status: observability.HealthStatusUp}
	if err := c.client.Ping(ctx); err != nil {
		h.Status = observability.HealthStatusDown
		h.Message = err.Error()
	}
	return h
}
