package sse

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/taskgraph/logger"
	"github.com/kbukum/taskgraph/observability"
)

// Component runs a Hub's event loop in the background.
type Component struct {
	hub     *Hub
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

var _ observability.HealthChecker = (*Component)(nil)

// NewComponent creates a Component with a fresh Hub.
func NewComponent(log *logger.Logger) *Component {
	return &Component{hub: NewHub(log)}
}

// Name identifies the component in a lifecycle registry.
func (c *Component) Name() string { return "sse" }

// Hub returns the underlying Hub.
func (c *Component) Hub() *Hub { return c.hub }

// Start launches the Hub's event loop.
func (c *Component) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.running = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()
	return nil
}

// Stop shuts the Hub down and waits for its loop to return.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hub.Stop()
	c.wg.Wait()
	c.running = false
	return nil
}

// CheckHealth reports the number of connected clients.
func (c *Component) CheckHealth(_ context.Context) observability.Health {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()

	h := observability.Health{
		Name:    "sse",
		Status:  observability.HealthStatusUp,
		Message: fmt.Sprintf("%d clients connected", c.hub.ClientCount()),
	}
	if !running {
		h.Status = observability.HealthStatusDown
	}
	return h
}
