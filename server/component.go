package server

import (
	"context"
	"fmt"

	"github.com/kbukum/satkit/component"
)

const componentName = "admin-server"

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component wraps Server to implement component.Component.
type Component struct {
	server *Server
}

// NewComponent returns a component.Component backed by the given Server.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

// Name returns the component name used for registration.
func (c *Component) Name() string { return componentName }

// Start starts the underlying HTTP server.
func (c *Component) Start(ctx context.Context) error { return c.server.Start(ctx) }

// Stop gracefully shuts down the underlying HTTP server.
func (c *Component) Stop(ctx context.Context) error { return c.server.Stop(ctx) }

// Health reports the server as healthy once constructed.
func (c *Component) Health(_ context.Context) component.Health {
	if c.server == nil || c.server.httpServer == nil {
		return component.Health{
			Name:    componentName,
			Status:  component.StatusUnhealthy,
			Message: "HTTP server not initialized",
		}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}

// Describe returns the listen address for the startup log.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Admin Server",
		Type:    "server",
		Details: fmt.Sprintf("%s routes=%d", c.server.Addr(), len(c.server.engine.Routes())),
	}
}
