package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed infrastructure dependency such as the
// database connection or the remote cache client.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start connects the component. It is called once, in registration order.
	Start(ctx context.Context) error

	// Stop releases the component's resources. It is called in reverse order.
	Stop(ctx context.Context) error

	// Health reports the component's current health.
	Health(ctx context.Context) Health
}

// Description is a one-line summary of a component for the startup log.
type Description struct {
	Name    string
	Type    string
	Details string
}

// Describable is optionally implemented by components that can summarize
// their configuration.
type Describable interface {
	Describe() Description
}
