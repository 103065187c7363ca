package health

import "context"

// Checker verifies a dependency's availability.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
