package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// RegistryChecker checks capability registry availability.
type RegistryChecker interface {
	HealthCheck(ctx context.Context) error
}
