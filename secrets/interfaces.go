package secrets

import "context"

// Resolver is the read-side interface for secret resolution. The pipeline
// only ever reads credentials; providers that can also write manage that
// outside this package.
type Resolver interface {
	// Resolve retrieves a single secret by reference.
	Resolve(ctx context.Context, ref SecretRef) (*Secret, error)

	// Exists checks whether a secret exists without retrieving its value.
	Exists(ctx context.Context, ref SecretRef) (bool, error)
}

// Provider extends Resolver with lifecycle management. All secret
// providers implement this interface.
type Provider interface {
	Resolver

	// Name returns the provider's identifier (e.g. "env", "aws", "memory").
	Name() string

	// HealthCheck verifies the provider's connectivity.
	HealthCheck(ctx context.Context) error

	// Close shuts down the provider and releases resources.
	Close() error
}
