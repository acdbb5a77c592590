// Package env provides a secret provider backed by environment variables.
// Jenkins credential bindings surface credentials this way, so on a CI
// agent this is usually the only provider needed.
package env

import (
	"context"
	"fmt"
	"os"

	"github.com/elorm116/java-cicd-demo/secrets"
)

// Provider resolves secrets from the process environment. The ref path is
// the variable name.
type Provider struct {
	lookup func(key string) (string, bool)
}

// New creates a provider reading from the real process environment.
func New() *Provider {
	return &Provider{lookup: os.LookupEnv}
}

// NewWithLookup creates a provider using a custom lookup function.
// Tests inject a map-backed lookup here.
func NewWithLookup(lookup func(key string) (string, bool)) *Provider {
	return &Provider{lookup: lookup}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "env"
}

// HealthCheck verifies the provider is operational. The environment is
// always reachable.
func (p *Provider) HealthCheck(ctx context.Context) error {
	return nil
}

// Close releases resources. Nothing to release for environment lookups.
func (p *Provider) Close() error {
	return nil
}

// Resolve retrieves the environment variable named by ref.Path.
// Environment secrets are unversioned; a ref carrying a version is
// rejected rather than silently ignored.
func (p *Provider) Resolve(ctx context.Context, ref secrets.SecretRef) (*secrets.Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve cancelled: %w", err)
	}
	if ref.Path == "" {
		return nil, fmt.Errorf("variable name cannot be empty: %w", secrets.ErrInvalidRef)
	}
	if ref.Version != "" {
		return nil, fmt.Errorf("environment secrets are unversioned: %w", secrets.ErrInvalidRef)
	}

	value, ok := p.lookup(ref.Path)
	if !ok {
		return nil, fmt.Errorf("environment variable %q not set: %w", ref.Path, secrets.ErrSecretNotFound)
	}

	return &secrets.Secret{Value: []byte(value)}, nil
}

// Exists checks whether the environment variable is set. A set-but-empty
// variable exists; Jenkins bindings never produce those, but a manual
// export might.
func (p *Provider) Exists(ctx context.Context, ref secrets.SecretRef) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("exists check cancelled: %w", err)
	}
	if ref.Path == "" {
		return false, fmt.Errorf("variable name cannot be empty: %w", secrets.ErrInvalidRef)
	}

	_, ok := p.lookup(ref.Path)
	return ok, nil
}
