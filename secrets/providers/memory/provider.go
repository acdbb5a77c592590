// Package memory provides an in-memory secret provider for tests and
// local development. Secrets are seeded through Set and never persisted.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elorm116/java-cicd-demo/secrets"
)

// latestVersion is the version key used when no specific version is set.
const latestVersion = "latest"

// Provider implements an in-memory secret store. It is safe for
// concurrent use.
type Provider struct {
	// store holds secrets keyed by path, then version.
	store map[string]map[string]*secrets.Secret
	mu    sync.RWMutex
}

// New creates an empty memory provider.
func New() *Provider {
	return &Provider{
		store: make(map[string]map[string]*secrets.Secret),
	}
}

// NewFromMap creates a provider pre-seeded with string secrets, one
// latest version per path.
func NewFromMap(values map[string]string) *Provider {
	p := New()
	for path, value := range values {
		p.Set(path, []byte(value))
	}
	return p
}

// Set stores value as the latest version of the secret at path.
func (p *Provider) Set(path string, value []byte) {
	p.SetVersion(path, latestVersion, value)
}

// SetVersion stores value under an explicit version of the secret at path.
func (p *Provider) SetVersion(path, version string, value []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	versions, ok := p.store[path]
	if !ok {
		versions = make(map[string]*secrets.Secret)
		p.store[path] = versions
	}
	versions[version] = &secrets.Secret{
		Value:     append([]byte(nil), value...),
		Version:   version,
		CreatedAt: time.Now(),
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "memory"
}

// HealthCheck verifies the provider is operational. Memory is always
// healthy.
func (p *Provider) HealthCheck(ctx context.Context) error {
	return nil
}

// Close clears all stored secrets, zeroing their values.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for path, versions := range p.store {
		for version, secret := range versions {
			secret.Clear()
			delete(versions, version)
		}
		delete(p.store, path)
	}
	return nil
}

// Resolve retrieves a secret by reference. The returned secret is a copy,
// so callers clearing it do not affect the store.
func (p *Provider) Resolve(ctx context.Context, ref secrets.SecretRef) (*secrets.Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve cancelled: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	versions, ok := p.store[ref.Path]
	if !ok {
		return nil, fmt.Errorf("secret %q: %w", ref.Path, secrets.ErrSecretNotFound)
	}

	version := ref.Version
	if version == "" {
		version = latestVersion
	}
	secret, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("secret %q version %q: %w", ref.Path, version, secrets.ErrSecretNotFound)
	}

	return &secrets.Secret{
		Value:     append([]byte(nil), secret.Value...),
		Version:   secret.Version,
		CreatedAt: secret.CreatedAt,
		ExpiresAt: secret.ExpiresAt,
	}, nil
}

// Exists checks whether any version of the secret is stored.
func (p *Provider) Exists(ctx context.Context, ref secrets.SecretRef) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("exists check cancelled: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	versions, ok := p.store[ref.Path]
	if !ok {
		return false, nil
	}
	if ref.Version == "" {
		return len(versions) > 0, nil
	}
	_, ok = versions[ref.Version]
	return ok, nil
}
