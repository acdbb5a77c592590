package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider is a test implementation of the Provider interface.
type mockProvider struct {
	name          string
	resolveResult *Secret
	resolveError  error
	existsResult  bool
	existsError   error
	closeError    error

	resolvedRefs []SecretRef
	closed       bool
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) HealthCheck(ctx context.Context) error { return nil }

func (m *mockProvider) Close() error {
	m.closed = true
	return m.closeError
}

func (m *mockProvider) Resolve(ctx context.Context, ref SecretRef) (*Secret, error) {
	m.resolvedRefs = append(m.resolvedRefs, ref)
	return m.resolveResult, m.resolveError
}

func (m *mockProvider) Exists(ctx context.Context, ref SecretRef) (bool, error) {
	return m.existsResult, m.existsError
}

func TestManagerRegisterProvider(t *testing.T) {
	m := NewManager(nil)

	require.NoError(t, m.RegisterProvider("memory", &mockProvider{name: "memory"}))

	err := m.RegisterProvider("memory", &mockProvider{name: "memory"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Error(t, m.RegisterProvider("", &mockProvider{}))
	assert.Error(t, m.RegisterProvider("nil", nil))
}

func TestManagerResolve(t *testing.T) {
	provider := &mockProvider{
		name:          "memory",
		resolveResult: &Secret{Value: []byte("hunter2")},
	}
	m := NewManager(&Config{DefaultProvider: "memory"})
	require.NoError(t, m.RegisterProvider("memory", provider))

	secret, err := m.Resolve(context.Background(), SecretRef{Path: "registry/password"})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret.String())
}

func TestManagerResolveNoDefaultProvider(t *testing.T) {
	m := NewManager(nil)

	_, err := m.Resolve(context.Background(), SecretRef{Path: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no default provider")
}

func TestManagerResolveFromUnknownProvider(t *testing.T) {
	m := NewManager(nil)

	_, err := m.ResolveFrom(context.Background(), "vault", SecretRef{Path: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `provider "vault" not found`)
}

func TestManagerResolveWrapsProviderErrors(t *testing.T) {
	provider := &mockProvider{
		name:         "memory",
		resolveError: ErrSecretNotFound,
	}
	m := NewManager(&Config{DefaultProvider: "memory"})
	require.NoError(t, m.RegisterProvider("memory", provider))

	_, err := m.Resolve(context.Background(), SecretRef{Path: "missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.True(t, IsProviderError(err))
}

func TestManagerAutoClear(t *testing.T) {
	provider := &mockProvider{
		name:          "memory",
		resolveResult: &Secret{Value: []byte("once")},
	}
	m := NewManager(&Config{DefaultProvider: "memory", AutoClear: true})
	require.NoError(t, m.RegisterProvider("memory", provider))

	secret, err := m.Resolve(context.Background(), SecretRef{Path: "p"})
	require.NoError(t, err)
	assert.Equal(t, "once", secret.String())
	assert.Empty(t, secret.String(), "value should be cleared after first read")
}

func TestManagerResolveString(t *testing.T) {
	envProvider := &mockProvider{
		name:          "env",
		resolveResult: &Secret{Value: []byte("from-env")},
	}
	awsProvider := &mockProvider{
		name:          "aws",
		resolveResult: &Secret{Value: []byte("from-aws")},
	}
	m := NewManager(&Config{DefaultProvider: "env"})
	require.NoError(t, m.RegisterProvider("env", envProvider))
	require.NoError(t, m.RegisterProvider("aws", awsProvider))

	t.Run("explicit provider", func(t *testing.T) {
		secret, err := m.ResolveString(context.Background(), "aws:cicd/registry-password")
		require.NoError(t, err)
		assert.Equal(t, "from-aws", secret.String())
		require.NotEmpty(t, awsProvider.resolvedRefs)
		assert.Equal(t, "cicd/registry-password", awsProvider.resolvedRefs[len(awsProvider.resolvedRefs)-1].Path)
	})

	t.Run("version suffix", func(t *testing.T) {
		_, err := m.ResolveString(context.Background(), "aws:cicd/deploy-key#AWSPREVIOUS")
		require.NoError(t, err)
		ref := awsProvider.resolvedRefs[len(awsProvider.resolvedRefs)-1]
		assert.Equal(t, "cicd/deploy-key", ref.Path)
		assert.Equal(t, "AWSPREVIOUS", ref.Version)
	})

	t.Run("bare path uses default provider", func(t *testing.T) {
		secret, err := m.ResolveString(context.Background(), "REGISTRY_PASSWORD")
		require.NoError(t, err)
		assert.Equal(t, "from-env", secret.String())
	})
}

func TestManagerExists(t *testing.T) {
	provider := &mockProvider{name: "memory", existsResult: true}
	m := NewManager(&Config{DefaultProvider: "memory"})
	require.NoError(t, m.RegisterProvider("memory", provider))

	exists, err := m.Exists(context.Background(), SecretRef{Path: "p"})
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestManagerClose(t *testing.T) {
	p1 := &mockProvider{name: "a"}
	p2 := &mockProvider{name: "b", closeError: errors.New("boom")}
	m := NewManager(nil)
	require.NoError(t, m.RegisterProvider("a", p1))
	require.NoError(t, m.RegisterProvider("b", p2))

	err := m.Close()
	require.Error(t, err)
	assert.True(t, p1.closed)
	assert.True(t, p2.closed)

	// Registry is cleared even when a provider fails to close.
	_, err = m.ResolveFrom(context.Background(), "a", SecretRef{Path: "p"})
	assert.Error(t, err)
}
