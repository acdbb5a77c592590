package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elorm116/java-cicd-demo/secrets"
)

func TestMemoryProviderName(t *testing.T) {
	assert.Equal(t, "memory", New().Name())
}

func TestMemoryProviderResolve(t *testing.T) {
	p := NewFromMap(map[string]string{"deploy/password": "hunter2"})

	secret, err := p.Resolve(context.Background(), secrets.SecretRef{Path: "deploy/password"})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret.String())
}

func TestMemoryProviderResolveMissing(t *testing.T) {
	p := New()

	_, err := p.Resolve(context.Background(), secrets.SecretRef{Path: "absent"})
	require.Error(t, err)
	assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
}

func TestMemoryProviderResolveVersion(t *testing.T) {
	p := New()
	p.SetVersion("api/key", "v1", []byte("old"))
	p.SetVersion("api/key", "v2", []byte("new"))

	secret, err := p.Resolve(context.Background(), secrets.SecretRef{Path: "api/key", Version: "v1"})
	require.NoError(t, err)
	assert.Equal(t, "old", secret.String())

	_, err = p.Resolve(context.Background(), secrets.SecretRef{Path: "api/key", Version: "v9"})
	require.Error(t, err)
	assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
}

func TestMemoryProviderResolveReturnsCopy(t *testing.T) {
	p := NewFromMap(map[string]string{"k": "value"})

	first, err := p.Resolve(context.Background(), secrets.SecretRef{Path: "k"})
	require.NoError(t, err)
	first.Clear()

	second, err := p.Resolve(context.Background(), secrets.SecretRef{Path: "k"})
	require.NoError(t, err)
	assert.Equal(t, "value", second.String(), "clearing a resolved copy must not corrupt the store")
}

func TestMemoryProviderExists(t *testing.T) {
	p := New()
	p.SetVersion("k", "v1", []byte("x"))

	exists, err := p.Exists(context.Background(), secrets.SecretRef{Path: "k"})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = p.Exists(context.Background(), secrets.SecretRef{Path: "k", Version: "v2"})
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = p.Exists(context.Background(), secrets.SecretRef{Path: "other"})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryProviderClose(t *testing.T) {
	p := NewFromMap(map[string]string{"k": "x"})

	require.NoError(t, p.Close())

	exists, err := p.Exists(context.Background(), secrets.SecretRef{Path: "k"})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryProviderWithManager(t *testing.T) {
	p := NewFromMap(map[string]string{"registry/password": "hunter2"})
	m := secrets.NewManager(&secrets.Config{DefaultProvider: "memory"})
	require.NoError(t, m.RegisterProvider("memory", p))

	secret, err := m.ResolveString(context.Background(), "memory:registry/password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret.String())
}
