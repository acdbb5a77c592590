package env

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elorm116/java-cicd-demo/secrets"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestEnvProviderName(t *testing.T) {
	assert.Equal(t, "env", New().Name())
}

func TestEnvProviderResolve(t *testing.T) {
	p := NewWithLookup(mapLookup(map[string]string{
		"REGISTRY_PASSWORD": "hunter2",
	}))

	secret, err := p.Resolve(context.Background(), secrets.SecretRef{Path: "REGISTRY_PASSWORD"})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret.String())
}

func TestEnvProviderResolveMissing(t *testing.T) {
	p := NewWithLookup(mapLookup(nil))

	_, err := p.Resolve(context.Background(), secrets.SecretRef{Path: "NOPE"})
	require.Error(t, err)
	assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
}

func TestEnvProviderResolveRejectsVersion(t *testing.T) {
	p := NewWithLookup(mapLookup(map[string]string{"X": "1"}))

	_, err := p.Resolve(context.Background(), secrets.SecretRef{Path: "X", Version: "2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, secrets.ErrInvalidRef)
}

func TestEnvProviderResolveEmptyPath(t *testing.T) {
	p := NewWithLookup(mapLookup(nil))

	_, err := p.Resolve(context.Background(), secrets.SecretRef{})
	require.Error(t, err)
	assert.ErrorIs(t, err, secrets.ErrInvalidRef)
}

func TestEnvProviderExists(t *testing.T) {
	p := NewWithLookup(mapLookup(map[string]string{
		"SET":       "value",
		"SET_EMPTY": "",
	}))

	for name, want := range map[string]bool{"SET": true, "SET_EMPTY": true, "UNSET": false} {
		got, err := p.Exists(context.Background(), secrets.SecretRef{Path: name})
		require.NoError(t, err)
		assert.Equalf(t, want, got, "Exists(%q)", name)
	}
}

func TestEnvProviderRealEnvironment(t *testing.T) {
	t.Setenv("CICD_TEST_SECRET", "from-real-env")

	secret, err := New().Resolve(context.Background(), secrets.SecretRef{Path: "CICD_TEST_SECRET"})
	require.NoError(t, err)
	assert.Equal(t, "from-real-env", secret.String())
}
