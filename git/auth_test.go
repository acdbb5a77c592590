package git

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenAuthHandlesHTTPS(t *testing.T) {
	provider := TokenAuth("ci-bot", "ghp_secret")

	method, err := provider.Method("https://github.com/elorm/java-cicd-demo.git")
	require.NoError(t, err)
	basic, ok := method.(*http.BasicAuth)
	require.True(t, ok)
	assert.Equal(t, "ci-bot", basic.Username)
	assert.Equal(t, "ghp_secret", basic.Password)
}

func TestTokenAuthDeclinesSSH(t *testing.T) {
	provider := TokenAuth("", "ghp_secret")

	method, err := provider.Method("ssh://git@github.com/elorm/java-cicd-demo.git")
	require.NoError(t, err)
	assert.Nil(t, method)
}

func TestChainAuthFirstMatchWins(t *testing.T) {
	chain := ChainAuth(
		TokenAuth("ci-bot", "ghp_secret"),
		SSHKeyAuth("git", nil, ""),
	)

	method, err := chain.Method("https://github.com/elorm/java-cicd-demo.git")
	require.NoError(t, err)
	assert.IsType(t, &http.BasicAuth{}, method)
}
