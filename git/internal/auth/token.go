package auth

import (
	"fmt"
	"net/url"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// TokenProvider authenticates HTTPS remotes with a personal access token
// pulled from the secret store. GitHub, GitLab, and Bitbucket all accept
// the token as the basic-auth password.
type TokenProvider struct {
	username string
	token    string
}

// NewTokenProvider creates a token provider. An empty username defaults
// to "token", which the common hosts accept alongside a real token.
func NewTokenProvider(username, token string) *TokenProvider {
	if username == "" {
		username = "token"
	}
	return &TokenProvider{username: username, token: token}
}

// Method implements Provider. Only https URLs are handled; everything
// else is declined so an SSH provider further down the chain can claim it.
//
//nolint:ireturn // go-git consumes the transport.AuthMethod interface
func (p *TokenProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	// scp-style remotes (git@host:path) fail URL parsing; they are SSH
	// remotes and not this provider's to handle.
	parsed, err := url.Parse(remoteURL)
	if err != nil {
		return nil, nil
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return nil, nil
	}
	if p.token == "" {
		return nil, fmt.Errorf("no token configured for %q", remoteURL)
	}

	return &http.BasicAuth{
		Username: p.username,
		Password: p.token,
	}, nil
}
