package git

import (
	"github.com/elorm116/java-cicd-demo/git/internal/auth"
)

// TokenAuth authenticates HTTPS remotes with a personal access token.
// An empty username defaults to "token", which the common hosts accept.
//
//nolint:ireturn // callers plug this into Options.Auth
func TokenAuth(username, token string) AuthProvider {
	return auth.NewTokenProvider(username, token)
}

// SSHKeyAuth authenticates SSH remotes with a private key in PEM form.
//
//nolint:ireturn // callers plug this into Options.Auth
func SSHKeyAuth(username string, privateKey []byte, passphrase string) AuthProvider {
	return auth.NewSSHKeyProvider(username, privateKey, passphrase)
}

// ChainAuth composes providers; the first one to offer a method for a
// remote wins, so token and key auth can coexist.
//
//nolint:ireturn // callers plug this into Options.Auth
func ChainAuth(providers ...AuthProvider) AuthProvider {
	inner := make([]auth.Provider, len(providers))
	for i, p := range providers {
		inner[i] = p
	}
	return auth.NewComposite(inner...)
}
