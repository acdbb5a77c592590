// Package auth resolves go-git authentication methods from credentials
// the pipeline pulled out of the secret store. Each provider claims the
// URL schemes it understands and answers nil for everything else, so
// providers compose cleanly.
package auth

import (
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Provider resolves an auth method for a remote URL.
type Provider interface {
	// Method returns the transport.AuthMethod for the given remote URL.
	// A nil method with nil error means this provider does not handle
	// the URL; errors mean the URL is the provider's to handle but the
	// credentials are unusable.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// Composite tries each provider in order and returns the first method
// offered. Providers that decline (nil, nil) are skipped.
type Composite struct {
	providers []Provider
}

// NewComposite creates a provider chain.
func NewComposite(providers ...Provider) *Composite {
	return &Composite{providers: providers}
}

// Method returns the first auth method any chained provider offers.
//
//nolint:ireturn // go-git consumes the transport.AuthMethod interface
func (c *Composite) Method(remoteURL string) (transport.AuthMethod, error) {
	for _, p := range c.providers {
		method, err := p.Method(remoteURL)
		if err != nil {
			return nil, err
		}
		if method != nil {
			return method, nil
		}
	}
	return nil, nil
}
