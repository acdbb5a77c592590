package secrets

import (
	"fmt"
	"strings"
)

// ParseRef parses a secret reference string of the form
//
//	provider:path[#version]
//
// as used in configuration files, e.g. "env:REGISTRY_PASSWORD",
// "aws:cicd/registry-credentials" or "aws:cicd/deploy-key#AWSPREVIOUS".
// Only the first colon separates the provider, so paths containing colons
// (AWS ARNs) survive intact.
func ParseRef(s string) (provider string, ref SecretRef, err error) {
	provider, rest, found := strings.Cut(s, ":")
	if !found || provider == "" {
		return "", SecretRef{}, fmt.Errorf("reference %q has no provider prefix: %w", s, ErrInvalidRef)
	}

	path, version, _ := strings.Cut(rest, "#")
	if path == "" {
		return "", SecretRef{}, fmt.Errorf("reference %q has no path: %w", s, ErrInvalidRef)
	}

	return provider, SecretRef{Path: path, Version: version}, nil
}
