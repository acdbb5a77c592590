// Package secrets provides provider-agnostic access to the credentials the
// pipeline needs: registry passwords, deploy-host keys, git tokens. Secrets
// are resolved just in time through a registered provider and can clear
// their memory after first use.
//
// A manager fronts one or more providers:
//
//	manager := secrets.NewManager(&secrets.Config{DefaultProvider: "env"})
//	defer manager.Close()
//	manager.RegisterProvider("env", env.New())
//
//	secret, err := manager.ResolveString(ctx, "env:REGISTRY_PASSWORD")
//	password := secret.String()
//
// Configuration files reference secrets as "provider:path" strings; see
// ParseRef for the format.
package secrets

import "time"

// Secret is a resolved secret value with metadata.
type Secret struct {
	// Value holds the secret data. Never log or persist it.
	Value []byte
	// Version identifies which version of the secret was resolved
	// (empty when the provider returned its latest).
	Version string
	// CreatedAt records when the secret was created, if the provider
	// reports it.
	CreatedAt time.Time
	// ExpiresAt is when the secret expires; nil means no expiration.
	ExpiresAt *time.Time
	// AutoClear makes String and Bytes zero the value after use.
	AutoClear bool
}

// SecretRef locates a secret without containing its value.
type SecretRef struct {
	// Path identifies the secret within its provider
	// (an environment variable name, an AWS secret name or ARN).
	Path string
	// Version selects a specific version; empty means latest.
	Version string
	// Metadata carries provider-specific hints.
	Metadata map[string]string
}

// String returns the secret value as a string. The returned string is a
// copy; if AutoClear is set the underlying value is zeroed afterwards.
func (s *Secret) String() string {
	if s.Value == nil {
		return ""
	}

	value := string(s.Value)
	if s.AutoClear {
		s.Clear()
	}
	return value
}

// Bytes returns a copy of the secret value. If AutoClear is set the
// underlying value is zeroed afterwards.
func (s *Secret) Bytes() []byte {
	if s.Value == nil {
		return nil
	}

	value := make([]byte, len(s.Value))
	copy(value, s.Value)
	if s.AutoClear {
		s.Clear()
	}
	return value
}

// Clear zeros the secret value in memory.
func (s *Secret) Clear() {
	if s.Value == nil {
		return
	}
	for i := range s.Value {
		s.Value[i] = 0
	}
	s.Value = nil
}
