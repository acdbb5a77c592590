package secrets

import (
	"errors"
	"fmt"
)

// Standard error types for secret resolution. Defined as variables so
// callers can compare with errors.Is().
var (
	// ErrSecretNotFound indicates the requested secret does not exist in
	// the provider's store, or the caller cannot see it.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrProviderError indicates a failure inside the provider that does
	// not fit a more specific category (network, backend errors).
	ErrProviderError = errors.New("provider error")

	// ErrInvalidRef indicates a malformed secret reference (empty path,
	// missing provider prefix, version where none is supported).
	ErrInvalidRef = errors.New("invalid secret reference")

	// ErrAccessDenied indicates the provider refused the operation for
	// permission reasons.
	ErrAccessDenied = errors.New("access denied")
)

// ProviderError wraps a provider-specific failure with the provider name
// and the reference that triggered it. The reference never carries the
// secret value, so ProviderError is safe to log.
type ProviderError struct {
	Provider string
	Ref      SecretRef
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q error for secret %q: %v", e.Provider, e.Ref.Path, e.Err)
}

// Unwrap returns the underlying error for chain traversal.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a ProviderError preserving the original error.
func NewProviderError(provider string, ref SecretRef, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Ref:      ref,
		Err:      err,
	}
}

// IsProviderError reports whether err is, or wraps, a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// WrapProviderError wraps err in a ProviderError with a message prefix.
// Returns nil if err is nil.
func WrapProviderError(provider string, ref SecretRef, err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, NewProviderError(provider, ref, err))
}
