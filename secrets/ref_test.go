package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantProvider string
		wantRef      SecretRef
		wantErr      bool
	}{
		{
			name:         "env variable",
			input:        "env:REGISTRY_PASSWORD",
			wantProvider: "env",
			wantRef:      SecretRef{Path: "REGISTRY_PASSWORD"},
		},
		{
			name:         "aws path",
			input:        "aws:cicd/registry-credentials",
			wantProvider: "aws",
			wantRef:      SecretRef{Path: "cicd/registry-credentials"},
		},
		{
			name:         "aws arn keeps inner colons",
			input:        "aws:arn:aws:secretsmanager:eu-west-1:123456789012:secret:cicd-AbCdEf",
			wantProvider: "aws",
			wantRef:      SecretRef{Path: "arn:aws:secretsmanager:eu-west-1:123456789012:secret:cicd-AbCdEf"},
		},
		{
			name:         "version suffix",
			input:        "aws:cicd/deploy-key#AWSPREVIOUS",
			wantProvider: "aws",
			wantRef:      SecretRef{Path: "cicd/deploy-key", Version: "AWSPREVIOUS"},
		},
		{
			name:    "no provider prefix",
			input:   "REGISTRY_PASSWORD",
			wantErr: true,
		},
		{
			name:    "empty provider",
			input:   ":path",
			wantErr: true,
		},
		{
			name:    "empty path",
			input:   "env:",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, ref, err := ParseRef(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, provider)
			assert.Equal(t, tt.wantRef, ref)
		})
	}
}
