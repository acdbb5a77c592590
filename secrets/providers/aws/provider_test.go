package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elorm116/java-cicd-demo/secrets"
)

// mockClient implements SecretsManagerAPI for testing.
type mockClient struct {
	getSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	describeSecretFunc func(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

func (m *mockClient) GetSecretValue(
	ctx context.Context,
	params *secretsmanager.GetSecretValueInput,
	optFns ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	if m.getSecretValueFunc != nil {
		return m.getSecretValueFunc(ctx, params, optFns...)
	}
	return nil, errors.New("GetSecretValue not implemented")
}

func (m *mockClient) DescribeSecret(
	ctx context.Context,
	params *secretsmanager.DescribeSecretInput,
	optFns ...func(*secretsmanager.Options),
) (*secretsmanager.DescribeSecretOutput, error) {
	if m.describeSecretFunc != nil {
		return m.describeSecretFunc(ctx, params, optFns...)
	}
	return nil, errors.New("DescribeSecret not implemented")
}

func TestAWSProviderName(t *testing.T) {
	assert.Equal(t, "aws", NewWithClient(&mockClient{}).Name())
}

func TestAWSProviderResolveString(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	client := &mockClient{
		getSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			assert.Equal(t, "cicd/registry-password", *params.SecretId)
			return &secretsmanager.GetSecretValueOutput{
				SecretString: awssdk.String("hunter2"),
				CreatedDate:  &created,
			}, nil
		},
	}

	secret, err := NewWithClient(client).Resolve(context.Background(), secrets.SecretRef{Path: "cicd/registry-password"})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret.String())
	assert.Equal(t, created, secret.CreatedAt)
}

func TestAWSProviderResolveBinary(t *testing.T) {
	client := &mockClient{
		getSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			return &secretsmanager.GetSecretValueOutput{
				SecretBinary: []byte{0x01, 0x02, 0x03},
			}, nil
		},
	}

	secret, err := NewWithClient(client).Resolve(context.Background(), secrets.SecretRef{Path: "cicd/deploy-key"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, secret.Bytes())
}

func TestAWSProviderResolveVersionRouting(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		wantStage   string
		wantVersion string
	}{
		{name: "staging label", version: "AWSPREVIOUS", wantStage: "AWSPREVIOUS"},
		{name: "version id", version: "0e9f1e91-try", wantVersion: "0e9f1e91-try"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{
				getSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
					if tt.wantStage != "" {
						require.NotNil(t, params.VersionStage)
						assert.Equal(t, tt.wantStage, *params.VersionStage)
						assert.Nil(t, params.VersionId)
					} else {
						require.NotNil(t, params.VersionId)
						assert.Equal(t, tt.wantVersion, *params.VersionId)
						assert.Nil(t, params.VersionStage)
					}
					return &secretsmanager.GetSecretValueOutput{SecretString: awssdk.String("v")}, nil
				},
			}

			_, err := NewWithClient(client).Resolve(context.Background(),
				secrets.SecretRef{Path: "cicd/key", Version: tt.version})
			require.NoError(t, err)
		})
	}
}

func TestAWSProviderResolveNotFound(t *testing.T) {
	client := &mockClient{
		getSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			return nil, &types.ResourceNotFoundException{Message: awssdk.String("not found")}
		},
	}

	_, err := NewWithClient(client).Resolve(context.Background(), secrets.SecretRef{Path: "missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
}

func TestAWSProviderResolveAccessDenied(t *testing.T) {
	client := &mockClient{
		getSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			return nil, &types.InvalidParameterException{Message: awssdk.String("Access to KMS is denied")}
		},
	}

	_, err := NewWithClient(client).Resolve(context.Background(), secrets.SecretRef{Path: "locked"})
	require.Error(t, err)
	assert.ErrorIs(t, err, secrets.ErrAccessDenied)
}

func TestAWSProviderResolveEmptyValue(t *testing.T) {
	client := &mockClient{
		getSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			return &secretsmanager.GetSecretValueOutput{}, nil
		},
	}

	_, err := NewWithClient(client).Resolve(context.Background(), secrets.SecretRef{Path: "hollow"})
	require.Error(t, err)
	assert.ErrorIs(t, err, secrets.ErrProviderError)
}

func TestAWSProviderResolveEmptyPath(t *testing.T) {
	_, err := NewWithClient(&mockClient{}).Resolve(context.Background(), secrets.SecretRef{})
	require.Error(t, err)
	assert.ErrorIs(t, err, secrets.ErrInvalidRef)
}

func TestAWSProviderExists(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		client := &mockClient{
			describeSecretFunc: func(ctx context.Context, params *secretsmanager.DescribeSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
				return &secretsmanager.DescribeSecretOutput{Name: params.SecretId}, nil
			},
		}
		exists, err := NewWithClient(client).Exists(context.Background(), secrets.SecretRef{Path: "cicd/key"})
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("absent", func(t *testing.T) {
		client := &mockClient{
			describeSecretFunc: func(ctx context.Context, params *secretsmanager.DescribeSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
				return nil, &types.ResourceNotFoundException{}
			},
		}
		exists, err := NewWithClient(client).Exists(context.Background(), secrets.SecretRef{Path: "missing"})
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestAWSProviderHealthCheck(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		client := &mockClient{
			describeSecretFunc: func(ctx context.Context, params *secretsmanager.DescribeSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
				return nil, &types.ResourceNotFoundException{}
			},
		}
		assert.NoError(t, NewWithClient(client).HealthCheck(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		client := &mockClient{
			describeSecretFunc: func(ctx context.Context, params *secretsmanager.DescribeSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
				return nil, errors.New("dial tcp: connection refused")
			},
		}
		assert.Error(t, NewWithClient(client).HealthCheck(context.Background()))
	})
}
