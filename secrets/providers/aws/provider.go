// Package aws provides an AWS Secrets Manager secret provider.
//
// The provider is read-only: the pipeline consumes credentials, it never
// writes them. The AWS client sits behind a small interface so unit tests
// run against a mock instead of the real service; WithEndpoint points the
// client at LocalStack for integration testing.
package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/elorm116/java-cicd-demo/secrets"
)

// SecretsManagerAPI is the subset of the AWS Secrets Manager client the
// provider uses. It exists so tests can substitute a mock; signatures
// mirror the AWS SDK v2.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
	DescribeSecret(
		ctx context.Context,
		params *secretsmanager.DescribeSecretInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.DescribeSecretOutput, error)
}

// Provider resolves secrets from AWS Secrets Manager. The ref path is the
// secret name or full ARN; the ref version is a version ID or one of the
// staging labels (AWSCURRENT, AWSPREVIOUS, AWSPENDING).
//
// Provider is safe for concurrent use.
type Provider struct {
	client SecretsManagerAPI
	cfg    *Config
}

// Config holds provider configuration. Prefer the functional options over
// constructing Config directly.
type Config struct {
	// Region overrides the SDK's default region resolution.
	Region string
	// MaxRetries overrides the SDK's retry budget when positive.
	MaxRetries int
	// Endpoint overrides the service endpoint (LocalStack testing).
	Endpoint string
}

// Option configures the provider.
type Option func(*Config)

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

// WithMaxRetries sets the SDK's maximum retry attempts.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
	}
}

// WithEndpoint sets a custom service endpoint, e.g. a LocalStack URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// New creates a provider using the default AWS credential chain.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.MaxRetries > 0 {
		loadOpts = append(loadOpts, config.WithRetryMaxAttempts(cfg.MaxRetries))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(cfg.Endpoint)
		}
	})

	return &Provider{client: client, cfg: cfg}, nil
}

// NewWithClient creates a provider around an existing client. Tests use
// this with a mock SecretsManagerAPI.
func NewWithClient(client SecretsManagerAPI) *Provider {
	return &Provider{client: client, cfg: &Config{}}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "aws"
}

// HealthCheck verifies connectivity by describing a secret that should
// not exist. ResourceNotFoundException proves the client can reach the
// service; anything else is a configuration problem.
func (p *Provider) HealthCheck(ctx context.Context) error {
	secretID := "health-check-non-existent-secret"
	_, err := p.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: &secretID,
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("health check failed: %w", err)
	}
	return errors.New("health check failed: unexpected success")
}

// Close releases resources. The SDK v2 client needs no explicit cleanup.
func (p *Provider) Close() error {
	return nil
}

// Resolve retrieves a secret value. String secrets and binary secrets are
// both supported; the value comes back as bytes either way.
func (p *Provider) Resolve(ctx context.Context, ref secrets.SecretRef) (*secrets.Secret, error) {
	if ref.Path == "" {
		return nil, fmt.Errorf("secret reference path cannot be empty: %w", secrets.ErrInvalidRef)
	}

	input := &secretsmanager.GetSecretValueInput{
		SecretId: &ref.Path,
	}
	if ref.Version != "" {
		if isStagingLabel(ref.Version) {
			input.VersionStage = &ref.Version
		} else {
			input.VersionId = &ref.Version
		}
	}

	output, err := p.client.GetSecretValue(ctx, input)
	if err != nil {
		return nil, p.mapAWSError(ref, err)
	}

	var value []byte
	switch {
	case output.SecretString != nil:
		value = []byte(*output.SecretString)
	case output.SecretBinary != nil:
		value = output.SecretBinary
	default:
		return nil, fmt.Errorf("secret %q has no value (neither string nor binary): %w",
			ref.Path, secrets.ErrProviderError)
	}

	var createdAt time.Time
	if output.CreatedDate != nil {
		createdAt = *output.CreatedDate
	}

	return &secrets.Secret{
		Value:     value,
		Version:   ref.Version,
		CreatedAt: createdAt,
	}, nil
}

// Exists checks whether the secret exists without fetching its value.
func (p *Provider) Exists(ctx context.Context, ref secrets.SecretRef) (bool, error) {
	if ref.Path == "" {
		return false, fmt.Errorf("secret reference path cannot be empty: %w", secrets.ErrInvalidRef)
	}

	_, err := p.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: &ref.Path,
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check secret %q: %w", ref.Path,
			secrets.NewProviderError("aws", ref, err))
	}
	return true, nil
}

// mapAWSError maps AWS SDK errors onto the package sentinels.
func (p *Provider) mapAWSError(ref secrets.SecretRef, err error) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("secret %q not found: %w", ref.Path, secrets.ErrSecretNotFound)
	}

	var invalidParam *types.InvalidParameterException
	if errors.As(err, &invalidParam) {
		if invalidParam.Message != nil && containsAccessDeniedMessage(*invalidParam.Message) {
			return fmt.Errorf("access denied for secret %q: %w", ref.Path, secrets.ErrAccessDenied)
		}
		return fmt.Errorf("invalid parameter for secret %q: %w", ref.Path,
			secrets.NewProviderError("aws", ref, err))
	}

	return fmt.Errorf("failed to resolve secret %q: %w", ref.Path,
		secrets.NewProviderError("aws", ref, err))
}

func containsAccessDeniedMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "access") && strings.Contains(lower, "denied")
}

func isStagingLabel(version string) bool {
	switch version {
	case "AWSCURRENT", "AWSPREVIOUS", "AWSPENDING":
		return true
	}
	return false
}
