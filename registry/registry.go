// Package registry talks to the image registry over the OCI distribution
// API. After the Docker daemon reports a successful push, the release
// pipeline resolves the tag here and compares digests, so "pushed" means
// the registry actually serves the image and not just that the daemon
// said so.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

var (
	// ErrNotFound indicates the reference does not exist in the registry.
	ErrNotFound = errors.New("reference not found in registry")

	// ErrDigestMismatch indicates the registry serves different content
	// than the daemon pushed.
	ErrDigestMismatch = errors.New("registry digest does not match pushed image")

	// ErrInvalidReference indicates the image reference could not be
	// split into repository and tag.
	ErrInvalidReference = errors.New("invalid image reference")
)

// resolveFunc resolves a tag or digest within a repository to its
// manifest descriptor. It is a field so tests can run without a registry.
type resolveFunc func(ctx context.Context, repoPath, refPart string) (ocispec.Descriptor, error)

// Client resolves image references against a registry.
type Client struct {
	username   string
	password   string
	plainHTTP  bool
	retries    int
	retryDelay time.Duration

	resolve resolveFunc
}

// Option configures a Client.
type Option func(*Client)

// WithCredentials sets static credentials for the registry. Without them
// the default Docker credential chain applies.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithPlainHTTP allows plain HTTP, for local or air-gapped registries.
func WithPlainHTTP(plain bool) Option {
	return func(c *Client) {
		c.plainHTTP = plain
	}
}

// WithRetry configures how often an unresolved tag is re-checked before
// verification gives up.
func WithRetry(retries int, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.retryDelay = delay
	}
}

// New creates a registry client.
func New(opts ...Option) *Client {
	c := &Client{
		retries:    2,
		retryDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.resolve == nil {
		c.resolve = c.resolveRemote
	}
	return c
}

// Resolve resolves a full image reference ("host/repo:tag") to its
// manifest descriptor.
func (c *Client) Resolve(ctx context.Context, reference string) (ocispec.Descriptor, error) {
	repoPath, refPart, err := splitReference(reference)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	desc, err := c.resolve(ctx, repoPath, refPart)
	if err != nil {
		if errors.Is(err, errdef.ErrNotFound) {
			return ocispec.Descriptor{}, fmt.Errorf("%s: %w", reference, ErrNotFound)
		}
		return ocispec.Descriptor{}, fmt.Errorf("failed to resolve %s: %w", reference, err)
	}
	return desc, nil
}

// Verify confirms the registry serves the reference and, when want is
// non-empty, that its digest matches what the daemon pushed. A tag that
// has not appeared yet is re-checked on the configured retry schedule.
func (c *Client) Verify(ctx context.Context, reference string, want digest.Digest) (ocispec.Descriptor, error) {
	var desc ocispec.Descriptor
	var err error

	for attempt := 0; ; attempt++ {
		desc, err = c.Resolve(ctx, reference)
		if err == nil || !errors.Is(err, ErrNotFound) || attempt >= c.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ocispec.Descriptor{}, fmt.Errorf("verification cancelled: %w", ctx.Err())
		case <-time.After(c.retryDelay):
		}
	}
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	if want != "" && desc.Digest != want {
		return desc, fmt.Errorf("%s: %w: registry has %s, daemon pushed %s",
			reference, ErrDigestMismatch, desc.Digest, want)
	}
	return desc, nil
}

// resolveRemote is the production resolveFunc, backed by ORAS.
func (c *Client) resolveRemote(ctx context.Context, repoPath, refPart string) (ocispec.Descriptor, error) {
	repo, err := remote.NewRepository(repoPath)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("failed to create repository %s: %w", repoPath, err)
	}
	repo.PlainHTTP = c.plainHTTP

	client := &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
	}
	if c.username != "" {
		host, _, _ := strings.Cut(repoPath, "/")
		client.Credential = auth.StaticCredential(host, auth.Credential{
			Username: c.username,
			Password: c.password,
		})
	}
	repo.Client = client

	return repo.Resolve(ctx, refPart)
}

// splitReference splits "host/repo:tag" or "host/repo@digest" into the
// repository path and the tag/digest part. The split looks only at the
// final path segment so port-qualified registries parse correctly.
func splitReference(full string) (repoPath, refPart string, err error) {
	lastSlash := strings.LastIndex(full, "/")
	if lastSlash == -1 {
		return "", "", fmt.Errorf("%q has no registry host: %w", full, ErrInvalidReference)
	}
	head, tail := full[:lastSlash], full[lastSlash+1:]

	if name, dgst, found := strings.Cut(tail, "@"); found {
		return head + "/" + name, dgst, nil
	}
	if name, tag, found := strings.Cut(tail, ":"); found {
		return head + "/" + name, tag, nil
	}
	return "", "", fmt.Errorf("%q has no tag or digest: %w", full, ErrInvalidReference)
}
