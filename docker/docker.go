// Package docker shells out to the Docker CLI for image build, tag, push,
// and registry login. The daemon does the real work; this package owns
// safe argument assembly (credentials ride stdin, never argv) and retry
// policy for flaky pushes.
package docker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/elorm116/java-cicd-demo/executor"
)

// DefaultBinary is the Docker executable resolved from PATH.
const DefaultBinary = "docker"

var (
	// ErrLoginFailed indicates registry authentication was rejected.
	ErrLoginFailed = errors.New("registry login failed")

	// ErrBuildFailed indicates the image build exited non-zero.
	ErrBuildFailed = errors.New("image build failed")

	// ErrPushFailed indicates the push did not succeed after retries.
	ErrPushFailed = errors.New("image push failed")

	// ErrNoDigest indicates the daemon has no repository digest for the
	// image, which means it was never pushed.
	ErrNoDigest = errors.New("image has no repository digest")
)

// Client drives the Docker CLI.
type Client struct {
	runner     executor.Runner
	bin        string
	stream     bool
	pushTries  int
	pushDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithRunner substitutes the command runner. Tests inject fakes here.
func WithRunner(r executor.Runner) Option {
	return func(c *Client) {
		c.runner = r
	}
}

// WithBinary overrides the Docker executable (e.g. "podman").
func WithBinary(bin string) Option {
	return func(c *Client) {
		c.bin = bin
	}
}

// WithStream mirrors build and push output to the console.
func WithStream(stream bool) Option {
	return func(c *Client) {
		c.stream = stream
	}
}

// WithPushRetry configures how often a failed push is retried.
func WithPushRetry(retries int, delay time.Duration) Option {
	return func(c *Client) {
		c.pushTries = retries
		c.pushDelay = delay
	}
}

// New creates a Docker client.
func New(opts ...Option) *Client {
	c := &Client{
		runner:    executor.Local{},
		bin:       DefaultBinary,
		pushTries: 2,
		pushDelay: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login authenticates against a registry. The password travels on stdin
// (--password-stdin) and is masked in any captured output.
func (c *Client) Login(ctx context.Context, registry, username, password string) error {
	args := []string{"login", registry, "--username", username, "--password-stdin"}

	result, err := c.runner.RunWithInput(ctx, password, c.bin, args,
		executor.WithCapture(true, true, false),
		executor.WithMasks(password),
	)
	if err != nil {
		return fmt.Errorf("docker login %s as %q: %w: %s",
			registry, username, ErrLoginFailed, tail(result))
	}
	return nil
}

// BuildSpec describes an image build.
type BuildSpec struct {
	// ContextDir is the build context directory.
	ContextDir string
	// Dockerfile overrides the default Dockerfile path when non-empty.
	Dockerfile string
	// Image is the full image reference to tag, e.g.
	// "registry.example.com/demo/app:1.2.4".
	Image string
	// Labels are attached with --label. Keys are emitted sorted so the
	// assembled command line is deterministic.
	Labels map[string]string
	// BuildArgs are passed with --build-arg, also in sorted key order.
	BuildArgs map[string]string
	// Pull forces a fresh pull of the base image.
	Pull bool
}

// Build builds and tags an image.
func (c *Client) Build(ctx context.Context, spec BuildSpec) error {
	args := []string{"build", "-t", spec.Image}
	if spec.Dockerfile != "" {
		args = append(args, "-f", spec.Dockerfile)
	}
	if spec.Pull {
		args = append(args, "--pull")
	}
	for _, k := range sortedKeys(spec.Labels) {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, spec.Labels[k]))
	}
	for _, k := range sortedKeys(spec.BuildArgs) {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, spec.BuildArgs[k]))
	}
	args = append(args, spec.ContextDir)

	result, err := c.runner.Run(ctx, c.bin, args,
		executor.WithCapture(true, true, false),
		executor.WithConsoleStream(c.stream),
	)
	if err != nil {
		return fmt.Errorf("docker build %s: %w: %s", spec.Image, ErrBuildFailed, tail(result))
	}
	return nil
}

// Tag applies an additional tag to an existing image.
func (c *Client) Tag(ctx context.Context, src, dst string) error {
	result, err := c.runner.Run(ctx, c.bin, []string{"tag", src, dst},
		executor.WithCapture(true, true, false),
	)
	if err != nil {
		return fmt.Errorf("docker tag %s %s: %w: %s", src, dst, err, tail(result))
	}
	return nil
}

// Push uploads an image to its registry. Transient network failures are
// retried; authentication and name errors fail immediately.
func (c *Client) Push(ctx context.Context, image string) error {
	result, err := c.runner.Run(ctx, c.bin, []string{"push", image},
		executor.WithCapture(true, true, false),
		executor.WithConsoleStream(c.stream),
		executor.WithRetry(c.pushTries, c.pushDelay),
		executor.WithRetryOn(transientPushFailure),
	)
	if err != nil {
		return fmt.Errorf("docker push %s: %w: %s", image, ErrPushFailed, tail(result))
	}
	return nil
}

// RemoveImage deletes a local image tag. Missing images are not an error;
// cleanup is best effort.
func (c *Client) RemoveImage(ctx context.Context, image string) error {
	result, err := c.runner.Run(ctx, c.bin, []string{"rmi", image},
		executor.WithCapture(true, true, false),
	)
	if err != nil {
		if result != nil && strings.Contains(result.Stderr, "No such image") {
			return nil
		}
		return fmt.Errorf("docker rmi %s: %w", image, err)
	}
	return nil
}

// RepoDigest returns the registry digest the daemon recorded for the
// image after a push. The digest is what the registry verification stage
// compares against.
func (c *Client) RepoDigest(ctx context.Context, image string) (digest.Digest, error) {
	args := []string{"inspect", "--format", "{{range .RepoDigests}}{{println .}}{{end}}", image}

	result, err := c.runner.Run(ctx, c.bin, args,
		executor.WithCapture(true, true, false),
	)
	if err != nil {
		return "", fmt.Errorf("docker inspect %s: %w", image, err)
	}

	repo := repositoryOf(image)
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// RepoDigests entries look like "registry/repo@sha256:...".
		name, dgst, found := strings.Cut(line, "@")
		if !found || name != repo {
			continue
		}
		parsed, perr := digest.Parse(dgst)
		if perr != nil {
			return "", fmt.Errorf("daemon reported malformed digest %q for %s: %w", dgst, image, perr)
		}
		return parsed, nil
	}
	return "", fmt.Errorf("%s: %w", image, ErrNoDigest)
}

// transientPushFailure reports whether a failed push looks like a network
// hiccup worth retrying rather than a hard rejection.
func transientPushFailure(r *executor.Result) bool {
	if r == nil {
		return true
	}
	out := strings.ToLower(r.Stderr + r.Stdout)
	for _, deny := range []string{"denied", "unauthorized", "name unknown", "authentication required"} {
		if strings.Contains(out, deny) {
			return false
		}
	}
	return true
}

// repositoryOf strips the tag from an image reference, leaving the
// repository part that RepoDigests entries carry. Digest references and
// port-qualified registries are handled.
func repositoryOf(image string) string {
	if at := strings.Index(image, "@"); at != -1 {
		return image[:at]
	}
	slash := strings.LastIndex(image, "/")
	colon := strings.LastIndex(image, ":")
	if colon > slash {
		return image[:colon]
	}
	return image
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// tail extracts trailing output from a result for error messages.
func tail(r *executor.Result) string {
	if r == nil {
		return ""
	}
	out := strings.TrimSpace(r.Stderr)
	if out == "" {
		out = strings.TrimSpace(r.Stdout)
	}
	lines := strings.Split(out, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, " / ")
}
