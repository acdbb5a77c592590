// Package deploy rolls a new container image out to remote hosts over
// SSH. On each host it runs the docker sequence the release pipeline
// needs: optional registry login, pull, stop and remove the previous
// container (both tolerated when absent), start the replacement, and
// verify it is still running. Hosts are deployed concurrently with a
// configurable bound, and every host reports its own result.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidTarget indicates a host string that is not user@host[:port].
	ErrInvalidTarget = errors.New("invalid deploy target")

	// ErrInvalidSpec indicates the rollout description is incomplete.
	ErrInvalidSpec = errors.New("invalid deploy spec")

	// ErrNoCredentials indicates neither a private key nor a password
	// was configured.
	ErrNoCredentials = errors.New("no ssh credentials configured")

	// ErrContainerNotRunning indicates the liveness check after docker
	// run found no container with the expected name.
	ErrContainerNotRunning = errors.New("container not running after deploy")

	// ErrDeployFailed indicates at least one host failed the rollout.
	ErrDeployFailed = errors.New("deploy failed")
)

// Client runs commands on a connected host. Each call executes one
// remote command; implementations open a fresh exec channel per call.
type Client interface {
	Run(ctx context.Context, command string) ([]byte, error)
	RunWithInput(ctx context.Context, input, command string) ([]byte, error)
	Close() error
}

// Dialer establishes a connection to a target host.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Client, error)
}

// Login describes an optional docker login performed on the remote host
// before pulling. The password travels on stdin, never in the command
// line.
type Login struct {
	// Registry is the server argument to docker login; empty selects
	// the daemon's default registry.
	Registry string
	Username string
	Password string
}

// Spec describes the rollout performed on every host. The image
// reference is not part of the spec because it is only known once the
// release run has produced it; Deploy takes it as an argument.
type Spec struct {
	// Container is the name of the container to replace.
	Container string

	// Ports are docker -p mappings.
	Ports []string

	// Restart is the docker restart policy; empty leaves the daemon default.
	Restart string

	// Env sets environment variables on the new container.
	Env map[string]string

	// Login, when non-nil, authenticates the remote daemon against the
	// registry before pulling.
	Login *Login
}

func (s Spec) validate() error {
	if strings.TrimSpace(s.Container) == "" {
		return fmt.Errorf("%w: container name is required", ErrInvalidSpec)
	}
	if s.Login != nil && s.Login.Username == "" {
		return fmt.Errorf("%w: login without a username", ErrInvalidSpec)
	}
	return nil
}

// HostResult is the outcome of the rollout on one host.
type HostResult struct {
	Target   Target
	Duration time.Duration

	// Err is nil when the host completed the full sequence including
	// the liveness check.
	Err error
}

// Deployer performs the rollout described by a Spec on a set of targets.
type Deployer struct {
	dial          Dialer
	spec          Spec
	livenessDelay time.Duration
	maxConcurrent int
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithLivenessDelay sets the pause between docker run and the liveness
// check, giving crash-looping containers time to exit.
func WithLivenessDelay(d time.Duration) Option {
	return func(dep *Deployer) {
		dep.livenessDelay = d
	}
}

// WithMaxConcurrent bounds how many hosts are deployed at once.
// Zero or negative means all at once.
func WithMaxConcurrent(n int) Option {
	return func(dep *Deployer) {
		dep.maxConcurrent = n
	}
}

// New creates a Deployer. The spec is validated up front so a broken
// rollout never reaches the first host.
func New(dial Dialer, spec Spec, opts ...Option) (*Deployer, error) {
	if dial == nil {
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidSpec)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	d := &Deployer{
		dial:          dial,
		spec:          spec,
		livenessDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Deploy rolls the image out to every target. All hosts are attempted
// even when some fail; the returned slice has one entry per target in
// input order. The error is non-nil when any host failed.
func (d *Deployer) Deploy(ctx context.Context, image string, targets []Target) ([]HostResult, error) {
	if strings.TrimSpace(image) == "" {
		return nil, fmt.Errorf("%w: image reference is required", ErrInvalidSpec)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no targets", ErrInvalidSpec)
	}

	results := make([]HostResult, len(targets))
	g := new(errgroup.Group)
	if d.maxConcurrent > 0 {
		g.SetLimit(d.maxConcurrent)
	}
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			start := time.Now()
			err := d.deployHost(ctx, image, target)
			results[i] = HostResult{
				Target:   target,
				Duration: time.Since(start),
				Err:      err,
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines report through results, never the group

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d hosts", ErrDeployFailed, failed, len(targets))
	}
	return results, nil
}

// deployHost runs the full docker sequence on one host.
func (d *Deployer) deployHost(ctx context.Context, image string, target Target) error {
	client, err := d.dial.Dial(ctx, target)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	if l := d.spec.Login; l != nil {
		if _, err := client.RunWithInput(ctx, l.Password, loginCommand(l)); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	if _, err := client.Run(ctx, joinCommand("docker", "pull", image)); err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	// Stop and remove fail when no previous container exists; replacing
	// nothing is a valid first rollout.
	_, _ = client.Run(ctx, joinCommand("docker", "stop", d.spec.Container))
	_, _ = client.Run(ctx, joinCommand("docker", "rm", d.spec.Container))
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if _, err := client.Run(ctx, d.runCommand(image)); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	return d.checkAlive(ctx, client)
}

// checkAlive verifies the replacement container is still listed by the
// daemon after the liveness delay.
func (d *Deployer) checkAlive(ctx context.Context, client Client) error {
	if d.livenessDelay > 0 {
		timer := time.NewTimer(d.livenessDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	filter := "name=^" + d.spec.Container + "$"
	out, err := client.Run(ctx, joinCommand("docker", "ps", "--filter", filter, "--format", "{{.Names}}"))
	if err != nil {
		return fmt.Errorf("liveness: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == d.spec.Container {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrContainerNotRunning, d.spec.Container)
}

// runCommand builds the docker run invocation for the spec. Environment
// variables are emitted in sorted order so the command is stable.
func (d *Deployer) runCommand(image string) string {
	args := []string{"docker", "run", "-d", "--name", d.spec.Container}
	if d.spec.Restart != "" {
		args = append(args, "--restart", d.spec.Restart)
	}
	for _, p := range d.spec.Ports {
		args = append(args, "-p", p)
	}
	keys := make([]string, 0, len(d.spec.Env))
	for k := range d.spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+d.spec.Env[k])
	}
	args = append(args, image)
	return joinCommand(args...)
}

func loginCommand(l *Login) string {
	args := []string{"docker", "login", "--username", l.Username, "--password-stdin"}
	if l.Registry != "" {
		args = append(args, l.Registry)
	}
	return joinCommand(args...)
}

// shellSafe matches strings that need no quoting in a POSIX shell.
var shellSafe = regexp.MustCompile(`^[A-Za-z0-9@%_+=:,./-]+$`)

// shellQuote single-quotes s for the remote shell unless it is plainly
// safe.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func joinCommand(args ...string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}
