package deploy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Credentials hold what is needed to authenticate the SSH connection.
// The private key is tried before the password when both are set.
type Credentials struct {
	// PrivateKey is the PEM-encoded key material, typically resolved
	// from the secret store rather than read off disk.
	PrivateKey []byte

	// Passphrase decrypts an encrypted private key.
	Passphrase string

	// Password enables password authentication.
	Password string
}

func (c Credentials) methods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if len(c.PrivateKey) > 0 {
		signer, err := parsePrivateKey(c.PrivateKey, c.Passphrase)
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		methods = append(methods, ssh.Password(c.Password))
	}
	if len(methods) == 0 {
		return nil, ErrNoCredentials
	}
	return methods, nil
}

//nolint:ireturn // x/crypto/ssh signers are interfaces
func parsePrivateKey(pemBytes []byte, passphrase string) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(pemBytes)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return signer, nil
}

// SSHDialer opens SSH connections with fixed credentials and host key
// policy. One dialer serves every target in a rollout.
type SSHDialer struct {
	creds          Credentials
	knownHostsPath string
	insecure       bool
	timeout        time.Duration

	hostKeys ssh.HostKeyCallback
}

// SSHOption configures an SSHDialer.
type SSHOption func(*SSHDialer)

// WithKnownHosts verifies host keys against the given known_hosts file.
// A leading ~ expands to the home directory. Empty selects
// ~/.ssh/known_hosts.
func WithKnownHosts(path string) SSHOption {
	return func(d *SSHDialer) {
		d.knownHostsPath = path
	}
}

// WithInsecureHostKeys disables host key verification. Only for
// throwaway environments.
func WithInsecureHostKeys() SSHOption {
	return func(d *SSHDialer) {
		d.insecure = true
	}
}

// WithDialTimeout bounds connection establishment and the handshake.
func WithDialTimeout(timeout time.Duration) SSHOption {
	return func(d *SSHDialer) {
		d.timeout = timeout
	}
}

// NewSSHDialer creates a dialer. Credentials and the known_hosts file
// are checked here so a misconfigured rollout fails before the first
// connection attempt.
func NewSSHDialer(creds Credentials, opts ...SSHOption) (*SSHDialer, error) {
	d := &SSHDialer{
		creds:   creds,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}

	if _, err := d.creds.methods(); err != nil {
		return nil, err
	}

	if d.insecure {
		d.hostKeys = ssh.InsecureIgnoreHostKey() //nolint:gosec // explicit opt-in
	} else {
		callback, err := knownHostsCallback(d.knownHostsPath)
		if err != nil {
			return nil, err
		}
		d.hostKeys = callback
	}
	return d, nil
}

// Dial connects to the target and returns a Client running commands
// over per-call sessions.
//
//nolint:ireturn // Dialer contract
func (d *SSHDialer) Dial(ctx context.Context, target Target) (Client, error) {
	methods, err := d.creds.methods()
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User:            target.User,
		Auth:            methods,
		HostKeyCallback: d.hostKeys,
		Timeout:         d.timeout,
	}

	dialer := net.Dialer{Timeout: d.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target.Addr(), err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, target.Addr(), config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", target, err)
	}
	return &sshClient{client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

func knownHostsCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		path = "~/.ssh/known_hosts"
	}
	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	callback, err := knownhosts.New(expanded)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %q: %w", path, err)
	}
	return callback, nil
}

// expandHome resolves a leading ~/ against the current user's home
// directory. ~user paths are not supported.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	if len(path) > 1 && path[1] != '/' {
		return "", fmt.Errorf("cannot expand %q: only ~/ is supported", path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// sshClient runs each command in its own session on a shared
// connection.
type sshClient struct {
	client *ssh.Client
}

func (c *sshClient) Run(ctx context.Context, command string) ([]byte, error) {
	return c.run(ctx, "", command)
}

func (c *sshClient) RunWithInput(ctx context.Context, input, command string) ([]byte, error) {
	return c.run(ctx, input, command)
}

func (c *sshClient) Close() error {
	return c.client.Close()
}

func (c *sshClient) run(ctx context.Context, input, command string) ([]byte, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	if input != "" {
		session.Stdin = strings.NewReader(input)
	}

	// Sessions have no context support; tear the session down on
	// cancellation so CombinedOutput returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-done:
		}
	}()

	out, err := session.CombinedOutput(command)
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	if err != nil {
		if line := lastNonEmptyLine(out); line != "" {
			return out, fmt.Errorf("%w: %s", err, line)
		}
		return out, err
	}
	return out, nil
}

func lastNonEmptyLine(out []byte) string {
	lines := strings.Split(string(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
