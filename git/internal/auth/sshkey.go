package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// SSHKeyProvider authenticates SSH remotes with a private key held in
// memory. The pipeline resolves the key from the secret store, so there
// is no key file on disk to load.
type SSHKeyProvider struct {
	username   string
	privateKey []byte
	passphrase string
}

// NewSSHKeyProvider creates an SSH key provider. An empty username
// defaults to "git", matching the hosted-git convention.
func NewSSHKeyProvider(username string, privateKey []byte, passphrase string) *SSHKeyProvider {
	if username == "" {
		username = "git"
	}
	return &SSHKeyProvider{
		username:   username,
		privateKey: privateKey,
		passphrase: passphrase,
	}
}

// Method implements Provider. It claims ssh:// URLs and the scp-style
// git@host:path form; https URLs are declined.
//
//nolint:ireturn // go-git consumes the transport.AuthMethod interface
func (p *SSHKeyProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	user, ok := sshUser(remoteURL)
	if !ok {
		return nil, nil
	}
	if len(p.privateKey) == 0 {
		return nil, fmt.Errorf("no SSH key configured for %q", remoteURL)
	}
	if user == "" {
		user = p.username
	}

	method, err := ssh.NewPublicKeys(user, p.privateKey, p.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key: %w", err)
	}
	return method, nil
}

// sshUser reports whether remoteURL is an SSH remote and returns the
// user embedded in it, if any. The scp-style form user@host:path has no
// scheme, so it is detected before URL parsing.
func sshUser(remoteURL string) (string, bool) {
	if at := strings.Index(remoteURL, "@"); at > 0 &&
		!strings.Contains(remoteURL, "://") &&
		strings.Contains(remoteURL[at:], ":") {
		return remoteURL[:at], true
	}

	parsed, err := url.Parse(remoteURL)
	if err != nil {
		return "", false
	}
	switch parsed.Scheme {
	case "ssh", "git", "git+ssh":
		return parsed.User.Username(), true
	}
	return "", false
}
