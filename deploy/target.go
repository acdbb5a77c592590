package deploy

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Target is one deploy destination in user@host:port form.
type Target struct {
	User string
	Host string
	Port int
}

// DefaultPort is used when a target does not name one.
const DefaultPort = 22

// ParseTarget parses "user@host" or "user@host:port". The user part is
// required; the port defaults to DefaultPort.
func ParseTarget(s string) (Target, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Target{}, fmt.Errorf("%w: empty host", ErrInvalidTarget)
	}

	user, rest, ok := strings.Cut(trimmed, "@")
	if !ok || user == "" {
		return Target{}, fmt.Errorf("%w: %q must be user@host[:port]", ErrInvalidTarget, trimmed)
	}

	host, port := rest, DefaultPort
	if h, p, hasPort := strings.Cut(rest, ":"); hasPort {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return Target{}, fmt.Errorf("%w: bad port in %q", ErrInvalidTarget, trimmed)
		}
		host, port = h, n
	}
	if host == "" {
		return Target{}, fmt.Errorf("%w: %q has no host", ErrInvalidTarget, trimmed)
	}

	return Target{User: user, Host: host, Port: port}, nil
}

// ParseTargets parses every host string, failing on the first invalid one.
func ParseTargets(hosts []string) ([]Target, error) {
	targets := make([]Target, 0, len(hosts))
	for _, h := range hosts {
		t, err := ParseTarget(h)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Addr returns the host:port dial address.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return fmt.Sprintf("%s@%s:%d", t.User, t.Host, t.Port)
}
