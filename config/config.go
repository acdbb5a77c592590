// Package config loads and validates the pipeline configuration file
// (cicd.toml). Each pipeline concern gets its own TOML section decoded
// into a typed struct; unknown sections and unknown keys are hard errors
// so a typo cannot silently disable a stage.
//
// Credential-bearing fields hold secret references ("env:REGISTRY_PASSWORD",
// "aws:cicd/deploy-key"), never raw values; resolution happens at wiring
// time through the secrets manager.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultPath is where the configuration file is expected relative to
// the workspace root.
const DefaultPath = "cicd.toml"

var (
	// ErrUnknownSection indicates the file contains a section the
	// pipeline does not define.
	ErrUnknownSection = errors.New("unknown configuration section")

	// ErrUnknownKey indicates a section contains keys the pipeline does
	// not define.
	ErrUnknownKey = errors.New("unknown configuration key")

	// ErrInvalid indicates a section failed validation.
	ErrInvalid = errors.New("invalid configuration")
)

// Config is the full pipeline configuration.
type Config struct {
	Project  Project
	Maven    Maven
	Image    Image
	Registry Registry
	Deploy   Deploy
	Git      Git
	Archive  Archive
	History  History
}

// Project configures the workspace and descriptor.
type Project struct {
	// Name identifies the application; empty means the descriptor's
	// artifactId is used.
	Name string `toml:"name"`

	// Descriptor is the path of the Maven POM within the workspace.
	Descriptor string `toml:"descriptor"`
}

// Validate implements the section contract.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Descriptor) == "" {
		return fmt.Errorf("%w: descriptor is required", ErrInvalid)
	}
	return nil
}

// Maven configures the build tool invocations.
type Maven struct {
	// Binary is the Maven executable; "./mvnw" selects the wrapper.
	Binary string `toml:"binary"`

	// Settings points at an alternate settings.xml when non-empty.
	Settings string `toml:"settings"`

	// Profiles are activated on every invocation.
	Profiles []string `toml:"profiles"`

	// VersionStrategy selects how the descriptor version is rewritten:
	// "builtin" (in-process splice) or "maven" (versions:set).
	VersionStrategy string `toml:"version_strategy"`

	// SkipTestStage disables the dedicated test stage. Packaging always
	// runs with -DskipTests since the test stage owns test execution.
	SkipTestStage bool `toml:"skip_test_stage"`
}

// Validate implements the section contract.
func (m *Maven) Validate() error {
	switch m.VersionStrategy {
	case "builtin", "maven":
		return nil
	default:
		return fmt.Errorf("%w: version_strategy %q (want builtin or maven)", ErrInvalid, m.VersionStrategy)
	}
}

// Image configures the container image build.
type Image struct {
	// Repository is the image name without a tag, e.g.
	// "registry.example.com/demo/app". Required.
	Repository string `toml:"repository"`

	// Dockerfile overrides the default Dockerfile path.
	Dockerfile string `toml:"dockerfile"`

	// Context is the build context directory.
	Context string `toml:"context"`

	// Latest also moves the :latest tag to every published version.
	Latest bool `toml:"latest"`

	// Pull forces a fresh pull of the base image on build.
	Pull bool `toml:"pull"`

	// BuildArgs are passed through to docker build.
	BuildArgs map[string]string `toml:"build_args"`
}

// Validate implements the section contract.
func (i *Image) Validate() error {
	if strings.TrimSpace(i.Repository) == "" {
		return fmt.Errorf("%w: image repository is required", ErrInvalid)
	}
	if strings.ContainsAny(i.Repository, " \t") {
		return fmt.Errorf("%w: image repository %q contains whitespace", ErrInvalid, i.Repository)
	}
	if tagged(i.Repository) {
		return fmt.Errorf("%w: image repository %q must not carry a tag", ErrInvalid, i.Repository)
	}
	return nil
}

// tagged reports whether ref carries a :tag after its final path
// segment (a colon in the registry port does not count).
func tagged(ref string) bool {
	slash := strings.LastIndex(ref, "/")
	return strings.Contains(ref[slash+1:], ":")
}

// Registry configures authentication and push verification.
type Registry struct {
	// Username for docker login and API access.
	Username string `toml:"username"`

	// Password is a secret reference resolved at run time.
	Password string `toml:"password"`

	// PlainHTTP permits http:// registries (local testing).
	PlainHTTP bool `toml:"plain_http"`

	// Verify re-resolves the pushed tag through the registry API and
	// compares digests.
	Verify bool `toml:"verify"`
}

// Validate implements the section contract.
func (r *Registry) Validate() error {
	if r.Username != "" && r.Password == "" {
		return fmt.Errorf("%w: registry username set without a password reference", ErrInvalid)
	}
	return nil
}

// Deploy configures the remote rollout stage.
type Deploy struct {
	// Enabled toggles the stage.
	Enabled bool `toml:"enabled"`

	// Hosts are "user@host:port" targets; port defaults to 22.
	Hosts []string `toml:"hosts"`

	// Container is the remote container name to replace.
	Container string `toml:"container"`

	// Ports are docker -p mappings, e.g. "8080:8080".
	Ports []string `toml:"ports"`

	// Restart is the docker restart policy for the new container.
	Restart string `toml:"restart"`

	// Env are environment variables set on the new container.
	Env map[string]string `toml:"env"`

	// Key is a secret reference to the SSH private key.
	Key string `toml:"key"`

	// Password is a secret reference for password auth, used when Key
	// is empty.
	Password string `toml:"password"`

	// KnownHosts is the path of the known_hosts file used for host key
	// verification. Empty selects ~/.ssh/known_hosts.
	KnownHosts string `toml:"known_hosts"`

	// InsecureIgnoreHostKey skips host key verification. Only for
	// throwaway environments.
	InsecureIgnoreHostKey bool `toml:"insecure_ignore_host_key"`

	// Login runs docker login on the remote host before pulling, using
	// the registry credentials.
	Login bool `toml:"login"`

	// MaxConcurrent bounds the host fan-out; 0 means all at once.
	MaxConcurrent int `toml:"max_concurrent"`
}

// Validate implements the section contract.
func (d *Deploy) Validate() error {
	if !d.Enabled {
		return nil
	}
	if len(d.Hosts) == 0 {
		return fmt.Errorf("%w: deploy enabled with no hosts", ErrInvalid)
	}
	if strings.TrimSpace(d.Container) == "" {
		return fmt.Errorf("%w: deploy container name is required", ErrInvalid)
	}
	if d.Key == "" && d.Password == "" {
		return fmt.Errorf("%w: deploy needs a key or password reference", ErrInvalid)
	}
	if d.MaxConcurrent < 0 {
		return fmt.Errorf("%w: max_concurrent cannot be negative", ErrInvalid)
	}
	for _, h := range d.Hosts {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("%w: empty deploy host", ErrInvalid)
		}
	}
	return nil
}

// Git configures the commit-back stage.
type Git struct {
	// Enabled toggles the stage.
	Enabled bool `toml:"enabled"`

	// Branches is the allowlist of branches the pipeline may commit
	// back from. Empty means any branch.
	Branches []string `toml:"branches"`

	// AuthorName and AuthorEmail sign the bump commit.
	AuthorName  string `toml:"author_name"`
	AuthorEmail string `toml:"author_email"`

	// Message is the commit message template ({version}, {previous},
	// {build}, {job} placeholders). Empty selects the default.
	Message string `toml:"message"`

	// RequireConventional validates the rendered message as a
	// Conventional Commit before committing.
	RequireConventional bool `toml:"require_conventional"`

	// Tag creates an annotated tag v<version> after the bump commit.
	Tag bool `toml:"tag"`

	// Token is a secret reference for HTTPS remotes.
	Token string `toml:"token"`

	// TokenUser overrides the basic-auth username for Token.
	TokenUser string `toml:"token_user"`

	// SSHKey is a secret reference to a private key for SSH remotes.
	SSHKey string `toml:"ssh_key"`
}

// Validate implements the section contract.
func (g *Git) Validate() error {
	if !g.Enabled {
		return nil
	}
	if strings.TrimSpace(g.AuthorName) == "" || strings.TrimSpace(g.AuthorEmail) == "" {
		return fmt.Errorf("%w: git author_name and author_email are required", ErrInvalid)
	}
	return nil
}

// Archive configures the optional artifact upload.
type Archive struct {
	// Enabled toggles the stage.
	Enabled bool `toml:"enabled"`

	// Bucket is the S3 bucket name.
	Bucket string `toml:"bucket"`

	// Prefix is the key prefix within the bucket.
	Prefix string `toml:"prefix"`

	// Region overrides the SDK's region resolution.
	Region string `toml:"region"`
}

// Validate implements the section contract.
func (a *Archive) Validate() error {
	if a.Enabled && strings.TrimSpace(a.Bucket) == "" {
		return fmt.Errorf("%w: archive enabled with no bucket", ErrInvalid)
	}
	return nil
}

// History configures run history persistence.
type History struct {
	// Enabled toggles recording.
	Enabled bool `toml:"enabled"`

	// Path is the SQLite database file; empty selects the XDG data dir.
	// A leading ~ expands to the home directory.
	Path string `toml:"path"`
}

// Validate implements the section contract.
func (h *History) Validate() error {
	return nil
}

// Default returns the configuration baseline that Load overlays the
// file onto.
func Default() *Config {
	return &Config{
		Project: Project{
			Descriptor: "pom.xml",
		},
		Maven: Maven{
			Binary:          "mvn",
			VersionStrategy: "builtin",
		},
		Image: Image{
			Context: ".",
		},
		Registry: Registry{
			Verify: true,
		},
		Deploy: Deploy{
			Restart: "unless-stopped",
		},
		Git: Git{
			RequireConventional: true,
		},
		History: History{
			Enabled: true,
		},
	}
}
