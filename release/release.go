// Package release assembles the concrete release workflow: bump the
// project version, build and test with Maven, build and push the image,
// optionally archive the jar, roll the image out to the deploy hosts,
// and commit the bumped descriptor back to git. The package owns the
// stage order and the state handed from stage to stage; the actual work
// is done by the maven, docker, registry, deploy, artifact, git and
// history packages behind small interfaces so the binary can wire real
// clients and tests can wire fakes.
package release

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/elorm116/java-cicd-demo/artifact"
	"github.com/elorm116/java-cicd-demo/config"
	"github.com/elorm116/java-cicd-demo/deploy"
	"github.com/elorm116/java-cicd-demo/docker"
	"github.com/elorm116/java-cicd-demo/fs"
	"github.com/elorm116/java-cicd-demo/git"
	"github.com/elorm116/java-cicd-demo/history"
	"github.com/elorm116/java-cicd-demo/jenkins"
	"github.com/elorm116/java-cicd-demo/pipeline"
	"github.com/elorm116/java-cicd-demo/version"
)

var (
	// ErrNotConfigured indicates the workflow is missing a component a
	// configured stage needs.
	ErrNotConfigured = errors.New("component not configured")

	// ErrNotSkippable indicates a --skip value that names no skippable
	// stage.
	ErrNotSkippable = errors.New("stage cannot be skipped")

	// ErrLocked indicates another release run holds the workspace lock.
	ErrLocked = errors.New("another release is already running")

	// ErrVersionDrift indicates the descriptor on disk no longer carries
	// the version the run wrote into it.
	ErrVersionDrift = errors.New("descriptor version drift")
)

// State accumulates the facts a run produces. Stages read what earlier
// stages wrote; the binary reads the whole thing for its summary.
type State struct {
	// Previous is the version found in the descriptor before the bump.
	Previous version.Version

	// Version is the released version.
	Version version.Version

	// Artifact is the Maven artifactId, used for jar names.
	Artifact string

	// Packaging is the Maven packaging type, "jar" unless the descriptor
	// says otherwise.
	Packaging string

	// Image is the versioned image reference that was built and pushed.
	Image string

	// LatestImage is the floating tag pushed alongside Image, empty when
	// the latest tag is disabled.
	LatestImage string

	// Digest is the pushed image's repo digest.
	Digest digest.Digest

	// ArtifactKey is the object key the jar was archived under.
	ArtifactKey string

	// Branch is the branch the commit-back guard resolved.
	Branch string

	// Commit is the SHA of the version bump commit, empty until the
	// commit-back stage runs.
	Commit string

	// Tag is the release tag created by commit-back, when enabled.
	Tag string

	// Hosts holds the per-host deploy outcomes.
	Hosts []deploy.HostResult
}

// MavenRunner is the Maven surface the workflow drives.
type MavenRunner interface {
	Test(ctx context.Context) error
	Package(ctx context.Context) error
	SetVersion(ctx context.Context, v version.Version) error
}

// ImageBuilder is the docker CLI surface the workflow drives.
type ImageBuilder interface {
	Login(ctx context.Context, registry, username, password string) error
	Build(ctx context.Context, spec docker.BuildSpec) error
	Tag(ctx context.Context, src, dst string) error
	Push(ctx context.Context, image string) error
	RepoDigest(ctx context.Context, image string) (digest.Digest, error)
}

// ImageVerifier confirms the registry serves the digest that was pushed.
type ImageVerifier interface {
	Verify(ctx context.Context, reference string, want digest.Digest) (ocispec.Descriptor, error)
}

// HostDeployer rolls an image out to the deploy targets.
type HostDeployer interface {
	Deploy(ctx context.Context, image string, targets []deploy.Target) ([]deploy.HostResult, error)
}

// Uploader archives the built jar.
type Uploader interface {
	Archive(ctx context.Context, localPath, name, version string) (*artifact.Result, error)
}

// Repository is the git surface the commit-back stage drives.
type Repository interface {
	CurrentBranch() (string, error)
	IsClean() (bool, error)
	Add(ctx context.Context, patterns ...string) error
	Commit(ctx context.Context, message string, author git.Signature, opts *git.CommitOpts) (string, error)
	CreateTag(ctx context.Context, name, message string, tagger git.Signature) error
	Push(ctx context.Context, opts *git.PushOpts) error
}

// Recorder persists the run report.
type Recorder interface {
	Record(ctx context.Context, report *pipeline.Report, meta history.Meta) (int64, error)
}

// Workflow is one configured release run.
type Workflow struct {
	cfg  *config.Config
	fsys fs.Filesystem

	maven    MavenRunner
	docker   ImageBuilder
	verifier ImageVerifier
	deployer HostDeployer
	uploader Uploader
	repo     Repository
	recorder Recorder

	ci       jenkins.Env
	bump     version.Part
	skip     map[string]bool
	regUser  string
	regPass  string
	lockPath string
	now      func() time.Time

	state State
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithMaven sets the Maven runner.
func WithMaven(m MavenRunner) Option {
	return func(w *Workflow) { w.maven = m }
}

// WithDocker sets the image builder.
func WithDocker(d ImageBuilder) Option {
	return func(w *Workflow) { w.docker = d }
}

// WithVerifier sets the registry-side digest check performed after the
// push.
func WithVerifier(v ImageVerifier) Option {
	return func(w *Workflow) { w.verifier = v }
}

// WithDeployer sets the host deployer.
func WithDeployer(d HostDeployer) Option {
	return func(w *Workflow) { w.deployer = d }
}

// WithUploader sets the jar archiver.
func WithUploader(u Uploader) Option {
	return func(w *Workflow) { w.uploader = u }
}

// WithRepository sets the git repository for commit-back.
func WithRepository(r Repository) Option {
	return func(w *Workflow) { w.repo = r }
}

// WithRecorder sets the run history sink.
func WithRecorder(r Recorder) Option {
	return func(w *Workflow) { w.recorder = r }
}

// WithCI attaches the Jenkins build context used for image labels,
// commit messages and history metadata.
func WithCI(env jenkins.Env) Option {
	return func(w *Workflow) { w.ci = env }
}

// WithBump selects which version part the run increments.
func WithBump(part version.Part) Option {
	return func(w *Workflow) { w.bump = part }
}

// WithSkip marks stages to skip by name.
func WithSkip(names ...string) Option {
	return func(w *Workflow) {
		for _, n := range names {
			w.skip[n] = true
		}
	}
}

// WithRegistryLogin sets the credentials for the docker login performed
// before pushing. Empty username means no login.
func WithRegistryLogin(username, password string) Option {
	return func(w *Workflow) {
		w.regUser = username
		w.regPass = password
	}
}

// withClock substitutes the time source used for signatures and labels.
func withClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// New assembles a Workflow and checks that every stage the config
// enables has the component it needs. Maven and docker are always
// required; the rest depend on the config's toggles.
func New(cfg *config.Config, fsys fs.Filesystem, opts ...Option) (*Workflow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrNotConfigured)
	}
	if fsys == nil {
		return nil, fmt.Errorf("%w: filesystem is required", ErrNotConfigured)
	}

	w := &Workflow{
		cfg:      cfg,
		fsys:     fsys,
		bump:     version.Patch,
		skip:     map[string]bool{},
		lockPath: DefaultLockPath,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.maven == nil {
		return nil, fmt.Errorf("%w: maven runner is required", ErrNotConfigured)
	}
	if w.docker == nil {
		return nil, fmt.Errorf("%w: image builder is required", ErrNotConfigured)
	}
	if cfg.Registry.Verify && w.verifier == nil {
		return nil, fmt.Errorf("%w: registry verification is enabled but no verifier is wired", ErrNotConfigured)
	}
	if cfg.Deploy.Enabled && w.deployer == nil {
		return nil, fmt.Errorf("%w: deploy is enabled but no deployer is wired", ErrNotConfigured)
	}
	if cfg.Archive.Enabled && w.uploader == nil {
		return nil, fmt.Errorf("%w: archiving is enabled but no uploader is wired", ErrNotConfigured)
	}
	if cfg.Git.Enabled && w.repo == nil {
		return nil, fmt.Errorf("%w: commit-back is enabled but no repository is wired", ErrNotConfigured)
	}

	for name := range w.skip {
		if !skippable[name] {
			return nil, fmt.Errorf("%w: %q", ErrNotSkippable, name)
		}
	}
	return w, nil
}

// State returns a copy of the run state accumulated so far.
func (w *Workflow) State() State {
	return w.state
}

// Run executes the workflow under the workspace lock and records the
// outcome. The report is returned even when the run failed; the error
// mirrors the report's failure so callers can branch on either.
func (w *Workflow) Run(ctx context.Context, opts ...pipeline.Option) (*pipeline.Report, error) {
	lock, err := acquireLock(w.fsys, w.lockPath)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	report := pipeline.NewRunner(w.Stages(), opts...).Run(ctx)

	if w.recorder != nil {
		if _, err := w.recorder.Record(ctx, report, w.meta()); err != nil && report.Err == nil {
			return report, fmt.Errorf("record run history: %w", err)
		}
	}
	return report, report.Err
}

// meta flattens the run state into the history record.
func (w *Workflow) meta() history.Meta {
	commit := w.state.Commit
	if commit == "" {
		commit = w.ci.GitCommit
	}
	branch := w.state.Branch
	if branch == "" {
		branch = w.ci.Branch()
	}
	return history.Meta{
		PreviousVersion: w.state.Previous.String(),
		Version:         w.state.Version.String(),
		Image:           w.state.Image,
		Digest:          w.state.Digest.String(),
		Commit:          commit,
		Branch:          branch,
		BuildNumber:     w.ci.BuildNumber,
		JobName:         w.ci.JobName,
	}
}
