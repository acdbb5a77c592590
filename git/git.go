// Package git handles the repository side of the release: staging the
// rewritten build descriptor, committing it, tagging the release, and
// pushing back to the origin. It wraps go-git and operates exclusively
// through the project's filesystem abstraction, so the whole commit-back
// flow is testable in memory.
package git

import (
	"context"
	"fmt"
	"time"

	gobilly "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/elorm116/java-cicd-demo/fs"
	fsb "github.com/elorm116/java-cicd-demo/fs/billy"
)

const (
	// DefaultStorerCacheSize is the default LRU object cache size.
	DefaultStorerCacheSize = 1000

	// DefaultWorkdir is the default worktree directory name.
	DefaultWorkdir = "."

	// DefaultRemoteName is the remote used for push operations.
	DefaultRemoteName = "origin"
)

// AuthProvider resolves an authentication method for a remote URL.
// Implementations live in internal/auth; nil means anonymous access.
type AuthProvider interface {
	// Method returns the transport.AuthMethod for the given remote URL.
	// A nil method with nil error means no authentication for this URL.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// Signature identifies the author/committer/tagger of a commit or tag.
type Signature struct {
	Name  string
	Email string
	// When is the signature timestamp; zero means now.
	When time.Time
}

// CommitOpts configures commit creation.
type CommitOpts struct {
	// AllowEmpty permits a commit with nothing staged. The release
	// pipeline never sets this; it exists for tests and manual tooling.
	AllowEmpty bool
}

// Options configures repository access.
type Options struct {
	// FS is the required filesystem root holding the repository.
	FS fs.Filesystem

	// Workdir is the worktree path within FS. Defaults to ".".
	Workdir string

	// StorerCacheSize sets the LRU object cache entries.
	StorerCacheSize int

	// Auth resolves credentials for network operations. Optional.
	Auth AuthProvider
}

// Validate checks that the Options are usable.
func (o *Options) Validate() error {
	if o.FS == nil {
		return WrapError(ErrInvalidRef, "FS is required")
	}
	if o.StorerCacheSize < 0 {
		return WrapError(ErrInvalidRef, "StorerCacheSize cannot be negative")
	}
	return nil
}

func (o *Options) applyDefaults() {
	if o.Workdir == "" {
		o.Workdir = DefaultWorkdir
	}
	if o.StorerCacheSize == 0 {
		o.StorerCacheSize = DefaultStorerCacheSize
	}
}

// Repo is an open repository with its worktree.
type Repo struct {
	repo     *git.Repository
	worktree *git.Worktree
	fs       fs.Filesystem
	options  Options
}

// Init creates a new non-bare repository at the workdir. Tests use this
// to build fixtures; the production pipeline always opens the checkout
// Jenkins prepared.
func Init(ctx context.Context, opts *Options) (*Repo, error) {
	storage, worktreeFS, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Init(storage, worktreeFS)
	if err != nil {
		return nil, WrapError(err, "failed to initialize repository")
	}
	return wrap(repo, opts)
}

// Open opens the existing repository at the workdir. Both the .git
// directory and the worktree must be present.
func Open(ctx context.Context, opts *Options) (*Repo, error) {
	storage, worktreeFS, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(storage, worktreeFS)
	if err != nil {
		return nil, WrapError(err, "failed to open repository")
	}
	return wrap(repo, opts)
}

// prepare validates options and builds the go-git storage pair: object
// storage chrooted to .git, worktree chrooted to the workdir.
func prepare(opts *Options) (*filesystem.Storage, gobilly.Filesystem, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, WrapError(err, "invalid options")
	}
	opts.applyDefaults()

	billyFS, err := toBilly(opts.FS)
	if err != nil {
		return nil, nil, err
	}

	scopedFS, err := billyFS.Chroot(opts.Workdir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to chroot to workdir %q: %w", opts.Workdir, err)
	}
	dotGitFS, err := scopedFS.Chroot(git.GitDirName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access .git directory: %w", err)
	}

	objCache := cache.NewObjectLRU(cache.FileSize(opts.StorerCacheSize))
	return filesystem.NewStorage(dotGitFS, objCache), scopedFS, nil
}

func wrap(repo *git.Repository, opts *Options) (*Repo, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, WrapError(err, "failed to get worktree")
	}
	return &Repo{
		repo:     repo,
		worktree: worktree,
		fs:       opts.FS,
		options:  *opts,
	}, nil
}

// toBilly unwraps the billy filesystem behind the fs.Filesystem
// abstraction. Repository storage needs billy's chroot and symlink
// surface, which the narrow interface deliberately omits.
//
//nolint:ireturn // billy.Filesystem is what go-git storage consumes
func toBilly(fsys fs.Filesystem) (gobilly.Filesystem, error) {
	wrapped, ok := fsys.(*fsb.FS)
	if !ok {
		return nil, fmt.Errorf("filesystem must be a billy-backed FS, got %T", fsys)
	}
	return wrapped.Raw(), nil
}

// Head returns the SHA of the current HEAD commit.
func (r *Repo) Head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", WrapError(ErrResolveFailed, "failed to resolve HEAD")
	}
	return ref.Hash().String(), nil
}

// CurrentBranch returns the branch HEAD points at, or "" for a detached
// HEAD. Jenkins checks out a detached HEAD by default, so "" is a normal
// answer in CI; branch guards fall back to the Jenkins environment then.
func (r *Repo) CurrentBranch() (string, error) {
	ref, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", WrapError(ErrResolveFailed, "failed to read HEAD")
	}
	if ref.Type() != plumbing.SymbolicReference {
		return "", nil
	}
	target := ref.Target()
	if !target.IsBranch() {
		return "", nil
	}
	return target.Short(), nil
}
