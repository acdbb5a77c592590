package git

import (
	"context"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Add stages files matching the given glob patterns, relative to the
// workdir. Patterns without glob metacharacters behave as literal paths.
func (r *Repo) Add(ctx context.Context, patterns ...string) error {
	if len(patterns) == 0 {
		return WrapError(ErrInvalidRef, "at least one pattern is required")
	}

	for _, pattern := range patterns {
		matches, err := util.Glob(r.worktree.Filesystem, pattern)
		if err != nil {
			return WrapErrorf(err, "failed to glob pattern %q", pattern)
		}
		if len(matches) == 0 {
			// A literal path that exists but matched nothing via Glob
			// still needs staging; let go-git report the real error.
			matches = []string{pattern}
		}
		for _, match := range matches {
			if _, err := r.worktree.Add(match); err != nil {
				return WrapErrorf(err, "failed to stage %q", match)
			}
		}
	}
	return nil
}

// IsClean reports whether the worktree has no changes, staged or not.
func (r *Repo) IsClean() (bool, error) {
	status, err := r.worktree.Status()
	if err != nil {
		return false, WrapError(err, "failed to read worktree status")
	}
	return status.IsClean(), nil
}

// ChangedPaths returns the sorted paths that differ from HEAD, whether
// staged or unstaged. The release pipeline uses this to decide if the
// build descriptor rewrite actually changed anything worth committing.
func (r *Repo) ChangedPaths() ([]string, error) {
	status, err := r.worktree.Status()
	if err != nil {
		return nil, WrapError(err, "failed to read worktree status")
	}

	paths := make([]string, 0, len(status))
	for path, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// Commit creates a commit from the staged changes. With nothing staged
// and AllowEmpty unset it returns ErrEmptyCommit, which the pipeline
// treats as "nothing to push" rather than a failure.
func (r *Repo) Commit(ctx context.Context, message string, author Signature, opts *CommitOpts) (string, error) {
	if message == "" {
		return "", WrapError(ErrInvalidRef, "commit message is required")
	}
	if opts == nil {
		opts = &CommitOpts{}
	}

	if !opts.AllowEmpty {
		status, err := r.worktree.Status()
		if err != nil {
			return "", WrapError(err, "failed to read worktree status")
		}
		staged := 0
		for _, st := range status {
			if st.Staging != git.Unmodified && st.Staging != git.Untracked {
				staged++
			}
		}
		if staged == 0 {
			return "", ErrEmptyCommit
		}
	}

	when := author.When
	if when.IsZero() {
		when = time.Now()
	}

	hash, err := r.worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  when,
		},
		AllowEmptyCommits: opts.AllowEmpty,
	})
	if err != nil {
		if err == git.ErrEmptyCommit {
			return "", ErrEmptyCommit
		}
		return "", WrapError(err, "failed to create commit")
	}
	return hash.String(), nil
}
