package git

import (
	"context"
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// PushOpts configures push behaviour.
type PushOpts struct {
	// Force allows non-fast-forward pushes. The release pipeline never
	// forces; a rejected push means someone else committed first.
	Force bool

	// FollowTags pushes annotated tags reachable from the pushed refs.
	FollowTags bool
}

// Push pushes the current branch to origin. Returns ErrAlreadyUpToDate
// when the remote already has everything, ErrNotFastForward when the
// remote moved ahead, and ErrAuthRequired when credentials are missing
// or rejected.
func (r *Repo) Push(ctx context.Context, opts *PushOpts) error {
	if opts == nil {
		opts = &PushOpts{}
	}

	auth, err := r.authFor(DefaultRemoteName)
	if err != nil {
		return err
	}

	err = r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: DefaultRemoteName,
		Auth:       auth,
		Force:      opts.Force,
		FollowTags: opts.FollowTags,
	})
	return mapSyncError(err, "push")
}

// authFor resolves the auth method for the named remote from its
// configured URL. Anonymous when no provider is set.
func (r *Repo) authFor(remoteName string) (transport.AuthMethod, error) {
	if r.options.Auth == nil {
		return nil, nil
	}

	remote, err := r.repo.Remote(remoteName)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return nil, WrapErrorf(ErrResolveFailed, "remote %q not found", remoteName)
		}
		return nil, WrapErrorf(err, "failed to resolve remote %q", remoteName)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return nil, WrapErrorf(ErrResolveFailed, "remote %q has no URL", remoteName)
	}

	method, err := r.options.Auth.Method(urls[0])
	if err != nil {
		return nil, WrapError(err, "failed to resolve authentication")
	}
	return method, nil
}

func mapSyncError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return ErrAlreadyUpToDate
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return ErrNotFastForward
	case errors.Is(err, git.ErrRemoteNotFound):
		return WrapErrorf(ErrResolveFailed, "%s failed: remote not found", op)
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return WrapErrorf(ErrAuthRequired, "%s rejected", op)
	default:
		return WrapErrorf(err, "%s failed", op)
	}
}
