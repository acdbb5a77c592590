package git

import (
	"errors"
	"fmt"
)

// Sentinel errors for git operations. They wrap the underlying go-git
// errors behind a stable surface checkable with errors.Is().

// ErrAlreadyUpToDate is returned when a push results in no changes
// because local and remote are already synchronized.
var ErrAlreadyUpToDate = errors.New("already up to date")

// ErrAuthRequired is returned when an operation needs authentication but
// no credentials could be resolved for the remote URL.
var ErrAuthRequired = errors.New("authentication required")

// ErrEmptyCommit is returned when a commit is requested with nothing
// staged. The release pipeline treats this as "descriptor unchanged,
// skip commit-back" rather than a failure.
var ErrEmptyCommit = errors.New("nothing staged for commit")

// ErrTagExists is returned when creating a tag that already exists.
var ErrTagExists = errors.New("tag already exists")

// ErrNotFastForward is returned when a push is rejected because the
// remote moved; someone else committed since the build checked out.
var ErrNotFastForward = errors.New("not a fast-forward")

// ErrInvalidRef is returned for malformed reference names or invalid
// option combinations.
var ErrInvalidRef = errors.New("invalid reference")

// ErrInvalidMessage is returned when a rendered commit message does not
// parse as a conventional commit.
var ErrInvalidMessage = errors.New("invalid commit message")

// ErrResolveFailed is returned when a revision cannot be resolved to a
// commit (missing HEAD, unknown remote, bad revision).
var ErrResolveFailed = errors.New("cannot resolve revision")

// WrapError wraps an error with additional context while preserving
// errors.Is() checks against the sentinels.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf is WrapError with a format string.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
