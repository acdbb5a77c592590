package git

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CreateTag creates an annotated tag at HEAD. Release tags are always
// annotated so the tagger and message survive in history.
func (r *Repo) CreateTag(ctx context.Context, name, message string, tagger Signature) error {
	if name == "" {
		return WrapError(ErrInvalidRef, "tag name is required")
	}

	head, err := r.repo.Head()
	if err != nil {
		return WrapError(ErrResolveFailed, "failed to resolve HEAD")
	}

	when := tagger.When
	if when.IsZero() {
		when = time.Now()
	}

	_, err = r.repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Tagger: &object.Signature{
			Name:  tagger.Name,
			Email: tagger.Email,
			When:  when,
		},
		Message: message,
	})
	if err != nil {
		if errors.Is(err, git.ErrTagExists) {
			return WrapErrorf(ErrTagExists, "tag %q", name)
		}
		return WrapErrorf(err, "failed to create tag %q", name)
	}
	return nil
}

// Tags returns the sorted names of all tags in the repository.
func (r *Repo) Tags() ([]string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, WrapError(err, "failed to list tags")
	}

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to iterate tags")
	}
	sort.Strings(names)
	return names, nil
}
