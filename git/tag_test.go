package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTag(t *testing.T) {
	t.Run("annotated tag at head", func(t *testing.T) {
		tr := setupTestRepoWithCommit(t)

		require.NoError(t, tr.repo.CreateTag(tr.ctx, "v0.0.4", "release 0.0.4", testSignature()))

		tags, err := tr.repo.Tags()
		require.NoError(t, err)
		assert.Equal(t, []string{"v0.0.4"}, tags)
	})

	t.Run("duplicate tag", func(t *testing.T) {
		tr := setupTestRepoWithCommit(t)

		require.NoError(t, tr.repo.CreateTag(tr.ctx, "v1.0.0", "first", testSignature()))
		err := tr.repo.CreateTag(tr.ctx, "v1.0.0", "second", testSignature())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTagExists)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		tr := setupTestRepoWithCommit(t)
		err := tr.repo.CreateTag(tr.ctx, "", "msg", testSignature())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidRef)
	})

	t.Run("no head to tag", func(t *testing.T) {
		tr := setupTestRepo(t)
		err := tr.repo.CreateTag(tr.ctx, "v1.0.0", "msg", testSignature())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrResolveFailed)
	})
}

func TestTagsSorted(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	for _, name := range []string{"v0.0.9", "v0.0.1", "v0.0.5"} {
		require.NoError(t, tr.repo.CreateTag(tr.ctx, name, "release "+name, testSignature()))
	}

	tags, err := tr.repo.Tags()
	require.NoError(t, err)
	assert.Equal(t, []string{"v0.0.1", "v0.0.5", "v0.0.9"}, tags)
}
