package release

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elorm116/java-cicd-demo/git"
	"github.com/elorm116/java-cicd-demo/jenkins"
	"github.com/elorm116/java-cicd-demo/maven"
	"github.com/elorm116/java-cicd-demo/pipeline"
)

func TestSkipByRequest(t *testing.T) {
	h := newHarness(t)
	w := h.workflow(t, fullConfig(), WithSkip(StageTest, StageDeploy))

	report, err := w.Run(context.Background())
	require.NoError(t, err)

	result := requireStage(t, report, StageTest, pipeline.StatusSkipped)
	assert.Equal(t, "skipped by request", result.Reason)
	requireStage(t, report, StageDeploy, pipeline.StatusSkipped)

	assert.NotContains(t, h.maven.calls, "test")
	assert.False(t, h.deployer.called)
}

func TestDisabledTogglesSkipStages(t *testing.T) {
	h := newHarness(t)
	cfg := fullConfig()
	cfg.Deploy.Enabled = false
	cfg.Archive.Enabled = false
	cfg.Git.Enabled = false
	w := h.workflow(t, cfg)

	report, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "deploy disabled", requireStage(t, report, StageDeploy, pipeline.StatusSkipped).Reason)
	assert.Equal(t, "archiving disabled", requireStage(t, report, StageArchive, pipeline.StatusSkipped).Reason)
	assert.Equal(t, "commit-back disabled", requireStage(t, report, StageCommit, pipeline.StatusSkipped).Reason)
	assert.False(t, h.deployer.called)
	assert.False(t, h.uploader.called)
}

func TestSkipTestsFromConfig(t *testing.T) {
	h := newHarness(t)
	cfg := fullConfig()
	cfg.Maven.SkipTestStage = true
	w := h.workflow(t, cfg)

	report, err := w.Run(context.Background())
	require.NoError(t, err)

	result := requireStage(t, report, StageTest, pipeline.StatusSkipped)
	assert.Equal(t, "tests disabled in configuration", result.Reason)
	assert.Equal(t, []string{"package"}, h.maven.calls)
}

func TestPushWithoutLatestTag(t *testing.T) {
	h := newHarness(t)
	cfg := fullConfig()
	cfg.Image.Latest = false
	w := h.workflow(t, cfg)

	_, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"registry.example.com/demo/app:1.2.4"}, h.docker.pushed)
	assert.Empty(t, w.State().LatestImage)
}

func TestPushWithoutLogin(t *testing.T) {
	h := newHarness(t)
	w := h.workflow(t, fullConfig(), WithRegistryLogin("", ""))

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.docker.loginRegistry, "no login call expected")
	assert.NotContains(t, h.docker.calls, "login")
}

func TestPushSkipsVerifyWhenDisabled(t *testing.T) {
	h := newHarness(t)
	cfg := fullConfig()
	cfg.Registry.Verify = false
	w := h.workflow(t, cfg)

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.verifier.reference)
	// The digest is still pinned even without the registry round-trip.
	assert.Equal(t, h.docker.digest, w.State().Digest)
}

func TestBranchGuard(t *testing.T) {
	tests := []struct {
		name       string
		branches   []string
		repoBranch string
		ciBranch   string
		committed  bool
		reason     string
	}{
		{
			name:       "allowed branch commits",
			branches:   []string{"main", "master"},
			repoBranch: "main",
			committed:  true,
		},
		{
			name:       "feature branch skips",
			branches:   []string{"main"},
			repoBranch: "feature/login",
			reason:     `branch "feature/login" is not a release branch`,
		},
		{
			name:      "detached head falls back to jenkins",
			branches:  []string{"main"},
			ciBranch:  "origin/main",
			committed: true,
		},
		{
			name:     "unknown branch skips",
			branches: []string{"main"},
			reason:   "cannot determine branch for guard",
		},
		{
			name:       "no guard commits anywhere",
			repoBranch: "whatever",
			committed:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.repo.branch = tt.repoBranch
			h.ci.GitBranch = tt.ciBranch
			cfg := fullConfig()
			cfg.Git.Branches = tt.branches
			w := h.workflow(t, cfg)

			report, err := w.Run(context.Background())
			require.NoError(t, err)

			if tt.committed {
				requireStage(t, report, StageCommit, pipeline.StatusSuccess)
				assert.NotEmpty(t, h.repo.message)
			} else {
				result := requireStage(t, report, StageCommit, pipeline.StatusSkipped)
				assert.Equal(t, tt.reason, result.Reason)
				assert.Empty(t, h.repo.message)
			}
		})
	}
}

func TestCommitBackCleanTreeSkips(t *testing.T) {
	h := newHarness(t)
	h.repo.clean = true
	w := h.workflow(t, fullConfig())

	report, err := w.Run(context.Background())
	require.NoError(t, err)

	result := requireStage(t, report, StageCommit, pipeline.StatusSkipped)
	assert.Equal(t, "nothing to commit", result.Reason)
}

func TestCommitBackEmptyCommitTolerated(t *testing.T) {
	h := newHarness(t)
	h.repo.commitErr = git.ErrEmptyCommit
	w := h.workflow(t, fullConfig())

	report, err := w.Run(context.Background())
	require.NoError(t, err)

	requireStage(t, report, StageCommit, pipeline.StatusSuccess)
	assert.Empty(t, h.repo.tagName, "no tag without a commit")
	assert.Nil(t, h.repo.pushOpts, "no push without a commit")
	assert.Empty(t, w.State().Commit)
}

func TestCommitBackPushUpToDateTolerated(t *testing.T) {
	h := newHarness(t)
	h.repo.pushErr = git.ErrAlreadyUpToDate
	w := h.workflow(t, fullConfig())

	report, err := w.Run(context.Background())
	require.NoError(t, err)
	requireStage(t, report, StageCommit, pipeline.StatusSuccess)
}

func TestCommitBackWithoutTagging(t *testing.T) {
	h := newHarness(t)
	cfg := fullConfig()
	cfg.Git.Tag = false
	w := h.workflow(t, cfg)

	_, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.repo.tagName)
	require.NotNil(t, h.repo.pushOpts)
	assert.False(t, h.repo.pushOpts.FollowTags)
	assert.Empty(t, w.State().Tag)
}

func TestCommitMessageTemplate(t *testing.T) {
	h := newHarness(t)
	cfg := fullConfig()
	cfg.Git.Message = "chore(release): {job} #{build} releases {version}"
	w := h.workflow(t, cfg)

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "chore(release): demo-release #42 releases 1.2.4", h.repo.message)
}

func TestConventionalMessageEnforced(t *testing.T) {
	h := newHarness(t)
	cfg := fullConfig()
	cfg.Git.Message = "bumped to {version}"
	w := h.workflow(t, cfg)

	report, err := w.Run(context.Background())
	require.Error(t, err)
	result := requireStage(t, report, StageCommit, pipeline.StatusFailed)
	assert.ErrorIs(t, result.Err, git.ErrInvalidMessage)
	assert.Empty(t, h.repo.added, "nothing staged when the message is rejected")
}

func TestConventionalCheckDisabled(t *testing.T) {
	h := newHarness(t)
	cfg := fullConfig()
	cfg.Git.Message = "bumped to {version}"
	cfg.Git.RequireConventional = false
	w := h.workflow(t, cfg)

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bumped to 1.2.4", h.repo.message)
}

func TestHistoryMetaFallsBackToCI(t *testing.T) {
	h := newHarness(t)
	cfg := fullConfig()
	cfg.Git.Enabled = false
	w := h.workflow(t, cfg)

	_, err := w.Run(context.Background())
	require.NoError(t, err)

	// Without a commit-back commit the history points at the CI
	// checkout instead.
	assert.Equal(t, "abc1234", h.recorder.meta.Commit)
	assert.Equal(t, "main", h.recorder.meta.Branch)
}

func TestArchiveFailsWithoutBuildOutput(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.fsys.Remove("target/demo-app-1.2.4.jar"))
	w := h.workflow(t, fullConfig())

	report, err := w.Run(context.Background())
	require.Error(t, err)

	requireStage(t, report, StagePush, pipeline.StatusSuccess)
	result := requireStage(t, report, StageArchive, pipeline.StatusFailed)
	assert.ErrorIs(t, result.Err, maven.ErrNoArtifact)
	assert.False(t, h.uploader.called)
}

func TestStageOrdering(t *testing.T) {
	h := newHarness(t)
	w := h.workflow(t, fullConfig())

	stages := w.Stages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	assert.Equal(t, StageNames(), names)
	assert.Equal(t, []string{StageTest, StageArchive, StageDeploy, StageCommit}, SkippableStages())
}

func TestRegistryHost(t *testing.T) {
	tests := []struct {
		image string
		want  string
	}{
		{"registry.example.com/demo/app:1.2.3", "registry.example.com"},
		{"localhost:5000/demo/app:1.2.3", "localhost:5000"},
		{"library/ubuntu:24.04", "docker.io"},
		{"ubuntu:24.04", "docker.io"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, registryHost(tt.image), "image %s", tt.image)
	}
}

func TestCurrentBranchPrefersRepository(t *testing.T) {
	h := newHarness(t)
	h.repo.branch = "release"
	h.ci = jenkins.Env{GitBranch: "origin/main"}
	w := h.workflow(t, fullConfig())

	assert.Equal(t, "release", w.currentBranch())
}
