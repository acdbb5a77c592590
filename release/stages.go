package release

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/elorm116/java-cicd-demo/deploy"
	"github.com/elorm116/java-cicd-demo/docker"
	"github.com/elorm116/java-cicd-demo/git"
	"github.com/elorm116/java-cicd-demo/maven"
	"github.com/elorm116/java-cicd-demo/pipeline"
	"github.com/elorm116/java-cicd-demo/pom"
)

// Stage names as they appear in reports, console output and --skip.
const (
	StageBump    = "bump version"
	StageVerify  = "verify descriptor"
	StageTest    = "maven test"
	StagePackage = "maven package"
	StageBuild   = "docker build"
	StagePush    = "docker push"
	StageArchive = "archive artifact"
	StageDeploy  = "deploy"
	StageCommit  = "commit back"
)

// stageOrder is the fixed execution order.
var stageOrder = []string{
	StageBump,
	StageVerify,
	StageTest,
	StagePackage,
	StageBuild,
	StagePush,
	StageArchive,
	StageDeploy,
	StageCommit,
}

// skippable lists what --skip may name. The build stages are not here:
// everything behind them consumes their output.
var skippable = map[string]bool{
	StageTest:    true,
	StageArchive: true,
	StageDeploy:  true,
	StageCommit:  true,
}

// StageNames returns the stage names in execution order.
func StageNames() []string {
	return slices.Clone(stageOrder)
}

// SkippableStages returns the names --skip accepts, in execution order.
func SkippableStages() []string {
	names := make([]string, 0, len(skippable))
	for _, name := range stageOrder {
		if skippable[name] {
			names = append(names, name)
		}
	}
	return names
}

// Stages assembles the pipeline. The slice is rebuilt on every call;
// the closures all report into the shared workflow state.
func (w *Workflow) Stages() []pipeline.Stage {
	return []pipeline.Stage{
		{Name: StageBump, Run: w.runBump},
		{Name: StageVerify, Run: w.runVerify},
		{Name: StageTest, Run: w.runTest, SkipWhen: w.skipTest},
		{Name: StagePackage, Run: w.runPackage},
		{Name: StageBuild, Run: w.runBuild},
		{Name: StagePush, Run: w.runPush},
		{Name: StageArchive, Run: w.runArchive, SkipWhen: w.skipArchive},
		{Name: StageDeploy, Run: w.runDeploy, SkipWhen: w.skipDeploy},
		{Name: StageCommit, Run: w.runCommit, SkipWhen: w.skipCommit},
	}
}

func (w *Workflow) descriptor() string {
	return w.cfg.Project.Descriptor
}

// runBump reads the descriptor, bumps the configured part and rewrites
// the version, either in-process or through maven versions:set.
func (w *Workflow) runBump(ctx context.Context) error {
	desc, err := pom.Load(w.fsys, w.descriptor())
	if err != nil {
		return err
	}
	prev, err := desc.Version()
	if err != nil {
		return err
	}
	next := prev.Bump(w.bump)

	w.state.Previous = prev
	w.state.Version = next
	w.state.Artifact = desc.ArtifactID()
	w.state.Packaging = desc.Packaging()
	w.state.Image = w.cfg.Image.Repository + ":" + next.String()
	if w.cfg.Image.Latest {
		w.state.LatestImage = w.cfg.Image.Repository + ":latest"
	}

	if w.cfg.Maven.VersionStrategy == "maven" {
		return w.maven.SetVersion(ctx, next)
	}
	return desc.SetVersion(next)
}

// runVerify re-reads the descriptor and requires both extraction paths
// to agree on the bumped version. A maven versions:set that wrote
// something unexpected fails here, before anything is built from it.
func (w *Workflow) runVerify(_ context.Context) error {
	desc, err := pom.Load(w.fsys, w.descriptor())
	if err != nil {
		return err
	}
	got, err := pom.Verify(desc.Raw())
	if err != nil {
		return err
	}
	if !got.Equal(w.state.Version) {
		return fmt.Errorf("%w: descriptor carries %s, run bumped to %s",
			ErrVersionDrift, got, w.state.Version)
	}
	return nil
}

func (w *Workflow) runTest(ctx context.Context) error {
	return w.maven.Test(ctx)
}

func (w *Workflow) skipTest(context.Context) (string, bool) {
	if w.cfg.Maven.SkipTestStage {
		return "tests disabled in configuration", true
	}
	if w.skip[StageTest] {
		return "skipped by request", true
	}
	return "", false
}

func (w *Workflow) runPackage(ctx context.Context) error {
	return w.maven.Package(ctx)
}

// runBuild builds the image with provenance labels from the CI
// environment.
func (w *Workflow) runBuild(ctx context.Context) error {
	labels := docker.StandardLabels(docker.LabelSpec{
		Version:  w.state.Version.String(),
		Revision: w.ci.GitCommit,
		BuildURL: w.ci.BuildURL,
		Created:  w.now(),
	})
	return w.docker.Build(ctx, docker.BuildSpec{
		ContextDir: w.cfg.Image.Context,
		Dockerfile: w.cfg.Image.Dockerfile,
		Image:      w.state.Image,
		Pull:       w.cfg.Image.Pull,
		Labels:     labels,
		BuildArgs:  w.cfg.Image.BuildArgs,
	})
}

// runPush logs in when credentials were wired, pushes the version tag
// and the optional latest tag, then pins the repo digest and has the
// registry confirm it serves that digest.
func (w *Workflow) runPush(ctx context.Context) error {
	if w.regUser != "" {
		if err := w.docker.Login(ctx, registryHost(w.state.Image), w.regUser, w.regPass); err != nil {
			return err
		}
	}
	if err := w.docker.Push(ctx, w.state.Image); err != nil {
		return err
	}
	if w.state.LatestImage != "" {
		if err := w.docker.Tag(ctx, w.state.Image, w.state.LatestImage); err != nil {
			return err
		}
		if err := w.docker.Push(ctx, w.state.LatestImage); err != nil {
			return err
		}
	}

	dgst, err := w.docker.RepoDigest(ctx, w.state.Image)
	if err != nil {
		return err
	}
	w.state.Digest = dgst

	if w.cfg.Registry.Verify {
		if _, err := w.verifier.Verify(ctx, w.state.Image, dgst); err != nil {
			return err
		}
	}
	return nil
}

// runArchive locates the artifact the package stage wrote under target/
// and uploads it.
func (w *Workflow) runArchive(ctx context.Context) error {
	jar, err := maven.FindArtifact(w.fsys, ".", w.state.Artifact, w.state.Version, w.state.Packaging)
	if err != nil {
		return err
	}
	res, err := w.uploader.Archive(ctx, jar, w.artifactName(), w.state.Version.String())
	if err != nil {
		return err
	}
	w.state.ArtifactKey = res.Key
	return nil
}

func (w *Workflow) skipArchive(context.Context) (string, bool) {
	if !w.cfg.Archive.Enabled {
		return "archiving disabled", true
	}
	if w.skip[StageArchive] {
		return "skipped by request", true
	}
	return "", false
}

// artifactName is the name the jar is archived under: the configured
// project name, falling back to the Maven artifactId.
func (w *Workflow) artifactName() string {
	if w.cfg.Project.Name != "" {
		return w.cfg.Project.Name
	}
	return w.state.Artifact
}

func (w *Workflow) runDeploy(ctx context.Context) error {
	targets, err := deploy.ParseTargets(w.cfg.Deploy.Hosts)
	if err != nil {
		return err
	}
	results, err := w.deployer.Deploy(ctx, w.state.Image, targets)
	w.state.Hosts = results
	return err
}

func (w *Workflow) skipDeploy(context.Context) (string, bool) {
	if !w.cfg.Deploy.Enabled {
		return "deploy disabled", true
	}
	if w.skip[StageDeploy] {
		return "skipped by request", true
	}
	return "", false
}

// skipCommit gates the commit-back stage: the feature toggle, the
// branch guard and a clean tree all skip rather than fail.
func (w *Workflow) skipCommit(context.Context) (string, bool) {
	if !w.cfg.Git.Enabled {
		return "commit-back disabled", true
	}
	if w.skip[StageCommit] {
		return "skipped by request", true
	}

	branch := w.currentBranch()
	w.state.Branch = branch
	if len(w.cfg.Git.Branches) > 0 {
		if branch == "" {
			return "cannot determine branch for guard", true
		}
		if !slices.Contains(w.cfg.Git.Branches, branch) {
			return fmt.Sprintf("branch %q is not a release branch", branch), true
		}
	}

	if clean, err := w.repo.IsClean(); err == nil && clean {
		return "nothing to commit", true
	}
	return "", false
}

// currentBranch resolves the branch for the guard. Jenkins checks out a
// detached HEAD, so the repository often reports nothing and the CI
// environment fills in.
func (w *Workflow) currentBranch() string {
	if b, err := w.repo.CurrentBranch(); err == nil && b != "" {
		return b
	}
	return w.ci.Branch()
}

// runCommit stages the descriptor, commits with the rendered message,
// optionally tags, and pushes.
func (w *Workflow) runCommit(ctx context.Context) error {
	msg, err := git.RenderMessage(w.cfg.Git.Message, git.MessageData{
		Version:  w.state.Version.String(),
		Previous: w.state.Previous.String(),
		Build:    w.ci.BuildNumber,
		Job:      w.ci.JobName,
	})
	if err != nil {
		return err
	}
	if w.cfg.Git.RequireConventional {
		if err := git.ValidateConventional(msg); err != nil {
			return err
		}
	}

	if err := w.repo.Add(ctx, w.descriptor()); err != nil {
		return err
	}
	author := git.Signature{
		Name:  w.cfg.Git.AuthorName,
		Email: w.cfg.Git.AuthorEmail,
		When:  w.now(),
	}
	sha, err := w.repo.Commit(ctx, msg, author, nil)
	if err != nil {
		// A dirty tree whose descriptor is untouched stages nothing;
		// with no commit there is nothing to tag or push.
		if errors.Is(err, git.ErrEmptyCommit) {
			return nil
		}
		return err
	}
	w.state.Commit = sha

	if w.cfg.Git.Tag {
		tag := "v" + w.state.Version.String()
		if err := w.repo.CreateTag(ctx, tag, "release "+w.state.Version.String(), author); err != nil {
			return err
		}
		w.state.Tag = tag
	}

	if err := w.repo.Push(ctx, &git.PushOpts{FollowTags: w.cfg.Git.Tag}); err != nil {
		if errors.Is(err, git.ErrAlreadyUpToDate) {
			return nil
		}
		return err
	}
	return nil
}

// registryHost returns the registry component of an image reference.
// Docker treats the first path segment as a registry only when it looks
// like a host; everything else lives on Docker Hub.
func registryHost(image string) string {
	first, _, ok := strings.Cut(image, "/")
	if ok && (strings.ContainsAny(first, ".:") || first == "localhost") {
		return first
	}
	return "docker.io"
}
