package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/elorm116/java-cicd-demo/artifact"
	"github.com/elorm116/java-cicd-demo/config"
	"github.com/elorm116/java-cicd-demo/deploy"
	"github.com/elorm116/java-cicd-demo/docker"
	"github.com/elorm116/java-cicd-demo/executor"
	"github.com/elorm116/java-cicd-demo/fs"
	billyfs "github.com/elorm116/java-cicd-demo/fs/billy"
	"github.com/elorm116/java-cicd-demo/git"
	"github.com/elorm116/java-cicd-demo/history"
	"github.com/elorm116/java-cicd-demo/jenkins"
	"github.com/elorm116/java-cicd-demo/maven"
	"github.com/elorm116/java-cicd-demo/pipeline"
	"github.com/elorm116/java-cicd-demo/registry"
	"github.com/elorm116/java-cicd-demo/release"
	"github.com/elorm116/java-cicd-demo/secrets"
	awssecrets "github.com/elorm116/java-cicd-demo/secrets/providers/aws"
	envsecrets "github.com/elorm116/java-cicd-demo/secrets/providers/env"
	semver "github.com/elorm116/java-cicd-demo/version"
)

func runRelease(args []string) error {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	configPath := flags.String("config", config.DefaultPath, "path of the configuration file")
	bumpName := flags.String("bump", "patch", "version part to bump: major, minor or patch")
	skips := flags.StringSlice("skip", nil,
		"stages to skip: "+strings.Join(release.SkippableStages(), ", "))
	dryRun := flags.Bool("dry-run", false, "print the resolved plan without executing")
	verbose := flags.Bool("verbose", false, "stream mvn and docker output")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	bump, err := semver.ParsePart(*bumpName)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	for _, name := range *skips {
		if !slices.Contains(release.SkippableStages(), name) {
			return fmt.Errorf("%w: stage %q cannot be skipped", errUsage, name)
		}
	}

	fsys := billyfs.NewOSFS(".")
	cfg, err := config.Load(fsys, *configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if *dryRun {
		printPlan(os.Stdout, cfg, *skips)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, cleanup, err := wireComponents(ctx, cfg, fsys, *verbose)
	if err != nil {
		return err
	}
	defer cleanup()
	opts = append(opts,
		release.WithCI(jenkins.FromEnv()),
		release.WithBump(bump),
		release.WithSkip(*skips...),
	)

	workflow, err := release.New(cfg, fsys, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	prog := newProgress(os.Stdout, *verbose)
	report, err := workflow.Run(ctx, pipeline.WithObserver(prog.stageStart, prog.stageEnd))
	if report != nil {
		printSummary(os.Stdout, report, workflow.State())
	}
	return err
}

// wireComponents builds the release workflow's collaborators from the
// configuration: tool wrappers always, and the registry, deploy, S3,
// git and history clients only when their stages are enabled. The
// returned cleanup closes whatever was opened.
func wireComponents(ctx context.Context, cfg *config.Config, fsys fs.Filesystem, verbose bool) ([]release.Option, func(), error) {
	mgr, err := newSecretManager(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanups := []func(){func() { _ = mgr.Close() }}
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	regPass, err := resolveSecret(ctx, mgr, cfg.Registry.Password)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("resolve registry password: %w", err)
	}

	runner := &executor.Local{}
	opts := []release.Option{
		release.WithMaven(maven.New(".",
			maven.WithRunner(runner),
			maven.WithBinary(cfg.Maven.Binary),
			maven.WithProfiles(cfg.Maven.Profiles...),
			maven.WithSettings(cfg.Maven.Settings),
			// The dedicated test stage owns test execution; packaging
			// never runs them again.
			maven.WithSkipTests(true),
			maven.WithStream(verbose),
		)),
		release.WithDocker(docker.New(
			docker.WithRunner(runner),
			docker.WithStream(verbose),
		)),
		release.WithRegistryLogin(cfg.Registry.Username, regPass),
	}

	if cfg.Registry.Verify {
		regOpts := []registry.Option{registry.WithPlainHTTP(cfg.Registry.PlainHTTP)}
		if cfg.Registry.Username != "" {
			regOpts = append(regOpts, registry.WithCredentials(cfg.Registry.Username, regPass))
		}
		opts = append(opts, release.WithVerifier(registry.New(regOpts...)))
	}

	if cfg.Deploy.Enabled {
		deployer, err := buildDeployer(ctx, cfg, mgr, regPass)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("configure deploy: %w", err)
		}
		opts = append(opts, release.WithDeployer(deployer))
	}

	if cfg.Archive.Enabled {
		uploader, err := artifact.NewFromConfig(ctx, fsys, cfg.Archive.Bucket, cfg.Archive.Region,
			artifact.WithPrefix(cfg.Archive.Prefix))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("configure artifact archive: %w", err)
		}
		opts = append(opts, release.WithUploader(uploader))
	}

	if cfg.Git.Enabled {
		repo, err := openRepo(ctx, cfg, fsys, mgr)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open repository: %w", err)
		}
		opts = append(opts, release.WithRepository(repo))
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open run history: %w", err)
		}
		cleanups = append(cleanups, func() { _ = store.Close() })
		opts = append(opts, release.WithRecorder(store))
	}

	return opts, cleanup, nil
}

// newSecretManager wires the env provider (Jenkins credential bindings)
// as the default and adds AWS Secrets Manager only when a reference
// names it, so local runs need no AWS account.
func newSecretManager(ctx context.Context, cfg *config.Config) (*secrets.Manager, error) {
	mgr := secrets.NewManager(&secrets.Config{DefaultProvider: "env"})
	if err := mgr.RegisterProvider("env", envsecrets.New()); err != nil {
		return nil, err
	}
	if needsAWS(cfg) {
		provider, err := awssecrets.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("configure aws secrets provider: %w", err)
		}
		if err := mgr.RegisterProvider("aws", provider); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

// needsAWS reports whether any configured secret reference names the
// aws provider.
func needsAWS(cfg *config.Config) bool {
	refs := []string{
		cfg.Registry.Password,
		cfg.Deploy.Key,
		cfg.Deploy.Password,
		cfg.Git.Token,
		cfg.Git.SSHKey,
	}
	for _, ref := range refs {
		if strings.HasPrefix(ref, "aws:") {
			return true
		}
	}
	return false
}

// resolveSecret resolves a configuration reference; an empty reference
// resolves to an empty value.
func resolveSecret(ctx context.Context, mgr *secrets.Manager, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	secret, err := mgr.ResolveString(ctx, ref)
	if err != nil {
		return "", err
	}
	return secret.String(), nil
}

func buildDeployer(ctx context.Context, cfg *config.Config, mgr *secrets.Manager, regPass string) (*deploy.Deployer, error) {
	key, err := resolveSecret(ctx, mgr, cfg.Deploy.Key)
	if err != nil {
		return nil, fmt.Errorf("resolve deploy key: %w", err)
	}
	password, err := resolveSecret(ctx, mgr, cfg.Deploy.Password)
	if err != nil {
		return nil, fmt.Errorf("resolve deploy password: %w", err)
	}

	creds := deploy.Credentials{Password: password}
	if key != "" {
		creds.PrivateKey = []byte(key)
	}
	var sshOpts []deploy.SSHOption
	if cfg.Deploy.KnownHosts != "" {
		sshOpts = append(sshOpts, deploy.WithKnownHosts(cfg.Deploy.KnownHosts))
	}
	if cfg.Deploy.InsecureIgnoreHostKey {
		sshOpts = append(sshOpts, deploy.WithInsecureHostKeys())
	}
	dialer, err := deploy.NewSSHDialer(creds, sshOpts...)
	if err != nil {
		return nil, err
	}

	spec := deploy.Spec{
		Container: cfg.Deploy.Container,
		Ports:     cfg.Deploy.Ports,
		Restart:   cfg.Deploy.Restart,
		Env:       cfg.Deploy.Env,
	}
	if cfg.Deploy.Login {
		spec.Login = &deploy.Login{
			Registry: registryOf(cfg.Image.Repository),
			Username: cfg.Registry.Username,
			Password: regPass,
		}
	}
	return deploy.New(dialer, spec, deploy.WithMaxConcurrent(cfg.Deploy.MaxConcurrent))
}

func openRepo(ctx context.Context, cfg *config.Config, fsys fs.Filesystem, mgr *secrets.Manager) (*git.Repo, error) {
	token, err := resolveSecret(ctx, mgr, cfg.Git.Token)
	if err != nil {
		return nil, fmt.Errorf("resolve git token: %w", err)
	}
	sshKey, err := resolveSecret(ctx, mgr, cfg.Git.SSHKey)
	if err != nil {
		return nil, fmt.Errorf("resolve git ssh key: %w", err)
	}

	var providers []git.AuthProvider
	if token != "" {
		providers = append(providers, git.TokenAuth(cfg.Git.TokenUser, token))
	}
	if sshKey != "" {
		providers = append(providers, git.SSHKeyAuth("git", []byte(sshKey), ""))
	}

	opts := &git.Options{FS: fsys}
	if len(providers) > 0 {
		opts.Auth = git.ChainAuth(providers...)
	}
	return git.Open(ctx, opts)
}

// registryOf extracts the registry host of an image repository for the
// remote docker login; empty means the daemon's default registry.
func registryOf(repository string) string {
	first, _, ok := strings.Cut(repository, "/")
	if ok && (strings.ContainsAny(first, ".:") || first == "localhost") {
		return first
	}
	return ""
}

// printPlan renders what a run would do, from configuration alone.
func printPlan(out io.Writer, cfg *config.Config, skips []string) {
	skipSet := map[string]bool{}
	for _, s := range skips {
		skipSet[s] = true
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Stage", "Plan"})
	for _, name := range release.StageNames() {
		t.AppendRow(table.Row{name, planFor(cfg, skipSet, name)})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	fmt.Fprintf(out, "\nImage %s, descriptor %s\n", cfg.Image.Repository, cfg.Project.Descriptor)
}

func planFor(cfg *config.Config, skip map[string]bool, stage string) string {
	if skip[stage] {
		return "skip (requested)"
	}
	switch stage {
	case release.StageTest:
		if cfg.Maven.SkipTestStage {
			return "skip (disabled)"
		}
	case release.StageArchive:
		if !cfg.Archive.Enabled {
			return "skip (disabled)"
		}
		return "run (s3://" + cfg.Archive.Bucket + ")"
	case release.StageDeploy:
		if !cfg.Deploy.Enabled {
			return "skip (disabled)"
		}
		return fmt.Sprintf("run (%d hosts)", len(cfg.Deploy.Hosts))
	case release.StageCommit:
		if !cfg.Git.Enabled {
			return "skip (disabled)"
		}
	}
	return "run"
}

// progress prints per-stage console output: an animated spinner on a
// TTY, plain lines when output is piped or verbose streaming is on.
type progress struct {
	out     io.Writer
	spin    *spinner.Spinner
	tty     bool
	verbose bool
}

func newProgress(out *os.File, verbose bool) *progress {
	return &progress{
		out:     out,
		tty:     term.IsTerminal(int(out.Fd())),
		verbose: verbose,
	}
}

func (p *progress) stageStart(stage pipeline.Stage) {
	if p.tty && !p.verbose {
		p.spin = spinner.New(spinner.CharSets[11], 100*time.Millisecond)
		p.spin.Color("yellow") //nolint:errcheck
		p.spin.Suffix = " " + stage.Name
		p.spin.Start()
		return
	}
	fmt.Fprintf(p.out, "=> %s\n", stage.Name)
}

func (p *progress) stageEnd(result pipeline.StageResult) {
	if p.spin != nil {
		p.spin.Stop()
		p.spin = nil
	}
	switch result.Status {
	case pipeline.StatusSkipped:
		fmt.Fprintf(p.out, "   %s: skipped (%s)\n", result.Name, result.Reason)
	case pipeline.StatusSuccess:
		fmt.Fprintf(p.out, "   %s: ok (%s)\n", result.Name, formatDuration(result.Duration))
	default:
		fmt.Fprintf(p.out, "   %s: %s: %v\n",
			result.Name, strings.ToLower(result.Status.String()), result.Err)
	}
}

// printSummary renders the final per-stage table and the release facts.
func printSummary(out io.Writer, report *pipeline.Report, state release.State) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Stage", "Status", "Duration", "Detail"})
	for _, res := range report.Results {
		detail := res.Reason
		if res.Err != nil {
			detail = res.Err.Error()
		}
		t.AppendRow(table.Row{res.Name, statusCell(res.Status), formatDuration(res.Duration), detail})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	if report.Failed() {
		fmt.Fprintf(out, "\nRun %s failed after %s\n", report.RunID, formatDuration(report.Duration()))
		return
	}
	fmt.Fprintf(out, "\nReleased %s (was %s) in %s\n",
		state.Version, state.Previous, formatDuration(report.Duration()))
	if state.Image != "" {
		fmt.Fprintf(out, "Image    %s\n", state.Image)
	}
	if state.Digest != "" {
		fmt.Fprintf(out, "Digest   %s\n", state.Digest)
	}
	if state.ArtifactKey != "" {
		fmt.Fprintf(out, "Artifact %s\n", state.ArtifactKey)
	}
	if state.Commit != "" {
		fmt.Fprintf(out, "Commit   %s", state.Commit)
		if state.Tag != "" {
			fmt.Fprintf(out, " (tag %s)", state.Tag)
		}
		fmt.Fprintln(out)
	}
}

func statusCell(s pipeline.Status) string {
	switch s {
	case pipeline.StatusSuccess:
		return text.FgGreen.Sprint(s)
	case pipeline.StatusFailed, pipeline.StatusCancelled:
		return text.FgRed.Sprint(s)
	case pipeline.StatusSkipped:
		return text.FgYellow.Sprint(s)
	default:
		return s.String()
	}
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(10 * time.Millisecond).String()
}
