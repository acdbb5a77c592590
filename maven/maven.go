// Package maven drives the Maven build tool for the Java application:
// running tests, packaging the jar, and rewriting the project version
// through the versions plugin. All invocations go through an
// executor.Runner so tests never need a Maven installation.
package maven

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/elorm116/java-cicd-demo/executor"
	"github.com/elorm116/java-cicd-demo/version"
)

// DefaultBinary is the Maven executable resolved from PATH.
const DefaultBinary = "mvn"

var (
	// ErrBuildFailed indicates a Maven invocation exited non-zero.
	ErrBuildFailed = errors.New("maven build failed")

	// ErrBadVersionOutput indicates Maven's reported project version could
	// not be parsed.
	ErrBadVersionOutput = errors.New("unparseable maven version output")
)

// BuildError carries the failing goals and trailing build output so the
// caller can show the compiler or surefire report without re-running.
type BuildError struct {
	Goals    []string
	ExitCode int
	Output   string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("mvn %s exited with code %d", strings.Join(e.Goals, " "), e.ExitCode)
}

// Unwrap makes BuildError match ErrBuildFailed under errors.Is.
func (e *BuildError) Unwrap() error {
	return ErrBuildFailed
}

// Maven invokes the build tool against one project directory.
type Maven struct {
	runner    executor.Runner
	bin       string
	workDir   string
	profiles  []string
	settings  string
	skipTests bool
	stream    bool
	env       map[string]string
}

// Option configures a Maven instance.
type Option func(*Maven)

// WithRunner substitutes the command runner. Tests inject fakes here.
func WithRunner(r executor.Runner) Option {
	return func(m *Maven) {
		m.runner = r
	}
}

// WithBinary overrides the Maven executable, e.g. "./mvnw".
func WithBinary(bin string) Option {
	return func(m *Maven) {
		m.bin = bin
	}
}

// WithProfiles activates Maven profiles (-P).
func WithProfiles(profiles ...string) Option {
	return func(m *Maven) {
		m.profiles = append(m.profiles, profiles...)
	}
}

// WithSettings points Maven at an alternate settings.xml (-s).
func WithSettings(path string) Option {
	return func(m *Maven) {
		m.settings = path
	}
}

// WithSkipTests sets -DskipTests on package invocations.
func WithSkipTests(skip bool) Option {
	return func(m *Maven) {
		m.skipTests = skip
	}
}

// WithStream mirrors Maven output to the console while it runs.
func WithStream(stream bool) Option {
	return func(m *Maven) {
		m.stream = stream
	}
}

// WithEnv adds environment variables to every invocation.
func WithEnv(env map[string]string) Option {
	return func(m *Maven) {
		if m.env == nil {
			m.env = make(map[string]string)
		}
		for k, v := range env {
			m.env[k] = v
		}
	}
}

// New creates a Maven instance for the project in workDir.
func New(workDir string, opts ...Option) *Maven {
	m := &Maven{
		runner:  executor.Local{},
		bin:     DefaultBinary,
		workDir: workDir,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Test runs the project's test suite (mvn test).
func (m *Maven) Test(ctx context.Context) error {
	_, err := m.run(ctx, []string{"test"})
	return err
}

// Package builds the deployable artifact (mvn package). Tests are skipped
// when the instance was configured with WithSkipTests, which the workflow
// uses after a separate test stage has already run them.
func (m *Maven) Package(ctx context.Context) error {
	var props []string
	if m.skipTests {
		props = append(props, "-DskipTests")
	}
	_, err := m.run(ctx, []string{"package"}, props...)
	return err
}

// SetVersion rewrites the project version in pom.xml through the Maven
// versions plugin. Backup poms are suppressed so the working tree stays
// clean for the commit-back stage.
func (m *Maven) SetVersion(ctx context.Context, v version.Version) error {
	_, err := m.run(ctx, []string{"versions:set"},
		"-DnewVersion="+v.String(),
		"-DgenerateBackupPoms=false",
	)
	return err
}

// EffectiveVersion asks Maven for the resolved project version
// (help:evaluate). This sees the version exactly as the build will use
// it, after property and parent resolution.
func (m *Maven) EffectiveVersion(ctx context.Context) (version.Version, error) {
	result, err := m.run(ctx, []string{"help:evaluate"},
		"-q",
		"-Dexpression=project.version",
		"-DforceStdout",
	)
	if err != nil {
		return version.Version{}, err
	}

	// Plugins and JVM warnings can precede the value even under -q; the
	// version is the last non-empty line.
	raw := lastNonEmptyLine(result.Stdout)
	if raw == "" {
		return version.Version{}, fmt.Errorf("help:evaluate produced no output: %w", ErrBadVersionOutput)
	}
	v, perr := version.Parse(raw)
	if perr != nil {
		return version.Version{}, fmt.Errorf("maven reported version %q: %w", raw, ErrBadVersionOutput)
	}
	return v, nil
}

// run assembles and executes a Maven command line: batch mode, settings
// and profiles first, then goals, then property flags.
func (m *Maven) run(ctx context.Context, goals []string, props ...string) (*executor.Result, error) {
	args := []string{"-B"}
	if m.settings != "" {
		args = append(args, "-s", m.settings)
	}
	if len(m.profiles) > 0 {
		args = append(args, "-P", strings.Join(m.profiles, ","))
	}
	args = append(args, goals...)
	args = append(args, props...)

	opts := []executor.Option{
		executor.WithWorkDir(m.workDir),
		executor.WithCapture(true, true, false),
		executor.WithConsoleStream(m.stream),
	}
	if len(m.env) > 0 {
		opts = append(opts, executor.WithEnv(m.env))
	}

	result, err := m.runner.Run(ctx, m.bin, args, opts...)
	if err != nil {
		if result == nil {
			return nil, fmt.Errorf("mvn %s: %w", strings.Join(goals, " "), err)
		}
		return result, &BuildError{
			Goals:    goals,
			ExitCode: result.ExitCode,
			Output:   tailLines(result.Stdout+result.Stderr, 40),
		}
	}
	return result, nil
}

// lastNonEmptyLine returns the trailing non-blank line of s.
func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// tailLines returns the last n lines of s.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
