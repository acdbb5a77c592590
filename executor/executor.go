// Package executor runs the external tools the pipeline drives (mvn, docker)
// with output capture, environment injection, retry logic, and masking of
// registered secret values in everything that leaves the process.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Result holds the output and error from a command execution.
// Captured output has registered secrets masked.
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
	Err      error
}

// Runner is the seam through which pipeline components invoke external
// tools. Production code uses Local; tests substitute fakes that record
// the requested command lines.
type Runner interface {
	// Run executes program with args.
	Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error)

	// RunWithInput executes program with args, feeding input on stdin.
	// Credentials travel this way, never on the argument vector.
	RunWithInput(ctx context.Context, input, program string, args []string, opts ...Option) (*Result, error)
}

// Local is the Runner that executes commands on the local machine.
type Local struct{}

// Run implements Runner.Run.
func (Local) Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error) {
	return New(program, args...).Execute(ctx, opts...)
}

// RunWithInput implements Runner.RunWithInput.
func (Local) RunWithInput(
	ctx context.Context,
	input, program string,
	args []string,
	opts ...Option,
) (*Result, error) {
	return New(program, args...).ExecuteWithInput(ctx, input, opts...)
}

// CommandExecutor executes a single command line.
type CommandExecutor struct {
	program string
	args    []string
	options *Options
}

// Options configures command execution behavior.
type Options struct {
	// Output handling
	CaptureStdout   bool
	CaptureStderr   bool
	CaptureCombined bool
	StreamToConsole bool

	// Retry configuration. A nil RetryOn retries on any error.
	MaxRetries int
	RetryDelay time.Duration
	RetryOn    func(*Result) bool

	// Working directory
	WorkDir string

	// Environment variables (appended to the current environment)
	Env map[string]string

	// Masks are secret values replaced with a placeholder in all captured
	// and streamed output.
	Masks []string

	// Custom stdout/stderr writers (for advanced use cases)
	StdoutWriter io.Writer
	StderrWriter io.Writer
}

// Option is a function that modifies Options.
type Option func(*Options)

// DefaultOptions returns default execution options.
func DefaultOptions() *Options {
	return &Options{
		CaptureStdout: true,
		CaptureStderr: true,
		RetryDelay:    time.Second,
		Env:           make(map[string]string),
	}
}

// New creates a new CommandExecutor for a single command line.
func New(program string, args ...string) *CommandExecutor {
	return &CommandExecutor{
		program: program,
		args:    args,
		options: DefaultOptions(),
	}
}

// Execute runs the command.
func (c *CommandExecutor) Execute(ctx context.Context, opts ...Option) (*Result, error) {
	return c.ExecuteWithInput(ctx, "", opts...)
}

// ExecuteWithInput runs the command with stdin input.
func (c *CommandExecutor) ExecuteWithInput(
	ctx context.Context,
	input string,
	opts ...Option,
) (*Result, error) {
	options := c.mergeOptions(opts...)

	maxAttempts := options.MaxRetries + 1
	var lastResult *Result

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := c.executeOnce(ctx, input, options)
		lastResult = result

		if err == nil || attempt == maxAttempts {
			return result, err
		}
		if options.RetryOn != nil && !options.RetryOn(result) {
			return result, err
		}

		select {
		case <-ctx.Done():
			return result, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(options.RetryDelay):
		}
	}

	return lastResult, lastResult.Err
}

func (c *CommandExecutor) executeOnce(
	ctx context.Context,
	input string,
	options *Options,
) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.program, c.args...)

	if options.WorkDir != "" {
		cmd.Dir = options.WorkDir
	}
	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range options.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	stdoutBuf, stderrBuf, combinedBuf, flush := c.setupOutputCapture(cmd, options)

	err := cmd.Run()
	flush()

	result := c.createResult(stdoutBuf, stderrBuf, combinedBuf, options.Masks, err)
	if err != nil {
		return result, fmt.Errorf("command execution failed: %w", err)
	}
	return result, nil
}

// setupOutputCapture wires the command's stdout/stderr into capture buffers
// and any streaming writers. Streaming writers are wrapped in masking
// writers; the returned flush drains their partial-line remainders.
func (c *CommandExecutor) setupOutputCapture(
	cmd *exec.Cmd,
	options *Options,
) (stdoutBuf, stderrBuf, combinedBuf *bytes.Buffer, flush func()) {
	stdoutBuf = &bytes.Buffer{}
	stderrBuf = &bytes.Buffer{}
	combinedBuf = &bytes.Buffer{}

	var maskers []*maskWriter
	masked := func(w io.Writer) io.Writer {
		if len(options.Masks) == 0 {
			return w
		}
		mw := newMaskWriter(w, options.Masks)
		maskers = append(maskers, mw)
		return mw
	}

	var stdoutWriters []io.Writer
	if options.CaptureCombined {
		stdoutWriters = append(stdoutWriters, combinedBuf)
	} else if options.CaptureStdout {
		stdoutWriters = append(stdoutWriters, stdoutBuf)
	}
	if options.StreamToConsole {
		stdoutWriters = append(stdoutWriters, masked(os.Stdout))
	}
	if options.StdoutWriter != nil {
		stdoutWriters = append(stdoutWriters, masked(options.StdoutWriter))
	}
	if len(stdoutWriters) > 0 {
		cmd.Stdout = io.MultiWriter(stdoutWriters...)
	}

	var stderrWriters []io.Writer
	if options.CaptureCombined {
		stderrWriters = append(stderrWriters, combinedBuf)
	} else if options.CaptureStderr {
		stderrWriters = append(stderrWriters, stderrBuf)
	}
	if options.StreamToConsole {
		stderrWriters = append(stderrWriters, masked(os.Stderr))
	}
	if options.StderrWriter != nil {
		stderrWriters = append(stderrWriters, masked(options.StderrWriter))
	}
	if len(stderrWriters) > 0 {
		cmd.Stderr = io.MultiWriter(stderrWriters...)
	}

	flush = func() {
		for _, mw := range maskers {
			mw.Flush()
		}
	}
	return stdoutBuf, stderrBuf, combinedBuf, flush
}

func (c *CommandExecutor) createResult(
	stdoutBuf, stderrBuf, combinedBuf *bytes.Buffer,
	masks []string,
	err error,
) *Result {
	result := &Result{
		Stdout:   maskString(stdoutBuf.String(), masks),
		Stderr:   maskString(stderrBuf.String(), masks),
		Combined: maskString(combinedBuf.String(), masks),
		Err:      err,
	}

	var exitErr *exec.ExitError
	switch {
	case err != nil && errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case err == nil:
		result.ExitCode = 0
	default:
		result.ExitCode = -1
	}

	return result
}

func (c *CommandExecutor) mergeOptions(opts ...Option) *Options {
	merged := *c.options
	for _, opt := range opts {
		opt(&merged)
	}
	return &merged
}

// Option functions for fluent configuration

// WithCapture configures output capture.
func WithCapture(stdout, stderr, combined bool) Option {
	return func(o *Options) {
		o.CaptureStdout = stdout
		o.CaptureStderr = stderr
		o.CaptureCombined = combined
	}
}

// WithConsoleStream enables or disables streaming to the console.
func WithConsoleStream(stream bool) Option {
	return func(o *Options) {
		o.StreamToConsole = stream
	}
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryDelay = delay
	}
}

// WithRetryOn sets the predicate deciding whether a failed attempt is
// retried. The predicate sees the attempt's Result, so it can inspect the
// exit code or stderr text.
func WithRetryOn(fn func(*Result) bool) Option {
	return func(o *Options) {
		o.RetryOn = fn
	}
}

// WithWorkDir sets the working directory.
func WithWorkDir(dir string) Option {
	return func(o *Options) {
		o.WorkDir = dir
	}
}

// WithEnv adds environment variables.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithEnvVar adds a single environment variable.
func WithEnvVar(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// WithMasks registers secret values to mask in captured and streamed output.
func WithMasks(masks ...string) Option {
	return func(o *Options) {
		for _, m := range masks {
			if m != "" {
				o.Masks = append(o.Masks, m)
			}
		}
	}
}

// WithStdoutWriter sets a custom stdout writer.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StdoutWriter = w
	}
}

// WithStderrWriter sets a custom stderr writer.
func WithStderrWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StderrWriter = w
	}
}
