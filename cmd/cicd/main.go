// Package main is the entry point for the cicd binary, the release
// pipeline runner for this repository.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/elorm116/java-cicd-demo/release"
)

// Injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errUsage classifies errors that are the caller's fault: bad flags,
// unknown commands, broken configuration. main exits 2 for these.
var errUsage = errors.New("invalid usage")

func main() {
	err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, release.ErrLocked):
		return 2
	default:
		return 1
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage(os.Stderr)
		return fmt.Errorf("%w: a command is required", errUsage)
	}

	switch args[0] {
	case "run":
		return runRelease(args[1:])
	case "history":
		return runHistory(args[1:])
	case "version":
		fmt.Printf("cicd %s (commit %s, built %s)\n", version, commit, date)
		return nil
	case "help", "--help", "-h":
		usage(os.Stdout)
		return nil
	default:
		usage(os.Stderr)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func usage(out io.Writer) {
	fmt.Fprint(out, `cicd drives the release pipeline of this repository.

Usage:
  cicd run [flags]      execute the release pipeline
  cicd history [flags]  list recorded runs ("history last" shows the last success)
  cicd version          print build information

Run "cicd <command> --help" for command flags.
`)
}
