// Package jenkins captures the Jenkins build environment. Jenkins hands
// its context to build steps through environment variables; this package
// reads the standard set so image labels, commit messages, and run
// history can reference the build that produced them.
package jenkins

import (
	"os"
	"strings"
)

// Env holds the Jenkins-provided build context. Zero values mean the
// variable was not set, which outside Jenkins is all of them.
type Env struct {
	// BuildNumber is the job's build counter (BUILD_NUMBER).
	BuildNumber string
	// JobName is the name of the job (JOB_NAME).
	JobName string
	// BuildURL is the absolute URL of this build (BUILD_URL).
	BuildURL string
	// GitCommit is the SHA checked out by the SCM step (GIT_COMMIT).
	GitCommit string
	// GitBranch is the branch checked out by the SCM step (GIT_BRANCH),
	// often remote-qualified like "origin/main".
	GitBranch string
	// NodeName is the agent the build runs on (NODE_NAME).
	NodeName string
	// Workspace is the job's workspace directory (WORKSPACE).
	Workspace string
}

// FromEnv captures the build context from the process environment.
func FromEnv() Env {
	return FromEnviron(os.Getenv)
}

// FromEnviron captures the build context through a getenv function.
// Tests pass a map-backed lookup.
func FromEnviron(getenv func(string) string) Env {
	return Env{
		BuildNumber: getenv("BUILD_NUMBER"),
		JobName:     getenv("JOB_NAME"),
		BuildURL:    getenv("BUILD_URL"),
		GitCommit:   getenv("GIT_COMMIT"),
		GitBranch:   getenv("GIT_BRANCH"),
		NodeName:    getenv("NODE_NAME"),
		Workspace:   getenv("WORKSPACE"),
	}
}

// Detected reports whether the process appears to run inside a Jenkins
// build. BUILD_NUMBER and JOB_NAME are both set by every Jenkins version
// in service; either alone can collide with other CI systems.
func (e Env) Detected() bool {
	return e.BuildNumber != "" && e.JobName != ""
}

// Branch returns the checked-out branch with the "origin/" remote prefix
// removed, so "origin/main" and "main" compare equal in branch guards.
// Only the literal origin prefix is stripped; branch names containing
// slashes survive intact.
func (e Env) Branch() string {
	return strings.TrimPrefix(e.GitBranch, "origin/")
}
