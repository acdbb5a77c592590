package jenkins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mapGetenv(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

func TestFromEnviron(t *testing.T) {
	env := FromEnviron(mapGetenv(map[string]string{
		"BUILD_NUMBER": "17",
		"JOB_NAME":     "java-app/main",
		"BUILD_URL":    "https://jenkins.example.com/job/java-app/job/main/17/",
		"GIT_COMMIT":   "9f2b6f0b1d9c3b1a5e8d7c6b5a4f3e2d1c0b9a8f",
		"GIT_BRANCH":   "origin/main",
		"NODE_NAME":    "agent-3",
		"WORKSPACE":    "/var/jenkins/workspace/java-app_main",
	}))

	assert.Equal(t, "17", env.BuildNumber)
	assert.Equal(t, "java-app/main", env.JobName)
	assert.Equal(t, "agent-3", env.NodeName)
	assert.Equal(t, "/var/jenkins/workspace/java-app_main", env.Workspace)
	assert.True(t, env.Detected())
}

func TestDetectedOutsideJenkins(t *testing.T) {
	assert.False(t, FromEnviron(mapGetenv(nil)).Detected())

	// BUILD_NUMBER alone is not enough; other CI systems set it too.
	env := FromEnviron(mapGetenv(map[string]string{"BUILD_NUMBER": "4"}))
	assert.False(t, env.Detected())
}

func TestBranch(t *testing.T) {
	tests := []struct {
		gitBranch string
		want      string
	}{
		{"origin/main", "main"},
		{"main", "main"},
		{"origin/release/1.x", "release/1.x"},
		{"feature/login", "feature/login"},
		{"", ""},
	}

	for _, tt := range tests {
		env := Env{GitBranch: tt.gitBranch}
		assert.Equalf(t, tt.want, env.Branch(), "Branch(%q)", tt.gitBranch)
	}
}
