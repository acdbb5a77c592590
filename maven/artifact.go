package maven

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/elorm116/java-cicd-demo/fs"
	"github.com/elorm116/java-cicd-demo/version"
)

// ErrNoArtifact indicates the expected build output is missing from the
// target directory.
var ErrNoArtifact = errors.New("build artifact not found")

// targetDir is Maven's build output directory.
const targetDir = "target"

// ArtifactPath returns the path of the build artifact relative to the
// project directory, following Maven's <artifactId>-<version>.<packaging>
// naming.
func ArtifactPath(artifactID string, v version.Version, packaging string) string {
	return filepath.Join(targetDir, fmt.Sprintf("%s-%s.%s", artifactID, v, packaging))
}

// FindArtifact locates the packaged artifact under workDir and verifies
// it exists. Returns the path relative to workDir.
func FindArtifact(
	fsys fs.Filesystem,
	workDir, artifactID string,
	v version.Version,
	packaging string,
) (string, error) {
	rel := ArtifactPath(artifactID, v, packaging)
	full := filepath.Join(workDir, rel)

	exists, err := fsys.Exists(full)
	if err != nil {
		return "", fmt.Errorf("failed to check artifact %s: %w", full, err)
	}
	if !exists {
		return "", fmt.Errorf("%s: %w (did the package goal run?)", full, ErrNoArtifact)
	}
	return rel, nil
}
