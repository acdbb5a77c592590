package release

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/elorm116/java-cicd-demo/fs"
)

// DefaultLockPath is the lock file guarding the workspace against
// concurrent release runs.
const DefaultLockPath = ".cicd.lock"

// runLock is held for the duration of one run.
type runLock struct {
	fsys fs.Filesystem
	path string
}

// acquireLock creates the lock file exclusively. An existing file means
// another run is active, or a previous one died without cleanup; the
// error names the file so an operator can remove a stale lock.
func acquireLock(fsys fs.Filesystem, path string) (*runLock, error) {
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: remove %s if no run is active", ErrLocked, path)
		}
		return nil, fmt.Errorf("create lock file %s: %w", path, err)
	}

	fmt.Fprintf(f, "pid %d\nstarted %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("write lock file %s: %w", path, err)
	}
	return &runLock{fsys: fsys, path: path}, nil
}

// release removes the lock file.
func (l *runLock) release() {
	_ = l.fsys.Remove(l.path)
}
