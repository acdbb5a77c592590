// Package fs defines the filesystem abstraction shared by the pipeline
// components that read or write files (descriptor rewriting, configuration
// loading, repository access). Production code runs against the OS
// filesystem; tests run against an in-memory implementation so no test
// touches the host disk.
package fs

import (
	"io/fs"
	"os"
	"path/filepath"
)

// File represents an open file handle supporting basic I/O operations.
// Implementations should behave consistently with the standard library.
type File interface {
	Close() error
	Name() string
	Read(p []byte) (n int, err error)
	ReadAt(p []byte, off int64) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
	Stat() (fs.FileInfo, error)
	Write(p []byte) (n int, err error)
}

// Filesystem is the set of filesystem operations the pipeline relies on.
// Paths follow the conventions of the backing implementation; relative
// paths are resolved against the implementation's root.
type Filesystem interface {
	// Create creates or truncates the named file and opens it for writing.
	Create(name string) (File, error)

	// Exists reports whether the named path exists.
	Exists(path string) (bool, error)

	// MkdirAll creates the named directory along with any missing parents.
	MkdirAll(path string, perm os.FileMode) error

	// Open opens the named file for reading.
	Open(name string) (File, error)

	// OpenFile opens the named file with the given flag and permissions.
	OpenFile(name string, flag int, perm os.FileMode) (File, error)

	// ReadDir lists the contents of the named directory.
	ReadDir(dirname string) ([]os.FileInfo, error)

	// ReadFile returns the contents of the named file.
	ReadFile(path string) ([]byte, error)

	// Remove deletes the named file or empty directory.
	Remove(name string) error

	// Stat returns file metadata for the named path.
	Stat(name string) (os.FileInfo, error)

	// TempDir creates a new temporary directory under dir with the given
	// prefix and returns its path.
	TempDir(dir, prefix string) (string, error)

	// Walk traverses the tree rooted at root, calling walkFn for each file
	// or directory.
	Walk(root string, walkFn filepath.WalkFunc) error

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(filename string, data []byte, perm os.FileMode) error
}
