package fs

import (
	"io"
	"os"
	"runtime"
)

// File is an open checkpoint file.
type File interface {
	io.ReadWriteCloser
	Sync() error
}

// FileSystem is the set of operations a checkpoint save or load performs.
//
// A save creates the checkpoint directory, writes and syncs a temporary file,
// renames it over the previous checkpoint and finally syncs the directory so
// that the rename itself is durable. A load only opens the checkpoint file.
type FileSystem interface {
	MkdirAll(dir string, perm os.FileMode) error
	// Create truncates or creates name for writing.
	Create(name string) (File, error)
	// Open opens name for reading.
	Open(name string) (File, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	// SyncDir flushes the directory entry of dir.
	SyncDir(dir string) error
}

// LocalFS keeps checkpoints on the local disk.
type LocalFS struct{}

func (LocalFS) MkdirAll(dir string, perm os.FileMode) error { return os.MkdirAll(dir, perm) }

func (LocalFS) Create(name string) (File, error) {
	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

func (LocalFS) Open(name string) (File, error) { return os.Open(name) }

func (LocalFS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }
func (LocalFS) Remove(name string) error             { return os.Remove(name) }

// SyncDir is a no-op on Windows, where directories cannot be opened for sync.
func (LocalFS) SyncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return err
	}
	return d.Close()
}

// Default is the local file system.
var Default FileSystem = LocalFS{}
