package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/nodegraph/internal/fs"
	"github.com/hupe1980/nodegraph/internal/resource"
)

// FileName is the name of the checkpoint file inside a directory.
const FileName = "checkpoint.ngc"

// ErrNotFound is returned by Load when the directory holds no checkpoint.
var ErrNotFound = errors.New("checkpoint: not found")

// Save writes h and sections to dir atomically: the file is written to a
// temporary name, synced and renamed, then the directory is synced. An
// existing checkpoint is replaced only if every step up to the rename
// succeeds. Writes are throttled by rc.
func Save(ctx context.Context, fsys fs.FileSystem, rc *resource.Controller, dir string, h Header, sections []Section) (err error) {
	if fsys == nil {
		fsys = fs.Default
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	final := filepath.Join(dir, FileName)
	tmp := final + ".tmp"

	f, err := fsys.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = fsys.Remove(tmp)
		}
	}()

	w, err := NewWriter(resource.NewRateLimitedWriter(ctx, f, rc), h)
	if err != nil {
		return err
	}
	for _, s := range sections {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.WriteSection(s); err != nil {
			return fmt.Errorf("write section %q: %w", s.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	if err := fsys.Rename(tmp, final); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	if err := fsys.SyncDir(dir); err != nil {
		return fmt.Errorf("sync checkpoint directory: %w", err)
	}
	return nil
}

// Load reads the checkpoint in dir. Reads are throttled by rc.
func Load(ctx context.Context, fsys fs.FileSystem, rc *resource.Controller, dir string) (Header, []Section, error) {
	if fsys == nil {
		fsys = fs.Default
	}

	f, err := fsys.Open(filepath.Join(dir, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Header{}, nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return Header{}, nil, err
	}
	defer f.Close()

	r, err := NewReader(resource.NewRateLimitedReader(ctx, f, rc))
	if err != nil {
		return Header{}, nil, err
	}

	var sections []Section
	for {
		if err := ctx.Err(); err != nil {
			return Header{}, nil, err
		}
		s, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Header{}, nil, err
		}
		sections = append(sections, s)
	}
	return r.Header(), sections, nil
}
