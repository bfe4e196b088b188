package store

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
)

type lockMode int

const (
	lockShared lockMode = iota
	lockExclusive
)

// commitFunc moves a fully written temp file onto its target.
type commitFunc func(tmpPath, target string) error

// renameReplace atomically replaces target.
func renameReplace(tmpPath, target string) error {
	if err := os.Rename(tmpPath, target); err != nil {
		return ioError("rename", target, err)
	}
	return nil
}

// linkNoReplace publishes tmpPath at target only if target does not exist.
// The hard link is atomic and fails with os.ErrExist on collision, so two
// concurrent creators cannot both succeed.
func linkNoReplace(tmpPath, target string) error {
	err := os.Link(tmpPath, target)
	if err == nil {
		_ = os.Remove(tmpPath)
		return nil
	}
	if errors.Is(err, os.ErrExist) {
		return os.ErrExist
	}

	// Filesystems without hard links: claim the name exclusively, then
	// replace the empty claim with the finished file. Until the rename lands
	// the claim is visible as a zero-length file, which readFile reports as
	// ErrNotFound rather than a corrupt document.
	claim, cerr := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if cerr != nil {
		if errors.Is(cerr, os.ErrExist) {
			return os.ErrExist
		}
		return ioError("create", target, cerr)
	}
	_ = claim.Close()
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(target)
		return ioError("rename", target, err)
	}
	return nil
}

// writeAtomic writes data to a temp file beside target, holding an exclusive
// lock while writing, fsyncs it, then commits it. Readers see either the old
// file or the new one, never a partial write. The temp file is removed on
// any failure.
func (fs *FileStore) writeAtomic(ctx context.Context, target string, data []byte, commit commitFunc) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*"+tempExt)
	if err != nil {
		return ioError("create temp file in", dir, err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := lockFile(ctx, tmp, lockExclusive, fs.lockTimeout); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		unlockFile(tmp)
		_ = tmp.Close()
		return ioError("chmod", tmpPath, err)
	}
	if err := fs.writeData(tmp, data); err != nil {
		unlockFile(tmp)
		_ = tmp.Close()
		return ioError("write", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		unlockFile(tmp)
		_ = tmp.Close()
		return ioError("sync", tmpPath, err)
	}
	unlockFile(tmp)
	if err := tmp.Close(); err != nil {
		return ioError("close", tmpPath, err)
	}

	if err := commit(tmpPath, target); err != nil {
		return err
	}
	committed = true
	syncDir(dir)
	return nil
}

// readFile reads path under a shared lock. A missing file yields ErrNotFound,
// and so does a zero-length one: Encode never produces empty output, so an
// empty file is a create claim whose content has not been published yet.
func (fs *FileStore) readFile(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, ioError("open", path, err)
	}
	defer f.Close()

	if err := lockFile(ctx, f, lockShared, fs.lockTimeout); err != nil {
		return nil, err
	}
	defer unlockFile(f)

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, ioError("read", path, err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}
