package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/aspirant2018/niqatech-backend/pkg/errors"
)

// WriteFileAtomic replaces path with the contents of r. The data goes to a
// temporary file in the same directory which is synced and renamed over
// path, so readers see either the old or the new file. On any failure the
// temporary file is removed and path is left untouched. ctx is only
// consulted before the rename.
func WriteFileAtomic(ctx context.Context, path string, r io.Reader, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &errors.RewriteError{Path: path, Op: "create temp", Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		return &errors.RewriteError{Path: path, Op: "write", Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &errors.RewriteError{Path: path, Op: "sync", Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &errors.RewriteError{Path: path, Op: "close", Err: err}
	}

	if info, statErr := os.Stat(path); statErr == nil {
		perm = info.Mode().Perm()
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return &errors.RewriteError{Path: path, Op: "chmod", Err: err}
	}

	if err = ctx.Err(); err != nil {
		return err
	}
	if err = os.Rename(tmpName, path); err != nil {
		return &errors.RewriteError{Path: path, Op: "rename", Err: err}
	}

	// Persist the directory entry. Some platforms cannot sync directories.
	if d, dirErr := os.Open(dir); dirErr == nil {
		d.Sync()
		d.Close()
	}
	return nil
}
