package bulkdownload

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/nishad/mgtk/internal/errors"
)

// store downloads rawURL into a temporary file in dir and renames it to
// dest. If the rename fails while dest exists, dest is removed and the
// rename retried once.
func (w *Walker) store(ctx context.Context, rawURL, dir, dest string) (int64, string, error) {
	const op errors.Op = "bulkdownload.store"

	if rawURL == "" {
		return 0, "", errors.E(op, errors.KindValidation, "download has no URL")
	}

	tmp, err := afero.TempFile(w.fs, dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return 0, "", errors.E(op, errors.KindIO, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		errors.IgnoreError(w.log, w.fs.Remove(tmpPath), "removing partial download")
	}

	hash := md5.New()
	n, err := w.downloader.Download(ctx, rawURL, io.MultiWriter(tmp, hash))
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = errors.E(op, errors.KindIO, cerr)
	}
	if err != nil {
		cleanup()
		return 0, "", err
	}

	if err := w.fs.Rename(tmpPath, dest); err != nil {
		exists, _ := afero.Exists(w.fs, dest)
		if !exists {
			cleanup()
			return 0, "", errors.E(op, errors.KindIO, err)
		}
		if rmErr := w.fs.Remove(dest); rmErr != nil {
			cleanup()
			return 0, "", errors.E(op, errors.KindIO, rmErr)
		}
		if err := w.fs.Rename(tmpPath, dest); err != nil {
			cleanup()
			return 0, "", errors.E(op, errors.KindIO, err)
		}
	}

	return n, hex.EncodeToString(hash.Sum(nil)), nil
}
