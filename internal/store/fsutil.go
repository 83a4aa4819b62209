package store

import (
	"errors"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes b to a temp file next to path and renames it into
// place, so readers never see a partial file.
func WriteFileAtomic(path string, b []byte, perm os.FileMode) error {
	path = filepath.Clean(path)
	if path == "" || path == "." {
		return errors.New("write file: missing path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
