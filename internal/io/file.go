package ioutils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PartSuffix is the suffix of temporary files written next to their destination.
const PartSuffix = ".part"

// WriteError reports a local filesystem failure while writing path.
//
// Errors returned by the source reader are never wrapped in a WriteError,
// which lets callers tell a broken download from a broken disk.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// trackingWriter remembers the first error of the underlying writer.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (tw *trackingWriter) Write(p []byte) (int, error) {
	n, err := tw.w.Write(p)
	if err != nil && tw.err == nil {
		tw.err = err
	}
	return n, err
}

// CheckFunc inspects a completely written temporary file before it
// replaces its destination. n is the number of bytes written.
type CheckFunc func(tmpPath string, n int64) error

// WriteFileAtomic streams r into path without ever leaving a partial file at path.
//
// The data is written to a temporary "<name>.*.part" file in the same
// directory, synced, and renamed over path once complete. The checks run
// on the temporary file just before the rename; the first error rejects
// the data. On any failure the temporary file is removed and path is left
// untouched, so an aborted or rejected download can never replace a good file.
//
// Returns the number of bytes written. Filesystem failures are returned as
// *WriteError; errors from r and from checks are returned unchanged.
//
// Example:
//
//	n, err := WriteFileAtomic("/emoji/wave.gif", resp.Body)
func WriteFileAtomic(path string, r io.Reader, checks ...CheckFunc) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*"+PartSuffix)
	if err != nil {
		return 0, &WriteError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	tw := &trackingWriter{w: tmp}
	n, err := io.Copy(tw, r)
	if err != nil {
		if tw.err != nil {
			return n, &WriteError{Path: path, Err: tw.err}
		}
		return n, err
	}

	if err := tmp.Sync(); err != nil {
		return n, &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return n, &WriteError{Path: path, Err: err}
	}
	for _, check := range checks {
		if err := check(tmpName, n); err != nil {
			return n, err
		}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return n, &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return n, &WriteError{Path: path, Err: err}
	}

	ok = true
	return n, nil
}

// WriteFile writes data to path atomically with mode 0644.
//
// Example:
//
//	err := WriteFile("/emoji/index.json", indexJSON)
func WriteFile(path string, data []byte) error {
	_, err := WriteFileAtomic(path, bytes.NewReader(data))
	return err
}

// FileHasContent reports whether a regular, non-empty file exists at path.
//
// Zero-byte files count as missing so that a truncated earlier write gets
// downloaded again.
func FileHasContent(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// RemovePartials deletes temporary files left in dir by interrupted writes.
//
// Only hidden files ending in PartSuffix are touched. Returns the number
// of files removed.
func RemovePartials(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, PartSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}

	return removed, nil
}
