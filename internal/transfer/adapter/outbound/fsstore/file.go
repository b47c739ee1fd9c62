// Package fsstore keeps chunks and published artifacts on the local filesystem.
//
// Layout under the data directory:
//
//	chunks/<session>/<index>   one file per received chunk
//	artifacts/<ref>/data       artifact bytes
//	artifacts/<ref>/meta.json  artifact descriptor, written last
//	tmp/chunks, tmp/artifacts  scratch files renamed into place
//
// Every write lands in tmp first and is renamed, so readers never observe a
// partially written chunk or artifact.
package fsstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	chunksDir     = "chunks"
	artifactsDir  = "artifacts"
	tmpDir        = "tmp"
	scratchSuffix = ".part"
)

var errUnsafeName = errors.New("unsafe storage name")

// safeName rejects ids that could address a path outside their directory.
func safeName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", errUnsafeName, name)
	}
	return nil
}

// scratchFile creates a uniquely named file in dir.
func scratchFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+scratchSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	return f, nil
}

// publish closes f, optionally syncing it first, and renames it to dst.
func publish(f *os.File, dst string, fsync bool) error {
	if fsync {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to sync %s: %w", f.Name(), err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", f.Name(), err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}
	if err := os.Rename(f.Name(), dst); err != nil {
		return fmt.Errorf("failed to publish %s: %w", dst, err)
	}
	return nil
}

// writeFileAtomic copies r into dst through a scratch file in scratchDir.
func writeFileAtomic(scratchDir, dst string, r io.Reader, fsync bool) (int64, error) {
	f, err := scratchFile(scratchDir)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return n, fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := publish(f, dst, fsync); err != nil {
		_ = os.Remove(f.Name())
		return n, err
	}
	return n, nil
}

// sweepOlder removes the entries of dir last modified before now-maxAge.
func sweepOlder(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var firstErr error
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}
