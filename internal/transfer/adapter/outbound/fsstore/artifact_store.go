package fsstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
)

const (
	dataFile = "data"
	metaFile = "meta.json"
)

// ArtifactStore implements port.ArtifactStore. The descriptor file is the
// commit marker: an artifact without meta.json is not visible.
type ArtifactStore struct {
	dir        string
	scratchDir string
	fsync      bool
}

var _ port.ArtifactStore = (*ArtifactStore)(nil)

// NewArtifactStore prepares the artifact directories under dataDir.
func NewArtifactStore(dataDir string, fsync bool) (*ArtifactStore, error) {
	s := &ArtifactStore{
		dir:        filepath.Join(filepath.Clean(dataDir), artifactsDir),
		scratchDir: filepath.Join(filepath.Clean(dataDir), tmpDir, artifactsDir),
		fsync:      fsync,
	}
	for _, dir := range []string{s.dir, s.scratchDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}
	return s, nil
}

func (s *ArtifactStore) Stage(_ context.Context, meta domain.Artifact) (port.StagedArtifact, error) {
	if err := safeName(meta.Ref); err != nil {
		return nil, err
	}
	f, err := scratchFile(s.scratchDir)
	if err != nil {
		return nil, err
	}
	return &stagedFile{store: s, meta: meta, file: f}, nil
}

func (s *ArtifactStore) Stat(_ context.Context, ref string) (*domain.Artifact, error) {
	if err := safeName(ref); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactNotFound, err)
	}
	return s.readMeta(ref)
}

func (s *ArtifactStore) Open(_ context.Context, ref string) (port.ArtifactReader, *domain.Artifact, error) {
	if err := safeName(ref); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrArtifactNotFound, err)
	}
	meta, err := s.readMeta(ref)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, ref, dataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, ref)
		}
		return nil, nil, err
	}
	return f, meta, nil
}

func (s *ArtifactStore) Delete(_ context.Context, ref string) error {
	if err := safeName(ref); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.dir, ref))
}

// SweepScratch removes stale staging files and artifact directories that
// never received their descriptor.
func (s *ArtifactStore) SweepScratch(_ context.Context, maxAge time.Duration) (int, error) {
	removed, err := sweepOlder(s.scratchDir, maxAge)

	entries, readErr := os.ReadDir(s.dir)
	if readErr != nil {
		if err == nil && !errors.Is(readErr, os.ErrNotExist) {
			err = readErr
		}
		return removed, err
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		dir := filepath.Join(s.dir, entry.Name())
		if _, statErr := os.Stat(filepath.Join(dir, metaFile)); !errors.Is(statErr, os.ErrNotExist) {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			if err == nil {
				err = rmErr
			}
			continue
		}
		removed++
	}
	return removed, err
}

func (s *ArtifactStore) readMeta(ref string) (*domain.Artifact, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, ref, metaFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, ref)
		}
		return nil, err
	}
	var meta domain.Artifact
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode artifact descriptor %s: %w", ref, err)
	}
	return &meta, nil
}

// stagedFile is an artifact being written to a scratch file.
type stagedFile struct {
	store   *ArtifactStore
	meta    domain.Artifact
	file    *os.File
	written int64
	done    bool
}

func (w *stagedFile) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *stagedFile) Commit(_ context.Context) (*domain.Artifact, error) {
	if w.done {
		return nil, errors.New("staged artifact already finished")
	}
	w.done = true

	if w.written != w.meta.Size {
		_ = w.file.Close()
		_ = os.Remove(w.file.Name())
		return nil, fmt.Errorf("%w: staged %d bytes, declared %d", domain.ErrSizeMismatch, w.written, w.meta.Size)
	}

	dir := filepath.Join(w.store.dir, w.meta.Ref)
	dataPath := filepath.Join(dir, dataFile)
	if err := publish(w.file, dataPath, w.store.fsync); err != nil {
		_ = os.Remove(w.file.Name())
		return nil, err
	}

	meta := w.meta
	meta.Location = dataPath
	meta.CreatedAt = time.Now().UTC()
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact descriptor: %w", err)
	}
	if _, err := writeFileAtomic(w.store.scratchDir, filepath.Join(dir, metaFile), bytes.NewReader(raw), w.store.fsync); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (w *stagedFile) Abort(_ context.Context) error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.file.Close()
	if err := os.Remove(w.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
