package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
)

// ChunkStore implements port.ChunkStore with one file per chunk.
type ChunkStore struct {
	dir        string
	scratchDir string
	fsync      bool
}

var _ port.ChunkStore = (*ChunkStore)(nil)

// NewChunkStore prepares the chunk directories under dataDir.
func NewChunkStore(dataDir string, fsync bool) (*ChunkStore, error) {
	s := &ChunkStore{
		dir:        filepath.Join(filepath.Clean(dataDir), chunksDir),
		scratchDir: filepath.Join(filepath.Clean(dataDir), tmpDir, chunksDir),
		fsync:      fsync,
	}
	for _, dir := range []string{s.dir, s.scratchDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create chunk directory: %w", err)
		}
	}
	return s, nil
}

func (s *ChunkStore) chunkPath(sessionID string, index int) string {
	return filepath.Join(s.dir, sessionID, strconv.Itoa(index))
}

func (s *ChunkStore) PutChunk(_ context.Context, sessionID string, index int, r io.Reader, size int64) error {
	if err := safeName(sessionID); err != nil {
		return err
	}

	// One extra byte reveals a reader longer than announced.
	n, err := writeFileAtomic(s.scratchDir, s.chunkPath(sessionID, index), &exactReader{r: io.LimitReader(r, size+1), want: size}, s.fsync)
	if err != nil {
		return err
	}
	if n != size {
		return fmt.Errorf("%w: chunk %d wrote %d bytes, expected %d", domain.ErrChunkSizeMismatch, index, n, size)
	}
	return nil
}

func (s *ChunkStore) OpenChunk(_ context.Context, sessionID string, index int) (io.ReadCloser, int64, error) {
	if err := safeName(sessionID); err != nil {
		return nil, 0, err
	}

	f, err := os.Open(s.chunkPath(sessionID, index))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: session %s index %d", domain.ErrChunkNotFound, sessionID, index)
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (s *ChunkStore) DeleteSession(_ context.Context, sessionID string) error {
	if err := safeName(sessionID); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.dir, sessionID))
}

func (s *ChunkStore) ListSessions(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

func (s *ChunkStore) SweepScratch(_ context.Context, maxAge time.Duration) (int, error) {
	return sweepOlder(s.scratchDir, maxAge)
}

// exactReader fails the copy when the stream is longer or shorter than want,
// so a wrongly sized chunk is never renamed into place.
type exactReader struct {
	r    io.Reader
	want int64
	read int64
}

func (e *exactReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	e.read += int64(n)
	if e.read > e.want {
		return n, fmt.Errorf("%w: more than %d bytes", domain.ErrChunkSizeMismatch, e.want)
	}
	if err == io.EOF && e.read < e.want {
		return n, fmt.Errorf("%w: got %d of %d bytes", domain.ErrChunkSizeMismatch, e.read, e.want)
	}
	return n, err
}
