package port

import (
	"context"
	"io"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
)

//go:generate mockgen -destination=../service/mocks/storage_mock.go -package=mocks -source=storage.go

// ChunkStore is scratch storage for chunk blobs keyed by (session, index).
type ChunkStore interface {
	// PutChunk writes a chunk, replacing any previous bytes for the same index.
	// Readers never observe a partially written chunk.
	PutChunk(ctx context.Context, sessionID string, index int, r io.Reader, size int64) error

	// OpenChunk returns the chunk stream and its size, or domain.ErrChunkNotFound.
	OpenChunk(ctx context.Context, sessionID string, index int) (io.ReadCloser, int64, error)

	// DeleteSession removes every chunk of a session. Missing data is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// ListSessions returns the ids that currently own chunk storage.
	ListSessions(ctx context.Context) ([]string, error)

	// SweepScratch removes interrupted writes older than maxAge.
	SweepScratch(ctx context.Context, maxAge time.Duration) (int, error)
}

// ArtifactReader is a seekable handle on a published artifact.
type ArtifactReader interface {
	io.ReadSeekCloser
}

// StagedArtifact is an artifact being written outside the consumer-visible
// namespace. Exactly one of Commit or Abort must be called.
type StagedArtifact interface {
	io.Writer

	// Commit atomically publishes the staged bytes.
	Commit(ctx context.Context) (*domain.Artifact, error)

	// Abort discards the staged bytes.
	Abort(ctx context.Context) error
}

// ArtifactStore publishes assembled files and serves them back.
type ArtifactStore interface {
	// Stage opens a writer for the artifact described by meta.
	Stage(ctx context.Context, meta domain.Artifact) (StagedArtifact, error)

	// Stat returns the descriptor of a published artifact or domain.ErrArtifactNotFound.
	Stat(ctx context.Context, ref string) (*domain.Artifact, error)

	// Open returns a seekable reader over a published artifact.
	Open(ctx context.Context, ref string) (ArtifactReader, *domain.Artifact, error)

	// Delete removes a published artifact.
	Delete(ctx context.Context, ref string) error

	// SweepScratch removes abandoned staging data older than maxAge.
	SweepScratch(ctx context.Context, maxAge time.Duration) (int, error)
}
