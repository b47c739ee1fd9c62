package port

import (
	"context"
	"io"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
)

// UploadService is the upload control surface.
type UploadService interface {
	// InitUpload creates a session in the Initialized state.
	InitUpload(ctx context.Context, req domain.InitRequest) (*domain.Session, error)

	// AcceptChunk stores one chunk and records it on the session.
	AcceptChunk(ctx context.Context, sessionID string, index int, data []byte) (*domain.Progress, error)

	// Status returns the read-only view of a session.
	Status(ctx context.Context, sessionID string) (*domain.StatusDescriptor, error)

	// CancelUpload cancels a non-terminal session and frees its chunks.
	CancelUpload(ctx context.Context, sessionID string) error
}

// DownloadStream is an opened artifact, optionally restricted to one byte range.
// Body must be closed by the caller on every path.
type DownloadStream struct {
	Artifact domain.Artifact
	Partial  bool
	Start    int64
	End      int64
	Length   int64
	Body     io.ReadCloser
}

// DownloadService serves published artifacts.
type DownloadService interface {
	// OpenDownload opens ref, honouring a single-range Range header when non-empty.
	OpenDownload(ctx context.Context, ref string, rangeHeader string) (*DownloadStream, error)

	// StatArtifact returns the descriptor of a published artifact.
	StatArtifact(ctx context.Context, ref string) (*domain.Artifact, error)
}
