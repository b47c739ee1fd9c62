package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/anthanhphan/gosdk/logger"
)

// downloadService serves published artifacts, whole or by a single byte range.
type downloadService struct {
	core *TransferServiceImpl
}

// newDownloadService creates the download use-case service.
func newDownloadService(core *TransferServiceImpl) *downloadService {
	return &downloadService{core: core}
}

// openDownload opens an artifact and positions the stream on the requested range.
// The returned Body owns the underlying reader.
func (s *downloadService) openDownload(ctx context.Context, ref string, rangeHeader string) (*port.DownloadStream, error) {
	if !validRef(ref) {
		return nil, fmt.Errorf("%w: %q", domain.ErrArtifactNotFound, ref)
	}

	reader, artifact, err := s.core.artifacts.Open(ctx, ref)
	if err != nil {
		return nil, err
	}

	stream := &port.DownloadStream{
		Artifact: *artifact,
		Start:    0,
		End:      artifact.Size - 1,
		Length:   artifact.Size,
	}
	if strings.TrimSpace(rangeHeader) == "" {
		stream.Body = reader
		return stream, nil
	}

	r, err := parseByteRange(rangeHeader, artifact.Size)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}
	if _, err := reader.Seek(r.Start, io.SeekStart); err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("failed to seek artifact %s to %d: %w", ref, r.Start, err)
	}

	logger.Debugw("Ranged download", "artifact_ref", ref, "start", r.Start, "end", r.End)
	stream.Partial = true
	stream.Start = r.Start
	stream.End = r.End
	stream.Length = r.Length()
	stream.Body = &limitedReadCloser{Reader: io.LimitReader(reader, r.Length()), closer: reader}
	return stream, nil
}

// statArtifact returns the artifact descriptor.
func (s *downloadService) statArtifact(ctx context.Context, ref string) (*domain.Artifact, error) {
	if !validRef(ref) {
		return nil, fmt.Errorf("%w: %q", domain.ErrArtifactNotFound, ref)
	}
	return s.core.artifacts.Stat(ctx, ref)
}

// validRef rejects refs that could escape the artifact namespace.
func validRef(ref string) bool {
	return ref != "" && ref != "." && ref != ".." && !strings.ContainsAny(ref, "/\\")
}

// limitedReadCloser reads at most the range length and closes the full reader.
type limitedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (l *limitedReadCloser) Close() error {
	return l.closer.Close()
}
