package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

// assembleService concatenates the chunks of a complete session into a published artifact.
type assembleService struct {
	core     *TransferServiceImpl
	inflight *flightGroup
}

// newAssembleService creates the assembly use-case service.
func newAssembleService(core *TransferServiceImpl) *assembleService {
	return &assembleService{core: core, inflight: newFlightGroup()}
}

// assemble runs one assembly job. Jobs are delivered at least once, so a job
// for a session that is not Assembling is dropped.
func (s *assembleService) assemble(ctx context.Context, sessionID string) error {
	if !s.inflight.acquire(sessionID) {
		logger.Debugw("Assembly already running, job dropped", "session_id", sessionID)
		return nil
	}
	defer s.inflight.release(sessionID)

	sess, err := s.core.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			logger.Warnw("Assembly job for unknown session dropped", "session_id", sessionID)
			return nil
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess.Status != domain.StatusAssembling {
		logger.Debugw("Assembly job skipped", "session_id", sessionID, "status", sess.Status)
		return nil
	}

	logger.Infow("Assembly started", "session_id", sessionID, "total_chunks", sess.TotalChunks, "total_size", sess.TotalSize)

	var artifact *domain.Artifact
	attempt := 0
	err = resilience.Retry(ctx, s.core.assemblyAttempts(), s.core.assemblyBackoff(), func(ctx context.Context) error {
		attempt++
		a, buildErr := s.buildArtifact(ctx, sess)
		if buildErr != nil {
			logger.Warnw("Assembly attempt failed", "session_id", sessionID, "attempt", attempt, "error", buildErr.Error())
			return buildErr
		}
		artifact = a
		return nil
	}, isTransient)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown: the session stays Assembling and is picked up again.
			return err
		}
		return s.markFailed(ctx, sess, err)
	}

	return s.markCompleted(ctx, sess, artifact)
}

// buildArtifact streams every chunk in index order into a staged artifact and
// publishes it only when the byte count matches the declared size.
func (s *assembleService) buildArtifact(ctx context.Context, sess *domain.Session) (*domain.Artifact, error) {
	if missing := sess.Received.Missing(sess.TotalChunks); len(missing) > 0 {
		return nil, fmt.Errorf("%w: index %d", domain.ErrMissingChunk, missing[0])
	}

	staged, err := s.core.artifacts.Stage(ctx, domain.Artifact{
		Ref:         sess.ArtifactRef,
		FileName:    sess.FileName,
		ContentType: sess.ContentType,
		Size:        sess.TotalSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stage artifact: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		abortCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if abortErr := staged.Abort(abortCtx); abortErr != nil {
			logger.Warnw("Failed to abort staged artifact", "session_id", sess.ID, "error", abortErr.Error())
		}
	}()

	var written int64
	for i := 0; i < sess.TotalChunks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := s.copyChunk(ctx, staged, sess, i)
		written += n
		if err != nil {
			return nil, err
		}
	}
	if written != sess.TotalSize {
		return nil, fmt.Errorf("%w: wrote %d bytes, declared %d", domain.ErrSizeMismatch, written, sess.TotalSize)
	}

	artifact, err := staged.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to publish artifact: %w", err)
	}
	committed = true
	return artifact, nil
}

// copyChunk appends chunk index to w and verifies its exact length.
func (s *assembleService) copyChunk(ctx context.Context, w io.Writer, sess *domain.Session, index int) (int64, error) {
	reader, size, err := s.core.chunks.OpenChunk(ctx, sess.ID, index)
	if err != nil {
		if errors.Is(err, domain.ErrChunkNotFound) {
			return 0, fmt.Errorf("%w: index %d", domain.ErrMissingChunk, index)
		}
		return 0, fmt.Errorf("failed to open chunk %d: %w", index, err)
	}
	defer func() { _ = reader.Close() }()

	want := sess.ExpectedChunkLength(index)
	if size >= 0 && size != want {
		return 0, fmt.Errorf("%w: chunk %d has %d bytes, expected %d", domain.ErrSizeMismatch, index, size, want)
	}

	// One extra byte detects a chunk that grew after it was stat'ed.
	n, err := io.Copy(w, io.LimitReader(reader, want+1))
	if err != nil {
		return n, fmt.Errorf("failed to copy chunk %d: %w", index, err)
	}
	if n != want {
		return n, fmt.Errorf("%w: chunk %d has %d bytes, expected %d", domain.ErrSizeMismatch, index, n, want)
	}
	return n, nil
}

// markCompleted attaches the artifact, frees the chunks and notifies consumers.
func (s *assembleService) markCompleted(ctx context.Context, sess *domain.Session, artifact *domain.Artifact) error {
	_, err := s.core.sessions.Update(ctx, sess.ID, func(cur *domain.Session) error {
		if cur.Status != domain.StatusAssembling {
			return fmt.Errorf("%w: session %s is %s", domain.ErrInvalidState, cur.ID, cur.Status)
		}
		cur.ArtifactRef = artifact.Ref
		return cur.Transition(domain.StatusCompleted, s.core.now())
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrSessionNotFound) {
			logger.Warnw("Session left assembling during assembly, discarding artifact", "session_id", sess.ID, "error", err.Error())
			if delErr := s.core.artifacts.Delete(ctx, artifact.Ref); delErr != nil {
				logger.Warnw("Failed to discard artifact", "session_id", sess.ID, "artifact_ref", artifact.Ref, "error", delErr.Error())
			}
			return nil
		}
		return fmt.Errorf("failed to complete session: %w", err)
	}

	if err := s.core.chunks.DeleteSession(ctx, sess.ID); err != nil {
		logger.Warnw("Failed to delete chunks after assembly", "session_id", sess.ID, "error", err.Error())
	}

	logger.Infow("Assembly completed", "session_id", sess.ID, "artifact_ref", artifact.Ref, "size_bytes", artifact.Size)

	if err := s.core.queue.PublishArtifactReady(ctx, *artifact); err != nil {
		logger.Errorw("Failed to publish artifact ready notification", "session_id", sess.ID, "artifact_ref", artifact.Ref, "error", err.Error())
	}
	return nil
}

// markFailed records the assembly failure on the session. Chunks stay for inspection.
func (s *assembleService) markFailed(ctx context.Context, sess *domain.Session, cause error) error {
	logger.Errorw("Assembly failed", "session_id", sess.ID, "structural", domain.IsStructural(cause), "error", cause.Error())

	_, err := s.core.sessions.Update(ctx, sess.ID, func(cur *domain.Session) error {
		if cur.Status != domain.StatusAssembling {
			return fmt.Errorf("%w: session %s is %s", domain.ErrInvalidState, cur.ID, cur.Status)
		}
		cur.LastError = cause.Error()
		return cur.Transition(domain.StatusFailed, s.core.now())
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("failed to record assembly failure: %w", err)
	}
	return nil
}
