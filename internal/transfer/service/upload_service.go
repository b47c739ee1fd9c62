package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/gosdk/logger"
)

// uploadService owns the session lifecycle on the upload request path.
type uploadService struct {
	core *TransferServiceImpl
}

// newUploadService creates the upload use-case service.
func newUploadService(core *TransferServiceImpl) *uploadService {
	return &uploadService{core: core}
}

// initUpload validates the request and stores a new Initialized session.
func (s *uploadService) initUpload(ctx context.Context, req domain.InitRequest) (*domain.Session, error) {
	fileName, chunkSize, err := s.validateInit(req)
	if err != nil {
		return nil, err
	}

	id, err := s.core.idGen.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := s.core.now()
	sess := &domain.Session{
		ID:          id,
		OwnerID:     req.OwnerID,
		FileName:    fileName,
		ContentType: req.ContentType,
		TotalSize:   req.TotalSize,
		ChunkSize:   chunkSize,
		TotalChunks: domain.TotalChunksFor(req.TotalSize, chunkSize),
		Received:    domain.NewChunkSet(),
		Status:      domain.StatusInitialized,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.core.sessionTTL()),
		ArtifactRef: id,
	}
	if sess.ContentType == "" {
		sess.ContentType = "application/octet-stream"
	}

	if err := s.core.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Infow("Upload session created",
		"session_id", sess.ID,
		"file_name", sess.FileName,
		"total_size", sess.TotalSize,
		"chunk_size", sess.ChunkSize,
		"total_chunks", sess.TotalChunks,
	)
	return sess, nil
}

// validateInit checks init parameters and returns the normalised filename and chunk size.
func (s *uploadService) validateInit(req domain.InitRequest) (string, int64, error) {
	limits := s.core.cfg.Upload

	name := strings.TrimSpace(strings.ReplaceAll(req.FileName, "\\", "/"))
	name = path.Base(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", 0, fmt.Errorf("%w: filename is required", domain.ErrInvalidRequest)
	}
	if req.TotalSize <= 0 {
		return "", 0, fmt.Errorf("%w: total_size must be positive", domain.ErrInvalidRequest)
	}
	if limits.MaxFileSize > 0 && req.TotalSize > limits.MaxFileSize {
		return "", 0, fmt.Errorf("%w: total_size %d exceeds limit %d", domain.ErrInvalidRequest, req.TotalSize, limits.MaxFileSize)
	}
	if req.ChunkSize <= 0 {
		return "", 0, fmt.Errorf("%w: chunk_size must be positive", domain.ErrInvalidRequest)
	}
	if limits.MaxChunkSize > 0 && req.ChunkSize > limits.MaxChunkSize {
		return "", 0, fmt.Errorf("%w: chunk_size %d exceeds limit %d", domain.ErrInvalidRequest, req.ChunkSize, limits.MaxChunkSize)
	}

	chunkSize := req.ChunkSize
	if chunkSize > req.TotalSize {
		chunkSize = req.TotalSize
	}
	if n := domain.TotalChunksFor(req.TotalSize, chunkSize); limits.MaxChunks > 0 && n > limits.MaxChunks {
		return "", 0, fmt.Errorf("%w: %d chunks exceeds limit %d", domain.ErrInvalidRequest, n, limits.MaxChunks)
	}
	return name, chunkSize, nil
}

// acceptChunk writes one chunk and records it on the session.
func (s *uploadService) acceptChunk(ctx context.Context, sessionID string, index int, data []byte) (*domain.Progress, error) {
	sess, err := s.core.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if progress := s.acknowledged(ctx, sess, index, data); progress != nil {
		return progress, nil
	}
	if err := s.checkAccepting(sess); err != nil {
		return nil, err
	}
	if !sess.ValidIndex(index) {
		return nil, fmt.Errorf("%w: index %d, total chunks %d", domain.ErrInvalidChunkIndex, index, sess.TotalChunks)
	}
	if want := sess.ExpectedChunkLength(index); int64(len(data)) != want {
		return nil, fmt.Errorf("%w: index %d expected %d bytes, got %d", domain.ErrChunkSizeMismatch, index, want, len(data))
	}

	// A new index shares the session with other new indices. Only the writer of
	// an index can complete the set, so holding the index stripe keeps the
	// session out of Assembling until this write is recorded. A resend of a
	// recorded index takes the session exclusively for the same guarantee.
	resend := sess.Received.Has(index)
	for {
		release := s.lockSession(sessionID, index, resend)
		progress, retry, err := s.storeChunk(ctx, sessionID, index, data, resend)
		release()
		if !retry {
			return progress, err
		}
		resend = true
	}
}

// lockSession acquires the session lock in the mode the write needs, then the index stripe.
func (s *uploadService) lockSession(sessionID string, index int, exclusive bool) func() {
	var releaseSession func()
	if exclusive {
		releaseSession = s.core.sessionLocks.lock(sessionID)
	} else {
		releaseSession = s.core.sessionLocks.rlock(sessionID)
	}
	releaseIndex := s.core.locks.lock(chunkKey(sessionID, index))
	return func() {
		releaseIndex()
		releaseSession()
	}
}

// storeChunk re-checks the session under the locks, writes the blob and
// records the index. retry is set when the index was recorded by another
// request since the caller chose a shared lock.
func (s *uploadService) storeChunk(ctx context.Context, sessionID string, index int, data []byte, exclusive bool) (*domain.Progress, bool, error) {
	sess, err := s.core.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if progress := s.acknowledged(ctx, sess, index, data); progress != nil {
		return progress, false, nil
	}
	if err := s.checkAccepting(sess); err != nil {
		return nil, false, err
	}
	if !exclusive && sess.Received.Has(index) {
		return nil, true, nil
	}

	if err := s.core.chunks.PutChunk(ctx, sessionID, index, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, false, fmt.Errorf("failed to store chunk %d: %w", index, err)
	}

	var readyForAssembly bool
	var seen domain.Status
	updated, err := s.core.sessions.Update(ctx, sessionID, func(cur *domain.Session) error {
		readyForAssembly = false
		seen = cur.Status
		if err := s.checkAccepting(cur); err != nil {
			return err
		}

		now := s.core.now()
		cur.Received.Add(index)
		cur.UpdatedAt = now
		if cur.Status == domain.StatusInitialized {
			if err := cur.Transition(domain.StatusUploading, now); err != nil {
				return err
			}
		}
		if cur.Complete() {
			if err := cur.Transition(domain.StatusAssembling, now); err != nil {
				return err
			}
			readyForAssembly = true
		}
		return nil
	})
	if err != nil {
		// The session was cancelled, expired or removed while the chunk was in flight.
		if errors.Is(err, domain.ErrSessionNotFound) || seen == domain.StatusCancelled || seen == domain.StatusExpired {
			s.discardChunk(sessionID, index)
		}
		return nil, false, err
	}

	if readyForAssembly {
		logger.Infow("Upload complete, assembly queued", "session_id", sessionID, "total_chunks", updated.TotalChunks)
		if err := s.core.queue.EnqueueAssembly(ctx, sessionID); err != nil {
			// The reaper re-enqueues stalled assemblies, so the chunk is still accepted.
			logger.Errorw("Failed to enqueue assembly", "session_id", sessionID, "error", err.Error())
		}
	}
	return progressOf(updated, index), false, nil
}

// acknowledged returns the progress of a session that has moved past intake
// when it already holds exactly these bytes for index, so a retry whose first
// response was lost succeeds. Nothing is written.
func (s *uploadService) acknowledged(ctx context.Context, sess *domain.Session, index int, data []byte) *domain.Progress {
	if sess.Status != domain.StatusAssembling && sess.Status != domain.StatusCompleted {
		return nil
	}
	if !sess.Received.Has(index) || int64(len(data)) != sess.ExpectedChunkLength(index) {
		return nil
	}
	stored, err := s.recordedChunk(ctx, sess, index)
	if err != nil {
		logger.Debugw("Recorded chunk unavailable for comparison", "session_id", sess.ID, "chunk_index", index, "error", err.Error())
		return nil
	}
	if !bytes.Equal(stored, data) {
		return nil
	}
	logger.Debugw("Chunk already recorded, acknowledging without write", "session_id", sess.ID, "chunk_index", index, "status", sess.Status)
	return progressOf(sess, index)
}

// recordedChunk reads the accepted bytes of index from chunk storage, or from
// the published artifact once the assembler has dropped the chunks.
func (s *uploadService) recordedChunk(ctx context.Context, sess *domain.Session, index int) ([]byte, error) {
	want := sess.ExpectedChunkLength(index)
	if rc, _, err := s.core.chunks.OpenChunk(ctx, sess.ID, index); err == nil {
		defer func() { _ = rc.Close() }()
		return io.ReadAll(io.LimitReader(rc, want+1))
	}

	r, _, err := s.core.artifacts.Open(ctx, sess.ArtifactRef)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	if _, err := r.Seek(int64(index)*sess.ChunkSize, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, want)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func progressOf(sess *domain.Session, index int) *domain.Progress {
	return &domain.Progress{
		ChunkIndex:      index,
		UploadedChunks:  sess.Received.Len(),
		TotalChunks:     sess.TotalChunks,
		ProgressPercent: sess.ProgressPercent(),
	}
}

// checkAccepting maps the session state to the chunk-intake failure, if any.
func (s *uploadService) checkAccepting(sess *domain.Session) error {
	if sess.Status == domain.StatusExpired {
		return fmt.Errorf("%w: session %s", domain.ErrSessionExpired, sess.ID)
	}
	if !sess.Status.AcceptsChunks() {
		return fmt.Errorf("%w: session %s is %s", domain.ErrInvalidState, sess.ID, sess.Status)
	}
	if sess.ExpiredAtTime(s.core.now()) {
		return fmt.Errorf("%w: session %s expired at %s", domain.ErrSessionExpired, sess.ID, sess.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}

// discardChunk best-effort drops the chunk storage of a session that no longer accepts uploads.
func (s *uploadService) discardChunk(sessionID string, index int) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := s.core.chunks.DeleteSession(ctx, sessionID); err != nil {
		logger.Warnw("Failed to discard late chunk", "session_id", sessionID, "chunk_index", index, "error", err.Error())
	}
}

// status returns the read-only view of a session.
func (s *uploadService) status(ctx context.Context, sessionID string) (*domain.StatusDescriptor, error) {
	sess, err := s.core.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Describe(), nil
}

// cancelUpload moves a live session to Cancelled and frees its chunks.
func (s *uploadService) cancelUpload(ctx context.Context, sessionID string) error {
	var previous domain.Status
	_, err := s.core.sessions.Update(ctx, sessionID, func(cur *domain.Session) error {
		previous = cur.Status
		return cur.Transition(domain.StatusCancelled, s.core.now())
	})
	if err != nil {
		return err
	}

	logger.Infow("Upload cancelled", "session_id", sessionID, "previous_status", previous)
	if err := s.core.chunks.DeleteSession(ctx, sessionID); err != nil {
		// Leftovers are collected by the reaper retention sweep.
		logger.Warnw("Failed to delete chunks of cancelled session", "session_id", sessionID, "error", err.Error())
	}
	return nil
}
