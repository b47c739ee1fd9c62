package service

import (
	"context"
	"errors"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/anthanhphan/gosdk/logger"
)

var errSweepSkip = errors.New("sweep skip")

// ReaperReport counts what one sweep removed or rescheduled.
type ReaperReport struct {
	Expired   int
	Orphans   int
	Scratch   int
	Destroyed int
	Requeued  int
}

// reaperService expires abandoned sessions and removes storage nobody owns.
type reaperService struct {
	core *TransferServiceImpl
}

// newReaperService creates the cleanup use-case service.
func newReaperService(core *TransferServiceImpl) *reaperService {
	return &reaperService{core: core}
}

// startWorker runs periodic sweeps until context cancellation.
func (s *reaperService) startWorker(ctx context.Context, initialDelay, interval time.Duration) {
	delay := time.NewTimer(initialDelay)
	defer delay.Stop()

	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}
	s.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs every sweep once. A failing sweep never stops the others.
func (s *reaperService) sweep(ctx context.Context) ReaperReport {
	started := s.core.now()
	logger.Infow("Reaper sweep started")

	report := ReaperReport{
		Expired:   s.expireSessions(ctx),
		Orphans:   s.removeOrphanChunks(ctx),
		Scratch:   s.removeScratch(ctx),
		Destroyed: s.destroyRetired(ctx),
		Requeued:  s.requeueStalled(ctx),
	}

	logger.Infow("Reaper sweep finished",
		"expired_sessions", report.Expired,
		"orphan_chunk_sets", report.Orphans,
		"scratch_files", report.Scratch,
		"destroyed_sessions", report.Destroyed,
		"requeued_assemblies", report.Requeued,
		"duration_ms", s.core.now().Sub(started).Milliseconds(),
	)
	return report
}

// expireSessions marks Initialized/Uploading sessions past their window as
// Expired and frees their chunks. Assembling sessions are never expired.
func (s *reaperService) expireSessions(ctx context.Context) int {
	now := s.core.now()
	ids, err := s.core.sessions.List(ctx, port.SessionFilter{
		Statuses:      []domain.Status{domain.StatusInitialized, domain.StatusUploading},
		ExpiresBefore: now,
	})
	if err != nil {
		logger.Errorw("Reaper failed to list expired sessions", "error", err.Error())
		return 0
	}

	expired := 0
	for _, id := range ids {
		_, err := s.core.sessions.Update(ctx, id, func(cur *domain.Session) error {
			if !cur.Status.AcceptsChunks() || !cur.ExpiredAtTime(now) {
				return errSweepSkip
			}
			return cur.Transition(domain.StatusExpired, now)
		})
		if err != nil {
			if !errors.Is(err, errSweepSkip) && !errors.Is(err, domain.ErrSessionNotFound) {
				logger.Warnw("Reaper failed to expire session", "session_id", id, "error", err.Error())
			}
			continue
		}

		expired++
		logger.Infow("Session expired", "session_id", id)
		if err := s.core.chunks.DeleteSession(ctx, id); err != nil {
			logger.Warnw("Reaper failed to delete chunks of expired session", "session_id", id, "error", err.Error())
		}
	}
	return expired
}

// removeOrphanChunks deletes chunk storage whose session record no longer exists.
func (s *reaperService) removeOrphanChunks(ctx context.Context) int {
	ids, err := s.core.chunks.ListSessions(ctx)
	if err != nil {
		logger.Errorw("Reaper failed to list chunk storage", "error", err.Error())
		return 0
	}

	removed := 0
	for _, id := range ids {
		exists, err := s.core.sessions.Exists(ctx, id)
		if err != nil {
			logger.Warnw("Skipping orphan check, session lookup failed", "session_id", id, "error", err.Error())
			continue
		}
		if exists {
			continue
		}

		logger.Infow("Reaper deleting orphaned chunks", "session_id", id)
		if err := s.core.chunks.DeleteSession(ctx, id); err != nil {
			logger.Warnw("Reaper failed to delete orphaned chunks", "session_id", id, "error", err.Error())
			continue
		}
		removed++
	}
	return removed
}

// removeScratch deletes interrupted chunk writes and abandoned artifact staging.
func (s *reaperService) removeScratch(ctx context.Context) int {
	maxAge := s.core.cfg.Reaper.ScratchMaxAge()
	total := 0

	n, err := s.core.chunks.SweepScratch(ctx, maxAge)
	if err != nil {
		logger.Warnw("Reaper chunk scratch sweep failed", "error", err.Error())
	}
	total += n

	n, err = s.core.artifacts.SweepScratch(ctx, maxAge)
	if err != nil {
		logger.Warnw("Reaper artifact scratch sweep failed", "error", err.Error())
	}
	total += n

	return total
}

// destroyRetired removes terminal sessions, and whatever chunks they still
// hold, once the retention window after their terminal state has passed.
func (s *reaperService) destroyRetired(ctx context.Context) int {
	cutoff := s.core.now().Add(-s.core.cfg.Reaper.Retention())
	ids, err := s.core.sessions.List(ctx, port.SessionFilter{
		Statuses: []domain.Status{
			domain.StatusCompleted,
			domain.StatusFailed,
			domain.StatusCancelled,
			domain.StatusExpired,
		},
		FinishedBefore: cutoff,
	})
	if err != nil {
		logger.Errorw("Reaper failed to list retired sessions", "error", err.Error())
		return 0
	}

	destroyed := 0
	for _, id := range ids {
		if err := s.core.chunks.DeleteSession(ctx, id); err != nil {
			logger.Warnw("Reaper failed to delete chunks of retired session", "session_id", id, "error", err.Error())
			continue
		}
		if err := s.core.sessions.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			logger.Warnw("Reaper failed to delete retired session", "session_id", id, "error", err.Error())
			continue
		}
		destroyed++
	}
	return destroyed
}

// requeueStalled re-enqueues Assembling sessions that have not moved for too
// long, covering an assembly job lost with its queue message.
func (s *reaperService) requeueStalled(ctx context.Context) int {
	cutoff := s.core.now().Add(-s.core.cfg.Reaper.StalledAssembly())
	ids, err := s.core.sessions.List(ctx, port.SessionFilter{
		Statuses:      []domain.Status{domain.StatusAssembling},
		UpdatedBefore: cutoff,
	})
	if err != nil {
		logger.Errorw("Reaper failed to list stalled assemblies", "error", err.Error())
		return 0
	}

	requeued := 0
	for _, id := range ids {
		if err := s.core.queue.EnqueueAssembly(ctx, id); err != nil {
			logger.Warnw("Reaper failed to re-enqueue assembly", "session_id", id, "error", err.Error())
			continue
		}
		requeued++
	}
	return requeued
}
