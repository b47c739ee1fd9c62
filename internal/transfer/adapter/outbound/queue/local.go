package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/anthanhphan/go-resumable-transfer/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

var ErrNoHandler = errors.New("assembly handler is not registered")

// ReadyListener receives artifact-ready notifications in process.
type ReadyListener func(ctx context.Context, artifact domain.Artifact)

// LocalQueue runs assembly jobs on an in-process worker pool. A session is
// queued at most once until its job starts.
type LocalQueue struct {
	pool *resilience.WorkerPool

	mu        sync.Mutex
	handler   port.AssemblyHandler
	listeners []ReadyListener
	queued    map[string]struct{}
}

var _ port.TaskQueue = (*LocalQueue)(nil)

func NewLocalQueue(workers, queueSize int) *LocalQueue {
	return &LocalQueue{
		pool:   resilience.NewWorkerPool(workers, queueSize),
		queued: make(map[string]struct{}),
	}
}

// SetAssemblyHandler registers the function that runs assembly jobs.
func (q *LocalQueue) SetAssemblyHandler(h port.AssemblyHandler) {
	q.mu.Lock()
	q.handler = h
	q.mu.Unlock()
}

// OnArtifactReady subscribes fn to artifact-ready notifications.
func (q *LocalQueue) OnArtifactReady(fn ReadyListener) {
	q.mu.Lock()
	q.listeners = append(q.listeners, fn)
	q.mu.Unlock()
}

// EnqueueAssembly never blocks the caller. When every worker is busy and the
// backlog is full the job is refused and the reaper picks the session up once
// it counts as stalled.
func (q *LocalQueue) EnqueueAssembly(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	handler := q.handler
	if handler == nil {
		q.mu.Unlock()
		return ErrNoHandler
	}
	if _, dup := q.queued[sessionID]; dup {
		q.mu.Unlock()
		return nil
	}
	q.queued[sessionID] = struct{}{}
	q.mu.Unlock()

	err := q.pool.TrySubmit(func(workerCtx context.Context) {
		q.mu.Lock()
		delete(q.queued, sessionID)
		q.mu.Unlock()

		if err := handler(workerCtx, sessionID); err != nil {
			logger.Errorw("Assembly job failed", "session_id", sessionID, "error", err.Error())
		}
	})
	if err != nil {
		q.mu.Lock()
		delete(q.queued, sessionID)
		q.mu.Unlock()
		if errors.Is(err, resilience.ErrWorkerPoolFull) {
			logger.Warnw("Assembly backlog full, leaving session to the reaper", "session_id", sessionID)
		}
		return fmt.Errorf("queue assembly of %s: %w", sessionID, err)
	}
	return nil
}

func (q *LocalQueue) PublishArtifactReady(ctx context.Context, artifact domain.Artifact) error {
	q.mu.Lock()
	listeners := append([]ReadyListener(nil), q.listeners...)
	q.mu.Unlock()

	logger.Infow("Artifact ready", "artifact_ref", artifact.Ref, "file_name", artifact.FileName, "size_bytes", artifact.Size)
	for _, fn := range listeners {
		fn(ctx, artifact)
	}
	return nil
}

// Close stops accepting jobs and waits for queued ones to finish.
func (q *LocalQueue) Close() {
	q.pool.Close()
	q.pool.Wait()
}

// Stop cancels running jobs, drops queued ones and waits for the workers.
func (q *LocalQueue) Stop() {
	q.pool.Stop()
	q.pool.Wait()
}
