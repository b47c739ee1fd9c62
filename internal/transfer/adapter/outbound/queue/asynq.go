package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/hibiken/asynq"
)

const (
	// AssemblyQueue holds assembly jobs.
	AssemblyQueue = "assembly"

	defaultMaxRetry = 5
)

// AsynqQueue schedules jobs on Redis through asynq. Assembly tasks use the
// session id as task id so a session is pending at most once. A task left
// archived or retained under that id is replaced on the next enqueue.
type AsynqQueue struct {
	client     *asynq.Client
	inspector  *asynq.Inspector
	readyQueue string
	maxRetry   int
}

var _ port.TaskQueue = (*AsynqQueue)(nil)

func NewAsynqQueue(client *asynq.Client, inspector *asynq.Inspector, readyQueue string) *AsynqQueue {
	if readyQueue == "" {
		readyQueue = "artifacts"
	}
	return &AsynqQueue{client: client, inspector: inspector, readyQueue: readyQueue, maxRetry: defaultMaxRetry}
}

func (q *AsynqQueue) EnqueueAssembly(ctx context.Context, sessionID string) error {
	data, err := json.Marshal(AssemblePayload{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	taskID := assembleTaskID(sessionID)
	err = q.enqueueAssemble(ctx, taskID, data)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		replaced, dropErr := q.dropFinished(taskID)
		if dropErr != nil {
			return dropErr
		}
		if replaced {
			logger.Infow("Replacing finished assembly task", "session_id", sessionID, "task_id", taskID)
			err = q.enqueueAssemble(ctx, taskID, data)
		}
	}
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			logger.Debugw("Assembly task already pending", "session_id", sessionID)
			return nil
		}
		return fmt.Errorf("enqueue assemble task: %w", err)
	}
	return nil
}

func (q *AsynqQueue) enqueueAssemble(ctx context.Context, taskID string, data []byte) error {
	_, err := q.client.EnqueueContext(ctx, asynq.NewTask(AssembleTask, data),
		asynq.Queue(AssemblyQueue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(q.maxRetry),
	)
	return err
}

// dropFinished deletes the task holding taskID when it will never run again.
// It reports whether the id is free for a new task.
func (q *AsynqQueue) dropFinished(taskID string) (bool, error) {
	if q.inspector == nil {
		return false, nil
	}
	info, err := q.inspector.GetTaskInfo(AssemblyQueue, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect assemble task: %w", err)
	}
	if info.State != asynq.TaskStateArchived && info.State != asynq.TaskStateCompleted {
		return false, nil
	}
	if err := q.inspector.DeleteTask(AssemblyQueue, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, fmt.Errorf("delete %s assemble task: %w", info.State, err)
	}
	return true, nil
}

func (q *AsynqQueue) PublishArtifactReady(ctx context.Context, artifact domain.Artifact) error {
	data, err := json.Marshal(ArtifactReadyPayload{Artifact: artifact})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	task := asynq.NewTask(ArtifactReadyTask, data)
	if _, err := q.client.EnqueueContext(ctx, task, asynq.Queue(q.readyQueue), asynq.MaxRetry(q.maxRetry)); err != nil {
		return fmt.Errorf("enqueue artifact ready task: %w", err)
	}
	return nil
}
