package worker

import (
	"context"
	"fmt"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/queue"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/hibiken/asynq"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	assemble port.AssemblyHandler
}

// NewProcessor constructs a worker processor.
func NewProcessor(assemble port.AssemblyHandler) *Processor {
	return &Processor{assemble: assemble}
}

// Handler registers the assembly job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.AssembleTask, p.handleAssemble)
	return mux
}

func (p *Processor) handleAssemble(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodeAssemblePayload(task.Payload())
	if err != nil {
		// A malformed payload never decodes on retry either.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := p.assemble(ctx, payload.SessionID); err != nil {
		logger.Warnw("Assembly task failed, asynq will retry", "session_id", payload.SessionID, "error", err.Error())
		return err
	}
	return nil
}

// Queues returns the asynq queue weights served by this process.
func Queues() map[string]int {
	return map[string]int{queue.AssemblyQueue: 1}
}
