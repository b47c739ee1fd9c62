package port

import (
	"context"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
)

//go:generate mockgen -destination=../service/mocks/queue_mock.go -package=mocks -source=queue.go

// AssemblyHandler runs one queued assembly job.
type AssemblyHandler func(ctx context.Context, sessionID string) error

// TaskQueue decouples assembly from the upload request path and carries the
// artifact-ready notification to downstream consumers.
type TaskQueue interface {
	// EnqueueAssembly schedules assembly of a session. Delivery is at least once.
	EnqueueAssembly(ctx context.Context, sessionID string) error

	// PublishArtifactReady notifies downstream consumers that an artifact exists.
	PublishArtifactReady(ctx context.Context, artifact domain.Artifact) error
}
