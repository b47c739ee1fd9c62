package service

import (
	"context"
	"errors"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/config"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/anthanhphan/go-resumable-transfer/pkg/resilience"
)

//go:generate mockgen -destination=mocks/dependencies_mock.go -package=mocks -source=transfer.go

// IDGenerator defines session id allocation.
type IDGenerator interface {
	NewID() (string, error)
}

// TransferServiceImpl is the facade that wires the upload, assembly, cleanup
// and download use-case services.
type TransferServiceImpl struct {
	cfg       *config.Config
	sessions  port.SessionRepository
	chunks    port.ChunkStore
	artifacts port.ArtifactStore
	queue     port.TaskQueue
	idGen     IDGenerator
	locks     *stripedLocks
	now       func() time.Time

	// sessionLocks orders resends of a recorded index against new chunks.
	sessionLocks *stripedRWLocks

	uploadUseCase   *uploadService
	assembleUseCase *assembleService
	reaperUseCase   *reaperService
	downloadUseCase *downloadService
}

// Ensure TransferServiceImpl implements the inbound ports.
var (
	_ port.UploadService   = (*TransferServiceImpl)(nil)
	_ port.DownloadService = (*TransferServiceImpl)(nil)
)

// NewTransferService builds the facade and all use-case services.
func NewTransferService(
	cfg *config.Config,
	sessions port.SessionRepository,
	chunks port.ChunkStore,
	artifacts port.ArtifactStore,
	queue port.TaskQueue,
	idGen IDGenerator,
) *TransferServiceImpl {
	svc := &TransferServiceImpl{
		cfg:       cfg,
		sessions:  sessions,
		chunks:    chunks,
		artifacts: artifacts,
		queue:     queue,
		idGen:     idGen,
		locks:     newStripedLocks(defaultStripes),
		now:       time.Now,

		sessionLocks: newStripedRWLocks(defaultStripes),
	}

	svc.uploadUseCase = newUploadService(svc)
	svc.assembleUseCase = newAssembleService(svc)
	svc.reaperUseCase = newReaperService(svc)
	svc.downloadUseCase = newDownloadService(svc)

	return svc
}

// SetClock replaces the time source. Used by tests and tooling.
func (s *TransferServiceImpl) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// InitUpload delegates session creation to the upload use-case service.
func (s *TransferServiceImpl) InitUpload(ctx context.Context, req domain.InitRequest) (*domain.Session, error) {
	return s.uploadUseCase.initUpload(ctx, req)
}

// AcceptChunk delegates chunk intake to the upload use-case service.
func (s *TransferServiceImpl) AcceptChunk(ctx context.Context, sessionID string, index int, data []byte) (*domain.Progress, error) {
	return s.uploadUseCase.acceptChunk(ctx, sessionID, index, data)
}

// Status delegates the read-only session view to the upload use-case service.
func (s *TransferServiceImpl) Status(ctx context.Context, sessionID string) (*domain.StatusDescriptor, error) {
	return s.uploadUseCase.status(ctx, sessionID)
}

// CancelUpload delegates cancellation to the upload use-case service.
func (s *TransferServiceImpl) CancelUpload(ctx context.Context, sessionID string) error {
	return s.uploadUseCase.cancelUpload(ctx, sessionID)
}

// Assemble runs one queued assembly job. It is the port.AssemblyHandler of the queue.
func (s *TransferServiceImpl) Assemble(ctx context.Context, sessionID string) error {
	return s.assembleUseCase.assemble(ctx, sessionID)
}

// RunReaper blocks running cleanup sweeps until ctx is cancelled.
func (s *TransferServiceImpl) RunReaper(ctx context.Context) {
	s.reaperUseCase.startWorker(ctx, s.cfg.Reaper.InitialDelay(), s.cfg.Reaper.Interval())
}

// Sweep runs every cleanup sweep once.
func (s *TransferServiceImpl) Sweep(ctx context.Context) ReaperReport {
	return s.reaperUseCase.sweep(ctx)
}

// OpenDownload delegates artifact streaming to the download use-case service.
func (s *TransferServiceImpl) OpenDownload(ctx context.Context, ref string, rangeHeader string) (*port.DownloadStream, error) {
	return s.downloadUseCase.openDownload(ctx, ref, rangeHeader)
}

// StatArtifact delegates artifact lookup to the download use-case service.
func (s *TransferServiceImpl) StatArtifact(ctx context.Context, ref string) (*domain.Artifact, error) {
	return s.downloadUseCase.statArtifact(ctx, ref)
}

// sessionTTL returns the upload window with a safe default.
func (s *TransferServiceImpl) sessionTTL() time.Duration {
	return s.cfg.Upload.SessionTTL()
}

// assemblyAttempts returns the assembler retry budget with a safe default.
func (s *TransferServiceImpl) assemblyAttempts() int {
	if s.cfg.Assembler.MaxAttempts > 0 {
		return s.cfg.Assembler.MaxAttempts
	}
	return 3
}

// assemblyBackoff returns the assembler retry schedule.
func (s *TransferServiceImpl) assemblyBackoff() resilience.Backoff {
	return resilience.Backoff{
		Initial:    s.cfg.Assembler.RetryBaseDelay(),
		Max:        s.cfg.Assembler.RetryMaxDelay(),
		Multiplier: 2,
		Jitter:     0.2,
	}
}

// isTransient reports whether an assembly step may be retried.
func isTransient(err error) bool {
	if err == nil || domain.IsStructural(err) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, domain.ErrSessionNotFound)
}

// cleanupTimeout bounds best-effort deletes that run detached from a request.
const cleanupTimeout = time.Minute
