package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/pkg/resilience"
	"github.com/anthanhphan/go-resumable-transfer/pkg/transferapi"
	"github.com/anthanhphan/gosdk/logger"
)

var (
	ErrTransferCancelled = errors.New("transfer cancelled")
	ErrAssemblyFailed    = errors.New("server failed to assemble the upload")
	ErrSessionClosed     = errors.New("upload session closed by the server")
)

type UploaderConfig struct {
	ChunkSize    int64
	Concurrency  int
	ChunkTimeout time.Duration
	MaxAttempts  int
	Backoff      resilience.Backoff
	// StateMaxAge bounds how old a resume record may be. Keep it below the
	// server session TTL so a resume never targets an expired session.
	StateMaxAge time.Duration
	ContentType string
	// PollInterval is how often Wait polls the session once every chunk is
	// confirmed. Zero returns as soon as the last chunk is accepted.
	PollInterval time.Duration
	OnProgress   func(Progress)
}

func DefaultUploaderConfig() UploaderConfig {
	return UploaderConfig{
		ChunkSize:    5 * 1024 * 1024,
		Concurrency:  3,
		ChunkTimeout: time.Minute,
		MaxAttempts:  5,
		Backoff:      resilience.DefaultBackoff,
		StateMaxAge:  23 * time.Hour,
		PollInterval: time.Second,
	}
}

// Progress is reported after every confirmed chunk.
type Progress struct {
	SessionID string
	Confirmed int
	Total     int
	Percent   float64
}

type UploadResult struct {
	SessionID   string
	Status      string
	ArtifactRef string
	Resumed     bool
}

type Uploader struct {
	api   *API
	state StateStore
	cfg   UploaderConfig
	now   func() time.Time
}

func NewUploader(api *API, state StateStore, cfg UploaderConfig) *Uploader {
	def := DefaultUploaderConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = def.ChunkTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.StateMaxAge <= 0 {
		cfg.StateMaxAge = def.StateMaxAge
	}
	if state == nil {
		state = NewMemoryStateStore()
	}
	return &Uploader{api: api, state: state, cfg: cfg, now: time.Now}
}

// Start opens or resumes the upload identified by key and sends the missing
// chunks in the background. The returned Transfer controls the upload.
func (u *Uploader) Start(ctx context.Context, key string, src io.ReaderAt, size int64, fileName string) (*Transfer, error) {
	st, resumed, err := u.resolveSession(ctx, key, size, fileName)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	t := &Transfer{
		u:         u,
		key:       key,
		src:       src,
		ctx:       runCtx,
		cancel:    cancel,
		gate:      newGate(),
		state:     st,
		confirmed: make(map[int]struct{}, len(st.Confirmed)),
		resumed:   resumed,
		done:      make(chan struct{}),
	}
	for _, idx := range st.Confirmed {
		t.confirmed[idx] = struct{}{}
	}

	// The caller's context bounds the whole transfer.
	stopWatch := context.AfterFunc(ctx, cancel)
	go func() {
		defer stopWatch()
		t.run()
	}()
	return t, nil
}

// resolveSession reuses a fresh resume record or creates a new session.
func (u *Uploader) resolveSession(ctx context.Context, key string, size int64, fileName string) (UploadState, bool, error) {
	var st UploadState
	err := u.state.Load(uploadKey(key), &st)
	switch {
	case err == nil:
		ok, resumeErr := u.resumable(ctx, &st, size, fileName)
		if resumeErr != nil {
			return UploadState{}, false, resumeErr
		}
		if ok {
			logger.Infow("Resuming upload", "session_id", st.SessionID, "confirmed_chunks", len(st.Confirmed), "total_chunks", st.TotalChunks)
			return st, true, nil
		}
		_ = u.state.Delete(uploadKey(key))
	case !errors.Is(err, ErrNoState):
		logger.Warnw("Failed to read resume state, starting fresh", "key", key, "error", err.Error())
	}

	resp, err := u.api.Init(ctx, transferapi.InitRequest{
		FileName:    fileName,
		TotalSize:   size,
		ChunkSize:   u.cfg.ChunkSize,
		ContentType: u.cfg.ContentType,
	})
	if err != nil {
		return UploadState{}, false, fmt.Errorf("failed to init upload: %w", err)
	}

	now := u.now()
	st = UploadState{
		SessionID:   resp.SessionID,
		FileName:    fileName,
		FileSize:    size,
		ChunkSize:   resp.ChunkSize,
		TotalChunks: resp.TotalChunks,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.state.Save(uploadKey(key), &st); err != nil {
		logger.Warnw("Failed to persist resume state", "session_id", st.SessionID, "error", err.Error())
	}
	logger.Infow("Upload session started", "session_id", st.SessionID, "total_chunks", st.TotalChunks, "chunk_size", st.ChunkSize)
	return st, false, nil
}

// resumable reports whether st still describes a live session for this file.
func (u *Uploader) resumable(ctx context.Context, st *UploadState, size int64, fileName string) (bool, error) {
	if st.FileSize != size || st.FileName != fileName || st.SessionID == "" {
		return false, nil
	}
	if u.now().Sub(st.CreatedAt) > u.cfg.StateMaxAge {
		logger.Infow("Resume state is stale, starting fresh", "session_id", st.SessionID, "created_at", st.CreatedAt)
		return false, nil
	}

	status, err := u.api.Status(ctx, st.SessionID)
	if err != nil {
		if HasCode(err, transferapi.CodeSessionNotFound) || HasCode(err, transferapi.CodeSessionExpired) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check session %s: %w", st.SessionID, err)
	}

	switch status.Status {
	case "initialized", "uploading":
		return true, nil
	case "assembling", "completed":
		// Everything was sent before the interruption.
		st.Confirmed = make([]int, st.TotalChunks)
		for i := range st.Confirmed {
			st.Confirmed[i] = i
		}
		return true, nil
	default:
		return false, nil
	}
}

// Transfer is one running upload.
type Transfer struct {
	u      *Uploader
	key    string
	src    io.ReaderAt
	ctx    context.Context
	cancel context.CancelFunc
	gate   *gate

	mu        sync.Mutex
	state     UploadState
	confirmed map[int]struct{}
	resumed   bool

	done   chan struct{}
	result *UploadResult
	err    error

	cancelOnce sync.Once
	cancelErr  error
	cancelled  bool
}

func (t *Transfer) SessionID() string {
	return t.state.SessionID
}

func (t *Transfer) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progressLocked()
}

func (t *Transfer) progressLocked() Progress {
	p := Progress{SessionID: t.state.SessionID, Confirmed: len(t.confirmed), Total: t.state.TotalChunks}
	if p.Total > 0 {
		p.Percent = float64(p.Confirmed) / float64(p.Total) * 100
	}
	return p
}

// Pause stops issuing new chunk requests. In-flight requests finish.
func (t *Transfer) Pause() {
	t.gate.pause()
}

// Resume lets a paused transfer issue chunk requests again.
func (t *Transfer) Resume() {
	t.gate.open()
}

func (t *Transfer) Paused() bool {
	return t.gate.isPaused()
}

// Done is closed when the transfer stops.
func (t *Transfer) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the transfer stops and returns its outcome.
func (t *Transfer) Wait() (*UploadResult, error) {
	<-t.done
	return t.result, t.err
}

// Cancel aborts in-flight requests, cancels the server session and discards
// the resume record. Repeated calls return the first outcome.
func (t *Transfer) Cancel() error {
	t.cancelOnce.Do(func() {
		t.mu.Lock()
		t.cancelled = true
		t.mu.Unlock()

		t.cancel()
		<-t.done

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := t.u.api.Cancel(ctx, t.state.SessionID); err != nil && !HasCode(err, transferapi.CodeSessionNotFound) {
			t.cancelErr = fmt.Errorf("failed to cancel session %s: %w", t.state.SessionID, err)
		}
		if err := t.u.state.Delete(uploadKey(t.key)); err != nil {
			logger.Warnw("Failed to discard resume state", "session_id", t.state.SessionID, "error", err.Error())
		}
		logger.Infow("Upload cancelled", "session_id", t.state.SessionID)
	})
	return t.cancelErr
}

func (t *Transfer) run() {
	defer close(t.done)

	if err := t.sendMissing(); err != nil {
		t.fail(err)
		return
	}

	result, err := t.awaitAssembly()
	if err != nil {
		t.fail(err)
		return
	}
	result.Resumed = t.resumed
	t.result = result
	if result.Status == "completed" {
		t.discardState()
	}
}

// sendMissing uploads every unconfirmed chunk on a bounded worker pool. The
// first terminal error stops the rest.
func (t *Transfer) sendMissing() error {
	pending := t.missing()
	if len(pending) == 0 {
		return nil
	}

	runCtx, stop := context.WithCancel(t.ctx)
	defer stop()

	var (
		firstErr error
		errOnce  sync.Once
	)
	pool := resilience.NewWorkerPool(t.u.cfg.Concurrency, t.u.cfg.Concurrency)

	for _, idx := range pending {
		if err := t.gate.wait(runCtx); err != nil {
			break
		}
		idx := idx
		err := pool.Submit(runCtx, func(context.Context) {
			if err := t.gate.wait(runCtx); err != nil {
				return
			}
			if err := t.sendChunk(runCtx, idx); err != nil {
				errOnce.Do(func() {
					firstErr = err
					stop()
				})
			}
		})
		if err != nil {
			break
		}
	}
	pool.Close()
	pool.Wait()

	if firstErr != nil && t.ctx.Err() == nil {
		return firstErr
	}
	if err := t.ctx.Err(); err != nil {
		return err
	}
	if n := len(t.missing()); n > 0 {
		return fmt.Errorf("%d chunks were not confirmed", n)
	}
	return nil
}

// sendChunk reads one chunk from the source and uploads it with retries. Each
// attempt has its own timeout.
func (t *Transfer) sendChunk(ctx context.Context, index int) error {
	offset, length := chunkBounds(t.state.FileSize, t.state.ChunkSize, index)
	buf := make([]byte, length)
	if n, err := t.src.ReadAt(buf, offset); int64(n) != length {
		return fmt.Errorf("failed to read chunk %d: %w", index, err)
	}

	attempt := 0
	err := resilience.Retry(ctx, t.u.cfg.MaxAttempts, t.u.cfg.Backoff, func(ctx context.Context) error {
		attempt++
		reqCtx, cancel := context.WithTimeout(ctx, t.u.cfg.ChunkTimeout)
		defer cancel()

		_, err := t.u.api.PutChunk(reqCtx, t.state.SessionID, index, buf)
		if err != nil && IsTransient(err) {
			logger.Debugw("Chunk upload attempt failed", "session_id", t.state.SessionID, "chunk_index", index, "attempt", attempt, "error", err.Error())
		}
		return err
	}, IsTransient)
	if err != nil && !(HasCode(err, transferapi.CodeInvalidState) && t.sealed(ctx)) {
		return fmt.Errorf("chunk %d: %w", index, err)
	}

	t.confirm(index)
	return nil
}

// sealed reports whether the server has closed intake because every chunk
// arrived. A retry rejected this way had its earlier attempt accepted.
func (t *Transfer) sealed(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, t.u.cfg.ChunkTimeout)
	defer cancel()

	status, err := t.u.api.Status(reqCtx, t.state.SessionID)
	if err != nil {
		logger.Warnw("Failed to check session after rejected retry", "session_id", t.state.SessionID, "error", err.Error())
		return false
	}
	if status.Status != "assembling" && status.Status != "completed" {
		return false
	}
	logger.Infow("Retried chunk already accepted", "session_id", t.state.SessionID, "status", status.Status)
	return true
}

func (t *Transfer) confirm(index int) {
	t.mu.Lock()
	t.confirmed[index] = struct{}{}
	t.state.Confirmed = sortedIndices(t.confirmed)
	t.state.UpdatedAt = t.u.now()
	snapshot := t.state
	progress := t.progressLocked()
	t.mu.Unlock()

	if err := t.u.state.Save(uploadKey(t.key), &snapshot); err != nil {
		logger.Warnw("Failed to persist resume state", "session_id", snapshot.SessionID, "chunk_index", index, "error", err.Error())
	}
	if t.u.cfg.OnProgress != nil {
		t.u.cfg.OnProgress(progress)
	}
}

func (t *Transfer) missing() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]int, 0, t.state.TotalChunks-len(t.confirmed))
	for i := 0; i < t.state.TotalChunks; i++ {
		if _, ok := t.confirmed[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// awaitAssembly polls the session until the server publishes or rejects the artifact.
func (t *Transfer) awaitAssembly() (*UploadResult, error) {
	if t.u.cfg.PollInterval <= 0 {
		return &UploadResult{SessionID: t.state.SessionID, Status: "assembling"}, nil
	}

	ticker := time.NewTicker(t.u.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, err := t.u.api.Status(t.ctx, t.state.SessionID)
		if err != nil && !IsTransient(err) {
			return nil, err
		}
		if err == nil {
			switch status.Status {
			case "completed":
				result := &UploadResult{SessionID: status.SessionID, Status: status.Status}
				if status.ArtifactRef != nil {
					result.ArtifactRef = *status.ArtifactRef
				}
				return result, nil
			case "failed":
				reason := "unknown error"
				if status.Error != nil {
					reason = *status.Error
				}
				return nil, fmt.Errorf("%w: %s", ErrAssemblyFailed, reason)
			case "cancelled", "expired":
				return nil, fmt.Errorf("%w: session is %s", ErrSessionClosed, status.Status)
			}
		}

		select {
		case <-t.ctx.Done():
			return nil, t.ctx.Err()
		case <-ticker.C:
		}
	}
}

// fail records err. Resume state survives interruptions and transient
// exhaustion, and is dropped when the server session cannot continue.
func (t *Transfer) fail(err error) {
	t.mu.Lock()
	cancelled := t.cancelled
	t.mu.Unlock()

	if cancelled {
		t.err = ErrTransferCancelled
		return
	}
	t.err = err

	if errors.Is(err, ErrAssemblyFailed) || errors.Is(err, ErrSessionClosed) ||
		HasCode(err, transferapi.CodeSessionExpired) ||
		HasCode(err, transferapi.CodeSessionNotFound) ||
		HasCode(err, transferapi.CodeInvalidState) {
		t.discardState()
	}
	logger.Errorw("Upload failed", "session_id", t.state.SessionID, "error", err.Error())
}

func (t *Transfer) discardState() {
	if err := t.u.state.Delete(uploadKey(t.key)); err != nil {
		logger.Warnw("Failed to discard resume state", "session_id", t.state.SessionID, "error", err.Error())
	}
}

// chunkBounds returns the offset and length of chunk index.
func chunkBounds(size, chunkSize int64, index int) (int64, int64) {
	offset := int64(index) * chunkSize
	length := chunkSize
	if rest := size - offset; rest < length {
		length = rest
	}
	return offset, length
}

func sortedIndices(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// gate blocks new work while paused.
type gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

func newGate() *gate {
	return &gate{resume: make(chan struct{})}
}

func (g *gate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		g.paused = true
		g.resume = make(chan struct{})
	}
}

func (g *gate) open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		g.paused = false
		close(g.resume)
	}
}

func (g *gate) isPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	paused, ch := g.paused, g.resume
	g.mu.Unlock()
	if !paused {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return ctx.Err()
	}
}
