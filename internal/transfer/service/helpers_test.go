package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/fsstore"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/memory"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/config"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/stretchr/testify/require"
)

// seqIDs hands out predictable session ids.
type seqIDs struct {
	n atomic.Int64
}

func (g *seqIDs) NewID() (string, error) {
	return fmt.Sprintf("sess%04d", g.n.Add(1)), nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingQueue records jobs instead of running them so tests drive assembly.
type recordingQueue struct {
	mu        sync.Mutex
	assembles []string
	ready     []domain.Artifact
}

func (q *recordingQueue) EnqueueAssembly(_ context.Context, sessionID string) error {
	q.mu.Lock()
	q.assembles = append(q.assembles, sessionID)
	q.mu.Unlock()
	return nil
}

func (q *recordingQueue) PublishArtifactReady(_ context.Context, artifact domain.Artifact) error {
	q.mu.Lock()
	q.ready = append(q.ready, artifact)
	q.mu.Unlock()
	return nil
}

func (q *recordingQueue) enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.assembles...)
}

func (q *recordingQueue) published() []domain.Artifact {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.Artifact(nil), q.ready...)
}

// hookedChunks wraps a chunk store and lets a test intercept OpenChunk and PutChunk.
type hookedChunks struct {
	port.ChunkStore
	onOpen func(sessionID string, index int) error
	onPut  func(sessionID string, index int)
	opens  atomic.Int32
}

func (h *hookedChunks) PutChunk(ctx context.Context, sessionID string, index int, r io.Reader, size int64) error {
	if h.onPut != nil {
		h.onPut(sessionID, index)
	}
	return h.ChunkStore.PutChunk(ctx, sessionID, index, r, size)
}

func (h *hookedChunks) OpenChunk(ctx context.Context, sessionID string, index int) (io.ReadCloser, int64, error) {
	h.opens.Add(1)
	if h.onOpen != nil {
		if err := h.onOpen(sessionID, index); err != nil {
			return nil, 0, err
		}
	}
	return h.ChunkStore.OpenChunk(ctx, sessionID, index)
}

type testEnv struct {
	svc       *TransferServiceImpl
	repo      *memory.SessionRepository
	chunks    *hookedChunks
	artifacts *fsstore.ArtifactStore
	clock     *fakeClock
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Assembler.RetryBaseDelayMS = 1
	cfg.Assembler.RetryMaxDelayMS = 5
	return cfg
}

func newTestEnv(t *testing.T, queue port.TaskQueue) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testConfig(), queue)
}

func newTestEnvWithConfig(t *testing.T, cfg *config.Config, queue port.TaskQueue) *testEnv {
	t.Helper()
	dir := t.TempDir()

	chunkStore, err := fsstore.NewChunkStore(dir, false)
	require.NoError(t, err)
	artifacts, err := fsstore.NewArtifactStore(dir, false)
	require.NoError(t, err)

	env := &testEnv{
		repo:      memory.NewSessionRepository(),
		chunks:    &hookedChunks{ChunkStore: chunkStore},
		artifacts: artifacts,
		clock:     newFakeClock(),
	}
	env.svc = NewTransferService(cfg, env.repo, env.chunks, env.artifacts, queue, &seqIDs{})
	env.svc.SetClock(env.clock.Now)
	return env
}

// pattern returns n deterministic bytes.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31 + i/7)
	}
	return b
}

// chunkOf slices chunk idx of data.
func chunkOf(data []byte, chunkSize int64, idx int) []byte {
	start := int64(idx) * chunkSize
	end := start + chunkSize
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[start:end]
}

func (e *testEnv) init(t *testing.T, name string, data []byte, chunkSize int64) *domain.Session {
	t.Helper()
	sess, err := e.svc.InitUpload(context.Background(), domain.InitRequest{
		FileName:  name,
		TotalSize: int64(len(data)),
		ChunkSize: chunkSize,
	})
	require.NoError(t, err)
	return sess
}

func (e *testEnv) uploadAll(t *testing.T, sess *domain.Session, data []byte, order []int) {
	t.Helper()
	for _, idx := range order {
		_, err := e.svc.AcceptChunk(context.Background(), sess.ID, idx, chunkOf(data, sess.ChunkSize, idx))
		require.NoError(t, err)
	}
}

func (e *testEnv) readArtifact(t *testing.T, ref string) []byte {
	t.Helper()
	stream, err := e.svc.OpenDownload(context.Background(), ref, "")
	require.NoError(t, err)
	defer func() { _ = stream.Body.Close() }()

	var buf bytes.Buffer
	_, err = io.Copy(&buf, stream.Body)
	require.NoError(t, err)
	return buf.Bytes()
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
