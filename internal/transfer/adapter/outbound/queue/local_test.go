package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalQueue_RunsHandler(t *testing.T) {
	q := NewLocalQueue(2, 8)

	var mu sync.Mutex
	var seen []string
	q.SetAssemblyHandler(func(_ context.Context, id string) error {
		mu.Lock()
		seen = append(seen, id)
		mu.Unlock()
		return errors.New("logged, not returned")
	})

	require.NoError(t, q.EnqueueAssembly(context.Background(), "a"))
	require.NoError(t, q.EnqueueAssembly(context.Background(), "b"))
	q.Close()

	assert.ElementsMatch(t, []string{"a", "b"}, seen)
	assert.Error(t, q.EnqueueAssembly(context.Background(), "c"), "closed queue rejects jobs")
}

func TestLocalQueue_DedupesQueuedSession(t *testing.T) {
	q := NewLocalQueue(1, 8)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var runs atomic.Int32
	q.SetAssemblyHandler(func(_ context.Context, id string) error {
		if id == "blocker" {
			started <- struct{}{}
			<-release
			return nil
		}
		runs.Add(1)
		return nil
	})

	require.NoError(t, q.EnqueueAssembly(context.Background(), "blocker"))
	<-started
	for i := 0; i < 5; i++ {
		require.NoError(t, q.EnqueueAssembly(context.Background(), "s1"))
	}
	close(release)
	q.Close()

	assert.Equal(t, int32(1), runs.Load())
}

func TestLocalQueue_FullBacklogRefusesWithoutBlocking(t *testing.T) {
	q := NewLocalQueue(1, 1)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	var ran []string
	q.SetAssemblyHandler(func(_ context.Context, id string) error {
		if id == "running" {
			started <- struct{}{}
			<-release
		}
		mu.Lock()
		ran = append(ran, id)
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	require.NoError(t, q.EnqueueAssembly(ctx, "running"))
	<-started
	require.NoError(t, q.EnqueueAssembly(ctx, "backlog"))

	tests := []struct {
		name    string
		ctx     func() context.Context
		wantErr error
	}{
		{name: "full backlog", ctx: context.Background, wantErr: resilience.ErrWorkerPoolFull},
		{
			name: "cancelled caller",
			ctx: func() context.Context {
				c, cancel := context.WithCancel(context.Background())
				cancel()
				return c
			},
			wantErr: context.Canceled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan error, 1)
			go func() { done <- q.EnqueueAssembly(tt.ctx(), "refused") }()
			select {
			case err := <-done:
				assert.ErrorIs(t, err, tt.wantErr)
			case <-time.After(time.Second):
				t.Fatal("enqueue blocked")
			}
		})
	}

	close(release)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ran) == 2
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, q.EnqueueAssembly(ctx, "refused"), "a refused session can be queued again")
	q.Close()

	assert.ElementsMatch(t, []string{"running", "backlog", "refused"}, ran)
}

func TestLocalQueue_RequiresHandler(t *testing.T) {
	q := NewLocalQueue(1, 1)
	defer q.Stop()
	assert.ErrorIs(t, q.EnqueueAssembly(context.Background(), "a"), ErrNoHandler)
}

func TestLocalQueue_ArtifactReadyListeners(t *testing.T) {
	q := NewLocalQueue(1, 1)
	defer q.Stop()

	got := make(chan domain.Artifact, 1)
	q.OnArtifactReady(func(_ context.Context, a domain.Artifact) { got <- a })
	require.NoError(t, q.PublishArtifactReady(context.Background(), domain.Artifact{Ref: "r1", Size: 3}))

	select {
	case a := <-got:
		assert.Equal(t, "r1", a.Ref)
	case <-time.After(time.Second):
		t.Fatal("listener not called")
	}
}
