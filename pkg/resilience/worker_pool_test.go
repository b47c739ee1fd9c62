package resilience

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolExecutesJobs(t *testing.T) {
	pool := NewWorkerPool(3, 6)

	var count int32
	for i := 0; i < 10; i++ {
		if err := pool.Submit(context.Background(), func(context.Context) {
			atomic.AddInt32(&count, 1)
		}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	pool.Close()
	pool.Wait()

	if got := atomic.LoadInt32(&count); got != 10 {
		t.Fatalf("expected 10 jobs executed, got %d", got)
	}
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	pool.Close()
	if err := pool.Submit(context.Background(), func(context.Context) {}); err != ErrWorkerPoolClosed {
		t.Fatalf("expected ErrWorkerPoolClosed, got %v", err)
	}
	if err := pool.TrySubmit(func(context.Context) {}); err != ErrWorkerPoolClosed {
		t.Fatalf("expected ErrWorkerPoolClosed from TrySubmit, got %v", err)
	}
}

func TestWorkerPoolTrySubmitFull(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	defer func() {
		pool.Stop()
		pool.Wait()
	}()

	release := make(chan struct{})
	started := make(chan struct{})
	if err := pool.Submit(context.Background(), func(context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	<-started

	if err := pool.TrySubmit(func(context.Context) {}); err != nil {
		t.Fatalf("expected queue slot, got %v", err)
	}
	if err := pool.TrySubmit(func(context.Context) {}); err != ErrWorkerPoolFull {
		t.Fatalf("expected ErrWorkerPoolFull, got %v", err)
	}
	close(release)
}

func TestWorkerPoolStopCancelsRunningJobs(t *testing.T) {
	pool := NewWorkerPool(1, 1)

	cancelled := make(chan struct{})
	started := make(chan struct{})
	_ = pool.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})
	<-started

	pool.Stop()
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("running job was not cancelled")
	}
	pool.Wait()
}
