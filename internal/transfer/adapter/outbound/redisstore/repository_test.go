package redisstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *SessionRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionRepository(client, "test")
}

func testSession(id string, total int) *domain.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Session{
		ID:          id,
		FileName:    "report.xlsx",
		TotalSize:   int64(total) * 4,
		ChunkSize:   4,
		TotalChunks: total,
		Received:    domain.NewChunkSet(),
		Status:      domain.StatusInitialized,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
		ArtifactRef: id,
	}
}

func TestSessionRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	s := testSession("s1", 3)
	require.NoError(t, repo.Create(ctx, s))
	assert.Error(t, repo.Create(ctx, s))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, s.FileName, got.FileName)
	assert.Equal(t, domain.StatusInitialized, got.Status)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	updated, err := repo.Update(ctx, "s1", func(cur *domain.Session) error {
		cur.Received.Add(2)
		return cur.Transition(domain.StatusUploading, time.Now())
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUploading, updated.Status)

	got, err = repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, got.Received.Sorted())

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Get(ctx, "s1")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	ok, err := repo.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionRepository_UpdateErrorLeavesRecord(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Create(ctx, testSession("s1", 2)))

	_, err := repo.Update(ctx, "s1", func(cur *domain.Session) error {
		cur.Received.Add(0)
		return domain.ErrInvalidState
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, got.Received.Len())
}

func TestSessionRepository_ConcurrentAddsAreNotLost(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Create(ctx, testSession("s1", 16)))

	var wg sync.WaitGroup
	var transitions sync.Map
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := repo.Update(ctx, "s1", func(cur *domain.Session) error {
				transitions.Delete(idx)
				cur.Received.Add(idx)
				if cur.Status == domain.StatusInitialized {
					if err := cur.Transition(domain.StatusUploading, time.Now()); err != nil {
						return err
					}
				}
				if cur.Complete() {
					transitions.Store(idx, true)
					return cur.Transition(domain.StatusAssembling, time.Now())
				}
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 16, got.Received.Len())
	assert.Equal(t, domain.StatusAssembling, got.Status)

	count := 0
	transitions.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 1, count, "exactly one committed update moves to assembling")
}

func TestSessionRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	stale := testSession("stale", 1)
	stale.Status = domain.StatusUploading
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, testSession("fresh", 1)))

	ids, err := repo.List(ctx, port.SessionFilter{
		Statuses:      []domain.Status{domain.StatusInitialized, domain.StatusUploading},
		ExpiresBefore: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"stale"}, ids)
}
