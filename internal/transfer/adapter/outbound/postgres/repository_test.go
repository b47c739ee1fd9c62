package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests run against TRANSFER_TEST_POSTGRES_DSN when it is set.
func newRepo(t *testing.T) *SessionRepository {
	t.Helper()
	dsn := os.Getenv("TRANSFER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRANSFER_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, EnsureSchema(ctx, pool))
	return NewSessionRepository(pool)
}

func newSession(total int) *domain.Session {
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.NewString()
	return &domain.Session{
		ID:          id,
		FileName:    "data.bin",
		TotalSize:   int64(total),
		ChunkSize:   1,
		TotalChunks: total,
		Received:    domain.NewChunkSet(),
		Status:      domain.StatusInitialized,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
		ArtifactRef: id,
	}
}

func TestSessionRepository_Postgres(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	s := newSession(8)
	require.NoError(t, repo.Create(ctx, s))
	t.Cleanup(func() { _ = repo.Delete(context.Background(), s.ID) })
	assert.Error(t, repo.Create(ctx, s))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := repo.Update(ctx, s.ID, func(cur *domain.Session) error {
				cur.Received.Add(idx)
				if cur.Status == domain.StatusInitialized {
					return cur.Transition(domain.StatusUploading, time.Now())
				}
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Received.Len())
	assert.Equal(t, domain.StatusUploading, got.Status)

	ids, err := repo.List(ctx, port.SessionFilter{Statuses: []domain.Status{domain.StatusUploading}})
	require.NoError(t, err)
	assert.Contains(t, ids, s.ID)

	require.NoError(t, repo.Delete(ctx, s.ID))
	ok, err := repo.Exists(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
