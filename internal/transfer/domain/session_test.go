package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalChunksAndLengths(t *testing.T) {
	tests := []struct {
		name      string
		totalSize int64
		chunkSize int64
		want      int
	}{
		{name: "exact multiple", totalSize: 10_485_760, chunkSize: 5_242_880, want: 2},
		{name: "short tail", totalSize: 10, chunkSize: 3, want: 4},
		{name: "single chunk", totalSize: 7, chunkSize: 7, want: 1},
		{name: "one byte chunks", totalSize: 5, chunkSize: 1, want: 5},
		{name: "chunk larger than file", totalSize: 4, chunkSize: 100, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TotalChunksFor(tt.totalSize, tt.chunkSize)
			assert.Equal(t, tt.want, got)

			var sum int64
			for i := 0; i < got; i++ {
				l := ChunkLength(tt.totalSize, tt.chunkSize, i)
				assert.Positive(t, l)
				if i < got-1 {
					assert.Equal(t, tt.chunkSize, l)
				}
				sum += l
			}
			assert.Equal(t, tt.totalSize, sum)
			assert.Zero(t, ChunkLength(tt.totalSize, tt.chunkSize, got))
			assert.Zero(t, ChunkLength(tt.totalSize, tt.chunkSize, -1))
		})
	}
}

func TestTransitions(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	s := &Session{Status: StatusInitialized, Received: NewChunkSet()}
	require.NoError(t, s.Transition(StatusUploading, now))
	require.NoError(t, s.Transition(StatusAssembling, now))
	require.NoError(t, s.Transition(StatusCompleted, now))
	require.NotNil(t, s.CompletedAt)
	assert.True(t, s.Status.Terminal())

	for _, next := range []Status{StatusUploading, StatusAssembling, StatusCancelled, StatusExpired, StatusFailed} {
		err := s.Transition(next, now)
		assert.True(t, errors.Is(err, ErrInvalidState), "completed -> %s must be rejected", next)
	}

	assembling := &Session{Status: StatusAssembling}
	assert.False(t, CanTransition(assembling.Status, StatusExpired))
	assert.True(t, CanTransition(assembling.Status, StatusCancelled))

	cancelled := &Session{Status: StatusCancelled}
	assert.Error(t, cancelled.Transition(StatusUploading, now))
	assert.Nil(t, cancelled.CompletedAt)
}

func TestChunkSetAndProgress(t *testing.T) {
	s := &Session{TotalSize: 9, ChunkSize: 3, TotalChunks: 3, Received: NewChunkSet()}

	assert.True(t, s.Received.Add(2))
	assert.False(t, s.Received.Add(2))
	assert.Equal(t, 1, s.Received.Len())
	assert.Equal(t, []int{0, 1}, s.Received.Missing(3))
	assert.False(t, s.Complete())
	assert.Equal(t, 33.33, s.ProgressPercent())

	s.Received.Add(0)
	s.Received.Add(1)
	assert.True(t, s.Complete())
	assert.Equal(t, []int{0, 1, 2}, s.Received.Sorted())
	assert.Equal(t, 100.0, s.ProgressPercent())
}

func TestDescribeHidesArtifactUntilCompleted(t *testing.T) {
	s := &Session{ID: "s1", Status: StatusAssembling, TotalChunks: 1, Received: NewChunkSet(0), ArtifactRef: "s1"}
	assert.Nil(t, s.Describe().ArtifactRef)

	s.Status = StatusFailed
	s.LastError = "missing chunk: index 0"
	d := s.Describe()
	require.NotNil(t, d.Error)
	assert.Equal(t, "missing chunk: index 0", *d.Error)
	assert.Nil(t, d.ArtifactRef)
}

func TestCloneIsIndependent(t *testing.T) {
	now := time.Now()
	s := &Session{Received: NewChunkSet(1), CompletedAt: &now}
	c := s.Clone()
	c.Received.Add(5)
	*c.CompletedAt = now.Add(time.Hour)

	assert.False(t, s.Received.Has(5))
	assert.Equal(t, now, *s.CompletedAt)
}
