package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/config"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "chunks/s1/7", chunkKey("s1", 7))
	assert.Equal(t, "artifacts/s1", artifactKey("s1"))

	id, ok := sessionFromPrefix("chunks/s1/")
	assert.True(t, ok)
	assert.Equal(t, "s1", id)

	_, ok = sessionFromPrefix("chunks/")
	assert.False(t, ok)
	_, ok = sessionFromPrefix("chunks/s1/0")
	assert.False(t, ok)
}

// newStubStore points the store at an endpoint that accepts any upload and delete.
func newStubStore(t *testing.T) *ArtifactStore {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("ETag", `"stub"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	store, err := New(config.S3Config{
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		Region:   "us-east-1",
		Bucket:   "transfer-test",
	})
	require.NoError(t, err)
	return store.Artifacts()
}

func TestStagedObject_SizeMismatch(t *testing.T) {
	tests := []struct {
		name         string
		writes       []string
		wantWriteErr bool
	}{
		{name: "nothing written", writes: nil},
		{name: "short write", writes: []string{"hello"}},
		{name: "write past declared size", writes: []string{"hello ", "world!"}, wantWriteErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifacts := newStubStore(t)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			staged, err := artifacts.Stage(ctx, domain.Artifact{Ref: "r1", FileName: "a.txt", Size: 11})
			require.NoError(t, err)

			var writeErr error
			for _, w := range tt.writes {
				if _, writeErr = staged.Write([]byte(w)); writeErr != nil {
					break
				}
			}
			if tt.wantWriteErr {
				assert.ErrorIs(t, writeErr, domain.ErrSizeMismatch)
			} else {
				require.NoError(t, writeErr)
			}

			_, err = staged.Commit(ctx)
			assert.ErrorIs(t, err, domain.ErrSizeMismatch)
			assert.NoError(t, staged.Abort(ctx), "abort after commit is a no-op")
		})
	}
}

// Integration test against TRANSFER_TEST_S3_ENDPOINT (for example a local MinIO).
func TestStorage_Integration(t *testing.T) {
	endpoint := os.Getenv("TRANSFER_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("TRANSFER_TEST_S3_ENDPOINT not set")
	}

	ctx := context.Background()
	store, err := New(config.S3Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("TRANSFER_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("TRANSFER_TEST_S3_SECRET_KEY"),
		Bucket:    "transfer-test",
	})
	require.NoError(t, err)
	require.NoError(t, store.EnsureBucket(ctx))

	chunks := store.Chunks()
	artifacts := store.Artifacts()
	session := uuid.NewString()

	require.NoError(t, chunks.PutChunk(ctx, session, 0, bytes.NewReader([]byte("hello ")), 6))
	require.NoError(t, chunks.PutChunk(ctx, session, 1, bytes.NewReader([]byte("world")), 5))

	ids, err := chunks.ListSessions(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, session)

	staged, err := artifacts.Stage(ctx, domain.Artifact{Ref: session, FileName: "hello world.txt", ContentType: "text/plain", Size: 11})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		rc, _, err := chunks.OpenChunk(ctx, session, i)
		require.NoError(t, err)
		_, err = io.Copy(staged, rc)
		require.NoError(t, err)
		_ = rc.Close()
	}
	art, err := staged.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), art.Size)
	assert.Equal(t, "hello world.txt", art.FileName)

	r, _, err := artifacts.Open(ctx, session)
	require.NoError(t, err)
	_, err = r.Seek(6, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	_ = r.Close()
	assert.Equal(t, "world", string(rest))

	require.NoError(t, chunks.DeleteSession(ctx, session))
	_, _, err = chunks.OpenChunk(ctx, session, 0)
	assert.True(t, errors.Is(err, domain.ErrChunkNotFound))

	require.NoError(t, artifacts.Delete(ctx, session))
	_, err = artifacts.Stat(ctx, session)
	assert.True(t, errors.Is(err, domain.ErrArtifactNotFound))

	_, err = artifacts.SweepScratch(ctx, time.Hour)
	assert.NoError(t, err)
}
