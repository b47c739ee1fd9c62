package s3store

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/minio/minio-go/v7"
)

// ChunkStore implements port.ChunkStore on the bucket.
type ChunkStore struct {
	s *Storage
}

var _ port.ChunkStore = (*ChunkStore)(nil)

func (c *ChunkStore) PutChunk(ctx context.Context, sessionID string, index int, r io.Reader, size int64) error {
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	if _, err := c.s.client.PutObject(ctx, c.s.bucket, chunkKey(sessionID, index), r, size, opts); err != nil {
		return fmt.Errorf("upload chunk object: %w", err)
	}
	return nil
}

func (c *ChunkStore) OpenChunk(ctx context.Context, sessionID string, index int) (io.ReadCloser, int64, error) {
	obj, err := c.s.client.GetObject(ctx, c.s.bucket, chunkKey(sessionID, index), minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("get chunk object: %w", err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNotFound(err) {
			return nil, 0, fmt.Errorf("%w: session %s index %d", domain.ErrChunkNotFound, sessionID, index)
		}
		return nil, 0, fmt.Errorf("stat chunk object: %w", err)
	}
	return obj, info.Size, nil
}

func (c *ChunkStore) DeleteSession(ctx context.Context, sessionID string) error {
	objects := c.s.client.ListObjects(ctx, c.s.bucket, minio.ListObjectsOptions{
		Prefix:    sessionPrefix(sessionID),
		Recursive: true,
	})

	for result := range c.s.client.RemoveObjects(ctx, c.s.bucket, objects, minio.RemoveObjectsOptions{}) {
		if result.Err != nil && !isNotFound(result.Err) {
			return fmt.Errorf("remove chunk object %s: %w", result.ObjectName, result.Err)
		}
	}
	return nil
}

func (c *ChunkStore) ListSessions(ctx context.Context) ([]string, error) {
	var ids []string
	for obj := range c.s.client.ListObjects(ctx, c.s.bucket, minio.ListObjectsOptions{Prefix: chunksPrefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list chunk prefixes: %w", obj.Err)
		}
		if id, ok := sessionFromPrefix(obj.Key); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// SweepScratch aborts multipart chunk uploads interrupted before completion.
func (c *ChunkStore) SweepScratch(ctx context.Context, maxAge time.Duration) (int, error) {
	return c.s.abortIncomplete(ctx, chunksPrefix, maxAge)
}

// abortIncomplete removes multipart uploads under prefix started before now-maxAge.
func (s *Storage) abortIncomplete(ctx context.Context, prefix string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for upload := range s.client.ListIncompleteUploads(ctx, s.bucket, prefix, true) {
		if upload.Err != nil {
			return removed, fmt.Errorf("list incomplete uploads: %w", upload.Err)
		}
		if !upload.Initiated.Before(cutoff) {
			continue
		}
		if err := s.client.RemoveIncompleteUpload(ctx, s.bucket, upload.Key); err != nil {
			return removed, fmt.Errorf("remove incomplete upload %s: %w", upload.Key, err)
		}
		removed++
	}
	return removed, nil
}
