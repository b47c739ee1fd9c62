// Package s3store keeps chunks and artifacts in an S3 compatible bucket.
//
// Object keys:
//
//	chunks/<session>/<index>  one object per received chunk
//	staging/<uuid>            artifact being assembled
//	artifacts/<ref>           published artifact
//
// A PUT is atomic on S3, so a chunk object is either absent or complete.
// Artifacts become visible only when the staging object is copied into place.
package s3store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	chunksPrefix    = "chunks/"
	stagingPrefix   = "staging/"
	artifactsPrefix = "artifacts/"

	metaFileName = "Filename"
)

// Storage wraps the MinIO client and the bucket shared by both stores.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the storage config.
func New(cfg config.S3Config) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket makes sure the bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Chunks returns the chunk store view of the bucket.
func (s *Storage) Chunks() *ChunkStore {
	return &ChunkStore{s: s}
}

// Artifacts returns the artifact store view of the bucket.
func (s *Storage) Artifacts() *ArtifactStore {
	return &ArtifactStore{s: s}
}

func chunkKey(sessionID string, index int) string {
	return chunksPrefix + sessionID + "/" + strconv.Itoa(index)
}

func sessionPrefix(sessionID string) string {
	return chunksPrefix + sessionID + "/"
}

func artifactKey(ref string) string {
	return artifactsPrefix + ref
}

// sessionFromPrefix extracts the session id from a "chunks/<id>/" common prefix.
func sessionFromPrefix(key string) (string, bool) {
	id := strings.TrimSuffix(strings.TrimPrefix(key, chunksPrefix), "/")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
