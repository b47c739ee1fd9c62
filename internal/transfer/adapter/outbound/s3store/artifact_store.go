package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ArtifactStore implements port.ArtifactStore on the bucket.
type ArtifactStore struct {
	s *Storage
}

var _ port.ArtifactStore = (*ArtifactStore)(nil)

// Stage streams the artifact into a staging object while the caller writes.
func (a *ArtifactStore) Stage(ctx context.Context, meta domain.Artifact) (port.StagedArtifact, error) {
	pr, pw := io.Pipe()
	staged := &stagedObject{
		store: a,
		meta:  meta,
		key:   stagingPrefix + uuid.NewString(),
		pw:    pw,
		done:  make(chan error, 1),
	}

	opts := minio.PutObjectOptions{
		ContentType:  meta.ContentType,
		UserMetadata: map[string]string{metaFileName: url.QueryEscape(meta.FileName)},
	}
	go func() {
		_, err := a.s.client.PutObject(ctx, a.s.bucket, staged.key, pr, meta.Size, opts)
		_ = pr.CloseWithError(err)
		staged.done <- err
	}()
	return staged, nil
}

func (a *ArtifactStore) Stat(ctx context.Context, ref string) (*domain.Artifact, error) {
	info, err := a.s.client.StatObject(ctx, a.s.bucket, artifactKey(ref), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, ref)
		}
		return nil, fmt.Errorf("stat artifact object: %w", err)
	}
	return a.describe(ref, info), nil
}

func (a *ArtifactStore) Open(ctx context.Context, ref string) (port.ArtifactReader, *domain.Artifact, error) {
	obj, err := a.s.client.GetObject(ctx, a.s.bucket, artifactKey(ref), minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("get artifact object: %w", err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNotFound(err) {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, ref)
		}
		return nil, nil, fmt.Errorf("stat artifact object: %w", err)
	}
	return obj, a.describe(ref, info), nil
}

func (a *ArtifactStore) Delete(ctx context.Context, ref string) error {
	err := a.s.client.RemoveObject(ctx, a.s.bucket, artifactKey(ref), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("remove artifact object: %w", err)
	}
	return nil
}

// SweepScratch removes stale staging objects and interrupted staging uploads.
func (a *ArtifactStore) SweepScratch(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var firstErr error

	for obj := range a.s.client.ListObjects(ctx, a.s.bucket, minio.ListObjectsOptions{Prefix: stagingPrefix, Recursive: true}) {
		if obj.Err != nil {
			firstErr = fmt.Errorf("list staging objects: %w", obj.Err)
			break
		}
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := a.s.client.RemoveObject(ctx, a.s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove staging object %s: %w", obj.Key, err)
			}
			continue
		}
		removed++
	}

	n, err := a.s.abortIncomplete(ctx, stagingPrefix, maxAge)
	removed += n
	if firstErr == nil {
		firstErr = err
	}
	return removed, firstErr
}

func (a *ArtifactStore) describe(ref string, info minio.ObjectInfo) *domain.Artifact {
	name := info.UserMetadata[metaFileName]
	if decoded, err := url.QueryUnescape(name); err == nil {
		name = decoded
	}
	if name == "" {
		name = ref
	}
	return &domain.Artifact{
		Ref:         ref,
		FileName:    name,
		ContentType: info.ContentType,
		Size:        info.Size,
		Location:    fmt.Sprintf("s3://%s/%s", a.s.bucket, artifactKey(ref)),
		CreatedAt:   info.LastModified.UTC(),
	}
}

// stagedObject feeds a PutObject running in the background through a pipe.
type stagedObject struct {
	store    *ArtifactStore
	meta     domain.Artifact
	key      string
	pw       *io.PipeWriter
	done     chan error
	written  int64
	finished bool
}

func (o *stagedObject) Write(p []byte) (int, error) {
	if o.written+int64(len(p)) > o.meta.Size {
		return 0, fmt.Errorf("%w: staging %d bytes, declared %d", domain.ErrSizeMismatch, o.written+int64(len(p)), o.meta.Size)
	}
	n, err := o.pw.Write(p)
	o.written += int64(n)
	return n, err
}

func (o *stagedObject) Commit(ctx context.Context) (*domain.Artifact, error) {
	if o.finished {
		return nil, errors.New("staged artifact already finished")
	}
	o.finished = true

	if o.written != o.meta.Size {
		_ = o.pw.CloseWithError(io.ErrUnexpectedEOF)
		<-o.done
		o.removeStaging(ctx)
		return nil, fmt.Errorf("%w: staged %d bytes, declared %d", domain.ErrSizeMismatch, o.written, o.meta.Size)
	}

	_ = o.pw.Close()
	if err := <-o.done; err != nil {
		o.removeStaging(ctx)
		return nil, fmt.Errorf("upload staging object: %w", err)
	}

	src := minio.CopySrcOptions{Bucket: o.store.s.bucket, Object: o.key}
	dst := minio.CopyDestOptions{Bucket: o.store.s.bucket, Object: artifactKey(o.meta.Ref)}
	if _, err := o.store.s.client.CopyObject(ctx, dst, src); err != nil {
		o.removeStaging(ctx)
		return nil, fmt.Errorf("publish artifact object: %w", err)
	}
	o.removeStaging(ctx)

	return o.store.Stat(ctx, o.meta.Ref)
}

func (o *stagedObject) Abort(ctx context.Context) error {
	if o.finished {
		return nil
	}
	o.finished = true

	_ = o.pw.CloseWithError(errors.New("staging aborted"))
	<-o.done
	o.removeStaging(ctx)
	return nil
}

// removeStaging best-effort deletes the staging object; the scratch sweep catches failures.
func (o *stagedObject) removeStaging(ctx context.Context) {
	_ = o.store.s.client.RemoveObject(ctx, o.store.s.bucket, o.key, minio.RemoveObjectOptions{})
}
