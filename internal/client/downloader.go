package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

var ErrArtifactChanged = errors.New("artifact changed during download")

type DownloaderConfig struct {
	// SmallThreshold is the size below which an artifact is fetched with one request.
	SmallThreshold int64
	SegmentSize    int64
	SegmentTimeout time.Duration
	MaxAttempts    int
	Backoff        resilience.Backoff
	OnProgress     func(written, total int64)
}

func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		SmallThreshold: 8 * 1024 * 1024,
		SegmentSize:    4 * 1024 * 1024,
		SegmentTimeout: 2 * time.Minute,
		MaxAttempts:    5,
		Backoff:        resilience.DefaultBackoff,
	}
}

type DownloadResult struct {
	Ref         string
	Size        int64
	ResumedFrom int64
}

type Downloader struct {
	api   *API
	state StateStore
	cfg   DownloaderConfig
	now   func() time.Time
}

func NewDownloader(api *API, state StateStore, cfg DownloaderConfig) *Downloader {
	def := DefaultDownloaderConfig()
	if cfg.SmallThreshold < 0 {
		cfg.SmallThreshold = 0
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = def.SegmentSize
	}
	if cfg.SegmentTimeout <= 0 {
		cfg.SegmentTimeout = def.SegmentTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if state == nil {
		state = NewMemoryStateStore()
	}
	return &Downloader{api: api, state: state, cfg: cfg, now: time.Now}
}

// Download writes artifact ref to dst. A previous interrupted download of the
// same artifact into dst continues from its last confirmed offset.
func (d *Downloader) Download(ctx context.Context, ref, dst string) (*DownloadResult, error) {
	headCtx, cancel := context.WithTimeout(ctx, d.cfg.SegmentTimeout)
	info, err := d.api.Head(headCtx, ref)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact %s: %w", ref, err)
	}

	f, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	key := downloadKey(ref + "|" + dst)
	offset, err := d.resumeOffset(key, ref, info.Size, f)
	if err != nil {
		return nil, err
	}
	result := &DownloadResult{Ref: ref, Size: info.Size, ResumedFrom: offset}

	if offset == 0 && (info.Size < d.cfg.SmallThreshold || !info.AcceptsRanges) {
		err = d.fetchWhole(ctx, ref, info.Size, f)
	} else {
		err = d.fetchSegments(ctx, key, ref, info.Size, offset, f)
	}
	if err != nil {
		if errors.Is(err, ErrArtifactChanged) {
			_ = d.state.Delete(key)
		}
		return nil, err
	}

	if err := f.Truncate(info.Size); err != nil {
		return nil, err
	}
	if err := f.Sync(); err != nil {
		return nil, err
	}
	if err := d.state.Delete(key); err != nil {
		logger.Warnw("Failed to discard download state", "artifact_ref", ref, "error", err.Error())
	}
	logger.Infow("Download completed", "artifact_ref", ref, "size_bytes", info.Size, "resumed_from", offset)
	return result, nil
}

// resumeOffset returns the byte offset to continue from. A record for a
// different artifact size, or a destination shorter than the record, starts over.
func (d *Downloader) resumeOffset(key, ref string, size int64, f *os.File) (int64, error) {
	var st DownloadState
	err := d.state.Load(key, &st)
	if err == nil && st.Ref == ref && st.TotalSize == size && st.Offset > 0 && st.Offset <= size {
		fi, statErr := f.Stat()
		if statErr == nil && fi.Size() >= st.Offset {
			logger.Infow("Resuming download", "artifact_ref", ref, "offset", st.Offset, "size_bytes", size)
			return st.Offset, nil
		}
	}
	if err == nil && st.TotalSize != size {
		logger.Warnw("Artifact size changed, restarting download", "artifact_ref", ref, "stored_size", st.TotalSize, "size_bytes", size)
	}

	if err := f.Truncate(0); err != nil {
		return 0, err
	}
	return 0, nil
}

func (d *Downloader) fetchWhole(ctx context.Context, ref string, size int64, f *os.File) error {
	return resilience.Retry(ctx, d.cfg.MaxAttempts, d.cfg.Backoff, func(ctx context.Context) error {
		// The deadline covers reading the body as well as the response headers.
		reqCtx, cancel := context.WithTimeout(ctx, d.cfg.SegmentTimeout)
		defer cancel()

		body, _, err := d.api.Download(reqCtx, ref, 0, -1)
		if err != nil {
			return err
		}
		defer func() { _ = body.Close() }()

		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		n, err := io.Copy(f, io.LimitReader(body, size+1))
		if err != nil {
			return err
		}
		if n != size {
			return fmt.Errorf("%w: got %d bytes, expected %d", ErrArtifactChanged, n, size)
		}
		if d.cfg.OnProgress != nil {
			d.cfg.OnProgress(n, size)
		}
		return nil
	}, IsTransient)
}

// fetchSegments requests the artifact in ranges from offset, writing each at
// its position and persisting the offset after every segment.
func (d *Downloader) fetchSegments(ctx context.Context, key, ref string, size, offset int64, f *os.File) error {
	for offset < size {
		end := min(offset+d.cfg.SegmentSize, size) - 1

		err := resilience.Retry(ctx, d.cfg.MaxAttempts, d.cfg.Backoff, func(ctx context.Context) error {
			segCtx, cancel := context.WithTimeout(ctx, d.cfg.SegmentTimeout)
			defer cancel()
			return d.fetchSegment(segCtx, ref, size, offset, end, f)
		}, IsTransient)
		if err != nil {
			return fmt.Errorf("failed to download bytes %d-%d of %s: %w", offset, end, ref, err)
		}

		offset = end + 1
		st := DownloadState{Ref: ref, TotalSize: size, Offset: offset, UpdatedAt: d.now()}
		if err := d.state.Save(key, &st); err != nil {
			logger.Warnw("Failed to persist download state", "artifact_ref", ref, "offset", offset, "error", err.Error())
		}
		if d.cfg.OnProgress != nil {
			d.cfg.OnProgress(offset, size)
		}
	}
	return nil
}

func (d *Downloader) fetchSegment(ctx context.Context, ref string, size, start, end int64, f *os.File) error {
	body, cr, err := d.api.Download(ctx, ref, start, end)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	if cr.Size != size || cr.Start != start || cr.End != end {
		return fmt.Errorf("%w: server sent bytes %d-%d/%d", ErrArtifactChanged, cr.Start, cr.End, cr.Size)
	}

	want := end - start + 1
	n, err := io.Copy(io.NewOffsetWriter(f, start), io.LimitReader(body, want))
	if err != nil {
		return err
	}
	if n != want {
		return fmt.Errorf("short segment: got %d bytes, expected %d: %w", n, want, io.ErrUnexpectedEOF)
	}
	return nil
}
