package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// publish uploads and assembles data, returning the artifact ref.
func publish(t *testing.T, env *testEnv, data []byte) string {
	t.Helper()
	sess := readySession(t, env, data, 64)
	require.NoError(t, env.svc.Assemble(context.Background(), sess.ID))

	st, err := env.svc.Status(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, st.ArtifactRef)
	return *st.ArtifactRef
}

func readStream(t *testing.T, body io.ReadCloser) []byte {
	t.Helper()
	defer func() { require.NoError(t, body.Close()) }()
	b, err := io.ReadAll(body)
	require.NoError(t, err)
	return b
}

func TestDownloadService_OpenDownload(t *testing.T) {
	env := newTestEnv(t, &recordingQueue{})
	data := pattern(1000)
	ref := publish(t, env, data)

	tests := []struct {
		name        string
		header      string
		wantPartial bool
		wantStart   int64
		wantEnd     int64
	}{
		{name: "Whole file", header: "", wantStart: 0, wantEnd: 999},
		{name: "Open range from zero", header: "bytes=0-", wantPartial: true, wantStart: 0, wantEnd: 999},
		{name: "Middle", header: "bytes=100-199", wantPartial: true, wantStart: 100, wantEnd: 199},
		{name: "Tail", header: "bytes=-10", wantPartial: true, wantStart: 990, wantEnd: 999},
		{name: "Clamped", header: "bytes=995-2000", wantPartial: true, wantStart: 995, wantEnd: 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := env.svc.OpenDownload(context.Background(), ref, tt.header)
			require.NoError(t, err)

			assert.Equal(t, tt.wantPartial, stream.Partial)
			assert.Equal(t, tt.wantStart, stream.Start)
			assert.Equal(t, tt.wantEnd, stream.End)
			assert.Equal(t, tt.wantEnd-tt.wantStart+1, stream.Length)
			assert.Equal(t, int64(1000), stream.Artifact.Size)
			assert.Equal(t, "asm.bin", stream.Artifact.FileName)
			assert.Equal(t, data[tt.wantStart:tt.wantEnd+1], readStream(t, stream.Body))
		})
	}
}

func TestDownloadService_UnsatisfiableRange(t *testing.T) {
	env := newTestEnv(t, &recordingQueue{})
	ref := publish(t, env, pattern(100))

	_, err := env.svc.OpenDownload(context.Background(), ref, "bytes=100-")
	assert.True(t, errors.Is(err, domain.ErrRangeNotSatisfiable))

	_, err = env.svc.OpenDownload(context.Background(), ref, "bytes=0-1,5-6")
	assert.True(t, errors.Is(err, domain.ErrMultiRangeUnsupported))
}

func TestDownloadService_UnknownArtifact(t *testing.T) {
	env := newTestEnv(t, &recordingQueue{})

	for _, ref := range []string{"nope", "", "..", "../etc", `a\b`} {
		_, err := env.svc.OpenDownload(context.Background(), ref, "")
		assert.True(t, errors.Is(err, domain.ErrArtifactNotFound), "ref %q", ref)

		_, err = env.svc.StatArtifact(context.Background(), ref)
		assert.True(t, errors.Is(err, domain.ErrArtifactNotFound), "ref %q", ref)
	}
}

func TestDownloadService_ClosesReaderOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	artifacts := mocks.NewMockArtifactStore(ctrl)
	env := newTestEnv(t, &recordingQueue{})
	env.svc.artifacts = artifacts
	meta := &domain.Artifact{Ref: "r1", FileName: "a.bin", Size: 50}

	t.Run("Bad range", func(t *testing.T) {
		reader := mocks.NewMockArtifactReader(ctrl)
		artifacts.EXPECT().Open(gomock.Any(), "r1").Return(reader, meta, nil)
		reader.EXPECT().Close().Return(nil).Times(1)

		_, err := env.svc.OpenDownload(context.Background(), "r1", "bytes=60-")
		assert.True(t, errors.Is(err, domain.ErrRangeNotSatisfiable))
	})

	t.Run("Seek failure", func(t *testing.T) {
		reader := mocks.NewMockArtifactReader(ctrl)
		artifacts.EXPECT().Open(gomock.Any(), "r1").Return(reader, meta, nil)
		reader.EXPECT().Seek(int64(10), io.SeekStart).Return(int64(0), errors.New("stale handle"))
		reader.EXPECT().Close().Return(nil).Times(1)

		_, err := env.svc.OpenDownload(context.Background(), "r1", "bytes=10-20")
		assert.ErrorContains(t, err, "stale handle")
	})

	t.Run("Ranged body closes the reader", func(t *testing.T) {
		reader := mocks.NewMockArtifactReader(ctrl)
		artifacts.EXPECT().Open(gomock.Any(), "r1").Return(reader, meta, nil)
		reader.EXPECT().Seek(int64(10), io.SeekStart).Return(int64(10), nil)
		reader.EXPECT().Close().Return(nil).Times(1)

		stream, err := env.svc.OpenDownload(context.Background(), "r1", "bytes=10-20")
		require.NoError(t, err)
		assert.Equal(t, int64(11), stream.Length)
		require.NoError(t, stream.Body.Close())
	})
}
