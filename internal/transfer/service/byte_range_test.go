package service

import (
	"errors"
	"testing"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteRange(t *testing.T) {
	const size = 1000

	tests := []struct {
		name    string
		header  string
		want    byteRange
		wantErr error
	}{
		{name: "Open ended from zero", header: "bytes=0-", want: byteRange{Start: 0, End: 999}},
		{name: "Closed range", header: "bytes=100-199", want: byteRange{Start: 100, End: 199}},
		{name: "Single byte", header: "bytes=999-999", want: byteRange{Start: 999, End: 999}},
		{name: "End clamped", header: "bytes=900-5000", want: byteRange{Start: 900, End: 999}},
		{name: "Suffix", header: "bytes=-100", want: byteRange{Start: 900, End: 999}},
		{name: "Suffix larger than file", header: "bytes=-5000", want: byteRange{Start: 0, End: 999}},
		{name: "Whitespace and case", header: " Bytes= 10 - 19 ", want: byteRange{Start: 10, End: 19}},
		{name: "Start at size", header: "bytes=1000-", wantErr: domain.ErrRangeNotSatisfiable},
		{name: "Start beyond size", header: "bytes=2000-3000", wantErr: domain.ErrRangeNotSatisfiable},
		{name: "End before start", header: "bytes=500-100", wantErr: domain.ErrRangeNotSatisfiable},
		{name: "Zero suffix", header: "bytes=-0", wantErr: domain.ErrRangeNotSatisfiable},
		{name: "Unknown unit", header: "items=0-10", wantErr: domain.ErrRangeNotSatisfiable},
		{name: "No dash", header: "bytes=10", wantErr: domain.ErrRangeNotSatisfiable},
		{name: "Garbage", header: "bytes=a-b", wantErr: domain.ErrRangeNotSatisfiable},
		{name: "Multiple ranges", header: "bytes=0-10,20-30", wantErr: domain.ErrMultiRangeUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseByteRange(tt.header, size)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseByteRange_ReportsSize(t *testing.T) {
	_, err := parseByteRange("bytes=5000-", 1234)

	var rangeErr *domain.RangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, int64(1234), rangeErr.Size)
}

func TestByteRangeLength(t *testing.T) {
	assert.Equal(t, int64(1), byteRange{Start: 5, End: 5}.Length())
	assert.Equal(t, int64(100), byteRange{Start: 0, End: 99}.Length())
}
