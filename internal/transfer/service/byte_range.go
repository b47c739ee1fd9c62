package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
)

// byteRange is an inclusive [Start, End] span of an artifact.
type byteRange struct {
	Start int64
	End   int64
}

func (r byteRange) Length() int64 {
	return r.End - r.Start + 1
}

// parseByteRange parses a single "bytes=start-end", "bytes=start-" or
// "bytes=-suffix" range against an artifact of size bytes. An end past the
// last byte is clamped to it.
func parseByteRange(header string, size int64) (byteRange, error) {
	unsatisfiable := func(format string, args ...any) error {
		return &domain.RangeError{Size: size, Reason: fmt.Sprintf(format, args...)}
	}

	const prefix = "bytes="
	header = strings.TrimSpace(header)
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return byteRange{}, unsatisfiable("unsupported range unit in %q", header)
	}
	rangeSet := strings.TrimSpace(header[len(prefix):])
	if strings.Contains(rangeSet, ",") {
		return byteRange{}, fmt.Errorf("%w: %q", domain.ErrMultiRangeUnsupported, header)
	}

	startStr, endStr, ok := strings.Cut(rangeSet, "-")
	if !ok {
		return byteRange{}, unsatisfiable("malformed range %q", header)
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	if size <= 0 {
		return byteRange{}, unsatisfiable("empty artifact")
	}

	if startStr == "" {
		suffix, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || suffix <= 0 {
			return byteRange{}, unsatisfiable("malformed suffix range %q", header)
		}
		if suffix > size {
			suffix = size
		}
		return byteRange{Start: size - suffix, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, unsatisfiable("malformed range start %q", header)
	}
	if start >= size {
		return byteRange{}, unsatisfiable("start %d beyond size %d", start, size)
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return byteRange{}, unsatisfiable("malformed range end %q", header)
		}
		if end < start {
			return byteRange{}, unsatisfiable("end %d before start %d", end, start)
		}
		if end >= size {
			end = size - 1
		}
	}
	return byteRange{Start: start, End: end}, nil
}
