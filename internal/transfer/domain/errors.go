package domain

import "errors"

// Client-facing failures. Callers wrap them with context and match with errors.Is.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session expired")
	ErrInvalidChunkIndex = errors.New("invalid chunk index")
	ErrChunkSizeMismatch = errors.New("chunk size mismatch")
	ErrInvalidState      = errors.New("invalid session state")
)

// Assembly-time structural failures. They are never retried.
var (
	ErrMissingChunk = errors.New("missing chunk")
	ErrSizeMismatch = errors.New("artifact size mismatch")
)

// Storage and download failures.
var (
	ErrChunkNotFound          = errors.New("chunk not found")
	ErrArtifactNotFound       = errors.New("artifact not found")
	ErrRangeNotSatisfiable    = errors.New("range not satisfiable")
	ErrMultiRangeUnsupported  = errors.New("multiple ranges are not supported")
	ErrConcurrentModification = errors.New("concurrent session modification")
)

// IsStructural reports whether err is an assembly failure caused by the client
// breaking the chunk contract.
func IsStructural(err error) bool {
	return errors.Is(err, ErrMissingChunk) || errors.Is(err, ErrSizeMismatch)
}

// RangeError is an unsatisfiable byte range against an artifact of Size bytes.
type RangeError struct {
	Size   int64
	Reason string
}

func (e *RangeError) Error() string {
	return ErrRangeNotSatisfiable.Error() + ": " + e.Reason
}

func (e *RangeError) Unwrap() error {
	return ErrRangeNotSatisfiable
}
