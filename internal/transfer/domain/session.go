package domain

import (
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle state of a transfer session.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusUploading   Status = "uploading"
	StatusAssembling  Status = "assembling"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusExpired     Status = "expired"
)

// allowed lists every legal transition. Terminal states have no outgoing edges.
var allowed = map[Status][]Status{
	StatusInitialized: {StatusUploading, StatusCancelled, StatusExpired},
	StatusUploading:   {StatusAssembling, StatusCancelled, StatusExpired},
	StatusAssembling:  {StatusCompleted, StatusFailed, StatusCancelled},
}

// ParseStatus validates a persisted status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusInitialized, StatusUploading, StatusAssembling,
		StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return st, nil
	default:
		return "", fmt.Errorf("unknown session status %q", s)
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(allowed[s]) == 0
}

// AcceptsChunks reports whether chunk uploads are allowed in this state.
func (s Status) AcceptsChunks() bool {
	return s == StatusInitialized || s == StatusUploading
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Session tracks one logical upload.
type Session struct {
	ID          string
	OwnerID     string
	FileName    string
	ContentType string
	TotalSize   int64
	ChunkSize   int64
	TotalChunks int
	Received    ChunkSet
	Status      Status

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time
	CancelledAt *time.Time
	ExpiredAt   *time.Time

	LastError   string
	ArtifactRef string
}

// TotalChunksFor returns ceil(totalSize/chunkSize).
func TotalChunksFor(totalSize, chunkSize int64) int {
	if totalSize <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((totalSize + chunkSize - 1) / chunkSize)
}

// ChunkLength returns the exact byte length expected for chunk idx.
func ChunkLength(totalSize, chunkSize int64, idx int) int64 {
	start := int64(idx) * chunkSize
	if idx < 0 || start >= totalSize {
		return 0
	}
	if remaining := totalSize - start; remaining < chunkSize {
		return remaining
	}
	return chunkSize
}

// ExpectedChunkLength returns the byte length expected for chunk idx of s.
func (s *Session) ExpectedChunkLength(idx int) int64 {
	return ChunkLength(s.TotalSize, s.ChunkSize, idx)
}

// ValidIndex reports whether idx addresses a chunk of this session.
func (s *Session) ValidIndex(idx int) bool {
	return idx >= 0 && idx < s.TotalChunks
}

// Complete reports whether every chunk index has been received.
func (s *Session) Complete() bool {
	return s.TotalChunks > 0 && s.Received.Len() == s.TotalChunks
}

// ExpiredAtTime reports whether the upload window has elapsed at now.
func (s *Session) ExpiredAtTime(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// ProgressPercent returns the received share rounded to two decimals.
func (s *Session) ProgressPercent() float64 {
	return Percent(s.Received.Len(), s.TotalChunks)
}

// FinishedAt returns the time the session entered its terminal state.
func (s *Session) FinishedAt() (time.Time, bool) {
	var ts *time.Time
	switch s.Status {
	case StatusCompleted:
		ts = s.CompletedAt
	case StatusFailed:
		ts = s.FailedAt
	case StatusCancelled:
		ts = s.CancelledAt
	case StatusExpired:
		ts = s.ExpiredAt
	}
	if ts == nil {
		return time.Time{}, false
	}
	return *ts, true
}

// Transition moves the session to next, stamping the matching timestamp.
func (s *Session) Transition(next Status, now time.Time) error {
	if !CanTransition(s.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, s.Status, next)
	}
	s.Status = next
	s.UpdatedAt = now
	t := now
	switch next {
	case StatusCompleted:
		s.CompletedAt = &t
	case StatusFailed:
		s.FailedAt = &t
	case StatusCancelled:
		s.CancelledAt = &t
	case StatusExpired:
		s.ExpiredAt = &t
	}
	return nil
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (s *Session) Clone() *Session {
	out := *s
	out.Received = s.Received.Clone()
	out.CompletedAt = cloneTime(s.CompletedAt)
	out.FailedAt = cloneTime(s.FailedAt)
	out.CancelledAt = cloneTime(s.CancelledAt)
	out.ExpiredAt = cloneTime(s.ExpiredAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Percent returns done/total*100 rounded to two decimals.
func Percent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(done) / float64(total) * 100
	if p > 100 {
		p = 100
	}
	return math.Round(p*100) / 100
}

// Progress is returned to the uploader after each accepted chunk.
type Progress struct {
	ChunkIndex      int
	UploadedChunks  int
	TotalChunks     int
	ProgressPercent float64
}

// StatusDescriptor is the read-only view of a session.
type StatusDescriptor struct {
	SessionID       string
	Status          Status
	FileName        string
	UploadedChunks  int
	TotalChunks     int
	ProgressPercent float64
	ArtifactRef     *string
	Error           *string
}

// Describe builds the status view of s.
func (s *Session) Describe() *StatusDescriptor {
	d := &StatusDescriptor{
		SessionID:       s.ID,
		Status:          s.Status,
		FileName:        s.FileName,
		UploadedChunks:  s.Received.Len(),
		TotalChunks:     s.TotalChunks,
		ProgressPercent: s.ProgressPercent(),
	}
	if s.Status == StatusCompleted && s.ArtifactRef != "" {
		ref := s.ArtifactRef
		d.ArtifactRef = &ref
	}
	if s.Status == StatusFailed && s.LastError != "" {
		msg := s.LastError
		d.Error = &msg
	}
	return d
}

// InitRequest carries the parameters of a new upload.
type InitRequest struct {
	OwnerID     string
	FileName    string
	ContentType string
	TotalSize   int64
	ChunkSize   int64
}
