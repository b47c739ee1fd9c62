package redisstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
)

// record is the JSON body of a session key. Received indices live in a
// separate Redis set so concurrent writers never rewrite a serialized list.
type record struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id,omitempty"`
	FileName    string     `json:"file_name"`
	ContentType string     `json:"content_type,omitempty"`
	TotalSize   int64      `json:"total_size"`
	ChunkSize   int64      `json:"chunk_size"`
	TotalChunks int        `json:"total_chunks"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	ArtifactRef string     `json:"artifact_ref,omitempty"`
}

func encodeSession(s *domain.Session) ([]byte, error) {
	return json.Marshal(record{
		ID:          s.ID,
		OwnerID:     s.OwnerID,
		FileName:    s.FileName,
		ContentType: s.ContentType,
		TotalSize:   s.TotalSize,
		ChunkSize:   s.ChunkSize,
		TotalChunks: s.TotalChunks,
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		ExpiresAt:   s.ExpiresAt,
		CompletedAt: s.CompletedAt,
		FailedAt:    s.FailedAt,
		CancelledAt: s.CancelledAt,
		ExpiredAt:   s.ExpiredAt,
		LastError:   s.LastError,
		ArtifactRef: s.ArtifactRef,
	})
}

func decodeSession(data []byte, members []string) (*domain.Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	status, err := domain.ParseStatus(rec.Status)
	if err != nil {
		return nil, err
	}

	received := domain.NewChunkSet()
	for _, m := range members {
		idx, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("decode chunk index %q: %w", m, err)
		}
		received.Add(idx)
	}

	return &domain.Session{
		ID:          rec.ID,
		OwnerID:     rec.OwnerID,
		FileName:    rec.FileName,
		ContentType: rec.ContentType,
		TotalSize:   rec.TotalSize,
		ChunkSize:   rec.ChunkSize,
		TotalChunks: rec.TotalChunks,
		Received:    received,
		Status:      status,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		ExpiresAt:   rec.ExpiresAt,
		CompletedAt: rec.CompletedAt,
		FailedAt:    rec.FailedAt,
		CancelledAt: rec.CancelledAt,
		ExpiredAt:   rec.ExpiredAt,
		LastError:   rec.LastError,
		ArtifactRef: rec.ArtifactRef,
	}, nil
}

// chunkMembers renders the received set as Redis set members.
func chunkMembers(set domain.ChunkSet) []interface{} {
	sorted := set.Sorted()
	out := make([]interface{}, len(sorted))
	for i, idx := range sorted {
		out[i] = strconv.Itoa(idx)
	}
	return out
}

// addedIndices returns the members of next missing from prev, sorted.
func addedIndices(prev, next domain.ChunkSet) []interface{} {
	var added []int
	for idx := range next {
		if !prev.Has(idx) {
			added = append(added, idx)
		}
	}
	sort.Ints(added)
	out := make([]interface{}, len(added))
	for i, idx := range added {
		out[i] = strconv.Itoa(idx)
	}
	return out
}
