package client

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrNoState is returned when no resume record exists for a key.
var ErrNoState = errors.New("no resume state")

// StateStore persists resume records across client restarts. Values are
// JSON-encoded so stores stay independent of the record types.
type StateStore interface {
	Load(key string, v any) error
	Save(key string, v any) error
	Delete(key string) error
}

// UploadState records which chunk indices the server has confirmed.
type UploadState struct {
	SessionID   string    `json:"session_id"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	ChunkSize   int64     `json:"chunk_size"`
	TotalChunks int       `json:"total_chunks"`
	Confirmed   []int     `json:"confirmed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DownloadState records the byte offset written to the destination so far.
type DownloadState struct {
	Ref       string    `json:"ref"`
	TotalSize int64     `json:"total_size"`
	Offset    int64     `json:"offset"`
	UpdatedAt time.Time `json:"updated_at"`
}

func uploadKey(key string) string   { return "upload/" + key }
func downloadKey(key string) string { return "download/" + key }

// MemoryStateStore keeps resume state in process memory.
type MemoryStateStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

var _ StateStore = (*MemoryStateStore)(nil)

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{records: make(map[string][]byte)}
}

func (m *MemoryStateStore) Load(key string, v any) error {
	m.mu.Lock()
	data, ok := m.records[key]
	m.mu.Unlock()
	if !ok {
		return ErrNoState
	}
	return json.Unmarshal(data, v)
}

func (m *MemoryStateStore) Save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.records[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStateStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()
	return nil
}
