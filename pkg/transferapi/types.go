// Package transferapi holds the JSON shapes and error codes of the transfer
// HTTP API, shared by the server adapter and the Go client.
package transferapi

import "fmt"

const (
	BasePath = "/api/v1"

	HeaderOwnerID = "X-Owner-ID"
)

// ErrorCode identifies a typed failure on the wire.
type ErrorCode string

const (
	CodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	CodeSessionNotFound       ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionExpired        ErrorCode = "SESSION_EXPIRED"
	CodeInvalidChunkIndex     ErrorCode = "INVALID_CHUNK_INDEX"
	CodeChunkSizeMismatch     ErrorCode = "CHUNK_SIZE_MISMATCH"
	CodeInvalidState          ErrorCode = "INVALID_STATE"
	CodeArtifactNotFound      ErrorCode = "ARTIFACT_NOT_FOUND"
	CodeRangeNotSatisfiable   ErrorCode = "RANGE_NOT_SATISFIABLE"
	CodeMultiRangeUnsupported ErrorCode = "MULTI_RANGE_UNSUPPORTED"
	CodeInternal              ErrorCode = "INTERNAL"
)

type InitRequest struct {
	FileName    string `json:"filename"`
	TotalSize   int64  `json:"total_size"`
	ChunkSize   int64  `json:"chunk_size"`
	ContentType string `json:"content_type,omitempty"`
}

type InitResponse struct {
	SessionID   string `json:"session_id"`
	ChunkSize   int64  `json:"chunk_size"`
	TotalChunks int    `json:"total_chunks"`
}

type ChunkResponse struct {
	ChunkIndex      int     `json:"chunk_index"`
	UploadedChunks  int     `json:"uploaded_chunks"`
	TotalChunks     int     `json:"total_chunks"`
	ProgressPercent float64 `json:"progress_percent"`
}

type StatusResponse struct {
	SessionID       string  `json:"session_id"`
	Status          string  `json:"status"`
	FileName        string  `json:"filename"`
	UploadedChunks  int     `json:"uploaded_chunks"`
	TotalChunks     int     `json:"total_chunks"`
	ProgressPercent float64 `json:"progress_percent"`
	ArtifactRef     *string `json:"artifact_ref"`
	Error           *string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string    `json:"error"`
	Code  ErrorCode `json:"code"`
}

// APIError is a non-2xx response decoded by the client.
type APIError struct {
	StatusCode int
	Code       ErrorCode
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("transfer api: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transfer api: %s (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// UploadPath returns the resource path of a session.
func UploadPath(sessionID string) string {
	return fmt.Sprintf("%s/uploads/%s", BasePath, sessionID)
}

// ChunkPath returns the resource path of one chunk.
func ChunkPath(sessionID string, index int) string {
	return fmt.Sprintf("%s/uploads/%s/chunks/%d", BasePath, sessionID, index)
}

// FilePath returns the download path of a published artifact.
func FilePath(ref string) string {
	return fmt.Sprintf("%s/files/%s", BasePath, ref)
}
