package queue

import (
	"encoding/json"
	"fmt"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
)

const (
	// AssembleTask is scheduled once per session when its last chunk arrives.
	AssembleTask = "transfer:assemble"

	// ArtifactReadyTask tells downstream consumers an artifact is published.
	ArtifactReadyTask = "artifact:ready"
)

// AssemblePayload identifies the session to assemble.
type AssemblePayload struct {
	SessionID string `json:"session_id"`
}

// ArtifactReadyPayload carries the published artifact reference.
type ArtifactReadyPayload struct {
	Artifact domain.Artifact `json:"artifact"`
}

// DecodeAssemblePayload parses an assembly task payload.
func DecodeAssemblePayload(data []byte) (AssemblePayload, error) {
	var p AssemblePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode assemble payload: %w", err)
	}
	if p.SessionID == "" {
		return p, fmt.Errorf("decode assemble payload: empty session id")
	}
	return p, nil
}

// DecodeArtifactReadyPayload parses an artifact-ready task payload.
func DecodeArtifactReadyPayload(data []byte) (ArtifactReadyPayload, error) {
	var p ArtifactReadyPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode artifact ready payload: %w", err)
	}
	return p, nil
}

func assembleTaskID(sessionID string) string {
	return "assemble:" + sessionID
}
