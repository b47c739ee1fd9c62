package domain

import "time"

// Artifact is the published, immutable result of a completed session.
type Artifact struct {
	Ref         string    `json:"ref"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"created_at"`
}
