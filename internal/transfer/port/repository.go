package port

import (
	"context"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
)

// UpdateFunc mutates a session inside an atomic update. Returning an error
// aborts the update and leaves the stored record untouched.
type UpdateFunc func(s *domain.Session) error

// SessionFilter selects sessions for the reaper. Zero fields do not filter.
type SessionFilter struct {
	Statuses       []domain.Status
	ExpiresBefore  time.Time
	UpdatedBefore  time.Time
	FinishedBefore time.Time
}

// Match reports whether s satisfies every non-zero criterion of f.
func (f SessionFilter) Match(s *domain.Session) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if s.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.ExpiresBefore.IsZero() && !s.ExpiresAt.Before(f.ExpiresBefore) {
		return false
	}
	if !f.UpdatedBefore.IsZero() && !s.UpdatedAt.Before(f.UpdatedBefore) {
		return false
	}
	if !f.FinishedBefore.IsZero() {
		finished, ok := s.FinishedAt()
		if !ok || !finished.Before(f.FinishedBefore) {
			return false
		}
	}
	return true
}

// SessionRepository persists transfer sessions.
type SessionRepository interface {
	// Create stores a new session. It fails if the id already exists.
	Create(ctx context.Context, s *domain.Session) error

	// Get returns a copy of the session or domain.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Update applies fn atomically: no other update of the same session can
	// interleave between the read fn sees and the write of its result.
	Update(ctx context.Context, id string, fn UpdateFunc) (*domain.Session, error)

	// Exists reports whether a session record is present in any state.
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes the session record and its received-chunk set.
	Delete(ctx context.Context, id string) error

	// List returns the ids of sessions matching the filter.
	List(ctx context.Context, filter SessionFilter) ([]string, error)
}
