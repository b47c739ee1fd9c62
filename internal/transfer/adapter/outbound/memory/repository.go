package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
)

// SessionRepository keeps sessions in process memory. A single mutex gives
// every Update single-writer semantics.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

var _ port.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*domain.Session)}
}

func (r *SessionRepository) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *SessionRepository) Get(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s.Clone(), nil
}

func (r *SessionRepository) Update(_ context.Context, id string, fn port.UpdateFunc) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	r.sessions[id] = next
	return next.Clone(), nil
}

func (r *SessionRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[id]
	return ok, nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

func (r *SessionRepository) List(_ context.Context, filter port.SessionFilter) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, s := range r.sessions {
		if filter.Match(s) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
