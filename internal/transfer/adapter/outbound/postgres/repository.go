package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, owner_id, file_name, content_type, total_size, chunk_size, total_chunks, status,
	created_at, updated_at, expires_at, completed_at, failed_at, cancelled_at, expired_at, last_error, artifact_ref`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SessionRepository implements port.SessionRepository on PostgreSQL. Updates
// lock the session row with SELECT ... FOR UPDATE.
type SessionRepository struct {
	pool *pgxpool.Pool
}

var _ port.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository constructs a repository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO transfer_sessions (`+sessionColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		`, s.ID, s.OwnerID, s.FileName, s.ContentType, s.TotalSize, s.ChunkSize, s.TotalChunks, string(s.Status),
			s.CreatedAt, s.UpdatedAt, s.ExpiresAt, s.CompletedAt, s.FailedAt, s.CancelledAt, s.ExpiredAt, s.LastError, s.ArtifactRef)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("session %s already exists", s.ID)
			}
			return fmt.Errorf("insert session: %w", err)
		}
		return insertChunks(ctx, tx, s.ID, s.Received.Sorted())
	})
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	return loadSession(ctx, r.pool, id, false)
}

func (r *SessionRepository) Update(ctx context.Context, id string, fn port.UpdateFunc) (*domain.Session, error) {
	var result *domain.Session
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cur, err := loadSession(ctx, tx, id, true)
		if err != nil {
			return err
		}

		next := cur.Clone()
		if err := fn(next); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE transfer_sessions SET
				owner_id=$2, file_name=$3, content_type=$4, total_size=$5, chunk_size=$6, total_chunks=$7, status=$8,
				updated_at=$9, expires_at=$10, completed_at=$11, failed_at=$12, cancelled_at=$13, expired_at=$14,
				last_error=$15, artifact_ref=$16
			WHERE id=$1
		`, id, next.OwnerID, next.FileName, next.ContentType, next.TotalSize, next.ChunkSize, next.TotalChunks, string(next.Status),
			next.UpdatedAt, next.ExpiresAt, next.CompletedAt, next.FailedAt, next.CancelledAt, next.ExpiredAt, next.LastError, next.ArtifactRef)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}

		var added, removed []int
		for idx := range next.Received {
			if !cur.Received.Has(idx) {
				added = append(added, idx)
			}
		}
		for idx := range cur.Received {
			if !next.Received.Has(idx) {
				removed = append(removed, idx)
			}
		}
		if err := insertChunks(ctx, tx, id, added); err != nil {
			return err
		}
		if len(removed) > 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM transfer_session_chunks WHERE session_id=$1 AND chunk_index = ANY($2)`, id, toInt32(removed)); err != nil {
				return fmt.Errorf("delete session chunks: %w", err)
			}
		}

		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SessionRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transfer_sessions WHERE id=$1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists session: %w", err)
	}
	return exists, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM transfer_sessions WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) List(ctx context.Context, filter port.SessionFilter) ([]string, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if !filter.ExpiresBefore.IsZero() {
		where = append(where, "expires_at < "+arg(filter.ExpiresBefore))
	}
	if !filter.UpdatedBefore.IsZero() {
		where = append(where, "updated_at < "+arg(filter.UpdatedBefore))
	}
	if !filter.FinishedBefore.IsZero() {
		where = append(where, "COALESCE(completed_at, failed_at, cancelled_at, expired_at) < "+arg(filter.FinishedBefore))
	}

	query := `SELECT id FROM transfer_sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}

// loadSession reads a session and its received indices, optionally locking the row.
func loadSession(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM transfer_sessions WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		s      domain.Session
		status string
	)
	err := q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.OwnerID, &s.FileName, &s.ContentType, &s.TotalSize, &s.ChunkSize, &s.TotalChunks, &status,
		&s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt, &s.CompletedAt, &s.FailedAt, &s.CancelledAt, &s.ExpiredAt, &s.LastError, &s.ArtifactRef,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	if s.Status, err = domain.ParseStatus(status); err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT chunk_index FROM transfer_session_chunks WHERE session_id=$1`, id)
	if err != nil {
		return nil, fmt.Errorf("select session chunks: %w", err)
	}
	indices, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, fmt.Errorf("select session chunks: %w", err)
	}
	s.Received = domain.NewChunkSet()
	for _, idx := range indices {
		s.Received.Add(int(idx))
	}

	normalizeTimes(&s)
	return &s, nil
}

func insertChunks(ctx context.Context, q querier, id string, indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO transfer_session_chunks (session_id, chunk_index)
		SELECT $1, unnest($2::int[])
		ON CONFLICT (session_id, chunk_index) DO UPDATE SET received_at = now()
	`, id, toInt32(indices))
	if err != nil {
		return fmt.Errorf("insert session chunks: %w", err)
	}
	return nil
}

func toInt32(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}

// normalizeTimes reports timestamps in UTC regardless of the connection time zone.
func normalizeTimes(s *domain.Session) {
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	for _, ts := range []**time.Time{&s.CompletedAt, &s.FailedAt, &s.CancelledAt, &s.ExpiredAt} {
		if *ts != nil {
			v := (**ts).UTC()
			*ts = &v
		}
	}
}
