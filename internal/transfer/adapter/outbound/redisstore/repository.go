// Package redisstore persists transfer sessions in Redis.
//
// Keys, under a configurable prefix:
//
//	<prefix>:session:<id>         JSON session record
//	<prefix>:session:<id>:chunks  SET of received chunk indices
//	<prefix>:sessions             ZSET of session ids scored by creation time
//
// Updates run as optimistic WATCH/MULTI transactions over the record and its
// chunk set.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 32

// SessionRepository implements port.SessionRepository on Redis.
type SessionRepository struct {
	client redis.UniversalClient
	prefix string
}

var _ port.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(client redis.UniversalClient, prefix string) *SessionRepository {
	if prefix == "" {
		prefix = "transfer"
	}
	return &SessionRepository{client: client, prefix: prefix}
}

func (r *SessionRepository) sessionKey(id string) string {
	return r.prefix + ":session:" + id
}

func (r *SessionRepository) chunksKey(id string) string {
	return r.prefix + ":session:" + id + ":chunks"
}

func (r *SessionRepository) indexKey() string {
	return r.prefix + ":sessions"
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	data, err := encodeSession(s)
	if err != nil {
		return err
	}

	key := r.sessionKey(s.ID)
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("session %s already exists", s.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Del(ctx, r.chunksKey(s.ID))
			if members := chunkMembers(s.Received); len(members) > 0 {
				pipe.SAdd(ctx, r.chunksKey(s.ID), members...)
			}
			pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(s.CreatedAt.UnixMilli()), Member: s.ID})
			return nil
		})
		return err
	}, key)
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	return r.load(ctx, r.client, id)
}

// load reads the record and chunk set through c, which is either the client or a watching Tx.
func (r *SessionRepository) load(ctx context.Context, c redis.Cmdable, id string) (*domain.Session, error) {
	data, err := c.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	members, err := c.SMembers(ctx, r.chunksKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get chunks of session %s: %w", id, err)
	}
	return decodeSession(data, members)
}

func (r *SessionRepository) Update(ctx context.Context, id string, fn port.UpdateFunc) (*domain.Session, error) {
	key := r.sessionKey(id)
	chunks := r.chunksKey(id)

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		var result *domain.Session
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := r.load(ctx, tx, id)
			if err != nil {
				return err
			}

			next := cur.Clone()
			if err := fn(next); err != nil {
				return err
			}
			data, err := encodeSession(next)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				if next.Received.Len() < cur.Received.Len() {
					pipe.Del(ctx, chunks)
					if members := chunkMembers(next.Received); len(members) > 0 {
						pipe.SAdd(ctx, chunks, members...)
					}
				} else if added := addedIndices(cur.Received, next.Received); len(added) > 0 {
					pipe.SAdd(ctx, chunks, added...)
				}
				return nil
			})
			if err == nil {
				result = next
			}
			return err
		}, key, chunks)

		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	logger.Warnw("Session update kept conflicting", "session_id", id, "attempts", maxTxRetries)
	return nil, fmt.Errorf("%w: %s", domain.ErrConcurrentModification, id)
}

func (r *SessionRepository) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("exists session %s: %w", id, err)
	}
	return n > 0, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(id), r.chunksKey(id))
		pipe.ZRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (r *SessionRepository) List(ctx context.Context, filter port.SessionFilter) ([]string, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var out []string
	for _, id := range ids {
		s, err := r.load(ctx, r.client, id)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				// Index entry outlived its record.
				r.client.ZRem(ctx, r.indexKey(), id)
				continue
			}
			logger.Warnw("Skipping unreadable session", "session_id", id, "error", err.Error())
			continue
		}
		if filter.Match(s) {
			out = append(out, id)
		}
	}
	return out, nil
}
