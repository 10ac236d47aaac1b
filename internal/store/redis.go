package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aurasense/companion/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix = "onboarding:session:"
	redisUserPrefix    = "onboarding:user:"
)

// RedisStore implements Store on Redis. Session keys carry a native TTL so
// abandoned sessions disappear without a sweep; the sweep pass only flips
// idle non-terminal sessions to aborted so callers observe the expiry.
type RedisStore struct {
	client *redis.Client
	keyTTL time.Duration
}

// NewRedis creates a Redis-backed session store. keyTTL bounds the lifetime
// of every session key and should exceed the session inactivity TTL.
func NewRedis(addr string, keyTTL time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if keyTTL <= 0 {
		keyTTL = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisStore{client: client, keyTTL: keyTTL}, nil
}

// Ping verifies Redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Load retrieves a session by ID.
func (r *RedisStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	payload, err := r.client.Get(ctx, redisSessionPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Save persists a session. Optimistic concurrency uses WATCH on the session
// key: if another writer lands between read and write the transaction fails
// and ErrVersionConflict is returned.
func (r *RedisStore) Save(ctx context.Context, session *domain.Session) error {
	key := redisSessionPrefix + session.ID
	userKey := redisUserPrefix + session.UserID

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if session.Version != 0 {
				return ErrVersionConflict
			}
		case err != nil:
			return fmt.Errorf("read current session: %w", err)
		default:
			var stored domain.Session
			if err := json.Unmarshal([]byte(current), &stored); err != nil {
				return fmt.Errorf("unmarshal stored session: %w", err)
			}
			if stored.Version != session.Version {
				return ErrVersionConflict
			}
		}

		next := *session
		next.Version++
		payload, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.keyTTL)
			if next.State.IsTerminal() {
				pipe.Del(ctx, userKey)
			} else {
				pipe.Set(ctx, userKey, next.ID, r.keyTTL)
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	if err != nil {
		return err
	}
	session.Version++
	return nil
}

// Delete removes a session and its user index entry.
func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	session, err := r.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisSessionPrefix+sessionID)
	pipe.Del(ctx, redisUserPrefix+session.UserID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ActiveForUser returns the user's non-terminal session, or nil.
func (r *RedisStore) ActiveForUser(ctx context.Context, userID string) (*domain.Session, error) {
	sessionID, err := r.client.Get(ctx, redisUserPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user index: %w", err)
	}

	session, err := r.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		// Index outlived the session key; clean it up.
		if delErr := r.client.Del(ctx, redisUserPrefix+userID).Err(); delErr != nil {
			slog.Debug("failed to drop stale user index", "user_id", userID, "error", delErr)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if session.State.IsTerminal() {
		return nil, nil
	}
	return session, nil
}

// SweepExpired flips idle non-terminal sessions to aborted. Deletion is left
// to the native key TTL, so the deleted count is always zero here.
func (r *RedisStore) SweepExpired(ctx context.Context, ttl, retention time.Duration) (int64, int64, error) {
	if ttl <= 0 {
		return 0, 0, nil
	}

	now := time.Now()
	var aborted int64

	iter := r.client.Scan(ctx, 0, redisSessionPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		payload, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return aborted, 0, fmt.Errorf("get session during sweep: %w", err)
		}

		var session domain.Session
		if err := json.Unmarshal([]byte(payload), &session); err != nil {
			slog.Warn("skipping undecodable session during sweep", "key", key, "error", err)
			continue
		}
		if session.State.IsTerminal() || !session.Expired(ttl, now) {
			continue
		}

		session.State = domain.StateAborted
		session.UpdatedAt = now
		if err := r.Save(ctx, &session); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue // someone else touched it; next sweep will retry
			}
			return aborted, 0, err
		}
		aborted++
	}
	if err := iter.Err(); err != nil {
		return aborted, 0, fmt.Errorf("scan sessions: %w", err)
	}

	return aborted, 0, nil
}

// Compile-time interface check.
var _ Store = (*RedisStore)(nil)
