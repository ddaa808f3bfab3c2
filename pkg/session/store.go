package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/platinummonkey/lockbox/pkg/identity"
)

// ErrSessionNotFound indicates the session does not exist or has
// expired.
var ErrSessionNotFound = errors.New("session not found")

// Store persists sessions.
type Store interface {
	// Create stores the identity under a fresh session ID and returns
	// the ID.
	Create(ctx context.Context, ident identity.Identity) (string, error)

	// Get returns the identity for the session ID.
	Get(ctx context.Context, sessionID string) (identity.Identity, error)

	// Touch extends the session's TTL.
	Touch(ctx context.Context, sessionID string) error

	// Delete removes the session. Deleting an absent session is a no-op
	// success.
	Delete(ctx context.Context, sessionID string) error

	// DeleteByEmail removes every session belonging to the principal.
	// Used when an account is deactivated.
	DeleteByEmail(ctx context.Context, email string) (int64, error)
}

// RedisStore implements Store over Redis. Keys are "session:<uuid>"
// with the configured TTL; expiry is Redis's job, not a janitor's.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a session store with the given TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// Create stores the identity under a fresh session ID.
func (s *RedisStore) Create(ctx context.Context, ident identity.Identity) (string, error) {
	data, err := identity.Serialize(ident)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	sessionID := uuid.New().String()
	if err := s.client.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return sessionID, nil
}

// Get returns the identity for the session ID.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (identity.Identity, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return identity.Identity{}, ErrSessionNotFound
	}
	if err != nil {
		return identity.Identity{}, fmt.Errorf("failed to get session: %w", err)
	}

	ident, err := identity.Deserialize([]byte(data))
	if err != nil {
		// Corrupt payloads are dropped rather than served. Reporting
		// the session as missing sends the caller back through login
		// instead of surfacing a server error.
		s.client.Del(ctx, sessionKey(sessionID))
		return identity.Identity{}, ErrSessionNotFound
	}
	return ident, nil
}

// Touch extends the session's TTL to a full window.
func (s *RedisStore) Touch(ctx context.Context, sessionID string) error {
	ok, err := s.client.Expire(ctx, sessionKey(sessionID), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes the session.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByEmail removes every session belonging to the principal. Scans
// the session keyspace, so it is for administrative paths, not the
// request hot path.
func (s *RedisStore) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	var removed int64

	iter := s.client.Scan(ctx, 0, sessionKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("failed to scan sessions: %w", err)
		}

		ident, err := identity.Deserialize([]byte(data))
		if err != nil || ident.Email != email {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete session %s: %w", key, err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("session scan failed: %w", err)
	}
	return removed, nil
}
