// Package redis persists emulator state in Redis. Records are JSON blobs
// under typed keys, with sets holding the id memberships that queries need.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store handles Redis operations for users, bookmarks and refresh sessions.
type Store struct {
	client     *redis.Client
	refreshTTL time.Duration
}

// NewStore creates a new Redis store. refreshTTL bounds the lifetime of
// refresh sessions; users and bookmarks do not expire.
func NewStore(client *redis.Client, refreshTTL time.Duration) *Store {
	return &Store{
		client:     client,
		refreshTTL: refreshTTL,
	}
}

// Ping reports whether the backing Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
