package subscription

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMirror writes session liveness events to Redis with a TTL matching
// the subscription window, giving other processes (dashboards, ops
// tooling) a cheap view of currently-live sessions without ever being
// consulted by the Index itself for correctness decisions.
type RedisMirror struct {
	client *redis.Client
	prefix string
}

// NewRedisMirror dials addr and verifies connectivity with a short-lived
// ping, mirroring the teacher's cache.NewRedisCache connection check.
func NewRedisMirror(addr, password string, db int) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("subscription: connecting to redis mirror: %w", err)
	}

	return &RedisMirror{client: client, prefix: "marketfeed:session:"}, nil
}

func (m *RedisMirror) key(sessionID string) string {
	return m.prefix + sessionID
}

// Touch writes (or refreshes) a liveness key expiring at expiresAt.
func (m *RedisMirror) Touch(sessionID string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.client.Set(ctx, m.key(sessionID), "1", ttl).Err(); err != nil {
		log.Printf("[Subscription] redis mirror touch failed for %s: %v", sessionID, err)
	}
}

// Remove deletes the liveness key for sessionID.
func (m *RedisMirror) Remove(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.client.Del(ctx, m.key(sessionID)).Err(); err != nil {
		log.Printf("[Subscription] redis mirror remove failed for %s: %v", sessionID, err)
	}
}

// Close releases the underlying Redis connection pool.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
