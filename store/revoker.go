package store

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryRevoker remembers revoked session ids in-process until they expire (single instance only).
type MemoryRevoker struct {
	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{sessions: make(map[string]time.Time)}
}

// Revoke marks sessionID revoked for ttl. Expired entries are dropped on the way.
func (r *MemoryRevoker) Revoke(_ context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := time.Now()
	r.mu.Lock()
	for id, expiry := range r.sessions {
		if now.After(expiry) {
			delete(r.sessions, id)
		}
	}
	r.sessions[sessionID] = now.Add(ttl)
	r.mu.Unlock()
	return nil
}

// Len reports how many revocations are held.
func (r *MemoryRevoker) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expiry, ok := r.sessions[sessionID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(r.sessions, sessionID)
		return false, nil
	}
	return true, nil
}

// RedisRevoker stores revoked session ids in Redis with a TTL so every instance sees a logout.
type RedisRevoker struct {
	client *redis.Client
	prefix string
}

func NewRedisRevoker(addr, password string) *RedisRevoker {
	return &RedisRevoker{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: "storefront:revoked:",
	}
}

func (r *RedisRevoker) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.client.Set(ctx, r.prefix+sessionID, "1", ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	n, err := r.client.Exists(ctx, r.prefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisRevoker) Close() error {
	return r.client.Close()
}
