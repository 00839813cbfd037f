package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SentStore remembers which reminders went out so a rescan does not send
// them twice.
type SentStore interface {
	// MarkSent records key and reports whether it was new.
	MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Forget removes key so a failed delivery can be retried.
	Forget(ctx context.Context, key string) error
}

type MemSentStore struct {
	mu   sync.Mutex
	now  func() time.Time
	keys map[string]time.Time
}

func NewMemSentStore() *MemSentStore {
	return &MemSentStore{now: time.Now, keys: make(map[string]time.Time)}
}

func (s *MemSentStore) MarkSent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.keys {
		if now.After(exp) {
			delete(s.keys, k)
		}
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = now.Add(ttl)
	return true, nil
}

func (s *MemSentStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

// RedisSentStore shares dedupe state between instances through SETNX.
type RedisSentStore struct {
	client *goredis.Client
	prefix string
}

// NewRedisSentStore connects to url (redis://host:port/db) and pings it.
func NewRedisSentStore(ctx context.Context, url string) (*RedisSentStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisSentStore{client: client, prefix: "dentdesk:reminder:"}, nil
}

func (s *RedisSentStore) MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *RedisSentStore) Forget(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

func (s *RedisSentStore) Close() error {
	return s.client.Close()
}
