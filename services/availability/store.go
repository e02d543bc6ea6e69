package availability

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"daypass/models"

	"github.com/go-redis/redis/v8"
)

// SnapshotStore keeps availability per scope (one checkout session) and date.
type SnapshotStore interface {
	Put(ctx context.Context, scope, date string, seats models.SlotSeats) error
	Get(ctx context.Context, scope, date string) (models.SlotSeats, bool, error)
	Delete(ctx context.Context, scope, date string) error
}

// MemoryStore is a process-local SnapshotStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]models.AvailabilitySnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]models.AvailabilitySnapshot)}
}

func (s *MemoryStore) Put(_ context.Context, scope, date string, seats models.SlotSeats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.data[scope]
	if !ok {
		snap = make(models.AvailabilitySnapshot)
		s.data[scope] = snap
	}
	snap[date] = copySeats(seats)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, scope, date string) (models.SlotSeats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seats, ok := s.data[scope][date]
	if !ok {
		return nil, false, nil
	}
	return copySeats(seats), true, nil
}

func (s *MemoryStore) Delete(_ context.Context, scope, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[scope], date)
	return nil
}

const availabilityPrefix = "checkout:avail:"

// RedisStore keeps each date's seats as a JSON value that expires with the session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(scope, date string) string {
	return availabilityPrefix + scope + ":" + date
}

func (s *RedisStore) Put(ctx context.Context, scope, date string, seats models.SlotSeats) error {
	b, err := json.Marshal(seats)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(scope, date), b, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, scope, date string) (models.SlotSeats, bool, error) {
	data, err := s.client.Get(ctx, s.key(scope, date)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var seats models.SlotSeats
	if err := json.Unmarshal([]byte(data), &seats); err != nil {
		return nil, false, err
	}
	return seats, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, scope, date string) error {
	return s.client.Del(ctx, s.key(scope, date)).Err()
}

func copySeats(in models.SlotSeats) models.SlotSeats {
	out := make(models.SlotSeats, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
