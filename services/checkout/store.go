package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"daypass/models"

	"github.com/go-redis/redis/v8"
)

const sessionPrefix = "checkout:session:"

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("checkout: session not found")

// Store persists checkout sessions between requests.
type Store interface {
	Get(ctx context.Context, id string) (*models.CheckoutSession, error)
	Save(ctx context.Context, s *models.CheckoutSession) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps each session as JSON under a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.CheckoutSession, error) {
	data, err := s.client.Get(ctx, sessionPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess models.CheckoutSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *models.CheckoutSession) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionPrefix+sess.SessionID, b, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionPrefix+id).Err()
}

// MemoryStore is the single-process store used when redis is not configured.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, sessions: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.CheckoutSession, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok && s.ttl > 0 && time.Now().After(e.expires) {
		delete(s.sessions, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	var sess models.CheckoutSession
	if err := json.Unmarshal(e.data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *MemoryStore) Save(_ context.Context, sess *models.CheckoutSession) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = memoryEntry{data: b, expires: time.Now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
