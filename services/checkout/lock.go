package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const lockPrefix = "checkout:lock:"

// ErrSessionBusy is returned when another request holds the session.
var ErrSessionBusy = errors.New("checkout: session is busy")

// Locker serialises requests on one session. Lock never waits: a held
// session fails fast with ErrSessionBusy.
type Locker interface {
	Lock(ctx context.Context, id string) (unlock func(), err error)
}

// RedisLocker uses SETNX with a TTL so a crashed holder cannot keep the
// session forever.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisLocker) Lock(ctx context.Context, id string) (func(), error) {
	key := lockPrefix + id
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionBusy
	}
	return func() {
		releaseScript.Run(context.Background(), l.client, []string{key}, token)
	}, nil
}

// MemoryLocker is the in-process equivalent of RedisLocker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Lock(_ context.Context, id string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[id]; ok {
		return nil, ErrSessionBusy
	}
	l.held[id] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.held, id)
		l.mu.Unlock()
	}, nil
}
