package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Mongo     *bool           `json:"mongo,omitempty"`
	Redis     map[string]bool `json:"redis"`
	CheckedAt time.Time       `json:"checkedAt"`
}

// Healthy reports whether every checked dependency answered.
func (h HealthStatus) Healthy() bool {
	if h.Mongo != nil && !*h.Mongo {
		return false
	}
	for _, ok := range h.Redis {
		if !ok {
			return false
		}
	}
	return true
}

// HealthMonitor pings the session and queue stores on an interval and keeps
// the latest result for the health endpoint.
type HealthMonitor struct {
	redisClients map[string]*redis.Client
	mongoClient  *mongo.Client
	logger       *zap.Logger

	mu      sync.RWMutex
	current HealthStatus
}

// NewHealthMonitor builds a monitor. mongoClient may be nil.
func NewHealthMonitor(redisClients map[string]*redis.Client, mongoClient *mongo.Client, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{redisClients: redisClients, mongoClient: mongoClient, logger: logger}
}

// Status returns latest stored health snapshot.
func (m *HealthMonitor) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Check pings every dependency once and stores the result.
func (m *HealthMonitor) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Redis: make(map[string]bool, len(m.redisClients))}
	for name, client := range m.redisClients {
		err := client.Ping(ctx).Err()
		if err != nil {
			m.logger.Warn("Redis health check failed", zap.String("store", name), zap.Error(err))
		}
		status.Redis[name] = err == nil
	}
	if m.mongoClient != nil {
		err := m.mongoClient.Ping(ctx, nil)
		if err != nil {
			m.logger.Warn("MongoDB health check failed", zap.Error(err))
		}
		ok := err == nil
		status.Mongo = &ok
	}
	status.CheckedAt = time.Now()

	m.mu.Lock()
	m.current = status
	m.mu.Unlock()
	return status
}

// Start performs periodic health checks until ctx is done.
func (m *HealthMonitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.check(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

func (m *HealthMonitor) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	m.Check(pingCtx)
}
