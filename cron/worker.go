package cron

import (
	"context"
	"fmt"
	"time"

	"daypass/models"
	"daypass/services/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// FollowUpHandler files one ambiguous booking.
type FollowUpHandler interface {
	Reconcile(ctx context.Context, f models.FollowUp) error
}

// Worker consumes follow-up tasks in the background.
type Worker struct {
	srv     *asynq.Server
	mux     *asynq.ServeMux
	opts    asynq.RedisClientOpt
	logger  *zap.Logger
	stopMon context.CancelFunc
}

func NewFollowUpWorker(opts asynq.RedisClientOpt, handler FollowUpHandler, logger *zap.Logger) *Worker {
	srv := asynq.NewServer(
		opts,
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				tasks.QueueFollowUps: 1,
			},
			RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
				return time.Duration(n*n) * 30 * time.Second
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeReconcileBooking, handleFollowUpTask(handler, logger))

	return &Worker{srv: srv, mux: mux, opts: opts, logger: logger}
}

// Start runs the worker in the background, retrying startup with backoff.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.stopMon = cancel
	go monitorRedisConnection(ctx, w.opts, w.logger)

	go func() {
		w.logger.Info("starting follow-up worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := w.srv.Start(w.mux)
			if err == nil {
				return
			}
			w.logger.Error("follow-up worker failed to start",
				zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
			if attempts == maxAttempts {
				w.logger.Error("follow-up worker gave up; ambiguous bookings stay queued in redis")
				return
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()
}

// Shutdown stops fetching tasks and waits for running ones.
func (w *Worker) Shutdown() {
	if w.stopMon != nil {
		w.stopMon()
	}
	w.srv.Shutdown()
}

func handleFollowUpTask(handler FollowUpHandler, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		f, err := tasks.ParseReconcileTask(task)
		if err != nil {
			logger.Error("invalid follow-up payload", zap.Error(err))
			return fmt.Errorf("decode follow-up: %v: %w", err, asynq.SkipRetry)
		}
		logger.Info("reconciling ambiguous booking",
			zap.String("session", f.SessionID), zap.String("intent", f.ProviderIntentID))
		return handler.Reconcile(ctx, f)
	}
}

// monitorRedisConnection pings the queue's redis until ctx is cancelled.
func monitorRedisConnection(ctx context.Context, opts asynq.RedisClientOpt, logger *zap.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil && ctx.Err() == nil {
				logger.Warn("follow-up queue redis unreachable", zap.Error(err))
			}
		}
	}
}
