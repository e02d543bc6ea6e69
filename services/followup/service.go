package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	followupRepo "daypass/database/repository/followup"
	"daypass/models"
	"daypass/services/payment"
	"daypass/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ErrUnknownState is returned for a state outside the follow-up lifecycle.
var ErrUnknownState = errors.New("followup: unknown state")

type taskQueue interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer hands ambiguous bookings to the follow-up worker.
type Enqueuer struct {
	queue  taskQueue
	logger *zap.Logger
}

func NewEnqueuer(queue taskQueue, logger *zap.Logger) *Enqueuer {
	return &Enqueuer{queue: queue, logger: logger}
}

// Enqueue is idempotent per payment reference.
func (e *Enqueuer) Enqueue(ctx context.Context, f models.FollowUp) error {
	task, opts, err := tasks.NewReconcileTask(f)
	if err != nil {
		return fmt.Errorf("build follow-up task: %w", err)
	}
	info, err := e.queue.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		e.logger.Info("follow-up already queued", zap.String("intent", f.ProviderIntentID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue follow-up: %w", err)
	}
	e.logger.Info("follow-up queued", zap.String("intent", f.ProviderIntentID), zap.String("task", info.ID))
	return nil
}

// Reconciler asks the payment provider whether an ambiguous booking was paid
// and files the result for support staff.
type Reconciler struct {
	repo     followupRepo.FollowUpRepository
	verifier payment.Verifier
	logger   *zap.Logger
}

// NewReconciler builds a reconciler. Without a verifier every follow-up
// stays open for manual review.
func NewReconciler(repo followupRepo.FollowUpRepository, verifier payment.Verifier, logger *zap.Logger) *Reconciler {
	return &Reconciler{repo: repo, verifier: verifier, logger: logger}
}

// Reconcile stores the follow-up with the provider's view of the payment.
// A follow-up support already decided is left alone. A provider error is
// returned so the task is retried.
func (r *Reconciler) Reconcile(ctx context.Context, f models.FollowUp) error {
	log := r.logger.With(zap.String("session", f.SessionID), zap.String("intent", f.ProviderIntentID))
	existing, err := r.repo.GetByIntent(ctx, f.ProviderIntentID)
	switch {
	case errors.Is(err, followupRepo.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load follow-up: %w", err)
	case existing.State != models.FollowUpOpen:
		log.Info("follow-up already resolved",
			zap.String("followUp", existing.ID), zap.String("state", string(existing.State)))
		return nil
	}

	f.State = models.FollowUpOpen
	if r.verifier != nil && f.ProviderIntentID != "" {
		status, err := r.verifier.Status(ctx, f.ProviderIntentID)
		if err != nil {
			log.Warn("payment status lookup failed", zap.Error(err))
			return fmt.Errorf("payment status %s: %w", f.ProviderIntentID, err)
		}
		f.ProviderStatus = status
		f.State = StateFor(status)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	id, err := r.repo.Upsert(ctx, f)
	if err != nil {
		return fmt.Errorf("store follow-up: %w", err)
	}
	log.Warn("booking follow-up filed",
		zap.String("followUp", id),
		zap.String("state", string(f.State)),
		zap.String("providerStatus", f.ProviderStatus),
		zap.String("amount", f.Amount.StringFixed(2)),
		zap.String("reason", f.Reason))
	return nil
}

// List returns follow-ups in one state for the support endpoint.
func (r *Reconciler) List(ctx context.Context, state models.FollowUpState, limit int64) ([]models.FollowUp, error) {
	return r.repo.ListByState(ctx, state, limit)
}

// Resolve records a support decision on a follow-up.
func (r *Reconciler) Resolve(ctx context.Context, id string, state models.FollowUpState, note string) error {
	switch state {
	case models.FollowUpOpen, models.FollowUpPaymentCaptured, models.FollowUpPaymentNotCaptured:
	default:
		return fmt.Errorf("%w %q", ErrUnknownState, state)
	}
	return r.repo.UpdateState(ctx, id, state, note)
}

// StateFor maps a provider payment status to a follow-up state.
func StateFor(status string) models.FollowUpState {
	switch status {
	case "succeeded":
		return models.FollowUpPaymentCaptured
	case "canceled", "requires_payment_method":
		return models.FollowUpPaymentNotCaptured
	default:
		return models.FollowUpOpen
	}
}
