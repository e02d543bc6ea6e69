package followup

import (
	"context"
	"errors"
	"testing"

	followupRepo "daypass/database/repository/followup"
	"daypass/models"
	"daypass/services/tasks"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeQueue struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	q.opts = append(q.opts, opts)
	return &asynq.TaskInfo{ID: "t-1"}, nil
}

type fakeRepo struct {
	followupRepo.FollowUpRepository
	saved    []models.FollowUp
	updated  map[string]models.FollowUpState
	upsertID string
	existing *models.FollowUp
}

func (r *fakeRepo) GetByIntent(_ context.Context, id string) (*models.FollowUp, error) {
	if r.existing == nil || r.existing.ProviderIntentID != id {
		return nil, followupRepo.ErrNotFound
	}
	f := *r.existing
	return &f, nil
}

func (r *fakeRepo) Upsert(_ context.Context, f models.FollowUp) (string, error) {
	r.saved = append(r.saved, f)
	return r.upsertID, nil
}

func (r *fakeRepo) UpdateState(_ context.Context, id string, state models.FollowUpState, _ string) error {
	if r.updated == nil {
		r.updated = map[string]models.FollowUpState{}
	}
	r.updated[id] = state
	return nil
}

type fakeVerifier struct {
	status string
	err    error
}

func (v fakeVerifier) Status(context.Context, string) (string, error) { return v.status, v.err }

func TestEnqueueBuildsReconcileTask(t *testing.T) {
	q := &fakeQueue{}
	e := NewEnqueuer(q, zap.NewNop())

	err := e.Enqueue(context.Background(), models.FollowUp{SessionID: "s-1", ProviderIntentID: "pi_1", Amount: decimal.NewFromInt(88)})
	require.NoError(t, err)
	require.Len(t, q.tasks, 1)
	assert.Equal(t, tasks.TypeReconcileBooking, q.tasks[0].Type())

	f, err := tasks.ParseReconcileTask(q.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, "pi_1", f.ProviderIntentID)
	assert.True(t, f.Amount.Equal(decimal.NewFromInt(88)))
	assert.NotEmpty(t, q.opts[0])
}

func TestEnqueueTreatsDuplicateAsQueued(t *testing.T) {
	e := NewEnqueuer(&fakeQueue{err: asynq.ErrTaskIDConflict}, zap.NewNop())
	assert.NoError(t, e.Enqueue(context.Background(), models.FollowUp{ProviderIntentID: "pi_1"}))

	e = NewEnqueuer(&fakeQueue{err: errors.New("redis down")}, zap.NewNop())
	assert.Error(t, e.Enqueue(context.Background(), models.FollowUp{ProviderIntentID: "pi_1"}))
}

func TestReconcileMapsProviderStatus(t *testing.T) {
	tests := []struct {
		status string
		state  models.FollowUpState
	}{
		{"succeeded", models.FollowUpPaymentCaptured},
		{"canceled", models.FollowUpPaymentNotCaptured},
		{"requires_payment_method", models.FollowUpPaymentNotCaptured},
		{"processing", models.FollowUpOpen},
	}
	for _, tt := range tests {
		repo := &fakeRepo{upsertID: "f-1"}
		r := NewReconciler(repo, fakeVerifier{status: tt.status}, zap.NewNop())

		require.NoError(t, r.Reconcile(context.Background(), models.FollowUp{ProviderIntentID: "pi_1"}))
		require.Len(t, repo.saved, 1)
		assert.Equal(t, tt.state, repo.saved[0].State, tt.status)
		assert.Equal(t, tt.status, repo.saved[0].ProviderStatus)
		assert.False(t, repo.saved[0].CreatedAt.IsZero())
	}
}

func TestReconcileWithoutVerifierStaysOpen(t *testing.T) {
	repo := &fakeRepo{}
	r := NewReconciler(repo, nil, zap.NewNop())

	require.NoError(t, r.Reconcile(context.Background(), models.FollowUp{ProviderIntentID: "pi_1"}))
	assert.Equal(t, models.FollowUpOpen, repo.saved[0].State)
}

func TestReconcileRetriesOnProviderError(t *testing.T) {
	repo := &fakeRepo{}
	r := NewReconciler(repo, fakeVerifier{err: errors.New("timeout")}, zap.NewNop())

	assert.Error(t, r.Reconcile(context.Background(), models.FollowUp{ProviderIntentID: "pi_1"}))
	assert.Empty(t, repo.saved)
}

func TestRedeliveredTaskKeepsSupportDecision(t *testing.T) {
	repo := &fakeRepo{existing: &models.FollowUp{
		ID:               "f-1",
		ProviderIntentID: "pi_1",
		State:            models.FollowUpPaymentNotCaptured,
	}}
	r := NewReconciler(repo, fakeVerifier{status: "succeeded"}, zap.NewNop())

	require.NoError(t, r.Reconcile(context.Background(), models.FollowUp{ProviderIntentID: "pi_1"}))
	assert.Empty(t, repo.saved)

	repo.existing.State = models.FollowUpOpen
	require.NoError(t, r.Reconcile(context.Background(), models.FollowUp{ProviderIntentID: "pi_1"}))
	require.Len(t, repo.saved, 1)
	assert.Equal(t, models.FollowUpPaymentCaptured, repo.saved[0].State)
}

func TestResolveValidatesState(t *testing.T) {
	repo := &fakeRepo{}
	r := NewReconciler(repo, nil, zap.NewNop())

	require.NoError(t, r.Resolve(context.Background(), "f-1", models.FollowUpPaymentCaptured, "booked manually"))
	assert.Equal(t, models.FollowUpPaymentCaptured, repo.updated["f-1"])
	assert.ErrorIs(t, r.Resolve(context.Background(), "f-1", "lost", ""), ErrUnknownState)
}

func TestDocumentAmountConversion(t *testing.T) {
	f := followupRepo.ToDocument(models.FollowUp{Amount: decimal.RequireFromString("122.5")})
	assert.Equal(t, int64(12250), f.AmountMinor)
	back := followupRepo.FromDocument(models.FollowUp{AmountMinor: 751})
	assert.Equal(t, "7.51", back.Amount.StringFixed(2))
}
