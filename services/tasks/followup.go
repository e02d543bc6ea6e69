package tasks

import (
	"encoding/json"
	"time"

	"daypass/models"

	"github.com/hibiken/asynq"
)

const (
	TypeReconcileBooking = "followup:ambiguous_booking"
	QueueFollowUps       = "followups"
)

// NewReconcileTask wraps an ambiguous booking for the follow-up worker. The
// task id is the payment reference, so one payment is queued at most once.
func NewReconcileTask(f models.FollowUp) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeReconcileBooking, b)
	opts := []asynq.Option{
		asynq.Queue(QueueFollowUps),
		asynq.MaxRetry(10),
		asynq.Timeout(30 * time.Second),
		asynq.Retention(7 * 24 * time.Hour),
	}
	if f.ProviderIntentID != "" {
		opts = append(opts, asynq.TaskID("followup:"+f.ProviderIntentID))
	}
	return task, opts, nil
}

// ParseReconcileTask decodes the payload written by NewReconcileTask.
func ParseReconcileTask(t *asynq.Task) (models.FollowUp, error) {
	var f models.FollowUp
	err := json.Unmarshal(t.Payload(), &f)
	return f, err
}
