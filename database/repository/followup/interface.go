package followupRepo

import (
	"context"
	"errors"

	"daypass/models"

	"go.mongodb.org/mongo-driver/mongo"
)

var ErrNotFound = errors.New("follow-up not found")

// FollowUpRepository stores ambiguous bookings for support staff. Records are
// keyed by provider intent id so a redelivered task updates, not duplicates.
type FollowUpRepository interface {
	Upsert(ctx context.Context, f models.FollowUp) (string, error)
	GetByIntent(ctx context.Context, providerIntentID string) (*models.FollowUp, error)
	ListByState(ctx context.Context, state models.FollowUpState, limit int64) ([]models.FollowUp, error)
	UpdateState(ctx context.Context, id string, state models.FollowUpState, note string) error
	EnsureIndexes(ctx context.Context) error
}

type mongoFollowUpRepo struct {
	coll *mongo.Collection
}

// NewMongoFollowUpRepo binds the repository to the follow_ups collection of db.
func NewMongoFollowUpRepo(db *mongo.Database) FollowUpRepository {
	return &mongoFollowUpRepo{coll: db.Collection("follow_ups")}
}
