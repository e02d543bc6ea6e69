package followupRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes on the follow_ups collection.
func (r *mongoFollowUpRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "provider_intent_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_intent"),
		},
		// support queue: open items oldest first
		{
			Keys:    bson.D{{Key: "state", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("state_created_idx"),
		},
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetName("session_idx"),
		},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create follow-up indexes: %w", err)
	}
	return nil
}
