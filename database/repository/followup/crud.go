package followupRepo

import (
	"context"
	"errors"
	"time"

	"daypass/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Upsert inserts a follow-up or refreshes the provider status of an existing
// one. The first reason and creation time are kept. The state of an existing
// follow-up only moves while it is still open, so a support decision is never
// overwritten by a redelivered task.
func (r *mongoFollowUpRepo) Upsert(ctx context.Context, f models.FollowUp) (string, error) {
	f = ToDocument(f)
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}

	filter := bson.M{"provider_intent_id": f.ProviderIntentID}
	update := bson.M{
		"$set": bson.M{
			"provider_status": f.ProviderStatus,
			"updated_at":      now,
		},
		"$setOnInsert": bson.M{
			"_id":          uuid.New().String(),
			"state":        f.State,
			"session_id":   f.SessionID,
			"amount_minor": f.AmountMinor,
			"currency":     f.Currency,
			"contact":      f.Contact,
			"date":         f.Date,
			"time_slot":    f.TimeSlot,
			"reason":       f.Reason,
			"created_at":   f.CreatedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved models.FollowUp
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return "", err
	}
	if saved.State != f.State && f.State != models.FollowUpOpen {
		_, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": saved.ID, "state": models.FollowUpOpen},
			bson.M{"$set": bson.M{"state": f.State}})
		if err != nil {
			return "", err
		}
	}
	return saved.ID, nil
}

// GetByIntent returns the follow-up of one payment.
func (r *mongoFollowUpRepo) GetByIntent(ctx context.Context, providerIntentID string) (*models.FollowUp, error) {
	var f models.FollowUp
	err := r.coll.FindOne(ctx, bson.M{"provider_intent_id": providerIntentID}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f = FromDocument(f)
	return &f, nil
}

// ListByState returns follow-ups in a state, oldest first.
func (r *mongoFollowUpRepo) ListByState(ctx context.Context, state models.FollowUpState, limit int64) ([]models.FollowUp, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.coll.Find(ctx, bson.M{"state": state}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.FollowUp
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = FromDocument(out[i])
	}
	return out, nil
}

// UpdateState records a support decision.
func (r *mongoFollowUpRepo) UpdateState(ctx context.Context, id string, state models.FollowUpState, note string) error {
	set := bson.M{"state": state, "updated_at": time.Now()}
	if note != "" {
		set["note"] = note
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ToDocument stores the amount in minor units; decimals have no BSON codec.
func ToDocument(f models.FollowUp) models.FollowUp {
	f.AmountMinor = f.Amount.Shift(2).Round(0).IntPart()
	return f
}

// FromDocument restores the decimal amount.
func FromDocument(f models.FollowUp) models.FollowUp {
	f.Amount = decimal.New(f.AmountMinor, -2)
	return f
}
