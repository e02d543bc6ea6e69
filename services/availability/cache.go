package availability

import (
	"context"
	"strings"

	"daypass/models"

	"go.uber.org/zap"
)

// DefaultCeiling is the optimistic seat count for slots not yet checked.
const DefaultCeiling = 50

// Source fetches remaining seats for a date.
type Source interface {
	GetAvailability(ctx context.Context, date string) (map[string]int, error)
}

// Cache is the availability snapshot of one checkout session. It is
// capacity guidance only; the booking store does the authoritative check.
type Cache struct {
	source  Source
	store   SnapshotStore
	scope   string
	ceiling int
	logger  *zap.Logger
}

// NewCache binds a cache to one session scope.
func NewCache(source Source, store SnapshotStore, scope string, ceiling int, logger *zap.Logger) *Cache {
	return &Cache{
		source:  source,
		store:   store,
		scope:   scope,
		ceiling: ceiling,
		logger:  logger.With(zap.String("session", scope)),
	}
}

// Fetch loads the seats for date and overwrites that date's entry only.
// On failure the previous entry, if any, is left untouched.
func (c *Cache) Fetch(ctx context.Context, date string) (models.SlotSeats, error) {
	raw, err := c.source.GetAvailability(ctx, date)
	if err != nil {
		c.logger.Warn("availability fetch failed, using optimistic default",
			zap.String("date", date), zap.Int("ceiling", c.ceiling), zap.Error(err))
		return nil, err
	}
	seats := make(models.SlotSeats, len(raw))
	for slot, n := range raw {
		if n < 0 {
			n = 0
		}
		seats[slot] = n
	}
	if err := c.store.Put(ctx, c.scope, date, seats); err != nil {
		c.logger.Error("failed to store availability", zap.String("date", date), zap.Error(err))
		return seats, err
	}
	return seats, nil
}

// Get returns the remaining seats for a slot, or the ceiling when the slot
// has not been checked. Absence never means zero.
func (c *Cache) Get(ctx context.Context, date, slot string) int {
	seats, ok, err := c.store.Get(ctx, c.scope, date)
	if err != nil {
		c.logger.Warn("failed to read availability", zap.String("date", date), zap.Error(err))
		return c.ceiling
	}
	if !ok {
		return c.ceiling
	}
	n, ok := seats[slot]
	if !ok {
		return c.ceiling
	}
	return n
}

// Seats returns the cached seats for a date, or nil when not checked.
func (c *Cache) Seats(ctx context.Context, date string) models.SlotSeats {
	seats, ok, err := c.store.Get(ctx, c.scope, date)
	if err != nil || !ok {
		return nil
	}
	return seats
}

// Invalidate forgets the entry for one date.
func (c *Cache) Invalidate(ctx context.Context, date string) error {
	return c.store.Delete(ctx, c.scope, date)
}

// Refresh invalidates and re-fetches a date, used after the booking store
// reported that seats ran out.
func (c *Cache) Refresh(ctx context.Context, date string) (models.SlotSeats, error) {
	if err := c.Invalidate(ctx, date); err != nil {
		c.logger.Warn("failed to invalidate availability", zap.String("date", date), zap.Error(err))
	}
	return c.Fetch(ctx, date)
}

// IsSeatsRejection recognises the booking store's "out of seats" message.
func IsSeatsRejection(message string) bool {
	return strings.Contains(strings.ToLower(message), "not enough seats")
}
