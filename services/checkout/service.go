package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daypass/models"
	"daypass/services/availability"
	"daypass/services/booking"
	"daypass/services/payment"
	"daypass/services/pricing"
	"daypass/services/wizard"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettingsSource reads the feature flags. Both reads fail open.
type SettingsSource interface {
	PurchasesEnabled(ctx context.Context) (bool, error)
	AttractionsEnabled(ctx context.Context) (bool, error)
}

// PriceLoader returns the price table, falling back to defaults on error.
type PriceLoader interface {
	Load(ctx context.Context) (models.PriceTable, error)
}

// FollowUps receives paid checkouts whose booking could not be confirmed.
type FollowUps interface {
	Enqueue(ctx context.Context, f models.FollowUp) error
}

// Deps wires the service. Verifier is optional.
type Deps struct {
	Store        Store
	Locker       Locker
	Settings     SettingsSource
	Prices       PriceLoader
	Calculator   *pricing.Calculator
	Availability availability.Source
	Snapshots    availability.SnapshotStore
	Payments     payment.IntentCreator
	Verifier     payment.Verifier
	Submitter    wizard.Submitter
	FollowUps    FollowUps
}

type Options struct {
	Wizard      wizard.Options
	SeatCeiling int
	// SubmitTimeout bounds verification plus every booking attempt. It must
	// stay below the session lock TTL.
	SubmitTimeout time.Duration
}

// Service owns checkout sessions. Each call restores the wizard from the
// store, applies one operation under the session lock and saves it back.
type Service struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

func NewService(deps Deps, opts Options, logger *zap.Logger) *Service {
	if opts.SeatCeiling <= 0 {
		opts.SeatCeiling = availability.DefaultCeiling
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 45 * time.Second
	}
	return &Service{deps: deps, opts: opts, logger: logger}
}

// Create starts a checkout with freshly loaded settings and prices.
func (s *Service) Create(ctx context.Context) (models.CheckoutView, error) {
	id := uuid.NewString()
	settings, _ := s.loadSettings(ctx)
	table, _ := s.deps.Prices.Load(ctx)

	ctrl := wizard.New(s.wizardDeps(id), s.opts.Wizard, table, settings)
	now := time.Now()
	sess := &models.CheckoutSession{SessionID: id, CreatedAt: now}
	if err := s.save(ctx, sess, ctrl); err != nil {
		return models.CheckoutView{}, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("checkout session created", zap.String("session", id),
		zap.Bool("purchasesEnabled", settings.PurchasesEnabled),
		zap.Bool("attractionsEnabled", settings.AttractionsEnabled))
	return s.view(ctx, id, ctrl), nil
}

// Get returns the current view without taking the session lock.
func (s *Service) Get(ctx context.Context, id string) (models.CheckoutView, error) {
	sess, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return models.CheckoutView{}, err
	}
	return s.view(ctx, id, s.restore(sess)), nil
}

func (s *Service) SetDateTime(ctx context.Context, id, date, slot string) (models.CheckoutView, error) {
	return s.withSession(ctx, id, func(c *wizard.Controller) error {
		return c.SetDateTime(ctx, date, slot)
	})
}

func (s *Service) SetPickupAndCount(ctx context.Context, id, location string, adults, children int) (models.CheckoutView, error) {
	return s.withSession(ctx, id, func(c *wizard.Controller) error {
		return c.SetPickupAndCount(location, adults, children)
	})
}

func (s *Service) SetAttractions(ctx context.Context, id string, ids []string) (models.CheckoutView, error) {
	return s.withSession(ctx, id, func(c *wizard.Controller) error {
		return c.SetAttractions(ids)
	})
}

func (s *Service) SetContact(ctx context.Context, id string, contact models.Contact) (models.CheckoutView, error) {
	return s.withSession(ctx, id, func(c *wizard.Controller) error {
		return c.SetContact(contact)
	})
}

func (s *Service) Next(ctx context.Context, id string) (models.CheckoutView, error) {
	return s.withSession(ctx, id, func(c *wizard.Controller) error {
		return c.Next(ctx)
	})
}

func (s *Service) Back(ctx context.Context, id string) (models.CheckoutView, error) {
	return s.withSession(ctx, id, func(c *wizard.Controller) error {
		return c.Back()
	})
}

func (s *Service) RetryPayment(ctx context.Context, id string) (models.CheckoutView, error) {
	return s.withSession(ctx, id, func(c *wizard.Controller) error {
		_, err := c.RetryPayment(ctx)
		return err
	})
}

// ConfirmPayment submits the booking after a client-side confirmation. The
// submission is detached from the caller's cancellation so a dropped
// connection cannot cut it short; SubmitTimeout bounds it instead.
func (s *Service) ConfirmPayment(ctx context.Context, id string, conf models.PaymentConfirmation) (models.CheckoutView, error) {
	return s.withSession(ctx, id, func(c *wizard.Controller) error {
		subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.SubmitTimeout)
		defer cancel()
		_, err := c.ConfirmPayment(subCtx, conf)
		return err
	})
}

// Refresh reloads settings and prices into a running checkout. Sources that
// fail to load leave the session's current values in place.
func (s *Service) Refresh(ctx context.Context, id string) (models.CheckoutView, error) {
	settings, settingsErr := s.loadSettings(ctx)
	table, pricesErr := s.deps.Prices.Load(ctx)
	return s.withSession(ctx, id, func(c *wizard.Controller) error {
		if settingsErr == nil {
			c.ApplySettings(ctx, settings)
		}
		if pricesErr == nil {
			c.ApplyPricing(ctx, table)
		}
		return nil
	})
}

// Abandon deletes a session. A session with a submission in flight is kept.
func (s *Service) Abandon(ctx context.Context, id string) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	sess, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Submitting {
		return wizard.ErrSubmissionInFlight
	}
	if err := s.deps.Store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info("checkout session abandoned", zap.String("session", id), zap.Stringer("step", sess.Step))
	return nil
}

func (s *Service) withSession(ctx context.Context, id string, fn func(c *wizard.Controller) error) (models.CheckoutView, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return models.CheckoutView{}, err
	}
	defer unlock()

	sess, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return models.CheckoutView{}, err
	}
	if sess.Submitting {
		s.recoverInterrupted(ctx, sess)
	}

	ctrl := s.restore(sess)
	persistCtx := context.WithoutCancel(ctx)
	unsubscribe := ctrl.Subscribe(func(ev wizard.Event) {
		switch e := ev.(type) {
		case wizard.SubmissionStarted, wizard.PaymentStateChanged:
			if err := s.save(persistCtx, sess, ctrl); err != nil {
				s.logger.Error("failed to persist checkout progress", zap.String("session", id), zap.Error(err))
			}
		case wizard.SubmissionFinished:
			var amb *booking.AmbiguousOutcomeError
			if errors.As(e.Err, &amb) {
				s.escalate(persistCtx, ctrl.Snapshot(), id, amb.PaymentReference, amb.Error())
			}
		}
	})
	defer unsubscribe()

	opErr := fn(ctrl)
	if err := s.save(persistCtx, sess, ctrl); err != nil {
		return models.CheckoutView{}, fmt.Errorf("save session: %w", err)
	}
	return s.view(ctx, id, ctrl), opErr
}

// lock maps a busy session to ErrSubmissionInFlight when the holder is
// submitting, so callers can tell a pending booking from a plain conflict.
func (s *Service) lock(ctx context.Context, id string) (func(), error) {
	unlock, err := s.deps.Locker.Lock(ctx, id)
	if err == nil {
		return unlock, nil
	}
	if errors.Is(err, ErrSessionBusy) {
		sess, gerr := s.deps.Store.Get(ctx, id)
		switch {
		case errors.Is(gerr, ErrSessionNotFound):
			return nil, ErrSessionNotFound
		case gerr == nil && sess.Submitting:
			return nil, wizard.ErrSubmissionInFlight
		}
		return nil, ErrSessionBusy
	}
	return nil, fmt.Errorf("lock session: %w", err)
}

// recoverInterrupted handles a session left submitting by a request that
// died: holding the lock means nobody else is submitting it.
func (s *Service) recoverInterrupted(ctx context.Context, sess *models.CheckoutSession) {
	ref := sess.SubmittingIntent
	if ref == "" && sess.Payment.Authorization != nil {
		ref = sess.Payment.Authorization.ProviderIntentID
	}
	sess.Submitting = false
	sess.SubmittingIntent = ""
	sess.Unresolved = ref
	s.logger.Error("booking submission was interrupted",
		zap.String("session", sess.SessionID), zap.String("intent", ref))
	s.escalate(context.WithoutCancel(ctx), *sess, sess.SessionID, ref, "booking submission was interrupted")
}

func (s *Service) escalate(ctx context.Context, snap models.CheckoutSession, id, ref, reason string) {
	if s.deps.FollowUps == nil {
		return
	}
	f := models.FollowUp{
		SessionID:        id,
		ProviderIntentID: ref,
		Currency:         s.opts.Wizard.Currency,
		Contact:          snap.Selection.Contact,
		Date:             snap.Selection.Date,
		TimeSlot:         snap.Selection.TimeSlot,
		Reason:           reason,
		State:            models.FollowUpOpen,
		CreatedAt:        time.Now(),
	}
	if auth := snap.Payment.Find(ref); auth != nil {
		f.Amount = auth.Amount
		f.Currency = auth.Currency
	}
	if err := s.deps.FollowUps.Enqueue(ctx, f); err != nil {
		s.logger.Error("failed to enqueue booking follow-up",
			zap.String("session", id), zap.String("intent", ref), zap.Error(err))
		return
	}
	s.logger.Warn("ambiguous booking escalated to support", zap.String("session", id), zap.String("intent", ref))
}

func (s *Service) save(ctx context.Context, sess *models.CheckoutSession, ctrl *wizard.Controller) error {
	snap := ctrl.Snapshot()
	snap.SessionID = sess.SessionID
	snap.CreatedAt = sess.CreatedAt
	snap.UpdatedAt = time.Now()
	return s.deps.Store.Save(ctx, &snap)
}

func (s *Service) restore(sess *models.CheckoutSession) *wizard.Controller {
	return wizard.Restore(s.wizardDeps(sess.SessionID), s.opts.Wizard, *sess)
}

func (s *Service) view(ctx context.Context, id string, ctrl *wizard.Controller) models.CheckoutView {
	v := ctrl.View(ctx)
	v.SessionID = id
	return v
}

func (s *Service) wizardDeps(id string) wizard.Deps {
	return wizard.Deps{
		Pricing:      s.deps.Calculator,
		Availability: availability.NewCache(s.deps.Availability, s.deps.Snapshots, id, s.opts.SeatCeiling, s.logger),
		Payment:      payment.NewManager(s.deps.Payments, s.opts.Wizard.Currency, id, s.logger),
		Submitter:    s.deps.Submitter,
		Verifier:     s.deps.Verifier,
		Logger:       s.logger.With(zap.String("session", id)),
	}
}

func (s *Service) loadSettings(ctx context.Context) (models.Settings, error) {
	settings := models.DefaultSettings()
	purchases, perr := s.deps.Settings.PurchasesEnabled(ctx)
	if perr == nil {
		settings.PurchasesEnabled = purchases
	}
	attractions, aerr := s.deps.Settings.AttractionsEnabled(ctx)
	if aerr == nil {
		settings.AttractionsEnabled = attractions
	}
	err := errors.Join(perr, aerr)
	if err != nil {
		s.logger.Warn("settings load failed, failing open", zap.Error(err))
	}
	return settings, err
}
