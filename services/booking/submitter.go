package booking

import (
	"context"
	"errors"
	"time"

	"daypass/models"
	"daypass/services/backend"

	"go.uber.org/zap"
)

// BookingAPI is the booking store endpoint.
type BookingAPI interface {
	CreateBooking(ctx context.Context, body any, idempotencyKey string) (*backend.BookingEnvelope, error)
}

// Options tune the retry policy.
type Options struct {
	Attempts int
	Delay    time.Duration
	// UseIdempotencyKeys sends the payment intent id as Idempotency-Key so a
	// retried submission cannot create a second booking for one payment.
	UseIdempotencyKeys bool
}

// DefaultOptions: 3 attempts, 1 s apart, with idempotency keys.
func DefaultOptions() Options {
	return Options{Attempts: 3, Delay: time.Second, UseIdempotencyKeys: true}
}

// Submitter turns a paid order into a booking record.
type Submitter struct {
	api    BookingAPI
	opts   Options
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewSubmitter(api BookingAPI, opts Options, logger *zap.Logger) *Submitter {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	return &Submitter{api: api, opts: opts, logger: logger, sleep: sleepCtx}
}

// Submit sends the order, retrying only transport failures. Outcomes:
//   - success: the booking result, possibly with an email warning
//   - *backend.RejectionError: terminal, reported verbatim
//   - *AmbiguousOutcomeError: paid but unconfirmed, never retried
func (s *Submitter) Submit(ctx context.Context, order models.Order) (*models.BookingResult, error) {
	if order.ProviderIntentID == "" {
		return nil, ErrMissingPayment
	}
	key := ""
	if s.opts.UseIdempotencyKeys {
		key = order.ProviderIntentID
		order.IdempotencyKey = key
	}
	log := s.logger.With(zap.String("intent", order.ProviderIntentID))

	var lastErr error
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		env, err := s.api.CreateBooking(ctx, order, key)
		if err == nil {
			res, err := classify(env, order.ProviderIntentID)
			if err != nil {
				log.Warn("booking not confirmed", zap.Int("attempt", attempt), zap.Error(err))
				return nil, err
			}
			res.Attempts = attempt
			log.Info("booking created", zap.String("booking", res.Record.ID), zap.Int("attempt", attempt))
			return res, nil
		}

		if backend.IsRejection(err) {
			log.Warn("booking rejected", zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}
		if !backend.IsTransport(err) {
			// The request never left, so nothing can have been booked.
			log.Error("booking request not sent", zap.Error(err))
			return nil, err
		}
		lastErr = err
		log.Warn("booking submission transport failure", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == s.opts.Attempts {
			break
		}
		if err := s.sleep(ctx, s.opts.Delay); err != nil {
			lastErr = err
			break
		}
	}

	return nil, &AmbiguousOutcomeError{
		PaymentReference: order.ProviderIntentID,
		Reason:           "booking service unreachable after payment",
		Err:              lastErr,
	}
}

// classify checks the three envelope layers. A missing flag or a missing
// booking id is ambiguous; an explicit false flag is a rejection.
func classify(env *backend.BookingEnvelope, ref string) (*models.BookingResult, error) {
	const op = "create booking"
	switch {
	case env == nil:
		return nil, &AmbiguousOutcomeError{PaymentReference: ref, Reason: "empty response"}
	case !env.Outer.Present:
		return nil, &AmbiguousOutcomeError{PaymentReference: ref, Reason: "response has no success flag"}
	case !env.Outer.OK:
		return nil, &backend.RejectionError{Op: op, Message: env.Outer.Error}
	case !env.Inner.Present:
		return nil, &AmbiguousOutcomeError{PaymentReference: ref, Reason: "response has no booking confirmation"}
	case !env.Inner.OK:
		return nil, &backend.RejectionError{Op: op, Message: env.Inner.Error}
	case env.Booking == nil || env.Booking.ID == "":
		return nil, &AmbiguousOutcomeError{PaymentReference: ref, Reason: "response has no booking id"}
	}

	b := env.Booking
	return &models.BookingResult{
		Record: models.BookingRecord{
			ID:         b.ID,
			FullName:   b.FullName,
			Email:      b.Email,
			EmailSent:  b.EmailSent,
			EmailError: b.EmailError,
		},
		EmailWarning: ClassifyEmailError(b.EmailSent, b.EmailError),
		CompletedAt:  time.Now(),
	}, nil
}

// IsAmbiguous reports whether err is an ambiguous outcome.
func IsAmbiguous(err error) bool {
	var ae *AmbiguousOutcomeError
	return errors.As(err, &ae)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
