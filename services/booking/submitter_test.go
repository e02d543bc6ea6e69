package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"daypass/models"
	"daypass/services/backend"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reply struct {
	env *backend.BookingEnvelope
	err error
}

type fakeBookingAPI struct {
	replies []reply
	calls   int
	keys    []string
	orders  []models.Order
}

func (f *fakeBookingAPI) CreateBooking(_ context.Context, body any, key string) (*backend.BookingEnvelope, error) {
	f.calls++
	f.keys = append(f.keys, key)
	if o, ok := body.(models.Order); ok {
		f.orders = append(f.orders, o)
	}
	r := f.replies[len(f.replies)-1]
	if f.calls <= len(f.replies) {
		r = f.replies[f.calls-1]
	}
	return r.env, r.err
}

func ok(id string) reply {
	return reply{env: &backend.BookingEnvelope{
		Outer:   backend.Layer{Present: true, OK: true},
		Inner:   backend.Layer{Present: true, OK: true},
		Booking: &backend.BookingPayload{ID: id, EmailSent: true},
	}}
}

func netErr() reply {
	return reply{err: &backend.TransportError{Op: "create booking", Err: errors.New("connection reset")}}
}

func testOrder() models.Order {
	sel := models.Selection{
		Date: "2026-11-02", TimeSlot: "10:00", PickupLocation: "Sintra station",
		AdultCount: 2, ChildCount: 1,
		Contact: models.Contact{FullName: "Ana Silva", Email: "ana@example.com", PhonePrefix: "+351", PhoneNumber: "912345678"},
	}
	return models.NewOrder(sel, models.PriceBreakdown{GrandTotal: decimal.NewFromInt(122)}, "eur", "pi_42")
}

func newTestSubmitter(api BookingAPI) (*Submitter, *[]time.Duration) {
	s := NewSubmitter(api, DefaultOptions(), zap.NewNop())
	var slept []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func TestSubmitSucceedsOnThirdAttempt(t *testing.T) {
	api := &fakeBookingAPI{replies: []reply{netErr(), netErr(), ok("b-1")}}
	s, slept := newTestSubmitter(api)

	res, err := s.Submit(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, 3, api.calls)
	assert.Equal(t, "b-1", res.Record.ID)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *slept)
	assert.Nil(t, res.EmailWarning)
}

func TestSubmitSendsIntentIDAsIdempotencyKey(t *testing.T) {
	api := &fakeBookingAPI{replies: []reply{netErr(), ok("b-1")}}
	s, _ := newTestSubmitter(api)

	_, err := s.Submit(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, []string{"pi_42", "pi_42"}, api.keys)
	assert.Equal(t, "pi_42", api.orders[1].IdempotencyKey)
}

func TestSubmitGivesUpAfterThreeTransportFailures(t *testing.T) {
	api := &fakeBookingAPI{replies: []reply{netErr()}}
	s, _ := newTestSubmitter(api)

	_, err := s.Submit(context.Background(), testOrder())
	var amb *AmbiguousOutcomeError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, "pi_42", amb.PaymentReference)
	assert.True(t, backend.IsTransport(err))
	assert.Equal(t, 3, api.calls)
}

func TestSubmitDoesNotRetryRejection(t *testing.T) {
	api := &fakeBookingAPI{replies: []reply{{err: &backend.RejectionError{Op: "create booking", Message: "Not enough seats available"}}}}
	s, slept := newTestSubmitter(api)

	_, err := s.Submit(context.Background(), testOrder())
	var rej *backend.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Not enough seats available", rej.Message)
	assert.Equal(t, 1, api.calls)
	assert.Empty(t, *slept)
}

func TestSubmitUnsentRequestIsNotRetried(t *testing.T) {
	api := &fakeBookingAPI{replies: []reply{{err: errors.New("create booking: failed to encode request")}}}
	s, slept := newTestSubmitter(api)

	_, err := s.Submit(context.Background(), testOrder())
	require.Error(t, err)
	assert.False(t, IsAmbiguous(err))
	assert.False(t, backend.IsRejection(err))
	assert.Equal(t, 1, api.calls)
	assert.Empty(t, *slept)
}

func TestSubmitInnerFailureIsRejection(t *testing.T) {
	api := &fakeBookingAPI{replies: []reply{{env: &backend.BookingEnvelope{
		Outer: backend.Layer{Present: true, OK: true},
		Inner: backend.Layer{Present: true, OK: false, Error: "validation failed: email"},
	}}}}
	s, _ := newTestSubmitter(api)

	res, err := s.Submit(context.Background(), testOrder())
	assert.Nil(t, res)
	var rej *backend.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "validation failed: email", rej.UserMessage())
	assert.Equal(t, 1, api.calls)
}

func TestSubmitMissingBookingIDIsAmbiguous(t *testing.T) {
	api := &fakeBookingAPI{replies: []reply{{env: &backend.BookingEnvelope{
		Outer:   backend.Layer{Present: true, OK: true},
		Inner:   backend.Layer{Present: true, OK: true},
		Booking: &backend.BookingPayload{EmailSent: true},
	}}}}
	s, slept := newTestSubmitter(api)

	_, err := s.Submit(context.Background(), testOrder())
	require.True(t, IsAmbiguous(err))
	assert.Equal(t, 1, api.calls, "ambiguous outcomes are not retried")
	assert.Empty(t, *slept)

	var amb *AmbiguousOutcomeError
	require.ErrorAs(t, err, &amb)
	assert.Contains(t, amb.UserMessage(), "pi_42")
}

func TestSubmitMissingFlagsAreAmbiguous(t *testing.T) {
	envs := []*backend.BookingEnvelope{
		{Inner: backend.Layer{Present: true, OK: true}, Booking: &backend.BookingPayload{ID: "x"}},
		{Outer: backend.Layer{Present: true, OK: true}, Booking: &backend.BookingPayload{ID: "x"}},
		{Outer: backend.Layer{Present: true, OK: true}, Inner: backend.Layer{Present: true, OK: true}},
	}
	for _, env := range envs {
		api := &fakeBookingAPI{replies: []reply{{env: env}}}
		s, _ := newTestSubmitter(api)

		_, err := s.Submit(context.Background(), testOrder())
		assert.True(t, IsAmbiguous(err), "%+v", env)
		assert.Equal(t, 1, api.calls)
	}
}

func TestSubmitWithoutPaymentIsRefused(t *testing.T) {
	api := &fakeBookingAPI{replies: []reply{ok("b")}}
	s, _ := newTestSubmitter(api)
	order := testOrder()
	order.ProviderIntentID = ""

	_, err := s.Submit(context.Background(), order)
	assert.ErrorIs(t, err, ErrMissingPayment)
	assert.Equal(t, 0, api.calls)
}

func TestSubmitEmailWarningKeepsSuccess(t *testing.T) {
	r := ok("b-9")
	r.env.Booking.EmailSent = false
	r.env.Booking.EmailError = "The example.com domain is not verified"
	api := &fakeBookingAPI{replies: []reply{r}}
	s, _ := newTestSubmitter(api)

	res, err := s.Submit(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "b-9", res.Record.ID)
	require.NotNil(t, res.EmailWarning)
	assert.Equal(t, models.EmailSenderDomainUnverified, res.EmailWarning.Kind)
}

func TestSubmitStopsWhenContextCancelled(t *testing.T) {
	api := &fakeBookingAPI{replies: []reply{netErr()}}
	s := NewSubmitter(api, Options{Attempts: 3, Delay: time.Hour}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Submit(ctx, testOrder())
	assert.True(t, IsAmbiguous(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, api.calls)
}

func TestClassifyEmailError(t *testing.T) {
	tests := []struct {
		detail string
		kind   models.EmailWarningKind
	}{
		{"The gmail.com domain is not verified. Please add and verify your domain", models.EmailSenderDomainUnverified},
		{"Missing `to` field", models.EmailNoDestination},
		{"no recipients defined", models.EmailNoDestination},
		{"rate limited", models.EmailGeneric},
	}
	for _, tt := range tests {
		w := ClassifyEmailError(false, tt.detail)
		require.NotNil(t, w)
		assert.Equal(t, tt.kind, w.Kind, tt.detail)
	}

	generic := ClassifyEmailError(false, "rate limited")
	assert.Contains(t, generic.Message, "rate limited")
	assert.Nil(t, ClassifyEmailError(true, ""))
}
