package payment

import (
	"context"
	"errors"
	"testing"

	"daypass/models"
	"daypass/services/backend"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

type fakeIntents struct {
	created *stripe.PaymentIntentParams
	status  stripe.PaymentIntentStatus
	err     error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.created = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret"}, nil
}

func (f *fakeIntents) Get(id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.PaymentIntent{ID: id, Status: f.status}, nil
}

func TestStripeGatewayCreate(t *testing.T) {
	fake := &fakeIntents{}
	g := &StripeGateway{intents: fake, logger: zap.NewNop()}

	auth, err := g.Create(context.Background(), models.PaymentRequest{
		Amount:      decimal.RequireFromString("122.00"),
		Currency:    "EUR",
		Idempotency: "sess-1:1",
		Metadata:    map[string]string{"date": "2026-11-02"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", auth.ProviderIntentID)
	assert.Equal(t, "pi_123_secret", auth.ClientSecret)

	require.NotNil(t, fake.created)
	assert.Equal(t, int64(12200), *fake.created.Amount)
	assert.Equal(t, "eur", *fake.created.Currency)
	assert.Equal(t, "2026-11-02", fake.created.Metadata["date"])
	require.NotNil(t, fake.created.IdempotencyKey)
	assert.Equal(t, "sess-1:1", *fake.created.IdempotencyKey)
}

func TestStripeGatewayStatus(t *testing.T) {
	g := &StripeGateway{intents: &fakeIntents{status: stripe.PaymentIntentStatusSucceeded}, logger: zap.NewNop()}

	status, err := g.Status(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", status)
}

func TestStripeGatewayError(t *testing.T) {
	g := &StripeGateway{intents: &fakeIntents{err: errors.New("card_declined")}, logger: zap.NewNop()}

	_, err := g.Create(context.Background(), models.PaymentRequest{Amount: decimal.NewFromInt(1), Currency: "eur"})
	assert.Error(t, err)
}

type fakeBackendAPI struct {
	req backend.PaymentIntentRequest
	key string
}

func (f *fakeBackendAPI) CreatePaymentIntent(_ context.Context, req backend.PaymentIntentRequest, key string) (*backend.PaymentIntent, error) {
	f.req = req
	f.key = key
	return &backend.PaymentIntent{ClientSecret: "cs", PaymentIntentID: "pi_b"}, nil
}

func TestBackendCreatorConvertsToMinorUnits(t *testing.T) {
	api := &fakeBackendAPI{}
	c := NewBackendCreator(api)

	auth, err := c.Create(context.Background(), models.PaymentRequest{
		Amount:      decimal.RequireFromString("7.505"),
		Currency:    "eur",
		Idempotency: "k",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(751), api.req.Amount)
	assert.Equal(t, "k", api.key)
	assert.Equal(t, "pi_b", auth.ProviderIntentID)
	assert.True(t, decimal.RequireFromString("7.505").Equal(auth.Amount))
}
