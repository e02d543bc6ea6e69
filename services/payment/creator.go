package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"daypass/models"
	"daypass/services/backend"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// IntentCreator opens one provider authorization per call.
type IntentCreator interface {
	Create(ctx context.Context, req models.PaymentRequest) (*models.PaymentAuthorization, error)
}

// Verifier reports the provider-side status of an authorization.
type Verifier interface {
	Status(ctx context.Context, providerIntentID string) (string, error)
}

// --- Backend creator ---

type backendAPI interface {
	CreatePaymentIntent(ctx context.Context, req backend.PaymentIntentRequest, idempotencyKey string) (*backend.PaymentIntent, error)
}

// BackendCreator creates authorizations through the booking backend.
type BackendCreator struct {
	api backendAPI
}

func NewBackendCreator(api backendAPI) *BackendCreator {
	return &BackendCreator{api: api}
}

func (c *BackendCreator) Create(ctx context.Context, req models.PaymentRequest) (*models.PaymentAuthorization, error) {
	pi, err := c.api.CreatePaymentIntent(ctx, backend.PaymentIntentRequest{
		Amount:   toMinor(req),
		Currency: req.Currency,
		Metadata: req.Metadata,
	}, req.Idempotency)
	if err != nil {
		return nil, err
	}
	return &models.PaymentAuthorization{
		ClientSecret:     pi.ClientSecret,
		ProviderIntentID: pi.PaymentIntentID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		CreatedAt:        time.Now(),
	}, nil
}

// --- Stripe creator ---

type stripeIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeGateway talks to Stripe directly. It creates intents and verifies
// client-side confirmations.
type StripeGateway struct {
	intents stripeIntents
	logger  *zap.Logger
}

func NewStripeGateway(secretKey string, logger *zap.Logger) *StripeGateway {
	sc := client.New(secretKey, nil)
	return &StripeGateway{intents: sc.PaymentIntents, logger: logger}
}

func (g *StripeGateway) Create(ctx context.Context, req models.PaymentRequest) (*models.PaymentAuthorization, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinor(req)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.Idempotency != "" {
		params.SetIdempotencyKey(req.Idempotency)
	}

	pi, err := g.intents.New(params)
	if err != nil {
		g.logger.Error("stripe: failed to create payment intent", zap.Error(err))
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return &models.PaymentAuthorization{
		ClientSecret:     pi.ClientSecret,
		ProviderIntentID: pi.ID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		CreatedAt:        time.Now(),
	}, nil
}

// Status returns the Stripe status string ("succeeded", "requires_action", ...).
func (g *StripeGateway) Status(ctx context.Context, providerIntentID string) (string, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.intents.Get(providerIntentID, params)
	if err != nil {
		return "", fmt.Errorf("stripe: get payment intent %s: %w", providerIntentID, err)
	}
	return string(pi.Status), nil
}

func toMinor(req models.PaymentRequest) int64 {
	return req.Amount.Shift(2).Round(0).IntPart()
}
