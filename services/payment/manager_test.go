package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"daypass/models"
	"daypass/services/backend"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCreator struct {
	mu    sync.Mutex
	calls []models.PaymentRequest
	errs  []error
	block chan struct{}
}

func (f *fakeCreator) Create(_ context.Context, req models.PaymentRequest) (*models.PaymentAuthorization, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	if n <= len(f.errs) && f.errs[n-1] != nil {
		return nil, f.errs[n-1]
	}
	return &models.PaymentAuthorization{
		ClientSecret:     "secret",
		ProviderIntentID: "pi_" + string(rune('0'+n)),
		Amount:           req.Amount,
		Currency:         req.Currency,
	}, nil
}

func (f *fakeCreator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestEnsureCreatesOnceAndReuses(t *testing.T) {
	creator := &fakeCreator{}
	m := NewManager(creator, "eur", "sess-1", zap.NewNop())
	ctx := context.Background()

	s, err := m.Ensure(ctx, decimal.NewFromInt(122), nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentReady, s.State)
	require.NotNil(t, s.Authorization)
	assert.Equal(t, "pi_1", s.Authorization.ProviderIntentID)

	s, err = m.Ensure(ctx, decimal.NewFromInt(122), nil)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", s.Authorization.ProviderIntentID)
	assert.Equal(t, 1, creator.count())

	assert.Equal(t, "sess-1:1", creator.calls[0].Idempotency)
	assert.Equal(t, "sess-1", creator.calls[0].Metadata["sessionId"])
}

func TestEnsureRecreatesWhenTotalChanges(t *testing.T) {
	creator := &fakeCreator{}
	m := NewManager(creator, "eur", "sess-1", zap.NewNop())
	ctx := context.Background()

	_, err := m.Ensure(ctx, decimal.NewFromInt(100), nil)
	require.NoError(t, err)
	s, err := m.Ensure(ctx, decimal.NewFromInt(122), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, creator.count())
	assert.Equal(t, "pi_2", s.Authorization.ProviderIntentID)
	assert.True(t, decimal.NewFromInt(122).Equal(s.Authorization.Amount))
}

func TestFailureNeedsExplicitRetry(t *testing.T) {
	creator := &fakeCreator{errs: []error{&backend.TransportError{Op: "create payment intent", Err: errors.New("dial tcp")}}}
	m := NewManager(creator, "eur", "sess-1", zap.NewNop())
	ctx := context.Background()

	s, err := m.Ensure(ctx, decimal.NewFromInt(50), nil)
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, models.PaymentError, s.State)
	assert.NotEmpty(t, s.Error)
	assert.Equal(t, 1, creator.count(), "no automatic retry")

	s, err = m.Retry(ctx, decimal.NewFromInt(50), nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentReady, s.State)
	assert.Equal(t, 2, creator.count())
	assert.Empty(t, s.Error)
}

func TestTriggerWhileCreatingIsNoop(t *testing.T) {
	creator := &fakeCreator{block: make(chan struct{})}
	m := NewManager(creator, "eur", "sess-1", zap.NewNop())
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Ensure(ctx, decimal.NewFromInt(50), nil)
	}()

	require.Eventually(t, func() bool { return m.State() == models.PaymentCreating }, time.Second, 5*time.Millisecond)

	s, err := m.Ensure(ctx, decimal.NewFromInt(50), nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCreating, s.State)
	s, err = m.Retry(ctx, decimal.NewFromInt(50), nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCreating, s.State)

	close(creator.block)
	<-done

	assert.Equal(t, 1, creator.count())
	assert.Equal(t, models.PaymentReady, m.State())
}

func TestZeroAmountIsInitError(t *testing.T) {
	creator := &fakeCreator{}
	m := NewManager(creator, "eur", "sess-1", zap.NewNop())

	_, err := m.Ensure(context.Background(), decimal.Zero, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, 0, creator.count())
}

func TestReplacedAuthorizationStaysConfirmable(t *testing.T) {
	creator := &fakeCreator{}
	m := NewManager(creator, "eur", "sess-1", zap.NewNop())
	ctx := context.Background()

	_, err := m.Ensure(ctx, decimal.NewFromInt(100), nil)
	require.NoError(t, err)
	s, err := m.Ensure(ctx, decimal.NewFromInt(122), nil)
	require.NoError(t, err)
	require.Len(t, s.Superseded, 1)
	assert.Equal(t, "pi_1", s.Superseded[0].ProviderIntentID)

	old, current, ok := m.Lookup("pi_1")
	require.True(t, ok)
	assert.False(t, current)
	assert.True(t, decimal.NewFromInt(100).Equal(old.Amount))

	active, current, ok := m.Lookup("")
	require.True(t, ok)
	assert.True(t, current)
	assert.Equal(t, "pi_2", active.ProviderIntentID)

	_, _, ok = m.Lookup("pi_9")
	assert.False(t, ok)

	restored := NewManager(creator, "eur", "sess-1", zap.NewNop())
	restored.Restore(m.Snapshot())
	_, current, ok = restored.Lookup("pi_1")
	assert.True(t, ok)
	assert.False(t, current)
	assert.NotNil(t, m.Snapshot().Find("pi_1"))
}

func TestRestoreInterruptedCreation(t *testing.T) {
	m := NewManager(&fakeCreator{}, "eur", "sess-1", zap.NewNop())
	m.Restore(models.PaymentSnapshot{State: models.PaymentCreating, Attempts: 1})

	s := m.Snapshot()
	assert.Equal(t, models.PaymentError, s.State)
	assert.Equal(t, 1, s.Attempts)
	_, ok := m.Authorization()
	assert.False(t, ok)
}

func TestOnChangeSeesTransitions(t *testing.T) {
	m := NewManager(&fakeCreator{}, "eur", "sess-1", zap.NewNop())
	var states []models.PaymentState
	m.OnChange(func(s models.PaymentSnapshot) { states = append(states, s.State) })

	_, err := m.Ensure(context.Background(), decimal.NewFromInt(10), nil)
	require.NoError(t, err)
	assert.Equal(t, []models.PaymentState{models.PaymentCreating, models.PaymentReady}, states)
}
