package payment

import (
	"context"
	"fmt"
	"sync"

	"daypass/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Manager holds the single payment authorization of a checkout session.
//
//	Uninitialized -> Creating -> Ready | Error
//	Error | Ready -> Creating   (explicit Retry only)
//
// There is no automatic retry loop: every creation is a new artifact at the
// provider. A trigger while Creating is a no-op.
type Manager struct {
	creator  IntentCreator
	currency string
	scope    string
	logger   *zap.Logger
	onChange func(models.PaymentSnapshot)

	mu         sync.Mutex
	state      models.PaymentState
	auth       *models.PaymentAuthorization
	superseded []models.PaymentAuthorization
	errMsg     string
	attempts   int
}

// maxSuperseded bounds how many replaced authorizations stay confirmable.
const maxSuperseded = 10

// NewManager creates a manager in the Uninitialized state. scope identifies
// the checkout session in provider metadata and idempotency keys.
func NewManager(creator IntentCreator, currency, scope string, logger *zap.Logger) *Manager {
	return &Manager{
		creator:  creator,
		currency: currency,
		scope:    scope,
		logger:   logger.With(zap.String("session", scope)),
		state:    models.PaymentUninitialized,
	}
}

// Restore loads a persisted snapshot. A snapshot taken mid-creation can only
// come from an interrupted request; it becomes an Error the user must retry.
func (m *Manager) Restore(s models.PaymentSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s.State
	m.auth = s.Authorization
	m.errMsg = s.Error
	m.attempts = s.Attempts
	m.superseded = append([]models.PaymentAuthorization(nil), s.Superseded...)
	switch m.state {
	case models.PaymentCreating:
		m.state = models.PaymentError
		m.auth = nil
		m.errMsg = "Payment setup was interrupted. Please retry."
	case models.PaymentReady:
		if m.auth == nil {
			m.state = models.PaymentUninitialized
		}
	case models.PaymentUninitialized, models.PaymentError:
	default:
		m.state = models.PaymentUninitialized
	}
}

// OnChange registers a callback fired after every state transition.
func (m *Manager) OnChange(fn func(models.PaymentSnapshot)) {
	m.onChange = fn
}

// Snapshot returns the persisted form of the manager.
func (m *Manager) Snapshot() models.PaymentSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() models.PaymentSnapshot {
	s := models.PaymentSnapshot{State: m.state, Error: m.errMsg, Attempts: m.attempts}
	if len(m.superseded) > 0 {
		s.Superseded = append([]models.PaymentAuthorization(nil), m.superseded...)
	}
	if m.auth != nil {
		a := *m.auth
		s.Authorization = &a
	}
	return s
}

// State returns the current state.
func (m *Manager) State() models.PaymentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Authorization returns the active authorization when Ready.
func (m *Manager) Authorization() (models.PaymentAuthorization, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != models.PaymentReady || m.auth == nil {
		return models.PaymentAuthorization{}, false
	}
	return *m.auth, true
}

// Lookup finds the authorization a client confirmed. An empty id means the
// current Ready authorization. current reports whether auth is still the
// active one rather than a superseded one.
func (m *Manager) Lookup(id string) (auth models.PaymentAuthorization, current bool, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auth != nil && (id == "" || m.auth.ProviderIntentID == id) {
		if id == "" && m.state != models.PaymentReady {
			return models.PaymentAuthorization{}, false, false
		}
		return *m.auth, true, true
	}
	if id == "" {
		return models.PaymentAuthorization{}, false, false
	}
	for _, a := range m.superseded {
		if a.ProviderIntentID == id {
			return a, false, true
		}
	}
	return models.PaymentAuthorization{}, false, false
}

// Ensure is called on entering the payment step. It reuses a Ready
// authorization for the same amount, re-creates a stale one, and creates one
// from Uninitialized or Error.
func (m *Manager) Ensure(ctx context.Context, amount decimal.Decimal, meta map[string]string) (models.PaymentSnapshot, error) {
	m.mu.Lock()
	switch m.state {
	case models.PaymentCreating:
		s := m.snapshotLocked()
		m.mu.Unlock()
		return s, nil
	case models.PaymentReady:
		if m.auth != nil && m.auth.Amount.Equal(amount) {
			s := m.snapshotLocked()
			m.mu.Unlock()
			return s, nil
		}
		if m.auth != nil {
			m.logger.Info("payment authorization is stale, total changed",
				zap.String("old", m.auth.Amount.String()), zap.String("new", amount.String()))
		}
	}
	return m.createLocked(ctx, amount, meta)
}

// Retry is the explicit user action after an error (or to replace a Ready
// authorization). It is a no-op while a creation is in flight.
func (m *Manager) Retry(ctx context.Context, amount decimal.Decimal, meta map[string]string) (models.PaymentSnapshot, error) {
	m.mu.Lock()
	if m.state == models.PaymentCreating {
		s := m.snapshotLocked()
		m.mu.Unlock()
		return s, nil
	}
	return m.createLocked(ctx, amount, meta)
}

// createLocked must be called with m.mu held; it releases the lock around
// the provider call so concurrent triggers observe Creating.
func (m *Manager) createLocked(ctx context.Context, amount decimal.Decimal, meta map[string]string) (models.PaymentSnapshot, error) {
	if !amount.IsPositive() {
		m.supersedeLocked()
		m.state = models.PaymentError
		m.errMsg = "There is nothing to pay for this selection."
		s := m.snapshotLocked()
		m.mu.Unlock()
		m.notify(s)
		return s, &InitError{Err: ErrInvalidAmount}
	}

	m.supersedeLocked()
	m.state = models.PaymentCreating
	m.errMsg = ""
	m.attempts++
	req := models.PaymentRequest{
		Amount:      amount,
		Currency:    m.currency,
		Idempotency: fmt.Sprintf("%s:%d", m.scope, m.attempts),
		Metadata:    withSession(meta, m.scope),
		Description: "Day pass booking",
	}
	creating := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(creating)

	m.logger.Info("creating payment authorization",
		zap.String("amount", amount.StringFixed(2)), zap.Int("attempt", creating.Attempts))
	auth, err := m.creator.Create(ctx, req)

	m.mu.Lock()
	if err != nil {
		initErr := &InitError{Err: err}
		m.state = models.PaymentError
		m.errMsg = initErr.UserMessage()
		s := m.snapshotLocked()
		m.mu.Unlock()
		m.logger.Warn("payment authorization failed", zap.Error(err))
		m.notify(s)
		return s, initErr
	}
	m.state = models.PaymentReady
	m.auth = auth
	s := m.snapshotLocked()
	m.mu.Unlock()
	m.logger.Info("payment authorization ready", zap.String("intent", auth.ProviderIntentID))
	m.notify(s)
	return s, nil
}

// supersedeLocked retires the current authorization. The provider intent
// still exists and may have been paid.
func (m *Manager) supersedeLocked() {
	if m.auth == nil {
		return
	}
	m.superseded = append(m.superseded, *m.auth)
	if len(m.superseded) > maxSuperseded {
		m.superseded = m.superseded[len(m.superseded)-maxSuperseded:]
	}
	m.auth = nil
}

func (m *Manager) notify(s models.PaymentSnapshot) {
	if m.onChange != nil {
		m.onChange(s)
	}
}

func withSession(meta map[string]string, scope string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["sessionId"] = scope
	return out
}
