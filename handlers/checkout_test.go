package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"daypass/models"
	"daypass/services/backend"
	"daypass/services/booking"
	"daypass/services/checkout"
	"daypass/services/followup"
	"daypass/services/payment"
	"daypass/services/wizard"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCheckout struct {
	view models.CheckoutView
	err  error

	gotID      string
	gotDate    string
	gotSlot    string
	gotAdults  int
	gotIDs     []string
	gotContact models.Contact
	gotConf    models.PaymentConfirmation
	calls      []string
}

func (f *fakeCheckout) result(call, id string) (models.CheckoutView, error) {
	f.calls = append(f.calls, call)
	f.gotID = id
	return f.view, f.err
}

func (f *fakeCheckout) Create(ctx context.Context) (models.CheckoutView, error) {
	return f.result("create", "")
}
func (f *fakeCheckout) Get(ctx context.Context, id string) (models.CheckoutView, error) {
	return f.result("get", id)
}
func (f *fakeCheckout) SetDateTime(ctx context.Context, id, date, slot string) (models.CheckoutView, error) {
	f.gotDate, f.gotSlot = date, slot
	return f.result("datetime", id)
}
func (f *fakeCheckout) SetPickupAndCount(ctx context.Context, id, location string, adults, children int) (models.CheckoutView, error) {
	f.gotAdults = adults
	return f.result("pickup", id)
}
func (f *fakeCheckout) SetAttractions(ctx context.Context, id string, ids []string) (models.CheckoutView, error) {
	f.gotIDs = ids
	return f.result("addons", id)
}
func (f *fakeCheckout) SetContact(ctx context.Context, id string, contact models.Contact) (models.CheckoutView, error) {
	f.gotContact = contact
	return f.result("contact", id)
}
func (f *fakeCheckout) Next(ctx context.Context, id string) (models.CheckoutView, error) {
	return f.result("next", id)
}
func (f *fakeCheckout) Back(ctx context.Context, id string) (models.CheckoutView, error) {
	return f.result("back", id)
}
func (f *fakeCheckout) RetryPayment(ctx context.Context, id string) (models.CheckoutView, error) {
	return f.result("retry", id)
}
func (f *fakeCheckout) ConfirmPayment(ctx context.Context, id string, conf models.PaymentConfirmation) (models.CheckoutView, error) {
	f.gotConf = conf
	return f.result("confirm", id)
}
func (f *fakeCheckout) Refresh(ctx context.Context, id string) (models.CheckoutView, error) {
	return f.result("refresh", id)
}
func (f *fakeCheckout) Abandon(ctx context.Context, id string) error {
	_, err := f.result("abandon", id)
	return err
}

func newCheckoutRouter(svc *fakeCheckout) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewCheckoutHandler(svc, zap.NewNop())
	r := gin.New()
	api := r.Group("/api/checkout/sessions")
	api.POST("", h.CreateSessionHandler)
	api.GET("/:id", h.GetSessionHandler)
	api.DELETE("/:id", h.AbandonSessionHandler)
	api.PUT("/:id/datetime", h.SetDateTimeHandler)
	api.PUT("/:id/pickup", h.SetPickupHandler)
	api.PUT("/:id/addons", h.SetAddOnsHandler)
	api.PUT("/:id/contact", h.SetContactHandler)
	api.POST("/:id/next", h.NextStepHandler)
	api.POST("/:id/back", h.PreviousStepHandler)
	api.POST("/:id/refresh", h.RefreshSessionHandler)
	api.POST("/:id/payment/retry", h.RetryPaymentHandler)
	api.POST("/:id/payment/confirm", h.ConfirmPaymentHandler)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error   string               `json:"error"`
	Message string               `json:"message"`
	Kind    string               `json:"kind"`
	Session *models.CheckoutView `json:"session"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreateSessionReturnsCreated(t *testing.T) {
	svc := &fakeCheckout{view: models.CheckoutView{SessionID: "s1", Step: models.StepDateTime, StepName: "date_time"}}
	w := do(newCheckoutRouter(svc), http.MethodPost, "/api/checkout/sessions", "")

	assert.Equal(t, http.StatusCreated, w.Code)
	var view models.CheckoutView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "s1", view.SessionID)
	assert.Equal(t, models.StepDateTime, view.Step)
}

func TestStepInputIsForwarded(t *testing.T) {
	svc := &fakeCheckout{view: models.CheckoutView{SessionID: "s1"}}
	r := newCheckoutRouter(svc)

	w := do(r, http.MethodPut, "/api/checkout/sessions/s1/datetime", `{"date":"2099-06-01","timeSlot":"10:00"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", svc.gotID)
	assert.Equal(t, "2099-06-01", svc.gotDate)
	assert.Equal(t, "10:00", svc.gotSlot)

	w = do(r, http.MethodPut, "/api/checkout/sessions/s1/pickup", `{"pickupLocation":"Lisbon","adultCount":2,"childCount":1}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, svc.gotAdults)

	w = do(r, http.MethodPut, "/api/checkout/sessions/s1/addons", `{"attractionIds":["pena-park"]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"pena-park"}, svc.gotIDs)

	w = do(r, http.MethodPut, "/api/checkout/sessions/s1/contact",
		`{"fullName":"Ana Silva","email":"ana@example.com","confirmEmail":"ana@example.com","phonePrefix":"+351","phoneNumber":"912345678"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana@example.com", svc.gotContact.ConfirmEmail)

	for _, path := range []string{"next", "back", "refresh", "payment/retry"} {
		w = do(r, http.MethodPost, "/api/checkout/sessions/s1/"+path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
	assert.Equal(t, []string{"datetime", "pickup", "addons", "contact", "next", "back", "refresh", "retry"}, svc.calls)
}

func TestMalformedBodyIsRejectedBeforeService(t *testing.T) {
	svc := &fakeCheckout{}
	r := newCheckoutRouter(svc)

	w := do(r, http.MethodPut, "/api/checkout/sessions/s1/datetime", `{"timeSlot":"10:00"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindValidation, decodeError(t, w).Kind)

	w = do(r, http.MethodPost, "/api/checkout/sessions/s1/payment/confirm", `{"providerIntentId":"pi_1","status":"paid"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/checkout/sessions/s1/payment/confirm", `{"status":"succeeded"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, svc.calls)
}

func TestConfirmPaymentForwardsStatus(t *testing.T) {
	svc := &fakeCheckout{view: models.CheckoutView{
		SessionID: "s1",
		Booking:   &models.BookingResult{Record: models.BookingRecord{ID: "bk-1"}},
	}}
	w := do(newCheckoutRouter(svc), http.MethodPost, "/api/checkout/sessions/s1/payment/confirm",
		`{"providerIntentId":"pi_s1:1","status":"succeeded"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ConfirmationSucceeded, svc.gotConf.Status)
	assert.Equal(t, "pi_s1:1", svc.gotConf.ProviderIntentID)
	var view models.CheckoutView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.NotNil(t, view.Booking)
	assert.Equal(t, "bk-1", view.Booking.Record.ID)
}

func TestFailedOperationCarriesSession(t *testing.T) {
	svc := &fakeCheckout{
		view: models.CheckoutView{SessionID: "s1", Step: models.StepContactInfo, Blocker: "emails do not match"},
		err:  &wizard.ValidationError{Step: models.StepContactInfo, Field: "confirmEmail", Message: "emails do not match"},
	}
	w := do(newCheckoutRouter(svc), http.MethodPost, "/api/checkout/sessions/s1/next", "")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, KindValidation, body.Kind)
	assert.Equal(t, "emails do not match", body.Message)
	require.NotNil(t, body.Session)
	assert.Equal(t, models.StepContactInfo, body.Session.Step)
}

func TestUnknownSessionHasNoSessionBody(t *testing.T) {
	svc := &fakeCheckout{err: checkout.ErrSessionNotFound}
	w := do(newCheckoutRouter(svc), http.MethodGet, "/api/checkout/sessions/missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, KindNotFound, body.Kind)
	assert.Nil(t, body.Session)
}

func TestAbandonSession(t *testing.T) {
	svc := &fakeCheckout{}
	r := newCheckoutRouter(svc)

	w := do(r, http.MethodDelete, "/api/checkout/sessions/s1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	svc.err = wizard.ErrSubmissionInFlight
	w = do(r, http.MethodDelete, "/api/checkout/sessions/s1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, KindConflict, decodeError(t, w).Kind)
}

func TestClassify(t *testing.T) {
	transport := &backend.TransportError{Op: "POST /bookings", StatusCode: 503, Err: errors.New("unavailable")}
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"not found", checkout.ErrSessionNotFound, http.StatusNotFound, KindNotFound},
		{"validation", &wizard.ValidationError{Message: "pick a date"}, http.StatusUnprocessableEntity, KindValidation},
		{"unknown follow-up state", fmt.Errorf("%w %q", followup.ErrUnknownState, "done"), http.StatusBadRequest, KindValidation},
		{"ambiguous over transport", &booking.AmbiguousOutcomeError{PaymentReference: "pi_1", Reason: "retries exhausted", Err: transport}, http.StatusBadGateway, KindAmbiguous},
		{"payment init over rejection", &payment.InitError{Err: &backend.RejectionError{Message: "no"}}, http.StatusBadGateway, KindPaymentInit},
		{"rejection", &backend.RejectionError{Message: "not enough seats"}, http.StatusUnprocessableEntity, KindRejection},
		{"confirmation", &payment.ConfirmationError{Status: "error", Message: "card declined"}, http.StatusPaymentRequired, KindPayment},
		{"transport", transport, http.StatusServiceUnavailable, KindTransport},
		{"in flight", wizard.ErrSubmissionInFlight, http.StatusConflict, KindConflict},
		{"busy", checkout.ErrSessionBusy, http.StatusConflict, KindConflict},
		{"wrong step", &wizard.WrongStepError{Current: models.StepDateTime, Wanted: models.StepContactInfo}, http.StatusConflict, KindConflict},
		{"verification", &payment.VerificationError{IntentID: "pi_1", Err: errors.New("stripe timeout")}, http.StatusServiceUnavailable, KindTransport},
		{"payment not ready", payment.ErrNotReady, http.StatusConflict, KindConflict},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.status, got.status)
			assert.Equal(t, tt.kind, got.kind)
			assert.NotEmpty(t, got.message)
		})
	}
}

func TestAmbiguousMessageQuotesReference(t *testing.T) {
	svc := &fakeCheckout{
		view: models.CheckoutView{SessionID: "s1", Unresolved: "pi_9"},
		err:  &booking.AmbiguousOutcomeError{PaymentReference: "pi_9", Reason: "response had no booking id"},
	}
	w := do(newCheckoutRouter(svc), http.MethodPost, "/api/checkout/sessions/s1/payment/confirm",
		`{"providerIntentId":"pi_9","status":"succeeded"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, KindAmbiguous, body.Kind)
	assert.Contains(t, body.Message, "pi_9")
	assert.Contains(t, body.Message, "do not pay again")
}
