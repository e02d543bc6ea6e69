package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"daypass/handlers"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func ok(c *gin.Context) { c.Status(http.StatusNoContent) }

func bundle(token string) *handlers.HandlerBundle {
	return &handlers.HandlerBundle{
		CreateSession: ok, GetSession: ok, SetDateTime: ok, SetPickup: ok,
		SetAddOns: ok, SetContact: ok, NextStep: ok, PreviousStep: ok,
		RetryPayment: ok, ConfirmPayment: ok, RefreshSession: ok, AbandonSession: ok,
		ListFollowUps: ok, ResolveFollowUp: ok,
		SupportToken: token,
	}
}

func serve(r *gin.Engine, method, path, auth string) int {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestCheckoutRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, bundle(""), nil)

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/api/checkout/sessions", ""))
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPut, "/api/checkout/sessions/s1/datetime", ""))
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/api/checkout/sessions/s1/payment/confirm", ""))
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodDelete, "/api/checkout/sessions/s1", ""))
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", ""))

	// no token, no support routes
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/support/followups", ""))
}

func TestSupportRoutesRequireToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, bundle("s3cret"), []string{"https://daypass.example"})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/support/followups", ""))
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/support/followups", "wrong"))
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/api/support/followups", "s3cret"))
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPut, "/api/support/followups/f1", "s3cret"))
}
