package handlers

import "github.com/gin-gonic/gin"

// HandlerBundle groups the endpoint handlers for route registration.
type HandlerBundle struct {
	// Checkout endpoints
	CreateSession  gin.HandlerFunc
	GetSession     gin.HandlerFunc
	SetDateTime    gin.HandlerFunc
	SetPickup      gin.HandlerFunc
	SetAddOns      gin.HandlerFunc
	SetContact     gin.HandlerFunc
	NextStep       gin.HandlerFunc
	PreviousStep   gin.HandlerFunc
	RetryPayment   gin.HandlerFunc
	ConfirmPayment gin.HandlerFunc
	RefreshSession gin.HandlerFunc
	AbandonSession gin.HandlerFunc

	// Support endpoints; nil when no support token is configured
	ListFollowUps   gin.HandlerFunc
	ResolveFollowUp gin.HandlerFunc
	SupportToken    string

	Health gin.HandlerFunc
}
