package routes

import (
	"net/http"
	"time"

	"daypass/handlers"
	"daypass/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterCheckoutRoutes registers the checkout wizard endpoints.
func RegisterCheckoutRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/checkout/sessions")
	{
		api.POST("", hb.CreateSession)
		api.GET("/:id", hb.GetSession)
		api.DELETE("/:id", hb.AbandonSession)

		// Step input
		api.PUT("/:id/datetime", hb.SetDateTime)
		api.PUT("/:id/pickup", hb.SetPickup)
		api.PUT("/:id/addons", hb.SetAddOns)
		api.PUT("/:id/contact", hb.SetContact)

		// Navigation
		api.POST("/:id/next", hb.NextStep)
		api.POST("/:id/back", hb.PreviousStep)
		api.POST("/:id/refresh", hb.RefreshSession)

		// Payment
		api.POST("/:id/payment/retry", hb.RetryPayment)
		api.POST("/:id/payment/confirm", hb.ConfirmPayment)
	}
}

// RegisterSupportRoutes registers follow-up endpoints. They stay unmounted
// without a support token.
func RegisterSupportRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	if hb.SupportToken == "" || hb.ListFollowUps == nil {
		return
	}
	api := r.Group("/api/support/followups")
	{
		api.Use(middleware.SupportAuthMiddleware(hb.SupportToken))
		api.GET("", hb.ListFollowUps)
		api.PUT("/:id", hb.ResolveFollowUp)
	}
}

// RegisterHealthRoute registers the liveness endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	if hb.Health != nil {
		r.GET("/health", hb.Health)
		return
	}
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, allowedOrigins []string) {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !containsWildcard(allowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r, hb)
	RegisterCheckoutRoutes(r, hb)
	RegisterSupportRoutes(r, hb)
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
