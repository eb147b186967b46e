package main

import (
	"collections-platform/internal/auth"
	"collections-platform/internal/httpapi"
	"collections-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: This endpoint should be protected by Twilio signature validation in production.
	r.POST("/webhooks/twilio/sms-status", h.SMSStatusWebhook)

	// Token issuance stays outside the auth middleware.
	authGroup := r.Group("/v1/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireClient())
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			cid, _ := auth.ClientID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "client_id": cid, "role": role})
		})

		// DEBTOR routes
		deb := v1.Group("/debtors")
		deb.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleManager, rbac.RoleCollector))
		{
			deb.POST("", h.CreateDebtor)
			deb.GET("", h.ListDebtors)
			deb.GET("/:debtor_id", h.GetDebtor)
			deb.PATCH("/:debtor_id", h.UpdateDebtor)
			deb.POST("/:debtor_id/opt-out", h.OptOutDebtor)
		}

		// CALL routes
		callGroup := v1.Group("/calls")
		callGroup.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleManager, rbac.RoleCollector))
		{
			callGroup.POST("/trigger", h.TriggerCall)
			callGroup.GET("", h.ListCalls)
			callGroup.GET("/:call_id", h.GetCall)
		}

		// SMS routes
		smsGroup := v1.Group("/sms")
		smsGroup.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleManager, rbac.RoleCollector))
		{
			smsGroup.POST("/send", h.SendSMS)
			smsGroup.GET("", h.ListSMS)
			smsGroup.GET("/templates", h.ListSMSTemplates)
		}

		// PROMISE routes
		prom := v1.Group("/promises")
		prom.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleManager, rbac.RoleCollector))
		{
			prom.GET("", h.ListPromises)
			prom.PATCH("/:promise_id/status", h.UpdatePromiseStatus)
			prom.POST("/sweep-overdue", h.SweepOverduePromises)
		}

		// CAMPAIGN routes. Collectors work single accounts; batch dialing
		// needs manager sign-off.
		camp := v1.Group("/campaigns")
		camp.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleManager))
		{
			camp.POST("", h.CreateCampaign)
			camp.GET("", h.ListCampaigns)
			camp.GET("/:campaign_id", h.GetCampaign)
			camp.POST("/:campaign_id/start", h.StartCampaign)
			camp.PATCH("/:campaign_id/status", h.SetCampaignStatus)
		}

		// REPORTING routes.
		// Hidden compliance role is granted the activity feed explicitly.
		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleManager, rbac.RoleAnalyst))
		{
			reports.GET("/dashboard", h.Dashboard)
		}
		activity := v1.Group("/reports/activity")
		activity.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleManager, rbac.RoleAnalyst, rbac.RoleCompliance))
		{
			activity.GET("", h.RecentActivity)
		}
	}
}
