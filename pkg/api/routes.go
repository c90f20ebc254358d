package api

import (
	"fleetmon/pkg/auth"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires all device-facing and admin routes.
func RegisterRoutes(router *gin.Engine, tokens *auth.TokenService, devices *DeviceHandler, admin *AdminHandler) {
	router.Use(SecurityHeaders())

	v1 := router.Group("/api/v1")

	public := v1.Group("/devices")
	{
		public.POST("/register", devices.Register)
		public.POST("/authenticate", devices.Authenticate)
	}

	authed := v1.Group("/devices")
	authed.Use(DeviceAuth(tokens))
	{
		authed.POST("/heartbeat", devices.Heartbeat)
		authed.POST("/sync", devices.SubmitBatch)
		authed.POST("/sync/:batchId/confirm", devices.ConfirmBatch)
		authed.POST("/events/:id/image", devices.UploadEventImage)
		authed.GET("/status", devices.Status)
		authed.GET("/config", devices.GetConfig)
		authed.POST("/config/confirm", devices.ConfirmConfig)
		authed.POST("/config/error", devices.ReportConfigError)
	}

	adminGroup := v1.Group("/admin")
	{
		adminGroup.POST("/ingest/run", admin.RunIngest)
		adminGroup.POST("/liveness/run", admin.RunLiveness)
		adminGroup.GET("/facejob/status", admin.FaceJobStatus)
	}
}
