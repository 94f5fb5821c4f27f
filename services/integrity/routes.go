// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package integrity

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers all integrity routes with the router group.
//
// Description:
//
//	Registers all /v1/integrity/* endpoints with the given Gin router group.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Document Endpoints:
//
//	POST /v1/integrity/validate - Validate a posted document
//	POST /v1/integrity/fix - Bulk-fix a posted document with one check
//
// Workspace Endpoints:
//
//	GET    /v1/integrity/issues - Stored issues
//	POST   /v1/integrity/issues/fix - Apply one fix variant to one issue
//	POST   /v1/integrity/run - Validate Pending top objects
//	PUT    /v1/integrity/objects - Add or replace a top object
//	DELETE /v1/integrity/objects - Remove a top object
//	POST   /v1/integrity/cleanup - Bulk-fix the workspace with one check
//	GET    /v1/integrity/document - Export the workspace
//	GET    /v1/integrity/audit - Recorded edits and fixes
//
// Metadata Endpoints:
//
//	GET /v1/integrity/checks - Registered checks
//	GET /v1/integrity/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	integrity := rg.Group("/integrity")
	{
		integrity.POST("/validate", handlers.HandleValidate)
		integrity.POST("/fix", handlers.HandleFix)

		integrity.GET("/issues", handlers.HandleIssues)
		integrity.POST("/issues/fix", handlers.HandleApplyFix)
		integrity.POST("/run", handlers.HandleRun)
		integrity.PUT("/objects", handlers.HandlePutObject)
		integrity.DELETE("/objects", handlers.HandleDeleteObject)
		integrity.POST("/cleanup", handlers.HandleCleanup)
		integrity.GET("/document", handlers.HandleExport)
		integrity.GET("/audit", handlers.HandleAudit)

		integrity.GET("/checks", handlers.HandleChecks)
		integrity.GET("/health", handlers.HandleHealth)
	}
}

// NewRouter builds the service router with tracing, recovery and the
// Prometheus /metrics endpoint.
func NewRouter(handlers *Handlers, serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	RegisterRoutes(router.Group("/v1"), handlers)
	return router
}
