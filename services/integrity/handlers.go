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
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianCheck/pkg/extensions"
	"github.com/AleutianAI/AleutianCheck/pkg/validation"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// Handlers contains the HTTP handlers of the integrity service.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc, logger: svc.logger}
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Warn("request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, logger *slog.Logger, err error) {
	logger.Warn("Invalid request body", "error", err)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Invalid request body",
		Code:    "INVALID_REQUEST",
		Details: err.Error(),
	})
}

// HandleHealth handles GET /v1/integrity/health.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	ws := h.svc.Workspace()
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Tops:    len(ws.Graph().TopURIs()),
		Pending: len(ws.Pending()),
	})
}

// HandleChecks handles GET /v1/integrity/checks.
//
// Response:
//
//	200 OK: ChecksResponse
func (h *Handlers) HandleChecks(c *gin.Context) {
	c.JSON(http.StatusOK, ChecksResponse{Checks: h.svc.Checks()})
}

// HandleValidate handles POST /v1/integrity/validate.
//
// Description:
//
//	Builds the posted document into a scratch graph and validates every
//	top object. The workspace is not touched.
//
// Request Body:
//
//	ValidateRequest
//
// Response:
//
//	200 OK: IssuesResponse
//	400 Bad Request: Malformed request or document
func (h *Handlers) HandleValidate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleValidate")

	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	resp, err := h.svc.ValidateDocument(c.Request.Context(), req.Document)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	logger.Info("document validated", "objects", len(req.Document.Objects), "issues", resp.Count)
	c.JSON(http.StatusOK, resp)
}

// HandleFix handles POST /v1/integrity/fix.
//
// Description:
//
//	Runs the bulk cleanup of one check over the posted document and returns
//	the repaired document.
//
// Request Body:
//
//	FixRequest
//
// Response:
//
//	200 OK: FixResponse
//	400 Bad Request: Malformed request, document, or a check without cleanup
//	404 Not Found: Unknown check
func (h *Handlers) HandleFix(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleFix")

	var req FixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	resp, err := h.svc.FixDocument(c.Request.Context(), req.Document, req.CheckID)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	logger.Info("document fixed", "check", req.CheckID, "fixed", resp.Report.Fixed, "remaining", len(resp.Issues))
	c.JSON(http.StatusOK, resp)
}

// HandleIssues handles GET /v1/integrity/issues.
//
// Description:
//
//	Returns the stored workspace issues. Top objects still Pending keep
//	their previous results until POST /v1/integrity/run.
//
// Query Parameters:
//
//	top: Restrict to one top object (optional)
func (h *Handlers) HandleIssues(c *gin.Context) {
	ws := h.svc.Workspace()
	var issues []check.Issue
	if top := c.Query("top"); top != "" {
		issues = ws.IssuesFor(model.URI(top))
	} else {
		issues = ws.Issues()
	}
	records := check.Records(issues)
	c.JSON(http.StatusOK, IssuesResponse{Issues: records, Count: len(records)})
}

// HandleRun handles POST /v1/integrity/run.
//
// Response:
//
//	200 OK: IssuesResponse with the run report
//	503 Service Unavailable: The run was cancelled
func (h *Handlers) HandleRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleRun")

	report, err := h.svc.Run(c.Request.Context())
	if err != nil {
		logger.Warn("run interrupted", "error", err, "requeued", report.Requeued)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "RUN_INTERRUPTED"})
		return
	}
	records := check.Records(h.svc.Workspace().Issues())
	c.JSON(http.StatusOK, IssuesResponse{Issues: records, Count: len(records), Run: &report})
}

// HandleApplyFix handles POST /v1/integrity/issues/fix.
//
// Response:
//
//	200 OK: ApplyFixResponse
//	400 Bad Request: Malformed request or unknown variant
//	403 Forbidden: Top object not editable
//	404 Not Found: No such current issue
//	409 Conflict: The issue's node is gone
func (h *Handlers) HandleApplyFix(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleApplyFix")

	var req ApplyFixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}
	if req.Issue.Top == "" || req.Issue.CheckID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "issue.top and issue.check_id are required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	changed, err := h.svc.ApplyFix(c.Request.Context(), req.Issue, req.Variant)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ApplyFixResponse{Changed: changed, Pending: len(h.svc.Workspace().Pending())})
}

// HandlePutObject handles PUT /v1/integrity/objects.
//
// Request Body:
//
//	model.Snapshot of a top object
//
// Response:
//
//	200 OK: ObjectResponse
//	400 Bad Request: Snapshot cannot be built
func (h *Handlers) HandlePutObject(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandlePutObject")

	var snap model.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		badRequest(c, logger, err)
		return
	}
	if snap.URI == "" || snap.Class == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "class and uri are required", Code: "INVALID_OBJECT"})
		return
	}
	if err := validation.ValidateURI(string(snap.URI)); err != nil {
		h.fail(c, logger, err)
		return
	}

	marks, err := h.svc.PutObject(c.Request.Context(), &snap)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ObjectResponse{URI: snap.URI, Marks: marks})
}

// HandleDeleteObject handles DELETE /v1/integrity/objects?uri=...
//
// Response:
//
//	200 OK: ObjectResponse
//	404 Not Found: No such top object
func (h *Handlers) HandleDeleteObject(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleDeleteObject")

	raw := c.Query("uri")
	if raw == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "uri is required", Code: "INVALID_REQUEST"})
		return
	}
	if err := validation.ValidateURI(raw); err != nil {
		h.fail(c, logger, err)
		return
	}
	uri := model.URI(raw)
	marks, err := h.svc.DeleteObject(c.Request.Context(), uri)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ObjectResponse{URI: uri, Marks: marks})
}

// HandleExport handles GET /v1/integrity/document.
func (h *Handlers) HandleExport(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Export())
}

// HandleCleanup handles POST /v1/integrity/cleanup.
//
// Description:
//
//	Runs one check's bulk cleanup over the workspace. Repaired top objects
//	become Pending; call POST /v1/integrity/run to see what is left.
//
// Request Body:
//
//	CleanupRequest
//
// Response:
//
//	200 OK: cleanup.Report
//	400 Bad Request: Malformed request or a check without cleanup
//	404 Not Found: Unknown check
func (h *Handlers) HandleCleanup(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleCleanup")

	var req CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}
	report, err := h.svc.Cleanup(c.Request.Context(), req.CheckID)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	logger.Info("workspace cleaned", "check", req.CheckID, "fixed", report.Fixed, "run_id", report.RunID)
	c.JSON(http.StatusOK, report)
}

// HandleAudit handles GET /v1/integrity/audit.
//
// Query Parameters:
//
//	type: Event type (repeatable, optional)
//	resource: Top object URI (optional)
//	outcome: success or failure (optional)
//	limit: Newest N events (optional)
func (h *Handlers) HandleAudit(c *gin.Context) {
	filter := extensions.AuditFilter{
		EventTypes: c.QueryArray("type"),
		ResourceID: c.Query("resource"),
		Outcome:    c.Query("outcome"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer", Code: "INVALID_REQUEST"})
			return
		}
		filter.Limit = limit
	}
	events, err := h.svc.AuditEvents(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, AuditResponse{Events: events, Count: len(events)})
}
