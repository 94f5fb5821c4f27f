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
	"github.com/AleutianAI/AleutianCheck/pkg/extensions"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/cleanup"
	"github.com/AleutianAI/AleutianCheck/services/integrity/document"
	"github.com/AleutianAI/AleutianCheck/services/integrity/engine"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// =============================================================================
// Requests
// =============================================================================

// ValidateRequest is the body of POST /v1/integrity/validate.
type ValidateRequest struct {
	// Document is validated in a graph of its own.
	Document *document.Document `json:"document" binding:"required"`
}

// FixRequest is the body of POST /v1/integrity/fix.
type FixRequest struct {
	Document *document.Document `json:"document" binding:"required"`

	// CheckID selects the bulk cleanup to run.
	CheckID string `json:"check_id" binding:"required"`
}

// ApplyFixRequest is the body of POST /v1/integrity/issues/fix.
type ApplyFixRequest struct {
	// Issue identifies a current workspace issue, as returned by
	// GET /v1/integrity/issues.
	Issue check.Record `json:"issue"`

	// Variant is the fix variant ID. Empty picks the first variant.
	Variant string `json:"variant"`
}

// =============================================================================
// Responses
// =============================================================================

// HealthResponse is the response for GET /v1/integrity/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`

	// Tops is the number of top objects in the workspace.
	Tops int `json:"tops"`

	// Pending is the number of workspace top objects owed a validation.
	Pending int `json:"pending"`
}

// VariantInfo describes one fix variant.
type VariantInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CheckInfo describes one registered check.
type CheckInfo struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Severity    check.Severity   `json:"severity"`
	Type        check.IssueType  `json:"type"`
	Complexity  check.Complexity `json:"complexity"`
	TopOnly     bool             `json:"top_only"`
	Enabled     bool             `json:"enabled"`
	TopClasses  []string         `json:"top_classes"`
	Variants    []VariantInfo    `json:"variants,omitempty"`

	// BulkFix is true when the check can be used with POST /v1/integrity/fix.
	BulkFix bool `json:"bulk_fix"`
}

// ChecksResponse is the response for GET /v1/integrity/checks.
type ChecksResponse struct {
	Checks []CheckInfo `json:"checks"`
}

// IssuesResponse lists issues.
type IssuesResponse struct {
	Issues []check.Record `json:"issues"`
	Count  int            `json:"count"`

	// Run is set when the issues come from a validation run.
	Run *engine.RunReport `json:"run,omitempty"`
}

// FixResponse is the response for POST /v1/integrity/fix.
type FixResponse struct {
	Report cleanup.Report `json:"report"`

	// Document is the repaired document.
	Document *document.Document `json:"document"`

	// Issues are the issues left after the repair.
	Issues []check.Record `json:"issues"`
}

// ApplyFixResponse is the response for POST /v1/integrity/issues/fix.
type ApplyFixResponse struct {
	Changed bool `json:"changed"`
	Pending int  `json:"pending"`
}

// ObjectResponse is the response for workspace object edits.
type ObjectResponse struct {
	URI model.URI `json:"uri"`

	// Marks is the number of top objects the edit made Pending.
	Marks int `json:"marks"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// ReconcileReport summarizes a workspace reconcile.
type ReconcileReport struct {
	Added    int `json:"added"`
	Replaced int `json:"replaced"`
	Removed  int `json:"removed"`

	// Marks is the number of top objects the reconcile made Pending.
	Marks int `json:"marks"`
}

// CleanupRequest is the request body for POST /v1/integrity/cleanup.
type CleanupRequest struct {
	CheckID string `json:"check_id" binding:"required"`
}

// AuditResponse is the response for GET /v1/integrity/audit.
type AuditResponse struct {
	Events []extensions.AuditEvent `json:"events"`
	Count  int                     `json:"count"`
}
