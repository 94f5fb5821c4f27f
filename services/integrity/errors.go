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
	"errors"
	"net/http"

	"github.com/AleutianAI/AleutianCheck/pkg/validation"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/document"
	"github.com/AleutianAI/AleutianCheck/services/integrity/engine"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

var (
	// ErrObjectNotFound indicates a workspace request for an unknown top object.
	ErrObjectNotFound = errors.New("top object not found")

	// ErrNilRegistryFactory indicates a service configured without checks.
	ErrNilRegistryFactory = errors.New("registry factory must not be nil")
)

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, document.ErrInvalidDocument),
		errors.Is(err, model.ErrInvalidSnapshot),
		errors.Is(err, model.ErrUnknownClass),
		errors.Is(err, model.ErrUnknownFeature),
		errors.Is(err, model.ErrAbstractClass):
		return http.StatusBadRequest, "INVALID_DOCUMENT"
	case errors.Is(err, check.ErrUnknownCheck):
		return http.StatusNotFound, "UNKNOWN_CHECK"
	case errors.Is(err, check.ErrUnknownVariant), errors.Is(err, check.ErrNoFix):
		return http.StatusBadRequest, "NO_SUCH_FIX"
	case errors.Is(err, engine.ErrNoRepairer):
		return http.StatusBadRequest, "NO_BULK_FIX"
	case errors.Is(err, engine.ErrIssueNotFound), errors.Is(err, ErrObjectNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, engine.ErrStaleIssue):
		return http.StatusConflict, "STALE_ISSUE"
	case errors.Is(err, engine.ErrNotEditable):
		return http.StatusForbidden, "NOT_EDITABLE"
	case errors.Is(err, model.ErrDuplicateURI), errors.Is(err, model.ErrMissingURI),
		errors.Is(err, validation.ErrInvalidURI):
		return http.StatusBadRequest, "INVALID_OBJECT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
