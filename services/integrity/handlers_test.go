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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCheck/pkg/extensions"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check/itemid"
	"github.com/AleutianAI/AleutianCheck/services/integrity/cleanup"
	"github.com/AleutianAI/AleutianCheck/services/integrity/engine"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T) (*gin.Engine, *Service) {
	return setupAuditedRouter(t, nil)
}

func setupAuditedRouter(t *testing.T, audit extensions.AuditLogger) (*gin.Engine, *Service) {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		NewRegistry: func() (*check.Registry, error) {
			return engine.NewRegistry(engine.RegistryConfig{})
		},
		Workers: 2,
		Audit:   audit,
	})
	require.NoError(t, err)
	return NewRouter(NewHandlers(svc), "integrity-test"), svc
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

const badForm = `{"document": {"version": 1, "objects": [
  {"class": "Form", "uri": "Form.F", "children": {"items": [
    {"class": "FormField", "attrs": {"id": 1, "name": "A"}},
    {"class": "FormField", "attrs": {"id": 0, "name": "B"}},
    {"class": "FormField", "attrs": {"id": 1, "name": "C"}},
    {"class": "FormField", "attrs": {"id": -1, "name": "D"}}
  ]}}
]}}`

func TestHandlers_Health(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/integrity/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Zero(t, resp.Tops)
}

func TestHandlers_Checks(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/integrity/checks", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ChecksResponse](t, w)
	require.Len(t, resp.Checks, 4)
	first := resp.Checks[0]
	assert.Equal(t, itemid.CheckID, first.ID)
	assert.Equal(t, check.SeverityCritical, first.Severity)
	assert.True(t, first.Enabled)
	assert.True(t, first.TopOnly)
	assert.True(t, first.BulkFix)
	assert.Equal(t, []string{"Form"}, first.TopClasses)
	require.Len(t, first.Variants, 1)
	assert.Equal(t, itemid.VariantAssign, first.Variants[0].ID)
	assert.False(t, resp.Checks[1].BulkFix)
}

func TestHandlers_Validate(t *testing.T) {
	router, svc := setupTestRouter(t)

	w := do(t, router, http.MethodPost, "/v1/integrity/validate", badForm)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	resp := decode[IssuesResponse](t, w)
	assert.Equal(t, 2, resp.Count)
	require.NotNil(t, resp.Run)
	assert.Equal(t, 1, resp.Run.Validated)
	assert.Equal(t, itemid.CheckID, resp.Issues[0].CheckID)
	assert.Equal(t, "FormField", resp.Issues[0].Class)
	assert.Empty(t, svc.Workspace().Graph().TopURIs(), "workspace untouched")
}

func TestHandlers_ValidateRejectsBadInput(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"not json", "{", "INVALID_REQUEST"},
		{"missing document", `{}`, "INVALID_REQUEST"},
		{"unknown class", `{"document": {"objects": [{"class": "Widget", "uri": "W.1"}]}}`, "INVALID_DOCUMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/v1/integrity/validate", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestHandlers_Fix(t *testing.T) {
	router, _ := setupTestRouter(t)
	body := `{"check_id": "form-invalid-item-id", ` + badForm[1:]

	w := do(t, router, http.MethodPost, "/v1/integrity/fix", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[FixResponse](t, w)
	assert.Equal(t, 2, resp.Report.Fixed)
	assert.Empty(t, resp.Issues)
	require.NotNil(t, resp.Document)
	require.Len(t, resp.Document.Objects, 1)

	ids := map[float64]bool{}
	for _, item := range resp.Document.Objects[0].Children["items"] {
		id, ok := item.Attrs["id"].(float64)
		require.True(t, ok)
		assert.False(t, ids[id], "duplicate id %v", id)
		ids[id] = true
	}
}

func TestHandlers_FixErrors(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodPost, "/v1/integrity/fix", `{"check_id": "nope", `+badForm[1:])
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/v1/integrity/fix", `{"check_id": "form-named-element-name", `+badForm[1:])
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NO_BULK_FIX", decode[ErrorResponse](t, w).Code)
}

func TestHandlers_WorkspaceFlow(t *testing.T) {
	router, _ := setupTestRouter(t)

	sub := map[string]any{
		"class": "Subsystem",
		"uri":   "Subsystem.Sales",
		"refs":  map[string]any{"content": []string{"Catalog.Customers"}},
	}
	w := do(t, router, http.MethodPut, "/v1/integrity/objects", sub)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[ObjectResponse](t, w).Marks)

	w = do(t, router, http.MethodPost, "/v1/integrity/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	run := decode[IssuesResponse](t, w)
	require.Equal(t, 1, run.Count)
	assert.Equal(t, "md-reference-integrity", run.Issues[0].CheckID)

	// Adding the missing catalog marks the subsystem again.
	cat := map[string]any{"class": "Catalog", "uri": "Catalog.Customers"}
	w = do(t, router, http.MethodPut, "/v1/integrity/objects", cat)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[ObjectResponse](t, w).Marks)

	w = do(t, router, http.MethodPost, "/v1/integrity/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[IssuesResponse](t, w).Count)

	w = do(t, router, http.MethodDelete, "/v1/integrity/objects?uri=Catalog.Customers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, router, http.MethodPost, "/v1/integrity/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	issues := decode[IssuesResponse](t, w)
	require.Equal(t, 1, issues.Count)

	// Fix the dangling reference through the issue endpoint.
	w = do(t, router, http.MethodPost, "/v1/integrity/issues/fix", ApplyFixRequest{Issue: issues.Issues[0]})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fix := decode[ApplyFixResponse](t, w)
	assert.True(t, fix.Changed)
	assert.Equal(t, 1, fix.Pending)

	w = do(t, router, http.MethodPost, "/v1/integrity/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[IssuesResponse](t, w).Count)

	w = do(t, router, http.MethodGet, "/v1/integrity/issues?top=Subsystem.Sales", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[IssuesResponse](t, w).Count)

	w = do(t, router, http.MethodGet, "/v1/integrity/document", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Subsystem.Sales")
}

func TestHandlers_WorkspaceErrors(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodDelete, "/v1/integrity/objects?uri=Form.Missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodDelete, "/v1/integrity/objects", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPut, "/v1/integrity/objects", map[string]any{"class": "Form"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPut, "/v1/integrity/objects", map[string]any{"class": "FormItem", "uri": "X.1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPut, "/v1/integrity/objects", map[string]any{"class": "Form", "uri": "Form.My Orders"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_OBJECT", decode[ErrorResponse](t, w).Code)

	w = do(t, router, http.MethodDelete, "/v1/integrity/objects?uri=Form..A", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	missing := check.Record{CheckID: itemid.CheckID, Top: "Form.F", NodeID: 42}
	w = do(t, router, http.MethodPost, "/v1/integrity/issues/fix", ApplyFixRequest{Issue: missing})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/v1/integrity/issues/fix", ApplyFixRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_Metrics(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewService_RequiresRegistry(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	assert.ErrorIs(t, err, ErrNilRegistryFactory)
}

func TestHandlers_CleanupAndAudit(t *testing.T) {
	router, _ := setupAuditedRouter(t, extensions.NewMemoryAuditLogger(0, nil))

	form := map[string]any{
		"class": "Form",
		"uri":   "Form.F",
		"children": map[string]any{"items": []map[string]any{
			{"class": "FormField", "attrs": map[string]any{"id": 0, "name": "A"}},
			{"class": "FormField", "attrs": map[string]any{"id": 0, "name": "B"}},
		}},
	}
	w := do(t, router, http.MethodPut, "/v1/integrity/objects", form)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, router, http.MethodPost, "/v1/integrity/run", nil)
	require.Equal(t, 2, decode[IssuesResponse](t, w).Count)

	w = do(t, router, http.MethodPost, "/v1/integrity/cleanup", CleanupRequest{CheckID: itemid.CheckID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[cleanup.Report](t, w).Fixed)

	w = do(t, router, http.MethodPost, "/v1/integrity/run", nil)
	assert.Zero(t, decode[IssuesResponse](t, w).Count)

	w = do(t, router, http.MethodGet, "/v1/integrity/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[AuditResponse](t, w)
	require.Equal(t, 2, all.Count)
	assert.Equal(t, "object.put", all.Events[0].EventType)
	assert.Equal(t, "create", all.Events[0].Action)
	assert.Equal(t, "Form.F", all.Events[0].ResourceID)
	assert.Equal(t, "fix.bulk", all.Events[1].EventType)

	w = do(t, router, http.MethodGet, "/v1/integrity/audit?type=fix.bulk&outcome=success", nil)
	assert.Equal(t, 1, decode[AuditResponse](t, w).Count)

	w = do(t, router, http.MethodGet, "/v1/integrity/audit?limit=many", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/v1/integrity/cleanup", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
