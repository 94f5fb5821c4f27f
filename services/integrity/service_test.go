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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCheck/services/integrity/document"
	"github.com/AleutianAI/AleutianCheck/services/integrity/schedule"
)

const workspaceDoc = `
objects:
  - class: Subsystem
    uri: Subsystem.Sales
    refs: {content: [Catalog.Customers]}
  - class: Catalog
    uri: Catalog.Customers
  - class: Form
    uri: Form.Orders
    children:
      items:
        - {class: FormField, attrs: {id: 1, name: Customer}}
`

func mustParse(t *testing.T, data string) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(data))
	require.NoError(t, err)
	return doc
}

func TestService_ReconcileOnlyTouchesChangedObjects(t *testing.T) {
	ctx := context.Background()
	_, svc := setupTestRouter(t)

	rep, err := svc.Reconcile(ctx, mustParse(t, workspaceDoc))
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Added)
	_, err = svc.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, svc.Workspace().IssueCount())

	// Same content again: nothing changes, nothing is marked.
	rep, err = svc.Reconcile(ctx, mustParse(t, workspaceDoc))
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, rep)
	assert.Empty(t, svc.Workspace().Pending())

	// Drop the catalog and break the form.
	edited := `
objects:
  - class: Subsystem
    uri: Subsystem.Sales
    refs: {content: [Catalog.Customers]}
  - class: Form
    uri: Form.Orders
    children:
      items:
        - {class: FormField, attrs: {id: 0, name: Customer}}
`
	rep, err = svc.Reconcile(ctx, mustParse(t, edited))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Replaced)
	assert.Equal(t, 1, rep.Removed)
	assert.Equal(t, schedule.Pending, svc.Workspace().State("Form.Orders"))
	assert.Equal(t, schedule.Pending, svc.Workspace().State("Subsystem.Sales"))

	_, err = svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.Workspace().IssueCount())
	assert.ElementsMatch(t, []string{"Form.Orders", "Subsystem.Sales"}, topsOf(svc))
}

func TestService_ReconcileRejectsBadObjects(t *testing.T) {
	_, svc := setupTestRouter(t)

	_, err := svc.Reconcile(context.Background(), mustParse(t, `objects: [{class: Widget, uri: W.1}]`))

	assert.ErrorIs(t, err, document.ErrInvalidDocument)
}

func topsOf(svc *Service) []string {
	var out []string
	for _, uri := range svc.Workspace().Graph().TopURIs() {
		out = append(out, string(uri))
	}
	return out
}
