// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package itemname

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

func TestIsValidName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"Field1", true},
		{"_hidden", true},
		{"Поле", true},
		{"", false},
		{"1Field", false},
		{"Field Name", false},
		{"Field-1", false},
		{"a_1_b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidName(tt.name))
		})
	}
}

func named(t *testing.T, g *model.Graph, class model.Class, name string) *model.Node {
	t.Helper()
	n := g.NewNode(class)
	if name != "" {
		require.NoError(t, n.SetText(model.Name, name))
	}
	return n
}

func TestCheck_Form(t *testing.T) {
	g := model.NewGraph()
	form := g.NewAddressable(model.ClassForm, "Form.F")
	good := named(t, g, model.ClassFormField, "Good")
	empty := named(t, g, model.ClassButton, "")
	bad := named(t, g, model.ClassFormCommand, "2nd")
	bar := named(t, g, model.ClassAutoCommandBar, "")
	param := named(t, g, model.ClassFormParameter, "")
	require.NoError(t, form.AppendAll(model.Items, good, empty))
	require.NoError(t, form.Append(model.Commands, bad))
	require.NoError(t, form.Append(model.Parameters, param))
	require.NoError(t, form.SetChild(model.CommandBar, bar))
	require.NoError(t, g.AttachTop(form))

	c := NewCheck(nil)
	sink := check.NewCollector(c.Definition(), form)
	c.Check(context.Background(), form, sink)

	issues := sink.Issues()
	require.Len(t, issues, 3)
	byNode := make(map[*model.Node]string)
	for _, i := range issues {
		assert.Equal(t, model.Name, i.Feature)
		byNode[i.Node] = i.Message
	}
	assert.Equal(t, "Form named element name is empty", byNode[empty])
	assert.Equal(t, `Form named element name "2nd" is not valid name`, byNode[bad])
	assert.Equal(t, "Form named element name is empty", byNode[param])
	assert.NotContains(t, byNode, bar)
	assert.NotContains(t, byNode, good)
}

func TestCheck_IgnoresOtherObjects(t *testing.T) {
	g := model.NewGraph()
	cat := g.NewAddressable(model.ClassCatalog, "Catalog.A")
	require.NoError(t, g.AttachTop(cat))
	detached := g.NewAddressable(model.ClassForm, "Form.F")

	c := NewCheck(nil)
	for _, top := range []*model.Node{cat, detached, nil} {
		sink := check.NewCollector(c.Definition(), cat)
		c.Check(context.Background(), top, sink)
		assert.Empty(t, sink.Issues())
	}
}

func TestDefinition_TracksNames(t *testing.T) {
	d := NewCheck(nil).Definition().Declaration
	assert.True(t, d.Tracks(model.ClassForm, model.ClassFormGroup, false, model.Name))
	assert.True(t, d.Tracks(model.ClassForm, model.ClassFormAttribute, false, model.Name))
	assert.False(t, d.Tracks(model.ClassForm, model.ClassForm, true, model.Name))
	assert.False(t, d.Tracks(model.ClassForm, model.ClassFormGroup, false, model.ItemID))
}
