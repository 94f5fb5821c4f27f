// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package check

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

type stubCheck struct {
	def      Definition
	variants []Variant
}

func (s stubCheck) Definition() Definition                   { return s.def }
func (s stubCheck) Check(context.Context, *model.Node, Sink) {}
func (s stubCheck) Variants() []Variant                      { return s.variants }

func formDeclaration() Declaration {
	return Declare().
		Top(model.ClassForm, model.Items, model.CommandBar).
		Nested(model.ClassForm, model.ClassFormItem, model.ItemID, model.Items).
		Build()
}

func TestDeclaration_Tracks(t *testing.T) {
	d := formDeclaration()

	assert.True(t, d.Tracks(model.ClassForm, model.ClassForm, true, model.Items))
	assert.True(t, d.Tracks(model.ClassForm, model.ClassFormField, false, model.ItemID))
	assert.True(t, d.Tracks(model.ClassForm, model.ClassAutoCommandBar, false, model.Items))
	assert.False(t, d.Tracks(model.ClassForm, model.ClassFormField, false, model.Name))
	assert.False(t, d.Tracks(model.ClassForm, model.ClassForm, true, model.Attributes))
	assert.False(t, d.Tracks(model.ClassForm, model.ClassFormAttribute, false, model.ItemID))
	assert.False(t, d.Tracks(model.ClassCatalog, model.ClassCatalog, true, model.Items))
}

func TestDeclaration_SupertypeTop(t *testing.T) {
	d := Declare().Top(model.ClassMdObject, model.Name).Build()

	assert.True(t, d.Covers(model.ClassCatalog))
	assert.True(t, d.Tracks(model.ClassSubsystem, model.ClassSubsystem, true, model.Name))
	assert.False(t, d.Covers(model.ClassForm))
}

func TestDeclaration_TracksHolderAndFeature(t *testing.T) {
	d := Declare().
		Nested(model.ClassStandaloneContent, model.ClassStandaloneContentItem, model.Metadata).
		Build()

	assert.True(t, d.TracksHolder(model.ClassStandaloneContent, model.ClassStandaloneContentUsedItem))
	assert.False(t, d.TracksHolder(model.ClassForm, model.ClassStandaloneContentUsedItem))
	assert.True(t, d.TracksFeature(model.Metadata))
	assert.False(t, d.TracksFeature(model.MdObject))
	assert.Equal(t, []model.Class{model.ClassStandaloneContent}, d.TopClasses())
}

func TestDeclaration_BuildIsImmutable(t *testing.T) {
	b := Declare().Top(model.ClassForm, model.Items)
	d := b.Build()
	b.Top(model.ClassForm, model.Attributes)

	assert.Equal(t, []*model.Feature{model.Items}, d.Features(model.ClassForm, model.ClassForm, true))
}

func TestUnion(t *testing.T) {
	u := Union{
		formDeclaration(),
		Declare().Top(model.ClassSubsystem, model.Content).Build(),
	}

	assert.True(t, u.Tracks(model.ClassSubsystem, model.ClassSubsystem, true, model.Content))
	assert.True(t, u.TracksHolder(model.ClassForm, model.ClassButton))
	assert.True(t, u.TracksFeature(model.CommandBar))
	assert.False(t, u.TracksFeature(model.Catalogs))
}

func TestCollector_Idempotent(t *testing.T) {
	g := model.NewGraph()
	form := g.NewAddressable(model.ClassForm, "Form.F")
	item := g.NewNode(model.ClassButton)
	c := NewCollector(Definition{ID: "x", Severity: SeverityMajor}, form)

	c.AddIssue(item, model.ItemID, "first", NoIndex)
	c.AddIssue(item, model.ItemID, "second", NoIndex)
	c.AddIssue(item, model.ItemID, "third", 2)

	issues := c.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, "first", issues[0].Message)
	assert.Equal(t, model.URI("Form.F"), issues[0].TopURI)
	assert.Equal(t, SeverityMajor, issues[0].Severity)
	assert.Equal(t, 2, issues[1].Index)
}

func TestIssue_Record(t *testing.T) {
	g := model.NewGraph()
	sub := g.NewAddressable(model.ClassSubsystem, "Subsystem.S")
	issue := Issue{CheckID: "x", TopURI: "Subsystem.S", Node: sub, Feature: model.Content, Message: "m", Index: 1}

	r := issue.Record()
	assert.Equal(t, "Subsystem", r.Class)
	assert.Equal(t, "content", r.Feature)
	require.NotNil(t, r.Index)
	assert.Equal(t, 1, *r.Index)

	issue.Index = NoIndex
	assert.Nil(t, issue.Record().Index)
}

func TestSeverity_Parse(t *testing.T) {
	s, err := ParseSeverity("Critical")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, s)
	assert.Equal(t, "critical", s.String())

	_, err = ParseSeverity("fatal")
	assert.ErrorIs(t, err, ErrUnknownSeverity)

	var u Severity
	require.NoError(t, u.UnmarshalText([]byte("blocker")))
	assert.Equal(t, SeverityBlocker, u)
}

func TestRegistry(t *testing.T) {
	a := stubCheck{def: Definition{ID: "a", Severity: SeverityMinor, Declaration: formDeclaration()}}
	b := stubCheck{def: Definition{ID: "b", Declaration: Declare().Top(model.ClassSubsystem, model.Content).Build()}}
	r, err := NewRegistry(a, b)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Register(a), ErrDuplicateCheck)
	assert.Len(t, r.Checks(), 2)
	assert.True(t, r.TracksFeature(model.Content))

	require.NoError(t, r.SetEnabled("b", false))
	assert.Len(t, r.Checks(), 1)
	assert.Len(t, r.All(), 2)
	assert.False(t, r.Enabled("b"))
	assert.False(t, r.TracksFeature(model.Content))
	assert.False(t, r.Covers(model.ClassSubsystem))
	assert.True(t, r.Covers(model.ClassForm))

	require.NoError(t, r.SetSeverity("a", SeverityBlocker))
	assert.Equal(t, SeverityBlocker, r.Definition(a).Severity)
	assert.ErrorIs(t, r.SetSeverity("zzz", SeverityBlocker), ErrUnknownCheck)
	assert.ErrorIs(t, r.SetEnabled("zzz", true), ErrUnknownCheck)
}

func TestFindVariant(t *testing.T) {
	v1 := Variant{ID: "one"}
	v2 := Variant{ID: "two"}
	c := stubCheck{def: Definition{ID: "c"}, variants: []Variant{v1, v2}}

	got, err := FindVariant(c, "")
	require.NoError(t, err)
	assert.Equal(t, "one", got.ID)

	got, err = FindVariant(c, "two")
	require.NoError(t, err)
	assert.Equal(t, "two", got.ID)

	_, err = FindVariant(c, "three")
	assert.ErrorIs(t, err, ErrUnknownVariant)

	_, err = FindVariant(stubCheck{def: Definition{ID: "d"}}, "")
	assert.ErrorIs(t, err, ErrNoFix)
}

func TestResults_ReplaceAndForget(t *testing.T) {
	r := NewResults()
	r.Replace("Form.B", "a", []Issue{{CheckID: "a", Message: "b1"}})
	r.Replace("Form.A", "b", []Issue{{CheckID: "b", Message: "a2"}})
	r.Replace("Form.A", "a", []Issue{{CheckID: "a", Message: "a1"}})

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a1", "a2", "b1"}, []string{all[0].Message, all[1].Message, all[2].Message})

	r.Replace("Form.A", "a", nil)
	assert.Len(t, r.ForTop("Form.A"), 1)
	assert.Equal(t, 2, r.Count())

	r.ForgetCheck("b")
	assert.Empty(t, r.ForTop("Form.A"))

	r.Forget("Form.B")
	assert.Zero(t, r.Count())
}
