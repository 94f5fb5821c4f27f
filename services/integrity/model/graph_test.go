// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a map-backed Store for tests.
type memStore struct {
	mu    sync.Mutex
	snaps map[URI]*Snapshot
	loads int
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[URI]*Snapshot)}
}

func (m *memStore) Save(_ context.Context, s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[s.URI] = s
	return nil
}

func (m *memStore) Load(_ context.Context, uri URI) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	s, ok := m.snaps[uri]
	if !ok {
		return nil, errors.New("missing")
	}
	return s, nil
}

func (m *memStore) Delete(_ context.Context, uri URI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, uri)
	return nil
}

func kinds(notes []Notification) []NotificationKind {
	out := make([]NotificationKind, len(notes))
	for i, n := range notes {
		out[i] = n.Kind
	}
	return out
}

func newForm(t *testing.T, g *Graph, uri URI, ids ...int) (*Node, []*Node) {
	t.Helper()
	form := g.NewAddressable(ClassForm, uri)
	items := make([]*Node, 0, len(ids))
	for _, id := range ids {
		item := g.NewNode(ClassFormField)
		require.NoError(t, item.SetInt(ItemID, id))
		require.NoError(t, form.Append(Items, item))
		items = append(items, item)
	}
	require.NoError(t, g.AttachTop(form))
	return form, items
}

func TestClass_Is(t *testing.T) {
	assert.True(t, ClassFormField.Is(ClassFormItem))
	assert.True(t, ClassAutoCommandBar.Is(ClassFormItem))
	assert.True(t, ClassCatalog.Is(ClassMdObject))
	assert.True(t, ClassForm.Is(ClassForm))
	assert.False(t, ClassForm.Is(ClassFormItem))
	assert.False(t, ClassStandaloneContent.Is(ClassMdObject))
	assert.True(t, ClassStandaloneContentUsedItem.Is(ClassStandaloneContentItem))
}

func TestParseClass(t *testing.T) {
	c, err := ParseClass("FormTable")
	require.NoError(t, err)
	assert.Equal(t, ClassFormTable, c)

	_, err = ParseClass("Widget")
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestClass_FeatureByName(t *testing.T) {
	f, ok := ClassSubsystem.FeatureByName("subsystems")
	require.True(t, ok)
	assert.Same(t, NestedSubsystems, f)

	f, ok = ClassConfiguration.FeatureByName("subsystems")
	require.True(t, ok)
	assert.Same(t, Subsystems, f)
}

func TestGraph_AttachTopEmitsCreateAndResolve(t *testing.T) {
	g := NewGraph()
	form := g.NewAddressable(ClassForm, "Form.F")
	attr := g.NewAddressable(ClassFormAttribute, "Form.F.Attr")
	require.NoError(t, form.Append(Attributes, attr))
	assert.Zero(t, g.PendingNotifications(), "detached nodes do not notify")

	require.NoError(t, g.AttachTop(form))

	notes := g.Flush()
	assert.Equal(t, []NotificationKind{NotifyCreate, NotifyResolve, NotifyResolve}, kinds(notes))
	assert.Equal(t, URI("Form.F.Attr"), notes[2].URI)
	assert.True(t, attr.IsLive())
	assert.Same(t, form, attr.Top())
	assert.Empty(t, g.Flush())
}

func TestGraph_AttachTopErrors(t *testing.T) {
	g := NewGraph()
	form, items := newForm(t, g, "Form.F", 1)

	assert.ErrorIs(t, g.AttachTop(form), ErrAttached)
	assert.ErrorIs(t, g.AttachTop(items[0]), ErrAttached)
	assert.ErrorIs(t, g.AttachTop(g.NewNode(ClassForm)), ErrMissingURI)
	assert.ErrorIs(t, g.AttachTop(g.NewAddressable(ClassForm, "Form.F")), ErrDuplicateURI)
	assert.ErrorIs(t, g.AttachTop(NewGraph().NewAddressable(ClassForm, "Form.X")), ErrForeignNode)
}

func TestGraph_DetachTop(t *testing.T) {
	g := NewGraph()
	form, items := newForm(t, g, "Form.F", 1, 2)
	g.Flush()

	require.NoError(t, g.DetachTop(form))

	notes := g.Flush()
	require.Len(t, notes, 1)
	assert.Equal(t, NotifyDetach, notes[0].Kind)
	assert.Equal(t, URI("Form.F"), notes[0].URI)
	assert.Equal(t, ClassForm, notes[0].Class)
	assert.False(t, items[0].IsLive())
	assert.Nil(t, items[0].Top())
	_, ok := g.NodeByID(items[1].ID())
	assert.False(t, ok)
	assert.Empty(t, g.TopURIs())
	assert.ErrorIs(t, g.DetachTop(form), ErrNotTop)
}

func TestNode_AttributeNotifications(t *testing.T) {
	g := NewGraph()
	_, items := newForm(t, g, "Form.F", 1)
	g.Flush()

	require.NoError(t, items[0].SetInt(ItemID, 7))
	require.NoError(t, items[0].Unset(ItemID))
	require.NoError(t, items[0].Unset(ItemID))

	notes := g.Flush()
	require.Equal(t, []NotificationKind{NotifySet, NotifyUnset}, kinds(notes))
	assert.Equal(t, 1, notes[0].OldValue)
	assert.Equal(t, 7, notes[0].NewValue)
	assert.Equal(t, 7, notes[1].OldValue)
	assert.False(t, items[0].IsSet(ItemID))
	assert.Equal(t, 0, items[0].Int(ItemID))
}

func TestNode_SchemaErrors(t *testing.T) {
	g := NewGraph()
	form := g.NewAddressable(ClassForm, "Form.F")
	field := g.NewNode(ClassFormField)

	assert.ErrorIs(t, form.SetInt(ItemID, 1), ErrUnknownFeature)
	assert.ErrorIs(t, field.SetText(ItemID, "x"), ErrFeatureKind)
	assert.ErrorIs(t, form.Append(Attributes, field), ErrClassMismatch)
	assert.ErrorIs(t, form.SetChild(Items, field), ErrFeatureKind)
	assert.ErrorIs(t, form.Insert(Items, 3, field), ErrIndexOutOfRange)

	require.NoError(t, form.Append(Items, field))
	assert.ErrorIs(t, form.Append(Items, field), ErrAttached)
}

func TestNode_InsertRejectsCycle(t *testing.T) {
	g := NewGraph()
	group := g.NewNode(ClassFormGroup)
	inner := g.NewNode(ClassFormGroup)
	require.NoError(t, group.Append(Items, inner))

	assert.ErrorIs(t, inner.Append(Items, group), ErrCycle)
}

func TestNode_ContainmentNotifications(t *testing.T) {
	g := NewGraph()
	form, items := newForm(t, g, "Form.F", 1, 2, 3)
	g.Flush()

	path := g.NewAddressable(ClassDataPath, "Form.F.Path")
	require.NoError(t, items[0].SetChild(Path, path))
	require.NoError(t, form.Remove(items[0]))
	require.NoError(t, form.RemoveChildren(Items, items[1], items[2]))

	notes := g.Flush()
	assert.Equal(t, []NotificationKind{
		NotifySet, NotifyResolve,
		NotifyRemove, NotifyDetach,
		NotifyRemoveMany,
	}, kinds(notes))
	assert.Equal(t, 0, notes[2].Position)
	assert.Equal(t, []*Node{items[0]}, notes[2].RemovedNodes())
	assert.Equal(t, []*Node{items[1], items[2]}, notes[4].RemovedNodes())
	assert.False(t, path.IsLive())
	assert.Empty(t, form.Children(Items))
}

func TestNode_UnsetSingleContainment(t *testing.T) {
	g := NewGraph()
	form := g.NewAddressable(ClassForm, "Form.F")
	bar := g.NewNode(ClassAutoCommandBar)
	require.NoError(t, form.SetChild(CommandBar, bar))
	require.NoError(t, g.AttachTop(form))
	g.Flush()

	require.NoError(t, form.Unset(CommandBar))

	notes := g.Flush()
	require.Len(t, notes, 1)
	assert.Equal(t, NotifyUnset, notes[0].Kind)
	assert.Same(t, bar, notes[0].OldValue)
	assert.Nil(t, form.Child(CommandBar))
}

func TestNode_Delete(t *testing.T) {
	g := NewGraph()
	form, items := newForm(t, g, "Form.F", 1)
	g.Flush()

	require.NoError(t, items[0].Delete())
	require.NoError(t, form.Delete())

	assert.Equal(t, []NotificationKind{NotifyRemove, NotifyDetach}, kinds(g.Flush()))
	assert.NoError(t, g.NewNode(ClassButton).Delete())
}

func TestNode_Move(t *testing.T) {
	g := NewGraph()
	form, items := newForm(t, g, "Form.F", 1, 2, 3)
	g.Flush()

	require.NoError(t, form.Move(Items, 0, 2))

	assert.Equal(t, []*Node{items[1], items[2], items[0]}, form.Children(Items))
	notes := g.Flush()
	require.Len(t, notes, 1)
	assert.Equal(t, NotifyMove, notes[0].Kind)
	assert.Equal(t, 2, notes[0].Position)
	assert.ErrorIs(t, form.Move(Items, 0, 5), ErrIndexOutOfRange)
}

func TestNode_References(t *testing.T) {
	g := NewGraph()
	sub := g.NewAddressable(ClassSubsystem, "Subsystem.S")
	require.NoError(t, g.AttachTop(sub))
	g.Flush()

	require.NoError(t, sub.AddRef(Content, "Catalog.A"))
	require.NoError(t, sub.AddRefs(Content, "Catalog.B", "Catalog.C", "Catalog.B"))
	require.NoError(t, sub.RemoveRefAt(Content, 0))
	removed := sub.RemoveRefsIf(Content, func(u URI) bool { return u == "Catalog.B" })

	assert.Equal(t, 2, removed)
	assert.Equal(t, []URI{"Catalog.C"}, sub.Refs(Content))
	notes := g.Flush()
	assert.Equal(t, []NotificationKind{NotifyAdd, NotifyAddMany, NotifyRemove, NotifyRemoveMany}, kinds(notes))
	assert.Equal(t, []URI{"Catalog.B", "Catalog.B"}, notes[3].OldValue)

	assert.ErrorIs(t, sub.SetRef(Content, "x"), ErrFeatureKind)
	assert.Zero(t, sub.RemoveRefsIf(Content, func(URI) bool { return false }))
}

func TestNode_SingleReference(t *testing.T) {
	g := NewGraph()
	cat := g.NewAddressable(ClassCatalog, "Catalog.A")
	require.NoError(t, g.AttachTop(cat))
	g.Flush()

	require.NoError(t, cat.SetRef(DefaultForm, "Form.F"))
	require.NoError(t, cat.SetRef(DefaultForm, ""))
	require.NoError(t, cat.SetRef(DefaultForm, ""))

	notes := g.Flush()
	assert.Equal(t, []NotificationKind{NotifySet, NotifyUnset}, kinds(notes))
	assert.Equal(t, URI("Form.F"), notes[1].OldValue)
	assert.Equal(t, URI(""), cat.Ref(DefaultForm))
}

func TestNode_WalkDocumentOrder(t *testing.T) {
	g := NewGraph()
	form := g.NewAddressable(ClassForm, "Form.F")
	bar := g.NewNode(ClassAutoCommandBar)
	group := g.NewNode(ClassFormGroup)
	inner := g.NewNode(ClassButton)
	require.NoError(t, group.Append(Items, inner))
	require.NoError(t, form.Append(Items, group))
	require.NoError(t, form.SetChild(CommandBar, bar))

	var seen []*Node
	form.Walk(func(n *Node) bool {
		seen = append(seen, n)
		return true
	})
	assert.Equal(t, []*Node{form, bar, group, inner}, seen)

	count := 0
	assert.False(t, form.Walk(func(*Node) bool {
		count++
		return count < 2
	}))
	assert.Equal(t, 2, count)
}

func TestGraph_Resolve(t *testing.T) {
	g := NewGraph()
	form := g.NewAddressable(ClassForm, "Form.F")
	attr := g.NewAddressable(ClassFormAttribute, "Form.F.Attr")
	require.NoError(t, form.Append(Attributes, attr))

	assert.False(t, g.IsResolved("Form.F.Attr"), "detached nodes do not resolve")
	require.NoError(t, g.AttachTop(form))

	n, ok := g.Resolve("Form.F.Attr")
	require.True(t, ok)
	assert.Same(t, attr, n)
	_, ok = g.Top("Form.F.Attr")
	assert.False(t, ok, "nested nodes are not top objects")
	assert.False(t, g.IsResolved(""))
}

func TestGraph_TopURIsByClass(t *testing.T) {
	g := NewGraph()
	newForm(t, g, "Form.F")
	require.NoError(t, g.AttachTop(g.NewAddressable(ClassCatalog, "Catalog.A")))
	require.NoError(t, g.AttachTop(g.NewAddressable(ClassSubsystem, "Subsystem.S")))

	assert.Equal(t, []URI{"Form.F", "Catalog.A", "Subsystem.S"}, g.TopURIs())
	assert.Equal(t, []URI{"Catalog.A", "Subsystem.S"}, g.TopURIs(ClassMdObject))
	assert.Equal(t, []URI{"Form.F"}, g.TopURIs(ClassForm))
}

func TestGraph_EvictAndReload(t *testing.T) {
	store := newMemStore()
	g := NewGraph(WithStore(store))
	form, items := newForm(t, g, "Form.F", 4, 5)
	attr := g.NewAddressable(ClassFormAttribute, "Form.F.Attr")
	require.NoError(t, form.Append(Attributes, attr))
	g.Flush()

	require.NoError(t, g.Evict(context.Background(), "Form.F"))
	assert.True(t, g.IsEvicted("Form.F"))
	assert.False(t, items[0].IsLive())
	assert.Zero(t, g.PendingNotifications(), "eviction emits nothing")
	assert.Equal(t, []URI{"Form.F"}, g.TopURIs())

	n, ok := g.NodeByID(items[1].ID())
	require.True(t, ok)
	assert.Equal(t, 5, n.Int(ItemID))
	assert.NotSame(t, items[1], n)
	assert.False(t, g.IsEvicted("Form.F"))
	assert.Equal(t, 1, store.loads)

	reloaded, ok := g.Top("Form.F")
	require.True(t, ok)
	assert.Same(t, reloaded, n.Top())
	assert.True(t, g.IsResolved("Form.F.Attr"))
	assert.Zero(t, g.PendingNotifications(), "reload emits nothing")
}

func TestGraph_ResolveReloadsNestedURI(t *testing.T) {
	store := newMemStore()
	g := NewGraph(WithStore(store))
	form := g.NewAddressable(ClassForm, "Form.F")
	require.NoError(t, form.Append(Attributes, g.NewAddressable(ClassFormAttribute, "Form.F.Attr")))
	require.NoError(t, g.AttachTop(form))
	require.NoError(t, g.Evict(context.Background(), "Form.F"))

	assert.ErrorIs(t, g.AttachTop(g.NewAddressable(ClassForm, "Form.F")), ErrDuplicateURI)
	assert.True(t, g.IsResolved("Form.F.Attr"))
	assert.Equal(t, 1, store.loads)
}

func TestGraph_EvictWithoutStoreIsNoop(t *testing.T) {
	g := NewGraph()
	_, items := newForm(t, g, "Form.F", 1)

	require.NoError(t, g.Evict(context.Background(), "Form.F"))
	assert.True(t, items[0].IsLive())
	assert.False(t, g.IsEvicted("Form.F"))
}

func TestGraph_EvictRejectsNonTop(t *testing.T) {
	g := NewGraph(WithStore(newMemStore()))
	assert.ErrorIs(t, g.Evict(context.Background(), "Form.Missing"), ErrNotTop)
}

func TestGraph_ReloadFailureIsNotFound(t *testing.T) {
	store := newMemStore()
	g := NewGraph(WithStore(store))
	_, items := newForm(t, g, "Form.F", 1)
	require.NoError(t, g.Evict(context.Background(), "Form.F"))
	require.NoError(t, store.Delete(context.Background(), "Form.F"))

	_, ok := g.NodeByID(items[0].ID())
	assert.False(t, ok)
	assert.True(t, g.IsEvicted("Form.F"))
}

func TestGraph_NewNodePanicsOnAbstractClass(t *testing.T) {
	assert.Panics(t, func() { NewGraph().NewNode(ClassFormItem) })
}

func TestGraph_MaterializeRejectsOutOfRangeIntegers(t *testing.T) {
	field := func(v any) *Snapshot {
		return &Snapshot{Class: "FormField", Attrs: map[string]any{"id": v}}
	}

	tests := []struct {
		name  string
		value any
	}{
		{"huge float", float64(1e20)},
		{"float at 2^63", float64(1 << 63)},
		{"negative float", float64(-1e20)},
		{"max uint64", uint64(math.MaxUint64)},
		{"uint64 just past int", uint64(math.MaxInt) + 1},
		{"json number", json.Number("18446744073709551615")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			_, err := g.Materialize(field(tt.value))
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}

	g := NewGraph()
	for _, v := range []any{uint64(math.MaxInt), int64(math.MinInt), float64(-5), json.Number("42")} {
		n, err := g.Materialize(field(v))
		require.NoError(t, err, "%v", v)
		assert.NotZero(t, n.Int(ItemID))
	}
}
