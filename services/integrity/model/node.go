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
	"fmt"
	"slices"
)

// ID is the graph-unique identity of a node. IDs survive eviction and reload.
type ID uint64

// URI is the stable address of an addressable node.
type URI string

// Node is one object in the graph.
//
// Description:
//
//	A node has a class, an optional URI (top objects always have one),
//	scalar attribute values, owned children per containment feature and
//	URI lists per reference feature. Nodes are created by a Graph and are
//	live while they belong to an attached top object.
//
// Thread Safety:
//
//	Reads are safe for concurrent use while no goroutine mutates the graph.
//	Mutations are single-writer.
type Node struct {
	id      ID
	class   Class
	uri     URI
	graph   *Graph
	parent  *Node
	feature *Feature
	live    bool

	values   map[*Feature]any
	children map[*Feature][]*Node
	refs     map[*Feature][]URI
}

// ===== IDENTITY AND NAVIGATION =====

// ID returns the node's graph-unique identity.
func (n *Node) ID() ID { return n.id }

// Class returns the node's class.
func (n *Node) Class() Class { return n.class }

// URI returns the node's address, or "" for nested non-addressable nodes.
func (n *Node) URI() URI { return n.uri }

// Graph returns the graph that created the node.
func (n *Node) Graph() *Graph { return n.graph }

// Parent returns the containing node, or nil for roots.
func (n *Node) Parent() *Node { return n.parent }

// ContainingFeature returns the parent feature holding this node.
func (n *Node) ContainingFeature() *Feature { return n.feature }

// IsLive reports whether the node belongs to an attached top object.
func (n *Node) IsLive() bool { return n.live }

// IsTop reports whether the node is an attached top object.
func (n *Node) IsTop() bool { return n.live && n.parent == nil }

// Top returns the top object that owns the node, or nil when the node is
// not attached to the graph.
func (n *Node) Top() *Node {
	if n == nil || !n.live {
		return nil
	}
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// String returns a short debug form such as "FormField#12".
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.uri != "" {
		return fmt.Sprintf("%s#%d(%s)", n.class, n.id, n.uri)
	}
	return fmt.Sprintf("%s#%d", n.class, n.id)
}

// ===== READS =====

// Int returns an int attribute value, or 0 when unset.
func (n *Node) Int(f *Feature) int {
	v, _ := n.values[f].(int)
	return v
}

// Text returns a string attribute value, or "" when unset.
func (n *Node) Text(f *Feature) string {
	v, _ := n.values[f].(string)
	return v
}

// IsSet reports whether the feature has a value.
func (n *Node) IsSet(f *Feature) bool {
	switch f.Kind {
	case KindAttribute:
		_, ok := n.values[f]
		return ok
	case KindContainment:
		return len(n.children[f]) > 0
	case KindReference:
		return len(n.refs[f]) > 0
	}
	return false
}

// Children returns a copy of the children held by a containment feature.
func (n *Node) Children(f *Feature) []*Node {
	return slices.Clone(n.children[f])
}

// Child returns the child of a single-valued containment, or nil.
func (n *Node) Child(f *Feature) *Node {
	if cs := n.children[f]; len(cs) > 0 {
		return cs[0]
	}
	return nil
}

// Contents returns every direct child in feature order.
func (n *Node) Contents() []*Node {
	var out []*Node
	for _, f := range n.class.Features() {
		if f.Kind == KindContainment {
			out = append(out, n.children[f]...)
		}
	}
	return out
}

// Refs returns a copy of the URIs held by a reference feature.
func (n *Node) Refs(f *Feature) []URI {
	return slices.Clone(n.refs[f])
}

// Ref returns the URI of a single-valued reference, or "".
func (n *Node) Ref(f *Feature) URI {
	if rs := n.refs[f]; len(rs) > 0 {
		return rs[0]
	}
	return ""
}

// IndexOf returns the position of child within its containing feature, or -1.
func (n *Node) IndexOf(child *Node) int {
	if child == nil || child.parent != n {
		return -1
	}
	return slices.Index(n.children[child.feature], child)
}

// Walk visits the node and its descendants in document order.
//
// Description:
//
//	Pre-order traversal over containment features in class order. The
//	traversal stops as soon as fn returns false.
//
// Outputs:
//
//	bool - False if fn stopped the traversal.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, f := range n.class.Features() {
		if f.Kind != KindContainment {
			continue
		}
		for _, c := range n.children[f] {
			if !c.Walk(fn) {
				return false
			}
		}
	}
	return true
}

// ===== ATTRIBUTES =====

// SetInt sets an int attribute.
func (n *Node) SetInt(f *Feature, v int) error {
	if err := n.expect(f, KindAttribute); err != nil {
		return err
	}
	if f.Value != ValueInt {
		return fmt.Errorf("%w: %s.%s is not an int attribute", ErrFeatureKind, n.class, f)
	}
	old := n.values[f]
	n.values[f] = v
	n.emit(Notification{Kind: NotifySet, Node: n, Feature: f, OldValue: old, NewValue: v, Position: NoPosition})
	return nil
}

// SetText sets a string attribute.
func (n *Node) SetText(f *Feature, v string) error {
	if err := n.expect(f, KindAttribute); err != nil {
		return err
	}
	if f.Value != ValueString {
		return fmt.Errorf("%w: %s.%s is not a string attribute", ErrFeatureKind, n.class, f)
	}
	old := n.values[f]
	n.values[f] = v
	n.emit(Notification{Kind: NotifySet, Node: n, Feature: f, OldValue: old, NewValue: v, Position: NoPosition})
	return nil
}

// Unset clears a feature of any kind. Clearing a list removes every value.
func (n *Node) Unset(f *Feature) error {
	if !n.class.HasFeature(f) {
		return fmt.Errorf("%w: %s has no feature %s", ErrUnknownFeature, n.class, f)
	}
	switch {
	case f.Kind == KindAttribute:
		old, ok := n.values[f]
		if !ok {
			return nil
		}
		delete(n.values, f)
		n.emit(Notification{Kind: NotifyUnset, Node: n, Feature: f, OldValue: old, Position: NoPosition})
	case f.Kind == KindContainment && !f.Many:
		if child := n.Child(f); child != nil {
			return n.Remove(child)
		}
	case f.Kind == KindContainment:
		return n.RemoveChildren(f, n.Children(f)...)
	case !f.Many:
		return n.SetRef(f, "")
	default:
		n.RemoveRefsIf(f, func(URI) bool { return true })
	}
	return nil
}

// ===== CONTAINMENT =====

// SetChild replaces the child of a single-valued containment. A nil child
// unsets the feature.
func (n *Node) SetChild(f *Feature, child *Node) error {
	if err := n.expect(f, KindContainment); err != nil {
		return err
	}
	if f.Many {
		return fmt.Errorf("%w: %s.%s is a list", ErrFeatureKind, n.class, f)
	}
	if child == nil {
		return n.Unset(f)
	}
	if err := n.checkInsertable(f, child); err != nil {
		return err
	}
	old := n.Child(f)
	if old != nil {
		old.parent, old.feature = nil, nil
	}
	n.children[f] = []*Node{child}
	child.parent, child.feature = n, f
	if !n.live {
		return nil
	}
	var oldValue any
	if old != nil {
		oldValue = old
	}
	notes := []Notification{{Kind: NotifySet, Node: n, Feature: f, OldValue: oldValue, NewValue: child, Position: NoPosition}}
	if old != nil {
		notes = append(notes, n.graph.releaseSubtree(old)...)
	}
	notes = append(notes, n.graph.adoptSubtree(child)...)
	n.graph.emit(notes...)
	return nil
}

// Append adds a child at the end of a list containment.
func (n *Node) Append(f *Feature, child *Node) error {
	return n.Insert(f, len(n.children[f]), child)
}

// Insert adds a child at position pos of a list containment.
func (n *Node) Insert(f *Feature, pos int, child *Node) error {
	if err := n.expectList(f, KindContainment); err != nil {
		return err
	}
	if pos < 0 || pos > len(n.children[f]) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, pos)
	}
	if err := n.checkInsertable(f, child); err != nil {
		return err
	}
	n.children[f] = slices.Insert(n.children[f], pos, child)
	child.parent, child.feature = n, f
	if !n.live {
		return nil
	}
	notes := []Notification{{Kind: NotifyAdd, Node: n, Feature: f, NewValue: child, Position: pos}}
	notes = append(notes, n.graph.adoptSubtree(child)...)
	n.graph.emit(notes...)
	return nil
}

// AppendAll adds several children at the end of a list containment as one
// change.
func (n *Node) AppendAll(f *Feature, children ...*Node) error {
	if err := n.expectList(f, KindContainment); err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}
	for i, c := range children {
		if err := n.checkInsertable(f, c); err != nil {
			return err
		}
		if slices.Contains(children[:i], c) {
			return fmt.Errorf("%w: %s listed twice", ErrAttached, c)
		}
	}
	pos := len(n.children[f])
	n.children[f] = append(n.children[f], children...)
	for _, c := range children {
		c.parent, c.feature = n, f
	}
	if !n.live {
		return nil
	}
	notes := []Notification{{Kind: NotifyAddMany, Node: n, Feature: f, NewValue: slices.Clone(children), Position: pos}}
	for _, c := range children {
		notes = append(notes, n.graph.adoptSubtree(c)...)
	}
	n.graph.emit(notes...)
	return nil
}

// Remove detaches a direct child from this node.
func (n *Node) Remove(child *Node) error {
	if child == nil || child.parent != n {
		return fmt.Errorf("%w: %s is not a child of %s", ErrNodeNotFound, child, n)
	}
	f := child.feature
	idx := slices.Index(n.children[f], child)
	n.children[f] = slices.Delete(n.children[f], idx, idx+1)
	if len(n.children[f]) == 0 {
		delete(n.children, f)
	}
	child.parent, child.feature = nil, nil
	if !n.live {
		return nil
	}
	note := Notification{Kind: NotifyRemove, Node: n, Feature: f, OldValue: child, Position: idx}
	if !f.Many {
		note = Notification{Kind: NotifyUnset, Node: n, Feature: f, OldValue: child, Position: NoPosition}
	}
	n.graph.emit(append([]Notification{note}, n.graph.releaseSubtree(child)...)...)
	return nil
}

// RemoveChildren detaches several children of one list containment as one
// change.
func (n *Node) RemoveChildren(f *Feature, children ...*Node) error {
	if err := n.expectList(f, KindContainment); err != nil {
		return err
	}
	for _, c := range children {
		if c == nil || c.parent != n || c.feature != f {
			return fmt.Errorf("%w: %s is not held by %s.%s", ErrNodeNotFound, c, n.class, f)
		}
	}
	switch len(children) {
	case 0:
		return nil
	case 1:
		return n.Remove(children[0])
	}
	n.children[f] = slices.DeleteFunc(n.children[f], func(c *Node) bool {
		return slices.Contains(children, c)
	})
	if len(n.children[f]) == 0 {
		delete(n.children, f)
	}
	for _, c := range children {
		c.parent, c.feature = nil, nil
	}
	if !n.live {
		return nil
	}
	notes := []Notification{{Kind: NotifyRemoveMany, Node: n, Feature: f, OldValue: slices.Clone(children), Position: NoPosition}}
	for _, c := range children {
		notes = append(notes, n.graph.releaseSubtree(c)...)
	}
	n.graph.emit(notes...)
	return nil
}

// Delete removes the node from its container, or detaches it from the graph
// when it is a top object. Deleting a detached root is a no-op.
func (n *Node) Delete() error {
	switch {
	case n.parent != nil:
		return n.parent.Remove(n)
	case n.IsTop():
		return n.graph.DetachTop(n)
	default:
		return nil
	}
}

// Move reorders a value of a list feature.
func (n *Node) Move(f *Feature, from, to int) error {
	if !n.class.HasFeature(f) {
		return fmt.Errorf("%w: %s has no feature %s", ErrUnknownFeature, n.class, f)
	}
	if f.Kind == KindAttribute || !f.Many {
		return fmt.Errorf("%w: %s.%s is not a list", ErrFeatureKind, n.class, f)
	}
	var moved any
	if f.Kind == KindContainment {
		list := n.children[f]
		if err := checkMove(len(list), from, to); err != nil {
			return err
		}
		v := list[from]
		n.children[f] = slices.Insert(slices.Delete(list, from, from+1), to, v)
		moved = v
	} else {
		list := n.refs[f]
		if err := checkMove(len(list), from, to); err != nil {
			return err
		}
		v := list[from]
		n.refs[f] = slices.Insert(slices.Delete(list, from, from+1), to, v)
		moved = v
	}
	n.emit(Notification{Kind: NotifyMove, Node: n, Feature: f, OldValue: from, NewValue: moved, Position: to})
	return nil
}

func checkMove(size, from, to int) error {
	if from < 0 || from >= size || to < 0 || to >= size {
		return fmt.Errorf("%w: move %d -> %d of %d", ErrIndexOutOfRange, from, to, size)
	}
	return nil
}

// ===== REFERENCES =====

// SetRef sets a single-valued reference. An empty URI unsets it.
func (n *Node) SetRef(f *Feature, uri URI) error {
	if err := n.expect(f, KindReference); err != nil {
		return err
	}
	if f.Many {
		return fmt.Errorf("%w: %s.%s is a list", ErrFeatureKind, n.class, f)
	}
	old := n.Ref(f)
	if uri == "" {
		if old == "" {
			return nil
		}
		delete(n.refs, f)
		n.emit(Notification{Kind: NotifyUnset, Node: n, Feature: f, OldValue: old, Position: NoPosition})
		return nil
	}
	n.refs[f] = []URI{uri}
	var oldValue any
	if old != "" {
		oldValue = old
	}
	n.emit(Notification{Kind: NotifySet, Node: n, Feature: f, OldValue: oldValue, NewValue: uri, Position: NoPosition})
	return nil
}

// AddRef appends a URI to a list reference.
func (n *Node) AddRef(f *Feature, uri URI) error {
	if err := n.expectList(f, KindReference); err != nil {
		return err
	}
	pos := len(n.refs[f])
	n.refs[f] = append(n.refs[f], uri)
	n.emit(Notification{Kind: NotifyAdd, Node: n, Feature: f, NewValue: uri, Position: pos})
	return nil
}

// AddRefs appends several URIs to a list reference as one change.
func (n *Node) AddRefs(f *Feature, uris ...URI) error {
	if err := n.expectList(f, KindReference); err != nil {
		return err
	}
	if len(uris) == 0 {
		return nil
	}
	pos := len(n.refs[f])
	n.refs[f] = append(n.refs[f], uris...)
	n.emit(Notification{Kind: NotifyAddMany, Node: n, Feature: f, NewValue: slices.Clone(uris), Position: pos})
	return nil
}

// RemoveRefAt removes the URI at position idx of a list reference.
func (n *Node) RemoveRefAt(f *Feature, idx int) error {
	if err := n.expectList(f, KindReference); err != nil {
		return err
	}
	list := n.refs[f]
	if idx < 0 || idx >= len(list) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, idx)
	}
	old := list[idx]
	n.refs[f] = slices.Delete(list, idx, idx+1)
	if len(n.refs[f]) == 0 {
		delete(n.refs, f)
	}
	n.emit(Notification{Kind: NotifyRemove, Node: n, Feature: f, OldValue: old, Position: idx})
	return nil
}

// RemoveRefsIf removes every URI of a list reference matching pred and
// returns how many were removed. A single removal is reported as a remove,
// several as one remove-many.
func (n *Node) RemoveRefsIf(f *Feature, pred func(URI) bool) int {
	if n.expectList(f, KindReference) != nil {
		return 0
	}
	var (
		removed []URI
		first   = NoPosition
		kept    = make([]URI, 0, len(n.refs[f]))
	)
	for i, u := range n.refs[f] {
		if pred(u) {
			if first == NoPosition {
				first = i
			}
			removed = append(removed, u)
			continue
		}
		kept = append(kept, u)
	}
	if len(removed) == 0 {
		return 0
	}
	if len(kept) == 0 {
		delete(n.refs, f)
	} else {
		n.refs[f] = kept
	}
	if len(removed) == 1 {
		n.emit(Notification{Kind: NotifyRemove, Node: n, Feature: f, OldValue: removed[0], Position: first})
	} else {
		n.emit(Notification{Kind: NotifyRemoveMany, Node: n, Feature: f, OldValue: removed, Position: NoPosition})
	}
	return len(removed)
}

// ===== INTERNAL =====

func (n *Node) expect(f *Feature, kind FeatureKind) error {
	if f == nil || !n.class.HasFeature(f) {
		return fmt.Errorf("%w: %s has no feature %s", ErrUnknownFeature, n.class, f)
	}
	if f.Kind != kind {
		return fmt.Errorf("%w: %s.%s is a %s, not a %s", ErrFeatureKind, n.class, f, f.Kind, kind)
	}
	return nil
}

func (n *Node) expectList(f *Feature, kind FeatureKind) error {
	if err := n.expect(f, kind); err != nil {
		return err
	}
	if !f.Many {
		return fmt.Errorf("%w: %s.%s is not a list", ErrFeatureKind, n.class, f)
	}
	return nil
}

func (n *Node) checkInsertable(f *Feature, child *Node) error {
	if child == nil {
		return fmt.Errorf("%w: nil child", ErrNodeNotFound)
	}
	if child.graph != n.graph {
		return ErrForeignNode
	}
	if child.parent != nil || child.live {
		return fmt.Errorf("%w: %s", ErrAttached, child)
	}
	if f.Type != ClassUnknown && !child.class.Is(f.Type) {
		return fmt.Errorf("%w: %s.%s does not accept %s", ErrClassMismatch, n.class, f, child.class)
	}
	for cur := n; cur != nil; cur = cur.parent {
		if cur == child {
			return fmt.Errorf("%w: %s", ErrCycle, child)
		}
	}
	if n.live {
		return n.graph.checkURIs(child)
	}
	return nil
}

func (n *Node) emit(note Notification) {
	if n.live {
		n.graph.emit(note)
	}
}
