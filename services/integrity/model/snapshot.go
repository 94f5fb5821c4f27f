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
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// Snapshot is the serializable form of a node subtree.
//
// Attribute, child and reference maps are keyed by feature name. Snapshots
// written by the graph carry node IDs; hand-written documents may omit them.
type Snapshot struct {
	ID       ID                     `json:"id,omitempty" yaml:"id,omitempty"`
	Class    string                 `json:"class" yaml:"class"`
	URI      URI                    `json:"uri,omitempty" yaml:"uri,omitempty"`
	Attrs    map[string]any         `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Children map[string][]*Snapshot `json:"children,omitempty" yaml:"children,omitempty"`
	Refs     map[string][]URI       `json:"refs,omitempty" yaml:"refs,omitempty"`
}

// SnapshotOf captures the subtree rooted at n.
func SnapshotOf(n *Node) *Snapshot {
	s := &Snapshot{ID: n.id, Class: n.class.String(), URI: n.uri}
	for _, f := range n.class.Features() {
		switch f.Kind {
		case KindAttribute:
			if v, ok := n.values[f]; ok {
				if s.Attrs == nil {
					s.Attrs = make(map[string]any)
				}
				s.Attrs[f.Name] = v
			}
		case KindContainment:
			for _, c := range n.children[f] {
				if s.Children == nil {
					s.Children = make(map[string][]*Snapshot)
				}
				s.Children[f.Name] = append(s.Children[f.Name], SnapshotOf(c))
			}
		case KindReference:
			if rs := n.refs[f]; len(rs) > 0 {
				if s.Refs == nil {
					s.Refs = make(map[string][]URI)
				}
				s.Refs[f.Name] = append([]URI(nil), rs...)
			}
		}
	}
	return s
}

// StripIDs clears node IDs in the whole snapshot tree.
func (s *Snapshot) StripIDs() {
	s.ID = 0
	for _, cs := range s.Children {
		for _, c := range cs {
			c.StripIDs()
		}
	}
}

// Materialize builds a detached subtree from a snapshot with fresh node IDs.
//
// Outputs:
//
//	*Node - Detached root; attach it with AttachTop or a containment.
//	error - ErrUnknownClass, ErrUnknownFeature or ErrInvalidSnapshot.
func (g *Graph) Materialize(s *Snapshot) (*Node, error) {
	return g.materialize(s, false)
}

func (g *Graph) materialize(s *Snapshot, keepIDs bool) (*Node, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil node", ErrInvalidSnapshot)
	}
	class, err := ParseClass(s.Class)
	if err != nil {
		return nil, err
	}
	if class.IsAbstract() {
		return nil, fmt.Errorf("%w: %s", ErrAbstractClass, class)
	}
	var n *Node
	if keepIDs && s.ID != 0 {
		n = g.newNode(s.ID, class, s.URI)
	} else {
		n = g.NewAddressable(class, s.URI)
	}

	for name, v := range s.Attrs {
		f, err := snapshotFeature(class, name, KindAttribute)
		if err != nil {
			return nil, err
		}
		val, err := attrValue(f, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", class, name, err)
		}
		n.values[f] = val
	}
	for name, uris := range s.Refs {
		f, err := snapshotFeature(class, name, KindReference)
		if err != nil {
			return nil, err
		}
		if !f.Many && len(uris) > 1 {
			return nil, fmt.Errorf("%w: %s.%s holds %d values", ErrInvalidSnapshot, class, name, len(uris))
		}
		if len(uris) > 0 {
			n.refs[f] = append([]URI(nil), uris...)
		}
	}
	// Children are materialized in schema feature order so IDs come out in
	// document order.
	names := make([]string, 0, len(s.Children))
	for name := range s.Children {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return featureRank(class, names[i]) < featureRank(class, names[j]) })
	for _, name := range names {
		f, err := snapshotFeature(class, name, KindContainment)
		if err != nil {
			return nil, err
		}
		kids := s.Children[name]
		if !f.Many && len(kids) > 1 {
			return nil, fmt.Errorf("%w: %s.%s holds %d values", ErrInvalidSnapshot, class, name, len(kids))
		}
		for _, ks := range kids {
			child, err := g.materialize(ks, keepIDs)
			if err != nil {
				return nil, err
			}
			if !child.class.Is(f.Type) {
				return nil, fmt.Errorf("%w: %s.%s does not accept %s", ErrClassMismatch, class, name, child.class)
			}
			child.parent, child.feature = n, f
			n.children[f] = append(n.children[f], child)
		}
	}
	return n, nil
}

func featureRank(c Class, name string) int {
	for i, f := range c.Features() {
		if f.Name == name {
			return i
		}
	}
	return math.MaxInt
}

func snapshotFeature(c Class, name string, kind FeatureKind) (*Feature, error) {
	f, ok := c.FeatureByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownFeature, c, name)
	}
	if f.Kind != kind {
		return nil, fmt.Errorf("%w: %s.%s is a %s", ErrFeatureKind, c, name, f.Kind)
	}
	return f, nil
}

// attrValue normalizes decoded scalars: YAML yields int, JSON float64 or
// json.Number.
func attrValue(f *Feature, v any) (any, error) {
	switch f.Value {
	case ValueInt:
		switch t := v.(type) {
		case int:
			return t, nil
		case int64:
			if t < math.MinInt || t > math.MaxInt {
				return nil, fmt.Errorf("%w: %v is out of range", ErrInvalidSnapshot, t)
			}
			return int(t), nil
		case uint64:
			if t > math.MaxInt {
				return nil, fmt.Errorf("%w: %v is out of range", ErrInvalidSnapshot, t)
			}
			return int(t), nil
		case float64:
			if t != math.Trunc(t) {
				return nil, fmt.Errorf("%w: %v is not an integer", ErrInvalidSnapshot, t)
			}
			// float64(math.MaxInt) rounds up to 2^63, which is out of range.
			if t < math.MinInt || t >= -math.MinInt {
				return nil, fmt.Errorf("%w: %v is out of range", ErrInvalidSnapshot, t)
			}
			return int(t), nil
		case json.Number:
			i, err := t.Int64()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
			}
			if i < math.MinInt || i > math.MaxInt {
				return nil, fmt.Errorf("%w: %v is out of range", ErrInvalidSnapshot, i)
			}
			return int(i), nil
		}
	case ValueString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: unexpected value %v (%T)", ErrInvalidSnapshot, v, v)
}

// ===== EVICTION =====

// Evict writes a top object to the store and drops it from memory.
//
// Description:
//
//	The top object stays part of the graph: it keeps its place in TopURIs
//	and every lookup that needs it (Top, Resolve, NodeByID) reloads it
//	with the same node IDs. Evict emits no notifications. Without a store,
//	Evict is a no-op.
//
// Outputs:
//
//	error - ErrNotTop if uri is not a top object, or the store's error.
func (g *Graph) Evict(ctx context.Context, uri URI) error {
	if g.store == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.evicted[uri]; ok {
		return nil
	}
	top, ok := g.uris[uri]
	if !ok || !top.IsTop() {
		return fmt.Errorf("%w: %s", ErrNotTop, uri)
	}
	if err := g.store.Save(ctx, SnapshotOf(top)); err != nil {
		return fmt.Errorf("evict %s: %w", uri, err)
	}

	top.Walk(func(n *Node) bool {
		n.live = false
		delete(g.nodes, n.id)
		g.evictedIDs[n.id] = uri
		if n.uri != "" {
			delete(g.uris, n.uri)
			g.evictedURIs[n.uri] = uri
		}
		return true
	})
	g.evicted[uri] = struct{}{}
	return nil
}

// IsEvicted reports whether a top object is currently held only in the store.
func (g *Graph) IsEvicted(uri URI) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.evicted[uri]
	return ok
}

// reload brings an evicted top object back into memory. Concurrent reloads
// of the same top share one store read.
func (g *Graph) reload(uri URI) (*Node, bool) {
	v, err, _ := g.loads.Do(string(uri), func() (any, error) {
		return g.load(uri)
	})
	if err != nil {
		g.logger.Warn("failed to reload evicted top object",
			slog.String("uri", string(uri)),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	n, _ := v.(*Node)
	return n, n != nil
}

func (g *Graph) load(uri URI) (*Node, error) {
	g.mu.RLock()
	_, evicted := g.evicted[uri]
	live := g.uris[uri]
	g.mu.RUnlock()
	if !evicted {
		return live, nil
	}
	if g.store == nil {
		return nil, ErrNoStore
	}

	snap, err := g.store.Load(context.Background(), uri)
	if err != nil {
		return nil, err
	}
	top, err := g.materialize(snap, true)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	top.Walk(func(n *Node) bool {
		n.live = true
		g.nodes[n.id] = n
		delete(g.evictedIDs, n.id)
		if n.uri != "" {
			g.uris[n.uri] = n
			delete(g.evictedURIs, n.uri)
		}
		return true
	})
	delete(g.evicted, uri)
	return top, nil
}
