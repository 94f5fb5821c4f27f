// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package xref maintains the reverse index of cross-references.
//
// For every target URI the index knows which (holder node, feature) pairs
// currently reference it. The index is state-based: each update recomputes
// the entries of the affected holders from the graph, so replaying the same
// notification twice is harmless.
package xref

import (
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// Holder is a (node, feature) pair that holds a reference.
type Holder struct {
	Node    model.ID
	Feature *model.Feature
}

// Index is the reverse cross-reference index.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	forward map[Holder][]model.URI
	reverse map[model.URI]map[Holder]struct{}
}

// New creates an empty index.
func New() *Index {
	return &Index{
		forward: make(map[Holder][]model.URI),
		reverse: make(map[model.URI]map[Holder]struct{}),
	}
}

// Rebuild discards the index and re-reads every top object of g.
func (x *Index) Rebuild(g *model.Graph) {
	x.mu.Lock()
	x.forward = make(map[Holder][]model.URI)
	x.reverse = make(map[model.URI]map[Holder]struct{})
	x.mu.Unlock()

	for _, top := range g.Tops() {
		x.IndexSubtree(top)
	}
}

// ReferencesTo returns the holders referencing uri, ordered by node ID.
func (x *Index) ReferencesTo(uri model.URI) []Holder {
	x.mu.RLock()
	defer x.mu.RUnlock()

	set := x.reverse[uri]
	out := make([]Holder, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Node != out[j].Node {
			return out[i].Node < out[j].Node
		}
		return out[i].Feature.Name < out[j].Feature.Name
	})
	return out
}

// Len returns the number of indexed holders.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.forward)
}

// Apply updates the index for one raw notification.
func (x *Index) Apply(n model.Notification) {
	switch n.Kind {
	case model.NotifyCreate:
		x.IndexSubtree(n.Node)
		return
	case model.NotifyDetach:
		x.UnindexSubtree(n.Node)
		return
	case model.NotifyResolve:
		return
	}
	if n.Feature == nil {
		return
	}
	switch n.Feature.Kind {
	case model.KindReference:
		x.Reindex(n.Node, n.Feature)
	case model.KindContainment:
		if n.Kind == model.NotifyMove {
			return
		}
		for _, c := range n.RemovedNodes() {
			x.UnindexSubtree(c)
		}
		for _, c := range n.AddedNodes() {
			x.IndexSubtree(c)
		}
	}
}

// Reindex recomputes the entries of one holder from the node's current
// values. Non-live nodes lose their entries.
func (x *Index) Reindex(node *model.Node, f *model.Feature) {
	var uris []model.URI
	if node.IsLive() {
		uris = node.Refs(f)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.set(Holder{Node: node.ID(), Feature: f}, uris)
}

// IndexSubtree reindexes every reference feature in the subtree.
func (x *Index) IndexSubtree(root *model.Node) {
	root.Walk(func(n *model.Node) bool {
		for _, f := range n.Class().Features() {
			if f.Kind == model.KindReference {
				x.Reindex(n, f)
			}
		}
		return true
	})
}

// UnindexSubtree drops every holder in the subtree, live or not.
func (x *Index) UnindexSubtree(root *model.Node) {
	x.mu.Lock()
	defer x.mu.Unlock()
	root.Walk(func(n *model.Node) bool {
		for _, f := range n.Class().Features() {
			if f.Kind == model.KindReference {
				x.set(Holder{Node: n.ID(), Feature: f}, nil)
			}
		}
		return true
	})
}

// set replaces a holder's URIs. Caller holds x.mu.
func (x *Index) set(h Holder, uris []model.URI) {
	for _, u := range x.forward[h] {
		if holders, ok := x.reverse[u]; ok {
			delete(holders, h)
			if len(holders) == 0 {
				delete(x.reverse, u)
			}
		}
	}
	if len(uris) == 0 {
		delete(x.forward, h)
		return
	}
	x.forward[h] = uris
	for _, u := range uris {
		holders, ok := x.reverse[u]
		if !ok {
			holders = make(map[Holder]struct{})
			x.reverse[u] = holders
		}
		holders[h] = struct{}{}
	}
}
