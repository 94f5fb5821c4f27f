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
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Store persists snapshots of evicted top objects.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, uri URI) (*Snapshot, error)
	Delete(ctx context.Context, uri URI) error
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithStore enables eviction of top objects into s.
func WithStore(s Store) GraphOption {
	return func(g *Graph) { g.store = s }
}

// WithLogger sets the logger used for reload failures.
func WithLogger(l *slog.Logger) GraphOption {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// Graph is the forest of top objects with URI resolution and a change buffer.
//
// Description:
//
//	Keeps the tables of live nodes (by ID and by URI), the attachment
//	order of top objects and the buffer of raw notifications. With a
//	Store configured, top objects can be evicted from memory and are
//	reloaded transparently on the next lookup, keeping their node IDs.
//
// Thread Safety:
//
//	Lookups are safe for concurrent use. Mutations are single-writer.
type Graph struct {
	mu     sync.RWMutex
	nextID atomic.Uint64

	nodes    map[ID]*Node
	uris     map[URI]*Node
	tops     []URI
	topClass map[URI]Class

	// Eviction bookkeeping: top URI set, plus node ID and nested URI
	// owners so lookups can reload the right top object.
	evicted     map[URI]struct{}
	evictedIDs  map[ID]URI
	evictedURIs map[URI]URI

	pending []Notification

	store  Store
	loads  singleflight.Group
	logger *slog.Logger
}

// NewGraph creates an empty graph.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		nodes:       make(map[ID]*Node),
		uris:        make(map[URI]*Node),
		topClass:    make(map[URI]Class),
		evicted:     make(map[URI]struct{}),
		evictedIDs:  make(map[ID]URI),
		evictedURIs: make(map[URI]URI),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewNode creates a detached node of a concrete class.
//
// Panics if class is abstract or unknown; classes are compile-time constants.
func (g *Graph) NewNode(class Class) *Node {
	return g.NewAddressable(class, "")
}

// NewAddressable creates a detached node with a URI.
//
// Panics if class is abstract or unknown.
func (g *Graph) NewAddressable(class Class, uri URI) *Node {
	if !class.Valid() || class.IsAbstract() {
		panic(fmt.Sprintf("model: cannot instantiate class %s", class))
	}
	return g.newNode(ID(g.nextID.Add(1)), class, uri)
}

func (g *Graph) newNode(id ID, class Class, uri URI) *Node {
	return &Node{
		id:       id,
		class:    class,
		uri:      uri,
		graph:    g,
		values:   make(map[*Feature]any),
		children: make(map[*Feature][]*Node),
		refs:     make(map[*Feature][]URI),
	}
}

// ===== TOP OBJECTS =====

// AttachTop makes a detached root node a top object of the graph.
//
// Description:
//
//	Registers the node's subtree, then emits one NotifyCreate for the top
//	followed by NotifyResolve for every addressable node in the subtree.
//
// Outputs:
//
//	error - ErrAttached, ErrMissingURI, ErrDuplicateURI or ErrForeignNode.
func (g *Graph) AttachTop(n *Node) error {
	if n.graph != g {
		return ErrForeignNode
	}
	if n.parent != nil || n.live {
		return fmt.Errorf("%w: %s", ErrAttached, n)
	}
	if n.uri == "" {
		return fmt.Errorf("%w: %s", ErrMissingURI, n)
	}
	if err := g.checkURIs(n); err != nil {
		return err
	}

	g.mu.Lock()
	if _, ok := g.topClass[n.uri]; ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateURI, n.uri)
	}
	g.tops = append(g.tops, n.uri)
	g.topClass[n.uri] = n.class
	g.mu.Unlock()

	notes := []Notification{{Kind: NotifyCreate, Node: n, Position: NoPosition, URI: n.uri, Class: n.class}}
	notes = append(notes, g.adoptSubtree(n)...)
	g.emit(notes...)
	return nil
}

// DetachTop removes a top object from the graph, emitting NotifyDetach for
// every addressable node of its subtree.
func (g *Graph) DetachTop(n *Node) error {
	if n.graph != g {
		return ErrForeignNode
	}
	if !n.IsTop() {
		return fmt.Errorf("%w: %s", ErrNotTop, n)
	}
	g.mu.Lock()
	g.tops = slices.DeleteFunc(g.tops, func(u URI) bool { return u == n.uri })
	delete(g.topClass, n.uri)
	g.mu.Unlock()

	g.emit(g.releaseSubtree(n)...)
	return nil
}

// Top returns the top object with the given URI, reloading it if evicted.
func (g *Graph) Top(uri URI) (*Node, bool) {
	g.mu.RLock()
	n, ok := g.uris[uri]
	_, evicted := g.evicted[uri]
	g.mu.RUnlock()
	if ok {
		if n.IsTop() {
			return n, true
		}
		return nil, false
	}
	if !evicted {
		return nil, false
	}
	return g.reload(uri)
}

// TopURIs returns the URIs of top objects in attachment order, including
// evicted ones. With classes given, only tops of those classes (or their
// subclasses) are returned.
func (g *Graph) TopURIs(classes ...Class) []URI {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]URI, 0, len(g.tops))
	for _, u := range g.tops {
		if len(classes) == 0 || classMatches(g.topClass[u], classes) {
			out = append(out, u)
		}
	}
	return out
}

// TopClass returns the class of a top object without loading it.
func (g *Graph) TopClass(uri URI) (Class, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.topClass[uri]
	return c, ok
}

// Tops returns every top object, reloading evicted ones.
func (g *Graph) Tops() []*Node {
	uris := g.TopURIs()
	out := make([]*Node, 0, len(uris))
	for _, u := range uris {
		if n, ok := g.Top(u); ok {
			out = append(out, n)
		}
	}
	return out
}

func classMatches(c Class, classes []Class) bool {
	for _, want := range classes {
		if c.Is(want) {
			return true
		}
	}
	return false
}

// ===== LOOKUP =====

// Resolve returns the live addressable node with the URI. A URI owned by an
// evicted top object reloads that top object first.
func (g *Graph) Resolve(uri URI) (*Node, bool) {
	if uri == "" {
		return nil, false
	}
	g.mu.RLock()
	n, ok := g.uris[uri]
	owner, evicted := g.evictedURIs[uri]
	g.mu.RUnlock()
	if ok {
		return n, true
	}
	if !evicted {
		return nil, false
	}
	if _, ok := g.reload(owner); !ok {
		return nil, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok = g.uris[uri]
	return n, ok
}

// IsResolved reports whether the URI addresses a node of the graph.
func (g *Graph) IsResolved(uri URI) bool {
	_, ok := g.Resolve(uri)
	return ok
}

// NodeByID returns the live node with the ID, reloading its top object if
// evicted. Nodes that were removed from the graph are not found.
func (g *Graph) NodeByID(id ID) (*Node, bool) {
	g.mu.RLock()
	n, ok := g.nodes[id]
	owner, evicted := g.evictedIDs[id]
	g.mu.RUnlock()
	if ok {
		return n, true
	}
	if !evicted {
		return nil, false
	}
	if _, ok := g.reload(owner); !ok {
		return nil, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok = g.nodes[id]
	return n, ok
}

// Len returns the number of live nodes held in memory.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// ===== NOTIFICATIONS =====

// Flush drains the buffered notifications in emission order.
func (g *Graph) Flush() []Notification {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.pending
	g.pending = nil
	return out
}

// PendingNotifications returns the number of undrained notifications.
func (g *Graph) PendingNotifications() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.pending)
}

func (g *Graph) emit(notes ...Notification) {
	if len(notes) == 0 {
		return
	}
	g.mu.Lock()
	g.pending = append(g.pending, notes...)
	g.mu.Unlock()
}

// ===== SUBTREE REGISTRATION =====

// checkURIs verifies that no addressable node of the subtree collides with
// a URI already known to the graph.
func (g *Graph) checkURIs(root *Node) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var err error
	seen := make(map[URI]struct{})
	root.Walk(func(n *Node) bool {
		if n.uri == "" {
			return true
		}
		_, live := g.uris[n.uri]
		_, evicted := g.evictedURIs[n.uri]
		_, dup := seen[n.uri]
		if live || evicted || dup {
			err = fmt.Errorf("%w: %s", ErrDuplicateURI, n.uri)
			return false
		}
		seen[n.uri] = struct{}{}
		return true
	})
	return err
}

// adoptSubtree marks a subtree live and returns its resolve notifications.
func (g *Graph) adoptSubtree(root *Node) []Notification {
	g.mu.Lock()
	defer g.mu.Unlock()

	var notes []Notification
	root.Walk(func(n *Node) bool {
		n.live = true
		g.nodes[n.id] = n
		if n.uri != "" {
			g.uris[n.uri] = n
			notes = append(notes, Notification{Kind: NotifyResolve, Node: n, Position: NoPosition, URI: n.uri, Class: n.class})
		}
		return true
	})
	return notes
}

// releaseSubtree marks a subtree non-live and returns its detach notifications.
func (g *Graph) releaseSubtree(root *Node) []Notification {
	g.mu.Lock()
	defer g.mu.Unlock()

	var notes []Notification
	root.Walk(func(n *Node) bool {
		n.live = false
		delete(g.nodes, n.id)
		if n.uri != "" {
			delete(g.uris, n.uri)
			notes = append(notes, Notification{Kind: NotifyDetach, Node: n, Position: NoPosition, URI: n.uri, Class: n.class})
		}
		return true
	})
	return notes
}
