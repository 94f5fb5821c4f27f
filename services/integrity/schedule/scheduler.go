// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schedule decides which top objects owe a re-validation.
//
// Each top object is either Clean or Pending. Classified events move top
// objects to Pending; the engine moves them back to Clean by draining the
// queue when it validates them. Marking a Pending top object again is a
// no-op, so duplicate events produce a single queue entry.
package schedule

import (
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/events"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
	"github.com/AleutianAI/AleutianCheck/services/integrity/xref"
)

// State is the scheduling state of one top object.
type State uint8

const (
	// Clean means no validation is owed.
	Clean State = iota

	// Pending means the top object must be validated again.
	Pending
)

// String returns the state name.
func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "clean"
}

// Reason records why a top object became Pending.
type Reason string

const (
	ReasonCreated    Reason = "created"
	ReasonFeature    Reason = "feature_changed"
	ReasonContainer  Reason = "container_changed"
	ReasonAssociated Reason = "object_associated"
	ReasonRemoved    Reason = "object_removed"
	ReasonManual     Reason = "manual"
)

// Entry is one queued top object.
type Entry struct {
	// URI is the top object's URI.
	URI model.URI

	// Class is the top object's class.
	Class model.Class

	// MarkedAt is when the top object became Pending.
	MarkedAt time.Time

	// Reason is the first reason that marked it.
	Reason Reason
}

// ReverseIndex answers which holders reference a URI.
type ReverseIndex interface {
	ReferencesTo(uri model.URI) []xref.Holder
}

// Resolver finds live nodes by ID. *model.Graph implements it.
type Resolver interface {
	NodeByID(id model.ID) (*model.Node, bool)
}

// coverer is implemented by trackings that know their top classes.
type coverer interface {
	Covers(c model.Class) bool
}

// Scheduler keeps the Pending set.
//
// Description:
//
//	The Pending set is a FIFO queue without duplicates, keyed by top URI.
//	Handle maps one classified event to zero or more marks: feature
//	changes mark the holder's top when the (top, holder, feature) triple is
//	tracked; association and removal events look up the holders of the URI
//	in the reverse index and mark each holder's top when that holder's
//	feature is tracked. Holders that no longer resolve to a live node are
//	skipped.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type Scheduler struct {
	mu       sync.Mutex
	tracking check.Tracking
	index    ReverseIndex
	resolver Resolver
	logger   *slog.Logger

	pending map[model.URI]Entry
	order   []model.URI
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a scheduler.
//
// Inputs:
//
//	tracking - Union of the tracked declarations of all enabled checks.
//	index - Reverse reference index, kept current by the caller.
//	resolver - Maps holder node IDs back to nodes.
//
// Outputs:
//
//	*Scheduler - Empty scheduler; every top object starts Clean.
func New(tracking check.Tracking, index ReverseIndex, resolver Resolver, opts ...Option) *Scheduler {
	s := &Scheduler{
		tracking: tracking,
		index:    index,
		resolver: resolver,
		logger:   slog.Default(),
		pending:  make(map[model.URI]Entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle applies one classified event.
//
// Outputs:
//
//	int - Number of top objects that moved from Clean to Pending.
func (s *Scheduler) Handle(e events.Event) int {
	switch e.Kind {
	case events.FeatureChanged:
		return s.handleFeature(e)
	case events.ObjectAssociated:
		return s.handleReverse(e.URI, ReasonAssociated)
	case events.ObjectRemoved:
		return s.handleReverse(e.URI, ReasonRemoved)
	default:
		return 0
	}
}

func (s *Scheduler) handleFeature(e events.Event) int {
	if e.Node == nil || e.Feature == nil {
		return 0
	}
	top := e.Node.Top()
	if top == nil {
		recordStale()
		return 0
	}
	if e.Implicit {
		if s.mark(top.URI(), top.Class(), ReasonContainer) {
			return 1
		}
		return 0
	}
	if !s.tracking.Tracks(top.Class(), e.Node.Class(), e.Node == top, e.Feature) {
		return 0
	}
	if s.mark(top.URI(), top.Class(), ReasonFeature) {
		return 1
	}
	return 0
}

func (s *Scheduler) handleReverse(uri model.URI, reason Reason) int {
	if uri == "" {
		return 0
	}
	marked := 0
	for _, h := range s.index.ReferencesTo(uri) {
		n, ok := s.resolver.NodeByID(h.Node)
		if !ok || !n.IsLive() {
			s.logger.Debug("skipping stale holder",
				slog.String("uri", string(uri)),
				slog.Uint64("node", uint64(h.Node)),
			)
			recordStale()
			continue
		}
		top := n.Top()
		if !s.tracking.Tracks(top.Class(), n.Class(), n == top, h.Feature) {
			continue
		}
		if s.mark(top.URI(), top.Class(), reason) {
			marked++
		}
	}
	return marked
}

// Admit marks a new top object Pending when some check covers its class.
func (s *Scheduler) Admit(top *model.Node) bool {
	if top == nil || !top.IsTop() {
		return false
	}
	if c, ok := s.tracking.(coverer); ok && !c.Covers(top.Class()) {
		return false
	}
	return s.mark(top.URI(), top.Class(), ReasonCreated)
}

// MarkPending marks a top object Pending. It returns false when it already
// was.
func (s *Scheduler) MarkPending(uri model.URI, class model.Class, reason Reason) bool {
	return s.mark(uri, class, reason)
}

func (s *Scheduler) mark(uri model.URI, class model.Class, reason Reason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[uri]; ok {
		recordDedup(reason)
		return false
	}
	s.pending[uri] = Entry{URI: uri, Class: class, MarkedAt: time.Now(), Reason: reason}
	s.order = append(s.order, uri)
	recordMark(reason, len(s.pending))
	return true
}

// State returns the state of a top object.
func (s *Scheduler) State(uri model.URI) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[uri]; ok {
		return Pending
	}
	return Clean
}

// HasPending reports whether any top object is Pending.
func (s *Scheduler) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

// Count returns the number of Pending top objects.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Pending returns the queued entries in marking order without clearing.
func (s *Scheduler) Pending() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.order))
	for _, uri := range s.order {
		out = append(out, s.pending[uri])
	}
	return out
}

// Drain moves up to limit entries from Pending to Clean and returns them
// in marking order. A limit <= 0 drains everything.
//
// Description:
//
//	Validation of a drained entry reflects every mutation made before the
//	drain. A mutation arriving while the validation runs marks the top
//	object Pending again.
func (s *Scheduler) Drain(limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for _, uri := range s.order[:n] {
		out = append(out, s.pending[uri])
		delete(s.pending, uri)
	}
	s.order = append([]model.URI(nil), s.order[n:]...)
	setPendingGauge(len(s.pending))
	return out
}

// Requeue puts back drained entries whose validation did not complete.
// Entries marked again in the meantime keep their newer mark.
func (s *Scheduler) Requeue(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var front []model.URI
	for _, e := range entries {
		if _, ok := s.pending[e.URI]; ok {
			continue
		}
		s.pending[e.URI] = e
		front = append(front, e.URI)
	}
	s.order = append(front, s.order...)
	setPendingGauge(len(s.pending))
}

// Complete moves the given top objects to Clean.
//
// Outputs:
//
//	int - Number of top objects that were Pending.
func (s *Scheduler) Complete(uris ...model.URI) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	for _, uri := range uris {
		if _, ok := s.pending[uri]; ok {
			delete(s.pending, uri)
			cleared++
		}
	}
	if cleared > 0 {
		s.compact()
	}
	setPendingGauge(len(s.pending))
	return cleared
}

// Forget drops a top object that left the graph.
func (s *Scheduler) Forget(uri model.URI) {
	s.Complete(uri)
}

// compact removes cleared URIs from the queue order. Caller holds mu.
func (s *Scheduler) compact() {
	kept := s.order[:0]
	for _, uri := range s.order {
		if _, ok := s.pending[uri]; ok {
			kept = append(kept, uri)
		}
	}
	s.order = kept
}
