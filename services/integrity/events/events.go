// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events turns raw graph notifications into the three event kinds
// the scheduler reacts to.
//
// The classifier is stateless. It may report one mutation twice (an
// explicit feature change plus an implicit container trigger); the
// scheduler absorbs the duplicate.
package events

import (
	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// Kind is the abstract event kind.
type Kind uint8

const (
	// FeatureChanged reports a change of a tracked feature on Node.
	FeatureChanged Kind = iota + 1

	// ObjectAssociated reports that URI became resolvable.
	ObjectAssociated

	// ObjectRemoved reports that the addressable node at URI left the graph.
	ObjectRemoved
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case FeatureChanged:
		return "feature_changed"
	case ObjectAssociated:
		return "object_associated"
	case ObjectRemoved:
		return "object_removed"
	default:
		return "unknown"
	}
}

// Event is one classified change.
type Event struct {
	Kind Kind

	// Node is the changed holder for FeatureChanged and the associated or
	// removed node otherwise.
	Node *model.Node

	// Feature is set for FeatureChanged.
	Feature *model.Feature

	// URI and Class identify the node of ObjectAssociated and ObjectRemoved.
	URI   model.URI
	Class model.Class

	// Implicit marks a container trigger derived from a containment change
	// that carried tracked holders.
	Implicit bool
}

// Classifier maps notifications to events.
//
// Thread Safety:
//
//	Safe for concurrent use when the Tracking it wraps is.
type Classifier struct {
	tracking check.Tracking
}

// NewClassifier creates a classifier for the given tracked declarations.
func NewClassifier(t check.Tracking) *Classifier {
	return &Classifier{tracking: t}
}

// Classify returns the events of one notification, possibly none.
//
// Description:
//
//	Resolve becomes ObjectAssociated and Detach becomes ObjectRemoved.
//	Set, unset, add, remove and move become FeatureChanged when the
//	feature is tracked by any check. A containment change whose added or
//	removed subtrees contain a holder class tracked under the container's
//	top also yields an implicit FeatureChanged on the container. Create
//	yields nothing; new top objects are admitted by the caller.
//
// Inputs:
//
//	n - The raw notification.
//
// Outputs:
//
//	[]Event - Zero, one or two events.
func (c *Classifier) Classify(n model.Notification) []Event {
	var out []Event
	switch n.Kind {
	case model.NotifyResolve:
		out = append(out, Event{Kind: ObjectAssociated, Node: n.Node, URI: n.URI, Class: n.Class})
	case model.NotifyDetach:
		out = append(out, Event{Kind: ObjectRemoved, Node: n.Node, URI: n.URI, Class: n.Class})
	case model.NotifySet, model.NotifyUnset, model.NotifyAdd, model.NotifyRemove,
		model.NotifyAddMany, model.NotifyRemoveMany, model.NotifyMove:
		if n.Feature == nil {
			break
		}
		if c.tracking.TracksFeature(n.Feature) {
			out = append(out, Event{Kind: FeatureChanged, Node: n.Node, Feature: n.Feature})
		}
		if n.Feature.Kind == model.KindContainment && n.Kind != model.NotifyMove && c.carriesTrackedHolder(n) {
			out = append(out, Event{Kind: FeatureChanged, Node: n.Node, Feature: n.Feature, Implicit: true})
		}
	}
	recordClassified(n, out)
	return out
}

// carriesTrackedHolder reports whether a containment change moved a node
// whose class is a tracked holder under the container's top.
func (c *Classifier) carriesTrackedHolder(n model.Notification) bool {
	if n.Node == nil {
		return false
	}
	top := n.Node.Top()
	if top == nil {
		return false
	}
	topClass := top.Class()
	tracked := func(sub *model.Node) bool {
		return !c.tracking.TracksHolder(topClass, sub.Class())
	}
	for _, roots := range [][]*model.Node{n.RemovedNodes(), n.AddedNodes()} {
		for _, root := range roots {
			if !root.Walk(tracked) {
				return true
			}
		}
	}
	return false
}
