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
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// NoIndex marks issues not tied to a list position.
const NoIndex = -1

// Issue is one reported problem.
type Issue struct {
	CheckID  string
	Severity Severity
	TopURI   model.URI
	Node     *model.Node
	Feature  *model.Feature
	Message  string

	// Index is the list position for many-valued features, or NoIndex.
	Index int
}

// Key identifies an issue within one validation pass.
type Key struct {
	CheckID string
	Node    model.ID
	Feature *model.Feature
	Index   int
}

// Key returns the deduplication key of the issue.
func (i Issue) Key() Key {
	var id model.ID
	if i.Node != nil {
		id = i.Node.ID()
	}
	return Key{CheckID: i.CheckID, Node: id, Feature: i.Feature, Index: i.Index}
}

// Sink receives issues from a check.
type Sink interface {
	// AddIssue reports a problem at node's feature. index is NoIndex unless
	// the problem concerns one element of a list.
	AddIssue(node *model.Node, feature *model.Feature, message string, index int)
}

// Collector is the Sink for one (check, top object) validation pass.
//
// Repeated reports of the same (node, feature, index) keep the first one.
//
// Thread Safety:
//
//	Not safe for concurrent use; one collector per pass.
type Collector struct {
	def    Definition
	top    model.URI
	issues []Issue
	seen   map[Key]struct{}
}

// NewCollector creates a collector for def running on top.
func NewCollector(def Definition, top *model.Node) *Collector {
	return &Collector{
		def:  def,
		top:  top.URI(),
		seen: make(map[Key]struct{}),
	}
}

// AddIssue implements Sink.
func (c *Collector) AddIssue(node *model.Node, feature *model.Feature, message string, index int) {
	issue := Issue{
		CheckID:  c.def.ID,
		Severity: c.def.Severity,
		TopURI:   c.top,
		Node:     node,
		Feature:  feature,
		Message:  message,
		Index:    index,
	}
	k := issue.Key()
	if _, dup := c.seen[k]; dup {
		return
	}
	c.seen[k] = struct{}{}
	c.issues = append(c.issues, issue)
}

// Issues returns the collected issues in report order.
func (c *Collector) Issues() []Issue {
	return c.issues
}

// Record is the serializable view of an issue.
type Record struct {
	CheckID  string    `json:"check_id" yaml:"check_id"`
	Severity Severity  `json:"severity" yaml:"severity"`
	Top      model.URI `json:"top" yaml:"top"`
	NodeID   model.ID  `json:"node_id" yaml:"node_id"`
	Class    string    `json:"class" yaml:"class"`
	NodeURI  model.URI `json:"node_uri,omitempty" yaml:"node_uri,omitempty"`
	Feature  string    `json:"feature" yaml:"feature"`
	Index    *int      `json:"index,omitempty" yaml:"index,omitempty"`
	Message  string    `json:"message" yaml:"message"`
}

// Record converts the issue for output.
func (i Issue) Record() Record {
	r := Record{
		CheckID:  i.CheckID,
		Severity: i.Severity,
		Top:      i.TopURI,
		Feature:  i.Feature.String(),
		Message:  i.Message,
	}
	if i.Node != nil {
		r.NodeID = i.Node.ID()
		r.Class = i.Node.Class().String()
		r.NodeURI = i.Node.URI()
	}
	if i.Index != NoIndex {
		idx := i.Index
		r.Index = &idx
	}
	return r
}

// Records converts a slice of issues.
func Records(issues []Issue) []Record {
	out := make([]Record, len(issues))
	for i, is := range issues {
		out[i] = is.Record()
	}
	return out
}
