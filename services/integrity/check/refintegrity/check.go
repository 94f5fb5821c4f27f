// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package refintegrity reports references whose target does not resolve.
//
// Only the relations listed in a registry (see registry.yaml) are checked.
// A single-valued reference yields one issue; a list yields one issue per
// unresolved element, carrying its index.
package refintegrity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/cleanup"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// Fix variant IDs.
const (
	// VariantRemoveReference drops unresolved list elements, or deletes the
	// holder of a single-valued reference.
	VariantRemoveReference = "remove-reference"

	// VariantRemoveOwner deletes the item that owns the holder.
	VariantRemoveOwner = "remove-owner"
)

// Finding is one unresolved reference.
type Finding struct {
	Feature *model.Feature
	URI     model.URI
	Index   int
	Message string
}

// Validate returns the unresolved references of one holder feature.
func Validate(node *model.Node, f *model.Feature) []Finding {
	if node == nil || f == nil || f.Kind != model.KindReference || !node.Class().HasFeature(f) {
		return nil
	}
	g := node.Graph()
	if !f.Many {
		uri := node.Ref(f)
		if uri == "" || g.IsResolved(uri) {
			return nil
		}
		return []Finding{{
			Feature: f,
			URI:     uri,
			Index:   check.NoIndex,
			Message: fmt.Sprintf("Reference to a missing object in %q: %s", f.Name, uri),
		}}
	}
	var out []Finding
	for i, uri := range node.Refs(f) {
		if g.IsResolved(uri) {
			continue
		}
		out = append(out, Finding{
			Feature: f,
			URI:     uri,
			Index:   i,
			Message: fmt.Sprintf("Reference to a missing object in %q[%d]: %s", f.Name, i, uri),
		})
	}
	return out
}

// Check is one registry entry turned into a check.
type Check struct {
	def      check.Definition
	variants []string
	logger   *slog.Logger
}

// NewChecks builds one check per registry entry.
func NewChecks(reg *RegistryYAML, logger *slog.Logger) ([]*Check, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defs, variants, err := reg.definitions()
	if err != nil {
		return nil, err
	}
	out := make([]*Check, len(defs))
	for i, def := range defs {
		out[i] = &Check{def: def, variants: variants[i], logger: logger}
	}
	return out, nil
}

// DefaultChecks builds the checks of the embedded registry.
func DefaultChecks(logger *slog.Logger) ([]*Check, error) {
	reg, err := DefaultRegistry()
	if err != nil {
		return nil, err
	}
	return NewChecks(reg, logger)
}

// Definition implements check.Check.
func (c *Check) Definition() check.Definition { return c.def }

// holders visits every node of top carrying tracked features, with them.
func (c *Check) holders(top *model.Node, fn func(*model.Node, []*model.Feature) bool) {
	if top == nil || !top.IsTop() {
		return
	}
	d := c.def.Declaration
	topClass := top.Class()
	if !d.Covers(topClass) {
		return
	}
	top.Walk(func(n *model.Node) bool {
		fs := d.Features(topClass, n.Class(), n == top)
		if len(fs) == 0 {
			return true
		}
		return fn(n, fs)
	})
}

// Check implements check.Check.
func (c *Check) Check(ctx context.Context, top *model.Node, sink check.Sink) {
	c.holders(top, func(n *model.Node, fs []*model.Feature) bool {
		if ctx.Err() != nil {
			return false
		}
		for _, f := range fs {
			for _, finding := range Validate(n, f) {
				sink.AddIssue(n, f, finding.Message, finding.Index)
			}
		}
		return true
	})
}

// Variants implements check.Fixer.
func (c *Check) Variants() []check.Variant {
	out := make([]check.Variant, 0, len(c.variants))
	for _, id := range c.variants {
		switch id {
		case VariantRemoveReference:
			out = append(out, check.Variant{
				ID:          VariantRemoveReference,
				Title:       "Remove the broken reference",
				Description: "Removes unresolved list elements, or deletes the node holding a single broken reference",
				Apply:       c.removeReference,
			})
		case VariantRemoveOwner:
			out = append(out, check.Variant{
				ID:          VariantRemoveOwner,
				Title:       "Remove the owning item",
				Description: "Deletes the item that owns the broken reference",
				Apply:       c.removeOwner,
			})
		}
	}
	return out
}

// removeReference applies VariantRemoveReference. A single-valued reference
// on a top object is unset, since a top object cannot be deleted by a fix.
func (c *Check) removeReference(node *model.Node, f *model.Feature) bool {
	if len(Validate(node, f)) == 0 {
		return false
	}
	g := node.Graph()
	if f.Many {
		return node.RemoveRefsIf(f, func(u model.URI) bool { return !g.IsResolved(u) }) > 0
	}
	var err error
	if node.IsTop() {
		err = node.SetRef(f, "")
	} else {
		err = node.Delete()
	}
	if err != nil {
		c.logger.Warn("reference fix failed", slog.String("node", node.String()), slog.String("error", err.Error()))
		return false
	}
	return true
}

// removeOwner applies VariantRemoveOwner. An ExtInfo wrapper between the
// holder and its owner is skipped. Top objects are never deleted.
func (c *Check) removeOwner(node *model.Node, f *model.Feature) bool {
	if len(Validate(node, f)) == 0 {
		return false
	}
	owner := node.Parent()
	if owner != nil && owner.Class() == model.ClassExtInfo {
		owner = owner.Parent()
	}
	if owner == nil || owner.IsTop() {
		c.logger.Debug("owner fix skipped: no removable owner", slog.String("node", node.String()))
		return false
	}
	if err := owner.Delete(); err != nil {
		c.logger.Warn("owner fix failed", slog.String("node", owner.String()), slog.String("error", err.Error()))
		return false
	}
	return true
}

// Repairer returns the bulk cleanup for this check.
func (c *Check) Repairer() cleanup.Repairer {
	return repairer{c: c}
}

type repairer struct {
	c *Check
}

func (r repairer) Name() string { return r.c.def.ID }

func (r repairer) TopClasses() []model.Class { return r.c.def.Declaration.TopClasses() }

func (r repairer) IsValid(top *model.Node) bool {
	valid := true
	r.c.holders(top, func(n *model.Node, fs []*model.Feature) bool {
		for _, f := range fs {
			if len(Validate(n, f)) > 0 {
				valid = false
				return false
			}
		}
		return true
	})
	return valid
}

func (r repairer) Offenders(top *model.Node) []*model.Node {
	var out []*model.Node
	r.c.holders(top, func(n *model.Node, fs []*model.Feature) bool {
		for _, f := range fs {
			if len(Validate(n, f)) > 0 {
				out = append(out, n)
				break
			}
		}
		return true
	})
	return out
}

func (r repairer) Repair(node *model.Node) bool {
	if !node.IsLive() {
		return false
	}
	top := node.Top()
	changed := false
	for _, f := range r.c.def.Declaration.Features(top.Class(), node.Class(), node == top) {
		if !node.IsLive() {
			break
		}
		if r.c.removeReference(node, f) {
			changed = true
		}
	}
	return changed
}
