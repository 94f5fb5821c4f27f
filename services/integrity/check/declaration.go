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
	"slices"

	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// Tracking answers whether a change can affect some check's verdict.
//
// Declaration, Registry and Union implement it.
type Tracking interface {
	// Tracks reports whether feature f of a holder node matters for tops
	// of class top. holderIsTop is true when the holder is the top itself.
	Tracks(top, holder model.Class, holderIsTop bool, f *model.Feature) bool

	// TracksHolder reports whether nodes of class holder nested under a top
	// of class top carry tracked features.
	TracksHolder(top, holder model.Class) bool

	// TracksFeature reports whether f appears anywhere in the declaration.
	TracksFeature(f *model.Feature) bool
}

type nestedScope struct {
	holder   model.Class
	features []*model.Feature
}

type topScope struct {
	top      model.Class
	features []*model.Feature
	nested   []nestedScope
}

// Declaration maps top classes to the features a check reads.
//
// Description:
//
//	For each top class, a declaration lists the features of the top object
//	itself and, per nested holder class, the features of nodes contained
//	under it. Holder and top classes match subclasses. A Declaration is
//	immutable once built.
type Declaration struct {
	scopes []topScope
}

// DeclarationBuilder assembles a Declaration.
type DeclarationBuilder struct {
	scopes []topScope
}

// Declare starts a new declaration.
func Declare() *DeclarationBuilder {
	return &DeclarationBuilder{}
}

func (b *DeclarationBuilder) scope(top model.Class) *topScope {
	for i := range b.scopes {
		if b.scopes[i].top == top {
			return &b.scopes[i]
		}
	}
	b.scopes = append(b.scopes, topScope{top: top})
	return &b.scopes[len(b.scopes)-1]
}

// Top declares features read on top objects of class top.
func (b *DeclarationBuilder) Top(top model.Class, features ...*model.Feature) *DeclarationBuilder {
	s := b.scope(top)
	s.features = appendUnique(s.features, features...)
	return b
}

// Nested declares features read on holder nodes inside tops of class top.
func (b *DeclarationBuilder) Nested(top, holder model.Class, features ...*model.Feature) *DeclarationBuilder {
	s := b.scope(top)
	for i := range s.nested {
		if s.nested[i].holder == holder {
			s.nested[i].features = appendUnique(s.nested[i].features, features...)
			return b
		}
	}
	s.nested = append(s.nested, nestedScope{holder: holder, features: appendUnique(nil, features...)})
	return b
}

// Build returns the immutable declaration.
func (b *DeclarationBuilder) Build() Declaration {
	out := make([]topScope, len(b.scopes))
	for i, s := range b.scopes {
		out[i] = topScope{top: s.top, features: slices.Clone(s.features)}
		for _, n := range s.nested {
			out[i].nested = append(out[i].nested, nestedScope{holder: n.holder, features: slices.Clone(n.features)})
		}
	}
	return Declaration{scopes: out}
}

func appendUnique(dst []*model.Feature, fs ...*model.Feature) []*model.Feature {
	for _, f := range fs {
		if !slices.Contains(dst, f) {
			dst = append(dst, f)
		}
	}
	return dst
}

// TopClasses returns the declared top classes in declaration order.
func (d Declaration) TopClasses() []model.Class {
	out := make([]model.Class, len(d.scopes))
	for i, s := range d.scopes {
		out[i] = s.top
	}
	return out
}

// Covers reports whether tops of class top are in scope.
func (d Declaration) Covers(top model.Class) bool {
	return d.scopeFor(top) != nil
}

func (d Declaration) scopeFor(top model.Class) *topScope {
	for i := range d.scopes {
		if top.Is(d.scopes[i].top) {
			return &d.scopes[i]
		}
	}
	return nil
}

// Features returns the tracked features of a holder, in declaration order.
func (d Declaration) Features(top, holder model.Class, holderIsTop bool) []*model.Feature {
	s := d.scopeFor(top)
	if s == nil {
		return nil
	}
	if holderIsTop {
		return s.features
	}
	var out []*model.Feature
	for _, n := range s.nested {
		if holder.Is(n.holder) {
			out = appendUnique(out, n.features...)
		}
	}
	return out
}

// Tracks implements Tracking.
func (d Declaration) Tracks(top, holder model.Class, holderIsTop bool, f *model.Feature) bool {
	return slices.Contains(d.Features(top, holder, holderIsTop), f)
}

// TracksHolder implements Tracking.
func (d Declaration) TracksHolder(top, holder model.Class) bool {
	s := d.scopeFor(top)
	if s == nil {
		return false
	}
	for _, n := range s.nested {
		if holder.Is(n.holder) {
			return true
		}
	}
	return false
}

// TracksFeature implements Tracking.
func (d Declaration) TracksFeature(f *model.Feature) bool {
	for _, s := range d.scopes {
		if slices.Contains(s.features, f) {
			return true
		}
		for _, n := range s.nested {
			if slices.Contains(n.features, f) {
				return true
			}
		}
	}
	return false
}

// Union combines several Tracking sources; a change is tracked if any
// member tracks it.
type Union []Tracking

// Tracks implements Tracking.
func (u Union) Tracks(top, holder model.Class, holderIsTop bool, f *model.Feature) bool {
	for _, t := range u {
		if t.Tracks(top, holder, holderIsTop, f) {
			return true
		}
	}
	return false
}

// TracksHolder implements Tracking.
func (u Union) TracksHolder(top, holder model.Class) bool {
	for _, t := range u {
		if t.TracksHolder(top, holder) {
			return true
		}
	}
	return false
}

// TracksFeature implements Tracking.
func (u Union) TracksFeature(f *model.Feature) bool {
	for _, t := range u {
		if t.TracksFeature(f) {
			return true
		}
	}
	return false
}
