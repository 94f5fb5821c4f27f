// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package itemid validates and repairs form item identifiers.
//
// Every form item carries an integer identifier. Zero means "unset" and is
// always invalid. Negative values are valid; the form's own auto command
// bar uses -1. Non-zero identifiers must be unique among all items of one
// form, at any nesting depth. When several items share a value, the first
// one in document order keeps it and the others are duplicates.
package itemid

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// ProblemKind is why an identifier is rejected.
type ProblemKind int

const (
	// InvalidValue marks the reserved value 0.
	InvalidValue ProblemKind = iota + 1

	// DuplicateValue marks a value already used earlier in the form.
	DuplicateValue
)

// String returns the kind name.
func (k ProblemKind) String() string {
	switch k {
	case InvalidValue:
		return "invalid"
	case DuplicateValue:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Problem is the verdict for one item.
type Problem struct {
	Kind  ProblemKind
	Value int
}

// Message returns the user-facing issue text.
func (p Problem) Message() string {
	if p.Kind == DuplicateValue {
		return fmt.Sprintf("Duplicate value of the identifier attribute: %d", p.Value)
	}
	return "Invalid value of the identifier attribute"
}

// Finding pairs an offending item with its problem.
type Finding struct {
	Node    *model.Node
	Problem Problem
}

// CommandBarID is the identifier reserved for a form's own auto command bar.
const CommandBarID = -1

// Generator hands out fresh identifiers for a form.
type Generator interface {
	// NextItemID returns a positive identifier not used in form.
	NextItemID(form *model.Node) int
}

// Service evaluates and fixes item identifiers.
type Service struct {
	generator Generator
	logger    *slog.Logger
}

// NewService creates a Service. A nil generator uses a SequenceGenerator.
func NewService(gen Generator, logger *slog.Logger) *Service {
	if gen == nil {
		gen = NewSequenceGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{generator: gen, logger: logger}
}

// items visits every form item of a form in document order.
func items(form *model.Node, fn func(*model.Node) bool) {
	if form == nil || form.Class() != model.ClassForm {
		return
	}
	form.Walk(func(n *model.Node) bool {
		if n.Class().Is(model.ClassFormItem) {
			return fn(n)
		}
		return true
	})
}

// Findings returns every offending item of a form in document order.
//
// Description:
//
//	Items with identifier 0 are InvalidValue and take no part in duplicate
//	detection. Among the remaining items, every item whose value was
//	already seen is a DuplicateValue. A correct item never appears. The
//	result is empty for anything that is not a form.
func (s *Service) Findings(form *model.Node) []Finding {
	var out []Finding
	seen := make(map[int]struct{})
	items(form, func(n *model.Node) bool {
		id := n.Int(model.ItemID)
		if id == 0 {
			out = append(out, Finding{Node: n, Problem: Problem{Kind: InvalidValue}})
			return true
		}
		if _, dup := seen[id]; dup {
			out = append(out, Finding{Node: n, Problem: Problem{Kind: DuplicateValue, Value: id}})
			return true
		}
		seen[id] = struct{}{}
		return true
	})
	return out
}

// Validate returns the offending items of a form keyed by node. The map is
// empty iff the form is valid.
func (s *Service) Validate(form *model.Node) map[*model.Node]Problem {
	findings := s.Findings(form)
	out := make(map[*model.Node]Problem, len(findings))
	for _, f := range findings {
		out[f.Node] = f.Problem
	}
	return out
}

// IsValid reports whether a form has no offending item. It stops at the
// first violation.
func (s *Service) IsValid(form *model.Node) bool {
	valid := true
	seen := make(map[int]struct{})
	items(form, func(n *model.Node) bool {
		id := n.Int(model.ItemID)
		if id == 0 {
			valid = false
			return false
		}
		if _, dup := seen[id]; dup {
			valid = false
			return false
		}
		seen[id] = struct{}{}
		return true
	})
	return valid
}

// Fix assigns a new identifier to an offending item.
//
// Description:
//
//	The auto command bar held directly by a form gets CommandBarID. Any
//	other item gets the generator's next value for its form. When the item
//	is not inside a form the fix does nothing.
//
// Outputs:
//
//	bool - True if the identifier was changed.
func (s *Service) Fix(item *model.Node) bool {
	if item == nil || !item.Class().Is(model.ClassFormItem) {
		return false
	}
	id, ok := s.newID(item)
	if !ok {
		s.logger.Warn("item id fix skipped: enclosing form unknown",
			slog.String("item", item.String()),
		)
		return false
	}
	if err := item.SetInt(model.ItemID, id); err != nil {
		s.logger.Warn("item id fix failed", slog.String("item", item.String()), slog.String("error", err.Error()))
		return false
	}
	return true
}

func (s *Service) newID(item *model.Node) (int, bool) {
	if item.Class() == model.ClassAutoCommandBar {
		if p := item.Parent(); p != nil && p.Class() == model.ClassForm {
			return CommandBarID, true
		}
	}
	form := item.Top()
	if form == nil || form.Class() != model.ClassForm {
		return 0, false
	}
	return s.generator.NextItemID(form), true
}

// SequenceGenerator issues identifiers above the largest one in a form.
//
// Values are monotonic per form URI, so two consecutive calls return
// distinct values even before the first one is written.
//
// Thread Safety:
//
//	Safe for concurrent use.
type SequenceGenerator struct {
	mu   sync.Mutex
	last map[model.URI]int
}

// NewSequenceGenerator creates a SequenceGenerator.
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{last: make(map[model.URI]int)}
}

// NextItemID implements Generator.
func (g *SequenceGenerator) NextItemID(form *model.Node) int {
	maxID := 0
	items(form, func(n *model.Node) bool {
		maxID = max(maxID, n.Int(model.ItemID))
		return true
	})
	g.mu.Lock()
	defer g.mu.Unlock()
	next := max(maxID, g.last[form.URI()]) + 1
	g.last[form.URI()] = next
	return next
}
