// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package itemid

import (
	"context"

	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/cleanup"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// CheckID is the registry ID of the item identifier check.
const CheckID = "form-invalid-item-id"

// VariantAssign is the only fix variant of the check.
const VariantAssign = "assign-new-id"

var definition = check.Definition{
	ID:          CheckID,
	Title:       "Form item identifier is invalid",
	Description: "Form item identifiers must be non-zero and unique within the form",
	Severity:    check.SeverityCritical,
	Type:        check.IssueError,
	Complexity:  check.ComplexityNormal,
	TopOnly:     true,
	Declaration: check.Declare().
		Top(model.ClassForm, model.Items, model.CommandBar).
		Nested(model.ClassForm, model.ClassFormItem, model.ItemID, model.Items, model.CommandBar).
		Build(),
}

// Check reports invalid and duplicate form item identifiers.
type Check struct {
	svc *Service
}

// NewCheck creates the check on top of svc.
func NewCheck(svc *Service) *Check {
	return &Check{svc: svc}
}

// Definition implements check.Check.
func (c *Check) Definition() check.Definition { return definition }

// Check implements check.Check.
func (c *Check) Check(ctx context.Context, top *model.Node, sink check.Sink) {
	for _, f := range c.svc.Findings(top) {
		if ctx.Err() != nil {
			return
		}
		sink.AddIssue(f.Node, model.ItemID, f.Problem.Message(), check.NoIndex)
	}
}

// Variants implements check.Fixer.
func (c *Check) Variants() []check.Variant {
	return []check.Variant{{
		ID:          VariantAssign,
		Title:       "Assign a new identifier",
		Description: "Replaces the identifier with a fresh value for the form",
		Apply: func(node *model.Node, _ *model.Feature) bool {
			return c.svc.Fix(node)
		},
	}}
}

// Repairer returns the bulk cleanup for this check.
func (c *Check) Repairer() cleanup.Repairer {
	return repairer{svc: c.svc}
}

type repairer struct {
	svc *Service
}

func (r repairer) Name() string { return CheckID }

func (r repairer) TopClasses() []model.Class { return []model.Class{model.ClassForm} }

func (r repairer) IsValid(top *model.Node) bool { return r.svc.IsValid(top) }

func (r repairer) Offenders(top *model.Node) []*model.Node {
	findings := r.svc.Findings(top)
	out := make([]*model.Node, len(findings))
	for i, f := range findings {
		out[i] = f.Node
	}
	return out
}

func (r repairer) Repair(node *model.Node) bool { return r.svc.Fix(node) }
