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
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// Check validates one top object at a time.
//
// Description:
//
//	Check is called with a top object and reports problems to the sink. A
//	top object outside the check's declaration yields no issues. Checks
//	must only read the graph; they never mutate it.
type Check interface {
	Definition() Definition
	Check(ctx context.Context, top *model.Node, sink Sink)
}

// ApplyFunc applies a fix at (node, feature) and reports whether the graph
// changed. It never returns a guessed value when the target is uncertain.
type ApplyFunc func(node *model.Node, feature *model.Feature) bool

// Variant is one way of fixing an issue.
type Variant struct {
	ID          string
	Title       string
	Description string
	Apply       ApplyFunc
}

// Fixer is implemented by checks that offer quick fixes.
type Fixer interface {
	Variants() []Variant
}

// FindVariant looks up a fix variant of c. An empty id selects the first
// variant.
func FindVariant(c Check, id string) (Variant, error) {
	f, ok := c.(Fixer)
	if !ok || len(f.Variants()) == 0 {
		return Variant{}, fmt.Errorf("%w: %s", ErrNoFix, c.Definition().ID)
	}
	vs := f.Variants()
	if id == "" {
		return vs[0], nil
	}
	for _, v := range vs {
		if v.ID == id {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("%w: %s/%s", ErrUnknownVariant, c.Definition().ID, id)
}
