// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package check defines integrity checks and the plumbing shared by them.
//
// A check is a rule evaluator bound to metadata: an ID, a severity, and a
// declaration of the (top class, holder class, feature) triples whose
// changes can alter its verdict. The declaration is what the incremental
// scheduler consults; the check itself only ever sees one top object at a
// time and reports issues to a Sink.
package check

import "errors"

var (
	// ErrUnknownCheck indicates a check ID that is not registered.
	ErrUnknownCheck = errors.New("unknown check")

	// ErrDuplicateCheck indicates a second registration of the same check ID.
	ErrDuplicateCheck = errors.New("duplicate check")

	// ErrUnknownVariant indicates a fix variant the check does not offer.
	ErrUnknownVariant = errors.New("unknown fix variant")

	// ErrNoFix indicates a check that offers no quick fix.
	ErrNoFix = errors.New("check offers no fix")

	// ErrUnknownSeverity indicates an unparseable severity name.
	ErrUnknownSeverity = errors.New("unknown severity")
)
