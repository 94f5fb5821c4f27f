// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import "errors"

var (
	// ErrNilGraph indicates an engine created without a graph.
	ErrNilGraph = errors.New("graph must not be nil")

	// ErrNilRegistry indicates an engine created without a check registry.
	ErrNilRegistry = errors.New("check registry must not be nil")

	// ErrNotEditable indicates a fix on a top object the gate refuses.
	ErrNotEditable = errors.New("top object is not editable")

	// ErrStaleIssue indicates an issue whose node is no longer in the graph.
	ErrStaleIssue = errors.New("issue no longer applies")

	// ErrIssueNotFound indicates no current issue matches the request.
	ErrIssueNotFound = errors.New("issue not found")

	// ErrNoRepairer indicates a check without a bulk cleanup.
	ErrNoRepairer = errors.New("check offers no bulk cleanup")
)
