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
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// Results holds the latest issues per (top object, check).
//
// Description:
//
//	A validation pass of one check over one top replaces that check's
//	previous issues for the top. Issues therefore disappear once the
//	top is revalidated clean.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type Results struct {
	mu    sync.RWMutex
	byTop map[model.URI]map[string][]Issue
}

// NewResults creates an empty result store.
func NewResults() *Results {
	return &Results{byTop: make(map[model.URI]map[string][]Issue)}
}

// Replace stores the issues of one check pass over top.
func (r *Results) Replace(top model.URI, checkID string, issues []Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	checks, ok := r.byTop[top]
	if !ok {
		if len(issues) == 0 {
			return
		}
		checks = make(map[string][]Issue)
		r.byTop[top] = checks
	}
	if len(issues) == 0 {
		delete(checks, checkID)
		if len(checks) == 0 {
			delete(r.byTop, top)
		}
		return
	}
	checks[checkID] = append([]Issue(nil), issues...)
}

// Forget drops every issue of top.
func (r *Results) Forget(top model.URI) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byTop, top)
}

// ForgetCheck drops every issue reported by one check.
func (r *Results) ForgetCheck(checkID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for top, checks := range r.byTop {
		delete(checks, checkID)
		if len(checks) == 0 {
			delete(r.byTop, top)
		}
	}
}

// ForTop returns the issues of one top ordered by check ID.
func (r *Results) ForTop(top model.URI) []Issue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return flatten(r.byTop[top])
}

// All returns every issue ordered by top URI, then check ID.
func (r *Results) All() []Issue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tops := make([]model.URI, 0, len(r.byTop))
	for t := range r.byTop {
		tops = append(tops, t)
	}
	sort.Slice(tops, func(i, j int) bool { return tops[i] < tops[j] })
	var out []Issue
	for _, t := range tops {
		out = append(out, flatten(r.byTop[t])...)
	}
	return out
}

// Count returns the total number of stored issues.
func (r *Results) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, checks := range r.byTop {
		for _, is := range checks {
			n += len(is)
		}
	}
	return n
}

func flatten(checks map[string][]Issue) []Issue {
	ids := make([]string, 0, len(checks))
	for id := range checks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []Issue
	for _, id := range ids {
		out = append(out, checks[id]...)
	}
	return out
}
