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
	"fmt"
	"sync"

	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// Registry holds the checks known to an engine.
//
// Description:
//
//	Checks keep registration order. A check can be disabled or have its
//	severity overridden; disabled checks neither run nor contribute to
//	tracking.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	checks   []Check
	byID     map[string]Check
	disabled map[string]bool
	severity map[string]Severity
}

// NewRegistry creates a registry with the given checks.
func NewRegistry(checks ...Check) (*Registry, error) {
	r := &Registry{
		byID:     make(map[string]Check),
		disabled: make(map[string]bool),
		severity: make(map[string]Severity),
	}
	for _, c := range checks {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a check.
func (r *Registry) Register(c Check) error {
	id := c.Definition().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCheck, id)
	}
	r.checks = append(r.checks, c)
	r.byID[id] = c
	return nil
}

// Lookup returns a registered check, enabled or not.
func (r *Registry) Lookup(id string) (Check, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// Checks returns the enabled checks in registration order.
func (r *Registry) Checks() []Check {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Check, 0, len(r.checks))
	for _, c := range r.checks {
		if !r.disabled[c.Definition().ID] {
			out = append(out, c)
		}
	}
	return out
}

// All returns every registered check in registration order.
func (r *Registry) All() []Check {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Check(nil), r.checks...)
}

// Enabled reports whether a check is registered and enabled.
func (r *Registry) Enabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok && !r.disabled[id]
}

// SetEnabled enables or disables a check.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCheck, id)
	}
	if enabled {
		delete(r.disabled, id)
	} else {
		r.disabled[id] = true
	}
	return nil
}

// SetSeverity overrides the severity reported by a check.
func (r *Registry) SetSeverity(id string, s Severity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCheck, id)
	}
	r.severity[id] = s
	return nil
}

// Definition returns a check's definition with overrides applied.
func (r *Registry) Definition(c Check) Definition {
	def := c.Definition()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.severity[def.ID]; ok {
		def.Severity = s
	}
	return def
}

// tracking returns the declarations of the enabled checks.
func (r *Registry) tracking() Union {
	checks := r.Checks()
	u := make(Union, len(checks))
	for i, c := range checks {
		u[i] = c.Definition().Declaration
	}
	return u
}

// Tracks implements Tracking over the enabled checks.
func (r *Registry) Tracks(top, holder model.Class, holderIsTop bool, f *model.Feature) bool {
	return r.tracking().Tracks(top, holder, holderIsTop, f)
}

// TracksHolder implements Tracking over the enabled checks.
func (r *Registry) TracksHolder(top, holder model.Class) bool {
	return r.tracking().TracksHolder(top, holder)
}

// TracksFeature implements Tracking over the enabled checks.
func (r *Registry) TracksFeature(f *model.Feature) bool {
	return r.tracking().TracksFeature(f)
}

// Covers reports whether any enabled check applies to tops of class c.
func (r *Registry) Covers(c model.Class) bool {
	for _, ch := range r.Checks() {
		if ch.Definition().Declaration.Covers(c) {
			return true
		}
	}
	return false
}
