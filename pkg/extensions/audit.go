// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines pluggable extension points for the integrity
// service. The defaults are no-ops; deployments inject their own
// implementations through the service configuration.
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Outcomes recorded on audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuditEvent records one change made to a graph.
//
// Event types use the form "category.action", for example "fix.apply" or
// "object.delete".
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    "fix.apply",
//	    Action:       "update",
//	    ResourceType: "top_object",
//	    ResourceID:   "Form.Orders",
//	    Outcome:      OutcomeSuccess,
//	    Metadata: map[string]any{
//	        "check":   "form-invalid-item-id",
//	        "variant": "assign-new-id",
//	    },
//	}
type AuditEvent struct {
	// EventType categorizes the event for filtering.
	EventType string `json:"event_type"`

	// Timestamp is when the event occurred, in UTC.
	// If zero, implementations set it to time.Now().UTC().
	Timestamp time.Time `json:"timestamp"`

	// Actor identifies who made the change. "system" for automated runs.
	Actor string `json:"actor,omitempty"`

	// Action is "create", "update" or "delete".
	Action string `json:"action"`

	// ResourceType is the category of resource involved.
	ResourceType string `json:"resource_type"`

	// ResourceID is the resource instance, usually a top object URI.
	ResourceID string `json:"resource_id,omitempty"`

	// Outcome is OutcomeSuccess or OutcomeFailure.
	Outcome string `json:"outcome"`

	// Metadata holds event-specific details.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AuditFilter selects events. Zero fields do not filter; set fields are
// combined with AND.
type AuditFilter struct {
	EventTypes []string
	ResourceID string
	Outcome    string

	// Limit caps the result, newest events kept. Zero means no cap.
	Limit int
}

func (f AuditFilter) matches(e AuditEvent) bool {
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, e.EventType) {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	return true
}

// AuditLogger records changes for later review.
//
// Log should not block for long: it is called while the graph is locked.
type AuditLogger interface {
	// Log records one event.
	Log(ctx context.Context, event AuditEvent) error

	// Query returns recorded events matching filter, oldest first.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)

	// Flush persists buffered events.
	Flush(ctx context.Context) error
}

// =============================================================================
// No-op
// =============================================================================

// NopAuditLogger discards every event.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error { return nil }

// Query always returns an empty slice.
func (l *NopAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

// Flush is a no-op.
func (l *NopAuditLogger) Flush(ctx context.Context) error { return nil }

// =============================================================================
// In-memory
// =============================================================================

// DefaultAuditCapacity is the event capacity of NewMemoryAuditLogger(0).
const DefaultAuditCapacity = 1000

// MemoryAuditLogger keeps the most recent events in memory and mirrors
// them to a slog logger when one is set.
//
// Thread Safety:
//
//	Safe for concurrent use.
type MemoryAuditLogger struct {
	mu       sync.Mutex
	events   []AuditEvent
	capacity int
	logger   *slog.Logger
}

// NewMemoryAuditLogger creates a logger holding at most capacity events.
// The oldest events are dropped first. logger may be nil.
func NewMemoryAuditLogger(capacity int, logger *slog.Logger) *MemoryAuditLogger {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &MemoryAuditLogger{capacity: capacity, logger: logger}
}

// Log records the event.
func (l *MemoryAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	if len(l.events) == l.capacity {
		l.events = slices.Delete(l.events, 0, 1)
	}
	l.events = append(l.events, event)
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
			slog.String("event_type", event.EventType),
			slog.String("action", event.Action),
			slog.String("resource_type", event.ResourceType),
			slog.String("resource_id", event.ResourceID),
			slog.String("outcome", event.Outcome),
			slog.Any("metadata", event.Metadata),
		)
	}
	return nil
}

// Query returns matching events, oldest first.
func (l *MemoryAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEvent, 0)
	for _, e := range l.events {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

// Flush is a no-op since events are never buffered.
func (l *MemoryAuditLogger) Flush(ctx context.Context) error { return nil }

var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*MemoryAuditLogger)(nil)
)
