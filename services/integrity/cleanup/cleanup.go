// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cleanup runs bulk repairs over every top object of a graph.
//
// A cleanup has two phases. The scan phase visits every top object of the
// repairer's classes, skips the ones the editability gate rejects, keeps
// the ones whose quick validity test fails and evicts each scanned top so
// memory stays bounded. The fix phase runs one Task per kept top object:
// it reloads the top by URI and repairs every offending node.
//
// Cancellation is checked before each top object and before each node
// repair. Repairs already applied are kept when a run is cancelled.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// Gate decides whether a top object may be modified.
type Gate interface {
	CanEdit(top *model.Node) bool
}

// GateFunc adapts a function to Gate.
type GateFunc func(top *model.Node) bool

// CanEdit implements Gate.
func (f GateFunc) CanEdit(top *model.Node) bool { return f(top) }

// AllowAll is a Gate that permits every edit.
var AllowAll Gate = GateFunc(func(*model.Node) bool { return true })

// Repairer is the rule-specific part of a cleanup.
type Repairer interface {
	// Name identifies the repairer in logs and metrics.
	Name() string

	// TopClasses lists the top classes the repairer scans.
	TopClasses() []model.Class

	// IsValid is the quick test used by the scan phase. It stops at the
	// first violation.
	IsValid(top *model.Node) bool

	// Offenders returns the nodes to repair, in document order.
	Offenders(top *model.Node) []*model.Node

	// Repair fixes one node and reports whether the graph changed.
	Repair(node *model.Node) bool
}

// Report summarizes one cleanup run.
type Report struct {
	RunID     string        `json:"run_id"`
	Repairer  string        `json:"repairer"`
	Scanned   int           `json:"scanned"`
	Skipped   int           `json:"skipped"`
	Tasks     int           `json:"tasks"`
	Fixed     int           `json:"fixed"`
	Cancelled bool          `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithEviction controls whether scanned tops are evicted. Default true.
func WithEviction(evict bool) Option {
	return func(c *Cleaner) { c.evict = evict }
}

// WithLogger sets the cleaner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cleaner) {
		if l != nil {
			c.logger = l
		}
	}
}

// Cleaner runs repairers over a graph.
type Cleaner struct {
	graph  *model.Graph
	gate   Gate
	evict  bool
	logger *slog.Logger
}

// New creates a Cleaner. A nil gate allows every edit.
func New(g *model.Graph, gate Gate, opts ...Option) *Cleaner {
	if gate == nil {
		gate = AllowAll
	}
	c := &Cleaner{
		graph:  g,
		gate:   gate,
		evict:  true,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Task repairs one top object.
type Task struct {
	URI      model.URI
	cleaner  *Cleaner
	repairer Repairer
}

// Collect runs the scan phase and returns one task per top object needing
// repair. A cancelled scan returns the tasks found so far.
func (c *Cleaner) Collect(ctx context.Context, r Repairer) ([]Task, Report) {
	report := Report{Repairer: r.Name()}
	var tasks []Task
	for _, uri := range c.graph.TopURIs(r.TopClasses()...) {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		top, ok := c.graph.Top(uri)
		if !ok {
			continue
		}
		report.Scanned++
		switch {
		case !c.gate.CanEdit(top):
			report.Skipped++
			recordSkipped(r.Name())
		case !r.IsValid(top):
			tasks = append(tasks, Task{URI: uri, cleaner: c, repairer: r})
		}
		if c.evict {
			if err := c.graph.Evict(ctx, uri); err != nil {
				c.logger.Warn("cleanup: evict failed, keeping top in memory",
					slog.String("uri", string(uri)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	report.Tasks = len(tasks)
	return tasks, report
}

// Run repairs the task's top object and returns the number of nodes fixed
// and whether it stopped on cancellation.
func (t Task) Run(ctx context.Context) (int, bool) {
	if ctx.Err() != nil {
		return 0, true
	}
	top, ok := t.cleaner.graph.Top(t.URI)
	if !ok {
		t.cleaner.logger.Debug("cleanup: top object disappeared", slog.String("uri", string(t.URI)))
		return 0, false
	}
	if !t.cleaner.gate.CanEdit(top) {
		return 0, false
	}
	fixed := 0
	for _, n := range t.repairer.Offenders(top) {
		if ctx.Err() != nil {
			return fixed, true
		}
		if t.repairer.Repair(n) {
			fixed++
		}
	}
	return fixed, false
}

// Run scans the graph and repairs every top object that needs it.
func (c *Cleaner) Run(ctx context.Context, r Repairer) Report {
	start := time.Now()
	tasks, report := c.Collect(ctx, r)
	report.RunID = uuid.NewString()

	for _, task := range tasks {
		if report.Cancelled {
			break
		}
		fixed, cancelled := task.Run(ctx)
		report.Fixed += fixed
		report.Cancelled = cancelled
	}
	report.Duration = time.Since(start)
	recordRun(report)

	c.logger.Info("cleanup finished",
		slog.String("run_id", report.RunID),
		slog.String("repairer", report.Repairer),
		slog.Int("scanned", report.Scanned),
		slog.Int("skipped", report.Skipped),
		slog.Int("tasks", report.Tasks),
		slog.Int("fixed", report.Fixed),
		slog.Bool("cancelled", report.Cancelled),
	)
	return report
}
