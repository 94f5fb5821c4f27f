// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine keeps the validation results of a graph current.
//
// The engine consumes the graph's raw notifications, keeps the cross
// reference index in step, classifies each notification and lets the
// scheduler decide which top objects are owed a validation. RunPending
// validates those top objects in parallel and stores the latest issues
// per top object and check.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianCheck/pkg/telemetry"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/cleanup"
	"github.com/AleutianAI/AleutianCheck/services/integrity/events"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
	"github.com/AleutianAI/AleutianCheck/services/integrity/schedule"
	"github.com/AleutianAI/AleutianCheck/services/integrity/xref"
)

// DefaultWorkers is the default number of parallel validations.
const DefaultWorkers = 4

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets how many top objects RunPending validates at once.
// Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithGate sets the editability gate used by fixes and cleanups.
func WithGate(g cleanup.Gate) Option {
	return func(e *Engine) {
		if g != nil {
			e.gate = g
		}
	}
}

// WithEviction controls whether cleanups evict scanned top objects.
func WithEviction(evict bool) Option {
	return func(e *Engine) { e.evict = evict }
}

// Engine owns the index, the scheduler and the results of one graph.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Graph mutations must go
//	through Mutate, or be followed by Sync while no validation runs, so a
//	top object's validation never observes a half-applied change.
type Engine struct {
	// mu is held for writing while the graph changes and for reading while
	// checks run.
	mu sync.RWMutex

	graph      *model.Graph
	registry   *check.Registry
	index      *xref.Index
	classifier *events.Classifier
	sched      *schedule.Scheduler
	results    *check.Results

	gate    cleanup.Gate
	workers int
	evict   bool
	logger  *slog.Logger

	// claims serializes validations of the same top object.
	claimMu sync.Mutex
	claims  map[model.URI]*sync.Mutex
}

// New creates an engine for g.
//
// Description:
//
//	Notifications already buffered by g are discarded: the index is
//	rebuilt from the current graph and every top object covered by an
//	enabled check starts Pending.
//
// Inputs:
//
//	g - The graph. Must not be nil.
//	reg - The checks to run. Must not be nil.
//
// Outputs:
//
//	*Engine - Ready engine; call RunPending for the initial validation.
//	error - ErrNilGraph or ErrNilRegistry.
func New(g *model.Graph, reg *check.Registry, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if reg == nil {
		return nil, ErrNilRegistry
	}
	e := &Engine{
		graph:    g,
		registry: reg,
		index:    xref.New(),
		results:  check.NewResults(),
		gate:     cleanup.AllowAll,
		workers:  DefaultWorkers,
		evict:    true,
		logger:   slog.Default(),
		claims:   make(map[model.URI]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.classifier = events.NewClassifier(reg)
	e.sched = schedule.New(reg, e.index, g, schedule.WithLogger(e.logger))

	g.Flush()
	e.index.Rebuild(g)
	for _, top := range g.Tops() {
		e.sched.Admit(top)
	}
	return e, nil
}

// Graph returns the engine's graph.
func (e *Engine) Graph() *model.Graph { return e.graph }

// Registry returns the engine's checks.
func (e *Engine) Registry() *check.Registry { return e.registry }

// ===== SCHEDULING =====

// Sync consumes the graph's buffered notifications.
//
// Outputs:
//
//	int - Number of top objects that moved from Clean to Pending.
func (e *Engine) Sync(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncLocked(ctx)
}

func (e *Engine) syncLocked(ctx context.Context) int {
	notes := e.graph.Flush()
	if len(notes) == 0 {
		return 0
	}
	_, span := telemetry.StartSpan(ctx, tracerName, "engine.Sync")
	defer span.End()

	marks := 0
	var detached []model.URI
	for _, n := range notes {
		e.index.Apply(n)
		switch n.Kind {
		case model.NotifyCreate:
			if e.sched.Admit(n.Node) {
				marks++
			}
		case model.NotifyDetach:
			detached = append(detached, n.URI)
		}
		for _, ev := range e.classifier.Classify(n) {
			marks += e.sched.Handle(ev)
		}
	}
	// Results are keyed by top URI, so forgetting a nested URI is a no-op.
	for _, uri := range detached {
		if _, ok := e.graph.TopClass(uri); !ok {
			e.results.Forget(uri)
			e.sched.Forget(uri)
		}
	}

	recordSync(ctx, len(notes))
	span.SetAttributes(
		attribute.Int("notifications", len(notes)),
		attribute.Int("marks", marks),
	)
	e.logger.Debug("engine: synced",
		slog.Int("notifications", len(notes)),
		slog.Int("marks", marks),
		slog.Int("pending", e.sched.Count()),
	)
	return marks
}

// Mutate runs fn with exclusive access to the graph, then syncs.
//
// Outputs:
//
//	int - Number of top objects marked Pending by the mutation.
//	error - The error returned by fn. Changes made before it are kept.
func (e *Engine) Mutate(ctx context.Context, fn func(g *model.Graph) error) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := fn(e.graph)
	return e.syncLocked(ctx), err
}

// MarkAll marks every top object covered by an enabled check Pending.
func (e *Engine) MarkAll() int {
	marks := 0
	for _, uri := range e.graph.TopURIs() {
		class, ok := e.graph.TopClass(uri)
		if !ok || !e.registry.Covers(class) {
			continue
		}
		if e.sched.MarkPending(uri, class, schedule.ReasonManual) {
			marks++
		}
	}
	return marks
}

// State returns the scheduling state of a top object.
func (e *Engine) State(uri model.URI) schedule.State { return e.sched.State(uri) }

// Pending returns the queued top objects in marking order.
func (e *Engine) Pending() []schedule.Entry { return e.sched.Pending() }

// ===== VALIDATION =====

// RunReport summarizes one RunPending call.
type RunReport struct {
	RunID     string        `json:"run_id"`
	Validated int           `json:"validated"`
	Requeued  int           `json:"requeued"`
	Issues    int           `json:"issues"`
	Duration  time.Duration `json:"duration"`
}

// RunPending validates every Pending top object.
//
// Description:
//
//	Pending notifications are synced first. The queue is drained and up to
//	the configured number of top objects are validated at once, each by
//	every enabled check covering its class. A top object whose validation
//	completes is Clean and its results are replaced. On cancellation the
//	unfinished top objects go back to the front of the queue and their
//	previous results are kept.
//
// Outputs:
//
//	RunReport - Counts for the run.
//	error - ctx.Err() when the run was cut short.
func (e *Engine) RunPending(ctx context.Context) (RunReport, error) {
	start := time.Now()
	report := RunReport{RunID: uuid.NewString()}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "engine.RunPending")
	defer span.End()

	e.Sync(ctx)

	e.mu.RLock()
	defer e.mu.RUnlock()

	entries := e.sched.Drain(0)
	done := make([]bool, len(entries))
	issues := make([]int, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			top, ok := e.graph.Top(entry.URI)
			if !ok {
				e.results.Forget(entry.URI)
				done[i] = true
				return nil
			}
			n, err := e.validate(gctx, top)
			if err != nil {
				return err
			}
			issues[i] = n
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	var requeue []schedule.Entry
	for i, entry := range entries {
		if done[i] {
			report.Validated++
			report.Issues += issues[i]
			continue
		}
		requeue = append(requeue, entry)
	}
	if len(requeue) > 0 {
		if err == nil {
			err = ctx.Err()
		}
		e.sched.Requeue(requeue)
		recordRequeued(ctx, len(requeue))
	}
	report.Requeued = len(requeue)
	report.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("run_id", report.RunID),
		attribute.Int("validated", report.Validated),
		attribute.Int("requeued", report.Requeued),
	)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetSpanOK(span)
	}
	e.logger.Info("engine: run finished",
		slog.String("run_id", report.RunID),
		slog.Int("validated", report.Validated),
		slog.Int("requeued", report.Requeued),
		slog.Int("issues", report.Issues),
		slog.Duration("duration", report.Duration),
	)
	return report, err
}

// ValidateAll marks every covered top object Pending and runs them.
func (e *Engine) ValidateAll(ctx context.Context) (RunReport, error) {
	e.Sync(ctx)
	e.MarkAll()
	return e.RunPending(ctx)
}

// Validate validates one top object now, regardless of its state.
//
// Outputs:
//
//	[]check.Issue - The top object's issues after the run.
//	error - ErrNotTop for an unknown URI, or ctx.Err().
func (e *Engine) Validate(ctx context.Context, uri model.URI) ([]check.Issue, error) {
	e.Sync(ctx)

	e.mu.RLock()
	defer e.mu.RUnlock()

	top, ok := e.graph.Top(uri)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotTop, uri)
	}
	if _, err := e.validate(ctx, top); err != nil {
		return nil, err
	}
	e.sched.Complete(uri)
	return e.results.ForTop(uri), nil
}

// validate runs every enabled check covering the top object's class and
// stores the results. Nothing is stored when ctx is cancelled midway.
func (e *Engine) validate(ctx context.Context, top *model.Node) (int, error) {
	uri := top.URI()
	release := e.claim(uri)
	defer release()

	start := time.Now()
	class := top.Class()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "engine.validate")
	defer span.End()
	span.SetAttributes(
		attribute.String("uri", string(uri)),
		attribute.String("class", class.String()),
	)

	type result struct {
		id     string
		issues []check.Issue
	}
	var results []result
	total := 0
	for _, c := range e.registry.Checks() {
		def := e.registry.Definition(c)
		if !def.Declaration.Covers(class) {
			continue
		}
		sink := check.NewCollector(def, top)
		c.Check(ctx, top, sink)
		if err := ctx.Err(); err != nil {
			recordValidate(ctx, class.String(), time.Since(start), 0, true)
			telemetry.RecordError(span, err)
			return 0, err
		}
		results = append(results, result{id: def.ID, issues: sink.Issues()})
		total += len(sink.Issues())
	}
	for _, r := range results {
		e.results.Replace(uri, r.id, r.issues)
	}

	recordValidate(ctx, class.String(), time.Since(start), total, false)
	span.SetAttributes(attribute.Int("issues", total))
	e.logger.Debug("engine: validated",
		slog.String("uri", string(uri)),
		slog.Int("issues", total),
	)
	return total, nil
}

// claim blocks until no other validation of uri runs and returns the
// release func.
func (e *Engine) claim(uri model.URI) func() {
	e.claimMu.Lock()
	m, ok := e.claims[uri]
	if !ok {
		m = &sync.Mutex{}
		e.claims[uri] = m
	}
	e.claimMu.Unlock()
	m.Lock()
	return m.Unlock
}

// ===== RESULTS =====

// Issues returns every stored issue, grouped by top URI and check ID.
func (e *Engine) Issues() []check.Issue { return e.results.All() }

// IssuesFor returns the stored issues of one top object.
func (e *Engine) IssuesFor(uri model.URI) []check.Issue { return e.results.ForTop(uri) }

// IssueCount returns the number of stored issues.
func (e *Engine) IssueCount() int { return e.results.Count() }

// FindIssue returns the stored issue a record describes.
func (e *Engine) FindIssue(rec check.Record) (check.Issue, error) {
	for _, is := range e.results.ForTop(rec.Top) {
		if is.CheckID != rec.CheckID || is.Node == nil || is.Node.ID() != rec.NodeID {
			continue
		}
		if rec.Feature != "" && is.Feature.String() != rec.Feature {
			continue
		}
		idx := check.NoIndex
		if rec.Index != nil {
			idx = *rec.Index
		}
		if is.Index != idx {
			continue
		}
		return is, nil
	}
	return check.Issue{}, fmt.Errorf("%w: %s/%s#%d", ErrIssueNotFound, rec.Top, rec.CheckID, rec.NodeID)
}

// SetEnabled enables or disables a check. Disabling drops its results;
// enabling marks every top object it covers Pending.
func (e *Engine) SetEnabled(id string, enabled bool) error {
	if err := e.registry.SetEnabled(id, enabled); err != nil {
		return err
	}
	if !enabled {
		e.results.ForgetCheck(id)
		return nil
	}
	c, _ := e.registry.Lookup(id)
	decl := c.Definition().Declaration
	for _, uri := range e.graph.TopURIs(decl.TopClasses()...) {
		if class, ok := e.graph.TopClass(uri); ok {
			e.sched.MarkPending(uri, class, schedule.ReasonManual)
		}
	}
	return nil
}

// ===== FIXES =====

// ApplyFix applies one fix variant to the node of an issue.
//
// Description:
//
//	An empty variantID picks the check's first variant. The gate must
//	allow editing the issue's top object. The resulting notifications are
//	synced, so affected top objects become Pending.
//
// Outputs:
//
//	bool - True when the graph changed.
//	error - check.ErrUnknownCheck, check.ErrNoFix, check.ErrUnknownVariant,
//	        ErrNotEditable or ErrStaleIssue.
func (e *Engine) ApplyFix(ctx context.Context, issue check.Issue, variantID string) (bool, error) {
	c, ok := e.registry.Lookup(issue.CheckID)
	if !ok {
		return false, fmt.Errorf("%w: %s", check.ErrUnknownCheck, issue.CheckID)
	}
	v, err := check.FindVariant(c, variantID)
	if err != nil {
		return false, err
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "engine.ApplyFix")
	defer span.End()
	span.SetAttributes(
		attribute.String("check", issue.CheckID),
		attribute.String("variant", v.ID),
	)

	e.mu.Lock()
	defer e.mu.Unlock()

	node, err := e.liveNode(issue)
	if err != nil {
		return false, err
	}
	top := node.Top()
	if top == nil || !e.gate.CanEdit(top) {
		return false, fmt.Errorf("%w: %s", ErrNotEditable, issue.TopURI)
	}
	changed := v.Apply(node, issue.Feature)
	marks := e.syncLocked(ctx)

	e.logger.Info("engine: fix applied",
		slog.String("check", issue.CheckID),
		slog.String("variant", v.ID),
		slog.String("node", node.String()),
		slog.Bool("changed", changed),
		slog.Int("marks", marks),
	)
	return changed, nil
}

// liveNode returns the graph's current node for an issue. Stored issues may
// hold nodes of a top object that was evicted since; looking the node up by
// ID reloads it.
func (e *Engine) liveNode(issue check.Issue) (*model.Node, error) {
	if issue.Node == nil {
		return nil, ErrStaleIssue
	}
	n, ok := e.graph.NodeByID(issue.Node.ID())
	if !ok || !n.IsLive() || n.Class() != issue.Node.Class() {
		return nil, ErrStaleIssue
	}
	return n, nil
}

// repairable is implemented by checks that offer a bulk cleanup.
type repairable interface {
	Repairer() cleanup.Repairer
}

// Cleanup runs the bulk cleanup of one check over the whole graph.
//
// Description:
//
//	Buffered notifications are synced before the scan, since scanned top
//	objects may be evicted. Repairs are synced afterwards.
func (e *Engine) Cleanup(ctx context.Context, checkID string) (cleanup.Report, error) {
	c, ok := e.registry.Lookup(checkID)
	if !ok {
		return cleanup.Report{}, fmt.Errorf("%w: %s", check.ErrUnknownCheck, checkID)
	}
	r, ok := c.(repairable)
	if !ok {
		return cleanup.Report{}, fmt.Errorf("%w: %s", ErrNoRepairer, checkID)
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "engine.Cleanup")
	defer span.End()
	span.SetAttributes(attribute.String("check", checkID))

	e.mu.Lock()
	defer e.mu.Unlock()

	e.syncLocked(ctx)
	cleaner := cleanup.New(e.graph, e.gate,
		cleanup.WithEviction(e.evict),
		cleanup.WithLogger(e.logger),
	)
	report := cleaner.Run(ctx, r.Repairer())
	e.syncLocked(ctx)

	span.SetAttributes(
		attribute.String("run_id", report.RunID),
		attribute.Int("fixed", report.Fixed),
		attribute.Bool("cancelled", report.Cancelled),
	)
	return report, nil
}
