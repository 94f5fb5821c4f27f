// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package integrity exposes the integrity engine over HTTP.
//
// The service keeps one long-lived workspace graph that is edited object by
// object and validated incrementally. Documents posted to the validate and
// fix endpoints are checked in a graph of their own and never touch the
// workspace.
package integrity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianCheck/pkg/extensions"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/cleanup"
	"github.com/AleutianAI/AleutianCheck/services/integrity/document"
	"github.com/AleutianAI/AleutianCheck/services/integrity/engine"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// ServiceVersion is the integrity service version.
const ServiceVersion = "0.1.0"

// RegistryFactory builds a fresh registry of configured checks. Every
// graph gets its own registry so enable state and identifier generators
// are never shared.
type RegistryFactory func() (*check.Registry, error)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// NewRegistry builds the checks. Required.
	NewRegistry RegistryFactory

	// Store backs eviction in the workspace graph. Optional.
	Store model.Store

	// Gate restricts fixes. Nil allows every edit.
	Gate cleanup.Gate

	// Workers is the number of parallel validations per run.
	Workers int

	// Evict enables eviction during workspace cleanups.
	Evict bool

	// Audit records workspace edits and fixes. Nil discards them.
	Audit extensions.AuditLogger

	Logger *slog.Logger
}

// Service owns the workspace engine.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type Service struct {
	cfg       ServiceConfig
	workspace *engine.Engine
	logger    *slog.Logger
}

// NewService creates a service with an empty workspace.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.NewRegistry == nil {
		return nil, ErrNilRegistryFactory
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Audit == nil {
		cfg.Audit = &extensions.NopAuditLogger{}
	}
	var gopts []model.GraphOption
	if cfg.Store != nil {
		gopts = append(gopts, model.WithStore(cfg.Store))
	}
	ws, err := newEngine(cfg, model.NewGraph(append(gopts, model.WithLogger(logger))...), cfg.Evict, logger)
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, workspace: ws, logger: logger}, nil
}

func newEngine(cfg ServiceConfig, g *model.Graph, evict bool, logger *slog.Logger) (*engine.Engine, error) {
	reg, err := cfg.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	return engine.New(g, reg,
		engine.WithWorkers(cfg.Workers),
		engine.WithGate(cfg.Gate),
		engine.WithEviction(evict),
		engine.WithLogger(logger),
	)
}

// audit records one event. Failures are logged, never returned.
func (s *Service) audit(ctx context.Context, eventType, action, resource string, err error, meta map[string]any) {
	outcome := extensions.OutcomeSuccess
	if err != nil {
		outcome = extensions.OutcomeFailure
		if meta == nil {
			meta = map[string]any{}
		}
		meta["error"] = err.Error()
	}
	event := extensions.AuditEvent{
		EventType:    eventType,
		Actor:        "system",
		Action:       action,
		ResourceType: "top_object",
		ResourceID:   resource,
		Outcome:      outcome,
		Metadata:     meta,
	}
	if aerr := s.cfg.Audit.Log(ctx, event); aerr != nil {
		s.logger.Warn("audit log failed", "event_type", eventType, "error", aerr)
	}
}

// AuditEvents queries the audit log.
func (s *Service) AuditEvents(ctx context.Context, filter extensions.AuditFilter) ([]extensions.AuditEvent, error) {
	return s.cfg.Audit.Query(ctx, filter)
}

// Workspace returns the workspace engine.
func (s *Service) Workspace() *engine.Engine { return s.workspace }

// Checks describes every registered check of the workspace.
func (s *Service) Checks() []CheckInfo {
	reg := s.workspace.Registry()
	all := reg.All()
	out := make([]CheckInfo, 0, len(all))
	for _, c := range all {
		def := reg.Definition(c)
		info := CheckInfo{
			ID:          def.ID,
			Title:       def.Title,
			Description: def.Description,
			Severity:    def.Severity,
			Type:        def.Type,
			Complexity:  def.Complexity,
			TopOnly:     def.TopOnly,
			Enabled:     reg.Enabled(def.ID),
		}
		for _, tc := range def.Declaration.TopClasses() {
			info.TopClasses = append(info.TopClasses, tc.String())
		}
		if f, ok := c.(check.Fixer); ok {
			for _, v := range f.Variants() {
				info.Variants = append(info.Variants, VariantInfo{ID: v.ID, Title: v.Title, Description: v.Description})
			}
		}
		_, info.BulkFix = c.(interface{ Repairer() cleanup.Repairer })
		out = append(out, info)
	}
	return out
}

// ===== DOCUMENTS =====

// scratch builds doc into a new graph with its own engine.
func (s *Service) scratch(doc *document.Document) (*engine.Engine, error) {
	g := model.NewGraph(model.WithLogger(s.logger))
	if _, err := doc.Build(g); err != nil {
		return nil, err
	}
	return newEngine(s.cfg, g, false, s.logger)
}

// ValidateDocument validates every top object of doc.
func (s *Service) ValidateDocument(ctx context.Context, doc *document.Document) (IssuesResponse, error) {
	e, err := s.scratch(doc)
	if err != nil {
		return IssuesResponse{}, err
	}
	report, err := e.ValidateAll(ctx)
	if err != nil {
		return IssuesResponse{}, err
	}
	issues := check.Records(e.Issues())
	return IssuesResponse{Issues: issues, Count: len(issues), Run: &report}, nil
}

// FixDocument runs one check's bulk cleanup over doc.
//
// Outputs:
//
//	FixResponse - The cleanup report, the repaired document and the issues
//	              left after the repair.
func (s *Service) FixDocument(ctx context.Context, doc *document.Document, checkID string) (FixResponse, error) {
	e, err := s.scratch(doc)
	if err != nil {
		return FixResponse{}, err
	}
	report, err := e.Cleanup(ctx, checkID)
	if err != nil {
		return FixResponse{}, err
	}
	if _, err := e.ValidateAll(ctx); err != nil {
		return FixResponse{}, err
	}
	return FixResponse{
		Report:   report,
		Document: document.FromGraph(e.Graph()),
		Issues:   check.Records(e.Issues()),
	}, nil
}

// ===== WORKSPACE =====

// Load adds every object of doc to the workspace.
func (s *Service) Load(ctx context.Context, doc *document.Document) (int, error) {
	return s.workspace.Mutate(ctx, func(g *model.Graph) error {
		_, err := doc.Build(g)
		return err
	})
}

// PutObject adds a top object to the workspace, replacing the top object
// with the same URI.
func (s *Service) PutObject(ctx context.Context, snap *model.Snapshot) (int, error) {
	action := "create"
	marks, err := s.workspace.Mutate(ctx, func(g *model.Graph) error {
		n, err := g.Materialize(snap)
		if err != nil {
			return err
		}
		if old, ok := g.Top(n.URI()); ok {
			action = "update"
			if err := g.DetachTop(old); err != nil {
				return err
			}
		}
		return g.AttachTop(n)
	})
	s.audit(ctx, "object.put", action, string(snap.URI), err, map[string]any{"marks": marks})
	return marks, err
}

// DeleteObject removes a top object from the workspace.
func (s *Service) DeleteObject(ctx context.Context, uri model.URI) (int, error) {
	marks, err := s.workspace.Mutate(ctx, func(g *model.Graph) error {
		top, ok := g.Top(uri)
		if !ok {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, uri)
		}
		return g.DetachTop(top)
	})
	s.audit(ctx, "object.delete", "delete", string(uri), err, map[string]any{"marks": marks})
	return marks, err
}

// Reconcile makes the workspace hold exactly the objects of doc.
//
// Description:
//
//	Objects whose content is unchanged are left alone so that only the
//	edited ones and the top objects depending on them become Pending.
//	Changed objects are replaced and objects missing from doc are removed.
func (s *Service) Reconcile(ctx context.Context, doc *document.Document) (ReconcileReport, error) {
	var rep ReconcileReport
	marks, err := s.workspace.Mutate(ctx, func(g *model.Graph) error {
		want := make(map[model.URI]bool, len(doc.Objects))
		for _, snap := range doc.Objects {
			want[snap.URI] = true
			n, err := g.Materialize(snap)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", document.ErrInvalidDocument, snap.URI, err)
			}
			if old, ok := g.Top(snap.URI); ok {
				if sameContent(old, n) {
					continue
				}
				if err := g.DetachTop(old); err != nil {
					return err
				}
				rep.Replaced++
			} else {
				rep.Added++
			}
			if err := g.AttachTop(n); err != nil {
				return err
			}
		}
		for _, uri := range g.TopURIs() {
			if want[uri] {
				continue
			}
			if top, ok := g.Top(uri); ok {
				if err := g.DetachTop(top); err != nil {
					return err
				}
				rep.Removed++
			}
		}
		return nil
	})
	rep.Marks = marks
	s.audit(ctx, "workspace.reconcile", "update", "", err, map[string]any{
		"added":    rep.Added,
		"replaced": rep.Replaced,
		"removed":  rep.Removed,
	})
	return rep, err
}

func sameContent(a, b *model.Node) bool {
	sa, sb := model.SnapshotOf(a), model.SnapshotOf(b)
	sa.StripIDs()
	sb.StripIDs()
	ja, err := json.Marshal(sa)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(sb)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// Run validates the Pending workspace top objects.
func (s *Service) Run(ctx context.Context) (engine.RunReport, error) {
	return s.workspace.RunPending(ctx)
}

// ApplyFix fixes one workspace issue.
func (s *Service) ApplyFix(ctx context.Context, rec check.Record, variant string) (bool, error) {
	issue, err := s.workspace.FindIssue(rec)
	if err != nil {
		return false, err
	}
	changed, err := s.workspace.ApplyFix(ctx, issue, variant)
	s.audit(ctx, "fix.apply", "update", string(rec.Top), err, map[string]any{
		"check":   rec.CheckID,
		"node_id": uint64(rec.NodeID),
		"variant": variant,
		"changed": changed,
	})
	return changed, err
}

// Cleanup runs one check's bulk cleanup over the workspace.
func (s *Service) Cleanup(ctx context.Context, checkID string) (cleanup.Report, error) {
	report, err := s.workspace.Cleanup(ctx, checkID)
	s.audit(ctx, "fix.bulk", "update", "", err, map[string]any{
		"check":   checkID,
		"run_id":  report.RunID,
		"fixed":   report.Fixed,
		"skipped": report.Skipped,
	})
	return report, err
}

// Export captures the workspace as a document.
func (s *Service) Export() *document.Document {
	return document.FromGraph(s.workspace.Graph())
}
