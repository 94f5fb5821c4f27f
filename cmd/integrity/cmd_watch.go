// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCheck/services/integrity"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/document"
)

func newWatchCmd(opts *options) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Revalidate a document whenever it changes",
		Long: `Loads a document into a workspace and validates it, then watches the file.
On every save only the changed objects, and the objects that depend on
them, are validated again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup(cmd, "integrity")
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, rt, args[0], debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", document.DefaultDebounce, "Wait this long for writes to settle")
	return cmd
}

// watchSession applies reloads to a workspace and reports the change.
type watchSession struct {
	ctx  context.Context
	rt   *runtime
	svc  *integrity.Service
	path string
}

func runWatch(ctx context.Context, rt *runtime, path string, debounce time.Duration) error {
	doc, err := document.Load(path)
	if err != nil {
		return err
	}
	svc, err := rt.service()
	if err != nil {
		return err
	}
	s := &watchSession{ctx: ctx, rt: rt, svc: svc, path: path}
	if err := s.apply(doc); err != nil {
		return err
	}

	w, err := document.NewWatcher(path, s.reload, debounce, rt.logger.Slog())
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := w.Start(ctx); err != nil {
		return err
	}
	rt.printer.Info(fmt.Sprintf("Watching %s (Ctrl+C to stop)", path))
	<-ctx.Done()
	return nil
}

func (s *watchSession) reload(doc *document.Document, err error) {
	if err != nil {
		s.rt.printer.Error(err.Error())
		return
	}
	if err := s.apply(doc); err != nil {
		s.rt.printer.Error(err.Error())
	}
}

// apply reconciles the workspace with doc, validates what changed and
// prints the result.
func (s *watchSession) apply(doc *document.Document) error {
	before := s.svc.Workspace().IssueCount()
	rep, err := s.svc.Reconcile(s.ctx, doc)
	if err != nil {
		return err
	}
	run, err := s.svc.Run(s.ctx)
	if err != nil {
		return err
	}
	records := check.Records(s.svc.Workspace().Issues())

	if s.rt.jsonOut {
		return writeJSON(s.rt.printer.Writer(), struct {
			Change integrity.ReconcileReport `json:"change"`
			integrity.IssuesResponse
		}{rep, integrity.IssuesResponse{Issues: records, Count: len(records), Run: &run}})
	}

	s.rt.printer.Title(fmt.Sprintf("%s  %s", s.path, time.Now().Format("15:04:05")))
	s.rt.printer.Info(fmt.Sprintf("objects: +%d ~%d -%d, validated %d, issues %d -> %d",
		rep.Added, rep.Replaced, rep.Removed, run.Validated, before, len(records)))
	s.rt.printer.Issues(issueRows(records))
	s.rt.printer.Summary(len(s.svc.Workspace().Graph().TopURIs()), len(records))
	return nil
}
