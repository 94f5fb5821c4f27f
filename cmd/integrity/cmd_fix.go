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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCheck/services/integrity/document"
)

type fixOptions struct {
	checkID string
	write   bool
	output  string
}

func newFixCmd(opts *options) *cobra.Command {
	fo := &fixOptions{}
	cmd := &cobra.Command{
		Use:   "fix FILE",
		Short: "Repair every issue of one check",
		Long: `Runs the bulk cleanup of one check over a document. Each top object with
issues is repaired in turn and the document is validated again.

The repaired document is printed to stdout, written back with --write, or
written to another file with --output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup(cmd, "integrity")
			if err != nil {
				return err
			}
			defer rt.close()
			return runFix(cmd, rt, fo, args[0])
		},
	}
	cmd.Flags().StringVar(&fo.checkID, "check", "", "Check ID to repair (required)")
	cmd.Flags().BoolVarP(&fo.write, "write", "w", false, "Write the repaired document back to FILE")
	cmd.Flags().StringVarP(&fo.output, "output", "o", "", "Write the repaired document to this path")
	_ = cmd.MarkFlagRequired("check")
	cmd.MarkFlagsMutuallyExclusive("write", "output")
	return cmd
}

func runFix(cmd *cobra.Command, rt *runtime, fo *fixOptions, path string) error {
	if fo.checkID == "" {
		return errors.New("--check is required")
	}
	doc, err := document.Load(path)
	if err != nil {
		return err
	}
	svc, err := rt.service()
	if err != nil {
		return err
	}
	resp, err := svc.FixDocument(cmd.Context(), doc, fo.checkID)
	if err != nil {
		return err
	}

	target := fo.output
	if fo.write {
		target = path
	}
	if target != "" {
		if err := resp.Document.Save(target); err != nil {
			return err
		}
	}

	switch {
	case rt.jsonOut:
		if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	case target == "":
		data, err := resp.Document.Marshal(document.FormatForPath(path))
		if err != nil {
			return err
		}
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return err
		}
	default:
		r := resp.Report
		rt.printer.Success(fmt.Sprintf("%s: fixed %d issues in %d of %d top objects", fo.checkID, r.Fixed, r.Tasks, r.Scanned))
		if r.Skipped > 0 {
			rt.printer.Warning(fmt.Sprintf("%d top objects skipped (not editable)", r.Skipped))
		}
		rt.printer.Info(fmt.Sprintf("Wrote %s", target))
		if len(resp.Issues) > 0 {
			printIssues(rt, "Remaining issues", len(resp.Document.Objects), resp.Issues)
		}
	}
	if len(resp.Issues) > 0 {
		return errIssuesFound
	}
	return nil
}
