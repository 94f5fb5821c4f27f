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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/document"
)

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate every object of a document",
		Long: `Loads a YAML or JSON document, runs every enabled check over every top
object and prints the issues found.

Exit Codes:
  0 - No issues
  1 - Issues found
  2 - The document or configuration could not be loaded`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup(cmd, "integrity")
			if err != nil {
				return err
			}
			defer rt.close()
			return runValidate(cmd, rt, args[0])
		},
	}
}

func runValidate(cmd *cobra.Command, rt *runtime, path string) error {
	doc, err := document.Load(path)
	if err != nil {
		return err
	}
	svc, err := rt.service()
	if err != nil {
		return err
	}
	resp, err := svc.ValidateDocument(cmd.Context(), doc)
	if err != nil {
		return err
	}

	if rt.jsonOut {
		if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		printIssues(rt, fmt.Sprintf("Validating %s", path), len(doc.Objects), resp.Issues)
	}
	if resp.Count > 0 {
		return errIssuesFound
	}
	return nil
}

func printIssues(rt *runtime, title string, tops int, records []check.Record) {
	rt.printer.Title(title)
	rt.printer.Issues(issueRows(records))
	rt.printer.Summary(tops, len(records))
}
