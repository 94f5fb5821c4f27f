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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCheck/services/integrity"
)

func newChecksCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "checks",
		Short: "List the registered checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup(cmd, "integrity")
			if err != nil {
				return err
			}
			defer rt.close()

			svc, err := rt.service()
			if err != nil {
				return err
			}
			checks := svc.Checks()
			if rt.jsonOut {
				return writeJSON(cmd.OutOrStdout(), integrity.ChecksResponse{Checks: checks})
			}

			rows := make([][]string, 0, len(checks))
			for _, c := range checks {
				enabled := "yes"
				if !c.Enabled {
					enabled = "no"
				}
				fixes := make([]string, 0, len(c.Variants)+1)
				if c.BulkFix {
					fixes = append(fixes, "bulk")
				}
				for _, v := range c.Variants {
					fixes = append(fixes, v.ID)
				}
				rows = append(rows, []string{
					c.ID,
					c.Severity.String(),
					enabled,
					strings.Join(c.TopClasses, ","),
					strings.Join(fixes, ","),
				})
			}
			rt.printer.Table([]string{"ID", "SEVERITY", "ENABLED", "OBJECTS", "FIXES"}, rows)
			return nil
		},
	}
}
