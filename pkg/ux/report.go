// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// IssueRow is one line of an issue report.
type IssueRow struct {
	Top      string
	Severity string
	Check    string
	Location string
	Message  string
}

func severityStyle(severity string) lipgloss.Style {
	switch severity {
	case "blocker":
		return Styles.Blocker
	case "critical", "major":
		return Styles.Error
	case "minor":
		return Styles.Warning
	default:
		return Styles.Muted
	}
}

// Issues prints rows grouped by top object, in the order given.
//
// Plain output is one tab-separated line per issue:
//
//	top	severity	check	location	message
func (p *Printer) Issues(rows []IssueRow) {
	if !p.Styled() {
		for _, r := range rows {
			fmt.Fprintf(p.out, "%s\t%s\t%s\t%s\t%s\n", r.Top, r.Severity, r.Check, r.Location, r.Message)
		}
		return
	}
	current := ""
	for _, r := range rows {
		if r.Top != current {
			current = r.Top
			fmt.Fprintln(p.out, Styles.Bold.Render(current))
		}
		sev := severityStyle(r.Severity).Render(fmt.Sprintf("%-8s", r.Severity))
		fmt.Fprintf(p.out, "  %s %s %s %s\n",
			IconError.Render(), sev,
			r.Message,
			Styles.Muted.Render("("+r.Check+" "+IconArrow.Render()+" "+r.Location+")"),
		)
	}
}

// Summary prints the issue count line.
func (p *Printer) Summary(tops, issues int) {
	if !p.Styled() {
		fmt.Fprintf(p.out, "SUMMARY: tops=%d issues=%d\n", tops, issues)
		return
	}
	if issues == 0 {
		p.Success(fmt.Sprintf("%d top objects, no issues", tops))
		return
	}
	fmt.Fprintf(p.out, "\n%s %s  %s %s\n",
		Styles.Bold.Render(fmt.Sprintf("%d", tops)), Styles.Muted.Render("top objects"),
		Styles.Error.Render(fmt.Sprintf("%d", issues)), Styles.Muted.Render(plural(issues, "issue")),
	)
}

// Table prints aligned columns with a header row.
func (p *Printer) Table(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			if i == len(cells)-1 {
				parts[i] = c
			} else {
				parts[i] = fmt.Sprintf("%-*s", widths[i], c)
			}
		}
		return strings.Join(parts, "  ")
	}
	head := line(header)
	if p.Styled() {
		head = Styles.Title.Render(head)
	}
	fmt.Fprintln(p.out, head)
	for _, row := range rows {
		fmt.Fprintln(p.out, line(row))
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
