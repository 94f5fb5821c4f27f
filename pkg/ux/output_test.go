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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectMode_NonFileIsPlain(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, ModePlain, DetectMode(&buf))
	assert.False(t, NewPrinter(&buf).Styled())
}

func TestPrinter_PlainMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterMode(&buf, ModePlain)

	p.Title("ignored")
	p.Success("done")
	p.Warning("careful")
	p.Error("broken")
	p.Info("note")
	p.Box("Check", "detail")

	assert.Equal(t, "OK: done\nWARN: careful\nERROR: broken\nnote\nCheck: detail\n", buf.String())
}

func TestPrinter_StyledMessagesCarryIcons(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterMode(&buf, ModeStyled)

	p.Success("done")
	p.Error("broken")

	out := buf.String()
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "broken")
}

func TestPrinter_IssuesPlain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterMode(&buf, ModePlain)

	p.Issues([]IssueRow{
		{Top: "Form.A", Severity: "critical", Check: "form-invalid-item-id", Location: "FormField#3.id", Message: "Invalid value"},
		{Top: "Form.B", Severity: "minor", Check: "form-named-element-name", Location: "Button#7.name", Message: "Empty name"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Form.A\tcritical\tform-invalid-item-id\tFormField#3.id\tInvalid value", lines[0])
}

func TestPrinter_IssuesStyledGroupsByTop(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterMode(&buf, ModeStyled)

	p.Issues([]IssueRow{
		{Top: "Form.A", Severity: "critical", Message: "one"},
		{Top: "Form.A", Severity: "critical", Message: "two"},
		{Top: "Form.B", Severity: "minor", Message: "three"},
	})

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "Form.A"))
	assert.Equal(t, 1, strings.Count(out, "Form.B"))
}

func TestPrinter_Summary(t *testing.T) {
	var buf bytes.Buffer
	NewPrinterMode(&buf, ModePlain).Summary(3, 2)
	assert.Equal(t, "SUMMARY: tops=3 issues=2\n", buf.String())

	buf.Reset()
	NewPrinterMode(&buf, ModeStyled).Summary(3, 0)
	assert.Contains(t, buf.String(), "no issues")
}

func TestPrinter_TableAligns(t *testing.T) {
	var buf bytes.Buffer
	NewPrinterMode(&buf, ModePlain).Table(
		[]string{"ID", "SEVERITY"},
		[][]string{{"a", "critical"}, {"long-id", "minor"}},
	)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID       SEVERITY", lines[0])
	assert.Equal(t, "a        critical", lines[1])
	assert.Equal(t, "long-id  minor", lines[2])
}
