// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package check

import (
	"fmt"
	"strings"
)

// Severity is how serious an issue is.
type Severity int

const (
	SeverityTrivial Severity = iota
	SeverityMinor
	SeverityMajor
	SeverityCritical
	SeverityBlocker
)

var severityNames = [...]string{"trivial", "minor", "major", "critical", "blocker"}

// String returns the lowercase severity name.
func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return "unknown"
	}
	return severityNames[s]
}

// ParseSeverity parses a severity name, case-insensitively.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if strings.EqualFold(n, name) {
			return Severity(i), nil
		}
	}
	return SeverityTrivial, fmt.Errorf("%w: %q", ErrUnknownSeverity, name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// IssueType classifies what kind of problem a check finds.
type IssueType string

const (
	IssueError       IssueType = "error"
	IssueWarning     IssueType = "warning"
	IssueCodeStyle   IssueType = "code_style"
	IssuePerformance IssueType = "performance"
)

// Complexity tells how much of the graph a check reads.
type Complexity string

const (
	// ComplexityNormal checks read only the top object under check.
	ComplexityNormal Complexity = "normal"

	// ComplexitySpatial checks also resolve references to other top objects.
	ComplexitySpatial Complexity = "spatial"
)

// Definition is the static metadata of a check.
type Definition struct {
	ID          string
	Title       string
	Description string
	Severity    Severity
	Type        IssueType
	Complexity  Complexity

	// TopOnly is set when the check only runs on top objects and never on
	// nested nodes handed to it directly.
	TopOnly bool

	// Declaration lists what the check depends on.
	Declaration Declaration
}
