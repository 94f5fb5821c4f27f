// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package itemname checks the names of form elements.
package itemname

import (
	"context"
	"fmt"
	"log/slog"
	"unicode"

	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// CheckID is the registry ID of the name check.
const CheckID = "form-named-element-name"

const messageEmpty = "Form named element name is empty"

var definition = check.Definition{
	ID:          CheckID,
	Title:       "Form element name is invalid",
	Description: "Form items, attributes, commands and parameters need a valid identifier as name",
	Severity:    check.SeverityMajor,
	Type:        check.IssueError,
	Complexity:  check.ComplexityNormal,
	TopOnly:     true,
	Declaration: check.Declare().
		Nested(model.ClassForm, model.ClassFormAttribute, model.Name).
		Nested(model.ClassForm, model.ClassFormCommand, model.Name).
		Nested(model.ClassForm, model.ClassFormParameter, model.Name).
		Nested(model.ClassForm, model.ClassFormItem, model.Name).
		Build(),
}

// Check reports empty and malformed element names.
type Check struct {
	logger *slog.Logger
}

// NewCheck creates the check.
func NewCheck(logger *slog.Logger) *Check {
	if logger == nil {
		logger = slog.Default()
	}
	return &Check{logger: logger}
}

// Definition implements check.Check.
func (c *Check) Definition() check.Definition { return definition }

// Check implements check.Check.
func (c *Check) Check(ctx context.Context, top *model.Node, sink check.Sink) {
	if top == nil || !top.IsTop() || top.Class() != model.ClassForm {
		return
	}
	top.Walk(func(n *model.Node) bool {
		if ctx.Err() != nil {
			return false
		}
		if n == top || !definition.Declaration.TracksHolder(model.ClassForm, n.Class()) {
			return true
		}
		if msg, bad := Validate(n); bad {
			c.logger.Debug("invalid element name",
				slog.String("node", n.String()),
				slog.String("name", n.Text(model.Name)),
			)
			sink.AddIssue(n, model.Name, msg, check.NoIndex)
		}
		return true
	})
}

// Validate returns the issue message for the name of n, if any. Auto
// command bars may have no name.
func Validate(n *model.Node) (string, bool) {
	name := n.Text(model.Name)
	if name == "" {
		if n.Class() == model.ClassAutoCommandBar {
			return "", false
		}
		return messageEmpty, true
	}
	if !IsValidName(name) {
		return fmt.Sprintf("Form named element name %q is not valid name", name), true
	}
	return "", false
}

// IsValidName reports whether s is an identifier: a letter or underscore
// followed by letters, digits and underscores.
func IsValidName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
