// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for identifiers that arrive
// from documents and HTTP requests.
//
// Object URIs end up in BadgerDB keys, log records and query strings.
// Validating them at the boundary keeps control characters and separators
// out of all three.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxURILength bounds an object URI in bytes.
const MaxURILength = 512

// ErrInvalidURI is wrapped by every URI validation failure.
var ErrInvalidURI = errors.New("invalid object uri")

// uriPattern matches dotted object URIs such as Catalog.Customers or
// Form.Orders.Form. Segments are letters, digits, underscores and hyphens.
var uriPattern = regexp.MustCompile(`^[\p{L}\p{N}_][\p{L}\p{N}_\-]*(\.[\p{L}\p{N}_][\p{L}\p{N}_\-]*)*$`)

// ValidateURI validates a top object URI.
//
// Valid URIs:
//   - 1-512 bytes
//   - One or more segments separated by single dots
//   - Segments of Unicode letters, digits, underscores and hyphens, not
//     starting with a hyphen
//
// Example:
//
//	if err := validation.ValidateURI(uri); err != nil {
//	    return fmt.Errorf("put object: %w", err)
//	}
func ValidateURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURI)
	}
	if len(uri) > MaxURILength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidURI, len(uri), MaxURILength)
	}
	if !uriPattern.MatchString(uri) {
		return fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return nil
}

// ValidateURIs validates several URIs and lists every invalid one.
func ValidateURIs(uris []string) error {
	var invalid []string
	for _, u := range uris {
		if err := ValidateURI(u); err != nil {
			invalid = append(invalid, u)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidURI, strings.Join(invalid, ", "))
	}
	return nil
}

// SanitizeURI trims surrounding whitespace and validates the result.
func SanitizeURI(uri string) (string, error) {
	trimmed := strings.TrimSpace(uri)
	if err := ValidateURI(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
