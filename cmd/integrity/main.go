// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command integrity validates and repairs metadata object documents.
//
// Usage:
//
//	integrity validate app.yaml
//	integrity fix app.yaml --check form-invalid-item-id --write
//	integrity checks
//	integrity watch app.yaml
//	integrity serve --config integrity.yaml
//
// Example requests against a running server:
//
//	# Health check
//	curl http://localhost:8080/v1/integrity/health
//
//	# Validate a document without touching the workspace
//	curl -X POST http://localhost:8080/v1/integrity/validate \
//	  -H "Content-Type: application/json" \
//	  -d '{"document": {"objects": [{"class": "Catalog", "uri": "Catalog.Customers"}]}}'
//
//	# Add a workspace object and validate what it affected
//	curl -X PUT http://localhost:8080/v1/integrity/objects \
//	  -H "Content-Type: application/json" \
//	  -d '{"class": "Subsystem", "uri": "Subsystem.Sales", "refs": {"content": ["Catalog.Customers"]}}'
//	curl -X POST http://localhost:8080/v1/integrity/run
package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitIssues  = 1
	ExitError   = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, errIssuesFound) {
		return ExitIssues
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return ExitError
}
