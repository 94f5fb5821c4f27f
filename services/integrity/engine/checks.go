// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"log/slog"

	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check/itemid"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check/itemname"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check/refintegrity"
)

// RegistryConfig selects the built-in checks.
type RegistryConfig struct {
	// Generator supplies new item identifiers. Nil uses a sequence
	// generator seeded from each form's highest identifier.
	Generator itemid.Generator

	// References replaces the embedded reference integrity registry.
	References *refintegrity.RegistryYAML

	Logger *slog.Logger
}

// NewRegistry registers every built-in check.
func NewRegistry(cfg RegistryConfig) (*check.Registry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	refs := cfg.References
	if refs == nil {
		var err error
		if refs, err = refintegrity.DefaultRegistry(); err != nil {
			return nil, err
		}
	}
	refChecks, err := refintegrity.NewChecks(refs, logger)
	if err != nil {
		return nil, err
	}

	checks := []check.Check{
		itemid.NewCheck(itemid.NewService(cfg.Generator, logger)),
		itemname.NewCheck(logger),
	}
	for _, c := range refChecks {
		checks = append(checks, c)
	}
	return check.NewRegistry(checks...)
}
