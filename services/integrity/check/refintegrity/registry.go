// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package refintegrity

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// =============================================================================
// Constants
// =============================================================================

// MaxRegistryFileSize bounds registry files read from disk (1MB).
const MaxRegistryFileSize = 1024 * 1024

// ErrInvalidRegistry indicates a registry that cannot be turned into checks.
var ErrInvalidRegistry = errors.New("invalid reference registry")

//go:embed registry.yaml
var defaultRegistryYAML []byte

// =============================================================================
// YAML Types
// =============================================================================

// RegistryYAML is the root of a registry file.
type RegistryYAML struct {
	Checks []CheckYAML `yaml:"checks" validate:"required,min=1,dive"`
}

// CheckYAML declares one reference integrity check.
type CheckYAML struct {
	ID          string      `yaml:"id" validate:"required"`
	Title       string      `yaml:"title" validate:"required"`
	Description string      `yaml:"description"`
	Severity    string      `yaml:"severity" validate:"omitempty,oneof=trivial minor major critical blocker"`
	Type        string      `yaml:"type" validate:"omitempty,oneof=error warning code_style performance"`
	Variants    []string    `yaml:"variants" validate:"dive,oneof=remove-reference remove-owner"`
	Scopes      []ScopeYAML `yaml:"scopes" validate:"required,min=1,dive"`
}

// ScopeYAML lists the checked features for one top class.
type ScopeYAML struct {
	Top      string       `yaml:"top" validate:"required"`
	Features []string     `yaml:"features"`
	Nested   []NestedYAML `yaml:"nested" validate:"dive"`
}

// NestedYAML lists the checked features of one nested holder class.
type NestedYAML struct {
	Holder   string   `yaml:"holder" validate:"required"`
	Features []string `yaml:"features" validate:"required,min=1"`
}

// =============================================================================
// Loading
// =============================================================================

var (
	validate = validator.New()

	defaultOnce sync.Once
	defaultSpec *RegistryYAML
	defaultErr  error
)

// ParseRegistry decodes and validates a registry document.
func ParseRegistry(data []byte) (*RegistryYAML, error) {
	if len(data) > MaxRegistryFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit", ErrInvalidRegistry, len(data))
	}
	var reg RegistryYAML
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if err := validate.Struct(&reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	seen := make(map[string]struct{})
	for _, c := range reg.Checks {
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate check %q", ErrInvalidRegistry, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return &reg, nil
}

// LoadRegistryFile reads a registry from disk.
func LoadRegistryFile(path string) (*RegistryYAML, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat registry: %w", err)
	}
	if info.Size() > MaxRegistryFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrInvalidRegistry, path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return ParseRegistry(data)
}

// DefaultRegistry returns the embedded registry, parsed once.
func DefaultRegistry() (*RegistryYAML, error) {
	defaultOnce.Do(func() {
		defaultSpec, defaultErr = ParseRegistry(defaultRegistryYAML)
	})
	return defaultSpec, defaultErr
}

// definitions turns a registry into check definitions.
func (r *RegistryYAML) definitions() ([]check.Definition, [][]string, error) {
	defs := make([]check.Definition, 0, len(r.Checks))
	variants := make([][]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		def := check.Definition{
			ID:          c.ID,
			Title:       c.Title,
			Description: c.Description,
			Severity:    check.SeverityCritical,
			Type:        check.IssueError,
			Complexity:  check.ComplexitySpatial,
		}
		if c.Severity != "" {
			s, err := check.ParseSeverity(c.Severity)
			if err != nil {
				return nil, nil, err
			}
			def.Severity = s
		}
		if c.Type != "" {
			def.Type = check.IssueType(c.Type)
		}
		b := check.Declare()
		for _, s := range c.Scopes {
			top, err := model.ParseClass(s.Top)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: check %s: %v", ErrInvalidRegistry, c.ID, err)
			}
			fs, err := referenceFeatures(top, s.Features)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: check %s: %v", ErrInvalidRegistry, c.ID, err)
			}
			b.Top(top, fs...)
			for _, n := range s.Nested {
				holder, err := model.ParseClass(n.Holder)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: check %s: %v", ErrInvalidRegistry, c.ID, err)
				}
				fs, err := referenceFeatures(holder, n.Features)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: check %s: %v", ErrInvalidRegistry, c.ID, err)
				}
				b.Nested(top, holder, fs...)
			}
		}
		def.Declaration = b.Build()
		defs = append(defs, def)
		vs := c.Variants
		if len(vs) == 0 {
			vs = []string{VariantRemoveReference}
		}
		variants = append(variants, vs)
	}
	return defs, variants, nil
}

// referenceFeatures resolves feature names of class c. Abstract classes
// resolve through their first concrete subclass defining the name.
func referenceFeatures(c model.Class, names []string) ([]*model.Feature, error) {
	out := make([]*model.Feature, 0, len(names))
	for _, name := range names {
		f, ok := c.FeatureByName(name)
		if !ok && c.IsAbstract() {
			for _, sub := range model.Classes() {
				if sub.Is(c) {
					if f, ok = sub.FeatureByName(name); ok {
						break
					}
				}
			}
		}
		if !ok {
			return nil, fmt.Errorf("%s has no feature %q", c, name)
		}
		if f.Kind != model.KindReference {
			return nil, fmt.Errorf("%s.%s is not a reference", c, name)
		}
		out = append(out, f)
	}
	return out, nil
}
