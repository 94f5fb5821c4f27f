// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package document reads and writes object graphs as YAML or JSON files.
//
// A document is a list of top object snapshots. Node IDs are never written;
// they are assigned by the graph a document is built into.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianCheck/pkg/validation"
	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// CurrentVersion is the document format version written by Marshal.
	CurrentVersion = 1

	// MaxDocumentFileSize bounds documents read from disk (16MB).
	MaxDocumentFileSize = 16 * 1024 * 1024
)

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrInvalidDocument indicates a document that cannot be read or built.
var ErrInvalidDocument = errors.New("invalid document")

// FormatForPath picks the format from a file extension. Anything that is
// not .json is treated as YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// =============================================================================
// Document
// =============================================================================

// Document is the file form of a graph.
type Document struct {
	Version int               `json:"version" yaml:"version"`
	Objects []*model.Snapshot `json:"objects" yaml:"objects"`
}

// Parse decodes a YAML or JSON document.
//
// Description:
//
//	JSON input is read by the YAML decoder, which accepts it unchanged. The
//	document is checked for a supported version, and every object must name
//	a class and a URI.
//
// Outputs:
//
//	*Document - The decoded document.
//	error - Wraps ErrInvalidDocument.
func Parse(data []byte) (*Document, error) {
	if len(data) > MaxDocumentFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit", ErrInvalidDocument, len(data))
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads a document from disk.
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if info.Size() > MaxDocumentFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrInvalidDocument, path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Parse(data)
}

func (d *Document) validate() error {
	if d.Version != 0 && d.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidDocument, d.Version)
	}
	seen := make(map[model.URI]struct{}, len(d.Objects))
	for i, obj := range d.Objects {
		if obj == nil {
			return fmt.Errorf("%w: object %d is empty", ErrInvalidDocument, i)
		}
		if obj.Class == "" {
			return fmt.Errorf("%w: object %d has no class", ErrInvalidDocument, i)
		}
		if obj.URI == "" {
			return fmt.Errorf("%w: object %d (%s) has no uri", ErrInvalidDocument, i, obj.Class)
		}
		if err := validation.ValidateURI(string(obj.URI)); err != nil {
			return fmt.Errorf("%w: object %d: %w", ErrInvalidDocument, i, err)
		}
		if _, dup := seen[obj.URI]; dup {
			return fmt.Errorf("%w: duplicate uri %s", ErrInvalidDocument, obj.URI)
		}
		seen[obj.URI] = struct{}{}
	}
	return nil
}

// Build materializes every object and attaches it to g as a top object.
//
// Description:
//
//	Objects are attached in document order. A failure leaves the objects
//	attached so far in the graph.
//
// Outputs:
//
//	[]*model.Node - The attached top objects.
//	error - Wraps ErrInvalidDocument together with the model error.
func (d *Document) Build(g *model.Graph) ([]*model.Node, error) {
	tops := make([]*model.Node, 0, len(d.Objects))
	for _, obj := range d.Objects {
		n, err := g.Materialize(obj)
		if err != nil {
			return tops, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, obj.URI, err)
		}
		if err := g.AttachTop(n); err != nil {
			return tops, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, obj.URI, err)
		}
		tops = append(tops, n)
	}
	return tops, nil
}

// FromGraph captures every top object of g, ordered by URI. Evicted top
// objects are reloaded.
func FromGraph(g *model.Graph) *Document {
	tops := g.Tops()
	doc := &Document{Version: CurrentVersion, Objects: make([]*model.Snapshot, 0, len(tops))}
	for _, top := range tops {
		s := model.SnapshotOf(top)
		s.StripIDs()
		doc.Objects = append(doc.Objects, s)
	}
	sort.Slice(doc.Objects, func(i, j int) bool { return doc.Objects[i].URI < doc.Objects[j].URI })
	return doc
}

// Marshal encodes the document.
func (d *Document) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML, "":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidDocument, format)
	}
}

// Save writes the document to path in the format implied by its extension.
// The file is written to a temporary sibling first and renamed into place.
func (d *Document) Save(path string) error {
	data, err := d.Marshal(FormatForPath(path))
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename document: %w", err)
	}
	return nil
}
