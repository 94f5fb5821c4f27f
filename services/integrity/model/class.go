// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "fmt"

// Class identifies the schema type of a node.
//
// The class set is closed. Abstract classes (FormItem, MdObject,
// StandaloneContentItem) exist only as supertypes and are never instantiated.
type Class uint8

const (
	ClassUnknown Class = iota

	// Forms.
	ClassForm
	ClassFormItem
	ClassFormGroup
	ClassFormField
	ClassFormTable
	ClassButton
	ClassDecoration
	ClassAutoCommandBar
	ClassFormAttribute
	ClassFormCommand
	ClassFormParameter
	ClassExtInfo
	ClassDataPath

	// Metadata objects.
	ClassMdObject
	ClassConfiguration
	ClassSubsystem
	ClassCatalog
	ClassDocument
	ClassCommonAttribute
	ClassExchangePlan

	// Content lists.
	ClassStandaloneContent
	ClassCommonAttributeContentItem
	ClassExchangePlanContentItem
	ClassStandaloneContentItem
	ClassStandaloneContentUsedItem
	ClassStandaloneContentUnusedItem
	ClassStandaloneContentPriorityItem

	numClasses
)

// classInfo is the static description of one class.
type classInfo struct {
	name     string
	super    Class
	abstract bool
	features []*Feature
}

var classNames = map[string]Class{}

func init() {
	for c := ClassUnknown + 1; c < numClasses; c++ {
		classNames[classTable[c].name] = c
	}
}

// String returns the schema name of the class.
func (c Class) String() string {
	if c == ClassUnknown || c >= numClasses {
		return "Unknown"
	}
	return classTable[c].name
}

// Is reports whether c equals super or inherits from it.
func (c Class) Is(super Class) bool {
	for cur := c; cur != ClassUnknown && cur < numClasses; cur = classTable[cur].super {
		if cur == super {
			return true
		}
	}
	return false
}

// IsAbstract reports whether the class cannot be instantiated.
func (c Class) IsAbstract() bool {
	return c >= numClasses || classTable[c].abstract
}

// Valid reports whether c is a known class.
func (c Class) Valid() bool {
	return c > ClassUnknown && c < numClasses
}

// Features returns the features of the class in document order.
//
// The returned slice is shared and must not be modified.
func (c Class) Features() []*Feature {
	if !c.Valid() {
		return nil
	}
	return classTable[c].features
}

// HasFeature reports whether f is defined for the class.
func (c Class) HasFeature(f *Feature) bool {
	for _, cf := range c.Features() {
		if cf == f {
			return true
		}
	}
	return false
}

// FeatureByName looks up a feature of the class by its schema name.
func (c Class) FeatureByName(name string) (*Feature, bool) {
	for _, f := range c.Features() {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// ParseClass resolves a schema class name.
func ParseClass(name string) (Class, error) {
	c, ok := classNames[name]
	if !ok {
		return ClassUnknown, fmt.Errorf("%w: %q", ErrUnknownClass, name)
	}
	return c, nil
}

// Classes returns every concrete class in declaration order.
func Classes() []Class {
	out := make([]Class, 0, numClasses)
	for c := ClassUnknown + 1; c < numClasses; c++ {
		if !classTable[c].abstract {
			out = append(out, c)
		}
	}
	return out
}
