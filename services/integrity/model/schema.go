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

// FeatureKind is the storage kind of a feature.
type FeatureKind uint8

const (
	// KindAttribute holds scalar values (int or string).
	KindAttribute FeatureKind = iota + 1

	// KindContainment owns child nodes.
	KindContainment

	// KindReference holds URIs of other addressable nodes.
	KindReference
)

// String returns the kind name.
func (k FeatureKind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindContainment:
		return "containment"
	case KindReference:
		return "reference"
	default:
		return "unknown"
	}
}

// ValueType is the scalar type of an attribute feature.
type ValueType uint8

const (
	ValueNone ValueType = iota
	ValueInt
	ValueString
)

// Feature is a named property slot of a class.
//
// Features are compared by pointer identity. Two classes share a feature
// only when they list the same *Feature.
type Feature struct {
	// Name is the schema name, unique within a class.
	Name string

	// Kind is attribute, containment or reference.
	Kind FeatureKind

	// Many marks list-valued features.
	Many bool

	// Type is the accepted child class for containments. ClassUnknown
	// accepts anything.
	Type Class

	// Value is the scalar type for attributes.
	Value ValueType
}

// String returns the feature name.
func (f *Feature) String() string {
	if f == nil {
		return "<nil>"
	}
	return f.Name
}

// ===== FORM FEATURES =====

var (
	// ItemID is the numeric identifier of a form item.
	ItemID = &Feature{Name: "id", Kind: KindAttribute, Value: ValueInt}

	// Name is the identifier-like name of named elements.
	Name = &Feature{Name: "name", Kind: KindAttribute, Value: ValueString}

	// Items holds the nested form items of a form or item container.
	Items = &Feature{Name: "items", Kind: KindContainment, Many: true, Type: ClassFormItem}

	// CommandBar holds the auto command bar of a form or table.
	CommandBar = &Feature{Name: "autoCommandBar", Kind: KindContainment, Type: ClassAutoCommandBar}

	Attributes = &Feature{Name: "attributes", Kind: KindContainment, Many: true, Type: ClassFormAttribute}
	Commands   = &Feature{Name: "commands", Kind: KindContainment, Many: true, Type: ClassFormCommand}
	Parameters = &Feature{Name: "parameters", Kind: KindContainment, Many: true, Type: ClassFormParameter}

	// AttributeID is the identifier of a form attribute. It is not a form
	// item identifier.
	AttributeID = &Feature{Name: "id", Kind: KindAttribute, Value: ValueInt}

	// ExtInfo wraps extension data of a field.
	ExtInfo = &Feature{Name: "extInfo", Kind: KindContainment, Type: ClassExtInfo}

	// Path holds the data path object of a bound item.
	Path = &Feature{Name: "dataPath", Kind: KindContainment, Type: ClassDataPath}

	// Target references the object a data path is bound to.
	Target = &Feature{Name: "target", Kind: KindReference}

	// Segments is the textual path of a data path.
	Segments = &Feature{Name: "segments", Kind: KindAttribute, Value: ValueString}
)

// ===== METADATA FEATURES =====

var (
	Catalogs         = &Feature{Name: "catalogs", Kind: KindReference, Many: true}
	Documents        = &Feature{Name: "documents", Kind: KindReference, Many: true}
	Subsystems       = &Feature{Name: "subsystems", Kind: KindReference, Many: true}
	CommonAttributes = &Feature{Name: "commonAttributes", Kind: KindReference, Many: true}
	ExchangePlans    = &Feature{Name: "exchangePlans", Kind: KindReference, Many: true}

	// Content lists the objects a subsystem groups.
	Content = &Feature{Name: "content", Kind: KindReference, Many: true}

	// NestedSubsystems lists the child subsystems of a subsystem.
	NestedSubsystems = &Feature{Name: "subsystems", Kind: KindReference, Many: true}

	DefaultForm     = &Feature{Name: "defaultObjectForm", Kind: KindReference}
	RegisterRecords = &Feature{Name: "registerRecords", Kind: KindReference, Many: true}

	CommonAttributeContent = &Feature{Name: "content", Kind: KindContainment, Many: true, Type: ClassCommonAttributeContentItem}
	ExchangePlanContent    = &Feature{Name: "content", Kind: KindContainment, Many: true, Type: ClassExchangePlanContentItem}

	UsedItems     = &Feature{Name: "used", Kind: KindContainment, Many: true, Type: ClassStandaloneContentUsedItem}
	UnusedItems   = &Feature{Name: "unused", Kind: KindContainment, Many: true, Type: ClassStandaloneContentUnusedItem}
	PriorityItems = &Feature{Name: "priority", Kind: KindContainment, Many: true, Type: ClassStandaloneContentPriorityItem}

	// Metadata references the metadata object a content item lists.
	Metadata = &Feature{Name: "metadata", Kind: KindReference}

	// MdObject references the object an exchange plan item lists.
	MdObject = &Feature{Name: "mdObject", Kind: KindReference}
)

var classTable = [numClasses]classInfo{
	ClassUnknown: {name: "Unknown", abstract: true},

	ClassForm:           {name: "Form", features: []*Feature{CommandBar, Items, Attributes, Commands, Parameters}},
	ClassFormItem:       {name: "FormItem", abstract: true},
	ClassFormGroup:      {name: "FormGroup", super: ClassFormItem, features: []*Feature{ItemID, Name, Items}},
	ClassFormField:      {name: "FormField", super: ClassFormItem, features: []*Feature{ItemID, Name, ExtInfo, Path}},
	ClassFormTable:      {name: "FormTable", super: ClassFormItem, features: []*Feature{ItemID, Name, CommandBar, Items, Path}},
	ClassButton:         {name: "Button", super: ClassFormItem, features: []*Feature{ItemID, Name}},
	ClassDecoration:     {name: "Decoration", super: ClassFormItem, features: []*Feature{ItemID, Name}},
	ClassAutoCommandBar: {name: "AutoCommandBar", super: ClassFormItem, features: []*Feature{ItemID, Name, Items}},
	ClassFormAttribute:  {name: "FormAttribute", features: []*Feature{AttributeID, Name, Path}},
	ClassFormCommand:    {name: "FormCommand", features: []*Feature{Name}},
	ClassFormParameter:  {name: "FormParameter", features: []*Feature{Name}},
	ClassExtInfo:        {name: "ExtInfo", features: []*Feature{Path}},
	ClassDataPath:       {name: "DataPath", features: []*Feature{Segments, Target}},

	ClassMdObject:        {name: "MdObject", abstract: true},
	ClassConfiguration:   {name: "Configuration", super: ClassMdObject, features: []*Feature{Name, Catalogs, Documents, Subsystems, CommonAttributes, ExchangePlans}},
	ClassSubsystem:       {name: "Subsystem", super: ClassMdObject, features: []*Feature{Name, Content, NestedSubsystems}},
	ClassCatalog:         {name: "Catalog", super: ClassMdObject, features: []*Feature{Name, DefaultForm}},
	ClassDocument:        {name: "Document", super: ClassMdObject, features: []*Feature{Name, DefaultForm, RegisterRecords}},
	ClassCommonAttribute: {name: "CommonAttribute", super: ClassMdObject, features: []*Feature{Name, CommonAttributeContent}},
	ClassExchangePlan:    {name: "ExchangePlan", super: ClassMdObject, features: []*Feature{Name, ExchangePlanContent}},

	ClassStandaloneContent:             {name: "StandaloneContent", features: []*Feature{UsedItems, UnusedItems, PriorityItems}},
	ClassCommonAttributeContentItem:    {name: "CommonAttributeContentItem", features: []*Feature{Metadata}},
	ClassExchangePlanContentItem:       {name: "ExchangePlanContentItem", features: []*Feature{MdObject}},
	ClassStandaloneContentItem:         {name: "StandaloneContentItem", abstract: true},
	ClassStandaloneContentUsedItem:     {name: "StandaloneContentUsedItem", super: ClassStandaloneContentItem, features: []*Feature{Metadata}},
	ClassStandaloneContentUnusedItem:   {name: "StandaloneContentUnusedItem", super: ClassStandaloneContentItem, features: []*Feature{Metadata}},
	ClassStandaloneContentPriorityItem: {name: "StandaloneContentPriorityItem", super: ClassStandaloneContentItem, features: []*Feature{Metadata}},
}
