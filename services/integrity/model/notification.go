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

// NotificationKind is the raw mutation kind reported by the graph.
type NotificationKind uint8

const (
	// NotifyCreate reports a newly attached top object.
	NotifyCreate NotificationKind = iota + 1
	NotifySet
	NotifyUnset
	NotifyAdd
	NotifyRemove
	NotifyAddMany
	NotifyRemoveMany
	NotifyMove

	// NotifyResolve reports an addressable node that became reachable.
	NotifyResolve

	// NotifyDetach reports an addressable node that left the graph.
	NotifyDetach
)

var notificationNames = map[NotificationKind]string{
	NotifyCreate:     "create",
	NotifySet:        "set",
	NotifyUnset:      "unset",
	NotifyAdd:        "add",
	NotifyRemove:     "remove",
	NotifyAddMany:    "add_many",
	NotifyRemoveMany: "remove_many",
	NotifyMove:       "move",
	NotifyResolve:    "resolve",
	NotifyDetach:     "detach",
}

// String returns the kind name.
func (k NotificationKind) String() string {
	if s, ok := notificationNames[k]; ok {
		return s
	}
	return "unknown"
}

// NoPosition marks notifications that are not tied to a list position.
const NoPosition = -1

// Notification is one raw change record.
//
// Value shapes by feature kind:
//
//	attribute    OldValue/NewValue are int or string (nil when unset)
//	containment  *Node for single changes, []*Node for *Many kinds
//	reference    URI for single changes, []URI for *Many kinds
//
// For NotifyMove, NewValue is the moved value and OldValue the old
// position (int). For NotifyResolve and NotifyDetach, URI and Class
// describe the addressable node.
type Notification struct {
	Kind     NotificationKind
	Node     *Node
	Feature  *Feature
	OldValue any
	NewValue any
	Position int
	URI      URI
	Class    Class
}

// RemovedNodes returns the nodes a containment removal detached.
func (n Notification) RemovedNodes() []*Node {
	return nodesOf(n.OldValue)
}

// AddedNodes returns the nodes a containment addition attached.
func (n Notification) AddedNodes() []*Node {
	return nodesOf(n.NewValue)
}

func nodesOf(v any) []*Node {
	switch t := v.(type) {
	case *Node:
		if t == nil {
			return nil
		}
		return []*Node{t}
	case []*Node:
		return t
	default:
		return nil
	}
}
