// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model provides the mutable, versioned object graph that the
// integrity engine validates.
//
// The graph is a forest of top objects (forms, subsystems, the configuration,
// ...). Each top object owns a containment tree of nested nodes. Nodes refer
// to other addressable nodes by URI; a reference whose URI does not resolve
// is unresolved (dangling).
//
// # Ownership Model
//
// The Graph owns every node it creates. Nodes are live while they belong to
// an attached top object. Removing a subtree makes its nodes non-live; they
// keep their identity and may be re-inserted later.
//
// # Change Notifications
//
// Every mutation of a live node appends a raw Notification to the graph's
// buffer. Consumers drain the buffer with Flush() and observe the graph
// state at drain time.
//
// # Thread Safety
//
// Graph lookups (Resolve, NodeByID, Top) are safe for concurrent use.
// Mutations are single-writer: callers must not mutate nodes while other
// goroutines read them.
package model

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrNodeNotFound indicates the requested node does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNotTop indicates the node is not an attached top object.
	ErrNotTop = errors.New("node is not a top object")

	// ErrDuplicateURI indicates an addressable node with the same URI is already live.
	ErrDuplicateURI = errors.New("duplicate uri")

	// ErrAttached indicates the node already belongs to a container or the graph.
	ErrAttached = errors.New("node is already attached")

	// ErrCycle indicates an insertion that would make a node contain itself.
	ErrCycle = errors.New("containment cycle")

	// ErrForeignNode indicates the node was created by a different graph.
	ErrForeignNode = errors.New("node belongs to another graph")

	// ErrUnknownClass indicates a class name that is not part of the schema.
	ErrUnknownClass = errors.New("unknown class")

	// ErrAbstractClass indicates an attempt to instantiate an abstract class.
	ErrAbstractClass = errors.New("abstract class")

	// ErrUnknownFeature indicates the feature is not defined for the node's class.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrFeatureKind indicates the feature has the wrong kind for the operation.
	ErrFeatureKind = errors.New("wrong feature kind")

	// ErrClassMismatch indicates a child whose class the feature does not accept.
	ErrClassMismatch = errors.New("class not accepted by feature")

	// ErrIndexOutOfRange indicates a list position outside the feature's values.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrMissingURI indicates a top object without a URI.
	ErrMissingURI = errors.New("top object requires a uri")

	// ErrNoStore indicates an operation that needs a snapshot store.
	ErrNoStore = errors.New("no snapshot store configured")

	// ErrInvalidSnapshot indicates a snapshot that cannot be materialized.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
