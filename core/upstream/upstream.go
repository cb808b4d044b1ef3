// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package upstream defines the contract between the status gateway and the
// production-control system it mirrors. The gateway never writes to the
// upstream collections; it subscribes to publications, observes document
// events and reads the resulting local mirror.
package upstream

import (
	"context"
)

const (
	// ConnectedTopic is published on the hub each time the link
	// (re)establishes its session with the upstream system.
	ConnectedTopic = "upstream.connected"

	// DisconnectedTopic is published on the hub when the session is lost.
	// All mirrored collections are empty by the time it is published.
	DisconnectedTopic = "upstream.disconnected"
)

// ConnectionState is the payload of ConnectedTopic and DisconnectedTopic.
type ConnectionState struct {
	// Session is the upstream session identifier, if any.
	Session string
	// Reason describes why the connection was lost.
	Reason string
}

// Link is a connection to the upstream system.
type Link interface {
	// Subscribe requests a publication with the given parameters. It
	// blocks until the upstream reports the initial data set as ready, the
	// subscription is rejected or the context is done.
	Subscribe(ctx context.Context, publication string, params ...any) (string, error)

	// Unsubscribe stops the subscription with the given id. Unknown ids
	// are ignored.
	Unsubscribe(id string) error

	// Observe registers an observer for document events on the named
	// collection. The returned function detaches the observer.
	Observe(collection string, observer Observer) (func(), error)

	// Collection returns the local mirror of the named collection.
	Collection(name string) (Collection, error)
}

// Observer receives document events for one collection. Callbacks are
// invoked on the link's own goroutine, after the mirror has been updated.
type Observer struct {
	Added   func(id string)
	Changed func(id string)
	Removed func(id string)
}

// Collection is a read-only view of one mirrored collection.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Find returns copies of all documents matching the selector, ordered
	// by id.
	Find(selector Selector) []Document

	// FindOne returns a copy of the document with the given id.
	FindOne(id string) (Document, bool)
}
