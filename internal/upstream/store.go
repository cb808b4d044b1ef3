// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package upstream holds the in-memory mirror that upstream link
// implementations maintain on behalf of the gateway.
package upstream

import (
	"sort"
	"sync"

	"github.com/juju/errors"

	"github.com/juju/livestatus/core/upstream"
)

// Store is a set of named, mirrored collections. Collections must be
// registered before they can be observed or read; this lets a missing
// registration surface as an error at wiring time rather than as an empty
// result at run time.
//
// Store is safe for concurrent use. Observer callbacks are invoked after
// the store lock has been released.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	nextID      int
}

// NewStore returns a store with the named collections registered.
func NewStore(names ...string) *Store {
	s := &Store{
		collections: make(map[string]*collection),
	}
	for _, name := range names {
		s.Register(name)
	}
	return s
}

// Register makes a collection available. Registering twice is a no-op.
func (s *Store) Register(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return
	}
	s.collections[name] = &collection{
		store:     s,
		name:      name,
		docs:      make(map[string]upstream.Document),
		observers: make(map[int]upstream.Observer),
	}
}

// Collection returns the named collection.
func (s *Store) Collection(name string) (upstream.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[name]
	if !ok {
		return nil, errors.NotFoundf("collection %q", name)
	}
	return coll, nil
}

// Observe attaches an observer to the named collection.
func (s *Store) Observe(name string, observer upstream.Observer) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[name]
	if !ok {
		return nil, errors.NotFoundf("collection %q", name)
	}
	s.nextID++
	id := s.nextID
	coll.observers[id] = observer

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(coll.observers, id)
		})
	}, nil
}

// Added records a new document and notifies observers. Adding an existing
// id replaces the document and is reported as a change.
func (s *Store) Added(name, id string, fields map[string]any) error {
	s.mu.Lock()
	coll, ok := s.collections[name]
	if !ok {
		s.mu.Unlock()
		return errors.NotFoundf("collection %q", name)
	}
	_, existed := coll.docs[id]
	doc := make(upstream.Document, len(fields)+1)
	doc.Apply(fields, nil)
	doc[upstream.IDField] = id
	coll.docs[id] = doc
	observers := coll.observerList()
	s.mu.Unlock()

	for _, o := range observers {
		if existed {
			call(o.Changed, id)
		} else {
			call(o.Added, id)
		}
	}
	return nil
}

// Changed merges fields into an existing document and notifies observers.
// A change for an unknown document is treated as an add.
func (s *Store) Changed(name, id string, fields map[string]any, cleared []string) error {
	s.mu.Lock()
	coll, ok := s.collections[name]
	if !ok {
		s.mu.Unlock()
		return errors.NotFoundf("collection %q", name)
	}
	doc, existed := coll.docs[id]
	if !existed {
		doc = upstream.Document{upstream.IDField: id}
		coll.docs[id] = doc
	}
	doc.Apply(fields, cleared)
	observers := coll.observerList()
	s.mu.Unlock()

	for _, o := range observers {
		if existed {
			call(o.Changed, id)
		} else {
			call(o.Added, id)
		}
	}
	return nil
}

// Removed deletes a document and notifies observers. Removing an unknown
// document is a no-op.
func (s *Store) Removed(name, id string) error {
	s.mu.Lock()
	coll, ok := s.collections[name]
	if !ok {
		s.mu.Unlock()
		return errors.NotFoundf("collection %q", name)
	}
	if _, existed := coll.docs[id]; !existed {
		s.mu.Unlock()
		return nil
	}
	delete(coll.docs, id)
	observers := coll.observerList()
	s.mu.Unlock()

	for _, o := range observers {
		call(o.Removed, id)
	}
	return nil
}

// Clear empties every collection, reporting each document as removed.
func (s *Store) Clear() {
	type removal struct {
		id        string
		observers []upstream.Observer
	}
	var removals []removal

	s.mu.Lock()
	for _, coll := range s.collections {
		observers := coll.observerList()
		for id := range coll.docs {
			removals = append(removals, removal{id: id, observers: observers})
		}
		coll.docs = make(map[string]upstream.Document)
	}
	s.mu.Unlock()

	for _, r := range removals {
		for _, o := range r.observers {
			call(o.Removed, r.id)
		}
	}
}

func call(f func(string), id string) {
	if f != nil {
		f(id)
	}
}

type collection struct {
	store     *Store
	name      string
	docs      map[string]upstream.Document
	observers map[int]upstream.Observer
}

// observerList must be called with the store lock held.
func (c *collection) observerList() []upstream.Observer {
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]upstream.Observer, len(ids))
	for i, id := range ids {
		out[i] = c.observers[id]
	}
	return out
}

// Name is part of upstream.Collection.
func (c *collection) Name() string {
	return c.name
}

// Find is part of upstream.Collection.
func (c *collection) Find(selector upstream.Selector) []upstream.Document {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	var out []upstream.Document
	for _, doc := range c.docs {
		if selector.Matches(doc) {
			out = append(out, doc.Copy())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

// FindOne is part of upstream.Collection.
func (c *collection) FindOne(id string) (upstream.Document, bool) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	return doc.Copy(), true
}
