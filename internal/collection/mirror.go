// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package collection provides the reactive building blocks of the gateway:
// a Mirror holds one value derived from upstream state and notifies
// observers when the fields they care about change, and a Publication
// additionally owns the upstream subscription that feeds it.
//
// Nothing in this package is safe for concurrent use; all calls must be
// made from the gateway's event loop.
package collection

import (
	"fmt"
	"reflect"
)

// Key names a field of the mirrored value that an observer depends on.
type Key struct {
	Name string
	Deep bool
}

// Field is compared shallowly: values by equality, slices, maps and
// pointers by identity.
func Field(name string) Key {
	return Key{Name: name}
}

// DeepField is compared structurally.
func DeepField(name string) Key {
	return Key{Name: name, Deep: true}
}

// Fields is a convenience for several shallow keys.
func Fields(names ...string) []Key {
	keys := make([]Key, len(names))
	for i, n := range names {
		keys[i] = Field(n)
	}
	return keys
}

type observer[T any] struct {
	callback func(T)
	keys     []Key
	last     []reflect.Value
	hasLast  bool
	removed  bool
}

// Mirror holds the latest value of type T and the observers interested in
// it.
type Mirror[T any] struct {
	name      string
	observers []*observer[T]
	data      T
	hasData   bool
}

// NewMirror returns an empty mirror.
func NewMirror[T any](name string) *Mirror[T] {
	return &Mirror[T]{name: name}
}

// Name returns the mirror's name.
func (m *Mirror[T]) Name() string {
	return m.name
}

// Data returns the last notified value, and whether there has been one.
func (m *Mirror[T]) Data() (T, bool) {
	return m.data, m.hasData
}

// Subscribe registers callback. With keys, callback only runs when at least
// one of the named fields differs from the value seen on the previous
// notification; without keys it runs on every notification. If the mirror
// already holds data the callback runs once before Subscribe returns.
//
// Naming a field that T does not have is a programming error and panics.
func (m *Mirror[T]) Subscribe(callback func(T), keys ...Key) (unsubscribe func()) {
	checkKeys[T](m.name, keys)

	o := &observer[T]{
		callback: callback,
		keys:     keys,
	}
	m.observers = append(m.observers, o)
	if m.hasData {
		o.last = pick(m.data, keys)
		o.hasLast = true
		callback(m.data)
	}
	return func() {
		m.remove(o)
	}
}

// Notify records data as the current value and runs every observer whose
// keys are affected.
func (m *Mirror[T]) Notify(data T) {
	m.data = data
	m.hasData = true

	observers := append([]*observer[T](nil), m.observers...)
	for _, o := range observers {
		if o.removed {
			continue
		}
		picked := pick(data, o.keys)
		fire := len(o.keys) == 0 || !o.hasLast || changed(o.keys, o.last, picked)
		o.last = picked
		o.hasLast = true
		if fire {
			o.callback(data)
		}
	}
}

// ObserverCount returns the number of registered observers.
func (m *Mirror[T]) ObserverCount() int {
	return len(m.observers)
}

func (m *Mirror[T]) remove(o *observer[T]) {
	o.removed = true
	for i, existing := range m.observers {
		if existing == o {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return
		}
	}
}

func structType(t reflect.Type) (reflect.Type, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, t.Kind() == reflect.Struct
}

func checkKeys[T any](name string, keys []Key) {
	if len(keys) == 0 {
		return
	}
	t, ok := structType(reflect.TypeOf((*T)(nil)).Elem())
	if !ok {
		panic(fmt.Sprintf("programming error: %s: keys given for non-struct %s", name, reflect.TypeOf((*T)(nil)).Elem()))
	}
	for _, k := range keys {
		sf, ok := t.FieldByName(k.Name)
		if !ok || !sf.IsExported() {
			panic(fmt.Sprintf("programming error: %s: %s has no exported field %q", name, t, k.Name))
		}
	}
}

// pick extracts the keyed fields of data. A nil pointer yields invalid
// values, which compare equal only to each other.
func pick[T any](data T, keys []Key) []reflect.Value {
	if len(keys) == 0 {
		return nil
	}
	out := make([]reflect.Value, len(keys))
	v := reflect.ValueOf(&data).Elem()
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return out
		}
		v = v.Elem()
	}
	for i, k := range keys {
		f := v.FieldByName(k.Name)
		// Detach from data so later in-place changes are not observed.
		out[i] = reflect.ValueOf(f.Interface())
	}
	return out
}

func changed(keys []Key, last, next []reflect.Value) bool {
	for i, k := range keys {
		var equal bool
		if k.Deep {
			equal = deepEqual(last[i], next[i])
		} else {
			equal = shallowEqual(last[i], next[i])
		}
		if !equal {
			return true
		}
	}
	return false
}

func deepEqual(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	return reflect.DeepEqual(a.Interface(), b.Interface())
}

func shallowEqual(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}
	switch a.Kind() {
	case reflect.Slice:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return a.Len() == b.Len() && a.UnsafePointer() == b.UnsafePointer()
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return a.UnsafePointer() == b.UnsafePointer()
	}
	if a.Comparable() {
		return a.Equal(b)
	}
	// Structs and arrays holding slices or maps: compare one level down.
	return reflect.DeepEqual(a.Interface(), b.Interface())
}
