// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package upstream

import (
	"reflect"

	"github.com/mohae/deepcopy"
)

// IDField is the name of the document identity field.
const IDField = "_id"

// Document is a single mirrored document as delivered by the upstream.
type Document map[string]any

// ID returns the document identity.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Copy returns a deep copy of the document, so that callers may hold the
// result after the mirror has moved on.
func (d Document) Copy() Document {
	if d == nil {
		return nil
	}
	return deepcopy.Copy(d).(Document)
}

// Apply merges changed fields into the document and deletes cleared ones.
func (d Document) Apply(fields map[string]any, cleared []string) {
	for k, v := range fields {
		d[k] = v
	}
	for _, k := range cleared {
		delete(d, k)
	}
}

// Selector filters documents by field value. A selector value may be a
// scalar, compared for equality, or an In set.
type Selector map[string]any

// In matches a field whose value is any of the listed values.
type In []any

// InStrings is a convenience for building an In set from ids.
func InStrings(values []string) In {
	out := make(In, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Matches reports whether the document satisfies every selector entry.
// An empty selector matches everything.
func (s Selector) Matches(doc Document) bool {
	for field, want := range s {
		got, ok := doc[field]
		switch w := want.(type) {
		case In:
			if !ok || !inSet(got, w) {
				return false
			}
		default:
			if want == nil {
				if ok && got != nil {
					return false
				}
				continue
			}
			if !ok || !scalarEqual(got, want) {
				return false
			}
		}
	}
	return true
}

func inSet(got any, set In) bool {
	for _, v := range set {
		if scalarEqual(got, v) {
			return true
		}
	}
	return false
}

func scalarEqual(a, b any) bool {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if isNumber(av) && isNumber(bv) {
		return toFloat(av) == toFloat(bv)
	}
	if av.IsValid() && bv.IsValid() && av.Type() == bv.Type() && av.Comparable() {
		return av.Equal(bv)
	}
	return reflect.DeepEqual(a, b)
}

func isNumber(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	default:
		return v.Float()
	}
}
