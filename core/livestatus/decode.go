// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package livestatus describes the entities mirrored from the production
// control system, and how to decode them from upstream documents.
package livestatus

import (
	"reflect"

	"github.com/juju/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/juju/livestatus/core/upstream"
)

var pieceStartType = reflect.TypeOf(PieceStart{})

// Decode converts an upstream document into a typed entity.
func Decode[T any](doc upstream.Document) (*T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(pieceStartHook),
		Result:           &out,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := decoder.Decode(map[string]any(doc)); err != nil {
		return nil, errors.Annotatef(err, "decoding %T %q", out, doc.ID())
	}
	return &out, nil
}

// DecodeAll decodes every document, skipping (and reporting) those that do
// not decode.
func DecodeAll[T any](docs []upstream.Document) ([]*T, []error) {
	out := make([]*T, 0, len(docs))
	var errs []error
	for _, doc := range docs {
		v, err := Decode[T](doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, v)
	}
	return out, errs
}

// pieceStartHook accepts either a number of milliseconds or the string
// "now" for a piece's enable.start.
func pieceStartHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != pieceStartType {
		return data, nil
	}
	switch v := data.(type) {
	case nil:
		return PieceStart{}, nil
	case string:
		if v == "now" {
			return PieceStart{Now: true}, nil
		}
		return nil, errors.NotValidf("piece start %q", v)
	case float64:
		return PieceStart{Offset: int64(v)}, nil
	case float32:
		return PieceStart{Offset: int64(v)}, nil
	case int:
		return PieceStart{Offset: int64(v)}, nil
	case int64:
		return PieceStart{Offset: v}, nil
	case PieceStart:
		return v, nil
	}
	return nil, errors.NotValidf("piece start of type %T", data)
}
