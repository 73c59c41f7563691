package jconv

import (
	"fmt"
	"io"
	"reflect"

	gojson "github.com/goccy/go-json"
)

// Fallback converts values of types that no registered converter handles.
// Errors it returns are passed to the caller unchanged.
type Fallback interface {
	// Serialize writes v to w.
	Serialize(v any, w io.Writer) error
	// Deserialize decodes body as a value described by t.
	Deserialize(t Type, body []byte) (any, error)
	// DeserializeStream decodes a single value described by t from src.
	DeserializeStream(t Type, src io.Reader) (any, error)
}

// GoJSONFallback is a Fallback backed by github.com/goccy/go-json, which
// maps Go values to JSON by reflection.
type GoJSONFallback struct{}

var _ Fallback = GoJSONFallback{}

func (GoJSONFallback) Serialize(v any, w io.Writer) error {
	b, err := gojson.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func (GoJSONFallback) Deserialize(t Type, body []byte) (any, error) {
	ptr, err := newTarget(t)
	if err != nil {
		return nil, err
	}
	if err := gojson.Unmarshal(body, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func (GoJSONFallback) DeserializeStream(t Type, src io.Reader) (any, error) {
	ptr, err := newTarget(t)
	if err != nil {
		return nil, err
	}
	if err := gojson.NewDecoder(src).Decode(ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func newTarget(t Type) (reflect.Value, error) {
	rt := t.GoType()
	if rt == nil {
		return reflect.Value{}, fmt.Errorf("jconv: fallback can not decode %s", t)
	}
	return reflect.New(rt), nil
}
