package jconv

import (
	"bytes"
	"fmt"
)

// RegisterReaderFunc registers a typed reader for T.
func RegisterReaderFunc[T any](r *Registry, fn func(*Reader) (T, error)) {
	r.RegisterReader(TypeFor[T](), func(rd *Reader) (any, error) {
		v, err := fn(rd)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// RegisterWriterFunc registers a typed writer for T.
func RegisterWriterFunc[T any](r *Registry, fn func(*Writer, T) error) {
	t := TypeFor[T]()
	r.RegisterWriter(t, func(w *Writer, v any) error {
		x, ok := v.(T)
		if !ok {
			return unexpectedValue(v, t.String())
		}
		return fn(w, x)
	})
}

// Unmarshal decodes body as a T.  A top-level null decodes to the zero
// value of T.
func Unmarshal[T any](r *Registry, body []byte) (T, error) {
	var zero T
	v, err := r.Deserialize(TypeFor[T](), body, len(body))
	if err != nil || v == nil {
		return zero, err
	}
	x, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("jconv: decoded %T, expected %s", v, TypeFor[T]())
	}
	return x, nil
}

// Marshal encodes v as its own dynamic type.
func Marshal(r *Registry, v any) ([]byte, error) {
	w := r.AcquireWriter()
	defer r.ReleaseWriter(w)
	if err := r.SerializeValue(w, v); err != nil {
		return nil, err
	}
	return bytes.Clone(w.Bytes()), nil
}
