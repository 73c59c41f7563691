package jconv

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"go.uber.org/zap"
)

func isNull(body []byte, size int) bool {
	return size == 4 && string(body[:4]) == "null"
}

func checkSize(body []byte, size int) error {
	if size < 0 || size > len(body) {
		return fmt.Errorf("jconv: size %d out of range for buffer of %d bytes", size, len(body))
	}
	return nil
}

// Deserialize decodes the first size bytes of body as a value described by
// t.  A top-level null decodes to nil.  Concrete class types receiving
// exactly "{}" are default constructed without parsing.  Types with no
// converter go to the fallback when one is configured.
func (r *Registry) Deserialize(t Type, body []byte, size int) (any, error) {
	if err := checkSize(body, size); err != nil {
		return nil, err
	}
	if isNull(body, size) {
		return nil, nil
	}
	if t.IsClass() && !t.IsInterface() && size == 2 && body[0] == ObjectStart && body[1] == ObjectEnd {
		v, err := r.construct(t)
		switch {
		case err == nil:
			return v, nil
		case !errors.Is(err, ErrNotConstructible):
			return nil, &ConstructionError{Type: t, Err: err}
		}
	}

	rd := r.acquireReader(body, size)
	defer r.releaseReader(rd)

	if _, err := rd.NextToken(); err != nil {
		return nil, err
	}
	if rd.WasNull() {
		return nil, rd.checkTrailing()
	}
	v, ok, err := r.deserializeWith(t, rd)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := rd.checkTrailing(); err != nil {
			return nil, err
		}
		return v, nil
	}
	if r.fallback != nil {
		r.log.Debug("deserializing through fallback", zap.Stringer("type", t))
		return r.fallback.Deserialize(t, body[:size])
	}
	return nil, r.readerErrorFor(t)
}

// DeserializeStream decodes a single value described by t from src, using
// buf as the chunk buffer.  If the type has to go to the fallback, the
// fallback receives the stream from its start, which requires the reader
// not to have discarded any input yet.
func (r *Registry) DeserializeStream(t Type, src io.Reader, buf []byte) (any, error) {
	rd, err := r.NewStreamReader(src, buf)
	if err != nil {
		return nil, err
	}
	if _, err := rd.NextToken(); err != nil {
		return nil, err
	}
	if rd.WasNull() {
		return nil, rd.checkTrailing()
	}
	v, ok, err := r.deserializeWith(t, rd)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := rd.checkTrailing(); err != nil {
			return nil, err
		}
		return v, nil
	}
	if r.fallback != nil {
		stream, err := rd.streamFromStart()
		if err != nil {
			return nil, err
		}
		r.log.Debug("deserializing stream through fallback", zap.Stringer("type", t))
		return r.fallback.DeserializeStream(t, stream)
	}
	return nil, r.readerErrorFor(t)
}

// deserializeWith decodes the value at the current token.  It reports false
// when no converter path exists for t, leaving the decision to the caller.
func (r *Registry) deserializeWith(t Type, rd *Reader) (any, bool, error) {
	if implementsObject(t) {
		if read := r.objectReader(t.d.rt); read != nil {
			v, err := readObject(rd, read)
			return v, true, err
		}
	}
	if read := r.TryFindReader(t); read != nil {
		v, err := read(rd)
		return v, true, err
	}
	if !t.IsArray() && t.Kind() != Collection {
		return nil, false, nil
	}

	if rd.Last() != ArrayStart {
		return nil, true, rd.Expecting("'['")
	}
	list, ok, err := r.readElements(t.Component(), rd)
	if err != nil || !ok {
		return nil, ok, err
	}
	if t.Kind() == Collection {
		if list == nil {
			list = []any{}
		}
		return list, true, nil
	}
	v, err := convertToArray(t.Component(), list)
	return v, true, err
}

// readElements reads the elements of the array whose '[' is the current
// token.  It reports false when there is no reader for a non-empty array's
// elements.
func (r *Registry) readElements(elem Type, rd *Reader) ([]any, bool, error) {
	ch, err := rd.NextToken()
	if err != nil {
		return nil, true, err
	}
	if ch == ArrayEnd {
		return nil, true, nil
	}
	read := r.elementReader(elem)
	if read == nil {
		return nil, false, nil
	}
	list, err := rd.ReadNullableCollection(read)
	return list, true, err
}

func (r *Registry) elementReader(t Type) ReadFunc {
	if implementsObject(t) {
		if read := r.objectReader(t.d.rt); read != nil {
			return func(rd *Reader) (any, error) { return readObject(rd, read) }
		}
	}
	return r.TryFindReader(t)
}

func readObject(rd *Reader, read ObjectReadFunc) (any, error) {
	if rd.Last() != ObjectStart {
		return nil, rd.Expecting("'{'")
	}
	if _, err := rd.NextToken(); err != nil {
		return nil, err
	}
	return read(rd)
}

// readerErrorFor reports a missing reader.  For array classes the element
// type is named, since that is what needs a reader.
func (r *Registry) readerErrorFor(t Type) error {
	if t.IsClass() && t.IsArray() {
		if _, ok := r.readers[t]; !ok {
			return r.readerError(t.Component())
		}
	}
	return r.readerError(t)
}

// convertToArray builds a slice of the component's Go type from decoded
// elements.  Nil elements are only allowed for component types that can
// hold nil.
func convertToArray(component Type, list []any) (any, error) {
	if component.IsClass() && isPrimitive(component.d.rt) {
		switch component.d.rt.Kind() {
		case reflect.Bool:
			return unbox[bool](list)
		case reflect.Int:
			return unbox[int](list)
		case reflect.Int8:
			return unbox[int8](list)
		case reflect.Int16:
			return unbox[int16](list)
		case reflect.Int32:
			return unbox[int32](list)
		case reflect.Int64:
			return unbox[int64](list)
		case reflect.Uint:
			return unbox[uint](list)
		case reflect.Uint8:
			return unbox[uint8](list)
		case reflect.Uint16:
			return unbox[uint16](list)
		case reflect.Uint32:
			return unbox[uint32](list)
		case reflect.Uint64:
			return unbox[uint64](list)
		case reflect.Float32:
			return unbox[float32](list)
		case reflect.Float64:
			return unbox[float64](list)
		}
	}

	et := component.GoType()
	out := reflect.MakeSlice(reflect.SliceOf(et), len(list), len(list))
	for i, v := range list {
		if v == nil {
			if !nillable(et) {
				return nil, fmt.Errorf("jconv: null at index %d can not be stored in %s", i, et)
			}
			continue
		}
		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(et) {
			return nil, fmt.Errorf("jconv: %s at index %d can not be stored in %s", rv.Type(), i, et)
		}
		out.Index(i).Set(rv)
	}
	return out.Interface(), nil
}

func unbox[T any](list []any) (any, error) {
	out := make([]T, len(list))
	for i, v := range list {
		x, ok := v.(T)
		if !ok {
			if v == nil {
				return nil, fmt.Errorf("jconv: null at index %d can not be stored in %T", i, out)
			}
			return nil, fmt.Errorf("jconv: %T at index %d can not be stored in %T", v, i, out)
		}
		out[i] = x
	}
	return out, nil
}

func nillable(rt reflect.Type) bool {
	switch rt.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// DeserializeList decodes a JSON array of values described by elem.  A
// top-level null decodes to a nil slice and "[]" to an empty one.
func (r *Registry) DeserializeList(elem Type, body []byte, size int) ([]any, error) {
	if err := checkSize(body, size); err != nil {
		return nil, err
	}
	if isNull(body, size) {
		return nil, nil
	}
	if size == 2 && body[0] == ArrayStart && body[1] == ArrayEnd {
		return []any{}, nil
	}

	rd := r.acquireReader(body, size)
	defer r.releaseReader(rd)

	list, ok, err := r.readList(elem, rd)
	if err != nil || ok {
		return list, err
	}
	if r.fallback != nil {
		r.log.Debug("deserializing list through fallback", zap.Stringer("type", elem))
		v, err := r.fallback.Deserialize(ArrayOf(elem), body[:size])
		if err != nil {
			return nil, err
		}
		return sliceToList(v)
	}
	return nil, r.readerError(elem)
}

// DeserializeListStream is DeserializeList over a stream.
func (r *Registry) DeserializeListStream(elem Type, src io.Reader, buf []byte) ([]any, error) {
	rd, err := r.NewStreamReader(src, buf)
	if err != nil {
		return nil, err
	}
	list, ok, err := r.readList(elem, rd)
	if err != nil || ok {
		return list, err
	}
	if r.fallback != nil {
		stream, err := rd.streamFromStart()
		if err != nil {
			return nil, err
		}
		r.log.Debug("deserializing list stream through fallback", zap.Stringer("type", elem))
		v, err := r.fallback.DeserializeStream(ArrayOf(elem), stream)
		if err != nil {
			return nil, err
		}
		return sliceToList(v)
	}
	return nil, r.readerError(elem)
}

func (r *Registry) readList(elem Type, rd *Reader) ([]any, bool, error) {
	ch, err := rd.NextToken()
	if err != nil {
		return nil, true, err
	}
	if ch != ArrayStart {
		if rd.WasNull() {
			return nil, true, rd.checkTrailing()
		}
		return nil, true, rd.Expecting("'['")
	}
	list, ok, err := r.readElements(elem, rd)
	if err != nil || !ok {
		return nil, ok, err
	}
	if err := rd.checkTrailing(); err != nil {
		return nil, true, err
	}
	if list == nil {
		list = []any{}
	}
	return list, true, nil
}

func sliceToList(v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	if list, ok := v.([]any); ok {
		return list, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("jconv: fallback returned %T, expected a slice", v)
	}
	if rv.IsNil() {
		return nil, nil
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, nil
}
