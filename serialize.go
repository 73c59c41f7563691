package jconv

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"reflect"
	"strconv"

	"go.uber.org/zap"
)

// Serialize writes value as the type described by t.  A nil value is
// written as null.  Types with no writer go to the fallback when one is
// configured.
func (r *Registry) Serialize(w *Writer, t Type, value any) error {
	if value == nil {
		w.WriteNull()
		return nil
	}
	fn, err := r.writerFor(t, value)
	if err != nil {
		if r.fallback != nil && isResolveError(err) {
			return r.fallbackWrite(w, value)
		}
		return err
	}
	return fn(w, value)
}

// SerializeValue writes value as its own dynamic type.
func (r *Registry) SerializeValue(w *Writer, value any) error {
	if value == nil {
		w.WriteNull()
		return nil
	}
	return r.Serialize(w, TypeOf(reflect.TypeOf(value)), value)
}

// SerializeTo writes value as its own dynamic type to sink.
func (r *Registry) SerializeTo(value any, sink io.Writer) error {
	w := r.AcquireWriter()
	defer r.ReleaseWriter(w)
	if err := r.SerializeValue(w, value); err != nil {
		return err
	}
	_, err := w.WriteTo(sink)
	return err
}

func isResolveError(err error) bool {
	var re *ResolveError
	return errors.As(err, &re)
}

// writerFor picks the writer for values described by t.  The instance, when
// not nil, lets self-describing and slice values be recognized by their
// dynamic type.
func (r *Registry) writerFor(t Type, instance any) (WriteFunc, error) {
	if _, ok := instance.(Object); ok || implementsObject(t) {
		return r.writeObject, nil
	}
	if t.IsArray() && implementsObject(t.Component()) {
		return r.writeObjects, nil
	}

	fn, kind := r.resolveWriter(t)
	if fn != nil {
		return fn, nil
	}
	if kind == KindDisabled {
		return nil, &ResolveError{Kind: KindDisabled, Op: "writer", Type: t}
	}

	if t.IsArray() {
		component := t.Component()
		if component.IsClass() && isPrimitive(component.d.rt) {
			return primitiveArrayWriter(component.d.rt), nil
		}
		if ew := r.TryFindWriter(component); ew != nil {
			return sliceWriter(ew), nil
		}
	}
	if rt := t.GoType(); rt != nil && rt.Kind() == reflect.Map && rt.Key().Kind() == reflect.String {
		return r.writeMap, nil
	}
	if t.IsArray() || t.Kind() == Collection || instance != nil && reflect.TypeOf(instance).Kind() == reflect.Slice {
		return r.writeCollection, nil
	}
	return nil, r.writerError(t)
}

func (r *Registry) fallbackWrite(w *Writer, value any) error {
	r.log.Debug("serializing through fallback", zap.String("type", fmt.Sprintf("%T", value)))
	mark := w.Len()
	if err := r.fallback.Serialize(value, w); err != nil {
		w.truncate(mark)
		return err
	}
	return nil
}

func unexpectedValue(v any, want string) error {
	return fmt.Errorf("jconv: can not write %T as %s", v, want)
}

func isNilValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func (r *Registry) writeObject(w *Writer, v any) error {
	o, ok := v.(Object)
	if !ok {
		return unexpectedValue(v, "jconv.Object")
	}
	if isNilValue(reflect.ValueOf(v)) {
		w.WriteNull()
		return nil
	}
	return o.WriteJSON(w, r.omitDefaults)
}

func (r *Registry) writeObjects(w *Writer, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return unexpectedValue(v, "slice")
	}
	if rv.IsNil() {
		w.WriteNull()
		return nil
	}
	w.WriteByte(ArrayStart)
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			w.WriteByte(Comma)
		}
		item := rv.Index(i)
		if isNilValue(item) {
			w.WriteNull()
			continue
		}
		if err := r.writeObject(w, item.Interface()); err != nil {
			return err
		}
	}
	w.WriteByte(ArrayEnd)
	return nil
}

// sliceWriter writes each element of a slice with ew.
func sliceWriter(ew WriteFunc) WriteFunc {
	return func(w *Writer, v any) error {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return unexpectedValue(v, "slice")
		}
		if rv.IsNil() {
			w.WriteNull()
			return nil
		}
		return writeElements(w, rv, ew)
	}
}

func writeElements(w *Writer, rv reflect.Value, ew WriteFunc) error {
	w.WriteByte(ArrayStart)
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			w.WriteByte(Comma)
		}
		item := rv.Index(i)
		if isNilValue(item) {
			w.WriteNull()
			continue
		}
		if err := ew(w, item.Interface()); err != nil {
			return err
		}
	}
	w.WriteByte(ArrayEnd)
	return nil
}

// writeCollection writes a slice of possibly mixed element types with a
// single writer.  The writer is chosen for a base type found by scanning
// the non-nil elements: the base type starts as the first element's type
// and is replaced by a later element's type when that type is a declared
// ancestor of the current base.  This is an approximation; a slice mixing
// unrelated types is written with the writer of whichever type the scan
// settles on, or goes to the fallback if that type has none.
func (r *Registry) writeCollection(w *Writer, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return unexpectedValue(v, "slice")
	}
	if rv.IsNil() {
		w.WriteNull()
		return nil
	}
	n := rv.Len()
	if n == 0 {
		w.WriteASCII("[]")
		return nil
	}

	var base reflect.Type
	for i := 0; i < n; i++ {
		item := rv.Index(i)
		if isNilValue(item) {
			continue
		}
		if item.Kind() == reflect.Interface {
			item = item.Elem()
			if isNilValue(item) {
				continue
			}
		}
		et := item.Type()
		if et != base && (base == nil || r.isAssignableFrom(et, base)) {
			base = et
		}
	}

	if base == nil {
		w.WriteASCII("[null")
		for i := 1; i < n; i++ {
			w.WriteASCII(",null")
		}
		w.WriteByte(ArrayEnd)
		return nil
	}
	if base.Implements(objectType) {
		return r.writeObjects(w, v)
	}
	ew := r.TryFindWriter(TypeOf(base))
	if ew == nil {
		if r.fallback != nil {
			return r.fallbackWrite(w, v)
		}
		return r.writerError(TypeOf(base))
	}
	return writeElements(w, rv, ew)
}

func primitiveArrayWriter(rt reflect.Type) WriteFunc {
	switch rt.Kind() {
	case reflect.Bool:
		return writeBools
	case reflect.Int:
		return writeInts[int]
	case reflect.Int8:
		return writeInts[int8]
	case reflect.Int16:
		return writeInts[int16]
	case reflect.Int32:
		return writeInts[int32]
	case reflect.Int64:
		return writeInts[int64]
	case reflect.Uint:
		return writeUints[uint]
	case reflect.Uint8:
		return writeBytes
	case reflect.Uint16:
		return writeUints[uint16]
	case reflect.Uint32:
		return writeUints[uint32]
	case reflect.Uint64:
		return writeUints[uint64]
	case reflect.Float32:
		return writeFloats[float32]
	case reflect.Float64:
		return writeFloats[float64]
	}
	return nil
}

// asSlice returns v as a []T, converting named slice types with the same
// underlying type.
func asSlice[T any](v any) ([]T, error) {
	if s, ok := v.([]T); ok {
		return s, nil
	}
	st := reflect.TypeOf([]T(nil))
	rv := reflect.ValueOf(v)
	if rv.IsValid() && rv.Type().ConvertibleTo(st) && rv.Kind() == reflect.Slice {
		return rv.Convert(st).Interface().([]T), nil
	}
	return nil, unexpectedValue(v, st.String())
}

func writeBools(w *Writer, v any) error {
	s, err := asSlice[bool](v)
	if err != nil {
		return err
	}
	if s == nil {
		w.WriteNull()
		return nil
	}
	w.WriteByte(ArrayStart)
	for i, b := range s {
		if i > 0 {
			w.WriteByte(Comma)
		}
		w.WriteBool(b)
	}
	w.WriteByte(ArrayEnd)
	return nil
}

func writeInts[T int | int8 | int16 | int32 | int64](w *Writer, v any) error {
	s, err := asSlice[T](v)
	if err != nil {
		return err
	}
	if s == nil {
		w.WriteNull()
		return nil
	}
	w.WriteByte(ArrayStart)
	for i, n := range s {
		if i > 0 {
			w.WriteByte(Comma)
		}
		w.buf = strconv.AppendInt(w.buf, int64(n), 10)
	}
	w.WriteByte(ArrayEnd)
	return nil
}

func writeUints[T uint | uint16 | uint32 | uint64](w *Writer, v any) error {
	s, err := asSlice[T](v)
	if err != nil {
		return err
	}
	if s == nil {
		w.WriteNull()
		return nil
	}
	w.WriteByte(ArrayStart)
	for i, n := range s {
		if i > 0 {
			w.WriteByte(Comma)
		}
		w.buf = strconv.AppendUint(w.buf, uint64(n), 10)
	}
	w.WriteByte(ArrayEnd)
	return nil
}

func writeFloats[T float32 | float64](w *Writer, v any) error {
	s, err := asSlice[T](v)
	if err != nil {
		return err
	}
	if s == nil {
		w.WriteNull()
		return nil
	}
	bits := 64
	if _, ok := any(T(0)).(float32); ok {
		bits = 32
	}
	w.WriteByte(ArrayStart)
	for i, f := range s {
		if i > 0 {
			w.WriteByte(Comma)
		}
		if err := w.writeFloat(float64(f), bits); err != nil {
			return err
		}
	}
	w.WriteByte(ArrayEnd)
	return nil
}

// writeBytes writes a byte slice as a base64 string.
func writeBytes(w *Writer, v any) error {
	s, err := asSlice[byte](v)
	if err != nil {
		return err
	}
	if s == nil {
		w.WriteNull()
		return nil
	}
	w.WriteBase64(s)
	return nil
}

// SerializeStream writes the items of seq to sink as a JSON array.  Each
// item is encoded into scratch, which is flushed to sink after every item.
// The writer is resolved from the item's dynamic type and reused while
// consecutive items share a type.  Nil items are written as null.
func (r *Registry) SerializeStream(seq iter.Seq[any], sink io.Writer, scratch *Writer) error {
	if scratch == nil {
		scratch = NewWriter()
	}
	scratch.Reset()

	var lastType reflect.Type
	var lastWriter WriteFunc

	scratch.WriteByte(ArrayStart)
	first := true
	for item := range seq {
		if !first {
			scratch.WriteByte(Comma)
		}
		first = false
		if item == nil {
			scratch.WriteNull()
			continue
		}

		rt := reflect.TypeOf(item)
		if lastWriter == nil || rt != lastType {
			fn, err := r.writerFor(TypeOf(rt), item)
			if err != nil {
				if r.fallback == nil || !isResolveError(err) {
					return err
				}
				fn = r.fallbackWrite
			}
			lastType, lastWriter = rt, fn
		}
		if err := lastWriter(scratch, item); err != nil {
			return err
		}
		if err := scratch.Flush(sink); err != nil {
			return err
		}
	}
	scratch.WriteByte(ArrayEnd)
	return scratch.Flush(sink)
}

// SerializeStreamAs is like SerializeStream, but all items are written with
// the writer of t, resolved once.
func (r *Registry) SerializeStreamAs(seq iter.Seq[any], t Type, sink io.Writer, scratch *Writer) error {
	fn, err := r.writerFor(t, nil)
	if err != nil {
		if r.fallback == nil || !isResolveError(err) {
			return err
		}
		fn = r.fallbackWrite
	}
	if scratch == nil {
		scratch = NewWriter()
	}
	scratch.Reset()

	scratch.WriteByte(ArrayStart)
	first := true
	for item := range seq {
		if !first {
			scratch.WriteByte(Comma)
		}
		first = false
		if item == nil {
			scratch.WriteNull()
			continue
		}
		if err := fn(scratch, item); err != nil {
			return err
		}
		if err := scratch.Flush(sink); err != nil {
			return err
		}
	}
	scratch.WriteByte(ArrayEnd)
	return scratch.Flush(sink)
}
