package jconv

import (
	"reflect"
	"sort"
)

// readValue decodes any JSON value into untyped Go values: objects become
// map[string]any, arrays []any, integers int64 (or Decimal when they do
// not fit), other numbers float64.
func (r *Registry) readValue(rd *Reader) (any, error) {
	switch rd.Last() {
	case 'n':
		if rd.WasNull() {
			return nil, nil
		}
		return nil, rd.literalError("null")
	case 't', 'f':
		return rd.ReadBool()
	case Quote:
		return rd.ReadString()
	case ObjectStart:
		return r.readMap(rd)
	case ArrayStart:
		return r.readUntypedList(rd)
	}
	return rd.ReadNumber()
}

// readMap decodes an object into a map.  Keys go through the registry's key
// cache.
func (r *Registry) readMap(rd *Reader) (map[string]any, error) {
	if rd.Last() != ObjectStart {
		return nil, rd.Expecting("'{'")
	}
	if err := rd.enter(); err != nil {
		return nil, err
	}
	defer rd.leave()

	ch, err := rd.NextToken()
	if err != nil {
		return nil, err
	}
	m := make(map[string]any)
	if ch == ObjectEnd {
		return m, nil
	}
	for {
		if rd.Last() != Quote {
			return nil, rd.Expecting("key")
		}
		key, err := rd.readKey(r.keys)
		if err != nil {
			return nil, err
		}
		v, err := r.readValue(rd)
		if err != nil {
			return nil, err
		}
		m[key] = v

		ch, err := rd.NextToken()
		if err != nil {
			return nil, err
		}
		switch ch {
		case Comma:
			if _, err := rd.NextToken(); err != nil {
				return nil, err
			}
		case ObjectEnd:
			return m, nil
		default:
			return nil, rd.Expecting("value-separator or end of object")
		}
	}
}

// readUntypedList decodes an array of untyped values.
func (r *Registry) readUntypedList(rd *Reader) ([]any, error) {
	if rd.Last() != ArrayStart {
		return nil, rd.Expecting("'['")
	}
	if err := rd.enter(); err != nil {
		return nil, err
	}
	defer rd.leave()

	ch, err := rd.NextToken()
	if err != nil {
		return nil, err
	}
	if ch == ArrayEnd {
		return []any{}, nil
	}
	return rd.ReadNullableCollection(r.readValue)
}

// writeMap writes a map with string keys as an object, keys sorted.  Each
// value is written as its own dynamic type.
func (r *Registry) writeMap(w *Writer, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return unexpectedValue(v, "map with string keys")
	}
	if rv.IsNil() {
		w.WriteNull()
		return nil
	}

	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	w.WriteByte(ObjectStart)
	for i, k := range keys {
		if i > 0 {
			w.WriteByte(Comma)
		}
		w.WriteString(k.String())
		w.WriteByte(NameSeparator)
		if err := r.SerializeValue(w, rv.MapIndex(k).Interface()); err != nil {
			return err
		}
	}
	w.WriteByte(ObjectEnd)
	return nil
}
