package jconv

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
)

// point is a self-describing value with a bound reader.
type point struct{ X, Y int }

func (p *point) WriteJSON(w *Writer, omitDefaults bool) error {
	w.WriteByte(ObjectStart)
	first := true
	for _, f := range []struct {
		key string
		val int
	}{{"x", p.X}, {"y", p.Y}} {
		if omitDefaults && f.val == 0 {
			continue
		}
		if !first {
			w.WriteByte(Comma)
		}
		first = false
		w.WriteString(f.key)
		w.WriteByte(NameSeparator)
		w.WriteInt64(int64(f.val))
	}
	w.WriteByte(ObjectEnd)
	return nil
}

func readPoint(rd *Reader) (Object, error) {
	p := &point{}
	if rd.Last() == ObjectEnd {
		return p, nil
	}
	for {
		key, err := rd.ReadKey()
		if err != nil {
			return nil, err
		}
		switch key {
		case "x":
			p.X, err = rd.ReadInt()
		case "y":
			p.Y, err = rd.ReadInt()
		default:
			err = rd.Skip()
		}
		if err != nil {
			return nil, err
		}
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
			return p, nil
		default:
			return nil, rd.Expecting("value-separator or end of object")
		}
	}
}

// brokenPoint writes itself, but its reader binding panics.
type brokenPoint struct{}

func (*brokenPoint) WriteJSON(w *Writer, _ bool) error {
	w.WriteASCII("{}")
	return nil
}

func bindPoint(r *Registry) error {
	err := r.BindObject(reflect.TypeOf(&point{}), func() (ObjectReadFunc, error) {
		return readPoint, nil
	})
	if err != nil {
		return err
	}
	return r.BindObject(reflect.TypeOf(&brokenPoint{}), func() (ObjectReadFunc, error) {
		panic("no reader generated")
	})
}

func newPointRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()
	r := New(cfg)
	assert.NilError(t, bindPoint(r))
	return r
}

type settings struct{ Level int }

func TestDeserialize(t *testing.T) {
	t.Parallel()

	r := newPointRegistry(t, DefaultConfig())
	r.RegisterConstructor(reflect.TypeOf(settings{}), func() (any, error) {
		return settings{Level: 3}, nil
	})

	cases := []struct {
		label string
		t     Type
		input string
		want  any
	}{
		{"null", TypeFor[*point](), "null", nil},
		{"null with spaces", TypeFor[int](), " null ", nil},
		{"object", TypeFor[*point](), `{"x":1,"y":2}`, &point{X: 1, Y: 2}},
		{"object unknown key", TypeFor[*point](), `{"z":[1,{}],"y":2}`, &point{Y: 2}},
		{"empty object shortcut", TypeFor[*point](), `{}`, &point{}},
		{"empty object spaced", TypeFor[*point](), `{ }`, &point{}},
		{"constructor", TypeFor[settings](), `{}`, settings{Level: 3}},
		{"empty map", TypeFor[map[string]int](), `{}`, map[string]int{}},
		{"interface", TypeFor[any](), `{}`, map[string]any{}},
		{"int", TypeFor[int](), `42`, 42},
		{"string", TypeFor[string](), `"hi"`, "hi"},
		{"int slice", TypeFor[[]int](), `[1,2,3]`, []int{1, 2, 3}},
		{"float slice", TypeFor[[]float64](), `[1.5,-2]`, []float64{1.5, -2}},
		{"empty int slice", TypeFor[[]int](), `[]`, []int{}},
		{"object slice", TypeFor[[]*point](), `[{"x":1},null,{}]`, []*point{{X: 1}, nil, {}}},
		{"collection", CollectionOf(TypeFor[int]()), `[1,null,3]`, []any{1, nil, 3}},
		{"empty collection", CollectionOf(TypeFor[int]()), `[]`, []any{}},
		{"generic array", ArrayOf(CollectionOf(TypeFor[int]())), `[]`, [][]any{}},
		{"bytes", TypeFor[[]byte](), `"AQID"`, []byte{1, 2, 3}},
	}
	for _, c := range cases {
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()
			got, err := r.Deserialize(c.t, []byte(c.input), len(c.input))
			assert.NilError(t, err)
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("Deserialize(%s) mismatch (-want +got):\n%s", c.input, diff)
			}
		})
	}
}

func TestDeserializeErrors(t *testing.T) {
	t.Parallel()

	r := newPointRegistry(t, DefaultConfig())
	r.RegisterConstructor(reflect.TypeOf(settings{}), func() (any, error) {
		return nil, errors.New("no defaults")
	})

	cases := []struct {
		label  string
		t      Type
		input  string
		errStr string
	}{
		{"null in int slice", TypeFor[[]int](), `[1,null]`, "null at index 1 can not be stored in []int"},
		{"null in string slice", TypeFor[[]string](), `["a",null]`, "null at index 1 can not be stored in string"},
		{"object for slice", TypeFor[[]int](), `{"a":1}`, "expecting '['"},
		{"trailing", TypeFor[[]int](), `[1] 2`, "unexpected data after top-level value"},
		{"trailing after null", TypeFor[int](), `null x`, "unexpected data after top-level value"},
		{"bad element", CollectionOf(TypeFor[int]()), `[1,"two"]`, "expecting number"},
		{"missing separator", TypeFor[[]int](), `[1 2]`, "expecting value-separator or end of array"},
		{"no reader", TypeFor[animal](), `{"Name":"rex"}`, "unable to find reader for jconv.animal"},
		{"no element reader", TypeFor[[]animal](), `[{"Name":"rex"}]`, "unable to find reader for jconv.animal"},
		{"failed constructor", TypeFor[settings](), `{}`, "unable to construct jconv.settings from empty object: no defaults"},
		{"unbound object", TypeFor[*brokenPoint](), `{"a":1}`, "unable to find reader for *jconv.brokenPoint"},
		{"eof", TypeFor[*point](), `{"x":1`, "unexpected EOF"},
		{"empty", TypeFor[int](), ``, "unexpected EOF"},
	}
	for _, c := range cases {
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()
			_, err := r.Deserialize(c.t, []byte(c.input), len(c.input))
			assert.ErrorContains(t, err, c.errStr)
		})
	}
}

func TestDeserializeConstruction(t *testing.T) {
	t.Parallel()

	r := newPointRegistry(t, DefaultConfig())
	calls := 0
	r.RegisterConstructor(reflect.TypeOf(&point{}), func() (any, error) {
		calls++
		return nil, ErrNotConstructible
	})

	// Not constructible means "{}" is parsed by the bound reader.
	got, err := r.Deserialize(TypeFor[*point](), []byte("{}"), 2)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, &point{})
	assert.Equal(t, calls, 1)

	// Only exactly "{}" takes the shortcut.
	_, err = r.Deserialize(TypeFor[*point](), []byte(`{"x":5}`), 7)
	assert.NilError(t, err)
	assert.Equal(t, calls, 1)

	r.RegisterConstructor(reflect.TypeOf(settings{}), func() (any, error) {
		return nil, errors.New("broken")
	})
	_, err = r.Deserialize(TypeFor[settings](), []byte("{}"), 2)
	var ce *ConstructionError
	assert.Assert(t, errors.As(err, &ce))
	assert.Equal(t, ce.Type, TypeFor[settings]())
	assert.ErrorContains(t, ce.Err, "broken")
}

func TestDeserializeSize(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	body := []byte(`[1,2]garbage`)
	got, err := r.Deserialize(TypeFor[[]int](), body, 5)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, []int{1, 2})

	_, err = r.Deserialize(TypeFor[[]int](), body, len(body))
	assert.ErrorContains(t, err, "unexpected data after top-level value")

	_, err = r.Deserialize(TypeFor[[]int](), body, len(body)+1)
	assert.ErrorContains(t, err, "out of range")
	_, err = r.Deserialize(TypeFor[[]int](), body, -1)
	assert.ErrorContains(t, err, "out of range")

	// "null" is only recognized over exactly size bytes.
	got, err = r.Deserialize(TypeFor[int](), []byte("null7"), 4)
	assert.NilError(t, err)
	assert.Assert(t, got == nil)
}

func TestDeserializeFallback(t *testing.T) {
	t.Parallel()

	r := New(Config{Fallback: GoJSONFallback{}})

	got, err := r.Deserialize(TypeFor[animal](), []byte(`{"Name":"rex"}`), 14)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, animal{Name: "rex"})

	// Unbound self-describing types also go to the fallback.
	got, err = r.Deserialize(TypeFor[*point](), []byte(`{"x":1,"y":2}`), 13)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, &point{X: 1, Y: 2})

	got, err = r.Deserialize(TypeFor[[]animal](), []byte(`[{"Name":"a"},{"Name":"b"}]`), 27)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, []animal{{Name: "a"}, {Name: "b"}})

	// Fallback errors are returned unchanged.
	_, err = r.Deserialize(TypeFor[animal](), []byte(`{"Name":1}`), 10)
	assert.Assert(t, err != nil)
	var pe *ParseError
	assert.Assert(t, !errors.As(err, &pe))
	var re *ResolveError
	assert.Assert(t, !errors.As(err, &re))
}

func TestDeserializeStream(t *testing.T) {
	t.Parallel()

	r := newPointRegistry(t, Config{Fallback: GoJSONFallback{}})

	got, err := r.DeserializeStream(TypeFor[*point](), strings.NewReader(`  {"x":3,  "y":4}  `), make([]byte, 16))
	assert.NilError(t, err)
	assert.DeepEqual(t, got, &point{X: 3, Y: 4})

	got, err = r.DeserializeStream(TypeFor[*point](), strings.NewReader(`null`), make([]byte, 16))
	assert.NilError(t, err)
	assert.Assert(t, got == nil)

	// The fallback sees the stream from its first byte, even when the input
	// is larger than one chunk.
	name := strings.Repeat("abcdefgh", 10)
	got, err = r.DeserializeStream(TypeFor[animal](), strings.NewReader(`{"Name":"`+name+`"}`), make([]byte, 16))
	assert.NilError(t, err)
	assert.DeepEqual(t, got, animal{Name: name})

	_, err = r.DeserializeStream(TypeFor[*point](), strings.NewReader(`{"x":3}{}`), make([]byte, 16))
	assert.ErrorContains(t, err, "unexpected data after top-level value")
}

func TestDeserializeList(t *testing.T) {
	t.Parallel()

	r := newPointRegistry(t, DefaultConfig())
	fr := New(Config{Fallback: GoJSONFallback{}})

	cases := []struct {
		label  string
		r      *Registry
		elem   Type
		input  string
		want   []any
		errStr string
	}{
		{label: "ints", r: r, elem: TypeFor[int](), input: `[1, 2 ,null]`, want: []any{1, 2, nil}},
		{label: "null", r: r, elem: TypeFor[int](), input: `null`, want: nil},
		{label: "empty", r: r, elem: TypeFor[int](), input: `[]`, want: []any{}},
		{label: "empty spaced", r: r, elem: TypeFor[int](), input: ` [ ] `, want: []any{}},
		{label: "objects", r: r, elem: TypeFor[*point](), input: `[{"y":1},{}]`, want: []any{&point{Y: 1}, &point{}}},
		{label: "fallback", r: fr, elem: TypeFor[animal](), input: `[{"Name":"a"}]`, want: []any{animal{Name: "a"}}},
		{label: "not an array", r: r, elem: TypeFor[int](), input: `{}`, errStr: "expecting '['"},
		{label: "trailing", r: r, elem: TypeFor[int](), input: `[1],`, errStr: "unexpected data after top-level value"},
		{label: "no reader", r: r, elem: TypeFor[animal](), input: `[{}]`, errStr: "unable to find reader for jconv.animal"},
	}
	for _, c := range cases {
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()
			check := func(got []any, err error) {
				t.Helper()
				if c.errStr != "" {
					assert.ErrorContains(t, err, c.errStr)
					return
				}
				assert.NilError(t, err)
				if diff := cmp.Diff(c.want, got); diff != "" {
					t.Errorf("mismatch (-want +got):\n%s", diff)
				}
			}
			check(c.r.DeserializeList(c.elem, []byte(c.input), len(c.input)))
			check(c.r.DeserializeListStream(c.elem, strings.NewReader(c.input), make([]byte, 16)))
		})
	}
}
