package jconv

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestGoJSONFallback(t *testing.T) {
	t.Parallel()

	var fb GoJSONFallback

	var buf bytes.Buffer
	assert.NilError(t, fb.Serialize(map[string]animal{"a": {Name: "rex"}}, &buf))
	assert.Equal(t, buf.String(), `{"a":{"Name":"rex"}}`)

	v, err := fb.Deserialize(TypeFor[animal](), []byte(`{"Name":"rex"}`))
	assert.NilError(t, err)
	assert.DeepEqual(t, v, animal{Name: "rex"})

	v, err = fb.DeserializeStream(CollectionOf(TypeFor[int]()), strings.NewReader(`[1,"x"]`))
	assert.NilError(t, err)
	assert.DeepEqual(t, v, []any{float64(1), "x"})

	v, err = fb.Deserialize(ArrayOf(CollectionOf(TypeFor[int]())), []byte(`[[1]]`))
	assert.NilError(t, err)
	assert.DeepEqual(t, v, [][]any{{float64(1)}})

	_, err = fb.Deserialize(Type{}, []byte(`1`))
	assert.ErrorContains(t, err, "fallback can not decode")

	assert.ErrorContains(t, fb.Serialize(refusingMarshaler{}, &buf), "refused")
	assert.ErrorContains(t, fb.Serialize(1, failingWriter{}), "sink closed")
}

// recordingFallback records the input it receives and returns a fixed
// result or error.
type recordingFallback struct {
	input  []byte
	result any
	err    error
}

func (f *recordingFallback) Serialize(v any, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, `"fallback"`)
	return err
}

func (f *recordingFallback) Deserialize(_ Type, body []byte) (any, error) {
	f.input = bytes.Clone(body)
	return f.result, f.err
}

func (f *recordingFallback) DeserializeStream(_ Type, src io.Reader) (any, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	f.input = b
	return f.result, f.err
}

func TestFallbackErrorsPropagate(t *testing.T) {
	t.Parallel()

	errCustom := errors.New("custom fallback failure")

	fb := &recordingFallback{err: errCustom}
	r := New(Config{Fallback: fb})

	_, err := r.Deserialize(TypeFor[animal](), []byte(`{"Name":"a"}`), 12)
	assert.Equal(t, err, errCustom)

	_, err = r.DeserializeStream(TypeFor[animal](), strings.NewReader(`{"Name":"a"}`), nil)
	assert.Equal(t, err, errCustom)

	_, err = r.DeserializeList(TypeFor[animal](), []byte(`[{}]`), 4)
	assert.Equal(t, err, errCustom)

	_, err = r.IterateOver(TypeFor[animal](), strings.NewReader(`[{}]`), nil)
	assert.Equal(t, err, errCustom)

	_, err = Marshal(r, animal{})
	assert.Equal(t, err, errCustom)
}

func TestFallbackReceivesInput(t *testing.T) {
	t.Parallel()

	fb := &recordingFallback{result: "ok"}
	r := New(Config{Fallback: fb})

	// The in-memory fallback sees only the live bytes.
	body := []byte(`{"Name":"a"}trailing`)
	v, err := r.Deserialize(TypeFor[animal](), body, 12)
	assert.NilError(t, err)
	assert.Equal(t, v, "ok")
	assert.Equal(t, string(fb.input), `{"Name":"a"}`)

	// The stream fallback sees the input after the byte-order-mark.
	v, err = r.DeserializeStream(TypeFor[animal](), strings.NewReader("\xef\xbb\xbf  {\"Name\":\"b\"}"), nil)
	assert.NilError(t, err)
	assert.Equal(t, v, "ok")
	assert.Equal(t, string(fb.input), `  {"Name":"b"}`)

	out, err := Marshal(r, animal{})
	assert.NilError(t, err)
	assert.Equal(t, string(out), `"fallback"`)
}

func TestFallbackNotReplayable(t *testing.T) {
	t.Parallel()

	r := New(Config{Fallback: &recordingFallback{result: []any{}}})

	// The unknown element type is discovered after the first chunk was
	// discarded.
	input := `[` + strings.Repeat(" ", 40) + `{}]`
	_, err := r.IterateOver(TypeFor[animal](), strings.NewReader(input), make([]byte, 16))
	assert.ErrorContains(t, err, "can not be replayed")
}
