package jconv

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

type unmarshalTestCase struct {
	label  string
	input  string
	output string
	errStr string
}

// testWithUnmarshal decodes each input as bson.Raw and compares against the
// expected hex output or error substring.
func testWithUnmarshal(t *testing.T, cases []unmarshalTestCase) {
	t.Helper()

	reg := NewRegistry()
	for _, c := range cases {
		c := c
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()

			buf, err := Unmarshal[bson.Raw](reg, []byte(c.input))
			if c.errStr != "" {
				var got string
				if err != nil {
					got = err.Error()
				}
				if !strings.Contains(got, c.errStr) {
					t.Errorf("expected error with '%s', but got %v", c.errStr, got)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				} else {
					c.output = strings.ToLower(c.output)
					expect, err := hex.DecodeString(c.output)
					if err != nil {
						t.Fatalf("error decoding test output: %v", err)
					}
					if !bytes.Equal(expect, buf) {
						t.Fatalf("Unmarshal doesn't match expected:\nGot:    %v\nExpect: %v", hex.EncodeToString(buf), c.output)
					}
				}
			}
		})
	}
}

// convertWithStream decodes input as bson.Raw through a stream reader with
// a chunk buffer of the given size.
func convertWithStream(reg *Registry, input []byte, chunk int) ([]byte, error) {
	v, err := reg.DeserializeStream(TypeFor[bson.Raw](), bytes.NewReader(input), make([]byte, chunk))
	if err != nil || v == nil {
		return nil, err
	}
	return v.(bson.Raw), nil
}

func convertWithGoDriver(input []byte) ([]byte, error) {
	var got bson.Raw
	err := bson.UnmarshalExtJSON(input, false, &got)
	return got, err
}

// objectify wraps non-object input in a single-key document so it can be
// compared as BSON.
func objectify(input []byte) []byte {
	// Skip over BOM and leading spaces
	i := bomLength(input)
	for i < len(input) {
		if input[i] != ' ' {
			break
		}
		i++
	}
	if i == len(input) || input[i] != '{' {
		object := make([]byte, 0, len(input)+6)
		object = append(object, input[0:i]...)
		object = append(object, []byte(`{"a":`)...)
		object = append(object, input[i:]...)
		object = append(object, '}')
		return object
	}
	return input
}

func bomLength(input []byte) int {
	if len(input) >= 4 && (bytes.Equal(input[0:4], utf32BEBOM) || bytes.Equal(input[0:4], utf32LEBOM)) {
		return 4
	}
	if len(input) >= 3 && bytes.Equal(input[0:3], utf8BOM) {
		return 3
	}
	if len(input) >= 2 && (bytes.Equal(input[0:2], utf16BEBOM) || bytes.Equal(input[0:2], utf16LEBOM)) {
		return 2
	}
	return 0
}
