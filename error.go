package jconv

import (
	"errors"
	"fmt"
	"io"
)

// ErrorKind categorizes errors reported by readers, writers and the
// registry.
type ErrorKind string

const (
	KindExpecting     ErrorKind = "expecting"      // wrong token
	KindUnexpectedEOF ErrorKind = "unexpected_eof" // input ended inside a value
	KindNumber        ErrorKind = "number"         // malformed or out of range number
	KindEscape        ErrorKind = "escape"         // malformed string escape
	KindEncoding      ErrorKind = "encoding"       // invalid UTF-8, unsupported BOM, control characters
	KindTrailing      ErrorKind = "trailing"       // input left over after a value
	KindDepth         ErrorKind = "depth"          // nesting limit exceeded
	KindNotFound      ErrorKind = "not_found"      // no converter resolved
	KindDisabled      ErrorKind = "disabled"       // converter registered as nil
	KindConstruction  ErrorKind = "construction"   // default construction failed
)

var (
	// ErrNotFound is matched by resolution errors for types without a
	// converter.
	ErrNotFound = errors.New("converter not found")
	// ErrDisabled is matched by resolution errors for types whose converter
	// was registered as nil.
	ErrDisabled = errors.New("converter disabled")
	// ErrNotConstructible may be returned by a Constructor to signal that a
	// type has no default value.  Deserialization of "{}" then proceeds with
	// normal parsing.
	ErrNotConstructible = errors.New("type is not default constructible")
	// ErrUnsupportedValue is matched by errors for values that have no JSON
	// representation, such as NaN.
	ErrUnsupportedValue = errors.New("unsupported value")
)

// ParseError records JSON parsing errors.  It can include a small excerpt
// of text from the reader at the point of error.
type ParseError struct {
	Kind     ErrorKind
	Offset   int64
	Expected string
	Found    byte
	Excerpt  string
	Err      error
	msg      string
}

func (pe *ParseError) Error() string { return pe.msg }

func (pe *ParseError) Unwrap() error { return pe.Err }

// ResolveError reports that no converter could be resolved for a type.  When
// a converter is registered for a related type, Related names it.
type ResolveError struct {
	Kind    ErrorKind
	Op      string
	Type    Type
	Related Type
}

func (e *ResolveError) Error() string {
	switch {
	case e.Kind == KindDisabled:
		return fmt.Sprintf("%s for %s is disabled and fallback is not configured (converter is registered as nil); "+
			"configure a fallback or don't register nil for %s", e.Op, e.Type, e.Type)
	case e.Related.Valid():
		return fmt.Sprintf("unable to find %s for %s and fallback is not configured; found %s for %s, "+
			"so try using that type instead, configure a fallback or register %s explicitly", e.Op, e.Type, e.Op, e.Related, e.Type)
	}
	return fmt.Sprintf("unable to find %s for %s and fallback is not configured; "+
		"configure a fallback for unsupported types or register %s explicitly", e.Op, e.Type, e.Type)
}

func (e *ResolveError) Unwrap() error {
	if e.Kind == KindDisabled {
		return ErrDisabled
	}
	return ErrNotFound
}

// ConstructionError reports a failed default construction of a type that
// received an empty object.
type ConstructionError struct {
	Type Type
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("unable to construct %s from empty object: %v", e.Type, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// newReadError is used when we expect to be able to read and fail.  If the
// error is EOF, we convert it to UnexpectedEOF because we aren't between
// top-level values.
func newReadError(err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("error reading json: %w", err)
}
