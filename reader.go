// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jconv

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// minChunkSize is the smallest buffer a stream reader will work with.  Smaller
// buffers are replaced.
const minChunkSize = 16

const maxEmptyReads = 100

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16BEBOM = []byte{0xFE, 0xFF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf32BEBOM = []byte{0x00, 0x00, 0xFE, 0xFF}
	utf32LEBOM = []byte{0xFF, 0xFE, 0x00, 0x00}
)

// Reader is a byte-level JSON tokenizer over an in-memory buffer or over a
// stream read through a fixed chunk buffer.  Converters call NextToken to
// advance and then one of the typed read methods for the value at the
// current token.
//
// A stream reader keeps the bytes of the token being decoded in its buffer
// and compacts the buffer when it needs more input, so a single number can
// not be longer than the chunk buffer.  Strings may span any number of
// chunks.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	buf        []byte
	length     int
	pos        int
	tokenStart int
	start      int
	last       byte
	err        error

	src     io.Reader
	srcErr  error
	shifted int64

	keys     *KeyCache
	scratch  []byte
	depth    int
	maxDepth int
}

// NewReader returns a reader over the first size bytes of body.  A leading
// UTF-8 byte-order-mark is skipped.
func NewReader(body []byte, size int) *Reader {
	r := &Reader{maxDepth: defaultMaxDepth}
	r.Reset(body, size)
	return r
}

// NewStreamReader returns a reader that consumes src in chunks through buf.
// The full capacity of buf is used; if it is smaller than 16 bytes a new
// buffer is allocated.  A UTF-8 byte-order-mark is stripped and other BOMs
// are errors.  Any read error other than io.EOF will be returned.
func NewStreamReader(src io.Reader, buf []byte) (*Reader, error) {
	r := &Reader{maxDepth: defaultMaxDepth}
	if err := r.ResetStream(src, buf); err != nil {
		return nil, err
	}
	return r, nil
}

// Reset points the reader at the first size bytes of body.  Sizes outside
// the buffer are clamped.
func (r *Reader) Reset(body []byte, size int) {
	if size < 0 || size > len(body) {
		size = len(body)
	}
	r.reset(body, size, nil)
	r.err = r.handleBOM()
}

// ResetStream points the reader at a new stream, reusing buf as the chunk
// buffer.
func (r *Reader) ResetStream(src io.Reader, buf []byte) error {
	if cap(buf) < minChunkSize {
		buf = make([]byte, 4096)
	}
	r.reset(buf[:cap(buf)], 0, src)
	r.fill(len(utf32BEBOM))
	if r.srcErr != nil && r.srcErr != io.EOF {
		return newReadError(r.srcErr)
	}
	r.err = r.handleBOM()
	return r.err
}

func (r *Reader) reset(buf []byte, length int, src io.Reader) {
	r.buf = buf
	r.length = length
	r.pos = 0
	r.tokenStart = 0
	r.start = 0
	r.last = 0
	r.err = nil
	r.src = src
	r.srcErr = nil
	r.shifted = 0
	r.depth = 0
}

// MaxDepth sets the maximum allowed nesting of untyped values.  The default
// is 200.
func (r *Reader) MaxDepth(n int) {
	if n <= 0 {
		n = defaultMaxDepth
	}
	r.maxDepth = n
}

// Last returns the byte of the current token.
func (r *Reader) Last() byte { return r.last }

// Offset returns the absolute input offset of the next unread byte.
func (r *Reader) Offset() int64 { return r.shifted + int64(r.pos) }

// handleBOM detects, discards or rejects a byte-order-mark at the start of
// input.  Inability to see enough bytes is a NOP and will be handled by the
// normal parser.
func (r *Reader) handleBOM() error {
	preamble := r.buf[r.pos:r.length]
	switch {
	case bytes.HasPrefix(preamble, utf32BEBOM) || bytes.HasPrefix(preamble, utf32LEBOM):
		return r.bomError("UTF-32")
	case bytes.HasPrefix(preamble, utf16BEBOM) || bytes.HasPrefix(preamble, utf16LEBOM):
		return r.bomError("UTF-16")
	case bytes.HasPrefix(preamble, utf8BOM):
		r.pos += len(utf8BOM)
		r.start = r.pos
		r.tokenStart = r.pos
	}
	return nil
}

func (r *Reader) bomError(encoding string) error {
	return &ParseError{
		Kind: KindEncoding,
		msg:  fmt.Sprintf("error: detected unsupported %s BOM", encoding),
	}
}

// fill makes sure at least need bytes are available from pos, reading from
// the stream if there is one.  Bytes before tokenStart are discarded to
// make room.  It reports whether need bytes are available.
func (r *Reader) fill(need int) bool {
	if r.length-r.pos >= need {
		return true
	}
	if r.src == nil || r.srcErr != nil {
		return false
	}

	if keep := r.tokenStart; keep > 0 {
		n := copy(r.buf, r.buf[keep:r.length])
		r.length = n
		r.pos -= keep
		r.tokenStart = 0
		r.start -= keep
		r.shifted += int64(keep)
	}

	empty := 0
	for r.length-r.pos < need && r.length < len(r.buf) {
		n, err := r.src.Read(r.buf[r.length:])
		r.length += n
		if err != nil {
			r.srcErr = err
			break
		}
		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				r.srcErr = io.ErrNoProgress
				break
			}
		}
	}

	return r.length-r.pos >= need
}

// NextToken skips white space and returns the next significant byte, which
// also becomes the current token.  Reaching the end of input is an
// unexpected EOF error.
func (r *Reader) NextToken() (byte, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.tokenStart = r.pos
	for {
		if r.pos >= r.length {
			r.tokenStart = r.pos
			if !r.fill(1) {
				return 0, r.eofError()
			}
		}
		ch := r.buf[r.pos]
		r.pos++
		switch ch {
		case ' ', '\t', '\n', '\r':
			continue
		}
		r.tokenStart = r.pos - 1
		r.last = ch
		return ch, nil
	}
}

// atTokenStart reports whether nothing past the current token byte has
// been consumed.
func (r *Reader) atTokenStart() bool {
	return r.pos == r.tokenStart+1
}

func (r *Reader) matchLiteral(rest string) bool {
	if !r.atTokenStart() || !r.fill(len(rest)) {
		return false
	}
	if string(r.buf[r.pos:r.pos+len(rest)]) != rest {
		return false
	}
	r.pos += len(rest)
	return true
}

// WasNull checks whether the current token is the literal null and consumes
// it if so.
func (r *Reader) WasNull() bool { return r.last == 'n' && r.matchLiteral("ull") }

// WasTrue checks whether the current token is the literal true and consumes
// it if so.
func (r *Reader) WasTrue() bool { return r.last == 't' && r.matchLiteral("rue") }

// WasFalse checks whether the current token is the literal false and
// consumes it if so.
func (r *Reader) WasFalse() bool { return r.last == 'f' && r.matchLiteral("alse") }

// ReadBool reads the literal true or false at the current token.
func (r *Reader) ReadBool() (bool, error) {
	switch {
	case r.WasTrue():
		return true, nil
	case r.WasFalse():
		return false, nil
	}
	switch r.last {
	case 't':
		return false, r.literalError("true")
	case 'f':
		return false, r.literalError("false")
	}
	return false, r.Expecting("true or false")
}

// literalError explains why a literal starting at the current token did not
// match.  Input that ends partway through the literal is an EOF error.
func (r *Reader) literalError(lit string) error {
	if r.atTokenStart() && !r.fill(len(lit)-1) && strings.HasPrefix(lit[1:], string(r.buf[r.pos:r.length])) {
		return r.eofError()
	}
	return r.Expecting(lit)
}

func (r *Reader) parseError(kind ErrorKind, ch byte, msg string) error {
	return r.parseErrorAt(kind, r.Offset(), ch, msg)
}

func (r *Reader) parseErrorAt(kind ErrorKind, offset int64, ch byte, msg string) *ParseError {
	after := string(r.buf[r.pos:min(r.pos+20, r.length)])
	return &ParseError{
		Kind:    kind,
		Offset:  offset,
		Found:   ch,
		Excerpt: after,
		msg:     fmt.Sprintf("parse error: %s on char '%s' at offset %d, followed by '%s...'", msg, string(ch), offset, after),
	}
}

// Expecting returns an error reporting that what was expected at the
// current token.
func (r *Reader) Expecting(what string) error {
	pe := r.parseErrorAt(KindExpecting, r.shifted+int64(r.tokenStart), r.last, "expecting "+what)
	pe.Expected = what
	return pe
}

// ExpectingFound is like Expecting but names the byte that was found
// instead of the current token.
func (r *Reader) ExpectingFound(what string, found byte) error {
	pe := r.parseErrorAt(KindExpecting, r.Offset(), found, "expecting "+what)
	pe.Expected = what
	return pe
}

// eofError reports the end of input inside a value.  Stream read failures
// are reported as such.
func (r *Reader) eofError() error {
	if r.srcErr != nil && r.srcErr != io.EOF {
		return newReadError(r.srcErr)
	}
	off := r.Offset()
	return &ParseError{
		Kind:   KindUnexpectedEOF,
		Offset: off,
		Err:    io.ErrUnexpectedEOF,
		msg:    fmt.Sprintf("parse error: unexpected EOF at offset %d", off),
	}
}

// checkTrailing verifies that only white space follows the value just read.
func (r *Reader) checkTrailing() error {
	for {
		if r.pos >= r.length {
			r.tokenStart = r.pos
			if !r.fill(1) {
				if r.srcErr != nil && r.srcErr != io.EOF {
					return newReadError(r.srcErr)
				}
				return nil
			}
		}
		switch ch := r.buf[r.pos]; ch {
		case ' ', '\t', '\n', '\r':
			r.pos++
		default:
			return r.parseError(KindTrailing, ch, "unexpected data after top-level value")
		}
	}
}

func (r *Reader) enter() error {
	r.depth++
	if r.depth > r.maxDepth {
		return r.parseErrorAt(KindDepth, r.shifted+int64(r.tokenStart), r.last, fmt.Sprintf("exceeded max depth of %d", r.maxDepth))
	}
	return nil
}

func (r *Reader) leave() { r.depth-- }

var errNotReplayable = errors.New("jconv: stream was consumed past its first chunk and can not be replayed")

// streamFromStart returns a stream that yields the input from its first
// byte, after any byte-order-mark.  For stream readers this only works
// while nothing has been discarded from the chunk buffer.
func (r *Reader) streamFromStart() (io.Reader, error) {
	if r.shifted > 0 || r.start < 0 {
		return nil, errNotReplayable
	}
	head := bytes.NewReader(r.buf[r.start:r.length])
	if r.src == nil {
		return head, nil
	}
	if r.srcErr != nil && r.srcErr != io.EOF {
		return nil, newReadError(r.srcErr)
	}
	return io.MultiReader(head, r.src), nil
}

// ReadNullableCollection reads array elements with read until the closing
// bracket.  The reader must be positioned on the first element token, after
// '[' has been consumed and the array is known not to be empty.  Null
// elements become nil without calling read.
func (r *Reader) ReadNullableCollection(read ReadFunc) ([]any, error) {
	var list []any
	for {
		if r.WasNull() {
			list = append(list, nil)
		} else {
			v, err := read(r)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}

		ch, err := r.NextToken()
		if err != nil {
			return nil, err
		}
		switch ch {
		case ',':
			if _, err := r.NextToken(); err != nil {
				return nil, err
			}
		case ']':
			return list, nil
		default:
			return nil, r.Expecting("value-separator or end of array")
		}
	}
}

// Skip consumes the value at the current token.
func (r *Reader) Skip() error {
	switch r.last {
	case '"':
		_, err := r.readStringBytes()
		return err
	case 't', 'f':
		_, err := r.ReadBool()
		return err
	case 'n':
		if r.WasNull() {
			return nil
		}
		return r.literalError("null")
	case '{':
		return r.skipContainer('}', true)
	case '[':
		return r.skipContainer(']', false)
	}
	span, err := r.numberSpan()
	if err != nil {
		return err
	}
	if _, ok := scanNumber(span); !ok {
		return r.parseErrorAt(KindNumber, r.shifted+int64(r.tokenStart), span[0], "malformed number")
	}
	return nil
}

func (r *Reader) skipContainer(end byte, object bool) error {
	if err := r.enter(); err != nil {
		return err
	}
	defer r.leave()

	ch, err := r.NextToken()
	if err != nil {
		return err
	}
	if ch == end {
		return nil
	}
	for {
		if object {
			if r.last != '"' {
				return r.Expecting("key")
			}
			if _, err := r.readKey(nil); err != nil {
				return err
			}
		}
		if err := r.Skip(); err != nil {
			return err
		}
		ch, err := r.NextToken()
		if err != nil {
			return err
		}
		switch ch {
		case ',':
			if _, err := r.NextToken(); err != nil {
				return err
			}
		case end:
			return nil
		default:
			if object {
				return r.Expecting("value-separator or end of object")
			}
			return r.Expecting("value-separator or end of array")
		}
	}
}

// Invalid reports that the value at the current token was well formed JSON
// but could not be converted to what.
func (r *Reader) Invalid(what string, err error) error {
	pe := r.parseErrorAt(KindExpecting, r.shifted+int64(r.tokenStart), r.last, fmt.Sprintf("invalid %s: %v", what, err))
	pe.Expected = what
	pe.Err = err
	return pe
}
