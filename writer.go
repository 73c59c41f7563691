package jconv

import (
	"encoding/base64"
	"io"
)

// JSON structural bytes.
const (
	ObjectStart   byte = '{'
	ObjectEnd     byte = '}'
	ArrayStart    byte = '['
	ArrayEnd      byte = ']'
	Comma         byte = ','
	NameSeparator byte = ':'
	Quote         byte = '"'
)

const defaultWriterSize = 512

// Writer is a growable output buffer for JSON.  Writes to the buffer itself
// can not fail; only the conversion of values that have no JSON form
// returns errors.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return NewWriterSize(defaultWriterSize)
}

// NewWriterSize returns an empty writer with room for n bytes.
func NewWriterSize(n int) *Writer {
	return &Writer{buf: make([]byte, 0, n)}
}

// WriteByte appends c.  It implements io.ByteWriter and never fails.
func (w *Writer) WriteByte(c byte) error {
	w.buf = append(w.buf, c)
	return nil
}

// WriteASCII appends s without escaping.  The caller guarantees s needs no
// escaping.
func (w *Writer) WriteASCII(s string) {
	w.buf = append(w.buf, s...)
}

// WriteRaw appends already encoded JSON.
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Write implements io.Writer so codecs that stream into an io.Writer can
// target the buffer.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// WriteNull writes the literal null.
func (w *Writer) WriteNull() {
	w.buf = append(w.buf, "null"...)
}

// WriteBool writes true or false.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, "true"...)
		return
	}
	w.buf = append(w.buf, "false"...)
}

// WriteBase64 writes b as a quoted standard base64 string.
func (w *Writer) WriteBase64(b []byte) {
	w.buf = append(w.buf, Quote)
	w.buf = base64.StdEncoding.AppendEncode(w.buf, b)
	w.buf = append(w.buf, Quote)
}

// Reset empties the buffer, keeping its storage.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Bytes returns the buffered output.  The slice is only valid until the next
// write or Reset.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of buffered bytes.
func (w *Writer) Len() int { return len(w.buf) }

// String returns a copy of the buffered output.
func (w *Writer) String() string { return string(w.buf) }

// WriteTo writes the buffered output to dst.  The buffer is unchanged.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	n, err := dst.Write(w.buf)
	return int64(n), err
}

// Flush writes the buffered output to dst and resets the buffer.
func (w *Writer) Flush(dst io.Writer) error {
	if len(w.buf) == 0 {
		return nil
	}
	_, err := dst.Write(w.buf)
	w.Reset()
	return err
}

func (w *Writer) truncate(n int) { w.buf = w.buf[:n] }
