// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jconv

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

var (
	errMalformedNumber = errors.New("malformed number")
	errNotInteger      = errors.New("expecting integer")
	errOutOfRange      = errors.New("value out of range")
)

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isNumberByte(ch byte) bool {
	switch ch {
	case '-', '+', '.', 'e', 'E':
		return true
	}
	return isDigit(ch)
}

// numberSpan consumes the bytes of the number at the current token and
// returns them.  The span aliases the reader buffer.  On a stream the whole
// number must fit in the chunk buffer.
func (r *Reader) numberSpan() ([]byte, error) {
	if !r.atTokenStart() || (r.last != '-' && !isDigit(r.last)) {
		return nil, r.Expecting("number")
	}
	i := r.pos
	for {
		for i < r.length && isNumberByte(r.buf[i]) {
			i++
		}
		if i < r.length || r.src == nil {
			break
		}
		off := i - r.pos
		if !r.fill(off + 1) {
			if r.srcErr == nil {
				return nil, r.parseError(KindNumber, r.last, "number too long")
			}
			if r.srcErr != io.EOF {
				return nil, newReadError(r.srcErr)
			}
			i = r.pos + off
			break
		}
		i = r.pos + off
	}
	span := r.buf[r.tokenStart:i]
	r.pos = i
	return span, nil
}

func (r *Reader) numberError(span []byte, err error) error {
	return r.parseErrorAt(KindNumber, r.shifted+int64(r.tokenStart), span[0], fmt.Sprintf("%v %q", err, span))
}

// scanNumber validates b against the JSON number grammar and reports
// whether it has a fraction or an exponent.
func scanNumber(b []byte) (isFloat bool, ok bool) {
	i := 0
	if i < len(b) && b[i] == '-' {
		i++
	}
	if i >= len(b) {
		return false, false
	}
	switch {
	case b[i] == '0':
		i++
	case b[i] >= '1' && b[i] <= '9':
		for i < len(b) && isDigit(b[i]) {
			i++
		}
	default:
		return false, false
	}
	if i < len(b) && b[i] == '.' {
		isFloat = true
		i++
		d := i
		for i < len(b) && isDigit(b[i]) {
			i++
		}
		if i == d {
			return false, false
		}
	}
	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		isFloat = true
		i++
		if i < len(b) && (b[i] == '+' || b[i] == '-') {
			i++
		}
		d := i
		for i < len(b) && isDigit(b[i]) {
			i++
		}
		if i == d {
			return false, false
		}
	}
	return isFloat, i == len(b)
}

func parseMagnitude(digits []byte) (uint64, bool) {
	var n uint64
	for _, c := range digits {
		d := uint64(c - '0')
		if n > (math.MaxUint64-d)/10 {
			return 0, false
		}
		n = n*10 + d
	}
	return n, true
}

func parseInt64(b []byte) (int64, error) {
	isFloat, ok := scanNumber(b)
	switch {
	case !ok:
		return 0, errMalformedNumber
	case isFloat:
		return 0, errNotInteger
	}
	neg := b[0] == '-'
	if neg {
		b = b[1:]
	}
	n, ok := parseMagnitude(b)
	if !ok {
		return 0, errOutOfRange
	}
	if neg {
		if n > 1<<63 {
			return 0, errOutOfRange
		}
		return int64(-n), nil
	}
	if n > math.MaxInt64 {
		return 0, errOutOfRange
	}
	return int64(n), nil
}

func parseUint64(b []byte) (uint64, error) {
	isFloat, ok := scanNumber(b)
	switch {
	case !ok:
		return 0, errMalformedNumber
	case isFloat:
		return 0, errNotInteger
	}
	if b[0] == '-' {
		if string(b) == "-0" {
			return 0, nil
		}
		return 0, errOutOfRange
	}
	n, ok := parseMagnitude(b)
	if !ok {
		return 0, errOutOfRange
	}
	return n, nil
}

var float64pow10 = [...]float64{
	1e0, 1e1, 1e2, 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9,
	1e10, 1e11, 1e12, 1e13, 1e14, 1e15, 1e16, 1e17, 1e18, 1e19,
	1e20, 1e21, 1e22,
}

// fastFloat64 handles numbers with at most 15 significant digits and a small
// exponent, where one correctly rounded multiplication or division by an
// exact power of ten gives the correctly rounded result.
func fastFloat64(b []byte) (float64, bool) {
	i := 0
	neg := false
	if b[0] == '-' {
		neg = true
		i++
	}
	var mant uint64
	nd, exp := 0, 0
	for ; i < len(b) && isDigit(b[i]); i++ {
		mant = mant*10 + uint64(b[i]-'0')
		nd++
		if nd > 15 {
			return 0, false
		}
	}
	if i < len(b) && b[i] == '.' {
		for i++; i < len(b) && isDigit(b[i]); i++ {
			mant = mant*10 + uint64(b[i]-'0')
			nd++
			exp--
			if nd > 15 {
				return 0, false
			}
		}
	}
	if i < len(b) {
		i++
		sign := 1
		switch b[i] {
		case '+':
			i++
		case '-':
			sign = -1
			i++
		}
		e := 0
		for ; i < len(b); i++ {
			e = e*10 + int(b[i]-'0')
			if e > 400 {
				return 0, false
			}
		}
		exp += sign * e
	}

	f := float64(mant)
	switch {
	case exp == 0:
	case exp > 0 && exp < len(float64pow10):
		f *= float64pow10[exp]
	case exp < 0 && -exp < len(float64pow10):
		f /= float64pow10[-exp]
	default:
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

func parseFloat(b []byte, bits int) (float64, error) {
	if _, ok := scanNumber(b); !ok {
		return 0, errMalformedNumber
	}
	if bits == 64 {
		if f, ok := fastFloat64(b); ok {
			return f, nil
		}
	}
	f, err := strconv.ParseFloat(string(b), bits)
	if err != nil {
		return 0, errOutOfRange
	}
	return f, nil
}

// ReadInt64 reads an integer at the current token.  Fractions, exponents
// and values outside the range of int64 are errors.
func (r *Reader) ReadInt64() (int64, error) {
	span, err := r.numberSpan()
	if err != nil {
		return 0, err
	}
	n, err := parseInt64(span)
	if err != nil {
		return 0, r.numberError(span, err)
	}
	return n, nil
}

func (r *Reader) readIntRange(lo, hi int64) (int64, error) {
	span, err := r.numberSpan()
	if err != nil {
		return 0, err
	}
	n, err := parseInt64(span)
	if err == nil && (n < lo || n > hi) {
		err = errOutOfRange
	}
	if err != nil {
		return 0, r.numberError(span, err)
	}
	return n, nil
}

// ReadInt reads an int at the current token.
func (r *Reader) ReadInt() (int, error) {
	n, err := r.readIntRange(math.MinInt, math.MaxInt)
	return int(n), err
}

// ReadInt32 reads an int32 at the current token.
func (r *Reader) ReadInt32() (int32, error) {
	n, err := r.readIntRange(math.MinInt32, math.MaxInt32)
	return int32(n), err
}

// ReadInt16 reads an int16 at the current token.
func (r *Reader) ReadInt16() (int16, error) {
	n, err := r.readIntRange(math.MinInt16, math.MaxInt16)
	return int16(n), err
}

// ReadInt8 reads an int8 at the current token.
func (r *Reader) ReadInt8() (int8, error) {
	n, err := r.readIntRange(math.MinInt8, math.MaxInt8)
	return int8(n), err
}

// ReadUint64 reads an unsigned integer at the current token.
func (r *Reader) ReadUint64() (uint64, error) {
	return r.readUintRange(math.MaxUint64)
}

func (r *Reader) readUintRange(hi uint64) (uint64, error) {
	span, err := r.numberSpan()
	if err != nil {
		return 0, err
	}
	n, err := parseUint64(span)
	if err == nil && n > hi {
		err = errOutOfRange
	}
	if err != nil {
		return 0, r.numberError(span, err)
	}
	return n, nil
}

// ReadUint reads a uint at the current token.
func (r *Reader) ReadUint() (uint, error) {
	n, err := r.readUintRange(math.MaxUint)
	return uint(n), err
}

// ReadUint32 reads a uint32 at the current token.
func (r *Reader) ReadUint32() (uint32, error) {
	n, err := r.readUintRange(math.MaxUint32)
	return uint32(n), err
}

// ReadUint16 reads a uint16 at the current token.
func (r *Reader) ReadUint16() (uint16, error) {
	n, err := r.readUintRange(math.MaxUint16)
	return uint16(n), err
}

// ReadUint8 reads a uint8 at the current token.
func (r *Reader) ReadUint8() (uint8, error) {
	n, err := r.readUintRange(math.MaxUint8)
	return uint8(n), err
}

// ReadFloat64 reads any JSON number at the current token as a float64.
// Magnitudes too large for float64 are errors.
func (r *Reader) ReadFloat64() (float64, error) {
	span, err := r.numberSpan()
	if err != nil {
		return 0, err
	}
	f, err := parseFloat(span, 64)
	if err != nil {
		return 0, r.numberError(span, err)
	}
	return f, nil
}

// ReadFloat32 reads any JSON number at the current token as a float32.
func (r *Reader) ReadFloat32() (float32, error) {
	span, err := r.numberSpan()
	if err != nil {
		return 0, err
	}
	f, err := parseFloat(span, 32)
	if err != nil {
		return 0, r.numberError(span, err)
	}
	return float32(f), nil
}

// ReadDecimal reads the number at the current token exactly.
func (r *Reader) ReadDecimal() (Decimal, error) {
	span, err := r.numberSpan()
	if err != nil {
		return Decimal{}, err
	}
	d, err := parseDecimal(span)
	if err != nil {
		return Decimal{}, r.numberError(span, err)
	}
	return d, nil
}

// ReadNumber reads the number at the current token as an int64 when it is
// an integer that fits, a Decimal when it is an integer that does not, and
// a float64 otherwise.
func (r *Reader) ReadNumber() (any, error) {
	span, err := r.numberSpan()
	if err != nil {
		return nil, err
	}
	isFloat, ok := scanNumber(span)
	if !ok {
		return nil, r.numberError(span, errMalformedNumber)
	}
	if !isFloat {
		if n, err := parseInt64(span); err == nil {
			return n, nil
		}
		d, err := parseDecimal(span)
		if err != nil {
			return nil, r.numberError(span, err)
		}
		return d, nil
	}
	f, err := parseFloat(span, 64)
	if err != nil {
		return nil, r.numberError(span, err)
	}
	return f, nil
}

// WriteInt64 writes n in decimal.
func (w *Writer) WriteInt64(n int64) {
	w.buf = strconv.AppendInt(w.buf, n, 10)
}

// WriteUint64 writes n in decimal.
func (w *Writer) WriteUint64(n uint64) {
	w.buf = strconv.AppendUint(w.buf, n, 10)
}

// WriteFloat64 writes f in the shortest form that reads back to the same
// value.  NaN and infinities have no JSON form and are errors.
func (w *Writer) WriteFloat64(f float64) error {
	return w.writeFloat(f, 64)
}

// WriteFloat32 writes f in the shortest form that reads back to the same
// float32.
func (w *Writer) WriteFloat32(f float32) error {
	return w.writeFloat(float64(f), 32)
}

func (w *Writer) writeFloat(f float64, bits int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("jconv: %w: %v", ErrUnsupportedValue, f)
	}
	w.buf = appendFloat(w.buf, f, bits)
	return nil
}

// appendFloat uses plain notation for magnitudes in [1e-6, 1e21) and
// exponent notation otherwise, matching ECMAScript number formatting.
func appendFloat(b []byte, f float64, bits int) []byte {
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 {
		if bits == 64 && (abs < 1e-6 || abs >= 1e21) || bits == 32 && (float32(abs) < 1e-6 || float32(abs) >= 1e21) {
			format = 'e'
		}
	}
	b = strconv.AppendFloat(b, f, format, -1, bits)
	if format == 'e' {
		// clean up e-09 to e-9
		n := len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	return b
}
