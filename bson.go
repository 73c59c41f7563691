// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jconv

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BSON type bytes.
const (
	bsonDouble     byte = 0x01
	bsonString     byte = 0x02
	bsonDocument   byte = 0x03
	bsonArray      byte = 0x04
	bsonBoolean    byte = 0x08
	bsonNull       byte = 0x0A
	bsonInt32      byte = 0x10
	bsonInt64      byte = 0x12
	emptyType      byte = 0x00
	nullByte       byte = 0x00
	topContainer        = -1
	arrayKeyCached      = 1000
)

var emptyLength = []byte{0, 0, 0, 0}

// arrayKey holds precomputed BSON array keys.
var arrayKey = func() [][]byte {
	keys := make([][]byte, arrayKeyCached)
	for i := range keys {
		keys[i] = []byte(strconv.Itoa(i))
	}
	return keys
}()

func registerBSON(r *Registry) {
	RegisterReaderFunc(r, readBSON)
	RegisterWriterFunc(r, writeBSON)

	RegisterReaderFunc(r, readDecimal128)
	RegisterWriterFunc(r, writeDecimal128)
	RegisterReaderFunc(r, readObjectID)
	RegisterWriterFunc(r, func(w *Writer, id primitive.ObjectID) error {
		w.WriteASCII(`"` + id.Hex() + `"`)
		return nil
	})
	RegisterReaderFunc(r, func(rd *Reader) (primitive.DateTime, error) {
		ms, err := rd.ReadInt64()
		return primitive.DateTime(ms), err
	})
	RegisterWriterFunc(r, func(w *Writer, dt primitive.DateTime) error {
		w.WriteInt64(int64(dt))
		return nil
	})
}

// readBSON transcodes the JSON object at the current token directly into a
// BSON document.  Integers that fit in 32 bits become int32, other integers
// int64 and all other numbers doubles.
func readBSON(rd *Reader) (bson.Raw, error) {
	if rd.Last() != ObjectStart {
		return nil, rd.parseError(KindExpecting, rd.Last(), "BSON conversion only supports object decoding")
	}
	out, err := rd.convertObject(make([]byte, 0, 256), topContainer)
	if err != nil {
		return nil, err
	}
	return bson.Raw(out), nil
}

func (r *Reader) convertValue(out []byte, typeBytePos int) ([]byte, error) {
	switch r.Last() {
	case ObjectStart:
		return r.convertObject(out, typeBytePos)
	case ArrayStart:
		overwriteTypeByte(out, typeBytePos, bsonArray)
		return r.convertArray(out)
	case 't', 'f':
		overwriteTypeByte(out, typeBytePos, bsonBoolean)
		b, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		if b {
			return append(out, 1), nil
		}
		return append(out, 0), nil
	case 'n':
		overwriteTypeByte(out, typeBytePos, bsonNull)
		if !r.WasNull() {
			return nil, r.literalError("null")
		}
		return out, nil
	case Quote:
		overwriteTypeByte(out, typeBytePos, bsonString)
		return r.convertString(out)
	}
	// Either a number or an error.  The type byte depends on the number.
	return r.convertNumber(out, typeBytePos)
}

func (r *Reader) convertObject(out []byte, typeBytePos int) ([]byte, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer r.leave()

	overwriteTypeByte(out, typeBytePos, bsonDocument)

	// Note position of placeholder for length that we write
	lengthPos := len(out)
	out = append(out, emptyLength...)

	ch, err := r.NextToken()
	if err != nil {
		return nil, err
	}
	if ch == ObjectEnd {
		out = append(out, nullByte)
		overwriteLength(out, lengthPos, len(out)-lengthPos)
		return out, nil
	}
	if ch != Quote {
		return nil, r.Expecting("key or end of object")
	}

LOOP:
	for {
		// Record position for the placeholder type byte that we write
		elemTypePos := len(out)
		out = append(out, emptyType)

		out, err = r.convertCString(out)
		if err != nil {
			return nil, err
		}
		if ch, err = r.NextToken(); err != nil {
			return nil, err
		}
		if ch != NameSeparator {
			return nil, r.Expecting("':'")
		}
		if _, err = r.NextToken(); err != nil {
			return nil, err
		}

		out, err = r.convertValue(out, elemTypePos)
		if err != nil {
			return nil, err
		}

		if ch, err = r.NextToken(); err != nil {
			return nil, err
		}
		switch ch {
		case Comma:
			if ch, err = r.NextToken(); err != nil {
				return nil, err
			}
			if ch != Quote {
				return nil, r.Expecting("key")
			}
		case ObjectEnd:
			break LOOP
		default:
			return nil, r.Expecting("value-separator or end of object")
		}
	}

	// Write null terminator and calculate/update length
	out = append(out, nullByte)
	overwriteLength(out, lengthPos, len(out)-lengthPos)
	return out, nil
}

func (r *Reader) convertArray(out []byte) ([]byte, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer r.leave()

	lengthPos := len(out)
	out = append(out, emptyLength...)

	ch, err := r.NextToken()
	if err != nil {
		return nil, err
	}

	index := 0
	if ch != ArrayEnd {
	LOOP:
		for {
			elemTypePos := len(out)
			out = append(out, emptyType)
			if index < len(arrayKey) {
				out = append(out, arrayKey[index]...)
			} else {
				out = strconv.AppendInt(out, int64(index), 10)
			}
			out = append(out, nullByte)

			out, err = r.convertValue(out, elemTypePos)
			if err != nil {
				return nil, err
			}

			if ch, err = r.NextToken(); err != nil {
				return nil, err
			}
			switch ch {
			case Comma:
				if _, err = r.NextToken(); err != nil {
					return nil, err
				}
				index++
			case ArrayEnd:
				break LOOP
			default:
				return nil, r.Expecting("value-separator or end of array")
			}
		}
	}

	out = append(out, nullByte)
	overwriteLength(out, lengthPos, len(out)-lengthPos)
	return out, nil
}

func (r *Reader) convertNumber(out []byte, typeBytePos int) ([]byte, error) {
	span, err := r.numberSpan()
	if err != nil {
		return nil, err
	}
	isFloat, ok := scanNumber(span)
	if !ok {
		return nil, r.numberError(span, errMalformedNumber)
	}

	if isFloat {
		f, err := parseFloat(span, 64)
		if err != nil {
			return nil, r.numberError(span, err)
		}
		overwriteTypeByte(out, typeBytePos, bsonDouble)
		return binary.LittleEndian.AppendUint64(out, math.Float64bits(f)), nil
	}

	n, err := parseInt64(span)
	if err != nil {
		return nil, r.numberError(span, err)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		overwriteTypeByte(out, typeBytePos, bsonInt64)
		return binary.LittleEndian.AppendUint64(out, uint64(n)), nil
	}
	overwriteTypeByte(out, typeBytePos, bsonInt32)
	return binary.LittleEndian.AppendUint32(out, uint32(n)), nil
}

// convertCString writes the string at the current token as a BSON
// C-string.  Keys can not contain NUL bytes.
func (r *Reader) convertCString(out []byte) ([]byte, error) {
	b, err := r.readStringBytes()
	if err != nil {
		return nil, err
	}
	for _, c := range b {
		if c == 0 {
			return nil, r.parseError(KindEncoding, c, "NUL byte in BSON key")
		}
	}
	out = append(out, b...)
	return append(out, nullByte), nil
}

func (r *Reader) convertString(out []byte) ([]byte, error) {
	lengthPos := len(out)
	out = append(out, emptyLength...)
	b, err := r.readStringBytes()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)
	out = append(out, nullByte)
	overwriteLength(out, lengthPos, len(b)+1)
	return out, nil
}

func overwriteTypeByte(out []byte, pos int, bsonType byte) {
	// Top-level containers don't have a type byte preceding them
	if pos == topContainer {
		return
	}
	out[pos] = bsonType
}

func overwriteLength(out []byte, pos int, n int) {
	binary.LittleEndian.PutUint32(out[pos:pos+4], uint32(n))
}

// writeBSON writes a BSON document as JSON.  Types without a plain JSON
// form, such as regular expressions, are errors.
func writeBSON(w *Writer, doc bson.Raw) error {
	if doc == nil {
		w.WriteNull()
		return nil
	}
	return writeBSONContainer(w, doc, false)
}

func writeBSONContainer(w *Writer, doc bson.Raw, array bool) error {
	elems, err := doc.Elements()
	if err != nil {
		return err
	}
	open, end := ObjectStart, ObjectEnd
	if array {
		open, end = ArrayStart, ArrayEnd
	}
	w.WriteByte(open)
	for i, e := range elems {
		if i > 0 {
			w.WriteByte(Comma)
		}
		if !array {
			w.WriteString(e.Key())
			w.WriteByte(NameSeparator)
		}
		if err := writeBSONValue(w, e.Value()); err != nil {
			return err
		}
	}
	w.WriteByte(end)
	return nil
}

func writeBSONValue(w *Writer, v bson.RawValue) error {
	switch v.Type {
	case bsontype.Double:
		start := w.Len()
		if err := w.WriteFloat64(v.Double()); err != nil {
			return err
		}
		// Integral doubles keep a fraction so they read back as doubles.
		if !bytes.ContainsAny(w.Bytes()[start:], ".eE") {
			w.WriteASCII(".0")
		}
	case bsontype.String:
		w.WriteString(v.StringValue())
	case bsontype.EmbeddedDocument:
		return writeBSONContainer(w, v.Document(), false)
	case bsontype.Array:
		return writeBSONContainer(w, bson.Raw(v.Array()), true)
	case bsontype.Binary:
		_, data := v.Binary()
		w.WriteBase64(data)
	case bsontype.ObjectID:
		oid := v.ObjectID()
		w.WriteASCII(`"` + hex.EncodeToString(oid[:]) + `"`)
	case bsontype.Boolean:
		w.WriteBool(v.Boolean())
	case bsontype.DateTime:
		w.WriteInt64(v.DateTime())
	case bsontype.Null, bsontype.Undefined:
		w.WriteNull()
	case bsontype.Int32:
		w.WriteInt64(int64(v.Int32()))
	case bsontype.Int64:
		w.WriteInt64(v.Int64())
	case bsontype.Decimal128:
		return writeDecimal128(w, v.Decimal128())
	default:
		return fmt.Errorf("jconv: %w: BSON %s", ErrUnsupportedValue, v.Type)
	}
	return nil
}

func readDecimal128(rd *Reader) (primitive.Decimal128, error) {
	span, err := rd.numberSpan()
	if err != nil {
		return primitive.Decimal128{}, err
	}
	if _, ok := scanNumber(span); !ok {
		return primitive.Decimal128{}, rd.numberError(span, errMalformedNumber)
	}
	d, err := primitive.ParseDecimal128(string(span))
	if err != nil {
		return primitive.Decimal128{}, rd.numberError(span, errOutOfRange)
	}
	return d, nil
}

func writeDecimal128(w *Writer, d primitive.Decimal128) error {
	s := d.String()
	switch s {
	case "NaN", "Infinity", "-Infinity":
		return fmt.Errorf("jconv: %w: %s", ErrUnsupportedValue, s)
	}
	w.WriteASCII(s)
	return nil
}

func readObjectID(rd *Reader) (primitive.ObjectID, error) {
	s, err := rd.ReadString()
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, rd.Invalid("ObjectID", err)
	}
	return id, nil
}
