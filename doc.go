// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package jconv is a byte-oriented JSON codec built around a registry of
// converters.  A Registry maps type descriptors to reader and writer
// functions; serialization and deserialization look converters up by type,
// walk declared type hierarchies for writers, and hand anything unresolved
// to an optional Fallback.
//
// # Reading
//
// A Reader tokenizes JSON from an in-memory buffer or from an io.Reader
// refilled in chunks through a caller-supplied buffer.  Converters are
// called positioned on the first byte of their value and leave the reader
// on its last byte.  Errors are *ParseError values carrying the offset and
// a small excerpt of the input.
//
// # Writing
//
// A Writer appends JSON to a growable buffer.  Writers are pooled per
// registry (AcquireWriter, ReleaseWriter) and can be flushed to any
// io.Writer.
//
// # Types
//
// Type descriptors are interned: classes wrap Go types, collections are
// heterogeneous []any values with a declared element type, and arrays are
// slices of a component type.
//
// # BSON
//
// The registry includes converters for MongoDB types.  bson.Raw is read by
// transcoding JSON objects directly into BSON bytes, without an intermediate
// representation, and written by walking the document's elements.
//
// # Testing
//
// BSON output is compared against reference output from the MongoDB Go
// driver.  Numbers and strings are round-tripped with property-based tests
// and parsing is fuzzed against encoding/json's validator.
package jconv
