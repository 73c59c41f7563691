// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package jconv

import (
	"reflect"
	"sync"
)

// Kind classifies a type descriptor.
type Kind uint8

const (
	// Class is a concrete Go type (including interfaces and slices).  A
	// class whose Go type is a slice is an "array class".
	Class Kind = iota + 1
	// Collection is a single-argument generic container: a collection of
	// elements of the argument type.  Its Go representation is []any.
	Collection
	// GenericArray is an array whose component is not a class, such as an
	// array of collections.
	GenericArray
)

func (k Kind) String() string {
	switch k {
	case Class:
		return "class"
	case Collection:
		return "collection"
	case GenericArray:
		return "generic array"
	}
	return "invalid"
}

// Type identifies a target shape for conversion.  Descriptors are interned,
// so two descriptors of the same shape compare equal with == and can be used
// as map keys.  The zero Type is invalid.
type Type struct {
	d *descriptor
}

type descriptor struct {
	kind Kind
	rt   reflect.Type
	arg  Type
	name string
}

type descriptorKey struct {
	kind Kind
	rt   reflect.Type
	arg  *descriptor
}

var descriptors sync.Map // descriptorKey -> *descriptor

func intern(kind Kind, rt reflect.Type, arg Type) Type {
	key := descriptorKey{kind: kind, rt: rt, arg: arg.d}
	if d, ok := descriptors.Load(key); ok {
		return Type{d.(*descriptor)}
	}
	d := &descriptor{kind: kind, rt: rt, arg: arg}
	switch kind {
	case Class:
		d.name = rt.String()
	case Collection:
		d.name = "collection<" + arg.String() + ">"
	case GenericArray:
		d.name = arg.String() + "[]"
	}
	actual, _ := descriptors.LoadOrStore(key, d)
	return Type{actual.(*descriptor)}
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// TypeOf returns the class descriptor for a Go type.  It returns the zero
// Type for a nil reflect.Type.
func TypeOf(rt reflect.Type) Type {
	if rt == nil {
		return Type{}
	}
	return intern(Class, rt, Type{})
}

// TypeFor returns the class descriptor for T.  Interface types are allowed.
func TypeFor[T any]() Type {
	return TypeOf(reflect.TypeOf((*T)(nil)).Elem())
}

// CollectionOf returns the descriptor of a collection with elements of type
// elem.
func CollectionOf(elem Type) Type {
	if !elem.Valid() {
		return Type{}
	}
	return intern(Collection, anySliceType, elem)
}

// ArrayOf returns the descriptor of an array with the given component.  For
// a class component the result is the array class of the component's Go
// type, so ArrayOf(TypeFor[int]()) == TypeFor[[]int]().
func ArrayOf(component Type) Type {
	if !component.Valid() {
		return Type{}
	}
	if component.d.kind == Class {
		return TypeOf(reflect.SliceOf(component.d.rt))
	}
	return intern(GenericArray, nil, component)
}

// Valid reports whether t is a descriptor produced by this package.
func (t Type) Valid() bool { return t.d != nil }

// Kind returns the descriptor kind.
func (t Type) Kind() Kind {
	if t.d == nil {
		return 0
	}
	return t.d.kind
}

// IsClass reports whether t describes a concrete Go type.
func (t Type) IsClass() bool { return t.d != nil && t.d.kind == Class }

// IsInterface reports whether t is a class describing a Go interface type.
func (t Type) IsInterface() bool {
	return t.IsClass() && t.d.rt.Kind() == reflect.Interface
}

// IsArray reports whether t is an array class (a Go slice type) or a
// generic array.
func (t Type) IsArray() bool {
	if t.d == nil {
		return false
	}
	switch t.d.kind {
	case Class:
		return t.d.rt.Kind() == reflect.Slice
	case GenericArray:
		return true
	}
	return false
}

// Component returns the component descriptor of an array, or the element
// descriptor of a collection.  It returns the zero Type otherwise.
func (t Type) Component() Type {
	if t.d == nil {
		return Type{}
	}
	switch t.d.kind {
	case Class:
		if t.d.rt.Kind() == reflect.Slice {
			return TypeOf(t.d.rt.Elem())
		}
		return Type{}
	default:
		return t.d.arg
	}
}

// GoType returns the Go type of values described by t.  Collections are
// represented as []any and generic arrays as slices of their component's
// Go type.
func (t Type) GoType() reflect.Type {
	if t.d == nil {
		return nil
	}
	switch t.d.kind {
	case Class, Collection:
		return t.d.rt
	default:
		return reflect.SliceOf(t.d.arg.GoType())
	}
}

func (t Type) String() string {
	if t.d == nil {
		return "<invalid type>"
	}
	return t.d.name
}

var anySliceType = reflect.TypeOf([]any(nil))

var primitiveTypes = map[reflect.Type]bool{
	reflect.TypeOf(false):      true,
	reflect.TypeOf(int(0)):     true,
	reflect.TypeOf(int8(0)):    true,
	reflect.TypeOf(int16(0)):   true,
	reflect.TypeOf(int32(0)):   true,
	reflect.TypeOf(int64(0)):   true,
	reflect.TypeOf(uint(0)):    true,
	reflect.TypeOf(uint8(0)):   true,
	reflect.TypeOf(uint16(0)):  true,
	reflect.TypeOf(uint32(0)):  true,
	reflect.TypeOf(uint64(0)):  true,
	reflect.TypeOf(float32(0)): true,
	reflect.TypeOf(float64(0)): true,
}

// isPrimitive reports whether rt is one of Go's predeclared boolean or
// numeric types.  Named types with a numeric underlying type are not
// primitive.
func isPrimitive(rt reflect.Type) bool {
	return primitiveTypes[rt]
}
