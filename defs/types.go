// Package defs implements the schema (def) graph: an immutable, refcounted
// graph of message, field, enum, oneof, and file definitions, assembled
// through a mutable builder phase and then frozen.
//
// Every entity has two phases, modeled as two distinct Go types rather than
// one mutable struct with a frozen flag: a *Builder type whose setters are
// only legal before freezing, and a frozen type (MessageDef, FieldDef, ...)
// that is safe to share across goroutines and exposes only accessors. Freezing a
// Builder consumes it and returns the frozen view; there is no path back.
package defs

import "fmt"

// Kind is a field's declared wire-level type: one of the 18 protobuf field
// types plus group and enum.
type Kind uint8

// The 18 scalar/message/enum kinds plus Group, matching descriptor.proto's
// FieldDescriptorProto.Type numbering so that the fromproto bridge is a
// direct translation.
const (
	KindInvalid Kind = iota
	KindDouble
	KindFloat
	KindInt64
	KindUint64
	KindInt32
	KindFixed64
	KindFixed32
	KindBool
	KindString
	KindGroup
	KindMessage
	KindBytes
	KindUint32
	KindEnum
	KindSfixed32
	KindSfixed64
	KindSint32
	KindSint64
)

// HasSubdef reports whether a field of this kind requires a subdef
// (message, group, or enum): a frozen FieldDef either has a set subdef (if
// its type requires one) or has no subdef requirement.
func (k Kind) HasSubdef() bool {
	switch k {
	case KindMessage, KindGroup, KindEnum:
		return true
	default:
		return false
	}
}

// IsPackable reports whether a repeated field of this kind may use the
// packed wire encoding (scalar numeric and bool types, not string/bytes/
// message/group).
func (k Kind) IsPackable() bool {
	switch k {
	case KindDouble, KindFloat, KindInt64, KindUint64, KindInt32, KindFixed64,
		KindFixed32, KindBool, KindUint32, KindEnum, KindSfixed32, KindSfixed64,
		KindSint32, KindSint64:
		return true
	default:
		return false
	}
}

// WireType returns the wire type a non-packed field of this kind is
// encoded with.
func (k Kind) WireType() WireType {
	switch k {
	case KindDouble, KindFixed64, KindSfixed64:
		return WireFixed64
	case KindFloat, KindFixed32, KindSfixed32:
		return WireFixed32
	case KindGroup:
		return WireStartGroup
	case KindString, KindBytes, KindMessage:
		return WireLengthDelim
	default:
		return WireVarint
	}
}

func (k Kind) String() string {
	switch k {
	case KindDouble:
		return "double"
	case KindFloat:
		return "float"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindInt32:
		return "int32"
	case KindFixed64:
		return "fixed64"
	case KindFixed32:
		return "fixed32"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindGroup:
		return "group"
	case KindMessage:
		return "message"
	case KindBytes:
		return "bytes"
	case KindUint32:
		return "uint32"
	case KindEnum:
		return "enum"
	case KindSfixed32:
		return "sfixed32"
	case KindSfixed64:
		return "sfixed64"
	case KindSint32:
		return "sint32"
	case KindSint64:
		return "sint64"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// WireType mirrors internal/wire.Type; defs does not import internal/wire
// directly to keep the schema package free of wire-format concerns.
type WireType uint8

// The six wire types, duplicated here (rather than imported) because defs
// is deliberately wire-format agnostic; minitable is what bridges the two.
const (
	WireVarint      WireType = 0
	WireFixed64     WireType = 1
	WireLengthDelim WireType = 2
	WireStartGroup  WireType = 3
	WireEndGroup    WireType = 4
	WireFixed32     WireType = 5
)

// Label is a field's cardinality.
type Label uint8

const (
	LabelOptional Label = iota
	LabelRequired
	LabelRepeated
)

func (l Label) String() string {
	switch l {
	case LabelOptional:
		return "optional"
	case LabelRequired:
		return "required"
	case LabelRepeated:
		return "repeated"
	default:
		return "label(?)"
	}
}

// WellKnownType tags a MessageDef as one of the well-known wrapper/struct
// types, purely for bookkeeping; no decode-time behavior depends on it.
type WellKnownType uint8

const (
	WKTNone WellKnownType = iota
	WKTAny
	WKTDuration
	WKTTimestamp
	WKTStruct
	WKTValue
	WKTListValue
	WKTWrapper
	WKTNullValue
)

// Syntax distinguishes proto2 from proto3 grammar rules (explicit
// presence, closed enums, required fields, groups are proto2-only).
type Syntax uint8

const (
	Proto2 Syntax = iota
	Proto3
)

// MaxFieldNumber is the wire-format limit on a field number (2^29-1).
const MaxFieldNumber = 1<<29 - 1

// MaxFieldsPerMessage bounds the number of fields a single message may
// declare, a 16-bit limit.
const MaxFieldsPerMessage = 1<<16 - 1
