// Package minitable builds the decoder-facing projection of a frozen
// message schema: a flat fields[] array indexable by both declaration
// order and field number, pointers to sub-tables for message/group/map
// fields, and a small fixed-size fasttable used by the fast-path decoder
// to dispatch common fields without a full lookup.
//
// This is built directly from a *defs.MessageDef rather than from a
// protoreflect.MessageDescriptor, reflecting that this implementation
// keeps its own schema graph (see the defs package) instead of borrowing
// google.golang.org/protobuf's.
package minitable

import (
	"github.com/protocore/protocore/defs"
	"github.com/protocore/protocore/internal/hashtable"
	"github.com/protocore/protocore/internal/wire"
)

// Mode classifies how a field's bytes are stored in the message: scalar,
// array, or map.
type Mode uint8

const (
	ModeScalar Mode = iota
	ModeArray
	ModeMap
)

// Op identifies which wire-level decoding routine a field needs. Rather
// than selecting a concrete function pointer per (type, cardinality,
// tag-size) combination, cardinality (singular/repeated/packed/oneof) is
// kept as data on Field and decode's dispatch loop branches on it
// directly; Op only needs to say how to parse one value off the wire.
type Op uint8

const (
	OpInvalid Op = iota
	OpVarint
	OpZigZag
	OpFixed32
	OpFixed64
	OpBytes // string or bytes
	OpSubMessage
	OpGroup
)

// FastSlots is the size of a mini-table's fast dispatch array: a 32-entry
// table of dispatch entries per frozen mini-table.
const FastSlots = 32

// fastTableMaskFull and fastTableMaskEmpty give the table_mask a decoder
// checks before trying the fast path: (table_size - 1) << 3 when at least
// one field was placed, or 0xff ("no fast path") when none was.
const (
	fastTableMaskFull  = uint32(FastSlots-1) << 3
	fastTableMaskEmpty = uint32(0xff)
)

// maxFastPathFieldNumber is the cutoff above which a field number no
// longer gets a fast-path entry: field numbers up to 2047 encode to a 1-
// or 2-byte tag.
const maxFastPathFieldNumber = 2047

// FastEntry is one slot of a Table's fast dispatch array: the tag this
// slot expects, the decoding operation to run, and the field it feeds.
// Unlike a bit-packed 64-bit function-data word paired with a real
// function pointer, this keeps the operands as plain struct fields since
// nothing here needs to fit them into a single machine word.
type FastEntry struct {
	ExpectedTag uint64
	Op          Op
	FieldIndex  int32 // -1 for an empty slot
}

// Field is one row of a Table's fields[] array.
type Field struct {
	Def    *defs.FieldDef
	Number int32
	Kind   defs.Kind
	Mode   Mode
	Offset int32

	Hasbit          int32 // -1 if this field carries no presence bit
	OneofCaseOffset int32 // -1 if this field is not part of a oneof
	OneofCaseValue  int32 // the field number written into the case word when set

	Packed   bool // repeated scalar fields only
	Required bool

	Sub  *Table       // message/group/map-entry-value subtable, if any
	Enum *defs.EnumDef // enum subdef, for closed-enum value validation

	MapKeyKind   defs.Kind
	MapValueKind defs.Kind
	MapValueSub  *Table
	MapValueEnum *defs.EnumDef

	// ValidateUTF8 reports whether a string field's bytes must be valid
	// UTF-8 to decode successfully under the owning message's syntax
	// alone (proto3, without the always-validate decode option). Computed
	// once at compile time so decode/fastpath don't need the owning
	// table's Descriptor just to find this out per field.
	ValidateUTF8 bool
}

// EnumRejected reports whether value is not a member of f's enum subdef
// and f's enum is closed, meaning a decoder must route this field's record
// to the unknown-field span instead of setting it.
func (f *Field) EnumRejected(value int32) bool {
	return f.Enum != nil && f.Enum.IsClosed() && !f.Enum.HasNumber(value)
}

// Table is the mini-table itself: a frozen message's fields[] and
// subs[], plus the fast dispatch array.
type Table struct {
	Descriptor *defs.MessageDef

	Fields []Field

	// ByNumber resolves a wire tag's field number to its row. The hybrid
	// int table keeps small, contiguous field-number ranges (the common
	// case) in a dense array prefix, so the hot lookup is a bounds check
	// and an index rather than a map probe; sparse or very large numbers
	// fall through to its overflow chain.
	ByNumber *hashtable.Int[*Field]

	// DenseBelow is a dense_below-style bookkeeping field that this
	// implementation never populates: Fields is kept in
	// declaration order rather than re-sorted by number, so there is no
	// safe Fields[number-1] shortcut to take. ByNumber is the only lookup
	// path; DenseBelow stays 0 and is carried for schema-introspection
	// parity only.
	DenseBelow int32

	Fast      [FastSlots]FastEntry
	TableMask uint32

	HasRequired      bool
	RequiredCount    int32
	SubmsgFieldCount int32
	InstanceSize     int
	HasbitBytes      int
}

// HasFastPath reports whether any field could be placed in the fast
// dispatch array.
func (t *Table) HasFastPath() bool { return t.TableMask == fastTableMaskFull }

// FastSlot computes the "(encoded_tag & 0xf8) >> 3" dispatch slot for a
// 1- or 2-byte encoded tag.
func FastSlot(tag uint64) uint32 {
	return uint32(tag&0xf8) >> 3
}

// Lookup finds a field by number.
func (t *Table) Lookup(number int32) (*Field, bool) {
	if t.ByNumber == nil {
		return nil, false
	}
	return t.ByNumber.Get(uint64(number))
}

// expectedTagFits reports whether number's encoded tag is short enough to
// qualify for a fast-path slot.
func expectedTagFits(number int32) bool {
	return number >= 1 && number <= maxFastPathFieldNumber
}

func opForScalar(k defs.Kind) Op {
	switch k {
	case defs.KindSint32, defs.KindSint64:
		return OpZigZag
	case defs.KindFixed32, defs.KindSfixed32, defs.KindFloat:
		return OpFixed32
	case defs.KindFixed64, defs.KindSfixed64, defs.KindDouble:
		return OpFixed64
	case defs.KindString, defs.KindBytes:
		return OpBytes
	case defs.KindMessage:
		return OpSubMessage
	case defs.KindGroup:
		return OpGroup
	default:
		return OpVarint
	}
}

func wireTypeFor(k defs.Kind, packed bool) wire.Type {
	if packed {
		return wire.LengthDelim
	}
	switch k {
	case defs.KindFixed64, defs.KindSfixed64, defs.KindDouble:
		return wire.Fixed64
	case defs.KindFixed32, defs.KindSfixed32, defs.KindFloat:
		return wire.Fixed32
	case defs.KindGroup:
		return wire.StartGroup
	case defs.KindString, defs.KindBytes, defs.KindMessage:
		return wire.LengthDelim
	default:
		return wire.Varint
	}
}
