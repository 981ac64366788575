// Package message implements the flat, arena-backed in-memory
// representation of a decoded protobuf message.
//
// Scalar fields (bool, the fixed/varint integer kinds, float, double,
// enum) live in a flat byte buffer at the offsets minitable.Compile
// assigned them, read and written with encoding/binary rather than
// unsafe.Pointer casts: encoding/binary gets the same "flat bytes at a
// fixed offset" contract without needing unsafe at all. Fields whose slot must hold a
// Go pointer the garbage collector can see — strings, sub-messages,
// arrays, maps — live in a parallel ref slice addressed by field index
// instead of byte offset; see DESIGN.md for why.
package message

import (
	"encoding/binary"
	"math"

	"github.com/protocore/protocore/defs"
	"github.com/protocore/protocore/internal/arena"
	"github.com/protocore/protocore/minitable"
)

// String is a field's string/bytes value: either an alias into the
// decoder's input buffer or a copy owned by the message's arena.
type String struct {
	Data    []byte
	Aliased bool
}

// SubMessage is a tagged sub-message reference. An unlinked sub-message
// holds bytes that were decoded generically (all fields routed to
// Unknown) because its true type was not linked into the mini-table at
// parse time.
type SubMessage struct {
	Msg      *Message
	Unlinked bool
}

// Message is a single decoded (or freshly-constructed) protobuf message:
// a scalar byte buffer, a hasbit region folded into that buffer's front,
// one case word per oneof, a parallel slice of pointer-bearing field
// values, and an unknown-field byte span.
type Message struct {
	Table *minitable.Table
	Arena *arena.Arena

	scalars []byte  // HasbitBytes, then each scalar field's slot at its Offset
	cases   []int32 // one per oneof, indexed by OneofDef.Index(); 0 = unset
	refs    []any   // one per field, indexed by the field's FieldDef.Index()

	Unknown []byte // verbatim tag+value bytes for unrecognized fields
}

// New allocates a freshly-zeroed message for table from a. A
// freshly-zeroed message is a valid empty message.
func New(table *minitable.Table, a *arena.Arena) *Message {
	// A zero-value table (no Descriptor) backs unlinked opaque messages:
	// it has no oneofs, no fields, and a zero instance size.
	// Ref slots are indexed by FieldDef.Index (the field's position in the
	// schema), which for a table carrying a subset of its descriptor's
	// fields can exceed len(table.Fields).
	var oneofs, nrefs int
	nrefs = len(table.Fields)
	if table.Descriptor != nil {
		oneofs = len(table.Descriptor.Oneofs())
		nrefs = max(nrefs, len(table.Descriptor.Fields()))
	}
	return &Message{
		Table:   table,
		Arena:   a,
		scalars: a.Alloc(table.InstanceSize, 8),
		cases:   make([]int32, oneofs),
		refs:    make([]any, nrefs),
	}
}

// HasField reports whether f's hasbit is set, for fields that have one.
func (m *Message) HasField(f *minitable.Field) bool {
	if f.Hasbit < 0 {
		return m.impliedPresence(f)
	}
	byteIdx := f.Hasbit / 8
	bit := byte(1) << uint(f.Hasbit%8)
	return m.scalars[byteIdx]&bit != 0
}

// impliedPresence is used for fields without an explicit hasbit
// (repeated/map fields, and proto3 scalars without explicit presence):
// presence is then "has a value distinguishable from absent", which for
// repeated/map fields and singular messages means a non-nil ref and for
// proto3 implicit-presence scalars means a value other than the kind's
// zero (an empty string/bytes value counts as absent).
func (m *Message) impliedPresence(f *minitable.Field) bool {
	if f.Mode != minitable.ModeScalar {
		return m.refs[f.Def.Index()] != nil
	}
	if f.OneofCaseOffset >= 0 {
		return m.cases[m.oneofIndex(f)] == f.OneofCaseValue
	}
	if f.Kind == defs.KindMessage || f.Kind == defs.KindGroup {
		return m.refs[f.Def.Index()] != nil
	}
	switch f.Kind {
	case defs.KindString, defs.KindBytes:
		s, ok := m.GetString(f)
		return ok && len(s.Data) > 0
	case defs.KindBool:
		return m.GetBool(f)
	case defs.KindFloat:
		return m.GetFloat32(f) != 0
	case defs.KindDouble:
		return m.GetFloat64(f) != 0
	case defs.KindInt64, defs.KindUint64, defs.KindSint64, defs.KindFixed64, defs.KindSfixed64:
		return m.GetUint64(f) != 0
	default:
		return m.GetUint32(f) != 0
	}
}

func (m *Message) setHasbit(f *minitable.Field) {
	if f.Hasbit < 0 {
		return
	}
	byteIdx := f.Hasbit / 8
	bit := byte(1) << uint(f.Hasbit%8)
	m.scalars[byteIdx] |= bit
}

func (m *Message) oneofIndex(f *minitable.Field) int {
	o, _ := f.Def.Oneof()
	return o.Index()
}

func (m *Message) setOneofCase(f *minitable.Field) {
	if f.OneofCaseOffset < 0 {
		return
	}
	m.cases[m.oneofIndex(f)] = f.OneofCaseValue
}

// OneofCase returns which field (by number) is set within oneof, or 0 if
// none is.
func (m *Message) OneofCase(o *defs.OneofDef) int32 {
	return m.cases[o.Index()]
}

// --- Scalar accessors. Every setter also sets the field's hasbit and,
// for oneof members, writes the field number into the oneof case slot.

func (m *Message) GetBool(f *minitable.Field) bool {
	return m.scalars[f.Offset] != 0
}

func (m *Message) SetBool(f *minitable.Field, v bool) {
	if v {
		m.scalars[f.Offset] = 1
	} else {
		m.scalars[f.Offset] = 0
	}
	m.setHasbit(f)
	m.setOneofCase(f)
}

func (m *Message) GetUint32(f *minitable.Field) uint32 {
	return binary.LittleEndian.Uint32(m.scalars[f.Offset:])
}

func (m *Message) SetUint32(f *minitable.Field, v uint32) {
	binary.LittleEndian.PutUint32(m.scalars[f.Offset:], v)
	m.setHasbit(f)
	m.setOneofCase(f)
}

func (m *Message) GetInt32(f *minitable.Field) int32 { return int32(m.GetUint32(f)) }
func (m *Message) SetInt32(f *minitable.Field, v int32) { m.SetUint32(f, uint32(v)) }

func (m *Message) GetFloat32(f *minitable.Field) float32 {
	return math.Float32frombits(m.GetUint32(f))
}

func (m *Message) SetFloat32(f *minitable.Field, v float32) {
	m.SetUint32(f, math.Float32bits(v))
}

func (m *Message) GetUint64(f *minitable.Field) uint64 {
	return binary.LittleEndian.Uint64(m.scalars[f.Offset:])
}

func (m *Message) SetUint64(f *minitable.Field, v uint64) {
	binary.LittleEndian.PutUint64(m.scalars[f.Offset:], v)
	m.setHasbit(f)
	m.setOneofCase(f)
}

func (m *Message) GetInt64(f *minitable.Field) int64 { return int64(m.GetUint64(f)) }
func (m *Message) SetInt64(f *minitable.Field, v int64) { m.SetUint64(f, uint64(v)) }

func (m *Message) GetFloat64(f *minitable.Field) float64 {
	return math.Float64frombits(m.GetUint64(f))
}

func (m *Message) SetFloat64(f *minitable.Field, v float64) {
	m.SetUint64(f, math.Float64bits(v))
}

// GetEnum returns a raw enum field's numeric value (enums are stored as a
// plain 4-byte word, same as int32).
func (m *Message) GetEnum(f *minitable.Field) int32 { return m.GetInt32(f) }
func (m *Message) SetEnum(f *minitable.Field, v int32) { m.SetInt32(f, v) }

// --- Ref-slot accessors, for fields whose value is a Go pointer.

func (m *Message) GetString(f *minitable.Field) (String, bool) {
	v := m.refs[f.Def.Index()]
	if v == nil {
		return String{}, false
	}
	return v.(String), true
}

func (m *Message) SetString(f *minitable.Field, s String) {
	m.refs[f.Def.Index()] = s
	m.setHasbit(f)
	m.setOneofCase(f)
}

func (m *Message) GetSubMessage(f *minitable.Field) (SubMessage, bool) {
	v := m.refs[f.Def.Index()]
	if v == nil {
		return SubMessage{}, false
	}
	return v.(SubMessage), true
}

// SetSubMessage links s as f's value. If s was built on a different arena
// than m, the two arenas are fused so that neither's memory is released
// until both have been.
func (m *Message) SetSubMessage(f *minitable.Field, s SubMessage) {
	if s.Msg != nil && s.Msg.Arena != m.Arena {
		arena.Fuse(m.Arena, s.Msg.Arena)
	}
	m.refs[f.Def.Index()] = s
	m.setHasbit(f)
	m.setOneofCase(f)
}

// MutableSubMessage returns the linked sub-message at f, allocating one
// under m's arena if absent.
func (m *Message) MutableSubMessage(f *minitable.Field) *Message {
	if v := m.refs[f.Def.Index()]; v != nil {
		sm := v.(SubMessage)
		if !sm.Unlinked {
			return sm.Msg
		}
	}
	sub := New(f.Sub, m.Arena)
	m.SetSubMessage(f, SubMessage{Msg: sub})
	return sub
}

func (m *Message) GetArray(f *minitable.Field) *Array {
	v := m.refs[f.Def.Index()]
	if v == nil {
		return nil
	}
	return v.(*Array)
}

// MutableArray returns f's array, allocating an empty one under m's
// arena if absent.
func (m *Message) MutableArray(f *minitable.Field) *Array {
	if v := m.refs[f.Def.Index()]; v != nil {
		return v.(*Array)
	}
	a := newArray(f.Kind)
	m.refs[f.Def.Index()] = a
	return a
}

func (m *Message) GetMap(f *minitable.Field) *Map {
	v := m.refs[f.Def.Index()]
	if v == nil {
		return nil
	}
	return v.(*Map)
}

// MutableMap returns f's map, allocating an empty one under m's arena if
// absent.
func (m *Message) MutableMap(f *minitable.Field) *Map {
	if v := m.refs[f.Def.Index()]; v != nil {
		return v.(*Map)
	}
	mp := newMap(f.MapKeyKind, f.MapValueKind)
	m.refs[f.Def.Index()] = mp
	return mp
}

// Release drops the creator's reference on m's arena. Once every
// reference is gone, everything allocated from the arena — this message,
// its sub-messages, arrays, maps, and unknown-field buffers, along with
// any arena fused into it — is released at once and the arena's cleanups
// run in reverse registration order. The caller must not touch m or
// anything reachable from it afterward. Messages sharing one arena are
// released together by a single Release call; calling it through more
// than one of them over-releases.
func (m *Message) Release() {
	m.Arena.Unref()
}

// AppendUnknown appends a verbatim tag+value record to m's unknown-field
// span.
func (m *Message) AppendUnknown(b []byte) {
	m.Unknown = append(m.Unknown, b...)
}

// CheckRequired reports whether every required field reachable from m
// (transitively, through linked sub-messages) has its hasbit set.
func (m *Message) CheckRequired() bool {
	return m.checkRequired(make(map[*Message]bool))
}

func (m *Message) checkRequired(seen map[*Message]bool) bool {
	if seen[m] {
		return true
	}
	seen[m] = true

	for i := range m.Table.Fields {
		f := &m.Table.Fields[i]
		if f.Required && !m.HasField(f) {
			return false
		}
		if f.Sub == nil {
			continue
		}
		switch f.Mode {
		case minitable.ModeScalar:
			if sm, ok := m.GetSubMessage(f); ok && !sm.Unlinked {
				if !sm.Msg.checkRequired(seen) {
					return false
				}
			}
		case minitable.ModeArray:
			if a := m.GetArray(f); a != nil {
				for _, e := range a.elems {
					if sm, ok := e.(SubMessage); ok && !sm.Unlinked {
						if !sm.Msg.checkRequired(seen) {
							return false
						}
					}
				}
			}
		}
	}
	return true
}
