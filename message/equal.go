package message

import (
	"bytes"

	"github.com/protocore/protocore/defs"
	"github.com/protocore/protocore/internal/wire"
	"github.com/protocore/protocore/minitable"
)

// Equal reports whether a and b hold the same field values, including
// equivalent (but not necessarily byte-identical) unknown-field spans.
// Two messages built from unrelated mini-tables are never equal.
//
// A straight byte-for-byte comparison of the unknown-field span is too
// strict,
// since a decoder may interleave records for different unrecognized
// field numbers in either order without changing meaning. Equal instead
// groups each span's records by field number before comparing, so
// round-tripping through encode/decode (which may reorder unknown
// records relative to the original input) still compares equal.
func Equal(a, b *Message) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Table != b.Table {
		return false
	}
	for i := range a.Table.Fields {
		f := &a.Table.Fields[i]
		if !fieldEqual(a, b, f) {
			return false
		}
	}
	return unknownEqual(a.Unknown, b.Unknown)
}

func fieldEqual(a, b *Message, f *minitable.Field) bool {
	switch f.Mode {
	case minitable.ModeArray:
		return arrayEqual(a.GetArray(f), b.GetArray(f), f.Kind)
	case minitable.ModeMap:
		return mapEqual(a.GetMap(f), b.GetMap(f))
	default:
		return scalarFieldEqual(a, b, f)
	}
}

func scalarFieldEqual(a, b *Message, f *minitable.Field) bool {
	ha, hb := a.HasField(f), b.HasField(f)
	if ha != hb {
		return false
	}
	if !ha {
		return true
	}
	switch f.Kind {
	case defs.KindBool:
		return a.GetBool(f) == b.GetBool(f)
	case defs.KindInt32, defs.KindSint32, defs.KindSfixed32, defs.KindEnum:
		return a.GetInt32(f) == b.GetInt32(f)
	case defs.KindUint32, defs.KindFixed32:
		return a.GetUint32(f) == b.GetUint32(f)
	case defs.KindInt64, defs.KindSint64, defs.KindSfixed64:
		return a.GetInt64(f) == b.GetInt64(f)
	case defs.KindUint64, defs.KindFixed64:
		return a.GetUint64(f) == b.GetUint64(f)
	case defs.KindFloat:
		return a.GetFloat32(f) == b.GetFloat32(f)
	case defs.KindDouble:
		return a.GetFloat64(f) == b.GetFloat64(f)
	case defs.KindString, defs.KindBytes:
		sa, _ := a.GetString(f)
		sb, _ := b.GetString(f)
		return bytes.Equal(sa.Data, sb.Data)
	case defs.KindMessage, defs.KindGroup:
		sma, _ := a.GetSubMessage(f)
		smb, _ := b.GetSubMessage(f)
		if sma.Unlinked || smb.Unlinked {
			return sma.Unlinked == smb.Unlinked && unknownEqual(sma.Msg.Unknown, smb.Msg.Unknown)
		}
		return Equal(sma.Msg, smb.Msg)
	default:
		return true
	}
}

func arrayEqual(a, b *Array, kind defs.Kind) bool {
	if a == nil || b == nil {
		return (a == nil) == (b == nil)
	}
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !elemEqual(kind, a.elems[i], b.elems[i]) {
			return false
		}
	}
	return true
}

func mapEqual(a, b *Map) bool {
	if a == nil || b == nil {
		return (a == nil) == (b == nil)
	}
	if a.Len() != b.Len() {
		return false
	}
	eq := true
	a.Range(func(key, av any) bool {
		bv, ok := b.Get(key)
		if !ok || !elemEqual(a.valueKind, av, bv) {
			eq = false
			return false
		}
		return true
	})
	return eq
}

func elemEqual(kind defs.Kind, av, bv any) bool {
	switch kind {
	case defs.KindString, defs.KindBytes:
		return bytes.Equal(av.(String).Data, bv.(String).Data)
	case defs.KindMessage, defs.KindGroup:
		sma, smb := av.(SubMessage), bv.(SubMessage)
		if sma.Unlinked || smb.Unlinked {
			return sma.Unlinked == smb.Unlinked && unknownEqual(sma.Msg.Unknown, smb.Msg.Unknown)
		}
		return Equal(sma.Msg, smb.Msg)
	default:
		return av == bv
	}
}

// unknownEqual reports whether two unknown-field spans carry the same
// records once grouped by field number: the byte order of records for
// distinct field numbers is not meaningful, but each field number's own
// sequence of record bytes must match exactly (a repeated field's wire
// order within itself is meaningful).
func unknownEqual(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	ga, oka := groupUnknown(a)
	gb, okb := groupUnknown(b)
	if !oka || !okb {
		return false
	}
	if len(ga) != len(gb) {
		return false
	}
	for num, va := range ga {
		vb, ok := gb[num]
		if !ok || !bytes.Equal(va, vb) {
			return false
		}
	}
	return true
}

func groupUnknown(buf []byte) (map[int32][]byte, bool) {
	groups := make(map[int32][]byte)
	pos := 0
	for pos < len(buf) {
		start := pos
		fieldNumber, wt, n := wire.ConsumeTag(buf[pos:])
		if n <= 0 {
			return nil, false
		}
		pos += n
		end, ok := skipUnknownValue(buf, pos, wt)
		if !ok {
			return nil, false
		}
		groups[fieldNumber] = append(groups[fieldNumber], buf[start:end]...)
		pos = end
	}
	return groups, true
}

func skipUnknownValue(buf []byte, pos int, wt wire.Type) (int, bool) {
	switch wt {
	case wire.Varint:
		_, n := wire.ConsumeVarint(buf[pos:])
		if n <= 0 {
			return pos, false
		}
		return pos + n, true
	case wire.Fixed64:
		if pos+8 > len(buf) {
			return pos, false
		}
		return pos + 8, true
	case wire.Fixed32:
		if pos+4 > len(buf) {
			return pos, false
		}
		return pos + 4, true
	case wire.LengthDelim:
		size, n := wire.ConsumeSize(buf[pos:])
		if n <= 0 {
			return pos, false
		}
		pos += n
		if pos+size > len(buf) {
			return pos, false
		}
		return pos + size, true
	case wire.StartGroup:
		for {
			if pos >= len(buf) {
				return pos, false
			}
			_, t, n := wire.ConsumeTag(buf[pos:])
			if n <= 0 {
				return pos, false
			}
			pos += n
			if t == wire.EndGroup {
				return pos, true
			}
			next, ok := skipUnknownValue(buf, pos, t)
			if !ok {
				return pos, false
			}
			pos = next
		}
	default:
		return pos, false
	}
}
