package minitable

import (
	"github.com/protocore/protocore/defs"
	"github.com/protocore/protocore/internal/hashtable"
)

// Compile builds md's mini-table, recursively compiling every reachable
// sub-message/map-value type. cache memoizes already-compiled tables and
// breaks cycles: a table is installed into cache before its
// fields are filled in, so a self- or mutually-recursive message type
// resolves to the same *Table its own fields point back to.
func Compile(md *defs.MessageDef, cache map[*defs.MessageDef]*Table) *Table {
	if t, ok := cache[md]; ok {
		return t
	}

	t := &Table{
		Descriptor:   md,
		ByNumber:     hashtable.NewInt[*Field](),
		InstanceSize: md.InstanceSize(),
		HasbitBytes:  md.HasbitBytes(),
	}
	cache[md] = t

	fields := md.Fields()
	t.Fields = make([]Field, len(fields))

	for i, fd := range fields {
		f := Field{
			Def:             fd,
			Number:          fd.Number(),
			Kind:            fd.Kind(),
			Offset:          int32(fd.Offset()),
			Hasbit:          -1,
			OneofCaseOffset: -1,
			Packed:          fd.IsPacked(),
			Required:        fd.Label() == defs.LabelRequired,
		}
		if hb, ok := fd.Hasbit(); ok {
			f.Hasbit = int32(hb)
		}
		if o, ok := fd.Oneof(); ok {
			f.OneofCaseOffset = int32(o.CaseOffset())
			f.OneofCaseValue = fd.Number()
		}

		switch {
		case fd.IsMap():
			f.Mode = ModeMap
			entry, _ := fd.Message()
			key, _ := entry.FieldByNumber(1)
			val, _ := entry.FieldByNumber(2)
			f.MapKeyKind = key.Kind()
			f.MapValueKind = val.Kind()
			if vm, ok := val.Message(); ok {
				f.MapValueSub = Compile(vm, cache)
			}
			if ve, ok := val.Enum(); ok {
				f.MapValueEnum = ve
			}
		case fd.Label() == defs.LabelRepeated:
			f.Mode = ModeArray
			if sm, ok := fd.Message(); ok {
				f.Sub = Compile(sm, cache)
			}
			if se, ok := fd.Enum(); ok {
				f.Enum = se
			}
		default:
			f.Mode = ModeScalar
			if sm, ok := fd.Message(); ok {
				f.Sub = Compile(sm, cache)
			}
			if se, ok := fd.Enum(); ok {
				f.Enum = se
			}
		}

		if f.Kind == defs.KindString && md.Syntax() == defs.Proto3 {
			f.ValidateUTF8 = true
		}

		t.Fields[i] = f
		t.ByNumber.Set(uint64(fd.Number()), &t.Fields[i])

		if f.Required || (f.Sub != nil && f.Sub.HasRequired) {
			t.HasRequired = true
		}
		if fd.Kind() == defs.KindMessage || fd.Kind() == defs.KindGroup {
			t.SubmsgFieldCount++
		}
	}
	t.RequiredCount = int32(md.RequiredCount())

	buildFastTable(t)

	return t
}

// buildFastTable constructs a mini-table's fasttable: for each field,
// compute the encoded tag (for a repeated field declared packed, its
// packed length-delimited tag; otherwise its ordinary tag) and claim
// fasttable[(tag&0xf8)>>3] if that slot is still empty. Both encodings of
// one field map to the same slot, so only one of them gets an entry; the
// other always goes through the mini-table decoder.
func buildFastTable(t *Table) {
	for i := range t.Fast {
		t.Fast[i] = FastEntry{FieldIndex: -1}
	}

	placed := false
	for i := range t.Fields {
		f := &t.Fields[i]
		if !expectedTagFits(f.Number) || f.Mode == ModeMap {
			continue
		}
		// Groups are never given a fast-path entry: start/end-group
		// delimiters always fall back to the mini-table decoder.
		if f.Kind == defs.KindGroup {
			continue
		}

		packed := f.Mode == ModeArray && f.Packed && f.Kind.IsPackable()
		if tryPlace(t, f, int32(i), packed) {
			placed = true
		}
	}

	if placed {
		t.TableMask = fastTableMaskFull
	} else {
		t.TableMask = fastTableMaskEmpty
	}
}

func tryPlace(t *Table, f *Field, index int32, packed bool) bool {
	wt := wireTypeFor(f.Kind, packed)
	tag := uint64(f.Number)<<3 | uint64(wt)
	slot := FastSlot(tag)

	if t.Fast[slot].FieldIndex != -1 {
		return false // slot taken; this field falls back to the mini-table decoder
	}

	op := opForScalar(f.Kind)
	if packed {
		op = OpBytes // a packed run is read as one length-delimited blob, then sub-parsed
	}

	t.Fast[slot] = FastEntry{ExpectedTag: tag, Op: op, FieldIndex: index}
	return true
}
