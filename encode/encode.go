// Package encode serializes an in-memory message (message.Message, laid
// out per a minitable.Table) back to protobuf wire bytes. It is the
// mirror image of the decode package: where decode walks the wire and
// fills in a message, encode walks a message's mini-table and emits the
// wire. Round-tripping (decode(encode(m)) == m) is this package's
// reason to exist, so it is modeled directly on decode's own structure.
// Unlike decode.Decode, its single entry point, Marshal, takes no
// options.
package encode

import (
	"math"

	"github.com/protocore/protocore/defs"
	"github.com/protocore/protocore/internal/wire"
	"github.com/protocore/protocore/internal/zigzag"
	"github.com/protocore/protocore/message"
	"github.com/protocore/protocore/minitable"
)

// Marshal serializes msg to wire-format bytes. Fields are emitted in
// mini-table (declaration) order; a real encoder is free to choose any
// order since the wire format carries no ordering guarantee, but a
// stable order makes encode deterministic and its output byte-for-byte
// reproducible across calls.
func Marshal(msg *message.Message) ([]byte, error) {
	return appendMessage(nil, msg)
}

func appendMessage(buf []byte, msg *message.Message) ([]byte, error) {
	for i := range msg.Table.Fields {
		f := &msg.Table.Fields[i]
		var err error
		buf, err = appendField(buf, msg, f)
		if err != nil {
			return nil, err
		}
	}
	buf = append(buf, msg.Unknown...)
	return buf, nil
}

func appendField(buf []byte, msg *message.Message, f *minitable.Field) ([]byte, error) {
	switch f.Mode {
	case minitable.ModeMap:
		return appendMapField(buf, msg, f)
	case minitable.ModeArray:
		return appendArrayField(buf, msg, f)
	default:
		return appendScalarField(buf, msg, f)
	}
}

// shouldEmitScalar decides whether a singular field carries a value
// distinguishable from absent. Oneof membership, a real hasbit, and
// linked-submessage presence all answer this precisely via HasField;
// the remaining case — a proto3 scalar with no explicit presence — has
// no hasbit at all (defs.computeLayout never allocates one for it), so
// presence there falls back to "value differs from the kind's zero",
// proto3's implicit-presence rule.
func shouldEmitScalar(msg *message.Message, f *minitable.Field) bool {
	if f.OneofCaseOffset >= 0 {
		return msg.HasField(f)
	}
	if f.Hasbit >= 0 {
		return msg.HasField(f)
	}
	if f.Kind == defs.KindMessage || f.Kind == defs.KindGroup {
		return msg.HasField(f)
	}
	return !isZeroScalar(msg, f)
}

func isZeroScalar(msg *message.Message, f *minitable.Field) bool {
	switch f.Kind {
	case defs.KindBool:
		return !msg.GetBool(f)
	case defs.KindInt32, defs.KindSint32, defs.KindSfixed32, defs.KindEnum:
		return msg.GetInt32(f) == 0
	case defs.KindUint32, defs.KindFixed32:
		return msg.GetUint32(f) == 0
	case defs.KindInt64, defs.KindSint64, defs.KindSfixed64:
		return msg.GetInt64(f) == 0
	case defs.KindUint64, defs.KindFixed64:
		return msg.GetUint64(f) == 0
	case defs.KindFloat:
		return msg.GetFloat32(f) == 0
	case defs.KindDouble:
		return msg.GetFloat64(f) == 0
	case defs.KindString, defs.KindBytes:
		s, ok := msg.GetString(f)
		return !ok || len(s.Data) == 0
	default:
		return true
	}
}

func appendScalarField(buf []byte, msg *message.Message, f *minitable.Field) ([]byte, error) {
	if !shouldEmitScalar(msg, f) {
		return buf, nil
	}
	switch f.Kind {
	case defs.KindMessage:
		sm, ok := msg.GetSubMessage(f)
		if !ok || sm.Unlinked {
			return buf, nil
		}
		return appendLengthDelimMessage(buf, f.Number, sm.Msg)
	case defs.KindGroup:
		sm, ok := msg.GetSubMessage(f)
		if !ok || sm.Unlinked {
			return buf, nil
		}
		return appendGroup(buf, f.Number, sm.Msg)
	default:
		return appendScalarValue(buf, f.Number, f.Kind, scalarValue(msg, f)), nil
	}
}

func appendArrayField(buf []byte, msg *message.Message, f *minitable.Field) ([]byte, error) {
	arr := msg.GetArray(f)
	if arr == nil || arr.Len() == 0 {
		return buf, nil
	}

	if f.Packed && f.Kind.IsPackable() {
		var packed []byte
		for i := 0; i < arr.Len(); i++ {
			packed = appendPackedValue(packed, f.Kind, arrayValue(arr, i))
		}
		buf = wire.AppendTag(buf, f.Number, wire.LengthDelim)
		buf = wire.AppendVarint(buf, uint64(len(packed)))
		buf = append(buf, packed...)
		return buf, nil
	}

	for i := 0; i < arr.Len(); i++ {
		switch f.Kind {
		case defs.KindMessage:
			var err error
			buf, err = appendLengthDelimMessage(buf, f.Number, arr.SubMessage(i).Msg)
			if err != nil {
				return nil, err
			}
		case defs.KindGroup:
			var err error
			buf, err = appendGroup(buf, f.Number, arr.SubMessage(i).Msg)
			if err != nil {
				return nil, err
			}
		default:
			buf = appendScalarValue(buf, f.Number, f.Kind, arrayValue(arr, i))
		}
	}
	return buf, nil
}

// appendMapField emits one length-delimited record per entry, each a
// two-field map-entry submessage (key at field 1, value at field 2),
// matching how dispatchMapEntry in decode.go reads them back.
func appendMapField(buf []byte, msg *message.Message, f *minitable.Field) ([]byte, error) {
	m := msg.GetMap(f)
	if m == nil || m.Len() == 0 {
		return buf, nil
	}

	var err error
	m.Range(func(key, value any) bool {
		var entry []byte
		entry = appendScalarValue(entry, 1, f.MapKeyKind, keyToWireValue(f.MapKeyKind, key))

		if f.MapValueKind == defs.KindMessage {
			entry, err = appendLengthDelimMessage(entry, 2, value.(message.SubMessage).Msg)
		} else {
			entry = appendScalarValue(entry, 2, f.MapValueKind, value)
		}
		if err != nil {
			return false
		}

		buf = wire.AppendTag(buf, f.Number, wire.LengthDelim)
		buf = wire.AppendVarint(buf, uint64(len(entry)))
		buf = append(buf, entry...)
		return true
	})
	return buf, err
}

func appendLengthDelimMessage(buf []byte, number int32, sub *message.Message) ([]byte, error) {
	body, err := appendMessage(nil, sub)
	if err != nil {
		return nil, err
	}
	buf = wire.AppendTag(buf, number, wire.LengthDelim)
	buf = wire.AppendVarint(buf, uint64(len(body)))
	return append(buf, body...), nil
}

func appendGroup(buf []byte, number int32, sub *message.Message) ([]byte, error) {
	buf = wire.AppendTag(buf, number, wire.StartGroup)
	var err error
	buf, err = appendMessage(buf, sub)
	if err != nil {
		return nil, err
	}
	return wire.AppendTag(buf, number, wire.EndGroup), nil
}

// scalarValue reads f's current value out of msg as the Go type
// appendScalarValue expects, mirroring decode.go's readValue in reverse.
func scalarValue(msg *message.Message, f *minitable.Field) any {
	switch f.Kind {
	case defs.KindBool:
		return msg.GetBool(f)
	case defs.KindInt32, defs.KindSint32, defs.KindSfixed32, defs.KindEnum:
		return msg.GetInt32(f)
	case defs.KindUint32, defs.KindFixed32:
		return msg.GetUint32(f)
	case defs.KindInt64, defs.KindSint64, defs.KindSfixed64:
		return msg.GetInt64(f)
	case defs.KindUint64, defs.KindFixed64:
		return msg.GetUint64(f)
	case defs.KindFloat:
		return msg.GetFloat32(f)
	case defs.KindDouble:
		return msg.GetFloat64(f)
	case defs.KindString, defs.KindBytes:
		s, _ := msg.GetString(f)
		return s
	default:
		return nil
	}
}

func arrayValue(arr *message.Array, i int) any {
	switch arr.Kind() {
	case defs.KindBool:
		return arr.Bool(i)
	case defs.KindInt32, defs.KindSint32, defs.KindSfixed32, defs.KindEnum:
		return arr.Int32(i)
	case defs.KindUint32, defs.KindFixed32:
		return arr.Uint32(i)
	case defs.KindInt64, defs.KindSint64, defs.KindSfixed64:
		return arr.Int64(i)
	case defs.KindUint64, defs.KindFixed64:
		return arr.Uint64(i)
	case defs.KindFloat:
		return arr.Float32(i)
	case defs.KindDouble:
		return arr.Float64(i)
	case defs.KindString, defs.KindBytes:
		return arr.String(i)
	default:
		return nil
	}
}

// keyToWireValue reconstructs a map key's field-kind-typed Go value from
// the plain bool/int32/.../string representation message.Map stores keys
// as (see message/map.go and decode.go's readMapKey: map keys are never
// represented as message.String, since message.String is not a
// comparable type and could not be used as a Go map key).
func keyToWireValue(kind defs.Kind, key any) any {
	if kind == defs.KindString || kind == defs.KindBytes {
		return message.String{Data: []byte(key.(string))}
	}
	return key
}

// appendScalarValue appends one field record (tag + value) for a
// non-repeated occurrence of kind.
func appendScalarValue(buf []byte, number int32, kind defs.Kind, v any) []byte {
	switch kind {
	case defs.KindBool:
		b := v.(bool)
		buf = wire.AppendTag(buf, number, wire.Varint)
		if b {
			return wire.AppendVarint(buf, 1)
		}
		return wire.AppendVarint(buf, 0)
	case defs.KindInt32, defs.KindEnum:
		buf = wire.AppendTag(buf, number, wire.Varint)
		return wire.AppendVarint(buf, uint64(int64(v.(int32))))
	case defs.KindInt64:
		buf = wire.AppendTag(buf, number, wire.Varint)
		return wire.AppendVarint(buf, uint64(v.(int64)))
	case defs.KindUint32:
		buf = wire.AppendTag(buf, number, wire.Varint)
		return wire.AppendVarint(buf, uint64(v.(uint32)))
	case defs.KindUint64:
		buf = wire.AppendTag(buf, number, wire.Varint)
		return wire.AppendVarint(buf, v.(uint64))
	case defs.KindSint32:
		buf = wire.AppendTag(buf, number, wire.Varint)
		return wire.AppendVarint(buf, uint64(zigzag.Encode32(v.(int32))))
	case defs.KindSint64:
		buf = wire.AppendTag(buf, number, wire.Varint)
		return wire.AppendVarint(buf, zigzag.Encode64(v.(int64)))
	case defs.KindFixed32:
		buf = wire.AppendTag(buf, number, wire.Fixed32)
		return wire.AppendFixed32(buf, v.(uint32))
	case defs.KindSfixed32:
		buf = wire.AppendTag(buf, number, wire.Fixed32)
		return wire.AppendFixed32(buf, uint32(v.(int32)))
	case defs.KindFloat:
		buf = wire.AppendTag(buf, number, wire.Fixed32)
		return wire.AppendFixed32(buf, math.Float32bits(v.(float32)))
	case defs.KindFixed64:
		buf = wire.AppendTag(buf, number, wire.Fixed64)
		return wire.AppendFixed64(buf, v.(uint64))
	case defs.KindSfixed64:
		buf = wire.AppendTag(buf, number, wire.Fixed64)
		return wire.AppendFixed64(buf, uint64(v.(int64)))
	case defs.KindDouble:
		buf = wire.AppendTag(buf, number, wire.Fixed64)
		return wire.AppendFixed64(buf, math.Float64bits(v.(float64)))
	case defs.KindString, defs.KindBytes:
		s := v.(message.String)
		buf = wire.AppendTag(buf, number, wire.LengthDelim)
		buf = wire.AppendVarint(buf, uint64(len(s.Data)))
		return append(buf, s.Data...)
	default:
		return buf
	}
}

// appendPackedValue appends one element's bytes into a packed run,
// without the tag a standalone occurrence would carry.
func appendPackedValue(buf []byte, kind defs.Kind, v any) []byte {
	switch kind {
	case defs.KindBool:
		if v.(bool) {
			return wire.AppendVarint(buf, 1)
		}
		return wire.AppendVarint(buf, 0)
	case defs.KindInt32, defs.KindEnum:
		return wire.AppendVarint(buf, uint64(int64(v.(int32))))
	case defs.KindInt64:
		return wire.AppendVarint(buf, uint64(v.(int64)))
	case defs.KindUint32:
		return wire.AppendVarint(buf, uint64(v.(uint32)))
	case defs.KindUint64:
		return wire.AppendVarint(buf, v.(uint64))
	case defs.KindSint32:
		return wire.AppendVarint(buf, uint64(zigzag.Encode32(v.(int32))))
	case defs.KindSint64:
		return wire.AppendVarint(buf, zigzag.Encode64(v.(int64)))
	case defs.KindFixed32:
		return wire.AppendFixed32(buf, v.(uint32))
	case defs.KindSfixed32:
		return wire.AppendFixed32(buf, uint32(v.(int32)))
	case defs.KindFloat:
		return wire.AppendFixed32(buf, math.Float32bits(v.(float32)))
	case defs.KindFixed64:
		return wire.AppendFixed64(buf, v.(uint64))
	case defs.KindSfixed64:
		return wire.AppendFixed64(buf, uint64(v.(int64)))
	case defs.KindDouble:
		return wire.AppendFixed64(buf, math.Float64bits(v.(float64)))
	default:
		return buf
	}
}
