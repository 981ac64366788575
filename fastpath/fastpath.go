// Package fastpath implements the specialized per-field dispatch
// handlers a mini-table's fast dispatch array points at. Each handler
// assumes its tag has already matched exactly
// (field number, wire type, and tag byte length all agree with what the
// table entry expected) and decodes straight into the target field
// without re-deriving any of that from the schema. Any combination the
// fast path does not implement (groups, map fields, field numbers whose
// tag doesn't fit the dispatch scheme) is simply never placed into a
// table's Fast array at compile time (minitable.buildFastTable), so this
// package never has to recognize and reject such a case at run time
// itself.
//
// This package does not import the decode package, to keep the
// dependency one-directional: decode calls fastpath.Dispatch, and hands
// it a Recurse callback for the one case (sub-message fields) where the
// fast path itself needs to re-enter the general decode loop.
package fastpath

import (
	"math"
	"unicode/utf8"

	"github.com/protocore/protocore/defs"
	"github.com/protocore/protocore/internal/epscopy"
	"github.com/protocore/protocore/internal/wire"
	"github.com/protocore/protocore/internal/zigzag"
	"github.com/protocore/protocore/message"
	"github.com/protocore/protocore/minitable"
)

// Recurse parses a sub-message's body, the size bytes starting at pos,
// into sub using table, honoring the caller's own depth budget and
// options. It returns the position just past the sub-message's bytes.
type Recurse func(sub *message.Message, table *minitable.Table, pos, size int) (next int, err error)

// Context carries the per-decode state a fast-path handler needs but
// that a *minitable.Field/Table alone doesn't: whether to alias string
// bytes instead of copying them, whether proto2 strings need UTF-8
// validation anyway, and the callback used to recurse into a linked
// sub-message.
type Context struct {
	Alias              bool
	AlwaysValidateUTF8 bool
	Recurse            Recurse
}

// ErrUnhandled is returned by Dispatch when, despite the tag match that
// got the caller here, the record's value still can't be serviced by the
// fast path (a sub-message field with no linked sub-table). The caller
// falls back to the general mini-table dispatch; this is not itself a
// malformed-input signal.
var ErrUnhandled = unhandledError{}

type unhandledError struct{}

func (unhandledError) Error() string { return "protocore/fastpath: record not handled by fast path" }

// Dispatch decodes the single record (or, for an Op that folds a packed
// run, run of records) starting at pos — immediately after the tag that
// selected entryOp via the table's fast dispatch array — into msg at
// field. recordStart is the offset of that tag, needed to recover the
// verbatim bytes of a record this call decides to reject onto the
// unknown-field path. It returns the offset just past everything it
// consumed.
func Dispatch(stream *epscopy.Stream, msg *message.Message, field *minitable.Field, op minitable.Op, recordStart, pos int, ctx Context) (next int, err error) {
	switch op {
	case minitable.OpSubMessage:
		return dispatchSubMessage(stream, msg, field, recordStart, pos, ctx)
	case minitable.OpBytes:
		if field.Kind == defs.KindString || field.Kind == defs.KindBytes {
			return dispatchBytes(stream, msg, field, recordStart, pos, ctx)
		}
		return dispatchPacked(stream, msg, field, pos)
	default:
		return dispatchScalar(stream, msg, field, op, recordStart, pos)
	}
}

// dispatchScalar handles one non-packed scalar/enum record, then loops
// over any immediately-following records for the same field whose tag
// bytes match exactly: after each element, peek the next tag; if it's the same tag,
// decode again without falling back through the general dispatch loop.
func dispatchScalar(stream *epscopy.Stream, msg *message.Message, field *minitable.Field, op minitable.Op, recordStart, pos int) (int, error) {
	tag := wire.Tag(field.Number, wireTypeOf(op))
	for {
		value, next, ok := readScalar(stream, pos, op)
		if !ok {
			return pos, errTruncated()
		}
		pos = next

		if field.EnumRejected(asInt32(value)) {
			msg.AppendUnknown(mustBytes(stream, recordStart, pos))
		} else {
			setOrAppend(msg, field, value)
		}

		if stream.Done(pos) {
			return pos, nil
		}
		nextField, nextWT, n := wire.ConsumeTag(stream.Bytes(pos))
		if n <= 0 || wire.Tag(nextField, nextWT) != tag {
			return pos, nil
		}
		recordStart = pos
		pos += n
	}
}

// dispatchPacked reads a packed run's length prefix and decodes each
// element in turn, for a field placed in the fast table under its packed
// encoding (minitable.tryPlace's packed=true branch).
func dispatchPacked(stream *epscopy.Stream, msg *message.Message, field *minitable.Field, pos int) (int, error) {
	size, n := wire.ConsumeSize(stream.Bytes(pos))
	if n <= 0 {
		return pos, errTruncated()
	}
	pos += n
	saved, ok := stream.PushLimit(pos, size)
	if !ok {
		return pos, errTruncated()
	}
	arr := msg.MutableArray(field)
	op := scalarOpForKind(field.Kind)
	for !stream.Done(pos) {
		value, next, ok := readScalar(stream, pos, op)
		if !ok {
			stream.PopLimit(saved)
			return pos, errTruncated()
		}
		pos = next
		if field.EnumRejected(asInt32(value)) {
			// A rejected closed-enum element is re-encoded as its own
			// varint record in the unknown-field span.
			msg.AppendUnknown(wire.AppendVarint(wire.AppendTag(nil, field.Number, wire.Varint), uint64(int64(asInt32(value)))))
			continue
		}
		appendScalar(arr, field.Kind, value)
	}
	overrun := pos > stream.Limit()
	stream.PopLimit(saved)
	if overrun {
		return pos, errTruncated()
	}
	return pos, nil
}

func dispatchBytes(stream *epscopy.Stream, msg *message.Message, field *minitable.Field, recordStart, pos int, ctx Context) (int, error) {
	size, n := wire.ConsumeSize(stream.Bytes(pos))
	if n <= 0 {
		return pos, errTruncated()
	}
	pos += n
	data, next, ok := stream.ReadStringAliased(pos, size)
	if !ok {
		return pos, errTruncated()
	}

	if field.Kind == defs.KindString && (field.ValidateUTF8 || ctx.AlwaysValidateUTF8) && !validUTF8(data) {
		return pos, errBadUTF8()
	}

	s := toStringValue(data, ctx.Alias)
	setOrAppendString(msg, field, s)
	return next, nil
}

func dispatchSubMessage(stream *epscopy.Stream, msg *message.Message, field *minitable.Field, recordStart, pos int, ctx Context) (int, error) {
	size, n := wire.ConsumeSize(stream.Bytes(pos))
	if n <= 0 {
		return pos, errTruncated()
	}
	pos += n
	if field.Sub == nil {
		if ctx.Recurse == nil {
			return pos, errTruncated()
		}
		// No linked sub-table: fastpath never places an unlinked field
		// into a table's dispatch array on its own, but a field can still
		// reach here if its owning message was compiled before the
		// sub-message type was linked. Defer entirely to the caller.
		return pos, ErrUnhandled
	}

	var sub *message.Message
	if field.Mode == minitable.ModeArray {
		sub = message.New(field.Sub, msg.Arena)
	} else {
		sub = msg.MutableSubMessage(field)
	}

	next, err := ctx.Recurse(sub, field.Sub, pos, size)
	if err != nil {
		return pos, err
	}
	if field.Mode == minitable.ModeArray {
		msg.MutableArray(field).AppendMessage(sub)
	}
	return next, nil
}

func wireTypeOf(op minitable.Op) wire.Type {
	switch op {
	case minitable.OpFixed32:
		return wire.Fixed32
	case minitable.OpFixed64:
		return wire.Fixed64
	default:
		return wire.Varint
	}
}

func scalarOpForKind(k defs.Kind) minitable.Op {
	switch k {
	case defs.KindSint32, defs.KindSint64:
		return minitable.OpZigZag
	case defs.KindFixed32, defs.KindSfixed32, defs.KindFloat:
		return minitable.OpFixed32
	case defs.KindFixed64, defs.KindSfixed64, defs.KindDouble:
		return minitable.OpFixed64
	default:
		return minitable.OpVarint
	}
}

// readScalar reads one value of the physical shape op describes,
// returning it typed per field.Kind's Go representation (see
// message.Array's doc comment for the mapping).
func readScalar(stream *epscopy.Stream, pos int, op minitable.Op) (value any, next int, ok bool) {
	switch op {
	case minitable.OpVarint:
		v, n := wire.ConsumeVarint(stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return v, pos + n, true
	case minitable.OpZigZag:
		v, n := wire.ConsumeVarint(stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return v, pos + n, true
	case minitable.OpFixed32:
		v, n := wire.ConsumeFixed32(stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return v, pos + n, true
	case minitable.OpFixed64:
		v, n := wire.ConsumeFixed64(stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return v, pos + n, true
	}
	return nil, pos, false
}

// setOrAppend converts value (the raw varint/fixed word readScalar
// returned) into field.Kind's Go representation and writes it into msg,
// as a scalar Set or an array Append depending on field.Mode.
func setOrAppend(msg *message.Message, field *minitable.Field, value any) {
	if field.Mode == minitable.ModeArray {
		appendScalar(msg.MutableArray(field), field.Kind, value)
		return
	}
	switch field.Kind {
	case defs.KindBool:
		msg.SetBool(field, value.(uint64) != 0)
	case defs.KindInt32:
		msg.SetInt32(field, int32(value.(uint64)))
	case defs.KindUint32:
		msg.SetUint32(field, uint32(value.(uint64)))
	case defs.KindInt64:
		msg.SetInt64(field, int64(value.(uint64)))
	case defs.KindUint64:
		msg.SetUint64(field, value.(uint64))
	case defs.KindEnum:
		msg.SetEnum(field, int32(value.(uint64)))
	case defs.KindSint32:
		msg.SetInt32(field, zigzag.Decode32(uint32(value.(uint64))))
	case defs.KindSint64:
		msg.SetInt64(field, zigzag.Decode64(value.(uint64)))
	case defs.KindFixed32:
		msg.SetUint32(field, value.(uint32))
	case defs.KindSfixed32:
		msg.SetInt32(field, int32(value.(uint32)))
	case defs.KindFloat:
		msg.SetFloat32(field, math.Float32frombits(value.(uint32)))
	case defs.KindFixed64:
		msg.SetUint64(field, value.(uint64))
	case defs.KindSfixed64:
		msg.SetInt64(field, int64(value.(uint64)))
	case defs.KindDouble:
		msg.SetFloat64(field, math.Float64frombits(value.(uint64)))
	}
}

func appendScalar(arr *message.Array, kind defs.Kind, value any) {
	switch kind {
	case defs.KindBool:
		arr.AppendBool(value.(uint64) != 0)
	case defs.KindInt32:
		arr.AppendInt32(int32(value.(uint64)))
	case defs.KindUint32:
		arr.AppendUint32(uint32(value.(uint64)))
	case defs.KindInt64:
		arr.AppendInt64(int64(value.(uint64)))
	case defs.KindUint64:
		arr.AppendUint64(value.(uint64))
	case defs.KindEnum:
		arr.AppendEnum(int32(value.(uint64)))
	case defs.KindSint32:
		arr.AppendInt32(zigzag.Decode32(uint32(value.(uint64))))
	case defs.KindSint64:
		arr.AppendInt64(zigzag.Decode64(value.(uint64)))
	case defs.KindFixed32:
		arr.AppendUint32(value.(uint32))
	case defs.KindSfixed32:
		arr.AppendInt32(int32(value.(uint32)))
	case defs.KindFloat:
		arr.AppendFloat32(math.Float32frombits(value.(uint32)))
	case defs.KindFixed64:
		arr.AppendUint64(value.(uint64))
	case defs.KindSfixed64:
		arr.AppendInt64(int64(value.(uint64)))
	case defs.KindDouble:
		arr.AppendFloat64(math.Float64frombits(value.(uint64)))
	}
}

// asInt32 recovers the raw wire value as a signed 32-bit number, the
// shape EnumRejected checks against; only ever called for enum fields,
// which are always read via OpVarint and thus always carry a uint64.
func asInt32(value any) int32 {
	if v, ok := value.(uint64); ok {
		return int32(v)
	}
	return 0
}

func setOrAppendString(msg *message.Message, field *minitable.Field, s message.String) {
	if field.Mode == minitable.ModeArray {
		msg.MutableArray(field).AppendString(s)
		return
	}
	msg.SetString(field, s)
}

func toStringValue(data []byte, alias bool) message.String {
	if alias {
		return message.String{Data: data, Aliased: true}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return message.String{Data: cp}
}

func validUTF8(b []byte) bool { return utf8.Valid(b) }

func mustBytes(stream *epscopy.Stream, start, end int) []byte {
	b := stream.Bytes(start)
	if end-start > len(b) {
		return b
	}
	return b[:end-start]
}

// ErrInvalidUTF8 is returned by Dispatch when a string field's bytes are
// not valid UTF-8 under the validation rules in effect.
var ErrInvalidUTF8 = invalidUTF8Error{}

type invalidUTF8Error struct{}

func (invalidUTF8Error) Error() string { return "protocore/fastpath: invalid UTF-8 in string field" }

func errTruncated() error { return wire.ErrTruncated }
func errBadUTF8() error   { return ErrInvalidUTF8 }
