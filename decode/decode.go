package decode

import (
	"errors"
	"math"
	"unicode/utf8"

	"github.com/protocore/protocore/defs"
	"github.com/protocore/protocore/fastpath"
	"github.com/protocore/protocore/internal/debug"
	"github.com/protocore/protocore/internal/epscopy"
	"github.com/protocore/protocore/internal/wire"
	"github.com/protocore/protocore/internal/zigzag"
	"github.com/protocore/protocore/message"
	"github.com/protocore/protocore/minitable"
)

// emptyTable stands in for a sub-message whose concrete type was not
// linked into the mini-table at parse time: it declares no fields, so
// every record decoded against it falls straight through to the
// unknown-field path, so the body is decoded generically and preserved
// verbatim.
var emptyTable = &minitable.Table{}

// decoder holds the state threaded through one Decode call: the input
// stream, the resolved options, and the remaining recursion budget.
type decoder struct {
	stream *epscopy.Stream
	opts   options
	depth  int
}

// Decode parses buf as a wire-format encoding of msg's message type
// (given by msg.Table) and merges the result into msg: decoding into a
// non-empty message merges rather than replaces, the same as repeated
// Decode calls accumulating repeated field elements instead of resetting
// them.
func Decode(buf []byte, msg *message.Message, opts ...Option) error {
	o := resolveOptions(opts)
	d := &decoder{
		stream: epscopy.New(buf),
		opts:   o,
		depth:  o.maxDepth,
	}
	if o.alias {
		// WithAliasing's own doc comment states the caller's obligation:
		// buf must outlive msg's arena, not merely this call. KeepAlive
		// only keeps buf reachable for as long as the arena itself is;
		// it cannot enforce that the caller doesn't reuse or overwrite buf
		// sooner than that.
		msg.Arena.KeepAlive(buf)
	}
	debug.Log(nil, "decode.Decode", "%d bytes into message", len(buf))

	if _, err := d.message(msg, msg.Table, 0, -1); err != nil {
		return err
	}
	if o.checkRequired && !msg.CheckRequired() {
		return errf(CodeMissingRequired, "a required field is not set")
	}
	return nil
}

// message parses fields from pos until either the stream's current limit
// is reached (the ordinary end of a length-delimited range, or the whole
// input at top level) or, when expectEndGroup >= 0, a matching end-group
// tag for that field number is found. It returns the position just past
// the last byte consumed.
func (d *decoder) message(msg *message.Message, table *minitable.Table, pos int, expectEndGroup int32) (int, error) {
	for {
		if d.stream.Err() != nil {
			return pos, errf(CodeMalformed, "%v", d.stream.Err())
		}
		if d.stream.Done(pos) {
			if pos > d.stream.Limit() {
				return pos, errf(CodeMalformed, "record overruns enclosing limit")
			}
			break
		}

		tagPos := pos
		fieldNumber, wt, n := wire.ConsumeTag(d.stream.Bytes(pos))
		if n <= 0 {
			return pos, errf(CodeMalformed, "truncated or overlong tag at offset %d", tagPos)
		}
		pos += n

		if wt == wire.EndGroup {
			if expectEndGroup < 0 || fieldNumber != expectEndGroup {
				return pos, errf(CodeMalformed, "mismatched end-group tag for field %d at offset %d", fieldNumber, tagPos)
			}
			return pos, nil
		}

		field, ok := table.Lookup(fieldNumber)
		if !ok {
			next, err := d.skipUnknown(msg, tagPos, fieldNumber, wt, pos)
			if err != nil {
				return pos, err
			}
			pos = next
			continue
		}

		if table.HasFastPath() {
			tag := wire.Tag(fieldNumber, wt)
			slot := minitable.FastSlot(tag)
			entry := table.Fast[slot]
			if entry.FieldIndex >= 0 && entry.ExpectedTag == tag {
				next, err := fastpath.Dispatch(d.stream, msg, &table.Fields[entry.FieldIndex], entry.Op, tagPos, pos, d.fastContext())
				if err == nil {
					pos = next
					continue
				}
				if errors.Is(err, fastpath.ErrUnhandled) {
					// Falls through to the general dispatch below, which
					// re-derives everything from field/wt itself.
				} else {
					return pos, d.wrapFastError(err)
				}
			}
		}

		next, err := d.dispatch(msg, field, wt, tagPos, pos)
		if err != nil {
			return pos, err
		}
		pos = next
	}

	if expectEndGroup >= 0 {
		return pos, errf(CodeMalformed, "unterminated group for field %d", expectEndGroup)
	}
	return pos, nil
}

func (d *decoder) wrapFastError(err error) error {
	if de, ok := err.(*Error); ok {
		return de
	}
	if errors.Is(err, fastpath.ErrInvalidUTF8) {
		return errf(CodeBadUTF8, "%v", err)
	}
	return errf(CodeMalformed, "%v", err)
}

func (d *decoder) fastContext() fastpath.Context {
	return fastpath.Context{
		Alias:              d.opts.alias,
		AlwaysValidateUTF8: d.opts.alwaysValidateUTF8,
		Recurse:            d.recurseSub,
	}
}

// recurseSub decodes a length-delimited sub-message's size bytes
// starting at pos into sub using table, enforcing the recursion-depth
// budget. It is passed to fastpath as its
// Recurse callback and used directly by dispatchMessage/dispatchMapEntry
// for the general (non-fast-path) case.
func (d *decoder) recurseSub(sub *message.Message, table *minitable.Table, pos, size int) (int, error) {
	saved, ok := d.stream.PushLimit(pos, size)
	if !ok {
		return pos, errf(CodeMalformed, "length-delimited field escapes enclosing limit")
	}
	if d.depth <= 0 {
		d.stream.PopLimit(saved)
		return pos, errf(CodeMaxDepthExceeded, "max recursion depth of %d exceeded", d.opts.maxDepth)
	}
	d.depth--
	next, err := d.message(sub, table, pos, -1)
	d.depth++
	d.stream.PopLimit(saved)
	if err != nil {
		return pos, err
	}
	return next, nil
}

// recurseGroup is recurseSub's group-delimited counterpart: groups have
// no length prefix, so there is no limit to push; the nested message
// call instead recurses within the same stream and limit, stopping at a
// matching end-group tag.
func (d *decoder) recurseGroup(sub *message.Message, table *minitable.Table, pos int, fieldNumber int32) (int, error) {
	if d.depth <= 0 {
		return pos, errf(CodeMaxDepthExceeded, "max recursion depth of %d exceeded", d.opts.maxDepth)
	}
	d.depth--
	next, err := d.message(sub, table, pos, fieldNumber)
	d.depth++
	return next, err
}

// dispatch is the general per-field decode path, used whenever the fast
// path doesn't apply to this record: the field has no fast-table slot at
// all (a map field, a group field, a field number too large to encode
// into a 1- or 2-byte tag), its slot was claimed by a different field, or
// the fast path deferred via fastpath.ErrUnhandled.
func (d *decoder) dispatch(msg *message.Message, field *minitable.Field, wt wire.Type, tagPos, pos int) (int, error) {
	switch {
	case field.Kind == defs.KindGroup:
		if wt != wire.StartGroup {
			return d.skipUnknown(msg, tagPos, field.Number, wt, pos)
		}
		return d.dispatchGroup(msg, field, pos)

	case field.Mode == minitable.ModeMap:
		if wt != wire.LengthDelim {
			return d.skipUnknown(msg, tagPos, field.Number, wt, pos)
		}
		return d.dispatchMapEntry(msg, field, pos)

	case field.Kind == defs.KindMessage:
		if wt != wire.LengthDelim {
			return d.skipUnknown(msg, tagPos, field.Number, wt, pos)
		}
		return d.dispatchMessage(msg, field, pos)

	default:
		return d.dispatchScalar(msg, field, wt, tagPos, pos)
	}
}

func (d *decoder) dispatchGroup(msg *message.Message, field *minitable.Field, pos int) (int, error) {
	if field.Sub == nil {
		if !d.opts.allowUnlinked {
			return pos, errf(CodeUnlinkedSubMessage, "field %d has no linked group type", field.Number)
		}
		return d.dispatchUnlinkedGroup(msg, field, pos)
	}

	var sub *message.Message
	if field.Mode == minitable.ModeArray {
		sub = message.New(field.Sub, msg.Arena)
	} else {
		sub = msg.MutableSubMessage(field)
	}
	next, err := d.recurseGroup(sub, field.Sub, pos, field.Number)
	if err != nil {
		return pos, err
	}
	if field.Mode == minitable.ModeArray {
		msg.MutableArray(field).AppendMessage(sub)
	}
	return next, nil
}

func (d *decoder) dispatchUnlinkedGroup(msg *message.Message, field *minitable.Field, pos int) (int, error) {
	sub := message.New(emptyTable, msg.Arena)
	next, err := d.recurseGroup(sub, emptyTable, pos, field.Number)
	if err != nil {
		return pos, err
	}
	sm := message.SubMessage{Msg: sub, Unlinked: true}
	if field.Mode == minitable.ModeArray {
		msg.MutableArray(field).AppendSubMessage(sm)
	} else {
		msg.SetSubMessage(field, sm)
	}
	return next, nil
}

func (d *decoder) dispatchMessage(msg *message.Message, field *minitable.Field, pos int) (int, error) {
	size, n := wire.ConsumeSize(d.stream.Bytes(pos))
	if n <= 0 {
		return pos, errf(CodeMalformed, "truncated length-delimited field %d", field.Number)
	}
	pos += n

	if field.Sub == nil {
		if !d.opts.allowUnlinked {
			return pos, errf(CodeUnlinkedSubMessage, "field %d has no linked message type", field.Number)
		}
		sub := message.New(emptyTable, msg.Arena)
		next, err := d.recurseSub(sub, emptyTable, pos, size)
		if err != nil {
			return pos, err
		}
		sm := message.SubMessage{Msg: sub, Unlinked: true}
		if field.Mode == minitable.ModeArray {
			msg.MutableArray(field).AppendSubMessage(sm)
		} else {
			msg.SetSubMessage(field, sm)
		}
		return next, nil
	}

	var sub *message.Message
	if field.Mode == minitable.ModeArray {
		sub = message.New(field.Sub, msg.Arena)
	} else {
		sub = msg.MutableSubMessage(field)
	}
	next, err := d.recurseSub(sub, field.Sub, pos, size)
	if err != nil {
		return pos, err
	}
	if field.Mode == minitable.ModeArray {
		msg.MutableArray(field).AppendMessage(sub)
	}
	return next, nil
}

// dispatchMapEntry parses one map-entry record — a length-delimited
// message with key at field 1 and value at field 2 — and stores the
// result into the field's Map. A later occurrence of the same map key on
// the wire replaces the earlier one.
func (d *decoder) dispatchMapEntry(msg *message.Message, field *minitable.Field, pos int) (int, error) {
	entryStart := pos
	rejected := false
	size, n := wire.ConsumeSize(d.stream.Bytes(pos))
	if n <= 0 {
		return pos, errf(CodeMalformed, "truncated map entry for field %d", field.Number)
	}
	pos += n
	saved, ok := d.stream.PushLimit(pos, size)
	if !ok {
		return pos, errf(CodeMalformed, "map entry for field %d escapes enclosing limit", field.Number)
	}

	key := zeroMapKey(field.MapKeyKind)
	value := zeroValue(field.MapValueKind)

	for !d.stream.Done(pos) {
		fieldNumber, wt, tn := wire.ConsumeTag(d.stream.Bytes(pos))
		if tn <= 0 {
			d.stream.PopLimit(saved)
			return pos, errf(CodeMalformed, "truncated map entry tag")
		}
		pos += tn

		switch fieldNumber {
		case 1:
			v, next, ok := d.readMapKey(field.MapKeyKind, pos)
			if !ok {
				d.stream.PopLimit(saved)
				return pos, errf(CodeMalformed, "malformed map key in field %d", field.Number)
			}
			key, pos = v, next
		case 2:
			if field.MapValueSub != nil {
				size, sn := wire.ConsumeSize(d.stream.Bytes(pos))
				if sn <= 0 {
					d.stream.PopLimit(saved)
					return pos, errf(CodeMalformed, "truncated map value in field %d", field.Number)
				}
				pos += sn
				sub := message.New(field.MapValueSub, msg.Arena)
				next, err := d.recurseSub(sub, field.MapValueSub, pos, size)
				if err != nil {
					d.stream.PopLimit(saved)
					return pos, err
				}
				value, pos = message.SubMessage{Msg: sub}, next
				continue
			}
			v, next, ok := d.readValue(field.MapValueKind, pos)
			if !ok {
				d.stream.PopLimit(saved)
				return pos, errf(CodeMalformed, "malformed map value in field %d", field.Number)
			}
			if field.MapValueEnum != nil && field.MapValueEnum.IsClosed() && !field.MapValueEnum.HasNumber(v.(int32)) {
				rejected = true
				pos = next
				continue
			}
			value, pos = v, next
		default:
			next, err := d.skipValue(pos, wt, fieldNumber)
			if err != nil {
				d.stream.PopLimit(saved)
				return pos, err
			}
			pos = next
		}
	}
	overrun := pos > d.stream.Limit()
	d.stream.PopLimit(saved)
	if overrun {
		return pos, errf(CodeMalformed, "map entry for field %d overruns its length prefix", field.Number)
	}
	if rejected {
		rec := wire.AppendTag(nil, field.Number, wire.LengthDelim)
		msg.AppendUnknown(append(rec, d.stream.Bytes(entryStart)[:pos-entryStart]...))
		return pos, nil
	}
	msg.MutableMap(field).Set(key, value)
	return pos, nil
}

// dispatchScalar handles every non-message, non-group field: the
// ordinary numeric/bool/enum/string/bytes kinds, singular or repeated.
func (d *decoder) dispatchScalar(msg *message.Message, field *minitable.Field, wt wire.Type, tagPos, pos int) (int, error) {
	if field.Kind == defs.KindString || field.Kind == defs.KindBytes {
		if wt != wire.LengthDelim {
			return d.skipUnknown(msg, tagPos, field.Number, wt, pos)
		}
		return d.dispatchBytes(msg, field, pos)
	}

	if wt == wire.Type(field.Kind.WireType()) {
		value, next, ok := d.readValue(field.Kind, pos)
		if !ok {
			return pos, errf(CodeMalformed, "truncated scalar field %d", field.Number)
		}
		if field.EnumRejected(enumNumberOf(value)) {
			msg.AppendUnknown(d.stream.Bytes(tagPos)[:next-tagPos])
			return next, nil
		}
		setOrAppendScalar(msg, field, value)
		return next, nil
	}

	if field.Mode == minitable.ModeArray && field.Kind.IsPackable() && wt == wire.LengthDelim {
		return d.dispatchPacked(msg, field, pos)
	}

	return d.skipUnknown(msg, tagPos, field.Number, wt, pos)
}

func (d *decoder) dispatchBytes(msg *message.Message, field *minitable.Field, pos int) (int, error) {
	size, n := wire.ConsumeSize(d.stream.Bytes(pos))
	if n <= 0 {
		return pos, errf(CodeMalformed, "truncated length-delimited field %d", field.Number)
	}
	pos += n
	data, next, ok := d.stream.ReadStringAliased(pos, size)
	if !ok {
		return pos, errf(CodeMalformed, "length escapes enclosing limit for field %d", field.Number)
	}
	if field.Kind == defs.KindString && (field.ValidateUTF8 || d.opts.alwaysValidateUTF8) && !utf8.Valid(data) {
		return pos, errf(CodeBadUTF8, "invalid UTF-8 in field %d", field.Number)
	}
	setOrAppendScalar(msg, field, d.toStringValue(data))
	return next, nil
}

func (d *decoder) dispatchPacked(msg *message.Message, field *minitable.Field, pos int) (int, error) {
	size, n := wire.ConsumeSize(d.stream.Bytes(pos))
	if n <= 0 {
		return pos, errf(CodeMalformed, "truncated packed field %d", field.Number)
	}
	pos += n
	saved, ok := d.stream.PushLimit(pos, size)
	if !ok {
		return pos, errf(CodeMalformed, "packed field %d escapes enclosing limit", field.Number)
	}
	arr := msg.MutableArray(field)
	for !d.stream.Done(pos) {
		value, next, ok := d.readValue(field.Kind, pos)
		if !ok {
			d.stream.PopLimit(saved)
			return pos, errf(CodeMalformed, "malformed packed element in field %d", field.Number)
		}
		pos = next
		if field.EnumRejected(enumNumberOf(value)) {
			msg.AppendUnknown(wire.AppendVarint(wire.AppendTag(nil, field.Number, wire.Varint), uint64(int64(enumNumberOf(value)))))
			continue
		}
		appendToArray(arr, field.Kind, value)
	}
	overrun := pos > d.stream.Limit()
	d.stream.PopLimit(saved)
	if overrun {
		return pos, errf(CodeMalformed, "packed element in field %d overruns its length prefix", field.Number)
	}
	return pos, nil
}

// skipUnknown skips one record of wire type wt (recursively, for a
// group) and appends its verbatim tag+value bytes, starting at tagPos,
// to msg's unknown-field span.
func (d *decoder) skipUnknown(msg *message.Message, tagPos int, fieldNumber int32, wt wire.Type, pos int) (int, error) {
	next, err := d.skipValue(pos, wt, fieldNumber)
	if err != nil {
		return pos, err
	}
	msg.AppendUnknown(d.stream.Bytes(tagPos)[:next-tagPos])
	return next, nil
}

func (d *decoder) skipValue(pos int, wt wire.Type, fieldNumber int32) (int, error) {
	switch wt {
	case wire.Varint:
		_, n := wire.ConsumeVarint(d.stream.Bytes(pos))
		if n <= 0 {
			return pos, errf(CodeMalformed, "truncated varint at offset %d", pos)
		}
		return pos + n, nil
	case wire.Fixed64:
		_, n := wire.ConsumeFixed64(d.stream.Bytes(pos))
		if n <= 0 {
			return pos, errf(CodeMalformed, "truncated fixed64 at offset %d", pos)
		}
		return pos + n, nil
	case wire.Fixed32:
		_, n := wire.ConsumeFixed32(d.stream.Bytes(pos))
		if n <= 0 {
			return pos, errf(CodeMalformed, "truncated fixed32 at offset %d", pos)
		}
		return pos + n, nil
	case wire.LengthDelim:
		size, n := wire.ConsumeSize(d.stream.Bytes(pos))
		if n <= 0 {
			return pos, errf(CodeMalformed, "truncated length prefix at offset %d", pos)
		}
		pos += n
		if !d.stream.CheckSize(pos, size) {
			return pos, errf(CodeMalformed, "length escapes enclosing limit at offset %d", pos)
		}
		return pos + size, nil
	case wire.StartGroup:
		for {
			if d.stream.Done(pos) {
				return pos, errf(CodeMalformed, "unterminated group for field %d", fieldNumber)
			}
			fn, t, n := wire.ConsumeTag(d.stream.Bytes(pos))
			if n <= 0 {
				return pos, errf(CodeMalformed, "truncated tag at offset %d", pos)
			}
			pos += n
			if t == wire.EndGroup {
				if fn != fieldNumber {
					return pos, errf(CodeMalformed, "mismatched end-group tag for field %d", fieldNumber)
				}
				return pos, nil
			}
			next, err := d.skipValue(pos, t, fn)
			if err != nil {
				return pos, err
			}
			pos = next
		}
	default:
		return pos, errf(CodeMalformed, "unexpected end-group tag at offset %d", pos)
	}
}

// readValue reads one value of kind off the wire at pos, typed as the Go
// representation message.Array/message.Map expect for that kind.
func (d *decoder) readValue(kind defs.Kind, pos int) (any, int, bool) {
	switch kind {
	case defs.KindBool:
		v, n := wire.ConsumeVarint(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return v != 0, pos + n, true
	case defs.KindInt32:
		v, n := wire.ConsumeVarint(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return int32(v), pos + n, true
	case defs.KindUint32:
		v, n := wire.ConsumeVarint(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return uint32(v), pos + n, true
	case defs.KindInt64:
		v, n := wire.ConsumeVarint(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return int64(v), pos + n, true
	case defs.KindUint64:
		v, n := wire.ConsumeVarint(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return v, pos + n, true
	case defs.KindEnum:
		v, n := wire.ConsumeVarint(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return int32(v), pos + n, true
	case defs.KindSint32:
		v, n := wire.ConsumeVarint(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return zigzag.Decode32(uint32(v)), pos + n, true
	case defs.KindSint64:
		v, n := wire.ConsumeVarint(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return zigzag.Decode64(v), pos + n, true
	case defs.KindFixed32:
		v, n := wire.ConsumeFixed32(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return v, pos + n, true
	case defs.KindSfixed32:
		v, n := wire.ConsumeFixed32(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return int32(v), pos + n, true
	case defs.KindFloat:
		v, n := wire.ConsumeFixed32(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return math.Float32frombits(v), pos + n, true
	case defs.KindFixed64:
		v, n := wire.ConsumeFixed64(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return v, pos + n, true
	case defs.KindSfixed64:
		v, n := wire.ConsumeFixed64(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return int64(v), pos + n, true
	case defs.KindDouble:
		v, n := wire.ConsumeFixed64(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		return math.Float64frombits(v), pos + n, true
	case defs.KindString, defs.KindBytes:
		size, n := wire.ConsumeSize(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		pos += n
		data, next, ok := d.stream.ReadStringAliased(pos, size)
		if !ok {
			return nil, pos, false
		}
		return d.toStringValue(data), next, true
	}
	return nil, pos, false
}

func (d *decoder) toStringValue(data []byte) message.String {
	if d.opts.alias {
		return message.String{Data: data, Aliased: true}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return message.String{Data: cp}
}

// readMapKey reads a map-entry's key field. String (the only non-integral
// protobuf map key kind) is read as a plain Go string rather than a
// message.String, since map keys must be comparable to serve as a Go map
// key and message.String's []byte field is not.
func (d *decoder) readMapKey(kind defs.Kind, pos int) (any, int, bool) {
	if kind == defs.KindString || kind == defs.KindBytes {
		size, n := wire.ConsumeSize(d.stream.Bytes(pos))
		if n <= 0 {
			return nil, pos, false
		}
		pos += n
		data, next, ok := d.stream.ReadStringAliased(pos, size)
		if !ok {
			return nil, pos, false
		}
		return string(data), next, true
	}
	return d.readValue(kind, pos)
}

// zeroMapKey mirrors zeroValue for map keys, with the same plain-string
// substitution readMapKey uses.
func zeroMapKey(kind defs.Kind) any {
	if kind == defs.KindString || kind == defs.KindBytes {
		return ""
	}
	return zeroValue(kind)
}

// zeroValue returns a map key or value's zero representation, used when a
// map-entry record omits its key or value field.
func zeroValue(kind defs.Kind) any {
	switch kind {
	case defs.KindBool:
		return false
	case defs.KindInt32, defs.KindSint32, defs.KindSfixed32, defs.KindEnum:
		return int32(0)
	case defs.KindUint32, defs.KindFixed32:
		return uint32(0)
	case defs.KindInt64, defs.KindSint64, defs.KindSfixed64:
		return int64(0)
	case defs.KindUint64, defs.KindFixed64:
		return uint64(0)
	case defs.KindFloat:
		return float32(0)
	case defs.KindDouble:
		return float64(0)
	case defs.KindString, defs.KindBytes:
		return message.String{}
	case defs.KindMessage:
		return message.SubMessage{}
	}
	return nil
}

func enumNumberOf(value any) int32 {
	if v, ok := value.(int32); ok {
		return v
	}
	return 0
}

// setOrAppendScalar writes value (produced by readValue, typed per
// field.Kind's Go representation) into msg at field: a scalar Set for a
// singular field, an Append for a repeated one.
func setOrAppendScalar(msg *message.Message, field *minitable.Field, value any) {
	if field.Mode == minitable.ModeArray {
		appendToArray(msg.MutableArray(field), field.Kind, value)
		return
	}
	switch v := value.(type) {
	case bool:
		msg.SetBool(field, v)
	case int32:
		if field.Kind == defs.KindEnum {
			msg.SetEnum(field, v)
		} else {
			msg.SetInt32(field, v)
		}
	case uint32:
		msg.SetUint32(field, v)
	case int64:
		msg.SetInt64(field, v)
	case uint64:
		msg.SetUint64(field, v)
	case float32:
		msg.SetFloat32(field, v)
	case float64:
		msg.SetFloat64(field, v)
	case message.String:
		msg.SetString(field, v)
	}
}

func appendToArray(arr *message.Array, kind defs.Kind, value any) {
	switch v := value.(type) {
	case bool:
		arr.AppendBool(v)
	case int32:
		if kind == defs.KindEnum {
			arr.AppendEnum(v)
		} else {
			arr.AppendInt32(v)
		}
	case uint32:
		arr.AppendUint32(v)
	case int64:
		arr.AppendInt64(v)
	case uint64:
		arr.AppendUint64(v)
	case float32:
		arr.AppendFloat32(v)
	case float64:
		arr.AppendFloat64(v)
	case message.String:
		arr.AppendString(v)
	}
}
