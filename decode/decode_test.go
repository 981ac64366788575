package decode_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/protocore/protocore/decode"
	"github.com/protocore/protocore/internal/arena"
	"github.com/protocore/protocore/internal/hashtable"
	"github.com/protocore/protocore/internal/testutil"
	"github.com/protocore/protocore/message"
	"github.com/protocore/protocore/minitable"
)

func TestDecodeScalarVarint(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	f := testutil.Field(t, sch.Table, "i32")

	// The canonical "field 1, varint 150" example from the wire-format
	// description: 0x08 0x96 0x01.
	buf := protowire.AppendTag(nil, protowire.Number(f.Number), protowire.VarintType)
	buf = protowire.AppendVarint(buf, 150)

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg))
	require.Equal(t, int32(150), msg.GetInt32(f))
}

func TestDecodeStringAndBytes(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	name := testutil.Field(t, sch.Table, "name")
	data := testutil.Field(t, sch.Table, "data")

	buf := protowire.AppendTag(nil, protowire.Number(name.Number), protowire.BytesType)
	buf = protowire.AppendString(buf, "hello")
	buf = protowire.AppendTag(buf, protowire.Number(data.Number), protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte{0xde, 0xad, 0xbe, 0xef})

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg))

	s, ok := msg.GetString(name)
	require.True(t, ok)
	require.Equal(t, "hello", string(s.Data))

	b, ok := msg.GetString(data)
	require.True(t, ok)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b.Data)
}

func TestDecodePackedRepeated(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	nums := testutil.Field(t, sch.Table, "nums")

	var packed []byte
	packed = protowire.AppendVarint(packed, 1)
	packed = protowire.AppendVarint(packed, 2)
	packed = protowire.AppendVarint(packed, 300)

	buf := protowire.AppendTag(nil, protowire.Number(nums.Number), protowire.BytesType)
	buf = protowire.AppendBytes(buf, packed)

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg))

	arr := msg.GetArray(nums)
	require.NotNil(t, arr)
	require.Equal(t, 3, arr.Len())
	require.Equal(t, int32(1), arr.Int32(0))
	require.Equal(t, int32(2), arr.Int32(1))
	require.Equal(t, int32(300), arr.Int32(2))
}

func TestDecodeUnpackedOnPackedField(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	// nums is declared packed, but the decoder must also accept the
	// unpacked wire form.
	nums := testutil.Field(t, sch.Table, "nums")

	var buf []byte
	for _, v := range []uint64{7, 8, 9} {
		buf = protowire.AppendTag(buf, protowire.Number(nums.Number), protowire.VarintType)
		buf = protowire.AppendVarint(buf, v)
	}

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg))

	arr := msg.GetArray(nums)
	require.NotNil(t, arr)
	require.Equal(t, []int32{7, 8, 9}, []int32{arr.Int32(0), arr.Int32(1), arr.Int32(2)})
}

func TestDecodeNestedMessage(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	child := testutil.Field(t, sch.Table, "child")
	childName := testutil.Field(t, sch.Table, "name")

	var inner []byte
	inner = protowire.AppendTag(inner, protowire.Number(childName.Number), protowire.BytesType)
	inner = protowire.AppendString(inner, "nested")

	buf := protowire.AppendTag(nil, protowire.Number(child.Number), protowire.BytesType)
	buf = protowire.AppendBytes(buf, inner)

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg))

	sm, ok := msg.GetSubMessage(child)
	require.True(t, ok)
	require.False(t, sm.Unlinked)
	s, ok := sm.Msg.GetString(childName)
	require.True(t, ok)
	require.Equal(t, "nested", string(s.Data))
}

func TestDecodeMapField(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	attrs := testutil.Field(t, sch.Table, "attrs")

	entry := func(k string, v int32) []byte {
		var e []byte
		e = protowire.AppendTag(e, 1, protowire.BytesType)
		e = protowire.AppendString(e, k)
		e = protowire.AppendTag(e, 2, protowire.VarintType)
		e = protowire.AppendVarint(e, uint64(uint32(v)))
		return e
	}

	var buf []byte
	for _, kv := range []struct {
		k string
		v int32
	}{{"a", 1}, {"b", 2}} {
		buf = protowire.AppendTag(buf, protowire.Number(attrs.Number), protowire.BytesType)
		buf = protowire.AppendBytes(buf, entry(kv.k, kv.v))
	}

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg))

	m := msg.GetMap(attrs)
	require.NotNil(t, m)
	require.Equal(t, 2, m.Len())
	va, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, int32(1), va)
	vb, ok := m.Get("b")
	require.True(t, ok)
	require.Equal(t, int32(2), vb)
}

func TestDecodeMapEntryMissingKeyDefaultsToZero(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	attrs := testutil.Field(t, sch.Table, "attrs")

	// Entry with only a value, no key: the key defaults to "".
	var entry []byte
	entry = protowire.AppendTag(entry, 2, protowire.VarintType)
	entry = protowire.AppendVarint(entry, 42)

	buf := protowire.AppendTag(nil, protowire.Number(attrs.Number), protowire.BytesType)
	buf = protowire.AppendBytes(buf, entry)

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg))

	m := msg.GetMap(attrs)
	require.NotNil(t, m)
	v, ok := m.Get("")
	require.True(t, ok)
	require.Equal(t, int32(42), v)
}

func TestDecodeOneof(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	choiceA := testutil.Field(t, sch.Table, "choice_a")
	choiceB := testutil.Field(t, sch.Table, "choice_b")

	buf := protowire.AppendTag(nil, protowire.Number(choiceB.Number), protowire.BytesType)
	buf = protowire.AppendString(buf, "picked-b")

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg))

	require.False(t, msg.HasField(choiceA))
	require.True(t, msg.HasField(choiceB))
	s, _ := msg.GetString(choiceB)
	require.Equal(t, "picked-b", string(s.Data))
}

func TestDecodeUnknownFieldPreserved(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)

	const unknownFieldNumber = 999
	buf := protowire.AppendTag(nil, unknownFieldNumber, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 7)

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg))
	require.Equal(t, buf, msg.Unknown)
}

func TestDecodeWireTypeMismatchTreatedAsUnknown(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	i32 := testutil.Field(t, sch.Table, "i32")

	// i32 is declared varint; encode it with the fixed32 wire type instead.
	buf := protowire.AppendTag(nil, protowire.Number(i32.Number), protowire.Fixed32Type)
	buf = protowire.AppendFixed32(buf, 123)

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg))
	require.False(t, msg.HasField(i32))
	require.Equal(t, buf, msg.Unknown)
}

func TestDecodeInvalidUTF8Rejected(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	name := testutil.Field(t, sch.Table, "name")

	buf := protowire.AppendTag(nil, protowire.Number(name.Number), protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte{0xff, 0xfe})

	msg := message.New(sch.Table, &arena.Arena{})
	err := decode.Decode(buf, msg)
	require.Error(t, err)
	var derr *decode.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, decode.CodeBadUTF8, derr.Code)
}

func TestDecodeOverlongVarintRejected(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	i32 := testutil.Field(t, sch.Table, "i32")

	buf := protowire.AppendTag(nil, protowire.Number(i32.Number), protowire.VarintType)
	// 11 bytes, all continuation bits set: an overlong varint.
	buf = append(buf, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01)

	msg := message.New(sch.Table, &arena.Arena{})
	err := decode.Decode(buf, msg)
	require.Error(t, err)
	var derr *decode.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, decode.CodeMalformed, derr.Code)
}

func TestDecodeTruncatedLengthDelimRejected(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	name := testutil.Field(t, sch.Table, "name")

	buf := protowire.AppendTag(nil, protowire.Number(name.Number), protowire.BytesType)
	buf = protowire.AppendVarint(buf, 10) // claims 10 bytes, supplies none

	var a arena.Arena
	var discarded bool
	a.AddCleanup(func() { discarded = true })

	msg := message.New(sch.Table, &a)
	err := decode.Decode(buf, msg)
	require.Error(t, err)

	// The documented recovery for a failed parse: discard the partial
	// result by releasing it.
	msg.Release()
	require.True(t, discarded)
}

func TestDecodeMaxDepthExceeded(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	child := testutil.Field(t, sch.Table, "child")

	// Build a chain of 150 nested "child" messages, exceeding the default
	// depth budget of 100.
	var body []byte
	for i := 0; i < 150; i++ {
		buf := protowire.AppendTag(nil, protowire.Number(child.Number), protowire.BytesType)
		buf = protowire.AppendBytes(buf, body)
		body = buf
	}

	msg := message.New(sch.Table, &arena.Arena{})
	err := decode.Decode(body, msg)
	require.Error(t, err)
	var derr *decode.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, decode.CodeMaxDepthExceeded, derr.Code)
}

func TestDecodeMissingRequiredField(t *testing.T) {
	t.Parallel()
	sch := testutil.NewLegacySchema(t)

	// No "id" field at all: CheckRequired should fail when requested.
	msg := message.New(sch.Table, &arena.Arena{})
	err := decode.Decode(nil, msg, decode.WithCheckRequired())
	require.Error(t, err)
	var derr *decode.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, decode.CodeMissingRequired, derr.Code)

	// Without the option, decoding the same (empty) input succeeds.
	msg2 := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(nil, msg2))
}

func TestDecodeGroup(t *testing.T) {
	t.Parallel()
	sch := testutil.NewLegacySchema(t)
	id := testutil.Field(t, sch.Table, "id")
	detail := testutil.Field(t, sch.Table, "detail")
	detailMD, ok := sch.Table.Descriptor.FieldByNumber(detail.Number)
	require.True(t, ok)
	detailMsg, ok := detailMD.Message()
	require.True(t, ok)
	x, ok := detailMsg.FieldByNumber(1)
	require.True(t, ok)

	var buf []byte
	buf = protowire.AppendTag(buf, protowire.Number(id.Number), protowire.VarintType)
	buf = protowire.AppendVarint(buf, 5)
	buf = protowire.AppendTag(buf, protowire.Number(detail.Number), protowire.StartGroupType)
	buf = protowire.AppendTag(buf, protowire.Number(x.Number()), protowire.VarintType)
	buf = protowire.AppendVarint(buf, 9)
	buf = protowire.AppendTag(buf, protowire.Number(detail.Number), protowire.EndGroupType)

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg, decode.WithCheckRequired()))
	require.Equal(t, int32(5), msg.GetInt32(id))

	sm, ok := msg.GetSubMessage(detail)
	require.True(t, ok)
	require.False(t, sm.Unlinked)
	xField := testutil.Field(t, detail.Sub, "x")
	require.Equal(t, int32(9), sm.Msg.GetInt32(xField))
}

func TestDecodeClosedEnumRejectedValueBecomesUnknown(t *testing.T) {
	t.Parallel()
	sch := testutil.NewLegacySchema(t)
	status := testutil.Field(t, sch.Table, "status")

	buf := protowire.AppendTag(nil, protowire.Number(status.Number), protowire.VarintType)
	buf = protowire.AppendVarint(buf, 99) // not a member of Status

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg))
	require.False(t, msg.HasField(status))
	require.Equal(t, buf, msg.Unknown)
}

func TestDecodeOpenEnumAcceptsAnyValue(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	color := testutil.Field(t, sch.Table, "color")

	buf := protowire.AppendTag(nil, protowire.Number(color.Number), protowire.VarintType)
	buf = protowire.AppendVarint(buf, 77) // not declared, but Color is open (proto3)

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg))
	require.True(t, msg.HasField(color))
	require.Equal(t, int32(77), msg.GetEnum(color))
}

func TestDecodeUnlinkedSubMessage(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	child := testutil.Field(t, sch.Table, "child")

	// Simulate an unlinked field by decoding against a field whose Sub is
	// nil: build a throwaway table that mirrors "child" but strips Sub.
	unlinked := *child
	unlinked.Sub = nil
	custom := *sch.Table
	custom.ByNumber = hashtable.NewInt[*minitable.Field]()
	custom.ByNumber.Set(uint64(unlinked.Number), &unlinked)
	custom.Fields = []minitable.Field{unlinked}
	custom.TableMask = 0xff // the copied fast table indexes the original Fields

	var inner []byte
	inner = protowire.AppendTag(inner, 1, protowire.VarintType)
	inner = protowire.AppendVarint(inner, 1)

	buf := protowire.AppendTag(nil, protowire.Number(unlinked.Number), protowire.BytesType)
	buf = protowire.AppendBytes(buf, inner)

	msg := message.New(&custom, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, msg, decode.WithAllowUnlinked()))

	sm, ok := msg.GetSubMessage(&unlinked)
	require.True(t, ok)
	require.True(t, sm.Unlinked)
	require.NotEmpty(t, sm.Msg.Unknown)
}

func TestDecodeWithoutAllowUnlinkedErrors(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	child := testutil.Field(t, sch.Table, "child")

	unlinked := *child
	unlinked.Sub = nil
	custom := *sch.Table
	custom.ByNumber = hashtable.NewInt[*minitable.Field]()
	custom.ByNumber.Set(uint64(unlinked.Number), &unlinked)
	custom.Fields = []minitable.Field{unlinked}
	custom.TableMask = 0xff // the copied fast table indexes the original Fields

	buf := protowire.AppendTag(nil, protowire.Number(unlinked.Number), protowire.BytesType)
	buf = protowire.AppendBytes(buf, nil)

	msg := message.New(&custom, &arena.Arena{})
	err := decode.Decode(buf, msg)
	require.Error(t, err)
	var derr *decode.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, decode.CodeUnlinkedSubMessage, derr.Code)
}

func TestDecodeMergeAccumulatesRepeatedAcrossCalls(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	tags := testutil.Field(t, sch.Table, "tags")

	buf1 := protowire.AppendTag(nil, protowire.Number(tags.Number), protowire.BytesType)
	buf1 = protowire.AppendString(buf1, "one")
	buf2 := protowire.AppendTag(nil, protowire.Number(tags.Number), protowire.BytesType)
	buf2 = protowire.AppendString(buf2, "two")

	msg := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf1, msg))
	require.NoError(t, decode.Decode(buf2, msg))

	arr := msg.GetArray(tags)
	require.Equal(t, 2, arr.Len())
	require.Equal(t, "one", string(arr.String(0).Data))
	require.Equal(t, "two", string(arr.String(1).Data))
}
