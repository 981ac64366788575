package encode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protocore/protocore/decode"
	"github.com/protocore/protocore/encode"
	"github.com/protocore/protocore/internal/arena"
	"github.com/protocore/protocore/internal/testutil"
	"github.com/protocore/protocore/message"
)

func TestEncodeScalarsRoundTrip(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	i32 := testutil.Field(t, sch.Table, "i32")
	name := testutil.Field(t, sch.Table, "name")
	flag := testutil.Field(t, sch.Table, "flag")

	msg := message.New(sch.Table, &arena.Arena{})
	msg.SetInt32(i32, 42)
	msg.SetString(name, message.String{Data: []byte("hi")})
	msg.SetBool(flag, true)

	buf, err := encode.Marshal(msg)
	require.NoError(t, err)

	out := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, out))

	require.Equal(t, int32(42), out.GetInt32(i32))
	s, ok := out.GetString(name)
	require.True(t, ok)
	require.Equal(t, "hi", string(s.Data))
	require.True(t, out.GetBool(flag))
}

func TestEncodeProto3ZeroValueOmitted(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	i32 := testutil.Field(t, sch.Table, "i32")

	msg := message.New(sch.Table, &arena.Arena{})
	msg.SetInt32(i32, 0) // explicit zero, no hasbit on a proto3 scalar

	buf, err := encode.Marshal(msg)
	require.NoError(t, err)
	require.Empty(t, buf)
}

func TestEncodeRepeatedPacked(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	nums := testutil.Field(t, sch.Table, "nums")

	msg := message.New(sch.Table, &arena.Arena{})
	arr := msg.MutableArray(nums)
	arr.AppendInt32(1)
	arr.AppendInt32(2)
	arr.AppendInt32(300)

	buf, err := encode.Marshal(msg)
	require.NoError(t, err)

	out := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, out))
	outArr := out.GetArray(nums)
	require.Equal(t, 3, outArr.Len())
	require.Equal(t, int32(300), outArr.Int32(2))
}

func TestEncodeNestedMessage(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	child := testutil.Field(t, sch.Table, "child")
	name := testutil.Field(t, sch.Table, "name")

	msg := message.New(sch.Table, &arena.Arena{})
	sub := msg.MutableSubMessage(child)
	sub.SetString(name, message.String{Data: []byte("nested")})

	buf, err := encode.Marshal(msg)
	require.NoError(t, err)

	out := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, out))
	sm, ok := out.GetSubMessage(child)
	require.True(t, ok)
	s, ok := sm.Msg.GetString(name)
	require.True(t, ok)
	require.Equal(t, "nested", string(s.Data))
}

func TestEncodeMapField(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	attrs := testutil.Field(t, sch.Table, "attrs")

	msg := message.New(sch.Table, &arena.Arena{})
	m := msg.MutableMap(attrs)
	m.Set("a", int32(1))
	m.Set("b", int32(2))

	buf, err := encode.Marshal(msg)
	require.NoError(t, err)

	out := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, out))
	outMap := out.GetMap(attrs)
	require.Equal(t, 2, outMap.Len())
	v, ok := outMap.Get("a")
	require.True(t, ok)
	require.Equal(t, int32(1), v)
}

func TestEncodeUnknownFieldsPreserved(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)

	msg := message.New(sch.Table, &arena.Arena{})
	msg.AppendUnknown([]byte{0x01, 0x02})

	buf, err := encode.Marshal(msg)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, buf)
}

func TestEncodeDecodeRoundTripEveryWireType(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)

	msg := message.New(sch.Table, &arena.Arena{})
	msg.SetInt32(testutil.Field(t, sch.Table, "i32"), -7)
	msg.SetString(testutil.Field(t, sch.Table, "name"), message.String{Data: []byte("x")})
	msg.SetBool(testutil.Field(t, sch.Table, "flag"), true)
	msg.SetInt64(testutil.Field(t, sch.Table, "big"), 1<<40)
	msg.SetString(testutil.Field(t, sch.Table, "data"), message.String{Data: []byte{1, 2, 3}})
	msg.SetInt32(testutil.Field(t, sch.Table, "zz32"), -100)
	msg.SetInt64(testutil.Field(t, sch.Table, "zz64"), -100000)
	msg.SetUint32(testutil.Field(t, sch.Table, "f32"), 0xdeadbeef)
	msg.SetUint64(testutil.Field(t, sch.Table, "f64"), 0x0102030405060708)
	msg.SetFloat32(testutil.Field(t, sch.Table, "ff"), 3.5)
	msg.SetFloat64(testutil.Field(t, sch.Table, "dd"), 2.71828)

	buf, err := encode.Marshal(msg)
	require.NoError(t, err)

	out := message.New(sch.Table, &arena.Arena{})
	require.NoError(t, decode.Decode(buf, out))
	require.True(t, message.Equal(msg, out))
}
