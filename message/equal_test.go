package message_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protocore/protocore/internal/arena"
	"github.com/protocore/protocore/internal/testutil"
	"github.com/protocore/protocore/message"
)

func TestEqualIdenticalScalars(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	i32 := testutil.Field(t, sch.Table, "i32")

	a := message.New(sch.Table, &arena.Arena{})
	b := message.New(sch.Table, &arena.Arena{})
	a.SetInt32(i32, 5)
	b.SetInt32(i32, 5)
	require.True(t, message.Equal(a, b))

	b.SetInt32(i32, 6)
	require.False(t, message.Equal(a, b))
}

func TestEqualNilHandling(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	a := message.New(sch.Table, &arena.Arena{})
	require.True(t, message.Equal(nil, nil))
	require.False(t, message.Equal(a, nil))
	require.False(t, message.Equal(nil, a))
}

func TestEqualArraysAndMaps(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	nums := testutil.Field(t, sch.Table, "nums")
	attrs := testutil.Field(t, sch.Table, "attrs")

	a := message.New(sch.Table, &arena.Arena{})
	b := message.New(sch.Table, &arena.Arena{})
	for _, m := range []*message.Message{a, b} {
		arr := m.MutableArray(nums)
		arr.AppendInt32(1)
		arr.AppendInt32(2)
		mp := m.MutableMap(attrs)
		mp.Set("x", int32(9))
	}
	require.True(t, message.Equal(a, b))

	b.MutableArray(nums).AppendInt32(3)
	require.False(t, message.Equal(a, b))
}

func TestEqualUnknownFieldsOrderInsensitivePerFieldNumber(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	a := message.New(sch.Table, &arena.Arena{})
	b := message.New(sch.Table, &arena.Arena{})

	// Field 900 appears once, field 901 appears once, in opposite order
	// between a and b: this should still compare equal since Equal groups
	// unknown records by field number before comparing.
	rec := func(num int32, v uint64) []byte {
		var out []byte
		tag := uint64(num)<<3 | 0
		for tag >= 0x80 {
			out = append(out, byte(tag)|0x80)
			tag >>= 7
		}
		out = append(out, byte(tag))
		for v >= 0x80 {
			out = append(out, byte(v)|0x80)
			v >>= 7
		}
		return append(out, byte(v))
	}

	a.AppendUnknown(rec(900, 1))
	a.AppendUnknown(rec(901, 2))
	b.AppendUnknown(rec(901, 2))
	b.AppendUnknown(rec(900, 1))

	require.True(t, message.Equal(a, b))
}

func TestEqualDifferentTablesNeverEqual(t *testing.T) {
	t.Parallel()
	sch1 := testutil.NewWidgetSchema(t)
	sch2 := testutil.NewLegacySchema(t)

	a := message.New(sch1.Table, &arena.Arena{})
	b := message.New(sch2.Table, &arena.Arena{})
	require.False(t, message.Equal(a, b))
}
