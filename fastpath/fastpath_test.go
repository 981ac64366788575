package fastpath_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protocore/protocore/fastpath"
	"github.com/protocore/protocore/internal/arena"
	"github.com/protocore/protocore/internal/epscopy"
	"github.com/protocore/protocore/internal/testutil"
	"github.com/protocore/protocore/internal/wire"
	"github.com/protocore/protocore/message"
	"github.com/protocore/protocore/minitable"
)

func noopRecurse(*message.Message, *minitable.Table, int, int) (int, error) {
	return 0, nil
}

func TestDispatchScalarTailLoopsRepeatedField(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	field := testutil.Field(t, sch.Table, "nums")
	// nums is repeated+packed, but an encoder may still emit unpacked
	// records for it; the fast path's tail loop must consume a run of
	// identically-tagged varint records regardless.
	var buf []byte
	buf = wire.AppendTag(buf, field.Number, wire.Varint)
	buf = wire.AppendVarint(buf, 10)
	buf = wire.AppendTag(buf, field.Number, wire.Varint)
	buf = wire.AppendVarint(buf, 20)
	buf = wire.AppendTag(buf, field.Number, wire.Varint)
	buf = wire.AppendVarint(buf, 30)

	stream := epscopy.New(buf)
	_, tagN := peelTag(buf)
	pos, err := fastpath.Dispatch(stream, message.New(sch.Table, &arena.Arena{}), field, minitable.OpVarint, 0, tagN, fastpath.Context{})
	require.NoError(t, err)
	require.Equal(t, len(buf), pos)
}

func TestDispatchScalarSetsSingularField(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	field := testutil.Field(t, sch.Table, "i32")

	var buf []byte
	buf = wire.AppendTag(buf, field.Number, wire.Varint)
	buf = wire.AppendVarint(buf, 42)

	stream := epscopy.New(buf)
	_, tagN := peelTag(buf)
	msg := message.New(sch.Table, &arena.Arena{})
	pos, err := fastpath.Dispatch(stream, msg, field, minitable.OpVarint, 0, tagN, fastpath.Context{})
	require.NoError(t, err)
	require.Equal(t, len(buf), pos)
	require.Equal(t, int32(42), msg.GetInt32(field))
}

func TestDispatchBytesAliasesOrCopies(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	field := testutil.Field(t, sch.Table, "name")

	var buf []byte
	buf = wire.AppendTag(buf, field.Number, wire.LengthDelim)
	buf = wire.AppendVarint(buf, 5)
	buf = append(buf, "hello"...)

	_, tagN := peelTag(buf)

	stream := epscopy.New(buf)
	msg := message.New(sch.Table, &arena.Arena{})
	pos, err := fastpath.Dispatch(stream, msg, field, minitable.OpBytes, 0, tagN, fastpath.Context{Alias: true})
	require.NoError(t, err)
	require.Equal(t, len(buf), pos)
	got, ok := msg.GetString(field)
	require.True(t, ok)
	require.Equal(t, "hello", string(got.Data))
	require.True(t, got.Aliased)
}

func TestDispatchBytesRejectsInvalidUTF8WhenRequired(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	field := testutil.Field(t, sch.Table, "name") // proto3 string: ValidateUTF8 true
	require.True(t, field.ValidateUTF8)

	var buf []byte
	buf = wire.AppendTag(buf, field.Number, wire.LengthDelim)
	buf = wire.AppendVarint(buf, 2)
	buf = append(buf, 0xff, 0xfe)

	_, tagN := peelTag(buf)
	stream := epscopy.New(buf)
	msg := message.New(sch.Table, &arena.Arena{})
	_, err := fastpath.Dispatch(stream, msg, field, minitable.OpBytes, 0, tagN, fastpath.Context{})
	require.ErrorIs(t, err, fastpath.ErrInvalidUTF8)
}

func TestDispatchPackedReadsArray(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	field := testutil.Field(t, sch.Table, "nums")

	var body []byte
	body = wire.AppendVarint(body, 1)
	body = wire.AppendVarint(body, 2)
	body = wire.AppendVarint(body, 3)
	var buf []byte
	buf = wire.AppendTag(buf, field.Number, wire.LengthDelim)
	buf = wire.AppendVarint(buf, uint64(len(body)))
	buf = append(buf, body...)

	_, tagN := peelTag(buf)
	stream := epscopy.New(buf)
	msg := message.New(sch.Table, &arena.Arena{})
	pos, err := fastpath.Dispatch(stream, msg, field, minitable.OpBytes, 0, tagN, fastpath.Context{})
	require.NoError(t, err)
	require.Equal(t, len(buf), pos)

	arr := msg.MutableArray(field)
	require.Equal(t, 3, arr.Len())
	require.Equal(t, int32(1), arr.Int32(0))
	require.Equal(t, int32(2), arr.Int32(1))
	require.Equal(t, int32(3), arr.Int32(2))
}

func TestDispatchSubMessageInvokesRecurse(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	field := testutil.Field(t, sch.Table, "child")

	body := []byte{1, 2, 3}
	var buf []byte
	buf = wire.AppendTag(buf, field.Number, wire.LengthDelim)
	buf = wire.AppendVarint(buf, uint64(len(body)))
	buf = append(buf, body...)

	_, tagN := peelTag(buf)
	stream := epscopy.New(buf)
	msg := message.New(sch.Table, &arena.Arena{})

	called := false
	recurse := func(sub *message.Message, tbl *minitable.Table, pos, size int) (int, error) {
		called = true
		require.Equal(t, len(body), size)
		return pos + size, nil
	}
	pos, err := fastpath.Dispatch(stream, msg, field, minitable.OpSubMessage, 0, tagN, fastpath.Context{Recurse: recurse})
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, len(buf), pos)
	require.True(t, msg.HasField(field))
}

func TestDispatchSubMessageUnlinkedReturnsUnhandled(t *testing.T) {
	t.Parallel()
	sch := testutil.NewWidgetSchema(t)
	field := *testutil.Field(t, sch.Table, "child")
	field.Sub = nil // simulate an unlinked field reaching the fast path

	var buf []byte
	buf = wire.AppendTag(buf, field.Number, wire.LengthDelim)
	buf = wire.AppendVarint(buf, 0)

	_, tagN := peelTag(buf)
	stream := epscopy.New(buf)
	msg := message.New(sch.Table, &arena.Arena{})
	_, err := fastpath.Dispatch(stream, msg, &field, minitable.OpSubMessage, 0, tagN, fastpath.Context{Recurse: noopRecurse})
	require.ErrorIs(t, err, fastpath.ErrUnhandled)
}

func TestDispatchScalarRejectsUnknownClosedEnum(t *testing.T) {
	t.Parallel()
	sch := testutil.NewLegacySchema(t)
	field := testutil.Field(t, sch.Table, "status")
	require.NotNil(t, field.Enum)
	require.True(t, field.Enum.IsClosed())

	var buf []byte
	buf = wire.AppendTag(buf, field.Number, wire.Varint)
	buf = wire.AppendVarint(buf, 99) // not a member of test.Status

	_, tagN := peelTag(buf)
	stream := epscopy.New(buf)
	msg := message.New(sch.Table, &arena.Arena{})
	pos, err := fastpath.Dispatch(stream, msg, field, minitable.OpVarint, 0, tagN, fastpath.Context{})
	require.NoError(t, err)
	require.Equal(t, len(buf), pos)
	require.False(t, msg.HasField(field), "a closed-enum reject must not set the field")
	require.Equal(t, buf, msg.Unknown)
}

func peelTag(buf []byte) (tag uint64, n int) {
	tag, n = wire.ConsumeVarint(buf)
	return tag, n
}
