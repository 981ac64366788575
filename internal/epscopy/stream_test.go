package epscopy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protocore/protocore/internal/epscopy"
)

func TestDoneAtLogicalEnd(t *testing.T) {
	t.Parallel()
	s := epscopy.New([]byte{1, 2, 3})
	require.False(t, s.Done(0))
	require.False(t, s.Done(2))
	require.True(t, s.Done(3))
}

func TestBytesClampedAtLogicalEnd(t *testing.T) {
	t.Parallel()
	// The slop padding is reserved capacity, never exposed: a primitive
	// reader must see truncation at the logical end, not zero bytes.
	s := epscopy.New([]byte{1, 2, 3})
	require.Empty(t, s.Bytes(3))
	require.Nil(t, s.Bytes(10))
}

func TestBytesVisibleBeyondInnerLimit(t *testing.T) {
	t.Parallel()
	// A pushed limit bounds Done, not Bytes: a bounded primitive read that
	// starts inside the limit may run past it without a per-byte check,
	// and the overrun is caught at Done time by the caller.
	s := epscopy.New([]byte{1, 2, 3, 4, 5})
	saved, ok := s.PushLimit(0, 2)
	require.True(t, ok)
	require.Len(t, s.Bytes(1), 4)
	s.PopLimit(saved)
}

func TestPushPopLimit(t *testing.T) {
	t.Parallel()
	s := epscopy.New([]byte{1, 2, 3, 4, 5})
	saved, ok := s.PushLimit(1, 2) // bytes [1,3)
	require.True(t, ok)
	require.Equal(t, 3, s.Limit())
	require.False(t, s.Done(1))
	require.True(t, s.Done(3))
	s.PopLimit(saved)
	require.Equal(t, 5, s.Limit())
}

func TestPushLimitEscapingInputFails(t *testing.T) {
	t.Parallel()
	s := epscopy.New([]byte{1, 2, 3})
	_, ok := s.PushLimit(0, 10)
	require.False(t, ok)
	require.Error(t, s.Err())
}

func TestPushLimitEscapingOuterLimitFails(t *testing.T) {
	t.Parallel()
	s := epscopy.New([]byte{1, 2, 3, 4, 5})
	saved, ok := s.PushLimit(0, 2) // bytes [0,2)
	require.True(t, ok)
	_, ok = s.PushLimit(0, 3) // would reach byte 3, past the [0,2) limit
	require.False(t, ok)
	s.PopLimit(saved)
}

func TestCheckSize(t *testing.T) {
	t.Parallel()
	s := epscopy.New([]byte{1, 2, 3, 4, 5})
	require.True(t, s.CheckSize(1, 3))
	require.False(t, s.CheckSize(1, 10))
	require.Error(t, s.Err())
}

func TestReadStringAliasedPointsIntoInput(t *testing.T) {
	t.Parallel()
	input := []byte("hello world")
	s := epscopy.New(input)
	data, next, ok := s.ReadStringAliased(0, 5)
	require.True(t, ok)
	require.Equal(t, "hello", string(data))
	require.Equal(t, 5, next)
}

func TestReadStringAliasedTruncated(t *testing.T) {
	t.Parallel()
	s := epscopy.New([]byte("hi"))
	_, _, ok := s.ReadStringAliased(0, 10)
	require.False(t, ok)
}
