// Package epscopy implements an "eps-copy" input stream: a view over an
// input buffer that guarantees a small slop region of safely-readable
// bytes past the logical end of any current length-delimited range, so
// that bounded primitive reads (a tag, a varint, a fixed32/64) never need a
// per-byte bounds check.
//
// A chain of discontiguous chunks refilled through a callback is the more
// general shape this pattern supports, but this package's only caller
// always hands over one contiguous buffer up front. So Stream degenerates
// the "needs refill" case to "pad once at construction time, then work
// over a single buffer with nested limits"; see DESIGN.md.
package epscopy

// Slop is the number of bytes guaranteed readable past the stream's
// logical end without a bounds check.
const Slop = 16

// Stream is a bounds-checked cursor over an input buffer with a stack of
// nested length-delimited limits.
type Stream struct {
	buf   []byte // padded: len(buf) >= logicalLen+Slop
	end   int    // logical end of the whole message (not a sub-limit)
	limit int    // end of the current innermost pushed range
	err   error
}

// New wraps data for eps-copy-style reading. data is copied into a padded
// buffer if it doesn't already have Slop bytes of spare capacity: Slop
// bytes of zero padding always exist past the logical end, rather than
// relying on OS page alignment, since Go gives no such guarantee over
// arbitrary slices.
func New(data []byte) *Stream {
	buf := data
	if cap(data)-len(data) < Slop {
		buf = make([]byte, len(data), len(data)+Slop)
		copy(buf, data)
	}
	buf = buf[:len(data):cap(buf)]

	return &Stream{
		buf:   buf,
		end:   len(data),
		limit: len(data),
	}
}

// Err returns the sticky error set by a failed bounds check, observed at
// the next Done call, but also queryable directly.
func (s *Stream) Err() error { return s.err }

// fail records the first error seen; later calls keep the first cause.
func (s *Stream) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Pos returns the current read offset into the original buffer.
func (s *Stream) Pos(ptr int) int { return ptr }

// Done reports whether ptr has reached the current limit. It is an error
// for ptr to be past the limit; callers that over-read must call fail
// themselves (the mini-table decoder does, via CheckSize/ConsumeX helpers
// that fail on truncation).
func (s *Stream) Done(ptr int) bool {
	return s.err != nil || ptr >= s.limit
}

// Bytes returns the readable tail of the buffer starting at ptr and ending
// at the logical end of input (nil if ptr is past it). The slop padding is
// never part of the result, so a primitive reader that runs off its end
// reports truncation.
func (s *Stream) Bytes(ptr int) []byte {
	if ptr > len(s.buf) {
		return nil
	}
	return s.buf[ptr:]
}

// Len is the logical length of the whole input.
func (s *Stream) Len() int { return s.end }

// Limit returns the current innermost limit (an absolute offset).
func (s *Stream) Limit() int { return s.limit }

// CheckSize verifies that a length-delimited field of the given size,
// starting at ptr, does not escape the current limit. Returns false (and
// sets the sticky error) if it would.
func (s *Stream) CheckSize(ptr, size int) bool {
	if size < 0 || ptr+size > s.limit || ptr+size < ptr {
		s.fail(errOverrun)
		return false
	}
	return true
}

// PushLimit narrows the stream to end size bytes past ptr, returning an
// opaque token to pass to PopLimit. Fails (and returns ok=false) if size
// would escape the current limit or the absolute end of input.
func (s *Stream) PushLimit(ptr, size int) (saved int, ok bool) {
	newLimit := ptr + size
	if size < 0 || newLimit > s.limit || newLimit < ptr {
		s.fail(errOverrun)
		return 0, false
	}
	saved = s.limit
	s.limit = newLimit
	return saved, true
}

// PopLimit restores a previously-saved limit. The caller must have reached
// Done() under the limit being popped.
func (s *Stream) PopLimit(saved int) {
	s.limit = saved
}

// ReadStringAliased returns size bytes starting at ptr, aliased directly
// into the input buffer (no copy), and the offset past them. Returns
// ok=false if size would escape the current limit.
func (s *Stream) ReadStringAliased(ptr, size int) (data []byte, next int, ok bool) {
	if !s.CheckSize(ptr, size) {
		return nil, ptr, false
	}
	return s.buf[ptr : ptr+size], ptr + size, true
}

var errOverrun = errOverrunType{}

type errOverrunType struct{}

func (errOverrunType) Error() string { return "protocore/wire: length escapes enclosing limit" }
