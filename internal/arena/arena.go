// Package arena provides a bump allocator with collective free, used to back
// every message, array, map, and unknown-field buffer produced by the
// decoder.
//
// Unlike a general-purpose allocator, an Arena never frees individual
// objects. All memory allocated from it (or from any arena fused with it)
// becomes invalid at once when the last reference is released with Unref.
// This makes allocation a
// pointer bump in the common case and turns "free the whole message" into
// O(1) work regardless of how many sub-objects it contains.
package arena

import (
	"sync/atomic"
	"unsafe"

	"github.com/protocore/protocore/internal/debug"
)

// minBlock is the size of the first block an arena allocates. Subsequent
// blocks double.
const minBlock = 256

// Arena is a bump allocator. The zero Arena is empty and ready to use.
//
// An Arena is not safe for concurrent use: a single arena must be owned by
// one goroutine (one parse, one message) at a time.
type Arena struct {
	group *group
}

// group is the shared state of a set of fused arenas. Fusing two arenas
// makes them share a group, so that freeing one frees both; this is the
// arena-granularity analogue of the def graph's refcounted SCC groups
// (internal/scc), at the arena rather than the def-node granularity.
type group struct {
	refs atomic.Int64

	blocks []block
	keep   []any // objects KeepAlive-d by arbitrary pointer-containing values
	onFree []func()
}

type block struct {
	mem  []byte
	next int // bump offset into mem
}

func (a *Arena) ensure() *group {
	if a.group == nil {
		g := &group{}
		g.refs.Store(1)
		a.group = g
	}
	return a.group
}

// Alloc returns an n-byte region, aligned to align, valid until the arena
// (or any arena it is later fused with) is freed. Alloc never fails in this
// implementation (Go's allocator is used as the backing store for blocks,
// and a failure there is fatal — the decoder treats arena exhaustion as
// unrecoverable further up the stack); size must be non-negative.
func (a *Arena) Alloc(n, align int) []byte {
	if n == 0 {
		return nil
	}
	g := a.ensure()

	if len(g.blocks) > 0 {
		b := &g.blocks[len(g.blocks)-1]
		if p := allocFrom(b, n, align); p != nil {
			return p
		}
	}

	size := minBlock
	if last := len(g.blocks); last > 0 {
		size = len(g.blocks[last-1].mem) * 2
	}
	size = max(size, n+align)

	debug.Log(nil, "arena.grow", "block %d, %d bytes", len(g.blocks), size)
	g.blocks = append(g.blocks, block{mem: make([]byte, size)})
	b := &g.blocks[len(g.blocks)-1]
	p := allocFrom(b, n, align)
	if p == nil {
		panic("protocore: arena block too small for allocation")
	}
	return p
}

func allocFrom(b *block, n, align int) []byte {
	off := b.next
	if align > 1 {
		off = (off + align - 1) &^ (align - 1)
	}
	if off+n > len(b.mem) {
		return nil
	}
	b.next = off + n
	return b.mem[off : off+n : off+n]
}

// Realloc grows (or shrinks) an allocation in place when it is the most
// recent allocation out of the current block and still fits; otherwise it
// allocates fresh memory and copies, abandoning the old storage. The
// old slice must have been the most recent return from Alloc or
// Realloc on this arena to take the fast path; it is always safe to call,
// it just may not be in-place.
func (a *Arena) Realloc(old []byte, newSize int) []byte {
	g := a.ensure()
	if len(g.blocks) > 0 {
		b := &g.blocks[len(g.blocks)-1]
		if len(old) > 0 && sameTail(b.mem, old) {
			delta := newSize - len(old)
			if b.next+delta <= len(b.mem) && b.next+delta >= 0 {
				b.next += delta
				return b.mem[b.next-newSize : b.next : b.next]
			}
		}
	}

	fresh := a.Alloc(newSize, 1)
	copy(fresh, old)
	return fresh
}

func sameTail(block, slice []byte) bool {
	if len(slice) == 0 {
		return false
	}
	bp := unsafe.Pointer(unsafe.SliceData(block))
	sp := unsafe.Pointer(unsafe.SliceData(slice))
	end := uintptr(bp) + uintptr(len(block))
	return uintptr(sp)+uintptr(len(slice)) == end
}

// New allocates a single value of type T on the arena and returns a pointer
// to it. T should not
// itself hold Go pointers to non-arena, non-keep-alive memory: anything it
// points to must either live as long as the arena or be registered with
// KeepAlive.
func New[T any](a *Arena, value T) *T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	mem := a.Alloc(size, size) // size also used as alignment upper bound; fine for our fixed-shape message/array/map headers.
	p := (*T)(unsafe.Pointer(unsafe.SliceData(mem)))
	*p = value
	return p
}

// KeepAlive ties the lifetime of an arbitrary Go value (such as a backing
// slice allocated outside the arena, e.g. an aliased input buffer) to this
// arena: it will not be collected until the arena's group refcount drops to
// zero.
func (a *Arena) KeepAlive(v any) {
	g := a.ensure()
	g.keep = append(g.keep, v)
}

// AddCleanup registers fn to run when the arena (or its fused group) is
// freed. Cleanups run in reverse registration order.
func (a *Arena) AddCleanup(fn func()) {
	g := a.ensure()
	g.onFree = append(g.onFree, fn)
}

// Fuse ties the lifetimes of a and b together: both must be freed (their
// shared refcount must drop to zero) before either's memory is released.
// This is how a sub-message parsed into a different arena than its parent
// is kept alive for as long as the parent is.
func Fuse(a, b *Arena) {
	ga, gb := a.ensure(), b.ensure()
	if ga == gb {
		return
	}

	// Merge gb into ga; every holder of gb now refers to ga by count.
	n := gb.refs.Load()
	ga.refs.Add(n)
	ga.blocks = append(ga.blocks, gb.blocks...)
	ga.keep = append(ga.keep, gb.keep...)
	ga.onFree = append(ga.onFree, gb.onFree...)

	b.group = ga
	*gb = group{}
}

// Ref increments the arena group's refcount; each Ref must eventually be
// balanced by an Unref.
func (a *Arena) Ref() { a.ensure().refs.Add(1) }

// Unref releases a ref acquired with Fuse/Ref or held implicitly by the
// Arena's creator; when the count reaches zero, the group's memory is
// released and its cleanups run in reverse order.
func (a *Arena) Unref() {
	g := a.ensure()
	if g.refs.Add(-1) > 0 {
		return
	}
	a.free(g)
}

func (a *Arena) free(g *group) {
	for i := len(g.onFree) - 1; i >= 0; i-- {
		g.onFree[i]()
	}
	g.blocks = nil
	g.keep = nil
	g.onFree = nil
}
