package defs

import "sync/atomic"

// group is the shared refcount unit for a set of frozen defs that form a
// strongly-connected component under ref2 (cross-node) edges. While
// mutable, a builder's group conservatively includes every builder it has
// a ref2 edge to or from; freezing runs Tarjan's algorithm (internal/scc)
// and splits that conservative group into its precise SCCs, each becoming
// its own group.
//
// Members don't hold a raw pointer back to the group directly in a
// cycle-unsafe way: the group itself is reachable only through the frozen
// defs it owns, and those defs are ordinary Go values kept alive by the
// symbol table (or whatever else references them). Go's GC, not manual
// refcounting, actually reclaims the memory. What group tracks is
// external-reference accounting so that "an owner may not release a ref
// it does not hold" can be enforced at the API level, without having to
// manually free anything.
type group struct {
	id      int // this group's position in freeze's topological order
	extRefs atomic.Int64
	owners  map[string]int64 // owner name -> count held, for "can't release what you don't hold"
}

func newGroup(id int) *group {
	return &group{id: id, owners: make(map[string]int64)}
}

// ref records owner as holding one more external reference to this group.
func (g *group) ref(owner string) {
	g.extRefs.Add(1)
	g.owners[owner]++
}

// unref releases one ref held by owner. Returns an error if owner does not
// hold one: an owner may not release a ref it does not hold.
func (g *group) unref(owner string) error {
	if g.owners[owner] <= 0 {
		return errf(ErrUnknown, "defs: %q does not hold a ref on this group", owner)
	}
	g.owners[owner]--
	if g.owners[owner] == 0 {
		delete(g.owners, owner)
	}
	g.extRefs.Add(-1)
	return nil
}

// donate atomically transfers one ref from an old owner to a new one.
// Since both g.owners mutations happen without an intervening observable
// state where neither owner holds the ref lost in a concurrent unref
// race, and g itself is only mutated by its single owning builder/freeze
// goroutine (mutable nodes are single-threaded), a mutex is unnecessary;
// the bookkeeping maps are plain, non-atomic maps guarded by that
// single-goroutine rule, while extRefs stays atomic so frozen-and-shared
// groups can still be read from multiple readers concurrently without
// racing on the total.
func (g *group) donate(from, to string) error {
	if g.owners[from] <= 0 {
		return errf(ErrUnknown, "defs: %q does not hold a ref to donate", from)
	}
	g.owners[from]--
	if g.owners[from] == 0 {
		delete(g.owners, from)
	}
	g.owners[to]++
	return nil
}

// Group is the public, read-only handle to a frozen def's refcount group,
// returned by MessageDef.Group/EnumDef.Group/FileDef.Group.
type Group struct{ g *group }

// Index returns this group's position in the freeze's topological order;
// a group never depends (even transitively) on a group with a higher
// index, mirroring scc.Component.Index.
func (g Group) Index() int { return g.g.id }

// RefCount returns the total number of external references currently held
// on this group, across all owners.
func (g Group) RefCount() int64 { return g.g.extRefs.Load() }

// Ref records owner as holding one more reference on the group underlying
// this def.
func (g Group) Ref(owner string) { g.g.ref(owner) }

// Unref releases one reference held by owner.
func (g Group) Unref(owner string) error { return g.g.unref(owner) }

// Donate atomically transfers one reference from one owner to another.
func (g Group) Donate(from, to string) error { return g.g.donate(from, to) }
