package message

import "github.com/protocore/protocore/defs"

// Map is a map field's value: a hash table keyed by the field's declared
// key kind (a string or one of the integer/bool kinds protobuf allows as
// map keys) to a value of the field's declared value kind, stored the same
// way Array stores elements — scalar kinds in their natural Go type,
// string/bytes as String, message as SubMessage, enum as int32.
//
// This sits directly on a Go map rather than reusing an open-addressed
// table (internal/hashtable already covers that need for the def-name
// lookups that require it); map fields
// have no requirement on iteration order, so Go's native map is a
// straightforward, idiomatic substitute.
type Map struct {
	keyKind   defs.Kind
	valueKind defs.Kind
	entries   map[any]any
}

func newMap(keyKind, valueKind defs.Kind) *Map {
	return &Map{
		keyKind:   keyKind,
		valueKind: valueKind,
		entries:   make(map[any]any),
	}
}

// KeyKind and ValueKind report the kinds this map was created for.
func (m *Map) KeyKind() defs.Kind   { return m.keyKind }
func (m *Map) ValueKind() defs.Kind { return m.valueKind }

// Len returns the number of entries currently stored.
func (m *Map) Len() int { return len(m.entries) }

// Get looks up key (a Go bool/int32/uint32/int64/uint64/string matching
// the map's key kind) and reports whether an entry exists.
func (m *Map) Get(key any) (any, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Set stores value under key, overwriting any existing entry.
func (m *Map) Set(key, value any) {
	m.entries[key] = value
}

// Delete removes key's entry, if any.
func (m *Map) Delete(key any) {
	delete(m.entries, key)
}

// Keys reports every key currently stored; iteration order is unspecified.
func (m *Map) Keys() []any {
	keys := make([]any, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// Range calls fn once per entry, stopping early if fn returns false.
func (m *Map) Range(fn func(key, value any) bool) {
	for k, v := range m.entries {
		if !fn(k, v) {
			return
		}
	}
}
