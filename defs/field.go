package defs

import "fmt"

// fieldState is the shared storage behind both FieldBuilder (the mutable
// view) and FieldDef (the frozen view) of a single field. Both types wrap
// a pointer to the same fieldState; FieldBuilder exposes setters that
// panic once frozen is true, FieldDef exposes only accessors. This gives
// the mutable-then-frozen duality distinct types for distinct phases
// without needing to copy every field between two independent struct
// layouts at freeze time, which would otherwise be the dominant source of
// freeze-time bugs in a from-scratch port.
type fieldState struct {
	frozen bool

	name   string
	number int32
	label  Label
	kind   Kind
	packed bool // only meaningful when label == LabelRepeated and kind.IsPackable()

	subdefName string      // symbolic reference, valid only before resolution
	subdefMsg  *MessageDef // resolved message/group subdef
	subdefEnum *EnumDef    // resolved enum subdef

	def       Default
	extension bool
	lazy      bool

	explicitPresence bool // proto3 "optional" keyword; always true under proto2

	pendingOneof *OneofBuilder // set by SetOneof, consumed at message freeze
	oneof        *OneofDef
	oneofIndex   int // index of this field within its oneof, -1 if none

	index int // index within the parent message's field list

	// Layout, computed by MessageBuilder.Freeze.
	offset       int
	hasbit       int // -1 if this field has no presence bit
	selectorBase int
}

// Default is a field's typed default value, typed by field type. Enum
// defaults may be numeric or symbolic while mutable, always numeric once
// frozen.
type Default struct {
	// Enum defaults are symbolic (by name) until frozen, at which point
	// EnumSymbol is cleared and EnumNum holds the resolved value.
	EnumSymbol string

	Bool    bool
	Int64   int64
	Uint64  uint64
	Double  float64
	Bytes   []byte // also used for string defaults (as UTF-8 bytes)
	EnumNum int32
}

// FieldBuilder is the mutable view of a field definition, valid only
// before its owning message is frozen.
type FieldBuilder struct{ s *fieldState }

// NewField creates a field builder for a scalar/message/enum field. Group
// and map-entry fields are built the same way; SetSubdefName/SetSubdef
// provide the group or map-entry message afterward.
func NewField(name string, number int32, label Label, kind Kind) *FieldBuilder {
	return &FieldBuilder{s: &fieldState{
		name: name, number: number, label: label, kind: kind,
		oneofIndex: -1, hasbit: -1,
	}}
}

func (f *FieldBuilder) checkMutable() {
	if f.s.frozen {
		panic("defs: mutation of a frozen FieldDef")
	}
}

// SetPacked marks a repeated scalar field as using the packed wire
// encoding.
func (f *FieldBuilder) SetPacked(packed bool) *FieldBuilder {
	f.checkMutable()
	f.s.packed = packed
	return f
}

// SetSubdefName records a symbolic (not-yet-resolved) reference to this
// field's message/group/enum subdef, to be resolved by SymbolTable.Add's
// scoping rules.
func (f *FieldBuilder) SetSubdefName(name string) *FieldBuilder {
	f.checkMutable()
	f.s.subdefName = name
	return f
}

// SetExtension marks this field as an extension field.
func (f *FieldBuilder) SetExtension(ext bool) *FieldBuilder {
	f.checkMutable()
	f.s.extension = ext
	return f
}

// SetLazy marks this message-typed field for lazy parsing. The decoder
// does not yet special-case lazy fields; the bit is carried through so a
// future decoder can honor it without a schema-format change.
func (f *FieldBuilder) SetLazy(lazy bool) *FieldBuilder {
	f.checkMutable()
	f.s.lazy = lazy
	return f
}

// SetDefault sets this field's default value.
func (f *FieldBuilder) SetDefault(d Default) *FieldBuilder {
	f.checkMutable()
	f.s.def = d
	return f
}

// SetOneof assigns this field to a oneof being built alongside it in the
// same message. Oneof membership is resolved when the owning message is
// frozen, not immediately, since the OneofBuilder's own field list needs
// this field's resolved number.
func (f *FieldBuilder) SetOneof(o *OneofBuilder) *FieldBuilder {
	f.checkMutable()
	f.s.pendingOneof = o
	return f
}

// SetExplicitPresence marks a proto3 singular field as using explicit
// ("optional") presence tracking, giving it a hasbit instead of relying on
// the zero value. Proto2 fields always have explicit presence regardless
// of this setting.
func (f *FieldBuilder) SetExplicitPresence(explicit bool) *FieldBuilder {
	f.checkMutable()
	f.s.explicitPresence = explicit
	return f
}

// Name returns the field's bare (unqualified) name.
func (f *FieldBuilder) Name() string { return f.s.name }

// Number returns the field's number.
func (f *FieldBuilder) Number() int32 { return f.s.number }

// Kind returns the field's declared wire-level type.
func (f *FieldBuilder) Kind() Kind { return f.s.kind }

// Label returns the field's cardinality.
func (f *FieldBuilder) Label() Label { return f.s.label }

// SubdefName returns the still-unresolved symbolic subdef name, if any.
func (f *FieldBuilder) SubdefName() string { return f.s.subdefName }

// validate checks a field's standalone invariants (number range; subdef
// requirement consistent with kind), independent of its owning message.
func (f *FieldBuilder) validate() error {
	s := f.s
	if s.number <= 0 || s.number > MaxFieldNumber {
		return errf(ErrFieldNumberOutOfRange, "defs: field %q has out-of-range number %d", s.name, s.number)
	}
	if s.kind.HasSubdef() && s.subdefName == "" && s.subdefMsg == nil && s.subdefEnum == nil {
		return errf(ErrUnresolvedReference, "defs: field %q of kind %v has no subdef", s.name, s.kind)
	}
	return nil
}

// FieldDef is the frozen, thread-safe view of a field definition.
type FieldDef struct{ s *fieldState }

// Name returns the field's bare name.
func (f *FieldDef) Name() string { return f.s.name }

// Number returns the field's number.
func (f *FieldDef) Number() int32 { return f.s.number }

// Label returns the field's cardinality.
func (f *FieldDef) Label() Label { return f.s.label }

// Kind returns the field's declared wire-level type.
func (f *FieldDef) Kind() Kind { return f.s.kind }

// IsPacked reports whether a repeated field uses the packed wire encoding.
func (f *FieldDef) IsPacked() bool { return f.s.label == LabelRepeated && f.s.packed }

// IsMap reports whether this field is a synthesized map field: true iff
// its subdef is a MessageDef with IsMapEntry set.
func (f *FieldDef) IsMap() bool {
	return f.s.kind == KindMessage && f.s.subdefMsg != nil && f.s.subdefMsg.IsMapEntry()
}

// Message returns the field's message (or group, or map-entry) subdef, and
// whether one is set.
func (f *FieldDef) Message() (*MessageDef, bool) { return f.s.subdefMsg, f.s.subdefMsg != nil }

// Enum returns the field's enum subdef, and whether one is set.
func (f *FieldDef) Enum() (*EnumDef, bool) { return f.s.subdefEnum, f.s.subdefEnum != nil }

// Default returns the field's default value.
func (f *FieldDef) Default() Default { return f.s.def }

// IsExtension reports whether this is an extension field.
func (f *FieldDef) IsExtension() bool { return f.s.extension }

// IsLazy reports whether this field is marked for lazy parsing.
func (f *FieldDef) IsLazy() bool { return f.s.lazy }

// Oneof returns the oneof this field belongs to, and whether it belongs to
// one at all.
func (f *FieldDef) Oneof() (*OneofDef, bool) { return f.s.oneof, f.s.oneof != nil }

// Index returns the field's index within its parent message's field list.
func (f *FieldDef) Index() int { return f.s.index }

// Offset returns this field's byte offset within its owning message's
// in-memory layout.
func (f *FieldDef) Offset() int { return f.s.offset }

// Hasbit returns the field's hasbit index, and whether it has one at all
// (repeated/map fields and proto3 fields without explicit presence do
// not).
func (f *FieldDef) Hasbit() (int, bool) { return f.s.hasbit, f.s.hasbit >= 0 }

// SelectorBase returns the index used by the fast-path decoder to map a
// tag into a fasttable slot.
func (f *FieldDef) SelectorBase() int { return f.s.selectorBase }

func (f *FieldDef) String() string {
	return fmt.Sprintf("%v %s = %d", f.s.kind, f.s.name, f.s.number)
}
