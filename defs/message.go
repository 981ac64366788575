package defs

import "sort"

// ExtensionRange is a [start, end) range of field numbers reserved for
// extensions of this message.
type ExtensionRange struct {
	Start, End int32 // End is exclusive
}

// Contains reports whether number falls within this range.
func (r ExtensionRange) Contains(number int32) bool {
	return number >= r.Start && number < r.End
}

// messageState is the shared storage behind MessageBuilder and MessageDef.
type messageState struct {
	frozen bool

	fullName string
	file     *FileDef
	syntax   Syntax
	mapEntry bool
	wkt      WellKnownType

	fields   []*FieldDef
	byName   map[string]*FieldDef
	byNumber map[int32]*FieldDef

	oneofs      []*OneofDef
	oneofByName map[string]*OneofDef

	extRanges []ExtensionRange

	// Layout, computed at freeze time.
	instanceSize     int
	hasbitBytes      int
	submsgFieldCount int
	requiredCount    int

	grp *group

	// def is the one canonical frozen wrapper for this state. Resolution
	// and freeze must hand out the same pointer: mini-table compilation
	// memoizes by *MessageDef, so two wrappers over one state would
	// compile two distinct tables for the same message.
	def *MessageDef
}

func (s *messageState) selfDef() *MessageDef {
	if s.def == nil {
		s.def = &MessageDef{s: s}
	}
	return s.def
}

// MessageBuilder is the mutable view of a message definition.
type MessageBuilder struct {
	s *messageState

	fieldBuilders []*FieldBuilder
	oneofBuilders []*OneofBuilder
}

// NewMessage creates an empty message builder.
func NewMessage(fullName string, syntax Syntax) *MessageBuilder {
	return &MessageBuilder{s: &messageState{
		fullName:    fullName,
		syntax:      syntax,
		byName:      make(map[string]*FieldDef),
		byNumber:    make(map[int32]*FieldDef),
		oneofByName: make(map[string]*OneofDef),
	}}
}

// NewMapEntryMessage builds the synthetic key/value message that backs a
// map field, shaped like protoc's auto-generated `FooEntry` nested
// messages. The caller is responsible for
// adding the returned builder to the same FileBuilder as the field that
// references it by name, and for pointing that field's SetSubdefName at
// fullName.
func NewMapEntryMessage(fullName string, keyKind Kind, valueKind Kind, valueSubdefName string) *MessageBuilder {
	m := NewMessage(fullName, Proto3)
	m.s.mapEntry = true

	key := NewField("key", 1, LabelOptional, keyKind)
	value := NewField("value", 2, LabelOptional, valueKind)
	if valueSubdefName != "" {
		value.SetSubdefName(valueSubdefName)
	}
	// Errors are impossible here: both fields have fixed, valid numbers
	// and distinct names.
	_ = m.AddField(key)
	_ = m.AddField(value)
	return m
}

func (m *MessageBuilder) checkMutable() {
	if m.s.frozen {
		panic("defs: mutation of a frozen MessageDef")
	}
}

// SetWellKnownType tags this message as one of the well-known types.
func (m *MessageBuilder) SetWellKnownType(wkt WellKnownType) *MessageBuilder {
	m.checkMutable()
	m.s.wkt = wkt
	return m
}

// SetMapEntry marks this message as a map-entry type without synthesizing
// its key/value fields, for bridges (fromproto.go) that already read
// explicit key/value fields off an incoming descriptor.
func (m *MessageBuilder) SetMapEntry(mapEntry bool) *MessageBuilder {
	m.checkMutable()
	m.s.mapEntry = mapEntry
	return m
}

// AddExtensionRange declares [start, end) as reserved for extensions of
// this message.
func (m *MessageBuilder) AddExtensionRange(start, end int32) error {
	m.checkMutable()
	if start <= 0 || end <= start || end-1 > MaxFieldNumber {
		return errf(ErrInvalidExtensionRange, "defs: message %s: invalid extension range [%d, %d)", m.s.fullName, start, end)
	}
	m.s.extRanges = append(m.s.extRanges, ExtensionRange{start, end})
	return nil
}

// AddField registers f as a field of this message. The field is not
// resolved or laid out until the message is frozen.
func (m *MessageBuilder) AddField(f *FieldBuilder) error {
	m.checkMutable()
	if f.s.name == "" {
		return errf(ErrAnonymous, "defs: message %s: field has no name", m.s.fullName)
	}
	if _, dup := m.s.byName[f.s.name]; dup {
		return errf(ErrDuplicateName, "defs: message %s: duplicate field name %q", m.s.fullName, f.s.name)
	}
	if _, dup := m.s.byNumber[f.s.number]; dup {
		return errf(ErrDuplicateName, "defs: message %s: duplicate field number %d", m.s.fullName, f.s.number)
	}
	if len(m.fieldBuilders) >= MaxFieldsPerMessage {
		return errf(ErrTooManyFields, "defs: message %s: too many fields", m.s.fullName)
	}
	if f.s.kind == KindGroup && m.s.syntax == Proto3 {
		return errf(ErrGroupInProto3, "defs: message %s: field %q uses group encoding in proto3", m.s.fullName, f.s.name)
	}

	f.s.index = len(m.fieldBuilders)
	frozenPlaceholder := &FieldDef{s: f.s} // safe to hand out now: callers only read Name/Number pre-freeze via FieldBuilder
	m.s.byName[f.s.name] = frozenPlaceholder
	m.s.byNumber[f.s.number] = frozenPlaceholder
	m.fieldBuilders = append(m.fieldBuilders, f)
	return nil
}

// AddOneof registers o as a oneof of this message.
func (m *MessageBuilder) AddOneof(o *OneofBuilder) error {
	m.checkMutable()
	if _, dup := m.s.oneofByName[o.s.name]; dup {
		return errf(ErrDuplicateName, "defs: message %s: duplicate oneof name %q", m.s.fullName, o.s.name)
	}
	o.s.index = len(m.oneofBuilders)
	m.s.oneofByName[o.s.name] = &OneofDef{s: o.s}
	m.oneofBuilders = append(m.oneofBuilders, o)
	return nil
}

// FullName returns this message's fully-qualified name.
func (m *MessageBuilder) FullName() string { return m.s.fullName }

// Fields returns the field builders added so far, in declaration order.
func (m *MessageBuilder) Fields() []*FieldBuilder { return m.fieldBuilders }

// fieldSubdefNames returns the symbolic subdef names this message's
// fields still need resolved (used by the symbol table's resolution
// pass).
func (m *MessageBuilder) fieldSubdefNames() []string {
	var out []string
	for _, f := range m.fieldBuilders {
		if f.s.subdefName != "" {
			out = append(out, f.s.subdefName)
		}
	}
	return out
}

// freeze finalizes field/oneof membership, computes the in-memory layout,
// and returns the frozen MessageDef. Subdef symbolic references must
// already have been resolved (subdefMsg/subdefEnum set) by the caller
// (SymbolTable.Add) before this is invoked.
func (m *MessageBuilder) freeze(g *group) (*MessageDef, error) {
	s := m.s

	// Link oneofs: each field that declared SetOneof(o) gets attached to
	// o's member list and the reverse m.s.oneofs slot.
	for _, f := range m.fieldBuilders {
		if err := f.validate(); err != nil {
			return nil, err
		}
		if f.s.kind == KindEnum && f.s.def.EnumSymbol != "" && f.s.subdefEnum != nil {
			n, ok := f.s.subdefEnum.Number(f.s.def.EnumSymbol)
			if !ok {
				return nil, errf(ErrUnresolvedReference, "defs: field %q: enum default %q is not a value of %s", f.s.name, f.s.def.EnumSymbol, f.s.subdefEnum.FullName())
			}
			f.s.def.EnumNum = n
			f.s.def.EnumSymbol = ""
		}
	}

	oneofDefs := make([]*OneofDef, len(m.oneofBuilders))
	for i, ob := range m.oneofBuilders {
		oneofDefs[i] = s.oneofByName[ob.s.name]
	}
	for _, f := range m.fieldBuilders {
		if f.s.pendingOneof == nil {
			f.s.oneofIndex = -1
			continue
		}
		od := oneofDefs[f.s.pendingOneof.s.index]
		fd := s.byName[f.s.name]
		f.s.oneof = od
		f.s.oneofIndex = len(od.s.ordered)
		od.s.ordered = append(od.s.ordered, fd)
		od.s.byName[f.s.name] = fd
		od.s.byNumber[f.s.number] = fd
	}

	fieldDefs := make([]*FieldDef, len(m.fieldBuilders))
	for i, f := range m.fieldBuilders {
		fieldDefs[i] = s.byName[f.s.name]
	}

	s.fields = fieldDefs
	s.oneofs = oneofDefs
	computeLayout(s, fieldDefs, oneofDefs)

	for _, f := range m.fieldBuilders {
		f.s.frozen = true
	}
	for _, o := range m.oneofBuilders {
		o.s.frozen = true
	}
	s.frozen = true
	s.grp = g

	return s.selfDef(), nil
}

// fieldSize returns a field's in-memory slot size in bytes: 1 (bool),
// 4 (fixed32/float/int32/uint32/enum), 8 (fixed64/double/int64/uint64,
// and sub-message pointers), 16 (string view). Repeated and map fields
// are always an 8-byte pointer to their Array or Map.
func fieldSize(f *FieldDef) int {
	if f.s.label == LabelRepeated && !f.IsMap() {
		return 8 // *Array
	}
	if f.IsMap() {
		return 8 // *Map
	}
	switch f.s.kind {
	case KindBool:
		return 1
	case KindDouble, KindFixed64, KindSfixed64, KindInt64, KindUint64, KindSint64:
		return 8
	case KindFloat, KindFixed32, KindSfixed32, KindInt32, KindUint32, KindSint32, KindEnum:
		return 4
	case KindString, KindBytes:
		return 16
	case KindMessage, KindGroup:
		return 8
	default:
		return 8
	}
}

// computeLayout computes the in-memory layout: hasbits
// allocated low-to-high, fields packed by descending alignment (16/8/4/1)
// to avoid padding, oneof case words placed after the hasbit region, and
// selector bases assigned in a deterministic (declaration) order.
func computeLayout(s *messageState, fields []*FieldDef, oneofs []*OneofDef) {
	// 1. Decide which fields get a hasbit.
	nextHasbit := 0
	for _, f := range fields {
		f.s.hasbit = -1
		if f.s.label == LabelRepeated || f.s.oneof != nil {
			continue
		}
		if s.syntax == Proto2 || f.s.explicitPresence {
			f.s.hasbit = nextHasbit
			nextHasbit++
			if f.s.label == LabelRequired {
				s.requiredCount++
			}
		}
	}
	s.hasbitBytes = (nextHasbit + 7) / 8
	// Round the hasbit region up to 4-byte alignment.
	s.hasbitBytes = (s.hasbitBytes + 3) &^ 3
	if s.hasbitBytes == 0 && nextHasbit > 0 {
		s.hasbitBytes = 4
	}

	cursor := s.hasbitBytes

	// 2. Oneof case words, one per oneof, 4 bytes each.
	for _, o := range oneofs {
		o.s.caseOffset = cursor
		cursor += 4
	}

	// 3. Remaining fields, packed by descending size to minimize padding.
	order := make([]*FieldDef, len(fields))
	copy(order, fields)
	sort.SliceStable(order, func(i, j int) bool {
		return fieldSize(order[i]) > fieldSize(order[j])
	})

	submsgCount := 0
	for _, f := range order {
		size := fieldSize(f)
		cursor = (cursor + size - 1) &^ (size - 1)
		f.s.offset = cursor
		cursor += size

		if f.s.kind == KindMessage || f.s.kind == KindGroup {
			submsgCount++
		}
	}
	s.submsgFieldCount = submsgCount
	s.instanceSize = (cursor + 7) &^ 7 // round instance size to 8-byte alignment

	// 4. Selector bases: assigned in field-declaration order so that a
	// tag's low bits can be turned into a slot deterministically. We use
	// the field's own index, which is already dense and
	// declaration-ordered.
	for i, f := range fields {
		f.s.selectorBase = i
	}
}

// MessageDef is the frozen view of a message: its fields (indexable by
// number and by name), oneofs, layout, and bookkeeping counts.
type MessageDef struct{ s *messageState }

// FullName returns this message's fully-qualified name.
func (m *MessageDef) FullName() string { return m.s.fullName }

// File returns the file this message was declared in.
func (m *MessageDef) File() *FileDef { return m.s.file }

// Syntax returns proto2 or proto3.
func (m *MessageDef) Syntax() Syntax { return m.s.syntax }

// IsMapEntry reports whether this message is a synthesized map-entry type.
func (m *MessageDef) IsMapEntry() bool { return m.s.mapEntry }

// WellKnownType returns this message's well-known-type tag, if any.
func (m *MessageDef) WellKnownType() WellKnownType { return m.s.wkt }

// Fields returns every field, by declaration order.
func (m *MessageDef) Fields() []*FieldDef { return m.s.fields }

// FieldByName looks up a field by its bare name.
func (m *MessageDef) FieldByName(name string) (*FieldDef, bool) {
	f, ok := m.s.byName[name]
	return f, ok
}

// FieldByNumber looks up a field by its number.
func (m *MessageDef) FieldByNumber(number int32) (*FieldDef, bool) {
	f, ok := m.s.byNumber[number]
	return f, ok
}

// Oneofs returns every oneof, by declaration order.
func (m *MessageDef) Oneofs() []*OneofDef { return m.s.oneofs }

// ExtensionRanges returns the field-number ranges reserved for extensions.
func (m *MessageDef) ExtensionRanges() []ExtensionRange { return m.s.extRanges }

// IsExtensionNumber reports whether number falls within one of this
// message's extension ranges.
func (m *MessageDef) IsExtensionNumber(number int32) bool {
	for _, r := range m.s.extRanges {
		if r.Contains(number) {
			return true
		}
	}
	return false
}

// InstanceSize returns the size, in bytes, of a freshly-zeroed empty
// message of this type.
func (m *MessageDef) InstanceSize() int { return m.s.instanceSize }

// HasbitBytes returns the size, in bytes, of the hasbit region at the
// front of this message's layout.
func (m *MessageDef) HasbitBytes() int { return m.s.hasbitBytes }

// SubmessageFieldCount returns the number of message/group-typed fields.
func (m *MessageDef) SubmessageFieldCount() int { return m.s.submsgFieldCount }

// RequiredCount returns the number of required fields (proto2 only).
func (m *MessageDef) RequiredCount() int { return m.s.requiredCount }

// Group returns the refcounted SCC group this frozen message belongs to.
func (m *MessageDef) Group() Group { return Group{m.s.grp} }
