package defs

// oneofState is the shared storage behind OneofBuilder and OneofDef, in
// the same spirit as fieldState (see field.go).
type oneofState struct {
	frozen bool

	name      string
	synthetic bool // proto3 singular field modeled as a one-field oneof

	byName   map[string]*FieldDef
	byNumber map[int32]*FieldDef
	ordered  []*FieldDef

	index int // index within the owning message's oneof list

	// caseOffset is where, in a message's in-memory layout, this oneof's
	// "which field is set" selector word lives: a field number, zero
	// meaning unset.
	caseOffset int
}

// OneofBuilder is the mutable view of a oneof.
type OneofBuilder struct{ s *oneofState }

// NewOneof creates an empty oneof builder.
func NewOneof(name string) *OneofBuilder {
	return &OneofBuilder{s: &oneofState{
		name:     name,
		byName:   make(map[string]*FieldDef),
		byNumber: make(map[int32]*FieldDef),
	}}
}

// SetSynthetic marks this oneof as a proto3 synthetic oneof wrapping a
// single optional field.
func (o *OneofBuilder) SetSynthetic(synthetic bool) *OneofBuilder {
	if o.s.frozen {
		panic("defs: mutation of a frozen OneofDef")
	}
	o.s.synthetic = synthetic
	return o
}

// Name returns the oneof's name.
func (o *OneofBuilder) Name() string { return o.s.name }

// OneofDef is the frozen view of a oneof: a set of fields of which at most
// one may be set, tracked via a "case" slot holding the field number of
// whichever member is set (0 = none).
type OneofDef struct{ s *oneofState }

// Name returns the oneof's name.
func (o *OneofDef) Name() string { return o.s.name }

// IsSynthetic reports whether this oneof exists only to model a proto3
// field's explicit presence tracking.
func (o *OneofDef) IsSynthetic() bool { return o.s.synthetic }

// Index returns this oneof's index within its owning message's oneof list.
func (o *OneofDef) Index() int { return o.s.index }

// CaseOffset returns the byte offset of this oneof's "which field is set"
// selector word within the owning message's layout.
func (o *OneofDef) CaseOffset() int { return o.s.caseOffset }

// Fields returns the members of this oneof in declaration order.
func (o *OneofDef) Fields() []*FieldDef { return o.s.ordered }

// ByName looks up a member field by its bare name.
func (o *OneofDef) ByName(name string) (*FieldDef, bool) {
	f, ok := o.s.byName[name]
	return f, ok
}

// ByNumber looks up a member field by its field number.
func (o *OneofDef) ByNumber(number int32) (*FieldDef, bool) {
	f, ok := o.s.byNumber[number]
	return f, ok
}
