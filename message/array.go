package message

import "github.com/protocore/protocore/defs"

// Array is a repeated field's value: a dense, append-only sequence of
// elements whose Go representation depends on kind (scalar kinds store
// their natural Go numeric/bool type; string/bytes store String;
// message/group store SubMessage; enum stores int32).
//
// Unlike the scalar byte buffer backing a Message's non-repeated fields,
// an Array is not laid out as raw bytes: element types here can themselves
// be Go pointers (String.Data, SubMessage.Msg), so a plain growable slice
// of interface values is the direct safe substitute for a raw
// element-size-aware byte store.
type Array struct {
	kind  defs.Kind
	elems []any
}

func newArray(kind defs.Kind) *Array {
	return &Array{kind: kind}
}

// Kind reports the element kind this array was created for.
func (a *Array) Kind() defs.Kind { return a.kind }

// Len returns the number of elements currently appended.
func (a *Array) Len() int { return len(a.elems) }

func (a *Array) Bool(i int) bool             { return a.elems[i].(bool) }
func (a *Array) Int32(i int) int32           { return a.elems[i].(int32) }
func (a *Array) Uint32(i int) uint32         { return a.elems[i].(uint32) }
func (a *Array) Int64(i int) int64           { return a.elems[i].(int64) }
func (a *Array) Uint64(i int) uint64         { return a.elems[i].(uint64) }
func (a *Array) Float32(i int) float32       { return a.elems[i].(float32) }
func (a *Array) Float64(i int) float64       { return a.elems[i].(float64) }
func (a *Array) Enum(i int) int32            { return a.elems[i].(int32) }
func (a *Array) String(i int) String         { return a.elems[i].(String) }
func (a *Array) SubMessage(i int) SubMessage { return a.elems[i].(SubMessage) }

func (a *Array) AppendBool(v bool)             { a.elems = append(a.elems, v) }
func (a *Array) AppendInt32(v int32)           { a.elems = append(a.elems, v) }
func (a *Array) AppendUint32(v uint32)         { a.elems = append(a.elems, v) }
func (a *Array) AppendInt64(v int64)           { a.elems = append(a.elems, v) }
func (a *Array) AppendUint64(v uint64)         { a.elems = append(a.elems, v) }
func (a *Array) AppendFloat32(v float32)       { a.elems = append(a.elems, v) }
func (a *Array) AppendFloat64(v float64)       { a.elems = append(a.elems, v) }
func (a *Array) AppendEnum(v int32)            { a.elems = append(a.elems, v) }
func (a *Array) AppendString(v String)         { a.elems = append(a.elems, v) }
func (a *Array) AppendSubMessage(v SubMessage) { a.elems = append(a.elems, v) }

// AppendMessage appends and returns a freshly-allocated linked sub-message
// for an array of message/group elements, analogous to
// Message.MutableSubMessage for the repeated case.
func (a *Array) AppendMessage(m *Message) SubMessage {
	sm := SubMessage{Msg: m}
	a.elems = append(a.elems, sm)
	return sm
}
