// Package testutil builds small, shared def/mini-table schemas for use
// across decode, encode, fastpath, and message package tests, so those
// packages exercise the same compiled layouts rather than each hand-rolling
// a slightly different one.
package testutil

import (
	"testing"

	"github.com/protocore/protocore/defs"
	"github.com/protocore/protocore/minitable"
)

// Field looks up a field by name in t's mini-table, failing the test if it
// is not found.
func Field(t *testing.T, table *minitable.Table, name string) *minitable.Field {
	t.Helper()
	fd, ok := table.Descriptor.FieldByName(name)
	if !ok {
		t.Fatalf("testutil: no field named %q", name)
	}
	f, ok := table.Lookup(fd.Number())
	if !ok {
		t.Fatalf("testutil: field %q (number %d) has no mini-table entry", name, fd.Number())
	}
	return f
}

// WidgetSchema is a proto3 self-recursive message exercising every scalar
// kind, a repeated packed field, a repeated message field, a map field, and
// a oneof, built fresh per test.
type WidgetSchema struct {
	Table *minitable.Table
	Color *defs.EnumDef
}

// NewWidgetSchema builds:
//
//	message Widget {
//	  int32 i32 = 1;
//	  string name = 2;
//	  repeated string tags = 3;
//	  repeated int32 nums = 4 [packed];
//	  Widget child = 5;
//	  repeated Widget children = 6;
//	  map<string, int32> attrs = 7;
//	  Color color = 8;
//	  oneof choice {
//	    int32 choice_a = 9;
//	    string choice_b = 10;
//	  }
//	  bool flag = 11;
//	  int64 big = 12;
//	  bytes data = 13;
//	  sint32 zz32 = 14;
//	  sint64 zz64 = 15;
//	  fixed32 f32 = 16;
//	  fixed64 f64 = 17;
//	  float ff = 18;
//	  double dd = 19;
//	}
func NewWidgetSchema(t *testing.T) *WidgetSchema {
	t.Helper()

	color := defs.NewEnum("test.Color", false)
	must(t, color.AddValue("RED", 0))
	must(t, color.AddValue("GREEN", 1))
	must(t, color.AddValue("BLUE", 2))

	widget := defs.NewMessage("test.Widget", defs.Proto3)

	must(t, widget.AddField(defs.NewField("i32", 1, defs.LabelOptional, defs.KindInt32)))
	must(t, widget.AddField(defs.NewField("name", 2, defs.LabelOptional, defs.KindString)))
	must(t, widget.AddField(defs.NewField("tags", 3, defs.LabelRepeated, defs.KindString)))
	must(t, widget.AddField(defs.NewField("nums", 4, defs.LabelRepeated, defs.KindInt32).SetPacked(true)))

	child := defs.NewField("child", 5, defs.LabelOptional, defs.KindMessage)
	child.SetSubdefName(".test.Widget")
	must(t, widget.AddField(child))

	children := defs.NewField("children", 6, defs.LabelRepeated, defs.KindMessage)
	children.SetSubdefName(".test.Widget")
	must(t, widget.AddField(children))

	attrsEntry := defs.NewMapEntryMessage("test.Widget.AttrsEntry", defs.KindString, defs.KindInt32, "")
	attrs := defs.NewField("attrs", 7, defs.LabelRepeated, defs.KindMessage)
	attrs.SetSubdefName(".test.Widget.AttrsEntry")
	must(t, widget.AddField(attrs))

	colorField := defs.NewField("color", 8, defs.LabelOptional, defs.KindEnum)
	colorField.SetSubdefName(".test.Color")
	must(t, widget.AddField(colorField))

	choice := defs.NewOneof("choice")
	choiceA := defs.NewField("choice_a", 9, defs.LabelOptional, defs.KindInt32).SetOneof(choice)
	choiceB := defs.NewField("choice_b", 10, defs.LabelOptional, defs.KindString).SetOneof(choice)
	must(t, widget.AddField(choiceA))
	must(t, widget.AddField(choiceB))
	must(t, widget.AddOneof(choice))

	must(t, widget.AddField(defs.NewField("flag", 11, defs.LabelOptional, defs.KindBool)))
	must(t, widget.AddField(defs.NewField("big", 12, defs.LabelOptional, defs.KindInt64)))
	must(t, widget.AddField(defs.NewField("data", 13, defs.LabelOptional, defs.KindBytes)))
	must(t, widget.AddField(defs.NewField("zz32", 14, defs.LabelOptional, defs.KindSint32)))
	must(t, widget.AddField(defs.NewField("zz64", 15, defs.LabelOptional, defs.KindSint64)))
	must(t, widget.AddField(defs.NewField("f32", 16, defs.LabelOptional, defs.KindFixed32)))
	must(t, widget.AddField(defs.NewField("f64", 17, defs.LabelOptional, defs.KindFixed64)))
	must(t, widget.AddField(defs.NewField("ff", 18, defs.LabelOptional, defs.KindFloat)))
	must(t, widget.AddField(defs.NewField("dd", 19, defs.LabelOptional, defs.KindDouble)))

	file := defs.NewFile("test/widget.proto", "test", defs.Proto3)
	file.AddMessage(widget)
	file.AddMessage(attrsEntry)
	file.AddEnum(color)

	st := defs.NewSymbolTable()
	if _, err := st.Add(file); err != nil {
		t.Fatalf("testutil: freezing Widget schema: %v", err)
	}

	md, _ := st.LookupMessage("test.Widget")
	cd, _ := st.LookupEnum("test.Color")

	return &WidgetSchema{
		Table: minitable.Compile(md, make(map[*defs.MessageDef]*minitable.Table)),
		Color: cd,
	}
}

// LegacySchema is a proto2 message exercising a required field, a group
// field, and a closed enum.
type LegacySchema struct {
	Table  *minitable.Table
	Status *defs.EnumDef
}

// NewLegacySchema builds:
//
//	message Legacy {
//	  required int32 id = 1;
//	  optional group Detail = 2 { optional int32 x = 1; }
//	  optional Status status = 3;
//	  repeated int32 nums = 4;
//	}
//	enum Status { OK = 0; BAD = 1; } // closed
func NewLegacySchema(t *testing.T) *LegacySchema {
	t.Helper()

	status := defs.NewEnum("test.Status", true)
	must(t, status.AddValue("OK", 0))
	must(t, status.AddValue("BAD", 1))

	detail := defs.NewMessage("test.Legacy.Detail", defs.Proto2)
	must(t, detail.AddField(defs.NewField("x", 1, defs.LabelOptional, defs.KindInt32)))

	legacy := defs.NewMessage("test.Legacy", defs.Proto2)
	must(t, legacy.AddField(defs.NewField("id", 1, defs.LabelRequired, defs.KindInt32)))

	detailField := defs.NewField("detail", 2, defs.LabelOptional, defs.KindGroup)
	detailField.SetSubdefName(".test.Legacy.Detail")
	must(t, legacy.AddField(detailField))

	statusField := defs.NewField("status", 3, defs.LabelOptional, defs.KindEnum)
	statusField.SetSubdefName(".test.Status")
	must(t, legacy.AddField(statusField))

	must(t, legacy.AddField(defs.NewField("nums", 4, defs.LabelRepeated, defs.KindInt32)))

	file := defs.NewFile("test/legacy.proto", "test", defs.Proto2)
	file.AddMessage(legacy)
	file.AddMessage(detail)
	file.AddEnum(status)

	st := defs.NewSymbolTable()
	if _, err := st.Add(file); err != nil {
		t.Fatalf("testutil: freezing Legacy schema: %v", err)
	}

	md, _ := st.LookupMessage("test.Legacy")
	sd, _ := st.LookupEnum("test.Status")

	return &LegacySchema{
		Table:  minitable.Compile(md, make(map[*defs.MessageDef]*minitable.Table)),
		Status: sd,
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("testutil: %v", err)
	}
}
