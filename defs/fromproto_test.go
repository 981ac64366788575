package defs_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/protocore/protocore/defs"
)

func strType(t descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto_Type { return &t }
func strLabel(l descriptorpb.FieldDescriptorProto_Label) *descriptorpb.FieldDescriptorProto_Label {
	return &l
}

func TestBuildFromFileDescriptorProtoBasicMessage(t *testing.T) {
	t.Parallel()
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("pkg/foo.proto"),
		Package: proto.String("pkg"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Foo"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:   proto.String("x"),
						Number: proto.Int32(1),
						Type:   strType(descriptorpb.FieldDescriptorProto_TYPE_INT32),
						Label:  strLabel(descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
					},
				},
			},
		},
	}

	table := defs.NewSymbolTable()
	fd, err := defs.BuildFromFileDescriptorProto(fdp, table)
	require.NoError(t, err)
	require.Equal(t, "pkg/foo.proto", fd.Name())

	md, ok := table.LookupMessage("pkg.Foo")
	require.True(t, ok)
	f, ok := md.FieldByName("x")
	require.True(t, ok)
	require.Equal(t, defs.KindInt32, f.Kind())
}

func TestBuildFromFileDescriptorProtoNestedTypesAreFlattened(t *testing.T) {
	t.Parallel()
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("pkg/foo.proto"),
		Package: proto.String("pkg"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Outer"),
				NestedType: []*descriptorpb.DescriptorProto{
					{
						Name: proto.String("Inner"),
						Field: []*descriptorpb.FieldDescriptorProto{
							{
								Name:   proto.String("v"),
								Number: proto.Int32(1),
								Type:   strType(descriptorpb.FieldDescriptorProto_TYPE_INT32),
								Label:  strLabel(descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
							},
						},
					},
				},
				EnumType: []*descriptorpb.EnumDescriptorProto{
					{
						Name: proto.String("Color"),
						Value: []*descriptorpb.EnumValueDescriptorProto{
							{Name: proto.String("RED"), Number: proto.Int32(0)},
						},
					},
				},
			},
		},
	}

	table := defs.NewSymbolTable()
	_, err := defs.BuildFromFileDescriptorProto(fdp, table)
	require.NoError(t, err)

	_, ok := table.LookupMessage("pkg.Outer.Inner")
	require.True(t, ok, "nested message must be flattened into a dotted name")
	_, ok = table.LookupEnum("pkg.Outer.Color")
	require.True(t, ok, "nested enum must be flattened into a dotted name")
}

func TestBuildFromFileDescriptorProtoWellKnownTypeTagged(t *testing.T) {
	t.Parallel()
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("google/protobuf/duration.proto"),
		Package: proto.String("google.protobuf"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("Duration")},
		},
	}

	table := defs.NewSymbolTable()
	_, err := defs.BuildFromFileDescriptorProto(fdp, table)
	require.NoError(t, err)

	md, ok := table.LookupMessage("google.protobuf.Duration")
	require.True(t, ok)
	require.Equal(t, defs.WKTDuration, md.WellKnownType())
}

func TestBuildFromFileDescriptorProtoMapEntrySynthesis(t *testing.T) {
	t.Parallel()
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("pkg/foo.proto"),
		Package: proto.String("pkg"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("AttrsEntry"),
				Options: &descriptorpb.MessageOptions{
					MapEntry: proto.Bool(true),
				},
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: proto.String("key"), Number: proto.Int32(1), Type: strType(descriptorpb.FieldDescriptorProto_TYPE_STRING), Label: strLabel(descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL)},
					{Name: proto.String("value"), Number: proto.Int32(2), Type: strType(descriptorpb.FieldDescriptorProto_TYPE_INT32), Label: strLabel(descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL)},
				},
			},
		},
	}

	table := defs.NewSymbolTable()
	_, err := defs.BuildFromFileDescriptorProto(fdp, table)
	require.NoError(t, err)

	md, ok := table.LookupMessage("pkg.AttrsEntry")
	require.True(t, ok)
	require.True(t, md.IsMapEntry())
}

func TestBuildFromFileDescriptorProtoOneofGrouping(t *testing.T) {
	t.Parallel()
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("pkg/foo.proto"),
		Package: proto.String("pkg"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name:       proto.String("Foo"),
				OneofDecl:  []*descriptorpb.OneofDescriptorProto{{Name: proto.String("which")}},
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:       proto.String("a"),
						Number:     proto.Int32(1),
						Type:       strType(descriptorpb.FieldDescriptorProto_TYPE_INT32),
						Label:      strLabel(descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
						OneofIndex: proto.Int32(0),
					},
					{
						Name:       proto.String("b"),
						Number:     proto.Int32(2),
						Type:       strType(descriptorpb.FieldDescriptorProto_TYPE_STRING),
						Label:      strLabel(descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
						OneofIndex: proto.Int32(0),
					},
				},
			},
		},
	}

	table := defs.NewSymbolTable()
	_, err := defs.BuildFromFileDescriptorProto(fdp, table)
	require.NoError(t, err)

	md, _ := table.LookupMessage("pkg.Foo")
	require.Len(t, md.Oneofs(), 1)
	require.Len(t, md.Oneofs()[0].Fields(), 2)
}

func TestBuildFromFileDescriptorProtoDependencyUnresolvedFails(t *testing.T) {
	t.Parallel()
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("pkg/foo.proto"),
		Package: proto.String("pkg"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Foo"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:     proto.String("child"),
						Number:   proto.Int32(1),
						Type:     strType(descriptorpb.FieldDescriptorProto_TYPE_MESSAGE),
						Label:    strLabel(descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL),
						TypeName: proto.String(".pkg.Missing"),
					},
				},
			},
		},
	}

	table := defs.NewSymbolTable()
	_, err := defs.BuildFromFileDescriptorProto(fdp, table)
	require.Error(t, err)
}
