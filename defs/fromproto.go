package defs

import (
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"
)

// BuildFromFileDescriptorProto translates a FileDescriptorProto (the wire
// format protoc and every other proto toolchain exchange schemas in) into
// this package's builder types and registers the result with table,
// letting callers load schemas compiled elsewhere instead of only
// hand-assembling builders.
//
// Dependencies (fdp.GetDependency()) are not resolved here; the caller is
// expected to have already added them to table, since subdef references
// into another file are just names resolved by SymbolTable.Add the same
// way in-file ones are.
func BuildFromFileDescriptorProto(fdp *descriptorpb.FileDescriptorProto, table *SymbolTable) (*FileDef, error) {
	syntax := Proto2
	if fdp.GetSyntax() == "proto3" {
		syntax = Proto3
	}

	fb := NewFile(fdp.GetName(), fdp.GetPackage(), syntax)
	for _, dep := range fdp.GetDependency() {
		fb.AddDependency(dep)
	}

	scope := fdp.GetPackage()

	for _, mdp := range fdp.GetMessageType() {
		if err := buildMessages(scope, mdp, syntax, fb); err != nil {
			return nil, err
		}
	}
	for _, edp := range fdp.GetEnumType() {
		buildEnum(scope, edp, syntax, fb)
	}
	for _, extdp := range fdp.GetExtension() {
		f, err := buildField(extdp, syntax, nil)
		if err != nil {
			return nil, err
		}
		fb.AddExtension(f, qualify(extdp.GetExtendee()))
	}

	files, err := table.Add(fb)
	if err != nil {
		return nil, err
	}
	return files[0], nil
}

// qualify strips the leading '.' a FileDescriptorProto always puts on a
// fully-qualified type/extendee name; SymbolTable's own resolver expects
// the same convention, so this is only needed where we pass a name string
// straight through (AddExtension's extendee) rather than through
// SetSubdefName.
func qualify(name string) string { return strings.TrimPrefix(name, ".") }

// joinScope builds a dotted fully-qualified name from an (possibly empty)
// enclosing scope and a bare name, with no leading dot: the convention
// SymbolTable's maps and resolveField's candidate generation both use.
func joinScope(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

// buildMessages registers mdp, and (flattened into the same file-level
// namespace, since this package does not model syntactic nesting
// separately from dotted naming) every type nested within it.
func buildMessages(scope string, mdp *descriptorpb.DescriptorProto, syntax Syntax, fb *FileBuilder) error {
	fullName := joinScope(scope, mdp.GetName())

	mb := NewMessage(fullName, syntax)
	if mdp.GetOptions().GetMapEntry() {
		mb.SetMapEntry(true)
	}
	if wkt := wellKnownTypeOf(fullName); wkt != WKTNone {
		mb.SetWellKnownType(wkt)
	}

	for _, r := range mdp.GetExtensionRange() {
		if err := mb.AddExtensionRange(r.GetStart(), r.GetEnd()); err != nil {
			return err
		}
	}

	oneofBuilders := make([]*OneofBuilder, len(mdp.GetOneofDecl()))
	synthetic := make([]bool, len(mdp.GetOneofDecl()))
	for _, fdp := range mdp.GetField() {
		if fdp.GetProto3Optional() && fdp.OneofIndex != nil {
			synthetic[fdp.GetOneofIndex()] = true
		}
	}
	for i, odp := range mdp.GetOneofDecl() {
		ob := NewOneof(odp.GetName())
		ob.SetSynthetic(synthetic[i])
		oneofBuilders[i] = ob
		if err := mb.AddOneof(ob); err != nil {
			return err
		}
	}

	for _, fdp := range mdp.GetField() {
		var oneof *OneofBuilder
		if fdp.OneofIndex != nil {
			oneof = oneofBuilders[fdp.GetOneofIndex()]
		}
		f, err := buildField(fdp, syntax, oneof)
		if err != nil {
			return err
		}
		if err := mb.AddField(f); err != nil {
			return err
		}
	}

	fb.AddMessage(mb)

	for _, edp := range mdp.GetEnumType() {
		buildEnum(fullName, edp, syntax, fb)
	}
	for _, nested := range mdp.GetNestedType() {
		if err := buildMessages(fullName, nested, syntax, fb); err != nil {
			return err
		}
	}
	return nil
}

func buildEnum(scope string, edp *descriptorpb.EnumDescriptorProto, syntax Syntax, fb *FileBuilder) {
	fullName := joinScope(scope, edp.GetName())
	eb := NewEnum(fullName, syntax == Proto2)
	for _, v := range edp.GetValue() {
		// Duplicate names/aliased numbers are possible in legacy protos;
		// ignore the error here (first registration wins) rather than
		// aborting the whole file load over an enum value collision.
		_ = eb.AddValue(v.GetName(), v.GetNumber())
	}
	fb.AddEnum(eb)
}

func buildField(fdp *descriptorpb.FieldDescriptorProto, syntax Syntax, oneof *OneofBuilder) (*FieldBuilder, error) {
	kind := Kind(fdp.GetType())
	label := convertLabel(fdp.GetLabel())

	f := NewField(fdp.GetName(), fdp.GetNumber(), label, kind)

	if kind.HasSubdef() {
		// type_name is left exactly as the descriptor wrote it (usually
		// fully qualified with a leading '.'): SymbolTable's resolver
		// treats a leading '.' as an explicit absolute reference.
		f.SetSubdefName(fdp.GetTypeName())
	}

	if label == LabelRepeated && kind.IsPackable() {
		packed := syntax == Proto3
		if fdp.Options != nil && fdp.Options.Packed != nil {
			packed = fdp.GetOptions().GetPacked()
		}
		f.SetPacked(packed)
	}

	if fdp.GetProto3Optional() {
		f.SetExplicitPresence(true)
	} else if syntax == Proto2 && label != LabelRepeated {
		f.SetExplicitPresence(true)
	}

	if oneof != nil {
		f.SetOneof(oneof)
	}

	if fdp.DefaultValue != nil {
		f.SetDefault(parseDefault(kind, fdp.GetDefaultValue()))
	}

	return f, nil
}

func convertLabel(l descriptorpb.FieldDescriptorProto_Label) Label {
	switch l {
	case descriptorpb.FieldDescriptorProto_LABEL_REQUIRED:
		return LabelRequired
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		return LabelRepeated
	default:
		return LabelOptional
	}
}

// parseDefault decodes a proto2 textual default value per
// descriptor.proto's documented encoding of
// FieldDescriptorProto.default_value.
func parseDefault(kind Kind, text string) Default {
	var d Default
	switch kind {
	case KindBool:
		d.Bool = text == "true"
	case KindInt32, KindInt64, KindSint32, KindSint64, KindSfixed32, KindSfixed64:
		n, _ := strconv.ParseInt(text, 10, 64)
		d.Int64 = n
	case KindUint32, KindUint64, KindFixed32, KindFixed64:
		n, _ := strconv.ParseUint(text, 10, 64)
		d.Uint64 = n
	case KindFloat, KindDouble:
		n, _ := strconv.ParseFloat(text, 64)
		d.Double = n
	case KindString:
		d.Bytes = []byte(text)
	case KindBytes:
		d.Bytes = unescapeC(text)
	case KindEnum:
		d.EnumSymbol = text
	}
	return d
}

// unescapeC decodes descriptor.proto's C-escaped bytes default_value
// encoding (octal escapes for non-printable bytes), needed to
// round-trip real descriptors faithfully.
func unescapeC(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			n, _ := strconv.ParseUint(s[i+1:i+4], 8, 8)
			out = append(out, byte(n))
			i += 3
			continue
		}
		out = append(out, s[i])
	}
	return out
}

func isOctal(b byte) bool { return b >= '0' && b <= '7' }

func wellKnownTypeOf(fullName string) WellKnownType {
	switch fullName {
	case "google.protobuf.Any":
		return WKTAny
	case "google.protobuf.Duration":
		return WKTDuration
	case "google.protobuf.Timestamp":
		return WKTTimestamp
	case "google.protobuf.Struct":
		return WKTStruct
	case "google.protobuf.Value":
		return WKTValue
	case "google.protobuf.ListValue":
		return WKTListValue
	case "google.protobuf.DoubleValue", "google.protobuf.FloatValue",
		"google.protobuf.Int64Value", "google.protobuf.UInt64Value",
		"google.protobuf.Int32Value", "google.protobuf.UInt32Value",
		"google.protobuf.BoolValue", "google.protobuf.StringValue",
		"google.protobuf.BytesValue":
		return WKTWrapper
	default:
		return WKTNone
	}
}
