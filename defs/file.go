package defs

// fileState is the shared storage behind FileBuilder and FileDef.
type fileState struct {
	frozen bool

	name    string
	pkg     string
	deps    []string // names of files this one depends on
	syntax  Syntax

	messages []*MessageDef
	enums    []*EnumDef

	grp *group
}

// FileBuilder is the mutable view of a file definition.
type FileBuilder struct {
	s *fileState

	messageBuilders []*MessageBuilder
	enumBuilders    []*EnumBuilder

	pendingExtensions []pendingExtension
}

// NewFile creates an empty file builder.
func NewFile(name, pkg string, syntax Syntax) *FileBuilder {
	return &FileBuilder{s: &fileState{name: name, pkg: pkg, syntax: syntax}}
}

func (fb *FileBuilder) checkMutable() {
	if fb.s.frozen {
		panic("defs: mutation of a frozen FileDef")
	}
}

// AddDependency records that this file imports another by name.
func (fb *FileBuilder) AddDependency(name string) *FileBuilder {
	fb.checkMutable()
	fb.s.deps = append(fb.s.deps, name)
	return fb
}

// AddMessage registers a top-level message declared in this file.
func (fb *FileBuilder) AddMessage(m *MessageBuilder) *FileBuilder {
	fb.checkMutable()
	fb.messageBuilders = append(fb.messageBuilders, m)
	return fb
}

// AddEnum registers a top-level enum declared in this file.
func (fb *FileBuilder) AddEnum(e *EnumBuilder) *FileBuilder {
	fb.checkMutable()
	fb.enumBuilders = append(fb.enumBuilders, e)
	return fb
}

// AddExtension declares f as an extension field of the message named
// extendee (which need not yet be registered; it is resolved, along with
// f's own subdef if any, when this file is added to a SymbolTable).
func (fb *FileBuilder) AddExtension(f *FieldBuilder, extendee string) *FileBuilder {
	fb.checkMutable()
	f.s.extension = true
	fb.pendingExtensions = append(fb.pendingExtensions, pendingExtension{field: f, extendee: extendee})
	return fb
}

// Name returns the file's name (its proto path, e.g. "foo/bar.proto").
func (fb *FileBuilder) Name() string { return fb.s.name }

// Package returns the file's declared package.
func (fb *FileBuilder) Package() string { return fb.s.pkg }

// Messages returns the top-level message builders added so far.
func (fb *FileBuilder) Messages() []*MessageBuilder { return fb.messageBuilders }

// Enums returns the top-level enum builders added so far.
func (fb *FileBuilder) Enums() []*EnumBuilder { return fb.enumBuilders }

// FileDef is the frozen view of a file: its name, package, dependencies,
// and top-level message/enum lists.
type FileDef struct{ s *fileState }

// Name returns the file's name.
func (f *FileDef) Name() string { return f.s.name }

// Package returns the file's declared package.
func (f *FileDef) Package() string { return f.s.pkg }

// Syntax returns proto2 or proto3.
func (f *FileDef) Syntax() Syntax { return f.s.syntax }

// Dependencies returns the names of the files this one imports.
func (f *FileDef) Dependencies() []string { return f.s.deps }

// Messages returns the top-level messages declared in this file.
func (f *FileDef) Messages() []*MessageDef { return f.s.messages }

// Enums returns the top-level enums declared in this file.
func (f *FileDef) Enums() []*EnumDef { return f.s.enums }

// Group returns the refcounted SCC group this frozen file belongs to.
func (f *FileDef) Group() Group { return Group{f.s.grp} }
