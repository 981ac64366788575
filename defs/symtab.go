package defs

import (
	"iter"
	"strings"
	"sync"

	"github.com/protocore/protocore/internal/debug"
	"github.com/protocore/protocore/internal/hashtable"
	"github.com/protocore/protocore/internal/scc"
)

// SymbolTable is the name->def map through which defs become visible to
// parsers: the unit through which a builder's output is
// published for lookup by fully-qualified name.
type SymbolTable struct {
	mu sync.RWMutex

	messages *hashtable.Str[*MessageDef]
	enums    *hashtable.Str[*EnumDef]
	files    *hashtable.Str[*FileDef]

	// extensions maps an extendee's fully-qualified name and a field
	// number to the extension FieldDef declared against it. Kept
	// separately from MessageDef (rather than mutating the extendee) so
	// that registering an extension never requires unfreezing anything.
	extensions map[string]map[int32]*FieldDef
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		messages:   hashtable.NewStr[*MessageDef](),
		enums:      hashtable.NewStr[*EnumDef](),
		files:      hashtable.NewStr[*FileDef](),
		extensions: make(map[string]map[int32]*FieldDef),
	}
}

// pendingExtension is an extension field awaiting its extendee to be
// resolved, recorded by FileBuilder.AddExtension.
type pendingExtension struct {
	field    *FieldBuilder
	extendee string
}

// LookupMessage finds a message by fully-qualified name.
func (t *SymbolTable) LookupMessage(name string) (*MessageDef, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.messages.Get(name)
}

// LookupEnum finds an enum by fully-qualified name.
func (t *SymbolTable) LookupEnum(name string) (*EnumDef, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enums.Get(name)
}

// LookupFile finds a file by name.
func (t *SymbolTable) LookupFile(name string) (*FileDef, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.files.Get(name)
}

// LookupExtension finds the extension field declared against extendee at
// the given field number.
func (t *SymbolTable) LookupExtension(extendee string, number int32) (*FieldDef, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	byNum, ok := t.extensions[extendee]
	if !ok {
		return nil, false
	}
	f, ok := byNum[number]
	return f, ok
}

// Messages iterates every message currently in the table. Iteration order
// is unspecified.
func (t *SymbolTable) Messages() iter.Seq[*MessageDef] {
	return func(yield func(*MessageDef) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		t.messages.All(func(_ string, m *MessageDef) bool {
			return yield(m)
		})
	}
}

// buildNode is a node in the freeze-time dependency graph: exactly one of
// msg/enum is set, except for the zero value, which is used as a virtual
// root with an edge to every top-level builder in the add-set.
type buildNode struct {
	msg  *MessageBuilder
	enum *EnumBuilder
}

// Add builds, resolves, and freezes every message/enum declared across
// files, then publishes them into the table atomically: either every def
// becomes visible or (on any error) none does and the table is left
// exactly as it was.
//
// Add is purely additive: a later call cannot replace an
// already-registered name, and a collision with an existing entry is
// always an error.
func (t *SymbolTable) Add(files ...*FileBuilder) ([]*FileDef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	newMsgs := make(map[string]*MessageBuilder)
	newEnums := make(map[string]*EnumBuilder)
	var pendingExt []pendingExtension

	// Step 1: collect new names, rejecting anonymous or duplicate ones.
	for _, fb := range files {
		for _, mb := range fb.messageBuilders {
			if mb.s.fullName == "" {
				return nil, errf(ErrAnonymous, "defs: file %s declares an anonymous message", fb.s.name)
			}
			if _, dup := newMsgs[mb.s.fullName]; dup {
				return nil, errf(ErrDuplicateName, "defs: duplicate message name %q", mb.s.fullName)
			}
			if t.existsLocked(mb.s.fullName) {
				return nil, errf(ErrDuplicateName, "defs: message %q already registered", mb.s.fullName)
			}
			newMsgs[mb.s.fullName] = mb
		}
		for _, eb := range fb.enumBuilders {
			if eb.s.fullName == "" {
				return nil, errf(ErrAnonymous, "defs: file %s declares an anonymous enum", fb.s.name)
			}
			if _, dup := newEnums[eb.s.fullName]; dup {
				return nil, errf(ErrDuplicateName, "defs: duplicate enum name %q", eb.s.fullName)
			}
			if t.existsLocked(eb.s.fullName) {
				return nil, errf(ErrDuplicateName, "defs: enum %q already registered", eb.s.fullName)
			}
			newEnums[eb.s.fullName] = eb
		}
	}

	// Step 2 (simplified): extension fields are
	// collected here and matched against their extendee after resolution,
	// below, rather than by splicing them into the extendee's field list.
	for _, fb := range files {
		pendingExt = append(pendingExt, fb.pendingExtensions...)
	}

	// Step 4: resolve every symbolic subdef reference.
	for _, fb := range files {
		for _, mb := range fb.messageBuilders {
			for _, f := range mb.fieldBuilders {
				if f.s.subdefName == "" || f.s.subdefMsg != nil || f.s.subdefEnum != nil {
					continue
				}
				if err := t.resolveField(mb.s.fullName, f, newMsgs, newEnums); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, pe := range pendingExt {
		if pe.field.s.subdefName != "" && pe.field.s.subdefMsg == nil && pe.field.s.subdefEnum == nil {
			if err := t.resolveField(pe.extendee, pe.field, newMsgs, newEnums); err != nil {
				return nil, err
			}
		}
	}

	// Step 5: freeze the add-set atomically via SCC over ref2 edges
	// (cross-message/enum subdef references within the add-set).
	root := buildNode{}
	graph := func(n buildNode) iter.Seq[buildNode] {
		return func(yield func(buildNode) bool) {
			if n == root {
				for _, fb := range files {
					for _, mb := range fb.messageBuilders {
						if !yield(buildNode{msg: mb}) {
							return
						}
					}
					for _, eb := range fb.enumBuilders {
						if !yield(buildNode{enum: eb}) {
							return
						}
					}
				}
				return
			}
			if n.msg != nil {
				for _, f := range n.msg.fieldBuilders {
					if f.s.subdefMsg != nil {
						if dep, ok := newMsgs[f.s.subdefMsg.FullName()]; ok {
							if !yield(buildNode{msg: dep}) {
								return
							}
						}
					}
					if f.s.subdefEnum != nil {
						if dep, ok := newEnums[f.s.subdefEnum.FullName()]; ok {
							if !yield(buildNode{enum: dep}) {
								return
							}
						}
					}
				}
			}
		}
	}

	dag := scc.Sort(root, graph)
	debug.Log(nil, "defs.freeze", "%d messages, %d enums", len(newMsgs), len(newEnums))

	frozenMsgs := make(map[string]*MessageDef, len(newMsgs))
	frozenEnums := make(map[string]*EnumDef, len(newEnums))

	for c := range dag.Topological() {
		g := newGroup(c.Index())
		for _, n := range c.Members() {
			switch {
			case n.msg != nil:
				md, err := n.msg.freeze(g)
				if err != nil {
					return nil, err
				}
				frozenMsgs[md.FullName()] = md
			case n.enum != nil:
				frozenEnums[n.enum.FullName()] = n.enum.freeze(g)
			}
		}
	}

	// Step 2 (continued): now that every message is frozen, validate and
	// register extensions.
	for _, pe := range pendingExt {
		extendee, ok := frozenMsgs[pe.extendee]
		if !ok {
			extendee, ok = t.messages.Get(pe.extendee)
		}
		if !ok {
			return nil, errf(ErrUnresolvedReference, "defs: extension %q targets unknown message %q", pe.field.Name(), pe.extendee)
		}
		if err := pe.field.validate(); err != nil {
			return nil, err
		}
		if !extendee.IsExtensionNumber(pe.field.s.number) {
			return nil, errf(ErrInvalidExtensionRange, "defs: extension %q field number %d is not in an extension range of %q", pe.field.Name(), pe.field.s.number, pe.extendee)
		}
		pe.field.s.extension = true
		pe.field.s.frozen = true
	}

	// Freeze files themselves, wiring their resolved message/enum lists.
	frozenFiles := make([]*FileDef, len(files))
	for i, fb := range files {
		fb.s.messages = make([]*MessageDef, len(fb.messageBuilders))
		for j, mb := range fb.messageBuilders {
			md := frozenMsgs[mb.s.fullName]
			md.s.file = &FileDef{s: fb.s}
			fb.s.messages[j] = md
		}
		fb.s.enums = make([]*EnumDef, len(fb.enumBuilders))
		for j, eb := range fb.enumBuilders {
			ed := frozenEnums[eb.s.fullName]
			ed.s.file = &FileDef{s: fb.s}
			fb.s.enums[j] = ed
		}
		fb.s.frozen = true
		frozenFiles[i] = &FileDef{s: fb.s}
	}

	// Step 6: publish. The lock taken at the top of Add is held through
	// this point, so other Add/lookup calls see either the pre- or
	// post-publish state, never a partial one.
	for name, md := range frozenMsgs {
		t.messages.Set(name, md)
	}
	for name, ed := range frozenEnums {
		t.enums.Set(name, ed)
	}
	for _, fd := range frozenFiles {
		t.files.Set(fd.Name(), fd)
	}
	for _, pe := range pendingExt {
		byNum, ok := t.extensions[pe.extendee]
		if !ok {
			byNum = make(map[int32]*FieldDef)
			t.extensions[pe.extendee] = byNum
		}
		byNum[pe.field.s.number] = &FieldDef{s: pe.field.s}
	}

	return frozenFiles, nil
}

// existsLocked reports whether name is already registered. Callers must
// hold t.mu.
func (t *SymbolTable) existsLocked(name string) bool {
	if _, ok := t.messages.Get(name); ok {
		return true
	}
	if _, ok := t.enums.Get(name); ok {
		return true
	}
	return false
}

// resolveField resolves f's symbolic subdef name against base's scope:
// ".x.y.z" is absolute; "x.y.z" is tried as "base.x.y.z",
// then with one trailing component stripped from base, and so on until
// base is empty.
func (t *SymbolTable) resolveField(base string, f *FieldBuilder, newMsgs map[string]*MessageBuilder, newEnums map[string]*EnumBuilder) error {
	name := f.s.subdefName

	lookup := func(full string) (msg *MessageDef, enum *EnumDef, ok bool) {
		if mb, ok := newMsgs[full]; ok {
			return mb.s.selfDef(), nil, true
		}
		if eb, ok := newEnums[full]; ok {
			return nil, eb.s.selfDef(), true
		}
		if md, ok := t.messages.Get(full); ok {
			return md, nil, true
		}
		if ed, ok := t.enums.Get(full); ok {
			return nil, ed, true
		}
		return nil, nil, false
	}

	var candidates []string
	if strings.HasPrefix(name, ".") {
		candidates = []string{name[1:]}
	} else {
		parts := strings.Split(base, ".")
		for i := len(parts); i >= 0; i-- {
			scope := strings.Join(parts[:i], ".")
			if scope == "" {
				candidates = append(candidates, name)
			} else {
				candidates = append(candidates, scope+"."+name)
			}
		}
	}

	for _, full := range candidates {
		if md, ed, ok := lookup(full); ok {
			if md != nil {
				if f.s.kind != KindMessage && f.s.kind != KindGroup {
					return errf(ErrUnresolvedReference, "defs: field %q resolves %q to a message but is of kind %v", f.s.name, name, f.s.kind)
				}
				f.s.subdefMsg = md
			} else {
				if f.s.kind != KindEnum {
					return errf(ErrUnresolvedReference, "defs: field %q resolves %q to an enum but is of kind %v", f.s.name, name, f.s.kind)
				}
				f.s.subdefEnum = ed
			}
			return nil
		}
	}

	return errf(ErrUnresolvedReference, "defs: field %q: could not resolve %q from scope %q", f.s.name, name, base)
}
