package il

import (
	"github.com/wippyai/il-weaver/errors"
)

// TypeSig is a textual type signature: a primitive name or the full name of
// a declared type.
type TypeSig string

// Primitive signatures.
const (
	Void    TypeSig = "void"
	Bool    TypeSig = "bool"
	Int32   TypeSig = "int32"
	Int64   TypeSig = "int64"
	Float32 TypeSig = "float32"
	Float64 TypeSig = "float64"
	String  TypeSig = "string"
	Object  TypeSig = "object"
)

// Local is a local variable slot. Index is positional within the owning
// body's slot list; bodies keep indices dense from 0.
type Local struct {
	Name  string
	Type  TypeSig
	Index int
}

// HandlerKind distinguishes structured exception handler flavors.
type HandlerKind uint8

const (
	HandlerCatch HandlerKind = iota
	HandlerFilter
	HandlerFinally
	HandlerFault
)

func (k HandlerKind) String() string {
	switch k {
	case HandlerCatch:
		return "catch"
	case HandlerFilter:
		return "filter"
	case HandlerFinally:
		return "finally"
	case HandlerFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Handler is a structured exception handler region. The try range is
// half-open: [TryStart, TryEnd). All four boundaries must resolve by
// identity to instructions in the owning body.
type Handler struct {
	TryStart     *Instruction
	TryEnd       *Instruction
	HandlerStart *Instruction
	HandlerEnd   *Instruction
	CatchType    *MemberRef
	Kind         HandlerKind
}

// Boundaries returns pointers to the four boundary fields, in a fixed order,
// so callers can rewrite them uniformly.
func (h *Handler) Boundaries() [4]**Instruction {
	return [4]**Instruction{&h.TryStart, &h.TryEnd, &h.HandlerStart, &h.HandlerEnd}
}

// Body is an ordered instruction stream with its local slots and exception
// handler regions.
type Body struct {
	Instructions []*Instruction
	Locals       []*Local
	Handlers     []*Handler
	MaxStack     int
	InitLocals   bool
}

// RefKind identifies the flavor of a member reference or declaration.
type RefKind uint8

const (
	RefType RefKind = iota
	RefField
	RefMethod
)

func (k RefKind) String() string {
	switch k {
	case RefType:
		return "type"
	case RefField:
		return "field"
	case RefMethod:
		return "method"
	default:
		return "unknown"
	}
}

// Declaration is a type, field, or method defined in some module.
type Declaration interface {
	FullName() string
	DeclaringModule() *Module
	Kind() RefKind
}

// Type is a declared type owning fields and methods.
type Type struct {
	Name    string
	Module  *Module
	Fields  []*Field
	Methods []*Method
}

func (t *Type) FullName() string         { return t.Name }
func (t *Type) DeclaringModule() *Module { return t.Module }
func (t *Type) Kind() RefKind            { return RefType }

// AddMethod appends a method to the type and links its parent.
func (t *Type) AddMethod(m *Method) *Method {
	m.Parent = t
	t.Methods = append(t.Methods, m)
	return m
}

// AddField appends a field to the type and links its parent.
func (t *Type) AddField(f *Field) *Field {
	f.Parent = t
	t.Fields = append(t.Fields, f)
	return f
}

// Field is a declared field.
type Field struct {
	Name   string
	Type   TypeSig
	Parent *Type
}

func (f *Field) FullName() string { return f.Parent.Name + "::" + f.Name }
func (f *Field) DeclaringModule() *Module {
	return f.Parent.Module
}
func (f *Field) Kind() RefKind { return RefField }

// Method is a declared method with an optional body.
type Method struct {
	Name   string
	Parent *Type
	Return TypeSig
	Params []TypeSig
	Body   *Body
	Static bool
}

func (m *Method) FullName() string { return m.Parent.Name + "::" + m.Name }
func (m *Method) DeclaringModule() *Module {
	return m.Parent.Module
}
func (m *Method) Kind() RefKind { return RefMethod }

// MemberRef is a symbolic reference to a declaration, owned by the reference
// table of a module. Refs decoded from a container start unresolved.
type MemberRef struct {
	Name  string
	Owner *Module
	def   Declaration
	RKind RefKind
}

// NewRef creates an unattached, unresolved reference.
func NewRef(kind RefKind, fullName string) *MemberRef {
	return &MemberRef{RKind: kind, Name: fullName}
}

// Kind returns the reference flavor.
func (r *MemberRef) Kind() RefKind { return r.RKind }

// Def returns the resolved declaration, or nil if unresolved.
func (r *MemberRef) Def() Declaration { return r.def }

// SetDef caches the resolution result.
func (r *MemberRef) SetDef(d Declaration) { r.def = d }

// Module owns declared types and a reference table of imported foreign
// declarations. A module is the unit of reference resolution and import.
//
// The reference table is the only mutable state shared across merge calls;
// concurrent merges importing into the same module must be serialized by
// the caller.
type Module struct {
	Name    string
	Types   []*Type
	Refs    []*MemberRef
	imports map[string]*MemberRef
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// AddType appends a type declaration and links its module.
func (m *Module) AddType(t *Type) *Type {
	t.Module = m
	m.Types = append(m.Types, t)
	return t
}

// FindType returns the declared type with the given full name, or nil.
func (m *Module) FindType(fullName string) *Type {
	for _, t := range m.Types {
		if t.Name == fullName {
			return t
		}
	}
	return nil
}

// FindMethod returns the declared method with the given full name
// ("Type::Method"), or nil.
func (m *Module) FindMethod(fullName string) *Method {
	for _, t := range m.Types {
		for _, meth := range t.Methods {
			if meth.FullName() == fullName {
				return meth
			}
		}
	}
	return nil
}

func refKey(kind RefKind, name string) string {
	return kind.String() + ":" + name
}

// Import adds decl to the module's reference table and returns the owning
// reference. Importing is idempotent per declaration per module: repeated
// imports of the same declaration return the same reference.
func (m *Module) Import(decl Declaration) *MemberRef {
	if m.imports == nil {
		m.imports = make(map[string]*MemberRef)
	}
	key := refKey(decl.Kind(), decl.FullName())
	if ref, ok := m.imports[key]; ok {
		return ref
	}
	ref := &MemberRef{RKind: decl.Kind(), Name: decl.FullName(), Owner: m, def: decl}
	m.imports[key] = ref
	m.Refs = append(m.Refs, ref)
	return ref
}

// RegisterRef records a decoded reference in the module's table without
// resolving it. Used by the container decoder.
func (m *Module) RegisterRef(ref *MemberRef) *MemberRef {
	if m.imports == nil {
		m.imports = make(map[string]*MemberRef)
	}
	key := refKey(ref.RKind, ref.Name)
	if existing, ok := m.imports[key]; ok {
		return existing
	}
	ref.Owner = m
	m.imports[key] = ref
	m.Refs = append(m.Refs, ref)
	return ref
}

// ModuleSet resolves references and locates methods across a group of loaded
// modules. It implements the provider interface consumed by the splice
// engine.
type ModuleSet struct {
	mods []*Module
}

// NewModuleSet creates a resolution scope over the given modules.
func NewModuleSet(mods ...*Module) *ModuleSet {
	return &ModuleSet{mods: mods}
}

// Add extends the resolution scope.
func (s *ModuleSet) Add(m *Module) {
	s.mods = append(s.mods, m)
}

// FindMethod locates a method by full name within a specific module.
func (s *ModuleSet) FindMethod(m *Module, fullName string) (*Method, error) {
	if meth := m.FindMethod(fullName); meth != nil {
		return meth, nil
	}
	return nil, errors.NotFound(errors.PhaseResolve, fullName, m.Name)
}

// Resolve maps a reference to its defining declaration, searching every
// module in the set. Resolution results are cached on the reference.
func (s *ModuleSet) Resolve(ref *MemberRef) (Declaration, error) {
	if ref == nil {
		return nil, errors.Unresolved(errors.PhaseResolve, "<nil reference>")
	}
	if d := ref.def; d != nil {
		return d, nil
	}
	for _, m := range s.mods {
		if d := findDecl(m, ref.RKind, ref.Name); d != nil {
			ref.def = d
			return d, nil
		}
	}
	return nil, errors.Unresolved(errors.PhaseResolve, ref.RKind.String()+" "+ref.Name)
}

// Import imports decl into m's reference table.
func (s *ModuleSet) Import(m *Module, decl Declaration) (*MemberRef, error) {
	return m.Import(decl), nil
}

func findDecl(m *Module, kind RefKind, fullName string) Declaration {
	switch kind {
	case RefType:
		if t := m.FindType(fullName); t != nil {
			return t
		}
	case RefMethod:
		if meth := m.FindMethod(fullName); meth != nil {
			return meth
		}
	case RefField:
		for _, t := range m.Types {
			for _, f := range t.Fields {
				if f.FullName() == fullName {
					return f
				}
			}
		}
	}
	return nil
}
