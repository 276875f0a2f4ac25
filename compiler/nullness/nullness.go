// Package nullness computes the nullability of a type occurrence from the
// markers on the occurrence, on the named type's declaration and on the
// enclosing scopes (method, repository interface, package).
package nullness

import (
	"go/token"
	"go/types"
	"reflect"
	"strings"

	"github.com/syssam/daogen/compiler/diag"
	"github.com/syssam/daogen/compiler/shape"
)

// Flag is the nullability of a type occurrence.
type Flag int

const (
	Unspecified Flag = iota
	Nullable
	NonNull
	OptionalWrapper
)

// String implements fmt.Stringer.
func (f Flag) String() string {
	switch f {
	case Nullable:
		return "nullable"
	case NonNull:
		return "non-null"
	case OptionalWrapper:
		return "optional"
	default:
		return "unspecified"
	}
}

// AllowsNull reports whether a sink with this flag accepts NULL.
func (f Flag) AllowsNull() bool { return f != NonNull }

// Assignable reports whether a value flagged s may flow into a sink flagged
// t: only a guaranteed non-null source may feed a non-null sink.
func Assignable(s, t Flag) bool {
	return t != NonNull || s == NonNull
}

// Mark is a set of explicit markers on an occurrence or declaration.
type Mark uint8

const (
	MarkNullable Mark = 1 << iota
	MarkNonNull
)

// Has reports whether m contains o.
func (m Mark) Has(o Mark) bool { return m&o != 0 }

// Default is the scope-wide default a scope declares.
type Default int

const (
	Inherit  Default = iota
	Marked           // //dao:nullmarked
	Unmarked         // //dao:nullunmarked
)

// Scope is a lexical scope that may declare a default. Scopes chain
// method -> interface -> package through Parent.
type Scope struct {
	Name    string
	Default Default
	Parent  *Scope
}

// Child returns a new scope nested in s.
func (s *Scope) Child(name string, d Default) *Scope {
	return &Scope{Name: name, Default: d, Parent: s}
}

// Occurrence is one use of a type: a parameter, a result, a slice element
// or a struct field.
type Occurrence struct {
	Type  types.Type
	Marks Mark
	Pos   token.Position
	Desc  string // e.g. "param id"
}

// Resolver computes flags. It holds the markers found on type declarations
// and the package scopes of the loaded packages; it keeps no other state.
type Resolver struct {
	types    map[*types.TypeName]Mark
	packages map[string]*Scope
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		types:    make(map[*types.TypeName]Mark),
		packages: make(map[string]*Scope),
	}
}

// MarkType records markers declared on a named type.
func (r *Resolver) MarkType(tn *types.TypeName, m Mark) {
	r.types[tn] |= m
}

// SetPackage records the scope of a loaded package.
func (r *Resolver) SetPackage(path string, s *Scope) {
	r.packages[path] = s
}

// Package returns the scope of the package with the given path, or nil.
func (r *Resolver) Package(path string) *Scope {
	return r.packages[path]
}

// FlagOf returns the flag of occ in scope.
func (r *Resolver) FlagOf(scope *Scope, occ Occurrence) Flag {
	f, _ := r.Resolve(scope, occ)
	return f
}

// Resolve returns the flag of occ in scope and the warnings raised while
// computing it.
func (r *Resolver) Resolve(scope *Scope, occ Occurrence) (Flag, diag.Set) {
	t := occ.Type
	if t == nil {
		return Unspecified, diag.Empty
	}
	if _, ok := shape.Optional(t); ok {
		return OptionalWrapper, diag.Empty
	}
	if !shape.Nilable(t) {
		return NonNull, diag.Empty
	}
	if f, ok, msgs := fromMarks(occ.Marks, occ); ok {
		return f, msgs
	}
	if f, ok, msgs := fromMarks(r.declMarks(t), occ); ok {
		return f, msgs
	}
	for s := scope; s != nil; s = s.Parent {
		switch s.Default {
		case Marked:
			return NonNull, diag.Empty
		case Unmarked:
			return Unspecified, diag.Empty
		}
	}
	return Unspecified, diag.Empty
}

func fromMarks(m Mark, occ Occurrence) (Flag, bool, diag.Set) {
	switch {
	case m.Has(MarkNullable) && m.Has(MarkNonNull):
		msg := diag.Warnf("%s is marked both nullable and non-null; treated as unspecified", describe(occ))
		return Unspecified, true, msg.At(occ.Pos)
	case m.Has(MarkNullable):
		return Nullable, true, diag.Empty
	case m.Has(MarkNonNull):
		return NonNull, true, diag.Empty
	}
	return Unspecified, false, diag.Empty
}

func describe(occ Occurrence) string {
	if occ.Desc != "" {
		return occ.Desc
	}
	return types.TypeString(occ.Type, nil)
}

// declMarks returns the markers on the declaration of t, or of its pointee.
func (r *Resolver) declMarks(t types.Type) Mark {
	if p, ok := types.Unalias(t).(*types.Pointer); ok {
		if m := r.declMarks(p.Elem()); m != 0 {
			return m
		}
	}
	if named, ok := types.Unalias(t).(*types.Named); ok {
		return r.types[named.Origin().Obj()]
	}
	return 0
}

// Field returns the occurrence of the i-th field of st, reading markers
// from the `dao:"name,nullable"` tag option.
func Field(st *types.Struct, i int, pos token.Position) Occurrence {
	f := st.Field(i)
	_, m := ParseTag(st.Tag(i))
	return Occurrence{Type: f.Type(), Marks: m, Pos: pos, Desc: "field " + f.Name()}
}

// ParseTag splits the `dao` tag of a struct field into the column name and
// the nullability markers.
func ParseTag(tag string) (name string, m Mark) {
	v, ok := reflect.StructTag(tag).Lookup("dao")
	if !ok {
		return "", 0
	}
	name, opts, _ := strings.Cut(v, ",")
	for _, o := range strings.Split(opts, ",") {
		switch strings.TrimSpace(o) {
		case "nullable":
			m |= MarkNullable
		case "nonnull":
			m |= MarkNonNull
		}
	}
	return name, m
}
