// Package shape classifies Go types by their container structure, which
// selects the code generation strategy for a DAO method result or parameter.
package shape

import (
	"go/types"
)

// RuntimePath is the import path of the runtime package generated code uses.
const RuntimePath = "github.com/syssam/daogen"

// Kind is the container/scalar structure of a type.
type Kind int

const (
	Void Kind = iota
	Primitive
	Object
	OptionalWrapper
	Array
	List
	Stream
	CursorIterable
	CursorRandomAccess
	BatchHandle
)

var kindNames = [...]string{
	Void:               "void",
	Primitive:          "primitive",
	Object:             "object",
	OptionalWrapper:    "optional wrapper",
	Array:              "array",
	List:               "list",
	Stream:             "stream",
	CursorIterable:     "cursor",
	CursorRandomAccess: "random access cursor",
	BatchHandle:        "batch handle",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// HasElem reports whether the kind carries a component type.
func (k Kind) HasElem() bool {
	switch k {
	case OptionalWrapper, Array, List, Stream, CursorIterable, CursorRandomAccess, BatchHandle:
		return true
	}
	return false
}

// Collection reports whether values of the kind are bound or read as a
// sequence of elements.
func (k Kind) Collection() bool {
	switch k {
	case Array, List, Stream, CursorIterable, CursorRandomAccess, BatchHandle:
		return true
	}
	return false
}

// Classify maps t to its Kind and component type. It is total: types it
// does not recognize are Object. Only one container level is recognized;
// a container of containers is an Object.
func Classify(t types.Type) (Kind, types.Type) {
	if t == nil {
		return Void, nil
	}
	t = types.Unalias(t)
	if k, elem, ok := classifyContainer(t); ok {
		if ek, _, nested := classifyContainer(types.Unalias(elem)); nested && ek.Collection() {
			return Object, nil
		}
		return k, elem
	}
	if elem, ok := Optional(t); ok {
		return OptionalWrapper, elem
	}
	if _, ok := t.(*types.Basic); ok {
		return Primitive, nil
	}
	return Object, nil
}

// classifyContainer recognizes the collection kinds. Named slice and array
// types are not containers; they are bound through their own converter.
func classifyContainer(t types.Type) (Kind, types.Type, bool) {
	if f, ok := batchHandle(t); ok {
		return BatchHandle, f, true
	}
	switch t := t.(type) {
	case *types.Slice:
		if IsBytes(t) {
			return Object, nil, false
		}
		return List, t.Elem(), true
	case *types.Array:
		return Array, t.Elem(), true
	case *types.Pointer:
		if named, ok := types.Unalias(t.Elem()).(*types.Named); ok && named.TypeArgs().Len() == 1 {
			switch {
			case isObj(named.Obj(), RuntimePath, "Iterator"):
				return CursorIterable, named.TypeArgs().At(0), true
			case isObj(named.Obj(), RuntimePath, "Cursor"):
				return CursorRandomAccess, named.TypeArgs().At(0), true
			}
		}
	case *types.Named:
		args := t.TypeArgs()
		switch {
		case isObj(t.Obj(), "iter", "Seq") && args.Len() == 1:
			return Stream, args.At(0), true
		case isObj(t.Obj(), "iter", "Seq2") && args.Len() == 2 && IsError(args.At(1)):
			return Stream, args.At(0), true
		}
	}
	return 0, nil, false
}

// batchHandle reports whether t is func(add F) error where F is a function
// returning exactly error, and returns F.
func batchHandle(t types.Type) (types.Type, bool) {
	sig, ok := t.Underlying().(*types.Signature)
	if !ok || sig.Variadic() || sig.Params().Len() != 1 || !ReturnsOnlyError(sig) {
		return nil, false
	}
	f := sig.Params().At(0).Type()
	add, ok := f.Underlying().(*types.Signature)
	if !ok || !ReturnsOnlyError(add) {
		return nil, false
	}
	return f, true
}

// Optional reports whether t is sql.Null[T] or one of the sql.NullXxx
// structs, and returns the wrapped type.
func Optional(t types.Type) (types.Type, bool) {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok || named.Obj().Pkg() == nil || named.Obj().Pkg().Path() != "database/sql" {
		return nil, false
	}
	name := named.Obj().Name()
	if name == "Null" && named.TypeArgs().Len() == 1 {
		return named.TypeArgs().At(0), true
	}
	switch name {
	case "NullString", "NullInt64", "NullInt32", "NullInt16", "NullByte", "NullFloat64", "NullBool", "NullTime":
		// The wrapped value is the first field: NullString{String, Valid}.
		if st, ok := named.Underlying().(*types.Struct); ok && st.NumFields() == 2 {
			return st.Field(0).Type(), true
		}
	}
	return nil, false
}

// ReturnsOnlyError reports whether sig has the single result error.
func ReturnsOnlyError(sig *types.Signature) bool {
	return sig.Results().Len() == 1 && IsError(sig.Results().At(0).Type())
}

// IsError reports whether t is the predeclared error type.
func IsError(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

// IsBytes reports whether t is []byte.
func IsBytes(t types.Type) bool {
	s, ok := types.Unalias(t).(*types.Slice)
	if !ok {
		return false
	}
	b, ok := types.Unalias(s.Elem()).(*types.Basic)
	return ok && b.Kind() == types.Byte
}

// IsContext reports whether t is context.Context.
func IsContext(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	return ok && isObj(named.Obj(), "context", "Context")
}

// Nilable reports whether a value of t can be nil.
func Nilable(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Pointer, *types.Slice, *types.Map, *types.Chan, *types.Signature, *types.Interface:
		return true
	case *types.Basic:
		return t.Underlying().(*types.Basic).Kind() == types.UnsafePointer
	}
	return false
}

// Is reports whether t is the named type path.name (ignoring type arguments).
func Is(t types.Type, path, name string) bool {
	named, ok := types.Unalias(t).(*types.Named)
	return ok && isObj(named.Obj(), path, name)
}

func isObj(obj *types.TypeName, path, name string) bool {
	return obj != nil && obj.Pkg() != nil && obj.Pkg().Path() == path && obj.Name() == name
}

// Result describes the results of a DAO method: the value type (nil when
// the method returns nothing or only error) and whether it returns error.
type Result struct {
	Type     types.Type
	HasError bool
}

// Results splits sig's results. ok is false when the results are not one
// of (), (error), (T) or (T, error).
func Results(sig *types.Signature) (r Result, ok bool) {
	res := sig.Results()
	switch res.Len() {
	case 0:
		return r, true
	case 1:
		if IsError(res.At(0).Type()) {
			return Result{HasError: true}, true
		}
		return Result{Type: res.At(0).Type()}, true
	case 2:
		if IsError(res.At(1).Type()) && !IsError(res.At(0).Type()) {
			return Result{Type: res.At(0).Type(), HasError: true}, true
		}
	}
	return r, false
}
