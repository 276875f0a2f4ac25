package shape

import (
	"go/types"

	"github.com/dave/jennifer/jen"
)

// Code renders t as a jennifer type expression. Named types are qualified
// by import path, so jennifer manages the imports of the generated file.
func Code(t types.Type) *jen.Statement {
	switch t := t.(type) {
	case nil:
		return jen.Null()
	case *types.Alias:
		if obj := t.Obj(); obj.Pkg() != nil {
			return qualified(obj, t.TypeArgs())
		}
		return Code(types.Unalias(t))
	case *types.Basic:
		if t.Kind() == types.UnsafePointer {
			return jen.Qual("unsafe", "Pointer")
		}
		return jen.Id(t.Name())
	case *types.Named:
		return qualified(t.Obj(), t.TypeArgs())
	case *types.TypeParam:
		return jen.Id(t.Obj().Name())
	case *types.Pointer:
		return jen.Op("*").Add(Code(t.Elem()))
	case *types.Slice:
		return jen.Index().Add(Code(t.Elem()))
	case *types.Array:
		return jen.Index(jen.Lit(int(t.Len()))).Add(Code(t.Elem()))
	case *types.Map:
		return jen.Map(Code(t.Key())).Add(Code(t.Elem()))
	case *types.Chan:
		switch t.Dir() {
		case types.SendOnly:
			return jen.Chan().Op("<-").Add(Code(t.Elem()))
		case types.RecvOnly:
			return jen.Op("<-").Chan().Add(Code(t.Elem()))
		}
		return jen.Chan().Add(Code(t.Elem()))
	case *types.Signature:
		return jen.Func().Add(Signature(t, nil))
	case *types.Struct:
		fields := make([]jen.Code, t.NumFields())
		for i := range t.NumFields() {
			f := t.Field(i)
			if f.Embedded() {
				fields[i] = Code(f.Type())
			} else {
				fields[i] = jen.Id(f.Name()).Add(Code(f.Type()))
			}
		}
		return jen.Struct(fields...)
	case *types.Interface:
		if t.Empty() {
			return jen.Id("any")
		}
		methods := make([]jen.Code, 0, t.NumMethods())
		for i := range t.NumExplicitMethods() {
			m := t.ExplicitMethod(i)
			methods = append(methods, jen.Id(m.Name()).Add(Signature(m.Type().(*types.Signature), nil)))
		}
		for i := range t.NumEmbeddeds() {
			methods = append(methods, Code(t.EmbeddedType(i)))
		}
		return jen.Interface(methods...)
	}
	return jen.Id(t.String())
}

func qualified(obj *types.TypeName, args *types.TypeList) *jen.Statement {
	var s *jen.Statement
	if obj.Pkg() == nil {
		s = jen.Id(obj.Name())
	} else {
		s = jen.Qual(obj.Pkg().Path(), obj.Name())
	}
	if args.Len() > 0 {
		codes := make([]jen.Code, args.Len())
		for i := range args.Len() {
			codes[i] = Code(args.At(i))
		}
		s = s.Types(codes...)
	}
	return s
}

// Signature renders the parameter and result lists of sig. names, when
// non-nil, overrides the parameter names.
func Signature(sig *types.Signature, names []string) *jen.Statement {
	params := make([]jen.Code, sig.Params().Len())
	for i := range sig.Params().Len() {
		p := sig.Params().At(i)
		name := p.Name()
		if i < len(names) {
			name = names[i]
		}
		typ := p.Type()
		var c *jen.Statement
		if sig.Variadic() && i == sig.Params().Len()-1 {
			c = jen.Op("...").Add(Code(typ.(*types.Slice).Elem()))
		} else {
			c = Code(typ)
		}
		if name != "" && name != "_" {
			c = jen.Id(name).Add(c)
		}
		params[i] = c
	}
	results := make([]jen.Code, sig.Results().Len())
	for i := range sig.Results().Len() {
		results[i] = Code(sig.Results().At(i).Type())
	}
	s := jen.Params(params...)
	switch len(results) {
	case 0:
	case 1:
		s.Add(results[0])
	default:
		s.Params(results...)
	}
	return s
}
