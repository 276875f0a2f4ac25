package convert

import (
	"go/types"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/daogen/compiler/diag"
	"github.com/syssam/daogen/compiler/nullness"
	"github.com/syssam/daogen/compiler/shape"
)

// columnEncoder is an encoder producing exactly one bind argument.
type columnEncoder interface {
	Encoder
	// native is the Go type handed to the driver, or nil when the value
	// is bound as a driver.Valuer.
	native() types.Type
	encode(e *Emitter, path Path, src *jen.Statement, flag nullness.Flag, sink Sink) []jen.Code
}

// NativeEncoder binds values the driver accepts directly, optionally
// converting them to another type first.
type NativeEncoder struct {
	base
	to     types.Type
	valuer bool
}

func (*NativeEncoder) isEncoder() {}

func (n *NativeEncoder) native() types.Type {
	switch {
	case n.valuer:
		return nil
	case n.to != nil:
		return n.to
	}
	return n.typ
}

func (n *NativeEncoder) encode(_ *Emitter, _ Path, src *jen.Statement, _ nullness.Flag, sink Sink) []jen.Code {
	if n.to != nil {
		return sink(shape.Code(n.to).Call(src))
	}
	return sink(src)
}

func newNativeEncoder(t, to types.Type, valuer bool) *NativeEncoder {
	desc := "native " + TypeString(t)
	if to != nil {
		desc = "conversion " + TypeString(t) + " -> " + TypeString(to)
	}
	return &NativeEncoder{base: base{typ: t, desc: desc}, to: to, valuer: valuer}
}

// PointerEncoder binds the pointee, or NULL for a nil pointer.
type PointerEncoder struct {
	base
	elem Encoder
}

func (*PointerEncoder) isEncoder() {}

// Capability is the pointee's.
func (p *PointerEncoder) Capability() Capability { return p.elem.Capability() }

func (p *PointerEncoder) native() types.Type {
	if ce, ok := p.elem.(columnEncoder); ok {
		return ce.native()
	}
	return nil
}

func (p *PointerEncoder) encode(e *Emitter, path Path, src *jen.Statement, flag nullness.Flag, sink Sink) []jen.Code {
	path, ok := e.visit(path, p)
	if !ok {
		return nil
	}
	ce, ok := p.elem.(columnEncoder)
	if !ok {
		e.Report(diag.Errorf("%s is bound to a whole row; use :<param>.<column> markers", TypeString(p.typ)))
		return nil
	}
	deref := jen.Op("*").Add(src)
	if _, plain := ce.(*NativeEncoder); !plain {
		deref = jen.Parens(deref)
	}
	if flag == nullness.NonNull {
		return ce.encode(e, path, deref, nullness.NonNull, sink)
	}
	return []jen.Code{
		jen.If(jen.Add(src).Op("==").Nil()).Block(
			sink(nullValue(ce.native()))...,
		).Else().Block(
			ce.encode(e, path, deref, nullness.NonNull, sink)...,
		),
	}
}

// OptionalEncoder binds sql.Null[T] and the sql.NullXxx structs. Values
// whose component the driver accepts are bound as is, since the wrappers
// are driver.Valuers.
type OptionalEncoder struct {
	base
	value string
	elem  columnEncoder
}

func (*OptionalEncoder) isEncoder() {}

func (o *OptionalEncoder) native() types.Type { return o.elem.native() }

func (o *OptionalEncoder) encode(e *Emitter, path Path, src *jen.Statement, _ nullness.Flag, sink Sink) []jen.Code {
	if n, ok := o.elem.(*NativeEncoder); ok && n.to == nil {
		return sink(src)
	}
	path, ok := e.visit(path, o)
	if !ok {
		return nil
	}
	return []jen.Code{
		jen.If(jen.Op("!").Add(src).Dot("Valid")).Block(
			sink(nullValue(o.elem.native()))...,
		).Else().Block(
			o.elem.encode(e, path, jen.Add(src).Dot(o.value), nullness.NonNull, sink)...,
		),
	}
}

// DelegateEncoder calls a user function or method and binds its result.
type DelegateEncoder struct {
	base
	d   Delegate
	out columnEncoder
}

func (*DelegateEncoder) isEncoder() {}

func (d *DelegateEncoder) native() types.Type { return d.out.native() }

func (d *DelegateEncoder) encode(e *Emitter, path Path, src *jen.Statement, _ nullness.Flag, sink Sink) []jen.Code {
	path, ok := e.visit(path, d)
	if !ok {
		return nil
	}
	var call *jen.Statement
	if d.d.Shape == EncodeMethod {
		call = jen.Add(src).Dot(d.d.Func.Name()).Call()
	} else {
		call = funcRef(d.d.Func).Call(src)
	}
	v := e.Var("v")
	var stmts []jen.Code
	if d.fallible {
		stmts = append(stmts,
			jen.List(jen.Id(v), jen.Err()).Op(":=").Add(call),
			e.check("err"),
		)
	} else {
		stmts = append(stmts, jen.Id(v).Op(":=").Add(call))
	}
	return append(stmts, d.out.encode(e, path, jen.Id(v), valueFlag(d.out.Type()), sink)...)
}

// WrapperEncoder binds the only field of a single-field struct.
type WrapperEncoder struct {
	base
	f field
}

func (*WrapperEncoder) isEncoder() {}

func (w *WrapperEncoder) native() types.Type { return w.f.enc.native() }

func (w *WrapperEncoder) encode(e *Emitter, path Path, src *jen.Statement, _ nullness.Flag, sink Sink) []jen.Code {
	path, ok := e.visit(path, w)
	if !ok {
		return nil
	}
	return w.f.enc.encode(e, path, jen.Add(src).Dot(w.f.v.Name()), w.f.flag, sink)
}

// EnumEncoder binds the identifier of the constant equal to the value.
type EnumEncoder struct {
	base
	consts []*types.Const
}

func (*EnumEncoder) isEncoder() {}

func (*EnumEncoder) native() types.Type { return types.Typ[types.String] }

func (n *EnumEncoder) encode(e *Emitter, _ Path, src *jen.Statement, _ nullness.Flag, sink Sink) []jen.Code {
	v := e.Var("v")
	cases := make([]jen.Code, 0, len(n.consts)+1)
	for _, c := range n.consts {
		cases = append(cases, jen.Case(constRef(c)).Block(jen.Id(v).Op("=").Lit(c.Name())))
	}
	cases = append(cases, jen.Default().Block(
		e.Fail(jen.Qual(shape.RuntimePath, "NewEnumError").Call(
			e.op(), jen.Lit(TypeString(n.typ)), jen.Qual("fmt", "Sprint").Call(src),
		)),
	))
	stmts := []jen.Code{
		jen.Var().Id(v).String(),
		jen.Switch(src).Block(cases...),
	}
	return append(stmts, sink(jen.Id(v))...)
}

// RowEncoder binds the fields of a struct as named columns.
type RowEncoder struct {
	base
	fields []field
}

func (*RowEncoder) isEncoder() {}

// Capability implements Converter.
func (*RowEncoder) Capability() Capability { return Row }

// Columns returns the bound column names in field order.
func (r *RowEncoder) Columns() []string {
	cols := make([]string, len(r.fields))
	for i, f := range r.fields {
		cols[i] = f.col
	}
	return cols
}

func (r *RowEncoder) field(col string) (field, bool) {
	for _, f := range r.fields {
		if f.col == col {
			return f, true
		}
	}
	return field{}, false
}

// funcRef refers to a package-level function from generated code.
func funcRef(fn *types.Func) *jen.Statement {
	if fn.Pkg() == nil {
		return jen.Id(fn.Name())
	}
	return jen.Qual(fn.Pkg().Path(), fn.Name())
}

func constRef(c *types.Const) *jen.Statement {
	return jen.Qual(c.Pkg().Path(), c.Name())
}
