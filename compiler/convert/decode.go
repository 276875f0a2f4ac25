package convert

import (
	"go/types"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/daogen/compiler/nullness"
	"github.com/syssam/daogen/compiler/shape"
)

// columnDecoder reads one column, scanned into a sql.Null of its source
// type.
type columnDecoder interface {
	Decoder
	source() types.Type
	// decode converts src, a non-null value of the source type.
	decode(e *Emitter, path Path, src *jen.Statement, sink Sink) []jen.Code
}

// nullDecoder is a column decoder that maps NULL itself.
type nullDecoder interface {
	columnDecoder
	decodeNull(e *Emitter, path Path, null *jen.Statement, flag nullness.Flag, col string, sink Sink) []jen.Code
}

// rowDecoder reads the current row of rows.
type rowDecoder interface {
	Decoder
	decodeRow(e *Emitter, path Path, rows *jen.Statement, flag nullness.Flag, sink Sink) []jen.Code
}

// NativeDecoder reads values database/sql scans directly, optionally
// scanning another type and converting.
type NativeDecoder struct {
	base
	from types.Type
}

func (*NativeDecoder) isDecoder() {}

func (n *NativeDecoder) source() types.Type {
	if n.from != nil {
		return n.from
	}
	return n.typ
}

func (n *NativeDecoder) decode(_ *Emitter, _ Path, src *jen.Statement, sink Sink) []jen.Code {
	if n.from != nil {
		return sink(shape.Code(n.typ).Call(src))
	}
	return sink(src)
}

func newNativeDecoder(t, from types.Type) *NativeDecoder {
	desc := "native " + TypeString(t)
	if from != nil {
		desc = "conversion " + TypeString(from) + " -> " + TypeString(t)
	}
	return &NativeDecoder{base: base{typ: t, desc: desc}, from: from}
}

// PointerDecoder reads the pointee and returns its address, or nil for
// NULL.
type PointerDecoder struct {
	base
	elem Decoder
}

func (*PointerDecoder) isDecoder() {}

// Capability is the pointee's.
func (p *PointerDecoder) Capability() Capability { return p.elem.Capability() }

func (p *PointerDecoder) source() types.Type {
	if cd, ok := p.elem.(columnDecoder); ok {
		return cd.source()
	}
	return nil
}

func (p *PointerDecoder) decode(e *Emitter, path Path, src *jen.Statement, sink Sink) []jen.Code {
	path, ok := e.visit(path, p)
	if !ok {
		return nil
	}
	return p.elem.(columnDecoder).decode(e, path, src, p.addr(e, sink))
}

func (p *PointerDecoder) decodeNull(e *Emitter, path Path, null *jen.Statement, flag nullness.Flag, col string, sink Sink) []jen.Code {
	path, ok := e.visit(path, p)
	if !ok {
		return nil
	}
	valid := e.decodeValid(path, p.elem.(columnDecoder), null, col, p.addr(e, sink))
	if !flag.AllowsNull() {
		return append([]jen.Code{e.requireValid(null, col)}, valid...)
	}
	return []jen.Code{
		jen.If(jen.Op("!").Add(null).Dot("Valid")).Block(
			sink(jen.Nil())...,
		).Else().Block(valid...),
	}
}

func (p *PointerDecoder) decodeRow(e *Emitter, path Path, rows *jen.Statement, flag nullness.Flag, sink Sink) []jen.Code {
	path, ok := e.visit(path, p)
	if !ok {
		return nil
	}
	return p.elem.(rowDecoder).decodeRow(e, path, rows, nullness.NonNull, p.addr(e, sink))
}

// addr wraps sink so that it receives the address of a copy of the value.
func (p *PointerDecoder) addr(e *Emitter, sink Sink) Sink {
	return func(val *jen.Statement) []jen.Code {
		x := e.Var("x")
		return append([]jen.Code{jen.Id(x).Op(":=").Add(val)}, sink(jen.Op("&").Id(x))...)
	}
}

// OptionalDecoder reads sql.Null[T] and the sql.NullXxx structs; NULL is
// the invalid wrapper.
type OptionalDecoder struct {
	base
	value string
	elem  columnDecoder
}

func (*OptionalDecoder) isDecoder() {}

func (o *OptionalDecoder) source() types.Type { return o.elem.source() }

func (o *OptionalDecoder) decode(e *Emitter, path Path, src *jen.Statement, sink Sink) []jen.Code {
	return o.elem.decode(e, path, src, o.wrap(sink))
}

func (o *OptionalDecoder) decodeNull(e *Emitter, path Path, null *jen.Statement, _ nullness.Flag, col string, sink Sink) []jen.Code {
	path, ok := e.visit(path, o)
	if !ok {
		return nil
	}
	return []jen.Code{
		jen.If(jen.Op("!").Add(null).Dot("Valid")).Block(
			sink(shape.Code(o.typ).Values())...,
		).Else().Block(
			e.decodeValid(path, o.elem, null, col, o.wrap(sink))...,
		),
	}
}

func (o *OptionalDecoder) wrap(sink Sink) Sink {
	return func(val *jen.Statement) []jen.Code {
		return sink(shape.Code(o.typ).Values(jen.Dict{
			jen.Id(o.value): val,
			jen.Id("Valid"): jen.True(),
		}))
	}
}

// DelegateDecoder passes a column to a user function.
type DelegateDecoder struct {
	base
	d  Delegate
	in columnDecoder
}

func (*DelegateDecoder) isDecoder() {}

func (d *DelegateDecoder) source() types.Type { return d.in.source() }

func (d *DelegateDecoder) decode(e *Emitter, path Path, src *jen.Statement, sink Sink) []jen.Code {
	path, ok := e.visit(path, d)
	if !ok {
		return nil
	}
	return d.in.decode(e, path, src, func(val *jen.Statement) []jen.Code {
		return callDelegate(e, d.d, d.fallible, []jen.Code{val}, sink)
	})
}

// RowDelegateDecoder passes several columns, named after the function's
// parameters, to a user function.
type RowDelegateDecoder struct {
	base
	d      Delegate
	params []field
}

func (*RowDelegateDecoder) isDecoder() {}

// Capability implements Converter.
func (*RowDelegateDecoder) Capability() Capability { return Row }

func (d *RowDelegateDecoder) decodeRow(e *Emitter, path Path, rows *jen.Statement, _ nullness.Flag, sink Sink) []jen.Code {
	path, ok := e.visit(path, d)
	if !ok {
		return nil
	}
	stmts, vars := e.scanColumns(rows, d.params)
	args := make([]jen.Code, len(d.params))
	for i, f := range d.params {
		a := e.Var("a")
		args[i] = jen.Id(a)
		stmts = append(stmts, jen.Var().Id(a).Add(shape.Code(f.v.Type())))
		stmts = append(stmts, e.decodeColumn(path, f.dec, vars[i], f.flag, f.col, Assign(jen.Id(a)))...)
	}
	return append(stmts, callDelegate(e, d.d, d.fallible, args, sink)...)
}

// CursorDecoder hands the positioned *sql.Rows to a user function.
type CursorDecoder struct {
	base
	d Delegate
}

func (*CursorDecoder) isDecoder() {}

// Capability implements Converter.
func (*CursorDecoder) Capability() Capability { return Row }

func (d *CursorDecoder) decodeRow(e *Emitter, _ Path, rows *jen.Statement, _ nullness.Flag, sink Sink) []jen.Code {
	return callDelegate(e, d.d, d.fallible, []jen.Code{rows}, sink)
}

// WrapperDecoder builds a single-field struct from its field's column.
type WrapperDecoder struct {
	base
	f field
}

func (*WrapperDecoder) isDecoder() {}

func (w *WrapperDecoder) source() types.Type { return w.f.dec.source() }

func (w *WrapperDecoder) decode(e *Emitter, path Path, src *jen.Statement, sink Sink) []jen.Code {
	path, ok := e.visit(path, w)
	if !ok {
		return nil
	}
	return w.f.dec.decode(e, path, src, w.wrap(sink))
}

func (w *WrapperDecoder) decodeNull(e *Emitter, path Path, null *jen.Statement, _ nullness.Flag, col string, sink Sink) []jen.Code {
	path, ok := e.visit(path, w)
	if !ok {
		return nil
	}
	return e.decodeColumn(path, w.f.dec, null, w.f.flag, col, w.wrap(sink))
}

func (w *WrapperDecoder) wrap(sink Sink) Sink {
	return func(val *jen.Statement) []jen.Code {
		return sink(shape.Code(w.typ).Values(jen.Dict{jen.Id(w.f.v.Name()): val}))
	}
}

// EnumDecoder maps a constant identifier back to the constant.
type EnumDecoder struct {
	base
	consts []*types.Const
}

func (*EnumDecoder) isDecoder() {}

func (*EnumDecoder) source() types.Type { return types.Typ[types.String] }

func (n *EnumDecoder) decode(e *Emitter, _ Path, src *jen.Statement, sink Sink) []jen.Code {
	v := e.Var("v")
	cases := make([]jen.Code, 0, len(n.consts)+1)
	for _, c := range n.consts {
		cases = append(cases, jen.Case(jen.Lit(c.Name())).Block(jen.Id(v).Op("=").Add(constRef(c))))
	}
	cases = append(cases, jen.Default().Block(
		e.Fail(jen.Qual(shape.RuntimePath, "NewEnumError").Call(e.op(), jen.Lit(TypeString(n.typ)), src)),
	))
	stmts := []jen.Code{
		jen.Var().Id(v).Add(shape.Code(n.typ)),
		jen.Switch(src).Block(cases...),
	}
	return append(stmts, sink(jen.Id(v))...)
}

// RowDecoder builds a struct from the columns named after its fields.
type RowDecoder struct {
	base
	fields []field
}

func (*RowDecoder) isDecoder() {}

// Capability implements Converter.
func (*RowDecoder) Capability() Capability { return Row }

// Columns returns the read column names in field order.
func (r *RowDecoder) Columns() []string {
	cols := make([]string, len(r.fields))
	for i, f := range r.fields {
		cols[i] = f.col
	}
	return cols
}

func (r *RowDecoder) decodeRow(e *Emitter, path Path, rows *jen.Statement, _ nullness.Flag, sink Sink) []jen.Code {
	path, ok := e.visit(path, r)
	if !ok {
		return nil
	}
	stmts, vars := e.scanColumns(rows, r.fields)
	v := e.Var("r")
	stmts = append(stmts, jen.Var().Id(v).Add(shape.Code(r.typ)))
	for i, f := range r.fields {
		stmts = append(stmts, e.decodeColumn(path, f.dec, vars[i], f.flag, f.col, Assign(jen.Id(v).Dot(f.v.Name())))...)
	}
	return append(stmts, sink(jen.Id(v))...)
}

// callDelegate emits the call of a decoding function, checking its error
// when it has one. Delegate errors are returned unwrapped.
func callDelegate(e *Emitter, d Delegate, fallible bool, args []jen.Code, sink Sink) []jen.Code {
	v := e.Var("v")
	call := funcRef(d.Func).Call(args...)
	if !fallible {
		return append([]jen.Code{jen.Id(v).Op(":=").Add(call)}, sink(jen.Id(v))...)
	}
	return append([]jen.Code{
		jen.List(jen.Id(v), jen.Err()).Op(":=").Add(call),
		e.check("err"),
	}, sink(jen.Id(v))...)
}
