package convert

import (
	"fmt"
	"go/types"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/daogen/compiler/diag"
	"github.com/syssam/daogen/compiler/nullness"
	"github.com/syssam/daogen/compiler/shape"
)

const sqlPkg = "database/sql"

// Sink receives a converted value expression and returns the statements
// that consume it. A sink may be invoked more than once, for instance in
// both branches of a null check.
type Sink func(val *jen.Statement) []jen.Code

// Emitter carries the state shared by the emission of one method body:
// the operation name used in runtime errors, the statement that leaves the
// body with an error, fresh variable names and the messages reported while
// emitting.
type Emitter struct {
	Op   string
	Fail func(err jen.Code) jen.Code

	state *emitState
}

type emitState struct {
	vars map[string]int
	msgs diag.Set
}

// NewEmitter returns an emitter for the operation op. fail builds the
// statement that leaves the method with the given error.
func NewEmitter(op string, fail func(err jen.Code) jen.Code) *Emitter {
	return &Emitter{Op: op, Fail: fail, state: &emitState{vars: make(map[string]int)}}
}

// Var returns a fresh identifier with the given prefix.
func (e *Emitter) Var(prefix string) string {
	n := e.state.vars[prefix]
	e.state.vars[prefix] = n + 1
	return fmt.Sprintf("%s%d", prefix, n)
}

// Report records messages; a non-empty set turns the method into a stub.
func (e *Emitter) Report(s diag.Set) {
	e.state.msgs = e.state.msgs.Merge(s)
}

// Messages returns everything reported so far.
func (e *Emitter) Messages() diag.Set { return e.state.msgs }

// WithFail returns an emitter sharing e's state that fails with fail.
func (e *Emitter) WithFail(fail func(err jen.Code) jen.Code) *Emitter {
	return &Emitter{Op: e.Op, Fail: fail, state: e.state}
}

// visit enters the converter c on path. It reports a cycle and returns
// false when c's type is already being emitted.
func (e *Emitter) visit(path Path, c Converter) (Path, bool) {
	k := TypeKey(c.Type())
	if path.Contains(k) {
		e.Report(diag.Errorf("conversion cycle: %s", path.Cycle(k)))
		return path, false
	}
	return path.With(k), true
}

// check returns `if err != nil { <fail> }`.
func (e *Emitter) check(err string) jen.Code {
	return jen.If(jen.Id(err).Op("!=").Nil()).Block(e.Fail(jen.Id(err)))
}

// wrap returns daogen.Wrap(op, "", err).
func (e *Emitter) wrap(err jen.Code) *jen.Statement {
	return jen.Qual(shape.RuntimePath, "Wrap").Call(jen.Lit(e.Op), jen.Lit(""), err)
}

// op returns the operation name literal.
func (e *Emitter) op() *jen.Statement { return jen.Lit(e.Op) }

// nullValue is the argument bound for NULL: sql.Null[K]{} when the native
// type is known, nil otherwise.
func nullValue(native types.Type) *jen.Statement {
	if native == nil {
		return jen.Nil()
	}
	return jen.Qual(sqlPkg, "Null").Types(shape.Code(native)).Values()
}

// Append returns a sink appending the value to the args slice.
func Append(args string) Sink {
	return func(val *jen.Statement) []jen.Code {
		return []jen.Code{jen.Id(args).Op("=").Append(jen.Id(args), val)}
	}
}

// Assign returns a sink assigning the value to dst.
func Assign(dst *jen.Statement) Sink {
	return func(val *jen.Statement) []jen.Code {
		return []jen.Code{jen.Add(dst).Op("=").Add(val)}
	}
}

// Bind emits the binding of src, a value of enc's type flagged flag, as a
// single column.
func (e *Emitter) Bind(path Path, enc Encoder, flag nullness.Flag, src *jen.Statement, sink Sink) []jen.Code {
	ce, ok := enc.(columnEncoder)
	if !ok {
		e.Report(diag.Errorf("%s is bound to a whole row; use :<param>.<column> markers", TypeString(enc.Type())))
		return nil
	}
	return ce.encode(e, path, src, flag, sink)
}

// BindColumn emits the binding of column col of src, a value bound by a
// row encoder (":param.column").
func (e *Emitter) BindColumn(path Path, enc Encoder, flag nullness.Flag, src *jen.Statement, col string, sink Sink) []jen.Code {
	switch enc := enc.(type) {
	case *RowEncoder:
		path, ok := e.visit(path, enc)
		if !ok {
			return nil
		}
		f, ok := enc.field(col)
		if !ok {
			e.Report(diag.Errorf("column %q is not bound by %s (have %v)", col, TypeString(enc.Type()), enc.Columns()))
			return nil
		}
		return f.enc.encode(e, path, jen.Add(src).Dot(f.v.Name()), f.flag, sink)
	case *PointerEncoder:
		if flag == nullness.NonNull {
			return e.BindColumn(path, enc.elem, nullness.NonNull, src, col, sink)
		}
		if _, ok := enc.elem.(*RowEncoder); !ok {
			break
		}
		return []jen.Code{
			jen.If(jen.Add(src).Op("==").Nil()).Block(
				sink(jen.Nil())...,
			).Else().Block(
				e.BindColumn(path, enc.elem, nullness.NonNull, src, col, sink)...,
			),
		}
	}
	e.Report(diag.Errorf("%s is bound to a single column; use :<param> without .%s", TypeString(enc.Type()), col))
	return nil
}

// DecodeFunc emits a decoding closure `func(rows *sql.Rows) (v T, err error)`
// reading the current row with dec.
func (e *Emitter) DecodeFunc(path Path, dec Decoder, flag nullness.Flag) *jen.Statement {
	sub := e.WithFail(func(err jen.Code) jen.Code {
		return jen.Return(jen.Id("v"), err)
	})
	rows := jen.Id("rows")
	set := Assign(jen.Id("v"))
	var body []jen.Code
	col, isCol := dec.(columnDecoder)
	row, isRow := dec.(rowDecoder)
	switch {
	case dec.Capability() == Row && isRow:
		body = append(body, row.decodeRow(sub, path, rows, flag, set)...)
	case dec.Capability() == Column && isCol:
		c := sub.Var("c")
		body = append(body,
			jen.Var().Id(c).Qual(sqlPkg, "Null").Types(shape.Code(col.source())),
			jen.If(jen.Err().Op(":=").Add(sub.scan(rows, jen.Op("&").Id(c))), jen.Err().Op("!=").Nil()).Block(
				sub.Fail(jen.Err()),
			),
		)
		body = append(body, sub.decodeColumn(path, col, jen.Id(c), flag, "", set)...)
	default:
		e.Report(diag.Errorf("%s cannot be decoded", TypeString(dec.Type())))
	}
	body = append(body, jen.Return(jen.Id("v"), jen.Nil()))
	return jen.Func().
		Params(jen.Id("rows").Op("*").Qual(sqlPkg, "Rows")).
		Params(jen.Id("v").Add(shape.Code(dec.Type())), jen.Err().Error()).
		Block(body...)
}

// decodeColumn emits the conversion of null, a scanned sql.Null[S] variable,
// into the decoder's type, applying the sink's nullability.
func (e *Emitter) decodeColumn(path Path, dec columnDecoder, null *jen.Statement, flag nullness.Flag, col string, sink Sink) []jen.Code {
	if nd, ok := dec.(nullDecoder); ok {
		return nd.decodeNull(e, path, null, flag, col, sink)
	}
	if shape.Nilable(dec.Type()) && flag.AllowsNull() {
		return []jen.Code{
			jen.If(jen.Op("!").Add(null).Dot("Valid")).Block(
				sink(jen.Nil())...,
			).Else().Block(
				dec.decode(e, path, jen.Add(null).Dot("V"), sink)...,
			),
		}
	}
	return append([]jen.Code{e.requireValid(null, col)}, dec.decode(e, path, jen.Add(null).Dot("V"), sink)...)
}

// decodeValid emits the conversion of null, known to hold a value.
func (e *Emitter) decodeValid(path Path, dec columnDecoder, null *jen.Statement, col string, sink Sink) []jen.Code {
	if nd, ok := dec.(nullDecoder); ok {
		return nd.decodeNull(e, path, null, nullness.NonNull, col, sink)
	}
	return dec.decode(e, path, jen.Add(null).Dot("V"), sink)
}

// requireValid returns `if !null.Valid { <fail NullColumnError> }`. An
// empty col is the only column of the row, named by the driver.
func (e *Emitter) requireValid(null *jen.Statement, col string) jen.Code {
	name := jen.Lit(col)
	if col == "" {
		name = jen.Qual(shape.RuntimePath, "ColumnName").Call(jen.Id("rows"), jen.Lit(0))
	}
	return jen.If(jen.Op("!").Add(null).Dot("Valid")).Block(
		e.Fail(jen.Qual(shape.RuntimePath, "NewNullColumnError").Call(e.op(), name)),
	)
}

// scan returns daogen.Scan(op, rows, dest...).
func (e *Emitter) scan(rows *jen.Statement, dest ...jen.Code) *jen.Statement {
	return jen.Qual(shape.RuntimePath, "Scan").Call(append([]jen.Code{e.op(), rows}, dest...)...)
}

// scanColumns emits the lookup of the named columns in the current row and
// a Scan into one sql.Null variable per column. It returns the variables.
func (e *Emitter) scanColumns(rows *jen.Statement, fields []field) ([]jen.Code, []*jen.Statement) {
	cols, idx := e.Var("cols"), e.Var("idx")
	names := make([]jen.Code, len(fields))
	targets := make([]jen.Code, len(fields))
	vars := make([]*jen.Statement, len(fields))
	stmts := []jen.Code{
		jen.List(jen.Id(cols), jen.Err()).Op(":=").Add(rows).Dot("Columns").Call(),
		jen.If(jen.Err().Op("!=").Nil()).Block(e.Fail(e.wrap(jen.Err()))),
	}
	for i, f := range fields {
		names[i] = jen.Lit(f.col)
	}
	stmts = append(stmts,
		jen.List(jen.Id(idx), jen.Err()).Op(":=").Qual(shape.RuntimePath, "ColumnIndex").Call(
			append([]jen.Code{e.op(), jen.Id(cols)}, names...)...,
		),
		jen.If(jen.Err().Op("!=").Nil()).Block(e.Fail(jen.Err())),
	)
	for i, f := range fields {
		c := e.Var("c")
		vars[i] = jen.Id(c)
		targets[i] = jen.Op("&").Id(c)
		stmts = append(stmts, jen.Var().Id(c).Qual(sqlPkg, "Null").Types(shape.Code(f.dec.source())))
	}
	dest := jen.Qual(shape.RuntimePath, "ScanDest").Call(
		append([]jen.Code{jen.Len(jen.Id(cols)), jen.Id(idx)}, targets...)...,
	)
	stmts = append(stmts, jen.If(
		jen.Err().Op(":=").Add(e.scan(rows, dest.Op("..."))),
		jen.Err().Op("!=").Nil(),
	).Block(e.Fail(jen.Err())))
	return stmts, vars
}
