package gen

import (
	"go/types"
	"time"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/daogen"
	"github.com/syssam/daogen/compiler/convert"
	"github.com/syssam/daogen/compiler/nullness"
	"github.com/syssam/daogen/compiler/shape"
)

// bind emits the argument list of the statement: one append per marker,
// in marker order, into the slice named args. It returns the statements
// and the SQL text expression.
func (mc *methodCtx) bind(e *convert.Emitter, params map[string]*param) ([]jen.Code, jen.Code) {
	tpl := mc.tpl
	stmts := []jen.Code{argsDecl(len(tpl.Markers))}
	sizes := make([]jen.Code, 0, len(tpl.Markers))
	expand := false
	sink := convert.Append("args")
	for _, mk := range tpl.Markers {
		p, ok := params[mk.Name]
		if !ok {
			mc.errorf("marker %s does not name a parameter", mk)
			continue
		}
		p.used = true
		what := "param " + p.name
		switch {
		case p.kind == shape.List || p.kind == shape.Array:
			expand = true
			sizes = append(sizes, jen.Len(p.id()))
			if mk.Field != "" {
				mc.errorf("marker %s: collection parameter %s has no columns", mk, p.name)
				continue
			}
			if f := mc.flag(p.v.Type(), p.name, what); f == nullness.Nullable || f == nullness.OptionalWrapper {
				mc.errorf("%s: collection must not be optional", what)
				continue
			}
			enc, ok := mc.encoder("element of "+what, p.elem, p.name+"[]", p.name)
			if !ok {
				continue
			}
			flag := mc.flag(p.elem, p.name+"[]", "element of "+what)
			el := e.Var("e")
			stmts = append(stmts, jen.For(jen.List(jen.Id("_"), jen.Id(el)).Op(":=").Range().Add(p.id())).Block(
				e.Bind(nil, enc, flag, jen.Id(el), sink)...,
			))
		case p.kind.Collection():
			mc.errorf("%s: a %s cannot be bound", what, p.kind)
		default:
			sizes = append(sizes, jen.Lit(1))
			if wrapsCollection(p.v.Type()) {
				mc.errorf("%s: collection must not be optional", what)
				continue
			}
			enc, ok := mc.encoder(what, p.v.Type(), p.name)
			if !ok {
				continue
			}
			flag := mc.flag(p.v.Type(), p.name, what)
			if mk.Field != "" {
				stmts = append(stmts, e.BindColumn(nil, enc, flag, p.id(), mk.Field, sink)...)
			} else {
				stmts = append(stmts, e.Bind(nil, enc, flag, p.id(), sink)...)
			}
		}
	}
	if !expand {
		return stmts, jen.Lit(tpl.Native(mc.a.Dialect.Placeholder))
	}
	parts := make([]jen.Code, len(tpl.Parts))
	for i, part := range tpl.Parts {
		parts[i] = jen.Lit(part)
	}
	return stmts, jen.Qual(rt, "Expand").Call(
		mc.a.Dialect.placeholder(),
		jen.Index().String().Values(parts...),
		jen.Index().Int().Values(sizes...),
	)
}

// wrapsCollection reports whether t is an optional wrapper or a pointer
// around a list or an array.
func wrapsCollection(t types.Type) bool {
	inner, ok := shape.Optional(t)
	if !ok {
		p, isPtr := types.Unalias(t).(*types.Pointer)
		if !isPtr {
			return false
		}
		inner = p.Elem()
	}
	kind, _ := shape.Classify(inner)
	return kind == shape.List || kind == shape.Array
}

// durationCode renders d as a multiple of its largest whole unit.
func durationCode(d time.Duration) jen.Code {
	for _, u := range []struct {
		d    time.Duration
		name string
	}{
		{time.Hour, "Hour"},
		{time.Minute, "Minute"},
		{time.Second, "Second"},
		{time.Millisecond, "Millisecond"},
		{time.Microsecond, "Microsecond"},
	} {
		if d%u.d == 0 {
			return jen.Lit(int(d/u.d)).Op("*").Qual("time", u.name)
		}
	}
	return jen.Qual("time", "Duration").Call(jen.Lit(int(d)))
}

func argsDecl(n int) jen.Code {
	if n == 0 {
		return jen.Var().Id("args").Index().Id("any")
	}
	return jen.Id("args").Op(":=").Make(jen.Index().Id("any"), jen.Lit(0), jen.Lit(n))
}

// queryDecl declares q, the daogen.Query of the method.
func (mc *methodCtx) queryDecl(sqlText jen.Code, s Settings) jen.Code {
	d := jen.Dict{
		jen.Id("Op"):  jen.Lit(mc.op),
		jen.Id("SQL"): sqlText,
	}
	if s.NoRows == daogen.NoRowsNull {
		d[jen.Id("NoRows")] = jen.Qual(rt, "NoRowsNull")
	}
	if s.NoMoreRows == daogen.NoMoreRowsIgnore {
		d[jen.Id("NoMoreRows")] = jen.Qual(rt, "NoMoreRowsIgnore")
	}
	if s.Timeout > 0 {
		d[jen.Id("Timeout")] = durationCode(s.Timeout)
	}
	if s.FetchSize > 0 {
		d[jen.Id("FetchSize")] = jen.Lit(s.FetchSize)
	}
	if s.MaxRows > 0 {
		d[jen.Id("MaxRows")] = jen.Lit(s.MaxRows)
	}
	if s.Tx {
		d[jen.Id("TxOptions")] = jen.Op("&").Qual("database/sql", "TxOptions").Values(jen.Dict{
			jen.Id("Isolation"): jen.Qual("database/sql", isolationIdents[s.Isolation]),
			jen.Id("ReadOnly"):  jen.Lit(s.ReadOnly),
		})
	}
	return jen.Id("q").Op(":=").Qual(rt, "Query").Values(d)
}

// call is `daogen.<fn>(ctx, r.db, q, args, ...)`.
func (mc *methodCtx) call(fn string, extra ...jen.Code) *jen.Statement {
	args := append([]jen.Code{mc.ctx.Clone(), jen.Id("r").Dot("db"), jen.Id("q"), jen.Id("args")}, extra...)
	return jen.Qual(rt, fn).Call(args...)
}

// query assembles a //dao:query method.
func (mc *methodCtx) query() []jen.Code {
	if mc.res.Type == nil {
		mc.errorf("%s: a query method must return a value", mc.op)
		return nil
	}
	kind, elem := shape.Classify(mc.res.Type)
	var (
		fn      string
		decoded types.Type
		target  []string
		desc    string
	)
	switch kind {
	case shape.Primitive, shape.Object, shape.OptionalWrapper:
		fn, decoded, target, desc = "QueryOne", mc.res.Type, []string{"return"}, "result"
	case shape.List:
		fn, decoded, target, desc = "QueryAll", elem, []string{"return[]", "return"}, "element of result"
	case shape.Stream:
		fn, decoded, target, desc = "QueryValues", elem, []string{"return[]", "return"}, "element of result"
		if shape.Is(mc.res.Type, "iter", "Seq2") {
			fn = "QuerySeq"
		}
	case shape.CursorIterable:
		fn, decoded, target, desc = "QueryIterator", elem, []string{"return[]", "return"}, "element of result"
	case shape.CursorRandomAccess:
		fn, decoded, target, desc = "QueryCursor", elem, []string{"return[]", "return"}, "element of result"
	case shape.Array:
		mc.errorf("%s: array results are not supported; use a slice", mc.op)
		return nil
	default:
		mc.errorf("%s: a %s cannot be returned", mc.op, kind)
		return nil
	}
	dec, ok := mc.decoder(desc, decoded, target...)
	flag := mc.flag(decoded, target[0], desc)
	stmts, sqlText := mc.bind(mc.e, mc.params)
	mc.checkUnused(mc.order)
	mc.checkExceptions()
	if !ok || mc.msgs.HasErrors() {
		return nil
	}
	decode := mc.e.DecodeFunc(nil, dec, flag)
	stmts = append(stmts, mc.queryDecl(sqlText, mc.set))
	call := mc.call(fn, decode)
	switch {
	case fn == "QuerySeq" || fn == "QueryValues":
		// Lazy sequences report errors while iterating.
		if mc.res.HasError {
			return append(stmts, jen.Return(call, jen.Nil()))
		}
		return append(stmts, jen.Return(call))
	case mc.res.HasError:
		return append(stmts, jen.Return(call))
	}
	stmts = append(stmts, jen.List(jen.Id("v"), jen.Err()).Op(":=").Add(call))
	return append(stmts, mc.ret(jen.Id("v"))...)
}

// exec assembles a //dao:exec method.
func (mc *methodCtx) exec() []jen.Code {
	t := mc.res.Type
	if mc.m.Keys {
		if t == nil {
			mc.errorf("%s: //dao:keys needs a result to return the generated key in", mc.op)
			return nil
		}
		if mc.set.Keys == Requery {
			return mc.requery(t)
		}
		if !isInteger(t) {
			mc.errorf("%s: use_generated_keys returns an integer key, not %s; configure generated_keys=requery", mc.op, convert.TypeString(t))
			return nil
		}
	}
	switch {
	case t == nil, mc.m.Keys, isCount(t), isBool(t):
	default:
		mc.errorf("%s: an exec method returns nothing, an affected row count (int or int64) or bool, not %s", mc.op, convert.TypeString(t))
		return nil
	}
	stmts, sqlText := mc.bind(mc.e, mc.params)
	mc.checkUnused(mc.order)
	mc.checkExceptions()
	if mc.msgs.HasErrors() {
		return nil
	}
	stmts = append(stmts, mc.queryDecl(sqlText, mc.set))
	if t == nil {
		// err is scoped to the if: fallible encoders may have declared one.
		stmts = append(stmts, jen.If(
			jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(mc.call("Exec")),
			jen.Err().Op("!=").Nil(),
		).Block(mc.fail(jen.Err())))
		if mc.res.HasError {
			return append(stmts, jen.Return(jen.Nil()))
		}
		return stmts
	}
	check := jen.If(jen.Err().Op("!=").Nil()).Block(mc.fail(jen.Err()))
	stmts = append(stmts,
		jen.List(jen.Id("res"), jen.Err()).Op(":=").Add(mc.call("Exec")),
		check,
	)
	var v *jen.Statement
	if mc.m.Keys {
		stmts = append(stmts, jen.List(jen.Id("n"), jen.Err()).Op(":=").Qual(rt, "LastInsertID").Call(jen.Lit(mc.op), jen.Id("res")))
	} else {
		stmts = append(stmts, jen.List(jen.Id("n"), jen.Err()).Op(":=").Qual(rt, "RowsAffected").Call(jen.Lit(mc.op), jen.Id("res")))
	}
	switch {
	case isBool(t) && !mc.m.Keys:
		v = jen.Id("n").Op(">").Lit(0)
	case types.Identical(t, types.Typ[types.Int64]):
		v = jen.Id("n")
	default:
		v = shape.Code(t).Call(jen.Id("n"))
	}
	return append(stmts, mc.ret(v)...)
}

// requery reads the generated key from the rows the statement returns,
// e.g. INSERT ... RETURNING id. Exactly one non-null value is expected.
func (mc *methodCtx) requery(t types.Type) []jen.Code {
	dec, ok := mc.decoder("generated key", t, "return")
	stmts, sqlText := mc.bind(mc.e, mc.params)
	mc.checkUnused(mc.order)
	mc.checkExceptions()
	if !ok || mc.msgs.HasErrors() {
		return nil
	}
	set := mc.set
	set.NoRows, set.NoMoreRows = daogen.NoRowsThrow, daogen.NoMoreRowsThrow
	stmts = append(stmts, mc.queryDecl(sqlText, set))
	call := mc.call("QueryOne", mc.e.DecodeFunc(nil, dec, nullness.NonNull))
	if mc.res.HasError {
		return append(stmts, jen.Return(call))
	}
	stmts = append(stmts, jen.List(jen.Id("v"), jen.Err()).Op(":=").Add(call))
	return append(stmts, mc.ret(jen.Id("v"))...)
}

// batch assembles a //dao:batch method and its accumulator type.
func (mc *methodCtx) batch() (body, decls []jen.Code) {
	if mc.res.Type != nil {
		mc.errorf("%s: a batch method must return only error", mc.op)
	}
	var handle *param
	for _, p := range mc.order {
		if p.kind == shape.BatchHandle && handle == nil {
			handle = p
			continue
		}
		mc.errorf("%s: a batch method takes a context and one batch handle parameter, func(add F) error", mc.op)
		break
	}
	if handle == nil {
		mc.errorf("%s: a batch method takes a context and one batch handle parameter, func(add F) error", mc.op)
		return nil, nil
	}
	if mc.tpl.Statements() > 1 {
		mc.errorf("%s: a batch statement must be a single statement", mc.op)
	}
	addSig := handle.elem.Underlying().(*types.Signature)
	if addSig.Variadic() {
		mc.errorf("%s: the add function of a batch cannot be variadic", mc.op)
	}
	params, names := bindParams(addSig.Params(), "p", mc.pkgs)
	var order []*param
	for i := range addSig.Params().Len() {
		v := addSig.Params().At(i)
		p, ok := params[v.Name()]
		if !ok {
			mc.errorf("%s: parameter %d of the add function is unnamed", mc.op, i)
			continue
		}
		if p.kind.Collection() {
			mc.errorf("%s: batch parameter %s: collections cannot be bound in batches", mc.op, p.name)
			continue
		}
		order = append(order, p)
	}
	if mc.msgs.HasErrors() {
		return nil, nil
	}
	acc := lowerFirst(mc.impl) + mc.m.Name + "Batch"
	add := mc.e.WithFail(func(err jen.Code) jen.Code { return jen.Return(err) })
	stmts, sqlText := mc.bind(add, params)
	mc.checkUnused(order)
	if mc.msgs.HasErrors() {
		return nil, nil
	}
	stmts = append(stmts, jen.Return(jen.Id("acc").Dot("b").Dot("Add").Call(jen.Id("args").Op("..."))))
	decls = []jen.Code{
		jen.Commentf("%s queues the rows of %s.", acc, mc.op).Line().
			Type().Id(acc).Struct(jen.Id("b").Op("*").Qual(rt, "Batch")),
		jen.Func().Params(jen.Id("acc").Op("*").Id(acc)).Id("add").
			Add(shape.Signature(addSig, names)).
			Block(stmts...),
	}
	body = []jen.Code{
		mc.queryDecl(sqlText, mc.set),
		jen.Id("acc").Op(":=").Op("&").Id(acc).Values(jen.Dict{
			jen.Id("b"): jen.Qual(rt, "NewBatch").Call(mc.ctx.Clone(), jen.Id("r").Dot("db"), jen.Id("q"), jen.Lit(mc.set.BatchSize)),
		}),
		jen.If(jen.Err().Op(":=").Add(handle.id()).Call(jen.Id("acc").Dot("add")), jen.Err().Op("!=").Nil()).Block(
			mc.fail(jen.Err()),
		),
	}
	if mc.res.HasError {
		body = append(body, jen.Return(jen.Id("acc").Dot("b").Dot("Finish").Call()))
	} else {
		body = append(body, jen.Qual(rt, "Must").Call(jen.Id("acc").Dot("b").Dot("Finish").Call()))
	}
	return body, decls
}

func basicInfo(t types.Type) types.BasicInfo {
	if b, ok := t.Underlying().(*types.Basic); ok {
		return b.Info()
	}
	return 0
}

func isInteger(t types.Type) bool { return basicInfo(t)&types.IsInteger != 0 }

func isBool(t types.Type) bool { return basicInfo(t)&types.IsBoolean != 0 }

// isCount reports whether t can hold an affected row count.
func isCount(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && (b.Kind() == types.Int || b.Kind() == types.Int64)
}
