package gen

import (
	"fmt"
	"go/token"
	"go/types"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/daogen/compiler/convert"
	"github.com/syssam/daogen/compiler/diag"
	"github.com/syssam/daogen/compiler/load"
	"github.com/syssam/daogen/compiler/nullness"
	"github.com/syssam/daogen/compiler/shape"
	"github.com/syssam/daogen/compiler/sqlparse"
)

const rt = shape.RuntimePath

// Assembler builds the implementations of the repositories of one package.
// It resolves converters through Store, which is not safe for concurrent
// use, so one package is assembled at a time.
type Assembler struct {
	Pkg      *load.Package
	Store    *convert.CompositeStore
	Nullness *nullness.Resolver
	Dialect  Dialect
	// Defaults is the process-wide method configuration.
	Defaults load.Config
}

// Impl is the assembled implementation of one repository interface.
type Impl struct {
	Repo *load.Repository
	// Name is the implementation type, "<Iface>Impl".
	Name string
	// Ctor is the constructor, "New<Iface>".
	Ctor     string
	Methods  []*MethodImpl
	Messages diag.Set
}

// MethodImpl is one assembled method.
type MethodImpl struct {
	Method *load.Method
	Op     string
	// Messages holds everything reported for the method; errors turned
	// it into a stub.
	Messages diag.Set
	// Decls are emitted before the method, e.g. a batch accumulator.
	Decls []jen.Code
	Func  jen.Code
}

// Stub reports whether the method body was replaced by a stub.
func (m *MethodImpl) Stub() bool { return m.Messages.HasErrors() }

// Stubs returns the operations generated as stubs.
func (i *Impl) Stubs() []string {
	var ops []string
	for _, m := range i.Methods {
		if m.Stub() {
			ops = append(ops, m.Op)
		}
	}
	return ops
}

// Repository assembles repo.
func (a *Assembler) Repository(repo *load.Repository) *Impl {
	impl := &Impl{Repo: repo, Name: repo.Name + "Impl", Ctor: ctorName(repo.Name)}
	if out := a.Store.Out; out != nil && out.Path() != a.Pkg.Path {
		if !token.IsExported(repo.Name) {
			impl.Messages = diag.ErrorAt(repo.Pos, "repository %s is not exported and cannot be implemented in package %s", repo.Name, out.Path())
			return impl
		}
	}
	for _, m := range repo.Methods {
		impl.Methods = append(impl.Methods, a.method(repo, impl.Name, m))
	}
	return impl
}

// Code returns the declarations of the implementation.
func (i *Impl) Code() []jen.Code {
	iface := jen.Qual(i.Repo.Named.Obj().Pkg().Path(), i.Repo.Name)
	codes := []jen.Code{
		jen.Commentf("%s implements %s.", i.Name, i.Repo.Name),
		jen.Type().Id(i.Name).Struct(
			jen.Id("db").Qual(rt, "DB"),
		),
		jen.Line(),
		jen.Commentf("%s returns a %s running its statements on db.", i.Ctor, i.Repo.Name),
		jen.Func().Id(i.Ctor).Params(jen.Id("db").Qual(rt, "DB")).Add(iface.Clone()).Block(
			jen.Return(jen.Op("&").Id(i.Name).Values(jen.Dict{jen.Id("db"): jen.Id("db")})),
		),
		jen.Line(),
		jen.Var().Id("_").Add(iface).Op("=").Parens(jen.Op("*").Id(i.Name)).Parens(jen.Nil()),
	}
	for _, m := range i.Methods {
		for _, d := range m.Decls {
			codes = append(codes, jen.Line(), d)
		}
		codes = append(codes, jen.Line(), m.Func)
	}
	return codes
}

func ctorName(iface string) string {
	if token.IsExported(iface) {
		return "New" + iface
	}
	return "new" + upperFirst(iface)
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[n:]
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[n:]
}

// Identifiers the generated bodies declare or packages they refer to.
// Parameters with these names are renamed in the emitted signature; markers
// still use the declared name.
var reserved = map[string]bool{
	"r": true, "acc": true, "args": true, "q": true, "res": true,
	"n": true, "id": true, "v": true, "it": true, "err": true,
	"rows": true, "context": true, "sql": true, "daogen": true, "time": true,
	"fmt": true, "iter": true, "errors": true,
}

// Fresh variables of convert.Emitter.
var emitterVar = regexp.MustCompile(`^(v|c|x|e|a|r|cols|idx)[0-9]+$`)

// param is a method (or batch add) parameter.
type param struct {
	name  string // declared name, used by markers
	ident string // emitted name
	v     *types.Var
	kind  shape.Kind
	elem  types.Type
	used  bool
}

func (p *param) id() *jen.Statement { return jen.Id(p.ident) }

// methodCtx is the state of one method assembly.
type methodCtx struct {
	a    *Assembler
	repo *load.Repository
	m    *load.Method
	op   string
	impl string

	res    shape.Result
	ctx    *jen.Statement
	names  []string
	params map[string]*param
	order  []*param
	set    Settings
	tpl    *sqlparse.Template

	e        *convert.Emitter
	msgs     diag.Set
	fallible []string
	// pkgs holds the names of the packages the signature refers to.
	pkgs map[string]bool
}

func (a *Assembler) method(repo *load.Repository, impl string, m *load.Method) *MethodImpl {
	mc := &methodCtx{a: a, repo: repo, m: m, op: m.Op(repo), impl: impl, msgs: m.Diagnostics}
	mc.e = convert.NewEmitter(mc.op, mc.fail)
	mc.prepare()
	var (
		body  []jen.Code
		decls []jen.Code
	)
	if !mc.msgs.HasErrors() {
		body, decls = mc.body()
	}
	msgs := mc.msgs.Merge(mc.e.Messages()).At(m.Pos)
	if msgs.HasErrors() {
		body, decls = mc.stub(msgs), nil
	}
	return &MethodImpl{
		Method:   m,
		Op:       mc.op,
		Messages: msgs,
		Decls:    decls,
		Func: jen.Func().Params(jen.Id("r").Op("*").Id(impl)).Id(m.Name).
			Add(shape.Signature(m.Sig, mc.names)).
			Block(body...),
	}
}

func (mc *methodCtx) report(s diag.Set) { mc.msgs = mc.msgs.Merge(s) }

func (mc *methodCtx) errorf(format string, args ...any) {
	mc.report(diag.Errorf(format, args...))
}

// prepare classifies results and parameters and parses the statement.
func (mc *methodCtx) prepare() {
	sig := mc.m.Sig
	res, ok := shape.Results(sig)
	if !ok {
		mc.errorf("%s: results must be (), (error), (T) or (T, error)", mc.op)
	}
	mc.res = res
	mc.pkgs = make(map[string]bool)
	packageNames(sig, mc.pkgs)
	mc.params, mc.names = bindParams(sig.Params(), "p", mc.pkgs)
	for i := range sig.Params().Len() {
		v := sig.Params().At(i)
		if !shape.IsContext(v.Type()) {
			continue
		}
		if i != 0 {
			mc.errorf("%s: context.Context must be the first parameter", mc.op)
			continue
		}
		mc.ctx = jen.Id(mc.names[0])
	}
	for i := range sig.Params().Len() {
		if p, ok := mc.params[sig.Params().At(i).Name()]; ok && !shape.IsContext(p.v.Type()) {
			mc.order = append(mc.order, p)
		}
	}
	if mc.ctx == nil {
		mc.ctx = jen.Qual("context", "Background").Call()
	}
	cfg := Merge(mc.a.Defaults, mc.repo.Config, mc.m.Config)
	set, msgs := ParseSettings(mc.a.Dialect, cfg)
	mc.set = set
	mc.report(msgs)
	if mc.m.Kind == load.KindNone {
		return
	}
	tpl, err := sqlparse.Parse(mc.m.SQL)
	if err != nil {
		mc.errorf("%s: %v", mc.op, err)
		return
	}
	mc.tpl = tpl
}

// bindParams names the parameters of a signature for emission. Unnamed
// parameters get prefix-based names; reserved names and the names of the
// packages in pkgs get an underscore.
func bindParams(tuple *types.Tuple, prefix string, pkgs map[string]bool) (map[string]*param, []string) {
	params := make(map[string]*param)
	names := make([]string, tuple.Len())
	taken := make(map[string]bool)
	for i := range tuple.Len() {
		taken[tuple.At(i).Name()] = true
	}
	for i := range tuple.Len() {
		v := tuple.At(i)
		name, ident := v.Name(), v.Name()
		switch {
		case shape.IsContext(v.Type()) && (ident == "" || ident == "_"):
			ident = "ctx"
		case ident == "":
			ident = fmt.Sprintf("%s%d", prefix, i)
		}
		for ident != "_" && (reserved[ident] || pkgs[ident] || emitterVar.MatchString(ident) || (ident != name && taken[ident])) {
			ident += "_"
		}
		taken[ident] = true
		names[i] = ident
		if name == "" || name == "_" {
			continue
		}
		kind, elem := shape.Classify(v.Type())
		params[name] = &param{name: name, ident: ident, v: v, kind: kind, elem: elem}
	}
	return params, names
}

// packageNames adds the names of the packages whose types appear in t.
func packageNames(t types.Type, names map[string]bool) {
	switch t := types.Unalias(t).(type) {
	case *types.Named:
		if pkg := t.Obj().Pkg(); pkg != nil {
			names[pkg.Name()] = true
		}
		for i := range t.TypeArgs().Len() {
			packageNames(t.TypeArgs().At(i), names)
		}
	case *types.Pointer:
		packageNames(t.Elem(), names)
	case *types.Slice:
		packageNames(t.Elem(), names)
	case *types.Array:
		packageNames(t.Elem(), names)
	case *types.Map:
		packageNames(t.Key(), names)
		packageNames(t.Elem(), names)
	case *types.Chan:
		packageNames(t.Elem(), names)
	case *types.Signature:
		for _, tuple := range []*types.Tuple{t.Params(), t.Results()} {
			for i := range tuple.Len() {
				packageNames(tuple.At(i).Type(), names)
			}
		}
	}
}

// fail builds the statement leaving the method with err.
func (mc *methodCtx) fail(err jen.Code) jen.Code {
	switch {
	case mc.res.HasError && mc.res.Type != nil:
		return jen.Return(zero(mc.res.Type), err)
	case mc.res.HasError:
		return jen.Return(err)
	}
	return jen.Panic(err)
}

// ret builds the return of a value whose companion error is in err.
func (mc *methodCtx) ret(v jen.Code) []jen.Code {
	if mc.res.HasError {
		return []jen.Code{jen.Return(v, jen.Err())}
	}
	return []jen.Code{jen.Qual(rt, "Must").Call(jen.Err()), jen.Return(v)}
}

// zero is the zero value of t as an expression.
func zero(t types.Type) jen.Code {
	if shape.Nilable(t) {
		return jen.Nil()
	}
	switch u := t.Underlying().(type) {
	case *types.Basic:
		switch {
		case u.Info()&types.IsBoolean != 0:
			return jen.False()
		case u.Info()&types.IsString != 0:
			return jen.Lit("")
		case u.Info()&types.IsNumeric != 0:
			return jen.Lit(0)
		}
	case *types.Struct, *types.Array:
		return shape.Code(t).Values()
	}
	return jen.Op("*").New(shape.Code(t))
}

// stub is the body of a method that could not be generated.
func (mc *methodCtx) stub(msgs diag.Set) []jen.Code {
	args := []jen.Code{jen.Lit(mc.op)}
	for _, m := range msgs.Errors().Messages() {
		args = append(args, jen.Lit(m.Text))
	}
	err := jen.Qual(rt, "NewGenerationError").Call(args...)
	return []jen.Code{mc.fail(err)}
}

// flag resolves the nullness of an occurrence. target is the marker
// target: a parameter name, "return", or either followed by "[]".
func (mc *methodCtx) flag(t types.Type, target, desc string) nullness.Flag {
	f, msgs := mc.a.Nullness.Resolve(mc.m.Scope, nullness.Occurrence{
		Type:  t,
		Marks: mc.m.Marks[target],
		Pos:   mc.m.Pos,
		Desc:  desc,
	})
	mc.report(msgs)
	return f
}

func (mc *methodCtx) key(t types.Type, targets ...string) convert.Key {
	k := convert.TypeKey(t)
	for _, target := range targets {
		if name := mc.m.Use[target]; name != "" {
			k.Name = name
			break
		}
	}
	return k
}

// encoder resolves the encoder of a bound value. It reports and returns
// false when the encoder cannot be used.
func (mc *methodCtx) encoder(what string, t types.Type, targets ...string) (convert.Encoder, bool) {
	enc := mc.a.Store.Encoder(nil, mc.key(t, targets...))
	if !convert.Usable(enc) {
		mc.report(enc.Messages().Prefix(what + ": "))
		return nil, false
	}
	if enc.Fallible() {
		mc.fallible = append(mc.fallible, what)
	}
	return enc, true
}

func (mc *methodCtx) decoder(what string, t types.Type, targets ...string) (convert.Decoder, bool) {
	dec := mc.a.Store.Decoder(nil, mc.key(t, targets...))
	if !convert.Usable(dec) {
		mc.report(dec.Messages().Prefix(what + ": "))
		return nil, false
	}
	if dec.Fallible() {
		mc.fallible = append(mc.fallible, what)
	}
	return dec, true
}

// checkExceptions rejects fallible converters in methods that cannot
// return their errors.
func (mc *methodCtx) checkExceptions() {
	if mc.res.HasError || len(mc.fallible) == 0 {
		return
	}
	mc.errorf("%s has incompatible exceptions: the converters of %s return errors but the method has no error result",
		mc.op, strings.Join(mc.fallible, ", "))
}

// checkUnused warns about parameters no marker refers to.
func (mc *methodCtx) checkUnused(params []*param) {
	for _, p := range params {
		if !p.used && p.kind != shape.BatchHandle {
			mc.report(diag.Warnf("parameter %s is not used by the statement", p.name))
		}
	}
}

// body dispatches on the statement kind.
func (mc *methodCtx) body() (body, decls []jen.Code) {
	switch mc.m.Kind {
	case load.KindQuery:
		body = mc.query()
	case load.KindExec:
		body = mc.exec()
	case load.KindBatch:
		body, decls = mc.batch()
	default:
		internalf("method %s reached assembly without a statement kind", mc.op)
	}
	return body, decls
}
