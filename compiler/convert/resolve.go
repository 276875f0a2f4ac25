package convert

import (
	"cmp"
	"go/token"
	"go/types"
	"slices"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/daogen/compiler/diag"
	"github.com/syssam/daogen/compiler/nullness"
	"github.com/syssam/daogen/compiler/shape"
)

// CompositeStore chains the local, global and basic stores and
// synthesizes converters for types none of them holds. Synthesized
// converters are cached in the store owning the type, so every key is
// scanned at most once per run.
//
// A CompositeStore is not safe for concurrent use.
type CompositeStore struct {
	Local, Global, Basic *Store
	// LocalPkg is the repository's package: converters for its types are
	// cached in Local.
	LocalPkg *types.Package
	// Out is the package generated code is written to; unexported members
	// are only accessible from it.
	Out *types.Package
	// Nullness resolves the flags of struct fields.
	Nullness *nullness.Resolver
	// Fset maps positions for diagnostics; it may be nil.
	Fset *token.FileSet

	scans int
}

// Scans returns the number of synthesis scans run so far.
func (c *CompositeStore) Scans() int { return c.scans }

// Encoder resolves the encoder for key. It never returns nil: failures are
// converters carrying messages.
func (c *CompositeStore) Encoder(path Path, key Key) Encoder {
	return c.resolve(Encode, path, key).(Encoder)
}

// Decoder resolves the decoder for key.
func (c *CompositeStore) Decoder(path Path, key Key) Decoder {
	return c.resolve(Decode, path, key).(Decoder)
}

func (c *CompositeStore) layers() []*Store {
	ls := make([]*Store, 0, 3)
	for _, s := range []*Store{c.Local, c.Global, c.Basic} {
		if s != nil {
			ls = append(ls, s)
		}
	}
	return ls
}

func (c *CompositeStore) resolve(dir Direction, path Path, key Key) Converter {
	if path.Contains(key) {
		return newFailed(key.Type, diag.Errorf("conversion cycle: %s", path.Cycle(key)))
	}
	path = path.With(key)
	if key.Named() {
		for _, s := range c.layers() {
			if e, ok := s.lookup(dir, Key{Name: key.Name}); ok {
				return c.checkType(dir, key, c.load(e, key, path))
			}
		}
		return newFailed(key.Type, diag.Errorf("%s %q not found", dir, key.Name))
	}
	for _, s := range c.layers() {
		if e, ok := s.lookup(dir, key); ok {
			return c.load(e, key, path)
		}
	}
	c.scans++
	conv := c.synthesize(dir, path, key.Type)
	c.owner(key.Type).Put(dir, key, conv)
	return conv
}

// load returns e's converter, building it on first use.
func (c *CompositeStore) load(e *entry, key Key, path Path) Converter {
	if e.conv == nil {
		e.conv = e.build(c, key, path)
	}
	return e.conv
}

// checkType verifies that a named converter fits the requested type.
func (c *CompositeStore) checkType(dir Direction, key Key, conv Converter) Converter {
	if !Usable(conv) || key.Type == nil {
		return conv
	}
	ok := types.AssignableTo(key.Type, conv.Type())
	if dir == Decode {
		ok = types.AssignableTo(conv.Type(), key.Type)
	}
	if ok {
		return conv
	}
	if dir == Encode {
		return newFailed(key.Type, diag.Errorf("%s %q has wrong type: %s is not assignable to %s",
			dir, key.Name, TypeString(key.Type), TypeString(conv.Type())))
	}
	return newFailed(key.Type, diag.Errorf("%s %q has wrong type: %s is not assignable to %s",
		dir, key.Name, TypeString(conv.Type()), TypeString(key.Type)))
}

// owner returns the store that caches synthesized converters for t.
func (c *CompositeStore) owner(t types.Type) *Store {
	for {
		p, ok := types.Unalias(t).(*types.Pointer)
		if !ok {
			break
		}
		t = p.Elem()
	}
	if named, ok := types.Unalias(t).(*types.Named); ok && c.Local != nil && c.LocalPkg != nil {
		if pkg := named.Obj().Pkg(); pkg != nil && pkg.Path() == c.LocalPkg.Path() {
			return c.Local
		}
	}
	if c.Global == nil {
		c.Global = NewStore(Global)
	}
	return c.Global
}

func (c *CompositeStore) synthesize(dir Direction, path Path, t types.Type) Converter {
	if t == nil {
		return newFailed(nil, diag.Errorf("no type to convert"))
	}
	t = types.Unalias(t)
	if p, ok := t.(*types.Pointer); ok {
		return c.pointer(dir, path, p)
	}
	if elem, ok := shape.Optional(t); ok {
		return c.optional(dir, path, t, elem)
	}
	if dir == Encode && isValuer(t) {
		return newNativeEncoder(t, nil, true)
	}
	if dir == Decode && isScanner(t) {
		return newNativeDecoder(t, nil)
	}
	var reasons []string
	named, _ := t.(*types.Named)
	if named != nil {
		if consts := c.enumConsts(named); len(consts) > 0 {
			b := base{typ: t, desc: "enum " + TypeString(t)}
			if dir == Encode {
				return &EnumEncoder{base: b, consts: consts}
			}
			return &EnumDecoder{base: b, consts: consts}
		}
	}
	if st, ok := t.Underlying().(*types.Struct); ok && st.NumFields() > 0 {
		conv, reason := c.structure(dir, path, t, st)
		if conv != nil {
			return conv
		}
		reasons = append(reasons, reason)
	}
	if named != nil {
		if to, ok := convertible(named); ok {
			if dir == Encode {
				return newNativeEncoder(t, to, false)
			}
			return newNativeDecoder(t, to)
		}
		conv, why := c.structural(dir, path, named)
		if conv != nil {
			return conv
		}
		reasons = append(reasons, why...)
	}
	msg := "no " + dir.String() + " for " + TypeString(t)
	if len(reasons) > 0 {
		msg += ": " + strings.Join(reasons, "; ")
	}
	return newFailed(t, diag.Errorf("%s", msg))
}

func (c *CompositeStore) pointer(dir Direction, path Path, p *types.Pointer) Converter {
	elem := c.resolve(dir, path, TypeKey(p.Elem()))
	if !Usable(elem) {
		return newFailed(p, elem.Messages())
	}
	b := base{typ: p, desc: "pointer to " + elem.String(), fallible: elem.Fallible()}
	if dir == Encode {
		return &PointerEncoder{base: b, elem: elem.(Encoder)}
	}
	return &PointerDecoder{base: b, elem: elem.(Decoder)}
}

func (c *CompositeStore) optional(dir Direction, path Path, t, elemType types.Type) Converter {
	value := "V"
	if st, ok := t.Underlying().(*types.Struct); ok && st.NumFields() == 2 {
		value = st.Field(0).Name()
	}
	elem := c.resolve(dir, path, TypeKey(elemType))
	if !Usable(elem) {
		return newFailed(t, elem.Messages())
	}
	b := base{typ: t, desc: "optional " + elem.String(), fallible: elem.Fallible()}
	if dir == Encode {
		ce, ok := elem.(columnEncoder)
		if !ok || elem.Capability() != Column {
			return newFailed(t, diag.Errorf("optional %s wraps a row", TypeString(t)))
		}
		return &OptionalEncoder{base: b, value: value, elem: ce}
	}
	cd, ok := elem.(columnDecoder)
	if !ok || elem.Capability() != Column {
		return newFailed(t, diag.Errorf("optional %s wraps a row", TypeString(t)))
	}
	return &OptionalDecoder{base: b, value: value, elem: cd}
}

// structure synthesizes a single-field wrapper or a row converter. It
// returns a reason instead when the struct cannot be bound field by field.
func (c *CompositeStore) structure(dir Direction, path Path, t types.Type, st *types.Struct) (Converter, string) {
	var fields []field
	for i := range st.NumFields() {
		v := st.Field(i)
		col, _ := nullness.ParseTag(st.Tag(i))
		if col == "-" {
			continue
		}
		if !accessible(v, c.Out) {
			return nil, "field " + v.Name() + " of " + TypeString(t) + " is not exported"
		}
		if col == "" {
			col = inflect.Underscore(v.Name())
		}
		flag, _ := c.nullness().Resolve(c.scopeOf(t), nullness.Field(st, i, c.position(v.Pos())))
		fields = append(fields, field{col: col, v: v, flag: flag})
	}
	if len(fields) == 0 {
		return nil, "every field of " + TypeString(t) + " is skipped"
	}
	var msgs diag.Set
	fallible := false
	seen := make(map[string]bool, len(fields))
	for i := range fields {
		f := &fields[i]
		if seen[f.col] {
			msgs = msgs.Merge(diag.Errorf("column %q of %s is bound twice", f.col, TypeString(t)))
		}
		seen[f.col] = true
		conv := c.resolve(dir, path, TypeKey(f.v.Type()))
		if !Usable(conv) {
			msgs = msgs.Merge(conv.Messages().Prefix("field " + f.v.Name() + ": "))
			continue
		}
		fallible = fallible || conv.Fallible()
		var ok bool
		if dir == Encode {
			f.enc, ok = conv.(columnEncoder)
		} else {
			f.dec, ok = conv.(columnDecoder)
		}
		if !ok || conv.Capability() != Column {
			msgs = msgs.Merge(diag.Errorf("field %s of %s is bound to a whole row", f.v.Name(), TypeString(t)))
		}
	}
	if !msgs.IsEmpty() {
		return newFailed(t, msgs), ""
	}
	if len(fields) == 1 {
		f := fields[0]
		if f.flag == nullness.Nullable || f.flag == nullness.OptionalWrapper {
			return newFailed(t, diag.Errorf("single-field wrapper %s: field %s is %s", TypeString(t), f.v.Name(), f.flag)), ""
		}
		b := base{typ: t, desc: "wrapper " + TypeString(t), fallible: fallible}
		if dir == Encode {
			return &WrapperEncoder{base: b, f: f}, ""
		}
		return &WrapperDecoder{base: b, f: f}, ""
	}
	b := base{typ: t, desc: "row " + TypeString(t), fallible: fallible}
	if dir == Encode {
		return &RowEncoder{base: b, fields: fields}, ""
	}
	return &RowDecoder{base: b, fields: fields}, ""
}

// encodeMethods are the accessor methods an encoder may delegate to.
var encodeMethods = []string{"String", "Int64", "Float64", "Bool", "Bytes", "Time"}

// structural looks for delegate functions and methods by naming
// convention. It returns the reasons for rejecting candidates when no
// converter results.
func (c *CompositeStore) structural(dir Direction, path Path, named *types.Named) (Converter, []string) {
	pkg := named.Obj().Pkg()
	var (
		cands   []*types.Func
		reasons []string
	)
	if dir == Encode {
		mset := types.NewMethodSet(named)
		for _, name := range encodeMethods {
			if sel := mset.Lookup(pkg, name); sel != nil {
				cands = append(cands, sel.Obj().(*types.Func))
			}
		}
	} else if pkg != nil {
		for _, prefix := range []string{"New", "Parse"} {
			if fn, ok := pkg.Scope().Lookup(prefix + named.Obj().Name()).(*types.Func); ok {
				cands = append(cands, fn)
			}
		}
	}
	var eligible []Delegate
	for _, fn := range cands {
		d := ClassifyDelegate(fn, dir, c.Out)
		switch {
		case d.Shape == Invalid:
			reasons = append(reasons, d.String())
		case dir == Decode && !types.AssignableTo(d.Out, named):
			reasons = append(reasons, d.Name()+": returns "+TypeString(d.Out))
		case dir == Encode && !types.Identical(d.In, named):
			reasons = append(reasons, d.Name()+": has a pointer receiver")
		default:
			eligible = append(eligible, d)
		}
	}
	switch len(eligible) {
	case 0:
		return nil, reasons
	case 1:
		return c.delegate(path, named, eligible[0]), nil
	}
	names := make([]string, len(eligible))
	for i, d := range eligible {
		names[i] = d.Name()
	}
	return newFailed(named, diag.Errorf("too many %ss for %s: %s", dir, TypeString(named), strings.Join(names, ", "))), nil
}

// delegate builds the converter calling d for values of type t.
func (c *CompositeStore) delegate(path Path, t types.Type, d Delegate) Converter {
	switch d.Shape {
	case EncodeFunc, EncodeMethod:
		out := c.resolve(Encode, path, TypeKey(d.Out))
		ce, ok := out.(columnEncoder)
		switch {
		case !Usable(out):
			return newFailed(t, out.Messages().Prefix(d.Name()+": "))
		case !ok || out.Capability() != Column:
			return newFailed(t, diag.Errorf("%s: returns %s, which is not a column", d.Name(), TypeString(d.Out)))
		}
		return &DelegateEncoder{base: base{typ: d.In, desc: "delegate " + d.Name(), fallible: d.Fallible || out.Fallible()}, d: d, out: ce}
	case DecodeColumnFunc:
		in := c.resolve(Decode, path, TypeKey(d.In))
		cd, ok := in.(columnDecoder)
		switch {
		case !Usable(in):
			return newFailed(t, in.Messages().Prefix(d.Name()+": "))
		case !ok || in.Capability() != Column:
			return newFailed(t, diag.Errorf("%s: takes %s, which is not a column", d.Name(), TypeString(d.In)))
		}
		return &DelegateDecoder{base: base{typ: d.Out, desc: "delegate " + d.Name(), fallible: d.Fallible || in.Fallible()}, d: d, in: cd}
	case DecodeRowFunc:
		sig := d.Func.Type().(*types.Signature)
		params := make([]field, sig.Params().Len())
		var msgs diag.Set
		fallible := d.Fallible
		for i := range params {
			v := sig.Params().At(i)
			in := c.resolve(Decode, path, TypeKey(v.Type()))
			cd, ok := in.(columnDecoder)
			switch {
			case !Usable(in):
				msgs = msgs.Merge(in.Messages().Prefix(d.Name() + " parameter " + v.Name() + ": "))
			case !ok || in.Capability() != Column:
				msgs = msgs.Merge(diag.Errorf("%s: parameter %s is not a column", d.Name(), v.Name()))
			default:
				fallible = fallible || in.Fallible()
			}
			params[i] = field{col: inflect.Underscore(v.Name()), v: v, flag: valueFlag(v.Type()), dec: cd}
		}
		if !msgs.IsEmpty() {
			return newFailed(t, msgs)
		}
		return &RowDelegateDecoder{base: base{typ: d.Out, desc: "delegate " + d.Name(), fallible: fallible}, d: d, params: params}
	case DecodeCursorFunc:
		return &CursorDecoder{base: base{typ: d.Out, desc: "delegate " + d.Name(), fallible: true}, d: d}
	}
	return newFailed(t, diag.Errorf("%s", d.String()))
}

// enumConsts returns the accessible constants of type named declared in
// its package, one per value, in declaration order.
func (c *CompositeStore) enumConsts(named *types.Named) []*types.Const {
	if _, ok := named.Underlying().(*types.Basic); !ok || named.Obj().Pkg() == nil {
		return nil
	}
	scope := named.Obj().Pkg().Scope()
	var consts []*types.Const
	seen := make(map[string]bool)
	for _, name := range scope.Names() {
		k, ok := scope.Lookup(name).(*types.Const)
		if !ok || !types.Identical(k.Type(), named) || !accessible(k, c.Out) {
			continue
		}
		consts = append(consts, k)
	}
	slices.SortFunc(consts, func(a, b *types.Const) int { return cmp.Compare(a.Pos(), b.Pos()) })
	out := consts[:0]
	for _, k := range consts {
		if v := k.Val().ExactString(); !seen[v] {
			seen[v] = true
			out = append(out, k)
		}
	}
	return out
}

// convertible reports whether values of named convert to a driver type:
// its underlying type is basic or []byte.
func convertible(named *types.Named) (types.Type, bool) {
	switch u := named.Underlying().(type) {
	case *types.Basic:
		if u.Info()&(types.IsBoolean|types.IsInteger|types.IsFloat|types.IsString) != 0 {
			return u, true
		}
	case *types.Slice:
		if shape.IsBytes(u) {
			return types.NewSlice(types.Typ[types.Byte]), true
		}
	}
	return nil, false
}

// isValuer reports whether t implements driver.Valuer.
func isValuer(t types.Type) bool {
	sel := types.NewMethodSet(t).Lookup(nil, "Value")
	if sel == nil {
		return false
	}
	sig := sel.Type().(*types.Signature)
	return sig.Params().Len() == 0 && sig.Results().Len() == 2 &&
		shape.Is(sig.Results().At(0).Type(), "database/sql/driver", "Value") &&
		shape.IsError(sig.Results().At(1).Type())
}

// isScanner reports whether *t implements sql.Scanner.
func isScanner(t types.Type) bool {
	sel := types.NewMethodSet(types.NewPointer(t)).Lookup(nil, "Scan")
	if sel == nil {
		return false
	}
	sig := sel.Type().(*types.Signature)
	if sig.Params().Len() != 1 || !shape.ReturnsOnlyError(sig) {
		return false
	}
	iface, ok := sig.Params().At(0).Type().Underlying().(*types.Interface)
	return ok && iface.Empty()
}

func (c *CompositeStore) nullness() *nullness.Resolver {
	if c.Nullness == nil {
		c.Nullness = nullness.NewResolver()
	}
	return c.Nullness
}

func (c *CompositeStore) scopeOf(t types.Type) *nullness.Scope {
	if named, ok := t.(*types.Named); ok && named.Obj().Pkg() != nil {
		return c.nullness().Package(named.Obj().Pkg().Path())
	}
	return nil
}

func (c *CompositeStore) position(pos token.Pos) token.Position {
	if c.Fset == nil {
		return token.Position{}
	}
	return c.Fset.Position(pos)
}
