package convert

import (
	"go/token"
	"go/types"
	"strings"

	"github.com/syssam/daogen/compiler/diag"
	"github.com/syssam/daogen/compiler/nullness"
)

// Annotation is a function or method marked //dao:encoder or //dao:decoder.
type Annotation struct {
	Dir  Direction
	Name string // empty for converters selected by type
	Func *types.Func
	Pos  token.Position
}

// Registry holds the converter stores of a run. It is filled in two
// passes before any resolution: the built-ins when it is created, the user
// annotations in Declare.
type Registry struct {
	basic  *Store
	global *Store
	locals map[string]*Store
}

// NewRegistry returns a registry holding the built-in converters.
func NewRegistry() *Registry {
	return &Registry{
		basic:  Builtins(),
		global: NewStore(Global),
		locals: make(map[string]*Store),
	}
}

// Declare registers the annotated converters of one package. It returns
// the problems found in the annotations themselves; converters that cannot
// be used are also stored as failures so that every use reports them.
func (r *Registry) Declare(pkg *types.Package, anns []Annotation) diag.Set {
	local := r.local(pkg)
	var msgs diag.Set
	type group struct {
		dir   Direction
		key   Key
		names []string
		d     Delegate
		pos   token.Position
	}
	var (
		groups []*group
		index  = make(map[string]*group)
		named  = make(map[string]token.Position)
	)
	for _, a := range anns {
		d := ClassifyDelegate(a.Func, a.Dir, pkg)
		if d.Shape == Invalid {
			msgs = msgs.Merge(diag.ErrorAt(a.Pos, "%s %s", a.Dir, d))
		} else if d.Shape.Direction() != a.Dir {
			d.Shape, d.Reason = Invalid, "has the shape of a "+d.Shape.String()
			msgs = msgs.Merge(diag.ErrorAt(a.Pos, "%s %s", a.Dir, d))
		}
		t := d.In
		if a.Dir == Decode || t == nil {
			t = d.Out
		}
		if a.Name != "" {
			if prev, ok := named[a.Dir.String()+"\x00"+a.Name]; ok {
				msgs = msgs.Merge(diag.ErrorAt(a.Pos, "%s %q is declared more than once (previous declaration at %s)", a.Dir, a.Name, prev))
				failed := newFailed(t, diag.Errorf("%s %q is declared more than once", a.Dir, a.Name))
				local.Put(a.Dir, Key{Name: a.Name}, failed)
				r.global.Put(a.Dir, Key{Name: a.Name}, failed)
				continue
			}
			named[a.Dir.String()+"\x00"+a.Name] = a.Pos
			r.declare(local, a.Dir, Key{Name: a.Name}, t, d)
			continue
		}
		if t == nil {
			continue
		}
		key := TypeKey(t)
		id := a.Dir.String() + "\x00" + key.id()
		if g, ok := index[id]; ok {
			g.names = append(g.names, d.Name())
			continue
		}
		g := &group{dir: a.Dir, key: key, names: []string{d.Name()}, d: d, pos: a.Pos}
		index[id] = g
		groups = append(groups, g)
	}
	for _, g := range groups {
		dir := g.dir
		if len(g.names) > 1 {
			msg := diag.Errorf("too many annotated %ss for %s: %s", dir, TypeString(g.key.Type), strings.Join(g.names, ", "))
			msgs = msgs.Merge(msg.At(g.pos))
			failed := newFailed(g.key.Type, msg)
			local.Put(dir, g.key, failed)
			r.global.Put(dir, g.key, failed)
			continue
		}
		r.declare(local, dir, g.key, g.key.Type, g.d)
	}
	return msgs
}

// declare stores a lazily built delegate converter in local and global.
func (r *Registry) declare(local *Store, dir Direction, key Key, t types.Type, d Delegate) {
	if d.Shape == Invalid {
		failed := newFailed(t, diag.Errorf("%s", d.String()))
		local.Put(dir, key, failed)
		r.global.Put(dir, key, failed)
		return
	}
	// Both layers share the entry so the delegate is built once.
	e := &entry{key: key, build: func(c *CompositeStore, _ Key, path Path) Converter {
		return c.delegate(path, t, d)
	}}
	local.put(dir, e)
	r.global.put(dir, e)
}

func (r *Registry) local(pkg *types.Package) *Store {
	s, ok := r.locals[pkg.Path()]
	if !ok {
		s = NewStore(Local)
		r.locals[pkg.Path()] = s
	}
	return s
}

// Composite returns the resolver for code generated into pkg.
func (r *Registry) Composite(pkg *types.Package, nr *nullness.Resolver, fset *token.FileSet) *CompositeStore {
	return &CompositeStore{
		Local:    r.local(pkg),
		Global:   r.global,
		Basic:    r.basic,
		LocalPkg: pkg,
		Out:      pkg,
		Nullness: nr,
		Fset:     fset,
	}
}
