// Package load loads the packages declaring repository interfaces and
// scans their //dao: directives into the repository model the generator
// consumes.
package load

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/syssam/daogen/compiler/convert"
	"github.com/syssam/daogen/compiler/diag"
	"github.com/syssam/daogen/compiler/nullness"
)

// Prefix starts every directive comment.
const Prefix = "//dao:"

// Kind is the statement kind of a repository method.
type Kind int

const (
	KindNone Kind = iota
	KindQuery
	KindExec
	KindBatch
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindExec:
		return "exec"
	case KindBatch:
		return "batch"
	}
	return "none"
}

// Config is the raw key=value configuration of a //dao:config directive.
type Config map[string]string

// Package is a loaded package with the directives found in it.
type Package struct {
	Path  string
	Name  string
	Dir   string
	Types *types.Package
	Fset  *token.FileSet

	Default      nullness.Default
	Repositories []*Repository
	Annotations  []convert.Annotation
	// TypeMarks holds //dao:nullable and //dao:nonnull on type declarations.
	TypeMarks map[*types.TypeName]nullness.Mark
	// Diagnostics holds the problems found in directives outside of
	// repository methods.
	Diagnostics diag.Set

	scope *nullness.Scope
}

// Scope returns the package's nullness scope.
func (p *Package) Scope() *nullness.Scope { return p.scope }

// Register records the package's nullness declarations in r.
func (p *Package) Register(r *nullness.Resolver) {
	r.SetPackage(p.Path, p.scope)
	for tn, m := range p.TypeMarks {
		r.MarkType(tn, m)
	}
}

// Repository is an interface carrying //dao:repository.
type Repository struct {
	Name    string
	Named   *types.Named
	Iface   *types.Interface
	Config  Config
	Default nullness.Default
	Pos     token.Position
	Methods []*Method
	Scope   *nullness.Scope
}

// Method is one method of a repository.
type Method struct {
	Name string
	Func *types.Func
	Sig  *types.Signature
	Kind Kind
	SQL  string
	// Keys requests the generated key instead of the affected row count.
	Keys    bool
	Config  Config
	Default nullness.Default
	// Marks holds per-occurrence markers by target: a parameter name,
	// "return", or either followed by "[]" for the element.
	Marks map[string]nullness.Mark
	// Use holds named converters by target.
	Use   map[string]string
	Pos   token.Position
	Scope *nullness.Scope
	// Diagnostics holds the problems found in the method's directives.
	Diagnostics diag.Set
}

// Op returns the operation name used in runtime errors.
func (m *Method) Op(repo *Repository) string { return repo.Name + "." + m.Name }

// Mode is the go/packages load mode.
const Mode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
	packages.NeedTypes | packages.NeedTypesInfo | packages.NeedImports | packages.NeedDeps

// LoadConfig configures Load.
type LoadConfig struct {
	// Dir is the working directory patterns are resolved in.
	Dir string
	// BuildFlags are passed to the build system, e.g. "-tags=integration".
	BuildFlags []string
}

// Load loads the packages matching patterns and scans their directives.
func (c *LoadConfig) Load(patterns ...string) ([]*Package, error) {
	cfg := &packages.Config{
		Mode:       Mode,
		Dir:        c.Dir,
		BuildFlags: c.BuildFlags,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching %q", patterns)
	}
	var errs []string
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			errs = append(errs, e.Error())
		}
	})
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors:\n%s", strings.Join(errs, "\n"))
	}
	out := make([]*Package, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, Scan(p))
	}
	return out, nil
}

// Scan builds the directive model of a loaded package.
func Scan(p *packages.Package) *Package {
	pkg := &Package{
		Path:      p.PkgPath,
		Name:      p.Name,
		Types:     p.Types,
		Fset:      p.Fset,
		TypeMarks: make(map[*types.TypeName]nullness.Mark),
	}
	if len(p.GoFiles) > 0 {
		pkg.Dir = filepath.Dir(p.GoFiles[0])
	}
	s := &scanner{pkg: pkg, info: p.TypesInfo, fset: p.Fset}
	for _, f := range p.Syntax {
		s.packageDoc(f)
	}
	pkg.scope = &nullness.Scope{Name: pkg.Path, Default: pkg.Default}
	for _, f := range p.Syntax {
		s.file(f)
	}
	slices.SortStableFunc(pkg.Repositories, func(a, b *Repository) int {
		return strings.Compare(a.Name, b.Name)
	})
	return pkg
}

type scanner struct {
	pkg  *Package
	info *types.Info
	fset *token.FileSet
}

// directive is one //dao: comment line.
type directive struct {
	name string
	args string
	pos  token.Position
}

func (s *scanner) directives(cg *ast.CommentGroup) []directive {
	if cg == nil {
		return nil
	}
	var ds []directive
	for _, c := range cg.List {
		text, ok := strings.CutPrefix(c.Text, Prefix)
		if !ok {
			continue
		}
		name, args, _ := strings.Cut(text, " ")
		ds = append(ds, directive{name: name, args: strings.TrimSpace(args), pos: s.fset.Position(c.Pos())})
	}
	return ds
}

func (s *scanner) errorf(d directive, format string, args ...any) diag.Set {
	return diag.ErrorAt(d.pos, format, args...)
}

func (s *scanner) packageDoc(f *ast.File) {
	for _, d := range s.directives(f.Doc) {
		switch d.name {
		case "nullmarked":
			s.pkg.Default = nullness.Marked
		case "nullunmarked":
			s.pkg.Default = nullness.Unmarked
		default:
			s.pkg.Diagnostics = s.pkg.Diagnostics.Merge(s.errorf(d, "directive %s%s is not allowed on a package", Prefix, d.name))
		}
	}
}

func (s *scanner) file(f *ast.File) {
	for _, decl := range f.Decls {
		switch decl := decl.(type) {
		case *ast.GenDecl:
			if decl.Tok != token.TYPE {
				continue
			}
			for _, spec := range decl.Specs {
				ts := spec.(*ast.TypeSpec)
				doc := ts.Doc
				if doc == nil && len(decl.Specs) == 1 {
					doc = decl.Doc
				}
				s.typeSpec(ts, doc)
			}
		case *ast.FuncDecl:
			s.funcDecl(decl)
		}
	}
}

func (s *scanner) typeSpec(ts *ast.TypeSpec, doc *ast.CommentGroup) {
	ds := s.directives(doc)
	if len(ds) == 0 {
		return
	}
	tn, ok := s.info.Defs[ts.Name].(*types.TypeName)
	if !ok {
		return
	}
	var repo *Repository
	if slices.ContainsFunc(ds, func(d directive) bool { return d.name == "repository" }) {
		named, _ := tn.Type().(*types.Named)
		var iface *types.Interface
		if named != nil {
			iface, _ = named.Underlying().(*types.Interface)
		}
		if iface == nil {
			s.pkg.Diagnostics = s.pkg.Diagnostics.Merge(diag.ErrorAt(s.fset.Position(ts.Pos()), "%s is not an interface", tn.Name()))
			return
		}
		repo = &Repository{Name: tn.Name(), Named: named, Iface: iface, Config: Config{}, Pos: s.fset.Position(ts.Pos())}
	}
	for _, d := range ds {
		switch d.name {
		case "repository":
		case "nullable", "nonnull":
			if d.args != "" {
				s.pkg.Diagnostics = s.pkg.Diagnostics.Merge(s.errorf(d, "%s%s on a type takes no arguments", Prefix, d.name))
				continue
			}
			s.pkg.TypeMarks[tn] |= mark(d.name)
		case "config":
			if repo == nil {
				s.pkg.Diagnostics = s.pkg.Diagnostics.Merge(s.errorf(d, "%sconfig is only allowed on repositories and their methods", Prefix))
				continue
			}
			s.pkg.Diagnostics = s.pkg.Diagnostics.Merge(parseConfig(d, repo.Config))
		case "nullmarked", "nullunmarked":
			if repo == nil {
				s.pkg.Diagnostics = s.pkg.Diagnostics.Merge(s.errorf(d, "%s%s is only allowed on packages, repositories and methods", Prefix, d.name))
				continue
			}
			repo.Default = scopeDefault(d.name)
		default:
			s.pkg.Diagnostics = s.pkg.Diagnostics.Merge(s.errorf(d, "unknown directive %s%s on type %s", Prefix, d.name, tn.Name()))
		}
	}
	if repo == nil {
		return
	}
	repo.Scope = s.pkg.scope.Child(repo.Name, repo.Default)
	it, _ := ts.Type.(*ast.InterfaceType)
	if it == nil {
		return
	}
	for _, field := range it.Methods.List {
		if len(field.Names) == 0 {
			s.pkg.Diagnostics = s.pkg.Diagnostics.Merge(diag.ErrorAt(s.fset.Position(field.Pos()), "%s: embedded interfaces are not supported", repo.Name))
			continue
		}
		for _, name := range field.Names {
			fn, ok := s.info.Defs[name].(*types.Func)
			if !ok {
				continue
			}
			repo.Methods = append(repo.Methods, s.method(repo, fn, field.Doc))
		}
	}
	s.pkg.Repositories = append(s.pkg.Repositories, repo)
}

func (s *scanner) method(repo *Repository, fn *types.Func, doc *ast.CommentGroup) *Method {
	m := &Method{
		Name:   fn.Name(),
		Func:   fn,
		Sig:    fn.Type().(*types.Signature),
		Config: Config{},
		Marks:  make(map[string]nullness.Mark),
		Use:    make(map[string]string),
		Pos:    s.fset.Position(fn.Pos()),
	}
	var sql []string
	for _, d := range s.directives(doc) {
		switch d.name {
		case "query", "exec", "batch":
			k := statementKind(d.name)
			if m.Kind != KindNone && m.Kind != k {
				m.Diagnostics = m.Diagnostics.Merge(s.errorf(d, "%s%s conflicts with %s%s", Prefix, d.name, Prefix, m.Kind))
				continue
			}
			m.Kind = k
			sql = append(sql, d.args)
		case "keys":
			m.Keys = true
		case "config":
			m.Diagnostics = m.Diagnostics.Merge(parseConfig(d, m.Config))
		case "nullmarked", "nullunmarked":
			m.Default = scopeDefault(d.name)
		case "nullable", "nonnull":
			targets := strings.Fields(d.args)
			if len(targets) == 0 {
				m.Diagnostics = m.Diagnostics.Merge(s.errorf(d, "%s%s needs a parameter name or return", Prefix, d.name))
			}
			for _, t := range targets {
				if !s.validTarget(m.Sig, t) {
					m.Diagnostics = m.Diagnostics.Merge(s.errorf(d, "%s%s: %s has no parameter %s", Prefix, d.name, m.Name, strings.TrimSuffix(t, "[]")))
					continue
				}
				m.Marks[t] |= mark(d.name)
			}
		case "use":
			for _, kv := range strings.Fields(d.args) {
				t, name, ok := strings.Cut(kv, "=")
				if !ok || name == "" {
					m.Diagnostics = m.Diagnostics.Merge(s.errorf(d, "%suse: %q is not target=converter", Prefix, kv))
					continue
				}
				if !s.validTarget(m.Sig, t) {
					m.Diagnostics = m.Diagnostics.Merge(s.errorf(d, "%suse: %s has no parameter %s", Prefix, m.Name, strings.TrimSuffix(t, "[]")))
					continue
				}
				m.Use[t] = name
			}
		default:
			m.Diagnostics = m.Diagnostics.Merge(s.errorf(d, "unknown directive %s%s on method %s", Prefix, d.name, m.Name))
		}
	}
	m.SQL = strings.Join(sql, "\n")
	if m.Kind == KindNone {
		m.Diagnostics = m.Diagnostics.Merge(diag.ErrorAt(m.Pos, "method %s has no %squery, %sexec or %sbatch directive", m.Name, Prefix, Prefix, Prefix))
	} else if strings.TrimSpace(m.SQL) == "" {
		m.Diagnostics = m.Diagnostics.Merge(diag.ErrorAt(m.Pos, "method %s has an empty %s statement", m.Name, m.Kind))
	}
	m.Scope = repo.Scope.Child(repo.Name+"."+m.Name, m.Default)
	return m
}

// validTarget reports whether t names a parameter or the result.
func (s *scanner) validTarget(sig *types.Signature, t string) bool {
	t = strings.TrimSuffix(t, "[]")
	if t == "return" {
		return true
	}
	for i := range sig.Params().Len() {
		if sig.Params().At(i).Name() == t {
			return true
		}
	}
	return false
}

func (s *scanner) funcDecl(fd *ast.FuncDecl) {
	ds := s.directives(fd.Doc)
	if len(ds) == 0 {
		return
	}
	fn, ok := s.info.Defs[fd.Name].(*types.Func)
	if !ok {
		return
	}
	for _, d := range ds {
		var dir convert.Direction
		switch d.name {
		case "encoder":
			dir = convert.Encode
		case "decoder":
			dir = convert.Decode
		default:
			s.pkg.Diagnostics = s.pkg.Diagnostics.Merge(s.errorf(d, "unknown directive %s%s on function %s", Prefix, d.name, fn.Name()))
			continue
		}
		if strings.ContainsAny(d.args, " \t") {
			s.pkg.Diagnostics = s.pkg.Diagnostics.Merge(s.errorf(d, "%s%s takes at most one name", Prefix, d.name))
			continue
		}
		s.pkg.Annotations = append(s.pkg.Annotations, convert.Annotation{Dir: dir, Name: d.args, Func: fn, Pos: d.pos})
	}
}

func parseConfig(d directive, into Config) diag.Set {
	var msgs diag.Set
	for _, kv := range strings.Fields(d.args) {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			msgs = msgs.Merge(diag.ErrorAt(d.pos, "%sconfig: %q is not key=value", Prefix, kv))
			continue
		}
		if uq, err := strconv.Unquote(v); err == nil {
			v = uq
		}
		into[k] = v
	}
	if len(into) == 0 && msgs.IsEmpty() {
		msgs = diag.ErrorAt(d.pos, "%sconfig needs at least one key=value", Prefix)
	}
	return msgs
}

func mark(name string) nullness.Mark {
	if name == "nullable" {
		return nullness.MarkNullable
	}
	return nullness.MarkNonNull
}

func scopeDefault(name string) nullness.Default {
	if name == "nullmarked" {
		return nullness.Marked
	}
	return nullness.Unmarked
}

func statementKind(name string) Kind {
	switch name {
	case "query":
		return KindQuery
	case "exec":
		return KindExec
	}
	return KindBatch
}
