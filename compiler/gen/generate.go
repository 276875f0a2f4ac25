package gen

import (
	"context"
	"fmt"
	"go/types"
	"path"
	"path/filepath"
	"runtime"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/daogen/compiler/convert"
	"github.com/syssam/daogen/compiler/diag"
	"github.com/syssam/daogen/compiler/load"
	"github.com/syssam/daogen/compiler/nullness"
)

// Generator loads repository packages, assembles their implementations
// and writes one file per repository.
type Generator struct {
	cfg *Config
}

// NewGenerator returns a generator configured by opts.
func NewGenerator(opts ...Option) (*Generator, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg}, nil
}

// Config returns the generator's configuration.
func (g *Generator) Config() *Config { return g.cfg }

// File is the planned output for one repository.
type File struct {
	// Path is the file the implementation is written to.
	Path string
	// Package is the import path and Name the package name of the file.
	Package string
	Name    string
	Impl    *Impl

	header string
}

// Plan is the result of resolving a run, before anything is written.
type Plan struct {
	Packages []*load.Package
	Files    []*File
	// Diagnostics holds the problems found outside of methods, keyed by
	// package path.
	Diagnostics map[string]diag.Set
}

// Stubs returns the operations generated as stubs across the plan.
func (p *Plan) Stubs() []string {
	var ops []string
	for _, f := range p.Files {
		ops = append(ops, f.Impl.Stubs()...)
	}
	return ops
}

// OK reports whether the plan has no errors: every method was generated
// and no declaration was rejected.
func (p *Plan) OK() bool {
	for _, s := range p.Diagnostics {
		if s.HasErrors() {
			return false
		}
	}
	for _, f := range p.Files {
		if f.Impl.Messages.HasErrors() {
			return false
		}
	}
	return len(p.Stubs()) == 0
}

// Generate plans the run for the packages matching patterns and writes
// the files.
func (g *Generator) Generate(ctx context.Context, patterns ...string) (plan *Plan, err error) {
	plan, err = g.Plan(ctx, patterns...)
	if err != nil {
		return nil, err
	}
	if err := g.Write(ctx, plan); err != nil {
		return plan, err
	}
	return plan, nil
}

// Plan loads the packages matching patterns and assembles every
// repository. Resolution is sequential; nothing is written.
func (g *Generator) Plan(ctx context.Context, patterns ...string) (plan *Plan, err error) {
	defer recoverInternal(&err)
	lc := &load.LoadConfig{Dir: g.cfg.Dir, BuildFlags: g.cfg.BuildFlags}
	pkgs, err := lc.Load(patterns...)
	if err != nil {
		return nil, NewLoadError(patterns, err)
	}
	return g.plan(ctx, pkgs)
}

func (g *Generator) plan(ctx context.Context, pkgs []*load.Package) (*Plan, error) {
	sink := g.sink()
	plan := &Plan{Packages: pkgs, Diagnostics: make(map[string]diag.Set)}
	reg := convert.NewRegistry()
	nr := nullness.NewResolver()
	for _, p := range pkgs {
		p.Register(nr)
	}
	for _, p := range pkgs {
		msgs := p.Diagnostics.Merge(reg.Declare(p.Types, p.Annotations))
		plan.Diagnostics[p.Path] = msgs
		sink.Report(ctx, p.Path, msgs)
	}
	seen := make(map[string]string)
	for _, p := range pkgs {
		out, dir := g.output(p, pkgs)
		store := reg.Composite(p.Types, nr, p.Fset)
		store.Out = out
		asm := &Assembler{
			Pkg:      p,
			Store:    store,
			Nullness: nr,
			Dialect:  g.cfg.Dialect,
			Defaults: g.cfg.Defaults,
		}
		for _, repo := range p.Repositories {
			impl := asm.Repository(repo)
			sink.Report(ctx, repo.Name, impl.Messages)
			for _, m := range impl.Methods {
				sink.Report(ctx, m.Op, m.Messages)
			}
			file := filepath.Join(dir, FileName(repo.Name))
			if prev, ok := seen[file]; ok {
				return nil, NewGenerationError(repo.Name, file, "file is also generated for "+prev, nil)
			}
			seen[file] = p.Path + "." + repo.Name
			plan.Files = append(plan.Files, &File{
				Path:    file,
				Package: out.Path(),
				Name:    out.Name(),
				Impl:    impl,
				header:  g.cfg.Header,
			})
		}
		sink.Logger().Debug("assembled package", "package", p.Path, "repositories", len(p.Repositories), "scans", store.Scans())
	}
	return plan, nil
}

// output returns the package and directory code for p is generated into.
func (g *Generator) output(p *load.Package, pkgs []*load.Package) (*types.Package, string) {
	out, dir := p.Types, p.Dir
	if g.cfg.Package != "" && g.cfg.Package != p.Path {
		out = types.NewPackage(g.cfg.Package, path.Base(g.cfg.Package))
		for _, q := range pkgs {
			if q.Path == g.cfg.Package {
				out = q.Types
			}
		}
	}
	if g.cfg.Target != "" {
		dir = g.cfg.Target
		if !filepath.IsAbs(dir) && g.cfg.Dir != "" {
			dir = filepath.Join(g.cfg.Dir, dir)
		}
	}
	return out, dir
}

// FileName is the generated file of a repository: UserStore -> user_store_dao.go.
func FileName(repo string) string {
	return inflect.Underscore(repo) + "_dao.go"
}

// Write renders and writes the files of plan in parallel. Only rendering
// happens here; the converters and code trees built by Plan are no longer
// mutated.
func (g *Generator) Write(ctx context.Context, plan *Plan) (err error) {
	defer recoverInternal(&err)
	workers := g.cfg.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, f := range plan.Files {
		if f.Impl.Messages.HasErrors() {
			continue
		}
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return writeFile(f)
			}
		})
	}
	return eg.Wait()
}

// JenFile builds the jennifer file of f.
func (f *File) JenFile() *jen.File {
	jf := jen.NewFilePathName(f.Package, f.Name)
	if f.header != "" {
		for _, l := range headerLines(f.header) {
			jf.HeaderComment(l)
		}
	}
	for _, c := range f.Impl.Code() {
		jf.Add(c)
	}
	return jf
}

// Render returns the formatted source of f.
func (f *File) Render() ([]byte, error) {
	return render(f)
}

func (g *Generator) sink() diag.Sink {
	if g.cfg.Sink == nil {
		return diag.Discard
	}
	return g.cfg.Sink
}

// String implements fmt.Stringer.
func (f *File) String() string {
	return fmt.Sprintf("%s (%d methods, %d stubs)", f.Path, len(f.Impl.Methods), len(f.Impl.Stubs()))
}
