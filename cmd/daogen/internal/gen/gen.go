package gen

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/syssam/daogen/cmd/daogen/internal/cli"
	"github.com/syssam/daogen/cmd/daogen/internal/watch"
	"github.com/syssam/daogen/compiler/gen"
)

type Cmd struct {
	Patterns []string          `arg:"" optional:"" help:"Packages to scan (default: ./...)."`
	Target   string            `help:"Output directory (default: the repository's package directory)." short:"o"`
	Package  string            `help:"Output package import path."`
	Header   *string           `help:"Header comment of generated files."`
	Set      map[string]string `help:"Method configuration defaults, e.g. --set timeout=5s." placeholder:"KEY=VALUE"`
	Workers  int               `help:"Files rendered concurrently (default: GOMAXPROCS)."`
	Watch    bool              `help:"Watch for changes and regenerate." short:"w"`
}

func (c *Cmd) Run(g *cli.Globals) error {
	generator, err := g.Generator(c.options()...)
	if err != nil {
		return err
	}
	patterns := c.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	plan, err := generator.Generate(ctx, patterns...)
	if err != nil {
		return err
	}
	cli.Summary(os.Stdout, plan)
	if !c.Watch {
		return cli.Result(plan)
	}

	var dirs []string
	for _, p := range plan.Packages {
		if p.Dir != "" && !slices.Contains(dirs, p.Dir) {
			dirs = append(dirs, p.Dir)
		}
	}
	w := &watch.Watcher{
		Dirs:   dirs,
		Ignore: func(path string) bool { return strings.HasSuffix(path, "_dao.go") },
		Log:    g.Logger(),
		Func: func(ctx context.Context) error {
			plan, err := generator.Generate(ctx, patterns...)
			if err != nil {
				return err
			}
			cli.Summary(os.Stdout, plan)
			return nil
		},
	}
	return w.Run(ctx)
}

func (c *Cmd) options() []gen.Option {
	var opts []gen.Option
	if c.Target != "" {
		opts = append(opts, gen.WithTarget(c.Target))
	}
	if c.Package != "" {
		opts = append(opts, gen.WithPackage(c.Package))
	}
	if c.Header != nil {
		opts = append(opts, gen.WithHeader(*c.Header))
	}
	for k, v := range c.Set {
		opts = append(opts, gen.WithDefault(k, v))
	}
	if c.Workers > 0 {
		opts = append(opts, gen.WithWorkers(c.Workers))
	}
	return opts
}
