package verify

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/daogen/cmd/daogen/internal/cli"
	"github.com/syssam/daogen/compiler/gen"
	"github.com/syssam/daogen/dialect"
	dsql "github.com/syssam/daogen/dialect/sql"
)

type Cmd struct {
	Patterns []string      `arg:"" optional:"" help:"Packages to scan (default: ./...)."`
	Driver   string        `help:"database/sql driver: sqlite, mysql or postgres." required:"" env:"DAOGEN_DRIVER"`
	DSN      string        `help:"Data source name of the database." required:"" env:"DAOGEN_DSN"`
	Timeout  time.Duration `help:"Time allowed for the whole verification." default:"30s"`
}

func (c *Cmd) Run(g *cli.Globals) error {
	drv, err := dsql.Open(c.Driver, c.DSN)
	if err != nil {
		return err
	}
	defer drv.Close()

	var opts []gen.Option
	if g.Dialect == "" {
		opts = append(opts, gen.WithDialect(dialect.Name(c.Driver)))
	}
	generator, err := g.Generator(opts...)
	if err != nil {
		return err
	}
	patterns := c.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	plan, err := generator.Plan(ctx, patterns...)
	if err != nil {
		return err
	}
	if err := drv.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	failed := generator.Verify(ctx, dsql.Debug(drv, g.Logger()), plan)
	var ops []string
	for op, msgs := range failed {
		if msgs.HasErrors() {
			ops = append(ops, op)
		}
	}
	slices.Sort(ops)
	for _, op := range ops {
		fmt.Fprintf(os.Stdout, "rejected: %s\n", op)
	}
	if len(ops) > 0 {
		return fmt.Errorf("daogen: %d statements rejected by the database", len(ops))
	}
	fmt.Fprintf(os.Stdout, "✓ statements of %d repositories verified\n", len(plan.Files))
	return nil
}
