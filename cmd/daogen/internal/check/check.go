package check

import (
	"context"
	"fmt"
	"os"

	"github.com/syssam/daogen/cmd/daogen/internal/cli"
)

type Cmd struct {
	Patterns []string `arg:"" optional:"" help:"Packages to scan (default: ./...)."`
}

func (c *Cmd) Run(g *cli.Globals) error {
	generator, err := g.Generator()
	if err != nil {
		return err
	}
	patterns := c.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	plan, err := generator.Plan(context.Background(), patterns...)
	if err != nil {
		return err
	}
	cli.Summary(os.Stdout, plan)
	if plan.OK() {
		fmt.Printf("✓ %d repositories, no problems\n", len(plan.Files))
	}
	return cli.Result(plan)
}
