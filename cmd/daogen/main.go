package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/syssam/daogen/cmd/daogen/internal/check"
	"github.com/syssam/daogen/cmd/daogen/internal/cli"
	"github.com/syssam/daogen/cmd/daogen/internal/gen"
	"github.com/syssam/daogen/cmd/daogen/internal/verify"
)

type CLI struct {
	cli.Globals

	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate DAO implementations for //dao:repository interfaces."`
	Check   check.Cmd  `cmd:"" help:"Report diagnostics without generating files."`
	Verify  verify.Cmd `cmd:"" help:"Prepare every statement on a live database."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	c := &CLI{}
	ctx := kong.Parse(c,
		kong.Name("daogen"),
		kong.Description("Generate database access code from annotated Go interfaces."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&c.Globals)
	ctx.FatalIfErrorf(err)
}
