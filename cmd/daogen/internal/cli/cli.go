// Package cli holds the flags and output shared by the daogen commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/syssam/daogen/compiler/gen"
)

// ErrIncomplete is returned when a run leaves methods as stubs or rejects
// declarations.
var ErrIncomplete = errors.New("daogen: some methods could not be generated")

// Globals are the flags accepted by every command.
type Globals struct {
	Dir     string   `help:"Directory package patterns are resolved in." short:"C" default:"." type:"existingdir"`
	Config  string   `help:"Configuration file (default: daogen.yaml in --dir, if present)." type:"path"`
	Dialect string   `help:"SQL dialect: sqlite, mysql or postgres." short:"d" env:"DAOGEN_DIALECT"`
	Tags    []string `help:"Build tags used when loading packages." sep:","`
	Verbose bool     `help:"Log debug output." short:"v"`
}

// Logger returns the text logger diagnostics are written to.
func (g *Globals) Logger() *slog.Logger {
	level := slog.LevelInfo
	if g.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Generator builds a generator from the configuration file, the global
// flags and extra, in that order; later settings win.
func (g *Globals) Generator(extra ...gen.Option) (*gen.Generator, error) {
	opts := []gen.Option{gen.WithDir(g.Dir), gen.WithLogger(g.Logger())}
	if g.Config != "" {
		opts = append(opts, gen.WithConfigFile(g.Config))
	} else {
		opts = append(opts, gen.WithOptionalConfigFile(filepath.Join(g.Dir, gen.ConfigFile)))
	}
	if g.Dialect != "" {
		opts = append(opts, gen.WithDialect(g.Dialect))
	}
	if len(g.Tags) > 0 {
		opts = append(opts, gen.WithBuildFlags("-tags="+strings.Join(g.Tags, ",")))
	}
	return gen.NewGenerator(append(opts, extra...)...)
}

// Summary prints one line per planned file and the stubbed operations.
func Summary(w io.Writer, plan *gen.Plan) {
	for _, f := range plan.Files {
		fmt.Fprintln(w, f)
	}
	stubs := plan.Stubs()
	slices.Sort(stubs)
	for _, op := range stubs {
		fmt.Fprintf(w, "stub: %s\n", op)
	}
}

// Result maps a plan to the command's error.
func Result(plan *gen.Plan) error {
	if plan.OK() {
		return nil
	}
	return ErrIncomplete
}
